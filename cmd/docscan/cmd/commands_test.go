package cmd

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/docscan/internal/export"
	"github.com/MeKo-Tech/docscan/internal/geometry"
	"github.com/MeKo-Tech/docscan/internal/testutil"
)

// writeBlank saves a featureless image, on which no document is found.
func writeBlank(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	testutil.SaveImage(t, testutil.CreateTestImage(w, h, color.Gray{Y: 200}), path)
	return path
}

func TestDetectCommand_JSON(t *testing.T) {
	dir := t.TempDir()
	cfg := testutil.DefaultDocumentConfig()
	doc := testutil.WriteDocument(t, dir, "sheet.png", cfg)
	overlays := filepath.Join(dir, "overlays")

	output, err := execute(t, "detect", doc, "--format", "json", "--overlay-dir", overlays)
	require.NoError(t, err)

	var results []detectResult
	require.NoError(t, json.Unmarshal([]byte(output), &results))
	require.Len(t, results, 1)
	r := results[0]
	assert.Empty(t, r.Error)
	assert.Equal(t, "auto", r.Origin)
	require.NotNil(t, r.Corners)
	for i, want := range cfg.Corners {
		got := geometry.Point{X: r.Corners[i].X, Y: r.Corners[i].Y}
		assert.LessOrEqual(t, geometry.Distance(want, got), 5.0, "corner %d", i)
	}
	assert.Positive(t, r.Width)
	assert.Positive(t, r.Height)
	assert.True(t, testutil.FileExists(filepath.Join(overlays, "sheet-overlay.png")))
}

func TestDetectCommand_TextAndErrors(t *testing.T) {
	dir := t.TempDir()
	img := writeBlank(t, dir, "flat.png", 200, 100)

	output, err := execute(t, "detect", img, filepath.Join(dir, "missing.png"))
	require.NoError(t, err, "one readable image is enough")
	assert.Contains(t, output, "flat.png: manual corners 10,10;190,10;190,90;10,90 -> 180x80")
	assert.Contains(t, output, "missing.png: error:")

	_, err = execute(t, "detect", filepath.Join(dir, "missing.png"))
	assert.Error(t, err)

	_, err = execute(t, "detect", img, "--format", "xml")
	assert.Error(t, err)

	_, err = execute(t, "detect", img, "--rotation", "45")
	assert.Error(t, err)
}

func TestWarpCommand(t *testing.T) {
	dir := t.TempDir()
	img := writeBlank(t, dir, "page.png", 200, 100)

	t.Run("explicit corners", func(t *testing.T) {
		dest := filepath.Join(dir, "out.png")
		overlay := filepath.Join(dir, "overlay.png")
		output, err := execute(t, "warp", img, "--corners", "30,20;130,20;130,70;30,70", "-o", dest, "--overlay", overlay)
		require.NoError(t, err)
		assert.Contains(t, output, "(100x50)")

		out := testutil.LoadImage(t, dest)
		assert.Equal(t, image.Pt(100, 50), out.Bounds().Size())
		assert.True(t, testutil.FileExists(overlay))
	})

	t.Run("explicit corners follow --rotation", func(t *testing.T) {
		dest := filepath.Join(dir, "turned.png")
		output, err := execute(t, "warp", img, "--corners", "30,20;130,20;130,70;30,70", "--rotation", "90", "-o", dest)
		require.NoError(t, err)
		assert.Contains(t, output, "(50x100)")
		assert.Contains(t, output, "manual corners 30,70;30,20;130,20;130,70")

		out := testutil.LoadImage(t, dest)
		assert.Equal(t, image.Pt(50, 100), out.Bounds().Size())
	})

	t.Run("corner order does not matter", func(t *testing.T) {
		dest := filepath.Join(dir, "shuffled.png")
		output, err := execute(t, "warp", img, "--corners", "130,70;30,20;30,70;130,20", "-o", dest)
		require.NoError(t, err)
		assert.Contains(t, output, "corners 30,20;130,20;130,70;30,70")
		assert.Contains(t, output, "(100x50)")
	})

	t.Run("default name and rotated jpeg", func(t *testing.T) {
		output, err := execute(t, "warp", img, "--format", "jpeg", "--rotate-result", "1")
		require.NoError(t, err)
		assert.Contains(t, output, "(80x180)")
		assert.True(t, testutil.FileExists(filepath.Join(dir, "page-corrected.jpg")))
	})

	t.Run("rejections", func(t *testing.T) {
		_, err := execute(t, "warp", img, "--corners", "1,2;3")
		assert.Error(t, err)
		_, err = execute(t, "warp", img, "--corners", "10,10;50,10;90,10;10,10")
		assert.Error(t, err)
		_, err = execute(t, "warp", img, "--rotate-result", "4")
		assert.Error(t, err)
		_, err = execute(t, "warp", img, "--format", "pdf")
		assert.Error(t, err)
	})
}

func TestScanCommand(t *testing.T) {
	if testing.Short() {
		t.Skip("builds a PDF with pdfcpu")
	}
	dir := t.TempDir()
	var buf bytes.Buffer
	require.NoError(t, export.WritePDF(&buf, []image.Image{testutil.Gradient(200, 100), testutil.Gradient(120, 160)}))
	src := filepath.Join(dir, "scan.pdf")
	require.NoError(t, os.WriteFile(src, buf.Bytes(), 0o644))

	output, err := execute(t, "scan", src, "--report")
	require.NoError(t, err)

	var report struct {
		Output string `json:"output"`
		Pages  []struct {
			Page   int    `json:"page"`
			Origin string `json:"origin"`
		} `json:"pages"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &report))
	assert.Equal(t, filepath.Join(dir, "scan-edited.pdf"), report.Output)
	require.Len(t, report.Pages, 2)
	assert.Equal(t, 2, report.Pages[1].Page)
	assert.True(t, testutil.FileExists(report.Output))

	_, err = execute(t, "scan", filepath.Join(dir, "page.png"))
	assert.Error(t, err)
}

func TestConfigCommands(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docscan.yaml")

	output, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, output, path)
	assert.True(t, testutil.FileExists(path))

	_, err = execute(t, "config", "init", path)
	assert.Error(t, err, "existing files are not overwritten")

	output, err = execute(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, output, "rotate_mode: redetect")

	output, err = execute(t, "config", "path")
	require.NoError(t, err)
	assert.Contains(t, output, "DOCSCAN")
}

func TestBatchCommand(t *testing.T) {
	dir := t.TempDir()
	writeBlank(t, dir, "a.png", 200, 100)
	writeBlank(t, dir, "b.png", 200, 100)
	outDir := filepath.Join(dir, "out")

	output, err := execute(t, "batch", dir, "--output-dir", outDir, "--report", "json", "--workers", "2")
	require.NoError(t, err)

	var report struct {
		Files []struct {
			Output string `json:"output"`
			Origin string `json:"origin"`
			Width  int    `json:"width"`
		} `json:"files"`
		Stats struct {
			Processed int `json:"processed"`
		} `json:"stats"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &report))
	require.Len(t, report.Files, 2)
	assert.Equal(t, filepath.Join(outDir, "a-corrected.png"), report.Files[0].Output)
	assert.Equal(t, "manual", report.Files[1].Origin)
	assert.Equal(t, 180, report.Files[1].Width)
	assert.Equal(t, 2, report.Stats.Processed)

	t.Run("text report with stats and patterns", func(t *testing.T) {
		output, err := execute(t, "batch", dir, "--include", "a.*", "--image-format", "jpeg", "--stats")
		require.NoError(t, err)
		assert.Contains(t, output, "a.png: manual corners 10,10;190,10;190,90;10,90")
		assert.NotContains(t, output, "b.png")
		assert.Contains(t, output, "Total images: 1")
		assert.True(t, testutil.FileExists(filepath.Join(dir, "a-corrected.jpg")))
	})

	t.Run("rejections", func(t *testing.T) {
		_, err := execute(t, "batch", dir, "--report", "xml")
		assert.Error(t, err)
		_, err = execute(t, "batch", dir, "--image-format", "pdf")
		assert.Error(t, err)
		_, err = execute(t, "batch", t.TempDir())
		assert.Error(t, err)

		bad := filepath.Join(t.TempDir(), "bad.png")
		require.NoError(t, os.WriteFile(bad, []byte("nope"), 0o600))
		output, err := execute(t, "batch", bad)
		assert.Error(t, err)
		assert.Contains(t, output, "bad.png: error:")
	})
}
