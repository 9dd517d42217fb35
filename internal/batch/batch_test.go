package batch

import (
	"context"
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/docscan/internal/export"
	"github.com/MeKo-Tech/docscan/internal/geometry"
	"github.com/MeKo-Tech/docscan/internal/testutil"
)

// fixedDetector returns the same answer for every image.
type fixedDetector struct {
	quad  geometry.Quad
	found bool
}

func (d fixedDetector) Detect(context.Context, image.Image) (geometry.Quad, bool) {
	return d.quad, d.found
}

// recordingProgress counts callbacks.
type recordingProgress struct {
	total     int
	last      int
	errors    []string
	completed bool
}

func (p *recordingProgress) OnStart(total int)            { p.total = total }
func (p *recordingProgress) OnProgress(current, _ int)    { p.last = current }
func (p *recordingProgress) OnError(file string, _ error) { p.errors = append(p.errors, file) }
func (p *recordingProgress) OnComplete()                  { p.completed = true }

func writeBlank(t *testing.T, dir, name string) string {
	t.Helper()
	return testutil.WriteImage(t, dir, name, testutil.CreateTestImage(200, 100, color.Gray{Y: 200}))
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Workers = 2
	return cfg
}

func TestRun_ManualFallbackWritesNextToInputs(t *testing.T) {
	dir := t.TempDir()
	a := writeBlank(t, dir, "a.png")
	b := writeBlank(t, dir, "b.png")

	res, err := Run(context.Background(), fixedDetector{}, []string{dir}, testConfig())
	require.NoError(t, err)
	require.Len(t, res.Files, 2)
	assert.Equal(t, 2, res.Workers)

	for i, in := range []string{a, b} {
		f := res.Files[i]
		assert.Equal(t, in, f.File)
		assert.False(t, f.Failed())
		assert.Equal(t, "manual", f.Origin)
		assert.Equal(t, 180, f.Width)
		assert.Equal(t, 80, f.Height)
		assert.Equal(t, "10,10;190,10;190,90;10,90", geometry.FormatQuad(*f.Corners))
		require.True(t, testutil.FileExists(f.Output))
		out := testutil.LoadImage(t, f.Output)
		assert.Equal(t, image.Pt(180, 80), out.Bounds().Size())
	}
	assert.Equal(t, filepath.Join(dir, "a-corrected.png"), res.Files[0].Output)
}

func TestRun_DetectedCornersIntoOutputDir(t *testing.T) {
	dir := t.TempDir()
	writeBlank(t, dir, "page.png")
	cfg := testConfig()
	cfg.OutputDir = filepath.Join(dir, "out")
	cfg.OverlayDir = filepath.Join(dir, "overlays")
	cfg.Format = export.JPEG
	det := fixedDetector{quad: geometry.Quad{{X: 20, Y: 10}, {X: 180, Y: 10}, {X: 180, Y: 90}, {X: 20, Y: 90}}, found: true}

	res, err := Run(context.Background(), det, []string{dir}, cfg)
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	f := res.Files[0]
	assert.Equal(t, "auto", f.Origin)
	assert.Equal(t, filepath.Join(dir, "out", "page-corrected.jpg"), f.Output)
	assert.Equal(t, 160, f.Width)
	assert.Equal(t, 80, f.Height)
	assert.True(t, testutil.FileExists(filepath.Join(dir, "overlays", "page-overlay.png")))
}

func TestRun_FailuresAreRecordedPerFile(t *testing.T) {
	dir := t.TempDir()
	good := writeBlank(t, dir, "good.png")
	bad := testutil.WriteFile(t, dir, "bad.png", []byte("not an image"))
	progress := &recordingProgress{}
	cfg := testConfig()
	cfg.Progress = progress

	res, err := Run(context.Background(), fixedDetector{}, []string{good, bad}, cfg)
	require.NoError(t, err)
	require.Len(t, res.Files, 2)
	assert.False(t, res.Files[0].Failed())
	assert.True(t, res.Files[1].Failed())
	assert.Empty(t, res.Files[1].Output)

	assert.Equal(t, 2, progress.total)
	assert.Equal(t, 2, progress.last)
	assert.Equal(t, []string{bad}, progress.errors)
	assert.True(t, progress.completed)

	stats := res.Stats()
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Manual)
}

func TestRun_SameNameFromDifferentDirectories(t *testing.T) {
	dir := t.TempDir()
	writeBlank(t, dir, filepath.Join("one", "page.png"))
	writeBlank(t, dir, filepath.Join("two", "page.png"))
	cfg := testConfig()
	cfg.Recursive = true
	cfg.OutputDir = filepath.Join(dir, "out")

	res, err := Run(context.Background(), fixedDetector{}, []string{dir}, cfg)
	require.NoError(t, err)
	require.Len(t, res.Files, 2)
	assert.Equal(t, filepath.Join(dir, "out", "page-corrected.png"), res.Files[0].Output)
	assert.Equal(t, filepath.Join(dir, "out", "page-2-corrected.png"), res.Files[1].Output)
}

func TestRun_Errors(t *testing.T) {
	dir := t.TempDir()
	img := writeBlank(t, dir, "a.png")

	_, err := Run(context.Background(), nil, []string{img}, testConfig())
	assert.ErrorContains(t, err, "detector is required")

	cfg := testConfig()
	cfg.Format = export.PDF
	_, err = Run(context.Background(), fixedDetector{}, []string{img}, cfg)
	assert.ErrorContains(t, err, "batch writes images")

	_, err = Run(context.Background(), fixedDetector{}, []string{t.TempDir()}, testConfig())
	assert.ErrorIs(t, err, ErrNoImages)

	_, err = Run(context.Background(), fixedDetector{}, []string{filepath.Join(dir, "missing.png")}, testConfig())
	assert.ErrorContains(t, err, "cannot access")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Run(ctx, fixedDetector{}, []string{img}, testConfig())
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestConfigWorkers(t *testing.T) {
	cfg := Config{Workers: 8}
	assert.Equal(t, 3, cfg.workers(3))
	cfg.Workers = 2
	assert.Equal(t, 2, cfg.workers(10))
	cfg.Workers = 0
	assert.GreaterOrEqual(t, cfg.workers(10), 1)
}
