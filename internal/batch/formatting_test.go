package batch

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/docscan/internal/geometry"
)

func sampleResult() *Result {
	q := geometry.OriginalQuad{{X: 1, Y: 2}, {X: 30, Y: 2}, {X: 30, Y: 40}, {X: 1, Y: 40}}
	return &Result{
		Files: []FileResult{
			{File: "a.png", Output: "a-corrected.png", Origin: "auto", Corners: &q, Width: 29, Height: 38, Duration: 20 * time.Millisecond},
			{File: "b.png", Output: "b-corrected.png", Origin: "manual", Corners: &q, Width: 29, Height: 38, Duration: 40 * time.Millisecond},
			{File: "c.png", Error: "decode failed"},
		},
		Duration: 2 * time.Second,
		Workers:  2,
	}
}

func TestStats(t *testing.T) {
	s := sampleResult().Stats()
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 2, s.Processed)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.Auto)
	assert.Equal(t, 1, s.Manual)
	assert.Equal(t, 30*time.Millisecond, s.AveragePerImage)
	assert.InDelta(t, 1.0, s.ThroughputPerSec, 1e-9)
}

func TestStats_Empty(t *testing.T) {
	s := (&Result{}).Stats()
	assert.Zero(t, s.Processed)
	assert.Zero(t, s.AveragePerImage)
	assert.Zero(t, s.ThroughputPerSec)
}

func TestWriteReport_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleResult().WriteReport(&buf, FormatText))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "a.png: auto corners 1,2;30,2;30,40;1,40 -> a-corrected.png (29x38)", lines[0])
	assert.Equal(t, "c.png: error: decode failed", lines[2])
}

func TestWriteReport_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleResult().WriteReport(&buf, FormatJSON))

	var got struct {
		Files []struct {
			File   string `json:"file"`
			Origin string `json:"origin"`
			Error  string `json:"error"`
		} `json:"files"`
		Stats Stats `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got.Files, 3)
	assert.Equal(t, "manual", got.Files[1].Origin)
	assert.Equal(t, "decode failed", got.Files[2].Error)
	assert.Equal(t, 2, got.Stats.Processed)
}

func TestWriteReport_CSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleResult().WriteReport(&buf, FormatCSV))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"file", "output", "origin", "corners", "width", "height", "error"}, rows[0])
	assert.Equal(t, []string{"a.png", "a-corrected.png", "auto", "1,2;30,2;30,40;1,40", "29", "38", ""}, rows[1])
	assert.Equal(t, "decode failed", rows[3][6])
	assert.Empty(t, rows[3][3])
}

func TestWriteReport_InvalidFormat(t *testing.T) {
	err := sampleResult().WriteReport(&bytes.Buffer{}, "xml")
	assert.ErrorContains(t, err, "invalid report format")
}

func TestWriteStats(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleResult().WriteStats(&buf))
	out := buf.String()
	assert.Contains(t, out, "Total images: 3")
	assert.Contains(t, out, "Processed: 2 (auto 1, manual 1)")
	assert.Contains(t, out, "Throughput: 1.0 images/sec")
}
