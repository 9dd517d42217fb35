package session

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/docscan/internal/geometry"
	"github.com/MeKo-Tech/docscan/internal/testutil"
)

func threePages() []image.Image {
	return []image.Image{
		testutil.CreateTestImage(200, 100, color.White),
		testutil.CreateTestImage(100, 200, color.White),
		testutil.CreateTestImage(150, 150, color.White),
	}
}

func TestNewDocument_Errors(t *testing.T) {
	_, err := NewDocument("doc", nil, &fakeDetector{}, DefaultConfig())
	require.ErrorIs(t, err, ErrNoImage)

	_, err = NewDocument("doc", []image.Image{testutil.Gradient(10, 10), nil}, &fakeDetector{}, DefaultConfig())
	require.ErrorIs(t, err, ErrNoImage)
	assert.Contains(t, err.Error(), "page 2")
}

func TestDocument_OpenPage(t *testing.T) {
	doc, err := NewDocument("doc", threePages(), &fakeDetector{}, unboundedConfig())
	require.NoError(t, err)
	assert.Equal(t, 3, doc.PageCount())
	assert.Equal(t, "doc", doc.Name())

	s, err := doc.Open(context.Background(), 1)
	require.NoError(t, err)
	snap := s.Snapshot()
	assert.Equal(t, "doc page 2", snap.Name)
	assert.Equal(t, CornersReady, snap.State)
	assert.InDelta(t, 100, snap.Display.Width, 1e-9)

	_, err = doc.Open(context.Background(), 3)
	require.ErrorIs(t, err, ErrPageRange)
	_, err = doc.Open(context.Background(), -1)
	require.ErrorIs(t, err, ErrPageRange)
}

func TestDocument_SaveAndPages(t *testing.T) {
	pages := threePages()
	doc, err := NewDocument("doc", pages, &fakeDetector{quad: innerQuad, found: true}, unboundedConfig())
	require.NoError(t, err)

	s, err := doc.Open(context.Background(), 0)
	require.NoError(t, err)
	out, err := s.Warp(context.Background())
	require.NoError(t, err)
	require.NoError(t, doc.Save(0, out))

	edited := testutil.Gradient(30, 30)
	require.NoError(t, doc.Save(2, edited))
	require.ErrorIs(t, doc.Save(5, edited), ErrPageRange)
	require.ErrorIs(t, doc.Save(1, nil), ErrNoImage)

	got := doc.Pages()
	require.Len(t, got, 3)
	assert.Same(t, out, got[0])
	assert.Same(t, pages[1], got[1])
	assert.Same(t, edited, got[2])
	assert.Equal(t, []int{0, 2}, doc.Edited())
}

func TestDocument_AutoScan(t *testing.T) {
	doc, err := NewDocument("doc", threePages(), &fakeDetector{}, unboundedConfig())
	require.NoError(t, err)

	reports, err := doc.AutoScan(context.Background())
	require.NoError(t, err)

	require.Len(t, reports, 3)
	want := []image.Point{{X: 180, Y: 80}, {X: 80, Y: 180}, {X: 120, Y: 120}}
	for i, r := range reports {
		assert.Equal(t, i+1, r.Page)
		assert.Equal(t, OriginManual, r.Origin)
		assert.Empty(t, r.Error)
		assert.Equal(t, want[i], image.Pt(r.Width, r.Height))
	}
	require.NotNil(t, reports[0].Corners)
	assert.Equal(t, "10,10;190,10;190,90;10,90", geometry.FormatQuad(*reports[0].Corners))
	require.NotNil(t, reports[2].Corners)
	assert.Equal(t, "15,15;135,15;135,135;15,135", geometry.FormatQuad(*reports[2].Corners))
	assert.Equal(t, []int{0, 1, 2}, doc.Edited())
	assert.Equal(t, want[1], doc.Pages()[1].Bounds().Size())
}

func TestDocument_AutoScanKeepsDegeneratePages(t *testing.T) {
	flat := &fakeDetector{
		quad:  [4]geometry.Point{{X: 10, Y: 10}, {X: 50, Y: 10}, {X: 90, Y: 10}, {X: 10, Y: 10}},
		found: true,
	}
	pages := threePages()
	doc, err := NewDocument("doc", pages, flat, unboundedConfig())
	require.NoError(t, err)

	reports, err := doc.AutoScan(context.Background())
	require.NoError(t, err)

	for _, r := range reports {
		assert.Equal(t, OriginAuto, r.Origin)
		assert.NotEmpty(t, r.Error)
		require.NotNil(t, r.Corners)
		assert.Equal(t, "10,10;50,10;90,10;10,10", geometry.FormatQuad(*r.Corners))
	}
	assert.Empty(t, doc.Edited())
	assert.Equal(t, pages, doc.Pages())
}

func TestDocument_AutoScanStopsOnCancel(t *testing.T) {
	doc, err := NewDocument("doc", threePages(), &fakeDetector{}, unboundedConfig())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reports, err := doc.AutoScan(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, reports)
}
