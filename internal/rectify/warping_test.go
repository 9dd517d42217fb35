package rectify

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

func rectQuad(x0, y0, x1, y1 float64) geometry.OriginalQuad {
	return geometry.OriginalQuad{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}}
}

func assertSameColor(t *testing.T, want, got color.Color, tol uint32) {
	t.Helper()
	wr, wg, wb, wa := want.RGBA()
	gr, gg, gb, ga := got.RGBA()
	diff := func(a, b uint32) uint32 {
		a, b = a>>8, b>>8
		if a > b {
			return a - b
		}
		return b - a
	}
	assert.LessOrEqual(t, diff(wr, gr), tol, "red")
	assert.LessOrEqual(t, diff(wg, gg), tol, "green")
	assert.LessOrEqual(t, diff(wb, gb), tol, "blue")
	assert.LessOrEqual(t, diff(wa, ga), tol, "alpha")
}

func TestPlanWarp(t *testing.T) {
	t.Run("rectangle", func(t *testing.T) {
		p := PlanWarp(rectQuad(0, 0, 100, 50))
		assert.Equal(t, 100, p.Width)
		assert.Equal(t, 50, p.Height)
	})
	t.Run("trapezoid uses longer edge", func(t *testing.T) {
		p := PlanWarp(geometry.OriginalQuad{{X: 10, Y: 0}, {X: 90, Y: 0}, {X: 100, Y: 50}, {X: 0, Y: 50}})
		assert.Equal(t, 100, p.Width)
		assert.Equal(t, 51, p.Height)
	})
	t.Run("degenerate is not rejected", func(t *testing.T) {
		p := PlanWarp(geometry.OriginalQuad{})
		assert.Equal(t, 0, p.Width)
		assert.Equal(t, 0, p.Height)
	})
}

func TestPlanDestination(t *testing.T) {
	p := Plan{Width: 100, Height: 50}
	assert.Equal(t, geometry.Quad{{X: 0, Y: 0}, {X: 99, Y: 0}, {X: 99, Y: 49}, {X: 0, Y: 49}}, p.Destination())
}

func TestWarp_Errors(t *testing.T) {
	w := NewWarper(DefaultConfig())
	src := testutil.Gradient(32, 32)

	tests := []struct {
		name  string
		src   image.Image
		plan  Plan
		stage string
		is    error
	}{
		{"empty plan", src, Plan{Source: rectQuad(0, 0, 10, 10)}, "plan", ErrEmptyPlan},
		{"singular", src, Plan{Source: geometry.OriginalQuad{{X: 5, Y: 5}, {X: 5, Y: 5}, {X: 5, Y: 5}, {X: 5, Y: 5}}, Width: 10, Height: 10}, "homography", ErrSingularHomography},
		{"nil source", nil, PlanWarp(rectQuad(0, 0, 10, 10)), "input", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := w.Warp(context.Background(), tt.src, tt.plan)
			require.Error(t, err)
			assert.Nil(t, out)

			var we *WarpError
			require.ErrorAs(t, err, &we)
			assert.Equal(t, tt.stage, we.Stage)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestWarp_IdentityReproducesSource(t *testing.T) {
	src := testutil.Gradient(64, 48)
	plan := Plan{Source: rectQuad(0, 0, 63, 47), Width: 64, Height: 48}

	out, err := NewWarper(DefaultConfig()).Warp(context.Background(), src, plan)
	require.NoError(t, err)
	require.Equal(t, src.Bounds(), out.Bounds())
	for y := range 48 {
		for x := range 64 {
			assertSameColor(t, src.At(x, y), out.At(x, y), 1)
		}
	}
}

func TestWarp_CropsAxisAlignedRegion(t *testing.T) {
	src := testutil.Gradient(256, 256)
	plan := Plan{Source: rectQuad(50, 60, 149, 159), Width: 100, Height: 100}

	out, err := NewWarper(DefaultConfig()).Warp(context.Background(), src, plan)
	require.NoError(t, err)
	assertSameColor(t, src.At(50, 60), out.At(0, 0), 1)
	assertSameColor(t, src.At(149, 60), out.At(99, 0), 1)
	assertSameColor(t, src.At(149, 159), out.At(99, 99), 1)
	assertSameColor(t, src.At(100, 110), out.At(50, 50), 1)
}

func TestWarp_OutsideSourceIsBlack(t *testing.T) {
	src := testutil.Gradient(100, 100)
	plan := Plan{Source: rectQuad(-50, -50, 49, 49), Width: 100, Height: 100}

	out, err := NewWarper(DefaultConfig()).Warp(context.Background(), src, plan)
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, out.RGBAAt(0, 0))
	assertSameColor(t, src.At(49, 49), out.At(99, 99), 1)
}

func TestWarp_DeterministicAcrossWorkerCounts(t *testing.T) {
	img, err := testutil.GenerateDocumentImage(testutil.DefaultDocumentConfig())
	require.NoError(t, err)
	plan := PlanWarp(geometry.OriginalQuad{{X: 60, Y: 40}, {X: 250, Y: 50}, {X: 240, Y: 200}, {X: 70, Y: 190}})

	single, err := NewWarper(Config{Workers: 1, BandHeight: 1000}).Warp(context.Background(), img, plan)
	require.NoError(t, err)
	parallel, err := NewWarper(Config{Workers: 8, BandHeight: 7}).Warp(context.Background(), img, plan)
	require.NoError(t, err)

	assert.Equal(t, single.Pix, parallel.Pix)
	// The sheet fills the output, so its centre is paper white.
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, single.RGBAAt(plan.Width/2, plan.Height/2))
}

func TestWarp_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewWarper(Config{Workers: 2, BandHeight: 4}).Warp(ctx, testutil.Gradient(64, 64), PlanWarp(rectQuad(0, 0, 63, 63)))
	require.ErrorIs(t, err, context.Canceled)

	var we *WarpError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, "sample", we.Stage)
}

func TestNewWarper_Defaults(t *testing.T) {
	w := NewWarper(Config{})
	assert.Positive(t, w.cfg.Workers)
	assert.Equal(t, 32, w.cfg.BandHeight)
}
