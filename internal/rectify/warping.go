package rectify

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/docscan/internal/geometry"
)

var (
	// ErrEmptyPlan is returned when the planned output has no pixels.
	ErrEmptyPlan = errors.New("warp plan is empty")
	// ErrSingularHomography is returned when the corners admit no projective map.
	ErrSingularHomography = errors.New("homography is singular")
)

// WarpError reports the stage at which a warp failed.
type WarpError struct {
	Stage string
	Err   error
}

func (e *WarpError) Error() string {
	return fmt.Sprintf("warp error in %s: %v", e.Stage, e.Err)
}

func (e *WarpError) Unwrap() error { return e.Err }

// Config holds warp executor settings.
type Config struct {
	Workers    int // parallel row bands (0 = runtime.NumCPU())
	BandHeight int // rows per band (default: 32)
}

// DefaultConfig returns sensible defaults for warping.
func DefaultConfig() Config {
	return Config{
		Workers:    runtime.NumCPU(),
		BandHeight: 32,
	}
}

// Warper executes warp plans.
type Warper struct {
	cfg Config
}

// NewWarper creates a warper, filling unset fields with defaults.
func NewWarper(cfg Config) *Warper {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.BandHeight <= 0 {
		cfg.BandHeight = 32
	}
	return &Warper{cfg: cfg}
}

// Warp maps plan.Source in src onto an upright plan.Width x plan.Height
// raster. Each output pixel is inverse-mapped through the homography and
// sampled bilinearly; samples outside src are opaque black. The output does
// not depend on the worker count.
func (w *Warper) Warp(ctx context.Context, src image.Image, plan Plan) (*image.RGBA, error) {
	start := time.Now()
	out, err := w.warp(ctx, src, plan)
	warpDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		warpsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	warpsTotal.WithLabelValues("success").Inc()
	slog.Debug("Warped document",
		"width", plan.Width,
		"height", plan.Height,
		"workers", w.cfg.Workers,
		"duration", time.Since(start))
	return out, nil
}

func (w *Warper) warp(ctx context.Context, src image.Image, plan Plan) (*image.RGBA, error) {
	if src == nil || src.Bounds().Empty() {
		return nil, &WarpError{Stage: "input", Err: errors.New("source image is empty")}
	}
	if plan.Width < 1 || plan.Height < 1 {
		return nil, &WarpError{Stage: "plan", Err: fmt.Errorf("%w: %dx%d", ErrEmptyPlan, plan.Width, plan.Height)}
	}

	// Homography from the destination rectangle back to the source quad.
	h, ok := computeHomography(plan.Destination(), geometry.Retag[geometry.Point](plan.Source))
	if !ok {
		return nil, &WarpError{Stage: "homography", Err: ErrSingularHomography}
	}

	sampler := newSampler(src)
	out := image.NewRGBA(image.Rect(0, 0, plan.Width, plan.Height))

	bands := make(chan int)
	var wg sync.WaitGroup
	for range min(w.cfg.Workers, (plan.Height+w.cfg.BandHeight-1)/w.cfg.BandHeight) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for y0 := range bands {
				if ctx.Err() != nil {
					continue
				}
				w.warpBand(out, sampler, h, y0, min(y0+w.cfg.BandHeight, plan.Height))
			}
		}()
	}

feed:
	for y0 := 0; y0 < plan.Height; y0 += w.cfg.BandHeight {
		select {
		case bands <- y0:
		case <-ctx.Done():
			break feed
		}
	}
	close(bands)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, &WarpError{Stage: "sample", Err: err}
	}
	return out, nil
}

func (w *Warper) warpBand(out *image.RGBA, s sampler, h [9]float64, y0, y1 int) {
	for y := y0; y < y1; y++ {
		row := out.Pix[y*out.Stride:]
		for x := range out.Rect.Dx() {
			sx, sy := applyHomography(h, float64(x), float64(y))
			r, g, b, a := s.bilinear(sx, sy)
			// Premultiply for image.RGBA.
			i := x * 4
			row[i+0] = uint8((r*a + 127) / 255) //nolint:gosec // G115: bounded by 255
			row[i+1] = uint8((g*a + 127) / 255) //nolint:gosec // G115: bounded by 255
			row[i+2] = uint8((b*a + 127) / 255) //nolint:gosec // G115: bounded by 255
			row[i+3] = uint8(a)                 //nolint:gosec // G115: bounded by 255
		}
	}
}

// sampler reads a zero-origin NRGBA copy of the source.
type sampler struct {
	img  *image.NRGBA
	w, h int
}

func newSampler(src image.Image) sampler {
	img, ok := src.(*image.NRGBA)
	if !ok || img.Rect.Min != (image.Point{}) {
		img = imaging.Clone(src)
	}
	return sampler{img: img, w: img.Rect.Dx(), h: img.Rect.Dy()}
}

// sampleEpsilon absorbs rounding in the homography at the raster edges.
const sampleEpsilon = 1e-6

// bilinear returns the interpolated non-premultiplied colour at (x, y).
// Coordinates outside the raster sample as opaque black.
func (s sampler) bilinear(x, y float64) (r, g, b, a int) {
	maxX, maxY := float64(s.w-1), float64(s.h-1)
	if x < -sampleEpsilon || y < -sampleEpsilon || x > maxX+sampleEpsilon || y > maxY+sampleEpsilon {
		return 0, 0, 0, 255
	}
	x = min(max(x, 0), maxX)
	y = min(max(y, 0), maxY)
	x0, y0 := int(x), int(y)
	x1, y1 := min(x0+1, s.w-1), min(y0+1, s.h-1)
	fx, fy := x-float64(x0), y-float64(y0)

	p00 := s.img.PixOffset(x0, y0)
	p10 := s.img.PixOffset(x1, y0)
	p01 := s.img.PixOffset(x0, y1)
	p11 := s.img.PixOffset(x1, y1)
	pix := s.img.Pix
	channel := func(c int) int {
		top := lerp(float64(pix[p00+c]), float64(pix[p10+c]), fx)
		bottom := lerp(float64(pix[p01+c]), float64(pix[p11+c]), fx)
		return int(lerp(top, bottom, fy) + 0.5)
	}
	return channel(0), channel(1), channel(2), channel(3)
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }
