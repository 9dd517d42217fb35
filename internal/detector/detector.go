// Package detector finds the outline of a sheet of paper in a photo.
package detector

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/docscan/internal/geometry"
	"github.com/MeKo-Tech/docscan/internal/vision"
)

// ErrPanic wraps a panic recovered from the vision toolkit.
var ErrPanic = errors.New("detector: toolkit panicked")

// Detector estimates the four corners of the dominant document in an image.
// It is safe for concurrent use when its toolkit is.
type Detector struct {
	config  Config
	toolkit vision.Toolkit
}

// NewDetector creates a detector. A nil toolkit selects the native one.
func NewDetector(config Config, tk vision.Toolkit) (*Detector, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detector config: %w", err)
	}
	if tk == nil {
		tk = vision.NewNative()
	}
	return &Detector{config: config, toolkit: tk}, nil
}

// GetConfig returns a copy of the detector's configuration.
func (d *Detector) GetConfig() Config {
	return d.config
}

// Detect returns the document corners ordered top-left, top-right,
// bottom-right, bottom-left in the pixel space of img. The second result is
// false when no four-sided outline was found or detection failed; failures
// are logged and never returned.
func (d *Detector) Detect(ctx context.Context, img image.Image) (geometry.Quad, bool) {
	start := time.Now()
	quad, ok, err := d.detect(ctx, img)
	detectionDuration.Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		detectionsTotal.WithLabelValues("failed").Inc()
		slog.Debug("Corner detection failed", "error", err)
		return geometry.Quad{}, false
	case !ok:
		detectionsTotal.WithLabelValues("none").Inc()
		slog.Debug("No document outline found", "duration", time.Since(start))
		return geometry.Quad{}, false
	default:
		detectionsTotal.WithLabelValues("found").Inc()
		slog.Debug("Document outline found", "corners", quad, "duration", time.Since(start))
		return quad, true
	}
}

func (d *Detector) detect(ctx context.Context, img image.Image) (quad geometry.Quad, found bool, err error) {
	// Registered first so it also catches a panic raised while the scope
	// releases its handles.
	defer func() {
		if r := recover(); r != nil {
			quad, found, err = geometry.Quad{}, false, fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()

	scope := vision.NewScope()
	defer scope.Close()

	if img == nil {
		return quad, false, vision.ErrEmptyImage
	}
	tk := d.toolkit

	src, err := tk.FromImage(img)
	if err != nil {
		return quad, false, fmt.Errorf("load: %w", err)
	}
	scope.Track(src)

	gray, err := tk.Grayscale(src)
	if err != nil {
		return quad, false, err
	}
	scope.Track(gray)
	scope.Release(src)

	if err := ctx.Err(); err != nil {
		return quad, false, err
	}
	blurred, err := tk.GaussianBlur(gray, d.config.BlurKernel)
	if err != nil {
		return quad, false, err
	}
	scope.Track(blurred)
	scope.Release(gray)

	if err := ctx.Err(); err != nil {
		return quad, false, err
	}
	edges, err := tk.Canny(blurred, d.config.CannyLow, d.config.CannyHigh)
	if err != nil {
		return quad, false, err
	}
	scope.Track(edges)
	scope.Release(blurred)

	if err := ctx.Err(); err != nil {
		return quad, false, err
	}
	contours, err := tk.FindExternalContours(edges)
	if err != nil {
		return quad, false, err
	}
	scope.Track(contours)
	scope.Release(edges)

	b := img.Bounds()
	minArea := d.config.MinAreaRatio * float64(b.Dx()*b.Dy())

	var best vision.Polygon
	maxArea := 0.0
	for i := range contours.Len() {
		if err := ctx.Err(); err != nil {
			return quad, false, err
		}
		c := contours.At(i)
		area := tk.ContourArea(c)
		if area <= minArea {
			continue
		}
		approx, err := tk.ApproxPolyDP(c, d.config.EpsilonRatio*tk.ArcLength(c))
		if err != nil {
			return quad, false, err
		}
		scope.Track(approx)

		if len(approx.Points()) == 4 && area > maxArea {
			maxArea = area
			if best != nil {
				scope.Release(best)
			}
			best = approx
			continue
		}
		scope.Release(approx)
	}

	if best == nil {
		return quad, false, nil
	}
	pts := best.Points()
	quad = geometry.OrderCorners(geometry.Quad{pts[0], pts[1], pts[2], pts[3]})
	return quad, true, nil
}
