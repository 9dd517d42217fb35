// Package vision provides the image primitives used by corner detection:
// grayscale conversion, Gaussian blur, Canny edges, external contours and
// polygon approximation.
//
// Every raster, contour list and polygon is a handle that must be released
// exactly once. Use a Scope to guarantee this on every return path.
package vision

import (
	"errors"
	"image"

	"github.com/MeKo-Tech/docscan/internal/geometry"
)

var (
	// ErrReleased is returned when a released handle is passed to a primitive.
	ErrReleased = errors.New("vision: handle already released")
	// ErrDoubleRelease is the panic value raised by a second Release.
	ErrDoubleRelease = errors.New("vision: handle released twice")
	// ErrForeignHandle is returned when a handle from another toolkit is used.
	ErrForeignHandle = errors.New("vision: handle does not belong to this toolkit")
	// ErrInvalidKernel is returned for even or non-positive blur kernels.
	ErrInvalidKernel = errors.New("vision: kernel size must be odd and positive")
	// ErrEmptyImage is returned for zero-sized rasters.
	ErrEmptyImage = errors.New("vision: empty image")
)

// Releaser frees a toolkit allocation.
type Releaser interface {
	Release()
}

// Mat is a raster buffer.
type Mat interface {
	Releaser
	Size() (w, h int)
}

// Contour is a closed outline in pixel coordinates.
type Contour []geometry.Point

// Contours is a list of outlines produced by contour extraction.
type Contours interface {
	Releaser
	Len() int
	At(i int) Contour
}

// Polygon is the result of polygon approximation.
type Polygon interface {
	Releaser
	Points() []geometry.Point
}

// Toolkit is the set of primitives the corner detector consumes.
type Toolkit interface {
	FromImage(img image.Image) (Mat, error)
	Grayscale(src Mat) (Mat, error)
	GaussianBlur(src Mat, ksize int) (Mat, error)
	Canny(src Mat, low, high float64) (Mat, error)
	FindExternalContours(edges Mat) (Contours, error)
	ApproxPolyDP(c Contour, epsilon float64) (Polygon, error)
	ContourArea(c Contour) float64
	ArcLength(c Contour) float64
}
