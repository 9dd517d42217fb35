package vision

import (
	"fmt"
	"image"
	"image/draw"
	"sync/atomic"

	"github.com/anthonynsimon/bild/channel"
	"github.com/anthonynsimon/bild/convolution"
	"github.com/anthonynsimon/bild/effect"

	"github.com/MeKo-Tech/docscan/internal/geometry"
)

// Native is a pure Go Toolkit.
type Native struct{}

// NewNative returns the pure Go toolkit.
func NewNative() *Native {
	return &Native{}
}

// handle tracks the released state shared by all native handles.
type handle struct {
	released atomic.Bool
}

func (h *handle) release() {
	if !h.released.CompareAndSwap(false, true) {
		panic(ErrDoubleRelease)
	}
}

func (h *handle) alive() bool { return !h.released.Load() }

type nativeMat struct {
	handle
	img image.Image
}

func (m *nativeMat) Release() {
	m.release()
	m.img = nil
}

func (m *nativeMat) Size() (int, int) {
	if !m.alive() {
		return 0, 0
	}
	b := m.img.Bounds()
	return b.Dx(), b.Dy()
}

type nativeContours struct {
	handle
	list []Contour
}

func (c *nativeContours) Release() {
	c.release()
	c.list = nil
}

func (c *nativeContours) Len() int { return len(c.list) }

func (c *nativeContours) At(i int) Contour { return c.list[i] }

type nativePolygon struct {
	handle
	pts []geometry.Point
}

func (p *nativePolygon) Release() {
	p.release()
	p.pts = nil
}

func (p *nativePolygon) Points() []geometry.Point { return p.pts }

// MatImage returns the pixels of a native Mat.
func MatImage(m Mat) (image.Image, error) {
	nm, err := asNative(m)
	if err != nil {
		return nil, err
	}
	return nm.img, nil
}

func asNative(m Mat) (*nativeMat, error) {
	nm, ok := m.(*nativeMat)
	if !ok {
		return nil, ErrForeignHandle
	}
	if !nm.alive() {
		return nil, ErrReleased
	}
	return nm, nil
}

func asGray(m Mat) (*image.Gray, error) {
	nm, err := asNative(m)
	if err != nil {
		return nil, err
	}
	if g, ok := nm.img.(*image.Gray); ok {
		return g, nil
	}
	return luminance(nm.img), nil
}

// luminance converts img to 8-bit gray with Rec. 601 weights.
func luminance(img image.Image) *image.Gray {
	return channel.Extract(effect.GrayscaleWithWeights(img, 0.299, 0.587, 0.114), channel.Red)
}

// FromImage wraps img in a Mat. The pixels are not copied.
func (n *Native) FromImage(img image.Image) (Mat, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	return &nativeMat{img: img}, nil
}

// Grayscale converts src to an 8-bit luminance raster.
func (n *Native) Grayscale(src Mat) (Mat, error) {
	nm, err := asNative(src)
	if err != nil {
		return nil, fmt.Errorf("grayscale: %w", err)
	}
	return &nativeMat{img: normalizeOrigin(luminance(nm.img))}, nil
}

// GaussianBlur smooths src with a ksize x ksize binomial kernel, which for
// ksize 5 is the [1 4 6 4 1] kernel OpenCV derives when sigma is zero.
func (n *Native) GaussianBlur(src Mat, ksize int) (Mat, error) {
	if ksize <= 0 || ksize%2 == 0 {
		return nil, fmt.Errorf("gaussian blur: %w (got %d)", ErrInvalidKernel, ksize)
	}
	gray, err := asGray(src)
	if err != nil {
		return nil, fmt.Errorf("gaussian blur: %w", err)
	}
	if ksize == 1 {
		return &nativeMat{img: cloneGray(gray)}, nil
	}

	row := binomialRow(ksize)
	sum := 0.0
	for _, v := range row {
		sum += v
	}
	k := convolution.NewKernel(ksize, ksize)
	for y := range ksize {
		for x := range ksize {
			k.Matrix[y*ksize+x] = row[x] * row[y] / (sum * sum)
		}
	}
	blurred := convolution.Convolve(gray, k, &convolution.Options{Bias: 0, Wrap: false, KeepAlpha: false})
	return &nativeMat{img: normalizeOrigin(channel.Extract(blurred, channel.Red))}, nil
}

// Canny runs Canny edge detection with hysteresis thresholds low and high.
// Edge pixels are 255, everything else 0.
func (n *Native) Canny(src Mat, low, high float64) (Mat, error) {
	gray, err := asGray(src)
	if err != nil {
		return nil, fmt.Errorf("canny: %w", err)
	}
	if low > high {
		low, high = high, low
	}
	return &nativeMat{img: canny(normalizeOrigin(gray), low, high)}, nil
}

// FindExternalContours returns the outer outline of every edge component
// that is not enclosed by another component.
func (n *Native) FindExternalContours(edges Mat) (Contours, error) {
	gray, err := asGray(edges)
	if err != nil {
		return nil, fmt.Errorf("find contours: %w", err)
	}
	return &nativeContours{list: externalContours(normalizeOrigin(gray))}, nil
}

// ApproxPolyDP approximates a closed contour with tolerance epsilon.
func (n *Native) ApproxPolyDP(c Contour, epsilon float64) (Polygon, error) {
	return &nativePolygon{pts: geometry.SimplifyClosed(c, epsilon)}, nil
}

// ContourArea returns the area enclosed by c.
func (n *Native) ContourArea(c Contour) float64 {
	return geometry.PolygonArea(c)
}

// ArcLength returns the closed perimeter of c.
func (n *Native) ArcLength(c Contour) float64 {
	return geometry.Perimeter(c)
}

// binomialRow returns row ksize-1 of Pascal's triangle.
func binomialRow(ksize int) []float64 {
	row := make([]float64, ksize)
	row[0] = 1
	for i := 1; i < ksize; i++ {
		for j := i; j > 0; j-- {
			row[j] += row[j-1]
		}
	}
	return row
}

// normalizeOrigin returns g with bounds starting at (0,0).
func normalizeOrigin(g *image.Gray) *image.Gray {
	if g.Bounds().Min == (image.Point{}) {
		return g
	}
	return cloneGray(g)
}

func cloneGray(g *image.Gray) *image.Gray {
	b := g.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), g, b.Min, draw.Src)
	return out
}

var _ Toolkit = (*Native)(nil)
