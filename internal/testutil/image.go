package testutil

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/MeKo-Tech/docscan/internal/geometry"
)

// ImageSize represents common image dimensions.
type ImageSize struct {
	Width  int
	Height int
}

var (
	// Common test image sizes.
	SmallSize  = ImageSize{320, 240}
	MediumSize = ImageSize{640, 480}
	LargeSize  = ImageSize{1024, 768}
)

// DocumentConfig describes a synthetic photo of a sheet of paper.
type DocumentConfig struct {
	Size       ImageSize
	Corners    geometry.Quad // sheet outline in pixel coordinates, any winding
	Background color.Color
	Paper      color.Color
	Ink        color.Color
	TextLines  int // lines of filler text printed inside the sheet
}

// DefaultDocumentConfig returns a dark desk with a slightly skewed white sheet.
func DefaultDocumentConfig() DocumentConfig {
	return DocumentConfig{
		Size: SmallSize,
		Corners: geometry.Quad{
			{X: 60, Y: 40}, {X: 250, Y: 50}, {X: 240, Y: 200}, {X: 70, Y: 190},
		},
		Background: color.RGBA{30, 30, 30, 255},
		Paper:      color.White,
		Ink:        color.RGBA{40, 40, 40, 255},
		TextLines:  0,
	}
}

// GenerateDocumentImage renders the sheet described by config.
func GenerateDocumentImage(config DocumentConfig) (*image.RGBA, error) {
	if config.Size.Width <= 0 || config.Size.Height <= 0 {
		return nil, fmt.Errorf("invalid image size %dx%d", config.Size.Width, config.Size.Height)
	}
	img := image.NewRGBA(image.Rect(0, 0, config.Size.Width, config.Size.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{config.Background}, image.Point{}, draw.Src)

	FillPolygon(img, config.Corners[:], config.Paper)

	if config.TextLines > 0 {
		drawFillerText(img, config)
	}
	return img, nil
}

// FillPolygon paints every pixel whose centre lies inside poly.
func FillPolygon(img draw.Image, poly []geometry.Point, c color.Color) {
	if len(poly) < 3 {
		return
	}
	box := geometry.BoundingBox(poly)
	b := img.Bounds()
	minY := max(b.Min.Y, int(math.Floor(box.MinY)))
	maxY := min(b.Max.Y-1, int(math.Ceil(box.MaxY)))
	minX := max(b.Min.X, int(math.Floor(box.MinX)))
	maxX := min(b.Max.X-1, int(math.Ceil(box.MaxX)))
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			if insidePolygon(poly, float64(x)+0.5, float64(y)+0.5) {
				img.Set(x, y, c)
			}
		}
	}
}

// insidePolygon is the even-odd ray casting test.
func insidePolygon(poly []geometry.Point, px, py float64) bool {
	inside := false
	j := len(poly) - 1
	for i := range poly {
		a, b := poly[i], poly[j]
		if (a.Y > py) != (b.Y > py) && px < (b.X-a.X)*(py-a.Y)/(b.Y-a.Y)+a.X {
			inside = !inside
		}
		j = i
	}
	return inside
}

// drawFillerText prints short lines inside the sheet's bounding box, inset
// far enough that the glyphs never touch the sheet outline.
func drawFillerText(img *image.RGBA, config DocumentConfig) {
	box := geometry.BoundingBox(config.Corners[:])
	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: img, Src: &image.Uniform{config.Ink}, Face: face}

	inset := box.Width() * 0.2
	lineHeight := face.Metrics().Height.Ceil() + 4
	y := int(box.MinY+box.Height()*0.2) + face.Metrics().Ascent.Ceil()
	for i := range config.TextLines {
		if float64(y) > box.MaxY-box.Height()*0.2 {
			break
		}
		drawer.Dot = fixed.Point26_6{X: fixed.I(int(box.MinX + inset)), Y: fixed.I(y)}
		drawer.DrawString(fmt.Sprintf("line %d lorem", i+1))
		y += lineHeight
	}
}

// SaveImage saves an image to the specified path.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	dir := filepath.Dir(path)
	require.NoError(t, EnsureDir(dir), "Failed to create directory %s", dir)

	file, err := os.Create(path) //nolint:gosec // G304: Test file creation with controlled path
	require.NoError(t, err, "Failed to create file %s", path)
	defer func() {
		require.NoError(t, file.Close())
	}()

	err = png.Encode(file, img)
	require.NoError(t, err, "Failed to encode PNG image")
}

// EncodePNG returns img as PNG bytes.
func EncodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// LoadImage loads an image from the specified path.
func LoadImage(t *testing.T, path string) image.Image {
	t.Helper()

	file, err := os.Open(path) //nolint:gosec // G304: Test file reading with controlled path
	require.NoError(t, err, "Failed to open image file %s", path)
	defer func() { _ = file.Close() }()

	img, _, err := image.Decode(file)
	require.NoError(t, err, "Failed to decode image")

	return img
}

// CompareImages compares two images and returns true if they are similar.
func CompareImages(img1, img2 image.Image, tolerance float64) bool {
	bounds1 := img1.Bounds()
	bounds2 := img2.Bounds()

	if bounds1.Dx() != bounds2.Dx() || bounds1.Dy() != bounds2.Dy() {
		return false
	}

	var totalDiff float64
	var pixelCount float64

	for y := range bounds1.Dy() {
		for x := range bounds1.Dx() {
			r1, g1, b1, a1 := img1.At(bounds1.Min.X+x, bounds1.Min.Y+y).RGBA()
			r2, g2, b2, a2 := img2.At(bounds2.Min.X+x, bounds2.Min.Y+y).RGBA()

			dr := float64(r1) - float64(r2)
			dg := float64(g1) - float64(g2)
			db := float64(b1) - float64(b2)
			da := float64(a1) - float64(a2)

			totalDiff += math.Sqrt(dr*dr + dg*dg + db*db + da*da)
			pixelCount++
		}
	}
	if pixelCount == 0 {
		return true
	}

	avgDiff := totalDiff / pixelCount
	maxDiff := math.Sqrt(4 * 65535 * 65535) // Maximum possible difference

	return (avgDiff / maxDiff) <= tolerance
}

// CreateTestImage creates a simple test image with the specified dimensions and color.
func CreateTestImage(width, height int, backgroundColor color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{backgroundColor}, image.Point{}, draw.Src)
	return img
}

// Gradient returns an image whose red channel encodes x and green channel
// encodes y, handy for checking where warped pixels came from.
func Gradient(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(x * 255 / max(width-1, 1)),  //nolint:gosec // G115: bounded by 255
				G: uint8(y * 255 / max(height-1, 1)), //nolint:gosec // G115: bounded by 255
				B: 128,
				A: 255,
			})
		}
	}
	return img
}
