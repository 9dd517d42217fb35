package rectify

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/MeKo-Tech/docscan/internal/geometry"
	"github.com/MeKo-Tech/docscan/internal/utils"
)

// DefaultOverlayColor is the outline colour used when none is configured.
const DefaultOverlayColor = "#ff3b30"

// ParseOverlayColor parses a #rrggbb colour.
func ParseOverlayColor(hex string) (color.Color, error) {
	if hex == "" {
		hex = DefaultOverlayColor
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return nil, fmt.Errorf("invalid overlay color %q: %w", hex, err)
	}
	r, g, b := c.Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}

// DrawOverlay returns a copy of src with quad outlined and its corners
// marked.
func DrawOverlay(src image.Image, quad geometry.OriginalQuad, col color.Color) *image.RGBA {
	b := src.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(canvas, canvas.Bounds(), src, b.Min, draw.Src)

	thickness := max(2, min(b.Dx(), b.Dy())/300)
	pts := geometry.Points(quad)
	utils.DrawPolygon(canvas, pts, col, thickness)
	for _, p := range pts {
		utils.DrawMarker(canvas, p, col, 3*thickness)
	}
	return canvas
}

// DrawComparison places src with the quad outlined next to the warped
// result.
func DrawComparison(src image.Image, quad geometry.OriginalQuad, dst image.Image, col color.Color) *image.RGBA {
	left := DrawOverlay(src, quad, col)
	db := dst.Bounds()
	gap := 10
	outW := left.Rect.Dx() + gap + db.Dx()
	outH := max(left.Rect.Dy(), db.Dy())

	canvas := image.NewRGBA(image.Rect(0, 0, outW, outH))
	draw.Draw(canvas, left.Rect, left, image.Point{}, draw.Src)
	xoff := left.Rect.Dx() + gap
	right := image.Rect(xoff, 0, xoff+db.Dx(), db.Dy())
	draw.Draw(canvas, right, dst, db.Min, draw.Src)
	utils.DrawRect(canvas, right, color.RGBA{0, 255, 0, 255}, 2)
	return canvas
}

// WriteOverlayPNG writes DrawOverlay's output to path.
func WriteOverlayPNG(path string, src image.Image, quad geometry.OriginalQuad, col color.Color) error {
	return writePNG(path, DrawOverlay(src, quad, col))
}

func writePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	f, err := os.Create(path) //nolint:gosec // G304: overlay path is chosen by the user
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
