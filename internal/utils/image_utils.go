package utils

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/MeKo-Tech/docscan/internal/geometry"
)

// fillRect paints r, clipped to dst, with a solid colour.
func fillRect(dst *image.RGBA, r image.Rectangle, col color.Color) {
	r = r.Intersect(dst.Bounds())
	if r.Empty() {
		return
	}
	draw.Draw(dst, r, &image.Uniform{C: col}, image.Point{}, draw.Src)
}

// DrawRect outlines rect inside dst. The stroke grows inwards from the
// rectangle edges after clipping.
func DrawRect(dst *image.RGBA, rect image.Rectangle, col color.Color, thickness int) {
	thickness = max(thickness, 1)
	r := rect.Intersect(dst.Bounds())
	if r.Empty() {
		return
	}
	fillRect(dst, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+thickness), col)
	fillRect(dst, image.Rect(r.Min.X, r.Max.Y-thickness, r.Max.X, r.Max.Y), col)
	fillRect(dst, image.Rect(r.Min.X, r.Min.Y, r.Min.X+thickness, r.Max.Y), col)
	fillRect(dst, image.Rect(r.Max.X-thickness, r.Min.Y, r.Max.X, r.Max.Y), col)
}

// DrawPolygon strokes the closed outline through pts. Fewer than two
// points draw nothing.
func DrawPolygon(dst *image.RGBA, pts []geometry.Point, col color.Color, thickness int) {
	if len(pts) < 2 {
		return
	}
	for i, a := range pts {
		drawSegment(dst, a, pts[(i+1)%len(pts)], col, thickness)
	}
}

// DrawMarker fills a size×size square centred on p.
func DrawMarker(dst *image.RGBA, p geometry.Point, col color.Color, size int) {
	stamp(dst, int(math.Round(p.X)), int(math.Round(p.Y)), col, size)
}

// drawSegment walks from a to b one pixel at a time along the major axis.
func drawSegment(dst *image.RGBA, a, b geometry.Point, col color.Color, thickness int) {
	dx, dy := b.X-a.X, b.Y-a.Y
	steps := int(math.Ceil(max(math.Abs(dx), math.Abs(dy))))
	if steps == 0 {
		stamp(dst, int(math.Round(a.X)), int(math.Round(a.Y)), col, thickness)
		return
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		stamp(dst, int(math.Round(a.X+dx*t)), int(math.Round(a.Y+dy*t)), col, thickness)
	}
}

func stamp(dst *image.RGBA, x, y int, col color.Color, size int) {
	size = max(size, 1)
	r := (size - 1) / 2
	fillRect(dst, image.Rect(x-r, y-r, x-r+size, y-r+size), col)
}
