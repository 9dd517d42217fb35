package utils

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MeKo-Tech/docscan/internal/geometry"
)

var red = color.RGBA{R: 255, A: 255}

func TestDrawRect(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 20, 20))
	DrawRect(dst, image.Rect(2, 2, 10, 10), red, 1)

	assert.Equal(t, red, dst.RGBAAt(2, 2))
	assert.Equal(t, red, dst.RGBAAt(9, 5))
	assert.Equal(t, red, dst.RGBAAt(5, 9))
	assert.Equal(t, color.RGBA{}, dst.RGBAAt(5, 5))
	assert.Equal(t, color.RGBA{}, dst.RGBAAt(10, 10))
}

func TestDrawRect_ClipsToBounds(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 10, 10))
	assert.NotPanics(t, func() { DrawRect(dst, image.Rect(-5, -5, 30, 30), red, 3) })
	assert.Equal(t, red, dst.RGBAAt(0, 0))
	assert.Equal(t, red, dst.RGBAAt(9, 9))

	DrawRect(dst, image.Rect(50, 50, 60, 60), red, 1)
}

func TestDrawPolygon(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 20, 20))
	pts := []geometry.Point{{X: 2, Y: 2}, {X: 15, Y: 2}, {X: 15, Y: 15}, {X: 2, Y: 15}}
	DrawPolygon(dst, pts, red, 1)

	for _, p := range []image.Point{{2, 2}, {8, 2}, {15, 8}, {8, 15}, {2, 8}} {
		assert.Equal(t, red, dst.RGBAAt(p.X, p.Y), p)
	}
	assert.Equal(t, color.RGBA{}, dst.RGBAAt(8, 8))
}

func TestDrawPolygon_ThickAndDegenerate(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 10, 10))
	DrawPolygon(dst, []geometry.Point{{X: 5, Y: 5}}, red, 3)
	assert.Equal(t, color.RGBA{}, dst.RGBAAt(5, 5))

	DrawPolygon(dst, []geometry.Point{{X: 0, Y: 5}, {X: 9, Y: 5}}, red, 3)
	assert.Equal(t, red, dst.RGBAAt(4, 4))
	assert.Equal(t, red, dst.RGBAAt(4, 6))
	assert.Equal(t, color.RGBA{}, dst.RGBAAt(4, 2))
}

func TestDrawMarker(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 10, 10))
	DrawMarker(dst, geometry.Point{X: 5, Y: 5}, red, 3)
	assert.Equal(t, red, dst.RGBAAt(4, 4))
	assert.Equal(t, red, dst.RGBAAt(6, 6))
	assert.Equal(t, color.RGBA{}, dst.RGBAAt(7, 5))

	assert.NotPanics(t, func() { DrawMarker(dst, geometry.Point{X: 0, Y: 9.6}, red, 5) })
	assert.Equal(t, red, dst.RGBAAt(0, 9))
}
