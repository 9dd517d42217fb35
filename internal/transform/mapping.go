package transform

import (
	"github.com/MeKo-Tech/docscan/internal/geometry"
)

// ToRotatedOriginal undoes the display scaling.
func ToRotatedOriginal(p geometry.DisplayPoint, scale float64) geometry.RotatedPoint {
	return geometry.ScaleTo[geometry.RotatedPoint](p, 1/scale)
}

// ToDisplay applies the display scaling.
func ToDisplay(p geometry.RotatedPoint, scale float64) geometry.DisplayPoint {
	return geometry.ScaleTo[geometry.DisplayPoint](p, scale)
}

// ToTrueOriginal undoes a clockwise rotation of a w x h original.
func ToTrueOriginal(p geometry.RotatedPoint, rot Rotation, w, h int) geometry.OriginalPoint {
	fw, fh := float64(w), float64(h)
	switch rot {
	case Rotate90:
		return geometry.OriginalPoint{X: p.Y, Y: fh - p.X}
	case Rotate180:
		return geometry.OriginalPoint{X: fw - p.X, Y: fh - p.Y}
	case Rotate270:
		return geometry.OriginalPoint{X: fw - p.Y, Y: p.X}
	default:
		return geometry.OriginalPoint{X: p.X, Y: p.Y}
	}
}

// FromTrueOriginal applies a clockwise rotation of a w x h original; it is
// the inverse of ToTrueOriginal.
func FromTrueOriginal(p geometry.OriginalPoint, rot Rotation, w, h int) geometry.RotatedPoint {
	fw, fh := float64(w), float64(h)
	switch rot {
	case Rotate90:
		return geometry.RotatedPoint{X: fh - p.Y, Y: p.X}
	case Rotate180:
		return geometry.RotatedPoint{X: fw - p.X, Y: fh - p.Y}
	case Rotate270:
		return geometry.RotatedPoint{X: p.Y, Y: fw - p.X}
	default:
		return geometry.RotatedPoint{X: p.X, Y: p.Y}
	}
}

// ToTrueOriginalFromDisplay maps a canvas point to true-original pixels.
func ToTrueOriginalFromDisplay(p geometry.DisplayPoint, scale float64, rot Rotation, w, h int) geometry.OriginalPoint {
	return ToTrueOriginal(ToRotatedOriginal(p, scale), rot, w, h)
}

// FromTrueOriginalToDisplay maps a true-original point onto the canvas.
func FromTrueOriginalToDisplay(p geometry.OriginalPoint, scale float64, rot Rotation, w, h int) geometry.DisplayPoint {
	return ToDisplay(FromTrueOriginal(p, rot, w, h), scale)
}

// QuadToTrueOriginal maps every corner of a canvas quad. Corner order is
// preserved, so a quad ordered on the canvas may not be ordered in the
// original.
func QuadToTrueOriginal(q geometry.DisplayQuad, scale float64, rot Rotation, w, h int) geometry.OriginalQuad {
	var out geometry.OriginalQuad
	for i, p := range q {
		out[i] = ToTrueOriginalFromDisplay(p, scale, rot, w, h)
	}
	return out
}

// QuadToDisplay maps every corner of a true-original quad onto the canvas.
func QuadToDisplay(q geometry.OriginalQuad, scale float64, rot Rotation, w, h int) geometry.DisplayQuad {
	var out geometry.DisplayQuad
	for i, p := range q {
		out[i] = FromTrueOriginalToDisplay(p, scale, rot, w, h)
	}
	return out
}

// QuadToDisplayFromRotated scales a rotated-raster quad onto the canvas.
func QuadToDisplayFromRotated(q geometry.RotatedQuad, scale float64) geometry.DisplayQuad {
	var out geometry.DisplayQuad
	for i, p := range q {
		out[i] = ToDisplay(p, scale)
	}
	return out
}
