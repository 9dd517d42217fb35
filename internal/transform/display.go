package transform

import (
	"github.com/MeKo-Tech/docscan/internal/geometry"
)

// DefaultMarginRatio is the inset of the manual fallback quad relative to
// the shorter display side.
const DefaultMarginRatio = 0.1

// Display describes how the rotated original is fitted onto the canvas.
// It is derived state and recomputed on every rotation or viewport change.
type Display struct {
	OriginalW int      `json:"original_width"`
	OriginalH int      `json:"original_height"`
	Rotation  Rotation `json:"rotation"`
	RotatedW  int      `json:"rotated_width"`
	RotatedH  int      `json:"rotated_height"`
	Width     float64  `json:"width"`
	Height    float64  `json:"height"`
	Scale     float64  `json:"scale"`
}

// ComputeDisplayDimensions fits the rotated original into a viewport
// without ever upscaling. A non-positive viewport side does not constrain
// that axis.
func ComputeDisplayDimensions(origW, origH int, rot Rotation, viewportW, viewportH float64) Display {
	rotW, rotH := origW, origH
	if rot.SwapsAxes() {
		rotW, rotH = origH, origW
	}

	scale := 1.0
	if rotW > 0 && viewportW > 0 {
		scale = min(scale, viewportW/float64(rotW))
	}
	if rotH > 0 && viewportH > 0 {
		scale = min(scale, viewportH/float64(rotH))
	}

	return Display{
		OriginalW: origW,
		OriginalH: origH,
		Rotation:  rot,
		RotatedW:  rotW,
		RotatedH:  rotH,
		Width:     float64(rotW) * scale,
		Height:    float64(rotH) * scale,
		Scale:     scale,
	}
}

// Contains reports whether every corner of q lies on the canvas, edges
// included.
func (d Display) Contains(q geometry.DisplayQuad) bool {
	for _, p := range q {
		if !geometry.InBounds(p, d.Width, d.Height) {
			return false
		}
	}
	return true
}

// Clamp limits p to the canvas.
func (d Display) Clamp(p geometry.DisplayPoint) geometry.DisplayPoint {
	return geometry.Clamp(p, d.Width, d.Height)
}

// ManualQuad is the fallback quad inset by DefaultMarginRatio.
func (d Display) ManualQuad() geometry.DisplayQuad {
	return d.ManualQuadRatio(DefaultMarginRatio)
}

// ManualQuadRatio is the fallback quad inset by ratio times the shorter
// canvas side.
func (d Display) ManualQuadRatio(ratio float64) geometry.DisplayQuad {
	m := min(d.Width, d.Height) * ratio
	return geometry.DisplayQuad{
		{X: m, Y: m},
		{X: d.Width - m, Y: m},
		{X: d.Width - m, Y: d.Height - m},
		{X: m, Y: d.Height - m},
	}
}

// AcceptDetected scales a quad found on the rotated raster onto the canvas.
// A quad with any corner off the canvas is rejected whole.
func (d Display) AcceptDetected(q geometry.RotatedQuad) (geometry.DisplayQuad, bool) {
	dq := QuadToDisplayFromRotated(q, d.Scale)
	if !d.Contains(dq) {
		return geometry.DisplayQuad{}, false
	}
	return dq, true
}

// ToOriginal maps a canvas quad to true-original pixel space.
func (d Display) ToOriginal(q geometry.DisplayQuad) geometry.OriginalQuad {
	return QuadToTrueOriginal(q, d.Scale, d.Rotation, d.OriginalW, d.OriginalH)
}

// FromOriginal maps a true-original quad onto the canvas.
func (d Display) FromOriginal(q geometry.OriginalQuad) geometry.DisplayQuad {
	return QuadToDisplay(q, d.Scale, d.Rotation, d.OriginalW, d.OriginalH)
}
