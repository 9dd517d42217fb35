// Package rectify turns a document quadrilateral into an upright
// rectangular image with a perspective warp.
package rectify

import (
	"math"

	"github.com/MeKo-Tech/docscan/internal/geometry"
)

// Plan is the input to a single warp: where to sample from and how large
// the output is.
type Plan struct {
	Source geometry.OriginalQuad `json:"source"`
	Width  int                   `json:"width"`
	Height int                   `json:"height"`
}

// PlanWarp sizes the output from the longer of each pair of opposite
// edges. The quad is not validated; a degenerate quad produces a plan the
// warper rejects.
func PlanWarp(q geometry.OriginalQuad) Plan {
	top := geometry.Distance(q[0], q[1])
	bottom := geometry.Distance(q[3], q[2])
	left := geometry.Distance(q[0], q[3])
	right := geometry.Distance(q[1], q[2])

	return Plan{
		Source: q,
		Width:  int(math.Round(max(top, bottom))),
		Height: int(math.Round(max(left, right))),
	}
}

// Destination returns the output rectangle corners in [tl, tr, br, bl]
// order.
func (p Plan) Destination() geometry.Quad {
	w, h := float64(p.Width-1), float64(p.Height-1)
	return geometry.Quad{{X: 0, Y: 0}, {X: w, Y: 0}, {X: w, Y: h}, {X: 0, Y: h}}
}
