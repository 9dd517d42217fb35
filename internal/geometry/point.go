// Package geometry holds the point, quadrilateral and polygon math shared by
// the detector, the transform reconciler and the warp planner.
//
// Points are tagged with the coordinate space they live in. A DisplayPoint
// cannot be passed where an OriginalPoint is expected without an explicit
// conversion, so mixing spaces is caught by the compiler.
package geometry

import "math"

// Point represents a 2D coordinate in float space. It carries no coordinate
// space; use the typed variants below when the space matters.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DisplayPoint is a point on the interactive editing canvas.
type DisplayPoint Point

// RotatedPoint is a point on the original pixel grid with the display
// rotation applied (axes swapped for 90 and 270 degrees).
type RotatedPoint Point

// OriginalPoint is a point on the pixel grid of the raster as stored.
type OriginalPoint Point

// Coord is satisfied by every point type.
type Coord interface {
	Point | DisplayPoint | RotatedPoint | OriginalPoint
}

// Pt builds a P from raw coordinates.
func Pt[P Coord](x, y float64) P {
	return P(Point{X: x, Y: y})
}

// Distance returns the Euclidean distance between a and b.
func Distance[P Coord](a, b P) float64 {
	pa, pb := Point(a), Point(b)
	return math.Hypot(pa.X-pb.X, pa.Y-pb.Y)
}

// ScaleTo multiplies both coordinates of p by f and re-tags the result in
// another coordinate space.
func ScaleTo[To, From Coord](p From, f float64) To {
	q := Point(p)
	return To(Point{X: q.X * f, Y: q.Y * f})
}

// Clamp limits p to the rectangle [0,w]x[0,h].
func Clamp[P Coord](p P, w, h float64) P {
	q := Point(p)
	return P(Point{X: clamp(q.X, 0, w), Y: clamp(q.Y, 0, h)})
}

// InBounds reports whether p lies inside [0,w]x[0,h], edges included.
func InBounds[P Coord](p P, w, h float64) bool {
	q := Point(p)
	return q.X >= 0 && q.Y >= 0 && q.X <= w && q.Y <= h
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func cross(o, a, b Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}
