package geometry

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
)

// ErrDegenerateQuad is returned when four corners do not form a simple,
// non-collinear quadrilateral.
var ErrDegenerateQuad = errors.New("degenerate quadrilateral")

// Quad is an ordered quadrilateral [top-left, top-right, bottom-right, bottom-left].
type Quad [4]Point

// DisplayQuad is a quadrilateral in display space.
type DisplayQuad [4]DisplayPoint

// RotatedQuad is a quadrilateral in rotated-original space.
type RotatedQuad [4]RotatedPoint

// OriginalQuad is a quadrilateral in true-original space.
type OriginalQuad [4]OriginalPoint

// Scale multiplies every coordinate of every corner by f.
func Scale[Q ~[4]P, P Coord](q Q, f float64) Q {
	var out Q
	for i, p := range q {
		out[i] = ScaleTo[P](p, f)
	}
	return out
}

// Retag converts every corner of q into the coordinate space of To
// without touching the values.
func Retag[To Coord, Q ~[4]P, P Coord](q Q) [4]To {
	var out [4]To
	for i, p := range q {
		out[i] = To(Point(p))
	}
	return out
}

// Points returns the corners as untagged points.
func Points[Q ~[4]P, P Coord](q Q) []Point {
	out := make([]Point, 4)
	for i, p := range q {
		out[i] = Point(p)
	}
	return out
}

// OrderCorners sorts four unordered corners into [tl, tr, br, bl].
//
// The corners are sorted by y; the first two form the top row and the last
// two the bottom row, each row is then sorted by x. This split is reliable for
// roughly axis-aligned quadrilaterals but can mis-order corners when the
// quadrilateral is rotated close to 45 degrees, where the second-highest
// corner may belong to the bottom row.
func OrderCorners[Q ~[4]P, P Coord](q Q) Q {
	pts := Points(q)
	slices.SortStableFunc(pts, func(a, b Point) int { return cmp.Compare(a.Y, b.Y) })
	top := []Point{pts[0], pts[1]}
	bottom := []Point{pts[2], pts[3]}
	byX := func(a, b Point) int { return cmp.Compare(a.X, b.X) }
	slices.SortStableFunc(top, byX)
	slices.SortStableFunc(bottom, byX)
	return Q{P(top[0]), P(top[1]), P(bottom[1]), P(bottom[0])}
}

// ValidateQuad checks that the corners are distinct, that no three of them
// are collinear and that the outline does not cross itself.
func ValidateQuad[Q ~[4]P, P Coord](q Q) error {
	pts := Points(q)
	for i := range 4 {
		for j := i + 1; j < 4; j++ {
			if Distance(pts[i], pts[j]) < quadEpsilon {
				return fmt.Errorf("%w: corners %d and %d coincide", ErrDegenerateQuad, i, j)
			}
		}
	}
	for i := range 4 {
		a, b, c := pts[i], pts[(i+1)%4], pts[(i+2)%4]
		if math.Abs(cross(a, b, c)) < quadEpsilon {
			return fmt.Errorf("%w: corners %d, %d, %d are collinear", ErrDegenerateQuad, i, (i+1)%4, (i+2)%4)
		}
	}
	if segmentsCross(pts[0], pts[1], pts[2], pts[3]) || segmentsCross(pts[1], pts[2], pts[3], pts[0]) {
		return fmt.Errorf("%w: outline intersects itself", ErrDegenerateQuad)
	}
	return nil
}

const quadEpsilon = 1e-6

// segmentsCross reports a proper crossing of ab and cd.
func segmentsCross(a, b, c, d Point) bool {
	d1 := cross(c, d, a)
	d2 := cross(c, d, b)
	d3 := cross(a, b, c)
	d4 := cross(a, b, d)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}
