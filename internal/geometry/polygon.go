package geometry

import "math"

// PolygonArea returns the absolute area enclosed by a closed polygon using the
// shoelace formula.
func PolygonArea(pts []Point) float64 {
	n := len(pts)
	if n < 3 {
		return 0
	}
	sum := 0.0
	for i := range n {
		j := (i + 1) % n
		sum += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return math.Abs(sum) * 0.5
}

// Perimeter returns the length of the closed outline through pts.
func Perimeter(pts []Point) float64 {
	n := len(pts)
	if n < 2 {
		return 0
	}
	total := 0.0
	for i := range n {
		total += Distance(pts[i], pts[(i+1)%n])
	}
	return total
}

// SimplifyClosed reduces a closed contour with the Douglas–Peucker algorithm.
//
// The contour is split at two mutually distant points, which are always kept,
// and each half is simplified as an open chain. Starting from extreme points
// rather than from pts[0] avoids keeping an arbitrary start point that sits in
// the middle of a straight edge.
func SimplifyClosed(pts []Point, epsilon float64) []Point {
	n := len(pts)
	if n <= 3 || epsilon <= 0 {
		return append([]Point(nil), pts...)
	}
	a := farthestFrom(pts, 0)
	b := farthestFrom(pts, a)
	if a == b {
		return []Point{pts[a]}
	}

	// Rotate so the walk starts at a; b lands at index split.
	ring := make([]Point, 0, n+1)
	ring = append(ring, pts[a:]...)
	ring = append(ring, pts[:a]...)
	split := (b - a + n) % n
	ring = append(ring, pts[a])

	keep := make([]bool, len(ring))
	keep[0] = true
	keep[split] = true
	dpSimplify(ring, 0, split, epsilon, keep)
	dpSimplify(ring, split, len(ring)-1, epsilon, keep)

	out := make([]Point, 0, 8)
	for i := range n {
		if keep[i] {
			out = append(out, ring[i])
		}
	}
	return out
}

func farthestFrom(pts []Point, from int) int {
	best, bestD := from, -1.0
	for i, p := range pts {
		if d := Distance(p, pts[from]); d > bestD {
			best, bestD = i, d
		}
	}
	return best
}

func dpSimplify(pts []Point, start, end int, eps float64, keep []bool) {
	if end <= start+1 {
		return
	}
	maxDist := -1.0
	index := -1
	a := pts[start]
	b := pts[end]
	for i := start + 1; i < end; i++ {
		d := perpendicularDistance(pts[i], a, b)
		if d > maxDist {
			maxDist = d
			index = i
		}
	}
	if maxDist > eps {
		dpSimplify(pts, start, index, eps, keep)
		keep[index] = true
		dpSimplify(pts, index, end, eps, keep)
	}
}

// perpendicularDistance is the distance from p to the line through a and b,
// or to a itself when a and b coincide.
func perpendicularDistance(p, a, b Point) float64 {
	vx, vy := b.X-a.X, b.Y-a.Y
	if vx == 0 && vy == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}
	num := math.Abs((p.X-a.X)*vy - (p.Y-a.Y)*vx)
	return num / math.Hypot(vx, vy)
}

// Box is an axis-aligned bounding box.
type Box struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// Width returns the box width.
func (b Box) Width() float64 { return b.MaxX - b.MinX }

// Height returns the box height.
func (b Box) Height() float64 { return b.MaxY - b.MinY }

// BoundingBox returns the axis-aligned bounding box for a set of points.
func BoundingBox(pts []Point) Box {
	if len(pts) == 0 {
		return Box{}
	}
	b := Box{MinX: pts[0].X, MinY: pts[0].Y, MaxX: pts[0].X, MaxY: pts[0].Y}
	for _, p := range pts[1:] {
		b.MinX = math.Min(b.MinX, p.X)
		b.MinY = math.Min(b.MinY, p.Y)
		b.MaxX = math.Max(b.MaxX, p.X)
		b.MaxY = math.Max(b.MaxY, p.Y)
	}
	return b
}
