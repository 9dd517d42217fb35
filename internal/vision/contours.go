package vision

import (
	"image"

	"github.com/MeKo-Tech/docscan/internal/geometry"
	"github.com/MeKo-Tech/docscan/internal/mempool"
)

// 8-neighbourhood in clockwise screen order: E, SE, S, SW, W, NW, N, NE.
var (
	ndx = [8]int{1, 1, 0, -1, -1, -1, 0, 1}
	ndy = [8]int{0, 1, 1, 1, 0, -1, -1, -1}
)

// externalContours labels 8-connected foreground components, keeps those that
// touch the background region connected to the image border, and traces the
// outer boundary of each. Components nested inside another component's hole
// are dropped. Contours are returned in row-major order of their topmost,
// leftmost pixel.
func externalContours(g *image.Gray) []Contour {
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	n := w * h
	if n == 0 {
		return nil
	}
	fg := func(x, y int) bool { return g.Pix[y*g.Stride+x] != 0 }

	labels := mempool.GetInt32(n)
	defer mempool.PutInt32(labels)
	outside := mempool.GetBool(n)
	defer mempool.PutBool(outside)

	starts := labelComponents(fg, labels, w, h)
	if len(starts) == 0 {
		return nil
	}
	markOutside(fg, outside, w, h)

	external := make([]bool, len(starts)+1)
	for y := range h {
		for x := range w {
			l := labels[y*w+x]
			if l == 0 || external[l] {
				continue
			}
			if x == 0 || y == 0 || x == w-1 || y == h-1 ||
				outside[y*w+x-1] || outside[y*w+x+1] || outside[(y-1)*w+x] || outside[(y+1)*w+x] {
				external[l] = true
			}
		}
	}

	var out []Contour
	for i, s := range starts {
		label := int32(i + 1)
		if !external[label] {
			continue
		}
		out = append(out, traceBoundary(labels, w, h, label, s.X, s.Y))
	}
	return out
}

// labelComponents assigns 1-based labels to 8-connected foreground components
// and returns the first pixel of each in row-major order.
func labelComponents(fg func(x, y int) bool, labels []int32, w, h int) []image.Point {
	var starts []image.Point
	var queue []int
	next := int32(1)
	for y := range h {
		for x := range w {
			if labels[y*w+x] != 0 || !fg(x, y) {
				continue
			}
			starts = append(starts, image.Point{X: x, Y: y})
			labels[y*w+x] = next
			queue = append(queue[:0], y*w+x)
			for len(queue) > 0 {
				ci := queue[0]
				queue = queue[1:]
				cx, cy := ci%w, ci/w
				for d := range 8 {
					nx, ny := cx+ndx[d], cy+ndy[d]
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					ni := ny*w + nx
					if labels[ni] == 0 && fg(nx, ny) {
						labels[ni] = next
						queue = append(queue, ni)
					}
				}
			}
			next++
		}
	}
	return starts
}

// markOutside flood-fills, with 4-connectivity, the background reachable
// from the image border.
func markOutside(fg func(x, y int) bool, outside []bool, w, h int) {
	var stack []int
	push := func(x, y int) {
		i := y*w + x
		if !outside[i] && !fg(x, y) {
			outside[i] = true
			stack = append(stack, i)
		}
	}
	for x := range w {
		push(x, 0)
		push(x, h-1)
	}
	for y := range h {
		push(0, y)
		push(w-1, y)
	}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		if x > 0 {
			push(x-1, y)
		}
		if x < w-1 {
			push(x+1, y)
		}
		if y > 0 {
			push(x, y-1)
		}
		if y < h-1 {
			push(x, y+1)
		}
	}
}

// traceBoundary follows the outer boundary of a component with Moore-neighbour
// tracing, starting at its topmost, leftmost pixel (sx, sy). The walk stops
// when it is about to repeat the first move. Runs of pixels in the same
// direction are compressed to their end points.
func traceBoundary(labels []int32, w, h int, label int32, sx, sy int) Contour {
	isLabel := func(x, y int) bool {
		return x >= 0 && y >= 0 && x < w && y < h && labels[y*w+x] == label
	}

	// From the start pixel the west neighbour is background, so the search
	// begins just clockwise of west.
	const west = 4
	next := func(cx, cy, from int) (int, int, int, bool) {
		for k := 1; k <= 8; k++ {
			d := (from + k) % 8
			nx, ny := cx+ndx[d], cy+ndy[d]
			if isLabel(nx, ny) {
				// Backtrack is the neighbour examined just before d, seen from the new pixel.
				prev := (d + 7) % 8
				bx, by := cx+ndx[prev], cy+ndy[prev]
				return nx, ny, dirFrom(nx, ny, bx, by), true
			}
		}
		return 0, 0, 0, false
	}

	raw := []geometry.Point{{X: float64(sx), Y: float64(sy)}}
	fx, fy, from, ok := next(sx, sy, west)
	if !ok {
		return Contour(raw)
	}
	firstX, firstY := fx, fy
	cx, cy := fx, fy
	maxSteps := 4*w*h + 8
	for range maxSteps {
		raw = append(raw, geometry.Point{X: float64(cx), Y: float64(cy)})
		nx, ny, nfrom, found := next(cx, cy, from)
		if !found {
			break
		}
		if cx == sx && cy == sy && nx == firstX && ny == firstY {
			raw = raw[:len(raw)-1]
			break
		}
		cx, cy, from = nx, ny, nfrom
	}
	return compress(raw)
}

// dirFrom returns the direction index pointing from (cx, cy) to the
// neighbouring pixel (bx, by).
func dirFrom(cx, cy, bx, by int) int {
	dx, dy := bx-cx, by-cy
	for i := range 8 {
		if ndx[i] == dx && ndy[i] == dy {
			return i
		}
	}
	return 0
}

// compress drops points that continue the previous step's direction,
// including the closing step back to the first point.
func compress(pts []geometry.Point) Contour {
	n := len(pts)
	if n < 3 {
		return Contour(pts)
	}
	straight := func(a, b, c geometry.Point) bool {
		return (b.X-a.X) == (c.X-b.X) && (b.Y-a.Y) == (c.Y-b.Y)
	}
	out := Contour{pts[0]}
	for i := 1; i < n; i++ {
		if straight(pts[i-1], pts[i], pts[(i+1)%n]) {
			continue
		}
		out = append(out, pts[i])
	}
	return out
}
