package vision

import (
	"image"
	"math"

	"github.com/MeKo-Tech/docscan/internal/mempool"
)

// tan(22.5°), used to bucket gradient directions.
const tan22 = 0.41421356237

// canny computes a binary edge map using Sobel gradients with L1 magnitude,
// four-direction non-maximum suppression and 8-connected hysteresis.
func canny(g *image.Gray, low, high float64) *image.Gray {
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	if w < 3 || h < 3 {
		return out
	}
	n := w * h

	gx := mempool.GetFloat32(n)
	gy := mempool.GetFloat32(n)
	mag := mempool.GetFloat32(n)
	defer mempool.PutFloat32(gx)
	defer mempool.PutFloat32(gy)
	defer mempool.PutFloat32(mag)

	sobel(g, w, h, gx, gy, mag)

	weak := mempool.GetBool(n)
	strong := mempool.GetBool(n)
	defer mempool.PutBool(weak)
	defer mempool.PutBool(strong)

	lo, hi := float32(low), float32(high)
	var seeds []int
	for y := range h {
		for x := range w {
			i := y*w + x
			m := mag[i]
			if m <= lo || !isLocalMax(mag, gx[i], gy[i], w, h, x, y) {
				continue
			}
			weak[i] = true
			if m > hi {
				strong[i] = true
				seeds = append(seeds, i)
			}
		}
	}

	hysteresis(seeds, weak, strong, w, h)

	for i, s := range strong {
		if s {
			out.Pix[(i/w)*out.Stride+i%w] = 255
		}
	}
	return out
}

// sobel fills gx, gy and the L1 gradient magnitude using replicated borders.
func sobel(g *image.Gray, w, h int, gx, gy, mag []float32) {
	at := func(x, y int) float32 {
		x = clampInt(x, 0, w-1)
		y = clampInt(y, 0, h-1)
		return float32(g.Pix[y*g.Stride+x])
	}
	for y := range h {
		for x := range w {
			tl, t, tr := at(x-1, y-1), at(x, y-1), at(x+1, y-1)
			l, r := at(x-1, y), at(x+1, y)
			bl, b, br := at(x-1, y+1), at(x, y+1), at(x+1, y+1)

			dx := (tr + 2*r + br) - (tl + 2*l + bl)
			dy := (bl + 2*b + br) - (tl + 2*t + tr)
			i := y*w + x
			gx[i] = dx
			gy[i] = dy
			mag[i] = float32(math.Abs(float64(dx)) + math.Abs(float64(dy)))
		}
	}
}

// isLocalMax reports whether the magnitude at (x,y) is not smaller than both
// neighbours along the quantised gradient direction. Ties are kept so that
// symmetric step edges stay connected at corners.
func isLocalMax(mag []float32, dx, dy float32, w, h, x, y int) bool {
	magAt := func(px, py int) float32 {
		if px < 0 || py < 0 || px >= w || py >= h {
			return 0
		}
		return mag[py*w+px]
	}
	m := mag[y*w+x]
	ax := math.Abs(float64(dx))
	ay := math.Abs(float64(dy))

	var m1, m2 float32
	switch {
	case ay <= ax*tan22:
		m1, m2 = magAt(x-1, y), magAt(x+1, y)
	case ax <= ay*tan22:
		m1, m2 = magAt(x, y-1), magAt(x, y+1)
	case (dx > 0) == (dy > 0):
		m1, m2 = magAt(x-1, y-1), magAt(x+1, y+1)
	default:
		m1, m2 = magAt(x+1, y-1), magAt(x-1, y+1)
	}
	return m >= m1 && m >= m2
}

// hysteresis promotes weak pixels 8-connected to a strong pixel.
func hysteresis(stack []int, weak, strong []bool, w, h int) {
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		cx, cy := i%w, i/w
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := cx+dx, cy+dy
				if (dx == 0 && dy == 0) || nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				ni := ny*w + nx
				if weak[ni] && !strong[ni] {
					strong[ni] = true
					stack = append(stack, ni)
				}
			}
		}
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
