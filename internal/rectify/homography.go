package rectify

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/MeKo-Tech/docscan/internal/geometry"
)

// computeHomography computes 3x3 matrix H mapping p[i] -> q[i]. Returns H as [9]float64.
func computeHomography(p, q [4]geometry.Point) ([9]float64, bool) {
	// Build 8x8 system A*h = b for the 8 unknowns (h00..h21), h22=1.
	var a [8][8]float64
	var b [8]float64
	for i := range 4 {
		px, py := p[i].X, p[i].Y
		qx, qy := q[i].X, q[i].Y
		r := 2 * i
		// x' = (h00 X + h01 Y + h02)/(h20 X + h21 Y + 1)
		a[r] = [8]float64{px, py, 1, 0, 0, 0, -px * qx, -py * qx}
		b[r] = qx
		// y' = (h10 X + h11 Y + h12)/(h20 X + h21 Y + 1)
		a[r+1] = [8]float64{0, 0, 0, px, py, 1, -px * qy, -py * qy}
		b[r+1] = qy
	}

	h, ok := solve8x8(a, b)
	if !ok {
		return [9]float64{}, false
	}
	return [9]float64{h[0], h[1], h[2], h[3], h[4], h[5], h[6], h[7], 1}, true
}

// solve8x8 solves a*x = b by LU decomposition. Singular or
// ill-conditioned systems report false.
func solve8x8(a [8][8]float64, b [8]float64) ([8]float64, bool) {
	data := make([]float64, 0, 64)
	for _, row := range a {
		data = append(data, row[:]...)
	}
	var x mat.VecDense
	if err := x.SolveVec(mat.NewDense(8, 8, data), mat.NewVecDense(8, b[:])); err != nil {
		return [8]float64{}, false
	}
	var out [8]float64
	for i := range out {
		v := x.AtVec(i)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return [8]float64{}, false
		}
		out[i] = v
	}
	return out, true
}

// applyHomography maps (x, y) through h. Points on the line at infinity
// come back far outside any image so they sample as border.
func applyHomography(h [9]float64, x, y float64) (float64, float64) {
	denom := h[6]*x + h[7]*y + h[8]
	if denom == 0 {
		return -1e9, -1e9
	}
	sx := (h[0]*x + h[1]*y + h[2]) / denom
	sy := (h[3]*x + h[4]*y + h[5]) / denom
	return sx, sy
}
