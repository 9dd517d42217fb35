package geometry

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrQuadSyntax is returned when a corner list cannot be parsed.
var ErrQuadSyntax = errors.New("invalid corner list")

// ParseQuad reads four corners either as "x,y;x,y;x,y;x,y" or as a JSON
// array of [x,y] pairs. The corners are kept in the order given.
func ParseQuad(s string) (Quad, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		return parseQuadJSON(s)
	}

	parts := strings.Split(s, ";")
	if len(parts) != 4 {
		return Quad{}, fmt.Errorf("%w: want 4 corners, got %d", ErrQuadSyntax, len(parts))
	}
	var q Quad
	for i, part := range parts {
		xy := strings.Split(part, ",")
		if len(xy) != 2 {
			return Quad{}, fmt.Errorf("%w: corner %d: %q", ErrQuadSyntax, i+1, part)
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(xy[0]), 64)
		if err != nil {
			return Quad{}, fmt.Errorf("%w: corner %d: %w", ErrQuadSyntax, i+1, err)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(xy[1]), 64)
		if err != nil {
			return Quad{}, fmt.Errorf("%w: corner %d: %w", ErrQuadSyntax, i+1, err)
		}
		q[i] = Point{X: x, Y: y}
	}
	return q, nil
}

func parseQuadJSON(s string) (Quad, error) {
	var pairs [][]float64
	if err := json.Unmarshal([]byte(s), &pairs); err != nil {
		return Quad{}, fmt.Errorf("%w: %w", ErrQuadSyntax, err)
	}
	if len(pairs) != 4 {
		return Quad{}, fmt.Errorf("%w: want 4 corners, got %d", ErrQuadSyntax, len(pairs))
	}
	var q Quad
	for i, p := range pairs {
		if len(p) != 2 {
			return Quad{}, fmt.Errorf("%w: corner %d has %d values", ErrQuadSyntax, i+1, len(p))
		}
		q[i] = Point{X: p[0], Y: p[1]}
	}
	return q, nil
}

// FormatQuad is the inverse of the semicolon form of ParseQuad.
func FormatQuad[Q ~[4]P, P Coord](q Q) string {
	parts := make([]string, 4)
	for i, p := range q {
		pt := Point(p)
		parts[i] = strconv.FormatFloat(pt.X, 'f', -1, 64) + "," + strconv.FormatFloat(pt.Y, 'f', -1, 64)
	}
	return strings.Join(parts, ";")
}
