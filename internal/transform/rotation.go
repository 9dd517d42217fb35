// Package transform reconciles the coordinate spaces of the editor: the
// scaled display canvas, the rotated original raster and the true original
// raster.
package transform

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// ErrInvalidRotation is returned for angles other than 0, 90, 180 and 270.
var ErrInvalidRotation = errors.New("rotation must be 0, 90, 180 or 270")

// Rotation is a clockwise quarter-turn applied to the original raster.
type Rotation int

const (
	Rotate0   Rotation = 0
	Rotate90  Rotation = 90
	Rotate180 Rotation = 180
	Rotate270 Rotation = 270
)

// ParseRotation validates deg and returns it as a Rotation.
func ParseRotation(deg int) (Rotation, error) {
	switch r := Rotation(deg); r {
	case Rotate0, Rotate90, Rotate180, Rotate270:
		return r, nil
	default:
		return 0, fmt.Errorf("%w: got %d", ErrInvalidRotation, deg)
	}
}

// Next returns the rotation a further 90 degrees clockwise.
func (r Rotation) Next() Rotation {
	return (r + 90) % 360
}

// SwapsAxes reports whether width and height trade places.
func (r Rotation) SwapsAxes() bool {
	return r%180 != 0
}

func (r Rotation) String() string {
	return fmt.Sprintf("%d°", int(r))
}

// Apply returns img rotated clockwise by r. imaging rotates
// counter-clockwise, so a clockwise quarter-turn is Rotate270.
func (r Rotation) Apply(img image.Image) image.Image {
	switch r {
	case Rotate90:
		return imaging.Rotate270(img)
	case Rotate180:
		return imaging.Rotate180(img)
	case Rotate270:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
