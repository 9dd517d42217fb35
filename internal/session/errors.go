package session

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/docscan/internal/geometry"
)

var (
	// ErrNoImage is returned by operations that need a loaded image.
	ErrNoImage = errors.New("session: no image loaded")
	// ErrInvalidState is returned when an operation is not allowed in the
	// current state.
	ErrInvalidState = errors.New("session: operation not allowed in current state")
	// ErrSuperseded is returned by a detection whose result was discarded
	// because a later load, rotation or viewport change started another one.
	ErrSuperseded = errors.New("session: detection superseded")
	// ErrPointIndex is returned for corner indices outside 0..3.
	ErrPointIndex = errors.New("session: corner index out of range")
	// ErrPageRange is returned for page indices outside the document.
	ErrPageRange = errors.New("session: page index out of range")
)

// InvalidGeometryError reports a quad that cannot be warped.
type InvalidGeometryError struct {
	Quad geometry.OriginalQuad
	Err  error
}

func (e *InvalidGeometryError) Error() string {
	return fmt.Sprintf("invalid document geometry %v: %v", e.Quad, e.Err)
}

func (e *InvalidGeometryError) Unwrap() error { return e.Err }

func stateError(op string, s State) error {
	return fmt.Errorf("%w: %s in state %s", ErrInvalidState, op, s)
}
