package session

import (
	"encoding/json"
	"fmt"
	"strings"
)

// State is the step of the editing workflow a session is in.
type State int

const (
	NoImage State = iota
	AutoDetecting
	CornersReady
	Editing
	Warped
	Exported
)

var stateNames = [...]string{
	NoImage:       "no_image",
	AutoDetecting: "auto_detecting",
	CornersReady:  "corners_ready",
	Editing:       "editing",
	Warped:        "warped",
	Exported:      "exported",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalJSON encodes the state by name.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Origin records where the current corners came from.
type Origin int

const (
	OriginNone Origin = iota
	OriginAuto
	OriginManual
)

func (o Origin) String() string {
	switch o {
	case OriginAuto:
		return "auto"
	case OriginManual:
		return "manual"
	default:
		return ""
	}
}

// MarshalJSON encodes the origin by name.
func (o Origin) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

// RotateMode selects what happens to the corners when the image is rotated.
type RotateMode string

const (
	// RotateRedetect runs corner detection again on the rotated image.
	RotateRedetect RotateMode = "redetect"
	// RotateQuad carries the current corners through the rotation.
	RotateQuad RotateMode = "rotate-quad"
)

// ParseRotateMode validates a rotate mode name. The empty string selects
// RotateRedetect.
func ParseRotateMode(s string) (RotateMode, error) {
	switch m := RotateMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", RotateRedetect:
		return RotateRedetect, nil
	case RotateQuad:
		return m, nil
	default:
		return "", fmt.Errorf("unknown rotate mode %q (want %q or %q)", s, RotateRedetect, RotateQuad)
	}
}
