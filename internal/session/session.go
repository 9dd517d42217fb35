// Package session holds the interactive state of one document page: the
// source image, its rotation, the display transform and the four corners
// being edited, up to the warped result.
package session

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/MeKo-Tech/docscan/internal/geometry"
	"github.com/MeKo-Tech/docscan/internal/rectify"
	"github.com/MeKo-Tech/docscan/internal/transform"
)

// Detector finds document corners in the pixel space of img.
type Detector interface {
	Detect(ctx context.Context, img image.Image) (geometry.Quad, bool)
}

// Config holds session settings.
type Config struct {
	ViewportWidth  float64 // canvas width; <= 0 leaves the width unbounded
	ViewportHeight float64
	RotateMode     RotateMode
	MarginRatio    float64 // manual quad inset (default: transform.DefaultMarginRatio)
	HitRadius      float64 // default radius for HitTest
	Warp           rectify.Config
}

// DefaultConfig returns the default session settings.
func DefaultConfig() Config {
	return Config{
		ViewportWidth:  1280,
		ViewportHeight: 900,
		RotateMode:     RotateRedetect,
		MarginRatio:    transform.DefaultMarginRatio,
		HitRadius:      20,
		Warp:           rectify.DefaultConfig(),
	}
}

// Snapshot is a copy of the observable session state.
type Snapshot struct {
	State    State                 `json:"state"`
	Origin   Origin                `json:"origin"`
	Name     string                `json:"name,omitempty"`
	Points   *geometry.DisplayQuad `json:"points,omitempty"`
	Display  *transform.Display    `json:"display,omitempty"`
	Rotation transform.Rotation    `json:"rotation"`
}

// Session is the editing state machine for a single image. All methods are
// safe for concurrent use; detection runs without holding the lock so that a
// newer load, rotation or viewport change can supersede it.
type Session struct {
	mu     sync.Mutex
	det    Detector
	warper *rectify.Warper
	cfg    Config

	state   State
	origin  Origin
	name    string
	src     image.Image
	rot     transform.Rotation
	display transform.Display
	quad    geometry.DisplayQuad
	result  image.Image

	gen    uint64
	cancel context.CancelFunc
}

// New creates a session in the NoImage state.
func New(det Detector, cfg Config) *Session {
	if cfg.MarginRatio <= 0 {
		cfg.MarginRatio = transform.DefaultMarginRatio
	}
	if cfg.RotateMode == "" {
		cfg.RotateMode = RotateRedetect
	}
	return &Session{
		det:    det,
		warper: rectify.NewWarper(cfg.Warp),
		cfg:    cfg,
	}
}

// Load replaces the source image, resets the rotation and detects corners.
// When detection finds nothing usable the manual quad is placed instead.
func (s *Session) Load(ctx context.Context, img image.Image, name string) error {
	return s.LoadRotated(ctx, img, name, transform.Rotate0)
}

// LoadRotated is Load with an initial rotation, for callers that already
// know how the page is turned.
func (s *Session) LoadRotated(ctx context.Context, img image.Image, name string, rot transform.Rotation) error {
	if img == nil || img.Bounds().Empty() {
		return ErrNoImage
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.src = img
	s.name = name
	s.rot = rot
	s.result = nil
	slog.Debug("Loaded image into session",
		"name", name,
		"image_w", img.Bounds().Dx(),
		"image_h", img.Bounds().Dy(),
		"rotation", int(rot))
	return s.detectLocked(ctx)
}

// SetViewport changes the canvas size. While corners are being placed this
// re-detects; after a warp the corners are carried over to the new canvas.
func (s *Session) SetViewport(ctx context.Context, width, height float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cfg.ViewportWidth, s.cfg.ViewportHeight = width, height
	switch s.state {
	case NoImage:
		return nil
	case Warped, Exported:
		orig := s.display.ToOriginal(s.quad)
		s.display = s.computeDisplay()
		s.quad = s.display.FromOriginal(orig)
		return nil
	default:
		return s.detectLocked(ctx)
	}
}

// Rotate turns the image a further 90 degrees clockwise.
func (s *Session) Rotate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case NoImage:
		return ErrNoImage
	case Warped, Exported:
		return stateError("rotate", s.state)
	}

	if s.cfg.RotateMode == RotateQuad && s.state != AutoDetecting {
		s.supersedeLocked()
		orig := s.display.ToOriginal(s.quad)
		s.rot = s.rot.Next()
		s.display = s.computeDisplay()
		s.quad = geometry.OrderCorners(s.display.FromOriginal(orig))
		slog.Debug("Rotated corners with image", "rotation", int(s.rot))
		return nil
	}

	s.rot = s.rot.Next()
	return s.detectLocked(ctx)
}

// detectLocked runs the detector on the rotated source and places either the
// detected or the manual quad. It must be called with s.mu held; the lock is
// released while the detector runs.
func (s *Session) detectLocked(ctx context.Context) error {
	gen := s.supersedeLocked()
	dctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	defer cancel()

	s.state = AutoDetecting
	s.origin = OriginNone
	s.display = s.computeDisplay()
	src, rot, display := s.src, s.rot, s.display

	s.mu.Unlock()
	found := false
	var quad geometry.Quad
	if s.det != nil {
		quad, found = s.det.Detect(dctx, rot.Apply(src))
	}
	s.mu.Lock()

	if gen != s.gen {
		return ErrSuperseded
	}
	s.cancel = nil

	if found {
		if dq, ok := display.AcceptDetected(geometry.RotatedQuad(geometry.Retag[geometry.RotatedPoint](quad))); ok {
			s.setCorners(dq, OriginAuto)
			return nil
		}
		slog.Debug("Detected corners fall outside the canvas", "corners", quad, "scale", display.Scale)
	}
	s.setCorners(display.ManualQuadRatio(s.cfg.MarginRatio), OriginManual)
	return ctx.Err()
}

// supersedeLocked cancels any running detection and starts a new generation.
func (s *Session) supersedeLocked() uint64 {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
	return s.gen
}

func (s *Session) setCorners(q geometry.DisplayQuad, origin Origin) {
	s.quad = q
	s.origin = origin
	s.state = CornersReady
	slog.Debug("Corners ready",
		"origin", origin.String(),
		"rotation", int(s.rot),
		"display_w", s.display.Width,
		"display_h", s.display.Height)
}

func (s *Session) computeDisplay() transform.Display {
	b := s.src.Bounds()
	return transform.ComputeDisplayDimensions(b.Dx(), b.Dy(), s.rot, s.cfg.ViewportWidth, s.cfg.ViewportHeight)
}

// Points returns the current corners on the canvas.
func (s *Session) Points() (geometry.DisplayQuad, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasCorners() {
		return geometry.DisplayQuad{}, ErrNoImage
	}
	return s.quad, nil
}

func (s *Session) hasCorners() bool {
	return s.state != NoImage && s.state != AutoDetecting
}

// HitTest returns the index of the first corner within radius of p, or -1.
// A non-positive radius uses the configured hit radius.
func (s *Session) HitTest(p geometry.DisplayPoint, radius float64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasCorners() {
		return -1
	}
	if radius <= 0 {
		radius = s.cfg.HitRadius
	}
	for i, c := range s.quad {
		if geometry.Distance(c, p) <= radius {
			return i
		}
	}
	return -1
}

// BeginEdit moves from CornersReady to Editing. It is a no-op while editing.
func (s *Session) BeginEdit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.beginEditLocked("begin edit")
}

func (s *Session) beginEditLocked(op string) error {
	switch s.state {
	case NoImage:
		return ErrNoImage
	case CornersReady:
		s.state = Editing
		return nil
	case Editing:
		return nil
	default:
		return stateError(op, s.state)
	}
}

// MovePoint clamps p onto the canvas and stores it as corner i.
func (s *Session) MovePoint(i int, p geometry.DisplayPoint) error {
	if i < 0 || i > 3 {
		return fmt.Errorf("%w: %d", ErrPointIndex, i)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.beginEditLocked("move point"); err != nil {
		return err
	}
	s.quad[i] = s.display.Clamp(p)
	return nil
}

// SetPoints replaces all four corners, clamping each onto the canvas.
func (s *Session) SetPoints(q geometry.DisplayQuad) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.beginEditLocked("set points"); err != nil {
		return err
	}
	for i, p := range q {
		s.quad[i] = s.display.Clamp(p)
	}
	return nil
}

// Warp maps the corners to the original image and produces the corrected
// raster. A degenerate quad is rejected with *InvalidGeometryError; on any
// error the session stays in Editing.
func (s *Session) Warp(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.beginEditLocked("warp"); err != nil {
		return nil, err
	}

	orig := s.display.ToOriginal(s.quad)
	if err := geometry.ValidateQuad(orig); err != nil {
		return nil, &InvalidGeometryError{Quad: orig, Err: err}
	}
	out, err := s.warper.Warp(ctx, s.src, rectify.PlanWarp(orig))
	if err != nil {
		return nil, fmt.Errorf("warp %s: %w", s.name, err)
	}
	s.result = out
	s.state = Warped
	return out, nil
}

// Result returns the corrected raster.
func (s *Session) Result() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Warped && s.state != Exported {
		return nil, stateError("result", s.state)
	}
	return s.result, nil
}

// RotateResult turns the corrected raster 90 degrees clockwise.
func (s *Session) RotateResult() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Warped {
		return stateError("rotate result", s.state)
	}
	s.result = transform.Rotate90.Apply(s.result)
	return nil
}

// Discard drops the corrected raster and returns to editing.
func (s *Session) Discard() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Warped {
		return stateError("discard", s.state)
	}
	s.result = nil
	s.state = Editing
	return nil
}

// MarkExported records that the corrected raster was written out.
func (s *Session) MarkExported() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Warped {
		return stateError("export", s.state)
	}
	s.state = Exported
	return nil
}

// Reset cancels any detection and forgets the image.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.supersedeLocked()
	s.state = NoImage
	s.origin = OriginNone
	s.name = ""
	s.src = nil
	s.rot = transform.Rotate0
	s.display = transform.Display{}
	s.quad = geometry.DisplayQuad{}
	s.result = nil
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Origin returns where the current corners came from.
func (s *Session) Origin() Origin {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.origin
}

// Rotation returns the current image rotation.
func (s *Session) Rotation() transform.Rotation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rot
}

// Display returns the current display transform.
func (s *Session) Display() transform.Display {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.display
}

// OriginalPoints returns the corners in the pixel space of the unrotated
// source image.
func (s *Session) OriginalPoints() (geometry.OriginalQuad, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasCorners() {
		return geometry.OriginalQuad{}, ErrNoImage
	}
	return s.display.ToOriginal(s.quad), nil
}

// Snapshot returns a copy of the observable state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		State:    s.state,
		Origin:   s.origin,
		Name:     s.name,
		Rotation: s.rot,
	}
	if s.state != NoImage {
		d := s.display
		snap.Display = &d
	}
	if s.hasCorners() {
		q := s.quad
		snap.Points = &q
	}
	return snap
}
