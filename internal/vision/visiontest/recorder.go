// Package visiontest wraps a vision.Toolkit to audit handle lifetimes in
// tests and to inject failures at individual primitives.
package visiontest

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/MeKo-Tech/docscan/internal/geometry"
	"github.com/MeKo-Tech/docscan/internal/vision"
)

// Step names a toolkit primitive.
type Step string

const (
	StepFromImage    Step = "from_image"
	StepGrayscale    Step = "grayscale"
	StepGaussianBlur Step = "gaussian_blur"
	StepCanny        Step = "canny"
	StepFindContours Step = "find_contours"
	StepApproxPoly   Step = "approx_poly"
)

// ErrInjected is the error returned by a step configured with FailAt.
var ErrInjected = errors.New("visiontest: injected failure")

// Recorder delegates to an inner toolkit and records every allocation and
// release. Double releases are counted instead of panicking.
type Recorder struct {
	inner vision.Toolkit

	mu             sync.Mutex
	nextID         int
	live           map[int]Step
	allocated      int
	released       int
	doubleReleases int
	failAt         map[Step]error
	panicAt        map[Step]any
}

// NewRecorder wraps inner.
func NewRecorder(inner vision.Toolkit) *Recorder {
	return &Recorder{
		inner:   inner,
		live:    make(map[int]Step),
		failAt:  make(map[Step]error),
		panicAt: make(map[Step]any),
	}
}

// FailAt makes step return err (ErrInjected when err is nil) without
// allocating.
func (r *Recorder) FailAt(step Step, err error) {
	if err == nil {
		err = ErrInjected
	}
	r.mu.Lock()
	r.failAt[step] = err
	r.mu.Unlock()
}

// PanicAt makes step panic with v.
func (r *Recorder) PanicAt(step Step, v any) {
	r.mu.Lock()
	r.panicAt[step] = v
	r.mu.Unlock()
}

// Allocated returns the number of handles handed out.
func (r *Recorder) Allocated() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.allocated
}

// Released returns the number of distinct handles released.
func (r *Recorder) Released() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.released
}

// DoubleReleases returns how many Release calls hit an already released handle.
func (r *Recorder) DoubleReleases() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.doubleReleases
}

// Live lists the steps whose handles are still unreleased.
func (r *Recorder) Live() []Step {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Step, 0, len(r.live))
	for _, s := range r.live {
		out = append(out, s)
	}
	return out
}

// Balanced reports whether every allocation was released exactly once.
func (r *Recorder) Balanced() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live) == 0 && r.doubleReleases == 0 && r.allocated == r.released
}

// String summarises the counters for assertion messages.
func (r *Recorder) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fmt.Sprintf("allocated=%d released=%d double=%d live=%v",
		r.allocated, r.released, r.doubleReleases, r.live)
}

func (r *Recorder) enter(step Step) error {
	r.mu.Lock()
	err := r.failAt[step]
	p, doPanic := r.panicAt[step]
	r.mu.Unlock()
	if doPanic {
		panic(p)
	}
	return err
}

func (r *Recorder) track(step Step, inner vision.Releaser) *tracked {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.allocated++
	r.live[r.nextID] = step
	return &tracked{rec: r, id: r.nextID, inner: inner}
}

type tracked struct {
	rec   *Recorder
	id    int
	inner vision.Releaser
	done  bool
}

func (t *tracked) Release() {
	r := t.rec
	r.mu.Lock()
	if t.done {
		r.doubleReleases++
		r.mu.Unlock()
		return
	}
	t.done = true
	r.released++
	delete(r.live, t.id)
	r.mu.Unlock()
	t.inner.Release()
}

type mat struct {
	*tracked
	m vision.Mat
}

func (m *mat) Size() (int, int) { return m.m.Size() }

type contours struct {
	*tracked
	c vision.Contours
}

func (c *contours) Len() int                 { return c.c.Len() }
func (c *contours) At(i int) vision.Contour { return c.c.At(i) }

type polygon struct {
	*tracked
	p vision.Polygon
}

func (p *polygon) Points() []geometry.Point { return p.p.Points() }

func unwrap(m vision.Mat) vision.Mat {
	if w, ok := m.(*mat); ok {
		return w.m
	}
	return m
}

func (r *Recorder) wrapMat(step Step, m vision.Mat, err error) (vision.Mat, error) {
	if err != nil {
		return nil, err
	}
	return &mat{tracked: r.track(step, m), m: m}, nil
}

func (r *Recorder) FromImage(img image.Image) (vision.Mat, error) {
	if err := r.enter(StepFromImage); err != nil {
		return nil, err
	}
	m, err := r.inner.FromImage(img)
	return r.wrapMat(StepFromImage, m, err)
}

func (r *Recorder) Grayscale(src vision.Mat) (vision.Mat, error) {
	if err := r.enter(StepGrayscale); err != nil {
		return nil, err
	}
	m, err := r.inner.Grayscale(unwrap(src))
	return r.wrapMat(StepGrayscale, m, err)
}

func (r *Recorder) GaussianBlur(src vision.Mat, ksize int) (vision.Mat, error) {
	if err := r.enter(StepGaussianBlur); err != nil {
		return nil, err
	}
	m, err := r.inner.GaussianBlur(unwrap(src), ksize)
	return r.wrapMat(StepGaussianBlur, m, err)
}

func (r *Recorder) Canny(src vision.Mat, low, high float64) (vision.Mat, error) {
	if err := r.enter(StepCanny); err != nil {
		return nil, err
	}
	m, err := r.inner.Canny(unwrap(src), low, high)
	return r.wrapMat(StepCanny, m, err)
}

func (r *Recorder) FindExternalContours(edges vision.Mat) (vision.Contours, error) {
	if err := r.enter(StepFindContours); err != nil {
		return nil, err
	}
	c, err := r.inner.FindExternalContours(unwrap(edges))
	if err != nil {
		return nil, err
	}
	return &contours{tracked: r.track(StepFindContours, c), c: c}, nil
}

func (r *Recorder) ApproxPolyDP(c vision.Contour, epsilon float64) (vision.Polygon, error) {
	if err := r.enter(StepApproxPoly); err != nil {
		return nil, err
	}
	p, err := r.inner.ApproxPolyDP(c, epsilon)
	if err != nil {
		return nil, err
	}
	return &polygon{tracked: r.track(StepApproxPoly, p), p: p}, nil
}

func (r *Recorder) ContourArea(c vision.Contour) float64 { return r.inner.ContourArea(c) }

func (r *Recorder) ArcLength(c vision.Contour) float64 { return r.inner.ArcLength(c) }

var _ vision.Toolkit = (*Recorder)(nil)
