package vision

// Scope collects handles and releases each of them exactly once.
//
//	scope := vision.NewScope()
//	defer scope.Close()
//	gray, err := tk.Grayscale(src)
//	if err != nil {
//		return err
//	}
//	scope.Track(gray)
type Scope struct {
	handles []Releaser
}

// NewScope returns an empty scope.
func NewScope() *Scope {
	return &Scope{}
}

// Track registers h for release on Close. Nil handles are ignored.
func (s *Scope) Track(h Releaser) {
	if h == nil {
		return
	}
	s.handles = append(s.handles, h)
}

// Release frees h now and stops tracking it. Handles the scope does not track
// are left alone, so a handle is never released twice through the scope.
func (s *Scope) Release(h Releaser) bool {
	for i, tracked := range s.handles {
		if tracked == h {
			s.handles = append(s.handles[:i], s.handles[i+1:]...)
			h.Release()
			return true
		}
	}
	return false
}

// Len returns the number of handles still tracked.
func (s *Scope) Len() int {
	return len(s.handles)
}

// Close releases all tracked handles in reverse acquisition order and
// returns how many were released. Close is idempotent.
func (s *Scope) Close() int {
	n := len(s.handles)
	for i := n - 1; i >= 0; i-- {
		s.handles[i].Release()
	}
	s.handles = nil
	return n
}
