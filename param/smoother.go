package param

// Smoother moves a value linearly toward its target over a fixed number of
// frames. The trajectory depends only on the sequence of targets and the
// frame counts passed to Advance.
type Smoother struct {
	cur       float32
	target    float32
	step      float32
	remaining int
	duration  int
}

// NewSmoother returns a smoother that reaches a new target in duration frames.
// A duration of zero or less jumps immediately.
func NewSmoother(duration int) Smoother {
	return Smoother{duration: duration}
}

// Reset jumps to v with no ramp in progress.
func (s *Smoother) Reset(v float32) {
	s.cur = v
	s.target = v
	s.step = 0
	s.remaining = 0
}

// SetTarget starts a new ramp from the current value. Setting the current
// target again does not restart the ramp.
func (s *Smoother) SetTarget(v float32) {
	if v == s.target {
		return
	}
	s.target = v
	if s.duration <= 0 {
		s.cur = v
		s.remaining = 0
		return
	}
	s.remaining = s.duration
	s.step = (v - s.cur) / float32(s.duration)
}

// Advance moves the ramp by frames and returns the value at the end.
func (s *Smoother) Advance(frames int) float32 {
	if s.remaining <= 0 {
		return s.cur
	}
	if frames >= s.remaining {
		s.cur = s.target
		s.remaining = 0
		return s.cur
	}
	s.cur += s.step * float32(frames)
	s.remaining -= frames
	return s.cur
}

// Value returns the current value.
func (s *Smoother) Value() float32 {
	return s.cur
}

// Target returns the value being approached.
func (s *Smoother) Target() float32 {
	return s.target
}

// Settled reports whether no ramp is in progress.
func (s *Smoother) Settled() bool {
	return s.remaining <= 0
}
