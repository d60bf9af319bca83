package score

import "time"

const (
	DefaultDuration = 600 * time.Millisecond
	DefaultFrame    = 16 * time.Millisecond
)

// Smoothstep eases t in [0,1] with t²(3−2t). Inputs outside the range are
// clamped.
func Smoothstep(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return t * t * (3 - 2*t)
}

// Interpolate returns the eased value between from and to after elapsed of
// duration.
func Interpolate(from, to int, elapsed, duration time.Duration) int {
	if duration <= 0 || elapsed >= duration {
		return to
	}
	if elapsed <= 0 {
		return from
	}
	t := Smoothstep(float64(elapsed) / float64(duration))
	v := float64(from) + float64(to-from)*t
	return clamp(int(v+0.5), 0, 100)
}

// Animation interpolates a displayed Set toward a target. Every Start bumps
// the generation; frames sampled with an older generation are rejected, so
// a newer animation supersedes an in-flight one without a cancel handle.
type Animation struct {
	Duration time.Duration
	Frame    time.Duration

	gen   uint64
	start time.Time
	from  Set
	to    Set
	done  bool
}

// NewAnimation returns an idle animation; zero durations fall back to the
// defaults.
func NewAnimation(duration, frame time.Duration) Animation {
	if duration <= 0 {
		duration = DefaultDuration
	}
	if frame <= 0 {
		frame = DefaultFrame
	}
	return Animation{Duration: duration, Frame: frame, done: true}
}

// Generation is the id of the most recent Start or Stop.
func (a *Animation) Generation() uint64 {
	return a.gen
}

// Start begins a new animation and returns its generation.
func (a *Animation) Start(from, to Set, now time.Time) uint64 {
	a.gen++
	a.start = now
	a.from = from
	a.to = to
	a.done = false
	return a.gen
}

// Stop invalidates any in-flight frames.
func (a *Animation) Stop() {
	a.gen++
	a.done = true
}

// Sample returns the displayed set at now. ok is false when gen is stale or
// the animation already finished; done is true on the final frame.
func (a *Animation) Sample(gen uint64, now time.Time) (s Set, done bool, ok bool) {
	if gen != a.gen || a.done {
		return Set{}, false, false
	}
	elapsed := now.Sub(a.start)
	s = Set{
		Overall:         Interpolate(a.from.Overall, a.to.Overall, elapsed, a.Duration),
		Bug:             Interpolate(a.from.Bug, a.to.Bug, elapsed, a.Duration),
		Maintainability: Interpolate(a.from.Maintainability, a.to.Maintainability, elapsed, a.Duration),
		Style:           Interpolate(a.from.Style, a.to.Style, elapsed, a.Duration),
		Security:        Interpolate(a.from.Security, a.to.Security, elapsed, a.Duration),
	}
	if elapsed >= a.Duration {
		a.done = true
		return a.to, true, true
	}
	return s, false, true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
