// Package counter implements the per-limb repetition state machine.
//
// A limb starts Bent. It becomes Straight once its elbow angle rises above the
// high threshold, and a repetition is counted when it then drops below the
// low threshold. Angles between the two thresholds never cause a transition,
// so jitter around either cutoff cannot produce extra counts.
package counter

import (
	"errors"
	"fmt"
)

// Default hysteresis thresholds in degrees.
const (
	DefaultLowThreshold  = 60.0
	DefaultHighThreshold = 120.0
)

// ErrInvalidThresholds is returned by Thresholds.Validate.
var ErrInvalidThresholds = errors.New("invalid thresholds")

// Phase is the detected posture of an elbow.
type Phase int

const (
	// Bent is the initial phase.
	Bent Phase = iota
	// Straight means the arm has been fully extended since the last rep.
	Straight
)

// String returns the lowercase phase name.
func (p Phase) String() string {
	switch p {
	case Bent:
		return "bent"
	case Straight:
		return "straight"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// MarshalText encodes the phase as its name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name.
func (p *Phase) UnmarshalText(text []byte) error {
	switch string(text) {
	case "bent":
		*p = Bent
	case "straight":
		*p = Straight
	default:
		return fmt.Errorf("unknown phase %q", text)
	}
	return nil
}

// Thresholds holds the two hysteresis cutoffs.
type Thresholds struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// DefaultThresholds returns the 60/120 degree pair.
func DefaultThresholds() Thresholds {
	return Thresholds{Low: DefaultLowThreshold, High: DefaultHighThreshold}
}

// Validate checks 0 <= Low < High <= 180.
func (t Thresholds) Validate() error {
	if t.Low < 0 || t.High > 180 || !(t.Low < t.High) {
		return fmt.Errorf("%w: low=%v high=%v", ErrInvalidThresholds, t.Low, t.High)
	}
	return nil
}

// State is a snapshot of one limb.
type State struct {
	Phase Phase `json:"phase"`
	Count int   `json:"count"`
}

// Counter is the state machine for one limb. It is not safe for concurrent
// use; callers serialize access.
type Counter struct {
	thresholds Thresholds
	phase      Phase
	count      int
}

// New creates a Counter in the Bent phase with a zero count.
// Invalid thresholds fall back to the defaults.
func New(t Thresholds) *Counter {
	if t.Validate() != nil {
		t = DefaultThresholds()
	}
	return &Counter{thresholds: t, phase: Bent}
}

// Update feeds one elbow angle and reports whether the count was incremented.
// A NaN angle fails every comparison and leaves the state unchanged.
func (c *Counter) Update(angle float64) bool {
	switch c.phase {
	case Straight:
		if angle < c.thresholds.Low {
			c.phase = Bent
			c.count++
			return true
		}
	case Bent:
		if angle > c.thresholds.High {
			c.phase = Straight
		}
	}
	return false
}

// Reset returns the counter to Bent with a zero count.
func (c *Counter) Reset() {
	c.phase = Bent
	c.count = 0
}

// SetThresholds replaces the cutoffs without touching phase or count.
func (c *Counter) SetThresholds(t Thresholds) error {
	if err := t.Validate(); err != nil {
		return err
	}
	c.thresholds = t
	return nil
}

// Thresholds returns the active cutoffs.
func (c *Counter) Thresholds() Thresholds {
	return c.thresholds
}

// Phase returns the current phase.
func (c *Counter) Phase() Phase {
	return c.phase
}

// Count returns the number of completed repetitions.
func (c *Counter) Count() int {
	return c.count
}

// State returns a snapshot of phase and count.
func (c *Counter) State() State {
	return State{Phase: c.phase, Count: c.count}
}
