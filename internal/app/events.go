package app

import (
	"time"

	"github.com/ayusman/curlcount/internal/counter"
)

// Limb identifies a tracked arm.
type Limb string

const (
	LimbLeft  Limb = "left"
	LimbRight Limb = "right"
)

// EventType distinguishes count changes from lifecycle changes.
type EventType string

const (
	// EventCount is emitted when a limb completes a repetition.
	EventCount EventType = "count"
	// EventState is emitted on start, stop and reset.
	EventState EventType = "state"
)

// Event is delivered to subscribers after the frame or command that caused it
// has been fully applied.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	Time      time.Time `json:"time"`

	// Set for EventCount.
	Limb  Limb `json:"limb,omitempty"`
	Count int  `json:"count,omitempty"`

	// Set for EventState.
	Snapshot *Snapshot `json:"snapshot,omitempty"`
}

// Snapshot is the externally visible session state.
type Snapshot struct {
	Running   bool          `json:"running"`
	SessionID string        `json:"session_id"`
	Source    Source        `json:"source"`
	Left      counter.State `json:"left"`
	Right     counter.State `json:"right"`
}

// Count returns the count for limb.
func (s Snapshot) Count(limb Limb) int {
	if limb == LimbRight {
		return s.Right.Count
	}
	return s.Left.Count
}

// Listener receives session events. Listeners run on the goroutine that
// produced the event and must not block.
type Listener func(Event)
