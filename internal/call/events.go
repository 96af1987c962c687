package call

import (
	"fmt"
	"time"
)

// State is the lifecycle state of a session
type State string

const (
	StateInitializing State = "initializing"
	StateConnecting   State = "connecting"
	StateActive       State = "active"
	StateEnded        State = "ended"
	StateFailed       State = "failed"
)

// Terminal reports whether no further transitions are possible
func (s State) Terminal() bool {
	return s == StateEnded || s == StateFailed
}

// CaptionText is shown while captions are on and the companion speaks
const CaptionText = "AI Companion is speaking..."

// Indicators are the transient companion presence flags
type Indicators struct {
	Speaking bool   `json:"speaking"`
	Thinking bool   `json:"thinking"`
	Caption  string `json:"caption,omitempty"`
}

// EventKind classifies session events
type EventKind string

const (
	EventState      EventKind = "state"
	EventTranscript EventKind = "transcript"
	EventIndicator  EventKind = "indicator"
	EventDuration   EventKind = "duration"
	EventControls   EventKind = "controls"
	EventEnded      EventKind = "ended"
)

// Event is delivered to Options.OnEvent in the order things happened
type Event struct {
	Kind       EventKind
	State      State
	Entry      Entry
	Indicators Indicators
	Duration   time.Duration
	Controls   ControlState
	Report     EndReport
}

// EndReport is handed to Options.OnEnd exactly once
type EndReport struct {
	RoomID   string        `json:"roomId"`
	State    State         `json:"state"`
	Cause    error         `json:"-"`
	Duration time.Duration `json:"-"`
	// Recording is always nil; calls are not recorded.
	Recording []byte `json:"-"`
}

// FormatDuration renders whole seconds as MM:SS
func FormatDuration(d time.Duration) string {
	secs := int64(d / time.Second)
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
