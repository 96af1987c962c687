package ws

import (
	"encoding/json"

	"companion-call-demo/backend/internal/call"
	apperrors "companion-call-demo/backend/pkg/errors"
)

// Message types sent by the client
const (
	TypeChat   = "chat"
	TypeToggle = "toggle"
	TypeEnd    = "end"
	TypePing   = "ping"
)

// Message types sent by the server
const (
	TypeState      = "state"
	TypeTranscript = "transcript"
	TypeIndicator  = "indicator"
	TypeDuration   = "duration"
	TypeControls   = "controls"
	TypeEnded      = "ended"
	TypeError      = "error"
	TypePong       = "pong"
)

// Message is the envelope for every frame in both directions
type Message struct {
	Type    string `json:"type"`
	Content any    `json:"content,omitempty"`
}

// Inbound is a client frame with its content left raw until the type is known
type Inbound struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content,omitempty"`
}

// ChatContent is the content of a chat frame
type ChatContent struct {
	Text string `json:"text"`
}

// ToggleContent is the content of a toggle frame
type ToggleContent struct {
	Control call.Control `json:"control"`
}

// StateContent reports a lifecycle transition
type StateContent struct {
	State call.State `json:"state"`
}

// DurationContent is the elapsed active time
type DurationContent struct {
	Duration string `json:"duration"`
	Seconds  int64  `json:"seconds"`
}

// EndedContent is sent once when the call reaches a terminal state
type EndedContent struct {
	State    call.State `json:"state"`
	Duration string     `json:"duration"`
	Seconds  int64      `json:"seconds"`
}

// ErrorContent carries an error code and message
type ErrorContent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func errorMessage(err error) Message {
	appErr := apperrors.FromError(err)
	return Message{Type: TypeError, Content: ErrorContent{Code: appErr.Code, Message: appErr.Message}}
}

// eventMessages maps a session event onto the frames sent for it
func eventMessages(ev call.Event) []Message {
	switch ev.Kind {
	case call.EventState:
		return []Message{{Type: TypeState, Content: StateContent{State: ev.State}}}
	case call.EventTranscript:
		return []Message{{Type: TypeTranscript, Content: ev.Entry}}
	case call.EventIndicator:
		return []Message{{Type: TypeIndicator, Content: ev.Indicators}}
	case call.EventDuration:
		return []Message{{Type: TypeDuration, Content: DurationContent{
			Duration: call.FormatDuration(ev.Duration),
			Seconds:  int64(ev.Duration.Seconds()),
		}}}
	case call.EventControls:
		return []Message{{Type: TypeControls, Content: ev.Controls}}
	case call.EventEnded:
		var out []Message
		if ev.Report.Cause != nil {
			out = append(out, errorMessage(ev.Report.Cause))
		}
		return append(out, Message{Type: TypeEnded, Content: EndedContent{
			State:    ev.Report.State,
			Duration: call.FormatDuration(ev.Report.Duration),
			Seconds:  int64(ev.Report.Duration.Seconds()),
		}})
	}
	return nil
}
