package call

import "companion-call-demo/backend/internal/media"

// ControlState holds the independent call control flags
type ControlState struct {
	Muted            bool `json:"muted"`
	VideoEnabled     bool `json:"videoEnabled"`
	CaptionsEnabled  bool `json:"captionsEnabled"`
	ChatPanelVisible bool `json:"chatPanelVisible"`
	Fullscreen       bool `json:"fullscreen"`
}

// Control names a toggle
type Control string

const (
	ControlMute       Control = "mute"
	ControlVideo      Control = "video"
	ControlCaptions   Control = "captions"
	ControlChatPanel  Control = "chat"
	ControlFullscreen Control = "fullscreen"
)

// Toggle dispatches by control name
func (s *Session) Toggle(c Control) (ControlState, bool) {
	switch c {
	case ControlMute:
		return s.ToggleMute(), true
	case ControlVideo:
		return s.ToggleVideo(), true
	case ControlCaptions:
		return s.ToggleCaptions(), true
	case ControlChatPanel:
		return s.ToggleChatPanel(), true
	case ControlFullscreen:
		return s.ToggleFullscreen(), true
	}
	return s.Controls(), false
}

// ToggleMute flips muted and the local audio track. No-op without an audio track.
func (s *Session) ToggleMute() ControlState {
	s.mu.Lock()
	defer s.release()

	if s.flipTrack(media.KindAudio) {
		s.controls.Muted = !s.controls.Muted
		s.emitControls()
	}
	return s.controls
}

// ToggleVideo flips video and the local video track. No-op without a video track.
func (s *Session) ToggleVideo() ControlState {
	s.mu.Lock()
	defer s.release()

	if s.flipTrack(media.KindVideo) {
		s.controls.VideoEnabled = !s.controls.VideoEnabled
		s.emitControls()
	}
	return s.controls
}

// ToggleCaptions flips captions
func (s *Session) ToggleCaptions() ControlState {
	return s.flipFlag(func(c *ControlState) { c.CaptionsEnabled = !c.CaptionsEnabled })
}

// ToggleChatPanel flips chat panel visibility
func (s *Session) ToggleChatPanel() ControlState {
	return s.flipFlag(func(c *ControlState) { c.ChatPanelVisible = !c.ChatPanelVisible })
}

// ToggleFullscreen flips fullscreen
func (s *Session) ToggleFullscreen() ControlState {
	return s.flipFlag(func(c *ControlState) { c.Fullscreen = !c.Fullscreen })
}

// Controls returns the current flags
func (s *Session) Controls() ControlState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.controls
}

func (s *Session) flipFlag(flip func(*ControlState)) ControlState {
	s.mu.Lock()
	defer s.release()

	if s.state.Terminal() {
		return s.controls
	}
	flip(&s.controls)
	s.emitControls()
	s.syncIndicators()
	return s.controls
}

// flipTrack inverts the enabled flag of the local track of kind.
// Must be called with s.mu held.
func (s *Session) flipTrack(kind media.Kind) bool {
	if s.state.Terminal() {
		return false
	}
	t := media.TrackOf(s.stream, kind)
	if t == nil {
		return false
	}
	t.SetEnabled(!t.Enabled())
	return true
}

func (s *Session) emitControls() {
	s.outbox = append(s.outbox, Event{Kind: EventControls, State: s.state, Controls: s.controls})
}
