package call

import (
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SendUserMessage appends a user entry and schedules one companion reply.
// Blank or whitespace-only text is ignored. Sending on an ended or failed
// session returns ErrSessionEnded.
func (s *Session) SendUserMessage(text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	s.mu.Lock()
	defer s.release()

	if s.state.Terminal() {
		return ErrSessionEnded
	}

	s.appendEntry(SenderUser, text)

	s.thinking = true
	s.syncIndicators()
	s.schedule(s.replyDelay(), func() {
		// any reply ends "thinking", even with another still pending
		s.thinking = false
		s.companionSays(PhraseReply, text, s.cfg.ReplySpeaking)
	})
	return nil
}

// Append adds an entry built elsewhere to the transcript and notifies observers.
func (s *Session) Append(sender Sender, text string) (Entry, error) {
	s.mu.Lock()
	defer s.release()

	if s.state.Terminal() {
		return Entry{}, ErrSessionEnded
	}
	return s.appendEntry(sender, text), nil
}

// replyDelay is uniform in [ReplyDelayMin, ReplyDelayMax)
func (s *Session) replyDelay() time.Duration {
	j := rand.Float64()
	if s.jitter != nil {
		j = s.jitter()
	}
	j = math.Max(0, j)

	span := s.cfg.ReplyDelayMax - s.cfg.ReplyDelayMin
	d := s.cfg.ReplyDelayMin + time.Duration(j*float64(span))
	if span > 0 && d >= s.cfg.ReplyDelayMax {
		d = s.cfg.ReplyDelayMax - 1
	}
	return d
}

// companionSays appends a companion line and asserts speaking for window.
// Must be called with s.mu held.
func (s *Session) companionSays(kind PhraseKind, userText string, window time.Duration) {
	text := s.phrases.Pick(PhraseContext{Kind: kind, Companion: s.companion, UserText: userText})
	s.appendEntry(SenderCompanion, text)

	s.speaking = true
	s.cancel(s.speakingTimer)
	s.speakingTimer = s.schedule(window, func() {
		s.speakingTimer = nil
		s.speaking = false
		s.syncIndicators()
	})
	s.syncIndicators()
}

func (s *Session) appendEntry(sender Sender, text string) Entry {
	e := Entry{
		ID:        uuid.NewString(),
		Sender:    sender,
		Text:      text,
		Timestamp: s.clock.Now().Round(0),
	}
	s.transcript.Append(e)
	s.metrics.EntryAppended(sender)
	s.outbox = append(s.outbox, Event{Kind: EventTranscript, State: s.state, Entry: e})
	return e
}

func (s *Session) indicators() Indicators {
	ind := Indicators{Speaking: s.speaking, Thinking: s.thinking}
	if ind.Speaking && s.controls.CaptionsEnabled {
		ind.Caption = CaptionText
	}
	return ind
}

// syncIndicators queues an indicator event when the flags changed
func (s *Session) syncIndicators() {
	ind := s.indicators()
	if ind == s.shown {
		return
	}
	s.shown = ind
	s.outbox = append(s.outbox, Event{Kind: EventIndicator, State: s.state, Indicators: ind})
}
