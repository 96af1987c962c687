// Package call runs one simulated video call with a companion: media and peer
// lifecycle, the transcript, presence indicators and the call controls.
package call

import (
	"context"
	"errors"
	"sync"
	"time"

	"companion-call-demo/backend/internal/media"
	"companion-call-demo/backend/internal/models"
	"companion-call-demo/backend/pkg/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// RemotePeer is the connection to the other side of the call
type RemotePeer interface {
	// AttachLocal sends the local tracks to the peer
	AttachLocal(s media.Stream) error
	// RemoteStream produces the remote party's feed
	RemoteStream(ctx context.Context, companion models.CompanionProfile) (media.Feed, error)
	Close() error
}

// describer is implemented by peers that negotiate over SDP
type describer interface {
	LocalDescription() string
}

// PeerFactory builds the peer for a room
type PeerFactory func(ctx context.Context, roomID string) (RemotePeer, error)

// Recorder receives call lifecycle metrics
type Recorder interface {
	CallStarted()
	CallActive()
	// wasActive is false for calls that ended before the companion joined
	CallEnded(state State, wasActive bool, active time.Duration)
	EntryAppended(sender Sender)
	MediaFailure()
}

// Options parameterize a Session. Media and Peers are required.
type Options struct {
	RoomID          string
	ParticipantID   string
	Companion       models.CompanionProfile
	CaptionsEnabled bool

	Media   media.Source
	Peers   PeerFactory
	Phrases PhraseSource
	Clock   Clock
	// Jitter returns a value in [0,1) used to spread reply delays.
	Jitter  func() float64
	Config  Config
	Logger  *logger.Logger
	Metrics Recorder
	Tracer  trace.Tracer

	// OnMessage is called once per appended entry, in append order.
	OnMessage func(Entry)
	// OnEnd is called exactly once when the session ends or fails.
	OnEnd func(EndReport)
	// OnEvent receives every session event in order.
	OnEvent func(Event)
}

// Session is one call. All state is guarded by mu; observer callbacks run
// after mu is released, serialized by emitMu so they see events in order.
// Callbacks must not call back into the Session synchronously; hand events
// off to a channel instead.
type Session struct {
	roomID        string
	participantID string
	companion     models.CompanionProfile

	cfg       Config
	source    media.Source
	peers     PeerFactory
	phrases   PhraseSource
	clock     Clock
	jitter    func() float64
	log       *logger.Logger
	metrics   Recorder
	tracer    trace.Tracer
	onMessage func(Entry)
	onEnd     func(EndReport)
	onEvent   func(Event)

	mu     sync.Mutex
	emitMu sync.Mutex

	state      State
	cause      error
	started    bool
	createdAt  time.Time
	startedAt  time.Time
	duration   time.Duration
	transcript Transcript
	controls   ControlState

	speaking      bool
	thinking      bool
	speakingTimer *timerHandle
	periodicSent  int
	shown         Indicators

	stream media.Stream
	peer   RemotePeer
	feed   media.Feed

	timers  map[*timerHandle]struct{}
	outbox  []Event
	cleanup []func()
}

type timerHandle struct {
	t Timer
}

// New creates a session in the initializing state. Call Start to acquire media.
func New(opts Options) *Session {
	cfg := opts.Config
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	cfg = cfg.withDefaults()

	s := &Session{
		roomID:        opts.RoomID,
		participantID: opts.ParticipantID,
		companion:     opts.Companion.Clone(),
		cfg:           cfg,
		source:        opts.Media,
		peers:         opts.Peers,
		phrases:       opts.Phrases,
		clock:         opts.Clock,
		jitter:        opts.Jitter,
		log:           opts.Logger,
		metrics:       opts.Metrics,
		tracer:        opts.Tracer,
		onMessage:     opts.OnMessage,
		onEnd:         opts.OnEnd,
		onEvent:       opts.OnEvent,
		state:         StateInitializing,
		controls: ControlState{
			VideoEnabled:    true,
			CaptionsEnabled: opts.CaptionsEnabled,
		},
		timers: make(map[*timerHandle]struct{}),
	}

	if s.phrases == nil {
		s.phrases = NewRandomPhrases(nil)
	}
	if s.clock == nil {
		s.clock = RealClock()
	}
	if s.log == nil {
		s.log = logger.GetGlobal()
	}
	s.log = s.log.WithRoom(s.roomID).WithCompanion(s.companion.ID, s.companion.Name)
	if s.metrics == nil {
		s.metrics = noopRecorder{}
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("companion-call-demo/backend/internal/call")
	}
	s.createdAt = s.clock.Now()

	return s
}

// Start acquires local media and builds the peer. Failures move the session
// to failed, release whatever was acquired, and are returned as
// *MediaAcquisitionError or *ConnectionError.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	if s.state.Terminal() {
		s.mu.Unlock()
		return ErrSessionEnded
	}
	s.mu.Unlock()

	ctx, span := s.tracer.Start(ctx, "call.start", trace.WithAttributes(
		attribute.String("call.room_id", s.roomID),
		attribute.String("call.companion_id", s.companion.ID),
	))
	defer span.End()

	s.metrics.CallStarted()

	stream, err := s.acquire(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "media acquisition failed")
		return err
	}

	if err := s.connect(ctx, stream); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "connection failed")
		return err
	}

	span.AddEvent("connecting")
	return nil
}

func (s *Session) acquire(ctx context.Context) (media.Stream, error) {
	stream, err := s.source.Acquire(ctx, media.Constraints{Audio: true, Video: true})

	s.mu.Lock()
	defer s.release()

	if err != nil {
		merr := &MediaAcquisitionError{Err: err}
		s.metrics.MediaFailure()
		s.fail(merr)
		return nil, merr
	}
	if s.state.Terminal() {
		// ended while the devices were being opened
		s.cleanup = append(s.cleanup, stream.Stop)
		return nil, ErrSessionEnded
	}

	s.stream = stream
	s.setState(StateConnecting)
	return stream, nil
}

func (s *Session) connect(ctx context.Context, stream media.Stream) error {
	peer, err := s.peers(ctx, s.roomID)
	if err == nil {
		if aerr := peer.AttachLocal(stream); aerr != nil {
			err = aerr
		}
	}

	s.mu.Lock()
	defer s.release()

	if peer != nil && (err != nil || s.state.Terminal()) {
		s.cleanup = append(s.cleanup, func() { s.closePeer(peer) })
	}
	if err != nil {
		cerr := &ConnectionError{Err: err}
		s.fail(cerr)
		return cerr
	}
	if s.state.Terminal() {
		return ErrSessionEnded
	}

	s.peer = peer
	s.schedule(s.cfg.RemoteJoinDelay, s.remoteJoined)
	return nil
}

// remoteJoined runs when the synthetic remote side arrives
func (s *Session) remoteJoined() {
	peer := s.peer
	companion := s.companion

	// Producing the feed may fetch the avatar, so it runs without the lock.
	s.mu.Unlock()
	feed, err := peer.RemoteStream(context.Background(), companion)
	s.mu.Lock()

	if err != nil {
		s.log.LogError(err, "remote feed unavailable, continuing without video")
	}
	if s.state.Terminal() {
		if feed != nil {
			s.cleanup = append(s.cleanup, func() { _ = feed.Close() })
		}
		return
	}
	s.feed = feed

	s.startedAt = s.clock.Now()
	s.setState(StateActive)
	s.metrics.CallActive()

	s.schedule(s.cfg.TickInterval, s.tick)
	s.companionSays(PhraseGreeting, "", s.cfg.OpeningSpeaking)
	s.schedulePeriodic()
}

func (s *Session) tick() {
	s.updateDuration()
	s.outbox = append(s.outbox, Event{Kind: EventDuration, State: s.state, Duration: s.duration})
	s.schedule(s.cfg.TickInterval, s.tick)
}

func (s *Session) schedulePeriodic() {
	if s.cfg.MaxPeriodicMessages > 0 && s.periodicSent >= s.cfg.MaxPeriodicMessages {
		return
	}
	s.schedule(s.cfg.PeriodicInterval, func() {
		s.periodicSent++
		s.companionSays(PhrasePeriodic, "", s.cfg.PeriodicSpeaking)
		s.schedulePeriodic()
	})
}

// updateDuration recomputes elapsed whole seconds. It never goes backwards.
func (s *Session) updateDuration() {
	if s.state != StateActive {
		return
	}
	d := s.clock.Now().Sub(s.startedAt).Truncate(time.Second)
	if d > s.duration {
		s.duration = d
	}
}

// End terminates the session. Only the first call has any effect; it reports
// whether this call ended the session.
func (s *Session) End() bool {
	s.mu.Lock()
	defer s.release()

	if s.state.Terminal() {
		return false
	}
	s.finish(StateEnded, nil)
	return true
}

func (s *Session) fail(cause error) {
	if s.state.Terminal() {
		return
	}
	s.log.LogError(cause, "call failed", "state", string(s.state))
	s.finish(StateFailed, cause)
}

// finish moves to a terminal state and tears everything down once.
// Must be called with s.mu held on a non-terminal session.
func (s *Session) finish(state State, cause error) {
	s.updateDuration()
	s.cause = cause
	s.setState(state)

	for h := range s.timers {
		h.t.Stop()
	}
	clear(s.timers)
	s.speakingTimer = nil
	s.speaking = false
	s.thinking = false
	s.syncIndicators()

	if stream := s.stream; stream != nil {
		s.cleanup = append(s.cleanup, stream.Stop)
	}
	if feed := s.feed; feed != nil {
		s.cleanup = append(s.cleanup, func() { _ = feed.Close() })
	}
	if peer := s.peer; peer != nil {
		s.cleanup = append(s.cleanup, func() { s.closePeer(peer) })
	}

	s.metrics.CallEnded(state, !s.startedAt.IsZero(), s.duration)

	report := EndReport{RoomID: s.roomID, State: state, Cause: cause, Duration: s.duration}
	s.outbox = append(s.outbox, Event{Kind: EventEnded, State: state, Duration: s.duration, Report: report})
}

func (s *Session) closePeer(p RemotePeer) {
	if err := p.Close(); err != nil {
		s.log.LogError(err, "failed to close peer")
	}
}

func (s *Session) setState(state State) {
	if s.state == state {
		return
	}
	s.log.Info("call state changed", "from", string(s.state), "to", string(state))
	s.state = state
	s.outbox = append(s.outbox, Event{Kind: EventState, State: state})
}

// schedule runs fn with s.mu held after d, unless the session ends first.
// Must be called with s.mu held.
func (s *Session) schedule(d time.Duration, fn func()) *timerHandle {
	h := &timerHandle{}
	s.timers[h] = struct{}{}
	h.t = s.clock.AfterFunc(d, func() {
		s.mu.Lock()
		defer s.release()

		if _, live := s.timers[h]; !live || s.state.Terminal() {
			return
		}
		delete(s.timers, h)
		fn()
	})
	return h
}

func (s *Session) cancel(h *timerHandle) {
	if h == nil {
		return
	}
	if _, live := s.timers[h]; live {
		delete(s.timers, h)
		h.t.Stop()
	}
}

// release unlocks s.mu, runs queued cleanup and then delivers queued events.
// Every mutating method defers it after locking s.mu.
func (s *Session) release() {
	events := s.outbox
	cleanup := s.cleanup
	s.outbox = nil
	s.cleanup = nil

	s.emitMu.Lock()
	s.mu.Unlock()
	defer s.emitMu.Unlock()

	for _, fn := range cleanup {
		fn()
	}
	for _, ev := range events {
		s.deliver(ev)
	}
}

func (s *Session) deliver(ev Event) {
	if ev.Kind == EventTranscript && s.onMessage != nil {
		s.onMessage(ev.Entry)
	}
	if s.onEvent != nil {
		s.onEvent(ev)
	}
	if ev.Kind == EventEnded && s.onEnd != nil {
		s.onEnd(ev.Report)
	}
}

// Snapshot is a point-in-time view of a session
type Snapshot struct {
	RoomID        string                  `json:"roomId"`
	ParticipantID string                  `json:"participantId"`
	Companion     models.CompanionProfile `json:"companion"`
	State         State                   `json:"state"`
	Error         string                  `json:"error,omitempty"`
	CreatedAt     time.Time               `json:"createdAt"`
	StartedAt     *time.Time              `json:"startedAt,omitempty"`
	Duration      string                  `json:"duration"`
	Seconds       int64                   `json:"seconds"`
	Controls      ControlState            `json:"controls"`
	Indicators    Indicators              `json:"indicators"`
	Messages      int                     `json:"messages"`
	LocalSDP      string                  `json:"localSdp,omitempty"`
}

// Snapshot returns the current state for display
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.updateDuration()
	snap := Snapshot{
		RoomID:        s.roomID,
		ParticipantID: s.participantID,
		Companion:     s.companion.Clone(),
		State:         s.state,
		CreatedAt:     s.createdAt,
		Duration:      FormatDuration(s.duration),
		Seconds:       int64(s.duration / time.Second),
		Controls:      s.controls,
		Indicators:    s.indicators(),
		Messages:      s.transcript.Len(),
	}
	if s.cause != nil {
		snap.Error = s.cause.Error()
	}
	if d, ok := s.peer.(describer); ok {
		snap.LocalSDP = d.LocalDescription()
	}
	if !s.startedAt.IsZero() {
		// Round(0) drops the monotonic reading; display uses wall time only.
		at := s.startedAt.Round(0)
		snap.StartedAt = &at
	}
	return snap
}

// RoomID returns the room this session belongs to
func (s *Session) RoomID() string { return s.roomID }

// ParticipantID returns the local participant
func (s *Session) ParticipantID() string { return s.participantID }

// Companion returns a copy of the companion profile
func (s *Session) Companion() models.CompanionProfile { return s.companion.Clone() }

// State returns the current lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the failure cause, if any
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cause
}

// Duration returns elapsed whole seconds since the call became active,
// frozen once the session ends.
func (s *Session) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateDuration()
	return s.duration
}

// Transcript returns the session's transcript
func (s *Session) Transcript() *Transcript { return &s.transcript }

// RemoteFeed returns the companion feed while the call is live, or nil
func (s *Session) RemoteFeed() media.Feed {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return nil
	}
	return s.feed
}

// Indicators returns the current presence flags
func (s *Session) Indicators() Indicators {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indicators()
}

// IsMediaFailure reports whether err came from media acquisition
func IsMediaFailure(err error) bool {
	var m *MediaAcquisitionError
	return errors.As(err, &m)
}

type noopRecorder struct{}

func (noopRecorder) CallStarted()                         {}
func (noopRecorder) CallActive()                          {}
func (noopRecorder) CallEnded(State, bool, time.Duration) {}
func (noopRecorder) EntryAppended(Sender)                 {}
func (noopRecorder) MediaFailure()                        {}
