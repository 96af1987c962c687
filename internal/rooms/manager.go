// Package rooms tracks the live call sessions of this instance and the
// room claims that keep two sessions from sharing a room.
package rooms

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"companion-call-demo/backend/internal/call"
	"companion-call-demo/backend/internal/media"
	"companion-call-demo/backend/internal/models"
	"companion-call-demo/backend/pkg/logger"
)

const releaseTimeout = 5 * time.Second

// Options configure a Manager. Peers is required.
type Options struct {
	Claimer Claimer
	Peers   call.PeerFactory
	// Devices simulates each participant's capture devices; nil uses
	// media.DefaultDeviceOptions
	Devices *media.DeviceOptions
	Config  call.Config
	Phrases call.PhraseSource
	Clock   call.Clock
	Logger  *logger.Logger
	Metrics call.Recorder
	Tracer  trace.Tracer
}

// OpenRequest describes a session to create
type OpenRequest struct {
	RoomID        string
	ParticipantID string
	Companion     models.CompanionProfile
	Captions      bool
	// OnEvent receives the session's events; see call.Options.OnEvent
	OnEvent func(call.Event)
}

// Manager owns the live sessions
type Manager struct {
	opts     Options
	owner    string
	log      *logger.Logger
	now      func() time.Time
	claimer  Claimer
	sessions map[string]*call.Session
	devices  map[string]*media.DeviceSource
	mu       sync.Mutex
}

// NewManager creates a manager. Claims default to in-memory.
func NewManager(opts Options) *Manager {
	if opts.Claimer == nil {
		opts.Claimer = NewMemoryClaimer()
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetGlobal()
	}
	if opts.Devices == nil {
		d := media.DefaultDeviceOptions()
		opts.Devices = &d
	}

	return &Manager{
		opts:     opts,
		owner:    "instance-" + uuid.NewString(),
		log:      opts.Logger,
		now:      time.Now,
		claimer:  opts.Claimer,
		sessions: make(map[string]*call.Session),
		devices:  make(map[string]*media.DeviceSource),
	}
}

// NewRoomID mints a fresh room id
func (m *Manager) NewRoomID() string {
	return NewRoomID(m.now(), nil)
}

// Open claims the room and creates its session. The session is not started.
func (m *Manager) Open(ctx context.Context, req OpenRequest) (*call.Session, error) {
	if err := req.Companion.Validate(); err != nil {
		return nil, &InvalidCompanionError{Err: err}
	}
	if req.RoomID == "" {
		req.RoomID = m.NewRoomID()
	}
	if req.ParticipantID == "" {
		req.ParticipantID = "participant-" + uuid.NewString()
	}

	if err := m.claimer.Claim(ctx, req.RoomID, m.owner); err != nil {
		return nil, err
	}

	log := m.log.WithRoom(req.RoomID)
	var sess *call.Session
	sess = call.New(call.Options{
		RoomID:          req.RoomID,
		ParticipantID:   req.ParticipantID,
		Companion:       req.Companion,
		CaptionsEnabled: req.Captions,
		Media:           m.deviceFor(req.ParticipantID),
		Peers:           m.opts.Peers,
		Phrases:         m.opts.Phrases,
		Clock:           m.opts.Clock,
		Config:          m.opts.Config,
		Logger:          m.log,
		Metrics:         m.opts.Metrics,
		Tracer:          m.opts.Tracer,
		OnMessage: func(e call.Entry) {
			log.Debug("transcript entry", "from", string(e.Sender), "entry_id", e.ID)
		},
		OnEnd: func(r call.EndReport) {
			m.remove(sess, req.ParticipantID)
			log.Info("call ended", "state", string(r.State), "duration", call.FormatDuration(r.Duration))
		},
		OnEvent: req.OnEvent,
	})

	m.mu.Lock()
	m.sessions[req.RoomID] = sess
	m.mu.Unlock()

	log.Info("call opened", "participant_id", req.ParticipantID, "companion_id", req.Companion.ID)
	return sess, nil
}

// Get returns the live session for roomID
func (m *Manager) Get(roomID string) (*call.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[roomID]
	if !ok {
		return nil, &CallNotFoundError{RoomID: roomID}
	}
	return sess, nil
}

// List returns snapshots of every live session, oldest first
func (m *Manager) List() []call.Snapshot {
	m.mu.Lock()
	sessions := make([]*call.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	out := make([]call.Snapshot, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Snapshot())
	}
	slices.SortFunc(out, func(a, b call.Snapshot) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.RoomID, b.RoomID)
	})
	return out
}

// Count returns the number of live sessions
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// End ends the session in roomID
func (m *Manager) End(roomID string) error {
	sess, err := m.Get(roomID)
	if err != nil {
		return err
	}
	sess.End()
	return nil
}

// Shutdown ends every live session
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := make([]*call.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.End()
	}
}

func (m *Manager) deviceFor(participantID string) *media.DeviceSource {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[participantID]
	if !ok {
		d = media.NewDeviceSource(*m.opts.Devices)
		m.devices[participantID] = d
	}
	return d
}

// remove drops an ended session and gives its room back
func (m *Manager) remove(sess *call.Session, participantID string) {
	roomID := sess.RoomID()

	m.mu.Lock()
	if m.sessions[roomID] == sess {
		delete(m.sessions, roomID)
	}
	if d, ok := m.devices[participantID]; ok && !d.Busy() && !m.participantActive(participantID) {
		delete(m.devices, participantID)
	}
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	if err := m.claimer.Release(ctx, roomID, m.owner); err != nil {
		m.log.LogError(err, "failed to release room claim", "room_id", roomID)
	}
}

// participantActive reports whether participantID still has a live session.
// Must be called with m.mu held.
func (m *Manager) participantActive(participantID string) bool {
	for _, s := range m.sessions {
		if s.ParticipantID() == participantID {
			return true
		}
	}
	return false
}
