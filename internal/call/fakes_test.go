package call

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"companion-call-demo/backend/internal/media"
	"companion-call-demo/backend/internal/models"
)

// fakeClock fires timers only when Advance is called
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*fakeTimer
}

type fakeTimer struct {
	c   *fakeClock
	at  time.Time
	seq int
	fn  func()
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &fakeTimer{c: c, at: c.now.Add(d), seq: c.seq, fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	for i, other := range t.c.timers {
		if other == t {
			t.c.timers = append(t.c.timers[:i], t.c.timers[i+1:]...)
			return true
		}
	}
	return false
}

// Advance moves time forward, running due callbacks in time order. Callbacks
// run without the clock lock so they may schedule more timers.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		sort.SliceStable(c.timers, func(i, j int) bool {
			if c.timers[i].at.Equal(c.timers[j].at) {
				return c.timers[i].seq < c.timers[j].seq
			}
			return c.timers[i].at.Before(c.timers[j].at)
		})
		if len(c.timers) == 0 || c.timers[0].at.After(target) {
			c.now = target
			c.mu.Unlock()
			return
		}
		next := c.timers[0]
		c.timers = c.timers[1:]
		c.now = next.at
		c.mu.Unlock()

		next.fn()
	}
}

func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

type fakeTrack struct {
	id      string
	kind    media.Kind
	enabled atomic.Bool
	stops   atomic.Int32
}

func newFakeTrack(kind media.Kind) *fakeTrack {
	t := &fakeTrack{id: string(kind) + "-1", kind: kind}
	t.enabled.Store(true)
	return t
}

func (t *fakeTrack) ID() string        { return t.id }
func (t *fakeTrack) Kind() media.Kind  { return t.kind }
func (t *fakeTrack) Enabled() bool     { return t.enabled.Load() }
func (t *fakeTrack) SetEnabled(b bool) { t.enabled.Store(b) }
func (t *fakeTrack) Stop()             { t.stops.Add(1) }

type fakeStream struct {
	tracks []media.Track
	stops  atomic.Int32
}

func (s *fakeStream) ID() string            { return "stream-1" }
func (s *fakeStream) Tracks() []media.Track { return s.tracks }
func (s *fakeStream) Stop() {
	s.stops.Add(1)
	for _, t := range s.tracks {
		t.Stop()
	}
}

type fakeSource struct {
	err      error
	stream   *fakeStream
	gate     chan struct{}
	entered  chan struct{}
	acquired atomic.Int32
}

func newFakeSource(kinds ...media.Kind) *fakeSource {
	if len(kinds) == 0 {
		kinds = []media.Kind{media.KindAudio, media.KindVideo}
	}
	s := &fakeStream{}
	for _, k := range kinds {
		s.tracks = append(s.tracks, newFakeTrack(k))
	}
	return &fakeSource{stream: s}
}

func (f *fakeSource) Acquire(ctx context.Context, _ media.Constraints) (media.Stream, error) {
	if f.entered != nil {
		close(f.entered)
	}
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return nil, f.err
	}
	f.acquired.Add(1)
	return f.stream, nil
}

type fakeFeed struct {
	closes atomic.Int32
}

func (f *fakeFeed) ID() string   { return "feed-1" }
func (f *fakeFeed) Close() error { f.closes.Add(1); return nil }

type fakePeer struct {
	attachErr error
	feedErr   error
	attached  atomic.Int32
	closes    atomic.Int32
	feed      fakeFeed
}

func (p *fakePeer) AttachLocal(media.Stream) error {
	p.attached.Add(1)
	return p.attachErr
}

func (p *fakePeer) RemoteStream(context.Context, models.CompanionProfile) (media.Feed, error) {
	if p.feedErr != nil {
		return nil, p.feedErr
	}
	return &p.feed, nil
}

func (p *fakePeer) Close() error {
	p.closes.Add(1)
	return nil
}

func peerFactory(p *fakePeer, err error) PeerFactory {
	return func(context.Context, string) (RemotePeer, error) {
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

// echoPhrases makes companion text predictable
type echoPhrases struct{}

func (echoPhrases) Pick(ctx PhraseContext) string {
	switch ctx.Kind {
	case PhraseGreeting:
		return Greeting(ctx.Companion)
	case PhrasePeriodic:
		return "periodic"
	default:
		return "re: " + ctx.UserText
	}
}

func alex() models.CompanionProfile {
	return models.CompanionProfile{
		ID:          "1",
		Name:        "Alex",
		Specialties: []string{"Mathematics", "Physics", "Chemistry"},
	}
}

// recorder captures callbacks
type recorder struct {
	mu       sync.Mutex
	messages []Entry
	events   []Event
	ends     []EndReport
}

func (r *recorder) onMessage(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, e)
}

func (r *recorder) onEvent(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) onEnd(rep EndReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ends = append(r.ends, rep)
}

func (r *recorder) endCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ends)
}

func (r *recorder) kinds(kind EventKind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

var errDenied = errors.New("denied")

type harness struct {
	clock  *fakeClock
	source *fakeSource
	peer   *fakePeer
	rec    *recorder
	sess   *Session
}

func newHarness(mutate func(*Options)) *harness {
	h := &harness{
		clock:  newFakeClock(),
		source: newFakeSource(),
		peer:   &fakePeer{},
		rec:    &recorder{},
	}
	cfg := DefaultConfig()
	cfg.MaxPeriodicMessages = 1
	opts := Options{
		RoomID:        "room_1",
		ParticipantID: "user-1",
		Companion:     alex(),
		Media:         h.source,
		Peers:         peerFactory(h.peer, nil),
		Phrases:       echoPhrases{},
		Clock:         h.clock,
		Jitter:        func() float64 { return 0.5 },
		Config:        cfg,
		OnMessage:     h.rec.onMessage,
		OnEvent:       h.rec.onEvent,
		OnEnd:         h.rec.onEnd,
	}
	if mutate != nil {
		mutate(&opts)
	}
	h.sess = New(opts)
	return h
}

func (h *harness) entries() []Entry {
	return h.sess.Transcript().Entries()
}

func countSender(entries []Entry, sender Sender) int {
	n := 0
	for _, e := range entries {
		if e.Sender == sender {
			n++
		}
	}
	return n
}
