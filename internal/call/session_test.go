package call

import (
	"context"
	"errors"
	"testing"
	"time"

	"companion-call-demo/backend/internal/media"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomOneWithAlex(t *testing.T) {
	h := newHarness(nil)
	require.NoError(t, h.sess.Start(context.Background()))
	assert.Equal(t, StateConnecting, h.sess.State())
	assert.Empty(t, h.entries())

	h.clock.Advance(2 * time.Second)
	require.Equal(t, StateActive, h.sess.State())

	entries := h.entries()
	require.Len(t, entries, 1)
	assert.Equal(t, SenderCompanion, entries[0].Sender)
	assert.Contains(t, entries[0].Text, "Alex")

	require.NoError(t, h.sess.SendUserMessage("hi"))
	entries = h.entries()
	require.Len(t, entries, 2)
	assert.Equal(t, SenderUser, entries[1].Sender)
	assert.Equal(t, "hi", entries[1].Text)

	require.NoError(t, h.sess.SendUserMessage(""))
	assert.Len(t, h.entries(), 2)

	h.clock.Advance(4500 * time.Millisecond)
	entries = h.entries()
	require.Len(t, entries, 3)
	assert.Equal(t, SenderCompanion, entries[2].Sender)
}

func TestGreetingUsesDefaultPhrases(t *testing.T) {
	h := newHarness(func(o *Options) { o.Phrases = nil })
	require.NoError(t, h.sess.Start(context.Background()))
	h.clock.Advance(2 * time.Second)

	entries := h.entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "Hello! I'm Alex. I'm excited to help you learn today. What would you like to explore?", entries[0].Text)
}

func TestBlankMessagesAreIgnored(t *testing.T) {
	h := newHarness(nil)
	require.NoError(t, h.sess.Start(context.Background()))
	h.clock.Advance(2 * time.Second)
	before := h.clock.pending()

	for _, text := range []string{"", " ", "\t\n", "   \r\n  "} {
		require.NoError(t, h.sess.SendUserMessage(text))
	}

	assert.Len(t, h.entries(), 1)
	assert.Equal(t, before, h.clock.pending())
	assert.False(t, h.sess.Indicators().Thinking)
}

func TestReplyArrivesWithinWindow(t *testing.T) {
	for _, tc := range []struct {
		name   string
		jitter float64
		delay  time.Duration
	}{
		{"earliest", 0, 1500 * time.Millisecond},
		{"middle", 0.5, 3000 * time.Millisecond},
		{"out of range jitter is clamped", 1.0, 4500*time.Millisecond - time.Nanosecond},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(func(o *Options) { o.Jitter = func() float64 { return tc.jitter } })
			require.NoError(t, h.sess.Start(context.Background()))
			h.clock.Advance(2 * time.Second)

			require.NoError(t, h.sess.SendUserMessage("question"))
			sentAt := h.entries()[1].Timestamp

			h.clock.Advance(tc.delay - time.Nanosecond)
			assert.Len(t, h.entries(), 2)
			assert.True(t, h.sess.Indicators().Thinking)

			h.clock.Advance(time.Nanosecond)
			entries := h.entries()
			require.Len(t, entries, 3)
			reply := entries[2]
			assert.Equal(t, SenderCompanion, reply.Sender)
			assert.Equal(t, "re: question", reply.Text)

			gap := reply.Timestamp.Sub(sentAt)
			assert.GreaterOrEqual(t, gap, 1500*time.Millisecond)
			assert.Less(t, gap, 4500*time.Millisecond)
		})
	}
}

func TestThinkingAndSpeakingIndicators(t *testing.T) {
	h := newHarness(func(o *Options) { o.Jitter = func() float64 { return 0 } })
	require.NoError(t, h.sess.Start(context.Background()))
	h.clock.Advance(2 * time.Second)

	// opening greeting speaks for 3s
	assert.True(t, h.sess.Indicators().Speaking)
	h.clock.Advance(3 * time.Second)
	assert.False(t, h.sess.Indicators().Speaking)

	require.NoError(t, h.sess.SendUserMessage("one"))
	require.NoError(t, h.sess.SendUserMessage("two"))
	assert.True(t, h.sess.Indicators().Thinking)

	h.clock.Advance(1500 * time.Millisecond)
	ind := h.sess.Indicators()
	assert.False(t, ind.Thinking)
	assert.True(t, ind.Speaking)

	h.clock.Advance(4*time.Second - time.Millisecond)
	assert.True(t, h.sess.Indicators().Speaking)
	h.clock.Advance(time.Millisecond)
	assert.False(t, h.sess.Indicators().Speaking)
}

func TestAnyReplyClearsThinking(t *testing.T) {
	jitters := []float64{0.0, 0.9}
	h := newHarness(func(o *Options) {
		o.Jitter = func() float64 {
			j := jitters[0]
			jitters = jitters[1:]
			return j
		}
	})
	require.NoError(t, h.sess.Start(context.Background()))
	h.clock.Advance(2 * time.Second)

	require.NoError(t, h.sess.SendUserMessage("one"))
	require.NoError(t, h.sess.SendUserMessage("two"))
	assert.True(t, h.sess.Indicators().Thinking)

	// first reply lands while the second is still pending
	h.clock.Advance(1500 * time.Millisecond)
	assert.Len(t, h.entries(), 4)
	assert.False(t, h.sess.Indicators().Thinking)

	h.clock.Advance(3 * time.Second)
	assert.Len(t, h.entries(), 5)
	assert.False(t, h.sess.Indicators().Thinking)
}

func TestRepliesMayInterleave(t *testing.T) {
	jitters := []float64{0.9, 0.0}
	h := newHarness(func(o *Options) {
		o.Jitter = func() float64 {
			j := jitters[0]
			jitters = jitters[1:]
			return j
		}
	})
	require.NoError(t, h.sess.Start(context.Background()))
	h.clock.Advance(2 * time.Second)

	require.NoError(t, h.sess.SendUserMessage("first"))
	require.NoError(t, h.sess.SendUserMessage("second"))
	h.clock.Advance(5 * time.Second)

	var texts []string
	for e := range h.sess.Transcript().All() {
		texts = append(texts, e.Text)
	}
	assert.Equal(t, []string{
		"Hello! I'm Alex. I'm excited to help you learn today. What would you like to explore?",
		"first",
		"second",
		"re: second",
		"re: first",
	}, texts)
}

func TestOneReplyPerUserMessage(t *testing.T) {
	h := newHarness(nil)
	require.NoError(t, h.sess.Start(context.Background()))
	h.clock.Advance(2 * time.Second)

	for i := 0; i < 5; i++ {
		require.NoError(t, h.sess.SendUserMessage("msg"))
		h.clock.Advance(200 * time.Millisecond)
	}
	h.clock.Advance(10 * time.Second)

	entries := h.entries()
	assert.Equal(t, 5, countSender(entries, SenderUser))
	// greeting + five replies; the single periodic message is 30s out
	assert.Equal(t, 6, countSender(entries, SenderCompanion))
}

func TestOnMessageMatchesAppendOrder(t *testing.T) {
	h := newHarness(nil)
	require.NoError(t, h.sess.Start(context.Background()))
	h.clock.Advance(2 * time.Second)
	require.NoError(t, h.sess.SendUserMessage("hello"))
	h.clock.Advance(40 * time.Second)

	assert.Equal(t, h.entries(), h.rec.messages)
	assert.Len(t, h.rec.kinds(EventTranscript), len(h.rec.messages))
}

func TestPeriodicMessagesAreCapped(t *testing.T) {
	h := newHarness(func(o *Options) { o.Config.MaxPeriodicMessages = 2 })
	require.NoError(t, h.sess.Start(context.Background()))
	h.clock.Advance(2 * time.Second)

	h.clock.Advance(29 * time.Second)
	assert.Len(t, h.entries(), 1)

	h.clock.Advance(time.Second)
	assert.Len(t, h.entries(), 2)
	assert.Equal(t, "periodic", h.entries()[1].Text)

	h.clock.Advance(5 * time.Minute)
	assert.Len(t, h.entries(), 3)
}

func TestPeriodicMessagesUnboundedByDefault(t *testing.T) {
	h := newHarness(func(o *Options) { o.Config.MaxPeriodicMessages = 0 })
	require.NoError(t, h.sess.Start(context.Background()))
	h.clock.Advance(2 * time.Second)

	h.clock.Advance(5 * time.Minute)
	assert.Len(t, h.entries(), 11)
	h.sess.End()
}

func TestDurationIsMonotonicAndFrozen(t *testing.T) {
	h := newHarness(nil)
	require.NoError(t, h.sess.Start(context.Background()))
	assert.Zero(t, h.sess.Duration())

	h.clock.Advance(2 * time.Second)
	assert.Zero(t, h.sess.Duration())

	var last time.Duration
	for i := 0; i < 8; i++ {
		h.clock.Advance(700 * time.Millisecond)
		d := h.sess.Duration()
		assert.GreaterOrEqual(t, d, last)
		assert.Zero(t, d%time.Second)
		last = d
	}
	assert.Equal(t, 5*time.Second, last)

	ticks := h.rec.kinds(EventDuration)
	require.NotEmpty(t, ticks)
	for i := 1; i < len(ticks); i++ {
		assert.GreaterOrEqual(t, ticks[i].Duration, ticks[i-1].Duration)
	}

	h.sess.End()
	h.clock.Advance(time.Minute)
	assert.Equal(t, last, h.sess.Duration())
	assert.Equal(t, "00:05", h.sess.Snapshot().Duration)
	assert.Len(t, h.rec.kinds(EventDuration), len(ticks))
}

func TestEndRunsTeardownOnce(t *testing.T) {
	h := newHarness(nil)
	require.NoError(t, h.sess.Start(context.Background()))
	h.clock.Advance(2 * time.Second)
	require.NoError(t, h.sess.SendUserMessage("pending"))

	assert.True(t, h.sess.End())
	assert.False(t, h.sess.End())
	assert.False(t, h.sess.End())

	assert.Equal(t, StateEnded, h.sess.State())
	assert.Equal(t, 1, h.rec.endCount())
	assert.Equal(t, StateEnded, h.rec.ends[0].State)
	assert.Nil(t, h.rec.ends[0].Recording)
	assert.EqualValues(t, 1, h.source.stream.stops.Load())
	assert.EqualValues(t, 1, h.peer.closes.Load())
	assert.EqualValues(t, 1, h.peer.feed.closes.Load())
	assert.Zero(t, h.clock.pending())

	// pending reply and periodic timers are gone
	n := len(h.entries())
	h.clock.Advance(time.Hour)
	assert.Len(t, h.entries(), n)
	assert.Len(t, h.rec.kinds(EventEnded), 1)

	assert.ErrorIs(t, h.sess.SendUserMessage("late"), ErrSessionEnded)
	_, err := h.sess.Append(SenderUser, "late")
	assert.ErrorIs(t, err, ErrSessionEnded)
}

func TestEndBeforeStart(t *testing.T) {
	h := newHarness(nil)

	assert.True(t, h.sess.End())
	assert.ErrorIs(t, h.sess.Start(context.Background()), ErrSessionEnded)
	assert.Zero(t, h.source.acquired.Load())
	assert.Equal(t, 1, h.rec.endCount())
}

func TestStartTwice(t *testing.T) {
	h := newHarness(nil)
	require.NoError(t, h.sess.Start(context.Background()))
	assert.ErrorIs(t, h.sess.Start(context.Background()), ErrAlreadyStarted)
	h.sess.End()
}

func TestEndDuringConnecting(t *testing.T) {
	h := newHarness(nil)
	require.NoError(t, h.sess.Start(context.Background()))

	h.sess.End()
	h.clock.Advance(10 * time.Second)

	assert.Equal(t, StateEnded, h.sess.State())
	assert.Empty(t, h.entries())
	assert.EqualValues(t, 1, h.source.stream.stops.Load())
	assert.EqualValues(t, 1, h.peer.closes.Load())
	assert.Zero(t, h.peer.feed.closes.Load())
}

func TestEndWhileAcquiringReleasesDevices(t *testing.T) {
	h := newHarness(nil)
	h.source.gate = make(chan struct{})
	h.source.entered = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- h.sess.Start(context.Background()) }()
	<-h.source.entered

	h.sess.End()
	close(h.source.gate)

	err := <-done
	assert.ErrorIs(t, err, ErrSessionEnded)
	assert.EqualValues(t, 1, h.source.stream.stops.Load())
	assert.Zero(t, h.peer.attached.Load())
	assert.Equal(t, 1, h.rec.endCount())
}

func TestMediaFailure(t *testing.T) {
	h := newHarness(nil)
	h.source.err = media.ErrPermissionDenied

	err := h.sess.Start(context.Background())

	var merr *MediaAcquisitionError
	require.ErrorAs(t, err, &merr)
	assert.ErrorIs(t, err, media.ErrPermissionDenied)
	assert.True(t, IsMediaFailure(err))
	assert.Equal(t, StateFailed, h.sess.State())
	assert.Equal(t, err, h.sess.Err())
	assert.Zero(t, h.peer.attached.Load())

	require.Equal(t, 1, h.rec.endCount())
	assert.Equal(t, StateFailed, h.rec.ends[0].State)
	assert.ErrorIs(t, h.rec.ends[0].Cause, media.ErrPermissionDenied)

	assert.False(t, h.sess.End())
	assert.Equal(t, 1, h.rec.endCount())
	assert.NotEmpty(t, h.sess.Snapshot().Error)
}

func TestConnectionFailureReleasesMedia(t *testing.T) {
	for _, tc := range []struct {
		name  string
		peers func(*fakePeer) PeerFactory
		close int32
	}{
		{"factory fails", func(p *fakePeer) PeerFactory { return peerFactory(p, errDenied) }, 0},
		{"attach fails", func(p *fakePeer) PeerFactory {
			p.attachErr = errDenied
			return peerFactory(p, nil)
		}, 1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			peer := &fakePeer{}
			h := newHarness(func(o *Options) { o.Peers = tc.peers(peer) })

			err := h.sess.Start(context.Background())

			var cerr *ConnectionError
			require.ErrorAs(t, err, &cerr)
			assert.True(t, errors.Is(err, errDenied))
			assert.Equal(t, StateFailed, h.sess.State())
			assert.EqualValues(t, 1, h.source.stream.stops.Load())
			assert.Equal(t, tc.close, peer.closes.Load())
			assert.Equal(t, 1, h.rec.endCount())
			assert.Zero(t, h.clock.pending())
		})
	}
}

func TestMissingRemoteFeedStillGoesActive(t *testing.T) {
	h := newHarness(nil)
	h.peer.feedErr = errDenied

	require.NoError(t, h.sess.Start(context.Background()))
	h.clock.Advance(2 * time.Second)

	assert.Equal(t, StateActive, h.sess.State())
	assert.Nil(t, h.sess.RemoteFeed())
	h.sess.End()
	assert.EqualValues(t, 1, h.peer.closes.Load())
}

func TestRemoteFeedOnlyWhileLive(t *testing.T) {
	h := newHarness(nil)
	require.NoError(t, h.sess.Start(context.Background()))
	assert.Nil(t, h.sess.RemoteFeed())

	h.clock.Advance(2 * time.Second)
	require.NotNil(t, h.sess.RemoteFeed())
	assert.Equal(t, "feed-1", h.sess.RemoteFeed().ID())

	h.sess.End()
	assert.Nil(t, h.sess.RemoteFeed())
	assert.EqualValues(t, 1, h.peer.feed.closes.Load())
}

func TestStateEventsInOrder(t *testing.T) {
	h := newHarness(nil)
	require.NoError(t, h.sess.Start(context.Background()))
	h.clock.Advance(2 * time.Second)
	h.sess.End()

	var states []State
	for _, e := range h.rec.kinds(EventState) {
		states = append(states, e.State)
	}
	assert.Equal(t, []State{StateConnecting, StateActive, StateEnded}, states)

	// the ended event is always last
	last := h.rec.events[len(h.rec.events)-1]
	assert.Equal(t, EventEnded, last.Kind)
}

func TestSnapshot(t *testing.T) {
	h := newHarness(func(o *Options) { o.CaptionsEnabled = true })
	require.NoError(t, h.sess.Start(context.Background()))
	h.clock.Advance(2 * time.Second)
	h.clock.Advance(1500 * time.Millisecond)

	snap := h.sess.Snapshot()
	assert.Equal(t, "room_1", snap.RoomID)
	assert.Equal(t, "user-1", snap.ParticipantID)
	assert.Equal(t, "Alex", snap.Companion.Name)
	assert.Equal(t, StateActive, snap.State)
	assert.Equal(t, "00:01", snap.Duration)
	assert.EqualValues(t, 1, snap.Seconds)
	assert.NotNil(t, snap.StartedAt)
	assert.Equal(t, 1, snap.Messages)
	assert.True(t, snap.Controls.CaptionsEnabled)
	assert.Equal(t, CaptionText, snap.Indicators.Caption)

	h.sess.End()
}

type sdpPeer struct{ fakePeer }

func (*sdpPeer) LocalDescription() string { return "v=0\r\nm=audio 9 UDP/TLS/RTP/SAVPF 111\r\n" }

func TestSnapshotCarriesLocalDescription(t *testing.T) {
	p := &sdpPeer{}
	h := newHarness(func(o *Options) {
		o.Peers = func(context.Context, string) (RemotePeer, error) { return p, nil }
	})
	assert.Empty(t, h.sess.Snapshot().LocalSDP)

	require.NoError(t, h.sess.Start(context.Background()))
	assert.Contains(t, h.sess.Snapshot().LocalSDP, "m=audio")

	// peers without SDP leave the field empty
	h2 := newHarness(nil)
	require.NoError(t, h2.sess.Start(context.Background()))
	assert.Empty(t, h2.sess.Snapshot().LocalSDP)

	h.sess.End()
	h2.sess.End()
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "00:00", FormatDuration(0))
	assert.Equal(t, "00:59", FormatDuration(59*time.Second+900*time.Millisecond))
	assert.Equal(t, "01:05", FormatDuration(65*time.Second))
	assert.Equal(t, "61:01", FormatDuration(time.Hour+61*time.Second))
	assert.Equal(t, "00:00", FormatDuration(-time.Second))
}
