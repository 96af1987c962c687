package media

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
)

const audioFrame = 20 * time.Millisecond

// opusSilence is a single 20ms Opus silence frame
var opusSilence = []byte{0xf8, 0xff, 0xfe}

// LocalTrack is a capture track backed by a pion sample track
type LocalTrack struct {
	kind    Kind
	sample  *webrtc.TrackLocalStaticSample
	enabled atomic.Bool

	stopOnce sync.Once
	done     chan struct{}
	onStop   func()
}

// NewLocalTrack creates an enabled track of the given kind
func NewLocalTrack(kind Kind, streamID string) (*LocalTrack, error) {
	capability := webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}
	if kind == KindVideo {
		capability = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000}
	}

	sample, err := webrtc.NewTrackLocalStaticSample(capability, string(kind)+"-"+uuid.NewString(), streamID)
	if err != nil {
		return nil, err
	}

	t := &LocalTrack{kind: kind, sample: sample, done: make(chan struct{})}
	t.enabled.Store(true)
	return t, nil
}

func (t *LocalTrack) ID() string { return t.sample.ID() }

func (t *LocalTrack) Kind() Kind { return t.kind }

func (t *LocalTrack) Enabled() bool { return t.enabled.Load() }

func (t *LocalTrack) SetEnabled(enabled bool) { t.enabled.Store(enabled) }

// Local exposes the pion track for attaching to a peer connection
func (t *LocalTrack) Local() webrtc.TrackLocal { return t.sample }

// WriteSample forwards a sample unless the track is disabled or stopped
func (t *LocalTrack) WriteSample(s pionmedia.Sample) error {
	if !t.Enabled() || t.Stopped() {
		return nil
	}
	return t.sample.WriteSample(s)
}

// Stopped reports whether Stop has been called
func (t *LocalTrack) Stopped() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Stop ends the track. Further samples are dropped.
func (t *LocalTrack) Stop() {
	t.stopOnce.Do(func() {
		close(t.done)
		if t.onStop != nil {
			t.onStop()
		}
	})
}

// pumpSilence keeps an unbound audio track fed with silence frames so the
// remote side sees a live stream. Muting stops the frames.
func (t *LocalTrack) pumpSilence() {
	ticker := time.NewTicker(audioFrame)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			_ = t.WriteSample(pionmedia.Sample{Data: opusSilence, Duration: audioFrame})
		}
	}
}
