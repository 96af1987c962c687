package media

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// DeviceOptions describes the simulated capture hardware
type DeviceOptions struct {
	HasAudio bool
	HasVideo bool
	// Permit, when set, can veto an acquisition (e.g. a user denying access).
	Permit func(Constraints) error
	// FeedSilence keeps audio tracks sending Opus silence while enabled.
	FeedSilence bool
}

// DefaultDeviceOptions returns a microphone and camera that are always granted
func DefaultDeviceOptions() DeviceOptions {
	return DeviceOptions{HasAudio: true, HasVideo: true, FeedSilence: true}
}

// DeviceSource hands out local capture streams. Only one stream may hold the
// devices at a time; the next Acquire succeeds once that stream is stopped.
type DeviceSource struct {
	opts DeviceOptions

	mu     sync.Mutex
	holder string
}

// NewDeviceSource creates a source over the described devices
func NewDeviceSource(opts DeviceOptions) *DeviceSource {
	return &DeviceSource{opts: opts}
}

// Acquire opens the requested devices exclusively
func (d *DeviceSource) Acquire(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !c.Audio && !c.Video {
		return nil, ErrNoConstraints
	}
	if c.Audio && !d.opts.HasAudio {
		return nil, fmt.Errorf("audio: %w", ErrDeviceNotFound)
	}
	if c.Video && !d.opts.HasVideo {
		return nil, fmt.Errorf("video: %w", ErrDeviceNotFound)
	}
	if d.opts.Permit != nil {
		if err := d.opts.Permit(c); err != nil {
			return nil, err
		}
	}

	streamID := "stream-" + uuid.NewString()

	d.mu.Lock()
	if d.holder != "" {
		d.mu.Unlock()
		return nil, ErrDeviceBusy
	}
	d.holder = streamID
	d.mu.Unlock()

	s := &deviceStream{id: streamID, release: func() { d.release(streamID) }}

	kinds := make([]Kind, 0, 2)
	if c.Audio {
		kinds = append(kinds, KindAudio)
	}
	if c.Video {
		kinds = append(kinds, KindVideo)
	}
	for _, k := range kinds {
		t, err := NewLocalTrack(k, streamID)
		if err != nil {
			s.Stop()
			return nil, fmt.Errorf("create %s track: %w", k, err)
		}
		s.tracks = append(s.tracks, t)
		if k == KindAudio && d.opts.FeedSilence {
			go t.pumpSilence()
		}
	}

	return s, nil
}

// Busy reports whether a stream currently holds the devices
func (d *DeviceSource) Busy() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.holder != ""
}

func (d *DeviceSource) release(streamID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.holder == streamID {
		d.holder = ""
	}
}

type deviceStream struct {
	id       string
	tracks   []*LocalTrack
	release  func()
	stopOnce sync.Once
}

func (s *deviceStream) ID() string { return s.id }

func (s *deviceStream) Tracks() []Track {
	out := make([]Track, len(s.tracks))
	for i, t := range s.tracks {
		out[i] = t
	}
	return out
}

func (s *deviceStream) Stop() {
	s.stopOnce.Do(func() {
		for _, t := range s.tracks {
			t.Stop()
		}
		s.release()
	})
}
