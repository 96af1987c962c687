package peer

import (
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// AvatarFeed is the synthetic remote video: a companion card re-rendered at
// a fixed frame rate until closed.
type AvatarFeed struct {
	id   string
	base *image.RGBA

	mu    sync.RWMutex
	frame *image.RGBA

	frames    atomic.Uint64
	done      chan struct{}
	closeOnce sync.Once
}

// NewAvatarFeed renders the card for name/avatar and starts refreshing it at fps.
// A nil avatar falls back to the initial-letter disc.
func NewAvatarFeed(name string, avatar image.Image, fps int) *AvatarFeed {
	if fps <= 0 {
		fps = 30
	}
	base := renderBase(name, avatar)
	f := &AvatarFeed{
		id:    "feed-" + uuid.NewString(),
		base:  base,
		frame: image.NewRGBA(base.Bounds()),
		done:  make(chan struct{}),
	}
	f.render()

	go f.run(time.Second / time.Duration(fps))
	return f
}

// ID identifies the feed
func (f *AvatarFeed) ID() string { return f.id }

// Frames counts rendered frames
func (f *AvatarFeed) Frames() uint64 { return f.frames.Load() }

// Frame returns a copy of the latest frame
func (f *AvatarFeed) Frame() *image.RGBA {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := image.NewRGBA(f.frame.Bounds())
	copy(out.Pix, f.frame.Pix)
	return out
}

// Close stops the refresh loop
func (f *AvatarFeed) Close() error {
	f.closeOnce.Do(func() { close(f.done) })
	return nil
}

func (f *AvatarFeed) run(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case <-ticker.C:
			f.render()
		}
	}
}

func (f *AvatarFeed) render() {
	n := f.frames.Add(1)
	f.mu.Lock()
	renderFrame(f.frame, f.base, n)
	f.mu.Unlock()
}
