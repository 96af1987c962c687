package peer

import (
	"context"
	"sync"

	"companion-call-demo/backend/internal/media"
	"companion-call-demo/backend/internal/models"
)

// LoopbackPeer keeps the call in-process: local tracks are held rather
// than sent, and the companion feed is rendered locally.
type LoopbackPeer struct {
	feeds Feeds

	mu     sync.Mutex
	tracks []media.Track
}

// NewLoopbackPeer creates a peer that never touches the network
func NewLoopbackPeer(feeds Feeds) *LoopbackPeer {
	return &LoopbackPeer{feeds: feeds}
}

func (p *LoopbackPeer) AttachLocal(s media.Stream) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tracks = append(p.tracks, s.Tracks()...)
	return nil
}

func (p *LoopbackPeer) RemoteStream(ctx context.Context, c models.CompanionProfile) (media.Feed, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.feeds.Open(ctx, c), nil
}

// Tracks returns the attached local tracks
func (p *LoopbackPeer) Tracks() []media.Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]media.Track(nil), p.tracks...)
}

func (p *LoopbackPeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tracks = nil
	return nil
}
