// Package peer provides the remote side of a call: a pion PeerConnection
// carrying the local tracks and the synthetic companion video feed.
package peer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/pion/webrtc/v4"

	"companion-call-demo/backend/internal/media"
	"companion-call-demo/backend/internal/models"
	"companion-call-demo/backend/pkg/logger"
)

// ICEConfig holds the ICE servers handed to every PeerConnection
type ICEConfig struct {
	Servers []webrtc.ICEServer
}

// NewICEConfig builds the server list from STUN urls and optional TURN urls
// sharing one credential.
func NewICEConfig(stun, turn []string, username, credential string) ICEConfig {
	var cfg ICEConfig
	if len(stun) > 0 {
		cfg.Servers = append(cfg.Servers, webrtc.ICEServer{URLs: stun})
	}
	if len(turn) > 0 {
		cfg.Servers = append(cfg.Servers, webrtc.ICEServer{
			URLs:       turn,
			Username:   username,
			Credential: credential,
		})
	}
	return cfg
}

// localTrack is implemented by media tracks that can be sent over pion
type localTrack interface {
	Local() webrtc.TrackLocal
}

// Feeds renders companion video feeds
type Feeds struct {
	Avatars   *AvatarLoader
	FrameRate int
}

// Open loads the companion avatar and starts its feed. An avatar that cannot
// be loaded falls back to the initial-letter disc.
func (f Feeds) Open(ctx context.Context, c models.CompanionProfile) *AvatarFeed {
	var avatar image.Image
	if f.Avatars != nil && c.AvatarURL != "" {
		// Load logs its own failures
		avatar, _ = f.Avatars.Load(ctx, c.AvatarURL)
	}
	return NewAvatarFeed(c.Name, avatar, f.FrameRate)
}

// WebRTCPeer is one PeerConnection per call
type WebRTCPeer struct {
	roomID string
	pc     *webrtc.PeerConnection
	feeds  Feeds
	log    *logger.Logger

	mu      sync.Mutex
	senders []*webrtc.RTPSender
	closed  bool
}

// NewWebRTCPeer creates the PeerConnection for roomID
func NewWebRTCPeer(roomID string, ice ICEConfig, feeds Feeds, log *logger.Logger) (*WebRTCPeer, error) {
	if log == nil {
		log = logger.Discard()
	}

	// loopback candidates keep same-host demos and tests working
	settingEngine := webrtc.SettingEngine{}
	settingEngine.SetIncludeLoopbackCandidate(true)

	api := webrtc.NewAPI(webrtc.WithSettingEngine(settingEngine))
	pc, err := api.NewPeerConnection(webrtc.Configuration{ICEServers: ice.Servers})
	if err != nil {
		return nil, fmt.Errorf("creating peer connection: %w", err)
	}

	p := &WebRTCPeer{
		roomID: roomID,
		pc:     pc,
		feeds:  feeds,
		log:    log.WithRoom(roomID),
	}

	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		p.log.Debug("ICE connection state changed", "state", state.String())
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		if state == webrtc.PeerConnectionStateFailed {
			p.log.Warn("Peer connection failed")
		}
	})

	return p, nil
}

// AttachLocal adds every sendable track of s to the connection
func (p *WebRTCPeer) AttachLocal(s media.Stream) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("peer connection closed")
	}

	for _, t := range s.Tracks() {
		lt, ok := t.(localTrack)
		if !ok {
			continue
		}
		sender, err := p.pc.AddTrack(lt.Local())
		if err != nil {
			return fmt.Errorf("adding %s track: %w", t.Kind(), err)
		}
		p.senders = append(p.senders, sender)
		go drainRTCP(sender)
	}
	if len(p.senders) == 0 {
		return nil
	}
	return p.startOfferLocked()
}

// startOfferLocked sets the local offer once, which starts ICE gathering
func (p *WebRTCPeer) startOfferLocked() error {
	if p.pc.LocalDescription() != nil {
		return nil
	}
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("creating SDP offer: %w", err)
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("setting local description: %w", err)
	}
	return nil
}

// LocalDescription returns the local SDP with the candidates gathered so
// far, or "" before any track was attached.
func (p *WebRTCPeer) LocalDescription() string {
	if d := p.pc.LocalDescription(); d != nil {
		return d.SDP
	}
	return ""
}

// RemoteStream starts the companion's synthetic feed
func (p *WebRTCPeer) RemoteStream(ctx context.Context, c models.CompanionProfile) (media.Feed, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.feeds.Open(ctx, c), nil
}

// Offer returns the local offer once ICE gathering has finished
func (p *WebRTCPeer) Offer(ctx context.Context) (webrtc.SessionDescription, error) {
	gatherComplete := webrtc.GatheringCompletePromise(p.pc)

	p.mu.Lock()
	err := p.startOfferLocked()
	p.mu.Unlock()
	if err != nil {
		return webrtc.SessionDescription{}, err
	}

	select {
	case <-gatherComplete:
	case <-ctx.Done():
		return webrtc.SessionDescription{}, ctx.Err()
	}
	return *p.pc.LocalDescription(), nil
}

// Senders returns the number of attached tracks
func (p *WebRTCPeer) Senders() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.senders)
}

// Close tears down the connection. Safe to call more than once.
func (p *WebRTCPeer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	return p.pc.Close()
}

// drainRTCP reads RTCP so interceptors keep working; ends when the sender stops
func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}
