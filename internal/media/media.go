// Package media models local capture: tracks, streams and the device source
// that hands them out.
package media

import (
	"context"
	"errors"
)

// Kind is the media kind of a track
type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

// Constraints selects which capture devices to open
type Constraints struct {
	Audio bool
	Video bool
}

// Track is one local capture track. A disabled track stays attached but sends nothing.
type Track interface {
	ID() string
	Kind() Kind
	Enabled() bool
	SetEnabled(enabled bool)
	Stop()
}

// Stream groups the tracks returned by one acquisition.
type Stream interface {
	ID() string
	Tracks() []Track
	// Stop ends every track and releases the devices. Safe to call more than once.
	Stop()
}

// Source acquires exclusive local capture
type Source interface {
	Acquire(ctx context.Context, c Constraints) (Stream, error)
}

var (
	ErrPermissionDenied = errors.New("permission to capture media was denied")
	ErrDeviceNotFound   = errors.New("requested capture device not found")
	ErrDeviceBusy       = errors.New("capture devices are in use by another call")
	ErrNoConstraints    = errors.New("at least one of audio or video must be requested")
)

// TrackOf returns the first track of the given kind, or nil
func TrackOf(s Stream, kind Kind) Track {
	if s == nil {
		return nil
	}
	for _, t := range s.Tracks() {
		if t.Kind() == kind {
			return t
		}
	}
	return nil
}

// Feed is a remote stream delivered by a peer
type Feed interface {
	ID() string
	Close() error
}
