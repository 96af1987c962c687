package call

import (
	"time"

	"companion-call-demo/backend/pkg/config"
)

// Config holds the session timings
type Config struct {
	RemoteJoinDelay  time.Duration
	PeriodicInterval time.Duration
	// MaxPeriodicMessages caps unsolicited companion messages; 0 means no cap.
	MaxPeriodicMessages int
	ReplyDelayMin       time.Duration
	ReplyDelayMax       time.Duration
	OpeningSpeaking     time.Duration
	PeriodicSpeaking    time.Duration
	ReplySpeaking       time.Duration
	TickInterval        time.Duration
}

// DefaultConfig returns the standard call timings
func DefaultConfig() Config {
	return Config{
		RemoteJoinDelay:  2 * time.Second,
		PeriodicInterval: 30 * time.Second,
		ReplyDelayMin:    1500 * time.Millisecond,
		ReplyDelayMax:    4500 * time.Millisecond,
		OpeningSpeaking:  3 * time.Second,
		PeriodicSpeaking: 2 * time.Second,
		ReplySpeaking:    4 * time.Second,
		TickInterval:     time.Second,
	}
}

// ConfigFrom maps the application config onto session timings
func ConfigFrom(cfg *config.Config) Config {
	c := cfg.Call
	return Config{
		RemoteJoinDelay:     c.RemoteJoinDelay,
		PeriodicInterval:    c.PeriodicInterval,
		MaxPeriodicMessages: c.MaxPeriodicMessages,
		ReplyDelayMin:       c.ReplyDelayMin,
		ReplyDelayMax:       c.ReplyDelayMax,
		OpeningSpeaking:     c.OpeningSpeaking,
		PeriodicSpeaking:    c.PeriodicSpeaking,
		ReplySpeaking:       c.ReplySpeaking,
		TickInterval:        c.TickInterval,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.RemoteJoinDelay < 0 {
		c.RemoteJoinDelay = d.RemoteJoinDelay
	}
	if c.PeriodicInterval <= 0 {
		c.PeriodicInterval = d.PeriodicInterval
	}
	if c.MaxPeriodicMessages < 0 {
		c.MaxPeriodicMessages = 0
	}
	if c.ReplyDelayMin <= 0 {
		c.ReplyDelayMin = d.ReplyDelayMin
	}
	if c.ReplyDelayMax < c.ReplyDelayMin {
		c.ReplyDelayMax = c.ReplyDelayMin
	}
	if c.OpeningSpeaking <= 0 {
		c.OpeningSpeaking = d.OpeningSpeaking
	}
	if c.PeriodicSpeaking <= 0 {
		c.PeriodicSpeaking = d.PeriodicSpeaking
	}
	if c.ReplySpeaking <= 0 {
		c.ReplySpeaking = d.ReplySpeaking
	}
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	return c
}
