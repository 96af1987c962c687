package models

import (
	"errors"
	"strings"
	"time"
)

// CompanionProfile describes one AI companion persona. Profiles are immutable once
// loaded; callers that need to keep one should use Clone.
type CompanionProfile struct {
	ID          string   `json:"id" binding:"required"`
	Name        string   `json:"name" binding:"required"`
	AvatarURL   string   `json:"avatarUrl"`
	Description string   `json:"description"`
	VoiceID     string   `json:"voiceId"`
	Personality string   `json:"personality"`
	Specialties []string `json:"specialties" binding:"required,min=1"`
}

// ErrInvalidProfile is returned by Validate for malformed profiles
var ErrInvalidProfile = errors.New("invalid companion profile")

// Validate checks the fields every call needs
func (p CompanionProfile) Validate() error {
	switch {
	case strings.TrimSpace(p.ID) == "":
		return errors.Join(ErrInvalidProfile, errors.New("id is required"))
	case strings.TrimSpace(p.Name) == "":
		return errors.Join(ErrInvalidProfile, errors.New("name is required"))
	case len(p.Specialties) == 0:
		return errors.Join(ErrInvalidProfile, errors.New("at least one specialty is required"))
	}
	return nil
}

// Clone returns a deep copy so the specialties slice is not shared
func (p CompanionProfile) Clone() CompanionProfile {
	p.Specialties = append([]string(nil), p.Specialties...)
	return p
}

// CompanionRecord is the gorm row backing a CompanionProfile in postgres
type CompanionRecord struct {
	ID          string `gorm:"primarykey"`
	Position    int    `gorm:"not null;index"`
	Name        string `gorm:"not null"`
	AvatarURL   string
	Description string   `gorm:"not null"`
	VoiceID     string   `gorm:"not null"`
	Personality string   `gorm:"not null"`
	Specialties []string `gorm:"serializer:json;not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName pins the table name
func (CompanionRecord) TableName() string {
	return "companions"
}

// Profile converts the row to its API shape
func (r CompanionRecord) Profile() CompanionProfile {
	return CompanionProfile{
		ID:          r.ID,
		Name:        r.Name,
		AvatarURL:   r.AvatarURL,
		Description: r.Description,
		VoiceID:     r.VoiceID,
		Personality: r.Personality,
		Specialties: append([]string(nil), r.Specialties...),
	}
}

// NewCompanionRecord builds the row for a profile at the given catalog position
func NewCompanionRecord(p CompanionProfile, position int) CompanionRecord {
	return CompanionRecord{
		ID:          p.ID,
		Position:    position,
		Name:        p.Name,
		AvatarURL:   p.AvatarURL,
		Description: p.Description,
		VoiceID:     p.VoiceID,
		Personality: p.Personality,
		Specialties: append([]string(nil), p.Specialties...),
	}
}

// StartCallRequest is the body of POST /api/calls
type StartCallRequest struct {
	CompanionID   string `json:"companionId" binding:"required"`
	ParticipantID string `json:"participantId"`
	Captions      *bool  `json:"captions"`
}

// StartCallResponse tells the client where to connect
type StartCallResponse struct {
	RoomID    string           `json:"roomId"`
	JoinURL   string           `json:"joinUrl"`
	Companion CompanionProfile `json:"companion"`
}
