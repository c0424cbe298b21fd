package models

import (
	"time"

	"github.com/google/uuid"
)

// TransitionType is the kind of geofence boundary crossing.
type TransitionType string

const (
	TransitionEnter TransitionType = "ENTER"
	TransitionExit  TransitionType = "EXIT"
)

// GeofenceAlert is a persisted geographic area whose boundary crossings are
// fanned out to a notification channel.
type GeofenceAlert struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"      validate:"required,min=3"`
	Latitude  float64 `json:"latitude"  validate:"min=-90,max=90"`
	Longitude float64 `json:"longitude" validate:"min=-180,max=180"`
	RadiusM   float64 `json:"radius_m"  validate:"gt=0"`

	// Transitions lists the crossing kinds that notify. Empty means both.
	Transitions []TransitionType `json:"transitions,omitempty"`

	Channel           DestinationType `json:"channel"`
	DestinationEmail  string          `json:"destination_email,omitempty"`
	DestinationChatID string          `json:"destination_chat_id,omitempty"`

	// Cooldown is the re-notification suppression window in milliseconds.
	Cooldown int64 `json:"cooldown,omitempty"`

	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewGeofenceAlert creates an enabled alert for the given area.
func NewGeofenceAlert(name string, lat, lng, radiusM float64) *GeofenceAlert {
	now := time.Now().UTC()

	return &GeofenceAlert{
		ID:        uuid.New().String(),
		Name:      name,
		Latitude:  lat,
		Longitude: lng,
		RadiusM:   radiusM,
		Enabled:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Notifies reports whether the alert reacts to the given transition kind.
func (a *GeofenceAlert) Notifies(kind TransitionType) bool {
	if len(a.Transitions) == 0 {
		return true
	}

	for _, t := range a.Transitions {
		if t == kind {
			return true
		}
	}

	return false
}

// TransitionEvent is emitted by the platform's geofence transition source.
type TransitionEvent struct {
	AlertID    string         `json:"alert_id"`
	Transition TransitionType `json:"transition"`
	Latitude   float64        `json:"latitude"`
	Longitude  float64        `json:"longitude"`
	RadiusM    float64        `json:"radius_m"`
	Manual     bool           `json:"manual,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}
