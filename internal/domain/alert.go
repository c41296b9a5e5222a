package domain

import (
	"time"

	"github.com/google/uuid"
)

// SosDispatch is queued for responders whenever an SOS alert is accepted.
type SosDispatch struct {
	AlertID    uuid.UUID `json:"alert_id"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	IP         string    `json:"ip,omitempty"`
	Reporter   Reporter  `json:"reporter"`
	ReceivedAt time.Time `json:"received_at"`
}

type EventType string

const (
	EventCreated       EventType = "created"
	EventStatusChanged EventType = "status"
	EventDeleted       EventType = "deleted"
)

// IncidentEvent is published after every successful mutation.
type IncidentEvent struct {
	Type     EventType `json:"type"`
	ID       uuid.UUID `json:"id"`
	Kind     Kind      `json:"kind"`
	Status   Status    `json:"status,omitempty"`
	Location *GeoPoint `json:"location,omitempty"`
	At       time.Time `json:"at"`
}
