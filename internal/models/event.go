package models

import (
	"time"

	"github.com/google/uuid"
)

// EventLog represents a unified activity/security log entry. Entries are
// append-only: after creation only the Read flag may change, and deletion
// happens only through an explicit purge.
type EventLog struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	EventType   EventType  `json:"eventType" db:"event_type"`
	Description string     `json:"description" db:"description"`
	SourceKind  SourceKind `json:"sourceKind" db:"source_kind"`
	SourceID    *uuid.UUID `json:"sourceId,omitempty" db:"source_id"`
	ActorID     uuid.UUID  `json:"actorId" db:"actor_id"`

	Read bool `json:"read" db:"read"`

	Details Variables `json:"details,omitempty" db:"details"`
}

// EventType represents event log entry types
type EventType string

const (
	EventTypeArm    EventType = "arm"
	EventTypeDisarm EventType = "disarm"
	EventTypeAlert  EventType = "alert"
	EventTypeLock   EventType = "lock"
	EventTypeUnlock EventType = "unlock"
	EventTypeSensor EventType = "sensor"
	EventTypeUser   EventType = "user"
)

// SourceKind identifies which component produced an event log entry
type SourceKind string

const (
	SourceSystem     SourceKind = "system"
	SourceZone       SourceKind = "zone"
	SourceSensor     SourceKind = "sensor"
	SourceLock       SourceKind = "lock"
	SourceAccessCode SourceKind = "access_code"
	SourceUser       SourceKind = "user"
)
