package models

import (
	"time"

	"github.com/google/uuid"
)

// LockState represents the state of a smart lock
type LockState string

const (
	LockStateLocked   LockState = "locked"
	LockStateUnlocked LockState = "unlocked"
	LockStateJammed   LockState = "jammed"
	LockStateOffline  LockState = "offline"
)

// Faulted reports whether the lock is in a state that blocks lock/unlock
// requests until cleared by an external signal.
func (s LockState) Faulted() bool {
	return s == LockStateJammed || s == LockStateOffline
}

// SmartLock represents a smart lock device
type SmartLock struct {
	OwnedModel

	Name  string    `json:"name" db:"name"`
	State LockState `json:"state" db:"state"`

	// Behavior settings
	AutoLock       bool     `json:"autoLock" db:"auto_lock"`
	AutoLockDelay  int      `json:"autoLockDelay" db:"auto_lock_delay"` // seconds
	ArmOnLock      bool     `json:"armOnLock" db:"arm_on_lock"`
	ArmOnLockMode  ArmState `json:"armOnLockMode" db:"arm_on_lock_mode"`
	NotifyOnUnlock bool     `json:"notifyOnUnlock" db:"notify_on_unlock"`

	BatteryLevel int        `json:"batteryLevel" db:"battery_level"` // 0-100
	LastActivity *time.Time `json:"lastActivity,omitempty" db:"last_activity"`
}

// LockEventType represents lock event types
type LockEventType string

const (
	LockEventLock       LockEventType = "lock"
	LockEventUnlock     LockEventType = "unlock"
	LockEventAutoLock   LockEventType = "autolock"
	LockEventAutoUnlock LockEventType = "autounlock"
	LockEventError      LockEventType = "error"
	LockEventJammed     LockEventType = "jammed"
	LockEventBatteryLow LockEventType = "battery_low"
	LockEventOffline    LockEventType = "offline"
	LockEventOnline     LockEventType = "online"
)

// LockMethod represents how a lock operation was performed
type LockMethod string

const (
	LockMethodApp     LockMethod = "app"
	LockMethodKeypad  LockMethod = "keypad"
	LockMethodKey     LockMethod = "key"
	LockMethodAuto    LockMethod = "auto"
	LockMethodSystem  LockMethod = "system"
	LockMethodUnknown LockMethod = "unknown"
)

// LockEvent is an immutable audit record of a smart lock transition
type LockEvent struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	LockID    uuid.UUID     `json:"lockId" db:"lock_id"`
	EventType LockEventType `json:"eventType" db:"event_type"`
	Method    LockMethod    `json:"method" db:"method"`
	ActorID   *uuid.UUID    `json:"actorId,omitempty" db:"actor_id"`
}
