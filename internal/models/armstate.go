package models

import (
	"time"

	"github.com/google/uuid"
)

// ArmState represents the system-wide security posture
type ArmState string

const (
	ArmStateDisarmed   ArmState = "disarmed"
	ArmStateArmedHome  ArmState = "armed_home"
	ArmStateArmedAway  ArmState = "armed_away"
	ArmStateArmedNight ArmState = "armed_night"
	ArmStateAlarm      ArmState = "alarm"
)

// Valid reports whether s is one of the known arm states.
func (s ArmState) Valid() bool {
	switch s {
	case ArmStateDisarmed, ArmStateArmedHome, ArmStateArmedAway, ArmStateArmedNight, ArmStateAlarm:
		return true
	}
	return false
}

// Armed reports whether s is one of the armed variants (alarm included).
func (s ArmState) Armed() bool {
	return s.Valid() && s != ArmStateDisarmed
}

// TransitionCause identifies what requested an arm-state transition
type TransitionCause string

const (
	CauseUser        TransitionCause = "user"
	CauseAccessCode  TransitionCause = "access_code"
	CauseLockAutoArm TransitionCause = "lock_auto_arm"
	CauseVoice       TransitionCause = "voice"
)

// SystemArmState is the singleton arm-state record for an installation.
// It is mutated only through the arming service.
type SystemArmState struct {
	State         ArmState  `json:"state" db:"state"`
	LastChangedBy uuid.UUID `json:"lastChangedBy" db:"last_changed_by"`
	LastChangedAt time.Time `json:"lastChangedAt" db:"last_changed_at"`
}
