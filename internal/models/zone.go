package models

import (
	"github.com/google/uuid"
)

// ZoneArmingMode represents which sensors of a zone participate when armed
type ZoneArmingMode string

const (
	ZoneArmingAll       ZoneArmingMode = "all"
	ZoneArmingPerimeter ZoneArmingMode = "perimeter"
	ZoneArmingCustom    ZoneArmingMode = "custom"
)

// Valid reports whether m is a known arming mode.
func (m ZoneArmingMode) Valid() bool {
	switch m {
	case ZoneArmingAll, ZoneArmingPerimeter, ZoneArmingCustom:
		return true
	}
	return false
}

// Zone represents a named grouping of sensors sharing an arming policy.
// SensorIDs is a derived view: the authoritative relation is the sensor's
// ZoneID column, so the two sides can never drift apart.
type Zone struct {
	OwnedModel

	Name       string         `json:"name" db:"name"`
	Color      string         `json:"color" db:"color"`
	ArmingMode ZoneArmingMode `json:"armingMode" db:"arming_mode"`

	SensorIDs []uuid.UUID `json:"sensorIds" db:"-"`
}

// SensorType represents the kind of sensor
type SensorType string

const (
	SensorTypeMotion      SensorType = "motion"
	SensorTypeDoor        SensorType = "door"
	SensorTypeWindow      SensorType = "window"
	SensorTypeCamera      SensorType = "camera"
	SensorTypeSmoke       SensorType = "smoke"
	SensorTypeTemperature SensorType = "temperature"
)

// Valid reports whether t is a known sensor type.
func (t SensorType) Valid() bool {
	switch t {
	case SensorTypeMotion, SensorTypeDoor, SensorTypeWindow, SensorTypeCamera, SensorTypeSmoke, SensorTypeTemperature:
		return true
	}
	return false
}

// SensorStatus represents the current status of a sensor
type SensorStatus string

const (
	SensorStatusActive    SensorStatus = "active"
	SensorStatusInactive  SensorStatus = "inactive"
	SensorStatusTriggered SensorStatus = "triggered"
	SensorStatusOffline   SensorStatus = "offline"
)

// Valid reports whether s is a known sensor status.
func (s SensorStatus) Valid() bool {
	switch s {
	case SensorStatusActive, SensorStatusInactive, SensorStatusTriggered, SensorStatusOffline:
		return true
	}
	return false
}

// Sensor represents a single security sensor. ZoneID is nil while the
// sensor is unassigned.
type Sensor struct {
	OwnedModel

	Name   string       `json:"name" db:"name"`
	Type   SensorType   `json:"type" db:"type"`
	Status SensorStatus `json:"status" db:"status"`
	ZoneID *uuid.UUID   `json:"zoneId,omitempty" db:"zone_id"`
}
