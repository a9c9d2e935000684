package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/homeguard/homeguard-server/internal/models"
)

// Common errors
var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicateKey  = errors.New("duplicate key")
	ErrInvalidData   = errors.New("invalid data")
	ErrLimitExceeded = errors.New("usage limit exceeded")
)

// Store defines the storage interface
type Store interface {
	// Transaction support
	BeginTx(ctx context.Context) (Store, error)
	Commit() error
	Rollback() error

	// User methods
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id uuid.UUID) error
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, int64, error)

	// Arm state methods (singleton record)
	GetArmState(ctx context.Context) (*models.SystemArmState, error)
	SaveArmState(ctx context.Context, state *models.SystemArmState) error

	// Zone methods
	CreateZone(ctx context.Context, zone *models.Zone) error
	GetZone(ctx context.Context, id uuid.UUID) (*models.Zone, error)
	UpdateZone(ctx context.Context, zone *models.Zone) error
	DeleteZone(ctx context.Context, id uuid.UUID) error
	ListZones(ctx context.Context, ownerID uuid.UUID) ([]*models.Zone, error)

	// Sensor methods. The sensor's zone_id column is the authoritative
	// zone membership relation; zone sensor sets are derived from it.
	CreateSensor(ctx context.Context, sensor *models.Sensor) error
	GetSensor(ctx context.Context, id uuid.UUID) (*models.Sensor, error)
	UpdateSensor(ctx context.Context, sensor *models.Sensor) error
	DeleteSensor(ctx context.Context, id uuid.UUID) error
	ListSensors(ctx context.Context, ownerID uuid.UUID) ([]*models.Sensor, error)
	ListZoneSensorIDs(ctx context.Context, zoneID uuid.UUID) ([]uuid.UUID, error)
	DetachZoneSensors(ctx context.Context, zoneID uuid.UUID) error

	// Access code methods
	CreateAccessCode(ctx context.Context, code *models.AccessCode) error
	GetAccessCode(ctx context.Context, id uuid.UUID) (*models.AccessCode, error)
	GetAccessCodeByCode(ctx context.Context, code string) (*models.AccessCode, error)
	UpdateAccessCode(ctx context.Context, code *models.AccessCode) error
	DeleteAccessCode(ctx context.Context, id uuid.UUID) error
	ListAccessCodes(ctx context.Context, ownerID uuid.UUID) ([]*models.AccessCode, error)
	// ConsumeAccessCode atomically increments used_count if it is still
	// below the limit, returning the updated record. Returns
	// ErrLimitExceeded when no uses are left.
	ConsumeAccessCode(ctx context.Context, id uuid.UUID, now time.Time) (*models.AccessCode, error)

	// Smart lock methods
	CreateLock(ctx context.Context, lock *models.SmartLock) error
	GetLock(ctx context.Context, id uuid.UUID) (*models.SmartLock, error)
	UpdateLock(ctx context.Context, lock *models.SmartLock) error
	DeleteLock(ctx context.Context, id uuid.UUID) error
	ListLocks(ctx context.Context, ownerID uuid.UUID) ([]*models.SmartLock, error)

	// Lock event methods
	CreateLockEvent(ctx context.Context, event *models.LockEvent) error
	ListLockEvents(ctx context.Context, lockID uuid.UUID, limit, offset int) ([]*models.LockEvent, int64, error)

	// Event log methods
	CreateEventLog(ctx context.Context, event *models.EventLog) error
	GetEventLog(ctx context.Context, id uuid.UUID) (*models.EventLog, error)
	ListEventLogs(ctx context.Context, filters EventLogFilters, limit, offset int) ([]*models.EventLog, int64, error)
	MarkEventLogRead(ctx context.Context, id uuid.UUID) error
	MarkAllEventLogsRead(ctx context.Context, actorID uuid.UUID) error
	PurgeEventLogs(ctx context.Context, actorID uuid.UUID) (int64, error)

	// Close the store
	Close() error
}

// EventLogFilters represents filters for event logs
type EventLogFilters struct {
	ActorID    *uuid.UUID
	EventType  *models.EventType
	SourceKind *models.SourceKind
	SourceID   *uuid.UUID
	StartTime  *time.Time
	EndTime    *time.Time
	Search     *string
	UnreadOnly bool
}
