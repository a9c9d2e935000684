package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/homeguard/homeguard-server/internal/models"
)

// ========== Smart Lock Methods ==========

// CreateLock creates a new smart lock
func (s *PostgresStore) CreateLock(ctx context.Context, lock *models.SmartLock) error {
	if lock.ID == uuid.Nil {
		lock.ID = uuid.New()
	}

	now := time.Now()
	lock.CreatedAt = now
	lock.UpdatedAt = now

	query := `
        INSERT INTO smart_locks (
            id, created_at, updated_at, owner_id, name, state,
            auto_lock, auto_lock_delay, arm_on_lock, arm_on_lock_mode,
            notify_on_unlock, battery_level, last_activity
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := s.getDB().ExecContext(ctx, query,
		lock.ID, lock.CreatedAt, lock.UpdatedAt, lock.OwnerID, lock.Name,
		lock.State, lock.AutoLock, lock.AutoLockDelay, lock.ArmOnLock,
		lock.ArmOnLockMode, lock.NotifyOnUnlock, lock.BatteryLevel,
		lock.LastActivity,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

// GetLock gets a smart lock by ID
func (s *PostgresStore) GetLock(ctx context.Context, id uuid.UUID) (*models.SmartLock, error) {
	query := `
        SELECT id, created_at, updated_at, owner_id, name, state,
               auto_lock, auto_lock_delay, arm_on_lock, arm_on_lock_mode,
               notify_on_unlock, battery_level, last_activity
        FROM smart_locks
        WHERE id = $1`

	lock := &models.SmartLock{}
	err := s.getDB().QueryRowContext(ctx, query, id).Scan(
		&lock.ID, &lock.CreatedAt, &lock.UpdatedAt, &lock.OwnerID, &lock.Name,
		&lock.State, &lock.AutoLock, &lock.AutoLockDelay, &lock.ArmOnLock,
		&lock.ArmOnLockMode, &lock.NotifyOnUnlock, &lock.BatteryLevel,
		&lock.LastActivity,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	return lock, err
}

// UpdateLock updates a smart lock
func (s *PostgresStore) UpdateLock(ctx context.Context, lock *models.SmartLock) error {
	lock.UpdatedAt = time.Now()

	query := `
        UPDATE smart_locks SET
            updated_at = $2, name = $3, state = $4, auto_lock = $5,
            auto_lock_delay = $6, arm_on_lock = $7, arm_on_lock_mode = $8,
            notify_on_unlock = $9, battery_level = $10, last_activity = $11
        WHERE id = $1`

	result, err := s.getDB().ExecContext(ctx, query,
		lock.ID, lock.UpdatedAt, lock.Name, lock.State, lock.AutoLock,
		lock.AutoLockDelay, lock.ArmOnLock, lock.ArmOnLockMode,
		lock.NotifyOnUnlock, lock.BatteryLevel, lock.LastActivity,
	)

	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteLock deletes a smart lock
func (s *PostgresStore) DeleteLock(ctx context.Context, id uuid.UUID) error {
	result, err := s.getDB().ExecContext(ctx, "DELETE FROM smart_locks WHERE id = $1", id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// ListLocks lists smart locks for an owner
func (s *PostgresStore) ListLocks(ctx context.Context, ownerID uuid.UUID) ([]*models.SmartLock, error) {
	query := `
        SELECT id, created_at, updated_at, owner_id, name, state,
               auto_lock, auto_lock_delay, arm_on_lock, arm_on_lock_mode,
               notify_on_unlock, battery_level, last_activity
        FROM smart_locks
        WHERE owner_id = $1
        ORDER BY created_at`

	rows, err := s.getDB().QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locks []*models.SmartLock
	for rows.Next() {
		lock := &models.SmartLock{}
		err := rows.Scan(
			&lock.ID, &lock.CreatedAt, &lock.UpdatedAt, &lock.OwnerID, &lock.Name,
			&lock.State, &lock.AutoLock, &lock.AutoLockDelay, &lock.ArmOnLock,
			&lock.ArmOnLockMode, &lock.NotifyOnUnlock, &lock.BatteryLevel,
			&lock.LastActivity,
		)
		if err != nil {
			return nil, err
		}
		locks = append(locks, lock)
	}

	return locks, nil
}

// ========== Lock Event Methods ==========

// CreateLockEvent creates a lock event record
func (s *PostgresStore) CreateLockEvent(ctx context.Context, event *models.LockEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	query := `
        INSERT INTO lock_events (id, created_at, lock_id, event_type, method, actor_id)
        VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.getDB().ExecContext(ctx, query,
		event.ID, event.CreatedAt, event.LockID, event.EventType,
		event.Method, event.ActorID,
	)

	return err
}

// ListLockEvents lists lock events, most recent first
func (s *PostgresStore) ListLockEvents(ctx context.Context, lockID uuid.UUID, limit, offset int) ([]*models.LockEvent, int64, error) {
	var count int64
	err := s.getDB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM lock_events WHERE lock_id = $1", lockID,
	).Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	query := `
        SELECT id, created_at, lock_id, event_type, method, actor_id
        FROM lock_events
        WHERE lock_id = $1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3`

	rows, err := s.getDB().QueryContext(ctx, query, lockID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var events []*models.LockEvent
	for rows.Next() {
		event := &models.LockEvent{}
		err := rows.Scan(
			&event.ID, &event.CreatedAt, &event.LockID, &event.EventType,
			&event.Method, &event.ActorID,
		)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, event)
	}

	return events, count, nil
}
