package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/homeguard/homeguard-server/internal/models"
)

// CreateEventLog creates an event log entry
func (s *PostgresStore) CreateEventLog(ctx context.Context, event *models.EventLog) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	query := `
        INSERT INTO event_logs (
            id, created_at, event_type, description, source_kind,
            source_id, actor_id, read, details
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.getDB().ExecContext(ctx, query,
		event.ID, event.CreatedAt, event.EventType, event.Description,
		event.SourceKind, event.SourceID, event.ActorID, event.Read,
		event.Details,
	)

	return err
}

// GetEventLog gets a single event log entry by ID
func (s *PostgresStore) GetEventLog(ctx context.Context, id uuid.UUID) (*models.EventLog, error) {
	query := `
        SELECT id, created_at, event_type, description, source_kind,
               source_id, actor_id, read, details
        FROM event_logs
        WHERE id = $1`

	event := &models.EventLog{}
	err := s.getDB().QueryRowContext(ctx, query, id).Scan(
		&event.ID, &event.CreatedAt, &event.EventType, &event.Description,
		&event.SourceKind, &event.SourceID, &event.ActorID, &event.Read,
		&event.Details,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	return event, err
}

// ListEventLogs lists event logs with filters, newest first
func (s *PostgresStore) ListEventLogs(ctx context.Context, filters EventLogFilters, limit, offset int) ([]*models.EventLog, int64, error) {
	// Build query with filters
	query := "SELECT COUNT(*) FROM event_logs WHERE 1=1"
	args := []interface{}{}
	argCount := 0

	if filters.ActorID != nil {
		argCount++
		query += fmt.Sprintf(" AND actor_id = $%d", argCount)
		args = append(args, *filters.ActorID)
	}

	if filters.EventType != nil {
		argCount++
		query += fmt.Sprintf(" AND event_type = $%d", argCount)
		args = append(args, *filters.EventType)
	}

	if filters.SourceKind != nil {
		argCount++
		query += fmt.Sprintf(" AND source_kind = $%d", argCount)
		args = append(args, *filters.SourceKind)
	}

	if filters.SourceID != nil {
		argCount++
		query += fmt.Sprintf(" AND source_id = $%d", argCount)
		args = append(args, *filters.SourceID)
	}

	if filters.StartTime != nil {
		argCount++
		query += fmt.Sprintf(" AND created_at >= $%d", argCount)
		args = append(args, *filters.StartTime)
	}

	if filters.EndTime != nil {
		argCount++
		query += fmt.Sprintf(" AND created_at <= $%d", argCount)
		args = append(args, *filters.EndTime)
	}

	if filters.Search != nil {
		argCount++
		query += fmt.Sprintf(" AND description ILIKE $%d", argCount)
		args = append(args, "%"+*filters.Search+"%")
	}

	if filters.UnreadOnly {
		query += " AND read = false"
	}

	// Get count
	var count int64
	err := s.getDB().QueryRowContext(ctx, query, args...).Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	// Get rows
	selectQuery := strings.Replace(query, "SELECT COUNT(*)",
		"SELECT id, created_at, event_type, description, source_kind, source_id, actor_id, read, details", 1)

	argCount++
	selectQuery += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", argCount)
	args = append(args, limit)

	argCount++
	selectQuery += fmt.Sprintf(" OFFSET $%d", argCount)
	args = append(args, offset)

	rows, err := s.getDB().QueryContext(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var events []*models.EventLog
	for rows.Next() {
		event := &models.EventLog{}
		err := rows.Scan(
			&event.ID, &event.CreatedAt, &event.EventType, &event.Description,
			&event.SourceKind, &event.SourceID, &event.ActorID, &event.Read,
			&event.Details,
		)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, event)
	}

	return events, count, nil
}

// MarkEventLogRead marks a single entry as read
func (s *PostgresStore) MarkEventLogRead(ctx context.Context, id uuid.UUID) error {
	result, err := s.getDB().ExecContext(ctx,
		"UPDATE event_logs SET read = true WHERE id = $1", id,
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

// MarkAllEventLogsRead marks every entry of an actor as read
func (s *PostgresStore) MarkAllEventLogsRead(ctx context.Context, actorID uuid.UUID) error {
	_, err := s.getDB().ExecContext(ctx,
		"UPDATE event_logs SET read = true WHERE actor_id = $1 AND read = false", actorID,
	)
	return err
}

// PurgeEventLogs deletes all entries for an actor
func (s *PostgresStore) PurgeEventLogs(ctx context.Context, actorID uuid.UUID) (int64, error) {
	result, err := s.getDB().ExecContext(ctx,
		"DELETE FROM event_logs WHERE actor_id = $1", actorID,
	)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}
