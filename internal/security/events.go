package security

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/homeguard/homeguard-server/internal/models"
	"github.com/homeguard/homeguard-server/internal/storage"
)

// EventService manages the append-only activity log. Entries are written
// by the other services and by the API layer; after creation only the
// read flag changes, and removal happens only through Purge.
type EventService struct {
	store storage.Store
}

// NewEventService creates an event log service
func NewEventService(store storage.Store) *EventService {
	return &EventService{store: store}
}

// Append records a new entry. Caller-supplied ID and timestamp are
// ignored; the store assigns both.
func (s *EventService) Append(ctx context.Context, entry *models.EventLog) error {
	entry.ID = uuid.Nil
	entry.Read = false

	if err := s.store.CreateEventLog(ctx, entry); err != nil {
		return fmt.Errorf("failed to append event log: %w", err)
	}
	return nil
}

// record is the fire-and-forget append used by sibling services for side
// effects that must not fail the primary operation.
func (s *EventService) record(ctx context.Context, entry *models.EventLog) {
	if err := s.Append(ctx, entry); err != nil {
		log.Error().Err(err).
			Str("event_type", string(entry.EventType)).
			Msg("Failed to create event log")
	}
}

// Query returns entries matching the filters, newest first. Non-admin
// actors only see their own entries.
func (s *EventService) Query(ctx context.Context, actor Actor, filters storage.EventLogFilters, limit, offset int) ([]*models.EventLog, int64, error) {
	if !actor.Admin {
		actorID := actor.ID
		filters.ActorID = &actorID
	}

	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	return s.store.ListEventLogs(ctx, filters, limit, offset)
}

// MarkRead marks a single entry as read
func (s *EventService) MarkRead(ctx context.Context, actor Actor, id uuid.UUID) error {
	entry, err := s.store.GetEventLog(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	if !actor.canAccess(entry.ActorID) {
		return ErrNotFound
	}

	if err := s.store.MarkEventLogRead(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// MarkAllRead marks every entry of the actor as read
func (s *EventService) MarkAllRead(ctx context.Context, actor Actor) error {
	return s.store.MarkAllEventLogsRead(ctx, actor.ID)
}

// Purge deletes all of the actor's entries and returns how many were removed
func (s *EventService) Purge(ctx context.Context, actor Actor) (int64, error) {
	purged, err := s.store.PurgeEventLogs(ctx, actor.ID)
	if err != nil {
		return 0, err
	}

	log.Info().
		Str("actor_id", actor.ID.String()).
		Int64("purged", purged).
		Msg("Event log purged")

	return purged, nil
}
