package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/homeguard/homeguard-server/internal/models"
	"github.com/homeguard/homeguard-server/internal/storage"
)

// ========== Event log handlers ==========

// HandleListEvents queries the event log with filters
func (s *RESTServer) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	limit, offset := parsePagination(r)

	filters := storage.EventLogFilters{}
	q := r.URL.Query()

	if v := q.Get("type"); v != "" {
		eventType := models.EventType(v)
		filters.EventType = &eventType
	}
	if v := q.Get("source_kind"); v != "" {
		sourceKind := models.SourceKind(v)
		filters.SourceKind = &sourceKind
	}
	if v := q.Get("source_id"); v != "" {
		sourceID, err := uuid.Parse(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid source_id")
			return
		}
		filters.SourceID = &sourceID
	}
	if v := q.Get("start"); v != "" {
		start, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid start time")
			return
		}
		filters.StartTime = &start
	}
	if v := q.Get("end"); v != "" {
		end, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid end time")
			return
		}
		filters.EndTime = &end
	}
	if v := q.Get("search"); v != "" {
		filters.Search = &v
	}
	if q.Get("unread") == "true" {
		filters.UnreadOnly = true
	}

	events, total, err := s.services.Events.Query(r.Context(), actor, filters, limit, offset)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"total":  total,
	})
}

// HandleMarkEventRead marks one entry as read
func (s *RESTServer) HandleMarkEventRead(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid event ID")
		return
	}

	if err := s.services.Events.MarkRead(r.Context(), actorFromContext(r.Context()), id); err != nil {
		s.respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleMarkAllEventsRead marks all of the caller's entries as read
func (s *RESTServer) HandleMarkAllEventsRead(w http.ResponseWriter, r *http.Request) {
	if err := s.services.Events.MarkAllRead(r.Context(), actorFromContext(r.Context())); err != nil {
		s.respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandlePurgeEvents deletes all of the caller's entries
func (s *RESTServer) HandlePurgeEvents(w http.ResponseWriter, r *http.Request) {
	purged, err := s.services.Events.Purge(r.Context(), actorFromContext(r.Context()))
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"purged": purged,
	})
}
