package api

import (
	"encoding/json"
	"net/http"

	"github.com/homeguard/homeguard-server/internal/models"
)

// ========== Smart lock handlers ==========

// HandleListLocks lists the caller's locks
func (s *RESTServer) HandleListLocks(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())

	locks, err := s.services.Locks.ListLocks(r.Context(), actor, actor.ID)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"locks": locks,
		"total": len(locks),
	})
}

type lockRequest struct {
	Name           string `json:"name" validate:"required,min=1,max=100"`
	AutoLock       bool   `json:"autoLock"`
	AutoLockDelay  int    `json:"autoLockDelay"`
	ArmOnLock      bool   `json:"armOnLock"`
	ArmOnLockMode  string `json:"armOnLockMode"`
	NotifyOnUnlock bool   `json:"notifyOnUnlock"`
}

func (req *lockRequest) toModel() *models.SmartLock {
	return &models.SmartLock{
		Name:           req.Name,
		AutoLock:       req.AutoLock,
		AutoLockDelay:  req.AutoLockDelay,
		ArmOnLock:      req.ArmOnLock,
		ArmOnLockMode:  models.ArmState(req.ArmOnLockMode),
		NotifyOnUnlock: req.NotifyOnUnlock,
	}
}

// HandleCreateLock registers a lock
func (s *RESTServer) HandleCreateLock(w http.ResponseWriter, r *http.Request) {
	var req lockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	lock, err := s.services.Locks.CreateLock(r.Context(), actorFromContext(r.Context()), req.toModel())
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	s.respondJSON(w, http.StatusCreated, lock)
}

// HandleGetLock gets a lock
func (s *RESTServer) HandleGetLock(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid lock ID")
		return
	}

	lock, err := s.services.Locks.GetLock(r.Context(), actorFromContext(r.Context()), id)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, lock)
}

// HandleUpdateLock updates a lock's settings
func (s *RESTServer) HandleUpdateLock(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid lock ID")
		return
	}

	var req lockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	lock := req.toModel()
	lock.ID = id

	updated, err := s.services.Locks.UpdateSettings(r.Context(), actorFromContext(r.Context()), lock)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, updated)
}

// HandleDeleteLock deletes a lock
func (s *RESTServer) HandleDeleteLock(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid lock ID")
		return
	}

	if err := s.services.Locks.DeleteLock(r.Context(), actorFromContext(r.Context()), id); err != nil {
		s.respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleLock engages a lock
func (s *RESTServer) HandleLock(w http.ResponseWriter, r *http.Request) {
	s.handleLockOperation(w, r, true)
}

// HandleUnlock disengages a lock
func (s *RESTServer) HandleUnlock(w http.ResponseWriter, r *http.Request) {
	s.handleLockOperation(w, r, false)
}

func (s *RESTServer) handleLockOperation(w http.ResponseWriter, r *http.Request, engage bool) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid lock ID")
		return
	}

	method := models.LockMethodApp
	var req struct {
		Method string `json:"method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.Method != "" {
		method = models.LockMethod(req.Method)
	}

	actor := actorFromContext(r.Context())

	var lock *models.SmartLock
	if engage {
		lock, err = s.services.Locks.Lock(r.Context(), actor, id, method)
	} else {
		lock, err = s.services.Locks.Unlock(r.Context(), actor, id, method)
	}
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, lock)
}

// HandleLockHistory returns a lock's event history, most recent first
func (s *RESTServer) HandleLockHistory(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid lock ID")
		return
	}

	limit, offset := parsePagination(r)

	events, total, err := s.services.Locks.History(r.Context(), actorFromContext(r.Context()), id, limit, offset)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"total":  total,
	})
}
