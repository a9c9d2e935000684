package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/homeguard/homeguard-server/internal/models"
)

// ========== Arm state handlers ==========

// HandleGetArmState returns the current system arm state
func (s *RESTServer) HandleGetArmState(w http.ResponseWriter, r *http.Request) {
	state, err := s.services.Arming.CurrentState(r.Context())
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, state)
}

// HandleRequestTransition requests an arm-state transition
func (s *RESTServer) HandleRequestTransition(w http.ResponseWriter, r *http.Request) {
	var req struct {
		State string `json:"state" validate:"required"`
		Cause string `json:"cause"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	cause := models.TransitionCause(req.Cause)
	if cause == "" {
		cause = models.CauseUser
	}

	actor := actorFromContext(r.Context())
	state, err := s.services.Arming.RequestTransition(r.Context(), actor, models.ArmState(req.State), cause)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, state)
}

// HandleTriggerAlarm raises the alarm manually (panic button)
func (s *RESTServer) HandleTriggerAlarm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SensorID    *uuid.UUID `json:"sensorId"`
		Description string     `json:"description"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	actor := actorFromContext(r.Context())
	state, err := s.services.Arming.TriggerAlarm(r.Context(), actor, req.SensorID, req.Description)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, state)
}
