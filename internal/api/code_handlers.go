package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/homeguard/homeguard-server/internal/models"
	"github.com/homeguard/homeguard-server/internal/security"
)

// ========== Access code handlers ==========

// HandleListAccessCodes lists the caller's access codes
func (s *RESTServer) HandleListAccessCodes(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())

	codes, err := s.services.Codes.List(r.Context(), actor, actor.ID)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"accessCodes": codes,
		"total":       len(codes),
	})
}

// HandleGenerateAccessCode returns an unsaved code preview
func (s *RESTServer) HandleGenerateAccessCode(w http.ResponseWriter, r *http.Request) {
	code, err := s.services.Codes.Generate(r.Context(), actorFromContext(r.Context()))
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, code)
}

// HandleCreateAccessCode persists an access code
func (s *RESTServer) HandleCreateAccessCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code        string    `json:"code"`
		Label       string    `json:"label" validate:"max=100"`
		ExpiresAt   time.Time `json:"expiresAt" validate:"required"`
		UseLimit    int       `json:"useLimit" validate:"required,min=1"`
		Permissions []string  `json:"permissions"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	code, err := s.services.Codes.Create(r.Context(), actorFromContext(r.Context()), &models.AccessCode{
		Code:        req.Code,
		Label:       req.Label,
		ExpiresAt:   req.ExpiresAt,
		UseLimit:    req.UseLimit,
		Permissions: models.StringArray(req.Permissions),
	})
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	s.respondJSON(w, http.StatusCreated, code)
}

// HandleGetAccessCode gets an access code
func (s *RESTServer) HandleGetAccessCode(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid code ID")
		return
	}

	code, err := s.services.Codes.Get(r.Context(), actorFromContext(r.Context()), id)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, code)
}

// HandleUpdateAccessCode updates an access code
func (s *RESTServer) HandleUpdateAccessCode(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid code ID")
		return
	}

	var req struct {
		Code        string    `json:"code"`
		Label       string    `json:"label" validate:"max=100"`
		ExpiresAt   time.Time `json:"expiresAt" validate:"required"`
		UseLimit    int       `json:"useLimit" validate:"required,min=1"`
		Permissions []string  `json:"permissions"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	code := &models.AccessCode{
		Code:        req.Code,
		Label:       req.Label,
		ExpiresAt:   req.ExpiresAt,
		UseLimit:    req.UseLimit,
		Permissions: models.StringArray(req.Permissions),
	}
	code.ID = id

	updated, err := s.services.Codes.Update(r.Context(), actorFromContext(r.Context()), code)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, updated)
}

// HandleDeleteAccessCode deletes an access code
func (s *RESTServer) HandleDeleteAccessCode(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid code ID")
		return
	}

	if err := s.services.Codes.Delete(r.Context(), actorFromContext(r.Context()), id); err != nil {
		s.respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleRedeemAccessCode is the public, anonymous redemption endpoint.
// Unknown, expired and exhausted codes all answer identically so callers
// cannot probe which codes exist.
func (s *RESTServer) HandleRedeemAccessCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code" validate:"required,min=4,max=10"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.services.Codes.Redeem(r.Context(), req.Code)
	if err != nil {
		if errors.Is(err, security.ErrNotFound) ||
			errors.Is(err, security.ErrExpired) ||
			errors.Is(err, security.ErrLimitReached) {
			s.respondError(w, http.StatusNotFound, "code not valid")
			return
		}
		s.respondServiceError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, result)
}
