package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/homeguard/homeguard-server/internal/models"
	"github.com/homeguard/homeguard-server/internal/storage"
)

// ========== User handlers ==========

// HandleListUsers lists users (admin only)
func (s *RESTServer) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	if !actor.Admin {
		s.respondError(w, http.StatusForbidden, "admin access required")
		return
	}

	limit, offset := parsePagination(r)

	users, total, err := s.store.ListUsers(r.Context(), limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"users": users,
		"total": total,
	})
}

// HandleCreateUser creates a user (admin only)
func (s *RESTServer) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	if !actor.Admin {
		s.respondError(w, http.StatusForbidden, "admin access required")
		return
	}

	var req struct {
		Email     string `json:"email" validate:"required,email"`
		Username  string `json:"username" validate:"required,min=3,max=50"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Password  string `json:"password" validate:"required,min=8"`
		IsAdmin   bool   `json:"isAdmin"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	user := &models.User{
		Email:     req.Email,
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		IsAdmin:   req.IsAdmin,
		IsActive:  true,
		Settings:  models.Variables{"password": req.Password},
	}

	if err := s.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			s.respondError(w, http.StatusConflict, "email already registered")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusCreated, user)
}

// HandleGetCurrentUser returns the authenticated user
func (s *RESTServer) HandleGetCurrentUser(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())

	user, err := s.store.GetUser(r.Context(), actor.ID)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "user not found")
		return
	}

	s.respondJSON(w, http.StatusOK, user)
}

// HandleGetUser gets a user (self or admin)
func (s *RESTServer) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	actor := actorFromContext(r.Context())
	if !actor.Admin && actor.ID != id {
		s.respondError(w, http.StatusForbidden, "access denied")
		return
	}

	user, err := s.store.GetUser(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "user not found")
		return
	}

	s.respondJSON(w, http.StatusOK, user)
}

// HandleUpdateUser updates a user (self or admin)
func (s *RESTServer) HandleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	actor := actorFromContext(r.Context())
	if !actor.Admin && actor.ID != id {
		s.respondError(w, http.StatusForbidden, "access denied")
		return
	}

	var req struct {
		Username  string `json:"username" validate:"required,min=3,max=50"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		IsActive  *bool  `json:"isActive"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := s.store.GetUser(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "user not found")
		return
	}

	user.Username = req.Username
	user.FirstName = req.FirstName
	user.LastName = req.LastName

	// Only admins can enable or disable accounts
	if req.IsActive != nil && actor.Admin {
		user.IsActive = *req.IsActive
	}

	if err := s.store.UpdateUser(r.Context(), user); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, user)
}

// HandleDeleteUser deletes a user (admin only)
func (s *RESTServer) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	actor := actorFromContext(r.Context())
	if !actor.Admin {
		s.respondError(w, http.StatusForbidden, "admin access required")
		return
	}

	if err := s.store.DeleteUser(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "user not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
