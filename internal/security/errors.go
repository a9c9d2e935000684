// Package security implements the home-security domain services: arming,
// zones, access codes, smart locks and the event log. Services hold the
// business rules; storage holds only persistence.
package security

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a referenced entity does not exist or
	// the caller is not allowed to see it.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState is returned when an operation is not legal from the
	// entity's current state.
	ErrInvalidState = errors.New("invalid state for operation")

	// ErrAlreadyInState is returned when a transition targets the state
	// the entity is already in.
	ErrAlreadyInState = errors.New("already in requested state")

	// ErrExpired is returned when redeeming an access code past its expiry.
	ErrExpired = errors.New("access code expired")

	// ErrLimitReached is returned when redeeming an access code whose use
	// limit is exhausted.
	ErrLimitReached = errors.New("access code use limit reached")
)

// ValidationError reports a rejected input field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

func validationErr(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// Actor identifies who is performing an operation. The zero value (Nil ID)
// is the system actor, used for automated transitions like auto-lock and
// lock-triggered arming.
type Actor struct {
	ID    uuid.UUID
	Name  string
	Admin bool
}

// System is the actor for automated operations
var System = Actor{Name: "system"}

// canAccess reports whether the actor may operate on an entity owned by
// ownerID. Admins bypass the ownership check.
func (a Actor) canAccess(ownerID uuid.UUID) bool {
	return a.Admin || a.ID == ownerID
}
