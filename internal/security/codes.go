package security

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/homeguard/homeguard-server/internal/models"
	"github.com/homeguard/homeguard-server/internal/storage"
	"github.com/homeguard/homeguard-server/pkg/crypto"
)

// DefaultCodeLength is the generated code length when none is configured
const DefaultCodeLength = 6

// AccessCodeService manages guest access codes. The code string is the
// credential: redemption is anonymous and looks the code up by value, so
// lookup failures must stay indistinguishable from exhausted or expired
// codes on the public path (the API layer collapses them).
type AccessCodeService struct {
	store      storage.Store
	events     *EventService
	codeLength int

	// now is swappable for expiry tests
	now func() time.Time
}

// NewAccessCodeService creates the access code ledger
func NewAccessCodeService(store storage.Store, events *EventService, codeLength int) *AccessCodeService {
	if codeLength < 4 || codeLength > 10 {
		codeLength = DefaultCodeLength
	}
	return &AccessCodeService{
		store:      store,
		events:     events,
		codeLength: codeLength,
		now:        time.Now,
	}
}

// RedeemResult is what a successful redemption grants the anonymous caller
type RedeemResult struct {
	Permissions []string `json:"permissions"`
	UsesLeft    int      `json:"usesLeft"`
	OwnerName   string   `json:"ownerName"`
}

// Generate produces an unsaved code preview. Nothing is persisted and no
// usage slot is consumed until Create is called.
func (s *AccessCodeService) Generate(ctx context.Context, actor Actor) (*models.AccessCode, error) {
	value, err := crypto.GenerateNumericCode(s.codeLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate code: %w", err)
	}

	code := &models.AccessCode{
		Code:        value,
		ExpiresAt:   s.now().Add(24 * time.Hour),
		UseLimit:    1,
		Permissions: models.StringArray{models.PermissionDisarm},
	}
	code.OwnerID = actor.ID
	return code, nil
}

// Create persists a code, generated or caller-chosen
func (s *AccessCodeService) Create(ctx context.Context, actor Actor, code *models.AccessCode) (*models.AccessCode, error) {
	if code.Code == "" {
		value, err := crypto.GenerateNumericCode(s.codeLength)
		if err != nil {
			return nil, fmt.Errorf("failed to generate code: %w", err)
		}
		code.Code = value
	}
	if len(code.Code) < 4 || len(code.Code) > 10 {
		return nil, validationErr("code", "must be 4-10 characters")
	}
	if code.UseLimit < 1 {
		return nil, validationErr("useLimit", "must be at least 1")
	}
	if code.ExpiresAt.IsZero() {
		return nil, validationErr("expiresAt", "required")
	}
	for _, p := range code.Permissions {
		if !models.ValidPermission(p) {
			return nil, validationErr("permissions", fmt.Sprintf("unknown permission %q", p))
		}
	}
	if len(code.Permissions) == 0 {
		code.Permissions = models.StringArray{models.PermissionDisarm}
	}

	code.OwnerID = actor.ID
	code.UsedCount = 0
	code.LastUsedAt = nil

	if err := s.store.CreateAccessCode(ctx, code); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil, validationErr("code", "already in use")
		}
		return nil, err
	}

	codeID := code.ID
	s.events.record(ctx, &models.EventLog{
		EventType:   models.EventTypeUser,
		Description: fmt.Sprintf("Access code %q created", code.Label),
		SourceKind:  models.SourceAccessCode,
		SourceID:    &codeID,
		ActorID:     actor.ID,
	})

	return code, nil
}

// Redeem validates and consumes one use of a code presented by an
// anonymous caller. The returned errors are distinct for internal callers;
// the public endpoint collapses NotFound/Expired/LimitReached into one
// answer so probing cannot reveal which codes exist.
func (s *AccessCodeService) Redeem(ctx context.Context, codeValue string) (*RedeemResult, error) {
	code, err := s.store.GetAccessCodeByCode(ctx, codeValue)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	now := s.now()
	if !now.Before(code.ExpiresAt) {
		return nil, ErrExpired
	}

	// The count guard runs inside the store so concurrent redemptions of
	// the same code cannot exceed the limit.
	code, err = s.store.ConsumeAccessCode(ctx, code.ID, now)
	if err != nil {
		if errors.Is(err, storage.ErrLimitExceeded) {
			return nil, ErrLimitReached
		}
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	ownerName := ""
	owner, err := s.store.GetUser(ctx, code.OwnerID)
	if err == nil {
		ownerName = owner.DisplayName()
	}

	// Attributed to the owner: the redeemer is anonymous
	codeID := code.ID
	s.events.record(ctx, &models.EventLog{
		EventType:   models.EventTypeUser,
		Description: fmt.Sprintf("Access code %q redeemed", code.Label),
		SourceKind:  models.SourceAccessCode,
		SourceID:    &codeID,
		ActorID:     code.OwnerID,
		Details: models.Variables{
			"usesLeft": code.UsesLeft(),
		},
	})

	log.Info().
		Str("code_id", code.ID.String()).
		Int("uses_left", code.UsesLeft()).
		Msg("Access code redeemed")

	return &RedeemResult{
		Permissions: []string(code.Permissions),
		UsesLeft:    code.UsesLeft(),
		OwnerName:   ownerName,
	}, nil
}

// Get returns a code owned by the actor
func (s *AccessCodeService) Get(ctx context.Context, actor Actor, id uuid.UUID) (*models.AccessCode, error) {
	return s.getOwnedCode(ctx, actor, id)
}

// Update changes a code's value, label, expiry, limit or permissions.
// Usage counters are preserved by the store.
func (s *AccessCodeService) Update(ctx context.Context, actor Actor, code *models.AccessCode) (*models.AccessCode, error) {
	existing, err := s.getOwnedCode(ctx, actor, code.ID)
	if err != nil {
		return nil, err
	}

	if code.Code == "" {
		code.Code = existing.Code
	}
	if len(code.Code) < 4 || len(code.Code) > 10 {
		return nil, validationErr("code", "must be 4-10 characters")
	}
	if code.UseLimit < 1 {
		return nil, validationErr("useLimit", "must be at least 1")
	}
	if code.ExpiresAt.IsZero() {
		return nil, validationErr("expiresAt", "required")
	}
	for _, p := range code.Permissions {
		if !models.ValidPermission(p) {
			return nil, validationErr("permissions", fmt.Sprintf("unknown permission %q", p))
		}
	}

	existing.Code = code.Code
	existing.Label = code.Label
	existing.ExpiresAt = code.ExpiresAt
	existing.UseLimit = code.UseLimit
	existing.Permissions = code.Permissions

	if err := s.store.UpdateAccessCode(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// Delete removes a code owned by the actor
func (s *AccessCodeService) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
	if _, err := s.getOwnedCode(ctx, actor, id); err != nil {
		return err
	}
	if err := s.store.DeleteAccessCode(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// List lists codes for an owner
func (s *AccessCodeService) List(ctx context.Context, actor Actor, ownerID uuid.UUID) ([]*models.AccessCode, error) {
	if !actor.canAccess(ownerID) {
		return nil, ErrNotFound
	}
	return s.store.ListAccessCodes(ctx, ownerID)
}

func (s *AccessCodeService) getOwnedCode(ctx context.Context, actor Actor, id uuid.UUID) (*models.AccessCode, error) {
	code, err := s.store.GetAccessCode(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !actor.canAccess(code.OwnerID) {
		return nil, ErrNotFound
	}
	return code, nil
}
