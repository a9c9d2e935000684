package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/homeguard/homeguard-server/internal/models"
)

// ========== Access Code Methods ==========

// CreateAccessCode persists an access code
func (s *PostgresStore) CreateAccessCode(ctx context.Context, code *models.AccessCode) error {
	if code.ID == uuid.Nil {
		code.ID = uuid.New()
	}

	now := time.Now()
	code.CreatedAt = now
	code.UpdatedAt = now

	query := `
        INSERT INTO access_codes (
            id, created_at, updated_at, owner_id, code, label,
            expires_at, use_limit, used_count, permissions
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.getDB().ExecContext(ctx, query,
		code.ID, code.CreatedAt, code.UpdatedAt, code.OwnerID, code.Code,
		code.Label, code.ExpiresAt, code.UseLimit, code.UsedCount,
		code.Permissions,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

// GetAccessCode gets an access code by ID
func (s *PostgresStore) GetAccessCode(ctx context.Context, id uuid.UUID) (*models.AccessCode, error) {
	return s.getAccessCode(ctx, "id = $1", id)
}

// GetAccessCodeByCode gets an access code by its code value. The code
// string is the credential on the redemption path.
func (s *PostgresStore) GetAccessCodeByCode(ctx context.Context, code string) (*models.AccessCode, error) {
	return s.getAccessCode(ctx, "code = $1", code)
}

func (s *PostgresStore) getAccessCode(ctx context.Context, where string, arg interface{}) (*models.AccessCode, error) {
	query := `
        SELECT id, created_at, updated_at, owner_id, code, label,
               expires_at, use_limit, used_count, permissions, last_used_at
        FROM access_codes
        WHERE ` + where

	code := &models.AccessCode{}
	err := s.getDB().QueryRowContext(ctx, query, arg).Scan(
		&code.ID, &code.CreatedAt, &code.UpdatedAt, &code.OwnerID, &code.Code,
		&code.Label, &code.ExpiresAt, &code.UseLimit, &code.UsedCount,
		&code.Permissions, &code.LastUsedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	return code, err
}

// UpdateAccessCode updates an access code
func (s *PostgresStore) UpdateAccessCode(ctx context.Context, code *models.AccessCode) error {
	code.UpdatedAt = time.Now()

	query := `
        UPDATE access_codes SET
            updated_at = $2, code = $3, label = $4, expires_at = $5,
            use_limit = $6, permissions = $7
        WHERE id = $1`

	result, err := s.getDB().ExecContext(ctx, query,
		code.ID, code.UpdatedAt, code.Code, code.Label, code.ExpiresAt,
		code.UseLimit, code.Permissions,
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

// DeleteAccessCode deletes an access code
func (s *PostgresStore) DeleteAccessCode(ctx context.Context, id uuid.UUID) error {
	result, err := s.getDB().ExecContext(ctx, "DELETE FROM access_codes WHERE id = $1", id)
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

// ListAccessCodes lists access codes for an owner
func (s *PostgresStore) ListAccessCodes(ctx context.Context, ownerID uuid.UUID) ([]*models.AccessCode, error) {
	query := `
        SELECT id, created_at, updated_at, owner_id, code, label,
               expires_at, use_limit, used_count, permissions, last_used_at
        FROM access_codes
        WHERE owner_id = $1
        ORDER BY created_at DESC`

	rows, err := s.getDB().QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []*models.AccessCode
	for rows.Next() {
		code := &models.AccessCode{}
		err := rows.Scan(
			&code.ID, &code.CreatedAt, &code.UpdatedAt, &code.OwnerID, &code.Code,
			&code.Label, &code.ExpiresAt, &code.UseLimit, &code.UsedCount,
			&code.Permissions, &code.LastUsedAt,
		)
		if err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}

	return codes, nil
}

// ConsumeAccessCode atomically increments used_count while it is below the
// limit. The guard lives in the UPDATE itself so concurrent redemptions of
// the same code cannot push used_count past use_limit.
func (s *PostgresStore) ConsumeAccessCode(ctx context.Context, id uuid.UUID, now time.Time) (*models.AccessCode, error) {
	query := `
        UPDATE access_codes SET
            used_count = used_count + 1, last_used_at = $2, updated_at = $2
        WHERE id = $1 AND used_count < use_limit
        RETURNING id, created_at, updated_at, owner_id, code, label,
                  expires_at, use_limit, used_count, permissions, last_used_at`

	code := &models.AccessCode{}
	err := s.getDB().QueryRowContext(ctx, query, id, now).Scan(
		&code.ID, &code.CreatedAt, &code.UpdatedAt, &code.OwnerID, &code.Code,
		&code.Label, &code.ExpiresAt, &code.UseLimit, &code.UsedCount,
		&code.Permissions, &code.LastUsedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrLimitExceeded
	}

	return code, err
}
