package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/homeguard/homeguard-server/internal/models"
)

// ========== Zone Methods ==========

// CreateZone creates a new zone
func (s *PostgresStore) CreateZone(ctx context.Context, zone *models.Zone) error {
	if zone.ID == uuid.Nil {
		zone.ID = uuid.New()
	}

	now := time.Now()
	zone.CreatedAt = now
	zone.UpdatedAt = now

	query := `
        INSERT INTO zones (id, created_at, updated_at, owner_id, name, color, arming_mode)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.getDB().ExecContext(ctx, query,
		zone.ID, zone.CreatedAt, zone.UpdatedAt, zone.OwnerID,
		zone.Name, zone.Color, zone.ArmingMode,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

// GetZone gets a zone by ID
func (s *PostgresStore) GetZone(ctx context.Context, id uuid.UUID) (*models.Zone, error) {
	query := `
        SELECT id, created_at, updated_at, owner_id, name, color, arming_mode
        FROM zones
        WHERE id = $1`

	zone := &models.Zone{}
	err := s.getDB().QueryRowContext(ctx, query, id).Scan(
		&zone.ID, &zone.CreatedAt, &zone.UpdatedAt, &zone.OwnerID,
		&zone.Name, &zone.Color, &zone.ArmingMode,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	return zone, err
}

// UpdateZone updates a zone
func (s *PostgresStore) UpdateZone(ctx context.Context, zone *models.Zone) error {
	zone.UpdatedAt = time.Now()

	query := `
        UPDATE zones SET
            updated_at = $2, name = $3, color = $4, arming_mode = $5
        WHERE id = $1`

	result, err := s.getDB().ExecContext(ctx, query,
		zone.ID, zone.UpdatedAt, zone.Name, zone.Color, zone.ArmingMode,
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

// DeleteZone deletes a zone record. Member sensors must be detached first;
// the zone registry does both inside one transaction.
func (s *PostgresStore) DeleteZone(ctx context.Context, id uuid.UUID) error {
	result, err := s.getDB().ExecContext(ctx, "DELETE FROM zones WHERE id = $1", id)
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

// ListZones lists zones for an owner
func (s *PostgresStore) ListZones(ctx context.Context, ownerID uuid.UUID) ([]*models.Zone, error) {
	query := `
        SELECT id, created_at, updated_at, owner_id, name, color, arming_mode
        FROM zones
        WHERE owner_id = $1
        ORDER BY created_at`

	rows, err := s.getDB().QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var zones []*models.Zone
	for rows.Next() {
		zone := &models.Zone{}
		err := rows.Scan(
			&zone.ID, &zone.CreatedAt, &zone.UpdatedAt, &zone.OwnerID,
			&zone.Name, &zone.Color, &zone.ArmingMode,
		)
		if err != nil {
			return nil, err
		}
		zones = append(zones, zone)
	}

	return zones, nil
}

// ========== Sensor Methods ==========

// CreateSensor creates a new sensor
func (s *PostgresStore) CreateSensor(ctx context.Context, sensor *models.Sensor) error {
	if sensor.ID == uuid.Nil {
		sensor.ID = uuid.New()
	}

	now := time.Now()
	sensor.CreatedAt = now
	sensor.UpdatedAt = now

	query := `
        INSERT INTO sensors (id, created_at, updated_at, owner_id, name, type, status, zone_id)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.getDB().ExecContext(ctx, query,
		sensor.ID, sensor.CreatedAt, sensor.UpdatedAt, sensor.OwnerID,
		sensor.Name, sensor.Type, sensor.Status, sensor.ZoneID,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

// GetSensor gets a sensor by ID
func (s *PostgresStore) GetSensor(ctx context.Context, id uuid.UUID) (*models.Sensor, error) {
	query := `
        SELECT id, created_at, updated_at, owner_id, name, type, status, zone_id
        FROM sensors
        WHERE id = $1`

	sensor := &models.Sensor{}
	err := s.getDB().QueryRowContext(ctx, query, id).Scan(
		&sensor.ID, &sensor.CreatedAt, &sensor.UpdatedAt, &sensor.OwnerID,
		&sensor.Name, &sensor.Type, &sensor.Status, &sensor.ZoneID,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	return sensor, err
}

// UpdateSensor updates a sensor, including its zone membership
func (s *PostgresStore) UpdateSensor(ctx context.Context, sensor *models.Sensor) error {
	sensor.UpdatedAt = time.Now()

	query := `
        UPDATE sensors SET
            updated_at = $2, name = $3, type = $4, status = $5, zone_id = $6
        WHERE id = $1`

	result, err := s.getDB().ExecContext(ctx, query,
		sensor.ID, sensor.UpdatedAt, sensor.Name, sensor.Type,
		sensor.Status, sensor.ZoneID,
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

// DeleteSensor deletes a sensor
func (s *PostgresStore) DeleteSensor(ctx context.Context, id uuid.UUID) error {
	result, err := s.getDB().ExecContext(ctx, "DELETE FROM sensors WHERE id = $1", id)
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

// ListSensors lists sensors for an owner
func (s *PostgresStore) ListSensors(ctx context.Context, ownerID uuid.UUID) ([]*models.Sensor, error) {
	query := `
        SELECT id, created_at, updated_at, owner_id, name, type, status, zone_id
        FROM sensors
        WHERE owner_id = $1
        ORDER BY created_at`

	rows, err := s.getDB().QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sensors []*models.Sensor
	for rows.Next() {
		sensor := &models.Sensor{}
		err := rows.Scan(
			&sensor.ID, &sensor.CreatedAt, &sensor.UpdatedAt, &sensor.OwnerID,
			&sensor.Name, &sensor.Type, &sensor.Status, &sensor.ZoneID,
		)
		if err != nil {
			return nil, err
		}
		sensors = append(sensors, sensor)
	}

	return sensors, nil
}

// ListZoneSensorIDs lists the IDs of sensors assigned to a zone
func (s *PostgresStore) ListZoneSensorIDs(ctx context.Context, zoneID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.getDB().QueryContext(ctx,
		"SELECT id FROM sensors WHERE zone_id = $1 ORDER BY created_at", zoneID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, nil
}

// DetachZoneSensors clears the zone reference of every member sensor
func (s *PostgresStore) DetachZoneSensors(ctx context.Context, zoneID uuid.UUID) error {
	_, err := s.getDB().ExecContext(ctx,
		"UPDATE sensors SET zone_id = NULL, updated_at = $2 WHERE zone_id = $1",
		zoneID, time.Now(),
	)
	return err
}
