package security

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/homeguard/homeguard-server/internal/models"
	"github.com/homeguard/homeguard-server/internal/storage"
)

// ZoneService manages zones and sensors. Zone membership has one
// authoritative side, the sensor's zone reference; the zone's sensor list
// is always derived from it, so the two can never disagree.
type ZoneService struct {
	store  storage.Store
	events *EventService
	arming *ArmingService
}

// NewZoneService creates the zone registry service
func NewZoneService(store storage.Store, events *EventService, arming *ArmingService) *ZoneService {
	return &ZoneService{store: store, events: events, arming: arming}
}

// ========== Zones ==========

// CreateZone creates a zone for the actor
func (s *ZoneService) CreateZone(ctx context.Context, actor Actor, zone *models.Zone) (*models.Zone, error) {
	if zone.Name == "" {
		return nil, validationErr("name", "required")
	}
	if zone.ArmingMode == "" {
		zone.ArmingMode = models.ZoneArmingAll
	}
	if !zone.ArmingMode.Valid() {
		return nil, validationErr("armingMode", fmt.Sprintf("unknown mode %q", zone.ArmingMode))
	}

	zone.OwnerID = actor.ID
	if err := s.store.CreateZone(ctx, zone); err != nil {
		return nil, err
	}
	zone.SensorIDs = []uuid.UUID{}
	return zone, nil
}

// GetZone returns a zone with its derived sensor list
func (s *ZoneService) GetZone(ctx context.Context, actor Actor, id uuid.UUID) (*models.Zone, error) {
	zone, err := s.getOwnedZone(ctx, s.store, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.loadSensorIDs(ctx, zone); err != nil {
		return nil, err
	}
	return zone, nil
}

// UpdateZone updates a zone's name, color and arming mode. Membership is
// changed only through the sensor assignment operations.
func (s *ZoneService) UpdateZone(ctx context.Context, actor Actor, zone *models.Zone) (*models.Zone, error) {
	existing, err := s.getOwnedZone(ctx, s.store, actor, zone.ID)
	if err != nil {
		return nil, err
	}

	if zone.Name == "" {
		return nil, validationErr("name", "required")
	}
	if zone.ArmingMode == "" {
		zone.ArmingMode = existing.ArmingMode
	}
	if !zone.ArmingMode.Valid() {
		return nil, validationErr("armingMode", fmt.Sprintf("unknown mode %q", zone.ArmingMode))
	}

	existing.Name = zone.Name
	existing.Color = zone.Color
	existing.ArmingMode = zone.ArmingMode

	if err := s.store.UpdateZone(ctx, existing); err != nil {
		return nil, err
	}
	if err := s.loadSensorIDs(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// DeleteZone detaches every member sensor and removes the zone in one
// transaction, so no sensor is left pointing at a missing zone.
func (s *ZoneService) DeleteZone(ctx context.Context, actor Actor, id uuid.UUID) error {
	if _, err := s.getOwnedZone(ctx, s.store, actor, id); err != nil {
		return err
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := tx.DetachZoneSensors(ctx, id); err != nil {
		return err
	}
	if err := tx.DeleteZone(ctx, id); err != nil {
		return err
	}

	return tx.Commit()
}

// ListZones lists the actor's zones with their derived sensor lists
func (s *ZoneService) ListZones(ctx context.Context, actor Actor, ownerID uuid.UUID) ([]*models.Zone, error) {
	if !actor.canAccess(ownerID) {
		return nil, ErrNotFound
	}

	zones, err := s.store.ListZones(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	for _, zone := range zones {
		if err := s.loadSensorIDs(ctx, zone); err != nil {
			return nil, err
		}
	}
	return zones, nil
}

// ========== Membership ==========

// AttachSensors assigns a batch of sensors to a zone. A sensor already
// owned by another zone moves; the single zone reference per sensor makes
// the detach implicit and atomic with the attach.
func (s *ZoneService) AttachSensors(ctx context.Context, actor Actor, zoneID uuid.UUID, sensorIDs []uuid.UUID) (*models.Zone, error) {
	zone, err := s.getOwnedZone(ctx, s.store, actor, zoneID)
	if err != nil {
		return nil, err
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	for _, sensorID := range sensorIDs {
		if err := s.assignInTx(ctx, tx, actor, zoneID, sensorID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if err := s.loadSensorIDs(ctx, zone); err != nil {
		return nil, err
	}
	return zone, nil
}

// AssignSensor assigns a single sensor to a zone
func (s *ZoneService) AssignSensor(ctx context.Context, actor Actor, zoneID, sensorID uuid.UUID) error {
	if _, err := s.getOwnedZone(ctx, s.store, actor, zoneID); err != nil {
		return err
	}
	return s.assignInTx(ctx, s.store, actor, zoneID, sensorID)
}

// RemoveSensor clears a sensor's zone assignment. Removing a sensor that
// is not a member of the zone is a successful no-op.
func (s *ZoneService) RemoveSensor(ctx context.Context, actor Actor, zoneID, sensorID uuid.UUID) error {
	if _, err := s.getOwnedZone(ctx, s.store, actor, zoneID); err != nil {
		return err
	}

	sensor, err := s.getOwnedSensor(ctx, actor, sensorID)
	if err != nil {
		return err
	}

	if sensor.ZoneID == nil || *sensor.ZoneID != zoneID {
		return nil
	}

	sensor.ZoneID = nil
	return s.store.UpdateSensor(ctx, sensor)
}

func (s *ZoneService) assignInTx(ctx context.Context, store storage.Store, actor Actor, zoneID, sensorID uuid.UUID) error {
	sensor, err := store.GetSensor(ctx, sensorID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: sensor %s", ErrNotFound, sensorID)
		}
		return err
	}
	if !actor.canAccess(sensor.OwnerID) {
		return fmt.Errorf("%w: sensor %s", ErrNotFound, sensorID)
	}

	sensor.ZoneID = &zoneID
	return store.UpdateSensor(ctx, sensor)
}

func (s *ZoneService) loadSensorIDs(ctx context.Context, zone *models.Zone) error {
	ids, err := s.store.ListZoneSensorIDs(ctx, zone.ID)
	if err != nil {
		return err
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	zone.SensorIDs = ids
	return nil
}

func (s *ZoneService) getOwnedZone(ctx context.Context, store storage.Store, actor Actor, id uuid.UUID) (*models.Zone, error) {
	zone, err := store.GetZone(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !actor.canAccess(zone.OwnerID) {
		return nil, ErrNotFound
	}
	return zone, nil
}

// ========== Sensors ==========

// CreateSensor creates a sensor for the actor, optionally assigned to a
// zone at creation time.
func (s *ZoneService) CreateSensor(ctx context.Context, actor Actor, sensor *models.Sensor) (*models.Sensor, error) {
	if sensor.Name == "" {
		return nil, validationErr("name", "required")
	}
	if !sensor.Type.Valid() {
		return nil, validationErr("type", fmt.Sprintf("unknown sensor type %q", sensor.Type))
	}
	if sensor.Status == "" {
		sensor.Status = models.SensorStatusActive
	}
	if !sensor.Status.Valid() {
		return nil, validationErr("status", fmt.Sprintf("unknown status %q", sensor.Status))
	}
	if sensor.ZoneID != nil {
		if _, err := s.getOwnedZone(ctx, s.store, actor, *sensor.ZoneID); err != nil {
			return nil, err
		}
	}

	sensor.OwnerID = actor.ID
	if err := s.store.CreateSensor(ctx, sensor); err != nil {
		return nil, err
	}
	return sensor, nil
}

// GetSensor returns a sensor owned by the actor
func (s *ZoneService) GetSensor(ctx context.Context, actor Actor, id uuid.UUID) (*models.Sensor, error) {
	return s.getOwnedSensor(ctx, actor, id)
}

// UpdateSensor updates a sensor's name and type
func (s *ZoneService) UpdateSensor(ctx context.Context, actor Actor, sensor *models.Sensor) (*models.Sensor, error) {
	existing, err := s.getOwnedSensor(ctx, actor, sensor.ID)
	if err != nil {
		return nil, err
	}

	if sensor.Name == "" {
		return nil, validationErr("name", "required")
	}
	if !sensor.Type.Valid() {
		return nil, validationErr("type", fmt.Sprintf("unknown sensor type %q", sensor.Type))
	}

	existing.Name = sensor.Name
	existing.Type = sensor.Type

	if err := s.store.UpdateSensor(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// DeleteSensor deletes a sensor. Its zone membership disappears with the
// row, so no detach step is needed.
func (s *ZoneService) DeleteSensor(ctx context.Context, actor Actor, id uuid.UUID) error {
	if _, err := s.getOwnedSensor(ctx, actor, id); err != nil {
		return err
	}
	if err := s.store.DeleteSensor(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// ListSensors lists sensors for an owner
func (s *ZoneService) ListSensors(ctx context.Context, actor Actor, ownerID uuid.UUID) ([]*models.Sensor, error) {
	if !actor.canAccess(ownerID) {
		return nil, ErrNotFound
	}
	return s.store.ListSensors(ctx, ownerID)
}

// UpdateSensorStatus records a sensor status report. A triggered report
// raises the alarm when the system is armed.
func (s *ZoneService) UpdateSensorStatus(ctx context.Context, actor Actor, id uuid.UUID, status models.SensorStatus) (*models.Sensor, error) {
	if !status.Valid() {
		return nil, validationErr("status", fmt.Sprintf("unknown status %q", status))
	}

	sensor, err := s.getOwnedSensor(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if sensor.Status == status {
		return sensor, nil
	}

	previous := sensor.Status
	sensor.Status = status
	if err := s.store.UpdateSensor(ctx, sensor); err != nil {
		return nil, err
	}

	sensorID := sensor.ID
	s.events.record(ctx, &models.EventLog{
		EventType:   models.EventTypeSensor,
		Description: fmt.Sprintf("Sensor %s reported %s", sensor.Name, status),
		SourceKind:  models.SourceSensor,
		SourceID:    &sensorID,
		ActorID:     sensor.OwnerID,
		Details: models.Variables{
			"from": string(previous),
			"to":   string(status),
		},
	})

	if status == models.SensorStatusTriggered {
		description := fmt.Sprintf("Alarm: sensor %s triggered", sensor.Name)
		if _, err := s.arming.TriggerAlarmIfArmed(ctx, Actor{ID: sensor.OwnerID}, &sensorID, description); err != nil {
			return nil, err
		}
	}

	return sensor, nil
}

func (s *ZoneService) getOwnedSensor(ctx context.Context, actor Actor, id uuid.UUID) (*models.Sensor, error) {
	sensor, err := s.store.GetSensor(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !actor.canAccess(sensor.OwnerID) {
		return nil, ErrNotFound
	}
	return sensor, nil
}
