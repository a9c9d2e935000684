package security

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/homeguard/homeguard-server/internal/models"
)

// requireConsistent asserts the bidirectional membership invariant: a
// sensor references a zone exactly when that zone's derived list contains
// the sensor.
func requireConsistent(t *testing.T, env *testEnv, actor Actor) {
	t.Helper()
	ctx := context.Background()

	zones, err := env.zones.ListZones(ctx, actor, actor.ID)
	require.NoError(t, err)
	sensors, err := env.zones.ListSensors(ctx, actor, actor.ID)
	require.NoError(t, err)

	membership := make(map[uuid.UUID]uuid.UUID)
	for _, zone := range zones {
		for _, id := range zone.SensorIDs {
			_, dup := membership[id]
			require.False(t, dup, "sensor %s appears in more than one zone", id)
			membership[id] = zone.ID
		}
	}

	for _, sensor := range sensors {
		zoneID, inZone := membership[sensor.ID]
		if sensor.ZoneID == nil {
			require.False(t, inZone, "unassigned sensor %s listed by a zone", sensor.ID)
			continue
		}
		require.True(t, inZone, "sensor %s references a zone that does not list it", sensor.ID)
		require.Equal(t, zoneID, *sensor.ZoneID)
	}
}

func TestAssignSensorEstablishesMembership(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	zone := env.createZone(t, env.owner, "Ground Floor")
	sensor := env.createSensor(t, env.owner, "front door")

	require.NoError(t, env.zones.AssignSensor(ctx, env.owner, zone.ID, sensor.ID))
	requireConsistent(t, env, env.owner)

	got, err := env.zones.GetZone(ctx, env.owner, zone.ID)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{sensor.ID}, got.SensorIDs)
}

func TestReassignSensorMovesBetweenZones(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	zoneA := env.createZone(t, env.owner, "Zone A")
	zoneB := env.createZone(t, env.owner, "Zone B")
	s1 := env.createSensor(t, env.owner, "s1")
	s2 := env.createSensor(t, env.owner, "s2")

	_, err := env.zones.AttachSensors(ctx, env.owner, zoneA.ID, []uuid.UUID{s1.ID, s2.ID})
	require.NoError(t, err)
	requireConsistent(t, env, env.owner)

	require.NoError(t, env.zones.AssignSensor(ctx, env.owner, zoneB.ID, s1.ID))
	requireConsistent(t, env, env.owner)

	gotA, err := env.zones.GetZone(ctx, env.owner, zoneA.ID)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{s2.ID}, gotA.SensorIDs)

	gotB, err := env.zones.GetZone(ctx, env.owner, zoneB.ID)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{s1.ID}, gotB.SensorIDs)

	gotS1, err := env.zones.GetSensor(ctx, env.owner, s1.ID)
	require.NoError(t, err)
	require.Equal(t, zoneB.ID, *gotS1.ZoneID)
}

func TestRemoveSensorIdempotent(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	zone := env.createZone(t, env.owner, "Upstairs")
	sensor := env.createSensor(t, env.owner, "hall motion")

	require.NoError(t, env.zones.AssignSensor(ctx, env.owner, zone.ID, sensor.ID))
	require.NoError(t, env.zones.RemoveSensor(ctx, env.owner, zone.ID, sensor.ID))
	requireConsistent(t, env, env.owner)

	// Removing again is a successful no-op
	require.NoError(t, env.zones.RemoveSensor(ctx, env.owner, zone.ID, sensor.ID))

	got, err := env.zones.GetSensor(ctx, env.owner, sensor.ID)
	require.NoError(t, err)
	require.Nil(t, got.ZoneID)
}

func TestDeleteZoneDetachesSensors(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	zone := env.createZone(t, env.owner, "Garage")
	s1 := env.createSensor(t, env.owner, "garage door")
	s2 := env.createSensor(t, env.owner, "garage window")

	_, err := env.zones.AttachSensors(ctx, env.owner, zone.ID, []uuid.UUID{s1.ID, s2.ID})
	require.NoError(t, err)

	require.NoError(t, env.zones.DeleteZone(ctx, env.owner, zone.ID))
	requireConsistent(t, env, env.owner)

	for _, id := range []uuid.UUID{s1.ID, s2.ID} {
		sensor, err := env.zones.GetSensor(ctx, env.owner, id)
		require.NoError(t, err)
		require.Nil(t, sensor.ZoneID)
	}

	_, err = env.zones.GetZone(ctx, env.owner, zone.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestZoneOwnershipEnforced(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	zone := env.createZone(t, env.owner, "Private")
	sensor := env.createSensor(t, env.owner, "private sensor")

	_, err := env.zones.GetZone(ctx, env.other, zone.ID)
	require.ErrorIs(t, err, ErrNotFound)

	err = env.zones.AssignSensor(ctx, env.other, zone.ID, sensor.ID)
	require.ErrorIs(t, err, ErrNotFound)

	err = env.zones.DeleteZone(ctx, env.other, zone.ID)
	require.ErrorIs(t, err, ErrNotFound)

	// Admins bypass the ownership check
	admin := Actor{ID: env.other.ID, Admin: true}
	_, err = env.zones.GetZone(ctx, admin, zone.ID)
	require.NoError(t, err)
}

func TestCreateZoneValidation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.zones.CreateZone(ctx, env.owner, &models.Zone{})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, "name", vErr.Field)

	_, err = env.zones.CreateZone(ctx, env.owner, &models.Zone{Name: "x", ArmingMode: "bogus"})
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, "armingMode", vErr.Field)
}

func TestTriggeredSensorRaisesAlarmWhenArmed(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	sensor := env.createSensor(t, env.owner, "kitchen window")

	// While disarmed a trip is logged but does not sound the alarm
	_, err := env.zones.UpdateSensorStatus(ctx, env.owner, sensor.ID, models.SensorStatusTriggered)
	require.NoError(t, err)

	state, err := env.arming.CurrentState(ctx)
	require.NoError(t, err)
	require.Equal(t, models.ArmStateDisarmed, state.State)

	_, err = env.zones.UpdateSensorStatus(ctx, env.owner, sensor.ID, models.SensorStatusActive)
	require.NoError(t, err)
	_, err = env.arming.RequestTransition(ctx, env.owner, models.ArmStateArmedAway, models.CauseUser)
	require.NoError(t, err)

	_, err = env.zones.UpdateSensorStatus(ctx, env.owner, sensor.ID, models.SensorStatusTriggered)
	require.NoError(t, err)

	state, err = env.arming.CurrentState(ctx)
	require.NoError(t, err)
	require.Equal(t, models.ArmStateAlarm, state.State)

	alerts := env.ownerEvents(t, env.owner, models.EventTypeAlert)
	require.Len(t, alerts, 1)
	require.Contains(t, alerts[0].Description, "kitchen window")
}
