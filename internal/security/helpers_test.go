package security

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/homeguard/homeguard-server/internal/bus"
	"github.com/homeguard/homeguard-server/internal/models"
	"github.com/homeguard/homeguard-server/internal/storage"
)

type testEnv struct {
	store  *storage.MemoryStore
	bus    *bus.Bus
	events *EventService
	arming *ArmingService
	zones  *ZoneService
	codes  *AccessCodeService
	locks  *LockService

	owner Actor
	other Actor
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := storage.NewMemoryStore()
	b := bus.New()

	events := NewEventService(store)
	arming := NewArmingService(store, events)
	arming.SubscribeLockEvents(b)

	env := &testEnv{
		store:  store,
		bus:    b,
		events: events,
		arming: arming,
		zones:  NewZoneService(store, events, arming),
		codes:  NewAccessCodeService(store, events, DefaultCodeLength),
		locks:  NewLockService(store, events, b),
	}

	env.owner = env.createUser(t, "owner@example.com")
	env.other = env.createUser(t, "other@example.com")
	return env
}

func (e *testEnv) createUser(t *testing.T, email string) Actor {
	t.Helper()

	user := &models.User{
		Email:     email,
		Username:  email,
		FirstName: "Test",
		IsActive:  true,
	}
	require.NoError(t, e.store.CreateUser(context.Background(), user))
	return Actor{ID: user.ID, Name: user.DisplayName()}
}

// ownerEvents returns the owner's event log entries of the given type,
// newest first.
func (e *testEnv) ownerEvents(t *testing.T, actor Actor, eventType models.EventType) []*models.EventLog {
	t.Helper()

	filters := storage.EventLogFilters{ActorID: &actor.ID, EventType: &eventType}
	entries, _, err := e.store.ListEventLogs(context.Background(), filters, 100, 0)
	require.NoError(t, err)
	return entries
}

func (e *testEnv) createSensor(t *testing.T, actor Actor, name string) *models.Sensor {
	t.Helper()

	sensor, err := e.zones.CreateSensor(context.Background(), actor, &models.Sensor{
		Name: name,
		Type: models.SensorTypeDoor,
	})
	require.NoError(t, err)
	return sensor
}

func (e *testEnv) createZone(t *testing.T, actor Actor, name string) *models.Zone {
	t.Helper()

	zone, err := e.zones.CreateZone(context.Background(), actor, &models.Zone{Name: name})
	require.NoError(t, err)
	return zone
}
