package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/homeguard/homeguard-server/internal/models"
)

func TestConsumeAccessCodeStopsAtLimit(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()

	code := &models.AccessCode{
		Code:      "123456",
		ExpiresAt: time.Now().Add(time.Hour),
		UseLimit:  2,
	}
	require.NoError(t, store.CreateAccessCode(ctx, code))

	now := time.Now()
	updated, err := store.ConsumeAccessCode(ctx, code.ID, now)
	require.NoError(t, err)
	require.Equal(t, 1, updated.UsedCount)
	require.NotNil(t, updated.LastUsedAt)

	updated, err = store.ConsumeAccessCode(ctx, code.ID, now)
	require.NoError(t, err)
	require.Equal(t, 2, updated.UsedCount)

	_, err = store.ConsumeAccessCode(ctx, code.ID, now)
	require.ErrorIs(t, err, ErrLimitExceeded)
}

func TestConsumeAccessCodeConcurrent(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()

	code := &models.AccessCode{
		Code:      "654321",
		ExpiresAt: time.Now().Add(time.Hour),
		UseLimit:  5,
	}
	require.NoError(t, store.CreateAccessCode(ctx, code))

	const workers = 50
	var wg sync.WaitGroup
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.ConsumeAccessCode(ctx, code.ID, time.Now())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok int
	for err := range errs {
		if err == nil {
			ok++
		} else {
			require.ErrorIs(t, err, ErrLimitExceeded)
		}
	}
	require.Equal(t, 5, ok)

	got, err := store.GetAccessCode(ctx, code.ID)
	require.NoError(t, err)
	require.Equal(t, 5, got.UsedCount)
}

func TestListEventLogsPagination(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()

	actorID := mustCreateUser(t, store).ID
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.CreateEventLog(ctx, &models.EventLog{
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
			EventType:   models.EventTypeArm,
			Description: "entry",
			SourceKind:  models.SourceSystem,
			ActorID:     actorID,
		}))
	}

	entries, total, err := store.ListEventLogs(ctx, EventLogFilters{}, 2, 0)
	require.NoError(t, err)
	require.EqualValues(t, 5, total)
	require.Len(t, entries, 2)
	require.True(t, entries[0].CreatedAt.After(entries[1].CreatedAt))

	entries, _, err = store.ListEventLogs(ctx, EventLogFilters{}, 2, 4)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entries, _, err = store.ListEventLogs(ctx, EventLogFilters{}, 2, 10)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestGetReturnsCopies(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()

	zone := &models.Zone{Name: "original"}
	zone.OwnerID = mustCreateUser(t, store).ID
	require.NoError(t, store.CreateZone(ctx, zone))

	got, err := store.GetZone(ctx, zone.ID)
	require.NoError(t, err)
	got.Name = "mutated"

	again, err := store.GetZone(ctx, zone.ID)
	require.NoError(t, err)
	require.Equal(t, "original", again.Name)
}

func TestDetachZoneSensors(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()

	owner := mustCreateUser(t, store)
	zone := &models.Zone{Name: "zone"}
	zone.OwnerID = owner.ID
	require.NoError(t, store.CreateZone(ctx, zone))

	for _, name := range []string{"a", "b"} {
		zoneID := zone.ID
		sensor := &models.Sensor{Name: name, Type: models.SensorTypeDoor, Status: models.SensorStatusActive, ZoneID: &zoneID}
		sensor.OwnerID = owner.ID
		require.NoError(t, store.CreateSensor(ctx, sensor))
	}

	ids, err := store.ListZoneSensorIDs(ctx, zone.ID)
	require.NoError(t, err)
	require.Len(t, ids, 2)

	require.NoError(t, store.DetachZoneSensors(ctx, zone.ID))

	ids, err = store.ListZoneSensorIDs(ctx, zone.ID)
	require.NoError(t, err)
	require.Empty(t, ids)
}

func mustCreateUser(t *testing.T, store *MemoryStore) *models.User {
	t.Helper()

	user := &models.User{Email: "user@example.com", Username: "user", IsActive: true}
	require.NoError(t, store.CreateUser(context.Background(), user))
	return user
}
