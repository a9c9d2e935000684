package security

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/homeguard/homeguard-server/internal/models"
	"github.com/homeguard/homeguard-server/internal/storage"
)

func (e *testEnv) appendEntry(t *testing.T, actor Actor, eventType models.EventType, description string) *models.EventLog {
	t.Helper()

	entry := &models.EventLog{
		EventType:   eventType,
		Description: description,
		SourceKind:  models.SourceSystem,
		ActorID:     actor.ID,
	}
	require.NoError(t, e.events.Append(context.Background(), entry))
	return entry
}

func TestQueryFilters(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	env.appendEntry(t, env.owner, models.EventTypeArm, "System armed (user)")
	env.appendEntry(t, env.owner, models.EventTypeDisarm, "System disarmed (user)")
	env.appendEntry(t, env.owner, models.EventTypeAlert, "Front door forced")

	armType := models.EventTypeArm
	entries, total, err := env.events.Query(ctx, env.owner, storage.EventLogFilters{EventType: &armType}, 10, 0)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, "System armed (user)", entries[0].Description)

	search := "front door"
	entries, total, err = env.events.Query(ctx, env.owner, storage.EventLogFilters{Search: &search}, 10, 0)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, models.EventTypeAlert, entries[0].EventType)

	future := time.Now().Add(time.Hour)
	_, total, err = env.events.Query(ctx, env.owner, storage.EventLogFilters{StartTime: &future}, 10, 0)
	require.NoError(t, err)
	require.EqualValues(t, 0, total)
}

func TestQueryScopedToActor(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	env.appendEntry(t, env.owner, models.EventTypeArm, "owner entry")
	env.appendEntry(t, env.other, models.EventTypeArm, "other entry")

	entries, total, err := env.events.Query(ctx, env.owner, storage.EventLogFilters{}, 10, 0)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, "owner entry", entries[0].Description)

	// Admins see everything
	admin := Actor{ID: env.owner.ID, Admin: true}
	_, total, err = env.events.Query(ctx, admin, storage.EventLogFilters{}, 10, 0)
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
}

func TestMarkRead(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	entry := env.appendEntry(t, env.owner, models.EventTypeAlert, "alert")

	require.NoError(t, env.events.MarkRead(ctx, env.owner, entry.ID))

	entries, _, err := env.events.Query(ctx, env.owner, storage.EventLogFilters{}, 10, 0)
	require.NoError(t, err)
	require.True(t, entries[0].Read)

	// Another user cannot mark entries they do not own
	other := env.appendEntry(t, env.other, models.EventTypeAlert, "other alert")
	require.ErrorIs(t, env.events.MarkRead(ctx, env.owner, other.ID), ErrNotFound)
}

func TestMarkAllRead(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	env.appendEntry(t, env.owner, models.EventTypeArm, "one")
	env.appendEntry(t, env.owner, models.EventTypeAlert, "two")
	env.appendEntry(t, env.other, models.EventTypeAlert, "theirs")

	require.NoError(t, env.events.MarkAllRead(ctx, env.owner))

	entries, _, err := env.events.Query(ctx, env.owner, storage.EventLogFilters{}, 10, 0)
	require.NoError(t, err)
	for _, e := range entries {
		require.True(t, e.Read)
	}

	theirEntries, _, err := env.events.Query(ctx, env.other, storage.EventLogFilters{}, 10, 0)
	require.NoError(t, err)
	require.False(t, theirEntries[0].Read)
}

func TestPurgeRemovesOnlyActorEntries(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	env.appendEntry(t, env.owner, models.EventTypeArm, "one")
	env.appendEntry(t, env.owner, models.EventTypeAlert, "two")
	env.appendEntry(t, env.other, models.EventTypeAlert, "theirs")

	purged, err := env.events.Purge(ctx, env.owner)
	require.NoError(t, err)
	require.EqualValues(t, 2, purged)

	_, total, err := env.events.Query(ctx, env.owner, storage.EventLogFilters{}, 10, 0)
	require.NoError(t, err)
	require.EqualValues(t, 0, total)

	_, total, err = env.events.Query(ctx, env.other, storage.EventLogFilters{}, 10, 0)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
}

func TestUnreadOnlyFilter(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	first := env.appendEntry(t, env.owner, models.EventTypeArm, "first")
	env.appendEntry(t, env.owner, models.EventTypeAlert, "second")

	require.NoError(t, env.events.MarkRead(ctx, env.owner, first.ID))

	entries, total, err := env.events.Query(ctx, env.owner, storage.EventLogFilters{UnreadOnly: true}, 10, 0)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, "second", entries[0].Description)
}
