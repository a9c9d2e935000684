package security

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/homeguard/homeguard-server/internal/models"
)

func TestRequestTransitionArmsSystem(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	state, err := env.arming.CurrentState(ctx)
	require.NoError(t, err)
	require.Equal(t, models.ArmStateDisarmed, state.State)

	state, err = env.arming.RequestTransition(ctx, env.owner, models.ArmStateArmedAway, models.CauseUser)
	require.NoError(t, err)
	require.Equal(t, models.ArmStateArmedAway, state.State)
	require.Equal(t, env.owner.ID, state.LastChangedBy)

	entries := env.ownerEvents(t, env.owner, models.EventTypeArm)
	require.Len(t, entries, 1)
	require.Contains(t, entries[0].Description, "user")
}

func TestRequestTransitionIdempotent(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.arming.RequestTransition(ctx, env.owner, models.ArmStateArmedHome, models.CauseUser)
	require.NoError(t, err)

	// Second request for the same state succeeds without a new log entry
	state, err := env.arming.RequestTransition(ctx, env.owner, models.ArmStateArmedHome, models.CauseUser)
	require.NoError(t, err)
	require.Equal(t, models.ArmStateArmedHome, state.State)

	entries := env.ownerEvents(t, env.owner, models.EventTypeArm)
	require.Len(t, entries, 1)
}

func TestRequestTransitionRejectsAlarmTarget(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	_, err := env.arming.RequestTransition(context.Background(), env.owner, models.ArmStateAlarm, models.CauseUser)
	require.ErrorIs(t, err, ErrInvalidState)

	_, err = env.arming.RequestTransition(context.Background(), env.owner, "armed_sideways", models.CauseUser)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestAlarmClearedOnlyByDisarm(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.arming.RequestTransition(ctx, env.owner, models.ArmStateArmedNight, models.CauseUser)
	require.NoError(t, err)

	state, err := env.arming.TriggerAlarm(ctx, env.owner, nil, "front door forced")
	require.NoError(t, err)
	require.Equal(t, models.ArmStateAlarm, state.State)

	_, err = env.arming.RequestTransition(ctx, env.owner, models.ArmStateArmedHome, models.CauseUser)
	require.ErrorIs(t, err, ErrInvalidState)

	state, err = env.arming.RequestTransition(ctx, env.owner, models.ArmStateDisarmed, models.CauseUser)
	require.NoError(t, err)
	require.Equal(t, models.ArmStateDisarmed, state.State)

	alerts := env.ownerEvents(t, env.owner, models.EventTypeAlert)
	require.Len(t, alerts, 1)
	require.Equal(t, "front door forced", alerts[0].Description)
}

func TestTriggerAlarmIdempotent(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.arming.TriggerAlarm(ctx, env.owner, nil, "first")
	require.NoError(t, err)
	_, err = env.arming.TriggerAlarm(ctx, env.owner, nil, "second")
	require.NoError(t, err)

	alerts := env.ownerEvents(t, env.owner, models.EventTypeAlert)
	require.Len(t, alerts, 1)
	require.Equal(t, "first", alerts[0].Description)
}

func TestTriggerAlarmIfArmed(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	triggered, err := env.arming.TriggerAlarmIfArmed(ctx, env.owner, nil, "motion while disarmed")
	require.NoError(t, err)
	require.False(t, triggered)

	state, err := env.arming.CurrentState(ctx)
	require.NoError(t, err)
	require.Equal(t, models.ArmStateDisarmed, state.State)

	_, err = env.arming.RequestTransition(ctx, env.owner, models.ArmStateArmedAway, models.CauseUser)
	require.NoError(t, err)

	triggered, err = env.arming.TriggerAlarmIfArmed(ctx, env.owner, nil, "motion while armed")
	require.NoError(t, err)
	require.True(t, triggered)

	state, err = env.arming.CurrentState(ctx)
	require.NoError(t, err)
	require.Equal(t, models.ArmStateAlarm, state.State)
}
