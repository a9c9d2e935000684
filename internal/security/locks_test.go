package security

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/homeguard/homeguard-server/internal/models"
)

func (e *testEnv) createLock(t *testing.T, actor Actor, lock *models.SmartLock) *models.SmartLock {
	t.Helper()

	created, err := e.locks.CreateLock(context.Background(), actor, lock)
	require.NoError(t, err)
	return created
}

func TestLockFromUnlocked(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	lock := env.createLock(t, env.owner, &models.SmartLock{
		Name:  "front door",
		State: models.LockStateUnlocked,
	})

	got, err := env.locks.Lock(ctx, env.owner, lock.ID, models.LockMethodApp)
	require.NoError(t, err)
	require.Equal(t, models.LockStateLocked, got.State)
	require.NotNil(t, got.LastActivity)

	history, total, err := env.locks.History(ctx, env.owner, lock.ID, 10, 0)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, models.LockEventLock, history[0].EventType)
	require.Equal(t, models.LockMethodApp, history[0].Method)
	require.Equal(t, env.owner.ID, *history[0].ActorID)
}

func TestLockAlreadyLocked(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	lock := env.createLock(t, env.owner, &models.SmartLock{
		Name:  "back door",
		State: models.LockStateLocked,
	})

	_, err := env.locks.Lock(ctx, env.owner, lock.ID, models.LockMethodApp)
	require.ErrorIs(t, err, ErrAlreadyInState)

	_, total, err := env.locks.History(ctx, env.owner, lock.ID, 10, 0)
	require.NoError(t, err)
	require.EqualValues(t, 0, total)
}

func TestFaultedLockRejectsRequests(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	lock := env.createLock(t, env.owner, &models.SmartLock{
		Name:  "side door",
		State: models.LockStateUnlocked,
	})

	faulted, err := env.locks.ReportFault(ctx, lock.ID, FaultJammed)
	require.NoError(t, err)
	require.Equal(t, models.LockStateJammed, faulted.State)

	_, err = env.locks.Lock(ctx, env.owner, lock.ID, models.LockMethodApp)
	require.ErrorIs(t, err, ErrInvalidState)
	_, err = env.locks.Unlock(ctx, env.owner, lock.ID, models.LockMethodApp)
	require.ErrorIs(t, err, ErrInvalidState)

	// Only an external signal clears the fault
	cleared, err := env.locks.ReportFault(ctx, lock.ID, FaultCleared)
	require.NoError(t, err)
	require.Equal(t, models.LockStateLocked, cleared.State)

	_, err = env.locks.Unlock(ctx, env.owner, lock.ID, models.LockMethodKeypad)
	require.NoError(t, err)
}

func TestArmOnLockArmsSystem(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	lock := env.createLock(t, env.owner, &models.SmartLock{
		Name:          "front door",
		State:         models.LockStateUnlocked,
		ArmOnLock:     true,
		ArmOnLockMode: models.ArmStateArmedAway,
	})

	got, err := env.locks.Lock(ctx, env.owner, lock.ID, models.LockMethodApp)
	require.NoError(t, err)
	require.Equal(t, models.LockStateLocked, got.State)

	state, err := env.arming.CurrentState(ctx)
	require.NoError(t, err)
	require.Equal(t, models.ArmStateArmedAway, state.State)

	// One entry for the lock, one for the arm transition
	lockEntries := env.ownerEvents(t, env.owner, models.EventTypeLock)
	require.Len(t, lockEntries, 1)
	armEntries := env.ownerEvents(t, Actor{}, models.EventTypeArm)
	require.Len(t, armEntries, 1)
	require.Contains(t, armEntries[0].Description, "lock_auto_arm")
}

func TestUnlockWithoutArmOnLockLeavesArmState(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	lock := env.createLock(t, env.owner, &models.SmartLock{
		Name:  "patio door",
		State: models.LockStateUnlocked,
	})

	_, err := env.locks.Lock(ctx, env.owner, lock.ID, models.LockMethodApp)
	require.NoError(t, err)

	state, err := env.arming.CurrentState(ctx)
	require.NoError(t, err)
	require.Equal(t, models.ArmStateDisarmed, state.State)
}

func TestAutoLockRelocksAfterDelay(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	lock := env.createLock(t, env.owner, &models.SmartLock{
		Name:          "front door",
		State:         models.LockStateLocked,
		AutoLock:      true,
		AutoLockDelay: 1,
	})

	_, err := env.locks.Unlock(ctx, env.owner, lock.ID, models.LockMethodApp)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := env.locks.GetLock(ctx, env.owner, lock.ID)
		return err == nil && got.State == models.LockStateLocked
	}, 3*time.Second, 50*time.Millisecond)

	history, _, err := env.locks.History(ctx, env.owner, lock.ID, 10, 0)
	require.NoError(t, err)
	require.Equal(t, models.LockEventAutoLock, history[0].EventType)
	require.Equal(t, models.LockMethodAuto, history[0].Method)
	require.Nil(t, history[0].ActorID)
}

func TestManualLockCancelsAutoLockTimer(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	lock := env.createLock(t, env.owner, &models.SmartLock{
		Name:          "garage door",
		State:         models.LockStateLocked,
		AutoLock:      true,
		AutoLockDelay: 1,
	})

	_, err := env.locks.Unlock(ctx, env.owner, lock.ID, models.LockMethodApp)
	require.NoError(t, err)
	_, err = env.locks.Lock(ctx, env.owner, lock.ID, models.LockMethodApp)
	require.NoError(t, err)

	time.Sleep(1500 * time.Millisecond)

	history, total, err := env.locks.History(ctx, env.owner, lock.ID, 10, 0)
	require.NoError(t, err)
	require.EqualValues(t, 2, total) // unlock + manual lock, no autolock
	for _, e := range history {
		require.NotEqual(t, models.LockEventAutoLock, e.EventType)
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	lock := env.createLock(t, env.owner, &models.SmartLock{
		Name:  "front door",
		State: models.LockStateLocked,
	})

	_, err := env.locks.Unlock(ctx, env.owner, lock.ID, models.LockMethodApp)
	require.NoError(t, err)
	_, err = env.locks.Lock(ctx, env.owner, lock.ID, models.LockMethodKeypad)
	require.NoError(t, err)

	history, total, err := env.locks.History(ctx, env.owner, lock.ID, 10, 0)
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Equal(t, models.LockEventLock, history[0].EventType)
	require.Equal(t, models.LockEventUnlock, history[1].EventType)
}

func TestUpdateBatteryRaisesLowEvent(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	lock := env.createLock(t, env.owner, &models.SmartLock{
		Name:  "front door",
		State: models.LockStateLocked,
	})

	_, err := env.locks.UpdateBattery(ctx, lock.ID, 50)
	require.NoError(t, err)
	_, total, err := env.locks.History(ctx, env.owner, lock.ID, 10, 0)
	require.NoError(t, err)
	require.EqualValues(t, 0, total)

	got, err := env.locks.UpdateBattery(ctx, lock.ID, 15)
	require.NoError(t, err)
	require.Equal(t, 15, got.BatteryLevel)

	history, total, err := env.locks.History(ctx, env.owner, lock.ID, 10, 0)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, models.LockEventBatteryLow, history[0].EventType)

	// No second event while the level stays below the threshold
	_, err = env.locks.UpdateBattery(ctx, lock.ID, 10)
	require.NoError(t, err)
	_, total, err = env.locks.History(ctx, env.owner, lock.ID, 10, 0)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
}

func TestLockOwnershipEnforced(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	lock := env.createLock(t, env.owner, &models.SmartLock{
		Name:  "front door",
		State: models.LockStateUnlocked,
	})

	_, err := env.locks.Lock(ctx, env.other, lock.ID, models.LockMethodApp)
	require.ErrorIs(t, err, ErrNotFound)

	_, _, err = env.locks.History(ctx, env.other, lock.ID, 10, 0)
	require.ErrorIs(t, err, ErrNotFound)
}
