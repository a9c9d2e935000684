package bus

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/homeguard/homeguard-server/internal/models"
)

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	t.Parallel()

	b := New()

	var first, second []LockEventMessage
	b.SubscribeLockEvents(func(msg LockEventMessage) { first = append(first, msg) })
	b.SubscribeLockEvents(func(msg LockEventMessage) { second = append(second, msg) })

	lockID := uuid.New()
	b.PublishLockEvent(LockEventMessage{
		Event: models.LockEvent{ID: uuid.New(), LockID: lockID, EventType: models.LockEventLock},
		Lock:  models.SmartLock{State: models.LockStateLocked},
	})

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	require.Equal(t, lockID, first[0].Event.LockID)
	require.Equal(t, models.LockStateLocked, second[0].Lock.State)
}

func TestPublishWithoutSubscribers(t *testing.T) {
	t.Parallel()

	b := New()
	require.NotPanics(t, func() {
		b.PublishLockEvent(LockEventMessage{})
		b.PublishAlarm(AlarmMessage{})
	})
}

func TestPublishAlarmDelivers(t *testing.T) {
	t.Parallel()

	b := New()

	var got []AlarmMessage
	b.SubscribeAlarms(func(msg AlarmMessage) { got = append(got, msg) })

	b.PublishAlarm(AlarmMessage{
		Entry: models.EventLog{EventType: models.EventTypeAlert, Description: "Alarm triggered"},
	})

	require.Len(t, got, 1)
	require.Equal(t, "Alarm triggered", got[0].Entry.Description)
}
