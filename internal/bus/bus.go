// Package bus provides a synchronous in-process event bus for lock
// activity. The lock controller publishes every lock event here; the
// arming controller and notification sinks subscribe instead of being
// called directly, so the lock code has no compile-time dependency on
// its consumers.
package bus

import (
	"sync"

	"github.com/homeguard/homeguard-server/internal/models"
)

// LockEventMessage carries a lock event together with a snapshot of the
// lock it belongs to, taken after the event was applied.
type LockEventMessage struct {
	Event models.LockEvent
	Lock  models.SmartLock
}

// AlarmMessage carries the event log entry written when the system
// entered the alarm state.
type AlarmMessage struct {
	Entry models.EventLog
}

// Handler processes a published lock event message
type Handler func(msg LockEventMessage)

// AlarmHandler processes a published alarm message
type AlarmHandler func(msg AlarmMessage)

// Bus fans messages out to subscribers. Publish runs handlers
// synchronously in subscription order; handlers that need to do slow work
// should hand it off themselves.
type Bus struct {
	mu            sync.RWMutex
	handlers      []Handler
	alarmHandlers []AlarmHandler
}

// New creates an empty bus
func New() *Bus {
	return &Bus{}
}

// SubscribeLockEvents registers a handler for all lock event messages
func (b *Bus) SubscribeLockEvents(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// PublishLockEvent delivers a message to every subscriber
func (b *Bus) PublishLockEvent(msg LockEventMessage) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, h := range handlers {
		h(msg)
	}
}

// SubscribeAlarms registers a handler for alarm messages
func (b *Bus) SubscribeAlarms(h AlarmHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.alarmHandlers = append(b.alarmHandlers, h)
}

// PublishAlarm delivers an alarm message to every subscriber
func (b *Bus) PublishAlarm(msg AlarmMessage) {
	b.mu.RLock()
	handlers := make([]AlarmHandler, len(b.alarmHandlers))
	copy(handlers, b.alarmHandlers)
	b.mu.RUnlock()

	for _, h := range handlers {
		h(msg)
	}
}
