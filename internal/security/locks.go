package security

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/homeguard/homeguard-server/internal/bus"
	"github.com/homeguard/homeguard-server/internal/models"
	"github.com/homeguard/homeguard-server/internal/storage"
)

// BatteryLowThreshold is the level at or below which a battery_low event
// is raised.
const BatteryLowThreshold = 20

// FaultKind is an externally reported lock condition
type FaultKind string

const (
	FaultJammed  FaultKind = "jammed"
	FaultOffline FaultKind = "offline"
	FaultCleared FaultKind = "cleared"
)

// LockService is the smart lock state machine. Lock and unlock requests
// are serialized per lock; jammed and offline are reachable only through
// ReportFault and block requests until cleared the same way. Every
// transition is published on the bus so the arming controller and the
// notification sinks react without being called directly.
type LockService struct {
	store  storage.Store
	events *EventService
	bus    *bus.Bus

	mu     sync.Mutex
	locks  map[uuid.UUID]*sync.Mutex
	timers map[uuid.UUID]*time.Timer
}

// NewLockService creates the lock controller
func NewLockService(store storage.Store, events *EventService, b *bus.Bus) *LockService {
	return &LockService{
		store:  store,
		events: events,
		bus:    b,
		locks:  make(map[uuid.UUID]*sync.Mutex),
		timers: make(map[uuid.UUID]*time.Timer),
	}
}

func (s *LockService) lockMutex(id uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.locks[id]
	if !ok {
		m = &sync.Mutex{}
		s.locks[id] = m
	}
	return m
}

// ========== Lock/Unlock ==========

// Lock engages a lock. Allowed only from unlocked; locking a locked lock
// returns ErrAlreadyInState with no new event, and jammed/offline locks
// reject with ErrInvalidState.
func (s *LockService) Lock(ctx context.Context, actor Actor, lockID uuid.UUID, method models.LockMethod) (*models.SmartLock, error) {
	m := s.lockMutex(lockID)
	m.Lock()
	defer m.Unlock()

	lock, err := s.getOwnedLock(ctx, actor, lockID)
	if err != nil {
		return nil, err
	}

	if lock.State.Faulted() {
		return nil, fmt.Errorf("%w: lock is %s", ErrInvalidState, lock.State)
	}
	if lock.State == models.LockStateLocked {
		return nil, ErrAlreadyInState
	}

	s.cancelAutoLock(lockID)

	if err := s.applyTransition(ctx, lock, models.LockStateLocked, models.LockEventLock, method, &actor); err != nil {
		return nil, err
	}
	return lock, nil
}

// Unlock disengages a lock; symmetric to Lock. If auto-lock is enabled
// the relock timer starts now.
func (s *LockService) Unlock(ctx context.Context, actor Actor, lockID uuid.UUID, method models.LockMethod) (*models.SmartLock, error) {
	m := s.lockMutex(lockID)
	m.Lock()
	defer m.Unlock()

	lock, err := s.getOwnedLock(ctx, actor, lockID)
	if err != nil {
		return nil, err
	}

	if lock.State.Faulted() {
		return nil, fmt.Errorf("%w: lock is %s", ErrInvalidState, lock.State)
	}
	if lock.State == models.LockStateUnlocked {
		return nil, ErrAlreadyInState
	}

	if err := s.applyTransition(ctx, lock, models.LockStateUnlocked, models.LockEventUnlock, method, &actor); err != nil {
		return nil, err
	}

	if lock.AutoLock && lock.AutoLockDelay > 0 {
		s.scheduleAutoLock(lockID, time.Duration(lock.AutoLockDelay)*time.Second)
	}

	return lock, nil
}

func (s *LockService) applyTransition(ctx context.Context, lock *models.SmartLock, target models.LockState, eventType models.LockEventType, method models.LockMethod, actor *Actor) error {
	now := time.Now()
	lock.State = target
	lock.LastActivity = &now

	if err := s.store.UpdateLock(ctx, lock); err != nil {
		return err
	}

	event := models.LockEvent{
		LockID:    lock.ID,
		EventType: eventType,
		Method:    method,
	}
	if actor != nil && actor.ID != uuid.Nil {
		actorID := actor.ID
		event.ActorID = &actorID
	}
	if err := s.store.CreateLockEvent(ctx, &event); err != nil {
		return fmt.Errorf("failed to record lock event: %w", err)
	}

	logType := models.EventTypeLock
	verb := "locked"
	if target == models.LockStateUnlocked {
		logType = models.EventTypeUnlock
		verb = "unlocked"
	}
	if eventType == models.LockEventAutoLock {
		verb = "auto-locked"
	}
	lockID := lock.ID
	s.events.record(ctx, &models.EventLog{
		EventType:   logType,
		Description: fmt.Sprintf("Lock %s %s (%s)", lock.Name, verb, method),
		SourceKind:  models.SourceLock,
		SourceID:    &lockID,
		ActorID:     lock.OwnerID,
		Details: models.Variables{
			"method": string(method),
		},
	})

	s.bus.PublishLockEvent(bus.LockEventMessage{Event: event, Lock: *lock})

	log.Info().
		Str("lock_id", lock.ID.String()).
		Str("state", string(target)).
		Str("method", string(method)).
		Msg("Lock state changed")

	return nil
}

// ========== Auto-lock ==========

func (s *LockService) scheduleAutoLock(lockID uuid.UUID, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[lockID]; ok {
		t.Stop()
	}
	s.timers[lockID] = time.AfterFunc(delay, func() {
		s.autoLock(lockID)
	})
}

func (s *LockService) cancelAutoLock(lockID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[lockID]; ok {
		t.Stop()
		delete(s.timers, lockID)
	}
}

func (s *LockService) autoLock(lockID uuid.UUID) {
	ctx := context.Background()

	m := s.lockMutex(lockID)
	m.Lock()
	defer m.Unlock()

	s.mu.Lock()
	delete(s.timers, lockID)
	s.mu.Unlock()

	lock, err := s.store.GetLock(ctx, lockID)
	if err != nil {
		log.Error().Err(err).Str("lock_id", lockID.String()).Msg("Auto-lock lookup failed")
		return
	}

	// The lock may have been locked manually, or faulted, while the
	// timer was pending.
	if lock.State != models.LockStateUnlocked {
		return
	}

	if err := s.applyTransition(ctx, lock, models.LockStateLocked, models.LockEventAutoLock, models.LockMethodAuto, nil); err != nil {
		log.Error().Err(err).Str("lock_id", lockID.String()).Msg("Auto-lock failed")
	}
}

// ========== External signals ==========

// ReportFault records a device-originated condition. This is the only
// path into and out of jammed/offline.
func (s *LockService) ReportFault(ctx context.Context, lockID uuid.UUID, kind FaultKind) (*models.SmartLock, error) {
	m := s.lockMutex(lockID)
	m.Lock()
	defer m.Unlock()

	lock, err := s.store.GetLock(ctx, lockID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var target models.LockState
	var eventType models.LockEventType
	var description string

	switch kind {
	case FaultJammed:
		target = models.LockStateJammed
		eventType = models.LockEventJammed
		description = fmt.Sprintf("Lock %s jammed", lock.Name)
	case FaultOffline:
		target = models.LockStateOffline
		eventType = models.LockEventOffline
		description = fmt.Sprintf("Lock %s went offline", lock.Name)
	case FaultCleared:
		if !lock.State.Faulted() {
			return lock, nil
		}
		target = models.LockStateLocked
		eventType = models.LockEventOnline
		description = fmt.Sprintf("Lock %s recovered", lock.Name)
	default:
		return nil, validationErr("kind", fmt.Sprintf("unknown fault kind %q", kind))
	}

	if lock.State == target {
		return lock, nil
	}

	s.cancelAutoLock(lockID)

	now := time.Now()
	lock.State = target
	lock.LastActivity = &now
	if err := s.store.UpdateLock(ctx, lock); err != nil {
		return nil, err
	}

	event := models.LockEvent{
		LockID:    lock.ID,
		EventType: eventType,
		Method:    models.LockMethodSystem,
	}
	if err := s.store.CreateLockEvent(ctx, &event); err != nil {
		return nil, fmt.Errorf("failed to record lock event: %w", err)
	}

	lID := lock.ID
	s.events.record(ctx, &models.EventLog{
		EventType:   models.EventTypeAlert,
		Description: description,
		SourceKind:  models.SourceLock,
		SourceID:    &lID,
		ActorID:     lock.OwnerID,
		Details: models.Variables{
			"state": string(target),
		},
	})

	s.bus.PublishLockEvent(bus.LockEventMessage{Event: event, Lock: *lock})

	log.Warn().
		Str("lock_id", lock.ID.String()).
		Str("kind", string(kind)).
		Str("state", string(target)).
		Msg("Lock fault reported")

	return lock, nil
}

// UpdateBattery records a device battery report and raises a battery_low
// event when the level crosses the threshold.
func (s *LockService) UpdateBattery(ctx context.Context, lockID uuid.UUID, level int) (*models.SmartLock, error) {
	if level < 0 || level > 100 {
		return nil, validationErr("batteryLevel", "must be 0-100")
	}

	m := s.lockMutex(lockID)
	m.Lock()
	defer m.Unlock()

	lock, err := s.store.GetLock(ctx, lockID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	previous := lock.BatteryLevel
	lock.BatteryLevel = level
	if err := s.store.UpdateLock(ctx, lock); err != nil {
		return nil, err
	}

	if level <= BatteryLowThreshold && previous > BatteryLowThreshold {
		event := models.LockEvent{
			LockID:    lock.ID,
			EventType: models.LockEventBatteryLow,
			Method:    models.LockMethodSystem,
		}
		if err := s.store.CreateLockEvent(ctx, &event); err != nil {
			return nil, fmt.Errorf("failed to record lock event: %w", err)
		}

		lID := lock.ID
		s.events.record(ctx, &models.EventLog{
			EventType:   models.EventTypeAlert,
			Description: fmt.Sprintf("Lock %s battery low (%d%%)", lock.Name, level),
			SourceKind:  models.SourceLock,
			SourceID:    &lID,
			ActorID:     lock.OwnerID,
			Details: models.Variables{
				"batteryLevel": level,
			},
		})

		s.bus.PublishLockEvent(bus.LockEventMessage{Event: event, Lock: *lock})
	}

	return lock, nil
}

// ========== History ==========

// History returns a lock's events, most recent first
func (s *LockService) History(ctx context.Context, actor Actor, lockID uuid.UUID, limit, offset int) ([]*models.LockEvent, int64, error) {
	if _, err := s.getOwnedLock(ctx, actor, lockID); err != nil {
		return nil, 0, err
	}

	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	return s.store.ListLockEvents(ctx, lockID, limit, offset)
}

// ========== CRUD ==========

// CreateLock registers a lock for the actor
func (s *LockService) CreateLock(ctx context.Context, actor Actor, lock *models.SmartLock) (*models.SmartLock, error) {
	if lock.Name == "" {
		return nil, validationErr("name", "required")
	}
	if lock.State == "" {
		lock.State = models.LockStateLocked
	}
	if lock.AutoLockDelay < 0 {
		return nil, validationErr("autoLockDelay", "must not be negative")
	}
	if lock.ArmOnLock && lock.ArmOnLockMode == "" {
		lock.ArmOnLockMode = models.ArmStateArmedAway
	}
	if lock.BatteryLevel == 0 {
		lock.BatteryLevel = 100
	}

	lock.OwnerID = actor.ID
	if err := s.store.CreateLock(ctx, lock); err != nil {
		return nil, err
	}
	return lock, nil
}

// GetLock returns a lock owned by the actor
func (s *LockService) GetLock(ctx context.Context, actor Actor, id uuid.UUID) (*models.SmartLock, error) {
	return s.getOwnedLock(ctx, actor, id)
}

// UpdateSettings changes a lock's name and behavior settings. State is
// mutated only through Lock/Unlock/ReportFault.
func (s *LockService) UpdateSettings(ctx context.Context, actor Actor, lock *models.SmartLock) (*models.SmartLock, error) {
	existing, err := s.getOwnedLock(ctx, actor, lock.ID)
	if err != nil {
		return nil, err
	}

	if lock.Name == "" {
		return nil, validationErr("name", "required")
	}
	if lock.AutoLockDelay < 0 {
		return nil, validationErr("autoLockDelay", "must not be negative")
	}
	if lock.ArmOnLock {
		mode := lock.ArmOnLockMode
		if mode == "" {
			mode = models.ArmStateArmedAway
		}
		if !mode.Valid() || mode == models.ArmStateDisarmed || mode == models.ArmStateAlarm {
			return nil, validationErr("armOnLockMode", fmt.Sprintf("cannot arm to %q", mode))
		}
		lock.ArmOnLockMode = mode
	}

	existing.Name = lock.Name
	existing.AutoLock = lock.AutoLock
	existing.AutoLockDelay = lock.AutoLockDelay
	existing.ArmOnLock = lock.ArmOnLock
	existing.ArmOnLockMode = lock.ArmOnLockMode
	existing.NotifyOnUnlock = lock.NotifyOnUnlock

	if err := s.store.UpdateLock(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// DeleteLock removes a lock and cancels any pending auto-lock timer
func (s *LockService) DeleteLock(ctx context.Context, actor Actor, id uuid.UUID) error {
	if _, err := s.getOwnedLock(ctx, actor, id); err != nil {
		return err
	}

	s.cancelAutoLock(id)

	if err := s.store.DeleteLock(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// ListLocks lists locks for an owner
func (s *LockService) ListLocks(ctx context.Context, actor Actor, ownerID uuid.UUID) ([]*models.SmartLock, error) {
	if !actor.canAccess(ownerID) {
		return nil, ErrNotFound
	}
	return s.store.ListLocks(ctx, ownerID)
}

func (s *LockService) getOwnedLock(ctx context.Context, actor Actor, id uuid.UUID) (*models.SmartLock, error) {
	lock, err := s.store.GetLock(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !actor.canAccess(lock.OwnerID) {
		return nil, ErrNotFound
	}
	return lock, nil
}
