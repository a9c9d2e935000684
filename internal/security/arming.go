package security

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/homeguard/homeguard-server/internal/bus"
	"github.com/homeguard/homeguard-server/internal/models"
	"github.com/homeguard/homeguard-server/internal/storage"
)

// ArmingService owns the single system-wide arm state. All transitions go
// through it; the mutex serializes racing callers (user action vs. a
// lock-triggered arm) so the persisted record is the single source of
// truth for who won.
type ArmingService struct {
	mu     sync.Mutex
	store  storage.Store
	events *EventService
	bus    *bus.Bus
}

// NewArmingService creates the arming service
func NewArmingService(store storage.Store, events *EventService) *ArmingService {
	return &ArmingService{store: store, events: events}
}

// SubscribeLockEvents wires the service to lock activity so locks with
// arm-on-lock enabled arm the system without the lock code calling in
// directly. The same bus carries the service's outgoing alarm messages.
func (s *ArmingService) SubscribeLockEvents(b *bus.Bus) {
	s.bus = b
	b.SubscribeLockEvents(func(msg bus.LockEventMessage) {
		if msg.Event.EventType != models.LockEventLock && msg.Event.EventType != models.LockEventAutoLock {
			return
		}
		if !msg.Lock.ArmOnLock {
			return
		}

		mode := msg.Lock.ArmOnLockMode
		if !mode.Valid() || mode == models.ArmStateDisarmed || mode == models.ArmStateAlarm {
			mode = models.ArmStateArmedAway
		}

		if _, err := s.RequestTransition(context.Background(), System, mode, models.CauseLockAutoArm); err != nil {
			log.Error().Err(err).
				Str("lock_id", msg.Event.LockID.String()).
				Str("target", string(mode)).
				Msg("Lock-triggered arming failed")
		}
	})
}

// CurrentState returns the arm state, defaulting to disarmed for a fresh
// installation.
func (s *ArmingService) CurrentState(ctx context.Context) (*models.SystemArmState, error) {
	state, err := s.store.GetArmState(ctx)
	if err == storage.ErrNotFound {
		return &models.SystemArmState{State: models.ArmStateDisarmed}, nil
	}
	return state, err
}

// RequestTransition moves the system to the target state. Valid targets
// are disarmed and the armed variants; alarm is entered only through
// TriggerAlarm and left only by disarming. Requesting the state already
// held is a successful no-op that emits no log entry.
func (s *ArmingService) RequestTransition(ctx context.Context, actor Actor, target models.ArmState, cause models.TransitionCause) (*models.SystemArmState, error) {
	if !target.Valid() || target == models.ArmStateAlarm {
		return nil, fmt.Errorf("%w: cannot transition to %q", ErrInvalidState, target)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.CurrentState(ctx)
	if err != nil {
		return nil, err
	}

	if current.State == target {
		return current, nil
	}

	if current.State == models.ArmStateAlarm && target != models.ArmStateDisarmed {
		return nil, fmt.Errorf("%w: alarm can only be cleared by disarming", ErrInvalidState)
	}

	state := &models.SystemArmState{
		State:         target,
		LastChangedBy: actor.ID,
		LastChangedAt: time.Now(),
	}
	if err := s.store.SaveArmState(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to save arm state: %w", err)
	}

	eventType := models.EventTypeArm
	if target == models.ArmStateDisarmed {
		eventType = models.EventTypeDisarm
	}
	s.events.record(ctx, &models.EventLog{
		EventType:   eventType,
		Description: fmt.Sprintf("System %s (%s)", transitionVerb(target), cause),
		SourceKind:  models.SourceSystem,
		ActorID:     actor.ID,
		Details: models.Variables{
			"from":  string(current.State),
			"to":    string(target),
			"cause": string(cause),
		},
	})

	log.Info().
		Str("from", string(current.State)).
		Str("to", string(target)).
		Str("cause", string(cause)).
		Msg("Arm state changed")

	return state, nil
}

// TriggerAlarm puts the system into alarm. Triggering while already in
// alarm is a no-op; the first alert entry stands.
func (s *ArmingService) TriggerAlarm(ctx context.Context, actor Actor, sourceSensorID *uuid.UUID, description string) (*models.SystemArmState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.CurrentState(ctx)
	if err != nil {
		return nil, err
	}

	if current.State == models.ArmStateAlarm {
		return current, nil
	}

	state := &models.SystemArmState{
		State:         models.ArmStateAlarm,
		LastChangedBy: actor.ID,
		LastChangedAt: time.Now(),
	}
	if err := s.store.SaveArmState(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to save arm state: %w", err)
	}

	if description == "" {
		description = "Alarm triggered"
	}
	entry := &models.EventLog{
		EventType:   models.EventTypeAlert,
		Description: description,
		SourceKind:  models.SourceSensor,
		SourceID:    sourceSensorID,
		ActorID:     actor.ID,
		Details: models.Variables{
			"from": string(current.State),
		},
	}
	s.events.record(ctx, entry)

	if s.bus != nil {
		s.bus.PublishAlarm(bus.AlarmMessage{Entry: *entry})
	}

	log.Warn().
		Str("from", string(current.State)).
		Str("description", description).
		Msg("Alarm triggered")

	return state, nil
}

// TriggerAlarmIfArmed raises the alarm only when the system is in an armed
// state. Sensor trips while disarmed are logged by the caller but do not
// sound the alarm.
func (s *ArmingService) TriggerAlarmIfArmed(ctx context.Context, actor Actor, sourceSensorID *uuid.UUID, description string) (bool, error) {
	current, err := s.CurrentState(ctx)
	if err != nil {
		return false, err
	}
	if !current.State.Armed() {
		return false, nil
	}

	_, err = s.TriggerAlarm(ctx, actor, sourceSensorID, description)
	return err == nil, err
}

func transitionVerb(target models.ArmState) string {
	switch target {
	case models.ArmStateDisarmed:
		return "disarmed"
	case models.ArmStateArmedHome:
		return "armed (home)"
	case models.ArmStateArmedAway:
		return "armed (away)"
	case models.ArmStateArmedNight:
		return "armed (night)"
	}
	return string(target)
}
