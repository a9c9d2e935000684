package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/homeguard/homeguard-server/internal/security"
)

// NATSSubscriber receives device-originated lock signals (faults,
// recoveries, battery reports) published on the message bus by field
// devices or the simulator.
type NATSSubscriber struct {
	nc    *nats.Conn
	locks *security.LockService
	subs  []*nats.Subscription
}

// NewNATSSubscriber creates NATS subscriber
func NewNATSSubscriber(nc *nats.Conn, locks *security.LockService) *NATSSubscriber {
	return &NATSSubscriber{
		nc:    nc,
		locks: locks,
		subs:  make([]*nats.Subscription, 0),
	}
}

// Start starts subscriptions and blocks until the context is cancelled
func (s *NATSSubscriber) Start(ctx context.Context) error {
	sub, err := s.nc.Subscribe("locks.*.signal", s.handleLockSignal)
	if err != nil {
		return fmt.Errorf("subscribe lock signals: %w", err)
	}
	s.subs = append(s.subs, sub)

	log.Info().
		Int("subscriptions", len(s.subs)).
		Msg("NATS subscriber started")

	<-ctx.Done()

	for _, sub := range s.subs {
		sub.Unsubscribe()
	}

	return ctx.Err()
}

// handleLockSignal handles a device signal on locks.<lock_id>.signal
func (s *NATSSubscriber) handleLockSignal(msg *nats.Msg) {
	log.Debug().
		Str("subject", msg.Subject).
		Int("size", len(msg.Data)).
		Msg("Received lock signal")

	var signal struct {
		LockID       string `json:"lockId"`
		Kind         string `json:"kind"`
		BatteryLevel *int   `json:"batteryLevel,omitempty"`
	}

	if err := json.Unmarshal(msg.Data, &signal); err != nil {
		log.Error().Err(err).Msg("Failed to unmarshal lock signal")
		return
	}

	lockID, err := uuid.Parse(signal.LockID)
	if err != nil {
		log.Error().Err(err).Str("lock_id", signal.LockID).Msg("Invalid lock ID in signal")
		return
	}

	ctx := context.Background()

	switch signal.Kind {
	case "jammed", "offline", "cleared":
		if _, err := s.locks.ReportFault(ctx, lockID, security.FaultKind(signal.Kind)); err != nil {
			log.Error().Err(err).
				Str("lock_id", signal.LockID).
				Str("kind", signal.Kind).
				Msg("Failed to apply lock fault")
		}
	case "battery":
		if signal.BatteryLevel == nil {
			log.Error().Str("lock_id", signal.LockID).Msg("Battery signal without level")
			return
		}
		if _, err := s.locks.UpdateBattery(ctx, lockID, *signal.BatteryLevel); err != nil {
			log.Error().Err(err).
				Str("lock_id", signal.LockID).
				Msg("Failed to apply battery report")
		}
	default:
		log.Warn().Str("kind", signal.Kind).Msg("Unknown lock signal kind")
	}
}
