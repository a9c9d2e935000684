package server

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/homeguard/homeguard-server/internal/bus"
	"github.com/homeguard/homeguard-server/internal/models"
)

// Notifier is the best-effort notification sink. It watches lock
// activity on the in-process bus and republishes the events that warrant
// a push notification onto NATS, where delivery services pick them up.
// Failures are logged and dropped; notifications never block or fail the
// originating operation.
type Notifier struct {
	nc *nats.Conn
}

// NewNotifier creates a notifier publishing to NATS
func NewNotifier(nc *nats.Conn) *Notifier {
	return &Notifier{nc: nc}
}

// notification is the payload published to delivery services
type notification struct {
	Kind      string    `json:"kind"`
	LockID    string    `json:"lockId"`
	LockName  string    `json:"lockName"`
	OwnerID   string    `json:"ownerId"`
	Method    string    `json:"method,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Subscribe wires the notifier to the in-process bus
func (n *Notifier) Subscribe(b *bus.Bus) {
	b.SubscribeLockEvents(func(msg bus.LockEventMessage) {
		switch msg.Event.EventType {
		case models.LockEventUnlock:
			if !msg.Lock.NotifyOnUnlock {
				return
			}
			n.publishLockEvent("notify.lock.unlocked", &msg)
		case models.LockEventJammed, models.LockEventOffline, models.LockEventBatteryLow:
			n.publishLockEvent("notify.lock.fault", &msg)
		}
	})

	b.SubscribeAlarms(func(msg bus.AlarmMessage) {
		n.publishJSON("notify.alarm", map[string]interface{}{
			"kind":        "alarm",
			"description": msg.Entry.Description,
			"sourceId":    msg.Entry.SourceID,
			"timestamp":   msg.Entry.CreatedAt,
		})
	})
}

func (n *Notifier) publishLockEvent(subject string, msg *bus.LockEventMessage) {
	n.publishJSON(subject, notification{
		Kind:      string(msg.Event.EventType),
		LockID:    msg.Lock.ID.String(),
		LockName:  msg.Lock.Name,
		OwnerID:   msg.Lock.OwnerID.String(),
		Method:    string(msg.Event.Method),
		Timestamp: msg.Event.CreatedAt,
	})
}

func (n *Notifier) publishJSON(subject string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal notification")
		return
	}

	if err := n.nc.Publish(subject, data); err != nil {
		log.Error().Err(err).
			Str("subject", subject).
			Msg("Failed to publish notification")
		return
	}

	log.Debug().
		Str("subject", subject).
		Msg("Notification published")
}
