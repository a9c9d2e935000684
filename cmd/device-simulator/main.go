package main

import (
	"context"
	"encoding/json"
	"flag"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/homeguard/homeguard-server/internal/config"
)

// lockSignal mirrors the payload the security server expects on
// locks.<lock_id>.signal
type lockSignal struct {
	LockID       string `json:"lockId"`
	Kind         string `json:"kind"`
	BatteryLevel *int   `json:"batteryLevel,omitempty"`
}

// simulatedLock tracks per-lock simulator state
type simulatedLock struct {
	id      string
	battery int
	jammed  bool
}

func main() {
	// Command line flags
	var configFile string
	flag.StringVar(&configFile, "config", "config/security-server.yml", "Configuration file path")
	flag.Parse()

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Load configuration
	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if len(cfg.Simulator.LockIDs) == 0 {
		log.Fatal().Msg("No lock IDs configured for simulation")
	}

	// Connect to NATS
	nc, err := nats.Connect(cfg.NATS.URL,
		nats.Name("homeguard-device-simulator"),
		nats.UserInfo(cfg.NATS.Username, cfg.NATS.Password),
		nats.ReconnectWait(cfg.NATS.ReconnectInterval),
		nats.MaxReconnects(cfg.NATS.MaxReconnects),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to NATS")
	}
	defer nc.Close()

	log.Info().
		Int("locks", len(cfg.Simulator.LockIDs)).
		Dur("interval", cfg.Simulator.Interval).
		Msg("Device simulator started")

	locks := make([]*simulatedLock, 0, len(cfg.Simulator.LockIDs))
	for _, id := range cfg.Simulator.LockIDs {
		locks = append(locks, &simulatedLock{id: id, battery: 100})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go run(ctx, nc, locks, cfg.Simulator.Interval)

	// Wait for signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received signal, shutting down")

	cancel()

	log.Info().Msg("Device simulator stopped")
}

// run emits simulated device signals until the context is cancelled
func run(ctx context.Context, nc *nats.Conn, locks []*simulatedLock, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, lock := range locks {
				publish(nc, tick(lock))
			}
		}
	}
}

// tick advances one lock's state and returns the signal to publish
func tick(lock *simulatedLock) lockSignal {
	// A jammed lock recovers on the next tick half the time
	if lock.jammed {
		if rand.Intn(2) == 0 {
			lock.jammed = false
			return lockSignal{LockID: lock.id, Kind: "cleared"}
		}
		return lockSignal{LockID: lock.id, Kind: "jammed"}
	}

	// Rare jam
	if rand.Intn(50) == 0 {
		lock.jammed = true
		return lockSignal{LockID: lock.id, Kind: "jammed"}
	}

	// Slow battery drain, recharged when depleted
	if rand.Intn(4) == 0 && lock.battery > 0 {
		lock.battery--
	}
	if lock.battery == 0 {
		lock.battery = 100
	}

	battery := lock.battery
	return lockSignal{LockID: lock.id, Kind: "battery", BatteryLevel: &battery}
}

func publish(nc *nats.Conn, signal lockSignal) {
	data, err := json.Marshal(signal)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal signal")
		return
	}

	subject := "locks." + signal.LockID + ".signal"
	if err := nc.Publish(subject, data); err != nil {
		log.Error().Err(err).Str("subject", subject).Msg("Failed to publish signal")
		return
	}

	log.Debug().
		Str("subject", subject).
		Str("kind", signal.Kind).
		Msg("Signal published")
}
