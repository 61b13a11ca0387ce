package server

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/esp32-monitor/esp32-monitor-server/internal/models"
)

// SnapshotSubject is the per-device NATS subject pattern for reconciled
// snapshots. Integrations subscribe with monitor.device.*.update.
const SnapshotSubject = "monitor.device.%s.update"

// NATSPublisher mirrors every reconciled snapshot onto NATS so external
// integrations can consume updates without touching the HTTP API.
// Implements monitor.Notifier.
type NATSPublisher struct {
	nc *nats.Conn
}

// NewNATSPublisher creates a snapshot publisher
func NewNATSPublisher(nc *nats.Conn) *NATSPublisher {
	return &NATSPublisher{nc: nc}
}

// Publish sends one snapshot, best effort; a failed publish is logged
// and dropped, never retried.
func (p *NATSPublisher) Publish(snapshot *models.DeviceSnapshot) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal snapshot for NATS")
		return
	}

	subject := fmt.Sprintf(SnapshotSubject, snapshot.ChipID)
	if err := p.nc.Publish(subject, data); err != nil {
		log.Error().
			Err(err).
			Str("subject", subject).
			Msg("Failed to publish snapshot to NATS")
		return
	}

	log.Debug().
		Str("subject", subject).
		Int("size", len(data)).
		Msg("Snapshot published to NATS")
}
