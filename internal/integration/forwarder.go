package integration

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/esp32-monitor/esp32-monitor-server/internal/config"
	"github.com/esp32-monitor/esp32-monitor-server/internal/models"
)

// snapshotSubject matches every per-device snapshot published by the
// reconciliation path.
const snapshotSubject = "monitor.device.*.update"

// Forwarder relays reconciled snapshots from NATS to external systems:
// an HTTP endpoint and/or an MQTT topic, both configured globally.
type Forwarder struct {
	nc  *nats.Conn
	cfg config.IntegrationConfig

	httpClient *http.Client

	mqttMu     sync.Mutex
	mqttClient mqtt.Client
}

// NewForwarder creates a snapshot forwarder
func NewForwarder(nc *nats.Conn, cfg config.IntegrationConfig) *Forwarder {
	return &Forwarder{
		nc:  nc,
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.HTTP.Timeout,
		},
	}
}

// Enabled reports whether any outbound leg is configured.
func (f *Forwarder) Enabled() bool {
	return f.cfg.HTTP.Enabled || f.cfg.MQTT.Enabled
}

// Start subscribes to the snapshot subject and forwards until the
// context is cancelled.
func (f *Forwarder) Start(ctx context.Context) error {
	sub, err := f.nc.Subscribe(snapshotSubject, f.handleSnapshot)
	if err != nil {
		return fmt.Errorf("subscribe to snapshots: %w", err)
	}

	log.Info().
		Bool("http", f.cfg.HTTP.Enabled).
		Bool("mqtt", f.cfg.MQTT.Enabled).
		Msg("Integration forwarder started")

	<-ctx.Done()

	sub.Unsubscribe()
	f.closeMQTT()

	return ctx.Err()
}

// handleSnapshot forwards one snapshot to all enabled legs
func (f *Forwarder) handleSnapshot(msg *nats.Msg) {
	var snapshot models.DeviceSnapshot
	if err := json.Unmarshal(msg.Data, &snapshot); err != nil {
		log.Error().Err(err).Msg("Failed to unmarshal snapshot")
		return
	}

	if f.cfg.HTTP.Enabled {
		go f.forwardToHTTP(&snapshot, msg.Data)
	}

	if f.cfg.MQTT.Enabled {
		go f.forwardToMQTT(&snapshot, msg.Data)
	}
}

// forwardToHTTP posts the snapshot JSON to the configured endpoint
func (f *Forwarder) forwardToHTTP(snapshot *models.DeviceSnapshot, data []byte) {
	req, err := http.NewRequest("POST", f.cfg.HTTP.Endpoint, bytes.NewBuffer(data))
	if err != nil {
		log.Error().Err(err).Msg("Failed to create HTTP forward request")
		return
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range f.cfg.HTTP.Headers {
		req.Header.Set(k, v)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		log.Error().
			Err(err).
			Str("endpoint", f.cfg.HTTP.Endpoint).
			Msg("Failed to forward snapshot to HTTP")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		log.Error().
			Int("status", resp.StatusCode).
			Str("endpoint", f.cfg.HTTP.Endpoint).
			Msg("HTTP snapshot forward failed")
		return
	}

	log.Debug().
		Str("chipId", snapshot.ChipID).
		Str("endpoint", f.cfg.HTTP.Endpoint).
		Msg("Snapshot forwarded to HTTP")
}

// forwardToMQTT publishes the snapshot JSON to the configured topic
func (f *Forwarder) forwardToMQTT(snapshot *models.DeviceSnapshot, data []byte) {
	client := f.getMQTTClient()
	if client == nil {
		return
	}

	topic := strings.ReplaceAll(f.cfg.MQTT.TopicPattern, "{chip_id}", snapshot.ChipID)

	token := client.Publish(topic, f.cfg.MQTT.QoS, false, data)
	if !token.WaitTimeout(5 * time.Second) {
		log.Error().Str("topic", topic).Msg("MQTT publish timeout")
		return
	}
	if err := token.Error(); err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to publish to MQTT")
		return
	}

	log.Debug().
		Str("chipId", snapshot.ChipID).
		Str("topic", topic).
		Msg("Snapshot forwarded to MQTT")
}

// getMQTTClient returns the shared client, connecting lazily
func (f *Forwarder) getMQTTClient() mqtt.Client {
	f.mqttMu.Lock()
	defer f.mqttMu.Unlock()

	if f.mqttClient != nil && f.mqttClient.IsConnected() {
		return f.mqttClient
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(f.cfg.MQTT.BrokerURL)
	opts.SetClientID("esp32-monitor-forwarder")

	if f.cfg.MQTT.Username != "" {
		opts.SetUsername(f.cfg.MQTT.Username)
		opts.SetPassword(f.cfg.MQTT.Password)
	}

	if f.cfg.MQTT.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetKeepAlive(30 * time.Second)

	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Error().Err(err).Msg("MQTT connection lost")
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10*time.Second) || token.Error() != nil {
		log.Error().
			Err(token.Error()).
			Str("broker", f.cfg.MQTT.BrokerURL).
			Msg("Failed to connect MQTT client")
		return nil
	}

	f.mqttClient = client
	return client
}

// closeMQTT disconnects the shared MQTT client
func (f *Forwarder) closeMQTT() {
	f.mqttMu.Lock()
	defer f.mqttMu.Unlock()

	if f.mqttClient != nil && f.mqttClient.IsConnected() {
		f.mqttClient.Disconnect(250)
	}
	f.mqttClient = nil
}
