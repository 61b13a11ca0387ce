package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	content := `
server:
  name: "test-monitor"
api:
  host: "127.0.0.1"
  port: 9090
database:
  dsn: "postgres://localhost/test"
nats:
  url: "nats://localhost:4222"
firmware:
  dir: "/tmp/fw"
integration:
  mqtt:
    enabled: true
    broker_url: "tcp://localhost:1883"
    qos: 1
log:
  level: "debug"
`
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Name != "test-monitor" {
		t.Errorf("server name = %q", cfg.Server.Name)
	}
	if got := cfg.API.Addr(); got != "127.0.0.1:9090" {
		t.Errorf("addr = %q, want 127.0.0.1:9090", got)
	}
	if cfg.Database.DSN != "postgres://localhost/test" {
		t.Errorf("dsn = %q", cfg.Database.DSN)
	}
	if !cfg.Integration.MQTT.Enabled || cfg.Integration.MQTT.QoS != 1 {
		t.Errorf("mqtt = %+v", cfg.Integration.MQTT)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}

	// Defaults still fill unset fields.
	if cfg.Integration.HTTP.Timeout != 30*time.Second {
		t.Errorf("http timeout = %v", cfg.Integration.HTTP.Timeout)
	}
	if cfg.Integration.MQTT.TopicPattern != "esp32/{chip_id}/update" {
		t.Errorf("topic pattern = %q", cfg.Integration.MQTT.TopicPattern)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.API.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.API.Port)
	}
	if cfg.Firmware.Dir != "firmware" {
		t.Errorf("firmware dir = %q", cfg.Firmware.Dir)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
	if cfg.Database.DSN != "" && os.Getenv("DATABASE_URL") == "" {
		t.Errorf("dsn = %q, want empty", cfg.Database.DSN)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("LOG_LEVEL", "trace")

	cfg := Default()
	if cfg.Database.DSN != "postgres://env/db" {
		t.Errorf("dsn = %q, env override lost", cfg.Database.DSN)
	}
	if cfg.Log.Level != "trace" {
		t.Errorf("log level = %q, env override lost", cfg.Log.Level)
	}
}
