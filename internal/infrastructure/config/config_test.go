package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

const testCanisterID = "ryjl3-tyaaa-aaaaa-aaaba-cai"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
gateway:
  url: "ws://localhost:5000/ws"
  canister_id: "`+testCanisterID+`"
  reconnect_interval: "2s"
  heartbeat_interval: "15s"
  auto_connect: false
subscriptions:
  - orders
  - users
journal:
  path: "/tmp/test.db"
mqtt:
  enabled: true
  broker:
    host: "broker.local"
    port: 1883
  qos: 1
api:
  port: 9000
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Gateway.URL != "ws://localhost:5000/ws" {
		t.Errorf("Gateway.URL = %q, want %q", cfg.Gateway.URL, "ws://localhost:5000/ws")
	}
	if cfg.Gateway.ReconnectInterval != 2*time.Second {
		t.Errorf("Gateway.ReconnectInterval = %v, want 2s", cfg.Gateway.ReconnectInterval)
	}
	if cfg.Gateway.HeartbeatInterval != 15*time.Second {
		t.Errorf("Gateway.HeartbeatInterval = %v, want 15s", cfg.Gateway.HeartbeatInterval)
	}
	if cfg.Gateway.AutoConnect {
		t.Error("Gateway.AutoConnect = true, want false")
	}
	if !reflect.DeepEqual(cfg.Subscriptions, []string{"orders", "users"}) {
		t.Errorf("Subscriptions = %v, want [orders users]", cfg.Subscriptions)
	}
	if cfg.Journal.Path != "/tmp/test.db" {
		t.Errorf("Journal.Path = %q, want %q", cfg.Journal.Path, "/tmp/test.db")
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.local")
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port = %d, want 9000", cfg.API.Port)
	}
}

func TestLoad_Defaults(t *testing.T) {
	configPath := writeConfig(t, `
gateway:
  canister_id: "`+testCanisterID+`"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Gateway.URL != "wss://ws.omnia-network.ic0.app" {
		t.Errorf("Gateway.URL = %q", cfg.Gateway.URL)
	}
	if cfg.Gateway.ReconnectInterval != 5*time.Second {
		t.Errorf("Gateway.ReconnectInterval = %v, want 5s", cfg.Gateway.ReconnectInterval)
	}
	if cfg.Gateway.HeartbeatInterval != 30*time.Second {
		t.Errorf("Gateway.HeartbeatInterval = %v, want 30s", cfg.Gateway.HeartbeatInterval)
	}
	if !cfg.Gateway.AutoConnect {
		t.Error("Gateway.AutoConnect = false, want true")
	}
	if cfg.MQTT.Enabled || cfg.InfluxDB.Enabled {
		t.Error("optional sinks must be disabled by default")
	}
	if cfg.API.Auth.Enabled {
		t.Error("API.Auth.Enabled = true, want false")
	}
	if cfg.API.Auth.TokenTTL != 24*time.Hour {
		t.Errorf("API.Auth.TokenTTL = %v, want 24h", cfg.API.Auth.TokenTTL)
	}
	if got := cfg.GetReadTimeout(); got != 30*time.Second {
		t.Errorf("GetReadTimeout() = %v, want 30s", got)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "invalid: [yaml: content")

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	configPath := writeConfig(t, `
gateway:
  url: "https://gateway.example"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	for _, want := range []string{"gateway.url", "gateway.canister_id"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	configPath := writeConfig(t, `
gateway:
  canister_id: "from-file"
`)

	t.Setenv("SATPUSH_CANISTER_ID", testCanisterID)
	t.Setenv("SATPUSH_GATEWAY_URL", "ws://override:1234")
	t.Setenv("SATPUSH_GATEWAY_RECONNECT_INTERVAL", "750ms")
	t.Setenv("SATPUSH_GATEWAY_AUTO_CONNECT", "false")
	t.Setenv("SATPUSH_SUBSCRIPTIONS", "orders, ,users")
	t.Setenv("SATPUSH_API_PORT", "9100")
	t.Setenv("SATPUSH_API_AUTH_SECRET", "env-secret")
	t.Setenv("SATPUSH_LOG_LEVEL", "debug")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Gateway.CanisterID != testCanisterID {
		t.Errorf("Gateway.CanisterID = %q, want %q", cfg.Gateway.CanisterID, testCanisterID)
	}
	if cfg.Gateway.URL != "ws://override:1234" {
		t.Errorf("Gateway.URL = %q", cfg.Gateway.URL)
	}
	if cfg.Gateway.ReconnectInterval != 750*time.Millisecond {
		t.Errorf("Gateway.ReconnectInterval = %v", cfg.Gateway.ReconnectInterval)
	}
	if cfg.Gateway.AutoConnect {
		t.Error("Gateway.AutoConnect = true, want false")
	}
	if !reflect.DeepEqual(cfg.Subscriptions, []string{"orders", "users"}) {
		t.Errorf("Subscriptions = %v", cfg.Subscriptions)
	}
	if cfg.API.Port != 9100 {
		t.Errorf("API.Port = %d, want 9100", cfg.API.Port)
	}
	if cfg.API.Auth.Secret != "env-secret" {
		t.Errorf("API.Auth.Secret = %q, want env-secret", cfg.API.Auth.Secret)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoad_InvalidEnvOverride(t *testing.T) {
	configPath := writeConfig(t, `
gateway:
  canister_id: "`+testCanisterID+`"
`)
	t.Setenv("SATPUSH_GATEWAY_RECONNECT_INTERVAL", "soon")

	if _, err := Load(configPath); err == nil {
		t.Error("Load() expected error for invalid duration override, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Gateway.CanisterID = testCanisterID
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "missing canister ID",
			mutate:  func(c *Config) { c.Gateway.CanisterID = "  " },
			wantErr: true,
		},
		{
			name:    "non websocket url",
			mutate:  func(c *Config) { c.Gateway.URL = "http://gateway" },
			wantErr: true,
		},
		{
			name:    "zero reconnect interval",
			mutate:  func(c *Config) { c.Gateway.ReconnectInterval = 0 },
			wantErr: true,
		},
		{
			name:    "zero heartbeat interval",
			mutate:  func(c *Config) { c.Gateway.HeartbeatInterval = 0 },
			wantErr: true,
		},
		{
			name:    "empty subscription",
			mutate:  func(c *Config) { c.Subscriptions = []string{"orders", ""} },
			wantErr: true,
		},
		{
			name:    "journal without path",
			mutate:  func(c *Config) { c.Journal.Path = "" },
			wantErr: true,
		},
		{
			name:    "journal disabled without path",
			mutate:  func(c *Config) { c.Journal.Enabled = false; c.Journal.Path = "" },
			wantErr: false,
		},
		{
			name:    "negative retention",
			mutate:  func(c *Config) { c.Journal.Retention = -time.Hour },
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "auth enabled without secret",
			mutate:  func(c *Config) { c.API.Auth.Enabled = true },
			wantErr: true,
		},
		{
			name: "auth secret too short",
			mutate: func(c *Config) {
				c.API.Auth.Enabled = true
				c.API.Auth.Secret = "short"
			},
			wantErr: true,
		},
		{
			name: "auth enabled with secret",
			mutate: func(c *Config) {
				c.API.Auth.Enabled = true
				c.API.Auth.Secret = strings.Repeat("s", 32)
			},
			wantErr: false,
		},
		{
			name:    "influxdb enabled without url",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true },
			wantErr: true,
		},
		{
			name:    "invalid port high",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "api disabled ignores port",
			mutate:  func(c *Config) { c.API.Enabled = false; c.API.Port = 0 },
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
