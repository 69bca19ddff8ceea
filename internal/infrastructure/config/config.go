package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the satpush daemon.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Gateway       GatewayConfig  `yaml:"gateway"`
	Subscriptions []string       `yaml:"subscriptions"`
	Journal       JournalConfig  `yaml:"journal"`
	MQTT          MQTTConfig     `yaml:"mqtt"`
	InfluxDB      InfluxDBConfig `yaml:"influxdb"`
	API           APIConfig      `yaml:"api"`
	Logging       LoggingConfig  `yaml:"logging"`
}

// GatewayConfig contains the push gateway connection settings.
type GatewayConfig struct {
	URL               string        `yaml:"url"`
	CanisterID        string        `yaml:"canister_id"`
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	AutoConnect       bool          `yaml:"auto_connect"`

	// HandshakeTimeout bounds the WebSocket dial and upgrade.
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`

	// MaxMessageSize is the inbound frame limit in bytes.
	MaxMessageSize int64 `yaml:"max_message_size"`
}

// JournalConfig contains the SQLite notification history settings.
type JournalConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Path        string        `yaml:"path"`
	WALMode     bool          `yaml:"wal_mode"`
	BusyTimeout int           `yaml:"busy_timeout"`
	Retention   time.Duration `yaml:"retention"`
}

// MQTTConfig contains MQTT broker connection settings for the local relay.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains the local status/control HTTP server settings.
type APIConfig struct {
	Enabled   bool             `yaml:"enabled"`
	Host      string           `yaml:"host"`
	Port      int              `yaml:"port"`
	Timeouts  APITimeoutConfig `yaml:"timeouts"`
	RateLimit RateLimitConfig  `yaml:"rate_limit"`
	Panel     PanelConfig      `yaml:"panel"`
	Auth      AuthConfig       `yaml:"auth"`
}

// AuthConfig guards the control endpoints with HS256 bearer tokens.
// Read-only endpoints stay open.
type AuthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Secret  string `yaml:"secret"`

	// TokenTTL is the lifetime of tokens minted by "satpush token".
	TokenTTL time.Duration `yaml:"token_ttl"`
}

// PanelConfig controls the operator dashboard served under /panel/.
type PanelConfig struct {
	Enabled bool `yaml:"enabled"`

	// Dir serves the dashboard from disk instead of the embedded copy.
	Dir string `yaml:"dir"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// RateLimitConfig contains request rate limiting settings.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	Burst             int  `yaml:"burst"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SATPUSH_SECTION_KEY
// For example: SATPUSH_GATEWAY_URL, SATPUSH_JOURNAL_PATH
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			URL:               "wss://ws.omnia-network.ic0.app",
			ReconnectInterval: 5 * time.Second,
			HeartbeatInterval: 30 * time.Second,
			AutoConnect:       true,
			HandshakeTimeout:  10 * time.Second,
			MaxMessageSize:    1 << 20,
		},
		Journal: JournalConfig{
			Enabled:     true,
			Path:        "./data/satpush.db",
			WALMode:     true,
			BusyTimeout: 5,
			Retention:   7 * 24 * time.Hour,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "satpush",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			Org:           "satpush",
			Bucket:        "push",
			BatchSize:     100,
			FlushInterval: 10,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 120,
				Burst:             20,
			},
			Panel: PanelConfig{
				Enabled: true,
			},
			Auth: AuthConfig{
				TokenTTL: 24 * time.Hour,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SATPUSH_SECTION_KEY
func applyEnvOverrides(cfg *Config) error {
	// Gateway
	if v := os.Getenv("SATPUSH_GATEWAY_URL"); v != "" {
		cfg.Gateway.URL = v
	}
	if v := os.Getenv("SATPUSH_CANISTER_ID"); v != "" {
		cfg.Gateway.CanisterID = v
	}
	if v := os.Getenv("SATPUSH_GATEWAY_RECONNECT_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SATPUSH_GATEWAY_RECONNECT_INTERVAL: %w", err)
		}
		cfg.Gateway.ReconnectInterval = d
	}
	if v := os.Getenv("SATPUSH_GATEWAY_AUTO_CONNECT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SATPUSH_GATEWAY_AUTO_CONNECT: %w", err)
		}
		cfg.Gateway.AutoConnect = b
	}

	// Subscriptions (comma-separated)
	if v := os.Getenv("SATPUSH_SUBSCRIPTIONS"); v != "" {
		cfg.Subscriptions = splitList(v)
	}

	// Journal
	if v := os.Getenv("SATPUSH_JOURNAL_PATH"); v != "" {
		cfg.Journal.Path = v
	}

	// MQTT
	if v := os.Getenv("SATPUSH_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SATPUSH_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SATPUSH_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("SATPUSH_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// API
	if v := os.Getenv("SATPUSH_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("SATPUSH_API_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SATPUSH_API_PORT: %w", err)
		}
		cfg.API.Port = port
	}
	if v := os.Getenv("SATPUSH_API_AUTH_SECRET"); v != "" {
		cfg.API.Auth.Secret = v
	}

	// Logging
	if v := os.Getenv("SATPUSH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return nil
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Gateway validation
	if u, err := url.Parse(c.Gateway.URL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		errs = append(errs, "gateway.url must be a ws:// or wss:// URL")
	}
	if strings.TrimSpace(c.Gateway.CanisterID) == "" {
		errs = append(errs, "gateway.canister_id is required (set SATPUSH_CANISTER_ID environment variable)")
	}
	if c.Gateway.ReconnectInterval <= 0 {
		errs = append(errs, "gateway.reconnect_interval must be positive")
	}
	if c.Gateway.HeartbeatInterval <= 0 {
		errs = append(errs, "gateway.heartbeat_interval must be positive")
	}

	for i, s := range c.Subscriptions {
		if strings.TrimSpace(s) == "" {
			errs = append(errs, fmt.Sprintf("subscriptions[%d] is empty", i))
		}
	}

	// Journal validation
	if c.Journal.Enabled && c.Journal.Path == "" {
		errs = append(errs, "journal.path is required when the journal is enabled")
	}
	if c.Journal.Retention < 0 {
		errs = append(errs, "journal.retention cannot be negative (0 keeps everything)")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	const minAuthSecretLength = 32
	if c.API.Auth.Enabled && len(c.API.Auth.Secret) < minAuthSecretLength {
		errs = append(errs, "api.auth.secret must be at least 32 characters when auth is enabled (set SATPUSH_API_AUTH_SECRET environment variable)")
	}
	if c.API.Auth.TokenTTL < 0 {
		errs = append(errs, "api.auth.token_ttl cannot be negative")
	}
	if c.API.RateLimit.Enabled && c.API.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, "api.rate_limit.requests_per_minute must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
