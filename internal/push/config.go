package push

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Client defaults.
const (
	// DefaultGatewayURL is the public gateway used when none is configured.
	DefaultGatewayURL = "wss://ws.omnia-network.ic0.app"

	// DefaultReconnectInterval is the fixed delay between a close and the
	// next connection attempt.
	DefaultReconnectInterval = 5 * time.Second

	// DefaultHeartbeatInterval is the keep-alive ping period while Open.
	DefaultHeartbeatInterval = 30 * time.Second
)

// ClientConfig is the immutable configuration of a Client.
type ClientConfig struct {
	// GatewayURL is the ws:// or wss:// address of the notification gateway.
	GatewayURL string

	// CanisterID identifies the satellite whose notifications are wanted.
	// It is sent in the handshake frame.
	CanisterID string

	// ReconnectInterval is the fixed wait before reconnecting. Zero means
	// DefaultReconnectInterval.
	ReconnectInterval time.Duration

	// HeartbeatInterval is the ping period while Open. Zero means
	// DefaultHeartbeatInterval.
	HeartbeatInterval time.Duration

	// ManualConnect stops New from calling Connect. The zero value
	// connects immediately.
	ManualConnect bool
}

// DefaultClientConfig returns a ClientConfig with every default applied.
// CanisterID still has to be set.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		GatewayURL:        DefaultGatewayURL,
		ReconnectInterval: DefaultReconnectInterval,
		HeartbeatInterval: DefaultHeartbeatInterval,
	}
}

// AutoConnect reports whether New starts connecting on its own.
func (c ClientConfig) AutoConnect() bool {
	return !c.ManualConnect
}

// withDefaults fills zero values. Negative intervals are left for Validate.
func (c ClientConfig) withDefaults() ClientConfig {
	if c.GatewayURL == "" {
		c.GatewayURL = DefaultGatewayURL
	}
	if c.ReconnectInterval == 0 {
		c.ReconnectInterval = DefaultReconnectInterval
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	return c
}

// Validate checks the configuration and reports every problem at once.
func (c ClientConfig) Validate() error {
	var errs []string

	if u, err := url.Parse(c.GatewayURL); err != nil {
		errs = append(errs, fmt.Sprintf("gateway url: %v", err))
	} else if u.Scheme != "ws" && u.Scheme != "wss" {
		errs = append(errs, "gateway url must use ws:// or wss://")
	} else if u.Host == "" {
		errs = append(errs, "gateway url must include a host")
	}

	if strings.TrimSpace(c.CanisterID) == "" {
		errs = append(errs, "canister id is required")
	}
	if c.ReconnectInterval <= 0 {
		errs = append(errs, "reconnect interval must be positive")
	}
	if c.HeartbeatInterval <= 0 {
		errs = append(errs, "heartbeat interval must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}
