package relay

import (
	"context"

	"github.com/nerrad567/satpush/internal/infrastructure/mqtt"
	"github.com/nerrad567/satpush/internal/push"
)

// Journal persists notifications and connection events.
// Satisfied by journal.Repository.
type Journal interface {
	Record(ctx context.Context, n push.Notification) error
	RecordConnection(ctx context.Context, ev push.Event) error
}

// Bus is the local MQTT bus. Satisfied by *mqtt.Client.
type Bus interface {
	PublishDefault(topic string, payload []byte) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	SetGatewayState(state string)
}

// Metrics records push telemetry. Satisfied by *influxdb.Client.
type Metrics interface {
	WriteNotification(n push.Notification)
	WriteConnectionEvent(ev push.Event)
}

// PushClient is the part of *push.Client the relay drives.
type PushClient interface {
	Subscribe(topic string, l push.Listener) (*push.Subscription, error)
	Observe(o push.Observer) (cancel func())
}

// Logger defines the logging interface used by the Relay.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
