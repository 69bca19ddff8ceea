package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/satpush/internal/push"
)

// Measurement names written by satpush.
const (
	MeasurementNotifications = "push_notifications"
	MeasurementConnection    = "push_connection"
)

// WriteNotification records one relayed push notification.
//
// The point is tagged by collection and kind (both low cardinality) and
// timestamped with the gateway's event time, falling back to now when the
// frame carried none. The write is non-blocking; data is batched and sent
// asynchronously.
//
// Example line protocol:
//
//	push_notifications,collection=orders,kind=doc_set key="o1",originator="2vxsx-fae",payload_bytes=12i 1700000000000000000
func (c *Client) WriteNotification(n push.Notification) {
	at := time.Now()
	if n.TimestampNanos > 0 {
		at = n.Time()
	}

	c.writePoint(MeasurementNotifications,
		map[string]string{
			"collection": n.Topic,
			"kind":       string(n.Kind),
		},
		map[string]any{
			"key":           n.ResourceKey,
			"originator":    n.Originator,
			"payload_bytes": len(n.Payload),
		},
		at,
	)
}

// WriteConnectionEvent records a gateway lifecycle event (connected,
// disconnected, error). Notification events are ignored; they are written
// with WriteNotification.
func (c *Client) WriteConnectionEvent(ev push.Event) {
	if ev.Type == push.EventNotification {
		return
	}

	fields := map[string]any{
		"count": 1,
	}
	if ev.Err != nil {
		fields["error"] = ev.Err.Error()
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	c.writePoint(MeasurementConnection,
		map[string]string{
			"event": ev.Type.String(),
		},
		fields,
		at,
	)
}

// writePoint queues one point. Dropped once the client is closed.
func (c *Client) writePoint(measurement string, tags map[string]string, fields map[string]any, at time.Time) {
	c.lifeMu.RLock()
	defer c.lifeMu.RUnlock()
	if !c.IsConnected() {
		return
	}
	c.writer.WritePoint(write.NewPoint(measurement, tags, fields, at))
}
