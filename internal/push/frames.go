package push

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Inbound frame types that are not notifications.
const (
	FrameWelcome = "welcome"
	FramePong    = "pong"
	FrameError   = "error"
)

// Outbound frame values.
const (
	handshakeType      = "open"
	commandSubscribe   = "subscribe"
	commandUnsubscribe = "unsubscribe"
	commandPing        = "ping"
)

// NotificationKind is the type of a data frame.
type NotificationKind string

// Known notification kinds.
const (
	KindDocSet        NotificationKind = "doc_set"
	KindDocDeleted    NotificationKind = "doc_deleted"
	KindAssetUploaded NotificationKind = "asset_uploaded"
	KindAssetDeleted  NotificationKind = "asset_deleted"
)

// IsData reports whether k is one of the notification kinds routed to
// listeners.
func (k NotificationKind) IsData() bool {
	switch k {
	case KindDocSet, KindDocDeleted, KindAssetUploaded, KindAssetDeleted:
		return true
	default:
		return false
	}
}

// Notification is a decoded data frame. Each listener receives its own copy.
type Notification struct {
	// Kind is the change type (doc_set, doc_deleted, ...).
	Kind NotificationKind `json:"type"`

	// Topic is the collection the change happened in.
	Topic string `json:"collection"`

	// ResourceKey is the document or asset key.
	ResourceKey string `json:"key"`

	// Originator is the principal that made the change.
	Originator string `json:"caller"`

	// TimestampNanos is the server time of the change in Unix nanoseconds.
	TimestampNanos uint64 `json:"timestamp"`

	// Payload is the optional "data" field, undecoded.
	Payload json.RawMessage `json:"data,omitempty"`
}

// Time returns TimestampNanos as a UTC time.
func (n Notification) Time() time.Time {
	return time.Unix(0, int64(n.TimestampNanos)).UTC() //nolint:gosec // server nanos fit int64 until 2262
}

// clone returns a copy that shares no memory with n.
func (n Notification) clone() Notification {
	n.Payload = bytes.Clone(n.Payload)
	return n
}

// handshakeFrame is sent once, immediately after the socket opens.
type handshakeFrame struct {
	Type       string `json:"type"`
	ClientKey  string `json:"clientKey"`
	CanisterID string `json:"canisterId"`
}

// commandFrame covers subscribe, unsubscribe and ping.
type commandFrame struct {
	Command     string   `json:"command"`
	Collections []string `json:"collections,omitempty"`
}

// inboundFrame is the union of every frame the gateway sends.
type inboundFrame struct {
	Type       string          `json:"type"`
	Collection string          `json:"collection"`
	Key        string          `json:"key"`
	Caller     string          `json:"caller"`
	Timestamp  uint64          `json:"timestamp"`
	Data       json.RawMessage `json:"data,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// errorPayload is the payload of an inbound "error" frame.
type errorPayload struct {
	Error json.RawMessage `json:"error"`
}

func encodeHandshake(clientKey, canisterID string) ([]byte, error) {
	return json.Marshal(handshakeFrame{
		Type:       handshakeType,
		ClientKey:  clientKey,
		CanisterID: canisterID,
	})
}

func encodeCommand(command string, collections []string) ([]byte, error) {
	return json.Marshal(commandFrame{
		Command:     command,
		Collections: collections,
	})
}

// decodeFrame parses one inbound message. Text and binary messages carry
// the same UTF-8 JSON, so both arrive here as bytes.
func decodeFrame(data []byte) (inboundFrame, error) {
	var f inboundFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return inboundFrame{}, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}
	return f, nil
}

// notification converts a data frame into a Notification.
func (f inboundFrame) notification() Notification {
	return Notification{
		Kind:           NotificationKind(f.Type),
		Topic:          f.Collection,
		ResourceKey:    f.Key,
		Originator:     f.Caller,
		TimestampNanos: f.Timestamp,
		Payload:        f.Data,
	}
}

// errorDescription extracts payload.error. Non-string values are returned
// as raw JSON.
func (f inboundFrame) errorDescription() string {
	var p errorPayload
	if len(f.Payload) == 0 || json.Unmarshal(f.Payload, &p) != nil || len(p.Error) == 0 {
		return "unknown error"
	}
	var s string
	if err := json.Unmarshal(p.Error, &s); err == nil {
		return s
	}
	return string(p.Error)
}
