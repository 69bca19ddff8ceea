package push

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	testGatewayURL = "ws://gateway.test/ws"
	testCanisterID = "ryjl3-tyaaa-aaaaa-aaaba-cai"
	waitTimeout    = 2 * time.Second
	waitTick       = 2 * time.Millisecond
)

// fakeTransport is an in-memory Transport driven by the test.
type fakeTransport struct {
	mu       sync.Mutex
	address  string
	handler  TransportHandler
	open     bool
	closed   bool
	sent     [][]byte
	openCall chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{openCall: make(chan struct{})}
}

func (f *fakeTransport) Open(address string, handler TransportHandler) {
	f.mu.Lock()
	f.address = address
	f.handler = handler
	f.mu.Unlock()
	close(f.openCall)
}

func (f *fakeTransport) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open || f.closed {
		return ErrTransportNotOpen
	}
	f.sent = append(f.sent, bytes.Clone(data))
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.open = false
	return nil
}

// accept simulates the socket opening.
func (f *fakeTransport) accept() {
	f.mu.Lock()
	f.open = true
	h := f.handler
	f.mu.Unlock()
	h.OnOpen()
}

// deliver simulates an inbound message.
func (f *fakeTransport) deliver(frame string) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	h.OnMessage([]byte(frame))
}

// drop simulates the socket closing or failing to open.
func (f *fakeTransport) drop(err error) {
	f.mu.Lock()
	f.open = false
	h := f.handler
	f.mu.Unlock()
	h.OnClose(err)
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// frames returns every sent frame decoded as a JSON object.
func (f *fakeTransport) frames(t *testing.T) []map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]map[string]any, 0, len(f.sent))
	for _, data := range f.sent {
		var m map[string]any
		require.NoError(t, json.Unmarshal(data, &m))
		out = append(out, m)
	}
	return out
}

// commands returns the sent command frames with the given command name.
func (f *fakeTransport) commands(t *testing.T, command string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, m := range f.frames(t) {
		if m["command"] == command {
			out = append(out, m)
		}
	}
	return out
}

// fakeFactory records every transport the client asks for.
type fakeFactory struct {
	mu         sync.Mutex
	transports []*fakeTransport
}

func (ff *fakeFactory) New() Transport {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	tr := newFakeTransport()
	ff.transports = append(ff.transports, tr)
	return tr
}

func (ff *fakeFactory) count() int {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	return len(ff.transports)
}

// waitFor blocks until the n-th transport exists and has been opened.
func (ff *fakeFactory) waitFor(t *testing.T, n int) *fakeTransport {
	t.Helper()
	require.Eventually(t, func() bool { return ff.count() >= n }, waitTimeout, waitTick,
		"transport %d was never created", n)

	ff.mu.Lock()
	tr := ff.transports[n-1]
	ff.mu.Unlock()

	select {
	case <-tr.openCall:
	case <-time.After(waitTimeout):
		t.Fatalf("transport %d was never opened", n)
	}
	return tr
}

// recorder collects client events.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) observe(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) count(typ EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

func (r *recorder) ofType(typ EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClientConfig() ClientConfig {
	return ClientConfig{
		GatewayURL:        testGatewayURL,
		CanisterID:        testCanisterID,
		ReconnectInterval: 20 * time.Millisecond,
		HeartbeatInterval: time.Hour,
		ManualConnect:     true,
	}
}

// newTestClient builds a client on a fake transport with an event recorder.
func newTestClient(t *testing.T, cfg ClientConfig) (*Client, *fakeFactory, *recorder) {
	t.Helper()
	ff := &fakeFactory{}
	c, err := New(cfg, WithTransportFactory(ff.New), WithLogger(discardLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() }) //nolint:errcheck // Test cleanup

	rec := &recorder{}
	c.Observe(rec.observe)
	return c, ff, rec
}

// openClient connects c and completes the n-th transport open.
func openClient(t *testing.T, c *Client, ff *fakeFactory, n int) *fakeTransport {
	t.Helper()
	c.Connect()
	tr := ff.waitFor(t, n)
	tr.accept()
	flush(t, c)
	require.True(t, c.IsOpen())
	return tr
}

// flush waits until every task queued so far has run.
func flush(t *testing.T, c *Client) {
	t.Helper()
	done := make(chan struct{})
	require.True(t, c.queue.post(func() { close(done) }), "client queue closed")
	select {
	case <-done:
	case <-time.After(waitTimeout):
		t.Fatal("client queue did not drain")
	}
}

func notificationFrame(kind NotificationKind, collection, key string) string {
	data, _ := json.Marshal(map[string]any{ //nolint:errcheck // Static test data
		"type":       string(kind),
		"collection": collection,
		"key":        key,
		"caller":     "2vxsx-fae",
		"timestamp":  uint64(1_700_000_000_000_000_000),
	})
	return string(data)
}

func toStrings(t *testing.T, v any) []string {
	t.Helper()
	raw, ok := v.([]any)
	require.True(t, ok, "expected JSON array, got %T", v)
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		require.True(t, ok)
		out = append(out, s)
	}
	return out
}
