package push

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket transport defaults.
const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultWriteTimeout     = 10 * time.Second
	defaultMaxMessageSize   = 1 << 20 // 1MB

	// closeGracePeriod bounds the close-frame write on Close.
	closeGracePeriod = time.Second
)

// WSTransportOptions configures WSTransport. Zero values use defaults.
type WSTransportOptions struct {
	// HandshakeTimeout bounds the dial and the WebSocket upgrade.
	HandshakeTimeout time.Duration

	// WriteTimeout bounds each frame write.
	WriteTimeout time.Duration

	// MaxMessageSize is the read limit for inbound messages in bytes.
	MaxMessageSize int64

	// Header is sent with the upgrade request.
	Header http.Header
}

func (o WSTransportOptions) withDefaults() WSTransportOptions {
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = defaultHandshakeTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = defaultWriteTimeout
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = defaultMaxMessageSize
	}
	return o
}

// WSTransport is a Transport over gorilla/websocket.
//
// Thread Safety:
//   - Send and Close are safe for concurrent use.
//   - The read pump runs on its own goroutine and owns all reads.
type WSTransport struct {
	opts   WSTransportOptions
	dialer *websocket.Dialer

	mu      sync.Mutex
	conn    *websocket.Conn
	cancel  context.CancelFunc
	started bool
	closed  bool

	// writeMu serialises data frames; gorilla allows one concurrent writer.
	writeMu sync.Mutex
}

// NewWSTransport creates an unopened WebSocket transport.
func NewWSTransport(opts WSTransportOptions) *WSTransport {
	opts = opts.withDefaults()
	return &WSTransport{
		opts: opts,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.HandshakeTimeout,
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
		},
	}
}

// NewWSTransportFactory returns a TransportFactory producing WSTransports.
func NewWSTransportFactory(opts WSTransportOptions) TransportFactory {
	return func() Transport {
		return NewWSTransport(opts)
	}
}

// Open dials address in the background.
func (t *WSTransport) Open(address string, handler TransportHandler) {
	t.mu.Lock()
	if t.started || t.closed {
		t.mu.Unlock()
		handler.OnClose(fmt.Errorf("%w: transport already used", ErrDialFailed))
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.started = true
	t.cancel = cancel
	t.mu.Unlock()

	go t.run(ctx, address, handler)
}

// run dials, reports the open and then pumps inbound messages until the
// connection ends.
func (t *WSTransport) run(ctx context.Context, address string, handler TransportHandler) {
	dialCtx, cancelDial := context.WithTimeout(ctx, t.opts.HandshakeTimeout)
	conn, resp, err := t.dialer.DialContext(dialCtx, address, t.opts.Header)
	cancelDial()
	if resp != nil && resp.Body != nil {
		resp.Body.Close() //nolint:errcheck // Upgrade response body is unused
	}
	if err != nil {
		handler.OnClose(fmt.Errorf("%w: %w", ErrDialFailed, err))
		return
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		conn.Close() //nolint:errcheck // Closed while dialling
		handler.OnClose(ErrTransportNotOpen)
		return
	}
	t.conn = conn
	t.mu.Unlock()

	conn.SetReadLimit(t.opts.MaxMessageSize)
	handler.OnOpen()

	for {
		// Text and binary messages both carry UTF-8 JSON; the message
		// type is not needed past this point.
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.release()
			handler.OnClose(closeReason(err))
			return
		}
		handler.OnMessage(data)
	}
}

// closeReason maps a read error to the error reported by OnClose.
// A normal closure from the gateway is reported as nil.
func closeReason(err error) error {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return nil
	}
	return err
}

// Send writes one text frame.
func (t *WSTransport) Send(data []byte) error {
	t.mu.Lock()
	conn, closed := t.conn, t.closed
	t.mu.Unlock()

	if closed || conn == nil {
		return ErrTransportNotOpen
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	//nolint:errcheck // Best-effort deadline; write error caught below
	conn.SetWriteDeadline(time.Now().Add(t.opts.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	return nil
}

// Close sends a close frame when connected and releases the socket.
func (t *WSTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	conn, cancel := t.conn, t.cancel
	t.conn = nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn == nil {
		return nil
	}

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	//nolint:errcheck // Best-effort close frame; the peer may already be gone
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
	if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("closing websocket: %w", err)
	}
	return nil
}

// release drops the connection after the read pump ended.
func (t *WSTransport) release() {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()

	if conn != nil {
		conn.Close() //nolint:errcheck // Read side already failed
	}
}
