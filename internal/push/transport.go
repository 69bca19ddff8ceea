package push

// TransportHandler receives callbacks from a Transport.
//
// Callbacks may arrive on any goroutine and must not block. After Open,
// a transport calls OnOpen at most once, then OnMessage for each inbound
// message in arrival order, then OnClose exactly once (a failed open calls
// OnClose without OnOpen). Callbacks that arrive after Close are allowed;
// the client discards them.
type TransportHandler interface {
	OnOpen()
	OnMessage(data []byte)
	OnClose(err error)
}

// Transport is one persistent, message-framed connection.
//
// A Transport is used for a single connection attempt; the client asks the
// TransportFactory for a fresh one on every (re)connect.
type Transport interface {
	// Open starts connecting to address and returns immediately. Failures
	// are reported through handler.OnClose.
	Open(address string, handler TransportHandler)

	// Send writes one text frame. It returns ErrTransportNotOpen when the
	// connection is not established.
	Send(data []byte) error

	// Close releases the connection. It is idempotent and safe to call on
	// a transport that never opened.
	Close() error
}

// TransportFactory creates a new, unopened Transport.
type TransportFactory func() Transport
