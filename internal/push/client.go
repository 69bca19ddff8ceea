package push

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Logger is the logging interface used by the client.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTransportFactory replaces the default gorilla/websocket transport.
func WithTransportFactory(factory TransportFactory) Option {
	return func(c *Client) {
		if factory != nil {
			c.newTransport = factory
		}
	}
}

// Stats are cumulative counters for the life of a Client.
type Stats struct {
	Connects          uint64 `json:"connects"`
	Disconnects       uint64 `json:"disconnects"`
	ReconnectAttempts uint64 `json:"reconnect_attempts"`
	Notifications     uint64 `json:"notifications"`
	Dropped           uint64 `json:"dropped"`
	Malformed         uint64 `json:"malformed"`
	ServerErrors      uint64 `json:"server_errors"`
	HeartbeatsSent    uint64 `json:"heartbeats_sent"`
	FramesSent        uint64 `json:"frames_sent"`
}

type counters struct {
	connects, disconnects, reconnects    atomic.Uint64
	notifications, dropped, malformed    atomic.Uint64
	serverErrors, heartbeats, framesSent atomic.Uint64
}

// Client is a reconnecting push-notification client.
//
// It owns one connection to the gateway at a time, replays every
// subscribed collection after each (re)connection, pings while Open and
// reconnects at a fixed interval until Disconnect or Close is called.
//
// Thread Safety:
//   - All exported methods are safe for concurrent use.
//   - Subscribe and Unsubscribe update the registry before returning; the
//     matching gateway frame is sent from the client goroutine.
//   - Connect and Disconnect never block; their effects are applied in
//     call order on the client goroutine.
//   - Observers and listeners run on the client goroutine and may call any
//     method, Close included.
type Client struct {
	cfg          ClientConfig
	key          string
	logger       Logger
	newTransport TransportFactory

	queue     *taskQueue
	done      chan struct{}
	closeOnce sync.Once

	registry     *Registry
	events       *emitter
	nextListener atomic.Uint64
	current      atomic.Int32
	stats        counters

	// Everything below is owned by the queue goroutine.
	state         ConnectionState
	epoch         uint64
	transport     Transport
	heartbeat     *heartbeat
	reconnect     *time.Timer
	reconnectSeq  uint64
	stopRequested bool
	// announced holds the topics the gateway was told about on the
	// current connection.
	announced map[string]bool
}

// New creates a client and starts its goroutine. Unless cfg.ManualConnect
// is set, the first connection attempt is already under way when New
// returns.
//
// Parameters:
//   - cfg: Client configuration; zero intervals take the defaults
//   - opts: Optional logger and transport factory
//
// Returns:
//   - *Client: Running client; call Close when done
//   - error: ErrInvalidConfig if cfg fails validation
func New(cfg ClientConfig, opts ...Option) (*Client, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		cfg:          cfg,
		key:          newClientKey(time.Now()),
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		newTransport: NewWSTransportFactory(WSTransportOptions{}),
		queue:        newTaskQueue(),
		done:         make(chan struct{}),
		registry:     newRegistry(),
		events:       newEmitter(),
	}
	for _, opt := range opts {
		opt(c)
	}

	go c.queue.run(c.done)

	if cfg.AutoConnect() {
		c.Connect()
	}
	return c, nil
}

// ClientKey returns the identity sent in every handshake.
func (c *Client) ClientKey() string {
	return c.key
}

// Config returns the configuration in effect.
func (c *Client) Config() ClientConfig {
	return c.cfg
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	return ConnectionState(c.current.Load())
}

// IsOpen reports whether the connection is Open.
func (c *Client) IsOpen() bool {
	return c.State() == StateOpen
}

// Topics returns the collections that currently have listeners.
func (c *Client) Topics() []string {
	return c.registry.Topics()
}

// ListenerCount returns the number of listeners on topic.
func (c *Client) ListenerCount(topic string) int {
	return c.registry.ListenerCount(topic)
}

// Stats returns a snapshot of the client counters.
func (c *Client) Stats() Stats {
	return Stats{
		Connects:          c.stats.connects.Load(),
		Disconnects:       c.stats.disconnects.Load(),
		ReconnectAttempts: c.stats.reconnects.Load(),
		Notifications:     c.stats.notifications.Load(),
		Dropped:           c.stats.dropped.Load(),
		Malformed:         c.stats.malformed.Load(),
		ServerErrors:      c.stats.serverErrors.Load(),
		HeartbeatsSent:    c.stats.heartbeats.Load(),
		FramesSent:        c.stats.framesSent.Load(),
	}
}

// Observe registers o for every client event and returns a function that
// removes it.
func (c *Client) Observe(o Observer) (cancel func()) {
	if o == nil {
		return func() {}
	}
	return c.events.add(o)
}

// Connect starts a connection attempt if the client is Disconnected and
// re-enables automatic reconnection. It is a no-op while Connecting or Open.
func (c *Client) Connect() {
	c.post(c.connect)
}

// Disconnect closes the connection and suppresses automatic reconnection
// until Connect is called again. Subscriptions are kept.
func (c *Client) Disconnect() {
	c.post(c.disconnect)
}

// Close disconnects and stops the client goroutine. It blocks until
// pending work has run, except when called from an observer or listener:
// the shutdown then completes once that callback returns. Safe to call
// more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.queue.post(c.disconnect)
		c.queue.close()
	})
	if c.queue.onQueue() {
		return nil
	}
	<-c.done
	return nil
}

// Subscribe registers l for notifications on topic. Topics and
// ListenerCount reflect the new listener as soon as Subscribe returns.
//
// The first listener on a topic sends a subscribe frame right away when
// Open; otherwise the topic is announced on the next connection.
//
// Returns:
//   - *Subscription: Handle whose Unsubscribe removes exactly this listener
//   - error: ErrInvalidTopic, ErrNilListener or ErrClientClosed
func (c *Client) Subscribe(topic string, l Listener) (*Subscription, error) {
	if topic == "" {
		return nil, ErrInvalidTopic
	}
	if l == nil {
		return nil, ErrNilListener
	}

	id := ListenerID(c.nextListener.Add(1))
	if c.registry.add(topic, id, l) {
		if !c.queue.post(func() { c.reconcile(topic) }) {
			c.registry.remove(topic, id)
			return nil, ErrClientClosed
		}
	} else if c.queue.isClosed() {
		c.registry.remove(topic, id)
		return nil, ErrClientClosed
	}
	return &Subscription{client: c, topic: topic, id: id}, nil
}

// Unsubscribe removes one listener before returning. Removing the last
// listener of a topic sends an unsubscribe frame when Open. Unknown ids
// are ignored.
func (c *Client) Unsubscribe(topic string, id ListenerID) {
	if _, last := c.registry.remove(topic, id); last {
		c.post(func() { c.reconcile(topic) })
	}
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	client *Client
	topic  string
	id     ListenerID
	once   sync.Once
}

// Topic returns the subscribed collection.
func (s *Subscription) Topic() string {
	return s.topic
}

// ID returns the listener id.
func (s *Subscription) ID() ListenerID {
	return s.id
}

// Unsubscribe removes the listener. Calls after the first are no-ops.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.client.Unsubscribe(s.topic, s.id)
	})
}

// post queues task, logging when the client is already closed.
func (c *Client) post(task func()) {
	if !c.queue.post(task) {
		c.logger.Debug("push client closed, request ignored")
	}
}

// =============================================================================
// State machine (client goroutine only)
// =============================================================================

func (c *Client) transition(t trigger) bool {
	next, ok := nextState(c.state, t)
	if !ok {
		c.logger.Warn("invalid push state transition",
			"state", c.state.String(),
			"trigger", t.String(),
		)
		return false
	}
	if next != c.state {
		c.logger.Debug("push state changed",
			"from", c.state.String(),
			"to", next.String(),
			"trigger", t.String(),
		)
	}
	c.state = next
	c.current.Store(int32(next))
	return true
}

func (c *Client) connect() {
	c.stopRequested = false
	c.cancelReconnect()

	if c.state != StateDisconnected {
		c.logger.Debug("connect ignored", "state", c.state.String())
		return
	}
	if !c.transition(triggerConnect) {
		return
	}

	c.epoch++
	c.transport = c.newTransport()
	c.logger.Info("connecting to push gateway",
		"url", c.cfg.GatewayURL,
		"canister_id", c.cfg.CanisterID,
	)
	c.transport.Open(c.cfg.GatewayURL, &transportEvents{client: c, epoch: c.epoch})
}

func (c *Client) disconnect() {
	c.stopRequested = true
	wasOpen := c.state == StateOpen

	c.transition(triggerDisconnect)
	c.cancelReconnect()
	c.stopHeartbeat()
	c.releaseTransport()
	c.announced = nil
	// Callbacks from the released transport carry the old epoch.
	c.epoch++
	c.transition(triggerReleased)

	if wasOpen {
		c.logger.Info("disconnected from push gateway")
		c.stats.disconnects.Add(1)
		c.emit(Event{Type: EventDisconnected})
	}
}

func (c *Client) handleOpen(epoch uint64) {
	if epoch != c.epoch || c.state != StateConnecting {
		c.logger.Debug("stale open signal ignored", "epoch", epoch)
		return
	}
	c.transition(triggerOpened)
	c.logger.Info("connected to push gateway", "client_key", c.key)

	if err := c.sendHandshake(); err != nil {
		c.logger.Warn("handshake not sent", "error", err)
	}

	c.startHeartbeat()

	c.announced = make(map[string]bool)
	if topics := c.registry.Topics(); len(topics) > 0 {
		if err := c.sendCommand(commandSubscribe, topics); err != nil {
			c.logger.Warn("subscription replay failed", "collections", topics, "error", err)
		} else {
			for _, topic := range topics {
				c.announced[topic] = true
			}
			c.logger.Debug("subscriptions replayed", "collections", topics)
		}
	}

	c.stats.connects.Add(1)
	c.emit(Event{Type: EventConnected})
}

func (c *Client) handleClose(epoch uint64, reason error) {
	if epoch != c.epoch {
		c.logger.Debug("stale close signal ignored", "epoch", epoch)
		return
	}
	prev := c.state
	if prev != StateOpen && prev != StateConnecting {
		return
	}
	c.transition(triggerLost)

	c.stopHeartbeat()
	c.releaseTransport()
	c.announced = nil

	if prev == StateOpen {
		c.logger.Warn("push gateway connection lost", "error", reason)
	} else {
		c.logger.Warn("push gateway connection failed", "error", reason)
	}
	c.stats.disconnects.Add(1)
	c.emit(Event{Type: EventDisconnected, Err: reason})

	if !c.stopRequested {
		c.scheduleReconnect()
	}
}

func (c *Client) handleMessage(epoch uint64, data []byte) {
	if epoch != c.epoch || c.state != StateOpen {
		c.logger.Debug("frame from stale connection dropped", "epoch", epoch)
		return
	}

	frame, err := decodeFrame(data)
	if err != nil {
		c.stats.malformed.Add(1)
		c.logger.Warn("dropping undecodable frame", "error", err, "size", len(data))
		return
	}

	switch {
	case frame.Type == FrameWelcome:
		c.logger.Info("push gateway welcome received")
	case frame.Type == FramePong:
		c.logger.Debug("heartbeat acknowledged")
	case frame.Type == FrameError:
		desc := frame.errorDescription()
		c.stats.serverErrors.Add(1)
		c.logger.Warn("push gateway reported error", "error", desc)
		c.emit(Event{Type: EventError, Err: &ServerError{Description: desc}})
	case NotificationKind(frame.Type).IsData():
		c.dispatch(frame.notification())
	default:
		c.logger.Debug("ignoring unknown frame type", "type", frame.Type)
	}
}

// dispatch hands n to the listeners of its collection, then to observers.
// Observers see every data notification, including ones nobody listens to.
func (c *Client) dispatch(n Notification) {
	if delivered := c.registry.dispatch(n, c.logger); delivered > 0 {
		c.stats.notifications.Add(1)
	} else {
		c.stats.dropped.Add(1)
		c.logger.Debug("notification without listeners",
			"collection", n.Topic,
			"kind", string(n.Kind),
		)
	}

	observed := n.clone()
	c.emit(Event{Type: EventNotification, Topic: n.Topic, Notification: &observed})
}

// reconcile brings the gateway's view of topic in line with the registry.
// Several Subscribe/Unsubscribe calls on one topic may queue reconciles
// before the first runs; only a real change sends a frame.
func (c *Client) reconcile(topic string) {
	if c.state != StateOpen {
		c.logger.Debug("subscription change deferred until connected", "collection", topic)
		return
	}
	want := c.registry.ListenerCount(topic) > 0
	if want == c.announced[topic] {
		return
	}

	command := commandUnsubscribe
	if want {
		command = commandSubscribe
	}
	if err := c.sendCommand(command, []string{topic}); err != nil {
		c.logger.Warn(command+" frame not sent", "collection", topic, "error", err)
		return
	}
	if want {
		c.announced[topic] = true
	} else {
		delete(c.announced, topic)
	}
}

// =============================================================================
// Timers (client goroutine only)
// =============================================================================

func (c *Client) startHeartbeat() {
	c.stopHeartbeat()
	epoch := c.epoch
	c.heartbeat = startHeartbeat(c.cfg.HeartbeatInterval, func() {
		c.queue.post(func() { c.heartbeatTick(epoch) })
	})
}

func (c *Client) stopHeartbeat() {
	c.heartbeat.Stop()
	c.heartbeat = nil
}

func (c *Client) heartbeatTick(epoch uint64) {
	if epoch != c.epoch || c.state != StateOpen || c.heartbeat == nil {
		return
	}
	if err := c.sendCommand(commandPing, nil); err != nil {
		c.logger.Debug("heartbeat not sent", "error", err)
		return
	}
	c.stats.heartbeats.Add(1)
}

func (c *Client) scheduleReconnect() {
	c.cancelReconnect()
	seq := c.reconnectSeq
	c.logger.Info("reconnect scheduled", "in", c.cfg.ReconnectInterval.String())
	c.reconnect = time.AfterFunc(c.cfg.ReconnectInterval, func() {
		c.queue.post(func() { c.fireReconnect(seq) })
	})
}

func (c *Client) cancelReconnect() {
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	c.reconnectSeq++
}

func (c *Client) fireReconnect(seq uint64) {
	if seq != c.reconnectSeq || c.reconnect == nil || c.stopRequested {
		return
	}
	c.reconnect = nil
	c.stats.reconnects.Add(1)
	c.logger.Info("reconnecting to push gateway")
	c.connect()
}

// =============================================================================
// Frames (client goroutine only)
// =============================================================================

func (c *Client) sendHandshake() error {
	data, err := encodeHandshake(c.key, c.cfg.CanisterID)
	if err != nil {
		return fmt.Errorf("encoding handshake: %w", err)
	}
	return c.send(data)
}

func (c *Client) sendCommand(command string, collections []string) error {
	data, err := encodeCommand(command, collections)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", command, err)
	}
	return c.send(data)
}

// send writes a frame when Open. Callers above the transport never
// write in any other state.
func (c *Client) send(data []byte) error {
	if c.state != StateOpen || c.transport == nil {
		return ErrNotOpen
	}
	if err := c.transport.Send(data); err != nil {
		return err
	}
	c.stats.framesSent.Add(1)
	return nil
}

func (c *Client) releaseTransport() {
	if c.transport == nil {
		return
	}
	if err := c.transport.Close(); err != nil {
		c.logger.Debug("transport close failed", "error", err)
	}
	c.transport = nil
}

func (c *Client) emit(ev Event) {
	ev.ClientKey = c.key
	ev.At = time.Now().UTC()
	c.events.emit(ev, c.logger)
}

// transportEvents forwards transport callbacks onto the client goroutine,
// tagged with the connection epoch they belong to.
type transportEvents struct {
	client *Client
	epoch  uint64
}

func (h *transportEvents) OnOpen() {
	h.client.queue.post(func() { h.client.handleOpen(h.epoch) })
}

func (h *transportEvents) OnMessage(data []byte) {
	h.client.queue.post(func() { h.client.handleMessage(h.epoch, data) })
}

func (h *transportEvents) OnClose(err error) {
	h.client.queue.post(func() { h.client.handleClose(h.epoch, err) })
}
