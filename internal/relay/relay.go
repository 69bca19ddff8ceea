package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/satpush/internal/audit"
	"github.com/nerrad567/satpush/internal/infrastructure/mqtt"
	"github.com/nerrad567/satpush/internal/push"
)

// DefaultQueueSize is the number of pending items the worker buffers
// before new notifications are dropped.
const DefaultQueueSize = 256

// Option configures a Relay.
type Option func(*Relay)

// WithJournal enables the journal sink.
func WithJournal(j Journal) Option {
	return func(r *Relay) { r.journal = j }
}

// WithBus enables the MQTT sink and bus commands.
func WithBus(b Bus) Option {
	return func(r *Relay) { r.bus = b }
}

// WithMetrics enables the InfluxDB sink.
func WithMetrics(m Metrics) Option {
	return func(r *Relay) { r.metrics = m }
}

// WithAudit records bus commands in the audit trail.
func WithAudit(a audit.Recorder) Option {
	return func(r *Relay) { r.audit = a }
}

// WithQueueSize overrides DefaultQueueSize. Values <= 0 are ignored.
func WithQueueSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.queueSize = n
		}
	}
}

// Stats counts relay activity.
type Stats struct {
	Relayed    uint64 `json:"relayed"`
	Events     uint64 `json:"events"`
	Dropped    uint64 `json:"dropped"`
	SinkErrors uint64 `json:"sink_errors"`
}

// item is one unit of work for the worker: a notification or an event.
type item struct {
	notification *push.Notification
	event        *push.Event
}

// Relay forwards notifications from the collections it owns to the
// configured sinks.
//
// All public methods are thread-safe.
type Relay struct {
	client  PushClient
	journal Journal
	bus     Bus
	metrics Metrics
	audit   audit.Recorder
	logger  Logger

	queueSize int
	queue     chan item

	mu            sync.Mutex
	subs          map[string]*push.Subscription
	started       bool
	stopped       bool
	cancelObserve func()
	cancelWorker  context.CancelFunc
	workerDone    chan struct{}

	relayed    atomic.Uint64
	events     atomic.Uint64
	dropped    atomic.Uint64
	sinkErrors atomic.Uint64
}

// New creates a relay for client. Sinks are enabled with options.
func New(client PushClient, opts ...Option) *Relay {
	r := &Relay{
		client:    client,
		logger:    noopLogger{},
		queueSize: DefaultQueueSize,
		subs:      make(map[string]*push.Subscription),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetLogger sets the logger for the relay.
func (r *Relay) SetLogger(logger Logger) {
	r.logger = logger
}

// Start begins relaying. It subscribes to collections, observes the push
// client, starts the worker and, when a bus is configured, subscribes to
// the bus command topics.
//
// The worker stops when ctx is done or Stop is called.
func (r *Relay) Start(ctx context.Context, collections []string) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}
	r.started = true
	r.queue = make(chan item, r.queueSize)
	workerCtx, cancel := context.WithCancel(ctx)
	r.cancelWorker = cancel
	r.workerDone = make(chan struct{})
	r.mu.Unlock()

	go r.run(workerCtx)

	cancelObserve := r.client.Observe(r.observe)
	r.mu.Lock()
	r.cancelObserve = cancelObserve
	r.mu.Unlock()

	if len(collections) > 0 {
		if _, err := r.Add(collections...); err != nil {
			r.Stop()
			return fmt.Errorf("subscribing initial collections: %w", err)
		}
	}

	if r.bus != nil {
		topics := mqtt.Topics{}
		if err := r.bus.Subscribe(topics.CommandSubscribe(), 1, r.handleSubscribeCommand); err != nil {
			r.logger.Warn("bus subscribe command unavailable", "error", err)
		}
		if err := r.bus.Subscribe(topics.CommandUnsubscribe(), 1, r.handleUnsubscribeCommand); err != nil {
			r.logger.Warn("bus unsubscribe command unavailable", "error", err)
		}
	}

	r.logger.Info("relay started", "collections", r.Collections())
	return nil
}

// Stop removes every owned subscription, stops observing the push client
// and waits for the worker to drain. Safe to call more than once.
func (r *Relay) Stop() {
	r.mu.Lock()
	if !r.started || r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	subs := r.subs
	r.subs = make(map[string]*push.Subscription)
	cancelObserve := r.cancelObserve
	r.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
	if cancelObserve != nil {
		cancelObserve()
	}

	// The worker drains what is queued, then exits.
	close(r.queue)
	<-r.workerDone
	r.cancelWorker()

	r.logger.Info("relay stopped")
}

// Add subscribes to each collection not already owned and returns the
// ones that were added, in argument order.
func (r *Relay) Add(collections ...string) ([]string, error) {
	if len(collections) == 0 {
		return nil, ErrNoCollections
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started || r.stopped {
		return nil, ErrNotStarted
	}

	var added []string
	for _, collection := range collections {
		if _, owned := r.subs[collection]; owned {
			continue
		}
		sub, err := r.client.Subscribe(collection, r.listen)
		if err != nil {
			return added, fmt.Errorf("subscribing %q: %w", collection, err)
		}
		r.subs[collection] = sub
		added = append(added, collection)
	}

	if len(added) > 0 {
		r.logger.Info("relay subscribed", "collections", added)
	}
	return added, nil
}

// Remove unsubscribes from each owned collection and returns the ones
// that were removed. Collections the relay does not own are ignored.
func (r *Relay) Remove(collections ...string) ([]string, error) {
	if len(collections) == 0 {
		return nil, ErrNoCollections
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started || r.stopped {
		return nil, ErrNotStarted
	}

	var removed []string
	for _, collection := range collections {
		sub, owned := r.subs[collection]
		if !owned {
			continue
		}
		sub.Unsubscribe()
		delete(r.subs, collection)
		removed = append(removed, collection)
	}

	if len(removed) > 0 {
		r.logger.Info("relay unsubscribed", "collections", removed)
	}
	return removed, nil
}

// Collections returns the owned collections, sorted.
func (r *Relay) Collections() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.subs))
	for collection := range r.subs {
		out = append(out, collection)
	}
	slices.Sort(out)
	return out
}

// Stats returns a snapshot of the relay counters.
func (r *Relay) Stats() Stats {
	return Stats{
		Relayed:    r.relayed.Load(),
		Events:     r.events.Load(),
		Dropped:    r.dropped.Load(),
		SinkErrors: r.sinkErrors.Load(),
	}
}

// listen is the push listener for every owned collection. It runs on the
// push client goroutine and must not block.
func (r *Relay) listen(n push.Notification) error {
	if !r.enqueue(item{notification: &n}) {
		r.dropped.Add(1)
		r.logger.Warn("relay queue full, notification dropped",
			"collection", n.Topic,
			"kind", n.Kind,
		)
	}
	return nil
}

// observe forwards lifecycle events. Notifications arrive via listen.
func (r *Relay) observe(ev push.Event) {
	if ev.Type == push.EventNotification {
		return
	}
	if !r.enqueue(item{event: &ev}) {
		r.dropped.Add(1)
		r.logger.Warn("relay queue full, event dropped", "event", ev.Type.String())
	}
}

// enqueue reports false when the queue is full or closed.
func (r *Relay) enqueue(it item) (ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return false
	}
	select {
	case r.queue <- it:
		return true
	default:
		return false
	}
}

func (r *Relay) run(ctx context.Context) {
	defer close(r.workerDone)
	for {
		select {
		case it, ok := <-r.queue:
			if !ok {
				return
			}
			r.process(ctx, it)
		case <-ctx.Done():
			return
		}
	}
}

func (r *Relay) process(ctx context.Context, it item) {
	switch {
	case it.notification != nil:
		r.forwardNotification(ctx, *it.notification)
		r.relayed.Add(1)
	case it.event != nil:
		r.forwardEvent(ctx, *it.event)
		r.events.Add(1)
	}
}

func (r *Relay) forwardNotification(ctx context.Context, n push.Notification) {
	if r.journal != nil {
		if err := r.journal.Record(ctx, n); err != nil {
			r.sinkFailed("journal", err, "collection", n.Topic)
		}
	}

	if r.bus != nil {
		payload, err := json.Marshal(n)
		if err == nil {
			err = r.bus.PublishDefault(mqtt.Topics{}.Notification(n.Topic, string(n.Kind)), payload)
		}
		if err != nil {
			r.sinkFailed("mqtt", err, "collection", n.Topic)
		}
	}

	if r.metrics != nil {
		r.metrics.WriteNotification(n)
	}

	r.logger.Debug("notification relayed",
		"collection", n.Topic,
		"kind", n.Kind,
		"key", n.ResourceKey,
	)
}

func (r *Relay) forwardEvent(ctx context.Context, ev push.Event) {
	if r.journal != nil {
		if err := r.journal.RecordConnection(ctx, ev); err != nil {
			r.sinkFailed("journal", err, "event", ev.Type.String())
		}
	}
	if r.bus != nil {
		r.bus.SetGatewayState(ev.Type.String())
	}
	if r.metrics != nil {
		r.metrics.WriteConnectionEvent(ev)
	}
}

func (r *Relay) sinkFailed(sink string, err error, args ...any) {
	r.sinkErrors.Add(1)
	r.logger.Warn("relay sink failed", append([]any{"sink", sink, "error", err}, args...)...)
}
