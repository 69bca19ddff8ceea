package push

import (
	"errors"
	"math/rand/v2"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Construction
// =============================================================================

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ClientConfig)
	}{
		{"missing canister", func(c *ClientConfig) { c.CanisterID = "" }},
		{"http scheme", func(c *ClientConfig) { c.GatewayURL = "http://gateway.test" }},
		{"no host", func(c *ClientConfig) { c.GatewayURL = "ws://" }},
		{"negative reconnect", func(c *ClientConfig) { c.ReconnectInterval = -time.Second }},
		{"negative heartbeat", func(c *ClientConfig) { c.HeartbeatInterval = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testClientConfig()
			tt.mutate(&cfg)

			c, err := New(cfg)
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Nil(t, c)
		})
	}
}

func TestNew_AppliesDefaults(t *testing.T) {
	ff := &fakeFactory{}
	c, err := New(ClientConfig{CanisterID: testCanisterID, ManualConnect: true}, WithTransportFactory(ff.New))
	require.NoError(t, err)
	defer c.Close() //nolint:errcheck // Test cleanup

	cfg := c.Config()
	assert.Equal(t, DefaultGatewayURL, cfg.GatewayURL)
	assert.Equal(t, DefaultReconnectInterval, cfg.ReconnectInterval)
	assert.Equal(t, DefaultHeartbeatInterval, cfg.HeartbeatInterval)
	assert.Equal(t, StateDisconnected, c.State())
	assert.Zero(t, ff.count(), "ManualConnect must not dial")
}

func TestNew_ConnectsByDefault(t *testing.T) {
	ff := &fakeFactory{}
	c, err := New(ClientConfig{GatewayURL: testGatewayURL, CanisterID: testCanisterID},
		WithTransportFactory(ff.New), WithLogger(discardLogger()))
	require.NoError(t, err)
	defer c.Close() //nolint:errcheck // Test cleanup

	tr := ff.waitFor(t, 1)
	assert.Equal(t, testGatewayURL, tr.address)
	assert.Equal(t, StateConnecting, c.State())
}

// =============================================================================
// Connection state machine
// =============================================================================

func TestConnect_HandshakeThenBatchedReplay(t *testing.T) {
	c, ff, rec := newTestClient(t, testClientConfig())

	_, err := c.Subscribe("a", func(Notification) error { return nil })
	require.NoError(t, err)
	_, err = c.Subscribe("b", func(Notification) error { return nil })
	require.NoError(t, err)

	tr := openClient(t, c, ff, 1)

	frames := tr.frames(t)
	require.Len(t, frames, 2)

	assert.Equal(t, "open", frames[0]["type"])
	assert.Equal(t, c.ClientKey(), frames[0]["clientKey"])
	assert.Equal(t, testCanisterID, frames[0]["canisterId"])

	assert.Equal(t, "subscribe", frames[1]["command"])
	assert.ElementsMatch(t, []string{"a", "b"}, toStrings(t, frames[1]["collections"]))

	assert.Equal(t, 1, rec.count(EventConnected))
}

func TestConnect_NoReplayWithoutTopics(t *testing.T) {
	c, ff, _ := newTestClient(t, testClientConfig())
	tr := openClient(t, c, ff, 1)

	frames := tr.frames(t)
	require.Len(t, frames, 1)
	assert.Equal(t, "open", frames[0]["type"])
}

func TestConnect_NoopWhileConnectingOrOpen(t *testing.T) {
	c, ff, _ := newTestClient(t, testClientConfig())

	c.Connect()
	c.Connect()
	tr := ff.waitFor(t, 1)
	flush(t, c)
	assert.Equal(t, 1, ff.count())
	assert.Equal(t, StateConnecting, c.State())

	tr.accept()
	c.Connect()
	flush(t, c)
	assert.Equal(t, 1, ff.count())
	assert.True(t, c.IsOpen())
}

func TestConnect_FailureSchedulesReconnect(t *testing.T) {
	c, ff, rec := newTestClient(t, testClientConfig())

	c.Connect()
	first := ff.waitFor(t, 1)
	dialErr := errors.New("connection refused")
	first.drop(dialErr)

	ff.waitFor(t, 2)
	assert.Equal(t, 1, rec.count(EventDisconnected))
	assert.ErrorIs(t, rec.ofType(EventDisconnected)[0].Err, dialErr)
	assert.Zero(t, rec.count(EventConnected))
	assert.True(t, first.isClosed())
	assert.Equal(t, uint64(1), c.Stats().ReconnectAttempts)
}

func TestReconnect_CyclesKeepRegistry(t *testing.T) {
	const cycles = 4

	c, ff, rec := newTestClient(t, testClientConfig())
	_, err := c.Subscribe("orders", func(Notification) error { return nil })
	require.NoError(t, err)
	_, err = c.Subscribe("users", func(Notification) error { return nil })
	require.NoError(t, err)
	flush(t, c)
	before := c.Topics()

	c.Connect()
	for i := 1; i <= cycles; i++ {
		tr := ff.waitFor(t, i)
		tr.accept()
		flush(t, c)
		require.True(t, c.IsOpen(), "cycle %d", i)

		replay := tr.commands(t, "subscribe")
		require.Len(t, replay, 1, "cycle %d", i)
		assert.ElementsMatch(t, []string{"orders", "users"}, toStrings(t, replay[0]["collections"]))

		tr.drop(errors.New("gateway restarted"))
		flush(t, c)
	}

	assert.Equal(t, cycles, rec.count(EventConnected))
	assert.Equal(t, cycles, rec.count(EventDisconnected))
	assert.Equal(t, before, c.Topics())
}

func TestReconnect_ClientKeyStable(t *testing.T) {
	c, ff, _ := newTestClient(t, testClientConfig())

	first := openClient(t, c, ff, 1)
	first.drop(nil)

	second := ff.waitFor(t, 2)
	second.accept()
	flush(t, c)

	assert.Equal(t, c.ClientKey(), first.frames(t)[0]["clientKey"])
	assert.Equal(t, c.ClientKey(), second.frames(t)[0]["clientKey"])
}

func TestDisconnect_SuppressesReconnect(t *testing.T) {
	c, ff, rec := newTestClient(t, testClientConfig())
	tr := openClient(t, c, ff, 1)

	c.Disconnect()
	flush(t, c)

	assert.Equal(t, StateDisconnected, c.State())
	assert.True(t, tr.isClosed())
	assert.Equal(t, 1, rec.count(EventDisconnected))

	time.Sleep(10 * testClientConfig().ReconnectInterval)
	assert.Equal(t, 1, ff.count(), "no reconnect after explicit disconnect")

	// Connect re-enables the client.
	c.Connect()
	ff.waitFor(t, 2)
}

func TestDisconnect_CancelsPendingReconnect(t *testing.T) {
	cfg := testClientConfig()
	cfg.ReconnectInterval = 50 * time.Millisecond
	c, ff, _ := newTestClient(t, cfg)

	tr := openClient(t, c, ff, 1)
	tr.drop(errors.New("reset by peer"))
	c.Disconnect()
	flush(t, c)

	time.Sleep(4 * cfg.ReconnectInterval)
	assert.Equal(t, 1, ff.count())
	assert.Equal(t, StateDisconnected, c.State())
}

func TestDisconnect_KeepsRegistry(t *testing.T) {
	c, ff, _ := newTestClient(t, testClientConfig())
	_, err := c.Subscribe("orders", func(Notification) error { return nil })
	require.NoError(t, err)

	openClient(t, c, ff, 1)
	c.Disconnect()
	flush(t, c)

	assert.Equal(t, []string{"orders"}, c.Topics())

	second := openClient(t, c, ff, 2)
	replay := second.commands(t, "subscribe")
	require.Len(t, replay, 1)
	assert.Equal(t, []string{"orders"}, toStrings(t, replay[0]["collections"]))
}

func TestStaleTransportCallbacksIgnored(t *testing.T) {
	c, ff, rec := newTestClient(t, testClientConfig())

	var calls atomic.Int32
	_, err := c.Subscribe("orders", func(Notification) error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, err)

	old := openClient(t, c, ff, 1)
	c.Disconnect()
	flush(t, c)

	old.deliver(notificationFrame(KindDocSet, "orders", "o1"))
	old.drop(errors.New("late close"))
	old.accept()
	flush(t, c)

	assert.Zero(t, calls.Load())
	assert.Equal(t, 1, rec.count(EventDisconnected))
	assert.Equal(t, 1, rec.count(EventConnected))
	assert.Equal(t, StateDisconnected, c.State())
}

func TestClose(t *testing.T) {
	c, ff, _ := newTestClient(t, testClientConfig())
	tr := openClient(t, c, ff, 1)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	assert.True(t, tr.isClosed())
	assert.Equal(t, StateDisconnected, c.State())

	_, err := c.Subscribe("orders", func(Notification) error { return nil })
	assert.ErrorIs(t, err, ErrClientClosed)

	// Requests after Close are ignored.
	c.Connect()
	assert.Equal(t, 1, ff.count())
}

func TestClose_FromObserver(t *testing.T) {
	c, ff, _ := newTestClient(t, testClientConfig())

	closed := make(chan error, 1)
	c.Observe(func(ev Event) {
		if ev.Type == EventConnected {
			closed <- c.Close()
		}
	})
	c.Connect()
	tr := ff.waitFor(t, 1)
	tr.accept()

	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("Close called from an observer did not return")
	}
	select {
	case <-c.done:
	case <-time.After(waitTimeout):
		t.Fatal("client goroutine did not stop")
	}

	require.NoError(t, c.Close())
	assert.True(t, tr.isClosed())
	assert.Equal(t, StateDisconnected, c.State())
}

func TestClose_FromListener(t *testing.T) {
	c, ff, _ := newTestClient(t, testClientConfig())

	closed := make(chan error, 1)
	_, err := c.Subscribe("orders", func(Notification) error {
		closed <- c.Close()
		return nil
	})
	require.NoError(t, err)

	tr := openClient(t, c, ff, 1)
	tr.deliver(notificationFrame(KindDocSet, "orders", "o1"))

	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("Close called from a listener did not return")
	}
	require.NoError(t, c.Close())
	assert.True(t, tr.isClosed())
}

// =============================================================================
// Subscriptions
// =============================================================================

func TestSubscribe_Validation(t *testing.T) {
	c, _, _ := newTestClient(t, testClientConfig())

	_, err := c.Subscribe("", func(Notification) error { return nil })
	assert.ErrorIs(t, err, ErrInvalidTopic)

	_, err = c.Subscribe("orders", nil)
	assert.ErrorIs(t, err, ErrNilListener)
}

func TestSubscribe_SendsOnlyForFirstListenerWhenOpen(t *testing.T) {
	c, ff, _ := newTestClient(t, testClientConfig())
	tr := openClient(t, c, ff, 1)

	_, err := c.Subscribe("orders", func(Notification) error { return nil })
	require.NoError(t, err)
	_, err = c.Subscribe("orders", func(Notification) error { return nil })
	require.NoError(t, err)
	flush(t, c)

	subs := tr.commands(t, "subscribe")
	require.Len(t, subs, 1)
	assert.Equal(t, []string{"orders"}, toStrings(t, subs[0]["collections"]))
	assert.Equal(t, 2, c.ListenerCount("orders"))
}

func TestSubscribe_DeferredWhileDisconnected(t *testing.T) {
	c, _, _ := newTestClient(t, testClientConfig())

	_, err := c.Subscribe("orders", func(Notification) error { return nil })
	require.NoError(t, err)
	flush(t, c)

	assert.Equal(t, []string{"orders"}, c.Topics())
	assert.Zero(t, c.Stats().FramesSent)
}

func TestUnsubscribe_LastListenerSendsFrame(t *testing.T) {
	c, ff, _ := newTestClient(t, testClientConfig())
	tr := openClient(t, c, ff, 1)

	first, err := c.Subscribe("orders", func(Notification) error { return nil })
	require.NoError(t, err)
	second, err := c.Subscribe("orders", func(Notification) error { return nil })
	require.NoError(t, err)

	first.Unsubscribe()
	first.Unsubscribe()
	flush(t, c)
	assert.Empty(t, tr.commands(t, "unsubscribe"))
	assert.Equal(t, []string{"orders"}, c.Topics())

	second.Unsubscribe()
	flush(t, c)
	unsubs := tr.commands(t, "unsubscribe")
	require.Len(t, unsubs, 1)
	assert.Equal(t, []string{"orders"}, toStrings(t, unsubs[0]["collections"]))
	assert.Empty(t, c.Topics())
}

func TestUnsubscribe_WhileDisconnectedSendsNothing(t *testing.T) {
	c, ff, _ := newTestClient(t, testClientConfig())

	sub, err := c.Subscribe("orders", func(Notification) error { return nil })
	require.NoError(t, err)
	sub.Unsubscribe()

	tr := openClient(t, c, ff, 1)
	assert.Empty(t, tr.commands(t, "subscribe"))
	assert.Empty(t, tr.commands(t, "unsubscribe"))
}

func TestRegistry_TopicSetMatchesListeners(t *testing.T) {
	c, _, _ := newTestClient(t, testClientConfig())

	rng := rand.New(rand.NewPCG(7, 11))
	topics := []string{"orders", "users", "assets", "Orders"}
	live := make(map[string][]*Subscription)

	for i := 0; i < 300; i++ {
		topic := topics[rng.IntN(len(topics))]
		if rng.IntN(3) > 0 || len(live[topic]) == 0 {
			sub, err := c.Subscribe(topic, func(Notification) error { return nil })
			require.NoError(t, err)
			live[topic] = append(live[topic], sub)
		} else {
			idx := rng.IntN(len(live[topic]))
			live[topic][idx].Unsubscribe()
			live[topic] = append(live[topic][:idx], live[topic][idx+1:]...)
		}

		require.Equal(t, expectedTopics(live), c.Topics(), "step %d", i)
	}

	assert.Equal(t, expectedTopics(live), c.Topics())
	for topic, subs := range live {
		assert.Equal(t, len(subs), c.ListenerCount(topic), topic)
	}
}

func TestSubscribe_VisibleWhenCallReturns(t *testing.T) {
	for i := 0; i < 50; i++ {
		c, _, _ := newTestClient(t, testClientConfig())

		sub, err := c.Subscribe("orders", func(Notification) error { return nil })
		require.NoError(t, err)
		require.Equal(t, []string{"orders"}, c.Topics())
		require.Equal(t, 1, c.ListenerCount("orders"))

		sub.Unsubscribe()
		require.Empty(t, c.Topics())
		require.Zero(t, c.ListenerCount("orders"))
	}
}

func TestSubscribe_FlappingWhileOpenSendsOneFrame(t *testing.T) {
	c, ff, _ := newTestClient(t, testClientConfig())
	tr := openClient(t, c, ff, 1)

	sub, err := c.Subscribe("orders", func(Notification) error { return nil })
	require.NoError(t, err)
	sub.Unsubscribe()
	_, err = c.Subscribe("orders", func(Notification) error { return nil })
	require.NoError(t, err)
	flush(t, c)

	assert.Len(t, tr.commands(t, "subscribe"), 1)
	assert.Empty(t, tr.commands(t, "unsubscribe"))
}

func TestSubscribe_NotRepeatedAfterReplay(t *testing.T) {
	c, ff, _ := newTestClient(t, testClientConfig())
	c.Connect()
	tr := ff.waitFor(t, 1)

	// Subscribed while Connecting; the replay on open announces it.
	_, err := c.Subscribe("orders", func(Notification) error { return nil })
	require.NoError(t, err)
	tr.accept()
	flush(t, c)

	subs := tr.commands(t, "subscribe")
	require.Len(t, subs, 1)
	assert.Equal(t, []string{"orders"}, toStrings(t, subs[0]["collections"]))
}

func expectedTopics(live map[string][]*Subscription) []string {
	out := []string{}
	for topic, subs := range live {
		if len(subs) > 0 {
			out = append(out, topic)
		}
	}
	sort.Strings(out)
	return out
}

// =============================================================================
// Dispatch
// =============================================================================

func TestDispatch_DeliversNotification(t *testing.T) {
	c, ff, rec := newTestClient(t, testClientConfig())

	var mu sync.Mutex
	var got []Notification
	_, err := c.Subscribe("orders", func(n Notification) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, n)
		return nil
	})
	require.NoError(t, err)

	tr := openClient(t, c, ff, 1)
	tr.deliver(`{"type":"doc_set","collection":"orders","key":"o1","caller":"p1","timestamp":123,"data":{"total":42}}`)
	flush(t, c)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, KindDocSet, got[0].Kind)
	assert.Equal(t, "orders", got[0].Topic)
	assert.Equal(t, "o1", got[0].ResourceKey)
	assert.Equal(t, "p1", got[0].Originator)
	assert.Equal(t, uint64(123), got[0].TimestampNanos)
	assert.JSONEq(t, `{"total":42}`, string(got[0].Payload))

	events := rec.ofType(EventNotification)
	require.Len(t, events, 1)
	assert.Equal(t, "orders", events[0].Topic)
	assert.Equal(t, "o1", events[0].Notification.ResourceKey)
	assert.Equal(t, c.ClientKey(), events[0].ClientKey)
}

func TestDispatch_AllNotificationKinds(t *testing.T) {
	c, ff, _ := newTestClient(t, testClientConfig())

	var mu sync.Mutex
	var kinds []NotificationKind
	_, err := c.Subscribe("media", func(n Notification) error {
		mu.Lock()
		defer mu.Unlock()
		kinds = append(kinds, n.Kind)
		return nil
	})
	require.NoError(t, err)

	tr := openClient(t, c, ff, 1)
	all := []NotificationKind{KindDocSet, KindDocDeleted, KindAssetUploaded, KindAssetDeleted}
	for _, kind := range all {
		tr.deliver(notificationFrame(kind, "media", "k"))
	}
	flush(t, c)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, all, kinds)
}

func TestDispatch_UnsubscribedTopicDropped(t *testing.T) {
	c, ff, rec := newTestClient(t, testClientConfig())

	var calls atomic.Int32
	_, err := c.Subscribe("orders", func(Notification) error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, err)

	tr := openClient(t, c, ff, 1)
	tr.deliver(notificationFrame(KindDocSet, "ghost", "g1"))
	flush(t, c)

	assert.Zero(t, calls.Load())
	assert.Equal(t, uint64(1), c.Stats().Dropped)
	require.Len(t, rec.ofType(EventNotification), 1, "observers see unlistened notifications")
	assert.Equal(t, "ghost", rec.ofType(EventNotification)[0].Topic)
	assert.True(t, c.IsOpen())
}

func TestDispatch_ListenerFailuresIsolated(t *testing.T) {
	c, ff, _ := newTestClient(t, testClientConfig())

	var healthy, other atomic.Int32
	_, err := c.Subscribe("orders", func(Notification) error { panic("listener bug") })
	require.NoError(t, err)
	_, err = c.Subscribe("orders", func(Notification) error { return errors.New("listener error") })
	require.NoError(t, err)
	_, err = c.Subscribe("orders", func(Notification) error {
		healthy.Add(1)
		return nil
	})
	require.NoError(t, err)
	_, err = c.Subscribe("users", func(Notification) error {
		other.Add(1)
		return nil
	})
	require.NoError(t, err)

	tr := openClient(t, c, ff, 1)
	tr.deliver(notificationFrame(KindDocSet, "orders", "o1"))
	tr.deliver(notificationFrame(KindDocDeleted, "users", "u1"))
	tr.deliver(notificationFrame(KindDocSet, "orders", "o2"))
	flush(t, c)

	assert.Equal(t, int32(2), healthy.Load())
	assert.Equal(t, int32(1), other.Load())
	assert.Equal(t, 3, c.ListenerCount("orders"), "failing listeners stay registered")
	assert.True(t, c.IsOpen())
}

func TestDispatch_ListenersGetPrivateCopies(t *testing.T) {
	c, ff, _ := newTestClient(t, testClientConfig())

	var seen [][]byte
	var mu sync.Mutex
	mutate := func(n Notification) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, append([]byte(nil), n.Payload...))
		for i := range n.Payload {
			n.Payload[i] = 'x'
		}
		return nil
	}
	_, err := c.Subscribe("orders", mutate)
	require.NoError(t, err)
	_, err = c.Subscribe("orders", mutate)
	require.NoError(t, err)

	tr := openClient(t, c, ff, 1)
	tr.deliver(`{"type":"doc_set","collection":"orders","key":"o1","caller":"p1","timestamp":1,"data":"abc"}`)
	flush(t, c)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	assert.Equal(t, `"abc"`, string(seen[0]))
	assert.Equal(t, `"abc"`, string(seen[1]))
}

func TestDispatch_ListenerMaySubscribe(t *testing.T) {
	c, ff, _ := newTestClient(t, testClientConfig())

	_, err := c.Subscribe("orders", func(Notification) error {
		_, err := c.Subscribe("order-items", func(Notification) error { return nil })
		return err
	})
	require.NoError(t, err)

	tr := openClient(t, c, ff, 1)
	tr.deliver(notificationFrame(KindDocSet, "orders", "o1"))
	flush(t, c)
	flush(t, c)

	assert.Equal(t, []string{"order-items", "orders"}, c.Topics())
}

// =============================================================================
// Control frames
// =============================================================================

func TestControlFrames(t *testing.T) {
	c, ff, rec := newTestClient(t, testClientConfig())
	tr := openClient(t, c, ff, 1)

	tr.deliver(`{"type":"welcome","payload":{"client_key":"x","version":"1.0.0"}}`)
	tr.deliver(`{"type":"pong","timestamp":1}`)
	tr.deliver(`{"type":"presence_changed","collection":"orders"}`)
	tr.deliver(`not json at all`)
	tr.deliver(`[1,2,3]`)
	tr.deliver(`{"type":"error","payload":{"error":"collection not allowed"}}`)
	flush(t, c)

	assert.True(t, c.IsOpen(), "no control frame closes the connection")
	assert.Equal(t, uint64(2), c.Stats().Malformed)

	errs := rec.ofType(EventError)
	require.Len(t, errs, 1)
	var serverErr *ServerError
	require.ErrorAs(t, errs[0].Err, &serverErr)
	assert.Equal(t, "collection not allowed", serverErr.Description)
	assert.Zero(t, rec.count(EventNotification))
}

// =============================================================================
// Heartbeat
// =============================================================================

func TestHeartbeat_OnlyWhileOpen(t *testing.T) {
	cfg := testClientConfig()
	cfg.HeartbeatInterval = 10 * time.Millisecond
	cfg.ReconnectInterval = time.Hour
	c, ff, _ := newTestClient(t, cfg)

	c.Connect()
	tr := ff.waitFor(t, 1)
	time.Sleep(5 * cfg.HeartbeatInterval)
	assert.Zero(t, c.Stats().HeartbeatsSent, "no ping while connecting")

	tr.accept()
	require.Eventually(t, func() bool {
		return c.Stats().HeartbeatsSent >= 3
	}, waitTimeout, waitTick)
	assert.GreaterOrEqual(t, len(tr.commands(t, "ping")), 3)

	tr.drop(errors.New("idle timeout"))
	flush(t, c)
	sent := c.Stats().HeartbeatsSent

	time.Sleep(5 * cfg.HeartbeatInterval)
	flush(t, c)
	assert.Equal(t, sent, c.Stats().HeartbeatsSent, "pings stop after leaving Open")
}

func TestHeartbeat_StaleTickIsNoop(t *testing.T) {
	c, ff, _ := newTestClient(t, testClientConfig())
	tr := openClient(t, c, ff, 1)

	var epoch uint64
	c.queue.post(func() { epoch = c.epoch })
	flush(t, c)

	c.Disconnect()
	c.queue.post(func() { c.heartbeatTick(epoch) })
	flush(t, c)

	assert.Empty(t, tr.commands(t, "ping"))
	assert.Zero(t, c.Stats().HeartbeatsSent)
}

// =============================================================================
// Observers
// =============================================================================

func TestObserve_CancelAndPanicIsolation(t *testing.T) {
	c, ff, _ := newTestClient(t, testClientConfig())

	var after atomic.Int32
	c.Observe(func(Event) { panic("observer bug") })
	cancel := c.Observe(func(Event) { after.Add(1) })

	openClient(t, c, ff, 1)
	assert.Equal(t, int32(1), after.Load())

	cancel()
	c.Disconnect()
	flush(t, c)
	assert.Equal(t, int32(1), after.Load())
}
