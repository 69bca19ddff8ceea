// Package push implements a reconnecting push-notification client for a
// satellite WebSocket gateway.
//
// A single Client multiplexes any number of collection subscriptions over
// one persistent connection:
//   - Transport owns the socket (gorilla/websocket by default)
//   - a state machine drives Disconnected → Connecting → Open → Closing
//   - a heartbeat sends {"command":"ping"} while Open
//   - a registry maps collections to listeners and replays them after
//     every (re)connection in one batched subscribe frame
//
// # Concurrency
//
// Every state change, registry mutation, dispatch and timer callback runs
// on one goroutine owned by the client (a serialized task queue). Public
// methods post work to that queue and return immediately, so they are
// safe to call from any goroutine, including from inside a Listener or an
// Observer. Subscribe and Unsubscribe update the listener registry before
// returning and leave only the gateway frame to the queue.
//
// # Delivery
//
// Delivery is best effort and at most once per connection. Notifications
// for collections without listeners reach no listener but are still
// reported to observers. Listener errors and
// panics are logged and never affect other listeners or the connection.
//
// # Usage
//
//	cfg := push.DefaultClientConfig()
//	cfg.GatewayURL = "wss://gateway.example.net"
//	cfg.CanisterID = "ryjl3-tyaaa-aaaaa-aaaba-cai"
//
//	client, err := push.New(cfg, push.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	sub, err := client.Subscribe("orders", func(n push.Notification) error {
//	    logger.Info("order changed", "key", n.ResourceKey, "kind", n.Kind)
//	    return nil
//	})
//	...
//	sub.Unsubscribe()
package push
