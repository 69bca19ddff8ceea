// Package relay fans push notifications out to the local sinks.
//
// A Relay owns a set of gateway subscriptions on a push.Client. Every
// notification received on them, and every connection lifecycle event,
// is forwarded on a single worker goroutine to:
//
//   - the SQLite journal (history served by the API)
//   - the MQTT bus (satpush/notification/{collection}/{kind})
//   - InfluxDB (push_notifications and push_connection measurements)
//
// Each sink is optional. A failing sink is logged and counted; it never
// blocks the others or the push client.
//
// The relay also listens on satpush/command/subscribe and
// satpush/command/unsubscribe so local services can change the
// subscription set without the HTTP API.
package relay
