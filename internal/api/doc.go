// Package api implements the local HTTP status and control API for satpush.
//
// This package provides:
//   - Status endpoints for the gateway connection and relay counters
//   - Subscription management (list, add, remove collections)
//   - Notification and connection history from the journal
//   - Connect/disconnect control of the push client
//   - An audit trail of control actions (GET /api/v1/audit)
//   - The operator dashboard under /panel/
//   - Middleware stack (request ID, logging, recovery, rate limit, body limit)
//   - Optional bearer-token auth on the control endpoints
//
// # Graceful Degradation
//
// The journal, audit trail, relay and MQTT bus are optional. Endpoints that need a
// missing component answer 503; the rest keep working.
//
// The API binds to 127.0.0.1 by default. With api.auth enabled, connect,
// disconnect and subscription changes need an HS256 token from
// "satpush token"; reads stay open.
package api
