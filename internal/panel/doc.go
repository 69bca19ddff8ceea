// Package panel serves the satpush operator dashboard.
//
// The dashboard is a single static page that polls the local API
// (/api/v1/status, /api/v1/subscriptions, /api/v1/notifications) and
// renders the gateway connection, relayed collections and the most
// recent notifications. It is embedded into the binary with go:embed.
//
// A directory can be supplied to serve the assets from disk while
// iterating on them. Unknown paths fall back to index.html.
package panel
