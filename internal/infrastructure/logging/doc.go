// Package logging configures the daemon's log/slog output.
//
// Every entry carries service=satpush and the build version; subsystems add
// a component attribute through Logger.Component, so one stream can be
// filtered per push client, relay sink or API.
//
//	logging:
//	  level: "info"      # debug | info | warn | error
//	  format: "json"     # json | text
//	  output: "stdout"   # stdout | stderr | discard
//
// Broker passwords and InfluxDB tokens must never be logged.
package logging
