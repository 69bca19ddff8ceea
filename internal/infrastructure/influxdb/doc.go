// Package influxdb records push traffic in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, batched point writes, and health monitoring.
//
// # Measurements
//
//   - push_notifications: one point per relayed notification, tagged by
//     collection and kind
//   - push_connection: one point per gateway lifecycle event, tagged by
//     event type
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteNotification(n)
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered via the
// SetOnError callback. Connection and health check errors are returned
// directly.
package influxdb
