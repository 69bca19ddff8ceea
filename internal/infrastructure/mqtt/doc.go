// Package mqtt provides the local MQTT bus for satpush.
//
// Push notifications received from the gateway are republished on the
// broker so that local services can consume them without their own
// WebSocket connection, and subscribe/unsubscribe commands published on
// the broker are applied to the gateway subscription set.
//
//	Push Gateway -> satpush -> MQTT Broker -> local consumers
//
// # Topics
//
//	satpush/notification/{collection}/{kind}   relayed notifications (QoS from config)
//	satpush/status                             retained online/offline status (LWT)
//	satpush/command/subscribe                  {"collections":[...]}
//	satpush/command/unsubscribe                {"collections":[...]}
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	topic := mqtt.Topics{}.Notification("orders", "doc_set")
//	err = client.PublishDefault(topic, payload)
package mqtt
