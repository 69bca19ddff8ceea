package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the satpush local bus.
const (
	// TopicPrefix is the base for every satpush topic.
	TopicPrefix = "satpush"

	// TopicPrefixNotification is the base for relayed notifications.
	// Scheme: satpush/notification/{collection}/{kind}
	TopicPrefixNotification = TopicPrefix + "/notification"

	// TopicPrefixCommand is the base for commands to the daemon.
	TopicPrefixCommand = TopicPrefix + "/command"
)

// Topics provides builders for satpush MQTT topics.
//
//	topics := mqtt.Topics{}
//	topic := topics.Notification("orders", "doc_set")
//	// Returns: "satpush/notification/orders/doc_set"
type Topics struct{}

// Notification returns the topic a notification is relayed on.
// Collection and kind are passed through TopicSegment.
//
// Example: satpush/notification/orders/doc_set
func (Topics) Notification(collection, kind string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixNotification, TopicSegment(collection), TopicSegment(kind))
}

// CollectionNotifications matches every notification kind of one collection.
//
// Example: satpush/notification/orders/+
func (Topics) CollectionNotifications(collection string) string {
	return fmt.Sprintf("%s/%s/+", TopicPrefixNotification, TopicSegment(collection))
}

// AllNotifications matches every relayed notification.
func (Topics) AllNotifications() string {
	return TopicPrefixNotification + "/#"
}

// Status returns the retained daemon status topic (online/offline and
// gateway connection state).
func (Topics) Status() string {
	return TopicPrefix + "/status"
}

// CommandSubscribe returns the topic that adds gateway subscriptions.
// Payload: {"collections":["orders","users"]}
func (Topics) CommandSubscribe() string {
	return TopicPrefixCommand + "/subscribe"
}

// CommandUnsubscribe returns the topic that removes gateway subscriptions.
// Payload: {"collections":["orders"]}
func (Topics) CommandUnsubscribe() string {
	return TopicPrefixCommand + "/unsubscribe"
}

// AllCommands matches every command topic.
func (Topics) AllCommands() string {
	return TopicPrefixCommand + "/+"
}

// segmentReplacer maps characters that are not allowed inside a single
// MQTT topic level.
var segmentReplacer = strings.NewReplacer("/", "_", "+", "_", "#", "_")

// TopicSegment makes s safe to use as one topic level. An empty s becomes "_".
func TopicSegment(s string) string {
	if s == "" {
		return "_"
	}
	return segmentReplacer.Replace(s)
}
