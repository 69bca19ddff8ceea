package mqtt

import "fmt"

// maxPayloadSize caps a single bus message at the push gateway's inbound
// frame limit.
const maxPayloadSize = 1 << 20

// Publish writes payload to topic and waits for the broker ack.
//
// The topic must be concrete (no + or #). A nil error means the broker
// accepted the message at the requested QoS.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := checkTopic(topic, false); err != nil {
		return err
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if n := len(payload); n > maxPayloadSize {
		return fmt.Errorf("%w: %d byte payload over the %d byte limit", ErrPublishFailed, n, maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return await(c.client.Publish(topic, qos, retained, payload), ErrPublishFailed)
}

// PublishDefault publishes at the configured QoS without the retain flag.
// Notifications are one-shot events and are never retained.
func (c *Client) PublishDefault(topic string, payload []byte) error {
	return c.Publish(topic, payload, byte(c.cfg.QoS), false)
}
