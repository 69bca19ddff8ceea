package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Values of StatusMessage.Status.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// StatusMessage is the retained payload on Topics.Status. Gateway carries
// the push gateway connection state while the relay is online.
type StatusMessage struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Gateway   string `json:"gateway,omitempty"`
	Timestamp string `json:"timestamp"`
}

// configureLWT registers a retained offline status that the broker
// publishes when the relay vanishes without a clean disconnect.
func configureLWT(opts *pahomqtt.ClientOptions, clientID string) {
	will := statusPayload(StatusMessage{
		Status:   StatusOffline,
		ClientID: clientID,
		Reason:   "unexpected_disconnect",
	})
	opts.SetWill(Topics{}.Status(), will, 1, true)
}

// statusPayload stamps m with the current UTC time and encodes it.
func statusPayload(m StatusMessage) string {
	m.Timestamp = time.Now().UTC().Format(time.RFC3339)
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Sprintf(`{"status":%q}`, m.Status)
	}
	return string(data)
}
