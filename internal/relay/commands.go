package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/satpush/internal/audit"
)

// auditTimeout bounds a single audit write from a bus handler.
const auditTimeout = 2 * time.Second

// Command is the payload of satpush/command/subscribe and
// satpush/command/unsubscribe.
type Command struct {
	Collections []string `json:"collections"`
}

func decodeCommand(payload []byte) ([]string, error) {
	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}

	collections := make([]string, 0, len(cmd.Collections))
	for _, c := range cmd.Collections {
		if c != "" {
			collections = append(collections, c)
		}
	}
	if len(collections) == 0 {
		return nil, ErrNoCollections
	}
	return collections, nil
}

func (r *Relay) handleSubscribeCommand(topic string, payload []byte) error {
	collections, err := decodeCommand(payload)
	if err != nil {
		return err
	}
	added, err := r.Add(collections...)
	if err != nil {
		return err
	}
	r.logger.Debug("bus subscribe command applied", "topic", topic, "added", added)
	r.recordCommand(audit.ActionSubscribe, topic, added)
	return nil
}

func (r *Relay) handleUnsubscribeCommand(topic string, payload []byte) error {
	collections, err := decodeCommand(payload)
	if err != nil {
		return err
	}
	removed, err := r.Remove(collections...)
	if err != nil {
		return err
	}
	r.logger.Debug("bus unsubscribe command applied", "topic", topic, "removed", removed)
	r.recordCommand(audit.ActionUnsubscribe, topic, removed)
	return nil
}

// recordCommand writes one audit entry per changed collection.
func (r *Relay) recordCommand(action, topic string, collections []string) {
	if r.audit == nil {
		return
	}
	for _, c := range collections {
		ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
		err := r.audit.Create(ctx, &audit.Entry{
			Action:     action,
			Collection: c,
			Source:     audit.SourceMQTT,
			Details:    map[string]any{"topic": topic},
		})
		cancel()
		if err != nil {
			r.logger.Warn("audit write failed", "action", action, "collection", c, "error", err)
		}
	}
}
