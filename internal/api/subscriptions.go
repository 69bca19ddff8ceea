package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/satpush/internal/audit"
	"github.com/nerrad567/satpush/internal/relay"
)

// SubscriptionRequest is the body of POST /api/v1/subscriptions.
type SubscriptionRequest struct {
	Collections []string `json:"collections"`
}

// handleListSubscriptions lists the relayed collections and every topic
// the push client currently holds a listener for.
func (s *Server) handleListSubscriptions(w http.ResponseWriter, _ *http.Request) {
	if s.relay == nil {
		writeUnavailable(w, "relay is not running")
		return
	}

	topics := s.push.Topics()
	if topics == nil {
		topics = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"collections": s.relay.Collections(),
		"topics":      topics,
	})
}

// handleAddSubscriptions subscribes to the requested collections.
// Collections that are already relayed are left alone.
func (s *Server) handleAddSubscriptions(w http.ResponseWriter, r *http.Request) {
	if s.relay == nil {
		writeUnavailable(w, "relay is not running")
		return
	}

	var req SubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	collections := make([]string, 0, len(req.Collections))
	for _, c := range req.Collections {
		if c = strings.TrimSpace(c); c != "" {
			collections = append(collections, c)
		}
	}
	if len(collections) == 0 {
		writeBadRequest(w, "collections must name at least one collection")
		return
	}

	added, err := s.relay.Add(collections...)
	if err != nil {
		if errors.Is(err, relay.ErrNotStarted) {
			writeUnavailable(w, "relay is not running")
			return
		}
		s.logger.Error("adding subscriptions failed", "collections", collections, "error", err)
		writeInternalError(w, "adding subscriptions failed")
		return
	}
	if added == nil {
		added = []string{}
	}
	for _, c := range added {
		s.auditLog(r, audit.ActionSubscribe, c, nil)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"added":       added,
		"collections": s.relay.Collections(),
	})
}

// handleRemoveSubscription unsubscribes one relayed collection.
func (s *Server) handleRemoveSubscription(w http.ResponseWriter, r *http.Request) {
	if s.relay == nil {
		writeUnavailable(w, "relay is not running")
		return
	}

	collection := chi.URLParam(r, "collection")
	removed, err := s.relay.Remove(collection)
	if err != nil {
		if errors.Is(err, relay.ErrNotStarted) {
			writeUnavailable(w, "relay is not running")
			return
		}
		writeInternalError(w, "removing subscription failed")
		return
	}
	if len(removed) == 0 {
		writeNotFound(w, "collection is not subscribed")
		return
	}
	for _, c := range removed {
		s.auditLog(r, audit.ActionUnsubscribe, c, nil)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"removed":     removed,
		"collections": s.relay.Collections(),
	})
}
