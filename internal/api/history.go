package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/satpush/internal/journal"
)

// parseLimit reads the optional limit query parameter. Out-of-range values
// are clamped by the journal.
func parseLimit(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, false
	}
	return limit, true
}

// handleListNotifications returns journaled notifications, newest first.
// Query: collection (optional), limit (default 50, max 200).
func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeUnavailable(w, "journal is disabled")
		return
	}

	limit, ok := parseLimit(r)
	if !ok {
		writeBadRequest(w, "limit must be a non-negative integer")
		return
	}

	entries, err := s.journal.Recent(r.Context(), r.URL.Query().Get("collection"), limit)
	if err != nil {
		s.logger.Error("reading notification journal failed", "error", err)
		writeInternalError(w, "reading journal failed")
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"notifications": entries,
		"count":         len(entries),
	})
}

// handleListConnections returns journaled lifecycle events, newest first.
func (s *Server) handleListConnections(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeUnavailable(w, "journal is disabled")
		return
	}

	limit, ok := parseLimit(r)
	if !ok {
		writeBadRequest(w, "limit must be a non-negative integer")
		return
	}

	entries, err := s.journal.Connections(r.Context(), limit)
	if err != nil {
		s.logger.Error("reading connection journal failed", "error", err)
		writeInternalError(w, "reading journal failed")
		return
	}
	if entries == nil {
		entries = []journal.ConnectionEntry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"connections": entries,
		"count":       len(entries),
	})
}
