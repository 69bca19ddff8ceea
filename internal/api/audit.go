package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/satpush/internal/audit"
)

const (
	// auditChanSize bounds entries waiting for the writer; overflow is dropped.
	auditChanSize = 256

	auditWriteTimeout = 2 * time.Second
)

// auditLog queues a control action for drainAuditLog without blocking the
// request. A full queue drops the entry with a warning. The bearer token
// subject, when there is one, is recorded under details["subject"].
func (s *Server) auditLog(r *http.Request, action, collection string, details map[string]any) {
	if s.auditRepo == nil || s.auditCh == nil {
		return
	}
	if sub := tokenSubject(r); sub != "" {
		if details == nil {
			details = make(map[string]any, 1)
		}
		details["subject"] = sub
	}

	entry := &audit.Entry{
		Action:     action,
		Collection: collection,
		Source:     audit.SourceAPI,
		RequestID:  requestID(r),
		Details:    details,
	}

	select {
	case s.auditCh <- entry:
	default:
		s.logger.Warn("audit channel full, dropping entry",
			"action", action,
			"collection", collection,
		)
	}
}

// drainAuditLog writes queued entries serially until ctx is cancelled,
// then flushes whatever is still buffered.
func (s *Server) drainAuditLog(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case entry := <-s.auditCh:
			s.writeAudit(entry)
		case <-ctx.Done():
			for {
				select {
				case entry := <-s.auditCh:
					s.writeAudit(entry)
				default:
					return
				}
			}
		}
	}
}

func (s *Server) writeAudit(entry *audit.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
	defer cancel()
	if err := s.auditRepo.Create(ctx, entry); err != nil {
		s.logger.Error("audit write failed",
			"action", entry.Action,
			"collection", entry.Collection,
			"error", err,
		)
	}
}

// handleListAudit returns paginated audit entries with optional filters.
//
// Query parameters:
//   - action: connect, disconnect, subscribe or unsubscribe
//   - collection: filter by collection name
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeUnavailable(w, "audit logging is disabled")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:     q.Get("action"),
		Collection: q.Get("collection"),
	}

	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, name+" must be a non-negative integer")
			return
		}
		*dst = n
	}

	result, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing audit entries failed", "error", err)
		writeInternalError(w, "listing audit entries failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
