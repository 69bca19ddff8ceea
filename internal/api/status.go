package api

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/nerrad567/satpush/internal/audit"
	"github.com/nerrad567/satpush/internal/push"
	"github.com/nerrad567/satpush/internal/relay"
)

// healthCheckTimeout bounds each component probe of the health endpoint.
const healthCheckTimeout = 2 * time.Second

// StatusResponse is the body of GET /api/v1/status.
type StatusResponse struct {
	State         string       `json:"state"`
	ClientKey     string       `json:"client_key"`
	GatewayURL    string       `json:"gateway_url"`
	CanisterID    string       `json:"canister_id"`
	Topics        []string     `json:"topics"`
	Push          push.Stats   `json:"push"`
	Relay         *relay.Stats `json:"relay,omitempty"`
	Version       string       `json:"version"`
	UptimeSeconds int64        `json:"uptime_seconds"`
}

// handleHealth probes every registered component. Any failure turns the
// overall status to "degraded" with 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	components := make(map[string]string, len(s.checks)+1)
	components["gateway"] = s.push.State().String()

	healthy := true
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := s.checks[name].HealthCheck(ctx)
		cancel()
		if err != nil {
			healthy = false
			components[name] = err.Error()
			continue
		}
		components[name] = "ok"
	}

	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status":     status,
		"version":    s.version,
		"components": components,
	})
}

// handleStatus reports the push client state and counters.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	cfg := s.push.Config()
	topics := s.push.Topics()
	if topics == nil {
		topics = []string{}
	}

	resp := StatusResponse{
		State:         s.push.State().String(),
		ClientKey:     s.push.ClientKey(),
		GatewayURL:    cfg.GatewayURL,
		CanisterID:    cfg.CanisterID,
		Topics:        topics,
		Push:          s.push.Stats(),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
	}
	if s.relay != nil {
		stats := s.relay.Stats()
		resp.Relay = &stats
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleConnect asks the push client to connect. The attempt is
// asynchronous, so the body names the request rather than a state;
// poll /status for the outcome.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	s.push.Connect()
	s.logger.Info("connect requested via API")
	s.auditLog(r, audit.ActionConnect, "", nil)
	writeJSON(w, http.StatusAccepted, map[string]string{"requested": "connect"})
}

// handleDisconnect closes the gateway connection and suppresses
// reconnection until the next connect.
func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	s.push.Disconnect()
	s.logger.Info("disconnect requested via API")
	s.auditLog(r, audit.ActionDisconnect, "", nil)
	writeJSON(w, http.StatusAccepted, map[string]string{"requested": "disconnect"})
}
