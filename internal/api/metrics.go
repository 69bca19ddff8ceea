package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/satpush/internal/push"
	"github.com/nerrad567/satpush/internal/relay"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	Gateway       GatewayMetrics `json:"gateway"`
	Relay         *relay.Stats   `json:"relay,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// GatewayMetrics contains push client statistics.
type GatewayMetrics struct {
	State  string     `json:"state"`
	Topics int        `json:"topics"`
	Stats  push.Stats `json:"stats"`
}

// handleMetrics returns runtime, gateway and relay metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Gateway: GatewayMetrics{
			State:  s.push.State().String(),
			Topics: len(s.push.Topics()),
			Stats:  s.push.Stats(),
		},
	}

	if s.relay != nil {
		stats := s.relay.Stats()
		metrics.Relay = &stats
	}

	writeJSON(w, http.StatusOK, metrics)
}
