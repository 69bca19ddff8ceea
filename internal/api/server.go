package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/nerrad567/satpush/internal/audit"
	"github.com/nerrad567/satpush/internal/infrastructure/config"
	"github.com/nerrad567/satpush/internal/infrastructure/logging"
	"github.com/nerrad567/satpush/internal/journal"
	"github.com/nerrad567/satpush/internal/push"
	"github.com/nerrad567/satpush/internal/relay"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// PushClient is the part of *push.Client the API reads and controls.
type PushClient interface {
	ClientKey() string
	Config() push.ClientConfig
	State() push.ConnectionState
	Topics() []string
	Stats() push.Stats
	Connect()
	Disconnect()
}

// SubscriptionManager owns the relayed collections. Satisfied by *relay.Relay.
type SubscriptionManager interface {
	Add(collections ...string) ([]string, error)
	Remove(collections ...string) ([]string, error)
	Collections() []string
	Stats() relay.Stats
}

// History serves journaled notifications and lifecycle events.
// Satisfied by journal.Repository.
type History interface {
	Recent(ctx context.Context, collection string, limit int) ([]journal.Entry, error)
	Connections(ctx context.Context, limit int) ([]journal.ConnectionEntry, error)
}

// HealthChecker is any component with an active health probe.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	Logger  *logging.Logger
	Push    PushClient
	Relay   SubscriptionManager // optional
	Journal History             // optional
	Audit   audit.Repository    // optional

	// Checks are probed by the health endpoint, keyed by component name.
	Checks map[string]HealthChecker

	Version string
}

// Server is the HTTP API server for satpush.
//
// It manages the HTTP listener, routes and middleware.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	push      PushClient
	relay     SubscriptionManager
	journal   History
	checks    map[string]HealthChecker
	version   string
	startTime time.Time
	limiter   *rate.Limiter

	auditRepo audit.Repository
	auditCh   chan *audit.Entry

	mu        sync.Mutex
	server    *http.Server
	listener  net.Listener
	stopAudit context.CancelFunc
	auditDone chan struct{}
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Push == nil {
		return nil, fmt.Errorf("push client is required")
	}

	s := &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		push:      deps.Push,
		relay:     deps.Relay,
		journal:   deps.Journal,
		checks:    deps.Checks,
		version:   deps.Version,
		startTime: time.Now(),
		auditRepo: deps.Audit,
	}
	if deps.Audit != nil {
		s.auditCh = make(chan *audit.Entry, auditChanSize)
	}

	if rl := deps.Config.RateLimit; rl.Enabled && rl.RequestsPerMinute > 0 {
		burst := rl.Burst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(float64(rl.RequestsPerMinute)/60), burst)
	}

	return s, nil
}

// Start binds the listener and serves HTTP in a background goroutine.
// The bind happens before Start returns, so a port in use is reported here.
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the listener cannot be bound
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return fmt.Errorf("api server already started")
	}

	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("binding API listener on %s: %w", addr, err)
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	if s.auditCh != nil {
		auditCtx, cancel := context.WithCancel(context.Background())
		s.stopAudit = cancel
		s.auditDone = make(chan struct{})
		go s.drainAuditLog(auditCtx, s.auditDone)
	}

	srv := s.server
	s.logger.Info("API server starting", "address", ln.Addr().String())
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections. Queued audit entries
// are flushed before Close returns.
func (s *Server) Close() error {
	s.mu.Lock()
	srv := s.server
	stopAudit, auditDone := s.stopAudit, s.auditDone
	s.stopAudit = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	err := srv.Shutdown(ctx)

	if stopAudit != nil {
		stopAudit()
		<-auditDone
	}

	if err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
