package journal

import (
	"context"
	"time"
)

// Logger is the logging interface used by the pruner.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Pruner deletes journal rows past their retention on a fixed interval.
type Pruner struct {
	repo      Repository
	retention time.Duration
	interval  time.Duration
	logger    Logger
}

// NewPruner creates a pruner. interval <= 0 means one hour.
func NewPruner(repo Repository, retention, interval time.Duration, logger Logger) *Pruner {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Pruner{repo: repo, retention: retention, interval: interval, logger: logger}
}

// Start runs the pruner on its own goroutine. The returned stop cancels
// it and waits for an in-flight prune to finish, so the repository can
// be closed once stop returns.
func (p *Pruner) Start(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

// Run prunes once immediately and then every interval until ctx is done.
func (p *Pruner) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.pruneOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *Pruner) pruneOnce(ctx context.Context) {
	removed, err := p.repo.Prune(ctx, p.retention)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Warn("journal prune failed", "error", err)
		}
		return
	}
	if removed > 0 {
		p.logger.Info("journal pruned", "rows", removed, "retention", p.retention.String())
	}
}
