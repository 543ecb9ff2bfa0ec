package cleanup

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper removes staged files older than a given age
type Sweeper interface {
	Sweep(olderThan time.Duration) (int, error)
}

// Cleaner periodically reclaims disk space from staged quote documents whose
// sessions expired without ever being submitted
type Cleaner struct {
	staging   Sweeper
	interval  time.Duration
	retention time.Duration
}

// NewCleaner creates a new cleanup worker
func NewCleaner(staging Sweeper, interval, retention time.Duration) *Cleaner {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if retention <= 0 {
		retention = 48 * time.Hour
	}

	return &Cleaner{
		staging:   staging,
		interval:  interval,
		retention: retention,
	}
}

// Start begins the cleanup worker in a goroutine
func (c *Cleaner) Start(ctx context.Context) {
	go c.run(ctx)
}

// run is the main loop for the cleanup worker
func (c *Cleaner) run(ctx context.Context) {
	slog.Info("cleanup worker started", "interval", c.interval, "retention", c.retention)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// Run immediately on start
	c.cleanup()

	for {
		select {
		case <-ctx.Done():
			slog.Info("cleanup worker stopped")
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

// cleanup removes staged files past the retention window
func (c *Cleaner) cleanup() {
	slog.Debug("running cleanup cycle")

	removed, err := c.staging.Sweep(c.retention)
	if err != nil {
		slog.Error("failed to sweep staging area", "error", err)
		return
	}

	if removed == 0 {
		slog.Debug("no stale staged files found")
		return
	}

	slog.Info("removed stale staged files", "count", removed)
}
