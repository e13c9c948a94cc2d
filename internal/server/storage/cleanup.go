package storage

import (
	"context"
	"log/slog"
	"time"
)

// SessionPruner drops editing sessions idle for longer than a duration.
type SessionPruner interface {
	PruneSessions(idle time.Duration) int
}

// CleanupService periodically removes expired exports and idle sessions.
type CleanupService struct {
	store       Store
	sessions    SessionPruner
	exportTTL   time.Duration
	sessionIdle time.Duration
	interval    time.Duration
	done        chan struct{}
}

// NewCleanupService creates a new cleanup service. sessions may be nil.
func NewCleanupService(store Store, sessions SessionPruner, exportTTL, sessionIdle, interval time.Duration) *CleanupService {
	return &CleanupService{
		store:       store,
		sessions:    sessions,
		exportTTL:   exportTTL,
		sessionIdle: sessionIdle,
		interval:    interval,
		done:        make(chan struct{}),
	}
}

// Start begins the cleanup loop in a background goroutine.
func (cs *CleanupService) Start(ctx context.Context) {
	slog.Info("cleanup service started", "interval", cs.interval)

	go func() {
		ticker := time.NewTicker(cs.interval)
		defer ticker.Stop()

		cs.RunOnce(time.Now())

		for {
			select {
			case now := <-ticker.C:
				cs.RunOnce(now)
			case <-ctx.Done():
				slog.Info("cleanup service stopping")
				close(cs.done)
				return
			}
		}
	}()
}

// Wait blocks until the cleanup service has fully stopped.
func (cs *CleanupService) Wait() {
	<-cs.done
}

// RunOnce performs one cleanup cycle as of now.
func (cs *CleanupService) RunOnce(now time.Time) {
	removed, err := cs.store.RemoveOlderThan(now.Add(-cs.exportTTL))
	if err != nil {
		slog.Error("failed to remove expired exports", "error", err)
	}
	for _, id := range removed {
		slog.Info("cleaned up expired export", "export_id", id)
	}

	pruned := 0
	if cs.sessions != nil {
		pruned = cs.sessions.PruneSessions(cs.sessionIdle)
	}

	slog.Info("cleanup cycle complete",
		"exports_removed", len(removed),
		"sessions_pruned", pruned,
	)
}
