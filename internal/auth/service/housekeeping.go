package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/authflow/internal/auth/store"
)

// HousekeepingService periodically cleans up expired database records to
// prevent unbounded growth of token families and token hash mappings.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration
	Now      func() time.Time

	// Internal channels for lifecycle management
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a housekeeping service. A non-positive
// interval defaults to one hour.
func NewHousekeepingService(store store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = time.Hour
	}

	return &HousekeepingService{
		Store:    store,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker that periodically runs cleanup.
// This is non-blocking and should be called after the database is ready.
// Call Stop() to gracefully shutdown the worker.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop gracefully shuts down the background worker.
// Blocks until the worker has finished any in-progress cleanup.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

// run is the main background worker loop.
func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run cleanup immediately on startup
	s.Cleanup(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup performs one sweep. Each deletion is independent, a failure in one
// won't stop the other.
func (s *HousekeepingService) Cleanup(ctx context.Context) {
	now := nowOrDefault(s.Now)

	// Clean token families whose every member has expired
	tokens, err := s.Store.Tokens().DeleteExpiredTokens(ctx, now)
	if err != nil {
		s.Logger.Error("failed to delete expired tokens", "error", err)
	}

	// Clean hash mappings of links that can no longer be redeemed
	hashes, err := s.Store.TokenHashes().DeleteExpiredTokenHashes(ctx, now)
	if err != nil {
		s.Logger.Error("failed to delete expired token hashes", "error", err)
	}

	s.Logger.Info("housekeeping cleanup completed",
		"deleted_tokens", tokens,
		"deleted_token_hashes", hashes,
	)
}
