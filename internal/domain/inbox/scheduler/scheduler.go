package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// InboxSyncer defines the interface for syncing an account's conversations
type InboxSyncer interface {
	SyncConversations(ctx context.Context, accountID, apiToken string) error
}

// AccountProvider supplies the accounts to sync and their credentials
type AccountProvider interface {
	GetAPIToken(ctx context.Context, accountID string) (string, error)
	ListAccountIDs(ctx context.Context) ([]string, error)
}

// Scheduler handles periodic synchronization of conversations from the CRM
type Scheduler struct {
	syncer   InboxSyncer
	accounts AccountProvider
	interval time.Duration
	logger   *slog.Logger
	stopCh   chan struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	running  bool
	mu       sync.Mutex
}

// New creates a new inbox sync scheduler
func New(syncer InboxSyncer, accounts AccountProvider, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval == 0 {
		interval = 10 * time.Minute
	}
	return &Scheduler{
		syncer:   syncer,
		accounts: accounts,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true

	// Create a cancellable context for in-flight operations
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.logger.Info("inbox sync scheduler started", "interval", s.interval)

	s.wg.Add(1)
	go s.run(ctx)
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	// Cancel in-flight HTTP requests
	if cancel != nil {
		cancel()
	}

	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("inbox sync scheduler stopped")
}

// run is the main scheduler loop
func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run after a short delay on start (to let the app initialize)
	select {
	case <-time.After(15 * time.Second):
		s.process(ctx)
	case <-s.stopCh:
		return
	case <-ctx.Done():
		return
	}

	for {
		select {
		case <-ticker.C:
			s.process(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// process syncs conversations for every configured account
func (s *Scheduler) process(ctx context.Context) {
	accountIDs, err := s.accounts.ListAccountIDs(ctx)
	if err != nil {
		s.logger.Error("failed to list accounts", "error", err)
		return
	}
	if len(accountIDs) == 0 {
		s.logger.Debug("no accounts configured for sync")
		return
	}

	s.logger.Info("syncing conversations for accounts", "count", len(accountIDs))

	for _, accountID := range accountIDs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := s.syncAccount(ctx, accountID); err != nil {
			s.logger.Error("failed to sync conversations", "account_id", accountID, "error", err)
			continue
		}
		s.logger.Debug("synced conversations", "account_id", accountID)
	}
}

// syncAccount syncs conversations for a single account
func (s *Scheduler) syncAccount(ctx context.Context, accountID string) error {
	token, err := s.accounts.GetAPIToken(ctx, accountID)
	if err != nil {
		return err
	}
	return s.syncer.SyncConversations(ctx, accountID, token)
}
