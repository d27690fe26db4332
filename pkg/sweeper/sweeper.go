// Package sweeper runs the periodic cleanup pass: expired unredeemed
// verification tokens, stale guest pending-checkout records and,
// when retention is configured, unverified accounts past their window.
package sweeper

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/commercekit/double-optin/pkg/account"
	"github.com/commercekit/double-optin/pkg/checkout"
	"github.com/commercekit/double-optin/pkg/config"
	"github.com/commercekit/double-optin/pkg/verification"
)

// DefaultInterval is how often the sweeper runs.
const DefaultInterval = 24 * time.Hour

// Report summarizes one sweep pass.
type Report struct {
	TokensDeleted   int64
	AccountsDeleted int
	RecordsPruned   int
}

// Sweeper owns the cleanup schedule. Runs never overlap: a pass that is
// still going when the ticker fires again makes the new pass a no-op.
type Sweeper struct {
	verifier *verification.Service
	accounts *account.Service
	pending  *checkout.PendingCheckoutStore
	cfg      config.VerificationConfig
	interval time.Duration
	now      func() time.Time
	running  sync.Mutex
}

// Option defines configuration options
type Option func(*Sweeper)

// WithInterval overrides the sweep interval.
func WithInterval(interval time.Duration) Option {
	return func(s *Sweeper) {
		s.interval = interval
	}
}

// WithClock overrides the sweeper time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		s.now = now
	}
}

// New creates a sweeper.
func New(
	verifier *verification.Service,
	accounts *account.Service,
	pending *checkout.PendingCheckoutStore,
	cfg config.VerificationConfig,
	opts ...Option,
) *Sweeper {
	s := &Sweeper{
		verifier: verifier,
		accounts: accounts,
		pending:  pending,
		cfg:      cfg,
		interval: DefaultInterval,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Run sweeps on the configured interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("Sweeper started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("Sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				slog.Error("Sweep failed", "error", err)
			}
		}
	}
}

// SweepOnce runs a single cleanup pass and reports what it removed.
// Redeemed tokens and verified accounts are never touched.
func (s *Sweeper) SweepOnce(ctx context.Context) (Report, error) {
	if !s.running.TryLock() {
		slog.Warn("Sweep already in progress, skipping")
		return Report{}, nil
	}
	defer s.running.Unlock()

	var report Report

	deleted, err := s.verifier.CleanupExpired(ctx)
	if err != nil {
		return report, err
	}
	report.TokensDeleted = deleted

	report.RecordsPruned = s.pending.Prune()

	if s.cfg.DeleteUnverifiedAfterDays > 0 {
		removed, err := s.sweepStaleAccounts(ctx)
		if err != nil {
			return report, err
		}
		report.AccountsDeleted = removed
	}

	slog.Info("Sweep complete",
		"tokens_deleted", report.TokensDeleted,
		"accounts_deleted", report.AccountsDeleted,
		"records_pruned", report.RecordsPruned,
	)
	return report, nil
}

// sweepStaleAccounts deletes unverified non-admin accounts whose
// registration is older than the retention window.
func (s *Sweeper) sweepStaleAccounts(ctx context.Context) (int, error) {
	cutoff := s.now().UTC().AddDate(0, 0, -s.cfg.DeleteUnverifiedAfterDays)
	stale, err := s.accounts.ListStalePending(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, acct := range stale {
		if err := s.accounts.Delete(ctx, acct.ID); err != nil {
			slog.Error("Failed to delete stale account", "account_id", acct.ID, "error", err)
			continue
		}
		slog.Info("Stale unverified account deleted", "account_id", acct.ID, "registered_at", acct.RegisteredAt)
		removed++
	}
	return removed, nil
}
