package sweeper

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commercekit/double-optin/pkg/account"
	"github.com/commercekit/double-optin/pkg/checkout"
	"github.com/commercekit/double-optin/pkg/config"
	"github.com/commercekit/double-optin/pkg/events"
	"github.com/commercekit/double-optin/pkg/ratelimit"
	"github.com/commercekit/double-optin/pkg/verification"
)

type sweeperFixture struct {
	sweeper  *Sweeper
	verifier *verification.Service
	accounts *account.Service
	pending  *checkout.PendingCheckoutStore
	clock    *time.Time
}

func setupSweeperFixture(t *testing.T, cfg config.VerificationConfig) *sweeperFixture {
	tempDir := filepath.Join(os.TempDir(), "sweeper-test-"+uuid.New().String())
	require.NoError(t, os.MkdirAll(tempDir, 0755))
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	tokenRepo, err := verification.NewFileTokenRepository(filepath.Join(tempDir, "tokens"))
	require.NoError(t, err)
	accountRepo, err := account.NewFileAccountRepository(filepath.Join(tempDir, "accounts"))
	require.NoError(t, err)

	accounts := account.NewService(accountRepo)
	bus := events.NewBus()
	limiter := ratelimit.NewResendLimiter(cfg.ResendMinInterval(), cfg.ResendMaxPerHour, 0)

	// Accounts stamp RegisteredAt with real time, so the test clock
	// starts at real now and moves forward from there.
	now := time.Now().UTC()
	f := &sweeperFixture{
		accounts: accounts,
		clock:    &now,
	}

	f.verifier = verification.NewService(tokenRepo, accounts, nil, bus, limiter, cfg, config.SiteConfig{},
		verification.WithClock(func() time.Time { return *f.clock }))

	f.pending = checkout.NewPendingCheckoutStore(time.Hour)
	f.pending.SetClock(func() time.Time { return *f.clock })

	f.sweeper = New(f.verifier, accounts, f.pending, cfg,
		WithClock(func() time.Time { return *f.clock }))

	return f
}

func retentionConfig(days int) config.VerificationConfig {
	return config.VerificationConfig{
		Method:                    config.MethodLink,
		LinkExpiryHours:           24,
		OTPLength:                 6,
		OTPCharset:                "alphanumeric",
		OTPExpiryMinutes:          5,
		OTPMaxAttempts:            5,
		ResendMinIntervalSeconds:  60,
		ResendMaxPerHour:          5,
		DeleteUnverifiedAfterDays: days,
	}
}

func TestSweepTokensAndRecords(t *testing.T) {
	f := setupSweeperFixture(t, retentionConfig(0))
	ctx := context.Background()

	stale, err := f.accounts.Create(ctx, account.CreateParams{Email: "stale@example.com", Password: "pw"})
	require.NoError(t, err)
	_, err = f.verifier.RequestVerification(ctx, stale.ID, stale.Email, "", verification.TypeAccount)
	require.NoError(t, err)

	done, err := f.accounts.Create(ctx, account.CreateParams{Email: "done@example.com", Password: "pw"})
	require.NoError(t, err)
	vt, err := f.verifier.RequestVerification(ctx, done.ID, done.Email, "", verification.TypeAccount)
	require.NoError(t, err)
	_, err = f.verifier.VerifyToken(ctx, vt.Token)
	require.NoError(t, err)

	f.pending.Put("guest@example.com", "sometoken")

	*f.clock = f.clock.Add(25 * time.Hour)

	report, err := f.sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.TokensDeleted, "only the expired unredeemed token")
	assert.Equal(t, 1, report.RecordsPruned)
	assert.Equal(t, 0, report.AccountsDeleted, "retention disabled keeps accounts")

	// Redeemed token survives as audit trail
	result, err := f.verifier.VerifyToken(ctx, vt.Token)
	require.NoError(t, err)
	assert.True(t, result.AlreadyVerified)

	// Unverified accounts stay when retention is off
	_, err = f.accounts.GetByID(ctx, stale.ID)
	assert.NoError(t, err)
}

func TestSweepStaleAccounts(t *testing.T) {
	f := setupSweeperFixture(t, retentionConfig(7))
	ctx := context.Background()

	stale, err := f.accounts.Create(ctx, account.CreateParams{Email: "stale@example.com", Password: "pw"})
	require.NoError(t, err)

	admin, err := f.accounts.Create(ctx, account.CreateParams{Email: "admin@example.com", Password: "pw", Admin: true})
	require.NoError(t, err)

	verified, err := f.accounts.Create(ctx, account.CreateParams{Email: "ok@example.com", Password: "pw"})
	require.NoError(t, err)
	require.NoError(t, f.accounts.MarkVerified(ctx, verified.ID, verified.Email))

	*f.clock = f.clock.Add(8 * 24 * time.Hour)

	report, err := f.sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.AccountsDeleted)

	_, err = f.accounts.GetByID(ctx, stale.ID)
	assert.ErrorIs(t, err, account.ErrAccountNotFound)

	_, err = f.accounts.GetByID(ctx, admin.ID)
	assert.NoError(t, err, "admins are never swept")

	_, err = f.accounts.GetByID(ctx, verified.ID)
	assert.NoError(t, err, "verified accounts are never swept")
}

func TestSweepInsideRetentionWindow(t *testing.T) {
	f := setupSweeperFixture(t, retentionConfig(7))
	ctx := context.Background()

	fresh, err := f.accounts.Create(ctx, account.CreateParams{Email: "fresh@example.com", Password: "pw"})
	require.NoError(t, err)

	*f.clock = f.clock.Add(3 * 24 * time.Hour)

	report, err := f.sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.AccountsDeleted)

	_, err = f.accounts.GetByID(ctx, fresh.ID)
	assert.NoError(t, err)
}
