package verification

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commercekit/double-optin/pkg/account"
	"github.com/commercekit/double-optin/pkg/config"
	"github.com/commercekit/double-optin/pkg/events"
	"github.com/commercekit/double-optin/pkg/notice"
	"github.com/commercekit/double-optin/pkg/notification"
	"github.com/commercekit/double-optin/pkg/ratelimit"
)

type serviceFixture struct {
	svc      *Service
	accounts *account.Service
	repo     TokenRepository
	mock     *notification.MockNotifier
	bus      *events.Bus
	clock    *time.Time
}

func defaultTestConfig() config.VerificationConfig {
	return config.VerificationConfig{
		Method:                   config.MethodLink,
		LinkExpiryHours:          24,
		OTPLength:                6,
		OTPCharset:               "alphanumeric",
		OTPExpiryMinutes:         5,
		OTPMaxAttempts:           5,
		ResendMinIntervalSeconds: 60,
		ResendMaxPerHour:         5,
	}
}

func setupFixture(t *testing.T, cfg config.VerificationConfig) *serviceFixture {
	tempDir := filepath.Join(os.TempDir(), "verification-test-"+uuid.New().String())
	require.NoError(t, os.MkdirAll(tempDir, 0755))
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	tokenRepo, err := NewFileTokenRepository(filepath.Join(tempDir, "tokens"))
	require.NoError(t, err)

	accountRepo, err := account.NewFileAccountRepository(filepath.Join(tempDir, "accounts"))
	require.NoError(t, err)
	accounts := account.NewService(accountRepo)

	mock := &notification.MockNotifier{}
	nm := notification.NewNotificationManager()
	nm.RegisterNotifier(notification.EmailSystem, mock)
	require.NoError(t, notice.RegisterTemplates(nm))

	bus := events.NewBus()
	limiter := ratelimit.NewResendLimiter(cfg.ResendMinInterval(), cfg.ResendMaxPerHour, 0)

	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	fixture := &serviceFixture{
		accounts: accounts,
		repo:     tokenRepo,
		mock:     mock,
		bus:      bus,
		clock:    &now,
	}
	limiter.SetClock(func() time.Time { return *fixture.clock })
	fixture.svc = NewService(tokenRepo, accounts, nm, bus, limiter, cfg, config.SiteConfig{
		BaseURL:  "https://shop.example.com",
		SiteName: "Example Store",
	}, WithClock(func() time.Time { return *fixture.clock }))

	return fixture
}

func (f *serviceFixture) advance(d time.Duration) {
	*f.clock = f.clock.Add(d)
}

func (f *serviceFixture) createAccount(t *testing.T, email string) *account.Account {
	acct, err := f.accounts.Create(context.Background(), account.CreateParams{
		Email:    email,
		Username: "shopper",
		Password: "pw123456",
	})
	require.NoError(t, err)
	return acct
}

func TestRequestVerificationLink(t *testing.T) {
	f := setupFixture(t, defaultTestConfig())
	ctx := context.Background()

	acct := f.createAccount(t, "link@example.com")
	vt, err := f.svc.RequestVerification(ctx, acct.ID, acct.Email, acct.Username, TypeAccount)
	require.NoError(t, err)

	assert.Regexp(t, "^[a-f0-9]{64}$", vt.Token)
	assert.Empty(t, vt.OTPCode, "link mode issues no code")
	assert.Equal(t, 24*time.Hour, vt.ExpiresAt.Sub(*f.clock))

	require.Len(t, f.mock.SentNotifications, 1)
	sent := f.mock.Last()
	assert.Equal(t, "link@example.com", sent.To)
	assert.Contains(t, sent.Data["VerificationURL"], vt.Token)
}

func TestRequestVerificationReplacesPrior(t *testing.T) {
	f := setupFixture(t, defaultTestConfig())
	ctx := context.Background()

	acct := f.createAccount(t, "replace@example.com")
	first, err := f.svc.RequestVerification(ctx, acct.ID, acct.Email, "", TypeAccount)
	require.NoError(t, err)
	second, err := f.svc.RequestVerification(ctx, acct.ID, acct.Email, "", TypeAccount)
	require.NoError(t, err)

	_, err = f.svc.VerifyToken(ctx, first.Token)
	assert.ErrorIs(t, err, ErrTokenNotFound, "superseded token is gone")

	result, err := f.svc.VerifyToken(ctx, second.Token)
	require.NoError(t, err)
	assert.False(t, result.AlreadyVerified)
}

func TestVerifyToken(t *testing.T) {
	f := setupFixture(t, defaultTestConfig())
	ctx := context.Background()

	acct := f.createAccount(t, "verify@example.com")
	vt, err := f.svc.RequestVerification(ctx, acct.ID, acct.Email, "", TypeAccount)
	require.NoError(t, err)

	var published []events.VerifiedEvent
	f.bus.Subscribe(func(e events.VerifiedEvent) {
		published = append(published, e)
	})

	t.Run("InvalidFormat", func(t *testing.T) {
		_, err := f.svc.VerifyToken(ctx, "not-a-token")
		assert.ErrorIs(t, err, ErrInvalidFormat)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := f.svc.VerifyToken(ctx, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
		assert.ErrorIs(t, err, ErrTokenNotFound)
	})

	t.Run("Success", func(t *testing.T) {
		result, err := f.svc.VerifyToken(ctx, vt.Token)
		require.NoError(t, err)
		assert.Equal(t, acct.ID, result.OwnerID)
		assert.False(t, result.AlreadyVerified)

		fetched, err := f.accounts.GetByID(ctx, acct.ID)
		require.NoError(t, err)
		assert.True(t, fetched.EmailVerified)
		assert.False(t, fetched.VerificationPending)
		assert.Equal(t, acct.Email, fetched.LastVerifiedEmail)

		require.Len(t, published, 1)
		assert.Equal(t, events.VerifiedEvent{OwnerID: acct.ID, Email: acct.Email, Type: TypeAccount}, published[0])
	})

	t.Run("SecondVisitIsSuccess", func(t *testing.T) {
		result, err := f.svc.VerifyToken(ctx, vt.Token)
		require.NoError(t, err)
		assert.True(t, result.AlreadyVerified)
		assert.Len(t, published, 1, "no second event for a re-visit")
	})
}

func TestVerifyTokenExpired(t *testing.T) {
	f := setupFixture(t, defaultTestConfig())
	ctx := context.Background()

	acct := f.createAccount(t, "expired@example.com")
	vt, err := f.svc.RequestVerification(ctx, acct.ID, acct.Email, "", TypeAccount)
	require.NoError(t, err)

	f.advance(24*time.Hour + time.Second)
	_, err = f.svc.VerifyToken(ctx, vt.Token)
	assert.ErrorIs(t, err, ErrExpired)
}

func otpConfig() config.VerificationConfig {
	cfg := defaultTestConfig()
	cfg.Method = config.MethodOTP
	return cfg
}

func TestVerifyOTP(t *testing.T) {
	f := setupFixture(t, otpConfig())
	ctx := context.Background()

	acct := f.createAccount(t, "otp@example.com")
	vt, err := f.svc.RequestVerification(ctx, acct.ID, acct.Email, "", TypeAccount)
	require.NoError(t, err)
	require.Len(t, vt.OTPCode, 6)
	assert.Equal(t, 5*time.Minute, vt.ExpiresAt.Sub(*f.clock))

	sent := f.mock.Last()
	assert.Equal(t, vt.OTPCode, sent.Data["OTPCode"])

	t.Run("BadFormat", func(t *testing.T) {
		_, err := f.svc.VerifyOTP(ctx, acct.Email, "!!")
		assert.ErrorIs(t, err, ErrInvalidFormat)
	})

	t.Run("NoPending", func(t *testing.T) {
		_, err := f.svc.VerifyOTP(ctx, "stranger@example.com", "AAAAAA")
		assert.ErrorIs(t, err, ErrNoPendingVerification)
	})

	t.Run("LowercaseInputAccepted", func(t *testing.T) {
		result, err := f.svc.VerifyOTP(ctx, acct.Email, "  "+strings.ToLower(vt.OTPCode)+" ")
		require.NoError(t, err)
		assert.Equal(t, acct.ID, result.OwnerID)

		fetched, err := f.accounts.GetByID(ctx, acct.ID)
		require.NoError(t, err)
		assert.True(t, fetched.EmailVerified)
	})
}

func TestVerifyOTPAttemptCeiling(t *testing.T) {
	cfg := otpConfig()
	f := setupFixture(t, cfg)
	ctx := context.Background()

	acct := f.createAccount(t, "attempts@example.com")
	vt, err := f.svc.RequestVerification(ctx, acct.ID, acct.Email, "", TypeAccount)
	require.NoError(t, err)

	wrong := "AAAAAA"
	if vt.OTPCode == wrong {
		wrong = "BBBBBB"
	}

	for i := 1; i < cfg.OTPMaxAttempts; i++ {
		_, err := f.svc.VerifyOTP(ctx, acct.Email, wrong)
		var incorrect *IncorrectCodeError
		require.ErrorAs(t, err, &incorrect)
		assert.Equal(t, cfg.OTPMaxAttempts-i, incorrect.Remaining)
		assert.ErrorIs(t, err, ErrIncorrectCode)
	}

	// Final attempt exhausts the ceiling
	_, err = f.svc.VerifyOTP(ctx, acct.Email, wrong)
	assert.ErrorIs(t, err, ErrMaxAttempts)

	// Even the right code is refused once locked out
	_, err = f.svc.VerifyOTP(ctx, acct.Email, vt.OTPCode)
	assert.ErrorIs(t, err, ErrMaxAttempts)
}

func TestVerifyOTPExpired(t *testing.T) {
	f := setupFixture(t, otpConfig())
	ctx := context.Background()

	acct := f.createAccount(t, "otp-expired@example.com")
	vt, err := f.svc.RequestVerification(ctx, acct.ID, acct.Email, "", TypeAccount)
	require.NoError(t, err)

	f.advance(5*time.Minute + time.Second)
	_, err = f.svc.VerifyOTP(ctx, acct.Email, vt.OTPCode)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestResend(t *testing.T) {
	f := setupFixture(t, defaultTestConfig())
	ctx := context.Background()

	acct := f.createAccount(t, "resend@example.com")

	require.NoError(t, f.svc.Resend(ctx, acct.ID))
	assert.Len(t, f.mock.SentNotifications, 1)

	// Immediate retry is inside the minimum interval
	err := f.svc.Resend(ctx, acct.ID)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Len(t, f.mock.SentNotifications, 1)

	f.advance(61 * time.Second)
	require.NoError(t, f.svc.Resend(ctx, acct.ID))
	assert.Len(t, f.mock.SentNotifications, 2)
}

func TestResendVerifiedAccount(t *testing.T) {
	f := setupFixture(t, defaultTestConfig())
	ctx := context.Background()

	acct := f.createAccount(t, "done@example.com")
	require.NoError(t, f.accounts.MarkVerified(ctx, acct.ID, acct.Email))

	err := f.svc.Resend(ctx, acct.ID)
	assert.ErrorIs(t, err, ErrAlreadyVerified)
	assert.Empty(t, f.mock.SentNotifications)
}

func TestStatus(t *testing.T) {
	f := setupFixture(t, defaultTestConfig())
	ctx := context.Background()

	acct := f.createAccount(t, "status@example.com")

	verified, verifiedAt, err := f.svc.Status(ctx, acct.ID)
	require.NoError(t, err)
	assert.False(t, verified)
	assert.Nil(t, verifiedAt)

	require.NoError(t, f.accounts.MarkVerified(ctx, acct.ID, acct.Email))

	verified, verifiedAt, err = f.svc.Status(ctx, acct.ID)
	require.NoError(t, err)
	assert.True(t, verified)
	assert.NotNil(t, verifiedAt)

	_, _, err = f.svc.Status(ctx, 9999)
	assert.ErrorIs(t, err, account.ErrAccountNotFound)
}

func TestCleanupExpired(t *testing.T) {
	f := setupFixture(t, defaultTestConfig())
	ctx := context.Background()

	expired := f.createAccount(t, "sweep-expired@example.com")
	vtExpired, err := f.svc.RequestVerification(ctx, expired.ID, expired.Email, "", TypeAccount)
	require.NoError(t, err)

	redeemed := f.createAccount(t, "sweep-redeemed@example.com")
	vtRedeemed, err := f.svc.RequestVerification(ctx, redeemed.ID, redeemed.Email, "", TypeAccount)
	require.NoError(t, err)
	_, err = f.svc.VerifyToken(ctx, vtRedeemed.Token)
	require.NoError(t, err)

	f.advance(25 * time.Hour)

	fresh := f.createAccount(t, "sweep-fresh@example.com")
	_, err = f.svc.RequestVerification(ctx, fresh.ID, fresh.Email, "", TypeAccount)
	require.NoError(t, err)

	deleted, err := f.svc.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted, "only the expired unredeemed token goes")

	_, err = f.svc.VerifyToken(ctx, vtExpired.Token)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	// Redeemed token survives as the audit record
	result, err := f.svc.VerifyToken(ctx, vtRedeemed.Token)
	require.NoError(t, err)
	assert.True(t, result.AlreadyVerified)
}
