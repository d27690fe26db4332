package verification

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/commercekit/double-optin/pkg/account"
	"github.com/commercekit/double-optin/pkg/config"
	"github.com/commercekit/double-optin/pkg/events"
	"github.com/commercekit/double-optin/pkg/notice"
	"github.com/commercekit/double-optin/pkg/notification"
	"github.com/commercekit/double-optin/pkg/ratelimit"
	"github.com/commercekit/double-optin/pkg/tokengen"
)

// Service drives the double opt-in lifecycle: issuing tokens, redeeming
// them by link or one-time code, and flipping the owning account's flags
// on success.
type Service struct {
	repo                TokenRepository
	accounts            *account.Service
	notificationManager *notification.NotificationManager
	bus                 *events.Bus
	limiter             *ratelimit.ResendLimiter
	cfg                 config.VerificationConfig
	site                config.SiteConfig
	now                 func() time.Time
}

// ServiceOption defines configuration options
type ServiceOption func(*Service)

// WithClock overrides the service time source. Intended for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new verification service
func NewService(
	repo TokenRepository,
	accounts *account.Service,
	notificationManager *notification.NotificationManager,
	bus *events.Bus,
	limiter *ratelimit.ResendLimiter,
	cfg config.VerificationConfig,
	site config.SiteConfig,
	opts ...ServiceOption,
) *Service {
	s := &Service{
		repo:                repo,
		accounts:            accounts,
		notificationManager: notificationManager,
		bus:                 bus,
		limiter:             limiter,
		cfg:                 cfg,
		site:                site,
		now:                 time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Result reports the outcome of a successful verification.
type Result struct {
	OwnerID         int64  `json:"owner_id"`
	Email           string `json:"email"`
	Type            string `json:"type"`
	AlreadyVerified bool   `json:"already_verified"`
}

// otpPolicy returns the active code policy from config.
func (s *Service) otpPolicy() tokengen.OTPPolicy {
	return tokengen.OTPPolicy{
		Length:  s.cfg.OTPLength,
		Charset: tokengen.Charset(s.cfg.OTPCharset),
	}
}

// RequestVerification issues a fresh token for the owner and email and
// sends the verification message. Issuing replaces any unconsumed token
// for the same owner, email and type. The email send is best effort:
// a delivery failure is logged but the stored token stands.
func (s *Service) RequestVerification(ctx context.Context, ownerID int64, email, name, verifType string) (*VerificationToken, error) {
	token, err := tokengen.GenerateLinkToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	var otpCode string
	expiresAt := s.now().UTC().Add(s.cfg.LinkExpiry())
	if s.cfg.Method == config.MethodOTP {
		otpCode, err = tokengen.GenerateOTP(s.otpPolicy())
		if err != nil {
			return nil, fmt.Errorf("failed to generate code: %w", err)
		}
		expiresAt = s.now().UTC().Add(s.cfg.OTPExpiry())
	}

	vt, err := s.repo.Create(ctx, CreateTokenParams{
		OwnerID:   ownerID,
		Email:     email,
		Type:      verifType,
		Token:     token,
		OTPCode:   otpCode,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		slog.Error("Failed to create verification token", "owner_id", ownerID, "email", email, "error", err)
		return nil, fmt.Errorf("failed to create verification token: %w", err)
	}

	if err := s.sendVerificationEmail(vt, name); err != nil {
		slog.Error("Failed to send verification email", "owner_id", ownerID, "email", email, "error", err)
		// Don't return error - token is created, email sending is best effort
	}

	slog.Info("Verification token created",
		"owner_id", ownerID, "email", email, "type", verifType, "token_id", vt.ID, "expires_at", expiresAt)
	return vt, nil
}

// VerifyToken redeems a link token. Re-visiting an already redeemed link
// reports success so shoppers who click twice are not shown an error.
func (s *Service) VerifyToken(ctx context.Context, token string) (*Result, error) {
	if !tokengen.LinkTokenPattern.MatchString(token) {
		slog.Warn("Verification token failed format check")
		return nil, ErrInvalidFormat
	}

	vt, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		slog.Warn("Verification token not found", "error", err)
		return nil, ErrTokenNotFound
	}

	if vt.VerifiedAt != nil {
		slog.Info("Verification token already redeemed", "token_id", vt.ID)
		return &Result{OwnerID: vt.OwnerID, Email: vt.Email, Type: vt.Type, AlreadyVerified: true}, nil
	}

	if vt.ExpiresAt.Before(s.now().UTC()) {
		slog.Warn("Verification token expired", "token_id", vt.ID, "expires_at", vt.ExpiresAt)
		return nil, ErrExpired
	}

	return s.finalize(ctx, vt)
}

// VerifyOTP redeems the newest unconsumed code issued to the email.
// Codes are compared in constant time after upper-casing, so shoppers
// can type lower case. Each mismatch burns an attempt.
func (s *Service) VerifyOTP(ctx context.Context, email, code string) (*Result, error) {
	canonical := strings.ToUpper(strings.TrimSpace(code))
	if !s.otpPolicy().MatchesPolicy(canonical) {
		return nil, ErrInvalidFormat
	}

	vt, err := s.repo.GetLatestUnconsumedByEmail(ctx, email)
	if err != nil {
		slog.Warn("No pending verification for email", "email", email)
		return nil, ErrNoPendingVerification
	}

	if vt.OTPCode == "" {
		// Link-only token; nothing to match a code against
		return nil, ErrNoPendingVerification
	}

	if vt.ExpiresAt.Before(s.now().UTC()) {
		slog.Warn("Verification code expired", "token_id", vt.ID, "expires_at", vt.ExpiresAt)
		return nil, ErrExpired
	}

	if vt.OTPAttempts >= s.cfg.OTPMaxAttempts {
		slog.Warn("Verification code attempt ceiling reached", "token_id", vt.ID, "attempts", vt.OTPAttempts)
		return nil, ErrMaxAttempts
	}

	stored := strings.ToUpper(vt.OTPCode)
	if subtle.ConstantTimeCompare([]byte(canonical), []byte(stored)) != 1 {
		attempts, err := s.repo.IncrementAttempts(ctx, vt.ID)
		if err != nil {
			slog.Error("Failed to record code attempt", "token_id", vt.ID, "error", err)
			return nil, fmt.Errorf("failed to record attempt: %w", err)
		}

		remaining := s.cfg.OTPMaxAttempts - attempts
		if remaining <= 0 {
			slog.Warn("Verification code locked out", "token_id", vt.ID, "attempts", attempts)
			return nil, ErrMaxAttempts
		}
		return nil, &IncorrectCodeError{Remaining: remaining}
	}

	return s.finalize(ctx, vt)
}

// finalize marks the token redeemed, updates the owning account and
// publishes the verified event.
func (s *Service) finalize(ctx context.Context, vt *VerificationToken) (*Result, error) {
	if err := s.repo.MarkVerified(ctx, vt.ID); err != nil {
		slog.Error("Failed to mark token verified", "token_id", vt.ID, "error", err)
		return nil, fmt.Errorf("failed to mark token verified: %w", err)
	}

	if vt.OwnerID != 0 {
		if err := s.accounts.MarkVerified(ctx, vt.OwnerID, vt.Email); err != nil {
			slog.Error("Failed to mark account verified", "owner_id", vt.OwnerID, "error", err)
			return nil, fmt.Errorf("failed to mark account verified: %w", err)
		}
	}

	s.bus.Publish(events.VerifiedEvent{OwnerID: vt.OwnerID, Email: vt.Email, Type: vt.Type})

	slog.Info("Email verified", "owner_id", vt.OwnerID, "email", vt.Email, "type", vt.Type, "token_id", vt.ID)
	return &Result{OwnerID: vt.OwnerID, Email: vt.Email, Type: vt.Type}, nil
}

// Status returns the verification state of an account.
func (s *Service) Status(ctx context.Context, ownerID int64) (bool, *time.Time, error) {
	acct, err := s.accounts.GetByID(ctx, ownerID)
	if err != nil {
		return false, nil, err
	}
	return acct.EmailVerified, acct.VerifiedAt, nil
}

// Resend re-issues the verification email for an unverified account,
// gated by the resend limiter.
func (s *Service) Resend(ctx context.Context, ownerID int64) error {
	acct, err := s.accounts.GetByID(ctx, ownerID)
	if err != nil {
		return err
	}

	if acct.EmailVerified {
		slog.Info("Email already verified", "owner_id", ownerID)
		return ErrAlreadyVerified
	}

	key := fmt.Sprintf("account:%d", ownerID)
	if !s.limiter.Allow(key) {
		slog.Warn("Resend rate limited", "owner_id", ownerID, "retry_after", s.limiter.RetryAfter(key))
		return ErrRateLimited
	}

	if _, err := s.RequestVerification(ctx, ownerID, acct.Email, acct.Username, TypeAccount); err != nil {
		return err
	}

	s.limiter.Record(key)
	return nil
}

// RetryAfter reports how long an account must wait before the next resend.
func (s *Service) RetryAfter(ownerID int64) time.Duration {
	return s.limiter.RetryAfter(fmt.Sprintf("account:%d", ownerID))
}

// CleanupExpired deletes expired tokens that were never redeemed and
// returns how many rows went away. Redeemed tokens are kept as the
// audit trail of past verifications.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	deleted, err := s.repo.DeleteExpiredUnconsumed(ctx, s.now().UTC())
	if err != nil {
		slog.Error("Failed to cleanup expired tokens", "error", err)
		return 0, fmt.Errorf("failed to cleanup expired tokens: %w", err)
	}

	if deleted > 0 {
		slog.Info("Expired tokens cleaned up", "deleted", deleted)
	}
	return deleted, nil
}

// sendVerificationEmail renders and delivers the notice for a token.
func (s *Service) sendVerificationEmail(vt *VerificationToken, name string) error {
	if s.notificationManager == nil {
		slog.Warn("Notification manager not configured, skipping email send")
		return nil
	}

	var noticeType notification.NoticeType
	var verificationURL string
	switch {
	case vt.Type == TypeCheckout:
		noticeType = notice.CheckoutVerificationNotice
		verificationURL = fmt.Sprintf("%s/checkout/verify?email=%s&token=%s",
			s.site.BaseURL, url.QueryEscape(vt.Email), vt.Token)
	case s.cfg.Method == config.MethodOTP:
		noticeType = notice.VerificationOTPNotice
	default:
		noticeType = notice.VerificationLinkNotice
		verificationURL = fmt.Sprintf("%s/verify?token=%s", s.site.BaseURL, vt.Token)
	}

	data := notification.NotificationData{
		To: vt.Email,
		Data: map[string]string{
			"UserName":        name,
			"SiteName":        s.site.SiteName,
			"VerificationURL": verificationURL,
			"OTPCode":         vt.OTPCode,
			"ExpiryHours":     fmt.Sprintf("%d", s.cfg.LinkExpiryHours),
			"ExpiryMinutes":   fmt.Sprintf("%d", s.cfg.OTPExpiryMinutes),
		},
	}

	if err := s.notificationManager.Send(noticeType, notification.EmailSystem, data); err != nil {
		return fmt.Errorf("failed to send verification email: %w", err)
	}
	return nil
}
