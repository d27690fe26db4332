package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/commercekit/double-optin/pkg/account"
	"github.com/commercekit/double-optin/pkg/events"
	"github.com/commercekit/double-optin/pkg/ratelimit"
	"github.com/commercekit/double-optin/pkg/verification"
)

// Service gates login and checkout on email verification, provisions
// guest accounts, and releases held orders once verification lands.
type Service struct {
	accounts *account.Service
	verifier *verification.Service
	orders   OrderRepository
	pending  *PendingCheckoutStore
	limiter  *ratelimit.ResendLimiter
}

// NewService creates the checkout service and subscribes it to the
// verified-event bus so held orders release as soon as an email verifies.
func NewService(
	accounts *account.Service,
	verifier *verification.Service,
	orders OrderRepository,
	pending *PendingCheckoutStore,
	limiter *ratelimit.ResendLimiter,
	bus *events.Bus,
) *Service {
	s := &Service{
		accounts: accounts,
		verifier: verifier,
		orders:   orders,
		pending:  pending,
		limiter:  limiter,
	}
	bus.Subscribe(s.onVerified)
	return s
}

// CheckoutData carries what the interceptor needs to decide whether a
// checkout may proceed.
type CheckoutData struct {
	OwnerID       int64  // 0 for guests
	Email         string // billing email
	CreateAccount bool   // guest elected account creation
	Username      string
	Password      string
}

// GateLogin blocks sign-in for unverified accounts. Admins always pass.
func (s *Service) GateLogin(ctx context.Context, accountID int64) error {
	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}

	if acct.Admin {
		return nil
	}
	if !acct.EmailVerified {
		slog.Info("Login blocked pending verification", "account_id", accountID)
		return ErrLoginNotVerified
	}
	return nil
}

// InterceptCheckout runs after checkout validation and before order
// creation. A nil return means the order may be placed normally;
// ErrVerificationRequired means a verification email is on its way and
// the order must be held; ErrAccountExists tells the guest to sign in.
func (s *Service) InterceptCheckout(ctx context.Context, data CheckoutData) error {
	if data.OwnerID != 0 {
		return s.interceptAccountCheckout(ctx, data)
	}

	if data.CreateAccount {
		return s.provisionGuestAccount(ctx, data)
	}

	// Pure guest: a verified pending-checkout record or a verified
	// account registered under the billing email clears the way
	if rec, ok := s.pending.Get(data.Email); ok && rec.Verified {
		return nil
	}
	if acct, err := s.accounts.GetByEmail(ctx, data.Email); err == nil && acct.EmailVerified {
		return nil
	}

	err := s.RequestGuestVerification(ctx, data.Email)
	if err != nil && !errors.Is(err, ErrRateLimited) {
		return err
	}
	return ErrVerificationRequired
}

func (s *Service) interceptAccountCheckout(ctx context.Context, data CheckoutData) error {
	acct, err := s.accounts.GetByID(ctx, data.OwnerID)
	if err != nil {
		return err
	}

	if acct.Admin {
		return nil
	}

	if acct.EmailVerified {
		// Changing the billing email away from the verified one
		// re-opens verification
		if data.Email != "" && acct.LastVerifiedEmail != "" && !strings.EqualFold(data.Email, acct.LastVerifiedEmail) {
			return s.HandleEmailChange(ctx, acct.ID, data.Email)
		}
		return nil
	}

	// Unverified account at checkout: nudge with a fresh email unless
	// the limiter says one just went out
	if err := s.verifier.Resend(ctx, acct.ID); err != nil &&
		!errors.Is(err, verification.ErrRateLimited) &&
		!errors.Is(err, verification.ErrAlreadyVerified) {
		slog.Error("Failed to re-issue verification at checkout", "account_id", acct.ID, "error", err)
	}
	return ErrVerificationRequired
}

// provisionGuestAccount creates the account a guest asked for during
// checkout and starts verification against it.
func (s *Service) provisionGuestAccount(ctx context.Context, data CheckoutData) error {
	acct, err := s.accounts.Create(ctx, account.CreateParams{
		Email:    data.Email,
		Username: data.Username,
		Password: data.Password,
	})
	if err != nil {
		if errors.Is(err, account.ErrEmailExists) {
			return ErrAccountExists
		}
		// Account creation failures surface untouched so the shopper
		// sees the real reason
		return err
	}

	if err := s.accounts.SetCheckoutPending(ctx, acct.ID, true); err != nil {
		slog.Error("Failed to flag checkout pending", "account_id", acct.ID, "error", err)
	}

	if _, err := s.verifier.RequestVerification(ctx, acct.ID, acct.Email, acct.Username, verification.TypeCheckout); err != nil {
		return fmt.Errorf("failed to start verification: %w", err)
	}

	slog.Info("Guest account provisioned at checkout", "account_id", acct.ID, "email", acct.Email)
	return &VerificationRequiredError{AccountID: acct.ID, SignIn: true}
}

// PlaceOrder creates the order, holding it as verification-pending when
// the buyer's email is not yet verified. Admin buyers are never held.
func (s *Service) PlaceOrder(ctx context.Context, ownerID int64, billingEmail string) (*Order, error) {
	verified := false
	if ownerID != 0 {
		acct, err := s.accounts.GetByID(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		verified = acct.Admin || acct.EmailVerified
	} else if rec, ok := s.pending.Get(billingEmail); ok {
		verified = rec.Verified
	}

	status := StatusPending
	if !verified {
		status = StatusVerificationPending
	}

	order, err := s.orders.Create(ctx, &Order{
		OwnerID:      ownerID,
		BillingEmail: billingEmail,
		Status:       status,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	slog.Info("Order placed", "order_id", order.ID, "owner_id", ownerID, "status", order.Status)
	return order, nil
}

// ValidateOrder runs at order finalization and aborts with
// ErrCheckoutBlocked when the buyer's email is unverified, instead of
// letting the order through silently. Admins and guests with no billing
// email pass.
func (s *Service) ValidateOrder(ctx context.Context, order *Order) error {
	// A verified pending-checkout record for the billing email clears
	// the order regardless of who owns it
	if order.BillingEmail != "" {
		if rec, ok := s.pending.Get(order.BillingEmail); ok && rec.Verified {
			return nil
		}
	}

	if order.OwnerID == 0 {
		if order.BillingEmail == "" {
			return nil
		}
		acct, err := s.accounts.GetByEmail(ctx, order.BillingEmail)
		if err == nil && acct.EmailVerified {
			return nil
		}
		if err != nil && !errors.Is(err, account.ErrAccountNotFound) {
			return err
		}
		slog.Info("Order finalization blocked pending verification", "email", order.BillingEmail)
		return ErrCheckoutBlocked
	}

	acct, err := s.accounts.GetByID(ctx, order.OwnerID)
	if err != nil {
		return err
	}
	if acct.Admin || acct.EmailVerified {
		return nil
	}

	slog.Info("Order finalization blocked pending verification", "owner_id", order.OwnerID)
	return ErrCheckoutBlocked
}

// RequestGuestVerification issues a verification email to a guest and
// records the pending-checkout record, throttled per email address.
// Emails belonging to an existing account re-use the account flow so
// verifying through checkout flags the account itself; already-verified
// accounts succeed without a new email.
func (s *Service) RequestGuestVerification(ctx context.Context, email string) error {
	key := "email:" + strings.ToLower(email)
	if !s.limiter.Allow(key) {
		slog.Warn("Guest verification rate limited", "email", email)
		return ErrRateLimited
	}

	ownerID := int64(0)
	username := ""
	if acct, err := s.accounts.GetByEmail(ctx, email); err == nil {
		if acct.EmailVerified {
			slog.Info("Guest verification requested for verified account", "account_id", acct.ID)
			return nil
		}
		ownerID = acct.ID
		username = acct.Username
	} else if !errors.Is(err, account.ErrAccountNotFound) {
		return err
	}

	vt, err := s.verifier.RequestVerification(ctx, ownerID, email, username, verification.TypeCheckout)
	if err != nil {
		return err
	}

	s.pending.Put(email, vt.Token)
	s.limiter.Record(key)
	return nil
}

// VerifyGuestToken redeems a guest verification link. The presented
// token must match the live pending-checkout record before the durable
// token is consumed.
func (s *Service) VerifyGuestToken(ctx context.Context, email, token string) error {
	if _, ok := s.pending.Get(email); !ok {
		return ErrNoPendingCheckout
	}
	if !s.pending.MatchToken(email, token) {
		slog.Warn("Guest token mismatch", "email", email)
		return ErrInvalidGuestToken
	}

	if _, err := s.verifier.VerifyToken(ctx, token); err != nil {
		return err
	}

	// The verified event already flipped the record; this is for the
	// degenerate case of a bus with no subscription
	s.pending.MarkVerified(email)
	return nil
}

// VerifyGuestOTP redeems a guest one-time code.
func (s *Service) VerifyGuestOTP(ctx context.Context, email, code string) error {
	if _, ok := s.pending.Get(email); !ok {
		return ErrNoPendingCheckout
	}

	if _, err := s.verifier.VerifyOTP(ctx, email, code); err != nil {
		return err
	}

	s.pending.MarkVerified(email)
	return nil
}

// GuestStatus reports whether a guest email has verified during the
// pending-checkout window.
func (s *Service) GuestStatus(ctx context.Context, email string) (bool, error) {
	rec, ok := s.pending.Get(email)
	if !ok {
		return false, ErrNoPendingCheckout
	}
	return rec.Verified, nil
}

// HandleEmailChange re-opens verification when an account's email moves
// away from the last verified address.
func (s *Service) HandleEmailChange(ctx context.Context, accountID int64, newEmail string) error {
	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}

	if acct.Admin {
		return nil
	}
	if newEmail == "" || strings.EqualFold(newEmail, acct.LastVerifiedEmail) {
		return nil
	}

	if err := s.accounts.MarkPending(ctx, accountID); err != nil {
		return err
	}

	if _, err := s.verifier.RequestVerification(ctx, accountID, newEmail, acct.Username, verification.TypeEmailChange); err != nil {
		return err
	}

	slog.Info("Email change re-opened verification", "account_id", accountID, "new_email", newEmail)
	return ErrVerificationRequired
}

// onVerified reacts to a successful verification: clear the
// checkout-pending flag, flip the guest record and release held orders.
func (s *Service) onVerified(e events.VerifiedEvent) {
	ctx := context.Background()

	if e.OwnerID != 0 {
		if err := s.accounts.SetCheckoutPending(ctx, e.OwnerID, false); err != nil &&
			!errors.Is(err, account.ErrAccountNotFound) {
			slog.Error("Failed to clear checkout-pending flag", "account_id", e.OwnerID, "error", err)
		}
	} else {
		s.pending.MarkVerified(e.Email)
	}

	held, err := s.orders.ListHeld(ctx, e.OwnerID, e.Email)
	if err != nil {
		slog.Error("Failed to list held orders", "owner_id", e.OwnerID, "email", e.Email, "error", err)
		return
	}

	for _, order := range held {
		if err := s.orders.UpdateStatus(ctx, order.ID, StatusPending); err != nil {
			slog.Error("Failed to release held order", "order_id", order.ID, "error", err)
			continue
		}
		slog.Info("Order released after verification", "order_id", order.ID, "owner_id", e.OwnerID, "email", e.Email)
	}
}
