package account

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Service wraps the repository with account-level business logic.
type Service struct {
	repo AccountRepository
}

// NewService creates a new account service.
func NewService(repo AccountRepository) *Service {
	return &Service{repo: repo}
}

// CreateParams carries the fields needed to provision an account.
type CreateParams struct {
	Email    string
	Username string
	Password string
	Admin    bool
}

// Create provisions an account in the unverified, pending state. The
// password is hashed with bcrypt before it is stored.
func (s *Service) Create(ctx context.Context, params CreateParams) (*Account, error) {
	if _, err := s.repo.GetByEmail(ctx, params.Email); err == nil {
		return nil, ErrEmailExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	username := params.Username
	if username == "" {
		username = params.Email
	}

	acct, err := s.repo.Create(ctx, &Account{
		Email:               params.Email,
		Username:            username,
		PasswordHash:        string(hash),
		Admin:               params.Admin,
		EmailVerified:       false,
		VerificationPending: true,
		RegisteredAt:        time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Account created", "account_id", acct.ID, "email", acct.Email)
	return acct, nil
}

// GetByID retrieves an account by id.
func (s *Service) GetByID(ctx context.Context, id int64) (*Account, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByEmail retrieves an account by email.
func (s *Service) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return s.repo.GetByEmail(ctx, email)
}

// IsVerified reports whether the account's email has been verified.
func (s *Service) IsVerified(ctx context.Context, id int64) (bool, error) {
	acct, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return acct.EmailVerified, nil
}

// MarkPending flags the account as awaiting verification.
func (s *Service) MarkPending(ctx context.Context, id int64) error {
	acct, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	acct.EmailVerified = false
	acct.VerificationPending = true
	acct.VerifiedAt = nil

	return s.repo.Update(ctx, acct)
}

// MarkVerified records a successful verification of the given email.
func (s *Service) MarkVerified(ctx context.Context, id int64, email string) error {
	acct, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	acct.EmailVerified = true
	acct.VerificationPending = false
	acct.LastVerifiedEmail = email
	acct.VerifiedAt = &now

	if err := s.repo.Update(ctx, acct); err != nil {
		return err
	}

	slog.Info("Account email verified", "account_id", id, "email", email)
	return nil
}

// SetCheckoutPending flags or clears the "tried to check out while
// unverified" marker.
func (s *Service) SetCheckoutPending(ctx context.Context, id int64, pending bool) error {
	acct, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	acct.CheckoutPending = pending
	return s.repo.Update(ctx, acct)
}

// Delete removes an account.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// ListStalePending returns non-admin accounts still pending verification
// that registered before the cutoff.
func (s *Service) ListStalePending(ctx context.Context, cutoff time.Time) ([]*Account, error) {
	return s.repo.ListStalePending(ctx, cutoff)
}

// CheckPassword verifies a candidate password against the stored hash.
func (s *Service) CheckPassword(acct *Account, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)) == nil
}
