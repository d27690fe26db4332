package account

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrAccountNotFound is returned when no account matches the lookup
	ErrAccountNotFound = errors.New("account not found")

	// ErrEmailExists is returned when creating an account with an email
	// that is already registered
	ErrEmailExists = errors.New("an account is already registered with this email address")
)

// Account represents a store customer. Verification state lives here as
// real booleans; LastVerifiedEmail is the last address known to have passed
// verification and is used to detect email changes.
type Account struct {
	ID                  int64      `json:"id"`
	Email               string     `json:"email"`
	Username            string     `json:"username"`
	PasswordHash        string     `json:"password_hash"`
	Admin               bool       `json:"admin"`
	EmailVerified       bool       `json:"email_verified"`
	VerificationPending bool       `json:"verification_pending"`
	CheckoutPending     bool       `json:"checkout_pending"`
	LastVerifiedEmail   string     `json:"last_verified_email"`
	VerifiedAt          *time.Time `json:"verified_at,omitempty"`
	RegisteredAt        time.Time  `json:"registered_at"`
}

// AccountRepository defines persistence for accounts.
type AccountRepository interface {
	Create(ctx context.Context, acct *Account) (*Account, error)
	GetByID(ctx context.Context, id int64) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	Update(ctx context.Context, acct *Account) error
	Delete(ctx context.Context, id int64) error
	// ListStalePending returns non-admin accounts still pending
	// verification that registered before the cutoff.
	ListStalePending(ctx context.Context, cutoff time.Time) ([]*Account, error)
}
