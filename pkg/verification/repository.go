package verification

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Verification types. Checkout tokens belong to guest shoppers and carry
// OwnerID 0; the email is their identity.
const (
	TypeAccount     = "account"
	TypeCheckout    = "checkout"
	TypeEmailChange = "email_change"
)

// VerificationToken is a stored double opt-in token. Token always holds
// the 64-char hex link secret; OTPCode is set only when the one-time-code
// method is active. Verified rows are kept for audit and never deleted.
type VerificationToken struct {
	ID          uuid.UUID  `json:"id"`
	OwnerID     int64      `json:"owner_id"` // 0 for guests
	Email       string     `json:"email"`
	Type        string     `json:"type"`
	Token       string     `json:"token"`
	OTPCode     string     `json:"otp_code,omitempty"`
	OTPAttempts int        `json:"otp_attempts"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	VerifiedAt  *time.Time `json:"verified_at,omitempty"`
}

// CreateTokenParams carries the fields for a new verification token.
type CreateTokenParams struct {
	OwnerID   int64
	Email     string
	Type      string
	Token     string
	OTPCode   string
	ExpiresAt time.Time
}

// TokenRepository defines storage operations for verification tokens
type TokenRepository interface {
	// Create inserts a token, replacing any unconsumed tokens for the
	// same (owner, email, type). Only the newest issue is redeemable.
	Create(ctx context.Context, params CreateTokenParams) (*VerificationToken, error)
	GetByToken(ctx context.Context, token string) (*VerificationToken, error)
	GetLatestUnconsumedByEmail(ctx context.Context, email string) (*VerificationToken, error)
	MarkVerified(ctx context.Context, id uuid.UUID) error
	IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error)
	DeleteExpiredUnconsumed(ctx context.Context, before time.Time) (int64, error)
}

const tokenColumns = `id, owner_id, email, type, token, otp_code, otp_attempts, created_at, expires_at, verified_at`

// Repository handles database operations for verification tokens
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new verification token repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func scanToken(row pgx.Row) (*VerificationToken, error) {
	var vt VerificationToken
	err := row.Scan(
		&vt.ID,
		&vt.OwnerID,
		&vt.Email,
		&vt.Type,
		&vt.Token,
		&vt.OTPCode,
		&vt.OTPAttempts,
		&vt.CreatedAt,
		&vt.ExpiresAt,
		&vt.VerifiedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	return &vt, nil
}

// Create inserts a new token after removing unconsumed predecessors for
// the same owner, email and type, in a single transaction.
func (r *Repository) Create(ctx context.Context, params CreateTokenParams) (*VerificationToken, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	deleteQuery := `
		DELETE FROM verification_tokens
		WHERE owner_id = $1
		AND email = $2
		AND type = $3
		AND verified_at IS NULL
	`
	if _, err := tx.Exec(ctx, deleteQuery, params.OwnerID, params.Email, params.Type); err != nil {
		return nil, err
	}

	insertQuery := `
		INSERT INTO verification_tokens (owner_id, email, type, token, otp_code, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + tokenColumns

	vt, err := scanToken(tx.QueryRow(ctx, insertQuery,
		params.OwnerID, params.Email, params.Type, params.Token, params.OTPCode, params.ExpiresAt))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return vt, nil
}

// GetByToken retrieves a token by its link secret. Consumed tokens are
// returned too so callers can treat re-visits as success.
func (r *Repository) GetByToken(ctx context.Context, token string) (*VerificationToken, error) {
	query := `
		SELECT ` + tokenColumns + `
		FROM verification_tokens
		WHERE token = $1
	`
	return scanToken(r.db.QueryRow(ctx, query, token))
}

// GetLatestUnconsumedByEmail retrieves the newest unconsumed token for an email
func (r *Repository) GetLatestUnconsumedByEmail(ctx context.Context, email string) (*VerificationToken, error) {
	query := `
		SELECT ` + tokenColumns + `
		FROM verification_tokens
		WHERE email = $1
		AND verified_at IS NULL
		ORDER BY created_at DESC
		LIMIT 1
	`
	vt, err := scanToken(r.db.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return nil, ErrNoPendingVerification
		}
		return nil, err
	}
	return vt, nil
}

// MarkVerified stamps a token consumed. Already-stamped rows keep their
// original timestamp.
func (r *Repository) MarkVerified(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE verification_tokens
		SET verified_at = NOW() AT TIME ZONE 'UTC'
		WHERE id = $1
		AND verified_at IS NULL
	`
	_, err := r.db.Exec(ctx, query, id)
	return err
}

// IncrementAttempts atomically bumps the attempt counter and returns the new count
func (r *Repository) IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	query := `
		UPDATE verification_tokens
		SET otp_attempts = otp_attempts + 1
		WHERE id = $1
		RETURNING otp_attempts
	`
	var attempts int
	if err := r.db.QueryRow(ctx, query, id).Scan(&attempts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrTokenNotFound
		}
		return 0, err
	}
	return attempts, nil
}

// DeleteExpiredUnconsumed removes expired tokens that were never
// redeemed. Verified rows are retained.
func (r *Repository) DeleteExpiredUnconsumed(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM verification_tokens
		WHERE expires_at < $1
		AND verified_at IS NULL
	`
	tag, err := r.db.Exec(ctx, query, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
