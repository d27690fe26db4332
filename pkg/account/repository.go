package account

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the PostgreSQL-backed account repository.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new account repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const accountColumns = `id, email, username, password_hash, admin, email_verified,
	verification_pending, checkout_pending, last_verified_email, verified_at, registered_at`

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	err := row.Scan(
		&a.ID,
		&a.Email,
		&a.Username,
		&a.PasswordHash,
		&a.Admin,
		&a.EmailVerified,
		&a.VerificationPending,
		&a.CheckoutPending,
		&a.LastVerifiedEmail,
		&a.VerifiedAt,
		&a.RegisteredAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &a, nil
}

// Create inserts an account and returns it with the assigned id.
func (r *Repository) Create(ctx context.Context, acct *Account) (*Account, error) {
	query := `
		INSERT INTO accounts (email, username, password_hash, admin, email_verified,
			verification_pending, checkout_pending, last_verified_email, registered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + accountColumns

	return scanAccount(r.db.QueryRow(ctx, query,
		acct.Email,
		acct.Username,
		acct.PasswordHash,
		acct.Admin,
		acct.EmailVerified,
		acct.VerificationPending,
		acct.CheckoutPending,
		acct.LastVerifiedEmail,
		acct.RegisteredAt,
	))
}

// GetByID retrieves an account by id.
func (r *Repository) GetByID(ctx context.Context, id int64) (*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(r.db.QueryRow(ctx, query, id))
}

// GetByEmail retrieves an account by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	return scanAccount(r.db.QueryRow(ctx, query, email))
}

// Update persists the mutable account fields.
func (r *Repository) Update(ctx context.Context, acct *Account) error {
	query := `
		UPDATE accounts
		SET email = $2,
		    username = $3,
		    password_hash = $4,
		    admin = $5,
		    email_verified = $6,
		    verification_pending = $7,
		    checkout_pending = $8,
		    last_verified_email = $9,
		    verified_at = $10
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query,
		acct.ID,
		acct.Email,
		acct.Username,
		acct.PasswordHash,
		acct.Admin,
		acct.EmailVerified,
		acct.VerificationPending,
		acct.CheckoutPending,
		acct.LastVerifiedEmail,
		acct.VerifiedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// Delete removes an account.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// ListStalePending returns non-admin accounts still pending verification
// that registered before the cutoff.
func (r *Repository) ListStalePending(ctx context.Context, cutoff time.Time) ([]*Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE verification_pending = TRUE
		AND admin = FALSE
		AND registered_at < $1
		ORDER BY registered_at
	`

	rows, err := r.db.Query(ctx, query, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}
