package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	// StatusPending is a normal freshly placed order awaiting payment
	StatusPending OrderStatus = "pending"
	// StatusVerificationPending holds an order until the buyer's email verifies
	StatusVerificationPending OrderStatus = "verification-pending"
)

// Order is the slice of an order this system cares about: who placed it,
// the billing email and whether it is held for verification.
type Order struct {
	ID           int64       `json:"id"`
	OwnerID      int64       `json:"owner_id"` // 0 for guest orders
	BillingEmail string      `json:"billing_email"`
	Status       OrderStatus `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
}

// OrderRepository defines storage operations for orders
type OrderRepository interface {
	Create(ctx context.Context, order *Order) (*Order, error)
	GetByID(ctx context.Context, id int64) (*Order, error)
	UpdateStatus(ctx context.Context, id int64, status OrderStatus) error
	// ListHeld returns verification-pending orders for an owner, or for
	// a billing email when ownerID is 0.
	ListHeld(ctx context.Context, ownerID int64, email string) ([]*Order, error)
}

const orderColumns = `id, owner_id, billing_email, status, created_at`

// OrderPostgresRepository handles database operations for orders
type OrderPostgresRepository struct {
	db *pgxpool.Pool
}

// NewOrderRepository creates a new postgres order repository
func NewOrderRepository(db *pgxpool.Pool) *OrderPostgresRepository {
	return &OrderPostgresRepository{db: db}
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.OwnerID, &o.BillingEmail, &o.Status, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &o, nil
}

// Create inserts a new order
func (r *OrderPostgresRepository) Create(ctx context.Context, order *Order) (*Order, error) {
	query := `
		INSERT INTO orders (owner_id, billing_email, status)
		VALUES ($1, $2, $3)
		RETURNING ` + orderColumns

	return scanOrder(r.db.QueryRow(ctx, query, order.OwnerID, order.BillingEmail, order.Status))
}

// GetByID retrieves an order by id
func (r *OrderPostgresRepository) GetByID(ctx context.Context, id int64) (*Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE id = $1
	`
	return scanOrder(r.db.QueryRow(ctx, query, id))
}

// UpdateStatus changes an order's status
func (r *OrderPostgresRepository) UpdateStatus(ctx context.Context, id int64, status OrderStatus) error {
	query := `
		UPDATE orders
		SET status = $2
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// ListHeld returns verification-pending orders for an owner or guest email
func (r *OrderPostgresRepository) ListHeld(ctx context.Context, ownerID int64, email string) ([]*Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE status = $1
		AND ((owner_id != 0 AND owner_id = $2) OR (owner_id = 0 AND billing_email = $3))
		ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, query, StatusVerificationPending, ownerID, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}
