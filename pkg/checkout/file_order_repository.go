package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// FileOrderRepository implements OrderRepository using file-based storage
type FileOrderRepository struct {
	dataDir string
	orders  map[int64]*Order
	nextID  int64
	mutex   sync.RWMutex
}

// orderData represents the structure of data stored in the JSON file
type orderData struct {
	Orders []*Order `json:"orders"`
	NextID int64    `json:"next_id"`
}

// NewFileOrderRepository creates a new file-based order repository
func NewFileOrderRepository(dataDir string) (*FileOrderRepository, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	repo := &FileOrderRepository{
		dataDir: dataDir,
		orders:  make(map[int64]*Order),
		nextID:  1,
	}

	if err := repo.load(); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}

	return repo, nil
}

func (r *FileOrderRepository) filePath() string {
	return filepath.Join(r.dataDir, "orders.json")
}

func (r *FileOrderRepository) load() error {
	data, err := os.ReadFile(r.filePath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var stored orderData
	if err := json.Unmarshal(data, &stored); err != nil {
		return err
	}

	for _, o := range stored.Orders {
		r.orders[o.ID] = o
	}
	if stored.NextID > 0 {
		r.nextID = stored.NextID
	}
	return nil
}

// save writes orders to the JSON file. Caller must hold the write lock.
func (r *FileOrderRepository) save() error {
	stored := orderData{Orders: make([]*Order, 0, len(r.orders)), NextID: r.nextID}
	for _, o := range r.orders {
		stored.Orders = append(stored.Orders, o)
	}

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return err
	}

	tmpFile := r.filePath() + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmpFile, r.filePath())
}

// Create inserts a new order
func (r *FileOrderRepository) Create(ctx context.Context, order *Order) (*Order, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	o := &Order{
		ID:           r.nextID,
		OwnerID:      order.OwnerID,
		BillingEmail: order.BillingEmail,
		Status:       order.Status,
		CreatedAt:    time.Now().UTC(),
	}
	r.orders[o.ID] = o
	r.nextID++

	if err := r.save(); err != nil {
		delete(r.orders, o.ID)
		r.nextID--
		return nil, fmt.Errorf("failed to save: %w", err)
	}

	oCopy := *o
	return &oCopy, nil
}

// GetByID retrieves an order by id
func (r *FileOrderRepository) GetByID(ctx context.Context, id int64) (*Order, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	o, exists := r.orders[id]
	if !exists {
		return nil, ErrOrderNotFound
	}
	oCopy := *o
	return &oCopy, nil
}

// UpdateStatus changes an order's status
func (r *FileOrderRepository) UpdateStatus(ctx context.Context, id int64, status OrderStatus) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	o, exists := r.orders[id]
	if !exists {
		return ErrOrderNotFound
	}

	previous := o.Status
	o.Status = status
	if err := r.save(); err != nil {
		o.Status = previous
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

// ListHeld returns verification-pending orders for an owner or guest email
func (r *FileOrderRepository) ListHeld(ctx context.Context, ownerID int64, email string) ([]*Order, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var orders []*Order
	for _, o := range r.orders {
		if o.Status != StatusVerificationPending {
			continue
		}
		if (o.OwnerID != 0 && o.OwnerID == ownerID) || (o.OwnerID == 0 && o.BillingEmail == email) {
			oCopy := *o
			orders = append(orders, &oCopy)
		}
	}

	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
	return orders, nil
}
