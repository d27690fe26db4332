package account

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileAccountRepository implements AccountRepository using file-based storage
type FileAccountRepository struct {
	dataDir  string
	accounts map[int64]*Account
	nextID   int64
	mutex    sync.RWMutex
}

type accountData struct {
	Accounts []*Account `json:"accounts"`
	NextID   int64      `json:"next_id"`
}

// NewFileAccountRepository creates a new file-based account repository
func NewFileAccountRepository(dataDir string) (*FileAccountRepository, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	repo := &FileAccountRepository{
		dataDir:  dataDir,
		accounts: make(map[int64]*Account),
		nextID:   1,
	}

	if err := repo.load(); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}

	return repo, nil
}

// Create inserts an account, assigning the next id.
func (r *FileAccountRepository) Create(ctx context.Context, acct *Account) (*Account, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, existing := range r.accounts {
		if existing.Email == acct.Email {
			return nil, ErrEmailExists
		}
	}

	stored := *acct
	stored.ID = r.nextID
	r.nextID++
	if stored.RegisteredAt.IsZero() {
		stored.RegisteredAt = time.Now().UTC()
	}
	r.accounts[stored.ID] = &stored

	if err := r.save(); err != nil {
		delete(r.accounts, stored.ID)
		return nil, fmt.Errorf("failed to save: %w", err)
	}

	result := stored
	return &result, nil
}

// GetByID retrieves an account by id.
func (r *FileAccountRepository) GetByID(ctx context.Context, id int64) (*Account, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	acct, exists := r.accounts[id]
	if !exists {
		return nil, ErrAccountNotFound
	}

	copy := *acct
	return &copy, nil
}

// GetByEmail retrieves an account by email.
func (r *FileAccountRepository) GetByEmail(ctx context.Context, email string) (*Account, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, acct := range r.accounts {
		if acct.Email == email {
			copy := *acct
			return &copy, nil
		}
	}

	return nil, ErrAccountNotFound
}

// Update persists the account fields.
func (r *FileAccountRepository) Update(ctx context.Context, acct *Account) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.accounts[acct.ID]; !exists {
		return ErrAccountNotFound
	}

	stored := *acct
	r.accounts[acct.ID] = &stored

	return r.save()
}

// Delete removes an account.
func (r *FileAccountRepository) Delete(ctx context.Context, id int64) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.accounts[id]; !exists {
		return ErrAccountNotFound
	}

	delete(r.accounts, id)
	return r.save()
}

// ListStalePending returns non-admin accounts still pending verification
// that registered before the cutoff.
func (r *FileAccountRepository) ListStalePending(ctx context.Context, cutoff time.Time) ([]*Account, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var stale []*Account
	for _, acct := range r.accounts {
		if acct.VerificationPending && !acct.Admin && acct.RegisteredAt.Before(cutoff) {
			copy := *acct
			stale = append(stale, &copy)
		}
	}

	return stale, nil
}

// load reads account data from file
func (r *FileAccountRepository) load() error {
	filePath := filepath.Join(r.dataDir, "accounts.json")

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	if len(data) == 0 {
		return nil
	}

	var stored accountData
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}

	r.accounts = make(map[int64]*Account)
	for _, acct := range stored.Accounts {
		r.accounts[acct.ID] = acct
	}
	if stored.NextID > 0 {
		r.nextID = stored.NextID
	}

	return nil
}

// save writes account data to file atomically
func (r *FileAccountRepository) save() error {
	accounts := make([]*Account, 0, len(r.accounts))
	for _, acct := range r.accounts {
		accounts = append(accounts, acct)
	}

	jsonData, err := json.MarshalIndent(accountData{Accounts: accounts, NextID: r.nextID}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	tempFile := filepath.Join(r.dataDir, "accounts.json.tmp")
	if err := os.WriteFile(tempFile, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	finalFile := filepath.Join(r.dataDir, "accounts.json")
	if err := os.Rename(tempFile, finalFile); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}

	return nil
}
