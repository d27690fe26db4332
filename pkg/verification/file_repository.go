package verification

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FileTokenRepository implements TokenRepository using file-based storage
type FileTokenRepository struct {
	dataDir string
	tokens  map[uuid.UUID]*VerificationToken
	mutex   sync.RWMutex
}

// tokenData represents the structure of data stored in the JSON file
type tokenData struct {
	Tokens []*VerificationToken `json:"tokens"`
}

// NewFileTokenRepository creates a new file-based verification token repository
func NewFileTokenRepository(dataDir string) (*FileTokenRepository, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	repo := &FileTokenRepository{
		dataDir: dataDir,
		tokens:  make(map[uuid.UUID]*VerificationToken),
	}

	if err := repo.load(); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}

	return repo, nil
}

func (r *FileTokenRepository) filePath() string {
	return filepath.Join(r.dataDir, "verification_tokens.json")
}

// load reads tokens from the JSON file. Caller must hold no locks.
func (r *FileTokenRepository) load() error {
	data, err := os.ReadFile(r.filePath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var stored tokenData
	if err := json.Unmarshal(data, &stored); err != nil {
		return err
	}

	for _, vt := range stored.Tokens {
		r.tokens[vt.ID] = vt
	}
	return nil
}

// save writes tokens to the JSON file. Caller must hold the write lock.
func (r *FileTokenRepository) save() error {
	stored := tokenData{Tokens: make([]*VerificationToken, 0, len(r.tokens))}
	for _, vt := range r.tokens {
		stored.Tokens = append(stored.Tokens, vt)
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

// Create inserts a token, replacing unconsumed tokens for the same
// (owner, email, type).
func (r *FileTokenRepository) Create(ctx context.Context, params CreateTokenParams) (*VerificationToken, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for id, vt := range r.tokens {
		if vt.OwnerID == params.OwnerID && vt.Email == params.Email && vt.Type == params.Type && vt.VerifiedAt == nil {
			delete(r.tokens, id)
		}
	}

	vt := &VerificationToken{
		ID:        uuid.New(),
		OwnerID:   params.OwnerID,
		Email:     params.Email,
		Type:      params.Type,
		Token:     params.Token,
		OTPCode:   params.OTPCode,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: params.ExpiresAt,
	}
	r.tokens[vt.ID] = vt

	if err := r.save(); err != nil {
		delete(r.tokens, vt.ID)
		return nil, fmt.Errorf("failed to save: %w", err)
	}

	vtCopy := *vt
	return &vtCopy, nil
}

// GetByToken retrieves a token by its link secret
func (r *FileTokenRepository) GetByToken(ctx context.Context, token string) (*VerificationToken, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, vt := range r.tokens {
		if vt.Token == token {
			vtCopy := *vt
			return &vtCopy, nil
		}
	}
	return nil, ErrTokenNotFound
}

// GetLatestUnconsumedByEmail retrieves the newest unconsumed token for an email
func (r *FileTokenRepository) GetLatestUnconsumedByEmail(ctx context.Context, email string) (*VerificationToken, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var latest *VerificationToken
	for _, vt := range r.tokens {
		if vt.Email != email || vt.VerifiedAt != nil {
			continue
		}
		if latest == nil || vt.CreatedAt.After(latest.CreatedAt) {
			latest = vt
		}
	}
	if latest == nil {
		return nil, ErrNoPendingVerification
	}

	vtCopy := *latest
	return &vtCopy, nil
}

// MarkVerified stamps a token consumed
func (r *FileTokenRepository) MarkVerified(ctx context.Context, id uuid.UUID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	vt, exists := r.tokens[id]
	if !exists {
		return ErrTokenNotFound
	}
	if vt.VerifiedAt != nil {
		return nil
	}

	now := time.Now().UTC()
	vt.VerifiedAt = &now
	if err := r.save(); err != nil {
		vt.VerifiedAt = nil
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

// IncrementAttempts bumps the attempt counter and returns the new count
func (r *FileTokenRepository) IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	vt, exists := r.tokens[id]
	if !exists {
		return 0, ErrTokenNotFound
	}

	vt.OTPAttempts++
	if err := r.save(); err != nil {
		vt.OTPAttempts--
		return 0, fmt.Errorf("failed to save: %w", err)
	}
	return vt.OTPAttempts, nil
}

// DeleteExpiredUnconsumed removes expired tokens that were never redeemed
func (r *FileTokenRepository) DeleteExpiredUnconsumed(ctx context.Context, before time.Time) (int64, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var deleted int64
	for id, vt := range r.tokens {
		if vt.VerifiedAt == nil && vt.ExpiresAt.Before(before) {
			delete(r.tokens, id)
			deleted++
		}
	}

	if deleted > 0 {
		if err := r.save(); err != nil {
			return 0, fmt.Errorf("failed to save: %w", err)
		}
	}
	return deleted, nil
}
