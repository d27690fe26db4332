package checkout

import (
	"crypto/subtle"
	"sync"
	"time"
)

// DefaultPendingTTL is how long a guest pre-account record lives.
const DefaultPendingTTL = time.Hour

// PendingCheckout is a short-lived record for a guest who started
// verification before having an account. It is keyed by email and
// distinct from the durable verification tokens: once the guest
// verifies or the TTL lapses, the record is gone.
type PendingCheckout struct {
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
	Verified  bool      `json:"verified"`
}

// PendingCheckoutStore holds guest pending-checkout records in memory.
// Records expire on read and a background prune clears abandoned ones.
type PendingCheckoutStore struct {
	records map[string]*PendingCheckout
	ttl     time.Duration
	now     func() time.Time
	mu      sync.Mutex
}

// NewPendingCheckoutStore creates a store with the given record TTL
// (0 uses DefaultPendingTTL).
func NewPendingCheckoutStore(ttl time.Duration) *PendingCheckoutStore {
	if ttl <= 0 {
		ttl = DefaultPendingTTL
	}
	return &PendingCheckoutStore{
		records: make(map[string]*PendingCheckout),
		ttl:     ttl,
		now:     time.Now,
	}
}

// SetClock overrides the store's time source. Intended for tests.
func (s *PendingCheckoutStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Put creates or replaces the record for an email. A replaced record
// loses its verified state; the new token is the one that counts.
func (s *PendingCheckoutStore) Put(email, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[email] = &PendingCheckout{
		Email:     email,
		Token:     token,
		CreatedAt: s.now().UTC(),
	}
}

// Get returns the live record for an email, expiring it if stale.
func (s *PendingCheckoutStore) Get(email string) (*PendingCheckout, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.records[email]
	if !exists {
		return nil, false
	}
	if s.now().UTC().Sub(rec.CreatedAt) > s.ttl {
		delete(s.records, email)
		return nil, false
	}

	recCopy := *rec
	return &recCopy, true
}

// MatchToken compares a presented token against the record in constant
// time. A missing or expired record never matches.
func (s *PendingCheckoutStore) MatchToken(email, token string) bool {
	rec, ok := s.Get(email)
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(rec.Token), []byte(token)) == 1
}

// MarkVerified flips the record for an email to verified.
func (s *PendingCheckoutStore) MarkVerified(email string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.records[email]
	if !exists {
		return false
	}
	if s.now().UTC().Sub(rec.CreatedAt) > s.ttl {
		delete(s.records, email)
		return false
	}

	rec.Verified = true
	return true
}

// Delete removes the record for an email.
func (s *PendingCheckoutStore) Delete(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, email)
}

// Prune removes expired records and returns how many went away.
func (s *PendingCheckoutStore) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	pruned := 0
	for email, rec := range s.records {
		if now.Sub(rec.CreatedAt) > s.ttl {
			delete(s.records, email)
			pruned++
		}
	}
	return pruned
}
