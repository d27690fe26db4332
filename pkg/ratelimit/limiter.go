package ratelimit

import (
	"sync"
	"time"
)

// hourBucketFormat keys the per-hour counter. Buckets roll over on UTC
// clock-hour boundaries, not on a sliding window.
const hourBucketFormat = "2006010215"

// resendEntry tracks resend activity for a single key.
type resendEntry struct {
	lastSent time.Time // last recorded send
	bucket   string    // UTC clock-hour bucket of the counter
	count    int       // sends recorded in the current bucket
}

// ResendLimiter throttles verification email resends per key. A resend
// is allowed only when the minimum interval since the previous send has
// elapsed and the per-hour ceiling has not been reached.
type ResendLimiter struct {
	entries     map[string]*resendEntry
	minInterval time.Duration
	maxPerHour  int
	ttl         time.Duration // Time to keep inactive entries in memory
	now         func() time.Time
	mu          sync.Mutex
}

// NewResendLimiter creates a new resend limiter.
// minInterval: minimum gap between two sends for the same key
// maxPerHour: maximum sends per key per UTC clock hour
// ttl: time to keep inactive entries in memory (0 = forever)
func NewResendLimiter(minInterval time.Duration, maxPerHour int, ttl time.Duration) *ResendLimiter {
	rl := &ResendLimiter{
		entries:     make(map[string]*resendEntry),
		minInterval: minInterval,
		maxPerHour:  maxPerHour,
		ttl:         ttl,
		now:         time.Now,
	}

	// Start cleanup goroutine if TTL is set
	if ttl > 0 {
		go rl.cleanup()
	}

	return rl
}

// SetClock overrides the limiter's time source. Intended for tests.
func (rl *ResendLimiter) SetClock(now func() time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.now = now
}

// Allow reports whether a resend for the given key may proceed now.
// It does not record anything; call Record after the send succeeds.
func (rl *ResendLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, exists := rl.entries[key]
	if !exists {
		return true
	}

	now := rl.now()
	if now.Sub(entry.lastSent) < rl.minInterval {
		return false
	}

	// The counter only binds within its own clock-hour bucket
	if entry.bucket == now.UTC().Format(hourBucketFormat) && entry.count >= rl.maxPerHour {
		return false
	}

	return true
}

// RetryAfter returns how long the caller must wait before the next
// resend for the key is allowed. Zero means a resend is allowed now.
func (rl *ResendLimiter) RetryAfter(key string) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, exists := rl.entries[key]
	if !exists {
		return 0
	}

	now := rl.now()
	if wait := rl.minInterval - now.Sub(entry.lastSent); wait > 0 {
		return wait
	}

	if entry.bucket == now.UTC().Format(hourBucketFormat) && entry.count >= rl.maxPerHour {
		// Blocked until the next clock hour starts
		next := now.UTC().Truncate(time.Hour).Add(time.Hour)
		return next.Sub(now)
	}

	return 0
}

// Record registers a completed send for the key, starting a fresh
// counter when the clock hour has rolled over.
func (rl *ResendLimiter) Record(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	bucket := now.UTC().Format(hourBucketFormat)

	entry, exists := rl.entries[key]
	if !exists || entry.bucket != bucket {
		rl.entries[key] = &resendEntry{lastSent: now, bucket: bucket, count: 1}
		return
	}

	entry.lastSent = now
	entry.count++
}

// Reset clears the recorded activity for a specific key.
func (rl *ResendLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.entries, key)
}

// cleanup periodically removes inactive entries
func (rl *ResendLimiter) cleanup() {
	ticker := time.NewTicker(rl.ttl)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		now := rl.now()
		for key, entry := range rl.entries {
			// Remove entry if it hasn't been used recently
			if now.Sub(entry.lastSent) > rl.ttl {
				delete(rl.entries, key)
			}
		}
		rl.mu.Unlock()
	}
}

// Stats returns statistics about the limiter
type Stats struct {
	ActiveKeys  int
	MinInterval time.Duration
	MaxPerHour  int
}

// GetStats returns current statistics
func (rl *ResendLimiter) GetStats() Stats {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return Stats{
		ActiveKeys:  len(rl.entries),
		MinInterval: rl.minInterval,
		MaxPerHour:  rl.maxPerHour,
	}
}
