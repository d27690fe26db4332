package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestResendLimiterFirstSendAllowed(t *testing.T) {
	rl := NewResendLimiter(60*time.Second, 5, 0)
	assert.True(t, rl.Allow("acct:1"))
	assert.Equal(t, time.Duration(0), rl.RetryAfter("acct:1"))
}

func TestResendLimiterMinInterval(t *testing.T) {
	rl := NewResendLimiter(60*time.Second, 5, 0)

	base := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	rl.SetClock(fixedClock(base))
	rl.Record("acct:1")

	rl.SetClock(fixedClock(base.Add(30 * time.Second)))
	assert.False(t, rl.Allow("acct:1"), "30s since last send is inside the interval")
	assert.Equal(t, 30*time.Second, rl.RetryAfter("acct:1"))

	rl.SetClock(fixedClock(base.Add(60 * time.Second)))
	assert.True(t, rl.Allow("acct:1"))

	// Other keys are unaffected
	assert.True(t, rl.Allow("acct:2"))
}

func TestResendLimiterHourlyCeiling(t *testing.T) {
	rl := NewResendLimiter(60*time.Second, 5, 0)

	base := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		rl.SetClock(fixedClock(base.Add(time.Duration(i) * 2 * time.Minute)))
		assert.True(t, rl.Allow("acct:1"))
		rl.Record("acct:1")
	}

	// Five sends recorded at 14:08; well past the interval but the
	// hourly ceiling now blocks.
	at := base.Add(30 * time.Minute)
	rl.SetClock(fixedClock(at))
	assert.False(t, rl.Allow("acct:1"))
	assert.Equal(t, 30*time.Minute, rl.RetryAfter("acct:1"))
}

func TestResendLimiterBucketRollsOverOnClockHour(t *testing.T) {
	rl := NewResendLimiter(60*time.Second, 5, 0)

	base := time.Date(2025, 3, 10, 14, 50, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		rl.SetClock(fixedClock(base.Add(time.Duration(i) * time.Minute)))
		rl.Record("acct:1")
	}

	rl.SetClock(fixedClock(time.Date(2025, 3, 10, 14, 59, 0, 0, time.UTC)))
	assert.False(t, rl.Allow("acct:1"))

	// 15:00 starts a fresh bucket even though the previous five sends
	// happened minutes ago.
	rl.SetClock(fixedClock(time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)))
	assert.True(t, rl.Allow("acct:1"))

	rl.Record("acct:1")
	stats := rl.GetStats()
	assert.Equal(t, 1, stats.ActiveKeys)
}

func TestResendLimiterReset(t *testing.T) {
	rl := NewResendLimiter(60*time.Second, 5, 0)

	base := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	rl.SetClock(fixedClock(base))
	rl.Record("acct:1")
	assert.False(t, rl.Allow("acct:1"))

	rl.Reset("acct:1")
	assert.True(t, rl.Allow("acct:1"))
}

func TestResendLimiterRecordResetsCountOnNewBucket(t *testing.T) {
	rl := NewResendLimiter(time.Second, 2, 0)

	rl.SetClock(fixedClock(time.Date(2025, 3, 10, 14, 58, 0, 0, time.UTC)))
	rl.Record("k")
	rl.SetClock(fixedClock(time.Date(2025, 3, 10, 14, 59, 0, 0, time.UTC)))
	rl.Record("k")
	assert.False(t, rl.Allow("k"))

	rl.SetClock(fixedClock(time.Date(2025, 3, 10, 15, 1, 0, 0, time.UTC)))
	rl.Record("k")
	rl.SetClock(fixedClock(time.Date(2025, 3, 10, 15, 2, 0, 0, time.UTC)))
	assert.True(t, rl.Allow("k"), "count restarted in the new hour")
}
