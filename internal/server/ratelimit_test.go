package server

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests move the limiter through its windows.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}
}

func limiterWith(c *fakeClock, rl *RateLimiter) *RateLimiter {
	rl.now = c.now
	return rl
}

func TestRateLimiter_NoLimits(t *testing.T) {
	rl := NewRateLimiter(0, 0, 0, 0)

	for range 100 {
		require.NoError(t, rl.CheckRateLimit("a", 100))
	}
	u := rl.GetUsage("a")
	assert.Equal(t, 100, u.RequestsToday)
	assert.Equal(t, int64(10000), u.DataToday)
	assert.Equal(t, Usage{}, rl.GetUsage("unknown"))
}

func TestRateLimiter_PerMinute(t *testing.T) {
	clock := newClock()
	rl := limiterWith(clock, NewRateLimiter(2, 0, 0, 0))

	require.NoError(t, rl.CheckRateLimit("a", 0))
	clock.advance(20 * time.Second)
	require.NoError(t, rl.CheckRateLimit("a", 0))

	err := rl.CheckRateLimit("a", 0)
	var rle *RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, "minute", rle.Type)
	assert.Equal(t, 2, rle.Limit)
	assert.Equal(t, 40*time.Second, rle.RetryAfter)

	// Other clients are unaffected.
	require.NoError(t, rl.CheckRateLimit("b", 0))

	clock.advance(40 * time.Second)
	require.NoError(t, rl.CheckRateLimit("a", 0))
}

func TestRateLimiter_PerHour(t *testing.T) {
	clock := newClock()
	rl := limiterWith(clock, NewRateLimiter(0, 3, 0, 0))

	for range 3 {
		require.NoError(t, rl.CheckRateLimit("a", 0))
		clock.advance(5 * time.Minute)
	}
	err := rl.CheckRateLimit("a", 0)
	var rle *RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, "hour", rle.Type)
	assert.Equal(t, 45*time.Minute, rle.RetryAfter)

	clock.advance(45 * time.Minute)
	assert.NoError(t, rl.CheckRateLimit("a", 0))
}

func TestRateLimiter_DailyQuotas(t *testing.T) {
	clock := newClock()
	rl := limiterWith(clock, NewRateLimiter(0, 0, 2, 0))

	require.NoError(t, rl.CheckRateLimit("a", 0))
	require.NoError(t, rl.CheckRateLimit("a", 0))
	err := rl.CheckRateLimit("a", 0)
	var qe *QuotaExceededError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, "requests", qe.Type)
	assert.Equal(t, int64(2), qe.Used)
	assert.Equal(t, time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), qe.Resets)

	clock.advance(14 * time.Hour)
	assert.NoError(t, rl.CheckRateLimit("a", 0))
}

func TestRateLimiter_DataQuota(t *testing.T) {
	rl := limiterWith(newClock(), NewRateLimiter(0, 0, 0, 1000))

	require.NoError(t, rl.CheckRateLimit("a", 600))
	err := rl.CheckRateLimit("a", 500)
	var qe *QuotaExceededError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, "data", qe.Type)
	assert.Equal(t, int64(600), qe.Used)

	// The rejected upload is not counted.
	require.NoError(t, rl.CheckRateLimit("a", 400))
	assert.Equal(t, int64(1000), rl.GetUsage("a").DataToday)
}

func TestRateLimitErrors_Messages(t *testing.T) {
	rle := &RateLimitError{Type: "minute", Limit: 5, RetryAfter: 30 * time.Second}
	assert.Equal(t, "rate limit exceeded for minute (limit: 5, retry after: 30s)", rle.Error())

	qe := &QuotaExceededError{Type: "data", Limit: 10, Used: 8, Resets: time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)}
	assert.Equal(t, "quota exceeded for data (used: 8, limit: 10, resets: 2026-03-03T00:00:00Z)", qe.Error())
}
