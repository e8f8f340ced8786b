package export

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateDecision is the outcome of a rate-limit check.
type RateDecision struct {
	Allowed   bool `json:"allowed"`
	Remaining int  `json:"remaining"`
}

// CheckRateLimit applies the fixed per-user-per-hour quota to a counter value.
func CheckRateLimit(currentCount, maxPerHour int) RateDecision {
	remaining := maxPerHour - currentCount
	if remaining < 0 {
		remaining = 0
	}
	return RateDecision{Allowed: remaining > 0, Remaining: remaining}
}

// Limiter counts exports per user per clock hour in Redis. The counter key
// carries the hour window so stale windows expire on their own.
type Limiter struct {
	rdb        *redis.Client
	maxPerHour int
	now        func() time.Time
}

// NewLimiter builds a Limiter. The clock is injectable for tests.
func NewLimiter(rdb *redis.Client, maxPerHour int, now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	return &Limiter{rdb: rdb, maxPerHour: maxPerHour, now: now}
}

func (l *Limiter) key(userID string) string {
	return fmt.Sprintf("export:rate:%s:%s", userID, l.now().UTC().Format("2006010215"))
}

// Take atomically increments the user's counter for the current hour and
// returns the decision. The increment happens before the comparison so
// concurrent requests cannot both pass a check-then-increment gap.
func (l *Limiter) Take(ctx context.Context, userID string) (RateDecision, error) {
	key := l.key(userID)
	pipe := l.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 2*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return RateDecision{}, fmt.Errorf("export: rate counter: %w", err)
	}
	count := int(incr.Val())
	return CheckRateLimit(count-1, l.maxPerHour), nil
}
