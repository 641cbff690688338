package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// QuotaResult is the outcome of an hourly quota check.
type QuotaResult struct {
	Allowed bool
	Used    int64
	Limit   int64
}

// QuotaTracker counts provider API calls per hour in Redis so the
// requests_per_hour policy holds across gateway instances. The in-process
// Gate handles short-window pacing; this is the shared hourly ceiling.
type QuotaTracker struct {
	rdb *redis.Client
}

// NewQuotaTracker creates a quota tracker. If rdb is nil, all checks pass.
func NewQuotaTracker(rdb *redis.Client) *QuotaTracker {
	return &QuotaTracker{rdb: rdb}
}

func hourlyQuotaKey(providerID string) string {
	hour := time.Now().UTC().Format("2006-01-02T15")
	return fmt.Sprintf("eld:quota:hourly:%s:%s", providerID, hour)
}

// Check reports whether the provider is under its hourly call ceiling.
func (q *QuotaTracker) Check(ctx context.Context, providerID string, limit int64) (QuotaResult, error) {
	if q.rdb == nil || limit <= 0 {
		return QuotaResult{Allowed: true, Limit: limit}, nil
	}

	used, err := q.rdb.Get(ctx, hourlyQuotaKey(providerID)).Int64()
	if err != nil && err != redis.Nil {
		// Fail open on Redis errors
		return QuotaResult{Allowed: true, Limit: limit}, nil
	}

	return QuotaResult{
		Allowed: used < limit,
		Used:    used,
		Limit:   limit,
	}, nil
}

// Record adds calls to the provider's hourly counter.
func (q *QuotaTracker) Record(ctx context.Context, providerID string, calls int64) error {
	if q.rdb == nil || calls <= 0 {
		return nil
	}

	key := hourlyQuotaKey(providerID)
	pipe := q.rdb.Pipeline()
	pipe.IncrBy(ctx, key, calls)
	// Keep the counter one full hour past its window
	pipe.Expire(ctx, key, 2*time.Hour)
	_, err := pipe.Exec(ctx)
	return err
}
