package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/carriernest/eld-gateway/internal/config"
)

// Clock abstracts time so the gate can be tested with a fake clock.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// tokens is one refilling window of a bucket.
type tokens struct {
	capacity     float64
	available    float64
	refillPerSec float64
	last         time.Time
}

func newTokens(limit int, window time.Duration, now time.Time) tokens {
	return tokens{
		capacity:     float64(limit),
		available:    float64(limit),
		refillPerSec: float64(limit) / window.Seconds(),
		last:         now,
	}
}

func (t *tokens) refill(now time.Time) {
	elapsed := now.Sub(t.last).Seconds()
	if elapsed <= 0 {
		return
	}
	t.available += elapsed * t.refillPerSec
	if t.available > t.capacity {
		t.available = t.capacity
	}
	t.last = now
}

// wait returns how long until a token is available; zero means one can be
// taken now.
func (t *tokens) wait(now time.Time) time.Duration {
	t.refill(now)
	if t.available >= 1 {
		return 0
	}
	return time.Duration((1 - t.available) / t.refillPerSec * float64(time.Second))
}

func (t *tokens) take() {
	t.available--
}

// bucket enforces both the per-minute and per-hour limits of one provider.
type bucket struct {
	minute *tokens
	hour   *tokens
}

// Gate is a token-bucket rate limiter scoped per provider id, so that
// throttling one vendor never delays calls to another. Limits come from
// the provider config; a provider with no declared rate limit is never
// throttled.
type Gate struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limits  func(providerID string) *config.RateLimitConfig
	clock   Clock
}

// NewGate creates a gate. limits resolves the rate-limit policy for a
// provider id (nil means unthrottled). clock may be nil for wall time.
func NewGate(limits func(providerID string) *config.RateLimitConfig, clock Clock) *Gate {
	if clock == nil {
		clock = realClock{}
	}
	return &Gate{
		buckets: make(map[string]*bucket),
		limits:  limits,
		clock:   clock,
	}
}

func (g *Gate) bucketFor(providerID string, now time.Time) *bucket {
	if b, ok := g.buckets[providerID]; ok {
		return b
	}
	rl := g.limits(providerID)
	if rl == nil || (rl.RequestsPerMinute <= 0 && rl.RequestsPerHour <= 0) {
		g.buckets[providerID] = &bucket{}
		return g.buckets[providerID]
	}
	b := &bucket{}
	if rl.RequestsPerMinute > 0 {
		t := newTokens(rl.RequestsPerMinute, time.Minute, now)
		b.minute = &t
	}
	if rl.RequestsPerHour > 0 {
		t := newTokens(rl.RequestsPerHour, time.Hour, now)
		b.hour = &t
	}
	g.buckets[providerID] = b
	return b
}

// Wait blocks until the provider has a request slot in both windows, or
// ctx is cancelled.
func (g *Gate) Wait(ctx context.Context, providerID string) error {
	for {
		g.mu.Lock()
		now := g.clock.Now()
		b := g.bucketFor(providerID, now)

		var wait time.Duration
		if b.minute != nil {
			if w := b.minute.wait(now); w > wait {
				wait = w
			}
		}
		if b.hour != nil {
			if w := b.hour.wait(now); w > wait {
				wait = w
			}
		}
		if wait == 0 {
			if b.minute != nil {
				b.minute.take()
			}
			if b.hour != nil {
				b.hour.take()
			}
			g.mu.Unlock()
			return nil
		}
		g.mu.Unlock()

		if err := g.clock.Sleep(ctx, wait); err != nil {
			return err
		}
	}
}
