package ratelimit

import (
	"context"
	"fmt"

	"github.com/carriernest/eld-gateway/internal/config"
)

// QuotaError reports that a provider's shared hourly ceiling is spent.
// Callers pace themselves through the gate; this error means even waiting
// will not help until the hour rolls over.
type QuotaError struct {
	ProviderID string
	Used       int64
	Limit      int64
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s hourly quota exhausted (%d/%d)", e.ProviderID, e.Used, e.Limit)
}

// RateLimited marks the error as a quota rejection rather than a
// transport failure.
func (e *QuotaError) RateLimited() bool { return true }

// ProviderGate combines the in-process token-bucket pacing with the
// Redis-backed hourly quota shared across gateway instances. Adapters see
// a single Wait call.
type ProviderGate struct {
	gate   *Gate
	quota  *QuotaTracker
	limits func(providerID string) *config.RateLimitConfig
}

func NewProviderGate(gate *Gate, quota *QuotaTracker, limits func(providerID string) *config.RateLimitConfig) *ProviderGate {
	return &ProviderGate{gate: gate, quota: quota, limits: limits}
}

// Wait blocks until the provider has a request slot, or fails fast with a
// QuotaError when the shared hourly ceiling is already spent.
func (p *ProviderGate) Wait(ctx context.Context, providerID string) error {
	rl := p.limits(providerID)
	if rl != nil && rl.RequestsPerHour > 0 && p.quota != nil {
		res, err := p.quota.Check(ctx, providerID, int64(rl.RequestsPerHour))
		if err == nil && !res.Allowed {
			return &QuotaError{ProviderID: providerID, Used: res.Used, Limit: res.Limit}
		}
	}

	if err := p.gate.Wait(ctx, providerID); err != nil {
		return err
	}

	if p.quota != nil {
		// Best effort; the in-process gate still paces when Redis is down.
		_ = p.quota.Record(ctx, providerID, 1)
	}
	return nil
}
