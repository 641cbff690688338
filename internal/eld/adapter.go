package eld

import (
	"context"

	"github.com/carriernest/eld-gateway/internal/types"
)

// ProviderAdapter is the uniform operation set every ELD vendor integration
// implements. Fetch operations never return a Go error: expected failures
// (bad credentials, provider downtime, upstream errors) are carried inside
// the normalized envelope so callers always get a usable result.
type ProviderAdapter interface {
	ProviderID() string

	// Capabilities is pure and performs no I/O.
	Capabilities() types.ProviderCapabilities

	// TestConnection probes the provider with a lightweight authenticated
	// call and reports round-trip latency. It never panics or errors; all
	// failures resolve to Success=false with a message.
	TestConnection(ctx context.Context) *types.ConnectionTestResult

	GetDrivers(ctx context.Context, params *types.QueryParams) *types.NormalizedResponse[[]types.Driver]
	GetDriverByID(ctx context.Context, driverID string) *types.NormalizedResponse[*types.Driver]
	GetVehicles(ctx context.Context, params *types.QueryParams) *types.NormalizedResponse[[]types.Vehicle]
	GetVehicleByID(ctx context.Context, vehicleID string) *types.NormalizedResponse[*types.Vehicle]
	GetLogs(ctx context.Context, params *types.QueryParams) *types.NormalizedResponse[[]types.LogEntry]
	GetLogsByDriver(ctx context.Context, driverID string, params *types.QueryParams) *types.NormalizedResponse[[]types.LogEntry]
	GetViolations(ctx context.Context, params *types.QueryParams) *types.NormalizedResponse[[]types.Violation]

	// SyncAll aggregates all four categories into one operation with the
	// soft-failure policy: success iff at least one category succeeded.
	SyncAll(ctx context.Context, params *types.QueryParams) *types.SyncResult
}

// RateGate throttles outbound provider calls per provider id. Wait blocks
// until a request slot is available or ctx is cancelled.
type RateGate interface {
	Wait(ctx context.Context, providerID string) error
}
