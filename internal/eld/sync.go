package eld

import (
	"context"
	"time"

	"github.com/carriernest/eld-gateway/internal/types"
)

// syncAll aggregates the four category fetches into one SyncResult.
// Categories fail independently: a failed category contributes a zero
// count and an error entry, and the overall sync succeeds as long as at
// least one category came back. Consumers always get whatever data was
// available.
func syncAll(ctx context.Context, a ProviderAdapter, params *types.QueryParams) *types.SyncResult {
	result := &types.SyncResult{
		ProviderID: a.ProviderID(),
		SyncedAt:   time.Now().UTC().Format(time.RFC3339),
	}

	succeeded := 0

	if resp := a.GetDrivers(ctx, params); resp.Success {
		result.RecordsSynced.Drivers = len(resp.Data)
		succeeded++
	} else {
		result.Errors = append(result.Errors, "drivers: "+firstError(resp.Errors))
	}

	if resp := a.GetVehicles(ctx, params); resp.Success {
		result.RecordsSynced.Vehicles = len(resp.Data)
		succeeded++
	} else {
		result.Errors = append(result.Errors, "vehicles: "+firstError(resp.Errors))
	}

	if resp := a.GetLogs(ctx, params); resp.Success {
		result.RecordsSynced.Logs = len(resp.Data)
		succeeded++
	} else {
		result.Errors = append(result.Errors, "logs: "+firstError(resp.Errors))
	}

	if resp := a.GetViolations(ctx, params); resp.Success {
		result.RecordsSynced.Violations = len(resp.Data)
		succeeded++
	} else {
		result.Errors = append(result.Errors, "violations: "+firstError(resp.Errors))
	}

	result.Success = succeeded > 0
	return result
}

func firstError(errs []types.ResponseError) string {
	if len(errs) == 0 {
		return "unknown error"
	}
	return errs[0].Code + " " + errs[0].Message
}
