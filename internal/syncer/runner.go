package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/carriernest/eld-gateway/internal/config"
	"github.com/carriernest/eld-gateway/internal/eld"
	"github.com/carriernest/eld-gateway/internal/store"
	"github.com/carriernest/eld-gateway/internal/telemetry"
	"github.com/carriernest/eld-gateway/internal/types"
)

// ErrSyncInProgress is returned when a manual trigger lands while the
// carrier's sync is already queued or running.
var ErrSyncInProgress = errors.New("sync already in progress")

// Status is the operational view of a carrier's sync, served by
// GET /api/eld/manual-sync.
type Status struct {
	Status           string  `json:"status"`
	LastSyncAt       *string `json:"lastSyncAt"`
	ErrorMessage     *string `json:"errorMessage"`
	NextSyncEstimate *string `json:"nextSyncEstimate"`
}

// ConnectionSource is the slice of the connection store the runner
// reads and writes.
type ConnectionSource interface {
	Get(ctx context.Context, carrierID string) (*store.Connection, error)
	List(ctx context.Context) ([]*store.Connection, error)
	SetSyncStatus(ctx context.Context, carrierID, status string, errorMessage *string, lastSyncAt *time.Time) error
}

// Runner executes scheduled and manually-triggered syncs. All syncs for a
// carrier funnel through one goroutine, so at most one sync per carrier
// runs at a time.
type Runner struct {
	connections ConnectionSource
	registry    *eld.Registry
	health      *eld.HealthTracker
	metrics     *telemetry.Metrics
	cfg         func() *config.Config
	logger      *slog.Logger

	trigger chan string

	mu      sync.Mutex
	pending map[string]bool
	nextRun time.Time
}

func NewRunner(connections ConnectionSource, registry *eld.Registry, health *eld.HealthTracker, metrics *telemetry.Metrics, cfg func() *config.Config, logger *slog.Logger) *Runner {
	return &Runner{
		connections: connections,
		registry:    registry,
		health:      health,
		metrics:     metrics,
		cfg:         cfg,
		logger:      logger,
		trigger:     make(chan string, 16),
		pending:     make(map[string]bool),
	}
}

// Trigger enqueues a manual sync for a carrier. Returns ErrSyncInProgress
// if one is already queued or running.
func (r *Runner) Trigger(carrierID string) error {
	r.mu.Lock()
	if r.pending[carrierID] {
		r.mu.Unlock()
		return ErrSyncInProgress
	}
	r.pending[carrierID] = true
	r.mu.Unlock()

	select {
	case r.trigger <- carrierID:
		return nil
	default:
		r.mu.Lock()
		delete(r.pending, carrierID)
		r.mu.Unlock()
		return ErrSyncInProgress
	}
}

// Status reports the carrier's sync state from the connection record plus
// the scheduler's next planned run.
func (r *Runner) Status(ctx context.Context, carrierID string) (*Status, error) {
	conn, err := r.connections.Get(ctx, carrierID)
	if err != nil {
		return nil, err
	}

	st := &Status{
		Status:       conn.SyncStatus,
		ErrorMessage: conn.ErrorMessage,
	}
	if conn.LastSyncAt != nil {
		s := conn.LastSyncAt.UTC().Format(time.RFC3339)
		st.LastSyncAt = &s
	}

	r.mu.Lock()
	if r.pending[carrierID] {
		st.Status = store.SyncPending
	}
	if !r.nextRun.IsZero() {
		s := r.nextRun.UTC().Format(time.RFC3339)
		st.NextSyncEstimate = &s
	}
	r.mu.Unlock()

	return st, nil
}

// Run drives scheduled syncs and drains manual triggers until ctx is
// cancelled.
func (r *Runner) Run(ctx context.Context) {
	interval := r.cfg().Sync.Interval
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.mu.Lock()
	r.nextRun = time.Now().Add(interval)
	r.mu.Unlock()

	r.logger.Info("sync scheduler started", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("sync scheduler stopped")
			return
		case carrierID := <-r.trigger:
			r.syncOne(ctx, carrierID, "manual")
		case <-ticker.C:
			r.mu.Lock()
			r.nextRun = time.Now().Add(interval)
			r.mu.Unlock()
			r.syncAllCarriers(ctx)
		}
	}
}

func (r *Runner) syncAllCarriers(ctx context.Context) {
	conns, err := r.connections.List(ctx)
	if err != nil {
		r.logger.Error("failed to list connections for sync", "error", err)
		return
	}
	for _, conn := range conns {
		if ctx.Err() != nil {
			return
		}
		r.syncConnection(ctx, conn, "scheduled")
	}
}

func (r *Runner) syncOne(ctx context.Context, carrierID, trigger string) {
	defer func() {
		r.mu.Lock()
		delete(r.pending, carrierID)
		r.mu.Unlock()
	}()

	conn, err := r.connections.Get(ctx, carrierID)
	if err != nil {
		r.logger.Error("failed to load connection for sync", "carrier", carrierID, "error", err)
		return
	}
	r.syncConnection(ctx, conn, trigger)
}

// syncParams builds the default sync window from config.
func (r *Runner) syncParams() *types.QueryParams {
	cfg := r.cfg().Sync
	days := cfg.WindowDays
	if days <= 0 {
		days = 7
	}
	now := time.Now().UTC()
	return &types.QueryParams{
		StartDate: now.AddDate(0, 0, -days).Format("2006-01-02"),
		EndDate:   now.Format("2006-01-02"),
		Limit:     cfg.RecordLimit,
	}
}

func (r *Runner) syncConnection(ctx context.Context, conn *store.Connection, trigger string) {
	if !r.health.IsAvailable(conn.ProviderID) {
		r.logger.Warn("skipping sync, provider circuit open", "carrier", conn.CarrierID, "provider", conn.ProviderID)
		return
	}

	adapter, err := r.registry.New(conn.ProviderID, conn.Credentials)
	if err != nil {
		// Connection references a provider that is no longer configured.
		msg := err.Error()
		if serr := r.connections.SetSyncStatus(ctx, conn.CarrierID, store.SyncError, &msg, nil); serr != nil {
			r.logger.Error("failed to record sync status", "carrier", conn.CarrierID, "error", serr)
		}
		r.logger.Error("sync skipped", "carrier", conn.CarrierID, "error", err)
		return
	}

	start := time.Now()
	result := adapter.SyncAll(ctx, r.syncParams())

	if result.Success {
		r.health.RecordSuccess(conn.ProviderID)
	} else if eld.SyncFault(result.Errors) {
		r.health.RecordFailure(conn.ProviderID)
	}
	if r.metrics != nil {
		r.metrics.RecordSync(conn.ProviderID, trigger, result.Success,
			result.RecordsSynced.Drivers, result.RecordsSynced.Vehicles,
			result.RecordsSynced.Logs, result.RecordsSynced.Violations)
	}

	now := time.Now().UTC()
	status := store.SyncSuccess
	var errMsg *string
	if !result.Success {
		status = store.SyncError
		msg := "sync failed"
		if len(result.Errors) > 0 {
			msg = strings.Join(result.Errors, "; ")
		}
		errMsg = &msg
	} else if len(result.Errors) > 0 {
		// Partial success still counts, but keep the category errors visible.
		msg := fmt.Sprintf("partial: %s", strings.Join(result.Errors, "; "))
		errMsg = &msg
	}

	if err := r.connections.SetSyncStatus(ctx, conn.CarrierID, status, errMsg, &now); err != nil {
		r.logger.Error("failed to record sync status", "carrier", conn.CarrierID, "error", err)
	}

	r.logger.Info("sync completed",
		"carrier", conn.CarrierID,
		"provider", conn.ProviderID,
		"trigger", trigger,
		"success", result.Success,
		"drivers", result.RecordsSynced.Drivers,
		"vehicles", result.RecordsSynced.Vehicles,
		"logs", result.RecordsSynced.Logs,
		"violations", result.RecordsSynced.Violations,
		"errors", len(result.Errors),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
