package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/carriernest/eld-gateway/internal/eld"
	"github.com/carriernest/eld-gateway/internal/httputil"
	"github.com/carriernest/eld-gateway/internal/store"
	"github.com/carriernest/eld-gateway/internal/syncer"
	"github.com/carriernest/eld-gateway/internal/telemetry"
	"github.com/carriernest/eld-gateway/internal/types"
)

const carrierHeader = "X-Carrier-ID"

// Handler holds dependencies for the /api/eld HTTP surface.
type Handler struct {
	registry    *eld.Registry
	health      *eld.HealthTracker
	connections *store.ConnectionStore
	runner      *syncer.Runner
	metrics     *telemetry.Metrics
}

func NewHandler(registry *eld.Registry, health *eld.HealthTracker, connections *store.ConnectionStore, runner *syncer.Runner, metrics *telemetry.Metrics) *Handler {
	return &Handler{
		registry:    registry,
		health:      health,
		connections: connections,
		runner:      runner,
		metrics:     metrics,
	}
}

// Routes mounts all ELD endpoints on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/providers", h.ListProviders)
	r.Post("/test-connection", h.TestConnection)
	r.Post("/sync", h.Sync)

	r.Get("/connections", h.GetConnection)
	r.Post("/connections", h.CreateConnection)
	r.Delete("/connections", h.DeleteConnection)

	r.Post("/manual-sync", h.TriggerManualSync)
	r.Get("/manual-sync", h.SyncStatus)

	r.Get("/{providerID}/drivers", h.resourceHandler(resourceDrivers))
	r.Get("/{providerID}/vehicles", h.resourceHandler(resourceVehicles))
	r.Get("/{providerID}/logs", h.resourceHandler(resourceLogs))
	r.Get("/{providerID}/violations", h.resourceHandler(resourceViolations))
}

// ListProviders handles GET /api/eld/providers
func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.registry.Descriptors())
}

type testConnectionRequest struct {
	ProviderID  string            `json:"providerId"`
	Credentials types.Credentials `json:"credentials"`
}

// TestConnection handles POST /api/eld/test-connection. The probe result
// is always a 200; a failed probe is carried inside the result, not as an
// HTTP error.
func (h *Handler) TestConnection(w http.ResponseWriter, r *http.Request) {
	var req testConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid JSON body")
		return
	}
	if req.ProviderID == "" {
		httputil.WriteBadRequest(w, "providerId is required")
		return
	}

	adapter, err := h.registry.New(req.ProviderID, req.Credentials)
	if err != nil {
		httputil.WriteNotFound(w, err.Error())
		return
	}

	start := time.Now()
	result := adapter.TestConnection(r.Context())
	elapsed := time.Since(start)

	if h.metrics != nil {
		h.metrics.RecordConnectionTest(req.ProviderID, result.Success)
		h.metrics.RecordProviderRequest(req.ProviderID, "test_connection", result.Success, float64(elapsed.Milliseconds()))
	}
	slog.Info("connection test",
		"provider", req.ProviderID,
		"success", result.Success,
		"duration_ms", elapsed.Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusOK, result)
}

type syncRequest struct {
	ProviderID  string             `json:"providerId"`
	Credentials types.Credentials  `json:"credentials"`
	Params      *types.QueryParams `json:"params,omitempty"`
	SyncType    string             `json:"syncType,omitempty"`
}

// Sync handles POST /api/eld/sync. syncType selects a full sync or a
// single category.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid JSON body")
		return
	}
	if req.ProviderID == "" {
		httputil.WriteBadRequest(w, "providerId is required")
		return
	}
	if req.SyncType == "" {
		req.SyncType = "full"
	}

	adapter, err := h.registry.New(req.ProviderID, req.Credentials)
	if err != nil {
		httputil.WriteNotFound(w, err.Error())
		return
	}

	if !h.health.IsAvailable(req.ProviderID) {
		httputil.WriteServiceUnavailable(w, "Provider temporarily unavailable")
		return
	}

	start := time.Now()
	var payload any
	var success, fault bool

	switch req.SyncType {
	case "full":
		result := adapter.SyncAll(r.Context(), req.Params)
		payload, success, fault = result, result.Success, eld.SyncFault(result.Errors)
		if h.metrics != nil {
			h.metrics.RecordSync(req.ProviderID, "api", result.Success,
				result.RecordsSynced.Drivers, result.RecordsSynced.Vehicles,
				result.RecordsSynced.Logs, result.RecordsSynced.Violations)
		}
	case "drivers":
		resp := adapter.GetDrivers(r.Context(), req.Params)
		payload, success, fault = resp, resp.Success, eld.ProviderFault(resp.Errors)
	case "vehicles":
		resp := adapter.GetVehicles(r.Context(), req.Params)
		payload, success, fault = resp, resp.Success, eld.ProviderFault(resp.Errors)
	case "logs":
		resp := adapter.GetLogs(r.Context(), req.Params)
		payload, success, fault = resp, resp.Success, eld.ProviderFault(resp.Errors)
	case "violations":
		resp := adapter.GetViolations(r.Context(), req.Params)
		payload, success, fault = resp, resp.Success, eld.ProviderFault(resp.Errors)
	default:
		httputil.WriteBadRequest(w, "syncType must be one of full, drivers, vehicles, logs, violations")
		return
	}

	h.recordOutcome(req.ProviderID, "sync_"+req.SyncType, success, fault, time.Since(start))
	httputil.WriteJSON(w, http.StatusOK, payload)
}

type resourceKind int

const (
	resourceDrivers resourceKind = iota
	resourceVehicles
	resourceLogs
	resourceViolations
)

func (k resourceKind) String() string {
	switch k {
	case resourceDrivers:
		return "drivers"
	case resourceVehicles:
		return "vehicles"
	case resourceLogs:
		return "logs"
	default:
		return "violations"
	}
}

// resourceHandler serves GET /api/eld/{providerID}/<resource>. The
// adapter envelope is passed through as the response payload; an
// envelope-level failure maps to 502 so the UI's error path fires.
func (h *Handler) resourceHandler(kind resourceKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID := chi.URLParam(r, "providerID")

		creds, err := credentialsFromHeader(r)
		if err != nil {
			httputil.WriteUnauthorized(w, "Missing or invalid credentials header")
			return
		}

		adapter, err := h.registry.New(providerID, creds)
		if err != nil {
			httputil.WriteNotFound(w, err.Error())
			return
		}

		if !h.health.IsAvailable(providerID) {
			httputil.WriteServiceUnavailable(w, "Provider temporarily unavailable")
			return
		}

		params := queryParamsFromRequest(r)
		start := time.Now()

		var payload any
		var success bool
		var errs []types.ResponseError

		switch kind {
		case resourceDrivers:
			resp := adapter.GetDrivers(r.Context(), params)
			payload, success, errs = resp, resp.Success, resp.Errors
		case resourceVehicles:
			resp := adapter.GetVehicles(r.Context(), params)
			payload, success, errs = resp, resp.Success, resp.Errors
		case resourceLogs:
			resp := adapter.GetLogs(r.Context(), params)
			payload, success, errs = resp, resp.Success, resp.Errors
		case resourceViolations:
			resp := adapter.GetViolations(r.Context(), params)
			payload, success, errs = resp, resp.Success, resp.Errors
		}

		h.recordOutcome(providerID, kind.String(), success, eld.ProviderFault(errs), time.Since(start))

		if !success {
			msg := "Provider request failed"
			details := ""
			if len(errs) > 0 {
				msg = errs[0].Code
				details = errs[0].Message
			}
			httputil.WriteError(w, http.StatusBadGateway, msg, details)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, payload)
	}
}

// recordOutcome feeds the circuit breaker and metrics. Only failures the
// provider actually caused count against its circuit; pre-flight
// rejections such as missing credentials record neither success nor
// failure.
func (h *Handler) recordOutcome(providerID, operation string, success, providerFault bool, elapsed time.Duration) {
	if success {
		h.health.RecordSuccess(providerID)
	} else if providerFault {
		h.health.RecordFailure(providerID)
	}
	if h.metrics != nil {
		h.metrics.RecordProviderRequest(providerID, operation, success, float64(elapsed.Milliseconds()))
	}
}

// GetConnection handles GET /api/eld/connections
func (h *Handler) GetConnection(w http.ResponseWriter, r *http.Request) {
	carrierID := r.Header.Get(carrierHeader)
	if carrierID == "" {
		httputil.WriteBadRequest(w, "X-Carrier-ID header is required")
		return
	}

	conn, err := h.connections.Get(r.Context(), carrierID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httputil.WriteJSON(w, http.StatusOK, nil)
			return
		}
		slog.Error("failed to load connection", "carrier", carrierID, "error", err)
		httputil.WriteInternalError(w, "Failed to load connection", "")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, conn)
}

type createConnectionRequest struct {
	ProviderID   string            `json:"providerId"`
	ProviderName string            `json:"providerName"`
	Credentials  types.Credentials `json:"credentials"`
}

// CreateConnection handles POST /api/eld/connections. Credentials are
// verified against the provider before the connection is stored.
func (h *Handler) CreateConnection(w http.ResponseWriter, r *http.Request) {
	carrierID := r.Header.Get(carrierHeader)
	if carrierID == "" {
		httputil.WriteBadRequest(w, "X-Carrier-ID header is required")
		return
	}

	var req createConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid JSON body")
		return
	}
	if req.ProviderID == "" || req.ProviderName == "" {
		httputil.WriteBadRequest(w, "providerId and providerName are required")
		return
	}

	adapter, err := h.registry.New(req.ProviderID, req.Credentials)
	if err != nil {
		httputil.WriteNotFound(w, err.Error())
		return
	}

	test := adapter.TestConnection(r.Context())
	if h.metrics != nil {
		h.metrics.RecordConnectionTest(req.ProviderID, test.Success)
	}
	if !test.Success {
		httputil.WriteError(w, http.StatusBadRequest, "Connection test failed", test.Message)
		return
	}

	conn, err := h.connections.Upsert(r.Context(), carrierID, req.ProviderID, req.ProviderName, req.Credentials)
	if err != nil {
		slog.Error("failed to store connection", "carrier", carrierID, "provider", req.ProviderID, "error", err)
		httputil.WriteInternalError(w, "Failed to store connection", "")
		return
	}

	slog.Info("eld connection created", "carrier", carrierID, "provider", req.ProviderID)
	httputil.WriteJSON(w, http.StatusCreated, conn)
}

// DeleteConnection handles DELETE /api/eld/connections
func (h *Handler) DeleteConnection(w http.ResponseWriter, r *http.Request) {
	carrierID := r.Header.Get(carrierHeader)
	if carrierID == "" {
		httputil.WriteBadRequest(w, "X-Carrier-ID header is required")
		return
	}

	if err := h.connections.Delete(r.Context(), carrierID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httputil.WriteNotFound(w, "No connection to delete")
			return
		}
		slog.Error("failed to delete connection", "carrier", carrierID, "error", err)
		httputil.WriteInternalError(w, "Failed to delete connection", "")
		return
	}

	slog.Info("eld connection deleted", "carrier", carrierID)
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "Connection deleted"})
}

// TriggerManualSync handles POST /api/eld/manual-sync
func (h *Handler) TriggerManualSync(w http.ResponseWriter, r *http.Request) {
	carrierID := r.Header.Get(carrierHeader)
	if carrierID == "" {
		httputil.WriteBadRequest(w, "X-Carrier-ID header is required")
		return
	}

	if _, err := h.connections.Get(r.Context(), carrierID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httputil.WriteNotFound(w, "No ELD connection configured")
			return
		}
		httputil.WriteInternalError(w, "Failed to load connection", "")
		return
	}

	if err := h.runner.Trigger(carrierID); err != nil {
		httputil.WriteError(w, http.StatusConflict, err.Error(), "")
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"message": "Sync started"})
}

// SyncStatus handles GET /api/eld/manual-sync
func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	carrierID := r.Header.Get(carrierHeader)
	if carrierID == "" {
		httputil.WriteBadRequest(w, "X-Carrier-ID header is required")
		return
	}

	status, err := h.runner.Status(r.Context(), carrierID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httputil.WriteNotFound(w, "No ELD connection configured")
			return
		}
		httputil.WriteInternalError(w, "Failed to load sync status", "")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}
