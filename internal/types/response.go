package types

import (
	"net/url"
	"strconv"
)

// ResponseError is a structured error entry inside a normalized envelope.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// Pagination describes where a page of results sits in the full set.
// HasMore is always computed as page*limit < total, regardless of the
// provider's own pagination semantics.
type Pagination struct {
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	Total   int  `json:"total"`
	HasMore bool `json:"hasMore"`
}

// Metadata is stamped onto every successful normalized response.
type Metadata struct {
	SyncedAt    string `json:"syncedAt"`
	ProviderID  string `json:"providerId"`
	RecordCount int    `json:"recordCount"`
}

// NormalizedResponse is the uniform envelope every adapter operation
// returns. Success implies Data is populated and Errors is empty; failure
// implies Data is zero and at least one error entry is present.
type NormalizedResponse[T any] struct {
	Success    bool            `json:"success"`
	Data       T               `json:"data"`
	Pagination *Pagination     `json:"pagination,omitempty"`
	Metadata   *Metadata       `json:"metadata,omitempty"`
	Errors     []ResponseError `json:"errors,omitempty"`
}

// ConnectionTestDetails carries optional probe diagnostics.
type ConnectionTestDetails struct {
	ResponseTimeMs int64    `json:"responseTime"`
	APIVersion     string   `json:"apiVersion,omitempty"`
	Permissions    []string `json:"permissions,omitempty"`
}

// ConnectionTestResult is the outcome of a credential-validation probe.
type ConnectionTestResult struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Details *ConnectionTestDetails `json:"details,omitempty"`
}

// ProviderCapabilities are the static feature flags a provider supports.
type ProviderCapabilities struct {
	RealTimeTracking  bool `json:"realTimeTracking"`
	HOSCompliance     bool `json:"hosCompliance"`
	DriverManagement  bool `json:"driverManagement"`
	VehicleManagement bool `json:"vehicleManagement"`
	ReportGeneration  bool `json:"reportGeneration"`
	WebhookSupport    bool `json:"webhookSupport"`
	BulkOperations    bool `json:"bulkOperations"`
	CustomFields      bool `json:"customFields"`
}

// RecordCounts is the per-category tally of a full sync.
type RecordCounts struct {
	Drivers    int `json:"drivers"`
	Vehicles   int `json:"vehicles"`
	Logs       int `json:"logs"`
	Violations int `json:"violations"`
}

// SyncResult reports a full synchronization. Success is true when at least
// one category synced; partial failures land in Errors.
type SyncResult struct {
	ProviderID    string       `json:"providerId"`
	SyncedAt      string       `json:"syncedAt"`
	Success       bool         `json:"success"`
	RecordsSynced RecordCounts `json:"recordsSynced"`
	Errors        []string     `json:"errors,omitempty"`
}

// QueryParams are the common filters accepted by every fetch operation.
// Concrete adapters map them onto provider-specific query parameters.
type QueryParams struct {
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
	DriverID  string `json:"driverId,omitempty"`
	VehicleID string `json:"vehicleId,omitempty"`
	Status    string `json:"status,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
}

// Values encodes the non-zero params as URL query values.
func (p *QueryParams) Values() url.Values {
	v := url.Values{}
	if p == nil {
		return v
	}
	if p.StartDate != "" {
		v.Set("startDate", p.StartDate)
	}
	if p.EndDate != "" {
		v.Set("endDate", p.EndDate)
	}
	if p.DriverID != "" {
		v.Set("driverId", p.DriverID)
	}
	if p.VehicleID != "" {
		v.Set("vehicleId", p.VehicleID)
	}
	if p.Status != "" {
		v.Set("status", p.Status)
	}
	if p.Limit > 0 {
		v.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Offset > 0 {
		v.Set("offset", strconv.Itoa(p.Offset))
	}
	return v
}
