package eld

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/carriernest/eld-gateway/internal/config"
	"github.com/carriernest/eld-gateway/internal/types"
)

// Geotab integrates the MyGeotab API. Geotab is RPC-shaped: every call is
// a POST of {method, params} against a single endpoint on the carrier's
// own server (serverUrl override), with the database name carried as an
// additional credential parameter. Results come back unpaginated, so list
// responses omit the pagination block.
type Geotab struct {
	base
}

func NewGeotab(cfg config.ProviderConfig, creds types.Credentials, client *http.Client, gate RateGate) ProviderAdapter {
	return &Geotab{base: newBase("geotab", cfg, creds, client, gate)}
}

func (a *Geotab) ProviderID() string { return a.providerID }

func (a *Geotab) Capabilities() types.ProviderCapabilities {
	return types.ProviderCapabilities{
		RealTimeTracking:  true,
		HOSCompliance:     true,
		DriverManagement:  true,
		VehicleManagement: true,
		ReportGeneration:  true,
		WebhookSupport:    false,
		BulkOperations:    true,
		CustomFields:      true,
	}
}

// rpc posts one Geotab method call. The search block carries the common
// filters translated to Geotab's names.
func (a *Geotab) rpc(ctx context.Context, method, typeName string, search map[string]any, out any) error {
	body := map[string]any{
		"method": method,
		"params": map[string]any{
			"typeName": typeName,
			"database": a.creds.Field("database"),
		},
	}
	if len(search) > 0 {
		body["params"].(map[string]any)["search"] = search
	}
	return a.do(ctx, http.MethodPost, "/apiv1", nil, body, out)
}

func (a *Geotab) search(params *types.QueryParams) map[string]any {
	s := map[string]any{}
	if params == nil {
		return s
	}
	if params.StartDate != "" {
		s["fromDate"] = params.StartDate
	}
	if params.EndDate != "" {
		s["toDate"] = params.EndDate
	}
	if params.DriverID != "" {
		s["userSearch"] = map[string]any{"id": params.DriverID}
	}
	if params.VehicleID != "" {
		s["deviceSearch"] = map[string]any{"id": params.VehicleID}
	}
	if params.Limit > 0 {
		s["resultsLimit"] = params.Limit
	}
	return s
}

func (a *Geotab) TestConnection(ctx context.Context) *types.ConnectionTestResult {
	var payload struct {
		Result string `json:"result"`
	}
	start := time.Now()
	err := a.rpc(ctx, "GetVersion", "", nil, &payload)
	ms := time.Since(start).Milliseconds()
	if err != nil {
		return &types.ConnectionTestResult{
			Success: false,
			Message: "Geotab connection failed: " + connMessage(err),
		}
	}
	return &types.ConnectionTestResult{
		Success: true,
		Message: "Connected to Geotab",
		Details: &types.ConnectionTestDetails{
			ResponseTimeMs: ms,
			APIVersion:     payload.Result,
		},
	}
}

func (a *Geotab) GetDrivers(ctx context.Context, params *types.QueryParams) *types.NormalizedResponse[[]types.Driver] {
	var payload struct {
		Result []geotabUser `json:"result"`
	}
	search := a.search(params)
	search["isDriver"] = true
	if err := a.rpc(ctx, "Get", "User", search, &payload); err != nil {
		return Fail[[]types.Driver](err)
	}
	drivers := make([]types.Driver, 0, len(payload.Result))
	for _, u := range payload.Result {
		drivers = append(drivers, u.normalize())
	}
	return OK(a.providerID, drivers, len(drivers))
}

func (a *Geotab) GetDriverByID(ctx context.Context, driverID string) *types.NormalizedResponse[*types.Driver] {
	var payload struct {
		Result []geotabUser `json:"result"`
	}
	if err := a.rpc(ctx, "Get", "User", map[string]any{"id": driverID}, &payload); err != nil {
		return Fail[*types.Driver](err)
	}
	if len(payload.Result) == 0 {
		return Fail[*types.Driver](&apiError{Status: 404, Message: fmt.Sprintf("driver %s not found", driverID)})
	}
	d := payload.Result[0].normalize()
	return OK(a.providerID, &d, 1)
}

func (a *Geotab) GetVehicles(ctx context.Context, params *types.QueryParams) *types.NormalizedResponse[[]types.Vehicle] {
	var payload struct {
		Result []geotabDevice `json:"result"`
	}
	if err := a.rpc(ctx, "Get", "Device", a.search(params), &payload); err != nil {
		return Fail[[]types.Vehicle](err)
	}
	vehicles := make([]types.Vehicle, 0, len(payload.Result))
	for _, d := range payload.Result {
		vehicles = append(vehicles, d.normalize())
	}
	return OK(a.providerID, vehicles, len(vehicles))
}

func (a *Geotab) GetVehicleByID(ctx context.Context, vehicleID string) *types.NormalizedResponse[*types.Vehicle] {
	var payload struct {
		Result []geotabDevice `json:"result"`
	}
	if err := a.rpc(ctx, "Get", "Device", map[string]any{"id": vehicleID}, &payload); err != nil {
		return Fail[*types.Vehicle](err)
	}
	if len(payload.Result) == 0 {
		return Fail[*types.Vehicle](&apiError{Status: 404, Message: fmt.Sprintf("vehicle %s not found", vehicleID)})
	}
	v := payload.Result[0].normalize()
	return OK(a.providerID, &v, 1)
}

func (a *Geotab) GetLogs(ctx context.Context, params *types.QueryParams) *types.NormalizedResponse[[]types.LogEntry] {
	var payload struct {
		Result []geotabDutyLog `json:"result"`
	}
	if err := a.rpc(ctx, "Get", "DutyStatusLog", a.search(params), &payload); err != nil {
		return Fail[[]types.LogEntry](err)
	}
	logs := make([]types.LogEntry, 0, len(payload.Result))
	for _, l := range payload.Result {
		logs = append(logs, l.normalize())
	}
	return OK(a.providerID, logs, len(logs))
}

func (a *Geotab) GetLogsByDriver(ctx context.Context, driverID string, params *types.QueryParams) *types.NormalizedResponse[[]types.LogEntry] {
	p := types.QueryParams{}
	if params != nil {
		p = *params
	}
	p.DriverID = driverID
	return a.GetLogs(ctx, &p)
}

func (a *Geotab) GetViolations(ctx context.Context, params *types.QueryParams) *types.NormalizedResponse[[]types.Violation] {
	var payload struct {
		Result []geotabViolation `json:"result"`
	}
	if err := a.rpc(ctx, "Get", "DutyStatusViolation", a.search(params), &payload); err != nil {
		return Fail[[]types.Violation](err)
	}
	violations := make([]types.Violation, 0, len(payload.Result))
	for _, v := range payload.Result {
		violations = append(violations, v.normalize())
	}
	return OK(a.providerID, violations, len(violations))
}

func (a *Geotab) SyncAll(ctx context.Context, params *types.QueryParams) *types.SyncResult {
	return syncAll(ctx, a, params)
}

// Geotab wire shapes.

type geotabUser struct {
	ID            string `json:"id"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	LicenseNumber string `json:"licenseNumber"`
	IsActive      bool   `json:"isActive"`
}

func (u geotabUser) normalize() types.Driver {
	status := types.DriverInactive
	if u.IsActive {
		status = types.DriverActive
	}
	return types.Driver{
		DriverID:      u.ID,
		Name:          u.FirstName + " " + u.LastName,
		LicenseNumber: u.LicenseNumber,
		Status:        status,
	}
}

type geotabDevice struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	VIN          string  `json:"vehicleIdentificationNumber"`
	LicensePlate string  `json:"licensePlate"`
	Odometer     float64 `json:"odometer,omitempty"`
	EngineHours  float64 `json:"engineHours,omitempty"`
	ActiveTo     string  `json:"activeTo,omitempty"`
}

func (d geotabDevice) normalize() types.Vehicle {
	// Geotab marks retired devices with a past activeTo; anything with the
	// sentinel max date is in service.
	status := types.VehicleActive
	if d.ActiveTo != "" && d.ActiveTo < "2050-01-01T00:00:00Z" {
		status = types.VehicleInactive
	}
	return types.Vehicle{
		VehicleID:    d.ID,
		Name:         d.Name,
		VIN:          d.VIN,
		LicensePlate: d.LicensePlate,
		Status:       status,
		Odometer:     d.Odometer,
		EngineHours:  d.EngineHours,
	}
}

type geotabDutyLog struct {
	ID     string `json:"id"`
	Driver struct {
		ID string `json:"id"`
	} `json:"driver"`
	Device struct {
		ID string `json:"id"`
	} `json:"device"`
	DateTime    string `json:"dateTime"`
	Status      string `json:"status"`
	Annotations []struct {
		ID       string `json:"id"`
		Comment  string `json:"comment"`
		DateTime string `json:"dateTime"`
	} `json:"annotations,omitempty"`
}

func (l geotabDutyLog) normalize() types.LogEntry {
	date := l.DateTime
	if len(date) >= 10 {
		date = date[:10]
	}
	events := []types.LogEvent{{
		EventID:    l.ID,
		EventType:  types.EventDutyStatusChange,
		Timestamp:  l.DateTime,
		DutyStatus: geotabDutyStatus(l.Status),
	}}
	for _, an := range l.Annotations {
		events = append(events, types.LogEvent{
			EventID:   an.ID,
			EventType: types.EventDutyStatusChange,
			Timestamp: an.DateTime,
			Notes:     an.Comment,
		})
	}
	return types.LogEntry{
		LogID:     l.ID,
		DriverID:  l.Driver.ID,
		VehicleID: l.Device.ID,
		Date:      date,
		Events:    events,
	}
}

func geotabDutyStatus(s string) types.DutyStatus {
	switch s {
	case "D":
		return types.DutyDriving
	case "ON":
		return types.DutyOn
	case "SB":
		return types.DutySleeperBerth
	default:
		return types.DutyOff
	}
}

type geotabViolation struct {
	ID     string `json:"id"`
	Driver struct {
		ID string `json:"id"`
	} `json:"driver"`
	RuleType    string `json:"type"`
	Description string `json:"description"`
	FromDate    string `json:"fromDate"`
	ToDate      string `json:"toDate,omitempty"`
}

func (v geotabViolation) normalize() types.Violation {
	return types.Violation{
		ViolationID: v.ID,
		DriverID:    v.Driver.ID,
		Type:        types.ViolationHOS,
		Severity:    types.SeverityViolation,
		Description: v.Description,
		Timestamp:   v.FromDate,
		Resolved:    v.ToDate != "",
		ResolvedAt:  v.ToDate,
	}
}
