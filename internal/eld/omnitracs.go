package eld

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/carriernest/eld-gateway/internal/config"
	"github.com/carriernest/eld-gateway/internal/types"
)

// Omnitracs integrates the Omnitracs ES REST API (basic auth against the
// carrier's hosted instance). Lists come back as items/totalCount with
// offset paging, translated into the page/limit/total triple.
type Omnitracs struct {
	base
}

func NewOmnitracs(cfg config.ProviderConfig, creds types.Credentials, client *http.Client, gate RateGate) ProviderAdapter {
	return &Omnitracs{base: newBase("omnitracs", cfg, creds, client, gate)}
}

func (a *Omnitracs) ProviderID() string { return a.providerID }

func (a *Omnitracs) Capabilities() types.ProviderCapabilities {
	return types.ProviderCapabilities{
		RealTimeTracking:  false,
		HOSCompliance:     true,
		DriverManagement:  true,
		VehicleManagement: true,
		ReportGeneration:  true,
		WebhookSupport:    false,
		BulkOperations:    false,
		CustomFields:      false,
	}
}

func (a *Omnitracs) TestConnection(ctx context.Context) *types.ConnectionTestResult {
	var status struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	ms, err := a.timedGet(ctx, "/rest/status", &status)
	if err != nil {
		return &types.ConnectionTestResult{
			Success: false,
			Message: "Omnitracs connection failed: " + connMessage(err),
		}
	}
	return &types.ConnectionTestResult{
		Success: true,
		Message: "Connected to Omnitracs",
		Details: &types.ConnectionTestDetails{
			ResponseTimeMs: ms,
			APIVersion:     status.Version,
		},
	}
}

func (a *Omnitracs) query(params *types.QueryParams) url.Values {
	v := url.Values{}
	if params == nil {
		return v
	}
	if params.StartDate != "" {
		v.Set("startDate", params.StartDate)
	}
	if params.EndDate != "" {
		v.Set("endDate", params.EndDate)
	}
	if params.DriverID != "" {
		v.Set("driverId", params.DriverID)
	}
	if params.VehicleID != "" {
		v.Set("vehicleId", params.VehicleID)
	}
	if params.Status != "" {
		v.Set("status", params.Status)
	}
	if params.Limit > 0 {
		v.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Offset > 0 {
		v.Set("offset", strconv.Itoa(params.Offset))
	}
	return v
}

// page derives the page/limit/total triple from offset paging.
func omnitracsPage(offset, limit, total int) *types.Pagination {
	if limit <= 0 {
		return nil
	}
	return NormalizePagination(offset/limit+1, limit, total)
}

func (a *Omnitracs) GetDrivers(ctx context.Context, params *types.QueryParams) *types.NormalizedResponse[[]types.Driver] {
	var payload struct {
		Items      []omnitracsDriver `json:"items"`
		TotalCount int               `json:"totalCount"`
		Offset     int               `json:"offset"`
		Limit      int               `json:"limit"`
	}
	if err := a.get(ctx, a.cfg.Endpoints.Drivers, a.query(params), &payload); err != nil {
		return Fail[[]types.Driver](err)
	}
	drivers := make([]types.Driver, 0, len(payload.Items))
	for _, d := range payload.Items {
		drivers = append(drivers, d.normalize())
	}
	resp := OK(a.providerID, drivers, len(drivers))
	resp.Pagination = omnitracsPage(payload.Offset, payload.Limit, payload.TotalCount)
	return resp
}

func (a *Omnitracs) GetDriverByID(ctx context.Context, driverID string) *types.NormalizedResponse[*types.Driver] {
	var d omnitracsDriver
	if err := a.get(ctx, a.cfg.Endpoints.Drivers+"/"+url.PathEscape(driverID), nil, &d); err != nil {
		return Fail[*types.Driver](err)
	}
	out := d.normalize()
	return OK(a.providerID, &out, 1)
}

func (a *Omnitracs) GetVehicles(ctx context.Context, params *types.QueryParams) *types.NormalizedResponse[[]types.Vehicle] {
	var payload struct {
		Items      []omnitracsVehicle `json:"items"`
		TotalCount int                `json:"totalCount"`
		Offset     int                `json:"offset"`
		Limit      int                `json:"limit"`
	}
	if err := a.get(ctx, a.cfg.Endpoints.Vehicles, a.query(params), &payload); err != nil {
		return Fail[[]types.Vehicle](err)
	}
	vehicles := make([]types.Vehicle, 0, len(payload.Items))
	for _, v := range payload.Items {
		vehicles = append(vehicles, v.normalize())
	}
	resp := OK(a.providerID, vehicles, len(vehicles))
	resp.Pagination = omnitracsPage(payload.Offset, payload.Limit, payload.TotalCount)
	return resp
}

func (a *Omnitracs) GetVehicleByID(ctx context.Context, vehicleID string) *types.NormalizedResponse[*types.Vehicle] {
	var v omnitracsVehicle
	if err := a.get(ctx, a.cfg.Endpoints.Vehicles+"/"+url.PathEscape(vehicleID), nil, &v); err != nil {
		return Fail[*types.Vehicle](err)
	}
	out := v.normalize()
	return OK(a.providerID, &out, 1)
}

func (a *Omnitracs) GetLogs(ctx context.Context, params *types.QueryParams) *types.NormalizedResponse[[]types.LogEntry] {
	var payload struct {
		Items      []omnitracsLog `json:"items"`
		TotalCount int            `json:"totalCount"`
		Offset     int            `json:"offset"`
		Limit      int            `json:"limit"`
	}
	if err := a.get(ctx, a.cfg.Endpoints.Logs, a.query(params), &payload); err != nil {
		return Fail[[]types.LogEntry](err)
	}
	logs := make([]types.LogEntry, 0, len(payload.Items))
	for _, l := range payload.Items {
		logs = append(logs, l.normalize())
	}
	resp := OK(a.providerID, logs, len(logs))
	resp.Pagination = omnitracsPage(payload.Offset, payload.Limit, payload.TotalCount)
	return resp
}

func (a *Omnitracs) GetLogsByDriver(ctx context.Context, driverID string, params *types.QueryParams) *types.NormalizedResponse[[]types.LogEntry] {
	p := types.QueryParams{}
	if params != nil {
		p = *params
	}
	p.DriverID = driverID
	return a.GetLogs(ctx, &p)
}

func (a *Omnitracs) GetViolations(ctx context.Context, params *types.QueryParams) *types.NormalizedResponse[[]types.Violation] {
	var payload struct {
		Items      []omnitracsViolation `json:"items"`
		TotalCount int                  `json:"totalCount"`
		Offset     int                  `json:"offset"`
		Limit      int                  `json:"limit"`
	}
	if err := a.get(ctx, a.cfg.Endpoints.Violations, a.query(params), &payload); err != nil {
		return Fail[[]types.Violation](err)
	}
	violations := make([]types.Violation, 0, len(payload.Items))
	for _, v := range payload.Items {
		violations = append(violations, v.normalize())
	}
	resp := OK(a.providerID, violations, len(violations))
	resp.Pagination = omnitracsPage(payload.Offset, payload.Limit, payload.TotalCount)
	return resp
}

func (a *Omnitracs) SyncAll(ctx context.Context, params *types.QueryParams) *types.SyncResult {
	return syncAll(ctx, a, params)
}

// Omnitracs wire shapes.

type omnitracsDriver struct {
	DriverID      string `json:"driverId"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	LicenseNumber string `json:"cdlNumber"`
	DutyStatus    string `json:"currentDutyStatus"`
	Active        bool   `json:"active"`
}

func (d omnitracsDriver) normalize() types.Driver {
	status := types.DriverInactive
	if d.Active {
		status = types.DriverActive
	}
	switch d.DutyStatus {
	case "ON", "D":
		status = types.DriverOnDuty
	case "OFF", "SB":
		status = types.DriverOffDuty
	}
	return types.Driver{
		DriverID:      d.DriverID,
		Name:          d.FirstName + " " + d.LastName,
		LicenseNumber: d.LicenseNumber,
		Status:        status,
	}
}

type omnitracsVehicle struct {
	VehicleID    string  `json:"vehicleId"`
	UnitNumber   string  `json:"unitNumber"`
	VIN          string  `json:"vin"`
	LicensePlate string  `json:"licensePlate"`
	InService    bool    `json:"inService"`
	Odometer     float64 `json:"odometerMiles,omitempty"`
	EngineHours  float64 `json:"engineHours,omitempty"`
}

func (v omnitracsVehicle) normalize() types.Vehicle {
	status := types.VehicleInactive
	if v.InService {
		status = types.VehicleActive
	}
	return types.Vehicle{
		VehicleID:    v.VehicleID,
		Name:         v.UnitNumber,
		VIN:          v.VIN,
		LicensePlate: v.LicensePlate,
		Status:       status,
		Odometer:     v.Odometer,
		EngineHours:  v.EngineHours,
	}
}

type omnitracsLog struct {
	LogID     string  `json:"logId"`
	DriverID  string  `json:"driverId"`
	VehicleID string  `json:"vehicleId"`
	LogDate   string  `json:"logDate"`
	DriveMin  float64 `json:"driveTimeMinutes"`
	DutyMin   float64 `json:"onDutyTimeMinutes"`
	Events    []struct {
		EventID    string `json:"eventId"`
		EventCode  string `json:"eventCode"`
		EventTime  string `json:"eventTime"`
		DutyStatus string `json:"dutyStatus,omitempty"`
		Remark     string `json:"remark,omitempty"`
	} `json:"events"`
}

func (l omnitracsLog) normalize() types.LogEntry {
	events := make([]types.LogEvent, 0, len(l.Events))
	for _, e := range l.Events {
		etype := types.EventDutyStatusChange
		switch e.EventCode {
		case "ENGINE_ON":
			etype = types.EventEngineStart
		case "ENGINE_OFF":
			etype = types.EventEngineStop
		case "POSITION":
			etype = types.EventLocationUpdate
		}
		events = append(events, types.LogEvent{
			EventID:    e.EventID,
			EventType:  etype,
			Timestamp:  e.EventTime,
			DutyStatus: omnitracsDutyStatus(e.DutyStatus),
			Notes:      e.Remark,
		})
	}
	return types.LogEntry{
		LogID:          l.LogID,
		DriverID:       l.DriverID,
		VehicleID:      l.VehicleID,
		Date:           l.LogDate,
		Events:         events,
		TotalDriveTime: l.DriveMin,
		TotalDutyTime:  l.DutyMin,
	}
}

func omnitracsDutyStatus(s string) types.DutyStatus {
	switch s {
	case "D":
		return types.DutyDriving
	case "ON":
		return types.DutyOn
	case "SB":
		return types.DutySleeperBerth
	case "OFF":
		return types.DutyOff
	default:
		return ""
	}
}

type omnitracsViolation struct {
	ViolationID string `json:"violationId"`
	DriverID    string `json:"driverId"`
	VehicleID   string `json:"vehicleId,omitempty"`
	RuleCode    string `json:"ruleCode"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	OccurredAt  string `json:"occurredAt"`
	Resolved    bool   `json:"resolved"`
	ResolvedAt  string `json:"resolvedAt,omitempty"`
}

func (v omnitracsViolation) normalize() types.Violation {
	vtype := types.ViolationHOS
	switch v.RuleCode {
	case "MISSING_LOG":
		vtype = types.ViolationMissingLog
	case "MALFUNCTION":
		vtype = types.ViolationMalfunction
	case "DIAGNOSTIC":
		vtype = types.ViolationDiagnostic
	}
	severity := types.SeverityViolation
	switch v.Severity {
	case "WARNING":
		severity = types.SeverityWarning
	case "CRITICAL":
		severity = types.SeverityCritical
	}
	return types.Violation{
		ViolationID: v.ViolationID,
		DriverID:    v.DriverID,
		VehicleID:   v.VehicleID,
		Type:        vtype,
		Severity:    severity,
		Description: v.Description,
		Timestamp:   v.OccurredAt,
		Resolved:    v.Resolved,
		ResolvedAt:  v.ResolvedAt,
	}
}
