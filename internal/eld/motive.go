package eld

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/carriernest/eld-gateway/internal/config"
	"github.com/carriernest/eld-gateway/internal/types"
)

// Motive (formerly KeepTruckin) integrates the Motive fleet API (OAuth
// bearer token). Motive wraps every record in a keyed object and reports
// page_no/per_page/total pagination, which maps directly onto the internal
// page/limit/total triple.
type Motive struct {
	base
}

func NewMotive(cfg config.ProviderConfig, creds types.Credentials, client *http.Client, gate RateGate) ProviderAdapter {
	return &Motive{base: newBase("motive", cfg, creds, client, gate)}
}

func (a *Motive) ProviderID() string { return a.providerID }

func (a *Motive) Capabilities() types.ProviderCapabilities {
	return types.ProviderCapabilities{
		RealTimeTracking:  true,
		HOSCompliance:     true,
		DriverManagement:  true,
		VehicleManagement: true,
		ReportGeneration:  true,
		WebhookSupport:    true,
		BulkOperations:    true,
		CustomFields:      false,
	}
}

func (a *Motive) TestConnection(ctx context.Context) *types.ConnectionTestResult {
	var me struct {
		User struct {
			ID    int64  `json:"id"`
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"user"`
	}
	ms, err := a.timedGet(ctx, "/v1/users/me", &me)
	if err != nil {
		return &types.ConnectionTestResult{
			Success: false,
			Message: "Motive connection failed: " + connMessage(err),
		}
	}
	details := &types.ConnectionTestDetails{ResponseTimeMs: ms}
	if me.User.Role != "" {
		details.Permissions = []string{me.User.Role}
	}
	return &types.ConnectionTestResult{
		Success: true,
		Message: "Connected to Motive",
		Details: details,
	}
}

type motivePagination struct {
	PerPage int `json:"per_page"`
	PageNo  int `json:"page_no"`
	Total   int `json:"total"`
}

func (p *motivePagination) normalize() *types.Pagination {
	if p == nil || p.PerPage == 0 {
		return nil
	}
	return NormalizePagination(p.PageNo, p.PerPage, p.Total)
}

// query maps the common filter set onto Motive's parameter names. Motive
// paginates with page_no/per_page, so offset is translated to a page.
func (a *Motive) query(params *types.QueryParams) url.Values {
	v := url.Values{}
	if params == nil {
		return v
	}
	if params.StartDate != "" {
		v.Set("start_date", params.StartDate)
	}
	if params.EndDate != "" {
		v.Set("end_date", params.EndDate)
	}
	if params.DriverID != "" {
		v.Set("driver_ids[]", params.DriverID)
	}
	if params.VehicleID != "" {
		v.Set("vehicle_ids[]", params.VehicleID)
	}
	if params.Status != "" {
		v.Set("duty_status", params.Status)
	}
	if params.Limit > 0 {
		v.Set("per_page", strconv.Itoa(params.Limit))
		if params.Offset > 0 {
			v.Set("page_no", strconv.Itoa(params.Offset/params.Limit+1))
		}
	}
	return v
}

func (a *Motive) GetDrivers(ctx context.Context, params *types.QueryParams) *types.NormalizedResponse[[]types.Driver] {
	var payload struct {
		Users []struct {
			User motiveUser `json:"user"`
		} `json:"users"`
		Pagination *motivePagination `json:"pagination"`
	}
	if err := a.get(ctx, a.cfg.Endpoints.Drivers, a.query(params), &payload); err != nil {
		return Fail[[]types.Driver](err)
	}
	drivers := make([]types.Driver, 0, len(payload.Users))
	for _, u := range payload.Users {
		drivers = append(drivers, u.User.normalize())
	}
	resp := OK(a.providerID, drivers, len(drivers))
	resp.Pagination = payload.Pagination.normalize()
	return resp
}

func (a *Motive) GetDriverByID(ctx context.Context, driverID string) *types.NormalizedResponse[*types.Driver] {
	var payload struct {
		User motiveUser `json:"user"`
	}
	if err := a.get(ctx, a.cfg.Endpoints.Drivers+"/"+url.PathEscape(driverID), nil, &payload); err != nil {
		return Fail[*types.Driver](err)
	}
	d := payload.User.normalize()
	return OK(a.providerID, &d, 1)
}

func (a *Motive) GetVehicles(ctx context.Context, params *types.QueryParams) *types.NormalizedResponse[[]types.Vehicle] {
	var payload struct {
		Vehicles []struct {
			Vehicle motiveVehicle `json:"vehicle"`
		} `json:"vehicles"`
		Pagination *motivePagination `json:"pagination"`
	}
	if err := a.get(ctx, a.cfg.Endpoints.Vehicles, a.query(params), &payload); err != nil {
		return Fail[[]types.Vehicle](err)
	}
	vehicles := make([]types.Vehicle, 0, len(payload.Vehicles))
	for _, v := range payload.Vehicles {
		vehicles = append(vehicles, v.Vehicle.normalize())
	}
	resp := OK(a.providerID, vehicles, len(vehicles))
	resp.Pagination = payload.Pagination.normalize()
	return resp
}

func (a *Motive) GetVehicleByID(ctx context.Context, vehicleID string) *types.NormalizedResponse[*types.Vehicle] {
	var payload struct {
		Vehicle motiveVehicle `json:"vehicle"`
	}
	if err := a.get(ctx, a.cfg.Endpoints.Vehicles+"/"+url.PathEscape(vehicleID), nil, &payload); err != nil {
		return Fail[*types.Vehicle](err)
	}
	v := payload.Vehicle.normalize()
	return OK(a.providerID, &v, 1)
}

func (a *Motive) GetLogs(ctx context.Context, params *types.QueryParams) *types.NormalizedResponse[[]types.LogEntry] {
	var payload struct {
		Logs []struct {
			Log motiveLog `json:"log"`
		} `json:"logs"`
		Pagination *motivePagination `json:"pagination"`
	}
	if err := a.get(ctx, a.cfg.Endpoints.Logs, a.query(params), &payload); err != nil {
		return Fail[[]types.LogEntry](err)
	}
	logs := make([]types.LogEntry, 0, len(payload.Logs))
	for _, l := range payload.Logs {
		logs = append(logs, l.Log.normalize())
	}
	resp := OK(a.providerID, logs, len(logs))
	resp.Pagination = payload.Pagination.normalize()
	return resp
}

func (a *Motive) GetLogsByDriver(ctx context.Context, driverID string, params *types.QueryParams) *types.NormalizedResponse[[]types.LogEntry] {
	p := types.QueryParams{}
	if params != nil {
		p = *params
	}
	p.DriverID = driverID
	return a.GetLogs(ctx, &p)
}

func (a *Motive) GetViolations(ctx context.Context, params *types.QueryParams) *types.NormalizedResponse[[]types.Violation] {
	var payload struct {
		Violations []struct {
			Violation motiveViolation `json:"hos_violation"`
		} `json:"hos_violations"`
		Pagination *motivePagination `json:"pagination"`
	}
	if err := a.get(ctx, a.cfg.Endpoints.Violations, a.query(params), &payload); err != nil {
		return Fail[[]types.Violation](err)
	}
	violations := make([]types.Violation, 0, len(payload.Violations))
	for _, v := range payload.Violations {
		violations = append(violations, v.Violation.normalize())
	}
	resp := OK(a.providerID, violations, len(violations))
	resp.Pagination = payload.Pagination.normalize()
	return resp
}

func (a *Motive) SyncAll(ctx context.Context, params *types.QueryParams) *types.SyncResult {
	return syncAll(ctx, a, params)
}

// Motive wire shapes. Numeric ids are rendered as decimal strings in the
// normalized output.

type motiveUser struct {
	ID              int64  `json:"id"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	LicenseNumber   string `json:"drivers_license_number"`
	DutyStatus      string `json:"duty_status"`
	Status          string `json:"status"`
	CurrentLocation *struct {
		Lat         float64 `json:"lat"`
		Lon         float64 `json:"lon"`
		LocatedAt   string  `json:"located_at"`
		Description string  `json:"description,omitempty"`
	} `json:"current_location,omitempty"`
}

func (u motiveUser) normalize() types.Driver {
	status := types.DriverActive
	switch {
	case u.Status == "deactivated":
		status = types.DriverInactive
	case u.DutyStatus == "on_duty" || u.DutyStatus == "driving":
		status = types.DriverOnDuty
	case u.DutyStatus == "off_duty" || u.DutyStatus == "sleeper":
		status = types.DriverOffDuty
	}
	out := types.Driver{
		DriverID:      strconv.FormatInt(u.ID, 10),
		Name:          u.FirstName + " " + u.LastName,
		LicenseNumber: u.LicenseNumber,
		Status:        status,
	}
	if u.CurrentLocation != nil {
		out.CurrentLocation = &types.Location{
			Latitude:  u.CurrentLocation.Lat,
			Longitude: u.CurrentLocation.Lon,
			Address:   u.CurrentLocation.Description,
			Timestamp: u.CurrentLocation.LocatedAt,
		}
	}
	return out
}

type motiveVehicle struct {
	ID           int64   `json:"id"`
	Number       string  `json:"number"`
	VIN          string  `json:"vin"`
	LicensePlate string  `json:"license_plate_number"`
	Status       string  `json:"status"`
	Odometer     float64 `json:"current_odometer,omitempty"`
	EngineHours  float64 `json:"current_engine_hours,omitempty"`
}

func (v motiveVehicle) normalize() types.Vehicle {
	status := types.VehicleActive
	switch v.Status {
	case "deactivated":
		status = types.VehicleInactive
	case "in_maintenance":
		status = types.VehicleMaintenance
	}
	return types.Vehicle{
		VehicleID:    strconv.FormatInt(v.ID, 10),
		Name:         v.Number,
		VIN:          v.VIN,
		LicensePlate: v.LicensePlate,
		Status:       status,
		Odometer:     v.Odometer,
		EngineHours:  v.EngineHours,
	}
}

type motiveLog struct {
	ID        int64   `json:"id"`
	DriverID  int64   `json:"driver_id"`
	VehicleID int64   `json:"vehicle_id"`
	Date      string  `json:"date"`
	DriveMin  float64 `json:"total_drive_minutes"`
	DutyMin   float64 `json:"total_duty_minutes"`
	Events    []struct {
		ID         int64  `json:"id"`
		Type       string `json:"type"`
		Time       string `json:"time"`
		DutyStatus string `json:"duty_status,omitempty"`
		Notes      string `json:"notes,omitempty"`
	} `json:"events"`
	ViolationIDs []int64 `json:"hos_violation_ids,omitempty"`
}

func (l motiveLog) normalize() types.LogEntry {
	events := make([]types.LogEvent, 0, len(l.Events))
	for _, e := range l.Events {
		events = append(events, types.LogEvent{
			EventID:    strconv.FormatInt(e.ID, 10),
			EventType:  motiveEventType(e.Type),
			Timestamp:  e.Time,
			DutyStatus: motiveDutyStatus(e.DutyStatus),
			Notes:      e.Notes,
		})
	}
	violations := make([]string, 0, len(l.ViolationIDs))
	for _, id := range l.ViolationIDs {
		violations = append(violations, strconv.FormatInt(id, 10))
	}
	return types.LogEntry{
		LogID:          strconv.FormatInt(l.ID, 10),
		DriverID:       strconv.FormatInt(l.DriverID, 10),
		VehicleID:      strconv.FormatInt(l.VehicleID, 10),
		Date:           l.Date,
		Events:         events,
		TotalDriveTime: l.DriveMin,
		TotalDutyTime:  l.DutyMin,
		Violations:     violations,
	}
}

func motiveEventType(s string) types.EventType {
	switch s {
	case "engine_start":
		return types.EventEngineStart
	case "engine_stop":
		return types.EventEngineStop
	case "location":
		return types.EventLocationUpdate
	default:
		return types.EventDutyStatusChange
	}
}

func motiveDutyStatus(s string) types.DutyStatus {
	switch s {
	case "driving":
		return types.DutyDriving
	case "on_duty":
		return types.DutyOn
	case "sleeper":
		return types.DutySleeperBerth
	case "off_duty":
		return types.DutyOff
	default:
		return ""
	}
}

type motiveViolation struct {
	ID        int64  `json:"id"`
	DriverID  int64  `json:"driver_id"`
	VehicleID int64  `json:"vehicle_id,omitempty"`
	Type      string `json:"type"`
	StartTime string `json:"start_time"`
	Notes     string `json:"notes"`
	Resolved  bool   `json:"resolved"`
}

func (v motiveViolation) normalize() types.Violation {
	vehicleID := ""
	if v.VehicleID != 0 {
		vehicleID = strconv.FormatInt(v.VehicleID, 10)
	}
	return types.Violation{
		ViolationID: strconv.FormatInt(v.ID, 10),
		DriverID:    strconv.FormatInt(v.DriverID, 10),
		VehicleID:   vehicleID,
		Type:        types.ViolationHOS,
		Severity:    types.SeverityViolation,
		Description: v.Notes,
		Timestamp:   v.StartTime,
		Resolved:    v.Resolved,
	}
}
