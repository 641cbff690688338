package eld

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/carriernest/eld-gateway/internal/config"
	"github.com/carriernest/eld-gateway/internal/types"
)

// Samsara integrates the Samsara fleet API (bearer token auth). Samsara
// paginates with cursors and carries no total count, so list responses
// omit the pagination block.
type Samsara struct {
	base
}

func NewSamsara(cfg config.ProviderConfig, creds types.Credentials, client *http.Client, gate RateGate) ProviderAdapter {
	return &Samsara{base: newBase("samsara", cfg, creds, client, gate)}
}

func (a *Samsara) ProviderID() string { return a.providerID }

func (a *Samsara) Capabilities() types.ProviderCapabilities {
	return types.ProviderCapabilities{
		RealTimeTracking:  true,
		HOSCompliance:     true,
		DriverManagement:  true,
		VehicleManagement: true,
		ReportGeneration:  true,
		WebhookSupport:    true,
		BulkOperations:    false,
		CustomFields:      false,
	}
}

func (a *Samsara) TestConnection(ctx context.Context) *types.ConnectionTestResult {
	var me struct {
		Name       string `json:"name"`
		APIVersion string `json:"apiVersion"`
	}
	ms, err := a.timedGet(ctx, "/me", &me)
	if err != nil {
		return &types.ConnectionTestResult{
			Success: false,
			Message: "Samsara connection failed: " + connMessage(err),
		}
	}
	return &types.ConnectionTestResult{
		Success: true,
		Message: "Connected to Samsara",
		Details: &types.ConnectionTestDetails{
			ResponseTimeMs: ms,
			APIVersion:     me.APIVersion,
		},
	}
}

// query maps the common filter set onto Samsara's parameter names.
func (a *Samsara) query(params *types.QueryParams) url.Values {
	v := url.Values{}
	if params == nil {
		return v
	}
	if params.StartDate != "" {
		v.Set("startTime", params.StartDate)
	}
	if params.EndDate != "" {
		v.Set("endTime", params.EndDate)
	}
	if params.DriverID != "" {
		v.Set("driverIds", params.DriverID)
	}
	if params.VehicleID != "" {
		v.Set("vehicleIds", params.VehicleID)
	}
	if params.Status != "" {
		v.Set("driverActivationStatus", params.Status)
	}
	if params.Limit > 0 {
		v.Set("limit", strconv.Itoa(params.Limit))
	}
	return v
}

func (a *Samsara) GetDrivers(ctx context.Context, params *types.QueryParams) *types.NormalizedResponse[[]types.Driver] {
	var payload struct {
		Data []samsaraDriver `json:"data"`
	}
	if err := a.get(ctx, a.cfg.Endpoints.Drivers, a.query(params), &payload); err != nil {
		return Fail[[]types.Driver](err)
	}
	drivers := make([]types.Driver, 0, len(payload.Data))
	for _, d := range payload.Data {
		drivers = append(drivers, d.normalize())
	}
	return OK(a.providerID, drivers, len(drivers))
}

func (a *Samsara) GetDriverByID(ctx context.Context, driverID string) *types.NormalizedResponse[*types.Driver] {
	var payload struct {
		Data samsaraDriver `json:"data"`
	}
	if err := a.get(ctx, a.cfg.Endpoints.Drivers+"/"+url.PathEscape(driverID), nil, &payload); err != nil {
		return Fail[*types.Driver](err)
	}
	d := payload.Data.normalize()
	return OK(a.providerID, &d, 1)
}

func (a *Samsara) GetVehicles(ctx context.Context, params *types.QueryParams) *types.NormalizedResponse[[]types.Vehicle] {
	var payload struct {
		Data []samsaraVehicle `json:"data"`
	}
	if err := a.get(ctx, a.cfg.Endpoints.Vehicles, a.query(params), &payload); err != nil {
		return Fail[[]types.Vehicle](err)
	}
	vehicles := make([]types.Vehicle, 0, len(payload.Data))
	for _, v := range payload.Data {
		vehicles = append(vehicles, v.normalize())
	}
	return OK(a.providerID, vehicles, len(vehicles))
}

func (a *Samsara) GetVehicleByID(ctx context.Context, vehicleID string) *types.NormalizedResponse[*types.Vehicle] {
	var payload struct {
		Data samsaraVehicle `json:"data"`
	}
	if err := a.get(ctx, a.cfg.Endpoints.Vehicles+"/"+url.PathEscape(vehicleID), nil, &payload); err != nil {
		return Fail[*types.Vehicle](err)
	}
	v := payload.Data.normalize()
	return OK(a.providerID, &v, 1)
}

func (a *Samsara) GetLogs(ctx context.Context, params *types.QueryParams) *types.NormalizedResponse[[]types.LogEntry] {
	var payload struct {
		Data []samsaraLog `json:"data"`
	}
	if err := a.get(ctx, a.cfg.Endpoints.Logs, a.query(params), &payload); err != nil {
		return Fail[[]types.LogEntry](err)
	}
	logs := make([]types.LogEntry, 0, len(payload.Data))
	for _, l := range payload.Data {
		logs = append(logs, l.normalize())
	}
	return OK(a.providerID, logs, len(logs))
}

func (a *Samsara) GetLogsByDriver(ctx context.Context, driverID string, params *types.QueryParams) *types.NormalizedResponse[[]types.LogEntry] {
	p := types.QueryParams{}
	if params != nil {
		p = *params
	}
	p.DriverID = driverID
	return a.GetLogs(ctx, &p)
}

func (a *Samsara) GetViolations(ctx context.Context, params *types.QueryParams) *types.NormalizedResponse[[]types.Violation] {
	var payload struct {
		Data []samsaraViolation `json:"data"`
	}
	if err := a.get(ctx, a.cfg.Endpoints.Violations, a.query(params), &payload); err != nil {
		return Fail[[]types.Violation](err)
	}
	violations := make([]types.Violation, 0, len(payload.Data))
	for _, v := range payload.Data {
		violations = append(violations, v.normalize())
	}
	return OK(a.providerID, violations, len(violations))
}

func (a *Samsara) SyncAll(ctx context.Context, params *types.QueryParams) *types.SyncResult {
	return syncAll(ctx, a, params)
}

// Samsara wire shapes.

type samsaraLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"formattedLocation,omitempty"`
	Time      string  `json:"time"`
}

func (l *samsaraLocation) normalize() *types.Location {
	if l == nil {
		return nil
	}
	return &types.Location{
		Latitude:  l.Latitude,
		Longitude: l.Longitude,
		Address:   l.Address,
		Timestamp: l.Time,
	}
}

type samsaraDriver struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	LicenseNumber string           `json:"licenseNumber"`
	Activation    string           `json:"driverActivationStatus"`
	DutyStatus    string           `json:"currentDutyStatus,omitempty"`
	Location      *samsaraLocation `json:"currentLocation,omitempty"`
	HOSClocks     *struct {
		DriveRemaining float64 `json:"driveRemainingHours"`
		ShiftRemaining float64 `json:"shiftRemainingHours"`
		RestRemaining  float64 `json:"restRemainingHours"`
		CycleRemaining float64 `json:"cycleRemainingHours"`
	} `json:"hosClocks,omitempty"`
}

func (d samsaraDriver) normalize() types.Driver {
	status := types.DriverInactive
	if d.Activation == "active" {
		status = types.DriverActive
	}
	switch d.DutyStatus {
	case "onDuty", "driving":
		status = types.DriverOnDuty
	case "offDuty", "sleeperBerth":
		status = types.DriverOffDuty
	}
	out := types.Driver{
		DriverID:        d.ID,
		Name:            d.Name,
		LicenseNumber:   d.LicenseNumber,
		Status:          status,
		CurrentLocation: d.Location.normalize(),
	}
	if d.HOSClocks != nil {
		out.HoursOfService = &types.HoursOfService{
			Drive: d.HOSClocks.DriveRemaining,
			Duty:  d.HOSClocks.ShiftRemaining,
			Rest:  d.HOSClocks.RestRemaining,
			Cycle: d.HOSClocks.CycleRemaining,
		}
	}
	return out
}

type samsaraVehicle struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	VIN            string           `json:"vin"`
	LicensePlate   string           `json:"licensePlate"`
	Status         string           `json:"regulationMode,omitempty"`
	Location       *samsaraLocation `json:"currentLocation,omitempty"`
	OdometerMeters float64          `json:"odometerMeters,omitempty"`
	EngineSeconds  float64          `json:"engineRunTimeSeconds,omitempty"`
}

func (v samsaraVehicle) normalize() types.Vehicle {
	status := types.VehicleActive
	if v.Status == "unregulated" {
		status = types.VehicleInactive
	}
	return types.Vehicle{
		VehicleID:       v.ID,
		Name:            v.Name,
		VIN:             v.VIN,
		LicensePlate:    v.LicensePlate,
		Status:          status,
		CurrentLocation: v.Location.normalize(),
		Odometer:        v.OdometerMeters / 1609.344, // meters to miles
		EngineHours:     v.EngineSeconds / 3600,
	}
}

type samsaraLog struct {
	ID          string   `json:"id"`
	DriverID    string   `json:"driverId"`
	VehicleID   string   `json:"vehicleId"`
	Date        string   `json:"logDate"`
	DriveMs     float64  `json:"driveDurationMs"`
	OnDutyMs    float64  `json:"onDutyDurationMs"`
	Violations  []string `json:"violationIds,omitempty"`
	HOSStatuses []struct {
		ID         string           `json:"id"`
		StatusType string           `json:"hosStatusType"`
		LogTime    string           `json:"logStartTime"`
		Location   *samsaraLocation `json:"location,omitempty"`
		Remark     string           `json:"remark,omitempty"`
	} `json:"hosStatuses"`
}

func (l samsaraLog) normalize() types.LogEntry {
	events := make([]types.LogEvent, 0, len(l.HOSStatuses))
	for _, s := range l.HOSStatuses {
		events = append(events, types.LogEvent{
			EventID:    s.ID,
			EventType:  types.EventDutyStatusChange,
			Timestamp:  s.LogTime,
			Location:   s.Location.normalize(),
			DutyStatus: samsaraDutyStatus(s.StatusType),
			Notes:      s.Remark,
		})
	}
	return types.LogEntry{
		LogID:          l.ID,
		DriverID:       l.DriverID,
		VehicleID:      l.VehicleID,
		Date:           l.Date,
		Events:         events,
		TotalDriveTime: l.DriveMs / 60000, // ms to minutes
		TotalDutyTime:  l.OnDutyMs / 60000,
		Violations:     l.Violations,
	}
}

func samsaraDutyStatus(s string) types.DutyStatus {
	switch s {
	case "driving":
		return types.DutyDriving
	case "onDuty":
		return types.DutyOn
	case "sleeperBed", "sleeperBerth":
		return types.DutySleeperBerth
	default:
		return types.DutyOff
	}
}

type samsaraViolation struct {
	ID          string `json:"id"`
	DriverID    string `json:"driverId"`
	VehicleID   string `json:"vehicleId,omitempty"`
	Type        string `json:"violationType"`
	Description string `json:"description"`
	StartTime   string `json:"violationStartTime"`
	Resolved    bool   `json:"resolved"`
	ResolvedAt  string `json:"resolvedAtTime,omitempty"`
}

func (v samsaraViolation) normalize() types.Violation {
	vtype := types.ViolationHOS
	severity := types.SeverityViolation
	switch v.Type {
	case "missingCertification", "missingLog":
		vtype = types.ViolationMissingLog
		severity = types.SeverityWarning
	case "eldMalfunction":
		vtype = types.ViolationMalfunction
		severity = types.SeverityCritical
	case "dataDiagnostic":
		vtype = types.ViolationDiagnostic
		severity = types.SeverityWarning
	}
	return types.Violation{
		ViolationID: v.ID,
		DriverID:    v.DriverID,
		VehicleID:   v.VehicleID,
		Type:        vtype,
		Severity:    severity,
		Description: v.Description,
		Timestamp:   v.StartTime,
		Resolved:    v.Resolved,
		ResolvedAt:  v.ResolvedAt,
	}
}
