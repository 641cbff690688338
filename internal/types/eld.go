package types

// Credentials is the carrier-supplied secret bundle for a provider
// connection. It is held only for the duration of a single adapter call and
// never persisted by the adapter layer.
type Credentials struct {
	APIKey           string            `json:"apiKey"`
	SecretKey        string            `json:"secretKey,omitempty"`
	ServerURL        string            `json:"serverUrl,omitempty"`
	AdditionalParams map[string]string `json:"additionalParams,omitempty"`
}

// Field returns the named credential value. The three well-known fields are
// checked directly; anything else comes from AdditionalParams.
func (c *Credentials) Field(name string) string {
	switch name {
	case "apiKey":
		return c.APIKey
	case "secretKey":
		return c.SecretKey
	case "serverUrl":
		return c.ServerURL
	default:
		return c.AdditionalParams[name]
	}
}

// DriverStatus is a driver's current duty state as reported by the provider.
type DriverStatus string

const (
	DriverActive   DriverStatus = "active"
	DriverInactive DriverStatus = "inactive"
	DriverOnDuty   DriverStatus = "on_duty"
	DriverOffDuty  DriverStatus = "off_duty"
)

// VehicleStatus is a vehicle's operational state.
type VehicleStatus string

const (
	VehicleActive      VehicleStatus = "active"
	VehicleInactive    VehicleStatus = "inactive"
	VehicleMaintenance VehicleStatus = "maintenance"
)

// DutyStatus is an HOS duty segment classification.
type DutyStatus string

const (
	DutyOn           DutyStatus = "on_duty"
	DutyOff          DutyStatus = "off_duty"
	DutyDriving      DutyStatus = "driving"
	DutySleeperBerth DutyStatus = "sleeper_berth"
)

// EventType classifies a log event.
type EventType string

const (
	EventDutyStatusChange EventType = "duty_status_change"
	EventLocationUpdate   EventType = "location_update"
	EventEngineStart      EventType = "engine_start"
	EventEngineStop       EventType = "engine_stop"
)

// ViolationType classifies a compliance violation.
type ViolationType string

const (
	ViolationHOS         ViolationType = "hos_violation"
	ViolationMissingLog  ViolationType = "missing_log"
	ViolationMalfunction ViolationType = "malfunction"
	ViolationDiagnostic  ViolationType = "data_diagnostic"
)

// ViolationSeverity ranks a violation.
type ViolationSeverity string

const (
	SeverityWarning   ViolationSeverity = "warning"
	SeverityViolation ViolationSeverity = "violation"
	SeverityCritical  ViolationSeverity = "critical"
)

// Location is a GPS fix with its capture time (RFC 3339).
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
	Timestamp string  `json:"timestamp,omitempty"`
}

// HoursOfService is the remaining-hours breakdown for a driver, in hours.
type HoursOfService struct {
	Drive float64 `json:"drive"`
	Duty  float64 `json:"duty"`
	Rest  float64 `json:"rest"`
	Cycle float64 `json:"cycle"`
}

// Driver is the normalized driver shape common to all providers.
type Driver struct {
	DriverID        string          `json:"driverId"`
	Name            string          `json:"name"`
	LicenseNumber   string          `json:"licenseNumber"`
	Status          DriverStatus    `json:"status"`
	CurrentLocation *Location       `json:"currentLocation,omitempty"`
	HoursOfService  *HoursOfService `json:"hoursOfService,omitempty"`
}

// Vehicle is the normalized vehicle shape common to all providers.
type Vehicle struct {
	VehicleID       string        `json:"vehicleId"`
	Name            string        `json:"name"`
	VIN             string        `json:"vin"`
	LicensePlate    string        `json:"licensePlate"`
	Status          VehicleStatus `json:"status"`
	CurrentLocation *Location     `json:"currentLocation,omitempty"`
	Odometer        float64       `json:"odometer,omitempty"`
	EngineHours     float64       `json:"engineHours,omitempty"`
}

// LogEvent is a single event inside a daily log.
type LogEvent struct {
	EventID    string     `json:"eventId"`
	EventType  EventType  `json:"eventType"`
	Timestamp  string     `json:"timestamp"`
	Location   *Location  `json:"location,omitempty"`
	DutyStatus DutyStatus `json:"dutyStatus,omitempty"`
	Notes      string     `json:"notes,omitempty"`
}

// LogEntry is a driver's daily log with its ordered event list. Times are
// in minutes.
type LogEntry struct {
	LogID          string     `json:"logId"`
	DriverID       string     `json:"driverId"`
	VehicleID      string     `json:"vehicleId"`
	Date           string     `json:"date"`
	Events         []LogEvent `json:"events"`
	TotalDriveTime float64    `json:"totalDriveTime"`
	TotalDutyTime  float64    `json:"totalDutyTime"`
	Violations     []string   `json:"violations,omitempty"`
}

// Violation is a normalized compliance violation record.
type Violation struct {
	ViolationID string            `json:"violationId"`
	DriverID    string            `json:"driverId"`
	VehicleID   string            `json:"vehicleId,omitempty"`
	Type        ViolationType     `json:"type"`
	Severity    ViolationSeverity `json:"severity"`
	Description string            `json:"description"`
	Timestamp   string            `json:"timestamp"`
	Resolved    bool              `json:"resolved"`
	ResolvedAt  string            `json:"resolvedAt,omitempty"`
}
