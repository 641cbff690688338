package eld

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/carriernest/eld-gateway/internal/config"
	"github.com/carriernest/eld-gateway/internal/types"
)

func samsaraConfig(baseURL string) config.ProviderConfig {
	return config.ProviderConfig{
		Type:                "samsara",
		Name:                "Samsara",
		BaseURL:             baseURL,
		AuthType:            config.AuthAPIKey,
		RequiredCredentials: []string{"apiKey"},
		Endpoints: config.EndpointMap{
			Drivers:    "/fleet/drivers",
			Vehicles:   "/fleet/vehicles",
			Logs:       "/fleet/hos/daily-logs",
			Violations: "/fleet/hos/violations",
		},
	}
}

func TestSamsara_TestConnection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/me" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"Acme Trucking","apiVersion":"2024-06-01"}`))
	}))
	defer srv.Close()

	a := NewSamsara(samsaraConfig(srv.URL), types.Credentials{APIKey: "tok"}, srv.Client(), nil)
	result := a.TestConnection(context.Background())

	if !result.Success {
		t.Fatalf("expected success, got message %q", result.Message)
	}
	if result.Details == nil {
		t.Fatal("expected details")
	}
	if result.Details.ResponseTimeMs < 0 {
		t.Errorf("ResponseTimeMs = %d", result.Details.ResponseTimeMs)
	}
	if result.Details.APIVersion != "2024-06-01" {
		t.Errorf("APIVersion = %q", result.Details.APIVersion)
	}
}

func TestSamsara_TestConnection_BadToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"invalid token"}`))
	}))
	defer srv.Close()

	a := NewSamsara(samsaraConfig(srv.URL), types.Credentials{APIKey: "bad"}, srv.Client(), nil)
	result := a.TestConnection(context.Background())

	if result.Success {
		t.Fatal("expected failure")
	}
	if result.Message == "" {
		t.Error("expected a failure message")
	}
}

func TestSamsara_GetDrivers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fleet/drivers" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("limit"); got != "50" {
			t.Errorf("limit = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[
			{"id":"d1","name":"Ada Ruiz","licenseNumber":"TX-99","driverActivationStatus":"active",
			 "currentDutyStatus":"driving",
			 "hosClocks":{"driveRemainingHours":6.5,"shiftRemainingHours":8,"restRemainingHours":2,"cycleRemainingHours":40}},
			{"id":"d2","name":"Lee Park","licenseNumber":"OK-11","driverActivationStatus":"deactivated"}
		]}`))
	}))
	defer srv.Close()

	a := NewSamsara(samsaraConfig(srv.URL), types.Credentials{APIKey: "tok"}, srv.Client(), nil)
	resp := a.GetDrivers(context.Background(), &types.QueryParams{Limit: 50})

	if !resp.Success {
		t.Fatalf("expected success, errors: %v", resp.Errors)
	}
	if len(resp.Data) != 2 {
		t.Fatalf("got %d drivers", len(resp.Data))
	}
	if resp.Metadata == nil || resp.Metadata.RecordCount != 2 || resp.Metadata.ProviderID != "samsara" {
		t.Errorf("metadata = %+v", resp.Metadata)
	}

	d := resp.Data[0]
	if d.Status != types.DriverOnDuty {
		t.Errorf("driving driver status = %q", d.Status)
	}
	if d.HoursOfService == nil || d.HoursOfService.Drive != 6.5 {
		t.Errorf("hos = %+v", d.HoursOfService)
	}
	if resp.Data[1].Status != types.DriverInactive {
		t.Errorf("deactivated driver status = %q", resp.Data[1].Status)
	}
}

func TestSamsara_GetVehicles_UnitConversion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[
			{"id":"v1","name":"Truck 1","vin":"1XP","licensePlate":"ABC123",
			 "odometerMeters":1609344,"engineRunTimeSeconds":7200}
		]}`))
	}))
	defer srv.Close()

	a := NewSamsara(samsaraConfig(srv.URL), types.Credentials{APIKey: "tok"}, srv.Client(), nil)
	resp := a.GetVehicles(context.Background(), nil)

	if !resp.Success {
		t.Fatalf("errors: %v", resp.Errors)
	}
	v := resp.Data[0]
	if v.Odometer < 999.9 || v.Odometer > 1000.1 {
		t.Errorf("Odometer = %f miles, want ~1000", v.Odometer)
	}
	if v.EngineHours != 2 {
		t.Errorf("EngineHours = %f, want 2", v.EngineHours)
	}
}

func TestSamsara_GetDrivers_MissingCredentials(t *testing.T) {
	// No server: the credential pre-flight must fail before any request.
	a := NewSamsara(samsaraConfig("http://127.0.0.1:0"), types.Credentials{}, nil, nil)
	resp := a.GetDrivers(context.Background(), nil)

	if resp.Success {
		t.Fatal("expected failure")
	}
	if resp.Errors[0].Code != CodeMissingCredentials {
		t.Errorf("Code = %q, want %s", resp.Errors[0].Code, CodeMissingCredentials)
	}
}

func TestSamsara_GetDrivers_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	a := NewSamsara(samsaraConfig(srv.URL), types.Credentials{APIKey: "tok"}, nil, nil)
	resp := a.GetDrivers(context.Background(), nil)

	if resp.Success {
		t.Fatal("expected failure")
	}
	if resp.Errors[0].Code != CodeNetworkError {
		t.Errorf("Code = %q, want %s", resp.Errors[0].Code, CodeNetworkError)
	}
}

func TestSamsara_GetLogs_EventNormalization(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[
			{"id":"l1","driverId":"d1","vehicleId":"v1","logDate":"2026-08-30",
			 "driveDurationMs":18000000,"onDutyDurationMs":28800000,
			 "hosStatuses":[
				{"id":"e1","hosStatusType":"driving","logStartTime":"2026-08-30T08:00:00Z"},
				{"id":"e2","hosStatusType":"sleeperBerth","logStartTime":"2026-08-30T18:00:00Z","remark":"rest break"}
			 ]}
		]}`))
	}))
	defer srv.Close()

	a := NewSamsara(samsaraConfig(srv.URL), types.Credentials{APIKey: "tok"}, srv.Client(), nil)
	resp := a.GetLogs(context.Background(), nil)

	if !resp.Success {
		t.Fatalf("errors: %v", resp.Errors)
	}
	log := resp.Data[0]
	if log.TotalDriveTime != 300 {
		t.Errorf("TotalDriveTime = %f minutes, want 300", log.TotalDriveTime)
	}
	if log.TotalDutyTime != 480 {
		t.Errorf("TotalDutyTime = %f minutes, want 480", log.TotalDutyTime)
	}
	if len(log.Events) != 2 {
		t.Fatalf("got %d events", len(log.Events))
	}
	if log.Events[0].DutyStatus != types.DutyDriving {
		t.Errorf("event 0 duty = %q", log.Events[0].DutyStatus)
	}
	if log.Events[1].DutyStatus != types.DutySleeperBerth {
		t.Errorf("event 1 duty = %q", log.Events[1].DutyStatus)
	}
	if log.Events[1].Notes != "rest break" {
		t.Errorf("event 1 notes = %q", log.Events[1].Notes)
	}
}

func TestSamsara_CapabilitiesIdempotent(t *testing.T) {
	a := NewSamsara(samsaraConfig("https://api.samsara.com"), types.Credentials{}, nil, nil)
	first := a.Capabilities()
	second := a.Capabilities()
	if first != second {
		t.Error("capabilities must be stable across calls")
	}
	if !first.WebhookSupport || first.BulkOperations {
		t.Errorf("capabilities = %+v", first)
	}
}
