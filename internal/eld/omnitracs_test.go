package eld

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/carriernest/eld-gateway/internal/config"
	"github.com/carriernest/eld-gateway/internal/types"
)

func omnitracsConfig(baseURL string) config.ProviderConfig {
	return config.ProviderConfig{
		Type:                "omnitracs",
		Name:                "Omnitracs",
		BaseURL:             baseURL,
		AuthType:            config.AuthBasicAuth,
		RequiredCredentials: []string{"apiKey", "secretKey"},
		Endpoints: config.EndpointMap{
			Drivers:    "/rest/drivers",
			Vehicles:   "/rest/vehicles",
			Logs:       "/rest/hos/logs",
			Violations: "/rest/hos/violations",
		},
	}
}

func TestOmnitracs_BasicAuthHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := "Basic " + base64.StdEncoding.EncodeToString([]byte("user:pass"))
		if got := r.Header.Get("Authorization"); got != want {
			t.Errorf("Authorization = %q, want %q", got, want)
		}
		w.Write([]byte(`{"status":"ok","version":"5.2"}`))
	}))
	defer srv.Close()

	a := NewOmnitracs(omnitracsConfig(srv.URL), types.Credentials{APIKey: "user", SecretKey: "pass"}, srv.Client(), nil)
	result := a.TestConnection(context.Background())

	if !result.Success {
		t.Fatalf("message = %q", result.Message)
	}
	if result.Details == nil || result.Details.APIVersion != "5.2" {
		t.Errorf("details = %+v", result.Details)
	}
}

func TestOmnitracs_OffsetPagingTranslation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("offset"); got != "40" {
			t.Errorf("offset = %q", got)
		}
		if got := r.URL.Query().Get("limit"); got != "20" {
			t.Errorf("limit = %q", got)
		}
		w.Write([]byte(`{
			"items":[{"driverId":"d1","firstName":"Ada","lastName":"Ruiz","cdlNumber":"TX-99","active":true,"currentDutyStatus":"D"}],
			"totalCount":45,"offset":40,"limit":20
		}`))
	}))
	defer srv.Close()

	a := NewOmnitracs(omnitracsConfig(srv.URL), types.Credentials{APIKey: "u", SecretKey: "p"}, srv.Client(), nil)
	resp := a.GetDrivers(context.Background(), &types.QueryParams{Limit: 20, Offset: 40})

	if !resp.Success {
		t.Fatalf("errors: %v", resp.Errors)
	}
	if resp.Data[0].Status != types.DriverOnDuty {
		t.Errorf("Status = %q", resp.Data[0].Status)
	}
	if resp.Data[0].LicenseNumber != "TX-99" {
		t.Errorf("LicenseNumber = %q", resp.Data[0].LicenseNumber)
	}

	p := resp.Pagination
	if p == nil {
		t.Fatal("expected pagination")
	}
	// offset 40 at limit 20 is page 3 of 45 records.
	if p.Page != 3 || p.Limit != 20 || p.Total != 45 {
		t.Errorf("pagination = %+v", p)
	}
	if p.HasMore {
		t.Error("3*20 >= 45, hasMore must be false")
	}
}

func TestOmnitracs_ViolationMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"items":[
				{"violationId":"x1","driverId":"d1","ruleCode":"MISSING_LOG","severity":"WARNING","description":"no log for 08/28","occurredAt":"2026-08-28T00:00:00Z"},
				{"violationId":"x2","driverId":"d1","ruleCode":"MALFUNCTION","severity":"CRITICAL","description":"ELD fault","occurredAt":"2026-08-29T00:00:00Z","resolved":true,"resolvedAt":"2026-08-30T00:00:00Z"}
			],
			"totalCount":2,"offset":0,"limit":50
		}`))
	}))
	defer srv.Close()

	a := NewOmnitracs(omnitracsConfig(srv.URL), types.Credentials{APIKey: "u", SecretKey: "p"}, srv.Client(), nil)
	resp := a.GetViolations(context.Background(), nil)

	if !resp.Success {
		t.Fatalf("errors: %v", resp.Errors)
	}
	if resp.Data[0].Type != types.ViolationMissingLog || resp.Data[0].Severity != types.SeverityWarning {
		t.Errorf("violation 0 = %+v", resp.Data[0])
	}
	if resp.Data[1].Type != types.ViolationMalfunction || resp.Data[1].Severity != types.SeverityCritical {
		t.Errorf("violation 1 = %+v", resp.Data[1])
	}
	if !resp.Data[1].Resolved || resp.Data[1].ResolvedAt == "" {
		t.Errorf("violation 1 resolution = %+v", resp.Data[1])
	}
}

func TestOmnitracs_LogEventCodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"items":[{
				"logId":"l1","driverId":"d1","vehicleId":"v1","logDate":"2026-08-30",
				"driveTimeMinutes":300,"onDutyTimeMinutes":480,
				"events":[
					{"eventId":"e1","eventCode":"ENGINE_ON","eventTime":"2026-08-30T07:55:00Z"},
					{"eventId":"e2","eventCode":"DUTY","eventTime":"2026-08-30T08:00:00Z","dutyStatus":"D"},
					{"eventId":"e3","eventCode":"POSITION","eventTime":"2026-08-30T09:00:00Z"},
					{"eventId":"e4","eventCode":"ENGINE_OFF","eventTime":"2026-08-30T17:00:00Z"}
				]
			}],
			"totalCount":1,"offset":0,"limit":50
		}`))
	}))
	defer srv.Close()

	a := NewOmnitracs(omnitracsConfig(srv.URL), types.Credentials{APIKey: "u", SecretKey: "p"}, srv.Client(), nil)
	resp := a.GetLogs(context.Background(), nil)

	if !resp.Success {
		t.Fatalf("errors: %v", resp.Errors)
	}
	events := resp.Data[0].Events
	want := []types.EventType{
		types.EventEngineStart,
		types.EventDutyStatusChange,
		types.EventLocationUpdate,
		types.EventEngineStop,
	}
	for i, w := range want {
		if events[i].EventType != w {
			t.Errorf("event %d type = %q, want %q", i, events[i].EventType, w)
		}
	}
	if events[1].DutyStatus != types.DutyDriving {
		t.Errorf("event 1 duty = %q", events[1].DutyStatus)
	}
}
