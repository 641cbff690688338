package gateway

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/carriernest/eld-gateway/internal/config"
	"github.com/carriernest/eld-gateway/internal/eld"
	"github.com/carriernest/eld-gateway/internal/types"
)

// newTestGateway wires a handler over a fake Samsara backend. Connection
// storage and the sync runner are not exercised here; those routes need a
// database.
func newTestGateway(t *testing.T, backend http.HandlerFunc) (*httptest.Server, *eld.HealthTracker) {
	t.Helper()

	provider := httptest.NewServer(backend)
	t.Cleanup(provider.Close)

	provCfg := &config.ProvidersConfig{
		Providers: map[string]config.ProviderConfig{
			"samsara": {
				Type:                "samsara",
				Name:                "Samsara",
				BaseURL:             provider.URL,
				AuthType:            config.AuthAPIKey,
				RequiredCredentials: []string{"apiKey"},
				Endpoints: config.EndpointMap{
					Drivers:    "/fleet/drivers",
					Vehicles:   "/fleet/vehicles",
					Logs:       "/fleet/hos/daily-logs",
					Violations: "/fleet/hos/violations",
				},
			},
		},
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	registry := eld.BuildFromConfig(provCfg, nil, logger)
	health := eld.NewHealthTracker(5, time.Minute)
	h := NewHandler(registry, health, nil, nil, nil)

	r := chi.NewRouter()
	r.Route("/api/eld", h.Routes)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, health
}

func credentialToken(t *testing.T, creds types.Credentials) string {
	t.Helper()
	raw, err := json.Marshal(creds)
	if err != nil {
		t.Fatal(err)
	}
	return base64.StdEncoding.EncodeToString(raw)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Details string          `json:"details"`
}

func decodeEnvelope(t *testing.T, resp *http.Response) envelope {
	t.Helper()
	defer resp.Body.Close()
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatal(err)
	}
	return env
}

func TestListProviders(t *testing.T) {
	srv, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {})

	resp, err := http.Get(srv.URL + "/api/eld/providers")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	env := decodeEnvelope(t, resp)
	if !env.Success {
		t.Fatal("expected success envelope")
	}
	var descs []eld.Descriptor
	if err := json.Unmarshal(env.Data, &descs); err != nil {
		t.Fatal(err)
	}
	if len(descs) != 1 || descs[0].ID != "samsara" {
		t.Errorf("descriptors = %+v", descs)
	}
}

func TestTestConnection_SuccessAndFailureAreBoth200(t *testing.T) {
	srv, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer good" {
			w.Write([]byte(`{"name":"Acme","apiVersion":"v1"}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"bad token"}`))
	})

	for _, token := range []string{"good", "bad"} {
		body, _ := json.Marshal(map[string]any{
			"providerId":  "samsara",
			"credentials": types.Credentials{APIKey: token},
		})
		resp, err := http.Post(srv.URL+"/api/eld/test-connection", "application/json", bytes.NewReader(body))
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("token %q: status = %d, want 200", token, resp.StatusCode)
		}

		env := decodeEnvelope(t, resp)
		var result types.ConnectionTestResult
		if err := json.Unmarshal(env.Data, &result); err != nil {
			t.Fatal(err)
		}
		if result.Success != (token == "good") {
			t.Errorf("token %q: result.Success = %v", token, result.Success)
		}
	}
}

func TestTestConnection_UnknownProvider(t *testing.T) {
	srv, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {})

	body, _ := json.Marshal(map[string]any{"providerId": "pigeonpost"})
	resp, err := http.Post(srv.URL+"/api/eld/test-connection", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	env := decodeEnvelope(t, resp)
	if env.Success {
		t.Error("expected failure envelope")
	}
}

func TestResourceGet_RequiresCredentialHeader(t *testing.T) {
	srv, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {})

	resp, err := http.Get(srv.URL + "/api/eld/samsara/drivers")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestResourceGet_PassesEnvelopeThrough(t *testing.T) {
	srv, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fleet/drivers" {
			t.Errorf("backend path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"data":[{"id":"d1","name":"Ada","licenseNumber":"TX","driverActivationStatus":"active"}]}`))
	})

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/eld/samsara/drivers?limit=10", nil)
	req.Header.Set("Authorization", "Bearer "+credentialToken(t, types.Credentials{APIKey: "tok"}))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	env := decodeEnvelope(t, resp)
	var normalized types.NormalizedResponse[[]types.Driver]
	if err := json.Unmarshal(env.Data, &normalized); err != nil {
		t.Fatal(err)
	}
	if !normalized.Success || len(normalized.Data) != 1 {
		t.Errorf("normalized = %+v", normalized)
	}
	if normalized.Metadata == nil || normalized.Metadata.ProviderID != "samsara" {
		t.Errorf("metadata = %+v", normalized.Metadata)
	}
}

func TestResourceGet_UpstreamFailureIs502(t *testing.T) {
	srv, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"upstream exploded"}`))
	})

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/eld/samsara/vehicles", nil)
	req.Header.Set("Authorization", "Bearer "+credentialToken(t, types.Credentials{APIKey: "tok"}))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.StatusCode)
	}
	env := decodeEnvelope(t, resp)
	if env.Error != "HTTP_500" {
		t.Errorf("error = %q, want HTTP_500", env.Error)
	}
	if env.Details != "upstream exploded" {
		t.Errorf("details = %q", env.Details)
	}
}

func TestResourceGet_UnknownProviderIs404(t *testing.T) {
	srv, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {})

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/eld/pigeonpost/drivers", nil)
	req.Header.Set("Authorization", "Bearer "+credentialToken(t, types.Credentials{APIKey: "tok"}))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestResourceGet_OpenCircuitIs503(t *testing.T) {
	srv, health := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {})

	for i := 0; i < 5; i++ {
		health.RecordFailure("samsara")
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/eld/samsara/drivers", nil)
	req.Header.Set("Authorization", "Bearer "+credentialToken(t, types.Credentials{APIKey: "tok"}))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
}

func TestSync_FullAndSingleCategory(t *testing.T) {
	srv, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/fleet/drivers":
			w.Write([]byte(`{"data":[{"id":"d1","name":"Ada","licenseNumber":"TX","driverActivationStatus":"active"}]}`))
		default:
			w.Write([]byte(`{"data":[]}`))
		}
	})

	body, _ := json.Marshal(map[string]any{
		"providerId":  "samsara",
		"credentials": types.Credentials{APIKey: "tok"},
		"syncType":    "full",
	})
	resp, err := http.Post(srv.URL+"/api/eld/sync", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	env := decodeEnvelope(t, resp)
	var result types.SyncResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatal(err)
	}
	if !result.Success || result.RecordsSynced.Drivers != 1 {
		t.Errorf("result = %+v", result)
	}

	// Single-category sync returns the category envelope instead.
	body, _ = json.Marshal(map[string]any{
		"providerId":  "samsara",
		"credentials": types.Credentials{APIKey: "tok"},
		"syncType":    "drivers",
	})
	resp, err = http.Post(srv.URL+"/api/eld/sync", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	env = decodeEnvelope(t, resp)
	var normalized types.NormalizedResponse[[]types.Driver]
	if err := json.Unmarshal(env.Data, &normalized); err != nil {
		t.Fatal(err)
	}
	if !normalized.Success || len(normalized.Data) != 1 {
		t.Errorf("normalized = %+v", normalized)
	}
}

func TestSync_InvalidSyncType(t *testing.T) {
	srv, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {})

	body, _ := json.Marshal(map[string]any{
		"providerId":  "samsara",
		"credentials": types.Credentials{APIKey: "tok"},
		"syncType":    "everything",
	})
	resp, err := http.Post(srv.URL+"/api/eld/sync", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestCredentialsFromHeader(t *testing.T) {
	want := types.Credentials{
		APIKey:           "user",
		SecretKey:        "pass",
		ServerURL:        "https://fleet.example.com",
		AdditionalParams: map[string]string{"database": "fleet1"},
	}
	raw, _ := json.Marshal(want)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+base64.StdEncoding.EncodeToString(raw))

	got, err := credentialsFromHeader(r)
	if err != nil {
		t.Fatal(err)
	}
	if got.APIKey != want.APIKey || got.ServerURL != want.ServerURL ||
		got.AdditionalParams["database"] != "fleet1" {
		t.Errorf("got %+v", got)
	}
}

func TestCredentialsFromHeader_Invalid(t *testing.T) {
	for _, header := range []string{
		"",
		"Basic abc",
		"Bearer not-base64!",
		"Bearer " + base64.StdEncoding.EncodeToString([]byte("not json")),
	} {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		if _, err := credentialsFromHeader(r); err == nil {
			t.Errorf("header %q: expected error", header)
		}
	}
}

func TestQueryParamsFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet,
		"/?startDate=2026-08-01&endDate=2026-08-30&driverId=d1&limit=25&offset=50&status=active", nil)

	p := queryParamsFromRequest(r)
	if p.StartDate != "2026-08-01" || p.EndDate != "2026-08-30" {
		t.Errorf("dates = %q %q", p.StartDate, p.EndDate)
	}
	if p.DriverID != "d1" || p.Status != "active" {
		t.Errorf("driverId = %q, status = %q", p.DriverID, p.Status)
	}
	if p.Limit != 25 || p.Offset != 50 {
		t.Errorf("limit = %d, offset = %d", p.Limit, p.Offset)
	}
}

func TestResourceGet_MissingCredentialsDoNotOpenCircuit(t *testing.T) {
	var hits int32
	srv, health := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(`{"data":[{"id":"d1","name":"Ada","licenseNumber":"TX","driverActivationStatus":"active"}]}`))
	})

	// Repeated calls with an empty credential bundle fail pre-flight and
	// must not count against the provider's circuit.
	for i := 0; i < 8; i++ {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/eld/samsara/drivers", nil)
		req.Header.Set("Authorization", "Bearer "+credentialToken(t, types.Credentials{}))

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != http.StatusBadGateway {
			t.Fatalf("status = %d, want 502", resp.StatusCode)
		}
		env := decodeEnvelope(t, resp)
		if env.Error != "MISSING_CREDENTIALS" {
			t.Fatalf("error = %q, want MISSING_CREDENTIALS", env.Error)
		}
	}

	if n := atomic.LoadInt32(&hits); n != 0 {
		t.Fatalf("provider backend hit %d times for pre-flight failures", n)
	}
	if !health.IsAvailable("samsara") {
		t.Fatal("circuit opened by missing-credential callers")
	}

	// A caller with valid credentials still gets through.
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/eld/samsara/drivers", nil)
	req.Header.Set("Authorization", "Bearer "+credentialToken(t, types.Credentials{APIKey: "tok"}))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestResourceGet_UpstreamFailuresStillOpenCircuit(t *testing.T) {
	srv, health := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"boom"}`))
	})

	for i := 0; i < 5; i++ {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/eld/samsara/drivers", nil)
		req.Header.Set("Authorization", "Bearer "+credentialToken(t, types.Credentials{APIKey: "tok"}))

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
	}

	if health.IsAvailable("samsara") {
		t.Fatal("expected circuit open after repeated upstream failures")
	}
}
