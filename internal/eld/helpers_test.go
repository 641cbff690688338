package eld

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/carriernest/eld-gateway/internal/config"
	"github.com/carriernest/eld-gateway/internal/types"
)

func TestValidateCredentials(t *testing.T) {
	cfg := config.ProviderConfig{
		RequiredCredentials: []string{"apiKey", "secretKey", "database"},
	}

	creds := types.Credentials{
		APIKey:           "user",
		SecretKey:        "pass",
		AdditionalParams: map[string]string{"database": "fleet1"},
	}
	if !ValidateCredentials(cfg, &creds) {
		t.Error("expected complete credentials to validate")
	}

	creds.AdditionalParams = nil
	if ValidateCredentials(cfg, &creds) {
		t.Error("expected missing additional param to fail validation")
	}

	if !ValidateCredentials(config.ProviderConfig{}, &types.Credentials{}) {
		t.Error("expected empty requirement list to validate anything")
	}
}

func TestAuthHeaders_Bearer(t *testing.T) {
	cfg := config.ProviderConfig{AuthType: config.AuthAPIKey}
	creds := types.Credentials{APIKey: "tok123"}

	h := AuthHeaders(cfg, &creds)
	if got := h.Get("Authorization"); got != "Bearer tok123" {
		t.Errorf("Authorization = %q, want Bearer tok123", got)
	}
	if got := h.Get("User-Agent"); got != userAgent {
		t.Errorf("User-Agent = %q, want %q", got, userAgent)
	}
	if got := h.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
}

func TestAuthHeaders_BasicAuthRoundTrip(t *testing.T) {
	cfg := config.ProviderConfig{AuthType: config.AuthBasicAuth}
	creds := types.Credentials{APIKey: "user", SecretKey: "pass"}

	h := AuthHeaders(cfg, &creds)
	got := h.Get("Authorization")
	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("user:pass"))
	if got != want {
		t.Errorf("Authorization = %q, want %q", got, want)
	}
}

func TestAuthHeaders_ConfiguredHeaders(t *testing.T) {
	cfg := config.ProviderConfig{
		AuthType: config.AuthOAuth,
		Headers:  map[string]string{"X-Api-Version": "2024-01-01", "X-Empty": ""},
	}
	h := AuthHeaders(cfg, &types.Credentials{APIKey: "t"})
	if got := h.Get("X-Api-Version"); got != "2024-01-01" {
		t.Errorf("X-Api-Version = %q", got)
	}
	if h.Get("X-Empty") != "" {
		t.Error("empty configured header should not be set")
	}
}

func TestNormalizePagination_HasMore(t *testing.T) {
	tests := []struct {
		page, limit, total int
		hasMore            bool
	}{
		{1, 10, 25, true},
		{2, 10, 25, true},
		{3, 10, 25, false}, // 30 >= 25
		{1, 10, 10, false}, // exact boundary: page*limit == total
		{1, 10, 11, true},
		{1, 0, 0, false},
	}
	for _, tt := range tests {
		p := NormalizePagination(tt.page, tt.limit, tt.total)
		if p.HasMore != tt.hasMore {
			t.Errorf("NormalizePagination(%d, %d, %d).HasMore = %v, want %v",
				tt.page, tt.limit, tt.total, p.HasMore, tt.hasMore)
		}
		if p.Page != tt.page || p.Limit != tt.limit || p.Total != tt.total {
			t.Errorf("triple not preserved: %+v", p)
		}
	}
}

func TestNormalizeError_APIError(t *testing.T) {
	err := newAPIError(404, "404 Not Found", []byte(`{"message":"driver missing"}`))
	re := NormalizeError(err)
	if re.Code != "HTTP_404" {
		t.Errorf("Code = %q, want HTTP_404", re.Code)
	}
	if re.Message != "driver missing" {
		t.Errorf("Message = %q, want body message", re.Message)
	}
}

func TestNormalizeError_APIError_FallsBackToStatusText(t *testing.T) {
	err := newAPIError(502, "502 Bad Gateway", []byte("not json"))
	re := NormalizeError(err)
	if re.Code != "HTTP_502" {
		t.Errorf("Code = %q, want HTTP_502", re.Code)
	}
	if re.Message != "Bad Gateway" {
		t.Errorf("Message = %q, want Bad Gateway", re.Message)
	}
}

func TestNormalizeError_ErrorField(t *testing.T) {
	err := newAPIError(401, "401 Unauthorized", []byte(`{"error":"bad token"}`))
	re := NormalizeError(err)
	if re.Message != "bad token" {
		t.Errorf("Message = %q, want bad token", re.Message)
	}
}

func TestNormalizeError_CredentialError(t *testing.T) {
	re := NormalizeError(&credentialError{missing: []string{"apiKey", "secretKey"}})
	if re.Code != CodeMissingCredentials {
		t.Errorf("Code = %q, want %s", re.Code, CodeMissingCredentials)
	}
}

type fakeRateLimitedError struct{}

func (fakeRateLimitedError) Error() string     { return "quota spent" }
func (fakeRateLimitedError) RateLimited() bool { return true }

func TestNormalizeError_RateLimited(t *testing.T) {
	re := NormalizeError(fakeRateLimitedError{})
	if re.Code != CodeProviderUnavailable {
		t.Errorf("Code = %q, want %s", re.Code, CodeProviderUnavailable)
	}
}

func TestNormalizeError_Default(t *testing.T) {
	re := NormalizeError(errors.New("connection refused"))
	if re.Code != CodeNetworkError {
		t.Errorf("Code = %q, want %s", re.Code, CodeNetworkError)
	}
}

func TestFailEnvelope(t *testing.T) {
	resp := Fail[[]types.Driver](errors.New("boom"))
	if resp.Success {
		t.Error("expected Success=false")
	}
	if resp.Data != nil {
		t.Error("expected zero data on failure")
	}
	if len(resp.Errors) != 1 {
		t.Fatalf("expected one error entry, got %d", len(resp.Errors))
	}
	if resp.Metadata != nil {
		t.Error("failure envelope should carry no metadata")
	}
}

func TestOKEnvelope(t *testing.T) {
	resp := OK("samsara", []types.Driver{{DriverID: "d1"}}, 1)
	if !resp.Success {
		t.Error("expected Success=true")
	}
	if len(resp.Errors) != 0 {
		t.Error("success envelope should carry no errors")
	}
	if resp.Metadata == nil || resp.Metadata.ProviderID != "samsara" || resp.Metadata.RecordCount != 1 {
		t.Errorf("metadata = %+v", resp.Metadata)
	}
	if resp.Metadata.SyncedAt == "" {
		t.Error("expected syncedAt timestamp")
	}
}

func TestBaseURL_ServerURLOverride(t *testing.T) {
	b := newBase("omnitracs", config.ProviderConfig{BaseURL: "https://api.omnitracs.com/"}, types.Credentials{}, nil, nil)
	if got := b.baseURL(); got != "https://api.omnitracs.com" {
		t.Errorf("baseURL = %q", got)
	}

	b.creds.ServerURL = "https://fleet.example.com/"
	if got := b.baseURL(); got != "https://fleet.example.com" {
		t.Errorf("baseURL with override = %q", got)
	}
}

func TestProviderFault(t *testing.T) {
	tests := []struct {
		name string
		errs []types.ResponseError
		want bool
	}{
		{"no errors", nil, false},
		{"missing credentials", []types.ResponseError{{Code: CodeMissingCredentials}}, false},
		{"quota rejection", []types.ResponseError{{Code: CodeProviderUnavailable}}, false},
		{"network", []types.ResponseError{{Code: CodeNetworkError}}, true},
		{"upstream http", []types.ResponseError{{Code: "HTTP_503"}}, true},
		{"mixed", []types.ResponseError{{Code: CodeMissingCredentials}, {Code: "HTTP_500"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ProviderFault(tt.errs); got != tt.want {
				t.Errorf("ProviderFault(%v) = %v, want %v", tt.errs, got, tt.want)
			}
		})
	}
}

func TestSyncFault(t *testing.T) {
	tests := []struct {
		name string
		errs []string
		want bool
	}{
		{"no errors", nil, false},
		{"pre-flight only", []string{"drivers: MISSING_CREDENTIALS missing required credentials: apiKey"}, false},
		{"quota only", []string{"logs: PROVIDER_UNAVAILABLE hourly quota spent"}, false},
		{"upstream", []string{"drivers: MISSING_CREDENTIALS msg", "logs: HTTP_500 boom"}, true},
		{"network", []string{"vehicles: NETWORK_ERROR connection refused"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SyncFault(tt.errs); got != tt.want {
				t.Errorf("SyncFault(%v) = %v, want %v", tt.errs, got, tt.want)
			}
		})
	}
}
