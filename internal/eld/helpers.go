package eld

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/carriernest/eld-gateway/internal/config"
	"github.com/carriernest/eld-gateway/internal/types"
)

const userAgent = "CarrierNest-ELD-Integration/1.0"

// Error codes carried in normalized envelopes.
const (
	CodeNetworkError        = "NETWORK_ERROR"
	CodeMissingCredentials  = "MISSING_CREDENTIALS"
	CodeProviderUnavailable = "PROVIDER_UNAVAILABLE"
)

// ProviderFault reports whether any envelope error reflects the provider
// itself (a network or upstream HTTP failure) rather than a pre-flight
// rejection that never left the gateway. Circuit-breaker accounting keys
// off this so one caller's bad credential bundle cannot open the circuit
// for everyone.
func ProviderFault(errs []types.ResponseError) bool {
	for _, e := range errs {
		if e.Code == CodeNetworkError || strings.HasPrefix(e.Code, "HTTP_") {
			return true
		}
	}
	return false
}

// SyncFault is ProviderFault for the flattened "category: CODE message"
// strings a SyncResult carries.
func SyncFault(errs []string) bool {
	for _, s := range errs {
		_, rest, ok := strings.Cut(s, ": ")
		if !ok {
			continue
		}
		code, _, _ := strings.Cut(rest, " ")
		if code == CodeNetworkError || strings.HasPrefix(code, "HTTP_") {
			return true
		}
	}
	return false
}

// ValidateCredentials confirms every field named in the config's
// required_credentials list is present in the bundle. It never errors.
func ValidateCredentials(cfg config.ProviderConfig, creds *types.Credentials) bool {
	for _, field := range cfg.RequiredCredentials {
		if creds.Field(field) == "" {
			return false
		}
	}
	return true
}

// AuthHeaders builds the fixed header set for a provider request from the
// configured auth type. api_key and oauth both use a bearer token;
// basic_auth encodes apiKey:secretKey.
func AuthHeaders(cfg config.ProviderConfig, creds *types.Credentials) http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("User-Agent", userAgent)

	switch cfg.AuthType {
	case config.AuthAPIKey, config.AuthOAuth:
		h.Set("Authorization", "Bearer "+creds.APIKey)
	case config.AuthBasicAuth:
		pair := creds.APIKey + ":" + creds.SecretKey
		h.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(pair)))
	}

	for k, v := range cfg.Headers {
		if v != "" {
			h.Set(k, v)
		}
	}
	return h
}

// NormalizePagination converts a provider's page/limit/total triple into
// the internal shape. The hasMore formula is authoritative: adapters must
// translate vendor pagination semantics into this triple first.
func NormalizePagination(page, limit, total int) *types.Pagination {
	return &types.Pagination{
		Page:    page,
		Limit:   limit,
		Total:   total,
		HasMore: page*limit < total,
	}
}

// NewMetadata stamps a successful response with the call time.
func NewMetadata(providerID string, recordCount int) *types.Metadata {
	return &types.Metadata{
		SyncedAt:    time.Now().UTC().Format(time.RFC3339),
		ProviderID:  providerID,
		RecordCount: recordCount,
	}
}

// apiError is a non-2xx response from a provider. Message is taken from
// the body's message/error field when present, status text otherwise.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("provider returned %d: %s", e.Status, e.Message)
}

func newAPIError(status int, statusText string, body []byte) *apiError {
	msg := strings.TrimPrefix(statusText, fmt.Sprintf("%d ", status))
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		if parsed.Message != "" {
			msg = parsed.Message
		} else if parsed.Error != "" {
			msg = parsed.Error
		}
	}
	return &apiError{Status: status, Message: msg}
}

// credentialError marks a pre-flight validation failure; no network call
// was made.
type credentialError struct {
	missing []string
}

func (e *credentialError) Error() string {
	return "missing required credentials: " + strings.Join(e.missing, ", ")
}

// NormalizeError maps any error from a provider call to a structured
// envelope entry. HTTP errors become HTTP_<status>; validation failures
// become MISSING_CREDENTIALS; rate-gate rejections become
// PROVIDER_UNAVAILABLE; everything else is NETWORK_ERROR. The mapping is
// deterministic and preserves the status code.
func NormalizeError(err error) types.ResponseError {
	switch e := err.(type) {
	case *apiError:
		return types.ResponseError{Code: fmt.Sprintf("HTTP_%d", e.Status), Message: e.Message}
	case *credentialError:
		return types.ResponseError{Code: CodeMissingCredentials, Message: e.Error()}
	case interface{ RateLimited() bool }:
		return types.ResponseError{Code: CodeProviderUnavailable, Message: err.Error()}
	default:
		return types.ResponseError{Code: CodeNetworkError, Message: err.Error()}
	}
}

// Fail wraps an error into a failed envelope with a zero payload.
func Fail[T any](err error) *types.NormalizedResponse[T] {
	return &types.NormalizedResponse[T]{
		Success: false,
		Errors:  []types.ResponseError{NormalizeError(err)},
	}
}

// OK wraps a payload into a successful envelope with stamped metadata.
func OK[T any](providerID string, data T, recordCount int) *types.NormalizedResponse[T] {
	return &types.NormalizedResponse[T]{
		Success:  true,
		Data:     data,
		Metadata: NewMetadata(providerID, recordCount),
	}
}

// base carries the per-instance state shared by all concrete adapters:
// the provider config, the transient credential bundle, and the injected
// rate gate. Instances live for a single test/sync call.
type base struct {
	providerID string
	cfg        config.ProviderConfig
	creds      types.Credentials
	client     *http.Client
	gate       RateGate
}

func newBase(providerID string, cfg config.ProviderConfig, creds types.Credentials, client *http.Client, gate RateGate) base {
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return base{providerID: providerID, cfg: cfg, creds: creds, client: client, gate: gate}
}

// baseURL resolves the request origin, honoring a per-connection server
// URL override for self-hosted deployments.
func (b *base) baseURL() string {
	if b.creds.ServerURL != "" {
		return strings.TrimSuffix(b.creds.ServerURL, "/")
	}
	return strings.TrimSuffix(b.cfg.BaseURL, "/")
}

func (b *base) missingCredentials() *credentialError {
	var missing []string
	for _, field := range b.cfg.RequiredCredentials {
		if b.creds.Field(field) == "" {
			missing = append(missing, field)
		}
	}
	return &credentialError{missing: missing}
}

// do performs one provider call: credential pre-flight, rate gate, request
// build, status check, JSON decode. All failure modes come back as errors
// for NormalizeError to classify.
func (b *base) do(ctx context.Context, method, path string, query url.Values, reqBody, out any) error {
	if !ValidateCredentials(b.cfg, &b.creds) {
		return b.missingCredentials()
	}

	if b.gate != nil {
		if err := b.gate.Wait(ctx, b.providerID); err != nil {
			return err
		}
	}

	u := b.baseURL() + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", b.providerID, err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return fmt.Errorf("create %s request: %w", b.providerID, err)
	}
	req.Header = AuthHeaders(b.cfg, &b.creds)

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp.StatusCode, resp.Status, body)
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode %s response: %w", b.providerID, err)
		}
	}
	return nil
}

func (b *base) get(ctx context.Context, path string, query url.Values, out any) error {
	return b.do(ctx, http.MethodGet, path, query, nil, out)
}

// timedGet runs a GET and reports elapsed wall time in milliseconds, for
// connection probes.
func (b *base) timedGet(ctx context.Context, path string, out any) (int64, error) {
	start := time.Now()
	err := b.get(ctx, path, nil, out)
	return time.Since(start).Milliseconds(), err
}

// connMessage renders an error for a ConnectionTestResult message.
func connMessage(err error) string {
	if e, ok := err.(*apiError); ok {
		return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
	}
	return err.Error()
}
