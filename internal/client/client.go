// Package client is a typed Go client for the ELD gateway HTTP API. It
// mirrors the /api/eld surface so back-office services can call the
// gateway without hand-building requests.
package client

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

	"github.com/carriernest/eld-gateway/internal/eld"
	"github.com/carriernest/eld-gateway/internal/types"
)

// APIResponse is the gateway's uniform envelope, decoded with a typed
// payload. A transport or HTTP-level failure is reported the same way as
// a gateway-level one: Success false and Error set.
type APIResponse[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error,omitempty"`
	Details string `json:"details,omitempty"`
}

// Client calls the ELD gateway. Safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for a gateway at baseURL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// encodeCredentials produces the Authorization bearer token the gateway
// expects on resource routes: base64 of the credentials JSON.
func encodeCredentials(creds types.Credentials) (string, error) {
	raw, err := json.Marshal(creds)
	if err != nil {
		return "", fmt.Errorf("marshal credentials: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func fail[T any](err error) *APIResponse[T] {
	return &APIResponse[T]{Success: false, Error: err.Error()}
}

// do executes a request and decodes the envelope into out. Non-2xx
// responses still carry an envelope body; when decoding that fails the
// status line becomes the error.
func do[T any](c *Client, ctx context.Context, method, path string, query url.Values, body any, headers map[string]string) *APIResponse[T] {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fail[T](fmt.Errorf("marshal request: %w", err))
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fail[T](err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fail[T](err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail[T](err)
	}

	var out APIResponse[T]
	if err := json.Unmarshal(raw, &out); err != nil {
		out = APIResponse[T]{Success: false, Error: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		out.Success = false
		if out.Error == "" {
			out.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
	}
	return &out
}

func carrierHeaders(carrierID string) map[string]string {
	return map[string]string{"X-Carrier-ID": carrierID}
}

func credentialHeaders(creds types.Credentials) (map[string]string, error) {
	token, err := encodeCredentials(creds)
	if err != nil {
		return nil, err
	}
	return map[string]string{"Authorization": "Bearer " + token}, nil
}

// GetProviders lists the providers the gateway has configured.
func (c *Client) GetProviders(ctx context.Context) *APIResponse[[]eld.Descriptor] {
	return do[[]eld.Descriptor](c, ctx, http.MethodGet, "/api/eld/providers", nil, nil, nil)
}

type testConnectionRequest struct {
	ProviderID  string            `json:"providerId"`
	Credentials types.Credentials `json:"credentials"`
}

// TestConnection probes a provider with the given credentials.
func (c *Client) TestConnection(ctx context.Context, providerID string, creds types.Credentials) *APIResponse[types.ConnectionTestResult] {
	body := testConnectionRequest{ProviderID: providerID, Credentials: creds}
	return do[types.ConnectionTestResult](c, ctx, http.MethodPost, "/api/eld/test-connection", nil, body, nil)
}

type syncRequest struct {
	ProviderID  string             `json:"providerId"`
	Credentials types.Credentials  `json:"credentials"`
	Params      *types.QueryParams `json:"params,omitempty"`
	SyncType    string             `json:"syncType,omitempty"`
}

// SyncData runs a sync through the gateway. syncType is "full" or one of
// "drivers", "vehicles", "logs", "violations"; empty means full.
func (c *Client) SyncData(ctx context.Context, providerID string, creds types.Credentials, params *types.QueryParams, syncType string) *APIResponse[json.RawMessage] {
	body := syncRequest{ProviderID: providerID, Credentials: creds, Params: params, SyncType: syncType}
	return do[json.RawMessage](c, ctx, http.MethodPost, "/api/eld/sync", nil, body, nil)
}

func resource[T any](c *Client, ctx context.Context, providerID, kind string, creds types.Credentials, params *types.QueryParams) *APIResponse[types.NormalizedResponse[T]] {
	headers, err := credentialHeaders(creds)
	if err != nil {
		return fail[types.NormalizedResponse[T]](err)
	}
	path := fmt.Sprintf("/api/eld/%s/%s", url.PathEscape(providerID), kind)
	return do[types.NormalizedResponse[T]](c, ctx, http.MethodGet, path, params.Values(), nil, headers)
}

// GetDrivers fetches normalized drivers from a provider.
func (c *Client) GetDrivers(ctx context.Context, providerID string, creds types.Credentials, params *types.QueryParams) *APIResponse[types.NormalizedResponse[[]types.Driver]] {
	return resource[[]types.Driver](c, ctx, providerID, "drivers", creds, params)
}

// GetVehicles fetches normalized vehicles from a provider.
func (c *Client) GetVehicles(ctx context.Context, providerID string, creds types.Credentials, params *types.QueryParams) *APIResponse[types.NormalizedResponse[[]types.Vehicle]] {
	return resource[[]types.Vehicle](c, ctx, providerID, "vehicles", creds, params)
}

// GetLogs fetches normalized HOS logs from a provider.
func (c *Client) GetLogs(ctx context.Context, providerID string, creds types.Credentials, params *types.QueryParams) *APIResponse[types.NormalizedResponse[[]types.LogEntry]] {
	return resource[[]types.LogEntry](c, ctx, providerID, "logs", creds, params)
}

// GetViolations fetches normalized violations from a provider.
func (c *Client) GetViolations(ctx context.Context, providerID string, creds types.Credentials, params *types.QueryParams) *APIResponse[types.NormalizedResponse[[]types.Violation]] {
	return resource[[]types.Violation](c, ctx, providerID, "violations", creds, params)
}

// Connection is the gateway's stored-connection payload.
type Connection struct {
	ID           string  `json:"id"`
	ProviderID   string  `json:"providerId"`
	ProviderName string  `json:"providerName"`
	IsActive     bool    `json:"isActive"`
	SyncStatus   string  `json:"syncStatus"`
	ErrorMessage *string `json:"errorMessage"`
	LastSyncAt   *string `json:"lastSyncAt"`
	CreatedAt    string  `json:"createdAt"`
	UpdatedAt    string  `json:"updatedAt"`
}

// GetConnection returns the carrier's stored connection; Data is the zero
// Connection when none exists (the gateway responds success with null data).
func (c *Client) GetConnection(ctx context.Context, carrierID string) *APIResponse[*Connection] {
	return do[*Connection](c, ctx, http.MethodGet, "/api/eld/connections", nil, nil, carrierHeaders(carrierID))
}

type createConnectionRequest struct {
	ProviderID   string            `json:"providerId"`
	ProviderName string            `json:"providerName"`
	Credentials  types.Credentials `json:"credentials"`
}

// CreateConnection verifies credentials against the provider and stores
// the carrier's connection.
func (c *Client) CreateConnection(ctx context.Context, carrierID, providerID, providerName string, creds types.Credentials) *APIResponse[*Connection] {
	body := createConnectionRequest{ProviderID: providerID, ProviderName: providerName, Credentials: creds}
	return do[*Connection](c, ctx, http.MethodPost, "/api/eld/connections", nil, body, carrierHeaders(carrierID))
}

// DeleteConnection removes the carrier's stored connection.
func (c *Client) DeleteConnection(ctx context.Context, carrierID string) *APIResponse[map[string]string] {
	return do[map[string]string](c, ctx, http.MethodDelete, "/api/eld/connections", nil, nil, carrierHeaders(carrierID))
}

// TriggerManualSync asks the gateway to sync the carrier's connection now.
func (c *Client) TriggerManualSync(ctx context.Context, carrierID string) *APIResponse[map[string]string] {
	return do[map[string]string](c, ctx, http.MethodPost, "/api/eld/manual-sync", nil, nil, carrierHeaders(carrierID))
}

// SyncStatus is the carrier's current sync state.
type SyncStatus struct {
	Status           string  `json:"status"`
	LastSyncAt       *string `json:"lastSyncAt"`
	ErrorMessage     *string `json:"errorMessage"`
	NextSyncEstimate *string `json:"nextSyncEstimate"`
}

// GetSyncStatus reports the carrier's sync status and next scheduled run.
func (c *Client) GetSyncStatus(ctx context.Context, carrierID string) *APIResponse[SyncStatus] {
	return do[SyncStatus](c, ctx, http.MethodGet, "/api/eld/manual-sync", nil, nil, carrierHeaders(carrierID))
}
