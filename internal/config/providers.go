package config

import "time"

// Auth types supported by the adapter layer.
const (
	AuthAPIKey    = "api_key"
	AuthOAuth     = "oauth"
	AuthBasicAuth = "basic_auth"
)

type ProvidersConfig struct {
	Providers map[string]ProviderConfig `yaml:"providers"`
}

// ProviderConfig is the static description of one ELD vendor. Immutable
// once loaded; one copy is handed to each adapter instance.
type ProviderConfig struct {
	Type                string            `yaml:"type"`
	Name                string            `yaml:"name"`
	Description         string            `yaml:"description"`
	Website             string            `yaml:"website,omitempty"`
	BaseURL             string            `yaml:"base_url"`
	AuthType            string            `yaml:"auth_type"`
	RequiredCredentials []string          `yaml:"required_credentials"`
	Endpoints           EndpointMap       `yaml:"endpoints"`
	RateLimit           *RateLimitConfig  `yaml:"rate_limit,omitempty"`
	Timeout             time.Duration     `yaml:"timeout"`
	MaxConcurrent       int               `yaml:"max_concurrent"`
	Headers             map[string]string `yaml:"headers,omitempty"`
	Fields              FieldConfig       `yaml:"fields"`
}

// EndpointMap maps the four data categories to provider URL paths.
type EndpointMap struct {
	Drivers    string `yaml:"drivers" json:"drivers"`
	Vehicles   string `yaml:"vehicles" json:"vehicles"`
	Logs       string `yaml:"logs" json:"logs"`
	Violations string `yaml:"violations" json:"violations"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	RequestsPerHour   int `yaml:"requests_per_hour"`
}

// FieldConfig describes how the connection form should label credential
// inputs for this provider.
type FieldConfig struct {
	APIKeyLabel          string `yaml:"api_key_label" json:"apiKeyLabel"`
	APIKeyPlaceholder    string `yaml:"api_key_placeholder" json:"apiKeyPlaceholder"`
	SecretKeyLabel       string `yaml:"secret_key_label" json:"secretKeyLabel"`
	SecretKeyPlaceholder string `yaml:"secret_key_placeholder" json:"secretKeyPlaceholder"`
	ShowServerURL        bool   `yaml:"show_server_url" json:"showServerUrl"`
}

// DefaultFieldConfig is used when a provider declares no field overrides.
func DefaultFieldConfig() FieldConfig {
	return FieldConfig{
		APIKeyLabel:          "API Key",
		APIKeyPlaceholder:    "Enter your API key",
		SecretKeyLabel:       "Secret Key",
		SecretKeyPlaceholder: "Enter your secret key",
		ShowServerURL:        true,
	}
}
