package core

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	DefaultServiceName       = "consent-gateway"
	DefaultProviderBaseURL   = "https://sandbox-gateway.leegality.com"
	DefaultPreferenceURLType = "PRIVACY"

	CORSPolicyStrict = "strict"
	CORSPolicyLegacy = "legacy"
)

var (
	DefaultProviderScopes = []string{"auth", "consent-runner"}

	DefaultAllowedOrigins = []string{
		"https://leegality.webflow.io",
		"https://www.leegality.com",
		"https://consentin.webflow.io",
		"https://consent.in",
		"https://www.consent.in",
		"https://customer-onboarding-app.netlify.app",
		"https://digital-lending-app.figma.site",
		"https://digital-lending.figma.site",
		"https://*.figma.site",
		"https://yournaukri-hr-demo.netlify.app",
		"https://car-insurance-app.figma.site",
	}
)

type ProviderConfig struct {
	ClientID     string   `koanf:"client_id" mapstructure:"client_id"`
	ClientSecret string   `koanf:"client_secret" mapstructure:"client_secret"`
	BaseURL      string   `koanf:"base_url" mapstructure:"base_url"`
	Scopes       []string `koanf:"scopes" mapstructure:"scopes"`
}

// HasCredentials reports whether both halves of the client credentials are set.
func (c ProviderConfig) HasCredentials() bool {
	return strings.TrimSpace(c.ClientID) != "" && strings.TrimSpace(c.ClientSecret) != ""
}

type ConsentConfig struct {
	ProfileID         string `koanf:"profile_id" mapstructure:"profile_id"`
	ProfileVersion    int    `koanf:"profile_version" mapstructure:"profile_version"`
	PublicURLExpiry   int    `koanf:"public_url_expiry" mapstructure:"public_url_expiry"`
	SessionExpiry     int    `koanf:"session_expiry" mapstructure:"session_expiry"`
	PreferenceURLType string `koanf:"preference_url_type" mapstructure:"preference_url_type"`
	CPIDRandomSuffix  bool   `koanf:"cpid_random_suffix" mapstructure:"cpid_random_suffix"`
}

type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins" mapstructure:"allowed_origins"`
	Policy         string   `koanf:"policy" mapstructure:"policy"`
}

type TokenConfig struct {
	ExposeEndpoint     bool `koanf:"expose_endpoint" mapstructure:"expose_endpoint"`
	RenewBeforeSeconds int  `koanf:"renew_before_seconds" mapstructure:"renew_before_seconds"`
}

type HTTPConfig struct {
	RequestTimeoutSeconds int `koanf:"request_timeout_seconds" mapstructure:"request_timeout_seconds"`
}

type Config struct {
	ServiceName string         `koanf:"service_name" mapstructure:"service_name"`
	Provider    ProviderConfig `koanf:"provider" mapstructure:"provider"`
	Consent     ConsentConfig  `koanf:"consent" mapstructure:"consent"`
	CORS        CORSConfig     `koanf:"cors" mapstructure:"cors"`
	Token       TokenConfig    `koanf:"token" mapstructure:"token"`
	HTTP        HTTPConfig     `koanf:"http" mapstructure:"http"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: DefaultServiceName,
		Provider: ProviderConfig{
			BaseURL: DefaultProviderBaseURL,
			Scopes:  append([]string(nil), DefaultProviderScopes...),
		},
		Consent: ConsentConfig{
			ProfileVersion:    1,
			PublicURLExpiry:   60,
			SessionExpiry:     60,
			PreferenceURLType: DefaultPreferenceURLType,
		},
		CORS: CORSConfig{
			AllowedOrigins: append([]string(nil), DefaultAllowedOrigins...),
			Policy:         CORSPolicyStrict,
		},
		Token: TokenConfig{
			RenewBeforeSeconds: 60,
		},
		HTTP: HTTPConfig{
			RequestTimeoutSeconds: 10,
		},
	}
}

// Validate checks structural settings only. Missing client credentials are
// reported per request so a misconfigured deployment still answers CORS.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	baseURL := strings.TrimSpace(c.Provider.BaseURL)
	if baseURL == "" {
		return fmt.Errorf("core: provider.base_url is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("core: provider.base_url %q is invalid", baseURL)
	}
	if c.Consent.ProfileVersion < 1 {
		return fmt.Errorf("core: consent.profile_version must be positive")
	}
	if c.Consent.PublicURLExpiry < 0 || c.Consent.SessionExpiry < 0 {
		return fmt.Errorf("core: consent expiry values must not be negative")
	}
	switch strings.ToLower(strings.TrimSpace(c.CORS.Policy)) {
	case CORSPolicyStrict, CORSPolicyLegacy:
	default:
		return fmt.Errorf("core: cors.policy %q is invalid", c.CORS.Policy)
	}
	if c.Token.RenewBeforeSeconds < 0 {
		return fmt.Errorf("core: token.renew_before_seconds must not be negative")
	}
	if c.HTTP.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("core: http.request_timeout_seconds must be positive")
	}
	return nil
}

// Redacted returns a copy safe to print or log.
func (c Config) Redacted() Config {
	out := c
	if strings.TrimSpace(out.Provider.ClientSecret) != "" {
		out.Provider.ClientSecret = RedactedValue
	}
	out.Provider.Scopes = append([]string(nil), c.Provider.Scopes...)
	out.CORS.AllowedOrigins = append([]string(nil), c.CORS.AllowedOrigins...)
	return out
}
