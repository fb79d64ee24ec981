// Package leegality talks to the Leegality consent-runner API.
package leegality

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-consent-gateway/core"
)

const (
	ProviderID = "leegality"

	TokenPath    = "/auth/oauth2/token"
	RegisterPath = "/consent-runner/api/v1/consents/client/register"
	UpdatePath   = "/consent-runner/api/v1/consents/client/update"

	DefaultTimeout = 10 * time.Second
)

type Config struct {
	BaseURL string
	Timeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		BaseURL: core.DefaultProviderBaseURL,
		Timeout: DefaultTimeout,
	}
}

type Client struct {
	baseURL   string
	timeout   time.Duration
	transport core.TransportAdapter
}

func New(cfg Config, transport core.TransportAdapter) (*Client, error) {
	if transport == nil {
		return nil, errors.New("leegality: transport adapter is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = core.DefaultProviderBaseURL
	}
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("leegality: base url %q is invalid", cfg.BaseURL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{baseURL: baseURL, timeout: timeout, transport: transport}, nil
}

func (c *Client) ID() string {
	return ProviderID
}

// TokenURL is the client-credentials endpoint on the same gateway host.
func (c *Client) TokenURL() string {
	return c.baseURL + TokenPath
}

func (c *Client) Register(ctx context.Context, accessToken string, req core.RegisterRequest) (core.ProviderResponse, error) {
	return c.post(ctx, RegisterPath, accessToken, req, core.ActionRegister)
}

func (c *Client) Update(ctx context.Context, accessToken string, req core.UpdateRequest) (core.ProviderResponse, error) {
	return c.post(ctx, UpdatePath, accessToken, req, core.ActionUpdate)
}

func (c *Client) post(ctx context.Context, path string, accessToken string, payload any, action string) (core.ProviderResponse, error) {
	if c == nil || c.transport == nil {
		return core.ProviderResponse{}, errors.New("leegality: client is not configured")
	}
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return core.ProviderResponse{}, errors.New("leegality: access token is required")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return core.ProviderResponse{}, fmt.Errorf("leegality: encode %s payload: %w", action, err)
	}
	resp, err := c.transport.Do(ctx, core.TransportRequest{
		Method: http.MethodPost,
		URL:    c.baseURL + path,
		Headers: map[string]string{
			core.HeaderAuthorization: "Bearer " + accessToken,
			core.HeaderContentType:   core.ContentTypeJSON,
			"Accept":                 core.ContentTypeJSON,
		},
		Body:     body,
		Timeout:  c.timeout,
		Metadata: map[string]any{"provider": ProviderID, "action": action},
	})
	if err != nil {
		return core.ProviderResponse{}, err
	}
	return core.ProviderResponse{StatusCode: resp.StatusCode, Body: resp.Body}, nil
}

var _ core.ConsentClient = (*Client)(nil)
