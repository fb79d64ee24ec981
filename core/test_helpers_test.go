package core

import (
	"context"
	"sync"
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

type stubTokenSource struct {
	mu          sync.Mutex
	token       OAuthToken
	err         error
	calls       int
	invalidated []string
}

func (s *stubTokenSource) Token(context.Context) (OAuthToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return OAuthToken{}, s.err
	}
	return s.token, nil
}

func (s *stubTokenSource) Invalidate(accessToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidated = append(s.invalidated, accessToken)
}

type stubConsentClient struct {
	mu             sync.Mutex
	registerResp   ProviderResponse
	updateResp     ProviderResponse
	err            error
	registerCalls  []RegisterRequest
	updateCalls    []UpdateRequest
	receivedTokens []string
}

func (c *stubConsentClient) Register(_ context.Context, accessToken string, req RegisterRequest) (ProviderResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registerCalls = append(c.registerCalls, req)
	c.receivedTokens = append(c.receivedTokens, accessToken)
	if c.err != nil {
		return ProviderResponse{}, c.err
	}
	return c.registerResp, nil
}

func (c *stubConsentClient) Update(_ context.Context, accessToken string, req UpdateRequest) (ProviderResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updateCalls = append(c.updateCalls, req)
	c.receivedTokens = append(c.receivedTokens, accessToken)
	if c.err != nil {
		return ProviderResponse{}, c.err
	}
	return c.updateResp, nil
}

func (c *stubConsentClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.registerCalls) + len(c.updateCalls)
}

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	return l.values, nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Provider.ClientID = "client-id"
	cfg.Provider.ClientSecret = "client-secret"
	cfg.Consent.ProfileID = "profile-default"
	return cfg
}

func validToken() OAuthToken {
	return OAuthToken{
		AccessToken: "T",
		TokenType:   "Bearer",
		Scope:       "auth consent-runner",
		ExpiresAt:   testNow.Add(time.Hour),
	}
}

func newTestService(t *testing.T, cfg Config, tokens *stubTokenSource, client *stubConsentClient, opts ...Option) *Service {
	t.Helper()
	base := []Option{
		WithTokenSource(tokens),
		WithConsentClient(client),
		WithClock(func() time.Time { return testNow }),
		WithLogger(stubLogger{}),
	}
	svc, err := NewService(cfg, append(base, opts...)...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}
