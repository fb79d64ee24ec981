package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goliatone/go-consent-gateway/core"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"
)

const (
	GrantTypeClientCredentials = "client_credentials"

	DefaultTokenTTL     = 5 * time.Minute
	DefaultTokenTimeout = 10 * time.Second

	tokenFlightKey = "client_credentials"
)

var ErrTokenCacheClosed = errors.New("auth: token cache is closed")

type TokenCacheConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
	// DefaultTTL applies when the token response carries no expires_in.
	DefaultTTL  time.Duration
	RenewBefore time.Duration
	Timeout     time.Duration
	Now         func() time.Time
}

type TokenCacheStats struct {
	Exchanges     int64
	Hits          int64
	Invalidations int64
}

type cachedToken struct {
	token  core.OAuthToken
	margin time.Duration
}

// TokenCache memoizes the client-credentials token. Reads on a warm cache
// only take the read lock; concurrent misses share one exchange.
type TokenCache struct {
	config    TokenCacheConfig
	transport core.TransportAdapter
	logger    core.Logger
	metrics   core.MetricsRecorder

	mu     sync.RWMutex
	cached cachedToken
	closed bool

	group         singleflight.Group
	exchanges     atomic.Int64
	hits          atomic.Int64
	invalidations atomic.Int64
}

type TokenCacheOption func(*TokenCache)

func WithTokenLogger(logger core.Logger) TokenCacheOption {
	return func(c *TokenCache) {
		c.logger = logger
	}
}

func WithTokenMetrics(recorder core.MetricsRecorder) TokenCacheOption {
	return func(c *TokenCache) {
		c.metrics = recorder
	}
}

func NewTokenCache(cfg TokenCacheConfig, transport core.TransportAdapter, opts ...TokenCacheOption) (*TokenCache, error) {
	if transport == nil {
		return nil, errors.New("auth: token cache requires a transport adapter")
	}
	tokenURL := strings.TrimSpace(cfg.TokenURL)
	if tokenURL == "" {
		return nil, errors.New("auth: token url is required")
	}
	if _, err := url.ParseRequestURI(tokenURL); err != nil {
		return nil, errors.New("auth: token url is invalid")
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultTokenTTL
	}
	if cfg.RenewBefore < 0 {
		cfg.RenewBefore = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTokenTimeout
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	cfg.ClientID = strings.TrimSpace(cfg.ClientID)
	cfg.ClientSecret = strings.TrimSpace(cfg.ClientSecret)
	cfg.TokenURL = tokenURL
	cfg.Scopes = normalizeScopes(cfg.Scopes)

	cache := &TokenCache{
		config:    cfg,
		transport: transport,
		metrics:   core.NopMetricsRecorder{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cache)
		}
	}
	cache.logger = glog.Ensure(cache.logger)
	if cache.metrics == nil {
		cache.metrics = core.NopMetricsRecorder{}
	}
	return cache, nil
}

// Token returns the cached token, exchanging credentials when it is missing or
// inside the renewal margin.
func (c *TokenCache) Token(ctx context.Context) (core.OAuthToken, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if token, ok, err := c.lookup(); err != nil {
		return core.OAuthToken{}, err
	} else if ok {
		c.hits.Add(1)
		c.metrics.IncCounter(ctx, core.MetricTokenCacheHitTotal, 1, nil)
		return token, nil
	}

	resultCh := c.group.DoChan(tokenFlightKey, func() (any, error) {
		if token, ok, err := c.lookup(); err != nil || ok {
			return token, err
		}
		token, margin, err := c.exchange(context.WithoutCancel(ctx))
		if err != nil {
			return core.OAuthToken{}, err
		}
		c.store(token, margin)
		return token, nil
	})

	select {
	case <-ctx.Done():
		return core.OAuthToken{}, core.WrapUpstreamAuthError(ctx.Err())
	case result := <-resultCh:
		if result.Err != nil {
			return core.OAuthToken{}, result.Err
		}
		return result.Val.(core.OAuthToken), nil
	}
}

// Invalidate drops the cached token when it still matches accessToken, so a
// stale rejection cannot evict a newer token.
func (c *TokenCache) Invalidate(accessToken string) {
	accessToken = strings.TrimSpace(accessToken)
	if c == nil || accessToken == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cached.token.AccessToken != accessToken {
		return
	}
	c.cached = cachedToken{}
	c.invalidations.Add(1)
	c.metrics.IncCounter(context.Background(), core.MetricTokenInvalidatedTotal, 1, nil)
	c.logger.Info("cached access token invalidated")
}

func (c *TokenCache) Stats() TokenCacheStats {
	return TokenCacheStats{
		Exchanges:     c.exchanges.Load(),
		Hits:          c.hits.Load(),
		Invalidations: c.invalidations.Load(),
	}
}

// Close clears the cached token; later calls to Token fail.
func (c *TokenCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cached = cachedToken{}
	c.closed = true
	return nil
}

func (c *TokenCache) lookup() (core.OAuthToken, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.OAuthToken{}, false, ErrTokenCacheClosed
	}
	if c.cached.token.Valid(c.config.Now(), c.cached.margin) {
		return c.cached.token, true, nil
	}
	return core.OAuthToken{}, false, nil
}

func (c *TokenCache) store(token core.OAuthToken, margin time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.cached = cachedToken{token: token, margin: margin}
}

func (c *TokenCache) exchange(ctx context.Context) (core.OAuthToken, time.Duration, error) {
	c.exchanges.Add(1)
	startedAt := time.Now()
	token, margin, err := c.requestToken(ctx)

	status := "success"
	if err != nil {
		status = "failure"
	}
	tags := map[string]string{"status": status}
	c.metrics.IncCounter(ctx, core.MetricTokenExchangeTotal, 1, tags)
	c.metrics.ObserveHistogram(ctx, core.MetricTokenExchangeDurationMS, float64(time.Since(startedAt).Milliseconds()), tags)
	if err != nil {
		c.logger.Error("token exchange failed", "error", err.Error())
		return core.OAuthToken{}, 0, err
	}
	c.logger.Debug("token exchanged", "expires_at", token.ExpiresAtEpochSeconds(), "scope", token.Scope)
	return token, margin, nil
}

func (c *TokenCache) requestToken(ctx context.Context) (core.OAuthToken, time.Duration, error) {
	form := url.Values{}
	form.Set("grant_type", GrantTypeClientCredentials)
	if len(c.config.Scopes) > 0 {
		form.Set("scope", strings.Join(c.config.Scopes, " "))
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	resp, err := c.transport.Do(requestCtx, core.TransportRequest{
		Method: http.MethodPost,
		URL:    c.config.TokenURL,
		Headers: map[string]string{
			core.HeaderAuthorization: basicAuthorization(c.config.ClientID, c.config.ClientSecret),
			core.HeaderContentType:   "application/x-www-form-urlencoded",
			"Accept":                 core.ContentTypeJSON,
		},
		Body:    []byte(form.Encode()),
		Timeout: c.config.Timeout,
	})
	if err != nil {
		return core.OAuthToken{}, 0, core.WrapUpstreamAuthError(err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return core.OAuthToken{}, 0, core.UpstreamAuthError(resp.StatusCode, resp.Body)
	}
	return c.parseToken(resp)
}

func (c *TokenCache) parseToken(resp core.TransportResponse) (core.OAuthToken, time.Duration, error) {
	if !gjson.ValidBytes(resp.Body) {
		return core.OAuthToken{}, 0, core.UpstreamAuthError(resp.StatusCode, resp.Body)
	}
	fields := gjson.GetManyBytes(resp.Body, "access_token", "expires_in", "token_type", "scope")
	accessToken := strings.TrimSpace(fields[0].String())
	if accessToken == "" {
		return core.OAuthToken{}, 0, core.UpstreamAuthError(resp.StatusCode, resp.Body)
	}

	lifetime := c.config.DefaultTTL
	if fields[1].Exists() {
		if seconds := fields[1].Int(); seconds > 0 {
			lifetime = time.Duration(seconds) * time.Second
		}
	}
	now := c.config.Now()
	return core.OAuthToken{
		AccessToken: accessToken,
		TokenType:   firstNonEmpty(fields[2].String(), "Bearer"),
		Scope:       firstNonEmpty(fields[3].String(), strings.Join(c.config.Scopes, " ")),
		ExpiresAt:   now.Add(lifetime),
	}, renewMargin(c.config.RenewBefore, lifetime), nil
}

func basicAuthorization(clientID string, clientSecret string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(clientID+":"+clientSecret))
}

var _ core.TokenSource = (*TokenCache)(nil)
