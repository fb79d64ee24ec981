package consentgateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-consent-gateway/adapters/gocommand"
	"github.com/goliatone/go-consent-gateway/auth"
	"github.com/goliatone/go-consent-gateway/core"
	"github.com/goliatone/go-consent-gateway/gateway"
	"github.com/goliatone/go-consent-gateway/providers/leegality"
	"github.com/goliatone/go-consent-gateway/query"
	"github.com/goliatone/go-consent-gateway/transport"
	glog "github.com/goliatone/go-logger/glog"
)

// Gateway owns the token cache and everything built on top of it. One
// Gateway serves all requests of a process.
type Gateway struct {
	config     core.Config
	logger     core.Logger
	tokenCache *auth.TokenCache
	client     *leegality.Client
	service    *core.Service
	handler    *gateway.Handler
}

func New(ctx context.Context, opts ...Option) (*Gateway, error) {
	o := newOptions(opts...)
	cfg, err := resolveConfig(ctx, o)
	if err != nil {
		return nil, err
	}

	provider, logger := glog.Resolve(cfg.ServiceName, o.loggerProvider, o.logger)
	logger = glog.Ensure(logger)
	named := func(suffix string) core.Logger {
		if provider == nil {
			return logger
		}
		return glog.Ensure(provider.GetLogger(cfg.ServiceName + "." + suffix))
	}

	adapter := o.transport
	if adapter == nil {
		adapter = transport.NewRESTAdapter(o.httpClient)
	}
	timeout := time.Duration(cfg.HTTP.RequestTimeoutSeconds) * time.Second

	client, err := leegality.New(leegality.Config{
		BaseURL: cfg.Provider.BaseURL,
		Timeout: timeout,
	}, adapter)
	if err != nil {
		return nil, err
	}

	tokenCache, err := auth.NewTokenCache(auth.TokenCacheConfig{
		ClientID:     cfg.Provider.ClientID,
		ClientSecret: cfg.Provider.ClientSecret,
		TokenURL:     client.TokenURL(),
		Scopes:       cfg.Provider.Scopes,
		RenewBefore:  time.Duration(cfg.Token.RenewBeforeSeconds) * time.Second,
		Timeout:      timeout,
		Now:          o.now,
	}, adapter,
		auth.WithTokenLogger(named("token")),
		auth.WithTokenMetrics(o.metrics),
	)
	if err != nil {
		return nil, err
	}

	service, err := core.NewService(cfg,
		core.WithLogger(logger),
		core.WithLoggerProvider(provider),
		core.WithMetricsRecorder(o.metrics),
		core.WithTokenSource(tokenCache),
		core.WithConsentClient(client),
		core.WithClock(o.now),
	)
	if err != nil {
		return nil, err
	}

	handler, err := gateway.NewHandler(service, cfg.CORS,
		gateway.WithLogger(named("handler")),
		gateway.WithMetricsRecorder(o.metrics),
		gateway.WithErrorMapper(service.MapError),
	)
	if err != nil {
		return nil, err
	}

	if !cfg.Provider.HasCredentials() {
		logger.Warn("client credentials are not configured; consent requests will fail")
	}
	logger.Info("consent gateway ready",
		"base_url", cfg.Provider.BaseURL,
		"cors_policy", cfg.CORS.Policy,
		"token_endpoint", cfg.Token.ExposeEndpoint,
	)

	return &Gateway{
		config:     cfg,
		logger:     logger,
		tokenCache: tokenCache,
		client:     client,
		service:    service,
		handler:    handler,
	}, nil
}

func resolveConfig(ctx context.Context, o options) (core.Config, error) {
	provider := o.configProvider
	if provider == nil {
		loader := o.rawLoader
		if loader == nil {
			loader = core.NewEnvConfigLoader()
		}
		provider = core.NewCfgxConfigProvider(loader)
	}
	cfg, err := core.ResolveConfig(ctx, provider, o.resolver, o.runtime)
	if err != nil {
		return core.Config{}, fmt.Errorf("consentgateway: resolve config: %w", err)
	}
	cfg.CORS.Policy = strings.ToLower(strings.TrimSpace(cfg.CORS.Policy))
	return cfg, nil
}

// Handle serves one request. It satisfies the net/http and lambda adapters.
func (g *Gateway) Handle(ctx context.Context, req core.IncomingRequest) core.OutgoingResponse {
	return g.handler.Handle(ctx, req)
}

func (g *Gateway) Config() core.Config {
	return g.config
}

func (g *Gateway) Service() *core.Service {
	return g.service
}

func (g *Gateway) Client() *leegality.Client {
	return g.client
}

func (g *Gateway) TokenStats() auth.TokenCacheStats {
	return g.tokenCache.Stats()
}

func (g *Gateway) Queries() query.Set {
	return query.NewSet(g.service)
}

// RegisterQueries exposes the consent operations on the go-command dispatcher.
func (g *Gateway) RegisterQueries(adapter *gocommand.RegistryAdapter) ([]commanddispatcher.Subscription, error) {
	return gocommand.RegisterConsentQueries(adapter, g.Queries())
}

// Close drops the cached token. Requests served afterwards fail with an
// upstream auth error.
func (g *Gateway) Close() error {
	if g == nil || g.tokenCache == nil {
		return nil
	}
	g.logger.Info("consent gateway closed", "token_exchanges", g.tokenCache.Stats().Exchanges)
	return g.tokenCache.Close()
}
