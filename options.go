package consentgateway

import (
	"time"

	"github.com/goliatone/go-consent-gateway/core"
	"github.com/goliatone/go-consent-gateway/transport"
)

type options struct {
	runtime        core.Config
	rawLoader      core.RawConfigLoader
	configProvider core.ConfigProvider
	resolver       core.OptionsResolver
	httpClient     transport.HTTPDoer
	transport      core.TransportAdapter
	logger         core.Logger
	loggerProvider core.LoggerProvider
	metrics        core.MetricsRecorder
	now            func() time.Time
}

type Option func(*options)

// WithRuntimeConfig sets the highest priority layer. Zero values do not
// override lower layers.
func WithRuntimeConfig(cfg core.Config) Option {
	return func(o *options) {
		o.runtime = cfg
	}
}

// WithRawConfigLoader replaces the environment as the source of the middle
// configuration layer.
func WithRawConfigLoader(loader core.RawConfigLoader) Option {
	return func(o *options) {
		o.rawLoader = loader
	}
}

func WithConfigProvider(provider core.ConfigProvider) Option {
	return func(o *options) {
		o.configProvider = provider
	}
}

func WithOptionsResolver(resolver core.OptionsResolver) Option {
	return func(o *options) {
		o.resolver = resolver
	}
}

func WithHTTPClient(client transport.HTTPDoer) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithTransport replaces the REST adapter for every outbound call.
func WithTransport(adapter core.TransportAdapter) Option {
	return func(o *options) {
		o.transport = adapter
	}
}

func WithLogger(logger core.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(o *options) {
		o.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) Option {
	return func(o *options) {
		o.metrics = recorder
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func newOptions(opts ...Option) options {
	out := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&out)
		}
	}
	if out.metrics == nil {
		out.metrics = core.NopMetricsRecorder{}
	}
	if out.now == nil {
		out.now = func() time.Time { return time.Now().UTC() }
	}
	return out
}
