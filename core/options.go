package core

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	opts "github.com/goliatone/go-options"
)

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

// ResolveConfig loads the environment layer and merges it between the defaults
// and the runtime overrides.
func ResolveConfig(ctx context.Context, provider ConfigProvider, resolver OptionsResolver, runtime Config) (Config, error) {
	if provider == nil {
		provider = NewCfgxConfigProvider(nil)
	}
	if resolver == nil {
		resolver = GoOptionsResolver{}
	}
	defaults := DefaultConfig()
	loaded, err := provider.Load(ctx, defaults)
	if err != nil {
		return Config{}, err
	}
	return resolver.Resolve(defaults, loaded, runtime)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

func NewStaticConfigLoader(values map[string]any) RawConfigLoader {
	return staticRawConfigLoader{Values: values}
}

type envBinding struct {
	name    string
	section string
	key     string
	kind    string
}

const (
	envKindString = "string"
	envKindInt    = "int"
	envKindBool   = "bool"
	envKindList   = "list"
	envKindScopes = "scopes"
)

var envBindings = []envBinding{
	{name: "CONSENT_GATEWAY_SERVICE_NAME", key: "service_name", kind: envKindString},
	{name: "LEEGALITY_CLIENT_ID", section: "provider", key: "client_id", kind: envKindString},
	{name: "LEEGALITY_CLIENT_SECRET", section: "provider", key: "client_secret", kind: envKindString},
	{name: "LEEGALITY_BASE_URL", section: "provider", key: "base_url", kind: envKindString},
	{name: "LEEGALITY_SCOPE", section: "provider", key: "scopes", kind: envKindScopes},
	{name: "CONSENT_PROFILE_ID", section: "consent", key: "profile_id", kind: envKindString},
	{name: "CONSENT_PROFILE_VERSION", section: "consent", key: "profile_version", kind: envKindInt},
	{name: "CONSENT_PUBLIC_URL_EXPIRY", section: "consent", key: "public_url_expiry", kind: envKindInt},
	{name: "CONSENT_SESSION_EXPIRY", section: "consent", key: "session_expiry", kind: envKindInt},
	{name: "CONSENT_PREFERENCE_URL_TYPE", section: "consent", key: "preference_url_type", kind: envKindString},
	{name: "CONSENT_CPID_RANDOM_SUFFIX", section: "consent", key: "cpid_random_suffix", kind: envKindBool},
	{name: "CONSENT_GATEWAY_ALLOWED_ORIGINS", section: "cors", key: "allowed_origins", kind: envKindList},
	{name: "CONSENT_GATEWAY_CORS_POLICY", section: "cors", key: "policy", kind: envKindString},
	{name: "CONSENT_GATEWAY_TOKEN_ENDPOINT", section: "token", key: "expose_endpoint", kind: envKindBool},
	{name: "CONSENT_GATEWAY_TOKEN_RENEW_BEFORE_SECONDS", section: "token", key: "renew_before_seconds", kind: envKindInt},
	{name: "CONSENT_GATEWAY_REQUEST_TIMEOUT_SECONDS", section: "http", key: "request_timeout_seconds", kind: envKindInt},
}

// EnvConfigLoader maps process environment variables onto the raw config tree.
type EnvConfigLoader struct {
	Lookup func(key string) (string, bool)
}

func NewEnvConfigLoader() *EnvConfigLoader {
	return &EnvConfigLoader{Lookup: os.LookupEnv}
}

func (l *EnvConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	lookup := os.LookupEnv
	if l != nil && l.Lookup != nil {
		lookup = l.Lookup
	}
	raw := map[string]any{}
	for _, binding := range envBindings {
		value, ok := lookup(binding.name)
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		parsed, err := parseEnvValue(binding, value)
		if err != nil {
			return nil, err
		}
		target := raw
		if binding.section != "" {
			section, ok := raw[binding.section].(map[string]any)
			if !ok {
				section = map[string]any{}
				raw[binding.section] = section
			}
			target = section
		}
		target[binding.key] = parsed
	}
	return raw, nil
}

func parseEnvValue(binding envBinding, value string) (any, error) {
	switch binding.kind {
	case envKindInt:
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("core: env %s must be an integer: %w", binding.name, err)
		}
		return parsed, nil
	case envKindBool:
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("core: env %s must be a boolean: %w", binding.name, err)
		}
		return parsed, nil
	case envKindList:
		return splitList(value, ","), nil
	case envKindScopes:
		return strings.Fields(value), nil
	default:
		return value, nil
	}
}

func splitList(value string, sep string) []string {
	parts := strings.Split(value, sep)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("environment", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("environment"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}

	provider := map[string]any{}
	putString(provider, "client_id", cfg.Provider.ClientID, includeZero)
	putString(provider, "client_secret", cfg.Provider.ClientSecret, includeZero)
	putString(provider, "base_url", cfg.Provider.BaseURL, includeZero)
	if includeZero || len(cfg.Provider.Scopes) > 0 {
		provider["scopes"] = append([]string(nil), cfg.Provider.Scopes...)
	}
	putSection(layer, "provider", provider)

	consent := map[string]any{}
	putString(consent, "profile_id", cfg.Consent.ProfileID, includeZero)
	putInt(consent, "profile_version", cfg.Consent.ProfileVersion, includeZero)
	putInt(consent, "public_url_expiry", cfg.Consent.PublicURLExpiry, includeZero)
	putInt(consent, "session_expiry", cfg.Consent.SessionExpiry, includeZero)
	putString(consent, "preference_url_type", cfg.Consent.PreferenceURLType, includeZero)
	putBool(consent, "cpid_random_suffix", cfg.Consent.CPIDRandomSuffix, includeZero)
	putSection(layer, "consent", consent)

	cors := map[string]any{}
	if includeZero || len(cfg.CORS.AllowedOrigins) > 0 {
		cors["allowed_origins"] = append([]string(nil), cfg.CORS.AllowedOrigins...)
	}
	putString(cors, "policy", cfg.CORS.Policy, includeZero)
	putSection(layer, "cors", cors)

	token := map[string]any{}
	putBool(token, "expose_endpoint", cfg.Token.ExposeEndpoint, includeZero)
	putInt(token, "renew_before_seconds", cfg.Token.RenewBeforeSeconds, includeZero)
	putSection(layer, "token", token)

	httpSection := map[string]any{}
	putInt(httpSection, "request_timeout_seconds", cfg.HTTP.RequestTimeoutSeconds, includeZero)
	putSection(layer, "http", httpSection)
	return layer
}

func putString(target map[string]any, key string, value string, includeZero bool) {
	if includeZero || strings.TrimSpace(value) != "" {
		target[key] = value
	}
}

func putInt(target map[string]any, key string, value int, includeZero bool) {
	if includeZero || value != 0 {
		target[key] = value
	}
}

func putBool(target map[string]any, key string, value bool, includeZero bool) {
	if includeZero || value {
		target[key] = value
	}
}

func putSection(layer map[string]any, key string, section map[string]any) {
	if len(section) > 0 {
		layer[key] = section
	}
}

type serviceBuilder struct {
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	tokenSource     TokenSource
	consentClient   ConsentClient
	now             func() time.Time
	newID           func() string
}

type Option func(*serviceBuilder)

type ErrorMapper func(err error) *goerrors.Error

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithTokenSource(source TokenSource) Option {
	return func(b *serviceBuilder) {
		b.tokenSource = source
	}
}

func WithConsentClient(client ConsentClient) Option {
	return func(b *serviceBuilder) {
		b.consentClient = client
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *serviceBuilder) {
		b.now = now
	}
}

// WithIDGenerator overrides the generator used for cpid suffixes.
func WithIDGenerator(newID func() string) Option {
	return func(b *serviceBuilder) {
		b.newID = newID
	}
}

func defaultServiceBuilder() serviceBuilder {
	return serviceBuilder{
		metricsRecorder: NopMetricsRecorder{},
		errorMapper:     MapError,
		now:             func() time.Time { return time.Now().UTC() },
		newID:           NewRequestID,
	}
}
