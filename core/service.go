package core

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/tidwall/gjson"
)

var (
	ErrMissingTokenSource   = errors.New("core: token source is required")
	ErrMissingConsentClient = errors.New("core: consent client is required")
)

const (
	pathConsentCollectURL = "data.consentCollectUrl"
	pathPrivacyCenterURL  = "data.privacyCenterUrl"
)

type Service struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	tokenSource     TokenSource
	consentClient   ConsentClient
	now             func() time.Time
	newID           func() string
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = DefaultServiceName
	}
	provider, logger := glog.Resolve(name, builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if builder.logger == nil && provider != nil {
		if named := provider.GetLogger(name); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = MapError
	}
	if builder.now == nil {
		builder.now = func() time.Time { return time.Now().UTC() }
	}
	if builder.newID == nil {
		builder.newID = NewRequestID
	}
	if builder.tokenSource == nil {
		return nil, ErrMissingTokenSource
	}
	if builder.consentClient == nil {
		return nil, ErrMissingConsentClient
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Service{
		config:          cfg,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorMapper:     builder.errorMapper,
		tokenSource:     builder.tokenSource,
		consentClient:   builder.consentClient,
		now:             builder.now,
		newID:           builder.newID,
	}, nil
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Logger() Logger {
	if s == nil {
		return glog.Nop()
	}
	return s.logger
}

func (s *Service) LoggerProvider() LoggerProvider {
	if s == nil {
		return nil
	}
	return s.loggerProvider
}

func (s *Service) MetricsRecorder() MetricsRecorder {
	if s == nil || s.metricsRecorder == nil {
		return NopMetricsRecorder{}
	}
	return s.metricsRecorder
}

func (s *Service) MapError(err error) *goerrors.Error {
	return s.mapError(err)
}

func (s *Service) mapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return MapError(err)
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return MapError(err)
	}
	return ensureErrorEnvelope(mapped)
}

// ResolveRegisterAction fills unset fields from the configured defaults.
func (s *Service) ResolveRegisterAction(action RegisterAction) RegisterAction {
	cfg := s.Config()
	if strings.TrimSpace(action.ConsentProfileID) == "" {
		action.ConsentProfileID = strings.TrimSpace(cfg.Consent.ProfileID)
		action.ProfileFromRequest = false
	}
	if action.ConsentProfileVersion <= 0 {
		action.ConsentProfileVersion = cfg.Consent.ProfileVersion
	}
	if action.PublicURLExpiry <= 0 {
		action.PublicURLExpiry = cfg.Consent.PublicURLExpiry
	}
	if action.SessionExpiry <= 0 {
		action.SessionExpiry = cfg.Consent.SessionExpiry
	}
	return action
}

func (s *Service) ResolveUpdateAction(action UpdateAction) UpdateAction {
	cfg := s.Config()
	if strings.TrimSpace(action.PreferenceURLType) == "" {
		action.PreferenceURLType = cfg.Consent.PreferenceURLType
	}
	if action.PublicURLExpiry <= 0 {
		action.PublicURLExpiry = cfg.Consent.PublicURLExpiry
	}
	if action.SessionExpiry <= 0 {
		action.SessionExpiry = cfg.Consent.SessionExpiry
	}
	return action
}

func (s *Service) RegisterConsent(ctx context.Context, action RegisterAction) (result RegisterResult, err error) {
	startedAt := time.Now()
	fields := map[string]any{"action": ActionRegister}
	defer func() {
		s.observeOperation(ctx, startedAt, ActionRegister, err, fields)
	}()

	action = s.ResolveRegisterAction(action)
	if err = action.Validate(); err != nil {
		return RegisterResult{}, err
	}
	if err = s.requireCredentials(); err != nil {
		return RegisterResult{}, err
	}
	token, err := s.acquireToken(ctx)
	if err != nil {
		return RegisterResult{}, err
	}

	suffix := ""
	if s.config.Consent.CPIDRandomSuffix {
		suffix = s.newID()
	}
	cpid := NewCPID(strings.TrimSpace(action.Email), s.now(), suffix)
	req := RegisterRequest{
		ConsentProfileID:      action.ConsentProfileID,
		ConsentProfileVersion: action.ConsentProfileVersion,
		Principal: Principal{
			ID:    cpid,
			Email: action.Email,
			Name:  action.Name,
			Phone: action.Phone,
		},
		PublicURLExpiry: action.PublicURLExpiry,
		SessionExpiry:   action.SessionExpiry,
	}

	resp, err := s.consentClient.Register(ctx, token.AccessToken, req)
	if err != nil {
		return RegisterResult{}, WrapUpstreamOperationError(err, OperationRegister)
	}
	fields[MetadataUpstreamStatus] = resp.StatusCode
	if err = s.checkProviderResponse(token, resp, OperationRegister); err != nil {
		return RegisterResult{}, err
	}

	consentURL := strings.TrimSpace(gjson.GetBytes(resp.Body, pathConsentCollectURL).String())
	if consentURL == "" {
		return RegisterResult{}, UpstreamShapeError(MessageNoConsentCollectURL, resp.Body)
	}
	result = RegisterResult{
		ConsentURL: consentURL,
		CPID:       cpid,
	}
	if action.ProfileFromRequest {
		result.ProfileID = action.ConsentProfileID
		result.ProfileVersion = action.ConsentProfileVersion
	}
	return result, nil
}

func (s *Service) UpdatePreferences(ctx context.Context, action UpdateAction) (result UpdateResult, err error) {
	startedAt := time.Now()
	fields := map[string]any{"action": ActionUpdate}
	defer func() {
		s.observeOperation(ctx, startedAt, ActionUpdate, err, fields)
	}()

	action = s.ResolveUpdateAction(action)
	if err = action.Validate(); err != nil {
		return UpdateResult{}, err
	}
	if err = s.requireCredentials(); err != nil {
		return UpdateResult{}, err
	}
	token, err := s.acquireToken(ctx)
	if err != nil {
		return UpdateResult{}, err
	}

	principalID := strings.TrimSpace(action.PrincipalID)
	resp, err := s.consentClient.Update(ctx, token.AccessToken, UpdateRequest{
		PrincipalID:       principalID,
		PreferenceURLType: action.PreferenceURLType,
		PublicURLExpiry:   action.PublicURLExpiry,
		SessionExpiry:     action.SessionExpiry,
	})
	if err != nil {
		return UpdateResult{}, WrapUpstreamOperationError(err, OperationUpdate)
	}
	fields[MetadataUpstreamStatus] = resp.StatusCode
	if err = s.checkProviderResponse(token, resp, OperationUpdate); err != nil {
		return UpdateResult{}, err
	}

	privacyURL := strings.TrimSpace(gjson.GetBytes(resp.Body, pathPrivacyCenterURL).String())
	if privacyURL == "" {
		return UpdateResult{}, UpstreamShapeError(MessageNoPrivacyCenterURL, resp.Body)
	}
	return UpdateResult{
		PrivacyCenterURL: privacyURL,
		PrincipalID:      principalID,
	}, nil
}

// IssueToken returns the raw bearer token. It is refused unless the token
// endpoint is explicitly exposed.
func (s *Service) IssueToken(ctx context.Context) (result TokenResult, err error) {
	startedAt := time.Now()
	defer func() {
		s.observeOperation(ctx, startedAt, ActionToken, err, map[string]any{"action": ActionToken})
	}()

	if !s.config.Token.ExposeEndpoint {
		return TokenResult{}, EndpointDisabledError(MessageTokenEndpointDisabled)
	}
	if err = s.requireCredentials(); err != nil {
		return TokenResult{}, err
	}
	token, err := s.acquireToken(ctx)
	if err != nil {
		return TokenResult{}, err
	}
	remaining := int64(token.ExpiresAt.Sub(s.now()) / time.Second)
	if remaining < 0 {
		remaining = 0
	}
	return TokenResult{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
		ExpiresIn:   remaining,
		Scope:       token.Scope,
	}, nil
}

func (s *Service) requireCredentials() error {
	if !s.config.Provider.HasCredentials() {
		return ConfigurationMissingError()
	}
	return nil
}

func (s *Service) acquireToken(ctx context.Context) (OAuthToken, error) {
	token, err := s.tokenSource.Token(ctx)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) && richErr.TextCode == ErrorUpstreamAuthFailed {
			return OAuthToken{}, err
		}
		return OAuthToken{}, WrapUpstreamAuthError(err)
	}
	if strings.TrimSpace(token.AccessToken) == "" {
		return OAuthToken{}, UpstreamAuthError(0, nil)
	}
	return token, nil
}

func (s *Service) checkProviderResponse(token OAuthToken, resp ProviderResponse, operation string) error {
	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return nil
	}
	if resp.StatusCode == http.StatusUnauthorized {
		s.tokenSource.Invalidate(token.AccessToken)
	}
	return UpstreamOperationError(operation, resp.StatusCode, resp.Body)
}

