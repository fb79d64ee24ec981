package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// TokenSource hands out bearer tokens for the consent provider.
type TokenSource interface {
	Token(ctx context.Context) (OAuthToken, error)
	Invalidate(accessToken string)
}

// ConsentClient performs the downstream consent operations. Non-2xx answers
// are returned as a ProviderResponse; only transport failures return an error.
type ConsentClient interface {
	Register(ctx context.Context, accessToken string, req RegisterRequest) (ProviderResponse, error)
	Update(ctx context.Context, accessToken string, req UpdateRequest) (ProviderResponse, error)
}

type ProviderResponse struct {
	StatusCode int
	Body       []byte
}

type TransportRequest struct {
	Method   string
	URL      string
	Headers  map[string]string
	Body     []byte
	Metadata map[string]any
	Timeout  time.Duration

	MaxResponseBodyBytes int64
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

// Operations is the surface the request handler dispatches to.
type Operations interface {
	RegisterConsent(ctx context.Context, action RegisterAction) (RegisterResult, error)
	UpdatePreferences(ctx context.Context, action UpdateAction) (UpdateResult, error)
	IssueToken(ctx context.Context) (TokenResult, error)
}
