// Package gateway turns normalized browser requests into consent operations
// and always answers with a well-formed response.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-consent-gateway/core"
	"github.com/goliatone/go-consent-gateway/cors"
	"github.com/goliatone/go-consent-gateway/query"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	AllowHeaderValue = "POST, OPTIONS"
	loggerName       = "consent-gateway.handler"
)

var ErrMissingOperations = errors.New("gateway: consent operations are required")

type errorBody struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

type Handler struct {
	queries     query.Set
	cors        *cors.Resolver
	logger      core.Logger
	metrics     core.MetricsRecorder
	errorMapper core.ErrorMapper
	newID       func() string
}

type Option func(*Handler)

func WithLogger(logger core.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(h *Handler) {
		if provider == nil {
			return
		}
		h.logger = provider.GetLogger(loggerName)
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) Option {
	return func(h *Handler) {
		h.metrics = recorder
	}
}

func WithErrorMapper(mapper core.ErrorMapper) Option {
	return func(h *Handler) {
		h.errorMapper = mapper
	}
}

func WithRequestIDGenerator(newID func() string) Option {
	return func(h *Handler) {
		h.newID = newID
	}
}

func NewHandler(operations core.Operations, corsConfig core.CORSConfig, opts ...Option) (*Handler, error) {
	if operations == nil {
		return nil, ErrMissingOperations
	}
	h := &Handler{
		queries:     query.NewSet(operations),
		cors:        cors.New(corsConfig),
		metrics:     core.NopMetricsRecorder{},
		errorMapper: core.MapError,
		newID:       core.NewRequestID,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	h.logger = glog.Ensure(h.logger)
	if h.metrics == nil {
		h.metrics = core.NopMetricsRecorder{}
	}
	if h.errorMapper == nil {
		h.errorMapper = core.MapError
	}
	if h.newID == nil {
		h.newID = core.NewRequestID
	}
	return h, nil
}

// Handle runs the request pipeline. It never panics and never returns an
// error; every failure is rendered as a JSON response.
func (h *Handler) Handle(ctx context.Context, req core.IncomingRequest) (resp core.OutgoingResponse) {
	if ctx == nil {
		ctx = context.Background()
	}
	startedAt := time.Now()
	requestID := strings.TrimSpace(req.RequestID)
	if requestID == "" {
		requestID = h.newID()
	}
	ctx = core.ContextWithRequestID(ctx, requestID)
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	decision := h.cors.Decide(req.Origin)

	defer func() {
		if recovered := recover(); recovered != nil {
			h.logger.Error("gateway handler panic", "request_id", requestID, "panic", fmt.Sprint(recovered))
			resp = h.renderError(decision, core.InternalError(fmt.Sprint(recovered)))
		}
		if resp.Headers == nil {
			resp.Headers = map[string]string{}
		}
		resp.Headers[core.HeaderRequestID] = requestID
		h.observe(ctx, startedAt, method, decision, resp)
	}()

	if method == http.MethodOptions {
		status, headers := h.cors.Preflight(decision)
		return core.OutgoingResponse{StatusCode: status, Headers: headers}
	}
	if method != http.MethodPost {
		resp = h.renderError(decision, core.MethodNotAllowedError(method))
		resp.Headers[core.HeaderAllow] = AllowHeaderValue
		return resp
	}
	if decision.Rejected() {
		return h.renderError(decision, core.OriginRejectedError(decision.Origin))
	}
	if req.BodyError != nil {
		return h.renderError(decision, req.BodyError)
	}

	action, err := parseAction(resolveRoute(req.Path), normalizeBody(req))
	if err != nil {
		return h.renderError(decision, err)
	}
	result, err := h.dispatch(ctx, action)
	if err != nil {
		return h.renderError(decision, err)
	}
	return h.render(decision, http.StatusOK, result)
}

func (h *Handler) dispatch(ctx context.Context, action core.ConsentAction) (any, error) {
	switch typed := action.(type) {
	case core.RegisterAction:
		return h.queries.Register.Query(ctx, query.RegisterConsentMessage{Action: typed})
	case core.UpdateAction:
		return h.queries.Update.Query(ctx, query.UpdatePreferencesMessage{Action: typed})
	case core.RawTokenAction:
		return h.queries.Token.Query(ctx, query.IssueTokenMessage{})
	default:
		return nil, core.BadRequestError(core.MessageInvalidAction, nil)
	}
}

func (h *Handler) render(decision cors.Decision, status int, body any) core.OutgoingResponse {
	headers := h.cors.Headers(decision)
	headers[core.HeaderContentType] = core.ContentTypeJSON
	return core.OutgoingResponse{StatusCode: status, Headers: headers, Body: body}
}

func (h *Handler) renderError(decision cors.Decision, err error) core.OutgoingResponse {
	mapped := h.mapError(err)
	status := mapped.Code
	if status < http.StatusBadRequest || status > 599 {
		status = http.StatusInternalServerError
	}
	return h.render(decision, status, errorBody{
		Error:   mapped.Message,
		Details: core.ErrorDetails(mapped),
	})
}

func (h *Handler) mapError(err error) *goerrors.Error {
	mapped := h.errorMapper(err)
	if mapped == nil {
		mapped = core.MapError(err)
	}
	return mapped
}

func (h *Handler) observe(ctx context.Context, startedAt time.Time, method string, decision cors.Decision, resp core.OutgoingResponse) {
	tags := map[string]string{
		"method": strings.ToLower(method),
		"status": strconv.Itoa(resp.StatusCode),
	}
	h.metrics.IncCounter(ctx, core.MetricResponsesTotal, 1, tags)

	args := []any{
		"request_id", core.RequestIDFromContext(ctx),
		"method", method,
		"status", resp.StatusCode,
		"duration_ms", time.Since(startedAt).Milliseconds(),
	}
	if decision.Present {
		args = append(args, "origin", decision.Origin, "origin_allowed", decision.Allowed)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		h.logger.Warn("gateway request failed", args...)
		return
	}
	h.logger.Debug("gateway request handled", args...)
}
