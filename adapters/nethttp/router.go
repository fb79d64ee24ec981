// Package nethttp serves the gateway handler over net/http with a chi router.
package nethttp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goliatone/go-consent-gateway/core"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	DefaultMaxBodyBytes      int64 = 1 << 20
	DefaultReadHeaderTimeout       = 5 * time.Second
	DefaultShutdownTimeout         = 10 * time.Second

	HealthPath  = "/healthz"
	MetricsPath = "/metrics"
)

// Handler is the transport-neutral gateway entry point.
type Handler interface {
	Handle(ctx context.Context, req core.IncomingRequest) core.OutgoingResponse
}

type routerConfig struct {
	maxBodyBytes int64
	metrics      http.Handler
	logger       core.Logger
}

type Option func(*routerConfig)

func WithMaxBodyBytes(limit int64) Option {
	return func(c *routerConfig) {
		c.maxBodyBytes = limit
	}
}

// WithMetricsHandler mounts handler on GET /metrics.
func WithMetricsHandler(handler http.Handler) Option {
	return func(c *routerConfig) {
		c.metrics = handler
	}
}

func WithLogger(logger core.Logger) Option {
	return func(c *routerConfig) {
		c.logger = logger
	}
}

// NewRouter routes /healthz and /metrics locally and hands every other path
// and method to the gateway handler.
func NewRouter(handler Handler, opts ...Option) http.Handler {
	cfg := routerConfig{maxBodyBytes: DefaultMaxBodyBytes}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.maxBodyBytes <= 0 {
		cfg.maxBodyBytes = DefaultMaxBodyBytes
	}
	cfg.logger = glog.Ensure(cfg.logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get(HealthPath, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.metrics != nil {
		r.Method(http.MethodGet, MetricsPath, cfg.metrics)
	}

	serve := gatewayHandler(handler, cfg)
	r.HandleFunc("/", serve)
	r.HandleFunc("/*", serve)
	return r
}

func gatewayHandler(handler Handler, cfg routerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		incoming := core.IncomingRequest{
			Method:    req.Method,
			Path:      req.URL.Path,
			Origin:    req.Header.Get(core.HeaderOrigin),
			RequestID: middleware.GetReqID(req.Context()),
		}
		body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, cfg.maxBodyBytes))
		switch {
		case err == nil:
			incoming.Body = body
			incoming.HasBody = len(body) > 0
		case isTooLarge(err):
			incoming.BodyError = core.PayloadTooLargeError(cfg.maxBodyBytes)
		default:
			cfg.logger.Warn("read request body failed", "error", err.Error())
			incoming.BodyError = core.BadRequestError(core.MessageInvalidJSON, nil)
		}

		resp := handler.Handle(req.Context(), incoming)
		WriteResponse(w, resp)
	}
}

func isTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge)
}

// WriteResponse copies an OutgoingResponse onto w.
func WriteResponse(w http.ResponseWriter, resp core.OutgoingResponse) {
	encoded, err := resp.EncodeBody()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(encoded) > 0 {
		_, _ = w.Write(encoded)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set(core.HeaderContentType, core.ContentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// NewServer builds an http.Server with the header read timeout set.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
	}
}

// ListenAndServe runs srv until ctx is cancelled, then shuts it down
// gracefully.
func ListenAndServe(ctx context.Context, srv *http.Server, logger core.Logger) error {
	logger = glog.Ensure(logger)
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	logger.Info("http server shutting down", "addr", srv.Addr)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
