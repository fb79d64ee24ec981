package app

import (
	"os"
	"os/signal"
	"syscall"

	consentgateway "github.com/goliatone/go-consent-gateway"
	"github.com/goliatone/go-consent-gateway/adapters/nethttp"
	promadapter "github.com/goliatone/go-consent-gateway/adapters/prometheus"
	"github.com/goliatone/go-consent-gateway/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const metricsNamespace = "consent"

type serveFlags struct {
	addr    string
	metrics bool
	config  configFlags
}

// configFlags hold the settings that can override the environment.
type configFlags struct {
	baseURL             string
	allowedOrigins      []string
	corsPolicy          string
	exposeTokenEndpoint bool
}

func (f *configFlags) register(flags *pflag.FlagSet) {
	flags.StringVar(&f.baseURL, "base-url", "", "Leegality gateway base URL")
	flags.StringSliceVar(&f.allowedOrigins, "allowed-origins", nil, "Allowed browser origins, wildcards as https://*.example.com")
	flags.StringVar(&f.corsPolicy, "cors-policy", "", "Preflight policy for rejected origins (strict or legacy)")
	flags.BoolVar(&f.exposeTokenEndpoint, "expose-token-endpoint", false, "Serve the raw token endpoint")
}

// runtime turns the flags that were set into the runtime config layer. Unset
// flags leave the environment untouched.
func (f *configFlags) runtime(flags *pflag.FlagSet) core.Config {
	var cfg core.Config
	flags.Visit(func(flag *pflag.Flag) {
		switch flag.Name {
		case "base-url":
			cfg.Provider.BaseURL = f.baseURL
		case "allowed-origins":
			cfg.CORS.AllowedOrigins = append([]string(nil), f.allowedOrigins...)
		case "cors-policy":
			cfg.CORS.Policy = f.corsPolicy
		case "expose-token-endpoint":
			cfg.Token.ExposeEndpoint = f.exposeTokenEndpoint
		}
	})
	return cfg
}

func newServeCmd() *cobra.Command {
	flags := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, flags)
		},
	}
	cmd.Flags().StringVar(&flags.addr, "addr", ":8080", "Address to listen on")
	cmd.Flags().BoolVar(&flags.metrics, "metrics", false, "Expose Prometheus metrics on "+nethttp.MetricsPath)
	flags.config.register(cmd.Flags())
	return cmd
}

func runServe(cmd *cobra.Command, flags *serveFlags) error {
	provider, err := loggerProvider(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = provider.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []consentgateway.Option{
		consentgateway.WithRuntimeConfig(flags.config.runtime(cmd.Flags())),
		consentgateway.WithLoggerProvider(provider),
	}
	var routerOpts []nethttp.Option
	if flags.metrics {
		recorder := promadapter.NewRecorder(prometheus.NewRegistry(), metricsNamespace)
		opts = append(opts, consentgateway.WithMetricsRecorder(recorder))
		routerOpts = append(routerOpts, nethttp.WithMetricsHandler(recorder.Handler()))
	}

	gw, err := consentgateway.New(ctx, opts...)
	if err != nil {
		return err
	}
	defer func() { _ = gw.Close() }()

	logger := provider.GetLogger("server")
	routerOpts = append(routerOpts, nethttp.WithLogger(logger))
	srv := nethttp.NewServer(flags.addr, nethttp.NewRouter(gw, routerOpts...))
	return nethttp.ListenAndServe(ctx, srv, logger)
}
