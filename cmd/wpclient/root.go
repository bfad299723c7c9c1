package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/docdyhr/wpclient"
)

// app holds state shared by every subcommand.
type app struct {
	out    io.Writer
	errOut io.Writer

	configPath  string
	baseURL     string
	metricsAddr string
	verbose     bool
	showStats   bool

	log        zerolog.Logger
	client     *wpclient.Client
	metricsSrv *http.Server
}

// execute runs the CLI with args and releases the client even when the
// command fails.
func execute(ctx context.Context, args []string, out, errOut io.Writer) error {
	a := &app{out: out, errOut: errOut}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)

	err := root.ExecuteContext(ctx)
	if closeErr := a.close(); err == nil {
		err = closeErr
	}
	return err
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "wpclient",
		Short:         "Query a WordPress REST API through a caching, rate-paced client",
		Version:       wpclient.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.client != nil && a.showStats {
				a.printStats()
			}
		},
	}

	root.CompletionOptions.DisableDefaultCmd = true
	root.SetVersionTemplate("{{.Version}}\n")

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "path to a YAML config file")
	flags.StringVar(&a.baseURL, "base-url", "", "site URL, overrides the config file")
	flags.StringVar(&a.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log requests, retries and cache activity")
	flags.BoolVar(&a.showStats, "stats", false, "print request and cache statistics after the command")

	root.AddCommand(
		newGetCmd(a),
		newWriteCmd(a, http.MethodPost, "post", "Create a resource"),
		newWriteCmd(a, http.MethodPut, "put", "Replace a resource"),
		newWriteCmd(a, http.MethodPatch, "patch", "Update part of a resource"),
		newDeleteCmd(a),
		newUploadCmd(a),
	)
	return root
}

func (a *app) setup() error {
	level := zerolog.InfoLevel
	if a.verbose {
		level = zerolog.DebugLevel
	}
	a.log = zerolog.New(zerolog.ConsoleWriter{Out: a.errOut, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger().Level(level)

	cfg, err := wpclient.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	if a.baseURL != "" {
		cfg.BaseURL = a.baseURL
	}

	opts := []wpclient.Option{}
	if a.verbose {
		opts = append(opts, wpclient.WithDebug(), wpclient.WithLogger(wpclient.NewZerologLogger(a.log)))
	}

	if a.metricsAddr != "" {
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector())
		opts = append(opts, wpclient.WithMetricsCollector(wpclient.NewMetricsCollectorWithRegistry(registry)))
		if err := a.serveMetrics(registry); err != nil {
			return err
		}
	}

	client, err := wpclient.New(cfg, opts...)
	if err != nil {
		return err
	}
	a.client = client
	a.log.Debug().Str("site", cfg.BaseURL).Str("siteID", cfg.SiteID).Msg("client ready")
	return nil
}

func (a *app) serveMetrics(registry *prometheus.Registry) error {
	ln, err := net.Listen("tcp", a.metricsAddr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	a.metricsSrv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := a.metricsSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error().Err(err).Msg("metrics server stopped")
		}
	}()
	a.log.Info().Str("addr", ln.Addr().String()).Msg("serving metrics")
	return nil
}

func (a *app) close() error {
	if a.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = a.metricsSrv.Shutdown(ctx)
		a.metricsSrv = nil
	}
	if a.client == nil {
		return nil
	}
	err := a.client.Close()
	a.client = nil
	return err
}

func (a *app) printStats() {
	rs := a.client.RequestStats()
	cs := a.client.CacheStats()
	eff := a.client.CacheEfficiency()

	fmt.Fprintf(a.out, "Requests: total=%d success=%d failed=%d rate_limited=%d auth_failures=%d avg=%v\n",
		rs.TotalRequests, rs.SuccessfulRequests, rs.FailedRequests, rs.RateLimitHits, rs.AuthFailures,
		rs.AverageResponseTime.Round(time.Millisecond))
	fmt.Fprintf(a.out, "Cache:    hits=%d misses=%d hit_rate=%.2f entries=%d bytes=%d evictions=%d rating=%s\n",
		cs.Hits, cs.Misses, cs.HitRate, cs.TotalSize, cs.MemoryBytes, cs.Evictions, eff.Rating)
}
