package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/signalsfoundry/flyin/internal/api"
	"github.com/signalsfoundry/flyin/internal/config"
	"github.com/signalsfoundry/flyin/internal/flyin"
	"github.com/signalsfoundry/flyin/internal/geocode"
	"github.com/signalsfoundry/flyin/internal/logging"
	"github.com/signalsfoundry/flyin/internal/observability"
	"github.com/signalsfoundry/flyin/kb"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	addr := flag.String("addr", "", "HTTP address for the API (overrides config)")
	metricsAddr := flag.String("metrics-addr", "", "HTTP address for Prometheus /metrics (overrides config)")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error(ctx, "failed to load config", logging.Err(err))
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *metricsAddr != "" {
		cfg.Server.MetricsAddr = *metricsAddr
	}

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		os.Exit(1)
	}
	defer shutdownTracing.Flush(ctx, log)

	lis, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		log.Error(ctx, "failed to listen", logging.String("addr", cfg.Server.Addr), logging.Err(err))
		os.Exit(1)
	}

	stopCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(stopCtx, cfg, log, lis, prometheus.DefaultRegisterer); err != nil {
		log.Error(ctx, "server exited", logging.Err(err))
		os.Exit(1)
	}
}

// run serves the API on lis until ctx is done or the server fails. Both the
// API and the metrics listener are shut down on either path.
func run(ctx context.Context, cfg config.Config, log logging.Logger, lis net.Listener, reg prometheus.Registerer) error {
	collector, err := observability.NewFlyInCollector(reg)
	if err != nil {
		return err
	}
	metricsSrv := serveMetrics(cfg.Server.MetricsAddr, collector, log)

	store := kb.NewLocationBase()
	if err := flyin.SeedPresets(store, cfg.Presets); err != nil {
		log.Warn(ctx, "some presets were rejected", logging.Err(err))
	}
	resolver := geocode.FromConfig(cfg.Geocoder, store,
		geocode.WithRecorder(collector),
		geocode.WithLogger(log),
	)
	defer resolver.Close()
	planner := flyin.NewPlanner(resolver, store, cfg.Animation,
		flyin.WithPathRecorder(collector),
		flyin.WithLogger(log),
	)

	srv := &http.Server{
		Handler:           api.NewServer(planner, collector, log).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting fly-in API server",
			logging.String("addr", lis.Addr().String()),
			logging.Int("presets", len(store.ListPresets())),
			logging.String("geocoder", cfg.Geocoder.BaseURL),
		)
		errCh <- srv.Serve(lis)
	}()

	var serveErr error
	select {
	case serveErr = <-errCh:
		if errors.Is(serveErr, http.ErrServerClosed) {
			serveErr = nil
		}
	case <-ctx.Done():
	}

	log.Info(context.Background(), "shutting down fly-in API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		return err
	}
	return serveErr
}

func serveMetrics(addr string, collector *observability.FlyInCollector, log logging.Logger) *http.Server {
	if collector == nil || addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
