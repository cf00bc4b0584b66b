package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	flag "github.com/spf13/pflag"

	"github.com/angeloszaimis/shopnow-lb/config"
	"github.com/angeloszaimis/shopnow-lb/internal/backend"
	"github.com/angeloszaimis/shopnow-lb/internal/handler"
	"github.com/angeloszaimis/shopnow-lb/internal/healthcheck"
	"github.com/angeloszaimis/shopnow-lb/internal/httpserver"
	"github.com/angeloszaimis/shopnow-lb/internal/loadbalancer"
	"github.com/angeloszaimis/shopnow-lb/internal/pool"
	"github.com/angeloszaimis/shopnow-lb/internal/proxy"
	"github.com/angeloszaimis/shopnow-lb/internal/stats"
	"github.com/angeloszaimis/shopnow-lb/pkg/logger"
)

// app holds the wired components of one load balancer process.
type app struct {
	balancer  *loadbalancer.LoadBalancer
	collector *stats.Collector
	monitor   *healthcheck.Monitor
	router    http.Handler
	metrics   http.Handler
}

func main() {
	configPath := flag.String("config", "", "path to the YAML config file (default: ./config/config.yaml or ./config.yaml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Server.Environment != config.EnvProd, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a, err := newApp(cfg, log, registry)
	if err != nil {
		log.Error("Failed to initialize load balancer", slog.Any("err", err))
		os.Exit(1)
	}

	srv, err := httpserver.New(cfg.Server.Address, a.router, cfg.Server.ShutdownTimeoutDuration())
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	var adminSrv *httpserver.Server
	if cfg.Metrics.Address != "" {
		adminSrv, err = httpserver.New(cfg.Metrics.Address, a.metrics, cfg.Server.ShutdownTimeoutDuration())
		if err != nil {
			log.Error("Failed to create metrics server", slog.Any("err", err))
			os.Exit(1)
		}
	}

	a.warmUp(ctx, log)

	monitorCtx, stopMonitor := context.WithCancel(ctx)
	monitorDone := make(chan struct{})
	go func() {
		defer close(monitorDone)
		a.monitor.Run(monitorCtx)
	}()

	srvErrCh := make(chan error, 2)
	go func() {
		srvErrCh <- srv.Start()
	}()
	if adminSrv != nil {
		go func() {
			srvErrCh <- adminSrv.Start()
		}()
	}

	printBanner(log, cfg)

	exitCode := 0
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Error starting load balancer", slog.Any("err", err))
			exitCode = 1
		}
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		log.Error("Error during shutdown", slog.Any("err", err))
	}
	if adminSrv != nil {
		if err := adminSrv.Shutdown(context.Background()); err != nil {
			log.Error("Error during metrics server shutdown", slog.Any("err", err))
		}
	}

	stopMonitor()
	<-monitorDone

	log.Info("Load balancer stopped")
	os.Exit(exitCode)
}

// newApp builds the pool, balancer, stats, monitor and routers from cfg.
// Nothing is started.
func newApp(cfg *config.Config, log *slog.Logger, registry *prometheus.Registry) (*app, error) {
	backends, err := initializeBackends(cfg, log)
	if err != nil {
		return nil, err
	}

	p, err := pool.New(log, backends)
	if err != nil {
		return nil, fmt.Errorf("build pool: %w", err)
	}

	lb, err := loadbalancer.NewLoadBalancer(p, cfg.Strategy.Type)
	if err != nil {
		return nil, fmt.Errorf("create strategy %q: %w", cfg.Strategy.Type, err)
	}

	var reg prometheus.Registerer
	if registry != nil {
		reg = registry
	}

	collector, err := stats.NewCollector(cfg.BackendNames(), reg)
	if err != nil {
		return nil, err
	}

	monitor := healthcheck.NewMonitor(log, lb, collector, healthcheck.Config{
		Interval: cfg.HealthCheck.IntervalDuration(),
		Timeout:  cfg.HealthCheck.TimeoutDuration(),
		Path:     cfg.HealthCheck.Path,
	})

	forwarder := proxy.NewForwarder(log, lb, collector, proxy.Config{
		Timeout: cfg.Proxy.TimeoutDuration(),
	})

	status := handler.NewStatusHandler(log, lb, collector, cfg.Server.Address)

	a := &app{
		balancer:  lb,
		collector: collector,
		monitor:   monitor,
		router:    setupRouter(status, forwarder),
	}
	if registry != nil {
		a.metrics = setupMetricsRouter(registry)
	}

	return a, nil
}

// warmUp runs one probe cycle before any traffic is accepted.
func (a *app) warmUp(ctx context.Context, log *slog.Logger) {
	a.monitor.CheckNow(ctx)

	log.Info("Initial health check finished",
		slog.Int("healthy", a.balancer.HealthyCount()),
		slog.Int("total", len(a.balancer.Backends())))
}

func initializeBackends(cfg *config.Config, log *slog.Logger) ([]*backend.Backend, error) {
	backends := make([]*backend.Backend, 0, len(cfg.Backends))

	for _, bc := range cfg.Backends {
		u, err := url.Parse(bc.URL)
		if err != nil {
			log.Error("Failed to parse URL",
				slog.String("name", bc.Name),
				slog.String("url", bc.URL),
				slog.String("error", err.Error()))
			return nil, fmt.Errorf("backend %s: %w", bc.Name, err)
		}

		backends = append(backends, backend.New(bc.Name, u))
	}

	if len(backends) == 0 {
		return nil, errors.New("no backends configured")
	}

	return backends, nil
}

func printBanner(log *slog.Logger, cfg *config.Config) {
	servers := make([]string, 0, len(cfg.Backends))
	for _, b := range cfg.Backends {
		servers = append(servers, b.Name+"="+b.URL)
	}

	log.Info(handler.Banner+" started",
		slog.String("address", cfg.Server.Address),
		slog.String("strategy", cfg.Strategy.Type),
		slog.String("backends", strings.Join(servers, ", ")),
		slog.String("health_check_interval", cfg.HealthCheck.Interval),
		slog.String("proxy_timeout", cfg.Proxy.Timeout),
		slog.String("metrics_address", cfg.Metrics.Address),
		slog.Any("endpoints", []string{"/lb-stats", "/lb-info"}))
}
