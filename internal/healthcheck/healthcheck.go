package healthcheck

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angeloszaimis/shopnow-lb/internal/backend"
	"github.com/angeloszaimis/shopnow-lb/internal/loadbalancer"
	"github.com/angeloszaimis/shopnow-lb/internal/stats"
)

const (
	DefaultInterval = 5 * time.Second
	DefaultTimeout  = 3 * time.Second
	DefaultPath     = "/health"
)

type Config struct {
	Interval time.Duration
	Timeout  time.Duration
	Path     string
}

// Monitor probes every backend of a load balancer. Probe failures never
// leave the monitor; they only flip health flags.
type Monitor struct {
	cfg       Config
	balancer  *loadbalancer.LoadBalancer
	collector *stats.Collector
	client    *http.Client
	logger    *slog.Logger
}

// NewMonitor creates a monitor. Zero config fields fall back to the defaults.
// collector may be nil.
func NewMonitor(logger *slog.Logger, lb *loadbalancer.LoadBalancer, collector *stats.Collector, cfg Config) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}

	return &Monitor{
		cfg:       cfg,
		balancer:  lb,
		collector: collector,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: &http.Transport{DisableKeepAlives: true},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger.With(slog.String("component", "healthcheck")),
	}
}

// Run checks every backend immediately and then once per interval until ctx
// is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Info("Health check started",
		slog.Duration("interval", m.cfg.Interval),
		slog.Duration("timeout", m.cfg.Timeout))

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.CheckNow(ctx)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Health check stopped")
			return

		case <-ticker.C:
			m.CheckNow(ctx)
		}
	}
}

// CheckNow runs one probe cycle. Backends are probed concurrently and the
// call returns once every probe has finished.
func (m *Monitor) CheckNow(ctx context.Context) {
	backends := m.balancer.Backends()

	var g errgroup.Group
	for _, b := range backends {
		g.Go(func() error {
			m.check(ctx, b)
			return nil
		})
	}
	_ = g.Wait()

	m.logger.Debug("Health check cycle finished",
		slog.Int("healthy", m.balancer.HealthyCount()),
		slog.Int("total", len(backends)))
}

func (m *Monitor) check(ctx context.Context, b *backend.Backend) {
	healthy := m.Probe(ctx, b)

	// A cycle interrupted by shutdown says nothing about the backend.
	if ctx.Err() != nil {
		return
	}

	if !m.balancer.SetHealth(b.Name(), healthy) {
		return
	}

	if healthy {
		m.logger.Info("Server is back up",
			slog.String("server", b.Name()),
			slog.String("url", b.URL().String()))
	} else {
		m.logger.Warn("Server is down",
			slog.String("server", b.Name()),
			slog.String("url", b.URL().String()))
	}

	if m.collector != nil {
		m.collector.RecordHealth(b.Name(), healthy)
	}
}

// Probe sends a single GET to the backend's health endpoint and reports
// whether it answered 200 within the timeout.
func (m *Monitor) Probe(ctx context.Context, b *backend.Backend) bool {
	healthURL := b.URL().ResolveReference(&url.URL{Path: m.cfg.Path})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL.String(), nil)
	if err != nil {
		return false
	}

	res, err := m.client.Do(req)
	if err != nil {
		m.logger.Debug("Health probe failed",
			slog.String("server", b.Name()),
			slog.Any("err", err))
		return false
	}
	defer res.Body.Close()

	_, _ = io.Copy(io.Discard, res.Body)

	return res.StatusCode == http.StatusOK
}
