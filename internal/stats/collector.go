package stats

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "shopnow_lb"

// Collector holds request counters. All methods are safe for concurrent use.
type Collector struct {
	mutex            sync.RWMutex
	total            int64
	successful       int64
	failed           int64
	requestsByServer map[string]int64
	startTime        time.Time
	now              func() time.Time

	received        prometheus.Counter
	completed       *prometheus.CounterVec
	backendRequests *prometheus.CounterVec
	backendHealthy  *prometheus.GaugeVec
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	TotalRequests      int64            `json:"totalRequests"`
	SuccessfulRequests int64            `json:"successfulRequests"`
	FailedRequests     int64            `json:"failedRequests"`
	RequestsByServer   map[string]int64 `json:"requestsByServer"`
	StartTime          time.Time        `json:"startTime"`
	Uptime             int64            `json:"uptime"`
	SuccessRate        float64          `json:"successRate"`
}

// NewCollector creates a collector with a zeroed counter for every server
// name. A nil registerer skips Prometheus registration.
func NewCollector(servers []string, reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		requestsByServer: make(map[string]int64, len(servers)),
		startTime:        time.Now(),
		now:              time.Now,

		received: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_received_total",
			Help:      "Total number of proxied requests received.",
		}),
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_completed_total",
			Help:      "Total number of proxied requests by outcome.",
		}, []string{"outcome"}),
		backendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Total number of requests successfully served per backend.",
		}, []string{"backend"}),
		backendHealthy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backend_healthy",
			Help:      "Whether the backend is currently healthy (1) or not (0).",
		}, []string{"backend"}),
	}

	for _, name := range servers {
		c.requestsByServer[name] = 0
		c.backendRequests.WithLabelValues(name)
		c.backendHealthy.WithLabelValues(name).Set(1)
	}

	if reg != nil {
		for _, col := range []prometheus.Collector{c.received, c.completed, c.backendRequests, c.backendHealthy} {
			if err := reg.Register(col); err != nil {
				return nil, fmt.Errorf("register stats collector: %w", err)
			}
		}
	}

	return c, nil
}

// RecordRequest counts an inbound proxied request.
func (c *Collector) RecordRequest() {
	c.mutex.Lock()
	c.total++
	c.mutex.Unlock()

	c.received.Inc()
}

// RecordSuccess counts a fully forwarded response served by server.
func (c *Collector) RecordSuccess(server string) {
	c.mutex.Lock()
	c.successful++
	c.requestsByServer[server]++
	c.mutex.Unlock()

	c.completed.WithLabelValues("success").Inc()
	c.backendRequests.WithLabelValues(server).Inc()
}

// RecordFailure counts a request that could not be served.
func (c *Collector) RecordFailure() {
	c.mutex.Lock()
	c.failed++
	c.mutex.Unlock()

	c.completed.WithLabelValues("failure").Inc()
}

// RecordHealth publishes a backend health transition.
func (c *Collector) RecordHealth(server string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1
	}
	c.backendHealthy.WithLabelValues(server).Set(value)
}

func (c *Collector) Snapshot() Snapshot {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	byServer := make(map[string]int64, len(c.requestsByServer))
	for name, n := range c.requestsByServer {
		byServer[name] = n
	}

	return Snapshot{
		TotalRequests:      c.total,
		SuccessfulRequests: c.successful,
		FailedRequests:     c.failed,
		RequestsByServer:   byServer,
		StartTime:          c.startTime,
		Uptime:             int64(c.now().Sub(c.startTime) / time.Second),
		SuccessRate:        successRate(c.successful, c.total),
	}
}

// FormatSuccessRate renders the rate as a percentage with two decimals.
func (s Snapshot) FormatSuccessRate() string {
	return fmt.Sprintf("%.2f%%", s.SuccessRate)
}

func successRate(successful, total int64) float64 {
	if total == 0 {
		return 0
	}

	return float64(successful) / float64(total) * 100
}
