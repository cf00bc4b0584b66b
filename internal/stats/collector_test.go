package stats_test

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angeloszaimis/shopnow-lb/internal/stats"
)

var _ = Describe("Collector", func() {
	var (
		registry  *prometheus.Registry
		collector *stats.Collector
	)

	BeforeEach(func() {
		registry = prometheus.NewRegistry()

		var err error
		collector, err = stats.NewCollector([]string{"Server-1", "Server-2", "Server-3"}, registry)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewCollector", func() {
		It("should start every configured server at zero", func() {
			snap := collector.Snapshot()
			Expect(snap.TotalRequests).To(BeZero())
			Expect(snap.RequestsByServer).To(Equal(map[string]int64{"Server-1": 0, "Server-2": 0, "Server-3": 0}))
		})

		It("should refuse to register twice on the same registry", func() {
			_, err := stats.NewCollector([]string{"Server-1"}, registry)
			Expect(err).To(HaveOccurred())
		})

		It("should work without a registry", func() {
			c, err := stats.NewCollector(nil, nil)
			Expect(err).NotTo(HaveOccurred())
			c.RecordRequest()
			Expect(c.Snapshot().TotalRequests).To(Equal(int64(1)))
		})
	})

	Describe("recording outcomes", func() {
		It("should report 12 total, 10 successful and 2 failed", func() {
			for i := 0; i < 10; i++ {
				collector.RecordRequest()
				collector.RecordSuccess("Server-1")
			}
			for i := 0; i < 2; i++ {
				collector.RecordRequest()
				collector.RecordFailure()
			}

			snap := collector.Snapshot()
			Expect(snap.TotalRequests).To(Equal(int64(12)))
			Expect(snap.SuccessfulRequests).To(Equal(int64(10)))
			Expect(snap.FailedRequests).To(Equal(int64(2)))
			Expect(snap.RequestsByServer["Server-1"]).To(Equal(int64(10)))
			Expect(snap.FormatSuccessRate()).To(Equal("83.33%"))
		})

		It("should count per backend", func() {
			collector.RecordSuccess("Server-1")
			collector.RecordSuccess("Server-2")
			collector.RecordSuccess("Server-2")

			snap := collector.Snapshot()
			Expect(snap.RequestsByServer["Server-1"]).To(Equal(int64(1)))
			Expect(snap.RequestsByServer["Server-2"]).To(Equal(int64(2)))
			Expect(snap.RequestsByServer["Server-3"]).To(BeZero())
		})

		It("should be safe for concurrent use", func() {
			var wg sync.WaitGroup
			for i := 0; i < 100; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					collector.RecordRequest()
					if i%4 == 0 {
						collector.RecordFailure()
					} else {
						collector.RecordSuccess("Server-3")
					}
				}(i)
			}
			wg.Wait()

			snap := collector.Snapshot()
			Expect(snap.TotalRequests).To(Equal(int64(100)))
			Expect(snap.SuccessfulRequests).To(Equal(int64(75)))
			Expect(snap.FailedRequests).To(Equal(int64(25)))
		})
	})

	Describe("Snapshot", func() {
		It("should report a zero success rate before any request", func() {
			Expect(collector.Snapshot().SuccessRate).To(BeZero())
			Expect(collector.Snapshot().FormatSuccessRate()).To(Equal("0.00%"))
		})

		It("should report uptime in whole seconds", func() {
			start := collector.Snapshot().StartTime
			collector.SetClock(func() time.Time { return start.Add(90*time.Second + 500*time.Millisecond) })
			Expect(collector.Snapshot().Uptime).To(Equal(int64(90)))
		})

		It("should return an independent copy", func() {
			collector.RecordSuccess("Server-1")
			snap := collector.Snapshot()
			snap.RequestsByServer["Server-1"] = 42

			Expect(collector.Snapshot().RequestsByServer["Server-1"]).To(Equal(int64(1)))
		})
	})

	Describe("Prometheus mirror", func() {
		It("should expose counters and health gauges", func() {
			collector.RecordRequest()
			collector.RecordSuccess("Server-2")
			collector.RecordHealth("Server-3", false)

			rec := httptest.NewRecorder()
			stats.MetricsHandler(registry).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

			Expect(rec.Code).To(Equal(http.StatusOK))
			body := rec.Body.String()
			Expect(body).To(ContainSubstring("shopnow_lb_requests_received_total 1"))
			Expect(body).To(ContainSubstring(`shopnow_lb_requests_completed_total{outcome="success"} 1`))
			Expect(body).To(ContainSubstring(`shopnow_lb_backend_requests_total{backend="Server-2"} 1`))
			Expect(body).To(ContainSubstring(`shopnow_lb_backend_healthy{backend="Server-3"} 0`))
			Expect(body).To(ContainSubstring(`shopnow_lb_backend_healthy{backend="Server-1"} 1`))
		})
	})
})
