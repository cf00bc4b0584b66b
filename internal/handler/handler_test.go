package handler_test

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/shopnow-lb/internal/backend"
	"github.com/angeloszaimis/shopnow-lb/internal/handler"
	"github.com/angeloszaimis/shopnow-lb/internal/loadbalancer"
	"github.com/angeloszaimis/shopnow-lb/internal/pool"
	"github.com/angeloszaimis/shopnow-lb/internal/proxy"
	"github.com/angeloszaimis/shopnow-lb/internal/stats"
	"github.com/angeloszaimis/shopnow-lb/internal/strategy"
)

var _ = Describe("StatusHandler", func() {
	var (
		log       *slog.Logger
		servers   []*httptest.Server
		backends  []*backend.Backend
		lb        *loadbalancer.LoadBalancer
		collector *stats.Collector
		forwarder *proxy.Forwarder
		status    *handler.StatusHandler
	)

	BeforeEach(func() {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
		servers = nil
		backends = nil
		names := []string{}

		for i := 1; i <= 3; i++ {
			name := fmt.Sprintf("Server-%d", i)
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprintf(w, `{"server":%q}`, name)
			}))
			servers = append(servers, srv)

			u, err := url.Parse(srv.URL)
			Expect(err).NotTo(HaveOccurred())
			backends = append(backends, backend.New(name, u))
			names = append(names, name)
		}

		p, err := pool.New(log, backends)
		Expect(err).NotTo(HaveOccurred())

		lb, err = loadbalancer.NewLoadBalancer(p, strategy.TypeRoundRobin)
		Expect(err).NotTo(HaveOccurred())

		collector, err = stats.NewCollector(names, nil)
		Expect(err).NotTo(HaveOccurred())

		forwarder = proxy.NewForwarder(log, lb, collector, proxy.Config{})
		status = handler.NewStatusHandler(log, lb, collector, ":8000")
	})

	AfterEach(func() {
		for _, srv := range servers {
			srv.Close()
		}
	})

	proxied := func(path string) int {
		rec := httptest.NewRecorder()
		forwarder.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec.Code
	}

	getStats := func() handler.StatsResponse {
		rec := httptest.NewRecorder()
		status.Stats(rec, httptest.NewRequest(http.MethodGet, "/lb-stats", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get("Content-Type")).To(Equal("application/json"))

		var resp handler.StatsResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		return resp
	}

	getInfo := func() map[string]any {
		rec := httptest.NewRecorder()
		status.Info(rec, httptest.NewRequest(http.MethodGet, "/lb-info", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))

		var resp map[string]any
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		return resp
	}

	Describe("Stats", func() {
		It("should report zeros before any traffic", func() {
			resp := getStats()
			Expect(resp.TotalRequests).To(BeZero())
			Expect(resp.SuccessRate).To(Equal("0.00%"))
			Expect(resp.Servers).To(HaveLen(3))
			Expect(resp.Algorithm.Algorithm).To(Equal("Round Robin"))
		})

		It("should report 12 total, 10 successful and 2 failed", func() {
			for i := 0; i < 10; i++ {
				Expect(proxied("/products")).To(Equal(http.StatusOK))
			}
			for _, b := range backends {
				lb.SetHealth(b.Name(), false)
			}
			for i := 0; i < 2; i++ {
				Expect(proxied("/products")).To(Equal(http.StatusServiceUnavailable))
			}

			resp := getStats()
			Expect(resp.TotalRequests).To(Equal(int64(12)))
			Expect(resp.SuccessfulRequests).To(Equal(int64(10)))
			Expect(resp.FailedRequests).To(Equal(int64(2)))
			Expect(resp.SuccessRate).To(Equal("83.33%"))
			Expect(resp.RequestsByServer).To(Equal(map[string]int64{
				"Server-1": 4, "Server-2": 3, "Server-3": 3,
			}))
		})

		It("should describe every server", func() {
			proxied("/")
			lb.SetHealth("Server-3", false)

			resp := getStats()
			Expect(resp.Servers[0]).To(Equal(handler.ServerStats{
				Name:     "Server-1",
				URL:      servers[0].URL,
				Healthy:  true,
				Requests: 1,
			}))
			Expect(resp.Servers[2].Healthy).To(BeFalse())
			Expect(resp.Algorithm.TotalServers).To(Equal(2))
		})

		It("should not count its own requests", func() {
			getStats()
			getStats()
			getInfo()

			Expect(getStats().TotalRequests).To(BeZero())
		})
	})

	Describe("Info", func() {
		It("should summarize the balancer", func() {
			for i := 0; i < 3; i++ {
				proxied("/")
			}
			lb.SetHealth("Server-2", false)

			resp := getInfo()
			Expect(resp).To(HaveKeyWithValue("message", handler.Banner))
			Expect(resp).To(HaveKeyWithValue("algorithm", strategy.TypeRoundRobin))
			Expect(resp).To(HaveKeyWithValue("address", ":8000"))
			Expect(resp["servers"]).To(ContainElement(map[string]any{"name": "Server-2", "healthy": false}))
			Expect(resp["stats"]).To(Equal(map[string]any{
				"totalRequests": float64(3),
				"successRate":   "100.00%",
			}))
		})
	})
})
