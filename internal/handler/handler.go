package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/angeloszaimis/shopnow-lb/internal/loadbalancer"
	"github.com/angeloszaimis/shopnow-lb/internal/stats"
	"github.com/angeloszaimis/shopnow-lb/internal/strategy"
)

const Banner = "ShopNow Load Balancer"

type StatusHandler struct {
	logger    *slog.Logger
	balancer  *loadbalancer.LoadBalancer
	collector *stats.Collector
	address   string
}

type ServerStats struct {
	Name              string `json:"name"`
	URL               string `json:"url"`
	Healthy           bool   `json:"healthy"`
	Requests          int64  `json:"requests"`
	ActiveConnections int    `json:"activeConnections"`
}

// StatsResponse is the /lb-stats payload.
type StatsResponse struct {
	TotalRequests      int64            `json:"totalRequests"`
	SuccessfulRequests int64            `json:"successfulRequests"`
	FailedRequests     int64            `json:"failedRequests"`
	RequestsByServer   map[string]int64 `json:"requestsByServer"`
	StartTime          time.Time        `json:"startTime"`
	Uptime             int64            `json:"uptime"`
	SuccessRate        string           `json:"successRate"`
	Algorithm          strategy.Info    `json:"algorithm"`
	Servers            []ServerStats    `json:"servers"`
}

type ServerSummary struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
}

type InfoStats struct {
	TotalRequests int64  `json:"totalRequests"`
	SuccessRate   string `json:"successRate"`
}

// InfoResponse is the /lb-info payload.
type InfoResponse struct {
	Message   string          `json:"message"`
	Algorithm string          `json:"algorithm"`
	Address   string          `json:"address"`
	Servers   []ServerSummary `json:"servers"`
	Stats     InfoStats       `json:"stats"`
}

func NewStatusHandler(logger *slog.Logger, lb *loadbalancer.LoadBalancer, collector *stats.Collector, address string) *StatusHandler {
	return &StatusHandler{
		logger:    logger.With(slog.String("component", "status")),
		balancer:  lb,
		collector: collector,
		address:   address,
	}
}

func (h *StatusHandler) Stats(w http.ResponseWriter, r *http.Request) {
	snap := h.collector.Snapshot()
	backends := h.balancer.Backends()

	servers := make([]ServerStats, 0, len(backends))
	for _, b := range backends {
		servers = append(servers, ServerStats{
			Name:              b.Name(),
			URL:               b.URL().String(),
			Healthy:           b.IsHealthy(),
			Requests:          snap.RequestsByServer[b.Name()],
			ActiveConnections: b.ActiveConnections(),
		})
	}

	h.writeJSON(w, StatsResponse{
		TotalRequests:      snap.TotalRequests,
		SuccessfulRequests: snap.SuccessfulRequests,
		FailedRequests:     snap.FailedRequests,
		RequestsByServer:   snap.RequestsByServer,
		StartTime:          snap.StartTime,
		Uptime:             snap.Uptime,
		SuccessRate:        snap.FormatSuccessRate(),
		Algorithm:          h.balancer.StrategyInfo(),
		Servers:            servers,
	})
}

func (h *StatusHandler) Info(w http.ResponseWriter, r *http.Request) {
	snap := h.collector.Snapshot()
	backends := h.balancer.Backends()

	servers := make([]ServerSummary, 0, len(backends))
	for _, b := range backends {
		servers = append(servers, ServerSummary{Name: b.Name(), Healthy: b.IsHealthy()})
	}

	h.writeJSON(w, InfoResponse{
		Message:   Banner,
		Algorithm: h.balancer.Algorithm(),
		Address:   h.address,
		Servers:   servers,
		Stats: InfoStats{
			TotalRequests: snap.TotalRequests,
			SuccessRate:   snap.FormatSuccessRate(),
		},
	})
}

func (h *StatusHandler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		h.logger.Error("Failed to write response", slog.Any("err", err))
	}
}
