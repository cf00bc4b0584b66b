package main

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angeloszaimis/shopnow-lb/internal/handler"
	"github.com/angeloszaimis/shopnow-lb/internal/stats"
)

// setupRouter serves the two status endpoints and proxies everything else.
// Paths are not cleaned so backends see them exactly as sent.
func setupRouter(status *handler.StatusHandler, forwarder http.Handler) *mux.Router {
	r := mux.NewRouter()
	r.SkipClean(true)

	r.HandleFunc("/lb-stats", status.Stats).Methods(http.MethodGet)
	r.HandleFunc("/lb-info", status.Info).Methods(http.MethodGet)
	r.PathPrefix("/").Handler(forwarder)

	return r
}

func setupMetricsRouter(g prometheus.Gatherer) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", stats.MetricsHandler(g)).Methods(http.MethodGet)

	return r
}
