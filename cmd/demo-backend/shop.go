package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type product struct {
	ID    int     `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

var catalog = []product{
	{ID: 1, Name: "Notebook Dell", Price: 3500.00},
	{ID: 2, Name: "Mouse Logitech", Price: 150.00},
	{ID: 3, Name: "Mechanical Keyboard", Price: 450.00},
	{ID: 4, Name: `Monitor LG 27"`, Price: 1200.00},
	{ID: 5, Name: "Webcam HD", Price: 350.00},
}

type shopStats struct {
	Requests int64 `json:"requests"`
	Errors   int64 `json:"errors"`
}

// shop is a single demo backend instance.
type shop struct {
	id        string
	logger    *slog.Logger
	startTime time.Time
	maxDelay  time.Duration

	mutex sync.Mutex
	stats shopStats
}

func newShop(id string, log *slog.Logger) *shop {
	return &shop{
		id:        id,
		logger:    log.With(slog.String("server", id)),
		startTime: time.Now(),
		maxDelay:  100 * time.Millisecond,
	}
}

func (s *shop) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.countRequests)

	r.HandleFunc("/", s.home).Methods(http.MethodGet)
	r.HandleFunc("/products", s.products).Methods(http.MethodGet)
	r.HandleFunc("/cart", s.cart).Methods(http.MethodGet)
	r.HandleFunc("/checkout", s.checkout).Methods(http.MethodPost)
	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.HandleFunc("/stats", s.statsHandler).Methods(http.MethodGet)
	r.HandleFunc("/error", s.fail).Methods(http.MethodGet)

	return r
}

func (s *shop) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mutex.Lock()
		s.stats.Requests++
		s.mutex.Unlock()

		s.logger.Debug("Request", slog.String("method", r.Method), slog.String("path", r.URL.Path))
		next.ServeHTTP(w, r)
	})
}

func (s *shop) uptime() int64 {
	return int64(time.Since(s.startTime) / time.Second)
}

func (s *shop) snapshot() shopStats {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.stats
}

func (s *shop) home(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "Welcome to ShopNow!",
		"server":    s.id,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    s.uptime(),
	})
}

func (s *shop) products(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"server":   s.id,
		"products": catalog,
		"total":    len(catalog),
	})
}

// cart simulates a heavier operation with a random delay.
func (s *shop) cart(w http.ResponseWriter, r *http.Request) {
	delay := time.Duration(rand.Int64N(int64(s.maxDelay) + 1))

	select {
	case <-time.After(delay):
	case <-r.Context().Done():
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"server":  s.id,
		"items":   []any{},
		"total":   0,
		"message": "Cart is empty",
	})
}

func (s *shop) checkout(w http.ResponseWriter, r *http.Request) {
	var order map[string]any
	body, err := io.ReadAll(r.Body)
	if err == nil && len(body) > 0 {
		err = json.Unmarshal(body, &order)
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"server": s.id, "error": "invalid order payload"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"server":  s.id,
		"orderId": uuid.NewString(),
		"status":  "processing",
		"message": "Order received",
	})
}

func (s *shop) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"server": s.id,
		"uptime": s.uptime(),
		"stats":  s.snapshot(),
	})
}

func (s *shop) statsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"server": s.id,
		"stats":  s.snapshot(),
		"uptime": s.uptime(),
	})
}

func (s *shop) fail(w http.ResponseWriter, r *http.Request) {
	s.mutex.Lock()
	s.stats.Errors++
	s.mutex.Unlock()

	writeJSON(w, http.StatusInternalServerError, map[string]any{
		"server": s.id,
		"error":  "simulated failure",
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
