package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("shop", func() {
	var (
		s      *shop
		router http.Handler
	)

	BeforeEach(func() {
		s = newShop("Server-3001", slog.New(slog.NewTextHandler(io.Discard, nil)))
		s.maxDelay = 0
		router = s.routes()
	})

	serve := func(method, path string, body io.Reader) (int, map[string]any) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(method, path, body))

		var payload map[string]any
		if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
			Expect(json.Unmarshal(rec.Body.Bytes(), &payload)).To(Succeed())
		}
		return rec.Code, payload
	}

	It("should report healthy on /health", func() {
		code, body := serve(http.MethodGet, "/health", nil)
		Expect(code).To(Equal(http.StatusOK))
		Expect(body).To(HaveKeyWithValue("status", "healthy"))
		Expect(body).To(HaveKeyWithValue("server", "Server-3001"))
	})

	It("should list the catalog", func() {
		code, body := serve(http.MethodGet, "/products", nil)
		Expect(code).To(Equal(http.StatusOK))
		Expect(body["products"]).To(HaveLen(5))
		Expect(body).To(HaveKeyWithValue("total", float64(5)))
	})

	It("should serve an empty cart", func() {
		code, body := serve(http.MethodGet, "/cart", nil)
		Expect(code).To(Equal(http.StatusOK))
		Expect(body).To(HaveKeyWithValue("total", float64(0)))
	})

	It("should accept a checkout", func() {
		code, body := serve(http.MethodPost, "/checkout", strings.NewReader(`{"items":[1,2]}`))
		Expect(code).To(Equal(http.StatusOK))
		Expect(body).To(HaveKeyWithValue("status", "processing"))
		Expect(body["orderId"]).NotTo(BeEmpty())
	})

	It("should reject a malformed checkout", func() {
		code, _ := serve(http.MethodPost, "/checkout", strings.NewReader(`{`))
		Expect(code).To(Equal(http.StatusBadRequest))
	})

	It("should fail on /error and count it", func() {
		code, body := serve(http.MethodGet, "/error", nil)
		Expect(code).To(Equal(http.StatusInternalServerError))
		Expect(body).To(HaveKey("error"))

		_, stats := serve(http.MethodGet, "/stats", nil)
		Expect(stats["stats"]).To(Equal(map[string]any{"requests": float64(2), "errors": float64(1)}))
	})

	It("should not serve checkout over GET", func() {
		code, _ := serve(http.MethodGet, "/checkout", nil)
		Expect(code).To(Equal(http.StatusMethodNotAllowed))
	})
})
