package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angeloszaimis/shopnow-lb/internal/backend"
	"github.com/angeloszaimis/shopnow-lb/internal/loadbalancer"
	"github.com/angeloszaimis/shopnow-lb/internal/stats"
)

const (
	DefaultTimeout = 10 * time.Second

	// StatusClientClosedRequest is logged when the client disconnects first.
	StatusClientClosedRequest = 499

	HeaderBackendServer = "X-Backend-Server"
	HeaderRequestID     = "X-Request-Id"

	proxyBufferSize = 8192
)

// Hop-by-hop headers, RFC 7230 section 6.1. These describe a single
// connection and are never forwarded.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

type Config struct {
	// Timeout bounds the whole proxy round trip, body streaming included.
	Timeout time.Duration
}

// Forwarder is the http.Handler for every non-reserved path.
type Forwarder struct {
	balancer  *loadbalancer.LoadBalancer
	collector *stats.Collector
	transport http.RoundTripper
	timeout   time.Duration
	logger    *slog.Logger
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func NewForwarder(logger *slog.Logger, lb *loadbalancer.LoadBalancer, collector *stats.Collector, cfg Config) *Forwarder {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Forwarder{
		balancer:  lb,
		collector: collector,
		transport: newTransport(cfg.Timeout),
		timeout:   cfg.Timeout,
		logger:    logger.With(slog.String("component", "proxy")),
	}
}

// newTransport opens one connection per round trip. Redirects are passed
// through to the client since RoundTrip never follows them.
func newTransport(timeout time.Duration) *http.Transport {
	return &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: -1,
		}).DialContext,
		DisableKeepAlives:  true,
		DisableCompression: true,
	}
}

func (f *Forwarder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get(HeaderRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	log := f.logger.With(
		slog.String("request_id", requestID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path))

	log.Debug("Received request",
		slog.String("from", extractClientIP(r)),
		slog.String("proto", r.Proto),
		slog.String("host", r.Host),
		slog.String("user_agent", r.UserAgent()))

	f.collector.RecordRequest()

	target, err := f.balancer.NextAndAcquire()
	if err != nil {
		log.Warn("No healthy backends available")
		f.fail(w, http.StatusServiceUnavailable, "no healthy backend available")
		return
	}

	var body *replayGuard
	if r.Body != nil && r.Body != http.NoBody {
		body = newReplayGuard(r.Body)
	}

	err = f.forward(w, r, target, body, log)
	if err == nil {
		return
	}

	var uerr *UpstreamError
	if !errors.As(err, &uerr) || uerr.Kind != KindConnect {
		f.handleError(w, err, log)
		return
	}

	f.markDown(target, err, log)

	if body != nil && body.consumed() {
		log.Warn("Request body already sent, not retrying", slog.String("backend", target.Name()))
		f.fail(w, http.StatusServiceUnavailable, "backend connection failed")
		return
	}

	alt, err := f.balancer.NextExcludingAndAcquire(target)
	if err != nil {
		log.Warn("No alternate backend for retry", slog.String("failed", target.Name()))
		f.fail(w, http.StatusServiceUnavailable, "no healthy backend available")
		return
	}

	log.Info("Retrying on another backend",
		slog.String("failed", target.Name()),
		slog.String("backend", alt.Name()))

	err = f.forward(w, r, alt, body, log)
	if err == nil {
		return
	}

	if errors.As(err, &uerr) && uerr.Kind == KindConnect {
		f.markDown(alt, err, log)
	}
	f.handleError(w, err, log)
}

// forward performs one proxy round trip against a target already reserved
// on the balancer and releases it on return. It returns nil once the
// response body has been fully copied to w.
func (f *Forwarder) forward(w http.ResponseWriter, r *http.Request, target *backend.Backend, body *replayGuard, log *slog.Logger) error {
	defer f.balancer.Release(target)

	ctx, cancel := context.WithTimeout(r.Context(), f.timeout)
	defer cancel()

	outReq, err := newOutboundRequest(ctx, r, target.URL(), body)
	if err != nil {
		return &UpstreamError{Backend: target.Name(), Kind: KindConnect, Err: err}
	}

	start := time.Now()
	log.Debug("Forwarding to backend", slog.String("backend", target.Name()))

	res, err := f.transport.RoundTrip(outReq)
	if err != nil {
		return &UpstreamError{Backend: target.Name(), Kind: classify(r.Context(), ctx, err), Err: err}
	}
	defer res.Body.Close()

	header := w.Header()
	copyHeader(header, res.Header)
	header.Set(HeaderBackendServer, target.Name())
	w.WriteHeader(res.StatusCode)

	if err := copyStream(w, res.Body); err != nil {
		return &UpstreamError{Backend: target.Name(), Kind: KindStream, Err: err}
	}

	f.collector.RecordSuccess(target.Name())
	log.Info("Request forwarded",
		slog.String("backend", target.Name()),
		slog.Int("status", res.StatusCode),
		slog.Duration("duration", time.Since(start)))

	return nil
}

func (f *Forwarder) markDown(b *backend.Backend, cause error, log *slog.Logger) {
	if !f.balancer.SetHealth(b.Name(), false) {
		return
	}

	f.collector.RecordHealth(b.Name(), false)
	log.Warn("Server is down",
		slog.String("server", b.Name()),
		slog.Any("err", cause))
}

func (f *Forwarder) handleError(w http.ResponseWriter, err error, log *slog.Logger) {
	var uerr *UpstreamError
	if !errors.As(err, &uerr) {
		log.Error("Proxy failed", slog.Any("err", err))
		f.fail(w, http.StatusBadGateway, "proxy error")
		return
	}

	switch uerr.Kind {
	case KindConnect:
		log.Error("Backend connection failed", slog.String("backend", uerr.Backend), slog.Any("err", uerr.Err))
		f.fail(w, http.StatusServiceUnavailable, "backend connection failed")

	case KindTimeout:
		log.Error("Backend timed out", slog.String("backend", uerr.Backend), slog.Duration("timeout", f.timeout))
		f.fail(w, http.StatusGatewayTimeout, "backend took too long to respond")

	case KindCanceled:
		f.collector.RecordFailure()
		log.Info("Client closed request",
			slog.String("backend", uerr.Backend),
			slog.Int("status", StatusClientClosedRequest))

	default:
		// Status and headers are already on the wire.
		f.collector.RecordFailure()
		log.Error("Response stream aborted", slog.String("backend", uerr.Backend), slog.Any("err", uerr.Err))
	}
}

// fail records a failed request and writes a JSON error response.
func (f *Forwarder) fail(w http.ResponseWriter, status int, message string) {
	f.collector.RecordFailure()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error:   http.StatusText(status),
		Message: message,
	})
}

func newOutboundRequest(ctx context.Context, r *http.Request, base *url.URL, body *replayGuard) (*http.Request, error) {
	target := &url.URL{
		Scheme:   base.Scheme,
		Host:     base.Host,
		Path:     r.URL.Path,
		RawPath:  r.URL.RawPath,
		RawQuery: r.URL.RawQuery,
	}

	outReq, err := http.NewRequestWithContext(ctx, r.Method, target.String(), nil)
	if err != nil {
		return nil, err
	}

	outReq.Header = r.Header.Clone()
	removeHopHeaders(outReq.Header)
	outReq.Host = r.Host

	if body != nil {
		outReq.Body = body
		outReq.ContentLength = r.ContentLength
	}

	return outReq, nil
}

func copyHeader(to, from http.Header) {
	for k, v := range from {
		to[k] = append([]string(nil), v...)
	}
	removeHopHeaders(to)
}

func removeHopHeaders(h http.Header) {
	for _, name := range strings.Split(h.Get("Connection"), ",") {
		if name = strings.TrimSpace(name); name != "" {
			h.Del(name)
		}
	}

	for _, name := range hopHeaders {
		h.Del(name)
	}
}

// copyStream copies the response body, flushing after every read so the
// client sees bytes as soon as the backend sends them.
func copyStream(w http.ResponseWriter, from io.Reader) error {
	rc := http.NewResponseController(w)
	buf := make([]byte, proxyBufferSize)

	for {
		n, rerr := from.Read(buf)

		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
			_ = rc.Flush()
		}

		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return rerr
		}
	}
}

func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}

	host, _, _ := net.SplitHostPort(r.RemoteAddr)
	return host
}
