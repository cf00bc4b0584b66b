package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const headerBackendServer = "X-Backend-Server"

type options struct {
	BaseURL     string
	Path        string
	Method      string
	Body        string
	Requests    int
	Concurrency int
	Timeout     time.Duration
}

type latencySummary struct {
	Samples int     `json:"samples"`
	Min     float64 `json:"min_ms"`
	Avg     float64 `json:"avg_ms"`
	Max     float64 `json:"max_ms"`
	P50     float64 `json:"p50_ms"`
	P90     float64 `json:"p90_ms"`
	P95     float64 `json:"p95_ms"`
	P99     float64 `json:"p99_ms"`
}

type backendSummary struct {
	Total     int            `json:"total"`
	Success   int            `json:"success"`
	Failure   int            `json:"failure"`
	Latencies latencySummary `json:"latencies"`
}

type report struct {
	Target        string                     `json:"target"`
	Requests      int                        `json:"requests"`
	Concurrency   int                        `json:"concurrency"`
	Success       int                        `json:"success"`
	Failure       int                        `json:"failure"`
	Errors        map[string]int             `json:"errors"`
	StatusCodes   map[int]int                `json:"statusCodes"`
	DurationMS    int64                      `json:"duration_ms"`
	ThroughputRPS float64                    `json:"throughput_rps"`
	Latencies     latencySummary             `json:"latencies"`
	Backends      map[string]*backendSummary `json:"backends"`
}

type result struct {
	backend  string
	status   int
	err      error
	duration time.Duration
}

// run sends opts.Requests requests with at most opts.Concurrency in flight.
// Individual request failures are recorded, not returned.
func run(ctx context.Context, client *http.Client, opts options) (*report, error) {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}

	target := strings.TrimRight(opts.BaseURL, "/") + opts.Path
	results := make([]result, opts.Requests)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	start := time.Now()
	sent := 0
	for i := range opts.Requests {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			results[i] = send(ctx, client, opts.Method, target, opts.Body)
			return nil
		})
		sent++
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	if sent == 0 && ctx.Err() != nil {
		return nil, ctx.Err()
	}

	return summarize(target, opts, results[:sent], elapsed), nil
}

func send(ctx context.Context, client *http.Client, method, target, body string) result {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return result{err: err}
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return result{err: err, duration: time.Since(start)}
	}
	defer resp.Body.Close()

	_, err = io.Copy(io.Discard, resp.Body)

	return result{
		backend:  resp.Header.Get(headerBackendServer),
		status:   resp.StatusCode,
		err:      err,
		duration: time.Since(start),
	}
}

func summarize(target string, opts options, results []result, elapsed time.Duration) *report {
	rep := &report{
		Target:      target,
		Requests:    opts.Requests,
		Concurrency: opts.Concurrency,
		Errors:      map[string]int{},
		StatusCodes: map[int]int{},
		Backends:    map[string]*backendSummary{},
		DurationMS:  elapsed.Milliseconds(),
	}

	if elapsed > 0 {
		rep.ThroughputRPS = float64(len(results)) / elapsed.Seconds()
	}

	var all []time.Duration
	perBackend := map[string][]time.Duration{}

	for _, r := range results {
		ok := r.err == nil && r.status >= 200 && r.status < 300
		if ok {
			rep.Success++
		} else {
			rep.Failure++
		}

		if r.err != nil {
			rep.Errors[r.err.Error()]++
		}
		if r.status != 0 {
			rep.StatusCodes[r.status]++
		}

		all = append(all, r.duration)

		name := r.backend
		if name == "" {
			name = "(none)"
		}
		bs, found := rep.Backends[name]
		if !found {
			bs = &backendSummary{}
			rep.Backends[name] = bs
		}
		bs.Total++
		if ok {
			bs.Success++
		} else {
			bs.Failure++
		}
		perBackend[name] = append(perBackend[name], r.duration)
	}

	rep.Latencies = summarizeLatencies(all)
	for name, lat := range perBackend {
		rep.Backends[name].Latencies = summarizeLatencies(lat)
	}

	return rep
}

func summarizeLatencies(samples []time.Duration) latencySummary {
	if len(samples) == 0 {
		return latencySummary{}
	}

	sorted := slices.Clone(samples)
	slices.Sort(sorted)

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}

	return latencySummary{
		Samples: len(sorted),
		Min:     ms(sorted[0]),
		Avg:     ms(sum / time.Duration(len(sorted))),
		Max:     ms(sorted[len(sorted)-1]),
		P50:     ms(percentile(sorted, 0.50)),
		P90:     ms(percentile(sorted, 0.90)),
		P95:     ms(percentile(sorted, 0.95)),
		P99:     ms(percentile(sorted, 0.99)),
	}
}

// percentile picks the nearest-rank value from an ascending slice.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	idx := int(float64(len(sorted)-1) * p)
	return sorted[max(0, min(idx, len(sorted)-1))]
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

func (r *report) print(w io.Writer) {
	fmt.Fprintln(w, "--- Load Test Summary ---")
	fmt.Fprintf(w, "Target: %s\n", r.Target)
	fmt.Fprintf(w, "Requests: %d  Concurrency: %d\n", r.Requests, r.Concurrency)
	fmt.Fprintf(w, "Success: %d  Failure: %d\n", r.Success, r.Failure)
	fmt.Fprintf(w, "Duration: %dms  Throughput: %.2f req/s\n", r.DurationMS, r.ThroughputRPS)

	fmt.Fprintln(w, "\nStatus codes:")
	codes := make([]int, 0, len(r.StatusCodes))
	for code := range r.StatusCodes {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "  %d -> %d\n", code, r.StatusCodes[code])
	}

	if len(r.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		for msg, n := range r.Errors {
			fmt.Fprintf(w, "  %s -> %d\n", msg, n)
		}
	}

	fmt.Fprintln(w, "\nBackend distribution:")
	names := make([]string, 0, len(r.Backends))
	for name := range r.Backends {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		bs := r.Backends[name]
		fmt.Fprintf(w, "  %s -> total=%d success=%d failure=%d p50=%.1fms p99=%.1fms\n",
			name, bs.Total, bs.Success, bs.Failure, bs.Latencies.P50, bs.Latencies.P99)
	}

	l := r.Latencies
	fmt.Fprintln(w, "\nOverall latencies:")
	fmt.Fprintf(w, "  samples=%d min=%.1fms avg=%.1fms max=%.1fms p50=%.1fms p90=%.1fms p95=%.1fms p99=%.1fms\n",
		l.Samples, l.Min, l.Avg, l.Max, l.P50, l.P90, l.P95, l.P99)
}

func (r *report) writeJSON(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
