// Command loadtest drives concurrent traffic through the load balancer and
// prints throughput, latency percentiles and the per-backend distribution,
// followed by the balancer's own /lb-stats view.
//
// Usage:
//
//	go run ./cmd/loadtest --url http://localhost:8000 --path /products --requests 1000 --concurrency 50
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
)

func main() {
	var opts options
	flag.StringVar(&opts.BaseURL, "url", "http://localhost:8000", "load balancer base URL")
	flag.StringVar(&opts.Path, "path", "/", "path to request")
	flag.StringVar(&opts.Method, "method", http.MethodGet, "HTTP method")
	flag.StringVar(&opts.Body, "body", "", "request body")
	flag.IntVar(&opts.Requests, "requests", 100, "total number of requests")
	flag.IntVar(&opts.Concurrency, "concurrency", 10, "number of requests in flight")
	flag.DurationVar(&opts.Timeout, "timeout", 10*time.Second, "per-request timeout")
	outJSON := flag.String("out", "", "write the JSON summary to this file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client := &http.Client{Timeout: opts.Timeout}

	if _, err := fetchJSON(ctx, client, opts.BaseURL+"/lb-info"); err != nil {
		fmt.Fprintf(os.Stderr, "load balancer not reachable at %s: %v\n", opts.BaseURL, err)
		os.Exit(1)
	}

	rep, err := run(ctx, client, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load test aborted: %v\n", err)
		os.Exit(1)
	}

	rep.print(os.Stdout)

	if lbStats, err := fetchJSON(ctx, client, opts.BaseURL+"/lb-stats"); err != nil {
		fmt.Fprintf(os.Stderr, "\nfailed to fetch /lb-stats: %v\n", err)
	} else {
		fmt.Println("\n--- Load balancer stats ---")
		out, _ := json.MarshalIndent(lbStats, "", "  ")
		fmt.Println(string(out))
	}

	if *outJSON != "" {
		if err := rep.writeJSON(*outJSON); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write summary: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\nWrote JSON summary to %s\n", *outJSON)
	}

	if rep.Failure > 0 {
		os.Exit(2)
	}
}

func fetchJSON(ctx context.Context, client *http.Client, url string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	return payload, nil
}
