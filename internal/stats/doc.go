// Package stats aggregates request outcomes for the load balancer.
//
// The Collector keeps process-wide counters (total, successful and failed
// requests, requests served per backend) together with the process start
// time, and hands out consistent snapshots for the status endpoints:
//
//	collector, err := stats.NewCollector([]string{"Server-1", "Server-2"}, registry)
//	collector.RecordRequest()
//	collector.RecordSuccess("Server-1")
//	snap := collector.Snapshot()
//
// Every counter is mirrored into Prometheus collectors registered on the
// given registerer, so the same numbers can be scraped from an admin
// listener. Counters live for the lifetime of the process.
package stats
