// Package handler serves the load balancer's own endpoints, /lb-stats and
// /lb-info. Requests to these paths are never proxied or counted.
package handler
