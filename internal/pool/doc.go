// Package pool holds the fixed, ordered set of backends the load balancer
// routes to and answers which of them are currently healthy.
package pool
