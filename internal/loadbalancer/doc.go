// Package loadbalancer owns the server pool and the active selection
// strategy behind a single mutex. Every selection, connection accounting
// step and health flip goes through it, so least-connections always sees a
// consistent set of counters.
package loadbalancer
