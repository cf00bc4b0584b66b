// Package healthcheck implements periodic health checking for backend servers.
// A Monitor probes every backend's health endpoint on a fixed interval, flips
// health flags on transitions and pushes the new healthy subset into the
// active selection strategy.
package healthcheck
