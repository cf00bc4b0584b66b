package backend

import (
	"net/url"
	"sync"
)

// Backend represents a backend server with health status and connection tracking.
type Backend struct {
	name              string
	url               *url.URL
	mutex             sync.Mutex
	isHealthy         bool
	activeConnections int
}

// New creates a new Backend with the given name and base URL.
// The backend starts in a healthy state.
func New(name string, url *url.URL) *Backend {
	return &Backend{
		name:      name,
		url:       url,
		isHealthy: true,
	}
}

// Name returns the unique backend identifier.
func (b *Backend) Name() string {
	return b.name
}

// URL returns the backend base URL.
func (b *Backend) URL() *url.URL {
	return b.url
}

// IncrementConn increments the active connection count.
func (b *Backend) IncrementConn() {
	b.mutex.Lock()
	b.activeConnections++
	b.mutex.Unlock()
}

// DecrementConn decrements the active connection count. It never goes below zero.
func (b *Backend) DecrementConn() {
	b.mutex.Lock()
	if b.activeConnections > 0 {
		b.activeConnections--
	}
	b.mutex.Unlock()
}

// ActiveConnections returns the current number of active connections.
func (b *Backend) ActiveConnections() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.activeConnections
}

// IsHealthy returns true if the backend is currently healthy.
func (b *Backend) IsHealthy() bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.isHealthy
}

// SetHealthy updates the backend's health status.
// Returns true if the status changed, false if it was already in that state.
func (b *Backend) SetHealthy(healthy bool) (changed bool) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.isHealthy == healthy {
		return false
	}

	b.isHealthy = healthy
	return true
}

// String implements fmt.Stringer.
func (b *Backend) String() string {
	return b.name + " (" + b.url.String() + ")"
}
