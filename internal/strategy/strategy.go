package strategy

import (
	"errors"
	"fmt"

	"github.com/angeloszaimis/shopnow-lb/internal/backend"
)

const (
	TypeRoundRobin       = "round-robin"
	TypeLeastConnections = "least-connections"
)

var ErrUnknownStrategy = errors.New("strategy: unknown algorithm")

// Strategy picks the next backend out of the healthy list it was last given.
// Implementations are not safe for concurrent use; the load balancer
// serializes every call.
type Strategy interface {
	// Next returns the selected backend, or nil when the list is empty.
	Next() *backend.Backend
	// UpdateServers replaces the healthy list used for selection.
	UpdateServers(servers []*backend.Backend)
	Reset()
	Info() Info
}

// ConnectionTracker is implemented by strategies that select on load.
type ConnectionTracker interface {
	IncrementConnections(name string)
	DecrementConnections(name string)
}

// Info is a read-only diagnostic view of a strategy's state.
type Info struct {
	Algorithm              string         `json:"algorithm"`
	TotalServers           int            `json:"totalServers"`
	CurrentIndex           *int           `json:"currentIndex,omitempty"`
	NextServer             string         `json:"nextServer,omitempty"`
	ActiveConnections      map[string]int `json:"activeConnections,omitempty"`
	TotalActiveConnections *int           `json:"totalActiveConnections,omitempty"`
}

// New builds the strategy registered under kind, seeded with servers.
func New(kind string, servers []*backend.Backend) (Strategy, error) {
	switch kind {
	case TypeRoundRobin:
		return NewRoundRobinStrategy(servers), nil
	case TypeLeastConnections:
		return NewLeastConnStrategy(servers), nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownStrategy, kind)
	}
}
