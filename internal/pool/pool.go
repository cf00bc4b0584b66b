package pool

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/angeloszaimis/shopnow-lb/internal/backend"
)

var (
	ErrEmptyPool     = errors.New("pool: at least one backend is required")
	ErrEmptyName     = errors.New("pool: backend name cannot be empty")
	ErrDuplicateName = errors.New("pool: duplicate backend name")
)

// Pool is an ordered collection of backends with unique names.
// The order is the configuration order and drives round-robin determinism.
type Pool struct {
	logger   *slog.Logger
	backends []*backend.Backend
	byName   map[string]*backend.Backend
}

// New creates a pool from the given backends, keeping their order.
func New(logger *slog.Logger, backends []*backend.Backend) (*Pool, error) {
	if len(backends) == 0 {
		return nil, ErrEmptyPool
	}

	byName := make(map[string]*backend.Backend, len(backends))
	for _, b := range backends {
		if b.Name() == "" {
			return nil, ErrEmptyName
		}
		if _, exists := byName[b.Name()]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, b.Name())
		}
		byName[b.Name()] = b
	}

	return &Pool{
		logger:   logger,
		backends: backends,
		byName:   byName,
	}, nil
}

// ListHealthy returns the healthy backends in pool order.
func (p *Pool) ListHealthy() []*backend.Backend {
	healthy := make([]*backend.Backend, 0, len(p.backends))

	for _, b := range p.backends {
		if b.IsHealthy() {
			healthy = append(healthy, b)
		}
	}

	return healthy
}

// MarkHealth sets the health flag of the named backend and reports whether it
// changed. Unknown names are ignored.
func (p *Pool) MarkHealth(name string, healthy bool) (changed bool) {
	b, ok := p.byName[name]
	if !ok {
		p.logger.Warn("Ignoring health update for unknown backend",
			slog.String("backend", name),
			slog.Bool("healthy", healthy))
		return false
	}

	return b.SetHealthy(healthy)
}

// All returns every backend in pool order.
func (p *Pool) All() []*backend.Backend {
	all := make([]*backend.Backend, len(p.backends))
	copy(all, p.backends)
	return all
}
