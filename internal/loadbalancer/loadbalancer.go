package loadbalancer

import (
	"errors"
	"sync"

	"github.com/angeloszaimis/shopnow-lb/internal/backend"
	"github.com/angeloszaimis/shopnow-lb/internal/pool"
	"github.com/angeloszaimis/shopnow-lb/internal/strategy"
)

var ErrNoHealthyBackend = errors.New("no healthy backend available")

type LoadBalancer struct {
	pool     *pool.Pool
	strategy strategy.Strategy
	kind     string
	mutex    sync.Mutex
}

// NewLoadBalancer builds the strategy named by kind over the pool's current
// healthy subset.
func NewLoadBalancer(p *pool.Pool, kind string) (*LoadBalancer, error) {
	strat, err := strategy.New(kind, p.ListHealthy())
	if err != nil {
		return nil, err
	}

	return &LoadBalancer{
		pool:     p,
		strategy: strat,
		kind:     kind,
	}, nil
}

// NextAndAcquire asks the strategy for a target and records the start of a
// proxy round trip against it under the same lock, so concurrent
// least-connections picks see each other's reservations. Every successful
// call must be paired with Release.
func (lb *LoadBalancer) NextAndAcquire() (*backend.Backend, error) {
	return lb.reserve(nil)
}

// NextExcludingAndAcquire reserves a failover target other than failed.
func (lb *LoadBalancer) NextExcludingAndAcquire(failed *backend.Backend) (*backend.Backend, error) {
	return lb.reserve(failed)
}

func (lb *LoadBalancer) reserve(failed *backend.Backend) (*backend.Backend, error) {
	lb.mutex.Lock()
	defer lb.mutex.Unlock()

	chosen := lb.strategy.Next()
	if chosen == nil || chosen == failed {
		return nil, ErrNoHealthyBackend
	}

	if tracker, ok := lb.strategy.(strategy.ConnectionTracker); ok {
		tracker.IncrementConnections(chosen.Name())
	}
	chosen.IncrementConn()

	return chosen, nil
}

// Release records the end of a proxy round trip against b.
func (lb *LoadBalancer) Release(b *backend.Backend) {
	lb.mutex.Lock()
	if tracker, ok := lb.strategy.(strategy.ConnectionTracker); ok {
		tracker.DecrementConnections(b.Name())
	}
	lb.mutex.Unlock()

	b.DecrementConn()
}

// SetHealth flips the named backend's health flag. On a transition the new
// healthy subset is pushed into the strategy before SetHealth returns.
func (lb *LoadBalancer) SetHealth(name string, healthy bool) (changed bool) {
	lb.mutex.Lock()
	defer lb.mutex.Unlock()

	if !lb.pool.MarkHealth(name, healthy) {
		return false
	}

	lb.strategy.UpdateServers(lb.pool.ListHealthy())
	return true
}

// Backends returns every configured backend in pool order.
func (lb *LoadBalancer) Backends() []*backend.Backend {
	return lb.pool.All()
}

// HealthyCount returns how many backends are currently healthy.
func (lb *LoadBalancer) HealthyCount() int {
	lb.mutex.Lock()
	defer lb.mutex.Unlock()

	return len(lb.pool.ListHealthy())
}

func (lb *LoadBalancer) StrategyInfo() strategy.Info {
	lb.mutex.Lock()
	defer lb.mutex.Unlock()

	return lb.strategy.Info()
}

// Algorithm returns the configured strategy name.
func (lb *LoadBalancer) Algorithm() string {
	return lb.kind
}
