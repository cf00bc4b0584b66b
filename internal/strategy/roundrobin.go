package strategy

import (
	"github.com/angeloszaimis/shopnow-lb/internal/backend"
)

// RoundRobin hands out backends in list order, wrapping around at the end.
type RoundRobin struct {
	servers []*backend.Backend
	current int
}

func NewRoundRobinStrategy(servers []*backend.Backend) *RoundRobin {
	return &RoundRobin{
		servers: servers,
	}
}

func (rr *RoundRobin) Next() *backend.Backend {
	if len(rr.servers) == 0 {
		return nil
	}

	server := rr.servers[rr.current]
	rr.current = (rr.current + 1) % len(rr.servers)

	return server
}

// UpdateServers swaps the list in place. The cursor only restarts when it
// would fall outside the new list.
func (rr *RoundRobin) UpdateServers(servers []*backend.Backend) {
	rr.servers = servers

	if rr.current >= len(servers) {
		rr.current = 0
	}
}

func (rr *RoundRobin) Reset() {
	rr.current = 0
}

func (rr *RoundRobin) Info() Info {
	current := rr.current
	next := "N/A"
	if rr.current < len(rr.servers) {
		next = rr.servers[rr.current].URL().String()
	}

	return Info{
		Algorithm:    "Round Robin",
		TotalServers: len(rr.servers),
		CurrentIndex: &current,
		NextServer:   next,
	}
}
