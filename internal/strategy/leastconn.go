package strategy

import (
	"github.com/angeloszaimis/shopnow-lb/internal/backend"
)

// LeastConnections picks the backend with the fewest tracked connections.
// Counters are keyed by backend name and survive a backend leaving and
// rejoining the healthy list.
type LeastConnections struct {
	servers     []*backend.Backend
	connections map[string]int
}

func NewLeastConnStrategy(servers []*backend.Backend) *LeastConnections {
	l := &LeastConnections{
		connections: make(map[string]int),
	}
	l.UpdateServers(servers)

	return l
}

// Next scans the healthy list; the first backend with the minimum count wins.
func (l *LeastConnections) Next() *backend.Backend {
	if len(l.servers) == 0 {
		return nil
	}

	best := l.servers[0]
	bestConns := l.connections[best.Name()]

	for _, server := range l.servers[1:] {
		if conns := l.connections[server.Name()]; conns < bestConns {
			best = server
			bestConns = conns
		}
	}

	return best
}

func (l *LeastConnections) IncrementConnections(name string) {
	l.connections[name]++
}

func (l *LeastConnections) DecrementConnections(name string) {
	if l.connections[name] > 0 {
		l.connections[name]--
	}
}

// UpdateServers replaces the healthy list and starts tracking new names at
// zero. Tracked counters are never dropped.
func (l *LeastConnections) UpdateServers(servers []*backend.Backend) {
	l.servers = servers

	for _, server := range servers {
		if _, ok := l.connections[server.Name()]; !ok {
			l.connections[server.Name()] = 0
		}
	}
}

// Reset zeroes every tracked counter.
func (l *LeastConnections) Reset() {
	for name := range l.connections {
		l.connections[name] = 0
	}
}

func (l *LeastConnections) Info() Info {
	active := make(map[string]int, len(l.connections))
	total := 0
	for name, conns := range l.connections {
		active[name] = conns
		total += conns
	}

	return Info{
		Algorithm:              "Least Connections",
		TotalServers:           len(l.servers),
		ActiveConnections:      active,
		TotalActiveConnections: &total,
	}
}
