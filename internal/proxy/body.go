package proxy

import (
	"io"
	"sync/atomic"
)

// replayGuard passes the inbound body to the transport without letting the
// transport close it, and remembers whether any byte was consumed. A body
// that was never read can be offered to a second backend.
type replayGuard struct {
	body io.Reader
	read atomic.Bool
}

func newReplayGuard(body io.Reader) *replayGuard {
	return &replayGuard{body: body}
}

func (g *replayGuard) Read(p []byte) (int, error) {
	n, err := g.body.Read(p)
	if n > 0 {
		g.read.Store(true)
	}
	return n, err
}

// Close is a no-op; the server owns the inbound body.
func (g *replayGuard) Close() error {
	return nil
}

func (g *replayGuard) consumed() bool {
	return g.read.Load()
}
