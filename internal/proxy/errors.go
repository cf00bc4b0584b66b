package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies why a proxy round trip failed.
type Kind int

const (
	// KindConnect means the backend could not be reached or dropped the
	// connection before a response arrived.
	KindConnect Kind = iota + 1
	// KindTimeout means the round trip exceeded the proxy timeout.
	KindTimeout
	// KindCanceled means the client went away.
	KindCanceled
	// KindStream means the response had already started when copying failed.
	KindStream
)

func (k Kind) String() string {
	switch k {
	case KindConnect:
		return "connect"
	case KindTimeout:
		return "timeout"
	case KindCanceled:
		return "canceled"
	case KindStream:
		return "stream"
	default:
		return "unknown"
	}
}

// UpstreamError describes a failed round trip to one backend.
type UpstreamError struct {
	Backend string
	Kind    Kind
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s: %s error: %v", e.Backend, e.Kind, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// classify maps a transport error onto a Kind. clientCtx is the inbound
// request context, roundTripCtx the derived context carrying the timeout.
func classify(clientCtx, roundTripCtx context.Context, err error) Kind {
	if clientCtx.Err() != nil {
		return KindCanceled
	}

	if errors.Is(roundTripCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return KindTimeout
	}

	return KindConnect
}
