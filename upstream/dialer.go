package upstream

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/detour-proxy/detour/target"
)

// DialError reports a failed connection attempt to an upstream endpoint.
// IsTimeout distinguishes connect timeouts, which are plausibly transient,
// from name-resolution failures and refusals, which are not.
type DialError struct {
	Endpoint  target.Endpoint
	Err       error
	IsTimeout bool
}

func (err *DialError) Error() string {
	return "upstream " + err.Endpoint.Address() + ": " + err.Err.Error()
}

func (err *DialError) Unwrap() error {
	return err.Err
}

// Dialer establishes outbound TCP connections to resolved endpoints. A zero
// ConnectTimeout means the operating system's own limit applies. Exactly one
// connection attempt is made per call; retry policy belongs to the caller.
type Dialer struct {
	ConnectTimeout time.Duration
}

// Dial connects to the endpoint, returning a *DialError on failure.
func (d *Dialer) Dial(ctx context.Context, ep target.Endpoint) (net.Conn, error) {
	nd := net.Dialer{Timeout: d.ConnectTimeout}

	conn, err := nd.DialContext(ctx, "tcp", ep.Address())
	if err != nil {
		return nil, &DialError{
			Endpoint:  ep,
			Err:       err,
			IsTimeout: isTimeout(err),
		}
	}

	return conn, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
