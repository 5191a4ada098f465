package launch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"
)

const (

	// How long a readiness probe waits when the caller does not say.
	DefaultProbeTimeout = 30 * time.Second

	// Delay between connection attempts while the port is not yet open.
	probeInterval = 250 * time.Millisecond

	// Budget for a single TCP connect or HTTP exchange within the probe.
	probeAttemptTimeout = 2 * time.Second
)

// Readiness levels a probe can report.
const (
	StatusTCP  = "tcp"
	StatusHTTP = "http"
)

// Waits for the service on the given local port to become ready.
//
// The port is polled until a TCP connection is accepted, then upgraded with
// an HTTP GET against the root path. Any HTTP response at all, regardless of
// status code, reports "http"; a service that accepts connections but never
// answers HTTP reports "tcp". A port that never opens within the timeout is
// an [ErrNotReady] failure.
func Probe(ctx context.Context, port int, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	deadline := time.Now().Add(timeout)
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))

	// Phase one: wait for the port to accept a connection at all.
	var httpDeadline time.Time
	for {
		if time.Now().After(deadline) {
			return "", fmt.Errorf("%w: port %d did not open within %s", ErrNotReady, port, timeout)
		}
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("%w: %w", ErrNotReady, err)
		}

		conn, err := net.DialTimeout("tcp", addr, probeAttemptTimeout)
		if err != nil {
			sleep(ctx, probeInterval)
			continue
		}
		conn.Close()
		httpDeadline = time.Now().Add(probeAttemptTimeout)
		break
	}
	if httpDeadline.After(deadline) {
		httpDeadline = deadline
	}

	// Phase two: briefly try to upgrade the verdict to HTTP readiness. A
	// service that accepts connections but never answers HTTP is still
	// ready, just at the lower level.
	for time.Now().Before(httpDeadline) && ctx.Err() == nil {
		if probeHTTP(ctx, addr) {
			return StatusHTTP, nil
		}
		sleep(ctx, probeInterval)
	}
	return StatusTCP, nil
}

// Whether the service answers an HTTP request on the address. Any status
// line counts; the probe asserts protocol liveness, not handler health.
func probeHTTP(ctx context.Context, addr string) bool {
	reqCtx, cancel := context.WithTimeout(ctx, probeAttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, "http://"+addr+"/", nil)
	if err != nil {
		return false
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

// Context-aware sleep between probe attempts.
func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
