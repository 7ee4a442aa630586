package fetcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// ErrMirrorUnavailable is returned without contacting a host whose recent downloads all
// failed. The host is tried again once BreakerOptions.ResetTimeout has passed.
var ErrMirrorUnavailable = eris.New("fetcher: mirror unavailable")

// BreakerOptions configures the per-host circuit breaker of a Router.
type BreakerOptions struct {
	// FailureThreshold is the number of consecutive failed downloads that opens the
	// breaker for a host. Default 5.
	FailureThreshold int
	// ResetTimeout is how long an open breaker rejects downloads. Default 30s.
	ResetTimeout time.Duration
}

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// breaker tracks consecutive failures for one host.
type breaker struct {
	opts BreakerOptions
	now  func() time.Time

	mu       sync.Mutex
	state    breakerState
	failures int
	openedAt time.Time
}

func newBreaker(opts BreakerOptions) *breaker {
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 5
	}
	if opts.ResetTimeout <= 0 {
		opts.ResetTimeout = 30 * time.Second
	}
	return &breaker{opts: opts, now: time.Now}
}

// allow reports whether a download may start. An open breaker lets one trial download through
// after the reset timeout.
func (b *breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != breakerOpen {
		return nil
	}
	if b.now().Sub(b.openedAt) >= b.opts.ResetTimeout {
		b.state = breakerHalfOpen
		return nil
	}
	return ErrMirrorUnavailable
}

// record updates the breaker with the outcome of a download. Cancellation is not the
// host's fault and is ignored.
func (b *breaker) record(err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.state = breakerClosed
		b.failures = 0
		return
	}

	b.failures++
	if b.state == breakerHalfOpen || b.failures >= b.opts.FailureThreshold {
		b.state = breakerOpen
		b.openedAt = b.now()
	}
}

// guarded runs fn through the breaker.
func guarded[T any](b *breaker, host string, fn func() (T, error)) (T, error) {
	var zero T
	if err := b.allow(); err != nil {
		return zero, eris.Wrapf(err, "host %s", host)
	}
	v, err := fn()
	b.record(err)
	return v, err
}
