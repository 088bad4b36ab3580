package supabase

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"net/http"
	"sync"
	"time"
)

// =============================================================================
// Retry Configuration
// =============================================================================

// RetryConfig configures RetryTransport.
type RetryConfig struct {
	// MaxRetries is the number of extra attempts for a failed read.
	MaxRetries int
	// InitialBackoff is the wait before the first retry.
	InitialBackoff time.Duration
	// MaxBackoff caps the exponential backoff.
	MaxBackoff time.Duration
	// Jitter adds up to ±Jitter of randomness to each wait (0.0 to 1.0).
	Jitter float64
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold int
	// OpenTimeout is how long the circuit stays open before a probe is let through.
	OpenTimeout time.Duration
}

// DefaultRetryConfig returns the settings used by the CLI.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:       2,
		InitialBackoff:   200 * time.Millisecond,
		MaxBackoff:       5 * time.Second,
		Jitter:           0.1,
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
	}
}

var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:    true,
	http.StatusBadGateway:         true,
	http.StatusServiceUnavailable: true,
	http.StatusGatewayTimeout:     true,
}

// ErrCircuitOpen is returned without contacting Supabase while the circuit is open.
var ErrCircuitOpen = errors.New("supabase unavailable: circuit breaker is open")

// =============================================================================
// Circuit Breaker
// =============================================================================

type circuitState int

const (
	circuitClosed circuitState = iota
	circuitOpen
	circuitHalfOpen
)

type circuitBreaker struct {
	mu        sync.Mutex
	threshold int
	timeout   time.Duration
	now       func() time.Time

	state    circuitState
	failures int
	openedAt time.Time
}

func (cb *circuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == circuitOpen {
		if cb.now().Sub(cb.openedAt) < cb.timeout {
			return ErrCircuitOpen
		}
		cb.state = circuitHalfOpen
	}
	return nil
}

func (cb *circuitBreaker) success() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = circuitClosed
	cb.failures = 0
}

func (cb *circuitBreaker) failure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	if cb.state == circuitHalfOpen || (cb.threshold > 0 && cb.failures >= cb.threshold) {
		cb.state = circuitOpen
		cb.openedAt = cb.now()
	}
}

// =============================================================================
// Retry Transport
// =============================================================================

// RetryTransport retries idempotent requests (GET and HEAD) on throttling,
// gateway errors and network timeouts. Writes are sent exactly once.
type RetryTransport struct {
	base    http.RoundTripper
	cfg     RetryConfig
	breaker *circuitBreaker
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewRetryTransport wraps base, or http.DefaultTransport when base is nil.
func NewRetryTransport(base http.RoundTripper, cfg RetryConfig) *RetryTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &RetryTransport{
		base: base,
		cfg:  cfg,
		breaker: &circuitBreaker{
			threshold: cfg.FailureThreshold,
			timeout:   cfg.OpenTimeout,
			now:       time.Now,
		},
		sleep: sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (rt *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := rt.breaker.allow(); err != nil {
		return nil, err
	}

	attempts := 1
	if req.Method == http.MethodGet || req.Method == http.MethodHead {
		attempts += rt.cfg.MaxRetries
	}

	var (
		resp *http.Response
		err  error
	)
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if serr := rt.sleep(req.Context(), rt.backoff(attempt)); serr != nil {
				return nil, serr
			}
		}

		resp, err = rt.base.RoundTrip(req.Clone(req.Context()))
		if err != nil {
			if !retryableErr(err) {
				break
			}
			continue
		}
		if !retryableStatus[resp.StatusCode] {
			rt.breaker.success()
			return resp, nil
		}
		if attempt < attempts-1 {
			resp.Body.Close()
		}
	}

	rt.breaker.failure()
	return resp, err
}

func (rt *RetryTransport) backoff(attempt int) time.Duration {
	d := float64(rt.cfg.InitialBackoff) * math.Pow(2, float64(attempt-1))
	if max := float64(rt.cfg.MaxBackoff); max > 0 && d > max {
		d = max
	}
	if rt.cfg.Jitter > 0 {
		d += d * rt.cfg.Jitter * (rand.Float64()*2 - 1)
	}
	return time.Duration(d)
}

func retryableErr(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
