// Package ratelimit implements token-bucket admission control for remote
// generation calls. One Limiter instance gates one logical call stream;
// tokens accumulate at a fixed rate up to a burst capacity and every admitted
// call consumes exactly one.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for admission control.
var (
	limiterTokens = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "acrogen_ratelimit_tokens",
		Help: "Tokens currently available in the rate limiter bucket",
	})

	limiterWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "acrogen_ratelimit_waits_total",
		Help: "Total times a caller had to wait for a token",
	})

	limiterWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "acrogen_ratelimit_wait_seconds",
		Help:    "Time spent waiting for a token",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
	})
)

const (
	// maxFailureStreak bounds the exponential penalty exponent.
	maxFailureStreak = 6

	// maxPenalty caps the failure-streak backoff added to the token wait.
	maxPenalty = 30 * time.Second
)

// Limiter is a token bucket. All state is guarded by a single mutex;
// lost updates here corrupt admission decisions, not just counters.
type Limiter struct {
	mu            sync.Mutex
	tokens        float64
	capacity      float64
	rate          float64 // tokens per second
	lastRefill    time.Time
	failureStreak int

	// now is swapped out in tests.
	now func() time.Time
}

// New creates a limiter admitting rate calls per second with the given burst
// capacity.
func New(rate float64, burst int) (*Limiter, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("rate must be positive (got %g)", rate)
	}
	if burst < 1 {
		return nil, fmt.Errorf("burst must be at least 1 (got %d)", burst)
	}

	now := time.Now
	return &Limiter{
		tokens:     float64(burst),
		capacity:   float64(burst),
		rate:       rate,
		lastRefill: now(),
		now:        now,
	}, nil
}

// NewDisabled returns a pass-through limiter: effectively unlimited rate and
// burst, so Acquire never waits. Used when admission control is turned off
// in configuration.
func NewDisabled() *Limiter {
	l, _ := New(1e9, 1e9)
	return l
}

// Acquire blocks until a token is available or the context is cancelled.
// Waits are timer-based, never busy-spun, and grow exponentially with the
// recent failure streak so a struggling remote service gets breathing room.
func (l *Limiter) Acquire(ctx context.Context) error {
	start := l.now()
	for {
		l.mu.Lock()
		l.refillLocked()
		if l.tokens >= 1 {
			l.tokens--
			limiterTokens.Set(l.tokens)
			l.mu.Unlock()

			if waited := l.now().Sub(start); waited > 0 {
				limiterWaitSeconds.Observe(waited.Seconds())
			}
			return nil
		}
		wait := l.waitLocked()
		l.mu.Unlock()

		limiterWaitsTotal.Inc()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// refillLocked adds tokens for the elapsed interval, capped at capacity.
func (l *Limiter) refillLocked() {
	now := l.now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	l.tokens = math.Min(l.capacity, l.tokens+elapsed*l.rate)
	l.lastRefill = now
}

// waitLocked computes how long to sleep before rechecking: one token
// interval with up to 10% jitter, plus 2^streak seconds (capped) when recent
// calls have been failing.
func (l *Limiter) waitLocked() time.Duration {
	interval := (1 / l.rate) * (1 + rand.Float64()*0.1)
	wait := time.Duration(interval * float64(time.Second))

	if l.failureStreak > 0 {
		penalty := time.Duration(math.Pow(2, float64(l.failureStreak))) * time.Second
		if penalty > maxPenalty {
			penalty = maxPenalty
		}
		wait += penalty
	}
	return wait
}

// OnSuccess clears the failure streak.
func (l *Limiter) OnSuccess() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failureStreak = 0
}

// OnFailure grows the failure streak, bounded so the penalty stays capped.
func (l *Limiter) OnFailure() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failureStreak < maxFailureStreak {
		l.failureStreak++
	}
}

// Tokens returns the current token count after a refill. Exposed for health
// reporting and tests.
func (l *Limiter) Tokens() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refillLocked()
	return l.tokens
}
