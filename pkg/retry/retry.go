// Package retry wraps one logical remote operation with bounded attempts and
// error-class-aware backoff. Quota errors suspend the whole chain until the
// server-suggested resume time; auth errors abort immediately; everything
// else backs off exponentially with jitter.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/acronymlab/acrogen/pkg/remote"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "acrogen_retries_total",
		Help: "Total retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "acrogen_retry_backoff_seconds",
		Help:    "Backoff duration before retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "acrogen_retry_exhausted_total",
		Help: "Total operations that exhausted all retry attempts by error class",
	}, []string{"error_class"})
)

// Config holds retry behavior parameters.
type Config struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// BaseDelay seeds the exponential backoff for transient failures.
	BaseDelay time.Duration

	// MaxDelay caps any single backoff or quota wait.
	MaxDelay time.Duration
}

// DefaultConfig returns the standard retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    60 * time.Second,
	}
}

// Controller executes operations under a retry policy. It is stateless
// across operations; per-operation attempt state lives on the stack.
type Controller struct {
	cfg    Config
	logger zerolog.Logger
}

// NewController creates a retry controller. Zero config fields fall back to
// defaults; MaxAttempts of 1 means no retries.
func NewController(cfg Config, logger zerolog.Logger) *Controller {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	return &Controller{cfg: cfg, logger: logger}
}

// MaxAttempts exposes the attempt cap for callers that report it.
func (c *Controller) MaxAttempts() int {
	return c.cfg.MaxAttempts
}

// Do runs op until it succeeds, a non-retryable failure occurs, the context
// is cancelled or the attempt cap is hit. The attempt counter never exceeds
// MaxAttempts and no call is made before a pending quota resume time.
func (c *Controller) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error
	var resumeAt time.Time

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		// Quota-exhausted state: suspend until the resume time, then clear.
		if !resumeAt.IsZero() {
			if err := c.sleepUntil(ctx, resumeAt); err != nil {
				return err
			}
			resumeAt = time.Time{}
		}

		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				c.logger.Info().
					Int("attempt", attempt).
					Msg("Operation succeeded after retry")
			}
			return nil
		}
		lastErr = err

		class := remote.Classify(err)
		retriesTotal.WithLabelValues(string(class)).Inc()

		if class == remote.ErrorClassAuth {
			// Credential is invalid; retrying on it cannot help.
			c.logger.Warn().
				Int("attempt", attempt).
				Msg("Auth failure - not retrying")
			return err
		}

		if attempt >= c.cfg.MaxAttempts {
			break
		}

		switch class {
		case remote.ErrorClassQuota:
			delay := remote.QuotaDelay(err, remote.DefaultQuotaDelay)
			if delay > c.cfg.MaxDelay {
				delay = c.cfg.MaxDelay
			}
			resumeAt = time.Now().Add(delay)
			retryBackoffSeconds.WithLabelValues(string(class)).Observe(delay.Seconds())

			c.logger.Warn().
				Int("attempt", attempt).
				Dur("resume_in", delay).
				Msg("Quota exhausted - suspending until resume time")

		default:
			delay := c.transientDelay(attempt, err)
			retryBackoffSeconds.WithLabelValues(string(class)).Observe(delay.Seconds())

			c.logger.Debug().
				Int("attempt", attempt).
				Dur("backoff", delay).
				Str("error_class", string(class)).
				Msg("Retrying after backoff")

			if err := c.sleepUntil(ctx, time.Now().Add(delay)); err != nil {
				return err
			}
		}
	}

	class := remote.Classify(lastErr)
	retryExhaustedTotal.WithLabelValues(string(class)).Inc()
	c.logger.Warn().
		Int("max_attempts", c.cfg.MaxAttempts).
		Str("error_class", string(class)).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, c.cfg.MaxAttempts, lastErr)
}

// transientDelay is base*2^(attempt-1) with ±10% jitter, floored at any
// server-suggested delay and capped at MaxDelay.
func (c *Controller) transientDelay(attempt int, err error) time.Duration {
	backoff := c.cfg.BaseDelay << (attempt - 1)
	jittered := time.Duration(float64(backoff) * (0.9 + rand.Float64()*0.2))

	if hint := remote.QuotaDelay(err, 0); hint > jittered {
		jittered = hint
	}
	if jittered > c.cfg.MaxDelay {
		jittered = c.cfg.MaxDelay
	}
	return jittered
}

// sleepUntil waits for the deadline with context cancellation support.
func (c *Controller) sleepUntil(ctx context.Context, deadline time.Time) error {
	wait := time.Until(deadline)
	if wait <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
	case <-time.After(wait):
		return nil
	}
}
