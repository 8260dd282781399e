package credential

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/acronymlab/acrogen/pkg/remote"
)

// Prometheus metrics for pool operations.
var (
	credentialsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "acrogen_credentials_active",
		Help: "Number of currently active credentials in the pool",
	})

	credentialAcquisitionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "acrogen_credential_acquisitions_total",
		Help: "Total successful credential acquisitions",
	})

	credentialErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "acrogen_credential_errors_total",
		Help: "Total errors recorded against credentials by class",
	}, []string{"class"})

	poolForceResetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "acrogen_pool_force_resets_total",
		Help: "Total quota force-resets applied when every credential was quota-limited",
	})

	poolWaitTimeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "acrogen_pool_wait_timeouts_total",
		Help: "Total WaitForAvailable calls that gave up without a credential",
	})
)

// Interval bounds for the adaptive pacing hint.
const (
	defaultMinInterval = 1 * time.Second
	maxMinInterval     = 5 * time.Second
)

// Options configures a Pool.
type Options struct {
	// DailyLimit is the request budget per credential per UTC day.
	DailyLimit int

	// MaxConsecutiveErrors deactivates a credential once reached.
	MaxConsecutiveErrors int

	// MinInterval is the starting pacing hint between requests. It grows on
	// quota errors and is surfaced through Health.
	MinInterval time.Duration

	// ForceResetWhenExhausted clears the quota window of the least-recently
	// used credential when every credential is quota-limited at once. This
	// trades correctness for liveness: the next call on that credential will
	// likely fail again, but the batch keeps moving instead of deadlocking.
	ForceResetWhenExhausted bool
}

// DefaultOptions returns the free-tier defaults.
func DefaultOptions() Options {
	return Options{
		DailyLimit:              60,
		MaxConsecutiveErrors:    3,
		MinInterval:             defaultMinInterval,
		ForceResetWhenExhausted: true,
	}
}

// Pool owns a set of credentials and selects among them. All credential
// state is guarded by the pool mutex; *Credential values handed out by
// Acquire are only ever mutated through MarkError/MarkSuccess.
type Pool struct {
	mu          sync.Mutex
	creds       []*Credential
	cursor      int
	minInterval time.Duration
	opts        Options
	lastReset   time.Time
	logger      zerolog.Logger

	// now is swapped out in tests.
	now func() time.Time
}

// NewPool creates a pool from the configured keys. An empty key list is a
// startup error: a batch without credentials can never make progress.
func NewPool(keys []string, opts Options, logger zerolog.Logger) (*Pool, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("credential pool requires at least one key")
	}
	if opts.DailyLimit <= 0 {
		opts.DailyLimit = 60
	}
	if opts.MaxConsecutiveErrors <= 0 {
		opts.MaxConsecutiveErrors = 3
	}
	if opts.MinInterval <= 0 {
		opts.MinInterval = defaultMinInterval
	}

	now := time.Now
	p := &Pool{
		minInterval: opts.MinInterval,
		opts:        opts,
		lastReset:   now().UTC(),
		logger:      logger,
		now:         now,
	}
	for _, key := range keys {
		p.creds = append(p.creds, &Credential{
			key:        key,
			dailyLimit: opts.DailyLimit,
			active:     true,
		})
	}

	credentialsActive.Set(float64(len(p.creds)))
	logger.Info().
		Int("credentials", len(p.creds)).
		Int("daily_limit", opts.DailyLimit).
		Bool("force_reset_policy", opts.ForceResetWhenExhausted).
		Msg("Credential pool initialized")

	return p, nil
}

// Acquire selects the admissible credential with the lowest weighted score
// and records the acquisition against it. The score is jittered by a factor
// in [0.8, 1.2] so concurrent callers do not all converge on the same "best"
// key; ties go to rotation order. Returns nil when no credential qualifies.
func (p *Pool) Acquire() *Credential {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	p.resetDailyLocked(now)

	start := p.cursor
	p.cursor = (p.cursor + 1) % len(p.creds)

	var best *Credential
	var bestScore float64
	for i := 0; i < len(p.creds); i++ {
		c := p.creds[(start+i)%len(p.creds)]
		if !c.admissible(now) {
			continue
		}
		score := c.score() * (0.8 + rand.Float64()*0.4)
		if best == nil || score < bestScore {
			best = c
			bestScore = score
		}
	}
	if best == nil {
		return nil
	}

	best.requestsToday++
	best.lastUsed = now
	credentialAcquisitionsTotal.Inc()

	p.logger.Debug().
		Str("key_hint", best.Hint()).
		Int("requests_today", best.requestsToday).
		Msg("Credential acquired")

	return best
}

// MarkError records a failed call against c. retryAfter overrides the
// server-suggested quota delay; pass 0 to use the hint carried by err (or
// the 60s default). Quota errors open a quota window and grow the pacing
// hint; auth errors deactivate the credential immediately; any class counts
// towards the consecutive-error cap.
func (p *Pool) MarkError(c *Credential, err error, retryAfter time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	c.errorCount++
	c.consecutiveErrors++
	c.lastError = now

	class := remote.Classify(err)
	credentialErrorsTotal.WithLabelValues(string(class)).Inc()

	switch class {
	case remote.ErrorClassQuota:
		delay := retryAfter
		if delay <= 0 {
			delay = remote.QuotaDelay(err, remote.DefaultQuotaDelay)
		}
		c.quotaResetAt = now.Add(delay)

		p.minInterval = p.minInterval * 3 / 2
		if p.minInterval > maxMinInterval {
			p.minInterval = maxMinInterval
		}

		p.logger.Warn().
			Str("key_hint", c.Hint()).
			Dur("retry_after", delay).
			Dur("min_interval", p.minInterval).
			Msg("Credential quota exceeded")

	case remote.ErrorClassAuth:
		c.active = false
		p.logger.Error().
			Str("key_hint", c.Hint()).
			Msg("Credential rejected by remote service - deactivated (check configuration)")
	}

	if c.active && c.consecutiveErrors >= p.opts.MaxConsecutiveErrors {
		c.active = false
		p.logger.Warn().
			Str("key_hint", c.Hint()).
			Int("consecutive_errors", c.consecutiveErrors).
			Msg("Credential deactivated after consecutive errors")
	}

	p.updateActiveGaugeLocked()
}

// MarkSuccess records a successful call against c, clearing its error streak
// and any quota window.
func (p *Pool) MarkSuccess(c *Credential) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c.consecutiveErrors = 0
	c.quotaResetAt = time.Time{}
	c.lastSuccess = p.now()
}

// Reactivate restores a deactivated credential. Intended for operator use
// after a configuration problem is fixed.
func (p *Pool) Reactivate(c *Credential) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c.active {
		return
	}
	c.active = true
	c.consecutiveErrors = 0
	c.quotaResetAt = time.Time{}
	p.updateActiveGaugeLocked()

	p.logger.Info().
		Str("key_hint", c.Hint()).
		Msg("Credential reactivated")
}

// WaitForAvailable blocks until a credential can be acquired, the context is
// cancelled or the timeout elapses. It polls on ~1s ticks rather than
// spinning; when every credential is quota-limited and the force-reset
// policy is on, the least-recently-used quota window is cleared so the pool
// cannot deadlock. Returns nil on timeout or cancellation.
func (p *Pool) WaitForAvailable(ctx context.Context, timeout time.Duration) *Credential {
	deadline := p.now().Add(timeout)
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		if c := p.Acquire(); c != nil {
			return c
		}
		if p.forceResetIfExhausted() {
			continue
		}
		if !p.now().Before(deadline) {
			poolWaitTimeoutsTotal.Inc()
			p.logger.Warn().
				Dur("timeout", timeout).
				Msg("Timed out waiting for an available credential")
			return nil
		}

		if wait, hint, ok := p.earliestReset(); ok {
			p.logger.Debug().
				Str("key_hint", hint).
				Dur("wait", wait).
				Msg("Waiting for quota window to elapse")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// forceResetIfExhausted applies the availability-over-correctness policy:
// when every credential is inside a quota window, the least-recently-used
// one is cleared. Returns true when a reset happened.
func (p *Pool) forceResetIfExhausted() bool {
	if !p.opts.ForceResetWhenExhausted {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	var oldest *Credential
	for _, c := range p.creds {
		if !c.quotaLimited(now) {
			return false
		}
		if oldest == nil || c.lastUsed.Before(oldest.lastUsed) {
			oldest = c
		}
	}
	if oldest == nil {
		return false
	}

	oldest.quotaResetAt = time.Time{}
	poolForceResetsTotal.Inc()
	p.logger.Warn().
		Str("key_hint", oldest.Hint()).
		Msg("All credentials quota-limited - force-resetting least-recently-used quota window")

	return true
}

// earliestReset returns the shortest remaining quota window, if any.
func (p *Pool) earliestReset() (time.Duration, string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	var wait time.Duration
	var hint string
	found := false
	for _, c := range p.creds {
		if !c.quotaLimited(now) {
			continue
		}
		remaining := c.quotaResetAt.Sub(now)
		if !found || remaining < wait {
			wait = remaining
			hint = c.Hint()
			found = true
		}
	}
	return wait, hint, found
}

// resetDailyLocked clears the daily counters on UTC day rollover.
func (p *Pool) resetDailyLocked(now time.Time) {
	nowUTC := now.UTC()
	if nowUTC.YearDay() == p.lastReset.YearDay() && nowUTC.Year() == p.lastReset.Year() {
		return
	}
	for _, c := range p.creds {
		c.requestsToday = 0
	}
	p.lastReset = nowUTC
	p.logger.Info().Msg("Daily request counters reset")
}

// updateActiveGaugeLocked recounts the active gauge after state changes.
func (p *Pool) updateActiveGaugeLocked() {
	active := 0
	for _, c := range p.creds {
		if c.active {
			active++
		}
	}
	credentialsActive.Set(float64(active))
}

// Stats returns a snapshot of every credential, in rotation order.
func (p *Pool) Stats() []Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Stats, 0, len(p.creds))
	for _, c := range p.creds {
		out = append(out, c.snapshot())
	}
	return out
}

// Health returns the aggregate pool snapshot for the reporting layer.
func (p *Pool) Health() Health {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	h := Health{
		TotalCredentials: len(p.creds),
		MinInterval:      p.minInterval,
	}
	for _, c := range p.creds {
		if c.active {
			h.ActiveCredentials++
		}
		if c.quotaLimited(now) {
			h.QuotaLimited++
		}
		if c.dailyLimited() {
			h.DailyLimited++
		}
		h.Credentials = append(h.Credentials, c.snapshot())
	}
	return h
}
