// Package credential manages a pool of API keys with per-key usage, error and
// quota state. Selection is weighted by usage and error history so concurrent
// callers spread load instead of converging on a single key.
package credential

import (
	"time"
)

// Credential holds the process-local state of one API key. All mutation goes
// through the owning Pool and happens under its mutex.
type Credential struct {
	key string

	requestsToday     int
	dailyLimit        int
	lastUsed          time.Time
	lastSuccess       time.Time
	lastError         time.Time
	errorCount        int
	consecutiveErrors int
	active            bool
	quotaResetAt      time.Time // zero value means no quota window
}

// Key returns the secret. Callers pass it to the remote adapter and must not
// log it; use Hint for anything user-visible.
func (c *Credential) Key() string {
	return c.key
}

// Hint returns a loggable prefix of the key. Full secrets never appear in
// logs, stats or error records.
func (c *Credential) Hint() string {
	if len(c.key) <= 8 {
		return c.key
	}
	return c.key[:8] + "..."
}

// quotaLimited reports whether the credential sits inside a quota window.
func (c *Credential) quotaLimited(now time.Time) bool {
	return !c.quotaResetAt.IsZero() && now.Before(c.quotaResetAt)
}

// dailyLimited reports whether the credential used up its daily budget.
func (c *Credential) dailyLimited() bool {
	return c.requestsToday >= c.dailyLimit
}

// admissible reports whether the credential may be selected right now.
func (c *Credential) admissible(now time.Time) bool {
	return c.active && !c.quotaLimited(now) && !c.dailyLimited()
}

// score is the selection weight before jitter: heavier use and a worse error
// history push a credential towards the back of the line.
func (c *Credential) score() float64 {
	return float64(c.requestsToday + 10*c.errorCount)
}

// Stats is an observability snapshot of one credential.
type Stats struct {
	KeyHint           string     `json:"key_hint"`
	RequestsToday     int        `json:"requests_today"`
	DailyLimit        int        `json:"daily_limit"`
	ErrorCount        int        `json:"error_count"`
	ConsecutiveErrors int        `json:"consecutive_errors"`
	Active            bool       `json:"is_active"`
	LastSuccess       *time.Time `json:"last_success,omitempty"`
	QuotaResetAt      *time.Time `json:"quota_reset_at,omitempty"`
}

// snapshot copies the credential state into a Stats value.
func (c *Credential) snapshot() Stats {
	s := Stats{
		KeyHint:           c.Hint(),
		RequestsToday:     c.requestsToday,
		DailyLimit:        c.dailyLimit,
		ErrorCount:        c.errorCount,
		ConsecutiveErrors: c.consecutiveErrors,
		Active:            c.active,
	}
	if !c.lastSuccess.IsZero() {
		t := c.lastSuccess
		s.LastSuccess = &t
	}
	if !c.quotaResetAt.IsZero() {
		t := c.quotaResetAt
		s.QuotaResetAt = &t
	}
	return s
}

// Health is an aggregate snapshot of the pool, consumed by the reporting
// layer.
type Health struct {
	TotalCredentials  int           `json:"total_credentials"`
	ActiveCredentials int           `json:"active_credentials"`
	QuotaLimited      int           `json:"quota_limited"`
	DailyLimited      int           `json:"daily_limited"`
	MinInterval       time.Duration `json:"min_interval"`
	Credentials       []Stats       `json:"credentials"`
}
