package cache

import (
	"time"

	"github.com/acronymlab/acrogen/pkg/validate"
)

// Entry is a cached repeat-request response.
type Entry struct {
	// Record is the cached enrichment payload.
	Record validate.Record `json:"record"`

	// CachedAt is when the entry was stored.
	CachedAt time.Time `json:"cached_at"`

	// Expires is when the entry becomes stale.
	Expires time.Time `json:"expires"`
}

// IsExpired returns true if the entry has passed its TTL.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration, or 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// FailureRecord is the durable marker for an item that failed permanently.
// It carries enough detail for reporting without ever holding a full secret.
type FailureRecord struct {
	Acronym    string    `json:"acronym"`
	Error      string    `json:"error"`
	ErrorClass string    `json:"error_class,omitempty"`
	Categories []string  `json:"validation_categories,omitempty"`
	Attempts   int       `json:"attempts"`
	KeyHint    string    `json:"api_key,omitempty"`
	FailedAt   time.Time `json:"failed_at"`
}
