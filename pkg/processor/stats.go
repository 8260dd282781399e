package processor

import (
	"time"

	"github.com/acronymlab/acrogen/pkg/credential"
)

// BatchStats summarizes one batch run.
type BatchStats struct {
	// BatchID uniquely identifies the run.
	BatchID string `json:"batch_id"`

	// Attempted is the number of items that actually went through the
	// pipeline (skipped items excluded).
	Attempted int `json:"attempted"`

	// Succeeded is the number of items with a persisted result.
	Succeeded int `json:"succeeded"`

	// Failed is the number of items that exhausted their attempts.
	Failed int `json:"failed"`

	// Skipped counts items with an existing result or failure marker.
	Skipped int `json:"skipped"`

	// ValidationFailures counts the final validation findings per category
	// for items that failed.
	ValidationFailures map[string]int `json:"validation_failures,omitempty"`

	// CredentialUsage is the per-credential snapshot taken at completion.
	CredentialUsage []credential.Stats `json:"credential_usage"`

	// Duration is the wall-clock time of the run.
	Duration time.Duration `json:"duration"`
}
