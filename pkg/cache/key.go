package cache

import (
	"fmt"
	"sort"
	"strings"
)

// keyspace prefixes.
const (
	resultPrefix  = "acrogen:result:"
	failurePrefix = "acrogen:failure:"
	cachePrefix   = "acrogen:cache:"
)

// CacheKey identifies one repeat-request cache entry: the input key plus the
// variant parameters that shaped the request (model, prompt version, ...).
type CacheKey struct {
	// Acronym is the work item input key.
	Acronym string

	// Params are the variant parameters. Different params mean different
	// cache entries for the same acronym.
	Params map[string]string
}

// String generates a deterministic Redis key.
// Format: acrogen:cache:<acronym>:param1=val1:param2=val2
func (k CacheKey) String() string {
	parts := []string{strings.TrimSpace(k.Acronym)}

	if len(k.Params) > 0 {
		names := make([]string, 0, len(k.Params))
		for name := range k.Params {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s=%s", name, k.Params[name]))
		}
	}

	return cachePrefix + strings.Join(parts, ":")
}

// resultKey returns the durable result key for an acronym.
func resultKey(acronym string) string {
	return resultPrefix + strings.TrimSpace(acronym)
}

// failureKey returns the durable failure marker key for an acronym.
func failureKey(acronym string) string {
	return failurePrefix + strings.TrimSpace(acronym)
}
