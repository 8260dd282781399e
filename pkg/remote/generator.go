package remote

import "context"

// Generator is the remote text-generation contract. Implementations send one
// prompt with one credential and return the raw response text.
//
// The returned text is not guaranteed to be valid JSON or to satisfy any
// content contract; decoding and validation happen upstream. Failures are
// returned as *CallError so callers can branch on the error class.
type Generator interface {
	Generate(ctx context.Context, prompt, apiKey string) (string, error)
}
