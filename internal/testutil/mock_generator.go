// Package testutil provides testing utilities for the enrichment pipeline.
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MockResponse defines one scripted generator reply.
type MockResponse struct {
	// Text is the raw model output to return.
	Text string

	// Err, when set, is returned instead of Text.
	Err error

	// Delay pauses before responding, for cancellation tests.
	Delay time.Duration
}

// MockGenerator is a scripted remote generator. Responses can be scripted
// per acronym (matched by substring of the prompt) or globally in order.
// Safe for concurrent use.
type MockGenerator struct {
	mu sync.Mutex

	// scripted responses per acronym, consumed in order
	perItem map[string][]MockResponse

	// global fallback responses, consumed in order
	queue []MockResponse

	// Default is returned once per-item and queued responses run out.
	Default MockResponse

	calls    int
	keysUsed map[string]int
	prompts  []string
}

// NewMockGenerator creates an empty mock that answers every call with a
// valid payload for the acronym "MOCK".
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{
		perItem:  make(map[string][]MockResponse),
		keysUsed: make(map[string]int),
		Default:  MockResponse{Text: ValidPayload("MOCK", "Mock Object Concept Kit")},
	}
}

// Script queues responses for prompts mentioning the given acronym.
func (m *MockGenerator) Script(acronym string, responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.perItem[acronym] = append(m.perItem[acronym], responses...)
}

// Queue appends global fallback responses consumed in call order.
func (m *MockGenerator) Queue(responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, responses...)
}

// Generate implements the remote generator contract.
func (m *MockGenerator) Generate(ctx context.Context, prompt, apiKey string) (string, error) {
	m.mu.Lock()
	m.calls++
	m.keysUsed[apiKey]++
	m.prompts = append(m.prompts, prompt)
	resp := m.nextLocked(prompt)
	m.mu.Unlock()

	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if resp.Err != nil {
		return "", resp.Err
	}
	return resp.Text, nil
}

func (m *MockGenerator) nextLocked(prompt string) MockResponse {
	for acronym, responses := range m.perItem {
		if len(responses) == 0 {
			continue
		}
		if containsQuoted(prompt, acronym) {
			m.perItem[acronym] = responses[1:]
			return responses[0]
		}
	}
	if len(m.queue) > 0 {
		resp := m.queue[0]
		m.queue = m.queue[1:]
		return resp
	}
	return m.Default
}

// Calls returns the total number of Generate invocations.
func (m *MockGenerator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// KeyUsage returns how many calls each API key served.
func (m *MockGenerator) KeyUsage() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int, len(m.keysUsed))
	for k, v := range m.keysUsed {
		out[k] = v
	}
	return out
}

// containsQuoted reports whether the prompt names the acronym in quotes,
// the form the prompt template uses.
func containsQuoted(prompt, acronym string) bool {
	return strings.Contains(prompt, fmt.Sprintf("%q", acronym))
}

// ValidPayload builds a model response that passes validation for the given
// acronym and expansion.
func ValidPayload(acronym, fullName string) string {
	payload := map[string]any{
		"full_name":     fullName,
		"description":   fmt.Sprintf("%s (%s) is widely used across its field and has a well established meaning.", fullName, acronym),
		"context":       fmt.Sprintf("Commonly encountered wherever %s matters.", fullName),
		"related_terms": []string{"glossary", "terminology"},
		"industry":      "Technology",
	}
	data, _ := json.Marshal(payload)
	return string(data)
}

// InvalidPayload builds a model response that fails content validation: the
// expansion has no relation to the acronym.
func InvalidPayload(acronym string) string {
	payload := map[string]any{
		"full_name":     "Zebra Quilt Xylophone",
		"description":   "A description that is long enough to pass the structural length check.",
		"context":       "Nowhere in particular.",
		"related_terms": []string{"unrelated"},
		"industry":      "Unknown",
	}
	data, _ := json.Marshal(payload)
	return string(data)
}
