package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

// Prometheus metrics for remote call operations.
var (
	remoteRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "acrogen_remote_requests_total",
		Help: "Total remote generation requests by outcome",
	}, []string{"outcome"})

	remoteRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "acrogen_remote_request_duration_seconds",
		Help:    "Remote generation request duration in seconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30},
	})

	remoteErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "acrogen_remote_errors_total",
		Help: "Total remote errors by class",
	}, []string{"class"})
)

// DefaultQuotaDelay is used when a quota error carries no retry hint.
const DefaultQuotaDelay = 60 * time.Second

// Gemini implements Generator against the Gemini API. Because every call may
// carry a different credential, clients are created per key and cached for
// the process lifetime.
type Gemini struct {
	model  string
	logger zerolog.Logger

	mu      sync.Mutex
	clients map[string]*genai.Client
}

// NewGemini creates a Gemini generator for the given model name.
func NewGemini(model string, logger zerolog.Logger) (*Gemini, error) {
	if model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	return &Gemini{
		model:   model,
		logger:  logger,
		clients: make(map[string]*genai.Client),
	}, nil
}

// clientFor returns the cached client for apiKey, creating it on first use.
func (g *Gemini) clientFor(ctx context.Context, apiKey string) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if c, ok := g.clients[apiKey]; ok {
		return c, nil
	}

	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &CallError{
			Class:   ErrorClassAuth,
			Message: "create client",
			Err:     err,
		}
	}

	g.clients[apiKey] = c
	return c, nil
}

// Generate sends one prompt with one credential and returns the raw response
// text. Failures are returned as *CallError.
func (g *Gemini) Generate(ctx context.Context, prompt, apiKey string) (string, error) {
	if prompt == "" {
		return "", &CallError{Class: ErrorClassTransient, Message: "empty prompt"}
	}

	client, err := g.clientFor(ctx, apiKey)
	if err != nil {
		remoteErrorsTotal.WithLabelValues(string(Classify(err))).Inc()
		return "", err
	}

	start := time.Now()
	resp, err := client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	remoteRequestDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		callErr := g.mapError(err)
		remoteErrorsTotal.WithLabelValues(string(callErr.Class)).Inc()
		remoteRequestsTotal.WithLabelValues("error").Inc()

		g.logger.Warn().
			Str("key_hint", keyHint(apiKey)).
			Str("error_class", string(callErr.Class)).
			Int("status", callErr.StatusCode).
			Msg("Remote generation failed")
		return "", callErr
	}

	text, err := extractText(resp)
	if err != nil {
		remoteErrorsTotal.WithLabelValues(string(ErrorClassTransient)).Inc()
		remoteRequestsTotal.WithLabelValues("empty").Inc()
		return "", err
	}

	remoteRequestsTotal.WithLabelValues("ok").Inc()
	g.logger.Debug().
		Str("key_hint", keyHint(apiKey)).
		Int("response_length", len(text)).
		Msg("Remote generation succeeded")

	return text, nil
}

// extractText pulls the concatenated text parts out of the first candidate.
func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", &CallError{Class: ErrorClassTransient, Message: "no candidates in response"}
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", &CallError{Class: ErrorClassTransient, Message: "response blocked by safety filters"}
	}
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", &CallError{Class: ErrorClassTransient, Message: "empty content in candidate"}
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		sb.WriteString(part.Text)
	}
	if sb.Len() == 0 {
		return "", &CallError{Class: ErrorClassTransient, Message: "no text parts in candidate"}
	}

	return sb.String(), nil
}

// mapError converts a raw Gemini API error into the typed taxonomy. This is
// the single place where transport errors are inspected.
func (g *Gemini) mapError(err error) *CallError {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 401 || apiErr.Code == 403:
			return &CallError{
				Class:      ErrorClassAuth,
				StatusCode: apiErr.Code,
				Message:    apiErr.Message,
				Err:        err,
			}
		case apiErr.Code == 429:
			return &CallError{
				Class:      ErrorClassQuota,
				StatusCode: apiErr.Code,
				Message:    apiErr.Message,
				RetryAfter: retryDelayFromDetails(apiErr.Details),
				Err:        err,
			}
		default:
			return &CallError{
				Class:      ErrorClassTransient,
				StatusCode: apiErr.Code,
				Message:    apiErr.Message,
				Err:        err,
			}
		}
	}

	// Network errors, timeouts, anything without an API error payload.
	return &CallError{
		Class:   ErrorClassTransient,
		Message: "request failed",
		Err:     err,
	}
}

// retryDelayFromDetails extracts the RetryInfo delay attached to 429
// responses. Returns 0 when no parseable hint is present.
func retryDelayFromDetails(details []map[string]any) time.Duration {
	for _, detail := range details {
		typeURL, _ := detail["@type"].(string)
		if !strings.Contains(typeURL, "RetryInfo") {
			continue
		}
		delayStr, _ := detail["retryDelay"].(string)
		if delayStr == "" {
			continue
		}
		if d, err := time.ParseDuration(delayStr); err == nil && d > 0 {
			return d
		}
	}
	return 0
}

// keyHint returns a loggable prefix of an API key. Full secrets never reach
// the log stream.
func keyHint(apiKey string) string {
	if len(apiKey) <= 8 {
		return apiKey
	}
	return apiKey[:8] + "..."
}
