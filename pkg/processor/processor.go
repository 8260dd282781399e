package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/acronymlab/acrogen/pkg/cache"
	"github.com/acronymlab/acrogen/pkg/credential"
	"github.com/acronymlab/acrogen/pkg/ratelimit"
	"github.com/acronymlab/acrogen/pkg/remote"
	"github.com/acronymlab/acrogen/pkg/retry"
	"github.com/acronymlab/acrogen/pkg/validate"
)

// Options holds batch orchestration configuration.
type Options struct {
	// MaxConcurrency is the number of parallel workers.
	MaxConcurrency int

	// WaitTimeout bounds how long one attempt waits for an available
	// credential before counting as a transient failure.
	WaitTimeout time.Duration

	// CacheTTL is the repeat-request cache lifetime. Zero disables the
	// repeat-request cache; durable results are unaffected.
	CacheTTL time.Duration

	// PromptTemplate overrides the built-in prompt. Empty uses the default.
	PromptTemplate string

	// CacheParams are the variant parameters (model, prompt version) that
	// key the repeat-request cache.
	CacheParams map[string]string
}

// DefaultOptions returns orchestration defaults.
func DefaultOptions() Options {
	return Options{
		MaxConcurrency: 5,
		WaitTimeout:    30 * time.Second,
		CacheTTL:       time.Hour,
	}
}

// Storage is the persistence surface the processor needs. *cache.Store
// implements it; tests substitute an in-memory version.
type Storage interface {
	GetResult(ctx context.Context, acronym string) (*validate.Record, error)
	PutResult(ctx context.Context, rec validate.Record) error
	GetFailure(ctx context.Context, acronym string) (*cache.FailureRecord, error)
	PutFailure(ctx context.Context, rec cache.FailureRecord) error
	GetCached(ctx context.Context, key cache.CacheKey) (*cache.Entry, error)
	PutCached(ctx context.Context, key cache.CacheKey, rec validate.Record, ttl time.Duration) error
}

// Processor runs enrichment batches against a remote generator.
type Processor struct {
	pool      *credential.Pool
	limiter   *ratelimit.Limiter
	gen       remote.Generator
	validator *validate.Validator
	store     Storage
	retrier   *retry.Controller
	prompt    *template.Template
	opts      Options
	logger    zerolog.Logger
}

// New creates a processor. All dependencies are required.
func New(pool *credential.Pool, limiter *ratelimit.Limiter, gen remote.Generator,
	validator *validate.Validator, store Storage, retrier *retry.Controller,
	opts Options, logger zerolog.Logger) (*Processor, error) {

	if pool == nil {
		return nil, errors.New("credential pool is required")
	}
	if limiter == nil {
		return nil, errors.New("rate limiter is required")
	}
	if gen == nil {
		return nil, errors.New("generator is required")
	}
	if validator == nil {
		return nil, errors.New("validator is required")
	}
	if store == nil {
		return nil, errors.New("store is required")
	}
	if retrier == nil {
		return nil, errors.New("retry controller is required")
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 5
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = 30 * time.Second
	}

	tmpl, err := parsePromptTemplate(opts.PromptTemplate)
	if err != nil {
		return nil, err
	}

	return &Processor{
		pool:      pool,
		limiter:   limiter,
		gen:       gen,
		validator: validator,
		store:     store,
		retrier:   retrier,
		prompt:    tmpl,
		opts:      opts,
		logger:    logger.With().Str("component", "processor").Logger(),
	}, nil
}

// itemOutcome is the terminal state of one batch item.
type itemOutcome string

const (
	outcomeSucceeded itemOutcome = "succeeded"
	outcomeFailed    itemOutcome = "failed"
	outcomeSkipped   itemOutcome = "skipped"
)

// itemResult carries one item's terminal state back to the collector.
type itemResult struct {
	Acronym    string
	Outcome    itemOutcome
	Record     *validate.Record
	Report     *validate.Report
	Err        error
	SkipReason string
}

// ProcessBatch runs all acronyms through the pipeline and returns run
// statistics. Items are deduplicated; order of completion is not the input
// order. Per-item failures never abort the batch; cancelling ctx stops
// admission of new items while in-flight items finish or fail cleanly.
func (p *Processor) ProcessBatch(ctx context.Context, acronyms []string) (*BatchStats, error) {
	start := time.Now()
	batchID := uuid.NewString()

	items := dedupe(acronyms)
	if len(items) == 0 {
		return nil, errors.New("batch contains no items")
	}

	logger := p.logger.With().Str("batch_id", batchID).Logger()
	logger.Info().
		Int("items", len(items)).
		Int("concurrency", p.opts.MaxConcurrency).
		Msg("Starting batch")

	queue := make(chan string, len(items))
	results := make(chan itemResult, len(items))

	for _, a := range items {
		queue <- a
	}
	close(queue)

	var wg sync.WaitGroup
	for i := 0; i < p.opts.MaxConcurrency; i++ {
		wg.Add(1)
		go p.worker(ctx, logger, queue, results, &wg)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	stats := &BatchStats{
		BatchID:            batchID,
		ValidationFailures: make(map[string]int),
	}

	done := 0
	for res := range results {
		done++
		switch res.Outcome {
		case outcomeSucceeded:
			stats.Attempted++
			stats.Succeeded++
		case outcomeFailed:
			stats.Attempted++
			stats.Failed++
			logger.Warn().
				Err(res.Err).
				Str("acronym", res.Acronym).
				Msg("Item failed")
		case outcomeSkipped:
			stats.Skipped++
		}
		itemsTotal.WithLabelValues(string(res.Outcome)).Inc()

		if res.Report != nil {
			for _, category := range res.Report.Categories() {
				stats.ValidationFailures[category]++
				validationFailures.WithLabelValues(category).Inc()
			}
		}

		if done%25 == 0 {
			logger.Info().
				Int("done", done).
				Int("total", len(items)).
				Msg("Batch progress")
		}
	}

	stats.CredentialUsage = p.pool.Stats()
	stats.Duration = time.Since(start)
	batchDuration.Observe(stats.Duration.Seconds())

	logger.Info().
		Int("attempted", stats.Attempted).
		Int("succeeded", stats.Succeeded).
		Int("failed", stats.Failed).
		Int("skipped", stats.Skipped).
		Dur("duration", stats.Duration).
		Msg("Batch complete")

	return stats, nil
}

func (p *Processor) worker(ctx context.Context, logger zerolog.Logger,
	queue <-chan string, results chan<- itemResult, wg *sync.WaitGroup) {
	defer wg.Done()

	for acronym := range queue {
		select {
		case <-ctx.Done():
			return
		default:
		}
		results <- p.processItem(ctx, logger, acronym)
	}
}

// processItem runs one acronym to a terminal state.
func (p *Processor) processItem(ctx context.Context, logger zerolog.Logger, acronym string) itemResult {
	if existing, err := p.store.GetResult(ctx, acronym); err == nil {
		logger.Debug().Str("acronym", acronym).Msg("Already processed, skipping")
		return itemResult{Acronym: acronym, Outcome: outcomeSkipped,
			Record: existing, SkipReason: "already processed"}
	}
	if _, err := p.store.GetFailure(ctx, acronym); err == nil {
		logger.Debug().Str("acronym", acronym).Msg("Previously failed, skipping")
		return itemResult{Acronym: acronym, Outcome: outcomeSkipped,
			SkipReason: "previously failed"}
	}

	cacheKey := cache.CacheKey{Acronym: acronym, Params: p.opts.CacheParams}
	if p.opts.CacheTTL > 0 {
		if entry, err := p.store.GetCached(ctx, cacheKey); err == nil {
			logger.Debug().Str("acronym", acronym).Msg("Serving repeat request from cache")
			rec := entry.Record
			return itemResult{Acronym: acronym, Outcome: outcomeSkipped,
				Record: &rec, SkipReason: "cached"}
		}
	}

	prompt, err := p.buildPrompt(acronym)
	if err != nil {
		return itemResult{Acronym: acronym, Outcome: outcomeFailed, Err: err}
	}

	var (
		result     *validate.Record
		lastReport *validate.Report
		lastHint   string
		attempt    int
	)

	op := func(ctx context.Context) error {
		attempt++

		cred := p.pool.WaitForAvailable(ctx, p.opts.WaitTimeout)
		if cred == nil {
			if err := ctx.Err(); err != nil {
				return err
			}
			return &remote.CallError{
				Class:   remote.ErrorClassTransient,
				Message: "no credential available within wait timeout",
			}
		}
		lastHint = cred.Hint()

		if err := p.limiter.Acquire(ctx); err != nil {
			return err
		}

		text, err := p.gen.Generate(ctx, prompt, cred.Key())
		if err != nil {
			p.pool.MarkError(cred, err, remote.QuotaDelay(err, 0))
			if !remote.IsAuth(err) {
				p.limiter.OnFailure()
			}
			return err
		}
		p.pool.MarkSuccess(cred)
		p.limiter.OnSuccess()

		rec, err := decodeRecord(text)
		if err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		rec.Acronym = acronym
		rec.ProcessedAt = time.Now().UTC()
		rec.KeyHint = cred.Hint()
		rec.Attempt = attempt

		cleaned := validate.Clean(rec)
		report := p.validator.Validate(cleaned)
		if !report.Valid() {
			lastReport = &report
			return &validationError{report: report}
		}

		result = &cleaned
		return nil
	}

	if err := p.retrier.Do(ctx, op); err != nil {
		p.recordFailure(ctx, logger, acronym, err, lastReport, lastHint, attempt)
		return itemResult{Acronym: acronym, Outcome: outcomeFailed,
			Report: lastReport, Err: err}
	}

	if err := p.store.PutResult(ctx, *result); err != nil {
		if !errors.Is(err, cache.ErrAlreadyExists) {
			// Without a durable result the item never reached its terminal
			// state. No marker, so the next run retries it.
			logger.Warn().Err(err).Str("acronym", acronym).Msg("Persisting result failed")
			return itemResult{Acronym: acronym, Outcome: outcomeFailed, Err: err}
		}
		// A concurrent worker won the write; the stored result is canonical.
		logger.Debug().Str("acronym", acronym).Msg("Result already persisted")
	}
	if p.opts.CacheTTL > 0 {
		if err := p.store.PutCached(ctx, cacheKey, *result, p.opts.CacheTTL); err != nil {
			logger.Warn().Err(err).Str("acronym", acronym).Msg("Caching result failed")
		}
	}

	logger.Debug().
		Str("acronym", acronym).
		Int("attempts", attempt).
		Msg("Item enriched")

	return itemResult{Acronym: acronym, Outcome: outcomeSucceeded, Record: result}
}

// recordFailure persists a permanent failure marker for items that exhausted
// their attempts on a content problem. Infrastructure failures (quota,
// credential, cancellation) leave no marker so the item is retried on the
// next run.
func (p *Processor) recordFailure(ctx context.Context, logger zerolog.Logger,
	acronym string, err error, report *validate.Report, hint string, attempts int) {

	var vErr *validationError
	if !errors.As(err, &vErr) {
		return
	}

	marker := cache.FailureRecord{
		Acronym:  acronym,
		Error:    err.Error(),
		Attempts: attempts,
		KeyHint:  hint,
		FailedAt: time.Now().UTC(),
	}
	if report != nil {
		marker.Categories = report.Categories()
	}

	if perr := p.store.PutFailure(ctx, marker); perr != nil {
		logger.Warn().Err(perr).Str("acronym", acronym).Msg("Persisting failure marker failed")
	}
}

// validationError marks a decoded response that failed validation. It is
// classified as transient so a fresh attempt (and possibly a fresh
// credential) gets a chance to produce a valid payload.
type validationError struct {
	report validate.Report
}

func (e *validationError) Error() string {
	return "validation failed: " + e.report.Summary()
}

// decodeRecord parses the generated text into a Record, tolerating the
// markdown code fences models often wrap JSON in.
func decodeRecord(text string) (validate.Record, error) {
	var rec validate.Record
	cleaned := stripFences(text)
	if err := json.Unmarshal([]byte(cleaned), &rec); err != nil {
		return validate.Record{}, err
	}
	return rec, nil
}

func stripFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// dedupe trims and deduplicates the input list preserving first-seen order.
func dedupe(acronyms []string) []string {
	seen := make(map[string]struct{}, len(acronyms))
	out := make([]string, 0, len(acronyms))
	for _, a := range acronyms {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}
