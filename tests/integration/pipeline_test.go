package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/acronymlab/acrogen/internal/testutil"
	"github.com/acronymlab/acrogen/pkg/cache"
	"github.com/acronymlab/acrogen/pkg/credential"
	"github.com/acronymlab/acrogen/pkg/processor"
	"github.com/acronymlab/acrogen/pkg/ratelimit"
	"github.com/acronymlab/acrogen/pkg/retry"
	"github.com/acronymlab/acrogen/pkg/validate"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

var integrationKeys = []string{
	"AIzaSyINTEGRATION000000000000000000000001",
	"AIzaSyINTEGRATION000000000000000000000002",
}

// newPipeline wires a full processor on the containerized Redis with a
// scripted generator.
func newPipeline(t *testing.T, redisClient *redis.Client, gen *testutil.MockGenerator) *processor.Processor {
	t.Helper()

	pool, err := credential.NewPool(integrationKeys, credential.DefaultOptions(), zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create pool: %v", err)
	}

	retrier := retry.NewController(retry.Config{
		MaxAttempts: 3,
		BaseDelay:   10 * time.Millisecond,
		MaxDelay:    100 * time.Millisecond,
	}, zerolog.Nop())

	proc, err := processor.New(
		pool,
		ratelimit.NewDisabled(),
		gen,
		validate.NewValidator(20, 1),
		cache.NewStore(redisClient),
		retrier,
		processor.Options{MaxConcurrency: 2, CacheTTL: time.Minute},
		zerolog.Nop(),
	)
	if err != nil {
		t.Fatalf("Failed to create processor: %v", err)
	}
	return proc
}

// TestPipelineEndToEnd runs a batch against real Redis and verifies the
// persisted results, then re-runs the batch and verifies idempotency.
func TestPipelineEndToEnd(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	gen := testutil.NewMockGenerator()
	gen.Script("NASA", testutil.MockResponse{Text: testutil.ValidPayload("NASA", "National Aeronautics and Space Administration")})
	gen.Script("SQL", testutil.MockResponse{Text: testutil.ValidPayload("SQL", "Structured Query Language")})
	gen.Script("DNS", testutil.MockResponse{Text: testutil.ValidPayload("DNS", "Domain Name System")})

	proc := newPipeline(t, redisClient, gen)
	ctx := context.Background()

	stats, err := proc.ProcessBatch(ctx, []string{"NASA", "SQL", "DNS"})
	if err != nil {
		t.Fatalf("First batch failed: %v", err)
	}
	if stats.Succeeded != 3 {
		t.Fatalf("Succeeded = %d, want 3", stats.Succeeded)
	}

	// Results are in Redis under the result keyspace.
	store := cache.NewStore(redisClient)
	rec, err := store.GetResult(ctx, "NASA")
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if rec.FullName != "National Aeronautics and Space Administration" {
		t.Errorf("FullName = %q", rec.FullName)
	}
	if rec.ProcessedAt.IsZero() {
		t.Error("processed_at not persisted")
	}
	if len(rec.RelatedTerms) == 0 {
		t.Error("related_terms not persisted")
	}

	// Second run: everything skips, generator untouched.
	callsBefore := gen.Calls()
	stats2, err := proc.ProcessBatch(ctx, []string{"NASA", "SQL", "DNS"})
	if err != nil {
		t.Fatalf("Second batch failed: %v", err)
	}
	if stats2.Skipped != 3 {
		t.Errorf("Skipped = %d, want 3", stats2.Skipped)
	}
	if gen.Calls() != callsBefore {
		t.Errorf("Generator called %d more times on re-run", gen.Calls()-callsBefore)
	}
}

// TestPipelinePersistsFailureMarkers verifies a permanently invalid item
// leaves a marker in Redis and is skipped by later runs.
func TestPipelinePersistsFailureMarkers(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	gen := testutil.NewMockGenerator()
	gen.Script("XQZV",
		testutil.MockResponse{Text: testutil.InvalidPayload("XQZV")},
		testutil.MockResponse{Text: testutil.InvalidPayload("XQZV")},
		testutil.MockResponse{Text: testutil.InvalidPayload("XQZV")},
	)

	proc := newPipeline(t, redisClient, gen)
	ctx := context.Background()

	stats, err := proc.ProcessBatch(ctx, []string{"XQZV"})
	if err != nil {
		t.Fatalf("Batch failed: %v", err)
	}
	if stats.Failed != 1 {
		t.Fatalf("Failed = %d, want 1", stats.Failed)
	}

	store := cache.NewStore(redisClient)
	marker, err := store.GetFailure(ctx, "XQZV")
	if err != nil {
		t.Fatalf("GetFailure: %v", err)
	}
	if marker.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", marker.Attempts)
	}

	// Re-run: skipped without any generator call.
	callsBefore := gen.Calls()
	stats2, err := proc.ProcessBatch(ctx, []string{"XQZV"})
	if err != nil {
		t.Fatalf("Second batch failed: %v", err)
	}
	if stats2.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", stats2.Skipped)
	}
	if gen.Calls() != callsBefore {
		t.Error("Generator was called for a permanently failed item")
	}

	// Operator clears the marker, item becomes eligible again.
	if err := store.ClearFailure(ctx, "XQZV"); err != nil {
		t.Fatalf("ClearFailure: %v", err)
	}
	if _, err := store.GetFailure(ctx, "XQZV"); !errors.Is(err, cache.ErrNotFound) {
		t.Errorf("marker still present after clear: %v", err)
	}
}

// TestPipelineResumesPartialRun seeds some results and verifies a batch
// only processes the remainder.
func TestPipelineResumesPartialRun(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	ctx := context.Background()
	store := cache.NewStore(redisClient)

	if err := store.PutResult(ctx, validate.Record{
		Acronym:      "NASA",
		FullName:     "National Aeronautics and Space Administration",
		Description:  "Result persisted by an earlier interrupted run of the batch.",
		Context:      "Space exploration.",
		RelatedTerms: []string{"ESA"},
		Industry:     "Aerospace",
		ProcessedAt:  time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed result: %v", err)
	}

	gen := testutil.NewMockGenerator()
	gen.Script("SQL", testutil.MockResponse{Text: testutil.ValidPayload("SQL", "Structured Query Language")})

	proc := newPipeline(t, redisClient, gen)

	stats, err := proc.ProcessBatch(ctx, []string{"NASA", "SQL"})
	if err != nil {
		t.Fatalf("Batch failed: %v", err)
	}

	if stats.Skipped != 1 || stats.Succeeded != 1 {
		t.Errorf("stats = %+v, want 1 skipped + 1 succeeded", stats)
	}
	if gen.Calls() != 1 {
		t.Errorf("Generator calls = %d, want 1 (only the unprocessed item)", gen.Calls())
	}
}

// TestResultRoundTripThroughRedis verifies a persisted record reloads
// field-for-field equal.
func TestResultRoundTripThroughRedis(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	ctx := context.Background()
	store := cache.NewStore(redisClient)

	want := validate.Record{
		Acronym:      "RADAR",
		FullName:     "Radio Detection and Ranging",
		Description:  "A system that uses radio waves to determine distance, angle and velocity of objects.",
		Context:      "Aviation, maritime navigation and meteorology.",
		RelatedTerms: []string{"sonar", "lidar"},
		Industry:     "Defense",
		ProcessedAt:  time.Now().UTC().Truncate(time.Second),
		KeyHint:      "AIzaSyIN...",
		Attempt:      2,
	}

	if err := store.PutResult(ctx, want); err != nil {
		t.Fatalf("PutResult: %v", err)
	}

	got, err := store.GetResult(ctx, "RADAR")
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}

	if got.FullName != want.FullName || got.Description != want.Description ||
		got.Context != want.Context || got.Industry != want.Industry {
		t.Errorf("reloaded record differs: %+v", got)
	}
	if !got.ProcessedAt.Equal(want.ProcessedAt) {
		t.Errorf("ProcessedAt = %v, want %v", got.ProcessedAt, want.ProcessedAt)
	}
	if got.KeyHint != want.KeyHint || got.Attempt != want.Attempt {
		t.Errorf("metadata differs: hint=%q attempt=%d", got.KeyHint, got.Attempt)
	}
	if len(got.RelatedTerms) != 2 || got.RelatedTerms[0] != "sonar" {
		t.Errorf("RelatedTerms = %v", got.RelatedTerms)
	}
}
