// Command acrogen runs a batch enrichment job: it reads acronyms from an
// input file, fans them across the pipeline and persists results in Redis.
// While a batch runs it serves /health and /metrics for scraping.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/acronymlab/acrogen/internal/config"
	"github.com/acronymlab/acrogen/pkg/cache"
	"github.com/acronymlab/acrogen/pkg/credential"
	"github.com/acronymlab/acrogen/pkg/logging"
	"github.com/acronymlab/acrogen/pkg/processor"
	"github.com/acronymlab/acrogen/pkg/ratelimit"
	"github.com/acronymlab/acrogen/pkg/remote"
	"github.com/acronymlab/acrogen/pkg/retry"
	"github.com/acronymlab/acrogen/pkg/validate"
)

func main() {
	input := flag.String("input", "", "path to a file with one acronym per line")
	flag.Parse()

	if err := run(*input); err != nil {
		fmt.Fprintf(os.Stderr, "acrogen: %v\n", err)
		os.Exit(1)
	}
}

func run(inputPath string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if inputPath == "" {
		return fmt.Errorf("missing -input file")
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.LogLevel(cfg.LogLevel())
	logCfg.Pretty = cfg.LogFormat() == "console"
	logger := logging.Setup(logCfg)

	acronyms, err := readAcronyms(inputPath)
	if err != nil {
		return err
	}
	if len(acronyms) == 0 {
		return fmt.Errorf("input file %s contains no acronyms", inputPath)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		DB:       cfg.RedisDB(),
		Password: cfg.RedisPassword(),
	})
	defer redisClient.Close()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr(), err)
	}
	logger.Info().Str("addr", cfg.RedisAddr()).Msg("Connected to Redis")

	pool, err := credential.NewPool(cfg.APIKeys(), credential.Options{
		DailyLimit:              cfg.DailyLimit(),
		MaxConsecutiveErrors:    cfg.MaxConsecutiveErrors(),
		MinInterval:             cfg.MinInterval(),
		ForceResetWhenExhausted: cfg.ForceResetWhenExhausted(),
	}, logger)
	if err != nil {
		return fmt.Errorf("build credential pool: %w", err)
	}

	limiter, err := ratelimit.New(cfg.TokensPerSecond(), cfg.Burst())
	if err != nil {
		return fmt.Errorf("build rate limiter: %w", err)
	}

	retrier := retry.NewController(retry.Config{
		MaxAttempts: cfg.MaxAttempts(),
		BaseDelay:   cfg.BaseDelay(),
		MaxDelay:    cfg.MaxDelay(),
	}, logger)

	gen, err := remote.NewGemini(cfg.Model(), logger)
	if err != nil {
		return fmt.Errorf("build generator: %w", err)
	}

	proc, err := processor.New(
		pool,
		limiter,
		gen,
		validate.NewValidator(cfg.MinDescriptionLength(), cfg.MinRelatedTerms()),
		cache.NewStore(redisClient),
		retrier,
		processor.Options{
			MaxConcurrency: cfg.MaxConcurrency(),
			WaitTimeout:    cfg.WaitTimeout(),
			CacheTTL:       cfg.CacheTTL(),
			CacheParams:    map[string]string{"model": cfg.Model()},
		},
		logger,
	)
	if err != nil {
		return fmt.Errorf("build processor: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := serveOps(cfg.MetricsAddr(), logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info().
		Int("acronyms", len(acronyms)).
		Str("model", cfg.Model()).
		Int("credentials", len(cfg.APIKeys())).
		Msg("Starting enrichment run")

	stats, err := proc.ProcessBatch(ctx, acronyms)
	if err != nil {
		return fmt.Errorf("run batch: %w", err)
	}

	summary, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	fmt.Println(string(summary))

	if ctx.Err() != nil {
		logger.Warn().Msg("Run interrupted by signal")
	}
	return nil
}

// readAcronyms parses one acronym per line, skipping blanks and # comments.
func readAcronyms(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input file: %w", err)
	}
	defer f.Close()

	var acronyms []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		acronyms = append(acronyms, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read input file: %w", err)
	}
	return acronyms, nil
}

// serveOps starts the /health and /metrics endpoints in the background.
func serveOps(addr string, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn().Err(err).Str("addr", addr).Msg("Ops server stopped")
		}
	}()

	logger.Info().Str("addr", addr).Msg("Serving /health and /metrics")
	return srv
}
