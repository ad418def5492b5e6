package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/resumer-app/resumer/internal/ai"
	"github.com/resumer-app/resumer/internal/ai/gemini"
	"github.com/resumer-app/resumer/internal/extraction"
	"github.com/resumer-app/resumer/internal/jobmatch"
	"github.com/resumer-app/resumer/internal/pipeline"
	"github.com/resumer-app/resumer/internal/poller"
	"github.com/resumer-app/resumer/internal/record"
	"github.com/resumer-app/resumer/internal/secrets"
	"github.com/resumer-app/resumer/internal/store"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// newKV builds the record store. The returned close function is safe to call
// once, even when the store is the in-memory one.
func newKV(ctx context.Context, config *Config) (store.KV, func(), error) {
	if viper.GetBool("memory") {
		return store.NewMemory(), func() {}, nil
	}

	var storeCfg StoreConfig
	if config != nil && config.Store != nil {
		storeCfg = *config.Store
	}

	dsn, err := secrets.Load(secrets.Source{
		Name:  "postgres connection string",
		Value: storeCfg.PostgresURL,
		File:  storeCfg.PostgresURLFile,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w (set store.postgres-url, RESUMER_POSTGRES_URL or --memory)", err)
	}

	pg, err := store.NewPostgres(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	if err := pg.EnsureSchema(ctx); err != nil {
		pg.Close()
		return nil, nil, fmt.Errorf("preparing records table: %w", err)
	}

	return pg, pg.Close, nil
}

func newAssistant(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (ai.Assistant, error) {
	if cfg == nil || cfg.Gemini == nil {
		return nil, errors.New("ai.gemini section is required")
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.Gemini.APIKey,
		File:  cfg.Gemini.APIKeyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	genLogger := logger.With(
		zap.String("provider", "gemini"),
		zap.String("model", cfg.Gemini.Model),
	)

	return gemini.New(ctx, apiKey, cfg.Gemini.Model, genLogger)
}

func newJobsClient(cfg *JobsConfig, logger *zap.Logger) (*jobmatch.Client, error) {
	if cfg == nil || strings.TrimSpace(cfg.ServiceURL) == "" {
		return nil, errors.New("job service url is not configured (set jobs.service-url or JOB_SERVICE_URL)")
	}

	client := jobmatch.New(strings.TrimRight(cfg.ServiceURL, "/"), logger)

	if cfg.TimeoutSeconds > 0 {
		client.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	if cfg.Limit > 0 {
		client.Limit = cfg.Limit
	}
	if cfg.Seniority != "" {
		client.Seniority = cfg.Seniority
	}

	return client, nil
}

// newOrchestrator wires the whole analysis pipeline: AI assistant, resume
// signal extraction and the job matching client, all over the given repository.
func newOrchestrator(ctx context.Context, config *Config, logger *zap.Logger, repo *record.Repository) (*pipeline.Orchestrator, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	assistant, err := newAssistant(ctx, config.AI, logger)
	if err != nil {
		return nil, err
	}

	maxLogLength := 0
	if config.AI != nil && config.AI.Gemini != nil {
		maxLogLength = config.AI.Gemini.MaxLogLength
	}
	ext := extraction.New(assistant, logger, maxLogLength)

	jobs, err := newJobsClient(config.Jobs, logger)
	if err != nil {
		return nil, err
	}

	orch := pipeline.New(repo, assistant, ext, jobs, logger)
	if jobs.Limit > 0 && jobs.Limit < orch.JobsCap {
		orch.JobsCap = jobs.Limit
	}

	return orch, nil
}

func newWatcher(config *Config, logger *zap.Logger, repo *record.Repository) *poller.Watcher {
	watcher := poller.New(repo, logger)

	if config == nil || config.Poll == nil {
		return watcher
	}

	if config.Poll.IntervalMs > 0 {
		watcher.Interval = time.Duration(config.Poll.IntervalMs) * time.Millisecond
	}
	if config.Poll.MaxAttempts > 0 {
		watcher.MaxAttempts = config.Poll.MaxAttempts
	}

	return watcher
}
