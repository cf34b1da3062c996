package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jonathan/research-agent/internal/config"
	"github.com/jonathan/research-agent/internal/db"
	"github.com/jonathan/research-agent/internal/llm"
	"github.com/jonathan/research-agent/internal/logging"
	"github.com/jonathan/research-agent/internal/pipeline"
	"github.com/jonathan/research-agent/internal/search"
)

// loadConfig resolves the effective configuration for a command.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	logger, err := logging.New(logging.Options{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		Production: cfg.Production,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

// newLLMClient builds the generation client named by llm_provider. A model
// override applies to the tier used for report writing.
func newLLMClient(ctx context.Context, cfg *config.Config) (llm.Client, error) {
	var (
		llmCfg *llm.Config
		apiKey string
	)
	switch cfg.LLMProvider {
	case config.LLMProviderGemini:
		llmCfg = llm.DefaultGeminiConfig()
		apiKey = cfg.GeminiAPIKey
	case config.LLMProviderOpenRouter, "":
		llmCfg = llm.DefaultOpenRouterConfig()
		if cfg.OpenRouterBaseURL != "" {
			llmCfg.BaseURL = cfg.OpenRouterBaseURL
		}
		apiKey = cfg.OpenRouterAPIKey
	default:
		return nil, fmt.Errorf("unsupported llm_provider %q", cfg.LLMProvider)
	}

	if cfg.Model != "" {
		llmCfg = llmCfg.WithModel(llm.TierAdvanced, cfg.Model)
	}

	client, err := llm.NewClient(ctx, llmCfg, apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", llmCfg.Provider, err)
	}
	return client, nil
}

// newSearchProvider builds the provider named by search_provider, wrapped
// in a TTL cache when one is configured.
func newSearchProvider(ctx context.Context, cfg *config.Config) (search.Provider, error) {
	var (
		provider search.Provider
		err      error
	)
	switch cfg.SearchProvider {
	case config.SearchProviderTavily, "":
		provider, err = search.NewTavily(cfg.TavilyAPIKey, cfg.MaxResults)
	case config.SearchProviderGoogle:
		provider, err = search.NewGoogle(ctx, cfg.GoogleSearchAPIKey, cfg.GoogleSearchCX, cfg.MaxResults)
	case config.SearchProviderDuckDuckGo:
		provider = search.NewDuckDuckGo(cfg.MaxResults)
	case config.SearchProviderMulti:
		provider, err = newMultiProvider(ctx, cfg)
	default:
		err = fmt.Errorf("unsupported search_provider %q", cfg.SearchProvider)
	}
	if err != nil {
		return nil, err
	}

	if ttl := cfg.SearchCacheTTL(); ttl > 0 {
		provider = search.NewCached(provider, ttl)
	}
	return provider, nil
}

// newMultiProvider fans out to every provider that has credentials.
// DuckDuckGo needs none and is always included.
func newMultiProvider(ctx context.Context, cfg *config.Config) (search.Provider, error) {
	var providers []search.Provider

	if tavily, err := search.NewTavily(cfg.TavilyAPIKey, cfg.MaxResults); err == nil {
		providers = append(providers, tavily)
	} else if !errors.Is(err, search.ErrMissingAPIKey) {
		return nil, err
	}

	if google, err := search.NewGoogle(ctx, cfg.GoogleSearchAPIKey, cfg.GoogleSearchCX, cfg.MaxResults); err == nil {
		providers = append(providers, google)
	} else if !errors.Is(err, search.ErrMissingAPIKey) {
		return nil, err
	}

	providers = append(providers, search.NewDuckDuckGo(cfg.MaxResults))
	return search.NewMulti(cfg.MaxResults, providers...), nil
}

// newEngine wires providers into a pipeline engine. The returned close
// function releases the generation client.
func newEngine(ctx context.Context, cfg *config.Config, logger *zap.Logger, mode string) (*pipeline.Engine, func(), error) {
	m, err := pipeline.ParseMode(mode)
	if err != nil {
		return nil, nil, err
	}

	searcher, err := newSearchProvider(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	generator, err := newLLMClient(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	logger.Info("pipeline configured",
		zap.String("search", searcher.Name()),
		zap.String("model", generator.GetModel(llm.TierAdvanced)),
		zap.String("mode", string(m)))

	engine := pipeline.NewEngine(searcher, generator, pipeline.WithMode(m), pipeline.WithLogger(logger))
	closeFn := func() {
		if err := generator.Close(); err != nil {
			logger.Warn("failed to close llm client", zap.Error(err))
		}
	}
	return engine, closeFn, nil
}

// openStore returns the report store: in memory when requested, otherwise
// PostgreSQL at database_url.
func openStore(ctx context.Context, cfg *config.Config, memory bool) (db.Store, func(), error) {
	if memory {
		return db.NewMemoryStore(), func() {}, nil
	}
	if cfg.DatabaseURL == "" {
		return nil, nil, errors.New("DATABASE_URL is required (or pass --memory)")
	}

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return database, database.Close, nil
}
