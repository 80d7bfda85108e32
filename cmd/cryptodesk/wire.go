package main

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/stupiduntilnot/cryptodesk/internal/agent"
	"github.com/stupiduntilnot/cryptodesk/internal/cache"
	"github.com/stupiduntilnot/cryptodesk/internal/config"
	"github.com/stupiduntilnot/cryptodesk/internal/control"
	"github.com/stupiduntilnot/cryptodesk/internal/dummy"
	"github.com/stupiduntilnot/cryptodesk/internal/guard"
	"github.com/stupiduntilnot/cryptodesk/internal/logger"
	"github.com/stupiduntilnot/cryptodesk/internal/market"
	modelpkg "github.com/stupiduntilnot/cryptodesk/internal/model"
	"github.com/stupiduntilnot/cryptodesk/internal/openai"
	"github.com/stupiduntilnot/cryptodesk/internal/pipeline"
	"github.com/stupiduntilnot/cryptodesk/internal/summary"
	toolpkg "github.com/stupiduntilnot/cryptodesk/internal/tool"
)

// app holds the wired components of one process.
type app struct {
	pipeline *pipeline.Orchestrator
	fetcher  *market.Fetcher
	closers  []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

func buildApp(cfg config.Config, log zerolog.Logger) (*app, error) {
	a := &app{}

	store, err := newStore(cfg, log, a)
	if err != nil {
		return nil, err
	}
	a.fetcher = market.NewFetcher(cfg.CoinAPIURL, store, cfg.MarketTimeout(), log)
	if cfg.CoinAPIURL == "" {
		log.Warn().Msg("COIN_API_URL is not set, market data requests will fail until it is configured")
	}

	limits := toolpkg.Limits{MaxBytes: cfg.ToolMaxOutputBytes}
	registry := toolpkg.NewRegistry()
	if err := registry.Register(toolpkg.NewMarketData(a.fetcher)); err != nil {
		a.Close()
		return nil, err
	}

	provider, err := newModelProvider(cfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to init model provider: %w", err)
	}

	policy := control.DefaultPolicy()
	policy.MaxTurns = cfg.AgentMaxTurns
	policy.MaxWallTime = cfg.AgentMaxWallTime()

	a.pipeline = pipeline.New(
		guard.NewGate(provider, log),
		agent.New(provider, registry, policy, log, agent.WithOutputLimits(limits)),
		summary.NewSummarizer(provider, cfg.SummaryMaxTokens, log),
		log,
	)
	return a, nil
}

func newStore(cfg config.Config, log zerolog.Logger, a *app) (cache.Store, error) {
	switch cfg.CacheBackend {
	case "sqlite":
		s, err := cache.OpenSQLiteStore(cfg.CachePath, log)
		if err != nil {
			return nil, fmt.Errorf("failed to open cache: %w", err)
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	case "json":
		return cache.NewFileStore(cfg.CachePath, log), nil
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", cfg.CacheBackend)
	}
}

func newModelProvider(cfg config.Config) (modelpkg.Provider, error) {
	switch cfg.ModelProvider {
	case "openai":
		return openai.NewClient(cfg.LLMAPIKey, cfg.LLMChatCompletionsURL, cfg.LLMModel, cfg.LLMTimeout()), nil
	case "dummy":
		return dummy.NewProvider(cfg.LLMModel, cfg.DummyProviderScript)
	default:
		return nil, fmt.Errorf("unsupported model provider: %s", cfg.ModelProvider)
	}
}

func newLogger(cfg config.Config, out io.Writer) zerolog.Logger {
	return logger.NewWithWriter(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty}, out)
}
