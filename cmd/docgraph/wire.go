package main

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/deidaraiorek/docgraph/internal/answer"
	"github.com/deidaraiorek/docgraph/internal/cache"
	"github.com/deidaraiorek/docgraph/internal/config"
	"github.com/deidaraiorek/docgraph/internal/fetcher"
	"github.com/deidaraiorek/docgraph/internal/graph"
	"github.com/deidaraiorek/docgraph/internal/llm"
	"github.com/deidaraiorek/docgraph/internal/metrics"
	"github.com/deidaraiorek/docgraph/internal/parser"
	"github.com/deidaraiorek/docgraph/internal/retrieval"
	"github.com/deidaraiorek/docgraph/internal/scheduler"
	"github.com/deidaraiorek/docgraph/internal/scope"
	"github.com/deidaraiorek/docgraph/internal/storage"
)

func openStore(cfg *config.Config) (*storage.Store, error) {
	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.DBPath, err)
	}
	return store, nil
}

func newScheduler(cfg *config.Config, store *storage.Store, logger *zap.Logger, m *metrics.Metrics) (*scheduler.Scheduler, error) {
	if cfg.SeedURL == "" {
		return nil, fmt.Errorf("no seed URL: set SEED_URL or pass --seed")
	}

	filter, err := scope.NewFilter(cfg.FilterConfig())
	if err != nil {
		return nil, err
	}

	identity := cfg.Identity()
	var browser fetcher.HTMLFetcher
	if cfg.BrowserEnabled {
		browser = fetcher.NewBrowserFetcher(cfg.UserAgent, cfg.BrowserSettle)
	}
	renderer := fetcher.NewRenderer(
		fetcher.New(cfg.UserAgent, logger),
		browser,
		parser.New(identity),
		logger,
		m,
	)

	return scheduler.New(store, renderer, filter, identity, scheduler.Config{
		SeedURL:       cfg.SeedURL,
		MaxPages:      cfg.MaxPages,
		MaxDepth:      cfg.MaxDepth,
		MaxDuration:   cfg.MaxDuration,
		FetchTimeout:  cfg.FetchTimeout,
		Delay:         cfg.Delay,
		MaxRetries:    cfg.MaxRetries,
		RetryBackoff:  cfg.RetryBackoff,
		Recrawl:       cfg.Recrawl,
		RefetchErrors: cfg.RefetchErrors,
	},
		scheduler.WithLogger(logger),
		scheduler.WithMetrics(m),
		scheduler.WithObserver(func(e scheduler.Event) {
			if e.State == scheduler.StateFailed {
				logger.Warn("Page failed", zap.String("locator", e.Locator), zap.Int("depth", e.Depth), zap.Error(e.Err))
				return
			}
			logger.Debug("Page state",
				zap.String("locator", e.Locator),
				zap.String("state", string(e.State)),
				zap.Int("depth", e.Depth),
				zap.Bool("replayed", e.Replayed),
			)
		}),
	), nil
}

func newSearchCache(cfg *config.Config, logger *zap.Logger) cache.Cache {
	if cfg.RedisAddr == "" {
		return cache.NewMemory(cfg.CacheTTL)
	}
	logger.Info("Using Redis search cache", zap.String("addr", cfg.RedisAddr))
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.RedisAddr,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		DialTimeout: 5 * time.Second,
	})
	return cache.NewRedis(client, cfg.CacheTTL)
}

func newRetrieval(cfg *config.Config, store *storage.Store, logger *zap.Logger, m *metrics.Metrics) (*retrieval.Resolver, error) {
	acronyms, err := cfg.AcronymMap()
	if err != nil {
		return nil, err
	}

	gen := llm.NewOpenAI(llm.OpenAIConfig{
		APIKey:    cfg.OpenAIAPIKey,
		BaseURL:   cfg.OpenAIBaseURL,
		Model:     cfg.OpenAIModel,
		MaxTokens: cfg.OpenAIMaxTokens,
	}, logger)

	return retrieval.NewResolver(store, gen, retrieval.Config{
		TopN:       cfg.TopN,
		Window:     cfg.ExcerptWindow,
		LeadOffset: cfg.LeadOffset,
		Acronyms:   acronyms,
	},
		retrieval.WithCache(newSearchCache(cfg, logger)),
		retrieval.WithLogger(logger),
		retrieval.WithMetrics(m),
	), nil
}

func newEngine(store *storage.Store, r *retrieval.Resolver, logger *zap.Logger, m *metrics.Metrics) *answer.Engine {
	return answer.NewEngine(graph.NewResolver(graph.NewStoreTree(store), logger), r, logger, m)
}
