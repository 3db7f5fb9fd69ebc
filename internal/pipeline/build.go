package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ppiankov/originality/internal/cache"
	"github.com/ppiankov/originality/internal/credibility"
	"github.com/ppiankov/originality/internal/embed"
	"github.com/ppiankov/originality/internal/events"
	"github.com/ppiankov/originality/internal/extract"
	"github.com/ppiankov/originality/internal/github"
	"github.com/ppiankov/originality/internal/history"
	"github.com/ppiankov/originality/internal/idea"
	"github.com/ppiankov/originality/internal/index"
	"github.com/ppiankov/originality/internal/llm"
	"github.com/ppiankov/originality/internal/model"
	"github.com/ppiankov/originality/internal/report"
	"github.com/ppiankov/originality/internal/repo"
	"github.com/ppiankov/originality/internal/score"
	"github.com/ppiankov/originality/internal/similarity"
	"github.com/ppiankov/originality/internal/worker"
)

// NewFromConfig wires the production collaborators described by cfg. The
// optional integrations (LLM, events, history) are disabled with a warning
// when they cannot be reached. Close releases what was opened.
func NewFromConfig(ctx context.Context, cfg *model.Config, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}

	limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)

	var c cache.Cache
	if cfg.Cache.Enabled {
		c = cache.NewDefaultLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL)
	}

	embedder, err := embed.New(*cfg, c, limiter, logger)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}

	store, err := index.New(cfg.Index, logger)
	if err != nil {
		return nil, fmt.Errorf("index store: %w", err)
	}
	closers := []func() error{store.Close}

	gh := github.NewClient(cfg.GitHub, cfg.HTTP, limiter, c, cfg.Cache.MemoryTTL, logger)

	llmConfig := llm.ConfigFromModel(cfg.LLM, cfg.HTTP)
	provider, err := llm.NewProvider(llmConfig)
	if err != nil {
		logger.Warn("LLM provider disabled", "provider", cfg.LLM.Provider, "error", err)
		provider = nil
	}
	narrator := llm.NewSummarizerWithProvider(provider, llmConfig)

	publisher, err := events.Connect(cfg.Events, logger)
	if err != nil {
		logger.Warn("analysis events disabled", "error", err)
		publisher = nil
	} else if publisher.Enabled() {
		closers = append(closers, func() error { publisher.Close(); return nil })
	}

	var recorder HistoryRecorder
	if cfg.History.DatabaseURL != "" {
		pg, err := history.NewPostgresStore(ctx, cfg.History.DatabaseURL)
		if err != nil {
			logger.Warn("analysis history disabled", "error", err)
		} else {
			recorder = pg
			closers = append(closers, pg.Close)
		}
	}

	d := Deps{
		Fetcher:     repo.NewFetcher(cfg.GitHub, cfg.Analysis, logger),
		Extractor:   extract.NewExtractor(cfg.Analysis.MaxBlocks, logger),
		Code:        similarity.NewMatcher(embedder, store, cfg.Concurrency.EmbedWorkers, logger),
		CodeSearch:  similarity.NewCodeSearch(gh, embedder, cfg.GitHub.SearchLanguage, logger),
		Summarizer:  llm.NewIdeaSummarizer(provider, cfg.LLM.Model, cfg.Fallbacks, logger),
		Ideas:       idea.NewMatcher(gh, embedder, cfg.GitHub.SearchLanguage, cfg.Fallbacks, logger),
		Credibility: credibility.NewAnalyzer(logger),
		Commits:     CommitSources(cfg.GitHub.CommitSource, gh),
		Scorer:      score.NewScorer(cfg.Fallbacks),
		Reports:     report.NewPublisher(cfg.Report, narrator, logger),
		Fallbacks:   cfg.Fallbacks,
		Logger:      logger,
	}
	if publisher != nil {
		d.Events = publisher
	}
	if recorder != nil {
		d.History = recorder
	}

	p := New(d)
	p.closers = closers
	return p, nil
}

// CommitSources selects the commit history source. "api" always reads the
// GitHub commits API; otherwise the local clone is used, falling back to the
// API when the clone failed.
func CommitSources(mode string, gh *github.Client) CommitSourceFunc {
	return func(ref repo.Ref, fetched *repo.Repository) credibility.CommitSource {
		if mode != "api" && fetched != nil {
			return repo.GitLog{Dir: fetched.Dir}
		}
		if gh == nil {
			return nil
		}
		return gh.Commits(ref.FullName())
	}
}
