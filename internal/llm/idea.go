package llm

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ppiankov/originality/internal/model"
)

// IdeaSummarizer reduces a README to a one-sentence idea summary
type IdeaSummarizer struct {
	provider  Provider
	model     string
	fallbacks model.FallbackConfig
	logger    *slog.Logger
}

// NewIdeaSummarizer creates an idea summarizer. A nil provider makes every
// non-empty README summarize to the failure text.
func NewIdeaSummarizer(provider Provider, modelName string, fallbacks model.FallbackConfig, logger *slog.Logger) *IdeaSummarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &IdeaSummarizer{provider: provider, model: modelName, fallbacks: fallbacks, logger: logger}
}

// Summarize returns the summary, the placeholder for an empty README, or
// the failure text when the provider fails
func (s *IdeaSummarizer) Summarize(ctx context.Context, readme string) string {
	if strings.TrimSpace(readme) == "" {
		s.logger.Info("no README content")
		return s.fallbacks.IdeaSummary
	}
	if s.provider == nil {
		s.logger.Warn("idea summary skipped: no LLM provider configured")
		return s.fallbacks.SummaryFailure
	}

	resp, err := s.provider.Summarize(ctx, SummarizeRequest{
		Prompt:    BuildIdeaPrompt(readme),
		Model:     s.model,
		MaxTokens: IdeaMaxTokens,
	})
	if err != nil {
		s.logger.Error("summarize idea failed", "error", err)
		return s.fallbacks.SummaryFailure
	}

	summary := truncateWords(resp.Summary, IdeaMaxWords)
	if summary == "" {
		return s.fallbacks.SummaryFailure
	}
	s.logger.Info("idea summary", "summary", summary)
	return summary
}
