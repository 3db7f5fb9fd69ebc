package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/originality/internal/model"
)

// Summarizer writes the optional narrative section of a report. The
// narrative never influences the score.
type Summarizer struct {
	provider Provider
	config   Config
}

// NewSummarizer creates a summarizer; an empty provider yields a disabled one
func NewSummarizer(config Config) (*Summarizer, error) {
	provider, err := NewProvider(config)
	if err != nil {
		return nil, err
	}
	return &Summarizer{provider: provider, config: config}, nil
}

// NewSummarizerWithProvider wraps an existing provider
func NewSummarizerWithProvider(provider Provider, config Config) *Summarizer {
	return &Summarizer{provider: provider, config: config}
}

// IsEnabled reports whether a provider is configured
func (s *Summarizer) IsEnabled() bool {
	return s != nil && s.provider != nil
}

// ProviderName returns the configured provider name, empty when disabled
func (s *Summarizer) ProviderName() string {
	if !s.IsEnabled() {
		return ""
	}
	return s.provider.Name()
}

// GenerateSummary writes the narrative. Provider failures are reported as
// warnings on the returned narrative, never as errors.
func (s *Summarizer) GenerateSummary(ctx context.Context, report model.Report) (*model.Narrative, error) {
	if !s.IsEnabled() {
		return nil, nil
	}

	narrative := &model.Narrative{
		Enabled:        true,
		Provider:       s.provider.Name(),
		Model:          s.config.Model,
		StrictEvidence: s.config.StrictEvidence,
	}

	if !s.provider.IsAvailable(ctx) {
		narrative.Enabled = false
		narrative.Warnings = append(narrative.Warnings, fmt.Sprintf("LLM provider %s is not available", s.provider.Name()))
		return narrative, nil
	}

	evidenceURLs := EvidenceURLs(report)
	resp, err := s.provider.Summarize(ctx, SummarizeRequest{
		Prompt:       BuildNarrativePrompt(report, evidenceURLs),
		System:       narrativeSystem,
		EvidenceURLs: evidenceURLs,
		Model:        s.config.Model,
		MaxTokens:    NarrativeMaxTokens,
	})
	if err != nil {
		narrative.Warnings = append(narrative.Warnings, fmt.Sprintf("Narrative generation failed: %v", err))
		return narrative, nil
	}

	narrative.Text = resp.Summary
	if resp.Model != "" {
		narrative.Model = resp.Model
	}
	narrative.Warnings = append(narrative.Warnings,
		fmt.Sprintf("Tokens used: %d", resp.TokensUsed),
		fmt.Sprintf("Verified %d citations against %d allowed URLs", len(resp.CitedURLs), len(evidenceURLs)),
	)
	return narrative, nil
}

// FallbackNarrative is the plain-text narrative used when no LLM text exists
func FallbackNarrative(report model.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s scored %.1f/100 (%s). %s\n\n", report.Repository.Name, report.Score.Originality, report.Score.Verdict, report.Score.Description)
	fmt.Fprintf(&b, "Project idea: %s\n", report.IdeaSummary)
	fmt.Fprintf(&b, "Code similarity: %.2f across %d fragments, %d copied block(s).\n", report.Code.Score, report.Code.Fragments, len(report.Code.CopiedBlocks))
	fmt.Fprintf(&b, "Idea similarity: %.2f (%s).\n", report.Idea.Similarity, report.Idea.Verdict)
	fmt.Fprintf(&b, "Contribution credibility: %.1f/100 over %d commits with %d spike day(s).\n", report.Credibility.Score, report.Credibility.TotalCommits, report.Credibility.SpikeDays)
	return b.String()
}

// RenderSeparateMarkdown renders the narrative as its own document, kept
// apart from the measured report
func RenderSeparateMarkdown(narrative *model.Narrative) string {
	if narrative == nil || !narrative.Enabled {
		return ""
	}

	var b strings.Builder
	b.WriteString("# LLM Narrative\n\n")
	b.WriteString("> **GENERATED CONTENT.** The originality score and verdict were determined independently of this text.\n\n")
	fmt.Fprintf(&b, "- **Provider:** %s\n", narrative.Provider)
	if narrative.Model != "" {
		fmt.Fprintf(&b, "- **Model:** %s\n", narrative.Model)
	}
	fmt.Fprintf(&b, "- **Strict Evidence Mode:** %t\n\n", narrative.StrictEvidence)

	if narrative.Text == "" {
		b.WriteString("_No narrative generated._\n")
	} else {
		b.WriteString(narrative.Text)
		b.WriteString("\n")
	}

	if len(narrative.Warnings) > 0 {
		b.WriteString("\n## Notes\n\n")
		for _, w := range narrative.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}
	return b.String()
}
