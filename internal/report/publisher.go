package report

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/originality/internal/llm"
	"github.com/ppiankov/originality/internal/model"
	"github.com/ppiankov/originality/internal/repo"
)

// FailureText is written to the fallback report when rendering fails
const FailureText = "Report generation failed. Please try again."

// FallbackFile is the name of the plain-text fallback report
const FallbackFile = "report.txt"

// Narrator writes the optional narrative section
type Narrator interface {
	IsEnabled() bool
	GenerateSummary(ctx context.Context, report model.Report) (*model.Narrative, error)
}

// Publisher renders reports into the static directory and returns their URL
type Publisher struct {
	renderer  *Renderer
	dir       string
	baseURL   string
	formats   []string
	narrator  Narrator
	narrative bool
	logger    *slog.Logger
}

// NewPublisher creates a publisher. narrator may be nil.
func NewPublisher(cfg model.ReportConfig, narrator Narrator, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	formats := cfg.Formats
	if len(formats) == 0 {
		formats = []string{"json"}
	}
	return &Publisher{
		renderer:  NewRenderer(true),
		dir:       cfg.Dir,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		formats:   formats,
		narrator:  narrator,
		narrative: cfg.Narrative,
		logger:    logger,
	}
}

// Renderer returns the underlying renderer
func (p *Publisher) Renderer() *Renderer {
	return p.renderer
}

// URL returns the public URL of a file in the static directory
func (p *Publisher) URL(file string) string {
	return p.baseURL + "/static/" + file
}

// Narrate attaches the narrative to the report. Failures leave the
// report without one; rendering then uses the plain-text summary.
func (p *Publisher) Narrate(ctx context.Context, report *model.Report) {
	if !p.narrative || p.narrator == nil || !p.narrator.IsEnabled() {
		return
	}
	narrative, err := p.narrator.GenerateSummary(ctx, *report)
	if err != nil {
		p.logger.Warn("narrative generation failed", "repo", report.Repository.FullName, "error", err)
		return
	}
	report.Narrative = narrative
}

// Publish renders every configured format and returns the URL of the first.
// When rendering fails a plain-text fallback is written instead; an error is
// returned only if that cannot be written either.
func (p *Publisher) Publish(report *model.Report) (string, error) {
	base := fmt.Sprintf("%s-%s", repo.SafeName(strings.ReplaceAll(report.Repository.FullName, "/", "_")), shortID(report.ID))

	var primary string
	for _, format := range p.formats {
		file, err := p.render(report, base, format)
		if err != nil {
			p.logger.Error("report rendering failed", "repo", report.Repository.FullName, "format", format, "error", err)
			return p.fallback(FailureText)
		}
		if primary == "" {
			primary = file
		}
	}

	if report.Narrative != nil && report.Narrative.Enabled {
		llmPath := filepath.Join(p.dir, base+".llm.md")
		if err := p.renderer.RenderLLMMarkdown(llm.RenderSeparateMarkdown(report.Narrative), llmPath); err != nil {
			p.logger.Warn("failed to write narrative", "path", llmPath, "error", err)
		}
	}

	return p.URL(primary), nil
}

func (p *Publisher) render(report *model.Report, base, format string) (string, error) {
	switch strings.ToLower(format) {
	case "json":
		file := base + ".json"
		return file, p.renderer.RenderJSON(report, filepath.Join(p.dir, file))
	case "md", "markdown":
		file := base + ".md"
		return file, p.renderer.RenderMarkdown(report, filepath.Join(p.dir, file))
	case "html":
		file := base + ".html"
		return file, p.renderer.RenderHTML(report, filepath.Join(p.dir, file))
	default:
		return "", fmt.Errorf("unknown report format %q", format)
	}
}

// fallback writes report.txt and returns its URL
func (p *Publisher) fallback(text string) (string, error) {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(p.dir, FallbackFile), []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("write fallback report: %w", err)
	}
	return p.URL(FallbackFile), nil
}

func shortID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 8 {
		return id[:8]
	}
	if id == "" {
		return "report"
	}
	return id
}
