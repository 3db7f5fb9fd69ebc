package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/originality/internal/llm"
	"github.com/ppiankov/originality/internal/model"
)

// Renderer writes reports as JSON, Markdown and HTML
type Renderer struct {
	includeFooter bool
}

// NewRenderer creates a new renderer
func NewRenderer(includeFooter bool) *Renderer {
	return &Renderer{includeFooter: includeFooter}
}

// RenderJSON writes the full report as indented JSON
func (r *Renderer) RenderJSON(report *model.Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}

// RenderMarkdown writes the Markdown report
func (r *Renderer) RenderMarkdown(report *model.Report, path string) error {
	return writeFile(path, []byte(r.Markdown(report)))
}

// RenderLLMMarkdown writes the narrative document next to the report
func (r *Renderer) RenderLLMMarkdown(markdown, path string) error {
	if markdown == "" {
		return nil
	}
	return writeFile(path, []byte(markdown))
}

// RenderHTML writes the HTML report
func (r *Renderer) RenderHTML(report *model.Report, path string) error {
	var b strings.Builder
	if err := r.HTML(&b, report); err != nil {
		return err
	}
	return writeFile(path, []byte(b.String()))
}

// Markdown renders the report as Markdown
func (r *Renderer) Markdown(report *model.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Originality Report: %s\n\n", report.Repository.FullName)
	fmt.Fprintf(&b, "- **Repository:** %s\n", report.Repository.URL)
	if report.Repository.CommitHash != "" {
		fmt.Fprintf(&b, "- **Commit:** `%s`\n", report.Repository.CommitHash)
	}
	fmt.Fprintf(&b, "- **Analyzed:** %s\n\n", report.AnalyzedAt.Format("2006-01-02 15:04:05 MST"))

	b.WriteString("## Score\n\n")
	fmt.Fprintf(&b, "**%.1f/100 (%s)**\n\n", report.Score.Originality, report.Score.Verdict)
	if report.Score.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", report.Score.Description)
	}

	b.WriteString("| Signal | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Code similarity | %.2f |\n", report.Code.Score)
	fmt.Fprintf(&b, "| Idea similarity | %.2f (%s) |\n", report.Idea.Similarity, report.Idea.Verdict)
	fmt.Fprintf(&b, "| Contribution credibility | %.1f/100 |\n\n", report.Credibility.Score)

	b.WriteString("## Project Idea\n\n")
	fmt.Fprintf(&b, "%s\n\n", report.IdeaSummary)

	b.WriteString("## Similar Projects\n\n")
	if len(report.Result.SimilarProjects) == 0 {
		b.WriteString("None found.\n\n")
	} else {
		for _, name := range report.Result.SimilarProjects {
			fmt.Fprintf(&b, "- %s\n", name)
		}
		b.WriteString("\n")
	}

	if len(report.Result.CopiedBlocks) > 0 {
		b.WriteString("## Near-Duplicate Blocks\n\n")
		for i, block := range report.Result.CopiedBlocks {
			fmt.Fprintf(&b, "### %d. Similarity %.2f\n\n", i+1, block.Distance)
			fmt.Fprintf(&b, "```\n%s\n```\n\n", block.TargetBlock)
			fmt.Fprintf(&b, "Similar to:\n\n```\n%s\n```\n\n", block.SimilarTo)
		}
	}

	if report.Credibility.SpikeDays > 0 {
		b.WriteString("## Commit Spikes\n\n")
		for _, day := range sortedDays(report.Credibility.Spikes) {
			fmt.Fprintf(&b, "- %s: %d commits\n", day, report.Credibility.Spikes[day])
		}
		b.WriteString("\n")
	}

	b.WriteString("## Signals\n\n")
	for _, s := range report.Score.Signals {
		fmt.Fprintf(&b, "- **[%s]** %s: %s\n", strings.ToUpper(string(s.Severity)), s.Type, s.Description)
	}
	b.WriteString("\n")

	b.WriteString("## Summary\n\n")
	fmt.Fprintf(&b, "%s\n", narrativeText(report))

	if r.includeFooter {
		b.WriteString("\n---\n\n")
		b.WriteString("_Scores are heuristics derived from embedding similarity and commit patterns. They are not a finding of plagiarism._\n")
	}
	return b.String()
}

// HTML renders the report page
func (r *Renderer) HTML(w io.Writer, report *model.Report) error {
	data := htmlData{
		Report:    report,
		Narrative: narrativeText(report),
		Footer:    r.includeFooter,
	}
	if err := pageTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	return nil
}

// RenderSummary prints a short console summary
func (r *Renderer) RenderSummary(w io.Writer, report *model.Report) {
	fmt.Fprintf(w, "\n%s\n", report.Repository.FullName)
	fmt.Fprintf(w, "  Originality: %.1f/100 (%s)\n", report.Score.Originality, report.Score.Verdict)
	fmt.Fprintf(w, "  Idea:        %s\n", report.IdeaSummary)
	fmt.Fprintf(w, "  Code:        %.2f similarity, %d copied block(s)\n", report.Code.Score, len(report.Result.CopiedBlocks))
	fmt.Fprintf(w, "  Idea match:  %.2f (%s)\n", report.Idea.Similarity, report.Idea.Verdict)
	fmt.Fprintf(w, "  Commits:     %d, credibility %.1f/100\n", report.Credibility.TotalCommits, report.Credibility.Score)
	if len(report.Result.SimilarProjects) > 0 {
		fmt.Fprintf(w, "  Similar:     %s\n", strings.Join(report.Result.SimilarProjects, ", "))
	}
	if report.Result.ReportURL != "" {
		fmt.Fprintf(w, "  Report:      %s\n", report.Result.ReportURL)
	}
}

// narrativeText prefers the generated narrative over the plain fallback
func narrativeText(report *model.Report) string {
	if report.Narrative != nil && report.Narrative.Enabled && strings.TrimSpace(report.Narrative.Text) != "" {
		return report.Narrative.Text
	}
	return llm.FallbackNarrative(*report)
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
