package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/originality/internal/model"
)

type fakeNarrator struct {
	enabled   bool
	narrative *model.Narrative
	err       error
	calls     int
}

func (f *fakeNarrator) IsEnabled() bool { return f.enabled }

func (f *fakeNarrator) GenerateSummary(ctx context.Context, report model.Report) (*model.Narrative, error) {
	f.calls++
	return f.narrative, f.err
}

func sampleReport() *model.Report {
	return &model.Report{
		ID:         "1234abcd-0000-0000-0000-000000000000",
		Repository: model.RepoMeta{Name: "tool", FullName: "owner/tool", URL: "https://github.com/owner/tool", CommitHash: "deadbeef"},
		AnalyzedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Code: model.CodeSimilarity{
			Score:        0.35,
			CopiedBlocks: []model.CopiedBlock{{TargetBlock: "def f(x):\n    return x < 1", Distance: 0.91, SimilarTo: "def g(y):\n    return y"}},
		},
		IdeaSummary: "Scores repository originality & history",
		Idea:        model.IdeaCheck{Similarity: 0.5, Verdict: "Common"},
		Credibility: model.Credibility{Score: 85, TotalCommits: 20, SpikeDays: 1, Spikes: map[string]int{"2026-02-01": 12}},
		Score: model.Score{
			Originality: 71.5,
			Verdict:     "Mostly Original",
			Description: "The project contains original elements but shows influence from existing work",
			Signals:     []model.Signal{{Type: model.SignalCodeSimilarity, Severity: model.SeverityInfo, Description: "Code similarity: 0.35"}},
		},
		Result: model.Result{
			SimilarProjects: []string{"acme/detector", "other/scanner"},
			CopiedBlocks:    []model.CopiedBlock{{TargetBlock: "def f(x):\n    return x < 1", Distance: 0.91, SimilarTo: "def g(y):\n    return y"}},
		},
	}
}

func TestRenderer_Markdown(t *testing.T) {
	md := NewRenderer(true).Markdown(sampleReport())

	for _, want := range []string{
		"# Originality Report: owner/tool",
		"**71.5/100 (Mostly Original)**",
		"- acme/detector",
		"### 1. Similarity 0.91",
		"- 2026-02-01: 12 commits",
		"**[INFO]** code_similarity",
		"## Summary",
		"not a finding of plagiarism",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("Expected markdown to contain %q", want)
		}
	}
}

func TestRenderer_MarkdownNoFooter(t *testing.T) {
	md := NewRenderer(false).Markdown(sampleReport())
	if strings.Contains(md, "not a finding of plagiarism") {
		t.Error("Expected footer to be omitted")
	}
}

func TestRenderer_HTMLEscapes(t *testing.T) {
	var b bytes.Buffer
	if err := NewRenderer(true).HTML(&b, sampleReport()); err != nil {
		t.Fatalf("HTML failed: %v", err)
	}
	html := b.String()

	if !strings.Contains(html, "71.5/100") {
		t.Error("Expected score in HTML")
	}
	if !strings.Contains(html, "return x &lt; 1") {
		t.Error("Expected code blocks to be escaped")
	}
	if !strings.Contains(html, "originality &amp; history") {
		t.Error("Expected idea summary to be escaped")
	}
	if !strings.Contains(html, "2026-02-01: 12 commits") {
		t.Error("Expected spike days in HTML")
	}
}

func TestRenderer_NarrativePreferred(t *testing.T) {
	report := sampleReport()
	report.Narrative = &model.Narrative{Enabled: true, Text: "A generated narrative."}

	md := NewRenderer(false).Markdown(report)
	if !strings.Contains(md, "A generated narrative.") {
		t.Error("Expected generated narrative in summary")
	}

	report.Narrative.Text = ""
	md = NewRenderer(false).Markdown(report)
	if !strings.Contains(md, "tool scored 71.5/100") {
		t.Error("Expected plain-text fallback narrative")
	}
}

func TestPublisher_Publish(t *testing.T) {
	dir := t.TempDir()
	publisher := NewPublisher(model.ReportConfig{
		Dir:     dir,
		BaseURL: "http://localhost:8000/",
		Formats: []string{"html", "json", "md"},
	}, nil, nil)

	url, err := publisher.Publish(sampleReport())
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if url != "http://localhost:8000/static/owner_tool-1234abcd.html" {
		t.Errorf("Unexpected report URL %s", url)
	}

	for _, name := range []string{"owner_tool-1234abcd.html", "owner_tool-1234abcd.json", "owner_tool-1234abcd.md"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("Expected %s to be written: %v", name, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, "owner_tool-1234abcd.json"))
	if err != nil {
		t.Fatalf("read json: %v", err)
	}
	var decoded model.Report
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Expected valid JSON: %v", err)
	}
	if decoded.Score.Verdict != "Mostly Original" {
		t.Errorf("Expected verdict to survive, got %s", decoded.Score.Verdict)
	}
}

func TestPublisher_FallbackOnRenderFailure(t *testing.T) {
	dir := t.TempDir()
	publisher := NewPublisher(model.ReportConfig{
		Dir:     dir,
		BaseURL: "http://localhost:8000",
		Formats: []string{"pdf"},
	}, nil, nil)

	url, err := publisher.Publish(sampleReport())
	if err != nil {
		t.Fatalf("Expected fallback instead of error, got %v", err)
	}
	if url != "http://localhost:8000/static/report.txt" {
		t.Errorf("Expected fallback URL, got %s", url)
	}

	data, err := os.ReadFile(filepath.Join(dir, FallbackFile))
	if err != nil {
		t.Fatalf("read fallback: %v", err)
	}
	if string(data) != FailureText {
		t.Errorf("Unexpected fallback text %q", string(data))
	}
}

func TestPublisher_Narrate(t *testing.T) {
	narrator := &fakeNarrator{enabled: true, narrative: &model.Narrative{Enabled: true, Provider: "mock", Text: "Narrative."}}
	publisher := NewPublisher(model.ReportConfig{Dir: t.TempDir(), Narrative: true}, narrator, nil)

	report := sampleReport()
	publisher.Narrate(context.Background(), report)
	if report.Narrative == nil || report.Narrative.Text != "Narrative." {
		t.Fatalf("Expected narrative to be attached, got %+v", report.Narrative)
	}

	url, err := publisher.Publish(report)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if !strings.HasSuffix(url, ".json") {
		t.Errorf("Expected json default format, got %s", url)
	}
	if _, err := os.Stat(filepath.Join(publisher.dir, "owner_tool-1234abcd.llm.md")); err != nil {
		t.Errorf("Expected separate narrative file: %v", err)
	}
}

func TestPublisher_NarrateDisabledOrFailing(t *testing.T) {
	failing := &fakeNarrator{enabled: true, err: errors.New("boom")}
	report := sampleReport()
	NewPublisher(model.ReportConfig{Narrative: true}, failing, nil).Narrate(context.Background(), report)
	if report.Narrative != nil {
		t.Error("Expected no narrative on failure")
	}

	off := &fakeNarrator{enabled: true}
	NewPublisher(model.ReportConfig{Narrative: false}, off, nil).Narrate(context.Background(), report)
	if off.calls != 0 {
		t.Error("Expected narrator not to be called when narrative is off")
	}
}
