package pipeline

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/originality/internal/credibility"
	"github.com/ppiankov/originality/internal/model"
	"github.com/ppiankov/originality/internal/repo"
)

type fakeFetcher struct {
	repo     *repo.Repository
	err      error
	cleaned  bool
	fetchRef repo.Ref
}

func (f *fakeFetcher) Fetch(ctx context.Context, ref repo.Ref) (*repo.Repository, error) {
	f.fetchRef = ref
	if f.err != nil {
		return nil, f.err
	}
	return f.repo, nil
}

func (f *fakeFetcher) Cleanup(r *repo.Repository) { f.cleaned = true }

type fakeCode struct {
	result model.CodeSimilarity
	repoID string
	blocks int
}

func (f *fakeCode) Compare(ctx context.Context, repoID string, blocks []model.CodeBlock) model.CodeSimilarity {
	f.repoID = repoID
	f.blocks = len(blocks)
	return f.result
}

type fakeFinder struct {
	repos  []model.SimilarRepo
	sample string
}

func (f *fakeFinder) Find(ctx context.Context, fullName, sample string) []model.SimilarRepo {
	f.sample = sample
	return f.repos
}

type fakeSummarizer struct {
	readme string
}

func (f *fakeSummarizer) Summarize(ctx context.Context, readme string) string {
	f.readme = readme
	if readme == "" {
		return model.NoDescriptionText
	}
	return "Detects duplicated code across repositories"
}

type fakeIdeas struct {
	check model.IdeaCheck
	panic bool
}

func (f *fakeIdeas) Check(ctx context.Context, summary, fullName string) model.IdeaCheck {
	if f.panic {
		panic("search backend exploded")
	}
	return f.check
}

type fakeCommits struct {
	dates []time.Time
}

func (f fakeCommits) CommitDates(ctx context.Context) ([]time.Time, error) {
	return f.dates, nil
}

type fakeReports struct {
	url       string
	err       error
	published *model.Report
	narrated  bool
}

func (f *fakeReports) Narrate(ctx context.Context, report *model.Report) { f.narrated = true }

func (f *fakeReports) Publish(report *model.Report) (string, error) {
	f.published = report
	return f.url, f.err
}

type fakeRecorder struct {
	saved []*model.Report
}

func (f *fakeRecorder) Publish(ctx context.Context, report *model.Report) error {
	f.saved = append(f.saved, report)
	return nil
}

func (f *fakeRecorder) Save(ctx context.Context, report *model.Report) error {
	f.saved = append(f.saved, report)
	return errors.New("database unavailable")
}

// twelve commits on distinct days score 100
func steadyHistory() []time.Time {
	var dates []time.Time
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		dates = append(dates, start.AddDate(0, 0, i))
	}
	return dates
}

type harness struct {
	fetcher  *fakeFetcher
	code     *fakeCode
	finder   *fakeFinder
	summary  *fakeSummarizer
	ideas    *fakeIdeas
	reports  *fakeReports
	events   *fakeRecorder
	history  *fakeRecorder
	sourceOf []*repo.Repository
}

func newHarness() *harness {
	return &harness{
		fetcher: &fakeFetcher{repo: &repo.Repository{
			Dir:        "/tmp/clone/src",
			CommitHash: "abc123",
			Files: []model.SourceFile{
				{Path: "main.py", Content: "def run(a):\n    return a\n\n\nclass Tool:\n    pass\n"},
			},
			Readme:    "# Tool\n\nFinds <b>duplicated</b> code.",
			HasReadme: true,
		}},
		code: &fakeCode{result: model.CodeSimilarity{
			Score:        0.2,
			CopiedBlocks: []model.CopiedBlock{{TargetBlock: "def run(a):", Distance: 0.8, SimilarTo: "def go(b):"}},
		}},
		finder:  &fakeFinder{repos: []model.SimilarRepo{{Name: "x/code-twin", URL: "https://github.com/x/code-twin"}}},
		summary: &fakeSummarizer{},
		ideas: &fakeIdeas{check: model.IdeaCheck{
			Similarity:      0.5,
			Verdict:         "Inspired",
			SimilarProjects: []model.ProjectRef{{Name: "y/idea-twin", URL: "https://github.com/y/idea-twin"}},
		}},
		reports: &fakeReports{url: "http://localhost:8000/static/owner_tool-1.html"},
		events:  &fakeRecorder{},
		history: &fakeRecorder{},
	}
}

func (h *harness) pipeline() *Pipeline {
	return New(Deps{
		Fetcher:    h.fetcher,
		Code:       h.code,
		CodeSearch: h.finder,
		Summarizer: h.summary,
		Ideas:      h.ideas,
		Commits: func(ref repo.Ref, fetched *repo.Repository) credibility.CommitSource {
			h.sourceOf = append(h.sourceOf, fetched)
			return fakeCommits{dates: steadyHistory()}
		},
		Reports:   h.reports,
		Events:    h.events,
		History:   h.history,
		Fallbacks: model.DefaultFallbacks(),
	})
}

func approx(got, want float64) bool {
	return math.Abs(got-want) < 1e-9
}

func countFallbacks(report *model.Report) int {
	n := 0
	for _, s := range report.Score.Signals {
		if s.Type == model.SignalFallbackApplied {
			n++
		}
	}
	return n
}

func TestPipeline_Analyze(t *testing.T) {
	h := newHarness()
	report, err := h.pipeline().Analyze(context.Background(), "https://github.com/owner/tool.git")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	// 100*0.8*0.5 + 100*0.5*0.3 + 100*0.2
	if !approx(report.Score.Originality, 75) {
		t.Errorf("Expected originality 75, got %f", report.Score.Originality)
	}
	if report.Result.Verdict != "Mostly Original" {
		t.Errorf("Expected Mostly Original, got %s", report.Result.Verdict)
	}
	if countFallbacks(report) != 0 {
		t.Errorf("Expected no fallbacks, got %d", countFallbacks(report))
	}

	if h.code.repoID != "owner/tool" || h.code.blocks != 2 {
		t.Errorf("Expected 2 blocks compared for owner/tool, got %d for %s", h.code.blocks, h.code.repoID)
	}
	if h.finder.sample == "" {
		t.Error("Expected code search to receive a sample")
	}
	if !strings.Contains(h.summary.readme, "Finds duplicated code.") || strings.Contains(h.summary.readme, "<b>") {
		t.Errorf("Expected README reduced to text, got %q", h.summary.readme)
	}
	if len(h.sourceOf) != 1 || h.sourceOf[0] == nil {
		t.Error("Expected commit source to be chosen with the fetched clone")
	}

	if report.Repository.CommitHash != "abc123" || report.Repository.Blocks != 2 || !report.Repository.HasReadme {
		t.Errorf("Unexpected repository meta: %+v", report.Repository)
	}
	if report.Result.ReportURL != h.reports.url {
		t.Errorf("Expected report URL %s, got %s", h.reports.url, report.Result.ReportURL)
	}
	if len(report.Result.SimilarProjects) != 2 || report.Result.SimilarProjects[0] != "y/idea-twin" {
		t.Errorf("Expected idea match then code match, got %v", report.Result.SimilarProjects)
	}
	if report.Result.IdeaSummary != "Detects duplicated code across repositories" {
		t.Errorf("Unexpected idea summary %q", report.Result.IdeaSummary)
	}
	if report.ID == "" {
		t.Error("Expected run ID")
	}

	if !h.fetcher.cleaned {
		t.Error("Expected clone cleanup")
	}
	if !h.reports.narrated {
		t.Error("Expected narrative step")
	}
	if len(h.events.saved) != 1 {
		t.Error("Expected analysis event")
	}
	if len(h.history.saved) != 1 {
		t.Error("Expected history save to be attempted")
	}
}

func TestPipeline_RepositoryIDFoldsCase(t *testing.T) {
	h := newHarness()
	report, err := h.pipeline().Analyze(context.Background(), "https://github.com/Owner/Tool")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if h.code.repoID != "owner/tool" {
		t.Errorf("Expected code index keyed by owner/tool, got %s", h.code.repoID)
	}
	if report.Repository.FullName != "Owner/Tool" {
		t.Errorf("Expected reported name to keep its case, got %s", report.Repository.FullName)
	}
}

func TestPipeline_InvalidURL(t *testing.T) {
	h := newHarness()
	_, err := h.pipeline().Analyze(context.Background(), "https://gitlab.com/owner/tool")
	if !errors.Is(err, repo.ErrInvalidURL) {
		t.Fatalf("Expected ErrInvalidURL, got %v", err)
	}
	if h.fetcher.fetchRef.Name != "" {
		t.Error("Expected no fetch for an invalid URL")
	}
}

func TestPipeline_FetchFailureDegrades(t *testing.T) {
	h := newHarness()
	h.fetcher.err = errors.New("clone failed")
	h.ideas.check = model.IdeaCheck{Verdict: "Unique"}

	report, err := h.pipeline().Analyze(context.Background(), "https://github.com/owner/tool")
	if err != nil {
		t.Fatalf("Expected degraded report, got %v", err)
	}

	// code fallback 80*0.5 + idea 100*0.3 + credibility 100*0.2
	if !approx(report.Score.Originality, 90) {
		t.Errorf("Expected originality 90, got %f", report.Score.Originality)
	}
	if countFallbacks(report) != 1 {
		t.Errorf("Expected one fallback, got %d", countFallbacks(report))
	}
	if h.code.repoID != "" {
		t.Error("Expected code comparison to be skipped")
	}
	if report.IdeaSummary != model.NoDescriptionText {
		t.Errorf("Expected placeholder summary, got %q", report.IdeaSummary)
	}
	if len(h.sourceOf) != 1 || h.sourceOf[0] != nil {
		t.Error("Expected commit source to be chosen without a clone")
	}
	if h.fetcher.cleaned {
		t.Error("Expected no cleanup without a clone")
	}
	if report.Result.CopiedBlocks == nil || report.Result.SimilarProjects == nil {
		t.Error("Expected empty, non-nil payload lists")
	}
}

func TestPipeline_PanickingStepFallsBack(t *testing.T) {
	h := newHarness()
	h.ideas.panic = true

	report, err := h.pipeline().Analyze(context.Background(), "https://github.com/owner/tool")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	// code 40 + idea fallback 80*0.3 + credibility 20
	if !approx(report.Score.Originality, 84) {
		t.Errorf("Expected originality 84, got %f", report.Score.Originality)
	}
	if report.Score.Verdict != "Original" {
		t.Errorf("Expected Original, got %s", report.Score.Verdict)
	}
	if countFallbacks(report) != 1 {
		t.Errorf("Expected one fallback, got %d", countFallbacks(report))
	}
}

func TestPipeline_NoCommitSource(t *testing.T) {
	h := newHarness()
	p := h.pipeline()
	p.Commits = nil

	report, err := p.Analyze(context.Background(), "https://github.com/owner/tool")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if report.Credibility.Score != 80 {
		t.Errorf("Expected credibility fallback 80, got %f", report.Credibility.Score)
	}
	// code 40 + idea 15 + credibility fallback 16
	if !approx(report.Score.Originality, 71) {
		t.Errorf("Expected originality 71, got %f", report.Score.Originality)
	}
}

func TestPipeline_Cancelled(t *testing.T) {
	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.pipeline().Analyze(ctx, "https://github.com/owner/tool")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if h.reports.published != nil {
		t.Error("Expected no report for a cancelled run")
	}
	if len(h.events.saved) != 0 {
		t.Error("Expected no event for a cancelled run")
	}
}

func TestPipeline_ReportWriteFailure(t *testing.T) {
	h := newHarness()
	h.reports.err = errors.New("disk full")

	if _, err := h.pipeline().Analyze(context.Background(), "https://github.com/owner/tool"); err == nil {
		t.Fatal("Expected report write failure to be returned")
	}
	if len(h.history.saved) != 0 {
		t.Error("Expected no history for a failed run")
	}
}

func TestCommitSources(t *testing.T) {
	ref := repo.Ref{Owner: "owner", Name: "tool"}
	fetched := &repo.Repository{Dir: "/tmp/x/src"}

	if src, ok := CommitSources("git", nil)(ref, fetched).(repo.GitLog); !ok || src.Dir != "/tmp/x/src" {
		t.Error("Expected local git log when a clone exists")
	}
	if src := CommitSources("git", nil)(ref, nil); src != nil {
		t.Error("Expected no source without a clone or API client")
	}
	if src := CommitSources("api", nil)(ref, fetched); src != nil {
		t.Error("Expected api mode to ignore the clone")
	}
}
