package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/originality/internal/credibility"
	"github.com/ppiankov/originality/internal/extract"
	"github.com/ppiankov/originality/internal/model"
	"github.com/ppiankov/originality/internal/observability"
	"github.com/ppiankov/originality/internal/repo"
	"github.com/ppiankov/originality/internal/score"
)

// Code sample used for repository search
const (
	SampleBlocks = 5
	SampleChars  = 200
)

// RepoFetcher clones a repository and reads its files
type RepoFetcher interface {
	Fetch(ctx context.Context, ref repo.Ref) (*repo.Repository, error)
	Cleanup(r *repo.Repository)
}

// CodeComparer scores code blocks against other repositories' indexes
type CodeComparer interface {
	Compare(ctx context.Context, repoID string, blocks []model.CodeBlock) model.CodeSimilarity
}

// RepoFinder finds repositories resembling a code sample
type RepoFinder interface {
	Find(ctx context.Context, fullName, sample string) []model.SimilarRepo
}

// IdeaSummarizer reduces a README to one sentence
type IdeaSummarizer interface {
	Summarize(ctx context.Context, readme string) string
}

// IdeaChecker compares a project idea with existing projects
type IdeaChecker interface {
	Check(ctx context.Context, summary, fullName string) model.IdeaCheck
}

// CommitSourceFunc picks the commit history source for a repository. fetched
// is nil when the clone failed. A nil return means no history is available.
type CommitSourceFunc func(ref repo.Ref, fetched *repo.Repository) credibility.CommitSource

// ReportPublisher renders the report and returns its public URL
type ReportPublisher interface {
	Narrate(ctx context.Context, report *model.Report)
	Publish(report *model.Report) (string, error)
}

// EventPublisher announces finished analyses
type EventPublisher interface {
	Publish(ctx context.Context, report *model.Report) error
}

// HistoryRecorder persists finished analyses
type HistoryRecorder interface {
	Save(ctx context.Context, report *model.Report) error
}

// Deps are the collaborators of a pipeline. Events and History are optional.
type Deps struct {
	Fetcher     RepoFetcher
	Extractor   *extract.Extractor
	Code        CodeComparer
	CodeSearch  RepoFinder
	Summarizer  IdeaSummarizer
	Ideas       IdeaChecker
	Credibility *credibility.Analyzer
	Commits     CommitSourceFunc
	Scorer      *score.Scorer
	Reports     ReportPublisher
	Events      EventPublisher
	History     HistoryRecorder
	Fallbacks   model.FallbackConfig
	Logger      *slog.Logger
}

// Pipeline orchestrates one originality analysis
type Pipeline struct {
	Deps
	now     func() time.Time
	closers []func() error
}

// New creates a pipeline from its collaborators
func New(d Deps) *Pipeline {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Extractor == nil {
		d.Extractor = extract.NewExtractor(0, d.Logger)
	}
	if d.Credibility == nil {
		d.Credibility = credibility.NewAnalyzer(d.Logger)
	}
	if d.Scorer == nil {
		d.Scorer = score.NewScorer(d.Fallbacks)
	}
	return &Pipeline{Deps: d, now: time.Now}
}

// signals tracks which signals failed upstream
type signals struct {
	codeFailed        bool
	ideaFailed        bool
	credibilityFailed bool
}

// Analyze runs the full analysis of one repository URL. Collaborator
// failures degrade to fallbacks; only an invalid URL, cancellation, or a
// report that cannot be written are returned as errors.
func (p *Pipeline) Analyze(ctx context.Context, repoURL string) (*model.Report, error) {
	ref, err := repo.ParseURL(repoURL)
	if err != nil {
		return nil, err
	}

	ctx, span := observability.StartAnalysisSpan(ctx, ref.URL)
	defer span.End()

	logger := p.Logger.With("repo", ref.FullName())
	logger.Info("analysis started")

	report := &model.Report{
		ID: uuid.NewString(),
		Repository: model.RepoMeta{
			Name:     ref.Name,
			FullName: ref.FullName(),
			URL:      ref.URL,
		},
		AnalyzedAt: p.now().UTC(),
	}
	var sig signals

	// 1. Fetch
	var fetched *repo.Repository
	if failed := p.step(ctx, observability.StepFetch, func(ctx context.Context) {
		r, err := p.Fetcher.Fetch(ctx, ref)
		if err != nil {
			logger.Error("fetch failed", "error", err)
			return
		}
		fetched = r
	}); failed || fetched == nil {
		sig.codeFailed = true
	}
	if fetched != nil {
		defer p.Fetcher.Cleanup(fetched)
		report.Repository.CommitHash = fetched.CommitHash
		report.Repository.Files = len(fetched.Files)
		report.Repository.HasReadme = fetched.HasReadme
		report.Repository.HasLicense = fetched.HasLicense
	}

	// 2. Extract
	var blocks []model.CodeBlock
	if fetched != nil {
		p.step(ctx, observability.StepExtract, func(ctx context.Context) {
			blocks = p.Extractor.Blocks(fetched.Files)
		})
		report.Repository.Blocks = len(blocks)
		logger.Info("blocks extracted", "files", len(fetched.Files), "blocks", len(blocks))
	}

	// 3. Code similarity against the persisted prior art
	if !sig.codeFailed {
		if p.step(ctx, observability.StepCode, func(ctx context.Context) {
			report.Code = p.Code.Compare(ctx, ref.ID(), blocks)
		}) {
			sig.codeFailed = true
			report.Code = model.CodeSimilarity{}
		}
	}
	if p.CodeSearch != nil && len(blocks) > 0 {
		p.step(ctx, observability.StepCodeSearch, func(ctx context.Context) {
			report.Code.SimilarRepos = p.CodeSearch.Find(ctx, ref.FullName(), extract.Sample(blocks, SampleBlocks, SampleChars))
		})
	}
	if report.Code.CopiedBlocks == nil {
		report.Code.CopiedBlocks = []model.CopiedBlock{}
	}
	if report.Code.SimilarRepos == nil {
		report.Code.SimilarRepos = []model.SimilarRepo{}
	}

	// 4. Idea summary and idea check
	readme := ""
	if fetched != nil {
		readme = extract.ReadmeText(fetched.Readme)
	}
	if p.step(ctx, observability.StepSummary, func(ctx context.Context) {
		report.IdeaSummary = p.Summarizer.Summarize(ctx, readme)
	}) {
		report.IdeaSummary = p.Fallbacks.IdeaSummary
	}

	if p.step(ctx, observability.StepIdea, func(ctx context.Context) {
		report.Idea = p.Ideas.Check(ctx, report.IdeaSummary, ref.FullName())
	}) {
		sig.ideaFailed = true
		report.Idea = model.IdeaCheck{SimilarProjects: []model.ProjectRef{}}
	}

	// 5. Contribution credibility
	if source := p.commitSource(ref, fetched); source == nil {
		logger.Warn("no commit history source available")
		sig.credibilityFailed = true
	} else if p.step(ctx, observability.StepCredibility, func(ctx context.Context) {
		report.Credibility = p.Credibility.Analyze(ctx, source, ref.FullName())
	}) {
		sig.credibilityFailed = true
	}
	if sig.credibilityFailed {
		report.Credibility = model.Credibility{Score: p.Fallbacks.Credibility, Formula: credibility.Formula}
	}

	// Partial signals of a cancelled run are discarded
	if err := ctx.Err(); err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("analysis of %s cancelled: %w", ref.FullName(), err)
	}

	// 6. Score
	if p.step(ctx, observability.StepScore, func(ctx context.Context) {
		report.Score = p.Scorer.Calculate(score.SignalInputs{
			CodeSimilarity:    report.Code.Score,
			IdeaSimilarity:    report.Idea.Similarity,
			Credibility:       report.Credibility.Score,
			CodeFailed:        sig.codeFailed,
			IdeaFailed:        sig.ideaFailed,
			CredibilityFailed: sig.credibilityFailed,
		})
	}) {
		report.Score = p.Scorer.Fallback(nil)
	}
	observability.RecordScore(span, report.Score.Originality, report.Score.Verdict)

	report.Result = score.BuildResult(report.Score, report.Code, report.Idea, report.IdeaSummary, "")

	// 7. Report
	var publishErr error
	p.step(ctx, observability.StepReport, func(ctx context.Context) {
		p.Reports.Narrate(ctx, report)
		report.Result.ReportURL, publishErr = p.Reports.Publish(report)
	})
	if publishErr != nil {
		observability.RecordError(span, publishErr)
		return nil, fmt.Errorf("write report: %w", publishErr)
	}
	if report.Result.ReportURL == "" {
		report.Result.ReportURL = p.Fallbacks.ReportURL
	}

	p.announce(ctx, report)

	logger.Info("analysis finished",
		"score", report.Score.Originality,
		"verdict", report.Score.Verdict,
		"report_url", report.Result.ReportURL,
	)
	return report, nil
}

// commitSource returns the history source, nil when none can serve
func (p *Pipeline) commitSource(ref repo.Ref, fetched *repo.Repository) credibility.CommitSource {
	if p.Commits == nil {
		return nil
	}
	return p.Commits(ref, fetched)
}

// announce publishes the event and stores the run. Both are best effort.
func (p *Pipeline) announce(ctx context.Context, report *model.Report) {
	if p.Events != nil {
		if err := p.Events.Publish(ctx, report); err != nil {
			p.Logger.Warn("failed to publish analysis event", "repo", report.Repository.FullName, "error", err)
		}
	}
	if p.History != nil {
		if err := p.History.Save(ctx, report); err != nil {
			p.Logger.Warn("failed to record analysis run", "repo", report.Repository.FullName, "error", err)
		}
	}
}

// step runs fn inside a span. A panic is recovered and reported as failed.
func (p *Pipeline) step(ctx context.Context, name string, fn func(ctx context.Context)) (failed bool) {
	ctx, span := observability.StartStepSpan(ctx, name)
	defer span.End()
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%s: %v", name, r)
			p.Logger.Error("pipeline step failed, using fallback", "step", name, "error", err)
			observability.RecordError(span, err)
			observability.RecordFallback(span, err.Error())
			failed = true
		}
	}()
	fn(ctx)
	return false
}

// Close releases the resources opened by NewFromConfig
func (p *Pipeline) Close() error {
	var first error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	p.closers = nil
	return first
}
