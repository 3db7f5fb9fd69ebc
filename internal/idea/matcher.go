// Package idea estimates how common a project's idea is by comparing its
// one-sentence summary with the descriptions of similar public repositories.
package idea

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"github.com/ppiankov/originality/internal/embed"
	"github.com/ppiankov/originality/internal/github"
	"github.com/ppiankov/originality/internal/index"
	"github.com/ppiankov/originality/internal/model"
)

// Tuning constants
const (
	IdeaDistanceScale = 4.0 // L2 distance at which similarity reaches 0
	MaxCandidates     = 10
	MaxNeighbors      = 5
	PerTermResults    = 10
	keywordWords      = 5
)

// Verdict bands on idea similarity, ascending
const (
	VerdictUnique         = "Unique"
	VerdictSomewhatUnique = "Somewhat Unique"
	VerdictInspired       = "Inspired"
	VerdictCommon         = "Common"
	VerdictVeryCommon     = "Very Common"
)

// Band is one verdict range: similarity below Below maps to Verdict
type Band struct {
	Below       float64
	Verdict     string
	Description string
}

// Bands are checked in order; the last band catches everything else
var Bands = []Band{
	{0.2, VerdictUnique, "The project idea appears to be highly original"},
	{0.4, VerdictSomewhatUnique, "The project idea has some similarities to existing projects"},
	{0.6, VerdictInspired, "The project idea shows inspiration from existing projects"},
	{0.8, VerdictCommon, "The project idea is common with several similar existing projects"},
	{2, VerdictVeryCommon, "The project idea is highly similar to many existing projects"},
}

// Searcher is the subset of the GitHub client the matcher needs
type Searcher interface {
	SearchRepositories(ctx context.Context, query string, opts github.SearchOptions) ([]model.Candidate, error)
}

// Matcher compares a summary with search candidates
type Matcher struct {
	searcher     Searcher
	embedder     embed.Embedder
	language     string
	placeholders []string
	logger       *slog.Logger
}

// NewMatcher creates a matcher. Summaries equal to a placeholder are treated
// as missing.
func NewMatcher(searcher Searcher, e embed.Embedder, language string, fallbacks model.FallbackConfig, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	placeholders := []string{model.NoDescriptionText, model.SummaryFailureText}
	for _, p := range []string{fallbacks.IdeaSummary, fallbacks.SummaryFailure} {
		if p != "" {
			placeholders = append(placeholders, p)
		}
	}
	return &Matcher{
		searcher:     searcher,
		embedder:     e,
		language:     language,
		placeholders: placeholders,
		logger:       logger,
	}
}

// Classify maps a similarity onto its verdict band
func Classify(similarity float64) Band {
	for _, b := range Bands {
		if similarity < b.Below {
			return b
		}
	}
	return Bands[len(Bands)-1]
}

// Similarity converts an L2 distance into a similarity in [0,1]
func Similarity(distance float64) float64 {
	s := 1 - distance/IdeaDistanceScale
	if math.IsNaN(s) || s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// Keywords returns the first words of summary without the filler words
// "system" and "project", or the cleaned repository name when nothing is left
func Keywords(summary, repoName string) string {
	words := strings.Fields(summary)
	if len(words) > keywordWords {
		words = words[:keywordWords]
	}
	joined := strings.Join(words, " ")
	joined = strings.ReplaceAll(joined, "system", "")
	joined = strings.ReplaceAll(joined, "project", "")
	joined = strings.Join(strings.Fields(joined), " ")
	if joined == "" {
		return github.NameKeywords(repoName)
	}
	return joined
}

// Check scores the summary of repository fullName (owner/name). It never
// fails: missing input and collaborator errors yield the Unique default.
func (m *Matcher) Check(ctx context.Context, summary, fullName string) model.IdeaCheck {
	if m.isPlaceholder(summary) {
		m.logger.Info("no usable idea summary", "repo", fullName)
		return unique()
	}

	candidates, err := m.collect(ctx, summary, fullName)
	if err != nil {
		m.logger.Warn("idea search failed", "repo", fullName, "error", err)
		return unique()
	}
	if len(candidates) == 0 {
		m.logger.Info("no similar projects found", "repo", fullName)
		return unique()
	}

	texts := make([]string, 0, len(candidates)+1)
	texts = append(texts, summary)
	for _, c := range candidates {
		texts = append(texts, c.Description)
	}
	vectors, err := m.embedder.EmbedBatch(ctx, texts)
	if err != nil || len(vectors) != len(texts) {
		m.logger.Warn("idea embedding failed", "repo", fullName, "error", err)
		return unique()
	}

	flat := index.NewFlatIndex(len(vectors[0]))
	if err := flat.Add(vectors[1:]...); err != nil {
		m.logger.Warn("idea index build failed", "repo", fullName, "error", err)
		return unique()
	}
	k := MaxNeighbors
	if len(candidates) < k {
		k = len(candidates)
	}
	hits, err := flat.Search(vectors[0], k)
	if err != nil || len(hits) == 0 {
		m.logger.Warn("idea search over candidates failed", "repo", fullName, "error", err)
		return unique()
	}

	similarity := Similarity(hits[0].Distance)
	band := Classify(similarity)
	projects := make([]model.ProjectRef, 0, len(hits))
	for _, h := range hits {
		c := candidates[h.Position]
		projects = append(projects, model.ProjectRef{Name: c.Name, URL: c.URL})
	}

	m.logger.Info("idea check computed", "repo", fullName, "similarity", similarity, "verdict", band.Verdict, "candidates", len(candidates))
	return model.IdeaCheck{
		Similarity:      similarity,
		Verdict:         band.Verdict,
		Description:     band.Description,
		SimilarProjects: projects,
	}
}

// collect runs one search per term, keeping up to PerTermResults new
// candidates per term and stopping at MaxCandidates overall
func (m *Matcher) collect(ctx context.Context, summary, fullName string) ([]model.Candidate, error) {
	name := github.ShortName(fullName)
	terms := []string{Keywords(summary, name), github.NameKeywords(name)}

	var out []model.Candidate
	seen := make(map[string]bool)
	for _, term := range terms {
		query := github.RepositoryQuery(term, m.language, name)
		results, err := m.searcher.SearchRepositories(ctx, query, github.SearchOptions{Sort: "stars", PerPage: PerTermResults * 3})
		if err != nil {
			return nil, err
		}

		count := 0
		for _, c := range results {
			if count >= PerTermResults || len(out) >= MaxCandidates {
				break
			}
			key := strings.ToLower(c.Name)
			if github.SameRepository(c.Name, fullName) || strings.EqualFold(c.Name, name) || seen[key] {
				continue
			}
			if c.Description == "" {
				c.Description = github.ShortName(c.Name)
			}
			seen[key] = true
			out = append(out, c)
			count++
		}

		if len(out) >= MaxCandidates {
			break
		}
	}
	return out, nil
}

func (m *Matcher) isPlaceholder(summary string) bool {
	s := strings.TrimSpace(summary)
	if s == "" {
		return true
	}
	for _, p := range m.placeholders {
		if s == p {
			return true
		}
	}
	return false
}

func unique() model.IdeaCheck {
	band := Classify(0)
	return model.IdeaCheck{
		Similarity:      0,
		Verdict:         band.Verdict,
		Description:     band.Description,
		SimilarProjects: []model.ProjectRef{},
	}
}
