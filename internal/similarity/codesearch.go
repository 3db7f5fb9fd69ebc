package similarity

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/ppiankov/originality/internal/embed"
	"github.com/ppiankov/originality/internal/github"
	"github.com/ppiankov/originality/internal/index"
	"github.com/ppiankov/originality/internal/model"
)

const (
	MaxSimilarRepos = 10

	sampleKeywordMin   = 100 // Sample length above which its words join the query
	sampleKeywordWords = 30
	queryTextChars     = 500
	readmeChars        = 500
	descriptionChars   = 100
	searchPageSize     = 30
)

// RepoSearcher is the subset of the GitHub client code search needs
type RepoSearcher interface {
	SearchRepositories(ctx context.Context, query string, opts github.SearchOptions) ([]model.Candidate, error)
	Readme(ctx context.Context, fullName string) (string, error)
}

// CodeSearch finds public repositories resembling a code sample
type CodeSearch struct {
	searcher RepoSearcher
	embedder embed.Embedder
	language string
	logger   *slog.Logger
}

// NewCodeSearch creates a code search. language fills the language: qualifier.
func NewCodeSearch(searcher RepoSearcher, e embed.Embedder, language string, logger *slog.Logger) *CodeSearch {
	if logger == nil {
		logger = slog.Default()
	}
	return &CodeSearch{searcher: searcher, embedder: e, language: language, logger: logger}
}

// Find searches by repository name plus the leading words of sample and
// ranks hits by cosine similarity of their name, description and README
// against the sample. Errors yield an empty list.
func (c *CodeSearch) Find(ctx context.Context, fullName, sample string) []model.SimilarRepo {
	name := github.ShortName(fullName)
	keywords := github.NameKeywords(name)
	if len(sample) > sampleKeywordMin {
		keywords += " " + firstWords(sample, sampleKeywordWords)
	}

	query := github.RepositoryQuery(keywords, c.language, name)
	candidates, err := c.searcher.SearchRepositories(ctx, query, github.SearchOptions{Sort: "stars", PerPage: searchPageSize})
	if err != nil {
		c.logger.Warn("code search failed", "repo", fullName, "error", err)
		return []model.SimilarRepo{}
	}

	var picked []model.Candidate
	texts := []string{name + " " + truncateRunes(sample, queryTextChars)}
	for _, cand := range candidates {
		if len(picked) >= MaxSimilarRepos {
			break
		}
		if github.SameRepository(cand.Name, fullName) {
			continue
		}
		readme, err := c.searcher.Readme(ctx, cand.Name)
		if err != nil {
			c.logger.Debug("readme unavailable", "repo", cand.Name, "error", err)
			readme = ""
		}
		picked = append(picked, cand)
		texts = append(texts, strings.Join([]string{github.ShortName(cand.Name), cand.Description, truncateRunes(readme, readmeChars)}, " "))
	}
	if len(picked) == 0 {
		return []model.SimilarRepo{}
	}

	vectors, err := c.embedder.EmbedBatch(ctx, texts)
	if err == nil && len(vectors) != len(texts) {
		err = fmt.Errorf("got %d embeddings for %d texts", len(vectors), len(texts))
	}
	if err != nil {
		c.logger.Warn("code search embedding failed", "repo", fullName, "error", err)
		return []model.SimilarRepo{}
	}

	similar := make([]model.SimilarRepo, 0, len(picked))
	for i, cand := range picked {
		similar = append(similar, model.SimilarRepo{
			Name:        cand.Name,
			URL:         cand.URL,
			Description: truncateDescription(cand.Description),
			Similarity:  index.Cosine(vectors[0], vectors[i+1]),
		})
	}
	sort.SliceStable(similar, func(a, b int) bool {
		return similar[a].Similarity > similar[b].Similarity
	})
	if len(similar) > MaxSimilarRepos {
		similar = similar[:MaxSimilarRepos]
	}
	return similar
}

func firstWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func truncateDescription(s string) string {
	r := []rune(s)
	if len(r) <= descriptionChars {
		return s
	}
	return string(r[:descriptionChars]) + "..."
}
