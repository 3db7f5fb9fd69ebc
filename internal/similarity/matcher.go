// Package similarity compares a repository's code blocks with every other
// repository's persisted index.
package similarity

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"github.com/ppiankov/originality/internal/embed"
	"github.com/ppiankov/originality/internal/index"
	"github.com/ppiankov/originality/internal/model"
)

// Tuning constants
const (
	CodeDistanceScale    = 10.0 // L2 distance at which similarity reaches 0
	CopyThreshold        = 0.7  // Similarity above which a block counts as copied
	MaxCopiedBlocks      = 5
	NeighborsPerFragment = 2
	ExternalCodeLabel    = "External code"

	maxTargetChars = 400
)

// Matcher scores code duplication against prior persisted indexes
type Matcher struct {
	embedder embed.Embedder
	store    index.Store
	workers  int
	logger   *slog.Logger
}

// NewMatcher creates a matcher. workers bounds concurrent embedding calls.
func NewMatcher(e embed.Embedder, store index.Store, workers int, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{embedder: e, store: store, workers: workers, logger: logger}
}

// Similarity converts an L2 distance into a similarity in [0,1]
func Similarity(distance float64) float64 {
	return clamp01(1 - distance/CodeDistanceScale)
}

// Compare embeds blocks, queries the other repositories' indexes, and
// appends the embedded blocks to repoID's index. Failures degrade to a zero
// score and are never returned. A cancelled context appends nothing.
func (m *Matcher) Compare(ctx context.Context, repoID string, blocks []model.CodeBlock) model.CodeSimilarity {
	result := model.CodeSimilarity{
		CopiedBlocks: []model.CopiedBlock{},
		SimilarRepos: []model.SimilarRepo{},
	}
	if len(blocks) == 0 {
		m.logger.Info("no code blocks to compare", "repo", repoID)
		return result
	}

	frags := m.embed(ctx, repoID, blocks)
	if ctx.Err() != nil {
		m.logger.Warn("code comparison cancelled", "repo", repoID)
		return result
	}
	result.Fragments = len(frags)
	if len(frags) == 0 {
		m.logger.Warn("no code blocks could be embedded", "repo", repoID)
		return result
	}

	vectors := make([][]float32, len(frags))
	for i, f := range frags {
		vectors[i] = f.Vector
	}

	neighbors, err := m.store.Search(ctx, repoID, vectors, NeighborsPerFragment)
	if err != nil {
		m.logger.Warn("index search failed", "repo", repoID, "error", err)
		neighbors = nil
	}

	var sum float64
	for i, f := range frags {
		if i >= len(neighbors) || len(neighbors[i]) == 0 {
			continue
		}
		best := neighbors[i][0]
		s := Similarity(best.Distance)
		sum += s
		result.Compared++

		if s > CopyThreshold {
			similarTo := best.Entry.Text
			if similarTo == "" {
				similarTo = ExternalCodeLabel
			}
			result.CopiedBlocks = append(result.CopiedBlocks, model.CopiedBlock{
				TargetBlock: TruncateBlock(f.Text),
				Distance:    s,
				SimilarTo:   similarTo,
				SimilarRepo: best.RepoID,
			})
		}
	}
	if result.Compared > 0 {
		result.Score = sum / float64(result.Compared)
	}

	sort.SliceStable(result.CopiedBlocks, func(a, b int) bool {
		return result.CopiedBlocks[a].Distance > result.CopiedBlocks[b].Distance
	})
	if len(result.CopiedBlocks) > MaxCopiedBlocks {
		result.CopiedBlocks = result.CopiedBlocks[:MaxCopiedBlocks]
	}

	if ctx.Err() != nil {
		m.logger.Warn("code comparison cancelled before append", "repo", repoID)
		return model.CodeSimilarity{CopiedBlocks: []model.CopiedBlock{}, SimilarRepos: []model.SimilarRepo{}}
	}

	entries := make([]model.IndexEntry, len(frags))
	for i, f := range frags {
		entries[i] = model.IndexEntry{Vector: f.Vector, Text: f.Text, RepoID: repoID}
	}
	added, err := m.store.Append(ctx, repoID, entries)
	if err != nil {
		m.logger.Error("index append failed", "repo", repoID, "error", err)
	}
	result.Appended = added

	m.logger.Info("code similarity computed",
		"repo", repoID,
		"score", result.Score,
		"fragments", result.Fragments,
		"compared", result.Compared,
		"copied", len(result.CopiedBlocks),
		"appended", added,
	)
	return result
}

// embed returns the fragments whose embedding succeeded, in block order.
// Vectors whose dimension differs from the first are dropped.
func (m *Matcher) embed(ctx context.Context, repoID string, blocks []model.CodeBlock) []model.Fragment {
	texts := make([]string, len(blocks))
	for i, b := range blocks {
		texts[i] = b.Text
	}

	vectors, errs := embed.EmbedAll(ctx, m.embedder, texts, m.workers)

	var frags []model.Fragment
	dim := 0
	for i, v := range vectors {
		if errs[i] != nil || len(v) == 0 {
			if errs[i] != nil && ctx.Err() == nil {
				m.logger.Warn("skipping block, embedding failed", "repo", repoID, "file", blocks[i].File, "error", errs[i])
			}
			continue
		}
		if dim == 0 {
			dim = len(v)
		}
		if len(v) != dim {
			m.logger.Warn("skipping block, embedding dimension differs", "repo", repoID, "file", blocks[i].File, "dimension", len(v), "expected", dim)
			continue
		}
		frags = append(frags, model.Fragment{
			Text:   blocks[i].Text,
			RepoID: repoID,
			Origin: blocks[i].File,
			Vector: v,
		})
	}
	return frags
}

// TruncateBlock keeps blocks under 400 characters whole and cuts longer ones
// to 397 characters plus an ellipsis
func TruncateBlock(text string) string {
	r := []rune(text)
	if len(r) < maxTargetChars {
		return text
	}
	return string(r[:maxTargetChars-3]) + "..."
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
