// Package index persists per-repository embedding indexes and answers
// nearest-neighbor queries over them.
package index

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strings"

	"github.com/ppiankov/originality/internal/model"
)

var (
	// ErrDimensionMismatch is returned when query vectors and a stored index disagree on dimension
	ErrDimensionMismatch = errors.New("index: vector dimension mismatch")

	// ErrCorrupt marks a store whose persisted files cannot be trusted
	ErrCorrupt = errors.New("index: corrupt store")
)

// Neighbor is one stored entry returned by a query
type Neighbor struct {
	RepoID   string
	Position int // Insertion position inside the owning repository's store
	Entry    model.IndexEntry
	Distance float64 // Euclidean (L2)
}

// RepoStats summarizes one repository's store
type RepoStats struct {
	RepoID    string `json:"repo_id"`
	Entries   int    `json:"entries"`
	Dimension int    `json:"dimension"`
}

// Store persists index entries per repository. Append and Delete are
// serialized per repository; stores of different repositories never block
// each other.
type Store interface {
	Append(ctx context.Context, repoID string, entries []model.IndexEntry) (int, error)
	Query(ctx context.Context, repoID string, vectors [][]float32, k int) ([][]Neighbor, error)
	Search(ctx context.Context, excludeRepoID string, vectors [][]float32, k int) ([][]Neighbor, error)
	Delete(ctx context.Context, repoID string) error
	Repositories(ctx context.Context) ([]string, error)
	Stats(ctx context.Context) ([]RepoStats, error)
	Close() error
}

var unsafeID = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// CanonicalID folds a repository identifier to the form stores are keyed by
func CanonicalID(repoID string) string {
	return strings.ToLower(strings.TrimSpace(repoID))
}

// SafeID maps a repository identifier onto the character set used for store names
func SafeID(repoID string) string {
	id := unsafeID.ReplaceAllString(CanonicalID(repoID), "_")
	if id == "" || id == "." || id == ".." {
		return "_"
	}
	return id
}

// mergeNeighbors merges per-vector neighbor lists by ascending distance and
// keeps the first k. Ties keep repository then position order.
func mergeNeighbors(dst, src [][]Neighbor, k int) [][]Neighbor {
	for i := range dst {
		if i >= len(src) {
			break
		}
		merged := append(dst[i], src[i]...)
		sort.SliceStable(merged, func(a, b int) bool {
			if merged[a].Distance != merged[b].Distance {
				return merged[a].Distance < merged[b].Distance
			}
			if merged[a].RepoID != merged[b].RepoID {
				return merged[a].RepoID < merged[b].RepoID
			}
			return merged[a].Position < merged[b].Position
		})
		if len(merged) > k {
			merged = merged[:k]
		}
		dst[i] = merged
	}
	return dst
}

func emptyResults(n int) [][]Neighbor {
	out := make([][]Neighbor, n)
	for i := range out {
		out[i] = []Neighbor{}
	}
	return out
}
