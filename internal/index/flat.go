package index

import (
	"fmt"
	"math"
	"sort"
)

// Hit is a FlatIndex search result
type Hit struct {
	Position int
	Distance float64
}

// FlatIndex is an exhaustive in-memory L2 index. It is not safe for
// concurrent mutation.
type FlatIndex struct {
	dim     int
	vectors [][]float32
}

// NewFlatIndex creates an index for vectors of the given dimension. A zero
// dimension is fixed by the first Add.
func NewFlatIndex(dim int) *FlatIndex {
	return &FlatIndex{dim: dim}
}

// Add appends vectors in order
func (f *FlatIndex) Add(vectors ...[]float32) error {
	for _, v := range vectors {
		if len(v) == 0 {
			return fmt.Errorf("add empty vector: %w", ErrDimensionMismatch)
		}
		if f.dim == 0 {
			f.dim = len(v)
		}
		if len(v) != f.dim {
			return fmt.Errorf("add vector of dimension %d to index of dimension %d: %w", len(v), f.dim, ErrDimensionMismatch)
		}
		f.vectors = append(f.vectors, v)
	}
	return nil
}

// Len returns the number of stored vectors
func (f *FlatIndex) Len() int {
	return len(f.vectors)
}

// Dimension returns the vector dimension, 0 if not yet fixed
func (f *FlatIndex) Dimension() int {
	return f.dim
}

// Search returns the k nearest vectors ascending by distance, ties broken by
// insertion position
func (f *FlatIndex) Search(q []float32, k int) ([]Hit, error) {
	if len(f.vectors) == 0 || k <= 0 {
		return []Hit{}, nil
	}
	if len(q) != f.dim {
		return nil, fmt.Errorf("query of dimension %d against index of dimension %d: %w", len(q), f.dim, ErrDimensionMismatch)
	}

	hits := make([]Hit, len(f.vectors))
	for i, v := range f.vectors {
		hits[i] = Hit{Position: i, Distance: L2(q, v)}
	}
	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].Distance < hits[b].Distance
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// L2 returns the Euclidean distance between equal-length vectors
func L2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Cosine returns the cosine similarity of equal-length vectors, 0 when either is zero
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
