package vectorstore

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrDimensionMismatch indicates a vector whose length differs from the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrEmptyVector indicates a zero-length vector was supplied to Build.
	ErrEmptyVector = errors.New("empty vector")
)

// Neighbor is a search hit. ID is the position of the vector passed to Build.
type Neighbor struct {
	ID       int
	Distance float32
}

// Index is the read-only query side of a vector index.
type Index interface {
	Nearest(query []float32, k int) ([]Neighbor, error)
	Len() int
	Dimension() int
}

// FlatIndex is an exact index that scans every vector per query.
type FlatIndex struct {
	dim     int
	vectors [][]float32
}

var _ Index = (*FlatIndex)(nil)

// Build creates an index over vectors. The dimension is fixed by the first
// vector; every other vector must match it. Vectors are copied.
//
// An empty input yields an empty index.
func Build(vectors [][]float32) (*FlatIndex, error) {
	idx := &FlatIndex{vectors: make([][]float32, 0, len(vectors))}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("%w at position %d", ErrEmptyVector, i)
		}
		if i == 0 {
			idx.dim = len(v)
		} else if len(v) != idx.dim {
			return nil, fmt.Errorf("%w: vector %d has %d dimensions, index has %d", ErrDimensionMismatch, i, len(v), idx.dim)
		}
		cp := make([]float32, len(v))
		copy(cp, v)
		idx.vectors = append(idx.vectors, cp)
	}
	return idx, nil
}

// Nearest returns up to k neighbours of query ordered by ascending squared
// Euclidean distance. Equal distances are ordered by lower ID.
//
// An empty index returns an empty slice. k <= 0 returns an empty slice.
func (idx *FlatIndex) Nearest(query []float32, k int) ([]Neighbor, error) {
	if idx.Len() == 0 || k <= 0 {
		return []Neighbor{}, nil
	}
	if len(query) != idx.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", ErrDimensionMismatch, len(query), idx.dim)
	}

	hits := make([]Neighbor, len(idx.vectors))
	for i, v := range idx.vectors {
		hits[i] = Neighbor{ID: i, Distance: squaredL2(query, v)}
	}
	sort.Slice(hits, func(a, b int) bool {
		if hits[a].Distance != hits[b].Distance {
			return hits[a].Distance < hits[b].Distance
		}
		return hits[a].ID < hits[b].ID
	})

	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// Len returns the number of indexed vectors. A nil index is empty.
func (idx *FlatIndex) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.vectors)
}

// Dimension returns the index dimension, or 0 for an empty index.
func (idx *FlatIndex) Dimension() int {
	if idx == nil {
		return 0
	}
	return idx.dim
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
