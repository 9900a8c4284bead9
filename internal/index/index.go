// Package index implements a flat inner-product index over unit-length
// vectors. Because every stored vector is L2-normalized, inner product equals
// cosine similarity. The index is immutable after Build; a changed corpus
// requires building a new instance.
package index

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"sort"
)

// ErrDimensionMismatch indicates that a vector does not share the fixed
// dimensionality of the index. It points at a build-time defect in the
// corpus artifacts and is not recoverable at query time.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Hit is a single search result: the similarity score and the position of
// the matching vector in build order. Position is the join key into the
// metadata slice supplied at build time.
type Hit struct {
	Score    float64
	Position int
}

// Flat stores corpus vectors in build order and searches them exhaustively.
type Flat struct {
	dim     int
	vectors [][]float32
}

// Build constructs an index from the provided vectors. All vectors must share
// one dimensionality; the first vector fixes it.
func Build(vectors [][]float32) (*Flat, error) {
	idx := &Flat{}
	for i, vec := range vectors {
		if len(vec) == 0 {
			return nil, fmt.Errorf("vector at position %d is empty: %w", i, ErrDimensionMismatch)
		}
		if idx.dim == 0 {
			idx.dim = len(vec)
		}
		if len(vec) != idx.dim {
			return nil, fmt.Errorf("vector at position %d has dimension %d, index has %d: %w",
				i, len(vec), idx.dim, ErrDimensionMismatch)
		}
		stored := make([]float32, idx.dim)
		copy(stored, vec)
		idx.vectors = append(idx.vectors, stored)
	}

	return idx, nil
}

// Len returns the number of indexed vectors.
func (f *Flat) Len() int { return len(f.vectors) }

// Dim returns the fixed dimensionality, or 0 for an empty index.
func (f *Flat) Dim() int { return f.dim }

// Search returns the min(k, Len()) nearest vectors to the query by inner
// product, ordered by descending score. Ties keep build order, so results
// are deterministic for identical inputs.
func (f *Flat) Search(query []float32, k int) ([]Hit, error) {
	if f.Len() > 0 && len(query) != f.dim {
		return nil, fmt.Errorf("query has dimension %d, index has %d: %w",
			len(query), f.dim, ErrDimensionMismatch)
	}

	if k <= 0 || f.Len() == 0 {
		return []Hit{}, nil
	}

	hits := make([]Hit, 0, f.Len())
	for pos, vec := range f.vectors {
		hits = append(hits, Hit{Score: dot(query, vec), Position: pos})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if k > len(hits) {
		k = len(hits)
	}

	return hits[:k], nil
}

// persisted is the on-disk form of the index.
type persisted struct {
	Dim     int
	Vectors [][]float32
}

// Save serializes the index to the given path. The caller must pair the file
// with the metadata snapshot used at build time; the index itself stores only
// vectors.
func (f *Flat) Save(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer file.Close()

	enc := gob.NewEncoder(file)
	if err := enc.Encode(persisted{Dim: f.dim, Vectors: f.vectors}); err != nil {
		return fmt.Errorf("encode index: %w", err)
	}

	return nil
}

// Load restores an index previously written by Save.
func Load(path string) (*Flat, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open index file: %w", err)
	}
	defer file.Close()

	var p persisted
	if err := gob.NewDecoder(file).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}

	for i, vec := range p.Vectors {
		if len(vec) != p.Dim {
			return nil, fmt.Errorf("stored vector at position %d has dimension %d, index has %d: %w",
				i, len(vec), p.Dim, ErrDimensionMismatch)
		}
	}

	return &Flat{dim: p.Dim, vectors: p.Vectors}, nil
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
