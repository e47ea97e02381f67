// Package vecindex implements a flat (exhaustive) nearest-neighbor index
// over fixed-dimension embeddings, ranked by squared Euclidean distance.
package vecindex

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Sentinel errors for index operations.
var (
	// ErrDimensionMismatch indicates a vector's length differs from the
	// index dimension. A validation condition, never a crash: callers
	// degrade to an empty result.
	ErrDimensionMismatch = errors.New("vecindex: dimension mismatch")

	// ErrEmptyIndex indicates a search against an index with no vectors.
	ErrEmptyIndex = errors.New("vecindex: index is empty")
)

// Neighbor is one search hit: an identifier and its squared-L2 distance
// from the query.
type Neighbor struct {
	ID       string
	Distance float64
}

// Flat is an exhaustive nearest-neighbor index. Search compares the query
// against every stored vector; results are exact and deterministic, with
// insertion order breaking distance ties. Safe for concurrent use.
type Flat struct {
	mu      sync.RWMutex
	dim     int
	ids     []string
	vectors [][]float32
}

// NewFlat creates an empty index. The dimension is fixed by the first
// vector added.
func NewFlat() *Flat {
	return &Flat{}
}

// Build replaces the index contents with the given (id, vector) pairs.
func (f *Flat) Build(ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("vecindex: %d ids for %d vectors", len(ids), len(vectors))
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.dim = 0
	f.ids = nil
	f.vectors = nil

	for i, vec := range vectors {
		if err := f.addLocked(ids[i], vec); err != nil {
			f.dim, f.ids, f.vectors = 0, nil, nil
			return err
		}
	}
	return nil
}

// Add appends one vector to the index.
func (f *Flat) Add(id string, vector []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addLocked(id, vector)
}

func (f *Flat) addLocked(id string, vector []float32) error {
	if len(vector) == 0 {
		return fmt.Errorf("%w: empty vector for %q", ErrDimensionMismatch, id)
	}
	if f.dim == 0 {
		f.dim = len(vector)
	}
	if len(vector) != f.dim {
		return fmt.Errorf("%w: vector %q has %d dimensions, index has %d",
			ErrDimensionMismatch, id, len(vector), f.dim)
	}
	f.ids = append(f.ids, id)
	f.vectors = append(f.vectors, vector)
	return nil
}

// Search returns the k nearest neighbors of query, ascending by squared-L2
// distance. Returns ErrDimensionMismatch when the query length differs
// from the index dimension, ErrEmptyIndex when nothing is indexed.
func (f *Flat) Search(query []float32, k int) ([]Neighbor, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.vectors) == 0 {
		return nil, ErrEmptyIndex
	}
	if len(query) != f.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			ErrDimensionMismatch, len(query), f.dim)
	}
	if k <= 0 {
		return nil, nil
	}

	neighbors := make([]Neighbor, len(f.vectors))
	for i, vec := range f.vectors {
		neighbors[i] = Neighbor{ID: f.ids[i], Distance: squaredL2(query, vec)}
	}

	// Stable: equal distances keep insertion order.
	sort.SliceStable(neighbors, func(i, j int) bool {
		return neighbors[i].Distance < neighbors[j].Distance
	})

	if k > len(neighbors) {
		k = len(neighbors)
	}
	return neighbors[:k], nil
}

// Len returns the number of indexed vectors.
func (f *Flat) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vectors)
}

// Dim returns the index dimension, or 0 when empty.
func (f *Flat) Dim() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dim
}

// squaredL2 computes the squared Euclidean distance between two vectors of
// equal length.
func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
