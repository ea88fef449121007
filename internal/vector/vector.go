// Package vector stores turn embeddings and retrieves nearest neighbors by
// cosine similarity. Two backends share one interface: a SQLite table
// scanned brute-force, and a chromem-go persistent collection.
package vector

import (
	"errors"
	"fmt"
	"math"
)

// ErrDimensionMismatch reports an embedding whose length differs from the
// store's configured dimensionality.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Item is one stored embedding with its source text and filterable
// metadata.
type Item struct {
	ID        string
	Embedding []float32
	Content   string
	Metadata  map[string]string
}

// Result is one query hit. Score is cosine similarity, higher is closer.
type Result struct {
	ID       string
	Score    float64
	Content  string
	Metadata map[string]string
}

// Store is a persistent embedding index. Single inserts reject dimension
// mismatches; batch inserts skip them and report how many landed.
type Store interface {
	Dimensions() int
	Insert(item Item) error
	InsertBatch(items []Item) (int, error)
	Query(embedding []float32, topK int, where map[string]string) ([]Result, error)
	Get(id string) (*Item, error)
	Delete(id string) error
	Count() (int, error)
	Close() error
}

// New returns the configured backend. An empty backend selects sqlite.
func New(backend, path string, dims int) (Store, error) {
	switch backend {
	case "", "sqlite":
		return NewSQLiteStore(path, dims)
	case "chromem":
		return NewChromemStore(path, dims)
	default:
		return nil, fmt.Errorf("unknown vector backend %q", backend)
	}
}

// Cosine returns the cosine similarity of two equal-length vectors, or 0
// when either has zero magnitude.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// matchesWhere reports whether metadata satisfies every filter pair.
func matchesWhere(metadata, where map[string]string) bool {
	for k, v := range where {
		if metadata[k] != v {
			return false
		}
	}
	return true
}
