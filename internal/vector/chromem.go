package vector

import (
	"context"
	"errors"
	"fmt"

	"github.com/philippgille/chromem-go"
)

// ChromemStore keeps embeddings in a chromem-go persistent collection.
// Faster than the brute-force scan on larger corpora, same scoring.
type ChromemStore struct {
	db   *chromem.DB
	coll *chromem.Collection
	dims int
}

// NewChromemStore opens (creating if needed) a persistent collection at
// path. Embeddings are always supplied by the caller, never computed here.
func NewChromemStore(path string, dims int) (*ChromemStore, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("invalid embedding dimensions %d", dims)
	}
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("opening chromem store: %w", err)
	}
	coll, err := db.GetOrCreateCollection("turns", nil, rejectEmbeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("opening collection: %w", err)
	}
	return &ChromemStore{db: db, coll: coll, dims: dims}, nil
}

// rejectEmbeddingFunc guards against accidental in-store embedding. Every
// document arrives with its embedding precomputed.
func rejectEmbeddingFunc(_ context.Context, _ string) ([]float32, error) {
	return nil, errors.New("embeddings must be precomputed")
}

// Dimensions returns the configured embedding length.
func (s *ChromemStore) Dimensions() int { return s.dims }

// Insert stores one embedding, replacing any existing document with the
// same id.
func (s *ChromemStore) Insert(item Item) error {
	if len(item.Embedding) != s.dims {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(item.Embedding), s.dims)
	}
	err := s.coll.AddDocument(context.Background(), chromem.Document{
		ID:        item.ID,
		Embedding: item.Embedding,
		Content:   item.Content,
		Metadata:  orEmpty(item.Metadata),
	})
	if err != nil {
		return fmt.Errorf("adding document %s: %w", item.ID, err)
	}
	return nil
}

// InsertBatch stores items, skipping any whose dimensions do not match,
// and returns the number actually stored.
func (s *ChromemStore) InsertBatch(items []Item) (int, error) {
	inserted := 0
	for _, item := range items {
		if len(item.Embedding) != s.dims {
			continue
		}
		if err := s.Insert(item); err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}

// Query returns the topK most similar documents, optionally restricted to
// exact metadata matches.
func (s *ChromemStore) Query(embedding []float32, topK int, where map[string]string) ([]Result, error) {
	if len(embedding) != s.dims {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(embedding), s.dims)
	}
	// chromem rejects nResults larger than the collection.
	if n := s.coll.Count(); topK > n {
		topK = n
	}
	if topK <= 0 {
		return nil, nil
	}
	hits, err := s.coll.QueryEmbedding(context.Background(), embedding, topK, where, nil)
	if err != nil {
		return nil, fmt.Errorf("querying collection: %w", err)
	}
	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, Result{
			ID:       h.ID,
			Score:    float64(h.Similarity),
			Content:  h.Content,
			Metadata: h.Metadata,
		})
	}
	return results, nil
}

// Get returns a stored item or nil when the id is unknown.
func (s *ChromemStore) Get(id string) (*Item, error) {
	doc, err := s.coll.GetByID(context.Background(), id)
	if err != nil {
		return nil, nil
	}
	return &Item{
		ID:        doc.ID,
		Embedding: doc.Embedding,
		Content:   doc.Content,
		Metadata:  doc.Metadata,
	}, nil
}

// Delete removes a stored document. Unknown ids are a no-op.
func (s *ChromemStore) Delete(id string) error {
	if err := s.coll.Delete(context.Background(), nil, nil, id); err != nil {
		return fmt.Errorf("deleting document %s: %w", id, err)
	}
	return nil
}

// Count returns the number of stored documents.
func (s *ChromemStore) Count() (int, error) {
	return s.coll.Count(), nil
}

// Close is a no-op; chromem persists on every write.
func (s *ChromemStore) Close() error {
	return nil
}
