package vector

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps embeddings as little-endian float32 blobs in a plain
// table and answers queries by scanning every row. Exact, with cost linear
// in the corpus; the reference backend the others are checked against.
type SQLiteStore struct {
	conn *sql.DB
	dims int
}

// NewSQLiteStore opens (creating if needed) an embedding table at path.
func NewSQLiteStore(path string, dims int) (*SQLiteStore, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("invalid embedding dimensions %d", dims)
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("creating vector directory: %w", err)
		}
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening vector store: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}
	_, err = conn.Exec(`
		CREATE TABLE IF NOT EXISTS embeddings (
			id TEXT PRIMARY KEY,
			embedding BLOB NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			metadata TEXT NOT NULL DEFAULT '{}'
		)`)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating embeddings table: %w", err)
	}
	return &SQLiteStore{conn: conn, dims: dims}, nil
}

// Dimensions returns the configured embedding length.
func (s *SQLiteStore) Dimensions() int { return s.dims }

// Insert stores one embedding, replacing any existing row with the same id.
func (s *SQLiteStore) Insert(item Item) error {
	if len(item.Embedding) != s.dims {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(item.Embedding), s.dims)
	}
	meta, err := json.Marshal(orEmpty(item.Metadata))
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	_, err = s.conn.Exec(`
		INSERT OR REPLACE INTO embeddings (id, embedding, content, metadata)
		VALUES (?, ?, ?, ?)`,
		item.ID, encodeVector(item.Embedding), item.Content, string(meta))
	if err != nil {
		return fmt.Errorf("inserting embedding %s: %w", item.ID, err)
	}
	return nil
}

// InsertBatch stores items in one transaction, skipping any whose dimensions
// do not match, and returns the number actually stored.
func (s *SQLiteStore) InsertBatch(items []Item) (int, error) {
	tx, err := s.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning batch: %w", err)
	}
	inserted := 0
	for _, item := range items {
		if len(item.Embedding) != s.dims {
			continue
		}
		meta, err := json.Marshal(orEmpty(item.Metadata))
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("encoding metadata: %w", err)
		}
		_, err = tx.Exec(`
			INSERT OR REPLACE INTO embeddings (id, embedding, content, metadata)
			VALUES (?, ?, ?, ?)`,
			item.ID, encodeVector(item.Embedding), item.Content, string(meta))
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("inserting embedding %s: %w", item.ID, err)
		}
		inserted++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing batch: %w", err)
	}
	return inserted, nil
}

// Query scans all rows, filters by metadata, and returns the topK most
// similar by cosine.
func (s *SQLiteStore) Query(embedding []float32, topK int, where map[string]string) ([]Result, error) {
	if len(embedding) != s.dims {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(embedding), s.dims)
	}
	if topK <= 0 {
		return nil, nil
	}

	rows, err := s.conn.Query(`SELECT id, embedding, content, metadata FROM embeddings`)
	if err != nil {
		return nil, fmt.Errorf("scanning embeddings: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var id, content, metaJSON string
		var blob []byte
		if err := rows.Scan(&id, &blob, &content, &metaJSON); err != nil {
			return nil, err
		}
		var meta map[string]string
		if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
			meta = nil
		}
		if !matchesWhere(meta, where) {
			continue
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding %s: %w", id, err)
		}
		results = append(results, Result{
			ID:       id,
			Score:    Cosine(embedding, vec),
			Content:  content,
			Metadata: meta,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Get returns a stored item or nil when the id is unknown.
func (s *SQLiteStore) Get(id string) (*Item, error) {
	var blob []byte
	var content, metaJSON string
	err := s.conn.QueryRow(`SELECT embedding, content, metadata FROM embeddings WHERE id = ?`, id).
		Scan(&blob, &content, &metaJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading embedding %s: %w", id, err)
	}
	vec, err := decodeVector(blob)
	if err != nil {
		return nil, fmt.Errorf("decoding embedding %s: %w", id, err)
	}
	var meta map[string]string
	if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
		meta = nil
	}
	return &Item{ID: id, Embedding: vec, Content: content, Metadata: meta}, nil
}

// Delete removes a stored embedding. Unknown ids are a no-op.
func (s *SQLiteStore) Delete(id string) error {
	if _, err := s.conn.Exec(`DELETE FROM embeddings WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting embedding %s: %w", id, err)
	}
	return nil
}

// Count returns the number of stored embeddings.
func (s *SQLiteStore) Count() (int, error) {
	var n int
	if err := s.conn.QueryRow(`SELECT COUNT(*) FROM embeddings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting embeddings: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

// encodeVector packs float32 values little-endian, 4 bytes each.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("blob length %d not a multiple of 4", len(buf))
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec, nil
}

func orEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
