package db

import (
	"database/sql"
	"fmt"

	"chatgraph/internal/model"
)

// BatchWriter upserts conversations inside long-lived transactions,
// committing every CommitEvery conversations. A crash mid-batch loses at
// most the uncommitted tail; re-running the same ingest repairs it.
type BatchWriter struct {
	db          *DB
	tx          *sql.Tx
	pending     int
	CommitEvery int
}

// NewBatchWriter returns a writer that commits every commitEvery
// conversations. Values below 1 commit after every conversation.
func (d *DB) NewBatchWriter(commitEvery int) *BatchWriter {
	if commitEvery < 1 {
		commitEvery = 1
	}
	return &BatchWriter{db: d, CommitEvery: commitEvery}
}

// Add upserts one conversation in the current batch transaction.
func (b *BatchWriter) Add(conv *model.Conversation) error {
	if b.tx == nil {
		tx, err := b.db.conn.Begin()
		if err != nil {
			return fmt.Errorf("beginning batch: %w", err)
		}
		b.tx = tx
	}
	if err := upsertConversationTx(b.tx, conv); err != nil {
		b.tx.Rollback()
		b.tx = nil
		b.pending = 0
		return err
	}
	b.pending++
	if b.pending >= b.CommitEvery {
		return b.Flush()
	}
	return nil
}

// Flush commits the open transaction, if any.
func (b *BatchWriter) Flush() error {
	if b.tx == nil {
		return nil
	}
	err := b.tx.Commit()
	b.tx = nil
	b.pending = 0
	if err != nil {
		return fmt.Errorf("committing batch: %w", err)
	}
	return nil
}
