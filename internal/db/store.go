package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"chatgraph/internal/model"
)

// UpsertConversation writes a conversation and everything derived from it
// in one transaction: turns, artifacts, graph nodes and edges, and the
// inverted index rows. Re-upserting the same id replaces all prior rows
// for that conversation, so ingestion is idempotent.
func (d *DB) UpsertConversation(conv *model.Conversation) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := upsertConversationTx(tx, conv); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func upsertConversationTx(tx *sql.Tx, conv *model.Conversation) error {
	if err := deleteConversationRows(tx, conv.ID); err != nil {
		return err
	}

	account := conv.Account
	if account == "" {
		account = "default"
	}

	_, err := tx.Exec(`
		INSERT INTO conversations (id, title, source, account, created_at, updated_at, tags, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			source = excluded.source,
			account = excluded.account,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			tags = excluded.tags,
			metadata = excluded.metadata`,
		conv.ID, conv.Title, string(conv.Source), account,
		nullTS(conv.CreatedAt), nullTS(conv.UpdatedAt),
		encodeTags(conv.Tags), encodeMeta(conv.Metadata))
	if err != nil {
		return fmt.Errorf("upserting conversation %s: %w", conv.ID, err)
	}

	_, err = tx.Exec(`
		INSERT INTO nodes (id, type, label, ref_table, ref_id, metadata)
		VALUES (?, ?, ?, 'conversations', ?, '{}')
		ON CONFLICT(id) DO UPDATE SET label = excluded.label`,
		conv.ID, string(model.NodeConversation), conv.Title, conv.ID)
	if err != nil {
		return fmt.Errorf("upserting conversation node: %w", err)
	}

	prevTurnID := ""
	for i := range conv.Turns {
		t := &conv.Turns[i]
		if err := insertTurn(tx, conv, account, t, i, prevTurnID); err != nil {
			return err
		}
		prevTurnID = t.ID
	}
	return nil
}

// deleteConversationRows removes every row derived from a previous upsert
// of the same conversation. Order matters: edges reference nodes, and
// artifacts reference turns.
func deleteConversationRows(tx *sql.Tx, convID string) error {
	rows, err := tx.Query(`SELECT rowid FROM turns WHERE conv_id = ?`, convID)
	if err != nil {
		return fmt.Errorf("listing prior turns: %w", err)
	}
	var rowids []int64
	for rows.Next() {
		var rid int64
		if err := rows.Scan(&rid); err != nil {
			rows.Close()
			return err
		}
		rowids = append(rowids, rid)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()
	if len(rowids) == 0 {
		return nil
	}

	for _, rid := range rowids {
		if _, err := tx.Exec(`DELETE FROM turns_fts WHERE rowid = ?`, rid); err != nil {
			return fmt.Errorf("deleting index row: %w", err)
		}
	}

	stmts := []string{
		`DELETE FROM edges WHERE source_id IN (SELECT id FROM turns WHERE conv_id = ?)
			OR target_id IN (SELECT id FROM turns WHERE conv_id = ?)`,
		`DELETE FROM nodes WHERE id IN (SELECT id FROM code_blocks WHERE turn_id IN (SELECT id FROM turns WHERE conv_id = ?))`,
		`DELETE FROM nodes WHERE id IN (SELECT id FROM links WHERE turn_id IN (SELECT id FROM turns WHERE conv_id = ?))`,
		`DELETE FROM code_blocks WHERE turn_id IN (SELECT id FROM turns WHERE conv_id = ?)`,
		`DELETE FROM links WHERE turn_id IN (SELECT id FROM turns WHERE conv_id = ?)`,
		`DELETE FROM nodes WHERE id IN (SELECT id FROM turns WHERE conv_id = ?)`,
		`DELETE FROM turns WHERE conv_id = ?`,
	}
	for _, stmt := range stmts {
		var args []any
		for _, c := range stmt {
			if c == '?' {
				args = append(args, convID)
			}
		}
		if _, err := tx.Exec(stmt, args...); err != nil {
			return fmt.Errorf("clearing conversation %s: %w", convID, err)
		}
	}
	return nil
}

func insertTurn(tx *sql.Tx, conv *model.Conversation, account string, t *model.Turn, index int, prevTurnID string) error {
	res, err := tx.Exec(`
		INSERT INTO turns (id, conv_id, role, content, timestamp, date, model, turn_index, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, conv.ID, string(t.Role), t.Content,
		nullTS(t.Timestamp), nullDate(t.Timestamp), t.Model, index, encodeMeta(t.Metadata))
	if err != nil {
		return fmt.Errorf("inserting turn %s: %w", t.ID, err)
	}
	rowid, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("resolving turn rowid: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO turns_fts (rowid, content, title, role, source, conv_id, ts, date, account, doc_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rowid, t.Content, conv.Title, string(t.Role), string(conv.Source),
		conv.ID, fmt.Sprintf("%.0f", t.Timestamp), dateString(t.Timestamp), account, t.ID)
	if err != nil {
		return fmt.Errorf("indexing turn %s: %w", t.ID, err)
	}

	_, err = tx.Exec(`
		INSERT INTO nodes (id, type, label, ref_table, ref_id, metadata)
		VALUES (?, ?, ?, 'turns', ?, '{}')`,
		t.ID, string(model.NodeTurn), turnLabel(t), t.ID)
	if err != nil {
		return fmt.Errorf("inserting turn node: %w", err)
	}

	if err := insertEdge(tx, conv.ID, model.EdgeContains, t.ID); err != nil {
		return err
	}
	if prevTurnID != "" {
		if err := insertEdge(tx, prevTurnID, model.EdgeFollows, t.ID); err != nil {
			return err
		}
	}

	for j := range t.CodeBlocks {
		cb := &t.CodeBlocks[j]
		_, err := tx.Exec(`
			INSERT INTO code_blocks (id, turn_id, language, content, start_line, metadata)
			VALUES (?, ?, ?, ?, ?, ?)`,
			cb.ID, t.ID, cb.Language, cb.Content, cb.StartLine, encodeMeta(cb.Metadata))
		if err != nil {
			return fmt.Errorf("inserting code block %s: %w", cb.ID, err)
		}
		label := "code"
		if cb.Language != "" {
			label = "code:" + cb.Language
		}
		if err := insertArtifactNode(tx, cb.ID, "code_blocks", label, t.ID); err != nil {
			return err
		}
	}
	for j := range t.Links {
		l := &t.Links[j]
		_, err := tx.Exec(`
			INSERT INTO links (id, turn_id, url, text, domain, metadata)
			VALUES (?, ?, ?, ?, ?, ?)`,
			l.ID, t.ID, l.URL, l.Text, l.Domain, encodeMeta(l.Metadata))
		if err != nil {
			return fmt.Errorf("inserting link %s: %w", l.ID, err)
		}
		if err := insertArtifactNode(tx, l.ID, "links", l.Domain, t.ID); err != nil {
			return err
		}
	}
	return nil
}

func insertArtifactNode(tx *sql.Tx, id, refTable, label, turnID string) error {
	_, err := tx.Exec(`
		INSERT INTO nodes (id, type, label, ref_table, ref_id, metadata)
		VALUES (?, ?, ?, ?, ?, '{}')`,
		id, string(model.NodeArtifact), label, refTable, id)
	if err != nil {
		return fmt.Errorf("inserting artifact node %s: %w", id, err)
	}
	return insertEdge(tx, turnID, model.EdgeProduces, id)
}

func insertEdge(tx *sql.Tx, sourceID string, typ model.EdgeType, targetID string) error {
	_, err := tx.Exec(`
		INSERT OR REPLACE INTO edges (id, type, source_id, target_id, weight, metadata)
		VALUES (?, ?, ?, ?, 1.0, '{}')`,
		model.EdgeID(sourceID, typ, targetID), string(typ), sourceID, targetID)
	if err != nil {
		return fmt.Errorf("inserting %s edge: %w", typ, err)
	}
	return nil
}

// GetConversation loads a conversation with its turns in index order and
// their artifacts. Returns nil without error when the id is unknown.
func (d *DB) GetConversation(id string) (*model.Conversation, error) {
	conv := &model.Conversation{ID: id}
	var created, updated sql.NullFloat64
	var tags, meta string
	err := d.conn.QueryRow(`
		SELECT title, source, account, created_at, updated_at, tags, metadata
		FROM conversations WHERE id = ?`, id).
		Scan(&conv.Title, (*string)(&conv.Source), &conv.Account, &created, &updated, &tags, &meta)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading conversation %s: %w", id, err)
	}
	conv.CreatedAt = created.Float64
	conv.UpdatedAt = updated.Float64
	conv.Tags = decodeTags(tags)
	conv.Metadata = decodeMeta(meta)

	rows, err := d.conn.Query(`
		SELECT id, role, content, timestamp, model, metadata
		FROM turns WHERE conv_id = ? ORDER BY turn_index`, id)
	if err != nil {
		return nil, fmt.Errorf("loading turns: %w", err)
	}
	defer rows.Close()

	byID := map[string]int{}
	for rows.Next() {
		var t model.Turn
		var ts sql.NullFloat64
		var tmeta string
		if err := rows.Scan(&t.ID, (*string)(&t.Role), &t.Content, &ts, &t.Model, &tmeta); err != nil {
			return nil, err
		}
		t.Timestamp = ts.Float64
		t.Metadata = decodeMeta(tmeta)
		byID[t.ID] = len(conv.Turns)
		conv.Turns = append(conv.Turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := d.attachArtifacts(conv, byID); err != nil {
		return nil, err
	}
	return conv, nil
}

func (d *DB) attachArtifacts(conv *model.Conversation, byID map[string]int) error {
	rows, err := d.conn.Query(`
		SELECT id, turn_id, language, content, start_line, metadata
		FROM code_blocks WHERE turn_id IN (SELECT id FROM turns WHERE conv_id = ?)
		ORDER BY id`, conv.ID)
	if err != nil {
		return fmt.Errorf("loading code blocks: %w", err)
	}
	for rows.Next() {
		var cb model.CodeBlock
		var meta string
		if err := rows.Scan(&cb.ID, &cb.TurnID, &cb.Language, &cb.Content, &cb.StartLine, &meta); err != nil {
			rows.Close()
			return err
		}
		cb.Metadata = decodeMeta(meta)
		if i, ok := byID[cb.TurnID]; ok {
			conv.Turns[i].CodeBlocks = append(conv.Turns[i].CodeBlocks, cb)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	rows, err = d.conn.Query(`
		SELECT id, turn_id, url, text, domain, metadata
		FROM links WHERE turn_id IN (SELECT id FROM turns WHERE conv_id = ?)
		ORDER BY id`, conv.ID)
	if err != nil {
		return fmt.Errorf("loading links: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l model.Link
		var meta string
		if err := rows.Scan(&l.ID, &l.TurnID, &l.URL, &l.Text, &l.Domain, &meta); err != nil {
			return err
		}
		l.Metadata = decodeMeta(meta)
		if i, ok := byID[l.TurnID]; ok {
			conv.Turns[i].Links = append(conv.Turns[i].Links, l)
		}
	}
	return rows.Err()
}

// Stats summarizes the store.
type Stats struct {
	Conversations int
	Turns         int
	CodeBlocks    int
	Links         int
	Nodes         int
	Edges         int
	BySource      map[string]int
}

// Stats counts rows per table and conversations per source.
func (d *DB) Stats() (*Stats, error) {
	s := &Stats{BySource: map[string]int{}}
	for _, c := range []struct {
		table string
		dst   *int
	}{
		{"conversations", &s.Conversations},
		{"turns", &s.Turns},
		{"code_blocks", &s.CodeBlocks},
		{"links", &s.Links},
		{"nodes", &s.Nodes},
		{"edges", &s.Edges},
	} {
		if err := d.conn.QueryRow("SELECT COUNT(*) FROM " + c.table).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("counting %s: %w", c.table, err)
		}
	}

	rows, err := d.conn.Query(`SELECT source, COUNT(*) FROM conversations GROUP BY source`)
	if err != nil {
		return nil, fmt.Errorf("counting by source: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var source string
		var n int
		if err := rows.Scan(&source, &n); err != nil {
			return nil, err
		}
		s.BySource[source] = n
	}
	return s, rows.Err()
}

func turnLabel(t *model.Turn) string {
	const max = 80
	label := t.Content
	if len(label) > max {
		label = label[:max]
	}
	return string(t.Role) + ": " + label
}

// nullTS maps the zero timestamp to NULL so missing times stay missing.
func nullTS(ts float64) any {
	if ts <= 0 {
		return nil
	}
	return ts
}

func nullDate(ts float64) any {
	if ts <= 0 {
		return nil
	}
	return dateString(ts)
}

// dateString renders an epoch-seconds timestamp as a UTC calendar date.
func dateString(ts float64) string {
	if ts <= 0 {
		return ""
	}
	return time.Unix(int64(ts), 0).UTC().Format("2006-01-02")
}

func encodeTags(tags []string) string {
	if len(tags) == 0 {
		return "[]"
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func decodeTags(s string) []string {
	var tags []string
	if err := json.Unmarshal([]byte(s), &tags); err != nil {
		return nil
	}
	return tags
}

func encodeMeta(m map[string]any) string {
	if len(m) == 0 {
		return "{}"
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func decodeMeta(s string) map[string]any {
	if s == "" || s == "{}" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil
	}
	return m
}
