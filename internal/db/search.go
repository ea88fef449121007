package db

import (
	"database/sql"
	"fmt"
	"strings"
)

// SearchParams selects and orders indexed turns. Match is FTS5 MATCH
// syntax; the query package compiles user input into it.
type SearchParams struct {
	Match    string
	Provider string // claude, chatgpt, or a source name
	Role     string
	Account  string
	DateFrom string // inclusive, YYYY-MM-DD
	DateTo   string
	Sort     string // relevance (default), newest, oldest
	Limit    int
	Offset   int
}

// SearchRow is one indexed turn matched by a search.
type SearchRow struct {
	TurnID    string
	ConvID    string
	Title     string
	Role      string
	Source    string
	Account   string
	Date      string // empty when the turn has no timestamp
	Timestamp float64
	Snippet   string
}

// providerSources maps user-facing provider aliases onto stored source
// values. Unlisted values pass through as-is.
var providerSources = map[string]string{
	"claude":  "anthropic",
	"chatgpt": "openai",
}

// Search runs a compiled match expression over the inverted index and
// returns one page of rows plus the total match count before paging.
func (d *DB) Search(p SearchParams) ([]SearchRow, int, error) {
	if strings.TrimSpace(p.Match) == "" {
		return nil, 0, nil
	}

	where := []string{"turns_fts MATCH ?"}
	args := []any{p.Match}

	if p.Provider != "" {
		source := p.Provider
		if mapped, ok := providerSources[strings.ToLower(p.Provider)]; ok {
			source = mapped
		}
		where = append(where, "c.source = ?")
		args = append(args, source)
	}
	if p.Role != "" {
		// Assistant turns and injected system turns both carry model
		// output, so an assistant filter matches either.
		if p.Role == "assistant" {
			where = append(where, "(t.role = 'assistant' OR t.role = 'system')")
		} else {
			where = append(where, "t.role = ?")
			args = append(args, p.Role)
		}
	}
	if p.Account != "" {
		where = append(where, "c.account = ?")
		args = append(args, p.Account)
	}
	if p.DateFrom != "" {
		where = append(where, "t.date IS NOT NULL AND t.date >= ?")
		args = append(args, p.DateFrom)
	}
	if p.DateTo != "" {
		where = append(where, "t.date IS NOT NULL AND t.date <= ?")
		args = append(args, p.DateTo)
	}

	from := `FROM turns_fts
		JOIN turns t ON t.rowid = turns_fts.rowid
		JOIN conversations c ON c.id = t.conv_id
		WHERE ` + strings.Join(where, " AND ")

	var total int
	if err := d.conn.QueryRow("SELECT COUNT(*) "+from, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting matches: %w", err)
	}
	if total == 0 {
		return nil, 0, nil
	}

	order := "turns_fts.rank"
	switch p.Sort {
	case "newest":
		order = "(t.date IS NULL), t.date DESC, turns_fts.rank"
	case "oldest":
		order = "(t.date IS NULL), t.date ASC, turns_fts.rank"
	}

	limit := p.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT t.id, t.conv_id, c.title, t.role, c.source, c.account,
			t.date, t.timestamp,
			snippet(turns_fts, 0, '<mark>', '</mark>', ' … ', 12) ` +
		from + " ORDER BY " + order + " LIMIT ? OFFSET ?"
	args = append(args, limit, p.Offset)

	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("searching index: %w", err)
	}
	defer rows.Close()

	var out []SearchRow
	for rows.Next() {
		var r SearchRow
		var date sql.NullString
		var ts sql.NullFloat64
		if err := rows.Scan(&r.TurnID, &r.ConvID, &r.Title, &r.Role, &r.Source,
			&r.Account, &date, &ts, &r.Snippet); err != nil {
			return nil, 0, err
		}
		r.Date = date.String
		r.Timestamp = ts.Float64
		out = append(out, r)
	}
	return out, total, rows.Err()
}
