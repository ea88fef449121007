// Package analytics computes corpus-level summaries from a knowledge
// store: volume, composition, and activity over time.
package analytics

import (
	"database/sql"
	"fmt"

	"chatgraph/internal/db"
)

// Count is a labeled tally, ordered by frequency in the report.
type Count struct {
	Label string
	N     int
}

// Report is a full analytics pass over the store.
type Report struct {
	Conversations int
	Turns         int
	CodeBlocks    int
	Links         int
	AvgTurns      float64

	BySource  map[string]int
	ByRole    map[string]int
	Languages []Count
	Domains   []Count

	ByMonth        []Count
	ByHour         [24]int
	ByWeekday      [7]int // 0 = Sunday
	ByProviderHour map[string]*[24]int
	FirstDate      string
	LastDate       string
}

const topN = 10

// Collect runs the analytics queries and assembles a report. Empty stores
// produce an all-zero report, not an error.
func Collect(d *db.DB) (*Report, error) {
	stats, err := d.Stats()
	if err != nil {
		return nil, err
	}
	r := &Report{
		Conversations: stats.Conversations,
		Turns:         stats.Turns,
		CodeBlocks:    stats.CodeBlocks,
		Links:         stats.Links,
		BySource:      stats.BySource,
		ByRole:        map[string]int{},
	}
	if r.Conversations > 0 {
		r.AvgTurns = float64(r.Turns) / float64(r.Conversations)
	}

	conn := d.Conn()

	rows, err := conn.Query(`SELECT role, COUNT(*) FROM turns GROUP BY role`)
	if err != nil {
		return nil, fmt.Errorf("counting roles: %w", err)
	}
	for rows.Next() {
		var role string
		var n int
		if err := rows.Scan(&role, &n); err != nil {
			rows.Close()
			return nil, err
		}
		r.ByRole[role] = n
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	r.Languages, err = topCounts(conn, `
		SELECT language, COUNT(*) FROM code_blocks
		WHERE language != '' GROUP BY language
		ORDER BY COUNT(*) DESC, language LIMIT ?`)
	if err != nil {
		return nil, fmt.Errorf("counting languages: %w", err)
	}

	r.Domains, err = topCounts(conn, `
		SELECT domain, COUNT(*) FROM links
		WHERE domain != '' GROUP BY domain
		ORDER BY COUNT(*) DESC, domain LIMIT ?`)
	if err != nil {
		return nil, fmt.Errorf("counting domains: %w", err)
	}

	if err := collectTemporal(conn, r); err != nil {
		return nil, err
	}
	return r, nil
}

func collectTemporal(conn *sql.DB, r *Report) error {
	rows, err := conn.Query(`
		SELECT substr(date, 1, 7) AS month, COUNT(*)
		FROM turns WHERE date IS NOT NULL
		GROUP BY month ORDER BY month`)
	if err != nil {
		return fmt.Errorf("counting months: %w", err)
	}
	for rows.Next() {
		var c Count
		if err := rows.Scan(&c.Label, &c.N); err != nil {
			rows.Close()
			return err
		}
		r.ByMonth = append(r.ByMonth, c)
	}
	if err := closeRows(rows); err != nil {
		return err
	}

	rows, err = conn.Query(`
		SELECT c.source,
		       CAST(strftime('%H', t.timestamp, 'unixepoch') AS INTEGER),
		       CAST(strftime('%w', t.timestamp, 'unixepoch') AS INTEGER),
		       COUNT(*)
		FROM turns t
		JOIN conversations c ON c.id = t.conv_id
		WHERE t.timestamp IS NOT NULL
		GROUP BY 1, 2, 3`)
	if err != nil {
		return fmt.Errorf("counting activity: %w", err)
	}
	r.ByProviderHour = map[string]*[24]int{}
	for rows.Next() {
		var source string
		var hour, weekday, n int
		if err := rows.Scan(&source, &hour, &weekday, &n); err != nil {
			rows.Close()
			return err
		}
		if hour < 0 || hour > 23 || weekday < 0 || weekday > 6 {
			continue
		}
		r.ByHour[hour] += n
		r.ByWeekday[weekday] += n
		if r.ByProviderHour[source] == nil {
			r.ByProviderHour[source] = &[24]int{}
		}
		r.ByProviderHour[source][hour] += n
	}
	if err := closeRows(rows); err != nil {
		return err
	}

	var first, last sql.NullString
	err = conn.QueryRow(`SELECT MIN(date), MAX(date) FROM turns WHERE date IS NOT NULL`).
		Scan(&first, &last)
	if err != nil {
		return fmt.Errorf("finding date range: %w", err)
	}
	r.FirstDate = first.String
	r.LastDate = last.String
	return nil
}

func topCounts(conn *sql.DB, query string) ([]Count, error) {
	rows, err := conn.Query(query, topN)
	if err != nil {
		return nil, err
	}
	var out []Count
	for rows.Next() {
		var c Count
		if err := rows.Scan(&c.Label, &c.N); err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, c)
	}
	return out, closeRows(rows)
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	return rows.Close()
}
