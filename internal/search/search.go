// Package search answers user queries. It compiles raw input into index
// syntax, runs it with filters and paging, falls back to a loosened query
// when a strict one matches nothing, and optionally blends in vector
// similarity.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"chatgraph/internal/db"
	"chatgraph/internal/embed"
	"chatgraph/internal/query"
	"chatgraph/internal/vector"
)

const defaultPageSize = 50

// Service runs searches against a knowledge store. The vector store and
// embedding provider are optional; without them only lexical search works.
type Service struct {
	db       *db.DB
	vectors  vector.Store
	provider embed.Provider
}

// New returns a lexical-only search service.
func New(d *db.DB) *Service {
	return &Service{db: d}
}

// WithVectors enables hybrid search.
func (s *Service) WithVectors(store vector.Store, provider embed.Provider) *Service {
	s.vectors = store
	s.provider = provider
	return s
}

// Options narrow and order a search.
type Options struct {
	Provider string
	Role     string
	Account  string
	DateFrom string
	DateTo   string
	Sort     string
	Page     int // 1-based, defaults to 1
	PageSize int
}

// Result is one page of matches plus paging state.
type Result struct {
	Rows     []db.SearchRow
	Total    int
	Page     int
	PageSize int
	HasNext  bool
	Match    string // the index expression that produced the rows
	Expanded bool   // terms were wildcarded for prefix matching
	Retried  bool   // strict compile matched nothing, reran loosened
}

// Search compiles raw input and runs it. When a query with operators
// matches nothing, it retries once with every term loosened to a prefix,
// so a near-miss still surfaces results.
func (s *Service) Search(raw string, opts Options) (*Result, error) {
	page := opts.Page
	if page < 1 {
		page = 1
	}
	pageSize := opts.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}

	compiled := query.Compile(raw)
	res := &Result{
		Page:     page,
		PageSize: pageSize,
		Match:    compiled.Match,
		Expanded: compiled.Expanded,
	}
	if compiled.Match == "" {
		return res, nil
	}

	// A compiled expression can still be rejected by the index when a term
	// carries punctuation the match syntax reserves. That reads as a query
	// matching nothing, not a failure. Anything else is a storage failure
	// and surfaces to the caller.
	rows, total, err := s.run(compiled.Match, opts, page, pageSize)
	if err != nil {
		if !isMatchSyntaxErr(err) {
			return nil, err
		}
		rows, total = nil, 0
	}

	if total == 0 {
		if loosened := query.ExpandTerms(raw); loosened != "" && loosened != compiled.Match {
			rows, total, err = s.run(loosened, opts, page, pageSize)
			if err != nil {
				if !isMatchSyntaxErr(err) {
					return nil, err
				}
				rows, total = nil, 0
			} else {
				res.Match = loosened
				res.Expanded = true
			}
			res.Retried = true
		}
	}

	res.Rows = rows
	res.Total = total
	res.HasNext = (page-1)*pageSize+len(rows) < total
	return res, nil
}

// isMatchSyntaxErr reports whether the index rejected the match
// expression itself, as opposed to the storage engine failing.
func isMatchSyntaxErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "fts5: syntax error") ||
		strings.Contains(msg, "unterminated string")
}

func (s *Service) run(match string, opts Options, page, pageSize int) ([]db.SearchRow, int, error) {
	return s.db.Search(db.SearchParams{
		Match:    match,
		Provider: opts.Provider,
		Role:     opts.Role,
		Account:  opts.Account,
		DateFrom: opts.DateFrom,
		DateTo:   opts.DateTo,
		Sort:     opts.Sort,
		Limit:    pageSize,
		Offset:   (page - 1) * pageSize,
	})
}

// HybridHit is one merged lexical plus vector match.
type HybridHit struct {
	TurnID  string
	Score   float64
	Lexical float64 // 1/(1+rank position), 0 when only the vector side hit
	Vector  float64 // cosine similarity, 0 when only the lexical side hit
	Content string
	Row     *db.SearchRow // nil when only the vector side hit
}

// SearchHybrid merges lexical rank with vector similarity, weighting both
// sides equally. Requires a vector store and embedding provider.
func (s *Service) SearchHybrid(ctx context.Context, raw string, opts Options, topK int) ([]HybridHit, error) {
	if s.vectors == nil || s.provider == nil {
		return nil, fmt.Errorf("hybrid search requires a vector store and embedding provider")
	}
	if topK < 1 {
		topK = 10
	}

	lexical, err := s.Search(raw, opts)
	if err != nil {
		return nil, err
	}

	vecs, err := s.provider.Embed(ctx, []string{raw})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	where := map[string]string{}
	if opts.Account != "" {
		where["account"] = opts.Account
	}
	hits, err := s.vectors.Query(vecs[0], topK, where)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}

	merged := map[string]*HybridHit{}
	for i := range lexical.Rows {
		row := &lexical.Rows[i]
		merged[row.TurnID] = &HybridHit{
			TurnID:  row.TurnID,
			Lexical: 1.0 / float64(1+i),
			Content: row.Snippet,
			Row:     row,
		}
	}
	for _, h := range hits {
		if m, ok := merged[h.ID]; ok {
			m.Vector = h.Score
		} else {
			merged[h.ID] = &HybridHit{
				TurnID:  h.ID,
				Vector:  h.Score,
				Content: h.Content,
			}
		}
	}

	out := make([]HybridHit, 0, len(merged))
	for _, m := range merged {
		m.Score = 0.5*m.Lexical + 0.5*m.Vector
		out = append(out, *m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].TurnID < out[j].TurnID
	})
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}
