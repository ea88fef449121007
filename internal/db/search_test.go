package db

import (
	"fmt"
	"strings"
	"testing"

	"chatgraph/internal/model"
)

// seedSearchDB stores three conversations across two sources and accounts.
func seedSearchDB(t *testing.T) *DB {
	t.Helper()
	d := openTestDB(t)

	add := func(id, title string, source model.SourceType, account string, base float64, texts ...string) {
		conv := &model.Conversation{
			ID:        model.GenerateID(id),
			Title:     title,
			Source:    source,
			Account:   account,
			CreatedAt: base,
		}
		for i, text := range texts {
			role := model.RoleUser
			if i%2 == 1 {
				role = model.RoleAssistant
			}
			conv.Turns = append(conv.Turns, model.Turn{
				ID:        model.GenerateID(conv.ID + text),
				Role:      role,
				Content:   text,
				Timestamp: base + float64(i*60),
			})
		}
		if err := d.UpsertConversation(conv); err != nil {
			t.Fatalf("seeding %s: %v", id, err)
		}
	}

	// 2023-11-14
	add("c1", "Rust borrow checker", model.SourceAnthropic, "work", 1700000000,
		"How does the borrow checker work in rust?",
		"The borrow checker enforces aliasing rules at compile time.")
	// 2024-01-11
	add("c2", "Python packaging", model.SourceOpenAI, "default", 1705000000,
		"Explain python packaging and wheels.",
		"A wheel is a prebuilt python package archive.")
	// 2024-03-10
	add("c3", "Rust async", model.SourceAnthropic, "default", 1710000000,
		"What does async mean in rust?",
		"Async functions in rust compile to state machines.")
	return d
}

func TestSearchMatch(t *testing.T) {
	d := seedSearchDB(t)
	rows, total, err := d.Search(SearchParams{Match: "rust*"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if total != 4 {
		t.Errorf("total = %d, want 4", total)
	}
	if len(rows) != 4 {
		t.Errorf("len(rows) = %d, want 4", len(rows))
	}
	for _, r := range rows {
		if !strings.Contains(strings.ToLower(r.Snippet), "rust") {
			t.Errorf("snippet %q does not mention rust", r.Snippet)
		}
		if !strings.Contains(r.Snippet, "<mark>") {
			t.Errorf("snippet %q lacks highlight markers", r.Snippet)
		}
	}
}

func TestSearchNoMatch(t *testing.T) {
	d := seedSearchDB(t)
	rows, total, err := d.Search(SearchParams{Match: "kubernetes*"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if total != 0 || len(rows) != 0 {
		t.Errorf("got %d rows, total %d, want none", len(rows), total)
	}
}

func TestSearchEmptyMatch(t *testing.T) {
	d := seedSearchDB(t)
	rows, total, err := d.Search(SearchParams{Match: "  "})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if total != 0 || rows != nil {
		t.Errorf("got %v total %d, want empty", rows, total)
	}
}

func TestSearchProviderAlias(t *testing.T) {
	d := seedSearchDB(t)
	for _, provider := range []string{"claude", "anthropic"} {
		rows, _, err := d.Search(SearchParams{Match: "rust*", Provider: provider})
		if err != nil {
			t.Fatalf("Search(%s): %v", provider, err)
		}
		for _, r := range rows {
			if r.Source != "anthropic" {
				t.Errorf("provider %s returned source %s", provider, r.Source)
			}
		}
		if len(rows) != 4 {
			t.Errorf("provider %s: len = %d, want 4", provider, len(rows))
		}
	}

	rows, _, err := d.Search(SearchParams{Match: "python*", Provider: "chatgpt"})
	if err != nil {
		t.Fatalf("Search(chatgpt): %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("chatgpt rows = %d, want 2", len(rows))
	}
}

func TestSearchRoleFilter(t *testing.T) {
	d := seedSearchDB(t)
	rows, _, err := d.Search(SearchParams{Match: "rust*", Role: "user"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len = %d, want 2", len(rows))
	}
	for _, r := range rows {
		if r.Role != "user" {
			t.Errorf("role = %s, want user", r.Role)
		}
	}
}

func TestSearchAccountFilter(t *testing.T) {
	d := seedSearchDB(t)
	rows, total, err := d.Search(SearchParams{Match: "rust*", Account: "work"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if total != 2 {
		t.Errorf("total = %d, want 2", total)
	}
	for _, r := range rows {
		if r.Account != "work" {
			t.Errorf("account = %s, want work", r.Account)
		}
	}
}

func TestSearchDateRange(t *testing.T) {
	d := seedSearchDB(t)
	rows, _, err := d.Search(SearchParams{Match: "rust*", DateFrom: "2024-01-01"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len = %d, want 2 turns from 2024", len(rows))
	}
	for _, r := range rows {
		if r.Date < "2024-01-01" {
			t.Errorf("date %s before range start", r.Date)
		}
	}
}

func TestSearchSortNewest(t *testing.T) {
	d := seedSearchDB(t)
	rows, _, err := d.Search(SearchParams{Match: "rust*", Sort: "newest"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for i := 1; i < len(rows); i++ {
		if rows[i-1].Date < rows[i].Date {
			t.Errorf("rows out of order: %s before %s", rows[i-1].Date, rows[i].Date)
		}
	}
}

func TestSearchPagination(t *testing.T) {
	d := openTestDB(t)
	conv := &model.Conversation{
		ID:     model.GenerateID("paging"),
		Title:  "Paging fixture",
		Source: model.SourceAnthropic,
	}
	for i := 0; i < 7; i++ {
		text := fmt.Sprintf("pagination sample number %d", i)
		conv.Turns = append(conv.Turns, model.Turn{
			ID:        model.GenerateID(text),
			Role:      model.RoleUser,
			Content:   text,
			Timestamp: 1700000000 + float64(i),
		})
	}
	if err := d.UpsertConversation(conv); err != nil {
		t.Fatalf("UpsertConversation: %v", err)
	}

	rows, total, err := d.Search(SearchParams{Match: "pagination*", Limit: 3, Offset: 6})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if total != 7 {
		t.Errorf("total = %d, want 7", total)
	}
	if len(rows) != 1 {
		t.Errorf("len = %d, want 1 on the last page", len(rows))
	}
}
