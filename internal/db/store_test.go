package db

import (
	"path/filepath"
	"testing"

	"chatgraph/internal/model"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func testConversation() *model.Conversation {
	conv := &model.Conversation{
		ID:        model.GenerateID("conv-fixture"),
		Title:     "Debugging the scheduler",
		Source:    model.SourceAnthropic,
		Account:   "work",
		CreatedAt: 1700000000,
		UpdatedAt: 1700003600,
		Tags:      []string{"golang", "debugging"},
	}
	contents := []struct {
		role model.Role
		text string
	}{
		{model.RoleUser, "Why does the scheduler deadlock under load?"},
		{model.RoleAssistant, "The worker pool never releases its semaphore. See https://example.com/docs for details."},
		{model.RoleUser, "Can you show the fix?"},
	}
	for i, c := range contents {
		turn := model.Turn{
			ID:        model.GenerateID(conv.ID + c.text),
			Role:      c.role,
			Content:   c.text,
			Timestamp: 1700000000 + float64(i*60),
		}
		conv.Turns = append(conv.Turns, turn)
	}
	conv.Turns[1].CodeBlocks = []model.CodeBlock{{
		ID:       model.CodeBlockID(conv.Turns[1].ID, 0),
		TurnID:   conv.Turns[1].ID,
		Language: "go",
		Content:  "sem <- struct{}{}",
	}}
	conv.Turns[1].Links = []model.Link{{
		ID:     model.LinkID(conv.Turns[1].ID, 0),
		TurnID: conv.Turns[1].ID,
		URL:    "https://example.com/docs",
		Text:   "docs",
		Domain: "example.com",
	}}
	return conv
}

func TestUpsertAndGet(t *testing.T) {
	d := openTestDB(t)
	conv := testConversation()
	if err := d.UpsertConversation(conv); err != nil {
		t.Fatalf("UpsertConversation: %v", err)
	}

	got, err := d.GetConversation(conv.ID)
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if got == nil {
		t.Fatal("GetConversation returned nil for stored conversation")
	}
	if got.Title != conv.Title {
		t.Errorf("title = %q, want %q", got.Title, conv.Title)
	}
	if got.Account != "work" {
		t.Errorf("account = %q, want work", got.Account)
	}
	if len(got.Turns) != 3 {
		t.Fatalf("len(turns) = %d, want 3", len(got.Turns))
	}
	for i, turn := range got.Turns {
		if turn.Content != conv.Turns[i].Content {
			t.Errorf("turn %d content = %q, want %q", i, turn.Content, conv.Turns[i].Content)
		}
	}
	if len(got.Turns[1].CodeBlocks) != 1 || got.Turns[1].CodeBlocks[0].Language != "go" {
		t.Errorf("turn 1 code blocks = %+v, want one go block", got.Turns[1].CodeBlocks)
	}
	if len(got.Turns[1].Links) != 1 || got.Turns[1].Links[0].Domain != "example.com" {
		t.Errorf("turn 1 links = %+v, want one example.com link", got.Turns[1].Links)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "golang" {
		t.Errorf("tags = %v, want [golang debugging]", got.Tags)
	}
}

func TestGetConversationUnknown(t *testing.T) {
	d := openTestDB(t)
	got, err := d.GetConversation("no-such-id")
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil", got)
	}
}

func TestUpsertIdempotent(t *testing.T) {
	d := openTestDB(t)
	conv := testConversation()
	for i := 0; i < 3; i++ {
		if err := d.UpsertConversation(conv); err != nil {
			t.Fatalf("upsert %d: %v", i, err)
		}
	}

	stats, err := d.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Conversations != 1 {
		t.Errorf("conversations = %d, want 1", stats.Conversations)
	}
	if stats.Turns != 3 {
		t.Errorf("turns = %d, want 3", stats.Turns)
	}
	if stats.CodeBlocks != 1 {
		t.Errorf("code blocks = %d, want 1", stats.CodeBlocks)
	}
	if stats.Links != 1 {
		t.Errorf("links = %d, want 1", stats.Links)
	}
	// 1 conversation + 3 turns + 2 artifacts
	if stats.Nodes != 6 {
		t.Errorf("nodes = %d, want 6", stats.Nodes)
	}
	// 3 contains + 2 follows + 2 produces
	if stats.Edges != 7 {
		t.Errorf("edges = %d, want 7", stats.Edges)
	}

	// The index must not accumulate stale rows either.
	var ftsRows int
	if err := d.Conn().QueryRow("SELECT COUNT(*) FROM turns_fts").Scan(&ftsRows); err != nil {
		t.Fatalf("counting fts rows: %v", err)
	}
	if ftsRows != 3 {
		t.Errorf("fts rows = %d, want 3", ftsRows)
	}
}

func TestUpsertReplacesShrunkConversation(t *testing.T) {
	d := openTestDB(t)
	conv := testConversation()
	if err := d.UpsertConversation(conv); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	conv.Turns = conv.Turns[:1]
	if err := d.UpsertConversation(conv); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	stats, err := d.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Turns != 1 {
		t.Errorf("turns = %d, want 1", stats.Turns)
	}
	if stats.CodeBlocks != 0 || stats.Links != 0 {
		t.Errorf("artifacts = %d blocks %d links, want 0 and 0", stats.CodeBlocks, stats.Links)
	}
	if stats.Edges != 1 {
		t.Errorf("edges = %d, want 1 contains edge", stats.Edges)
	}
}

func TestNeighbors(t *testing.T) {
	d := openTestDB(t)
	conv := testConversation()
	if err := d.UpsertConversation(conv); err != nil {
		t.Fatalf("UpsertConversation: %v", err)
	}

	t.Run("contains from conversation", func(t *testing.T) {
		ns, err := d.Neighbors(conv.ID, []model.EdgeType{model.EdgeContains}, DirOut)
		if err != nil {
			t.Fatalf("Neighbors: %v", err)
		}
		if len(ns) != 3 {
			t.Fatalf("len = %d, want 3", len(ns))
		}
		for _, nb := range ns {
			if nb.Node.Type != model.NodeTurn {
				t.Errorf("neighbor type = %s, want turn", nb.Node.Type)
			}
		}
	})

	t.Run("follows chain", func(t *testing.T) {
		ns, err := d.Neighbors(conv.Turns[0].ID, []model.EdgeType{model.EdgeFollows}, DirOut)
		if err != nil {
			t.Fatalf("Neighbors: %v", err)
		}
		if len(ns) != 1 {
			t.Fatalf("len = %d, want 1", len(ns))
		}
		if ns[0].Node.ID != conv.Turns[1].ID {
			t.Errorf("follows -> %s, want %s", ns[0].Node.ID, conv.Turns[1].ID)
		}
	})

	t.Run("produces from turn", func(t *testing.T) {
		ns, err := d.Neighbors(conv.Turns[1].ID, []model.EdgeType{model.EdgeProduces}, DirOut)
		if err != nil {
			t.Fatalf("Neighbors: %v", err)
		}
		if len(ns) != 2 {
			t.Fatalf("len = %d, want 2 artifacts", len(ns))
		}
	})

	t.Run("inbound", func(t *testing.T) {
		ns, err := d.Neighbors(conv.Turns[0].ID, []model.EdgeType{model.EdgeContains}, DirIn)
		if err != nil {
			t.Fatalf("Neighbors: %v", err)
		}
		if len(ns) != 1 || ns[0].Node.ID != conv.ID {
			t.Errorf("inbound contains = %+v, want the conversation node", ns)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		ns, err := d.Neighbors("missing", nil, DirBoth)
		if err != nil {
			t.Fatalf("Neighbors: %v", err)
		}
		if len(ns) != 0 {
			t.Errorf("len = %d, want 0", len(ns))
		}
	})
}

func TestBatchWriter(t *testing.T) {
	d := openTestDB(t)
	w := d.NewBatchWriter(2)

	for i := 0; i < 5; i++ {
		conv := testConversation()
		conv.ID = model.GenerateID(string(rune('a' + i)))
		for j := range conv.Turns {
			conv.Turns[j].ID = model.GenerateID(conv.ID + conv.Turns[j].Content)
			conv.Turns[j].CodeBlocks = nil
			conv.Turns[j].Links = nil
		}
		if err := w.Add(conv); err != nil {
			t.Fatalf("Add %d: %v", i, err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	stats, err := d.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Conversations != 5 {
		t.Errorf("conversations = %d, want 5", stats.Conversations)
	}
	if stats.Turns != 15 {
		t.Errorf("turns = %d, want 15", stats.Turns)
	}
}
