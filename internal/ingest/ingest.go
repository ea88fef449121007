// Package ingest reads chat export files, normalizes them into the
// canonical conversation graph, and writes them to the store in batches.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"chatgraph/internal/db"
	"chatgraph/internal/embed"
	"chatgraph/internal/extract"
	"chatgraph/internal/model"
	"chatgraph/internal/vector"
)

// Embedding thresholds: turns shorter than minEmbedChars carry too little
// signal to embed, longer ones are truncated before embedding.
const (
	minEmbedChars  = 20
	truncateChars  = 2000
	defaultCommits = 100
)

// Options configure an ingest run. Embedder and Vectors are optional and
// must be set together.
type Options struct {
	Account     string
	CommitEvery int
	Embedder    embed.Provider
	Vectors     vector.Store
	Logger      *slog.Logger
}

// Report summarizes one ingest run.
type Report struct {
	RunID     string
	Format    string
	Processed int
	Skipped   int
	Turns     int
	Embedded  int
	Reasons   map[string]int
}

// DetectFormat sniffs which provider produced an export. ChatGPT exports
// carry a mapping with author objects; Claude exports carry chat_messages.
func DetectFormat(data []byte) string {
	if bytes.Contains(data, []byte(`"mapping"`)) && bytes.Contains(data, []byte(`"author"`)) {
		return "chatgpt"
	}
	if bytes.Contains(data, []byte(`"chat_messages"`)) {
		return "claude"
	}
	return ""
}

// RunFile ingests one export file.
func RunFile(ctx context.Context, d *db.DB, path string, opts Options) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading export: %w", err)
	}
	return Run(ctx, d, data, opts)
}

// Run detects the export format, parses it, and upserts every conversation
// with periodic commits. Conversations with no usable turns are skipped
// and counted, never fatal.
func Run(ctx context.Context, d *db.DB, data []byte, opts Options) (*Report, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	format := DetectFormat(data)
	report := &Report{
		RunID:   uuid.NewString(),
		Format:  format,
		Reasons: map[string]int{},
	}

	now := time.Now()
	var convs []*model.Conversation
	var malformed []string
	var err error
	switch format {
	case "claude":
		convs, malformed, err = ParseClaude(data, now)
	case "chatgpt":
		convs, malformed, err = ParseChatGPT(data, now)
	default:
		return nil, fmt.Errorf("unrecognized export format")
	}
	if err != nil {
		return nil, err
	}
	for _, reason := range malformed {
		logger.Warn("skipping malformed conversation", "reason", reason)
		report.Skipped++
		report.Reasons["malformed"]++
	}

	commitEvery := opts.CommitEvery
	if commitEvery < 1 {
		commitEvery = defaultCommits
	}
	writer := d.NewBatchWriter(commitEvery)

	for _, conv := range convs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(conv.Turns) == 0 {
			report.Skipped++
			report.Reasons["no turns"]++
			continue
		}
		if opts.Account != "" {
			conv.Account = opts.Account
		}
		if err := writer.Add(conv); err != nil {
			return nil, fmt.Errorf("upserting conversation %s: %w", conv.ID, err)
		}
		report.Processed++
		report.Turns += len(conv.Turns)

		if opts.Embedder != nil && opts.Vectors != nil {
			n, err := embedConversation(ctx, conv, opts.Embedder, opts.Vectors)
			if err != nil {
				return nil, fmt.Errorf("embedding conversation %s: %w", conv.ID, err)
			}
			report.Embedded += n
		}
	}
	if err := writer.Flush(); err != nil {
		return nil, err
	}

	logger.Info("ingest complete",
		"run_id", report.RunID,
		"format", report.Format,
		"conversations", report.Processed,
		"skipped", report.Skipped,
		"turns", report.Turns,
		"embedded", report.Embedded)
	return report, nil
}

// embedConversation embeds the substantial turns of one conversation and
// stores them with filterable metadata.
func embedConversation(ctx context.Context, conv *model.Conversation, provider embed.Provider, store vector.Store) (int, error) {
	var texts []string
	var items []vector.Item
	for i := range conv.Turns {
		t := &conv.Turns[i]
		if len(t.Content) < minEmbedChars {
			continue
		}
		text := t.Content
		if len(text) > truncateChars {
			text = text[:truncateChars]
		}
		texts = append(texts, text)
		items = append(items, vector.Item{
			ID:      t.ID,
			Content: text,
			Metadata: map[string]string{
				"conv_id": conv.ID,
				"source":  string(conv.Source),
				"account": conv.Account,
				"role":    string(t.Role),
			},
		})
	}
	if len(items) == 0 {
		return 0, nil
	}

	vecs, err := provider.Embed(ctx, texts)
	if err != nil {
		return 0, err
	}
	if len(vecs) != len(items) {
		return 0, fmt.Errorf("got %d embeddings for %d turns", len(vecs), len(items))
	}
	for i := range items {
		items[i].Embedding = vecs[i]
	}
	return store.InsertBatch(items)
}

// buildTurn normalizes one message into a canonical turn, extracting code
// blocks and links. Returns nil when no text survives normalization.
func buildTurn(convID, msgID, role, text string, ts float64, modelName string) *model.Turn {
	content := extract.NormalizeText(text)
	if strings.TrimSpace(content) == "" {
		return nil
	}
	if msgID == "" {
		msgID = fmt.Sprintf("%s:%f", content, ts)
	}
	turn := &model.Turn{
		ID:        model.GenerateID(convID + ":" + msgID),
		Role:      model.NormalizeRole(role),
		Content:   content,
		Timestamp: ts,
		Model:     modelName,
	}
	turn.CodeBlocks = extract.CodeBlocks(turn.ID, content)
	turn.Links = extract.Links(turn.ID, content)
	return turn
}

// fallbackTS picks the first usable timestamp: the message's own, then the
// conversation's, then the moment of ingestion.
func fallbackTS(msg, conv float64, now time.Time) float64 {
	if msg > 0 {
		return msg
	}
	if conv > 0 {
		return conv
	}
	return float64(now.Unix())
}
