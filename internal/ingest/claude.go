package ingest

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"chatgraph/internal/model"
)

// claudeConversation mirrors one record of a Claude data export's
// conversations.json.
type claudeConversation struct {
	UUID      string `json:"uuid"`
	Name      string `json:"name"`
	Summary   string `json:"summary"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
	Account   struct {
		UUID string `json:"uuid"`
	} `json:"account"`
	ChatMessages []struct {
		UUID      string `json:"uuid"`
		Text      string `json:"text"`
		Sender    string `json:"sender"`
		CreatedAt string `json:"created_at"`
		Content   []struct {
			Type           string `json:"type"`
			Text           string `json:"text"`
			StartTimestamp string `json:"start_timestamp"`
			StopTimestamp  string `json:"stop_timestamp"`
		} `json:"content"`
	} `json:"chat_messages"`
}

// ParseClaude converts a Claude export into canonical conversations. A
// record that fails to decode is skipped with a reason rather than
// aborting the export. Messages with no text are dropped; missing
// timestamps fall back through content blocks and the conversation to now.
func ParseClaude(data []byte, now time.Time) ([]*model.Conversation, []string, error) {
	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, nil, fmt.Errorf("parsing claude export: %w", err)
	}

	var convs []*model.Conversation
	var skipped []string
	for i, rec := range records {
		var raw claudeConversation
		if err := json.Unmarshal(rec, &raw); err != nil {
			skipped = append(skipped, fmt.Sprintf("record %d: %v", i, err))
			continue
		}

		title := raw.Name
		if title == "" {
			title = raw.Summary
		}
		created := parseISO(raw.CreatedAt)
		conv := &model.Conversation{
			ID:        model.GenerateID("anthropic:" + raw.UUID),
			Title:     title,
			Source:    model.SourceAnthropic,
			Account:   raw.Account.UUID,
			CreatedAt: created,
			UpdatedAt: parseISO(raw.UpdatedAt),
		}

		for _, msg := range raw.ChatMessages {
			text := msg.Text
			parts := ""
			blockTS := 0.0
			for _, part := range msg.Content {
				if blockTS == 0 {
					blockTS = parseISO(part.StartTimestamp)
				}
				if blockTS == 0 {
					blockTS = parseISO(part.StopTimestamp)
				}
				if part.Type == "text" && part.Text != "" {
					if parts != "" {
						parts += "\n"
					}
					parts += part.Text
				}
			}
			// Newer exports carry text in content parts instead.
			if text == "" {
				text = parts
			}
			ts := parseISO(msg.CreatedAt)
			if ts == 0 {
				ts = blockTS
			}
			turn := buildTurn(conv.ID, msg.UUID, msg.Sender, text, fallbackTS(ts, created, now), "")
			if turn == nil {
				continue
			}
			conv.Turns = append(conv.Turns, *turn)
		}

		// Exports do not guarantee thread order; ties keep export order.
		sort.SliceStable(conv.Turns, func(a, b int) bool {
			return conv.Turns[a].Timestamp < conv.Turns[b].Timestamp
		})
		convs = append(convs, conv)
	}
	return convs, skipped, nil
}

// parseISO reads an RFC 3339 timestamp, returning 0 when absent or
// malformed.
func parseISO(s string) float64 {
	if s == "" {
		return 0
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0
	}
	return float64(t.Unix())
}
