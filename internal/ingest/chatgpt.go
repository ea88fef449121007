package ingest

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"chatgraph/internal/model"
)

// chatgptConversation mirrors one record of a ChatGPT data export's
// conversations.json. Messages hang off an adjacency mapping rather than
// a list.
type chatgptConversation struct {
	ID             string   `json:"id"`
	ConversationID string   `json:"conversation_id"`
	Title          string   `json:"title"`
	CreateTime     *float64 `json:"create_time"`
	UpdateTime     *float64 `json:"update_time"`
	Mapping        map[string]struct {
		Message *struct {
			ID     string `json:"id"`
			Author struct {
				Role string `json:"role"`
			} `json:"author"`
			CreateTime *float64 `json:"create_time"`
			Content    struct {
				ContentType string `json:"content_type"`
				Parts       []any  `json:"parts"`
			} `json:"content"`
			Metadata struct {
				ModelSlug string `json:"model_slug"`
			} `json:"metadata"`
		} `json:"message"`
	} `json:"mapping"`
}

// ParseChatGPT converts a ChatGPT export into canonical conversations.
// The mapping is flattened into timestamp order; nodes without a message
// or without text are dropped, and a record that fails to decode is
// skipped with a reason.
func ParseChatGPT(data []byte, now time.Time) ([]*model.Conversation, []string, error) {
	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, nil, fmt.Errorf("parsing chatgpt export: %w", err)
	}

	var convs []*model.Conversation
	var skipped []string
	for i, rec := range records {
		var raw chatgptConversation
		if err := json.Unmarshal(rec, &raw); err != nil {
			skipped = append(skipped, fmt.Sprintf("record %d: %v", i, err))
			continue
		}
		origID := raw.ConversationID
		if origID == "" {
			origID = raw.ID
		}
		created := deref(raw.CreateTime)
		conv := &model.Conversation{
			ID:        model.GenerateID("openai:" + origID),
			Title:     raw.Title,
			Source:    model.SourceOpenAI,
			CreatedAt: created,
			UpdatedAt: deref(raw.UpdateTime),
		}

		type pending struct {
			turn model.Turn
			ts   float64
		}
		var msgs []pending
		for _, node := range raw.Mapping {
			msg := node.Message
			if msg == nil || msg.Content.ContentType != "text" {
				continue
			}
			text := joinParts(msg.Content.Parts)
			ts := fallbackTS(deref(msg.CreateTime), created, now)
			turn := buildTurn(conv.ID, msg.ID, msg.Author.Role, text, ts, msg.Metadata.ModelSlug)
			if turn == nil {
				continue
			}
			msgs = append(msgs, pending{turn: *turn, ts: ts})
		}

		// Map iteration order is random; timestamps restore the thread,
		// with the turn ID breaking ties so reruns linearize identically.
		sort.SliceStable(msgs, func(i, j int) bool {
			if msgs[i].ts != msgs[j].ts {
				return msgs[i].ts < msgs[j].ts
			}
			return msgs[i].turn.ID < msgs[j].turn.ID
		})
		for _, m := range msgs {
			conv.Turns = append(conv.Turns, m.turn)
		}
		convs = append(convs, conv)
	}
	return convs, skipped, nil
}

func joinParts(parts []any) string {
	text := ""
	for _, p := range parts {
		s, ok := p.(string)
		if !ok || s == "" {
			continue
		}
		if text != "" {
			text += "\n"
		}
		text += s
	}
	return text
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
