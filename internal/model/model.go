// Package model defines the canonical conversation graph types shared by
// ingestion, storage, and search. It carries data only; behavior lives in
// the packages that consume it.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// SourceType identifies the provider a conversation was exported from.
type SourceType string

const (
	SourceAnthropic SourceType = "anthropic"
	SourceOpenAI    SourceType = "openai"
	SourceGemini    SourceType = "gemini"
	SourceUnknown   SourceType = "unknown"
)

// Role is the closed set of turn authors.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// NodeType classifies knowledge graph nodes by the table they reference.
type NodeType string

const (
	NodeConversation NodeType = "conversation"
	NodeTurn         NodeType = "turn"
	NodeArtifact     NodeType = "artifact"

	// Reserved for future extraction passes.
	NodeEntity   NodeType = "entity"
	NodeClaim    NodeType = "claim"
	NodeDecision NodeType = "decision"
	NodeTask     NodeType = "task"
)

// EdgeType is the closed set of typed relationships between nodes.
type EdgeType string

const (
	EdgeContains EdgeType = "contains" // conversation -> turn
	EdgeProduces EdgeType = "produces" // turn -> artifact
	EdgeFollows  EdgeType = "follows"  // turn -> next turn in conversation

	// Reserved for future entity/claim/decision/task relations.
	EdgeMentions EdgeType = "mentions"
	EdgeSupports EdgeType = "supports"
	EdgeDecides  EdgeType = "decides"
)

// Conversation is a full conversation history. Identity is stable across
// re-ingestion: upserting the same id replaces the stored conversation.
type Conversation struct {
	ID        string
	Title     string
	Source    SourceType
	Account   string  // owning account, "default" when the export names none
	CreatedAt float64 // epoch seconds
	UpdatedAt float64
	Turns     []Turn
	Tags      []string
	Metadata  map[string]any
}

// Turn is a single message within a conversation. Order is given by the
// explicit index assigned at upsert time, after timestamp sorting.
type Turn struct {
	ID         string
	Role       Role
	Content    string
	Timestamp  float64 // epoch seconds, never zero after normalization
	Model      string
	Metadata   map[string]any
	CodeBlocks []CodeBlock
	Links      []Link
}

// CodeBlock is a fenced code region extracted from a turn.
type CodeBlock struct {
	ID        string
	TurnID    string
	Language  string
	Content   string
	StartLine int // 0-based line offset of the opening fence within the turn
	Metadata  map[string]any
}

// Link is a URL extracted from a turn, deduplicated by exact URL.
type Link struct {
	ID       string
	TurnID   string
	URL      string
	Text     string
	Domain   string
	Metadata map[string]any
}

// Node wraps a reference to exactly one underlying entity by (ref id, ref
// table) plus a display label.
type Node struct {
	ID       string
	Type     NodeType
	Label    string
	RefID    string
	RefTable string
	Metadata map[string]any
}

// Edge is a typed, directed, weighted relationship between two node ids.
type Edge struct {
	ID       string
	Type     EdgeType
	SourceID string
	TargetID string
	Weight   float64
	Metadata map[string]any
}

// GenerateID derives a stable 16-character hex id from content.
func GenerateID(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:16]
}

// EdgeID builds the deterministic id for an edge, so re-ingestion of the
// same structure upserts rather than duplicates.
func EdgeID(sourceID string, typ EdgeType, targetID string) string {
	return fmt.Sprintf("%s->%s->%s", sourceID, typ, targetID)
}

// CodeBlockID derives a stable artifact id from the owning turn and the
// extraction-local sequence number.
func CodeBlockID(turnID string, n int) string {
	return fmt.Sprintf("%s:code:%d", turnID, n)
}

// LinkID derives a stable link id from the owning turn and the
// extraction-local sequence number.
func LinkID(turnID string, n int) string {
	return fmt.Sprintf("%s:link:%d", turnID, n)
}

// NormalizeRole maps provider-specific author names onto the closed role
// set. Claude exports use "human"; unrecognized values default to user.
func NormalizeRole(s string) Role {
	switch s {
	case "assistant":
		return RoleAssistant
	case "system", "tool":
		return RoleSystem
	case "user", "human":
		return RoleUser
	default:
		return RoleUser
	}
}
