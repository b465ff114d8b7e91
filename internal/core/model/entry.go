package model

import (
	"encoding/json"
	"time"
)

// Role identifies who produced a log entry.
type Role string

const (
	RoleHuman Role = "human"
	RoleAgent Role = "agent"
	RoleTool  Role = "tool"
)

// Kind classifies what a log entry carries.
type Kind string

const (
	KindMessage    Kind = "message"
	KindToolCall   Kind = "tool_call"
	KindToolResult Kind = "tool_result"
)

// LogEntry is one parsed line of a session log. Entries are immutable once
// constructed; Sequence is the 1-based physical line position within the
// file and strictly increases.
type LogEntry struct {
	Sequence      int64           `json:"sequence"`
	Timestamp     time.Time       `json:"timestamp"`
	Role          Role            `json:"role"`
	Kind          Kind            `json:"kind"`
	ToolName      string          `json:"toolName,omitempty"`
	CorrelationID string          `json:"correlationId,omitempty"`
	Text          string          `json:"text,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// Interaction is a tool call paired with its result. Both entries remain
// individually addressable in the session's entry stream; the pairing is an
// additional view for consumers.
type Interaction struct {
	CorrelationID string   `json:"correlationId"`
	ToolName      string   `json:"toolName,omitempty"`
	Call          LogEntry `json:"call"`
	Result        LogEntry `json:"result"`
}
