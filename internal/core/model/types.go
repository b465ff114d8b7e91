package model

import (
	"encoding/json"
	"fmt"

	"github.com/bytedance/sonic"
)

// RawRecord is one line of an agent conversation log as written on disk.
// Only the fields needed to classify an entry and link tool invocations to
// their results are decoded; everything else stays in the raw payload.
type RawRecord struct {
	Type          string  `json:"type"`
	Summary       string  `json:"summary,omitempty"`
	SessionId     string  `json:"sessionId,omitempty"`
	Timestamp     string  `json:"timestamp,omitempty"`
	Uuid          string  `json:"uuid,omitempty"`
	IsMeta        bool    `json:"isMeta,omitempty"`
	Message       Message `json:"message,omitempty"`
	ToolUseResult any     `json:"toolUseResult,omitempty"`
}

type Message struct {
	Content FlexibleContent `json:"content"`
	Role    string          `json:"role"`
	Model   string          `json:"model,omitempty"`
}

// FlexibleContent accepts both the plain-string and block-array content
// encodings the agent tool emits.
type FlexibleContent []ContentItem

func (fc *FlexibleContent) UnmarshalJSON(data []byte) error {
	var items []ContentItem
	if err := sonic.Unmarshal(data, &items); err == nil {
		*fc = items
		return nil
	}

	var str string
	if err := sonic.Unmarshal(data, &str); err == nil {
		*fc = []ContentItem{{Type: "text", Text: str}}
		return nil
	}

	return fmt.Errorf("content must be either string or array of ContentItem")
}

type ContentItem struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	Id        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseId string          `json:"tool_use_id,omitempty"`
	Content   any             `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
	Thinking  string          `json:"thinking,omitempty"`
}
