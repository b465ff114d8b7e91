// Package parser turns raw JSONL lines into structured log entries. It is
// pure: no I/O, no shared state, deterministic for identical input bytes.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"

	"github.com/loglens/loglens/internal/core/model"
)

var (
	// ErrEmptyLine marks a blank or whitespace-only line. Callers skip it
	// silently; it is not a failure.
	ErrEmptyLine = errors.New("empty line")
	// ErrMalformed marks a line that is not valid JSON.
	ErrMalformed = errors.New("malformed record")
	// ErrUnrecognized marks valid JSON that carries no determinable
	// role/kind (summary records, meta lines, unknown types).
	ErrUnrecognized = errors.New("unrecognized record")
)

// Parse converts one raw line into a LogEntry. The entry's Sequence is left
// zero; the caller owns line positions. The returned entry keeps its own copy
// of the line bytes, so callers may reuse the input buffer.
func Parse(line []byte) (*model.LogEntry, error) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return nil, ErrEmptyLine
	}

	var rec model.RawRecord
	if err := sonic.Unmarshal(trimmed, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return classify(&rec, trimmed)
}

// ExtractSummary pulls the session title out of a summary record. Summary
// records are not conversation entries (Parse reports them unrecognized), but
// they name the session for listings.
func ExtractSummary(line []byte) (string, bool) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return "", false
	}
	var rec model.RawRecord
	if err := sonic.Unmarshal(trimmed, &rec); err != nil {
		return "", false
	}
	if rec.Type == "summary" && rec.Summary != "" {
		return rec.Summary, true
	}
	return "", false
}

// classify maps a decoded record onto role/kind. One line yields one entry:
// when a record carries several content blocks, tool_use wins over
// tool_result, which wins over plain text. Tool results typically arrive in
// user-typed records, so blocks are inspected before the record type.
func classify(rec *model.RawRecord, raw []byte) (*model.LogEntry, error) {
	entry := &model.LogEntry{
		Kind:      model.KindMessage,
		Timestamp: parseTimestamp(rec.Timestamp),
		Payload:   append([]byte(nil), raw...),
	}

	switch rec.Type {
	case "user":
		entry.Role = model.RoleHuman
	case "assistant":
		entry.Role = model.RoleAgent
	default:
		if !hasToolBlock(rec.Message.Content) {
			return nil, fmt.Errorf("%w: type %q", ErrUnrecognized, rec.Type)
		}
	}

	var firstResult *model.ContentItem
	for i := range rec.Message.Content {
		item := &rec.Message.Content[i]
		switch item.Type {
		case "tool_use":
			entry.Kind = model.KindToolCall
			entry.Role = model.RoleAgent
			entry.CorrelationID = item.Id
			entry.ToolName = item.Name
			return entry, nil
		case "tool_result":
			if firstResult == nil {
				firstResult = item
			}
		case "text":
			if entry.Text == "" {
				entry.Text = item.Text
			}
		}
	}

	if firstResult != nil {
		entry.Kind = model.KindToolResult
		entry.Role = model.RoleTool
		entry.CorrelationID = firstResult.ToolUseId
		return entry, nil
	}

	if entry.Role == "" {
		return nil, fmt.Errorf("%w: type %q", ErrUnrecognized, rec.Type)
	}
	return entry, nil
}

func hasToolBlock(content model.FlexibleContent) bool {
	for _, item := range content {
		if item.Type == "tool_use" || item.Type == "tool_result" {
			return true
		}
	}
	return false
}

func parseTimestamp(ts string) time.Time {
	if ts == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return time.Time{}
		}
	}
	return t
}
