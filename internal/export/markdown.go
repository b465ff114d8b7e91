// Package export renders a session transcript as markdown, pairing tool
// calls with their results.
package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/loglens/loglens/internal/core/model"
)

// Markdown renders entries into a transcript document. Title falls back to
// the session id when the session never got a summary record.
func Markdown(project, session, title string, entries []model.LogEntry) string {
	if title == "" {
		title = session
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "- Project: %s\n", project)
	fmt.Fprintf(&b, "- Session: %s\n", session)
	fmt.Fprintf(&b, "- Entries: %d\n\n", len(entries))
	b.WriteString("---\n")

	for _, e := range entries {
		b.WriteString("\n")
		switch e.Kind {
		case model.KindToolCall:
			fmt.Fprintf(&b, "**Tool call: %s** (`%s`)%s\n\n", e.ToolName, e.CorrelationID, stamp(e.Timestamp))
			if input := toolInput(e); input != "" {
				fmt.Fprintf(&b, "```json\n%s\n```\n", input)
			}
		case model.KindToolResult:
			fmt.Fprintf(&b, "**Tool result** (`%s`)%s\n\n", e.CorrelationID, stamp(e.Timestamp))
			if output := toolOutput(e); output != "" {
				fmt.Fprintf(&b, "```\n%s\n```\n", output)
			}
		default:
			fmt.Fprintf(&b, "**%s**%s\n\n", speaker(e.Role), stamp(e.Timestamp))
			if e.Text != "" {
				b.WriteString(e.Text)
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}

func speaker(role model.Role) string {
	switch role {
	case model.RoleHuman:
		return "User"
	case model.RoleAgent:
		return "Assistant"
	default:
		return "System"
	}
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return " at " + t.Format("2006-01-02 15:04:05")
}

// toolInput digs the tool_use input out of the entry's raw payload.
func toolInput(e model.LogEntry) string {
	var rec model.RawRecord
	if err := sonic.Unmarshal(e.Payload, &rec); err != nil {
		return ""
	}
	for _, item := range rec.Message.Content {
		if item.Type == "tool_use" && len(item.Input) > 0 {
			return string(item.Input)
		}
	}
	return ""
}

// toolOutput digs the tool_result content out of the raw payload. Content is
// either a plain string or a list of text blocks.
func toolOutput(e model.LogEntry) string {
	var rec model.RawRecord
	if err := sonic.Unmarshal(e.Payload, &rec); err != nil {
		return ""
	}
	for _, item := range rec.Message.Content {
		if item.Type != "tool_result" {
			continue
		}
		switch content := item.Content.(type) {
		case string:
			return strings.TrimRight(content, "\n")
		case []interface{}:
			var parts []string
			for _, block := range content {
				if m, ok := block.(map[string]interface{}); ok {
					if text, ok := m["text"].(string); ok {
						parts = append(parts, text)
					}
				}
			}
			return strings.TrimRight(strings.Join(parts, "\n"), "\n")
		}
	}
	return ""
}
