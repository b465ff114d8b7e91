package export

import (
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loglens/loglens/internal/core/model"
	"github.com/loglens/loglens/internal/data/parser"
	"github.com/loglens/loglens/internal/testing/fixtures"
)

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

// parseAll runs fixture records through the real parser so the exported
// entries carry realistic payloads.
func parseAll(t *testing.T, records []fixtures.Record) []model.LogEntry {
	t.Helper()
	var out []model.LogEntry
	for i, rec := range records {
		line, err := sonic.Marshal(rec)
		require.NoError(t, err)
		entry, err := parser.Parse(line)
		require.NoError(t, err)
		entry.Sequence = int64(i + 1)
		out = append(out, *entry)
	}
	return out
}

func TestMarkdownRendersConversation(t *testing.T) {
	entries := parseAll(t, fixtures.Conversation(t0))

	doc := Markdown("webapp", "sess-1", "Investigate directory", entries)

	assert.Contains(t, doc, "# Investigate directory")
	assert.Contains(t, doc, "- Project: webapp")
	assert.Contains(t, doc, "- Session: sess-1")
	assert.Contains(t, doc, "- Entries: 5")
	assert.Contains(t, doc, "**User** at 2024-03-01 10:00:00")
	assert.Contains(t, doc, "what is in the current directory?")
	assert.Contains(t, doc, "**Tool call: Bash** (`toolu_01`)")
	assert.Contains(t, doc, `"command":"ls"`)
	assert.Contains(t, doc, "**Tool result** (`toolu_01`)")
	assert.Contains(t, doc, "main.go\ngo.mod")
}

func TestMarkdownFallsBackToSessionID(t *testing.T) {
	doc := Markdown("webapp", "sess-1", "", nil)

	assert.Contains(t, doc, "# sess-1")
	assert.Contains(t, doc, "- Entries: 0")
}

func TestMarkdownHandlesMissingTimestamps(t *testing.T) {
	entries := []model.LogEntry{{
		Sequence: 1,
		Role:     model.RoleHuman,
		Kind:     model.KindMessage,
		Text:     "hello",
	}}

	doc := Markdown("webapp", "sess-1", "", entries)

	assert.Contains(t, doc, "**User**\n\nhello")
}
