// Package fixtures generates conversation JSONL files in the agent tool's
// on-disk format for engine and server tests.
package fixtures

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"
)

// Record is one JSONL line in the agent tool's format.
type Record struct {
	Type      string   `json:"type"`
	Summary   string   `json:"summary,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
	Uuid      string   `json:"uuid,omitempty"`
	SessionId string   `json:"sessionId,omitempty"`
	Message   *Message `json:"message,omitempty"`
}

// Message mirrors the wire shape: content is either a plain string or a list
// of typed blocks.
type Message struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

// Block is one element of an array-form content field.
type Block struct {
	Type      string      `json:"type"`
	Text      string      `json:"text,omitempty"`
	Id        string      `json:"id,omitempty"`
	Name      string      `json:"name,omitempty"`
	Input     interface{} `json:"input,omitempty"`
	ToolUseId string      `json:"tool_use_id,omitempty"`
	Content   interface{} `json:"content,omitempty"`
}

// UserMessage builds a plain user record.
func UserMessage(text string, at time.Time) Record {
	return Record{
		Type:      "user",
		Timestamp: at.Format(time.RFC3339),
		Message:   &Message{Role: "user", Content: text},
	}
}

// AssistantText builds an assistant record with a single text block.
func AssistantText(text string, at time.Time) Record {
	return Record{
		Type:      "assistant",
		Timestamp: at.Format(time.RFC3339),
		Message: &Message{
			Role:    "assistant",
			Content: []Block{{Type: "text", Text: text}},
		},
	}
}

// ToolCall builds an assistant record carrying one tool_use block.
func ToolCall(id, name string, input interface{}, at time.Time) Record {
	return Record{
		Type:      "assistant",
		Timestamp: at.Format(time.RFC3339),
		Message: &Message{
			Role:    "assistant",
			Content: []Block{{Type: "tool_use", Id: id, Name: name, Input: input}},
		},
	}
}

// ToolResult builds the user-typed record the tool writes for a result.
func ToolResult(toolUseId string, content interface{}, at time.Time) Record {
	return Record{
		Type:      "user",
		Timestamp: at.Format(time.RFC3339),
		Message: &Message{
			Role:    "user",
			Content: []Block{{Type: "tool_result", ToolUseId: toolUseId, Content: content}},
		},
	}
}

// Summary builds a summary record naming the session.
func Summary(title string) Record {
	return Record{Type: "summary", Summary: title}
}

// Generator writes session files under a root directory laid out as
// <root>/<project>/<session>.jsonl.
type Generator struct {
	root string
}

// NewGenerator creates a generator rooted at root.
func NewGenerator(root string) *Generator {
	return &Generator{root: root}
}

// Root returns the generator's root directory.
func (g *Generator) Root() string {
	return g.root
}

// SessionPath returns the on-disk path for a session, creating the project
// directory.
func (g *Generator) SessionPath(project, session string) (string, error) {
	dir := filepath.Join(g.root, project)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return filepath.Join(dir, session+".jsonl"), nil
}

// WriteSession creates (or overwrites) a session file with the given records.
func (g *Generator) WriteSession(project, session string, records ...Record) (string, error) {
	path, err := g.SessionPath(project, session)
	if err != nil {
		return "", err
	}
	data, err := encode(records)
	if err != nil {
		return "", err
	}
	return path, os.WriteFile(path, data, 0644)
}

// Append adds records to an existing session file.
func (g *Generator) Append(project, session string, records ...Record) error {
	path, err := g.SessionPath(project, session)
	if err != nil {
		return err
	}
	data, err := encode(records)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(data)
	return err
}

// AppendRaw appends raw bytes verbatim, for malformed or partial lines.
func (g *Generator) AppendRaw(project, session, raw string) error {
	path, err := g.SessionPath(project, session)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(raw)
	return err
}

// Conversation returns a small realistic exchange: a user question, an
// assistant reply, one tool round-trip, and a closing answer.
func Conversation(start time.Time) []Record {
	return []Record{
		UserMessage("what is in the current directory?", start),
		AssistantText("Let me check.", start.Add(1*time.Second)),
		ToolCall("toolu_01", "Bash", map[string]string{"command": "ls"}, start.Add(2*time.Second)),
		ToolResult("toolu_01", "main.go\ngo.mod\n", start.Add(3*time.Second)),
		AssistantText("The directory contains main.go and go.mod.", start.Add(4*time.Second)),
	}
}

func encode(records []Record) ([]byte, error) {
	var out []byte
	for _, rec := range records {
		line, err := sonic.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("encode fixture record: %w", err)
		}
		out = append(out, line...)
		out = append(out, '\n')
	}
	return out, nil
}
