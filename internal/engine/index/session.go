package index

import (
	"sync"
	"time"

	"github.com/loglens/loglens/internal/core/model"
)

// Key identifies one session file: root/<project>/<session>.jsonl.
type Key struct {
	Project string
	Session string
}

// session holds all mutable state for one log file. Every field below mu is
// guarded by it, including the ingest serialization flags.
type session struct {
	key      Key
	filePath string

	mu           sync.Mutex
	entries      []model.LogEntry
	byteOffset   int64
	lineCount    int64
	pending      map[string]*model.LogEntry
	orphans      map[string]*model.LogEntry
	summary      string
	lastActivity time.Time
	active       bool
	unavailable  bool

	parseFailures int64
	anomalies     int64

	ingesting bool
	dirty     bool
}

func newSession(key Key, filePath string) *session {
	return &session{
		key:      key,
		filePath: filePath,
		pending:  make(map[string]*model.LogEntry),
		orphans:  make(map[string]*model.LogEntry),
		active:   true,
	}
}

// reset clears everything derived from file content. Called with mu held when
// truncation is detected.
func (s *session) reset() {
	s.entries = nil
	s.byteOffset = 0
	s.lineCount = 0
	s.pending = make(map[string]*model.LogEntry)
	s.orphans = make(map[string]*model.LogEntry)
}

// touch advances the session's activity clock. Entries without a usable
// timestamp fall back to wall time so ordering in listings stays sane.
func (s *session) touch(ts time.Time) {
	if ts.IsZero() {
		ts = time.Now()
	}
	if ts.After(s.lastActivity) {
		s.lastActivity = ts
	}
}

// ProjectSummary describes one project directory for listings.
type ProjectSummary struct {
	Name         string    `json:"name"`
	SessionCount int       `json:"sessionCount"`
	LastActivity time.Time `json:"lastActivity"`
}

// SessionSummary describes one session for listings.
type SessionSummary struct {
	ID           string    `json:"id"`
	Project      string    `json:"project"`
	Summary      string    `json:"summary,omitempty"`
	EntryCount   int       `json:"entryCount"`
	LastActivity time.Time `json:"lastActivity"`
	Active       bool      `json:"active"`
}
