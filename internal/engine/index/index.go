// Package index maintains per-session conversation state: ordered entries,
// byte-offset bookmarks for incremental reads, and tool call/result
// reconciliation. It is the single writer of session state; the watcher and
// scanner only hand it file paths.
package index

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/loglens/loglens/internal/core/model"
	"github.com/loglens/loglens/internal/data/parser"
	"github.com/loglens/loglens/internal/engine/broadcast"
	"github.com/loglens/loglens/internal/util"
)

var (
	// ErrProjectNotFound is returned for queries naming an unknown project.
	ErrProjectNotFound = errors.New("project not found")
	// ErrSessionNotFound is returned for queries naming an unknown or
	// removed session.
	ErrSessionNotFound = errors.New("session not found")
)

// Publisher receives every event the index emits. Satisfied by
// *broadcast.Broadcaster.
type Publisher interface {
	Publish(model.Event)
}

// Index is the session registry. All methods are safe for concurrent use.
type Index struct {
	root string
	pub  Publisher

	mu       sync.RWMutex
	sessions map[Key]*session
}

// New creates an index rooted at root. Events flow to pub.
func New(root string, pub Publisher) *Index {
	return &Index{
		root:     root,
		pub:      pub,
		sessions: make(map[Key]*session),
	}
}

// keyForPath maps <root>/<project>/<session>.jsonl onto a Key. Paths outside
// that shape (lock files, nested dirs, non-jsonl) are not session files.
func (ix *Index) keyForPath(path string) (Key, bool) {
	rel, err := filepath.Rel(ix.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return Key{}, false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 2 {
		return Key{}, false
	}
	name := parts[1]
	if !strings.HasSuffix(name, ".jsonl") {
		return Key{}, false
	}
	return Key{Project: parts[0], Session: strings.TrimSuffix(name, ".jsonl")}, true
}

// IngestFile reads whatever the file at path has appended since the last
// ingest. At most one ingest runs per session; concurrent calls fold into a
// rerun via the dirty flag. Non-session paths are ignored.
func (ix *Index) IngestFile(path string) error {
	key, ok := ix.keyForPath(path)
	if !ok {
		util.LogDebugf("ignoring non-session path %s", path)
		return nil
	}

	ix.mu.Lock()
	s, exists := ix.sessions[key]
	if !exists {
		s = newSession(key, path)
		ix.sessions[key] = s
	}
	ix.mu.Unlock()

	s.mu.Lock()
	if s.ingesting {
		s.dirty = true
		s.mu.Unlock()
		return nil
	}
	s.ingesting = true
	s.mu.Unlock()

	var err error
	for {
		err = ix.ingestOnce(s)

		s.mu.Lock()
		if !s.dirty {
			s.ingesting = false
			s.mu.Unlock()
			return err
		}
		s.dirty = false
		s.mu.Unlock()
	}
}

// ingestOnce performs one incremental read pass. It holds the session lock
// for the whole pass so catch-up subscription sees a consistent boundary
// between replayed history and live events.
func (ix *Index) ingestOnce(s *session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Stat(s.filePath)
	if err != nil {
		s.unavailable = true
		return fmt.Errorf("stat %s: %w", s.filePath, err)
	}
	s.unavailable = false
	s.active = true

	size := info.Size()
	if size < s.byteOffset {
		util.LogWarnf("session %s/%s truncated (%d < %d), rebuilding",
			s.key.Project, s.key.Session, size, s.byteOffset)
		s.reset()
		ix.pub.Publish(model.Event{
			Type:      model.EventReset,
			Project:   s.key.Project,
			Session:   s.key.Session,
			Timestamp: time.Now(),
		})
	}
	if size == s.byteOffset {
		return nil
	}

	f, err := os.Open(s.filePath)
	if err != nil {
		s.unavailable = true
		return fmt.Errorf("open %s: %w", s.filePath, err)
	}
	defer f.Close()

	if _, err := f.Seek(s.byteOffset, io.SeekStart); err != nil {
		s.unavailable = true
		return fmt.Errorf("seek %s: %w", s.filePath, err)
	}
	buf, err := io.ReadAll(io.LimitReader(f, size-s.byteOffset))
	if err != nil {
		s.unavailable = true
		return fmt.Errorf("read %s: %w", s.filePath, err)
	}

	// Only whole lines are consumed; a write in progress stays in the file
	// until its newline lands.
	lastNL := bytes.LastIndexByte(buf, '\n')
	if lastNL < 0 {
		return nil
	}
	consumed := buf[:lastNL+1]
	s.byteOffset += int64(len(consumed))

	ix.consume(s, consumed)
	return nil
}

// consume parses the completed lines and publishes the resulting events.
// Called with the session lock held.
func (ix *Index) consume(s *session, data []byte) {
	lines := bytes.Split(bytes.TrimSuffix(data, []byte("\n")), []byte("\n"))
	for _, line := range lines {
		s.lineCount++

		entry, err := parser.Parse(line)
		if err != nil {
			switch {
			case errors.Is(err, parser.ErrEmptyLine):
			case errors.Is(err, parser.ErrUnrecognized):
				if summary, ok := parser.ExtractSummary(line); ok {
					s.summary = summary
				}
			default:
				s.parseFailures++
				util.LogWarnf("session %s/%s line %d unparseable: %v",
					s.key.Project, s.key.Session, s.lineCount, err)
			}
			continue
		}

		entry.Sequence = s.lineCount
		s.entries = append(s.entries, *entry)
		s.touch(entry.Timestamp)

		ix.pub.Publish(model.Event{
			Type:      model.EventEntry,
			Project:   s.key.Project,
			Session:   s.key.Session,
			Entry:     entry,
			Timestamp: time.Now(),
		})

		if interaction := s.reconcile(entry); interaction != nil {
			ix.pub.Publish(model.Event{
				Type:        model.EventInteraction,
				Project:     s.key.Project,
				Session:     s.key.Session,
				Interaction: interaction,
				Timestamp:   time.Now(),
			})
		}
	}
}

// reconcile pairs tool calls with their results. A result arriving before its
// call is parked and bound late; a duplicate call id overwrites the pending
// slot and counts as an anomaly. Returns the completed pairing, if any.
func (s *session) reconcile(e *model.LogEntry) *model.Interaction {
	if e.CorrelationID == "" {
		return nil
	}
	switch e.Kind {
	case model.KindToolCall:
		if _, dup := s.pending[e.CorrelationID]; dup {
			s.anomalies++
			util.LogWarnf("session %s/%s duplicate tool call id %s",
				s.key.Project, s.key.Session, e.CorrelationID)
		}
		if result, ok := s.orphans[e.CorrelationID]; ok {
			delete(s.orphans, e.CorrelationID)
			return &model.Interaction{
				CorrelationID: e.CorrelationID,
				ToolName:      e.ToolName,
				Call:          *e,
				Result:        *result,
			}
		}
		s.pending[e.CorrelationID] = e
	case model.KindToolResult:
		if call, ok := s.pending[e.CorrelationID]; ok {
			delete(s.pending, e.CorrelationID)
			return &model.Interaction{
				CorrelationID: e.CorrelationID,
				ToolName:      call.ToolName,
				Call:          *call,
				Result:        *e,
			}
		}
		s.orphans[e.CorrelationID] = e
	}
	return nil
}

// MarkRemoved flips the session inactive. Entries stay in memory for
// already-attached subscribers; new queries report not-found.
func (ix *Index) MarkRemoved(path string) {
	key, ok := ix.keyForPath(path)
	if !ok {
		return
	}
	ix.mu.RLock()
	s := ix.sessions[key]
	ix.mu.RUnlock()
	if s == nil {
		return
	}

	s.mu.Lock()
	s.active = false
	s.mu.Unlock()
	util.LogInfof("session %s/%s removed", key.Project, key.Session)
}

// ListProjects returns every known project, most recently active first.
func (ix *Index) ListProjects() []ProjectSummary {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	byName := make(map[string]*ProjectSummary)
	for key, s := range ix.sessions {
		s.mu.Lock()
		active, last := s.active, s.lastActivity
		s.mu.Unlock()
		if !active {
			continue
		}

		p, ok := byName[key.Project]
		if !ok {
			p = &ProjectSummary{Name: key.Project}
			byName[key.Project] = p
		}
		p.SessionCount++
		if last.After(p.LastActivity) {
			p.LastActivity = last
		}
	}

	out := make([]ProjectSummary, 0, len(byName))
	for _, p := range byName {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastActivity.Equal(out[j].LastActivity) {
			return out[i].LastActivity.After(out[j].LastActivity)
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// ListSessions returns the project's sessions, most recently active first.
// Removed sessions are included with Active=false.
func (ix *Index) ListSessions(project string) ([]SessionSummary, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var out []SessionSummary
	for key, s := range ix.sessions {
		if key.Project != project {
			continue
		}
		s.mu.Lock()
		out = append(out, SessionSummary{
			ID:           key.Session,
			Project:      key.Project,
			Summary:      s.summary,
			EntryCount:   len(s.entries),
			LastActivity: s.lastActivity,
			Active:       s.active,
		})
		s.mu.Unlock()
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, project)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastActivity.Equal(out[j].LastActivity) {
			return out[i].LastActivity.After(out[j].LastActivity)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// GetEntries returns a copy of the session's entries in sequence order.
func (ix *Index) GetEntries(project, sessionID string) ([]model.LogEntry, error) {
	s, err := ix.lookup(project, sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return nil, fmt.Errorf("%w: %s/%s", ErrSessionNotFound, project, sessionID)
	}
	out := make([]model.LogEntry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

// SubscribeSession registers a session subscription, optionally replaying
// history after the given sequence cursor. Registration and replay happen
// under the session lock, so the subscriber sees no gap and no duplicate
// around the attach point.
func (ix *Index) SubscribeSession(b *broadcast.Broadcaster, project, sessionID string, from *int64) (*broadcast.Subscription, error) {
	s, err := ix.lookup(project, sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return nil, fmt.Errorf("%w: %s/%s", ErrSessionNotFound, project, sessionID)
	}

	sub := b.Subscribe(broadcast.SessionTarget(project, sessionID))
	if from != nil {
		for i := range s.entries {
			if s.entries[i].Sequence <= *from {
				continue
			}
			entry := s.entries[i]
			sub.Push(model.Event{
				Type:      model.EventEntry,
				Project:   project,
				Session:   sessionID,
				Entry:     &entry,
				Timestamp: time.Now(),
			})
		}
	}
	return sub, nil
}

// Stats reports the session's bookkeeping counters.
type Stats struct {
	ByteOffset    int64
	EntryCount    int
	ParseFailures int64
	Anomalies     int64
	PendingCalls  int
	OrphanResults int
	Unavailable   bool
}

// SessionStats returns counters for one session, removed or not.
func (ix *Index) SessionStats(project, sessionID string) (Stats, error) {
	s, err := ix.lookup(project, sessionID)
	if err != nil {
		return Stats{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		ByteOffset:    s.byteOffset,
		EntryCount:    len(s.entries),
		ParseFailures: s.parseFailures,
		Anomalies:     s.anomalies,
		PendingCalls:  len(s.pending),
		OrphanResults: len(s.orphans),
		Unavailable:   s.unavailable,
	}, nil
}

func (ix *Index) lookup(project, sessionID string) (*session, error) {
	ix.mu.RLock()
	s := ix.sessions[Key{Project: project, Session: sessionID}]
	ix.mu.RUnlock()
	if s == nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrSessionNotFound, project, sessionID)
	}
	return s, nil
}
