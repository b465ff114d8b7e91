// Package scanner discovers session files under the root directory. It runs
// at startup, on demand, and as the periodic fallback when the filesystem
// watcher is down. Rescans are idempotent: the index's byte offsets make
// already-ingested files no-ops.
package scanner

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/loglens/loglens/internal/util"
)

// Ingester consumes discovered file paths. Satisfied by *index.Index.
type Ingester interface {
	IngestFile(path string) error
}

// Scanner walks the root for <project>/<session>.jsonl files.
type Scanner struct {
	root string
	sink Ingester
}

// New creates a scanner feeding sink.
func New(root string, sink Ingester) *Scanner {
	return &Scanner{root: root, sink: sink}
}

// Scan walks the root and ingests every session file found. Unreadable
// entries are skipped; per-file ingest failures are logged and do not stop
// the walk.
func (s *Scanner) Scan() error {
	start := time.Now()
	var found, failed int

	err := filepath.Walk(s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if path == s.root {
				return err
			}
			util.LogDebugf("scan skipping %s: %v", path, err)
			return nil
		}
		if info.IsDir() || !strings.HasSuffix(strings.ToLower(path), ".jsonl") {
			return nil
		}

		found++
		if err := s.sink.IngestFile(path); err != nil {
			failed++
			util.LogWarnf("scan ingest %s: %v", path, err)
		}
		return nil
	})

	util.LogDebugf("scan completed in %v: %d session files, %d failed",
		time.Since(start), found, failed)
	return err
}
