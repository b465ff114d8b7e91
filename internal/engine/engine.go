// Package engine wires the scanner, watcher bridge, session index and
// broadcaster into one runnable unit and exposes the query/subscribe API the
// outer surfaces consume.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/loglens/loglens/internal/config"
	"github.com/loglens/loglens/internal/core/model"
	"github.com/loglens/loglens/internal/engine/broadcast"
	"github.com/loglens/loglens/internal/engine/index"
	"github.com/loglens/loglens/internal/engine/scanner"
	"github.com/loglens/loglens/internal/engine/watch"
	"github.com/loglens/loglens/internal/util"
)

// Engine is the live ingestion engine. Construct with New, start with Run.
type Engine struct {
	cfg         config.Config
	broadcaster *broadcast.Broadcaster
	index       *index.Index
	scanner     *scanner.Scanner
}

// New assembles an engine from cfg. Nothing runs until Run is called, but
// queries and on-demand scans work immediately.
func New(cfg config.Config) *Engine {
	b := broadcast.New(cfg.QueueSize)
	ix := index.New(cfg.Root, b)
	return &Engine{
		cfg:         cfg,
		broadcaster: b,
		index:       ix,
		scanner:     scanner.New(cfg.Root, ix),
	}
}

// Run performs the initial scan, then consumes watcher events and runs the
// periodic rescan until ctx is cancelled. A watcher that cannot start or
// stops later is not fatal: the rescan keeps the index moving, just slower.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.scanner.Scan(); err != nil {
		util.LogWarnf("initial scan: %v", err)
	}

	bridge, err := watch.New(e.cfg.Root, e.cfg.DebounceWindow)
	if err != nil {
		util.LogErrorf("file watcher unavailable, running on rescans only: %v", err)
	} else {
		defer bridge.Close()
	}

	g, ctx := errgroup.WithContext(ctx)

	if bridge != nil {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case ev := <-bridge.Events():
					e.dispatch(ev)
				case <-bridge.Failed():
					util.LogWarn("watcher bridge stopped, periodic rescan is now the only update source")
					return nil
				}
			}
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(e.cfg.RescanInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := e.scanner.Scan(); err != nil {
					util.LogWarnf("periodic rescan: %v", err)
				}
			}
		}
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (e *Engine) dispatch(ev watch.FileEvent) {
	switch ev.Kind {
	case watch.Created, watch.Modified:
		if err := e.index.IngestFile(ev.Path); err != nil {
			util.LogWarnf("ingest %s: %v", ev.Path, err)
		}
	case watch.Removed, watch.Renamed:
		e.index.MarkRemoved(ev.Path)
	}
}

// Rescan walks the root on demand. Idempotent.
func (e *Engine) Rescan() error {
	return e.scanner.Scan()
}

// ListProjects returns known projects, most recently active first.
func (e *Engine) ListProjects() []index.ProjectSummary {
	return e.index.ListProjects()
}

// ListSessions returns a project's sessions, most recently active first.
func (e *Engine) ListSessions(project string) ([]index.SessionSummary, error) {
	return e.index.ListSessions(project)
}

// GetEntries returns a session's entries in sequence order.
func (e *Engine) GetEntries(project, session string) ([]model.LogEntry, error) {
	return e.index.GetEntries(project, session)
}

// Subscribe attaches to one session's full event stream, or to the global
// activity feed when project and session are empty. A non-nil from replays
// entries after that sequence before live delivery starts.
func (e *Engine) Subscribe(project, session string, from *int64) (*broadcast.Subscription, error) {
	if project == "" && session == "" {
		return e.broadcaster.Subscribe(broadcast.Global()), nil
	}
	if project == "" || session == "" {
		return nil, fmt.Errorf("subscribe needs both project and session, or neither")
	}
	return e.index.SubscribeSession(e.broadcaster, project, session, from)
}
