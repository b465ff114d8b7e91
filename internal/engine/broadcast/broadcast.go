// Package broadcast fans ingested events out to subscribers. Publishers never
// block: a subscriber that cannot keep up loses its oldest queued events and
// is flagged as lagging.
package broadcast

import (
	"sync"

	"github.com/google/uuid"

	"github.com/loglens/loglens/internal/core/model"
	"github.com/loglens/loglens/internal/util"
)

// Target selects which events a subscription receives. The zero value is the
// global activity feed.
type Target struct {
	Project string
	Session string
}

// Global returns the target for the cross-session activity feed.
func Global() Target {
	return Target{}
}

// SessionTarget returns the target for one session's full event stream.
func SessionTarget(project, session string) Target {
	return Target{Project: project, Session: session}
}

// IsGlobal reports whether the target is the activity feed.
func (t Target) IsGlobal() bool {
	return t.Project == "" && t.Session == ""
}

// Subscription is one consumer's handle on the event stream. Events are read
// from Events(); Close releases the handle and is idempotent.
type Subscription struct {
	id     uuid.UUID
	target Target
	ch     chan model.Event

	mu      sync.Mutex
	closed  bool
	lagging bool
	dropped int64
	lastSeq int64

	unregister func()
}

// ID returns the subscription's unique handle.
func (s *Subscription) ID() uuid.UUID {
	return s.id
}

// Events returns the receive channel. It is closed by Close.
func (s *Subscription) Events() <-chan model.Event {
	return s.ch
}

// Lagging reports whether any event has been dropped because the queue was
// full. The flag is sticky.
func (s *Subscription) Lagging() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lagging
}

// Dropped returns the number of events discarded due to a full queue.
func (s *Subscription) Dropped() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close unregisters the subscription and closes its channel. Safe to call
// more than once; delivery stops immediately.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.ch)
	s.mu.Unlock()

	s.unregister()
}

// Push delivers one event directly to this subscription under the same queue
// and dedup rules as Publish. The session index uses it to seed catch-up
// history before live events start flowing.
func (s *Subscription) Push(ev model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	switch ev.Type {
	case model.EventReset:
		// After a reset the sequence space restarts from 1.
		s.lastSeq = 0
	case model.EventEntry:
		if ev.Entry != nil {
			if ev.Entry.Sequence <= s.lastSeq {
				return
			}
			s.lastSeq = ev.Entry.Sequence
		}
	}

	for {
		select {
		case s.ch <- ev:
			return
		default:
		}
		// Queue full: sacrifice the oldest queued event.
		select {
		case <-s.ch:
			s.dropped++
			s.lagging = true
		default:
		}
	}
}

// Broadcaster routes published events to the matching subscriptions.
type Broadcaster struct {
	mu        sync.RWMutex
	subs      map[uuid.UUID]*Subscription
	queueSize int
}

// New creates a broadcaster whose subscriptions buffer up to queueSize events.
func New(queueSize int) *Broadcaster {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Broadcaster{
		subs:      make(map[uuid.UUID]*Subscription),
		queueSize: queueSize,
	}
}

// Subscribe registers a new subscription for the given target.
func (b *Broadcaster) Subscribe(target Target) *Subscription {
	sub := &Subscription{
		id:     uuid.New(),
		target: target,
		ch:     make(chan model.Event, b.queueSize),
	}
	sub.unregister = func() {
		b.mu.Lock()
		delete(b.subs, sub.id)
		b.mu.Unlock()
	}

	b.mu.Lock()
	b.subs[sub.id] = sub
	b.mu.Unlock()

	util.LogDebugf("subscribed %s (project=%q session=%q)", sub.id, target.Project, target.Session)
	return sub
}

// Publish delivers ev to every matching subscription. Session subscribers get
// the full event; global subscribers get a payload-free activity notice.
// Never blocks.
func (b *Broadcaster) Publish(ev model.Event) {
	b.mu.RLock()
	snapshot := make([]*Subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		snapshot = append(snapshot, sub)
	}
	b.mu.RUnlock()

	var activity *model.Event
	for _, sub := range snapshot {
		if sub.target.IsGlobal() {
			if activity == nil {
				a := ev.Activity()
				activity = &a
			}
			sub.Push(*activity)
			continue
		}
		if sub.target.Project == ev.Project && sub.target.Session == ev.Session {
			sub.Push(ev)
		}
	}
}

// SubscriberCount returns the number of live subscriptions.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
