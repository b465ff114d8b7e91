package model

import "time"

// EventType discriminates the events delivered to subscribers.
type EventType string

const (
	// EventEntry carries one newly ingested log entry.
	EventEntry EventType = "entry"
	// EventInteraction carries a completed tool call/result pairing.
	EventInteraction EventType = "interaction"
	// EventReset tells subscribers the session file was truncated or
	// rewritten; previously delivered entries must be discarded.
	EventReset EventType = "reset"
	// EventActivity is the lightweight notice sent to the global feed.
	EventActivity EventType = "activity"
)

// Event is what the broadcaster delivers to subscribers.
type Event struct {
	Type        EventType    `json:"type"`
	Project     string       `json:"project"`
	Session     string       `json:"session"`
	Entry       *LogEntry    `json:"entry,omitempty"`
	Interaction *Interaction `json:"interaction,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
}

// Activity strips an event down to the notice delivered on the global feed.
func (e Event) Activity() Event {
	return Event{
		Type:      EventActivity,
		Project:   e.Project,
		Session:   e.Session,
		Timestamp: e.Timestamp,
	}
}
