package model

import "time"

// EventType identifies the type of session event
type EventType string

const (
	EventSessionStarted   EventType = "session-started"
	EventSessionCompleted EventType = "session-completed"
)

// SessionEvent is published after a session transition is persisted
type SessionEvent struct {
	Type      EventType
	Timestamp time.Time
	Session   *PuzzleSession
}
