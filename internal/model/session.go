package model

import "time"

// SessionID uniquely identifies a puzzle session
type SessionID string

// OwnerID identifies the actor playing a session (a player or an anonymous client)
type OwnerID string

// PuzzleRef is an opaque reference to the puzzle content being played
type PuzzleRef string

// SessionState represents where a session is in its lifecycle
type SessionState string

const (
	SessionStateNotStarted SessionState = "not_started" // Never persisted; no record yet
	SessionStateInProgress SessionState = "in_progress"
	SessionStateCompleted  SessionState = "completed" // Terminal
)

// Valid reports whether s is a known state
func (s SessionState) Valid() bool {
	switch s {
	case SessionStateNotStarted, SessionStateInProgress, SessionStateCompleted:
		return true
	}
	return false
}

// rank orders states along the only permitted direction of travel
func (s SessionState) rank() int {
	switch s {
	case SessionStateInProgress:
		return 1
	case SessionStateCompleted:
		return 2
	default:
		return 0
	}
}

// CanTransitionTo reports whether moving from s to next is a single forward step
func (s SessionState) CanTransitionTo(next SessionState) bool {
	return next.rank() == s.rank()+1
}

// PuzzleSession is one attempt by an owner at a specific puzzle
type PuzzleSession struct {
	ID          SessionID
	Owner       OwnerID
	PuzzleRef   PuzzleRef
	State       SessionState
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// IsActive returns true while the session has not reached the terminal state
func (s *PuzzleSession) IsActive() bool {
	return s.State != SessionStateCompleted
}

// Elapsed returns completed_at (or now) minus started_at, or nil if never started
func (s *PuzzleSession) Elapsed(now time.Time) *time.Duration {
	if s.StartedAt == nil {
		return nil
	}
	end := now
	if s.CompletedAt != nil {
		end = *s.CompletedAt
	}
	d := end.Sub(*s.StartedAt)
	return &d
}

// Clone returns a deep copy so callers never share timestamp pointers
func (s *PuzzleSession) Clone() *PuzzleSession {
	c := *s
	if s.StartedAt != nil {
		t := *s.StartedAt
		c.StartedAt = &t
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// Validate checks the timestamp/state invariants of a session record
func (s *PuzzleSession) Validate() error {
	if !s.State.Valid() {
		return ErrInvalidState
	}
	started := s.State == SessionStateInProgress || s.State == SessionStateCompleted
	if (s.StartedAt != nil) != started {
		return ErrInvalidState
	}
	if (s.CompletedAt != nil) != (s.State == SessionStateCompleted) {
		return ErrInvalidState
	}
	if s.CompletedAt != nil && s.CompletedAt.Before(*s.StartedAt) {
		return ErrInvalidState
	}
	return nil
}

// SessionUpdate carries the fields a compare-and-set may change
type SessionUpdate struct {
	State       SessionState
	CompletedAt *time.Time
}

// Apply returns a copy of s with the update applied
func (u SessionUpdate) Apply(s *PuzzleSession) *PuzzleSession {
	next := s.Clone()
	next.State = u.State
	if u.CompletedAt != nil {
		t := *u.CompletedAt
		next.CompletedAt = &t
	}
	return next
}

// SessionDetail is a session plus fields derived at read time
type SessionDetail struct {
	Session *PuzzleSession
	Elapsed *time.Duration
}
