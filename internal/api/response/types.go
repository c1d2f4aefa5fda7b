package response

import (
	"time"

	"github.com/mcoot/puzzlegame/internal/model"
	"github.com/mcoot/puzzlegame/internal/services/auth"
)

// Player represents a player in API responses
type Player struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	IsGuest     bool   `json:"is_guest"`
}

// PlayerFromModel converts a model.Player to a response Player
func PlayerFromModel(p *model.Player) Player {
	return Player{
		ID:          string(p.ID),
		DisplayName: p.DisplayName,
		IsGuest:     p.IsGuest,
	}
}

// AuthResponse is the response for authentication endpoints
type AuthResponse struct {
	Player    Player    `json:"player"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuthResponseFromToken creates an AuthResponse from a login token
func AuthResponseFromToken(t *auth.Token) AuthResponse {
	return AuthResponse{
		Player:    PlayerFromModel(&t.Player),
		Token:     t.Value,
		ExpiresAt: t.ExpiresAt,
	}
}

// StartSession is the response for starting a session
type StartSession struct {
	ID        string     `json:"id"`
	State     string     `json:"state"`
	StartedAt *time.Time `json:"started_at"`
}

// StartSessionFromModel converts the session returned by Start
func StartSessionFromModel(s *model.PuzzleSession) StartSession {
	return StartSession{
		ID:        string(s.ID),
		State:     string(s.State),
		StartedAt: s.StartedAt,
	}
}

// CompleteSession is the response for completing a session
type CompleteSession struct {
	ID          string     `json:"id"`
	State       string     `json:"state"`
	CompletedAt *time.Time `json:"completed_at"`
}

// CompleteSessionFromModel converts the session returned by Complete
func CompleteSessionFromModel(s *model.PuzzleSession) CompleteSession {
	return CompleteSession{
		ID:          string(s.ID),
		State:       string(s.State),
		CompletedAt: s.CompletedAt,
	}
}

// Session is the full view of a session with its derived elapsed time
type Session struct {
	ID              string     `json:"id"`
	Owner           string     `json:"owner"`
	PuzzleRef       string     `json:"puzzle_ref"`
	State           string     `json:"state"`
	StartedAt       *time.Time `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at"`
	ElapsedDuration *string    `json:"elapsed_duration"`
	ElapsedSeconds  *float64   `json:"elapsed_seconds"`
}

// SessionFromDetail converts a model.SessionDetail
func SessionFromDetail(d *model.SessionDetail) Session {
	s := d.Session
	resp := Session{
		ID:          string(s.ID),
		Owner:       string(s.Owner),
		PuzzleRef:   string(s.PuzzleRef),
		State:       string(s.State),
		StartedAt:   s.StartedAt,
		CompletedAt: s.CompletedAt,
	}
	if d.Elapsed != nil {
		duration := d.Elapsed.String()
		seconds := d.Elapsed.Seconds()
		resp.ElapsedDuration = &duration
		resp.ElapsedSeconds = &seconds
	}
	return resp
}

// SessionEvent is the JSON payload of a session event stream message
type SessionEvent struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Session   Session   `json:"session"`
}

// SessionEventFromModel converts an event, deriving elapsed time at the event timestamp
func SessionEventFromModel(e model.SessionEvent) SessionEvent {
	return SessionEvent{
		Type:      string(e.Type),
		Timestamp: e.Timestamp,
		Session: SessionFromDetail(&model.SessionDetail{
			Session: e.Session,
			Elapsed: e.Session.Elapsed(e.Timestamp),
		}),
	}
}

// Health is the response for the health endpoint
type Health struct {
	Status  string `json:"status"`
	Storage string `json:"storage,omitempty"`
}
