package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		_, _ = fmt.Fprintln(o.w, string(data))
	} else {
		_, _ = fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case Player:
		o.printPlayer(v)
	case AuthResult:
		o.printAuthResult(v)
	case StartResult:
		o.printStartResult(v)
	case CompleteResult:
		o.printCompleteResult(v)
	case Session:
		o.printSession(v)
	case HealthResult:
		o.printHealthResult(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// Player response type (matches API)
type Player struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	IsGuest     bool   `json:"is_guest"`
}

// AuthResult combines player and token
type AuthResult struct {
	Player    Player    `json:"player"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// StartResult is the response to starting a session
type StartResult struct {
	ID        string     `json:"id"`
	State     string     `json:"state"`
	StartedAt *time.Time `json:"started_at"`
	Resumed   bool       `json:"-"`
}

// CompleteResult is the response to completing a session
type CompleteResult struct {
	ID          string     `json:"id"`
	State       string     `json:"state"`
	CompletedAt *time.Time `json:"completed_at"`
}

// Session is the full view of a session
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

// HealthResult response type
type HealthResult struct {
	Status  string `json:"status"`
	Storage string `json:"storage,omitempty"`
}

func (o *Output) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(o.w, format, args...)
}

func (o *Output) printPlayer(p Player) {
	guestStr := "no"
	if p.IsGuest {
		guestStr = "yes"
	}
	o.printf("Player: %s (%s)\n", p.DisplayName, p.ID)
	o.printf("Guest: %s\n", guestStr)
}

func (o *Output) printAuthResult(a AuthResult) {
	o.printPlayer(a.Player)
	o.printf("Token: %s\n", a.Token)
	if !a.ExpiresAt.IsZero() {
		o.printf("Expires: %s\n", formatTime(&a.ExpiresAt))
	}
}

func (o *Output) printStartResult(s StartResult) {
	if s.Resumed {
		o.printf("Resumed session %s\n", s.ID)
	} else {
		o.printf("Started session %s\n", s.ID)
	}
	o.printf("State: %s\n", s.State)
	o.printf("Started: %s\n", formatTime(s.StartedAt))
}

func (o *Output) printCompleteResult(c CompleteResult) {
	o.printf("Completed session %s\n", c.ID)
	o.printf("State: %s\n", c.State)
	o.printf("Completed: %s\n", formatTime(c.CompletedAt))
}

func (o *Output) printSession(s Session) {
	o.printf("Session: %s\n", s.ID)
	o.printf("Puzzle: %s\n", s.PuzzleRef)
	o.printf("Owner: %s\n", s.Owner)
	o.printf("State: %s\n", s.State)
	o.printf("Started: %s\n", formatTime(s.StartedAt))
	if s.CompletedAt != nil {
		o.printf("Completed: %s\n", formatTime(s.CompletedAt))
	}
	if s.ElapsedDuration != nil {
		o.printf("Elapsed: %s\n", *s.ElapsedDuration)
	}
}

func (o *Output) printHealthResult(h HealthResult) {
	o.printf("Status: %s\n", h.Status)
	if h.Storage != "" {
		o.printf("Storage: %s\n", h.Storage)
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
