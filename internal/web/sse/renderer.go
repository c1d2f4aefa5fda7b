package sse

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/mcoot/puzzlegame/internal/api/response"
	"github.com/mcoot/puzzlegame/internal/model"
	"github.com/mcoot/puzzlegame/internal/web/templates/components"
)

// SnapshotEventName carries the session state sent when a stream opens
const SnapshotEventName = "session-snapshot"

// EventData is one named SSE event
type EventData struct {
	EventName string
	Data      string
}

// Renderer converts session events to SSE payloads
type Renderer struct{}

// NewRenderer creates a new Renderer
func NewRenderer() *Renderer {
	return &Renderer{}
}

// RenderSessionStatus renders the session status component as HTML
func (r *Renderer) RenderSessionStatus(ctx context.Context, session *model.PuzzleSession, elapsed *time.Duration) (string, error) {
	var buf bytes.Buffer
	if err := components.SessionStatus(session, elapsed).Render(ctx, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderSessionEvent returns a JSON event named after the event type,
// followed by the re-rendered status block for HTML subscribers
func (r *Renderer) RenderSessionEvent(ctx context.Context, event model.SessionEvent) ([]EventData, error) {
	payload := response.SessionEventFromModel(event)
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	html, err := r.RenderSessionStatus(ctx, event.Session, event.Session.Elapsed(event.Timestamp))
	if err != nil {
		return nil, err
	}

	return []EventData{
		{EventName: string(event.Type), Data: string(data)},
		{EventName: components.StatusEventName, Data: html},
	}, nil
}

// Snapshot encodes the current session state as a ready-to-write SSE message
func (r *Renderer) Snapshot(detail *model.SessionDetail) ([]byte, error) {
	data, err := json.Marshal(response.SessionFromDetail(detail))
	if err != nil {
		return nil, err
	}
	return formatSSEMessage(SnapshotEventName, string(data)), nil
}
