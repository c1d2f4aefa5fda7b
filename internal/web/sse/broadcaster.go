package sse

import (
	"context"
	"log/slog"

	"github.com/mcoot/puzzlegame/internal/model"
)

// Broadcaster publishes session events to the hub watching that session
type Broadcaster struct {
	hubManager *HubManager
	renderer   *Renderer
	logger     *slog.Logger
}

// NewBroadcaster creates a new Broadcaster
func NewBroadcaster(hubManager *HubManager, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		hubManager: hubManager,
		renderer:   NewRenderer(),
		logger:     logger.With(slog.String("component", "sse-broadcaster")),
	}
}

// PublishSessionEvent sends event to every client watching its session.
// Sessions nobody is watching are skipped.
func (b *Broadcaster) PublishSessionEvent(ctx context.Context, event model.SessionEvent) {
	if event.Session == nil {
		return
	}
	hub := b.hubManager.GetHub(event.Session.ID)
	if hub == nil {
		return
	}

	events, err := b.renderer.RenderSessionEvent(ctx, event)
	if err != nil {
		b.logger.Error("sse failed to render session event",
			slog.String("session_id", string(event.Session.ID)),
			slog.String("event", string(event.Type)),
			slog.Any("error", err))
		return
	}

	for _, e := range events {
		hub.BroadcastEvent(e.EventName, e.Data)
	}
}
