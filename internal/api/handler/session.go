package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/puzzlegame/internal/api/middleware"
	"github.com/mcoot/puzzlegame/internal/api/request"
	"github.com/mcoot/puzzlegame/internal/api/response"
	ownermw "github.com/mcoot/puzzlegame/internal/middleware"
	"github.com/mcoot/puzzlegame/internal/model"
	"github.com/mcoot/puzzlegame/internal/services/lifecycle"
	"github.com/mcoot/puzzlegame/internal/web/sse"
)

// SessionHandler handles puzzle session endpoints
type SessionHandler struct {
	manager    *lifecycle.Manager
	hubManager *sse.HubManager
	renderer   *sse.Renderer
	logger     *slog.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(manager *lifecycle.Manager, hubManager *sse.HubManager, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		manager:    manager,
		hubManager: hubManager,
		renderer:   sse.NewRenderer(),
		logger:     logger,
	}
}

// Start handles POST /api/v1/start/
// Returns 201 when a session was created and 200 when an in-progress one was reused.
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req request.StartSessionRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	if req.PuzzleRef == "" {
		WriteError(w, NewInvalidRequestError("puzzle_ref is required"))
		return
	}

	owner := resolveOwner(r, model.OwnerID(req.Owner))
	if owner == "" {
		WriteError(w, NewInvalidRequestError("owner could not be resolved"))
		return
	}

	result, err := h.manager.Start(r.Context(), owner, model.PuzzleRef(req.PuzzleRef))
	if err != nil {
		WriteError(w, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	response.JSON(w, status, response.StartSessionFromModel(result.Session))
}

// Complete handles POST /api/v1/complete/
func (h *SessionHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req request.CompleteSessionRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	if req.ID == "" {
		WriteError(w, NewInvalidRequestError("id is required"))
		return
	}

	session, err := h.manager.Complete(r.Context(), model.SessionID(req.ID))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.CompleteSessionFromModel(session))
}

// Detail handles GET /api/v1/sessions/{id}/
func (h *SessionHandler) Detail(w http.ResponseWriter, r *http.Request) {
	id := model.SessionID(mux.Vars(r)["id"])

	detail, err := h.manager.Detail(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.SessionFromDetail(detail))
}

// Events handles GET /api/v1/sessions/{id}/events
// Streams a snapshot followed by every transition of the session. Streams
// for completed sessions end after the snapshot.
func (h *SessionHandler) Events(w http.ResponseWriter, r *http.Request) {
	id := model.SessionID(mux.Vars(r)["id"])

	detail, err := h.manager.Detail(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}

	if detail.Session.State == model.SessionStateCompleted {
		snapshot, err := h.renderer.Snapshot(detail)
		if err != nil {
			WriteError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(snapshot)
		return
	}

	hub := h.hubManager.GetOrCreateHub(id)
	subscriber := string(resolveOwner(r, ""))

	sse.ServeSSE(w, r, hub, subscriber, func() []byte {
		// Re-read so the snapshot is at least as new as the registration
		latest, err := h.manager.Detail(r.Context(), id)
		if err != nil {
			h.logger.Warn("sse snapshot read failed",
				slog.String("session_id", string(id)),
				slog.Any("error", err))
			latest = detail
		}
		snapshot, err := h.renderer.Snapshot(latest)
		if err != nil {
			return nil
		}
		return snapshot
	})
}

// resolveOwner picks the session owner: authenticated player, then the
// explicit owner, then the anonymous owner cookie
func resolveOwner(r *http.Request, explicit model.OwnerID) model.OwnerID {
	if player := middleware.GetPlayer(r.Context()); player != nil {
		return player.OwnerID()
	}
	if explicit != "" {
		return explicit
	}
	return ownermw.GetOwner(r.Context())
}
