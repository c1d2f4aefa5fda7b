package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/a-h/templ"

	"github.com/mcoot/puzzlegame/internal/api/apierr"
	"github.com/mcoot/puzzlegame/internal/model"
	"github.com/mcoot/puzzlegame/internal/services/catalog"
	"github.com/mcoot/puzzlegame/internal/services/lifecycle"
	"github.com/mcoot/puzzlegame/internal/web/middleware"
	"github.com/mcoot/puzzlegame/internal/web/templates/layout"
	"github.com/mcoot/puzzlegame/internal/web/templates/pages"
)

// PuzzleHandler serves the puzzle pages and their start/complete forms
type PuzzleHandler struct {
	catalog *catalog.Catalog
	manager *lifecycle.Manager
	logger  *slog.Logger
}

// NewPuzzleHandler creates a new PuzzleHandler
func NewPuzzleHandler(catalog *catalog.Catalog, manager *lifecycle.Manager, logger *slog.Logger) *PuzzleHandler {
	return &PuzzleHandler{
		catalog: catalog,
		manager: manager,
		logger:  logger,
	}
}

// View renders the puzzle list, or with ?ref= the puzzle and the viewer's session.
// ?session= shows a specific session of the viewer's, e.g. one just completed.
func (h *PuzzleHandler) View(w http.ResponseWriter, r *http.Request) {
	ref := model.PuzzleRef(r.URL.Query().Get("ref"))
	if ref == "" {
		h.render(w, r, http.StatusOK, pages.PuzzleList(pages.PuzzleListData{
			PageData: h.pageData(r, "Puzzles"),
			Puzzles:  h.catalog.List(),
		}))
		return
	}

	puzzle, err := h.catalog.Get(ref)
	if err != nil {
		h.renderError(w, r, http.StatusNotFound, "Puzzle not found")
		return
	}

	owner := middleware.GetOwner(r.Context())
	detail, err := h.sessionFor(r, owner, ref)
	if err != nil {
		h.logger.Error("failed to load session",
			slog.String("owner", string(owner)),
			slog.String("puzzle_ref", string(ref)),
			slog.Any("error", err))
		h.renderError(w, r, apierr.StatusCode(err), "Could not load your session")
		return
	}

	data := pages.PuzzleData{
		PageData: h.pageData(r, puzzle.Title),
		Puzzle:   puzzle,
	}
	if detail != nil {
		data.Session = detail.Session
		data.Elapsed = detail.Elapsed
	}
	h.render(w, r, http.StatusOK, pages.Puzzle(data))
}

// sessionFor picks the session to show: the ?session= one if it belongs to
// owner and ref, else the owner's active session. Returns nil if neither exists.
func (h *PuzzleHandler) sessionFor(r *http.Request, owner model.OwnerID, ref model.PuzzleRef) (*model.SessionDetail, error) {
	if owner == "" {
		return nil, nil
	}

	if id := r.URL.Query().Get("session"); id != "" {
		detail, err := h.manager.Detail(r.Context(), model.SessionID(id))
		switch {
		case err == nil && detail.Session.Owner == owner && detail.Session.PuzzleRef == ref:
			return detail, nil
		case err != nil && !errors.Is(err, model.ErrSessionNotFound):
			return nil, err
		}
	}

	detail, err := h.manager.Active(r.Context(), owner, ref)
	if errors.Is(err, model.ErrSessionNotFound) {
		return nil, nil
	}
	return detail, err
}

// Start begins or resumes the viewer's session and redirects to the puzzle
func (h *PuzzleHandler) Start(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderError(w, r, http.StatusBadRequest, "Invalid form data")
		return
	}

	ref := model.PuzzleRef(r.FormValue("ref"))
	if !h.catalog.Has(ref) {
		h.renderError(w, r, http.StatusNotFound, "Puzzle not found")
		return
	}

	owner := middleware.GetOwner(r.Context())
	result, err := h.manager.Start(r.Context(), owner, ref)
	if err != nil {
		h.renderError(w, r, apierr.StatusCode(err), "Could not start the puzzle")
		return
	}

	if !result.Created {
		middleware.SetFlash(w, "info", "Resuming your puzzle")
	}
	http.Redirect(w, r, pages.PuzzleURL(ref), http.StatusSeeOther)
}

// Complete finishes the viewer's session and redirects to its result
func (h *PuzzleHandler) Complete(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderError(w, r, http.StatusBadRequest, "Invalid form data")
		return
	}

	id := model.SessionID(r.FormValue("id"))
	if id == "" {
		h.renderError(w, r, http.StatusBadRequest, "Session id is required")
		return
	}

	owner := middleware.GetOwner(r.Context())
	detail, err := h.manager.Detail(r.Context(), id)
	if err != nil {
		h.renderError(w, r, apierr.StatusCode(err), "Session not found")
		return
	}
	if detail.Session.Owner != owner {
		// Other owners' sessions are indistinguishable from missing ones
		h.renderError(w, r, http.StatusNotFound, "Session not found")
		return
	}

	session, err := h.manager.Complete(r.Context(), id)
	if err != nil {
		h.renderError(w, r, apierr.StatusCode(err), "Could not complete the puzzle")
		return
	}

	middleware.SetFlash(w, "success", "Puzzle completed!")
	target := pages.PuzzleURL(session.PuzzleRef) + "&session=" + url.QueryEscape(string(session.ID))
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// NotFound renders the HTML 404 page
func (h *PuzzleHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.renderError(w, r, http.StatusNotFound, "Page not found")
}

func (h *PuzzleHandler) pageData(r *http.Request, title string) layout.PageData {
	return layout.PageData{
		Title:  title,
		Player: middleware.GetPlayer(r.Context()),
		Flash:  middleware.GetFlash(r.Context()),
	}
}

func (h *PuzzleHandler) renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	h.render(w, r, status, pages.Error(pages.ErrorData{
		PageData: h.pageData(r, ""),
		Status:   status,
		Message:  message,
	}))
}

func (h *PuzzleHandler) render(w http.ResponseWriter, r *http.Request, status int, component templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := component.Render(r.Context(), w); err != nil {
		h.logger.Error("failed to render page", slog.Any("error", err))
	}
}
