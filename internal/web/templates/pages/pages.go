package pages

import (
	"net/http"
	"net/url"
	"time"

	"github.com/mcoot/puzzlegame/internal/model"
	"github.com/mcoot/puzzlegame/internal/web/templates/layout"
)

// PuzzleListData is the data for the puzzle index
type PuzzleListData struct {
	layout.PageData
	Puzzles []model.Puzzle
}

// PuzzleData is the data for a single puzzle page
type PuzzleData struct {
	layout.PageData
	Puzzle  model.Puzzle
	Session *model.PuzzleSession
	Elapsed *time.Duration
}

// ErrorData is the data for an error page
type ErrorData struct {
	layout.PageData
	Status  int
	Message string
}

// PuzzleURL is the page for a puzzle ref
func PuzzleURL(ref model.PuzzleRef) string {
	return "/puzzle/?ref=" + url.QueryEscape(string(ref))
}

// EventsURL is the SSE stream for a session
func EventsURL(id model.SessionID) string {
	return "/api/v1/sessions/" + url.PathEscape(string(id)) + "/events"
}

func inProgress(session *model.PuzzleSession) bool {
	return session != nil && session.State == model.SessionStateInProgress
}

func startLabel(session *model.PuzzleSession) string {
	if session != nil {
		return "Play again"
	}
	return "Start"
}

func errorPageData(data ErrorData) layout.PageData {
	page := data.PageData
	if page.Title == "" {
		page.Title = http.StatusText(data.Status)
	}
	return page
}
