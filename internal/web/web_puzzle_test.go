package web_test

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/puzzlegame/internal/model"
)

func TestPuzzleListShowsCatalog(t *testing.T) {
	ts := newWebTestServer(t)

	rr := ts.get("/puzzle/")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")

	doc := parseHTML(rr.Body)
	items := doc.Find("#puzzle-list li.puzzle")
	assert.Equal(t, len(ts.app.Catalog.List()), items.Length())

	ref, _ := items.First().Attr("data-ref")
	assert.Equal(t, "daily-mini", ref)
	href, _ := items.First().Find("a").Attr("href")
	assert.Equal(t, "/puzzle/?ref=daily-mini", href)
}

func TestPuzzlePageBeforeStart(t *testing.T) {
	ts := newWebTestServer(t)

	doc := ts.viewPuzzle("daily-mini")

	assertContainsText(t, doc, "#puzzle h1", "Daily Mini")
	assertContainsElement(t, doc, `#session-status[data-state="not_started"]`)
	assertContainsElement(t, doc, "#start-form")
	assertNotContainsElement(t, doc, "#complete-form")
	assertNotContainsElement(t, doc, "#puzzle[sse-connect]")
	assertContainsText(t, doc, "#start-form button", "Start")
}

func TestUnknownPuzzleRendersNotFound(t *testing.T) {
	ts := newWebTestServer(t)

	rr := ts.get("/puzzle/?ref=no-such-puzzle")
	require.Equal(t, http.StatusNotFound, rr.Code)

	doc := parseHTML(rr.Body)
	assertContainsElement(t, doc, `#error[data-status="404"]`)
	assertContainsText(t, doc, "#error .message", "Puzzle not found")
}

func TestUnknownPathRendersNotFound(t *testing.T) {
	ts := newWebTestServer(t)

	rr := ts.get("/nowhere")
	require.Equal(t, http.StatusNotFound, rr.Code)
	assertContainsElement(t, parseHTML(rr.Body), `#error[data-status="404"]`)
}

func TestStartShowsInProgressSession(t *testing.T) {
	ts := newWebTestServer(t)

	rr := ts.startPuzzle("daily-mini")
	assert.Equal(t, "/puzzle/?ref=daily-mini", rr.Header().Get("Location"))

	rr = ts.followRedirect(rr)
	require.Equal(t, http.StatusOK, rr.Code)
	doc := parseHTML(rr.Body)

	assertContainsElement(t, doc, `#session-status[data-state="in_progress"]`)
	assertContainsText(t, doc, "#session-status .state", "In progress")
	assertContainsElement(t, doc, "#complete-form")
	assertNotContainsElement(t, doc, "#start-form")

	id := sessionID(doc)
	require.NotEmpty(t, id)
	formID, _ := doc.Find(`#complete-form input[name="id"]`).Attr("value")
	assert.Equal(t, id, formID)

	stream, _ := doc.Find("#puzzle").Attr("sse-connect")
	assert.Equal(t, "/api/v1/sessions/"+id+"/events", stream)
}

func TestStartTwiceResumesSameSession(t *testing.T) {
	ts := newWebTestServer(t)

	ts.startPuzzle("daily-mini")
	first := sessionID(ts.viewPuzzle("daily-mini"))

	rr := ts.followRedirect(ts.startPuzzle("daily-mini"))
	doc := parseHTML(rr.Body)

	assert.Equal(t, first, sessionID(doc))
	assertContainsText(t, doc, ".flash", "Resuming")
}

func TestStartUnknownPuzzle(t *testing.T) {
	ts := newWebTestServer(t)

	rr := ts.post("/puzzle/start", url.Values{"ref": {"no-such-puzzle"}})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCompleteShowsElapsedTime(t *testing.T) {
	ts := newWebTestServer(t)

	ts.startPuzzle("daily-mini")
	id := sessionID(ts.viewPuzzle("daily-mini"))

	ts.app.MockClock.Advance(90 * time.Second)
	rr := ts.post("/puzzle/complete", url.Values{"id": {id}})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/puzzle/?ref=daily-mini&session="+id, rr.Header().Get("Location"))

	// Elapsed is frozen at completion
	ts.app.MockClock.Advance(time.Hour)
	rr = ts.followRedirect(rr)
	require.Equal(t, http.StatusOK, rr.Code)
	doc := parseHTML(rr.Body)

	assertContainsElement(t, doc, `#session-status[data-state="completed"]`)
	assertContainsText(t, doc, "#session-status .elapsed", "1m30s")
	assertContainsText(t, doc, "#start-form button", "Play again")
	assertContainsText(t, doc, ".flash", "Puzzle completed!")
	assertNotContainsElement(t, doc, "#puzzle[sse-connect]")
}

func TestPlayAgainStartsNewSession(t *testing.T) {
	ts := newWebTestServer(t)

	ts.startPuzzle("daily-mini")
	first := sessionID(ts.viewPuzzle("daily-mini"))
	ts.post("/puzzle/complete", url.Values{"id": {first}})

	// Without ?session= the completed attempt is no longer shown
	doc := ts.viewPuzzle("daily-mini")
	assertContainsElement(t, doc, `#session-status[data-state="not_started"]`)

	ts.startPuzzle("daily-mini")
	second := sessionID(ts.viewPuzzle("daily-mini"))
	assert.NotEqual(t, first, second)
}

func TestCompleteRequiresID(t *testing.T) {
	ts := newWebTestServer(t)

	rr := ts.post("/puzzle/complete", url.Values{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCompleteOtherOwnersSessionIsNotFound(t *testing.T) {
	alice := newWebTestServer(t)
	bob := alice.visitor()

	alice.startPuzzle("daily-mini")
	id := sessionID(alice.viewPuzzle("daily-mini"))

	rr := bob.post("/puzzle/complete", url.Values{"id": {id}})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	session, err := alice.app.Storage.GetSession(t.Context(), model.SessionID(id))
	require.NoError(t, err)
	assert.Equal(t, model.SessionStateInProgress, session.State)
}

func TestVisitorsHaveSeparateSessions(t *testing.T) {
	alice := newWebTestServer(t)
	bob := alice.visitor()

	alice.startPuzzle("daily-mini")

	doc := bob.viewPuzzle("daily-mini")
	assertContainsElement(t, doc, `#session-status[data-state="not_started"]`)

	bob.startPuzzle("daily-mini")
	assert.NotEqual(t, sessionID(alice.viewPuzzle("daily-mini")), sessionID(bob.viewPuzzle("daily-mini")))
}

func TestSessionQueryIgnoresOtherOwners(t *testing.T) {
	alice := newWebTestServer(t)
	bob := alice.visitor()

	alice.startPuzzle("daily-mini")
	id := sessionID(alice.viewPuzzle("daily-mini"))

	rr := bob.get("/puzzle/?ref=daily-mini&session=" + id)
	require.Equal(t, http.StatusOK, rr.Code)
	assertContainsElement(t, parseHTML(rr.Body), `#session-status[data-state="not_started"]`)
}
