package web_test

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/puzzlegame/internal/model"
	"github.com/mcoot/puzzlegame/internal/services/auth"
)

func TestGuestFormShownWhenAnonymous(t *testing.T) {
	ts := newWebTestServer(t)

	doc := ts.viewPuzzle("daily-mini")
	assertContainsElement(t, doc, "#guest-form")
	assertNotContainsElement(t, doc, ".player-name")
}

func TestCreateGuestShowsPlayerAndFlash(t *testing.T) {
	ts := newWebTestServer(t)

	rr := ts.post("/auth/guest", url.Values{"display_name": {"Alice"}})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/puzzle/", rr.Header().Get("Location"))

	rr = ts.followRedirect(rr)
	doc := parseHTML(rr.Body)
	assertContainsText(t, doc, ".player-name", "Alice")
	assertContainsText(t, doc, ".flash-success", "Welcome, Alice!")
	assertContainsElement(t, doc, "#logout-form")
	assertNotContainsElement(t, doc, "#guest-form")

	// Flash messages are shown once
	doc = parseHTML(ts.get("/puzzle/").Body)
	assertNotContainsElement(t, doc, ".flash")
}

func TestCreateGuestRequiresName(t *testing.T) {
	ts := newWebTestServer(t)

	rr := ts.post("/auth/guest", url.Values{"display_name": {"  "}})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.False(t, ts.cookies.has(auth.TokenCookieName))

	doc := parseHTML(ts.followRedirect(rr).Body)
	assertContainsText(t, doc, ".flash-error", "Display name is required")
}

func TestCreateGuestRedirectsToLocalNext(t *testing.T) {
	ts := newWebTestServer(t)

	rr := ts.post("/auth/guest", url.Values{"display_name": {"Alice"}, "next": {"/puzzle/?ref=word-ladder"}})
	assert.Equal(t, "/puzzle/?ref=word-ladder", rr.Header().Get("Location"))

	rr = ts.visitor().post("/auth/guest", url.Values{"display_name": {"Bob"}, "next": {"//evil.example"}})
	assert.Equal(t, "/puzzle/", rr.Header().Get("Location"))
}

func TestGuestSessionsBelongToPlayer(t *testing.T) {
	ts := newWebTestServer(t)
	ts.createGuestPlayer("Alice")

	ts.startPuzzle("daily-mini")
	id := sessionID(ts.viewPuzzle("daily-mini"))

	token := ts.cookies.cookies[auth.TokenCookieName]
	player, err := ts.app.AuthService.GetPlayer(token.Value)
	require.NoError(t, err)

	session, err := ts.app.Storage.GetSession(t.Context(), model.SessionID(id))
	require.NoError(t, err)
	assert.Equal(t, player.OwnerID(), session.Owner)
}

func TestLogoutFallsBackToAnonymousOwner(t *testing.T) {
	ts := newWebTestServer(t)
	ts.createGuestPlayer("Alice")
	ts.startPuzzle("daily-mini")
	token := ts.cookies.cookies[auth.TokenCookieName].Value

	rr := ts.post("/auth/logout", nil)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.False(t, ts.cookies.has(auth.TokenCookieName))

	_, err := ts.app.AuthService.ValidateToken(token)
	assert.Error(t, err)

	// The player's session is not visible to the anonymous owner
	doc := ts.viewPuzzle("daily-mini")
	assertContainsElement(t, doc, `#session-status[data-state="not_started"]`)
	assertContainsElement(t, doc, "#guest-form")
}
