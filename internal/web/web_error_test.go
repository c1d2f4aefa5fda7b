package web_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/puzzlegame/internal/testutil"
	"github.com/mcoot/puzzlegame/internal/web/middleware"
)

func TestRecoveryRendersErrorPage(t *testing.T) {
	h := middleware.Recovery(testutil.NopLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/puzzle/", nil))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")

	doc := parseHTML(rr.Body)
	assertContainsElement(t, doc, `#error[data-status="500"]`)
	assertContainsText(t, doc, "#error .message", "Something went wrong")
}

func TestMalformedFlashCookieIsIgnored(t *testing.T) {
	ts := newWebTestServer(t)
	ts.cookies.cookies["flash"] = &http.Cookie{Name: "flash", Value: "%zz"}

	rr := ts.get("/puzzle/")
	require.Equal(t, http.StatusOK, rr.Code)
	assertNotContainsElement(t, parseHTML(rr.Body), ".flash")
}
