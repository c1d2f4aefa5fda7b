package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/mcoot/puzzlegame/internal/dependencies/mocks"
	"github.com/mcoot/puzzlegame/internal/model"
	"github.com/mcoot/puzzlegame/internal/services/owner"
	"github.com/mcoot/puzzlegame/internal/testutil"
)

func statusHandler(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte("body"))
	}
}

func TestResponseWriterCapturesStatusAndSize(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec)

	assert.Equal(t, http.StatusOK, rw.Status())

	rw.WriteHeader(http.StatusTeapot)
	_, err := rw.Write([]byte("hello"))
	require.NoError(t, err)
	rw.Flush()

	assert.Equal(t, http.StatusTeapot, rw.Status())
	assert.Equal(t, 5, rw.Size())
	assert.True(t, rec.Flushed)
}

func TestLoggingLevelsByStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		level  string
	}{
		{"success", http.StatusOK, "INFO"},
		{"client error", http.StatusNotFound, "WARN"},
		{"server error", http.StatusInternalServerError, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))

			r := mux.NewRouter()
			r.Use(Logging(logger))
			r.HandleFunc("/things/{id}", statusHandler(tt.status)).Name("thing")

			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/things/42", nil))

			var entry map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, "http request", entry["msg"])
			assert.Equal(t, "/things/42", entry["path"])
			assert.Equal(t, "thing", entry["route"])
			assert.InDelta(t, float64(tt.status), entry["status"], 0)
			assert.InDelta(t, 4, entry["size"], 0)
		})
	}
}

func TestLoggingUsesPathTemplateForUnnamedRoutes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	r := mux.NewRouter()
	r.Use(Logging(logger))
	r.HandleFunc("/things/{id}", statusHandler(http.StatusOK))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/things/7", nil))

	assert.Contains(t, buf.String(), `"route":"/things/{id}"`)
}

func TestRecoveryDefaultHandler(t *testing.T) {
	h := Recovery(testutil.NopLogger(), nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Internal Server Error")
}

func TestRecoveryCustomHandler(t *testing.T) {
	var recovered any
	custom := func(w http.ResponseWriter, _ *http.Request, err any) {
		recovered = err
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	h := Recovery(testutil.NopLogger(), custom)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "boom", recovered)
}

func TestRecoveryRepanicsOnAbortHandler(t *testing.T) {
	h := Recovery(testutil.NopLogger(), nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.Panics(t, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func newRecordingProvider(t *testing.T) (*sdktrace.TracerProvider, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp, recorder
}

func TestTracingRecordsServerSpan(t *testing.T) {
	tp, recorder := newRecordingProvider(t)

	r := mux.NewRouter()
	r.Use(Tracing(tp))
	r.HandleFunc("/things/{id}", statusHandler(http.StatusInternalServerError)).Name("thing")

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/things/1", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "GET thing", span.Name())
	assert.Equal(t, codes.Error, span.Status().Code)

	var status int64
	for _, attr := range span.Attributes() {
		if attr.Key == "http.response.status_code" {
			status = attr.Value.AsInt64()
		}
	}
	assert.Equal(t, int64(http.StatusInternalServerError), status)
}

func TestTracingContinuesIncomingTraceContext(t *testing.T) {
	previous := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(previous) })

	tp, recorder := newRecordingProvider(t)
	h := Tracing(tp)(statusHandler(http.StatusOK))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	h.ServeHTTP(httptest.NewRecorder(), req)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", spans[0].SpanContext().TraceID().String())
	assert.Equal(t, "00f067aa0ba902b7", spans[0].Parent().SpanID().String())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
}

func newTestIssuer(t *testing.T) *owner.Issuer {
	t.Helper()
	clock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	issuer, err := owner.New(owner.Config{Secret: []byte("0123456789abcdef0123456789abcdef")}, clock, mocks.NewMockIDs())
	require.NoError(t, err)
	return issuer
}

// recordOwner records the owner the middleware resolved
func recordOwner(seen *model.OwnerID) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*seen = GetOwner(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
}

func ownerCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == owner.CookieName {
			return c
		}
	}
	return nil
}

func TestOwnerMintsCookieForNewVisitors(t *testing.T) {
	issuer := newTestIssuer(t)
	var seen model.OwnerID
	h := Owner(issuer, testutil.NopLogger())(recordOwner(&seen))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	cookie := ownerCookie(rec)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "/", cookie.Path)
	assert.NotEmpty(t, seen)

	parsed, err := issuer.Parse(cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, seen, parsed)
}

func TestOwnerReusesValidCookie(t *testing.T) {
	issuer := newTestIssuer(t)
	token, err := issuer.Sign("anon_existing")
	require.NoError(t, err)

	var seen model.OwnerID
	h := Owner(issuer, testutil.NopLogger())(recordOwner(&seen))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: owner.CookieName, Value: token})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, model.OwnerID("anon_existing"), seen)
	assert.Nil(t, ownerCookie(rec))
}

func TestOwnerReplacesInvalidCookie(t *testing.T) {
	issuer := newTestIssuer(t)
	var seen model.OwnerID
	h := Owner(issuer, testutil.NopLogger())(recordOwner(&seen))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: owner.CookieName, Value: "forged"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.NotNil(t, ownerCookie(rec))
	assert.NotEmpty(t, seen)
	assert.NotEqual(t, model.OwnerID("forged"), seen)
}

func TestGetOwnerWithoutMiddleware(t *testing.T) {
	assert.Empty(t, GetOwner(context.Background()))
	assert.Equal(t, model.OwnerID("x"), GetOwner(WithOwner(context.Background(), "x")))
}
