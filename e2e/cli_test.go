package e2e_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/puzzlegame/internal/api"
	"github.com/mcoot/puzzlegame/internal/cli"
	"github.com/mcoot/puzzlegame/internal/factory"
	"github.com/mcoot/puzzlegame/internal/model"
	"github.com/mcoot/puzzlegame/internal/testutil"
	"github.com/mcoot/puzzlegame/internal/web"
)

// cliRunner executes puzzlectl commands in-process against a test server
type cliRunner struct {
	serverURL string
	tokenFile string
	ownerFile string
}

func newCLIRunner(t *testing.T, serverURL string) *cliRunner {
	t.Helper()

	t.Setenv("PUZZLECTL_TOKEN", "")
	dir := t.TempDir()

	return &cliRunner{
		serverURL: serverURL,
		tokenFile: filepath.Join(dir, "token"),
		ownerFile: filepath.Join(dir, "owner"),
	}
}

func (r *cliRunner) args(output string, args ...string) []string {
	return append([]string{
		"--server", r.serverURL,
		"--token-file", r.tokenFile,
		"--owner-file", r.ownerFile,
		"--output", output,
	}, args...)
}

func (r *cliRunner) run(args ...string) (string, error) {
	return r.runTo(&bytes.Buffer{}, "json", args...)
}

func (r *cliRunner) runText(args ...string) (string, error) {
	return r.runTo(&bytes.Buffer{}, "text", args...)
}

type outputBuffer interface {
	Write(p []byte) (int, error)
	String() string
}

func (r *cliRunner) runTo(out outputBuffer, output string, args ...string) (string, error) {
	cmd := cli.NewRootCmd()
	cmd.SetArgs(r.args(output, args...))
	cmd.SetOut(out)
	cmd.SetErr(out)
	err := cmd.Execute()
	return out.String(), err
}

// syncBuffer is a bytes.Buffer safe to read while a command writes to it
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// testServer serves the API and web routers over a real listener
type testServer struct {
	app *factory.TestApp
	url string
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()

	app := factory.NewTestApp()
	logger := testutil.NopLogger()

	apiRouter := api.NewRouter(api.RouterConfig{
		Logger:           logger,
		AuthService:      app.AuthService,
		LifecycleManager: app.LifecycleManager,
		OwnerIssuer:      app.OwnerIssuer,
		HubManager:       app.HubManager,
		StorageName:      app.StorageType,
	})
	webRouter := web.NewRouter(web.RouterConfig{
		Logger:           logger,
		AuthService:      app.AuthService,
		LifecycleManager: app.LifecycleManager,
		OwnerIssuer:      app.OwnerIssuer,
		Catalog:          app.Catalog,
	})

	mux := http.NewServeMux()
	mux.Handle("/api/", apiRouter)
	mux.Handle("/", webRouter)

	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		app.HubManager.Close()
		srv.Close()
		_ = app.Close()
	})

	return &testServer{app: app, url: srv.URL}
}

// Response types for JSON parsing
type authResponse struct {
	Player struct {
		ID          string `json:"id"`
		DisplayName string `json:"display_name"`
		IsGuest     bool   `json:"is_guest"`
	} `json:"player"`
	Token string `json:"token"`
}

type playerResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	IsGuest     bool   `json:"is_guest"`
}

type sessionResponse struct {
	ID              string     `json:"id"`
	Owner           string     `json:"owner"`
	PuzzleRef       string     `json:"puzzle_ref"`
	State           string     `json:"state"`
	StartedAt       *time.Time `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at"`
	ElapsedDuration *string    `json:"elapsed_duration"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Storage string `json:"storage"`
}

type eventLine struct {
	Event string `json:"event"`
	Data  string `json:"data"`
}

func decodeOutput[T any](t *testing.T, output string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(output), &v), "output: %s", output)
	return v
}

func parseEventLines(t *testing.T, output string) []eventLine {
	t.Helper()
	var events []eventLine
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		if line == "" {
			continue
		}
		events = append(events, decodeOutput[eventLine](t, line))
	}
	return events
}

func eventNames(events []eventLine) []string {
	names := make([]string, 0, len(events))
	for _, e := range events {
		names = append(names, e.Event)
	}
	return names
}

// Tests

func TestCLI_HealthCheck(t *testing.T) {
	ts := startTestServer(t)
	runner := newCLIRunner(t, ts.url)

	output, err := runner.run("health")
	require.NoError(t, err, "output: %s", output)

	resp := decodeOutput[healthResponse](t, output)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "memory", resp.Storage)

	output, err = runner.runText("health")
	require.NoError(t, err)
	assert.Contains(t, output, "Status: ok")
	assert.Contains(t, output, "Storage: memory")
}

func TestCLI_SessionLifecycle(t *testing.T) {
	ts := startTestServer(t)
	runner := newCLIRunner(t, ts.url)

	output, err := runner.run("start", "daily-mini")
	require.NoError(t, err, "output: %s", output)
	started := decodeOutput[sessionResponse](t, output)
	assert.NotEmpty(t, started.ID)
	assert.Equal(t, "in_progress", started.State)
	require.NotNil(t, started.StartedAt)
	assert.True(t, started.StartedAt.Equal(factory.TestStartTime))

	// The saved owner token makes the second start resume the same session
	output, err = runner.runText("start", "daily-mini")
	require.NoError(t, err, "output: %s", output)
	assert.Contains(t, output, "Resumed session "+started.ID)

	ts.app.MockClock.Advance(90 * time.Second)

	output, err = runner.run("complete", started.ID)
	require.NoError(t, err, "output: %s", output)
	completed := decodeOutput[sessionResponse](t, output)
	assert.Equal(t, started.ID, completed.ID)
	assert.Equal(t, "completed", completed.State)
	require.NotNil(t, completed.CompletedAt)

	output, err = runner.run("session", started.ID)
	require.NoError(t, err, "output: %s", output)
	detail := decodeOutput[sessionResponse](t, output)
	assert.Equal(t, "daily-mini", detail.PuzzleRef)
	assert.Equal(t, "completed", detail.State)
	require.NotNil(t, detail.ElapsedDuration)
	assert.Equal(t, "1m30s", *detail.ElapsedDuration)

	output, err = runner.runText("session", started.ID)
	require.NoError(t, err)
	assert.Contains(t, output, "Elapsed: 1m30s")

	// After completion a new session begins
	output, err = runner.run("start", "daily-mini")
	require.NoError(t, err, "output: %s", output)
	again := decodeOutput[sessionResponse](t, output)
	assert.NotEqual(t, started.ID, again.ID)
}

func TestCLI_OwnerTokenIsSaved(t *testing.T) {
	ts := startTestServer(t)
	runner := newCLIRunner(t, ts.url)

	_, err := runner.run("start", "daily-mini")
	require.NoError(t, err)

	data, err := os.ReadFile(runner.ownerFile)
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(string(data)))

	// A different machine has its own owner and so its own session
	other := newCLIRunner(t, ts.url)
	first, err := runner.run("start", "daily-mini")
	require.NoError(t, err)
	second, err := other.run("start", "daily-mini")
	require.NoError(t, err)
	assert.NotEqual(t,
		decodeOutput[sessionResponse](t, first).ID,
		decodeOutput[sessionResponse](t, second).ID)
}

func TestCLI_ExplicitOwner(t *testing.T) {
	ts := startTestServer(t)
	runner := newCLIRunner(t, ts.url)

	output, err := runner.run("start", "word-ladder", "--owner", "alice")
	require.NoError(t, err, "output: %s", output)
	started := decodeOutput[sessionResponse](t, output)

	output, err = runner.run("session", started.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", decodeOutput[sessionResponse](t, output).Owner)
}

func TestCLI_ErrorsIncludeCode(t *testing.T) {
	ts := startTestServer(t)
	runner := newCLIRunner(t, ts.url)

	_, err := runner.run("complete", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SESSION_NOT_FOUND")

	_, err = runner.run("session", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SESSION_NOT_FOUND")
}

func TestCLI_PlayerCommands(t *testing.T) {
	ts := startTestServer(t)
	runner := newCLIRunner(t, ts.url)

	output, err := runner.run("player", "guest", "--name", "Alice")
	require.NoError(t, err, "output: %s", output)
	authResp := decodeOutput[authResponse](t, output)
	assert.Equal(t, "Alice", authResp.Player.DisplayName)
	assert.True(t, authResp.Player.IsGuest)
	assert.NotEmpty(t, authResp.Token)

	// Token is read back from the token file
	output, err = runner.run("player", "me")
	require.NoError(t, err, "output: %s", output)
	me := decodeOutput[playerResponse](t, output)
	assert.Equal(t, authResp.Player.ID, me.ID)

	// Sessions started while logged in belong to the player
	output, err = runner.run("start", "daily-mini")
	require.NoError(t, err)
	started := decodeOutput[sessionResponse](t, output)
	output, err = runner.run("session", started.ID)
	require.NoError(t, err)
	assert.Equal(t, authResp.Player.ID, decodeOutput[sessionResponse](t, output).Owner)

	output, err = runner.runText("player", "logout")
	require.NoError(t, err, "output: %s", output)
	assert.Contains(t, output, "Logged out")
	_, statErr := os.Stat(runner.tokenFile)
	assert.True(t, os.IsNotExist(statErr))

	_, err = runner.run("player", "me")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UNAUTHORIZED")

	// The old token no longer works either
	output, err = runner.run("--token", authResp.Token, "player", "me")
	require.Error(t, err, "output: %s", output)
}

func TestCLI_RegisterAndLogin(t *testing.T) {
	ts := startTestServer(t)
	runner := newCLIRunner(t, ts.url)

	output, err := runner.run("player", "register", "--name", "Bob", "--user", "bob", "--pass", "hunter22")
	require.NoError(t, err, "output: %s", output)
	registered := decodeOutput[authResponse](t, output)
	assert.False(t, registered.Player.IsGuest)

	_, err = runner.run("player", "register", "--name", "Bob", "--user", "bob", "--pass", "hunter22")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "USERNAME_EXISTS")

	_, err = runner.run("player", "login", "--user", "bob", "--pass", "wrong-password")
	require.Error(t, err)

	output, err = runner.run("player", "login", "--user", "bob", "--pass", "hunter22")
	require.NoError(t, err, "output: %s", output)
	loggedIn := decodeOutput[authResponse](t, output)
	assert.Equal(t, registered.Player.ID, loggedIn.Player.ID)

	data, err := os.ReadFile(runner.tokenFile)
	require.NoError(t, err)
	assert.Equal(t, loggedIn.Token, string(data))
}

func TestCLI_EventsForCompletedSession(t *testing.T) {
	ts := startTestServer(t)
	runner := newCLIRunner(t, ts.url)

	output, err := runner.run("start", "daily-mini")
	require.NoError(t, err)
	started := decodeOutput[sessionResponse](t, output)
	_, err = runner.run("complete", started.ID)
	require.NoError(t, err)

	// The stream ends after the snapshot
	output, err = runner.run("events", "--json", started.ID)
	require.NoError(t, err, "output: %s", output)
	events := parseEventLines(t, output)
	require.Len(t, events, 1)
	assert.Equal(t, "session-snapshot", events[0].Event)
	assert.Contains(t, events[0].Data, `"state":"completed"`)
}

func TestCLI_EventsUnknownSession(t *testing.T) {
	ts := startTestServer(t)
	runner := newCLIRunner(t, ts.url)

	_, err := runner.run("events", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SESSION_NOT_FOUND")
}

func TestCLI_EventsStreamUntilCompleted(t *testing.T) {
	ts := startTestServer(t)
	runner := newCLIRunner(t, ts.url)

	output, err := runner.run("start", "daily-mini")
	require.NoError(t, err)
	started := decodeOutput[sessionResponse](t, output)

	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() {
		_, err := runner.runTo(out, "json", "events", "--json", started.ID)
		done <- err
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "session-snapshot")
	}, 5*time.Second, 10*time.Millisecond)

	ts.app.MockClock.Advance(time.Minute)
	_, err = ts.app.LifecycleManager.Complete(context.Background(), model.SessionID(started.ID))
	require.NoError(t, err)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("events command did not exit after completion")
	}

	events := parseEventLines(t, out.String())
	assert.Equal(t, []string{"connected", "session-snapshot", "session-completed"}, eventNames(events))
	assert.Contains(t, events[2].Data, `"elapsed_duration":"1m0s"`)
}
