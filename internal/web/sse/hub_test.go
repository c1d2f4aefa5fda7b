package sse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mcoot/puzzlegame/internal/testutil"
)

func TestFormatSSEMessage(t *testing.T) {
	tests := []struct {
		name      string
		eventName string
		data      string
		expected  string
	}{
		{
			name:      "single line data",
			eventName: "session-started",
			data:      `{"id":"s-1"}`,
			expected:  "event: session-started\ndata: {\"id\":\"s-1\"}\n\n",
		},
		{
			name:      "multi-line data",
			eventName: "session-status",
			data:      "<div>\n  <span>In progress</span>\n</div>",
			expected:  "event: session-status\ndata: <div>\ndata:   <span>In progress</span>\ndata: </div>\n\n",
		},
		{
			name:      "empty data",
			eventName: "ping",
			data:      "",
			expected:  "event: ping\ndata: \n\n",
		},
		{
			name:      "data with carriage returns",
			eventName: "test",
			data:      "line1\r\nline2",
			expected:  "event: test\ndata: line1\ndata: line2\n\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := formatSSEMessage(tt.eventName, tt.data)
			if string(result) != tt.expected {
				t.Errorf("formatSSEMessage(%q, %q)\ngot:  %q\nwant: %q",
					tt.eventName, tt.data, string(result), tt.expected)
			}
		})
	}
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"single line", "hello", []string{"hello"}},
		{"two lines", "line1\nline2", []string{"line1", "line2"}},
		{"trailing newline", "line1\n", []string{"line1"}},
		{"blank line kept", "line1\n\nline2", []string{"line1", "", "line2"}},
		{"empty string", "", []string{""}},
		{"crlf line endings", "line1\r\nline2\r\n", []string{"line1", "line2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := splitLines(tt.input)
			if len(result) != len(tt.expected) {
				t.Errorf("splitLines(%q) returned %d lines, want %d",
					tt.input, len(result), len(tt.expected))
				return
			}
			for i, line := range result {
				if line != tt.expected[i] {
					t.Errorf("splitLines(%q)[%d] = %q, want %q",
						tt.input, i, line, tt.expected[i])
				}
			}
		})
	}
}

func newRunningHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub("s-1", testutil.NopLogger())
	go hub.Run()
	t.Cleanup(hub.Close)
	return hub
}

func receive(t *testing.T, client *Client) string {
	t.Helper()
	select {
	case msg, ok := <-client.send:
		if !ok {
			t.Fatal("client channel closed")
		}
		return string(msg)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return ""
	}
}

func TestHub_RegisterAndBroadcast(t *testing.T) {
	hub := newRunningHub(t)

	client := NewClient(hub, "owner-1")
	if !hub.Register(client) {
		t.Fatal("Register() = false on a running hub")
	}
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.BroadcastEvent("session-completed", "done")

	if got := receive(t, client); got != "event: session-completed\ndata: done\n\n" {
		t.Errorf("received %q", got)
	}
}

func TestHub_BroadcastReachesEveryClient(t *testing.T) {
	hub := newRunningHub(t)

	clients := []*Client{NewClient(hub, "a"), NewClient(hub, "b"), NewClient(hub, "c")}
	for _, c := range clients {
		hub.Register(c)
	}
	require.Eventually(t, func() bool { return hub.ClientCount() == 3 }, time.Second, 5*time.Millisecond)

	hub.BroadcastEvent("session-started", "x")

	for _, c := range clients {
		if got := receive(t, c); got != "event: session-started\ndata: x\n\n" {
			t.Errorf("client %s received %q", c.subscriber, got)
		}
	}
}

func TestHub_UnregisterClosesClientChannel(t *testing.T) {
	hub := newRunningHub(t)

	client := NewClient(hub, "owner-1")
	hub.Register(client)
	hub.Unregister(client)

	select {
	case _, ok := <-client.send:
		if ok {
			t.Error("expected closed channel, got message")
		}
	case <-time.After(time.Second):
		t.Fatal("client channel was not closed")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}
}

func TestHub_CloseDisconnectsClients(t *testing.T) {
	hub := NewHub("s-1", testutil.NopLogger())
	go hub.Run()

	client := NewClient(hub, "owner-1")
	hub.Register(client)
	hub.Close()
	hub.Close()

	select {
	case _, ok := <-client.send:
		if ok {
			t.Error("expected closed channel, got message")
		}
	case <-time.After(time.Second):
		t.Fatal("client channel was not closed")
	}

	if hub.Register(NewClient(hub, "late")) {
		t.Error("Register() = true after Close")
	}
	// Must not block once the hub is gone
	hub.Unregister(client)
}

func TestHubManager_GetOrCreateHub(t *testing.T) {
	manager := NewHubManager(testutil.NopLogger())
	defer manager.Close()

	if manager.GetHub("s-1") != nil {
		t.Error("GetHub() returned a hub before creation")
	}

	first := manager.GetOrCreateHub("s-1")
	second := manager.GetOrCreateHub("s-1")
	other := manager.GetOrCreateHub("s-2")

	if first != second {
		t.Error("GetOrCreateHub() returned different hubs for the same session")
	}
	if first == other {
		t.Error("GetOrCreateHub() shared a hub across sessions")
	}
	if first.SessionID() != "s-1" {
		t.Errorf("SessionID() = %q, want s-1", first.SessionID())
	}
	if manager.HubCount() != 2 {
		t.Errorf("HubCount() = %d, want 2", manager.HubCount())
	}
}

func TestHubManager_RemoveHub(t *testing.T) {
	manager := NewHubManager(testutil.NopLogger())

	hub := manager.GetOrCreateHub("s-1")
	manager.RemoveHub("s-1")
	manager.RemoveHub("missing")

	if manager.GetHub("s-1") != nil {
		t.Error("hub still registered after RemoveHub")
	}
	select {
	case <-hub.Done():
	case <-time.After(time.Second):
		t.Fatal("removed hub was not closed")
	}
}

func TestHubManager_CleanupEmptyHubs(t *testing.T) {
	manager := NewHubManager(testutil.NopLogger())
	defer manager.Close()

	watched := manager.GetOrCreateHub("watched")
	manager.GetOrCreateHub("idle")

	watched.Register(NewClient(watched, "owner-1"))
	require.Eventually(t, func() bool { return watched.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	if removed := manager.CleanupEmptyHubs(); removed != 1 {
		t.Errorf("CleanupEmptyHubs() = %d, want 1", removed)
	}
	if manager.GetHub("idle") != nil {
		t.Error("idle hub survived cleanup")
	}
	if manager.GetHub("watched") == nil {
		t.Error("watched hub was removed")
	}
}

func TestHubManager_RunJanitorStopsWithContext(t *testing.T) {
	manager := NewHubManager(testutil.NopLogger())
	manager.GetOrCreateHub("idle")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		manager.RunJanitor(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return manager.HubCount() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}
