package sse

import (
	"net/http"
	"time"
)

const (
	// Time between keepalive pings
	pingPeriod = 30 * time.Second

	// Buffer size for outgoing messages
	sendBufferSize = 256
)

// Client represents a connected SSE client
type Client struct {
	hub         *Hub
	subscriber  string
	send        chan []byte
	connectedAt time.Time
}

// NewClient creates a new SSE client. subscriber names the watcher in logs.
func NewClient(hub *Hub, subscriber string) *Client {
	return &Client{
		hub:         hub,
		subscriber:  subscriber,
		send:        make(chan []byte, sendBufferSize),
		connectedAt: time.Now(),
	}
}

// Send returns the channel the hub delivers messages on
func (c *Client) Send() <-chan []byte {
	return c.send
}

// ServeSSE streams hub messages to the client until it disconnects or the hub closes.
// snapshot, if set, runs once the client is registered; its output follows
// the connected event.
func ServeSSE(w http.ResponseWriter, r *http.Request, hub *Hub, subscriber string, snapshot func() []byte) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	client := NewClient(hub, subscriber)
	if !hub.Register(client) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	defer hub.Unregister(client)

	_, _ = w.Write(formatSSEMessage("connected", `{"status":"connected"}`))
	if snapshot != nil {
		if initial := snapshot(); len(initial) > 0 {
			_, _ = w.Write(initial)
		}
	}
	flusher.Flush()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-client.send:
			if !ok {
				// Hub closed the channel
				return
			}
			if _, err := w.Write(message); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
