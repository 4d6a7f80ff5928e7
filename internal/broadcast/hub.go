// Package broadcast fans alert events out to live subscribers over
// WebSocket, plus a server-sent events tail on the debug mux.
package broadcast

import (
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"tailscale.com/tsweb"

	"github.com/sentinel-vision/sentinel/internal/monitoring"
)

// WriteTimeout bounds one write to one subscriber.
const WriteTimeout = 2 * time.Second

// Conn is one subscriber connection.
type Conn interface {
	Write(ctx context.Context, data []byte) error
	Close() error
}

// Hub holds the live subscribers.
type Hub struct {
	mu          sync.Mutex
	subscribers map[string]Conn
	closing     bool
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{subscribers: make(map[string]Conn)}
}

// randomID generates a random subscriber ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// Subscribe registers c and returns its id. It fails once the hub is closed.
func (h *Hub) Subscribe(c Conn) (string, error) {
	id := randomID()
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return "", fmt.Errorf("hub closed")
	}
	h.subscribers[id] = c
	monitoring.WSClients.Set(int64(len(h.subscribers)))
	return id, nil
}

// Unsubscribe removes and closes a subscriber.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	c, ok := h.subscribers[id]
	if ok {
		delete(h.subscribers, id)
		monitoring.WSClients.Set(int64(len(h.subscribers)))
	}
	h.mu.Unlock()
	if ok {
		c.Close()
	}
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Broadcast encodes v as JSON and writes it to every subscriber. Subscribers
// whose write fails or exceeds WriteTimeout are dropped. It returns the
// number of subscribers that received the message.
func (h *Hub) Broadcast(ctx context.Context, v interface{}) (int, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("failed to encode broadcast: %w", err)
	}

	h.mu.Lock()
	snapshot := make(map[string]Conn, len(h.subscribers))
	for id, c := range h.subscribers {
		snapshot[id] = c
	}
	h.mu.Unlock()

	var (
		wg     sync.WaitGroup
		failMu sync.Mutex
		failed []string
	)
	for id, c := range snapshot {
		wg.Add(1)
		go func(id string, c Conn) {
			defer wg.Done()
			wctx, cancel := context.WithTimeout(ctx, WriteTimeout)
			defer cancel()
			if err := c.Write(wctx, data); err != nil {
				failMu.Lock()
				failed = append(failed, id)
				failMu.Unlock()
			}
		}(id, c)
	}
	wg.Wait()

	for _, id := range failed {
		h.Unsubscribe(id)
	}
	return len(snapshot) - len(failed), nil
}

// Close drops every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closing = true
	subs := h.subscribers
	h.subscribers = make(map[string]Conn)
	monitoring.WSClients.Set(0)
	h.mu.Unlock()
	for _, c := range subs {
		c.Close()
	}
}

type wsConn struct {
	c *websocket.Conn
}

func (w wsConn) Write(ctx context.Context, data []byte) error {
	return w.c.Write(ctx, websocket.MessageText, data)
}

func (w wsConn) Close() error {
	return w.c.Close(websocket.StatusNormalClosure, "")
}

// ServeHTTP upgrades the request to a WebSocket and keeps it subscribed
// until the client goes away or the hub drops it. Client messages are
// discarded.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		monitoring.Logf("websocket accept failed: %v", err)
		return
	}
	id, err := h.Subscribe(wsConn{c})
	if err != nil {
		c.Close(websocket.StatusGoingAway, "shutting down")
		return
	}
	defer h.Unsubscribe(id)

	ctx := c.CloseRead(r.Context())
	<-ctx.Done()
}

// chanConn is a subscriber backed by a channel, used by the SSE tail.
type chanConn struct {
	ch   chan []byte
	done chan struct{}
	once sync.Once
}

func newChanConn() *chanConn {
	return &chanConn{ch: make(chan []byte, 16), done: make(chan struct{})}
}

func (c *chanConn) Write(ctx context.Context, data []byte) error {
	select {
	case c.ch <- data:
		return nil
	case <-c.done:
		return fmt.Errorf("subscriber closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *chanConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

// AttachAdminRoutes adds a server-sent events tail of the broadcast stream
// at /debug/alerts-tail.
func (h *Hub) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.HandleSilentFunc("alerts-tail", h.serveTail)
}

func (h *Hub) serveTail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

	conn := newChanConn()
	id, err := h.Subscribe(conn)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer h.Unsubscribe(id)

	w.Write([]byte(": ping\n\n"))
	flusher.Flush()

	for {
		select {
		case payload := <-conn.ch:
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		case <-conn.done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
