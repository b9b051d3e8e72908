// Package live broadcasts per-case run progress to dashboard clients,
// over WebSocket (Hub) and, optionally, Redis pub/sub (RedisBroadcaster).
// Grounded on the teacher's internal/api/websocket.go register/
// unregister/broadcast channel loop, adapted so a client watching one
// run never sees another run's events: the teacher's dashboard only
// ever has one device session to watch, but a ChimeraScript dashboard
// can have several runs in flight (CI collectors, concurrent
// `chimerascript run` invocations), so the broadcast fan-out needs a
// per-client run filter that the teacher's generic []byte broadcast
// has no way to express.
package live

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/kyleoneill/chimerascript/internal/runner"
)

// CaseEvent is the JSON envelope broadcast for one completed case.
type CaseEvent struct {
	RunID  string `json:"run_id"`
	Name   string `json:"name"`
	Status string `json:"status"`
	Err    string `json:"error,omitempty"`
	Millis int64  `json:"duration_ms"`
}

// EventFromResult builds the broadcast event for a finished case.
func EventFromResult(runID string, r *runner.CaseResult) CaseEvent {
	ev := CaseEvent{RunID: runID, Name: r.Name, Status: r.Status.String(), Millis: r.Duration.Milliseconds()}
	if r.Err != nil {
		ev.Err = r.Err.Error()
	}
	return ev
}

// Hub manages WebSocket client connections and broadcasts case events,
// each client optionally scoped to a single run.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]bool

	registerCh   chan *client
	unregisterCh chan *client
	broadcastCh  chan CaseEvent
}

type client struct {
	conn *websocket.Conn
	send chan []byte

	// runID, when non-empty, restricts this client to events for that
	// run; empty means "every run" (the dashboard's all-runs view).
	runID string
}

// NewHub creates a new WebSocket hub.
func NewHub() *Hub {
	return &Hub{
		clients:      make(map[*client]bool),
		registerCh:   make(chan *client, 16),
		unregisterCh: make(chan *client, 16),
		broadcastCh:  make(chan CaseEvent, 256),
	}
}

// Run processes register, unregister, and broadcast events. Blocks
// until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return

		case c := <-h.registerCh:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()

		case c := <-h.unregisterCh:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()

		case ev := <-h.broadcastCh:
			data, err := json.Marshal(ev)
			if err != nil {
				log.Printf("live: failed to marshal case event: %v", err)
				continue
			}
			h.mu.RLock()
			for c := range h.clients {
				if c.runID != "" && c.runID != ev.RunID {
					continue
				}
				select {
				case c.send <- data:
				default:
				}
			}
			h.mu.RUnlock()
		}
	}
}

// BroadcastCase queues a case event for delivery to every client
// subscribed to its run (or to every run, for an unscoped client).
// Safe to call from any goroutine.
func (h *Hub) BroadcastCase(ev CaseEvent) {
	select {
	case h.broadcastCh <- ev:
	default:
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket is an HTTP handler that upgrades to WebSocket. A
// `run_id` query parameter scopes the connection to that run's events;
// omitted, the client receives every run's events.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Printf("live: accept failed: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 64), runID: r.URL.Query().Get("run_id")}
	h.registerCh <- c

	go h.writePump(r.Context(), c)
	h.readPump(r.Context(), c)
}

func (h *Hub) writePump(ctx context.Context, c *client) {
	defer func() {
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := c.conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// readPump drains incoming messages; dashboard clients never send any.
func (h *Hub) readPump(ctx context.Context, c *client) {
	defer func() {
		h.unregisterCh <- c
	}()

	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			return
		}
	}
}
