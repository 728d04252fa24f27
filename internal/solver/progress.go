package solver

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// ProgressHub fans out solver incumbent updates to attached websocket
// connections and to an optional gauge callback (wired to Prometheus
// by the caller), matching the progress contract spec.md §4.6 and §5
// describe: a caller attaches to watch (iter, best_objective, elapsed)
// and can send a cancel frame back over the same connection.
type ProgressHub struct {
	upgrader websocket.Upgrader

	mu     sync.Mutex
	conns  map[*websocket.Conn]bool
	gauge  func(backend string, objective float64)
	cancel func()
}

// NewProgressHub builds a hub. gauge may be nil to skip metrics
// reporting.
func NewProgressHub(gauge func(backend string, objective float64)) *ProgressHub {
	return &ProgressHub{
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		conns:    make(map[*websocket.Conn]bool),
		gauge:    gauge,
	}
}

// OnCancel registers the func invoked when an attached client sends a
// "cancel" frame -- normally the engine's atomic cancellation flag.
func (h *ProgressHub) OnCancel(fn func()) {
	h.cancel = fn
}

// Attach upgrades an HTTP request to a websocket connection and
// registers it to receive every subsequent Publish call until the
// connection closes.
func (h *ProgressHub) Attach(w http.ResponseWriter, r *http.Request) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.conns[conn] = true
	h.mu.Unlock()
	go h.readLoop(conn)
	return nil
}

// readLoop drains client frames so the read side never blocks a
// write; the only inbound frame this protocol defines is "cancel".
func (h *ProgressHub) readLoop(conn *websocket.Conn) {
	defer func() {
		h.mu.Lock()
		delete(h.conns, conn)
		h.mu.Unlock()
		conn.Close()
	}()
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if string(msg) == "cancel" && h.cancel != nil {
			h.cancel()
		}
	}
}

// progressFrame is the wire shape of one streamed update.
type progressFrame struct {
	Iter          int     `json:"iter"`
	BestObjective float64 `json:"bestObjective"`
	ElapsedMillis int64   `json:"elapsedMillis"`
}

// Publish broadcasts one incumbent update to every attached connection
// and updates the gauge, if any. Intended to be bound to a specific
// backend name via a closure and passed to Backend.Solve as a
// ProgressFunc.
func (h *ProgressHub) Publish(backend string, update ProgressUpdate) {
	if h.gauge != nil {
		h.gauge(backend, update.BestObjective)
	}
	payload, err := json.Marshal(progressFrame{
		Iter:          update.Iter,
		BestObjective: update.BestObjective,
		ElapsedMillis: update.Elapsed.Milliseconds(),
	})
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			delete(h.conns, conn)
			conn.Close()
		}
	}
}
