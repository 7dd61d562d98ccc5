package volume

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = (pongWait * 9) / 10
	sendBufSize = 4
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1 << 16,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// viewer is one websocket connection receiving frames.
type viewer struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub broadcasts encoded frames to connected viewers. A viewer that falls
// behind loses frames rather than slowing the simulation.
type Hub struct {
	mu      sync.RWMutex
	viewers map[*viewer]bool
	dropped int
	closed  bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{viewers: make(map[*viewer]bool)}
}

// Handler upgrades requests to websocket viewers.
func (h *Hub) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("websocket upgrade failed", "error", err)
			return
		}
		v := &viewer{hub: h, conn: conn, send: make(chan []byte, sendBufSize)}
		if !h.add(v) {
			conn.Close()
			return
		}
		slog.Info("viewer connected", "remote", r.RemoteAddr)
		go v.writePump()
		go v.readPump()
	})
}

// Mux returns a mux serving the hub at /ws.
func (h *Hub) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/ws", h.Handler())
	return mux
}

func (h *Hub) add(v *viewer) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.viewers[v] = true
	return true
}

func (h *Hub) remove(v *viewer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.viewers[v]; ok {
		delete(h.viewers, v)
		close(v.send)
	}
}

// Viewers returns the number of connected viewers.
func (h *Hub) Viewers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.viewers)
}

// Dropped returns how many frame deliveries were skipped for slow viewers.
func (h *Hub) Dropped() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

// Broadcast queues data for every viewer without blocking.
func (h *Hub) Broadcast(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for v := range h.viewers {
		select {
		case v.send <- data:
		default:
			h.dropped++
		}
	}
}

// BroadcastFrame encodes f and broadcasts it. Nothing is encoded when no
// viewer is connected.
func (h *Hub) BroadcastFrame(f *Frame) error {
	if h.Viewers() == 0 {
		return nil
	}
	data, err := Encode(f)
	if err != nil {
		return err
	}
	h.Broadcast(data)
	return nil
}

// Close disconnects every viewer.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	for v := range h.viewers {
		delete(h.viewers, v)
		close(v.send)
	}
	h.mu.Unlock()
}

// readPump discards incoming messages and keeps the pong deadline fresh.
func (v *viewer) readPump() {
	defer func() {
		v.hub.remove(v)
		v.conn.Close()
	}()
	v.conn.SetReadLimit(512)
	v.conn.SetReadDeadline(time.Now().Add(pongWait))
	v.conn.SetPongHandler(func(string) error {
		v.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := v.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("viewer read error", "error", err)
			}
			return
		}
	}
}

func (v *viewer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		v.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-v.send:
			v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				v.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := v.conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := v.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
