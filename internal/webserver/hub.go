package webserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/psidex/wsmonitor/internal/chart"
	"github.com/psidex/wsmonitor/internal/lib"
	"github.com/psidex/wsmonitor/internal/metrics"
)

// Toast icons understood by the dashboard.
const (
	IconSuccess = "success"
	IconError   = "error"
	IconWarning = "warning"
	IconInfo    = "info"
)

// Syncer hands a consistent copy of the current graph to fn. *chart.Network
// satisfies it.
type Syncer interface {
	Sync(fn func([]chart.Event))
}

type viewer struct {
	id   string
	send chan []byte
}

// Hub fans graph events and toasts out to every connected viewer.
type Hub struct {
	logger       *slog.Logger
	mu           *sync.Mutex
	viewers      map[string]*viewer
	buffer       int
	writeTimeout time.Duration
	upgrader     websocket.Upgrader
	closed       bool
}

// NewHub builds a Hub. buffer is how many messages a viewer may fall behind before it
// is disconnected.
func NewHub(logger *slog.Logger, buffer int, writeTimeout time.Duration) *Hub {
	if logger == nil {
		logger = lib.QuietLogger()
	}
	if buffer < 1 {
		buffer = 1
	}
	return &Hub{
		logger:       logger,
		mu:           &sync.Mutex{},
		viewers:      make(map[string]*viewer),
		buffer:       buffer,
		writeTimeout: writeTimeout,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Observe implements chart.Observer.
func (h *Hub) Observe(ev chart.Event) {
	h.broadcast(ev)
}

// Toast shows a notification on every viewer's dashboard.
func (h *Hub) Toast(title, icon string) {
	h.broadcast(toastMessage(title, icon))
}

func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.viewers)
}

// Close disconnects every viewer and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, v := range h.viewers {
		h.drop(v)
	}
}

// Session upgrades the request, replays the current graph from graph and then streams
// live events until the viewer goes away. Anything the viewer sends is ignored.
func (h *Hub) Session(graph Syncer, w http.ResponseWriter, r *http.Request) {
	c, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", "err", err)
		return
	}
	ws := lib.NewThreadSafeWebSocket(c, h.writeTimeout)
	defer ws.Close()

	var v *viewer
	graph.Sync(func(events []chart.Event) {
		v = h.register(events)
	})
	if v == nil {
		return
	}
	logger := h.logger.With("viewer", v.id)
	logger.Info("Viewer connected")

	go func() {
		defer h.unregister(v)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// send is closed when the viewer is dropped, either by the reader above or by the
	// hub when the viewer falls behind.
	for msg := range v.send {
		if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
			logger.Debug("Viewer write failed", "err", err)
			h.unregister(v)
			break
		}
	}
	logger.Info("Viewer disconnected")
}

// register runs inside Sync, so events queued here precede any live event.
func (h *Hub) register(events []chart.Event) *viewer {
	v := &viewer{
		id:   uuid.NewString(),
		send: make(chan []byte, len(events)+h.buffer),
	}
	for _, ev := range events {
		msg, err := json.Marshal(ev)
		if err != nil {
			h.logger.Error("Failed to encode graph event", "err", err)
			continue
		}
		v.send <- msg
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.viewers[v.id] = v
	metrics.Viewers.Set(float64(len(h.viewers)))
	return v
}

func (h *Hub) unregister(v *viewer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop(v)
}

// drop must be called with h.mu held.
func (h *Hub) drop(v *viewer) {
	if _, ok := h.viewers[v.id]; !ok {
		return
	}
	delete(h.viewers, v.id)
	close(v.send)
	metrics.Viewers.Set(float64(len(h.viewers)))
}

func (h *Hub) broadcast(payload any) {
	msg, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Failed to encode viewer message", "err", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, v := range h.viewers {
		select {
		case v.send <- msg:
		default:
			h.logger.Warn("Viewer too slow, disconnecting", "viewer", v.id)
			metrics.ViewersDropped.Inc()
			h.drop(v)
		}
	}
}
