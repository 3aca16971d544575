package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/guidesense/guidesense/pkg/types"
	"github.com/guidesense/guidesense/server/internal/store"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong response before treating the
	// connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod controls how often the server sends WebSocket ping frames.
	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-client outgoing message buffer depth.
	sendBufSize = 16
)

// Event names.
const (
	EventSummary = "summary"
	EventReport  = "report"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Allow all origins; callers should apply CORS at the reverse-proxy level.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Message is the JSON envelope sent to clients.
type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// GuideStatus is the latest state of one guide.
type GuideStatus struct {
	GuideSpecID int64     `json:"guide_spec_id"`
	Series      string    `json:"series"`
	ReportID    string    `json:"report_id"`
	Source      string    `json:"source,omitempty"`
	HealthScore float64   `json:"health_score"`
	Severity    string    `json:"severity"`
	Kurtosis    float64   `json:"kurtosis"`
	Defect      bool      `json:"defect_detected"`
	Timestamp   time.Time `json:"timestamp"`
}

// Summary is the payload of the periodic "summary" event.
type Summary struct {
	Guides      []GuideStatus `json:"guides"`
	ReportCount int           `json:"report_count"`
	GeneratedAt string        `json:"generated_at"` // RFC3339
}

// Hub manages WebSocket client connections. It pushes every accepted report
// as a "report" event and broadcasts a fleet summary to all connected
// clients every interval.
type Hub struct {
	store    *store.Store
	interval time.Duration

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// client represents one connected WebSocket client.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// New creates a Hub that reads from st and broadcasts every interval.
func New(st *store.Store, interval time.Duration) *Hub {
	return &Hub{
		store:    st,
		interval: interval,
		clients:  make(map[*client]struct{}),
	}
}

// Run starts the broadcast ticker loop. It sends the current summary to all
// connected clients every interval. Run blocks until ctx is cancelled, then
// closes all active connections.
func (h *Hub) Run(ctx context.Context) {
	t := time.NewTicker(h.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-t.C:
			if data, err := h.summaryMessage(); err == nil {
				h.broadcast(data)
			}
		}
	}
}

// Publish pushes r to every connected client as a "report" event.
func (h *Hub) Publish(r *types.DiagnosisReport) {
	data, err := json.Marshal(Message{Event: EventReport, Data: r})
	if err != nil {
		slog.Error("ws: encode report", "id", r.ID, "err", err)
		return
	}
	h.broadcast(data)
}

// ServeHTTP upgrades the HTTP connection to WebSocket and serves the client.
// It sends the current summary immediately on connect, then continues to
// receive broadcasts. Blocks until the connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, sendBufSize),
	}
	h.register(c)
	defer h.unregister(c)

	// Send the current summary immediately so the UI has data right away.
	if data, err := h.summaryMessage(); err == nil {
		h.mu.RLock()
		if _, ok := h.clients[c]; ok {
			select {
			case c.send <- data:
			default:
			}
		}
		h.mu.RUnlock()
	}

	go c.writePump()
	c.readPump() // blocks until connection closes
}

// Count returns the number of currently connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// --- internal ---------------------------------------------------------------

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// broadcast queues data for every client. Sends happen under the read lock
// so that unregister cannot close a channel mid-send.
func (h *Hub) broadcast(data []byte) {
	var slow []*client

	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	// A client whose outgoing buffer is full is disconnected.
	for _, c := range slow {
		h.unregister(c)
	}
}

func (h *Hub) summaryMessage() ([]byte, error) {
	latest := h.store.Latest()
	sum := Summary{
		Guides:      make([]GuideStatus, 0, len(latest)),
		ReportCount: h.store.Count(),
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
	for _, r := range latest {
		sum.Guides = append(sum.Guides, GuideStatus{
			GuideSpecID: r.GuideSpecID,
			Series:      r.Series,
			ReportID:    r.ID,
			Source:      r.Source,
			HealthScore: r.HealthScore,
			Severity:    r.Severity,
			Kurtosis:    r.TimeFeatures.Kurtosis,
			Defect:      r.EnvelopeFeatures.DefectDetected,
			Timestamp:   r.Timestamp,
		})
	}
	return json.Marshal(Message{Event: EventSummary, Data: sum})
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// writePump drains the client's send channel and forwards messages to the
// WebSocket connection. It also sends periodic ping frames. Runs in its own
// goroutine per client.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				// Channel was closed (hub is shutting down or client removed).
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads frames from the connection to process control messages (pong,
// close) and detect disconnects. Blocks until the connection closes.
func (c *client) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}
