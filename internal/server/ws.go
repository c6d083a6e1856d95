package server

import (
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// Progress is one WebSocket progress message for a job.
type Progress struct {
	Stage   string  `json:"stage"`
	Percent float64 `json:"percent"`
	Message string  `json:"message,omitempty"`
}

// ProgressHub fans analysis progress out to the WebSocket subscribers
// of each job.
type ProgressHub struct {
	mu   sync.RWMutex
	subs map[string]map[*websocket.Conn]bool
}

// NewProgressHub creates an empty hub.
func NewProgressHub() *ProgressHub {
	return &ProgressHub{subs: make(map[string]map[*websocket.Conn]bool)}
}

// ServeHTTP upgrades GET /api/progress/{id} to a WebSocket and streams
// the job's progress until the client disconnects.
func (h *ProgressHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimPrefix(r.URL.Path, "/api/progress/")
	if jobID == "" {
		http.Error(w, "job id required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	h.subscribe(jobID, conn)
	defer h.unsubscribe(jobID, conn)

	// Keep the connection alive by reading until the client leaves.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (h *ProgressHub) subscribe(jobID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[jobID] == nil {
		h.subs[jobID] = make(map[*websocket.Conn]bool)
	}
	h.subs[jobID][conn] = true
}

func (h *ProgressHub) unsubscribe(jobID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[jobID], conn)
	if len(h.subs[jobID]) == 0 {
		delete(h.subs, jobID)
	}
}

// Publish sends the progress message to every subscriber of the job.
// Jobs without subscribers are a no-op.
func (h *ProgressHub) Publish(jobID string, p Progress) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn := range h.subs[jobID] {
		if err := conn.WriteJSON(p); err != nil {
			log.Printf("websocket write to job %s subscriber: %v", jobID, err)
		}
	}
}
