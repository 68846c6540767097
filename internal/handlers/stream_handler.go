package handlers

import (
	"log"
	"net/http"
	"time"

	"fieldops-backend/internal/metrics"
	"fieldops-backend/internal/repositories"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Browser clients come through the authenticated app shell; origin
	// policy is enforced by the CORS layer in front
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamHandler pushes the full annotated schedule snapshot to a WebSocket
// client on every store change. One store subscription per client; closing
// the socket tears the subscription down.
type StreamHandler struct {
	Repo *repositories.ScheduleRepository
}

func NewStreamHandler(repo *repositories.ScheduleRepository) *StreamHandler {
	return &StreamHandler{Repo: repo}
}

func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Stream] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	snapshots, unsubscribe, err := h.Repo.Subscribe(r.Context())
	if err != nil {
		log.Printf("[Stream] subscribe failed: %v", err)
		return
	}
	defer unsubscribe()

	metrics.StreamClients.Inc()
	defer metrics.StreamClients.Dec()

	// Drain client frames so close/ping control messages are processed
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				unsubscribe()
				return
			}
		}
	}()

	for entries := range snapshots {
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(AnnotateEntries(entries)); err != nil {
			return
		}
	}
}
