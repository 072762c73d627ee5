package notify

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/tsogoo/chimege-transcribe/internal/jobstore"
)

const (
	writeTimeout = 5 * time.Second
	frameBuffer  = 8
)

type statusFrame struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// subscriber owns one websocket connection. Writes go through a buffered
// channel drained by a dedicated goroutine, so Publish never touches the
// socket itself.
type subscriber struct {
	conn   *websocket.Conn
	frames chan statusFrame
}

func (s *subscriber) writeLoop() {
	for frame := range s.frames {
		s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := s.conn.WriteJSON(frame); err != nil {
			break
		}
	}
	// Wake the handler's read loop so the connection is torn down.
	s.conn.Close()
}

// Hub fans status updates out to websocket subscribers. A subscriber whose
// frame buffer fills up is dropped; the pipeline never blocks on slow clients.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[*websocket.Conn]*subscriber
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*websocket.Conn]*subscriber)}
}

func (h *Hub) Subscribe(jobID string, conn *websocket.Conn) {
	sub := &subscriber{conn: conn, frames: make(chan statusFrame, frameBuffer)}
	go sub.writeLoop()

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[jobID] == nil {
		h.subs[jobID] = make(map[*websocket.Conn]*subscriber)
	}
	h.subs[jobID][conn] = sub
}

func (h *Hub) Unsubscribe(jobID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(jobID, conn)
}

// Publish queues {"job_id", "status"} for every subscriber of jobID. A full
// buffer means the client stopped reading; it is dropped on the spot rather
// than holding anything up.
func (h *Hub) Publish(jobID string, status jobstore.Status) {
	h.mu.Lock()
	defer h.mu.Unlock()

	frame := statusFrame{JobID: jobID, Status: string(status)}
	for conn, sub := range h.subs[jobID] {
		select {
		case sub.frames <- frame:
		default:
			logrus.WithField("job_id", jobID).Debug("dropping stalled status subscriber")
			h.removeLocked(jobID, conn)
		}
	}
}

func (h *Hub) removeLocked(jobID string, conn *websocket.Conn) {
	conns, ok := h.subs[jobID]
	if !ok {
		return
	}
	if sub, ok := conns[conn]; ok {
		delete(conns, conn)
		close(sub.frames)
	}
	if len(conns) == 0 {
		delete(h.subs, jobID)
	}
}
