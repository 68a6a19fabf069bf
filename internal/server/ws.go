package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/roomcount/internal/occupancy"
)

const (
	defaultStatusInterval = time.Second
	writeWait             = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is open on every route
	},
}

// StatusReader reports the current job status.
type StatusReader interface {
	Status() occupancy.Status
}

// StatusStream pushes job status snapshots to websocket clients at a fixed
// interval. It polls the same snapshot as GET /api/status.
type StatusStream struct {
	status   StatusReader
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	stop    chan struct{}
	once    sync.Once
}

// NewStatusStream creates a StatusStream and starts its broadcast loop.
func NewStatusStream(status StatusReader, interval time.Duration, logger *slog.Logger) *StatusStream {
	if interval <= 0 {
		interval = defaultStatusInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &StatusStream{
		status:   status,
		interval: interval,
		logger:   logger.With("component", "status_stream"),
		clients:  make(map[*websocket.Conn]bool),
		stop:     make(chan struct{}),
	}
	go s.broadcast()
	return s
}

// ServeHTTP handles WebSocket upgrade requests.
func (s *StatusStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// The first snapshot goes out before the client joins the broadcast set,
	// so each connection has a single writer at a time.
	if err := s.write(conn, s.status.Status()); err != nil {
		return
	}

	s.mu.Lock()
	select {
	case <-s.stop:
		s.mu.Unlock()
		return
	default:
	}
	s.clients[conn] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Clients returns the number of connected clients.
func (s *StatusStream) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Close stops the broadcast loop and disconnects every client.
func (s *StatusStream) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		close(s.stop)
		for conn := range s.clients {
			conn.Close()
		}
		s.mu.Unlock()
	})
}

// broadcast sends the status snapshot to all connected clients.
func (s *StatusStream) broadcast() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		if len(s.clients) == 0 {
			s.mu.Unlock()
			continue
		}
		msg, err := json.Marshal(s.status.Status())
		if err != nil {
			s.mu.Unlock()
			s.logger.Warn("failed to encode status", "error", err)
			continue
		}
		for conn := range s.clients {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				// The reader loop sees the closed connection and deregisters it.
				conn.Close()
			}
		}
		s.mu.Unlock()
	}
}

func (s *StatusStream) write(conn *websocket.Conn, status occupancy.Status) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(status)
}
