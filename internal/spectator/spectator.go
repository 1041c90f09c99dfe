// Package spectator serves self-play games live over a websocket, for
// a browser or CLI viewer to watch a running trainer. The teacher's
// downloader dialed out to pull externally-played games; this server
// instead pushes internally-generated ones, so the client/server roles
// are inverted but the wire framing is kept.
package spectator

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// GameEvent is the wire envelope for every message sent to viewers,
// matching the teacher's {Type, Data} framing so a single connection
// can carry heterogeneous event kinds (move, game_start, game_end).
type GameEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// MoveEvent is one self-play move, emitted once per step of the
// spectated game.
type MoveEvent struct {
	GameID string  `json:"game_id"`
	Turn   int     `json:"turn"`
	Board  []int   `json:"board"`
	Action string  `json:"action"`
	Reward float32 `json:"reward"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Server fans out published events to every connected viewer. A slow or
// disconnected viewer never blocks publishing: its send channel is
// bounded and the server drops the connection if it falls behind.
type Server struct {
	log *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

// New constructs an empty Server. Call Handler to obtain the HTTP
// handler to mount (typically at "/spectate").
func New(log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{log: log, clients: make(map[*client]struct{})}
}

// Handler upgrades incoming requests to websocket connections and
// registers them as viewers until they disconnect.
func (s *Server) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.log.Warn("spectator: upgrade failed", "err", err)
			return
		}
		c := &client{conn: conn, send: make(chan []byte, 64)}

		s.mu.Lock()
		s.clients[c] = struct{}{}
		s.mu.Unlock()

		go s.writePump(c)
		go s.readPump(c)
	}
}

func (s *Server) readPump(c *client) {
	defer s.drop(c)
	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writePump(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (s *Server) drop(c *client) {
	s.mu.Lock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
	s.mu.Unlock()
}

// Publish broadcasts an event of the given type to every connected
// viewer. Viewers whose send buffer is full are dropped rather than
// letting one slow client stall self-play.
func (s *Server) Publish(eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn("spectator: marshal event failed", "err", err)
		return
	}
	frame, err := json.Marshal(GameEvent{Type: eventType, Data: data})
	if err != nil {
		s.log.Warn("spectator: marshal frame failed", "err", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- frame:
		default:
			delete(s.clients, c)
			close(c.send)
		}
	}
}

// PublishMove is a convenience wrapper publishing a "move" event.
func (s *Server) PublishMove(ev MoveEvent) {
	s.Publish("move", ev)
}
