package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = time.Minute
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
	outboxSize     = 64
)

type message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type client struct {
	id      string
	conn    *websocket.Conn
	outbox  chan []byte
	done    chan struct{}
	once    sync.Once
	limiter *rate.Limiter

	// Set once the client joined a room; only read under that room's lock.
	playerID string
}

func newClient(id string, conn *websocket.Conn, limiter *rate.Limiter) *client {
	return &client{
		id:      id,
		conn:    conn,
		outbox:  make(chan []byte, outboxSize),
		done:    make(chan struct{}),
		limiter: limiter,
	}
}

// enqueue never blocks. A client that cannot keep up is closed.
func (c *client) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.outbox <- data:
		return true
	default:
		log.Warn().Str("conn", c.id).Msg("ws outbox full, closing")
		c.close()
		return false
	}
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case data := <-c.outbox:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			c.flush()
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *client) flush() {
	for {
		select {
		case data := <-c.outbox:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		default:
			return
		}
	}
}

// hub groups clients by room code. Its mutex is a leaf: it may be taken while
// a room lock is held, never the other way round.
type hub struct {
	mu    sync.Mutex
	rooms map[string]map[*client]struct{}
}

func newHub() *hub {
	return &hub{rooms: make(map[string]map[*client]struct{})}
}

func (h *hub) subscribe(code string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.rooms[code]
	if group == nil {
		group = make(map[*client]struct{})
		h.rooms[code] = group
	}
	group[c] = struct{}{}
}

func (h *hub) unsubscribe(code string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.rooms[code]
	if group == nil {
		return
	}
	delete(group, c)
	if len(group) == 0 {
		delete(h.rooms, code)
	}
}

func (h *hub) dropRoom(code string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms, code)
}

func (h *hub) members(code string) []*client {
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.rooms[code]
	clients := make([]*client, 0, len(group))
	for c := range group {
		clients = append(clients, c)
	}
	return clients
}

func (h *hub) count(code string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[code])
}

func encode(msgType string, data any) ([]byte, bool) {
	payload, err := json.Marshal(message{Type: msgType, Data: data})
	if err != nil {
		log.Error().Err(err).Str("type", msgType).Msg("encode ws message")
		return nil, false
	}
	return payload, true
}

func (h *hub) send(c *client, msgType string, data any) {
	if payload, ok := encode(msgType, data); ok {
		c.enqueue(payload)
	}
}

// broadcast must be called inside the room's critical section so every
// subscriber sees that room's messages in the order they were produced.
func (h *hub) broadcast(code string, msgType string, data any) {
	payload, ok := encode(msgType, data)
	if !ok {
		return
	}
	for _, c := range h.members(code) {
		c.enqueue(payload)
	}
}

func (h *hub) sendToPlayer(code, playerID string, msgType string, data any) {
	payload, ok := encode(msgType, data)
	if !ok {
		return
	}
	for _, c := range h.members(code) {
		if c.playerID == playerID {
			c.enqueue(payload)
		}
	}
}

func (s *Server) handleWebsocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Str("remote", c.ClientIP()).Msg("ws upgrade failed")
		return
	}
	cl := newClient(s.newID(), conn, rate.NewLimiter(rate.Limit(s.cfg.IntentRatePerSecond), s.cfg.IntentBurst))
	log.Info().Str("conn", cl.id).Str("remote", c.ClientIP()).Msg("ws connected")

	go cl.writePump()
	s.readPump(cl)
}

func (s *Server) readPump(cl *client) {
	defer func() {
		s.disconnect(cl)
		cl.close()
	}()
	cl.conn.SetReadLimit(maxMessageSize)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Info().Err(err).Str("conn", cl.id).Msg("ws read failed")
			}
			return
		}
		select {
		case <-cl.done:
			return
		default:
		}
		if !cl.limiter.Allow() {
			s.hub.send(cl, eventError, errorPayload{Message: "too many requests"})
			continue
		}
		var in inbound
		if err := json.Unmarshal(data, &in); err != nil || in.Type == "" {
			s.hub.send(cl, eventError, errorPayload{Message: "invalid message"})
			continue
		}
		s.dispatch(cl, in)
	}
}
