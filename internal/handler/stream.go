package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/smartpark/internal/model"
	"github.com/iliyamo/smartpark/internal/status"
)

const (
	clientBuffer = 8
	writeWait    = 5 * time.Second
	pingPeriod   = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboards are served from other origins
	},
}

// StreamMessage is what /ws clients receive whenever the lot changes.
type StreamMessage struct {
	Seq       uint64                `json:"seq"`
	Status    model.AggregateStatus `json:"status"`
	Spaces    []model.RegionStatus  `json:"spaces"`
	Timestamp float64               `json:"timestamp"`
}

func newStreamMessage(s *status.Snapshot) StreamMessage {
	spaces := s.Spaces
	if spaces == nil {
		spaces = []model.RegionStatus{}
	}
	return StreamMessage{Seq: s.Seq, Status: s.Status, Spaces: spaces, Timestamp: unixSeconds(s.PublishedAt)}
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub fans snapshot changes out to websocket clients.  A client that
// cannot keep up loses messages instead of stalling the others; every
// message carries the full state so a later one supersedes anything
// missed.
type Hub struct {
	store *status.Store

	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	done       chan struct{}

	mu      sync.RWMutex
	clients map[string]*client
}

// NewHub returns a hub reading from store.  Run must be started.
func NewHub(store *status.Store) *Hub {
	return &Hub{
		store:      store,
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, clientBuffer),
		done:       make(chan struct{}),
		clients:    make(map[string]*client),
	}
}

// Run subscribes to the store and serves clients until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	unsubscribe := h.store.Subscribe(h.publish)
	defer unsubscribe()
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, cl := range h.clients {
				close(cl.send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return nil

		case cl := <-h.register:
			h.mu.Lock()
			h.clients[cl.id] = cl
			n := len(h.clients)
			h.mu.Unlock()
			log.Debug().Str("component", "ws").Str("client", cl.id).Int("clients", n).Msg("client connected")

		case cl := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[cl.id]; ok {
				close(cl.send)
				delete(h.clients, cl.id)
			}
			n := len(h.clients)
			h.mu.Unlock()
			log.Debug().Str("component", "ws").Str("client", cl.id).Int("clients", n).Msg("client disconnected")

		case msg := <-h.broadcast:
			h.mu.RLock()
			for _, cl := range h.clients {
				select {
				case cl.send <- msg:
				default:
					log.Warn().Str("component", "ws").Str("client", cl.id).Msg("client too slow, dropping message")
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// publish is the store listener.  It runs on the processing loop, so it
// never blocks.
func (h *Hub) publish(s *status.Snapshot) {
	msg, err := json.Marshal(newStreamMessage(s))
	if err != nil {
		log.Error().Str("component", "ws").Err(err).Msg("marshal snapshot")
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		log.Warn().Str("component", "ws").Msg("broadcast channel is full, dropping message")
	}
}

// Serve handles GET /ws.  The current snapshot is sent on connect.
func (h *Hub) Serve(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Warn().Str("component", "ws").Err(err).Msg("upgrade failed")
		return nil
	}
	cl := &client{id: uuid.NewString(), conn: conn, send: make(chan []byte, clientBuffer)}
	if first, err := json.Marshal(newStreamMessage(h.store.Current())); err == nil {
		cl.send <- first
	}

	select {
	case h.register <- cl:
	case <-h.done:
		_ = conn.Close()
		return nil
	case <-c.Request().Context().Done():
		_ = conn.Close()
		return nil
	}
	go h.writePump(cl)
	h.readPump(cl)
	return nil
}

// readPump discards inbound messages and detects disconnects.
func (h *Hub) readPump(cl *client) {
	defer func() {
		select {
		case h.unregister <- cl:
		case <-h.done:
		}
	}()
	cl.conn.SetReadLimit(512)
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Str("component", "ws").Str("client", cl.id).Err(err).Msg("read failed")
			}
			return
		}
	}
}

func (h *Hub) writePump(cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = cl.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
