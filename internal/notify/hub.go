/*
Package notify
File: hub.go
Description:
    The websocket Hub pushes notifications to connected players.

    Each connection subscribes to exactly one player id. The Hub keeps a
    registry of live clients per player and fans a notification out to every
    socket that player has open (several tabs or devices).

    Architecture:
    - Hub: owns the registry; all registry changes go through its Run loop.
    - Client: one socket, with a buffered outbound queue drained by writePump.
    - ServeWs: upgrades the HTTP request and registers the client.
*/

package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

// Message is the JSON envelope written to sockets.
type Message struct {
	Type    Kind           `json:"type"`    // notification kind
	Payload map[string]any `json:"payload"` // notification data
	Sender  string         `json:"sender"`  // always "system" for engine events
}

// Client is one connected socket.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	player string
	send   chan []byte
}

type delivery struct {
	player string
	msg    []byte
}

// Hub maintains the set of active clients per player.
type Hub struct {
	clients    map[string]map[*Client]bool
	deliver    chan delivery
	register   chan *Client
	unregister chan *Client
	count      chan chan int
	done       chan struct{} // closed when Run returns
}

// NewHub creates a Hub. Run must be started before use.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		deliver:    make(chan delivery, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		count:      make(chan chan int),
		done:       make(chan struct{}),
	}
}

// Run is the Hub event loop. It returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, set := range h.clients {
				for c := range set {
					close(c.send)
				}
			}
			h.clients = make(map[string]map[*Client]bool)
			return

		case c := <-h.register:
			if h.clients[c.player] == nil {
				h.clients[c.player] = make(map[*Client]bool)
			}
			h.clients[c.player][c] = true
			log.Debug().Str("player", c.player).Msg("ws client registered")

		case c := <-h.unregister:
			if set, ok := h.clients[c.player]; ok && set[c] {
				delete(set, c)
				close(c.send)
				if len(set) == 0 {
					delete(h.clients, c.player)
				}
			}

		case d := <-h.deliver:
			for c := range h.clients[d.player] {
				select {
				case c.send <- d.msg:
				default:
					// slow consumer: drop it
					delete(h.clients[d.player], c)
					close(c.send)
				}
			}

		case reply := <-h.count:
			n := 0
			for _, set := range h.clients {
				n += len(set)
			}
			reply <- n
		}
	}
}

// Notify implements Notifier. Players without an open socket are skipped.
func (h *Hub) Notify(ctx context.Context, n Notification) {
	b, err := json.Marshal(Message{Type: n.Kind, Payload: n.Data, Sender: "system"})
	if err != nil {
		log.Error().Err(err).Str("kind", string(n.Kind)).Msg("encode notification")
		return
	}
	select {
	case h.deliver <- delivery{player: n.Player, msg: b}:
	case <-ctx.Done():
	case <-h.done:
	}
}

// Connected returns the number of open sockets.
func (h *Hub) Connected() int {
	reply := make(chan int)
	select {
	case h.count <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWs upgrades the request and subscribes the socket to player.
func ServeWs(h *Hub, w http.ResponseWriter, r *http.Request, player string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade")
		return
	}
	c := &Client{hub: h, conn: conn, player: player, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// readPump only watches for close and pong frames; inbound text is ignored.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Str("player", c.player).Msg("ws read")
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
