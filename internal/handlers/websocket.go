package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"casino-miniapp/internal/models"
	"casino-miniapp/internal/services"
	"casino-miniapp/internal/session"
)

// eventView carries a full redraw, sent on connect and on request.
const eventView session.EventType = "view"

type HubConfig struct {
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	SendBuffer     int
	ActionTimeout  time.Duration
	CheckOrigin    func(r *http.Request) bool
}

func DefaultHubConfig() HubConfig {
	return HubConfig{
		WriteTimeout:   10 * time.Second,
		ReadTimeout:    60 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 1024,
		SendBuffer:     256,
		ActionTimeout:  30 * time.Second,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// WebSocketHub fans session events out to every socket a player has open.
type WebSocketHub struct {
	mu      sync.RWMutex
	clients map[int64]map[*Client]bool

	broadcast chan *Message
	config    HubConfig
}

type Client struct {
	ID     string
	UserID int64
	Conn   *websocket.Conn
	Send   chan []byte
	hub    *WebSocketHub

	// done closes when the client leaves the hub. Send is never closed, so
	// action goroutines can keep enqueueing after a disconnect.
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(hub *WebSocketHub, userID int64, conn *websocket.Conn) *Client {
	return &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, hub.config.SendBuffer),
		hub:    hub,
		done:   make(chan struct{}),
	}
}

type Message struct {
	UserID int64
	Event  session.Event
}

// ClientMessage is what the mini-app sends up the socket.
type ClientMessage struct {
	Type   string           `json:"type"`
	Choice models.CoinSide  `json:"choice,omitempty"`
	Bonus  models.BonusKind `json:"bonus,omitempty"`
}

var _ services.Broadcaster = (*WebSocketHub)(nil)

func NewWebSocketHub(config HubConfig) *WebSocketHub {
	return &WebSocketHub{
		clients:   make(map[int64]map[*Client]bool),
		broadcast: make(chan *Message, 1000),
		config:    config,
	}
}

// Run delivers queued events until ctx is done.
func (hub *WebSocketHub) Run(ctx context.Context) {
	log.Info().Msg("websocket hub started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("websocket hub shutting down")
			return
		case message := <-hub.broadcast:
			hub.deliver(message)
		}
	}
}

// Publish queues ev for userID's sockets. It never blocks; when the queue
// is full the event is dropped.
func (hub *WebSocketHub) Publish(userID int64, ev session.Event) {
	select {
	case hub.broadcast <- &Message{UserID: userID, Event: ev}:
	default:
		log.Warn().Int64("user_id", userID).Str("event_type", string(ev.Type)).Msg("broadcast channel full, dropping message")
	}
}

func (hub *WebSocketHub) ClientCount(userID int64) int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.clients[userID])
}

func (hub *WebSocketHub) register(client *Client) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	if hub.clients[client.UserID] == nil {
		hub.clients[client.UserID] = make(map[*Client]bool)
	}
	hub.clients[client.UserID][client] = true

	log.Debug().Str("connection_id", client.ID).Int64("user_id", client.UserID).Msg("client registered")
}

func (hub *WebSocketHub) unregister(client *Client) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	clients, ok := hub.clients[client.UserID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	client.closeOnce.Do(func() { close(client.done) })
	if len(clients) == 0 {
		delete(hub.clients, client.UserID)
	}

	log.Debug().Str("connection_id", client.ID).Int64("user_id", client.UserID).Msg("client unregistered")
}

func (hub *WebSocketHub) deliver(message *Message) {
	data, err := json.Marshal(message.Event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event")
		return
	}

	hub.mu.RLock()
	targets := make([]*Client, 0, len(hub.clients[message.UserID]))
	for client := range hub.clients[message.UserID] {
		targets = append(targets, client)
	}
	hub.mu.RUnlock()

	for _, client := range targets {
		if !client.enqueue(data) {
			log.Warn().Str("connection_id", client.ID).Msg("send buffer full, closing connection")
			hub.unregister(client)
			client.Conn.Close()
		}
	}
}

// enqueue reports false when the client's buffer is full. Messages for a
// client that already left are dropped.
func (c *Client) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.Send <- data:
		return true
	case <-c.done:
		return true
	default:
		return false
	}
}

type WebSocketHandler struct {
	hub          *WebSocketHub
	sessions     *services.SessionManager
	redisService *services.RedisService
	upgrader     websocket.Upgrader
}

func NewWebSocketHandler(hub *WebSocketHub, sessions *services.SessionManager, redisService *services.RedisService) *WebSocketHandler {
	return &WebSocketHandler{
		hub:          hub,
		sessions:     sessions,
		redisService: redisService,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     hub.config.CheckOrigin,
		},
	}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	s, ok := liveSession(c, h.sessions, h.redisService)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade to websocket")
		return
	}

	client := newClient(h.hub, s.User().ID, conn)
	h.hub.register(client)
	client.sendView(s)

	go client.writePump()
	client.readPump(s)
}

func (c *Client) sendView(s *session.Session) {
	data, err := json.Marshal(session.Event{Type: eventView, Data: s.View()})
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal view")
		return
	}
	c.enqueue(data)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.hub.unregister(c)
	}()

	for {
		select {
		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to write message")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump(s *session.Session) {
	defer func() {
		c.hub.unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.hub.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
		return nil
	})

	for {
		var msg ClientMessage
		if err := c.Conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("unexpected websocket close")
			}
			return
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
		c.handleMessage(s, msg)
	}
}

// handleMessage runs actions in the background; their outcome reaches the
// socket as session events and notices.
func (c *Client) handleMessage(s *session.Session, msg ClientMessage) {
	switch msg.Type {
	case "ping":
		c.send(session.Event{Type: "pong", Data: gin.H{"timestamp": time.Now().Unix()}})
	case "unlock_audio":
		s.UnlockAudio()
	case "view":
		c.sendView(s)
	case "refresh":
		c.run(func(ctx context.Context) error { return s.Load(ctx) })
	case "spin":
		c.run(func(ctx context.Context) error {
			_, err := s.Spin(ctx)
			return err
		})
	case "coin_flip":
		c.run(func(ctx context.Context) error {
			_, err := s.FlipCoin(ctx, msg.Choice)
			return err
		})
	case "claim_bonus":
		c.run(func(ctx context.Context) error {
			_, err := s.ClaimBonus(ctx, msg.Bonus)
			return err
		})
	default:
		log.Debug().Str("connection_id", c.ID).Str("type", msg.Type).Msg("ignoring client message")
	}
}

func (c *Client) run(action func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.hub.config.ActionTimeout)
		defer cancel()
		if err := action(ctx); err != nil {
			if _, classified := session.Classify(err); !classified {
				c.send(session.Event{Type: "error", Data: gin.H{"error": err.Error()}})
			}
		}
	}()
}

func (c *Client) send(ev session.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	c.enqueue(data)
}
