package gateway

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/MaraKorvus/lobotjr/party"
	"github.com/MaraKorvus/lobotjr/player"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// CommandHandler receives whisper lines typed by a chat user.
type CommandHandler interface {
	HandleWhisper(user, line string)
}

// Frame is one outbound chat message.
type Frame struct {
	To   string `json:"to"`
	Text string `json:"text"`
	TsMs int64  `json:"ts_ms"`
}

// Connection is one chat user's WebSocket.
type Connection struct {
	User     string
	Conn     *websocket.Conn
	Send     chan []byte
	Gateway  *Gateway
	LastPing time.Time

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// Gateway bridges chat users to the lobby and delivers party and whisper
// messages back to them.
type Gateway struct {
	mu         sync.RWMutex
	conns      map[string]*Connection // normalized user -> connection
	handler    CommandHandler
	limiter    *rate.Limiter
	sendBuffer int
}

// New creates a gateway whose outbound writes share one rate limiter.
func New(sendRate float64, burst, sendBuffer int) *Gateway {
	if sendBuffer <= 0 {
		sendBuffer = 64
	}
	return &Gateway{
		conns:      make(map[string]*Connection),
		limiter:    rate.NewLimiter(rate.Limit(sendRate), burst),
		sendBuffer: sendBuffer,
	}
}

// SetHandler installs the whisper handler. It must be called before serving.
func (g *Gateway) SetHandler(h CommandHandler) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handler = h
}

// HandleWebSocket upgrades /ws?user=<name>. A second connection for the same
// user replaces the first.
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	user := strings.TrimSpace(r.URL.Query().Get("user"))
	if user == "" {
		http.Error(w, "missing user", http.StatusBadRequest)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Gateway] Upgrade error: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		User:     user,
		Conn:     conn,
		Send:     make(chan []byte, g.sendBuffer),
		Gateway:  g,
		LastPing: time.Now(),
		ctx:      ctx,
		cancel:   cancel,
	}

	key := player.NormalizeName(user)
	g.mu.Lock()
	prev := g.conns[key]
	g.conns[key] = c
	total := len(g.conns)
	g.mu.Unlock()
	if prev != nil {
		prev.close()
	}

	log.Printf("[Gateway] Client connected: %s, total: %d", user, total)

	go c.readPump()
	go c.writePump()
}

func (c *Connection) close() {
	c.once.Do(func() {
		c.cancel()
		c.Conn.Close()
	})
}

func (c *Connection) readPump() {
	defer func() {
		c.Gateway.removeConnection(c)
		c.close()
	}()

	c.Conn.SetReadLimit(4096)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		c.LastPing = time.Now()
		return nil
	})

	for {
		messageType, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[Gateway] Read error: %v", err)
			}
			break
		}
		if messageType != websocket.TextMessage {
			continue
		}
		line := strings.TrimSpace(string(message))
		if line == "" {
			continue
		}
		c.Gateway.mu.RLock()
		h := c.Gateway.handler
		c.Gateway.mu.RUnlock()
		if h != nil {
			h.HandleWhisper(c.User, line)
		}
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			c.Conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(time.Second))
			return

		case message := <-c.Send:
			if err := c.Gateway.limiter.Wait(c.ctx); err != nil {
				return
			}
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (g *Gateway) removeConnection(c *Connection) {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := player.NormalizeName(c.User)
	if g.conns[key] == c {
		delete(g.conns, key)
	}
	log.Printf("[Gateway] Client disconnected: %s, total: %d", c.User, len(g.conns))
}

// SendToIndividual whispers text to name. Offline users and full buffers
// drop the message.
func (g *Gateway) SendToIndividual(name, text string) {
	g.mu.RLock()
	c := g.conns[player.NormalizeName(name)]
	g.mu.RUnlock()
	if c == nil {
		return
	}

	data, err := json.Marshal(Frame{To: c.User, Text: text, TsMs: time.Now().UnixMilli()})
	if err != nil {
		log.Printf("[Gateway] Failed to marshal frame for %s: %v", name, err)
		return
	}
	select {
	case c.Send <- data:
	default:
		log.Printf("[Gateway] Send buffer full for %s, dropping message", c.User)
	}
}

// SendToParty whispers text to every current member.
func (g *Gateway) SendToParty(pt *party.Party, text string) {
	for _, m := range pt.Members() {
		g.SendToIndividual(m.Name(), text)
	}
}

// Online reports whether name has an open connection.
func (g *Gateway) Online(name string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.conns[player.NormalizeName(name)]
	return ok
}

// Close drops every connection.
func (g *Gateway) Close() {
	g.mu.Lock()
	conns := make([]*Connection, 0, len(g.conns))
	for _, c := range g.conns {
		conns = append(conns, c)
	}
	g.mu.Unlock()
	for _, c := range conns {
		c.close()
	}
}
