package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/planter-core/internal/infrastructure/config"
)

// Message types on the WebSocket protocol.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeStatus      = "status"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

const (
	wsSendBufferSize    = 256
	defaultPingInterval = 30 * time.Second
	defaultPongTimeout  = 10 * time.Second
)

// WSMessage is the envelope for every frame the server writes.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	Channel   string `json:"channel,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// wsRequest is a frame sent by a client.
type wsRequest struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type channelsPayload struct {
	Channels []string `json:"channels"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

func encode(msg WSMessage) ([]byte, error) {
	if msg.Timestamp == "" {
		msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	return json.Marshal(msg)
}

// wsClient is one WebSocket connection and its channel subscriptions.
type wsClient struct {
	hub    *Hub
	conn   *websocket.Conn
	status func() any

	mu       sync.Mutex
	channels map[string]struct{}
	send     chan []byte
	closed   bool
}

func newWSClient(hub *Hub, conn *websocket.Conn, status func() any, channels []string) *wsClient {
	c := &wsClient{
		hub:      hub,
		conn:     conn,
		status:   status,
		channels: make(map[string]struct{}, len(channels)),
		send:     make(chan []byte, wsSendBufferSize),
	}
	for _, ch := range channels {
		c.channels[ch] = struct{}{}
	}
	return c
}

// parseChannels splits a comma separated ?channels= value. An empty value
// subscribes to status updates only.
func parseChannels(v string) []string {
	var out []string
	for _, ch := range strings.Split(v, ",") {
		if ch = strings.TrimSpace(ch); ch != "" {
			out = append(out, ch)
		}
	}
	if len(out) == 0 {
		return []string{ChannelStatusUpdated}
	}
	return out
}

// handleWebSocket upgrades the connection. Clients start on the channels
// named in ?channels=a,b and can change them with subscribe/unsubscribe
// frames. A client on status.updated receives the current status at once.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	channels := parseChannels(r.URL.Query().Get("channels"))

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := newWSClient(s.hub, conn, func() any { return s.monitor.Status() }, channels)
	if c.subscribed(ChannelStatusUpdated) {
		c.reply(WSMessage{Type: WSTypeEvent, Channel: ChannelStatusUpdated, Payload: c.status()})
	}
	s.hub.Register(c)

	go c.writePump(s.wsCfg)
	go c.readPump(s.wsCfg)
}

func wsTimings(cfg config.WebSocketConfig) (ping, pong time.Duration) {
	ping = time.Duration(cfg.PingInterval) * time.Second
	if ping <= 0 {
		ping = defaultPingInterval
	}
	pong = time.Duration(cfg.PongTimeout) * time.Second
	if pong <= 0 {
		pong = defaultPongTimeout
	}
	return ping, pong
}

func (c *wsClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	ping, pong := wsTimings(cfg)
	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(ping + pong)) }

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	_ = extend() //nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		// Browsers often ignore protocol pings; any frame keeps the client alive.
		_ = extend() //nolint:errcheck // Best-effort deadline reset
		c.handle(data)
	}
}

func (c *wsClient) writePump(cfg config.WebSocketConfig) {
	ping, pong := wsTimings(cfg)
	ticker := time.NewTicker(ping)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pong))
			if !ok {
				//nolint:errcheck // Best-effort close frame
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pong))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) handle(data []byte) {
	var req wsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.fail("", "invalid JSON message")
		return
	}

	switch req.Type {
	case WSTypeSubscribe, WSTypeUnsubscribe:
		var p channelsPayload
		if len(req.Payload) == 0 || json.Unmarshal(req.Payload, &p) != nil || len(p.Channels) == 0 {
			c.fail(req.ID, req.Type+" needs a channels list")
			return
		}
		c.mu.Lock()
		for _, ch := range p.Channels {
			if req.Type == WSTypeSubscribe {
				c.channels[ch] = struct{}{}
			} else {
				delete(c.channels, ch)
			}
		}
		c.mu.Unlock()
		c.hub.logger.Debug("websocket subscriptions changed", "op", req.Type, "channels", p.Channels)
		c.reply(WSMessage{Type: WSTypeResponse, ID: req.ID, Payload: map[string][]string{req.Type + "d": p.Channels}})
	case WSTypePing:
		c.reply(WSMessage{Type: WSTypePong, ID: req.ID})
	case WSTypeStatus:
		c.reply(WSMessage{Type: WSTypeResponse, ID: req.ID, Channel: ChannelStatusUpdated, Payload: c.status()})
	default:
		c.fail(req.ID, "unknown message type: "+req.Type)
	}
}

func (c *wsClient) reply(msg WSMessage) {
	data, err := encode(msg)
	if err != nil {
		c.hub.logger.Error("failed to encode websocket message", "type", msg.Type, "error", err)
		return
	}
	c.enqueue(data)
}

func (c *wsClient) fail(id, message string) {
	c.reply(WSMessage{Type: WSTypeError, ID: id, Payload: map[string]string{"message": message}})
}

func (c *wsClient) subscribed(channel string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.channels[channel]
	return ok
}

// enqueue reports false when the client is gone or its queue is full.
func (c *wsClient) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// shutdown closes the send queue; writePump then sends a close frame and
// drops the connection.
func (c *wsClient) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
