package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mossy-p/callrelay/internal/models"
	"github.com/mossy-p/callrelay/internal/relay"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	// Chat files arrive base64 encoded inside one frame. The UI caps files
	// at 4 MiB, about 5.6 MB once encoded.
	maxMessageSize = 8 << 20
	sendBufferSize = 256
)

var (
	ErrSendBufferFull = errors.New("send buffer full")
	ErrClientClosed   = errors.New("client closed")
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is handled by middleware
		return true
	},
}

// Client is one WebSocket connection. It implements relay.Conn.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	log  *zap.Logger

	mu        sync.RWMutex
	closed    bool
	done      chan struct{}
	closeOnce sync.Once
}

var _ relay.Conn = (*Client)(nil)

func newClient(conn *websocket.Conn, log *zap.Logger) *Client {
	id := uuid.New().String()
	return &Client{
		id:   id,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		log:  log.With(zap.String("conn", id)),
		done: make(chan struct{}),
	}
}

func (c *Client) ID() string { return c.id }

// Send queues data for the write pump without blocking. Once the client is
// closed every call reports ErrClientClosed.
func (c *Client) Send(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrClientClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *Client) sendJSON(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error("failed to marshal message", zap.Error(err))
		return
	}
	if err := c.Send(data); err != nil {
		c.log.Warn("failed to send message", zap.Error(err))
	}
}

// markClosed stops Send from accepting data and signals the write pump.
func (c *Client) markClosed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.markClosed()
		c.conn.Close()
	})
}

// readPump feeds inbound frames to handle until the connection fails, then
// closes the client.
func (c *Client) readPump(handle func(data []byte)) {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("websocket error", zap.Error(err))
			}
			return
		}
		handle(message)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.log.Debug("failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

func (h *Handler) upgrade(c *gin.Context) (*Client, bool) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("failed to upgrade connection", zap.Error(err))
		return nil, false
	}
	return newClient(conn, h.log), true
}

// HandleNegotiation serves the offer/answer/ICE relay over one WebSocket.
func (h *Handler) HandleNegotiation(c *gin.Context) {
	client, ok := h.upgrade(c)
	if !ok {
		return
	}
	peer := h.negotiation.Attach(client)
	client.log.Debug("negotiation connection opened")

	go client.writePump()
	go func() {
		defer peer.Close()
		client.readPump(func(data []byte) {
			h.dispatchNegotiation(client, peer, data)
		})
	}()
}

func (h *Handler) dispatchNegotiation(client *Client, peer *relay.NegotiationPeer, data []byte) {
	var msg models.SignalMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		client.log.Debug("failed to parse message", zap.Error(err))
		client.sendJSON(models.SignalMessage{Type: models.SignalTypeError, Error: "invalid message"})
		return
	}

	switch msg.Type {
	case models.SignalTypeJoin:
		if err := peer.Join(msg.SessionID); err != nil {
			client.sendJSON(models.SignalMessage{Type: models.SignalTypeError, Error: err.Error()})
		}
	case models.SignalTypeOffer:
		peer.Offer(msg.SessionID, msg.Payload)
	case models.SignalTypeAnswer:
		peer.Answer(msg.SessionID, msg.Payload)
	case models.SignalTypeCandidate:
		peer.IceCandidate(msg.SessionID, msg.Payload)
	default:
		client.log.Debug("unknown message type", zap.String("type", string(msg.Type)))
		client.sendJSON(models.SignalMessage{Type: models.SignalTypeError, Error: "unknown message type"})
	}
}

// HandleChat serves the chat relay over one WebSocket.
func (h *Handler) HandleChat(c *gin.Context) {
	client, ok := h.upgrade(c)
	if !ok {
		return
	}
	peer := h.chat.Attach(client)
	client.log.Debug("chat connection opened")

	go client.writePump()
	go func() {
		defer peer.Close()
		client.readPump(func(data []byte) {
			h.dispatchChat(client, peer, data)
		})
	}()
}

func (h *Handler) dispatchChat(client *Client, peer *relay.ChatPeer, data []byte) {
	var msg models.ChatMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		client.log.Debug("failed to parse message", zap.Error(err))
		client.sendJSON(models.ChatMessage{Type: models.SignalTypeError, Error: "invalid message"})
		return
	}

	switch msg.Type {
	case models.SignalTypeJoin:
		if err := peer.Join(msg.SessionID); err != nil {
			client.sendJSON(models.ChatMessage{Type: models.SignalTypeError, Error: err.Error()})
		}
	case models.ChatTypeSendMessage:
		peer.SendMessage(msg.SessionID, msg.SenderID, msg.SenderName, msg.Text)
	case models.ChatTypeSendFile:
		peer.SendFile(msg.SessionID, msg.SenderID, msg.SenderName, models.File{
			Name:      msg.FileName,
			MediaType: msg.MediaType,
			Base64:    msg.Base64,
		})
	default:
		client.log.Debug("unknown message type", zap.String("type", string(msg.Type)))
		client.sendJSON(models.ChatMessage{Type: models.SignalTypeError, Error: "unknown message type"})
	}
}
