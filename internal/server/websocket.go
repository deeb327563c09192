package server

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/kode4food/caravan/topic"

	"github.com/kode4food/runstream/pkg/api"
	"github.com/kode4food/runstream/pkg/log"
)

// Socket is one client connection on the /ws channel
type Socket struct {
	server   *Server
	conn     *websocket.Conn
	consumer topic.Consumer[*api.ExecutionUpdate]
	userID   string
	authed   bool
}

const (
	writeWait          = 10 * time.Second
	pongWait           = 60 * time.Second
	pingPeriod         = (pongWait * 9) / 10
	maxMessageSize     = 4096
	wsBufferSize       = 1024
	incomingBufferSize = 16
	tokenCheckTimeout  = 5 * time.Second

	authFailedMessage = "authentication failed"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  wsBufferSize,
	WriteBufferSize: wsBufferSize,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed",
			log.Error(err))
		return
	}

	sock := &Socket{
		server:   s,
		conn:     conn,
		consumer: s.hub.NewConsumer(),
		authed:   s.tokens == nil,
	}
	s.registerSocket(sock)
	go sock.run()
}

// Close ends the socket's connection; its run loop then unregisters it
func (c *Socket) Close() {
	_ = c.conn.Close()
}

func (c *Socket) run() {
	defer func() {
		c.server.unregisterSocket(c)
		c.consumer.Close()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	incoming := make(chan []byte, incomingBufferSize)
	go c.readMessages(incoming)

	for {
		select {
		case data, ok := <-incoming:
			if !ok {
				return
			}
			if !c.handleMessage(data) {
				return
			}

		case u, ok := <-c.consumer.Receive():
			if !ok {
				_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if !c.sendUpdate(u) {
				return
			}

		case <-ticker.C:
			if !c.sendPing() {
				return
			}
		}
	}
}

func (c *Socket) readMessages(incoming chan []byte) {
	defer close(incoming)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		incoming <- data
	}
}

func (c *Socket) handleMessage(data []byte) bool {
	msg, err := api.ParseMessage(data)
	if err != nil {
		slog.Warn("Failed to parse WebSocket message",
			log.Error(err))
		return true
	}

	switch msg.Type {
	case api.TypeAuth:
		return c.authenticate(msg.Auth)
	case api.TypeError:
		slog.Warn("Client reported error",
			log.UserID(c.userID),
			log.ErrorString(msg.Error.Message))
	}
	return true
}

func (c *Socket) authenticate(req *api.AuthRequest) bool {
	c.userID = req.UserID
	if c.server.tokens == nil {
		slog.Debug("Socket identified", log.UserID(c.userID))
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), tokenCheckTimeout)
	defer cancel()
	expected, err := c.server.tokens.Token(ctx)
	if err == nil && subtle.ConstantTimeCompare(
		[]byte(expected), []byte(req.Token),
	) == 1 {
		c.authed = true
		slog.Info("Socket authenticated", log.UserID(c.userID))
		return true
	}

	if err != nil {
		slog.Error("Failed to load relay token", log.Error(err))
	}
	slog.Warn("Socket authentication failed", log.UserID(c.userID))
	c.write(api.NewErrorMessage(authFailedMessage))
	return false
}

func (c *Socket) sendUpdate(u *api.ExecutionUpdate) bool {
	if !c.authed {
		return true
	}
	return c.write(api.NewUpdateMessage(u))
}

func (c *Socket) write(msg *api.Message) bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(msg); err != nil {
		slog.Error("WebSocket write failed",
			slog.String("type", string(msg.Type)),
			log.Error(err))
		return false
	}
	return true
}

func (c *Socket) sendPing() bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := c.conn.WriteMessage(websocket.PingMessage, nil)
	return err == nil
}
