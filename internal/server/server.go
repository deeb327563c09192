package server

import (
	"log/slog"
	"net/http"

	glog "github.com/gin-contrib/slog"
	"github.com/gin-gonic/gin"

	"github.com/kode4food/runstream/internal/auth"
	"github.com/kode4food/runstream/pkg/util"
)

type (
	// Server implements the relay HTTP API
	Server struct {
		hub      *Hub
		executor Executor
		tokens   auth.TokenSource
		sockets  util.Set[*Socket]
	}

	// Option configures a Server
	Option func(*Server)
)

// WithTokens requires sockets to authenticate with the token from ts before
// they receive updates
func WithTokens(ts auth.TokenSource) Option {
	return func(s *Server) {
		s.tokens = ts
	}
}

// NewServer creates a relay publishing through hub and starting runs with
// exec
func NewServer(hub *Hub, exec Executor, opts ...Option) *Server {
	s := &Server{
		hub:      hub,
		executor: exec,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetupRoutes configures and returns the HTTP router with all API endpoints
func (s *Server) SetupRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(glog.SetLogger(
		glog.WithLogger(func(c *gin.Context, l *slog.Logger) *slog.Logger {
			return slog.Default()
		}),
	))

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set(
			"Access-Control-Allow-Headers",
			"Content-Type, Authorization",
		)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})

	router.GET("/health", s.handleHealth)
	router.GET("/ws", s.handleWebSocket)

	flows := router.Group("/flows/:flowID")
	{
		flows.POST("/execute", s.handleExecute)
		flows.POST("/events", s.handleEvents)
	}

	return router
}

// SocketCount returns the number of connected sockets
func (s *Server) SocketCount() int {
	return s.sockets.Len()
}

func (s *Server) registerSocket(c *Socket) {
	s.sockets.Add(c)
}

func (s *Server) unregisterSocket(c *Socket) {
	s.sockets.Remove(c)
}

// CloseWebSockets closes all active WebSocket connections
func (s *Server) CloseWebSockets() {
	for _, c := range s.sockets.Items() {
		c.Close()
	}
}
