package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kode4food/runstream"
	"github.com/kode4food/runstream/pkg/api"
)

const healthyStatus = "healthy"

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, api.HealthResponse{
		Service: runstream.Name + "-relay",
		Status:  healthyStatus,
		Sockets: s.SocketCount(),
	})
}
