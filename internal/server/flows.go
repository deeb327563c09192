package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kode4food/runstream/pkg/api"
	"github.com/kode4food/runstream/pkg/log"
)

var (
	ErrInvalidJSON    = errors.New("invalid JSON")
	ErrStartExecution = errors.New("failed to start execution")
	ErrFlowMismatch   = errors.New("flow id does not match path")
)

func (s *Server) handleExecute(c *gin.Context) {
	flowID := api.FlowID(c.Param("flowID"))

	var req api.StartRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Error:  fmt.Sprintf("%s: %v", ErrInvalidJSON, err),
			Status: http.StatusBadRequest,
		})
		return
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	err := s.executor.Execute(c.Request.Context(), flowID, runID)
	if err == nil {
		slog.Info("Execution accepted",
			log.FlowID(flowID),
			log.RunID(runID))
		c.String(http.StatusAccepted,
			"Execution started for flow %s (run %s)", flowID, runID)
		return
	}

	status := http.StatusInternalServerError
	if errors.Is(err, ErrAlreadyRunning) {
		status = http.StatusConflict
	}
	c.JSON(status, api.ErrorResponse{
		Error:  fmt.Sprintf("%s: %v", ErrStartExecution, err),
		Status: status,
	})
}

func (s *Server) handleEvents(c *gin.Context) {
	flowID := api.FlowID(c.Param("flowID"))

	var u api.ExecutionUpdate
	if err := c.ShouldBindJSON(&u); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Error:  fmt.Sprintf("%s: %v", ErrInvalidJSON, err),
			Status: http.StatusBadRequest,
		})
		return
	}

	if u.FlowID == "" {
		u.FlowID = flowID
	}
	if !u.MatchesFlow(flowID) {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Error:  fmt.Sprintf("%s: %s", ErrFlowMismatch, u.FlowID),
			Status: http.StatusBadRequest,
		})
		return
	}

	s.hub.Publish(&u)
	c.JSON(http.StatusAccepted, api.MessageResponse{
		Message: "Update published",
	})
}
