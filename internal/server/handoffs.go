package server

import (
	"fmt"
	"net/http"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/kriya/internal/bus"
	"github.com/zulandar/kriya/internal/errdefs"
	"github.com/zulandar/kriya/internal/models"
)

type handoffRequest struct {
	FromAgent string         `json:"fromAgent"`
	ToAgent   string         `json:"toAgent"`
	Task      string         `json:"task"`
	Context   map[string]any `json:"context"`
}

type statusRequest struct {
	Status string  `json:"status"`
	Result *string `json:"result"`
}

func (s *Server) createHandoff(c *gin.Context, from, to, task string, hctx map[string]any) (bus.Handoff, bool) {
	if utf8.RuneCountInString(task) > maxContent {
		s.abortError(c, invalid("task must be under %d characters", maxContent))
		return bus.Handoff{}, false
	}
	if from != "" && !s.Agents.Has(from) {
		s.abortError(c, fmt.Errorf("server: source agent %q: %w", from, errdefs.ErrNotFound))
		return bus.Handoff{}, false
	}
	h, err := s.Bus.CreateHandoff(c.Request.Context(), from, to, task, hctx)
	if err != nil {
		s.abortError(c, err)
		return bus.Handoff{}, false
	}
	return h, true
}

func (s *Server) handleHandoffCreate(c *gin.Context) {
	var req handoffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.abortError(c, invalid("decode handoff: %v", err))
		return
	}
	h, ok := s.createHandoff(c, req.FromAgent, req.ToAgent, req.Task, req.Context)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "handoff": h})
}

// handleHandoffList returns pending handoffs, or every recent one with all=true.
func (s *Server) handleHandoffList(c *gin.Context) {
	if c.Query("all") == "true" {
		s.listHandoffs(c, 100)
		return
	}
	s.handleHandoffPending(c)
}

func (s *Server) handleHandoffPending(c *gin.Context) {
	hs, err := s.Bus.PendingHandoffs(c.Request.Context())
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, hs)
}

func (s *Server) handleHandoffGet(c *gin.Context) {
	h, err := s.Bus.GetHandoff(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, h)
}

func (s *Server) handleHandoffUpdate(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.abortError(c, invalid("decode status: %v", err))
		return
	}
	if req.Status == "" {
		s.abortError(c, invalid("status is required"))
		return
	}
	h, err := s.Bus.UpdateHandoff(c.Request.Context(), c.Param("id"), models.HandoffStatus(req.Status), req.Result)
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "handoff": h})
}

func (s *Server) listHandoffs(c *gin.Context, def int) {
	hs, err := s.Bus.Handoffs(c.Request.Context(), queryLimit(c, def))
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, hs)
}

// Tasks are the board view of handoffs.

func (s *Server) handleTaskList(c *gin.Context) {
	s.listHandoffs(c, 100)
}

// handleTaskCreate creates a handoff and, when status names a state other
// than pending, moves it there. The status is checked before anything is
// written so an unreachable one leaves no task behind.
func (s *Server) handleTaskCreate(c *gin.Context) {
	var req struct {
		Task      string         `json:"task"`
		FromAgent string         `json:"from_agent"`
		ToAgent   string         `json:"to_agent"`
		Status    string         `json:"status"`
		Context   map[string]any `json:"context"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.abortError(c, invalid("decode task: %v", err))
		return
	}
	status := models.HandoffStatus(req.Status)
	if status != "" && status != models.HandoffPending {
		if !status.Valid() {
			s.abortError(c, invalid("unknown status %q", status))
			return
		}
		if !models.HandoffPending.CanTransitionTo(status) {
			s.abortError(c, fmt.Errorf("server: new task cannot start %s: %w", status, errdefs.ErrTransition))
			return
		}
	}

	h, ok := s.createHandoff(c, req.FromAgent, req.ToAgent, req.Task, req.Context)
	if !ok {
		return
	}
	if status != "" && status != models.HandoffPending {
		updated, err := s.Bus.UpdateHandoff(c.Request.Context(), h.ID, status, nil)
		if err != nil {
			s.abortError(c, err)
			return
		}
		h = updated
	}
	c.JSON(http.StatusOK, h)
}

// handleTaskUpdate applies a validated status change. Without a status it
// returns the task unchanged.
func (s *Server) handleTaskUpdate(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.abortError(c, invalid("decode task: %v", err))
		return
	}
	ctx := c.Request.Context()
	id := c.Param("id")
	if req.Status == "" {
		h, err := s.Bus.GetHandoff(ctx, id)
		if err != nil {
			s.abortError(c, err)
			return
		}
		c.JSON(http.StatusOK, h)
		return
	}
	h, err := s.Bus.UpdateHandoff(ctx, id, models.HandoffStatus(req.Status), req.Result)
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, h)
}
