package server

import (
	"fmt"
	"net/http"
	"strconv"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/kriya/internal/agents"
	"github.com/zulandar/kriya/internal/errdefs"
	"github.com/zulandar/kriya/internal/models"
	"github.com/zulandar/kriya/internal/overview"
	"github.com/zulandar/kriya/internal/relay"
	"go.uber.org/zap"
)

// maxContent caps message and task bodies, in characters.
const maxContent = 10000

func invalid(format string, args ...any) error {
	return fmt.Errorf("server: %s: %w", fmt.Sprintf(format, args...), errdefs.ErrValidation)
}

// queryLimit reads a positive integer query parameter, falling back to def.
func queryLimit(c *gin.Context, def int) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func (s *Server) handleHealth(c *gin.Context) {
	sqlDB, err := s.Store.DB().DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// agentView is the listing projection of an agent. Prompts stay server-side.
type agentView struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Icon         string  `json:"icon,omitempty"`
	Color        string  `json:"color,omitempty"`
	Group        string  `json:"group,omitempty"`
	Model        string  `json:"model"`
	Temperature  float64 `json:"temperature"`
	MaxTokens    int     `json:"maxTokens"`
	DisplayOrder int     `json:"displayOrder"`
	Status       string  `json:"status"`
}

func viewOf(a agents.Agent) agentView {
	return agentView{
		ID:           a.ID,
		Name:         a.Name,
		Icon:         a.Icon,
		Color:        a.Color,
		Group:        a.Group,
		Model:        a.Model,
		Temperature:  a.Temperature,
		MaxTokens:    a.MaxTokens,
		DisplayOrder: a.DisplayOrder,
		Status:       "idle",
	}
}

func (s *Server) handleAgentList(c *gin.Context) {
	list, err := s.Agents.List(c.Request.Context(), userID(c))
	if err != nil {
		s.abortError(c, err)
		return
	}
	out := make([]agentView, len(list))
	for i, a := range list {
		out[i] = viewOf(a)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleAgentGet(c *gin.Context) {
	a, err := s.Agents.Lookup(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(a))
}

// handleInbox lists an agent's recent messages. With unread=true it returns
// only unread ones and marks them read.
func (s *Server) handleInbox(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if !s.Agents.Has(id) {
		s.abortError(c, fmt.Errorf("server: agent %q: %w", id, errdefs.ErrNotFound))
		return
	}
	if c.Query("unread") == "true" {
		msgs, err := s.Bus.GetUnreadFor(ctx, id)
		if err != nil {
			s.abortError(c, err)
			return
		}
		c.JSON(http.StatusOK, msgs)
		return
	}
	msgs, err := s.Bus.MessagesFor(ctx, id, queryLimit(c, 100))
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (s *Server) handleChat(c *gin.Context) {
	var req relay.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.abortError(c, invalid("decode chat request: %v", err))
		return
	}
	sink := relay.NewSSEWriter(c.Writer)
	if err := s.Relay.Chat(c.Request.Context(), userID(c), req, sink); err != nil {
		if sink.Started() {
			s.log.Warn("chat failed after stream start", zap.Error(err))
			return
		}
		s.abortError(c, err)
	}
}

func (s *Server) handleConversation(c *gin.Context) {
	ctx := c.Request.Context()
	agentID := c.Param("agentId")
	var (
		entries []models.ConversationEntry
		err     error
	)
	if n := queryLimit(c, 0); n > 0 {
		entries, err = s.Store.RecentConversation(ctx, agentID, n)
	} else {
		entries, err = s.Store.Conversation(ctx, agentID)
	}
	if err != nil {
		s.abortError(c, err)
		return
	}
	out := make([]gin.H, len(entries))
	for i, e := range entries {
		row := gin.H{
			"id":        e.ID,
			"role":      e.Role,
			"content":   e.Content,
			"createdAt": e.CreatedAt,
		}
		if e.SessionID != "" {
			row["sessionId"] = e.SessionID
		}
		if len(e.Metadata) > 0 {
			row["metadata"] = e.Metadata
		}
		out[i] = row
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleConversationClear(c *gin.Context) {
	n, err := s.Store.ClearConversation(c.Request.Context(), c.Param("agentId"))
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "deleted": n})
}

type sendRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Content string `json:"content"`
	Type    string `json:"type"`
}

func (s *Server) handleMessageSend(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.abortError(c, invalid("decode message: %v", err))
		return
	}
	s.send(c, req)
}

// handleAgentSend is the per-agent form of handleMessageSend.
func (s *Server) handleAgentSend(c *gin.Context) {
	var body struct {
		ToAgent string `json:"toAgent"`
		Content string `json:"content"`
		Type    string `json:"type"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		s.abortError(c, invalid("decode message: %v", err))
		return
	}
	s.send(c, sendRequest{From: c.Param("id"), To: body.ToAgent, Content: body.Content, Type: body.Type})
}

func (s *Server) send(c *gin.Context, req sendRequest) {
	if utf8.RuneCountInString(req.Content) > maxContent {
		s.abortError(c, invalid("content exceeds maximum length (%d)", maxContent))
		return
	}
	if req.From != "" && !s.Agents.Has(req.From) {
		s.abortError(c, fmt.Errorf("server: source agent %q: %w", req.From, errdefs.ErrNotFound))
		return
	}
	msg, err := s.Bus.Send(c.Request.Context(), req.From, req.To, req.Content, req.Type)
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msg})
}

func (s *Server) handleActivity(c *gin.Context) {
	msgs, err := s.Bus.Activity(c.Request.Context(), queryLimit(c, 50))
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (s *Server) handleOverview(c *gin.Context) {
	snap, err := s.Overview.Build(c.Request.Context(), userID(c), overview.APIOptions)
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}
