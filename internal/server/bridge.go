package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleBridgePending(c *gin.Context) {
	items, err := s.Bridge.Pending(c.Request.Context())
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (s *Server) handleBridgeGet(c *gin.Context) {
	item, err := s.Bridge.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (s *Server) handleBridgeClaim(c *gin.Context) {
	item, err := s.Bridge.Claim(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (s *Server) handleBridgeRespond(c *gin.Context) {
	var req struct {
		Response string `json:"response"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.abortError(c, invalid("decode response: %v", err))
		return
	}
	item, err := s.Bridge.Complete(c.Request.Context(), c.Param("id"), req.Response)
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "item": item})
}
