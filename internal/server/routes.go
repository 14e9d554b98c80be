package server

import (
	"github.com/gin-gonic/gin"
)

// registerRoutes sets up every API route on the gin router.
func (s *Server) registerRoutes(router *gin.Engine) {
	router.GET("/healthz", s.handleHealth)

	api := router.Group("/api", s.identity())

	api.GET("/agents", s.handleAgentList)
	api.GET("/agents/:id", s.handleAgentGet)
	api.GET("/agents/:id/inbox", s.handleInbox)
	api.POST("/agents/:id/send", s.handleAgentSend)

	api.POST("/chat", s.handleChat)

	api.GET("/conversations/:agentId", s.handleConversation)
	api.DELETE("/conversations/:agentId", s.handleConversationClear)

	api.POST("/messages", s.handleMessageSend)
	api.GET("/activity", s.handleActivity)

	api.POST("/handoffs", s.handleHandoffCreate)
	api.GET("/handoffs", s.handleHandoffList)
	api.GET("/handoffs/pending", s.handleHandoffPending)
	api.GET("/handoffs/:id", s.handleHandoffGet)
	api.PATCH("/handoffs/:id", s.handleHandoffUpdate)

	api.GET("/tasks", s.handleTaskList)
	api.POST("/tasks", s.handleTaskCreate)
	api.PATCH("/tasks/:id", s.handleTaskUpdate)

	api.GET("/overview", s.handleOverview)
	api.GET("/events", s.handleEvents)

	// The bridge participant authenticates with a shared secret instead of
	// the user header.
	br := router.Group("/api/bridge", s.bridgeAuth())
	br.GET("/pending", s.handleBridgePending)
	br.GET("/:id", s.handleBridgeGet)
	br.POST("/:id/claim", s.handleBridgeClaim)
	br.POST("/:id/respond", s.handleBridgeRespond)
}
