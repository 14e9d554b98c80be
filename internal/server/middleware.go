package server

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/kriya/internal/errdefs"
	"go.uber.org/zap"
)

// BridgeSecretHeader carries the bridge participant's shared secret.
const BridgeSecretHeader = "X-Bridge-Secret"

const userKey = "kriya.user"

// identity resolves the caller from the trusted user header.
func (s *Server) identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := strings.TrimSpace(c.GetHeader(s.opts.UserHeader))
		if user == "" {
			user = s.opts.DefaultUser
		}
		c.Set(userKey, user)
		c.Next()
	}
}

func userID(c *gin.Context) string {
	return c.GetString(userKey)
}

// bridgeAuth guards the bridge group. With no secret configured the
// endpoints are unavailable rather than open.
func (s *Server) bridgeAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.opts.BridgeSecret == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "bridge is not configured"})
			return
		}
		got := c.GetHeader(BridgeSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.opts.BridgeSecret)) != 1 {
			s.abortError(c, errdefs.ErrUnauthorized)
			return
		}
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errdefs.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, errdefs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errdefs.ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, errdefs.ErrTransition):
		return http.StatusConflict
	case errors.Is(err, errdefs.ErrUnauthorized):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

func (s *Server) abortError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
