package api

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"inventory-tracker/internal/auth"
	"inventory-tracker/internal/models"
	"inventory-tracker/internal/service"
	"inventory-tracker/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	tokenKey     = "token"
	sessionKey   = "session"
	workspaceKey = "workspace"
)

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}

// requestLogger logs every request with zap
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Info("HTTP Request",
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// requireSession resolves the bearer token to a live session
func (h *Handler) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			writeError(c, newStandardError(CodeUnauthorized, "not signed in", "missing bearer token"))
			return
		}

		s, err := h.auth.GetSession(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrSessionRevoked) || errors.Is(err, auth.ErrExpiredToken) {
				if id, ok := h.auth.SessionID(token); ok {
					h.registry.Remove(id)
				}
			}
			writeError(c, toStandardError(err))
			return
		}

		c.Set(tokenKey, token)
		c.Set(sessionKey, s)
		c.Next()
	}
}

// requireWorkspace opens the workspace of the session
func (h *Handler) requireWorkspace() gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := h.registry.Open(c.Request.Context(), currentSession(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.Set(workspaceKey, ws)
		c.Next()
	}
}

func currentSession(c *gin.Context) *models.Session {
	s, _ := c.MustGet(sessionKey).(*models.Session)
	return s
}

func currentWorkspace(c *gin.Context) *service.Workspace {
	return c.MustGet(workspaceKey).(*service.Workspace)
}

// loadedWorkspace writes the last load failure instead of serving views
// from a cache that never loaded
func loadedWorkspace(c *gin.Context) (*service.Workspace, bool) {
	ws := currentWorkspace(c)
	if err := ws.LoadError(); err != nil {
		writeError(c, err)
		return nil, false
	}
	return ws, true
}
