package api

import (
	"context"
	"net/http"
	"time"

	"inventory-tracker/internal/editor"
	"inventory-tracker/internal/models"
	"inventory-tracker/internal/service"
	"inventory-tracker/internal/util"
	"inventory-tracker/internal/view"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// AuthService signs clients in and out
type AuthService interface {
	SignIn(ctx context.Context, email string) (*models.Session, error)
	GetSession(ctx context.Context, token string) (*models.Session, error)
	SessionID(token string) (string, bool)
	Refresh(ctx context.Context, token string) (*models.Session, error)
	SignOut(ctx context.Context, token string) error
	UpdateNickname(ctx context.Context, token, nickname string) (*models.Session, error)
}

// Pinger is a dependency checked by the readiness check
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	auth          AuthService
	registry      *service.Registry
	emailHeader   string
	remoteTimeout time.Duration
	checks        map[string]Pinger
	logger        *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	auth AuthService,
	registry *service.Registry,
	emailHeader string,
	remoteTimeout time.Duration,
	checks map[string]Pinger,
) *Handler {
	return &Handler{
		auth:          auth,
		registry:      registry,
		emailHeader:   emailHeader,
		remoteTimeout: remoteTimeout,
		checks:        checks,
		logger:        util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(requestLogger(h.logger))

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/signin", h.signIn)
		authGroup.POST("/refresh", h.requireSession(), h.refreshToken)
		authGroup.POST("/signout", h.requireSession(), h.signOut)
	}

	v1 := router.Group("/api/v1", h.requireSession(), h.requireWorkspace())
	{
		v1.GET("/me", h.me)
		v1.PUT("/me/nickname", h.updateNickname)

		v1.GET("/products", h.listProducts)
		v1.GET("/settings/products", h.settingsProducts)
		v1.GET("/categories", h.listCategories)
		v1.GET("/description", h.description)
		v1.POST("/refresh", h.reload)

		v1.GET("/edit", h.editState)
		v1.POST("/edit", h.startEdit)
		v1.DELETE("/edit", h.cancelEdit)
		v1.PUT("/edit/text", h.setEditText)
		v1.PUT("/edit/product", h.setProductDraft)
		v1.POST("/edit/commit", h.commitEdit)
		v1.POST("/edit/key", h.editKey)

		v1.GET("/gesture", h.gestureState)
		v1.POST("/gesture/start", h.gestureStart)
		v1.POST("/gesture/move", h.gestureMove)
		v1.POST("/gesture/end", h.gestureEnd)
	}
}

// remoteContext bounds calls that reach the store
func (h *Handler) remoteContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if h.remoteTimeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), h.remoteTimeout)
}

func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"failed": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ready",
		"workspaces": h.registry.Len(),
		"time":       time.Now().Unix(),
	})
}

type tokenResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresAt   time.Time   `json:"expires_at"`
	User        models.User `json:"user"`
}

func newTokenResponse(s *models.Session) tokenResponse {
	return tokenResponse{
		AccessToken: s.AccessToken,
		TokenType:   "Bearer",
		ExpiresAt:   s.ExpiresAt,
		User:        s.User,
	}
}

// signIn opens a session for the email forwarded by the auth proxy
func (h *Handler) signIn(c *gin.Context) {
	email := c.GetHeader(h.emailHeader)
	if email == "" {
		writeError(c, newStandardError(CodeUnauthorized, "not signed in", "missing identity header"))
		return
	}

	s, err := h.auth.SignIn(c.Request.Context(), email)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, newTokenResponse(s))
}

func (h *Handler) refreshToken(c *gin.Context) {
	s, err := h.auth.Refresh(c.Request.Context(), c.GetString(tokenKey))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, newTokenResponse(s))
}

func (h *Handler) signOut(c *gin.Context) {
	if err := h.auth.SignOut(c.Request.Context(), c.GetString(tokenKey)); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

type meResponse struct {
	User          models.User `json:"user"`
	Actor         string      `json:"actor"`
	NeedsNickname bool        `json:"needs_nickname"`
	ExpiresAt     time.Time   `json:"expires_at"`
}

func newMeResponse(ws *service.Workspace) (meResponse, bool) {
	manager := ws.Session()
	s := manager.Session()
	if s == nil {
		return meResponse{}, false
	}
	return meResponse{
		User:          s.User,
		Actor:         manager.Actor(),
		NeedsNickname: manager.NeedsNickname(),
		ExpiresAt:     s.ExpiresAt,
	}, true
}

func (h *Handler) me(c *gin.Context) {
	resp, ok := newMeResponse(currentWorkspace(c))
	if !ok {
		writeError(c, service.ErrNotSignedIn)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type nicknameRequest struct {
	Nickname string `json:"nickname" binding:"required"`
}

func (h *Handler) updateNickname(c *gin.Context) {
	var req nicknameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	if _, err := h.auth.UpdateNickname(c.Request.Context(), c.GetString(tokenKey), req.Nickname); err != nil {
		writeError(c, err)
		return
	}

	h.me(c)
}

func (h *Handler) listProducts(c *gin.Context) {
	var f view.Filter
	if err := c.ShouldBindQuery(&f); err != nil {
		writeBindError(c, err)
		return
	}

	ws, ok := loadedWorkspace(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"products": ws.Products(f),
	})
}

func (h *Handler) settingsProducts(c *gin.Context) {
	ws, ok := loadedWorkspace(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"products": ws.SettingsProducts(),
	})
}

func (h *Handler) listCategories(c *gin.Context) {
	ws, ok := loadedWorkspace(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"options":    ws.CategoryOptions(),
		"categories": ws.Categories(),
	})
}

func (h *Handler) description(c *gin.Context) {
	ws, ok := loadedWorkspace(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ws.Description())
}

// reload refetches everything. Slices that failed keep their old data.
func (h *Handler) reload(c *gin.Context) {
	ctx, cancel := h.remoteContext(c)
	defer cancel()

	if err := currentWorkspace(c).Reload(ctx); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "refreshed"})
}

func (h *Handler) editState(c *gin.Context) {
	c.JSON(http.StatusOK, currentWorkspace(c).Editor().State())
}

func (h *Handler) startEdit(c *gin.Context) {
	var target editor.Target
	if err := c.ShouldBindJSON(&target); err != nil {
		writeBindError(c, err)
		return
	}

	state, err := currentWorkspace(c).Editor().Start(target)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, state)
}

func (h *Handler) cancelEdit(c *gin.Context) {
	ed := currentWorkspace(c).Editor()
	if err := ed.Cancel(); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, ed.State())
}

type textRequest struct {
	Text *string `json:"text" binding:"required"`
}

func (h *Handler) setEditText(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	ed := currentWorkspace(c).Editor()
	if err := ed.SetText(*req.Text); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, ed.State())
}

func (h *Handler) setProductDraft(c *gin.Context) {
	var draft editor.ProductDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		writeBindError(c, err)
		return
	}

	ed := currentWorkspace(c).Editor()
	if err := ed.SetProductDraft(draft); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, ed.State())
}

func (h *Handler) commitEdit(c *gin.Context) {
	ctx, cancel := h.remoteContext(c)
	defer cancel()

	ed := currentWorkspace(c).Editor()
	if err := ed.Commit(ctx); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, ed.State())
}

type keyRequest struct {
	Key string `json:"key" binding:"required"`
}

func (h *Handler) editKey(c *gin.Context) {
	var req keyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	ctx, cancel := h.remoteContext(c)
	defer cancel()

	ed := currentWorkspace(c).Editor()
	if err := ed.Key(ctx, req.Key); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, ed.State())
}

type pointerRequest struct {
	Y     *float64 `json:"y" binding:"required"`
	AtTop bool     `json:"at_top"`
}

func (h *Handler) gestureState(c *gin.Context) {
	c.JSON(http.StatusOK, currentWorkspace(c).Gesture().State())
}

func (h *Handler) gestureStart(c *gin.Context) {
	var req pointerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	c.JSON(http.StatusOK, currentWorkspace(c).Gesture().Start(*req.Y, req.AtTop))
}

func (h *Handler) gestureMove(c *gin.Context) {
	var req pointerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	c.JSON(http.StatusOK, currentWorkspace(c).Gesture().Move(*req.Y, req.AtTop))
}

func (h *Handler) gestureEnd(c *gin.Context) {
	ctx, cancel := h.remoteContext(c)
	defer cancel()

	g := currentWorkspace(c).Gesture()
	refreshed, err := g.End(ctx)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"refreshed": refreshed,
		"state":     g.State(),
	})
}
