package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/madjin/crypto-superchat/internal/hub"
	"github.com/madjin/crypto-superchat/internal/middleware"
	"github.com/madjin/crypto-superchat/internal/services"
	"github.com/madjin/crypto-superchat/utils"
)

// Handler HTTP 和 websocket 接口共用的依赖
type Handler struct {
	db        *gorm.DB
	engine    *services.ModerationService
	tokens    *services.TokenService
	hub       *hub.Hub
	log       *utils.Logger
	startTime time.Time
}

func New(conn *gorm.DB, engine *services.ModerationService, tokens *services.TokenService, h *hub.Hub, log *utils.Logger) *Handler {
	return &Handler{
		db:        conn,
		engine:    engine,
		tokens:    tokens,
		hub:       h,
		log:       log.OrDefault().Named("http"),
		startTime: time.Now(),
	}
}

func RegisterRoutes(r *gin.Engine, h *Handler) {
	r.Use(middleware.CORS())

	r.GET("/health", h.Health)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	admin := middleware.LocalOnly(h.log)

	api := r.Group("/api")
	{
		api.GET("/events/pending", h.PendingEvents)
		api.POST("/events/action", h.ModerateEvent)
		api.DELETE("/events", admin, h.ClearEvents)

		api.GET("/banned-words", h.ListBannedWords)
		api.POST("/banned-words", h.AddBannedWord)
		api.DELETE("/banned-words/:word", admin, h.DisableBannedWord)

		api.GET("/auto-mode", h.GetAutoMode)
		api.POST("/auto-mode", h.SetAutoMode)

		api.GET("/tokens/metadata/:mint", h.TokenMetadata)
		api.GET("/tokens/popular", h.PopularTokens)
	}

	r.GET("/ws/overlay", h.OverlayWS)
	r.GET("/ws/dashboard", h.DashboardWS)
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "error": msg})
}

// NewRouter 创建 gin 引擎并注册全部路由
func NewRouter(mode string, h *Handler) *gin.Engine {
	if mode != "" {
		gin.SetMode(mode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	if gin.Mode() == gin.DebugMode {
		r.Use(gin.Logger())
	}
	RegisterRoutes(r, h)
	r.NoRoute(func(c *gin.Context) {
		fail(c, http.StatusNotFound, "not found")
	})
	return r
}
