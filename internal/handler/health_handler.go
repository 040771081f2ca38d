package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/madjin/crypto-superchat/internal/db"
	"github.com/madjin/crypto-superchat/internal/hub"
)

// Health 兼容原有面板的健康检查
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok":                true,
		"timestamp":         time.Now().Unix(),
		"auto_mode":         h.engine.AutoMode(),
		"overlay_clients":   h.hub.Count(hub.Overlay),
		"dashboard_clients": h.hub.Count(hub.Dashboard),
	})
}

// Healthz 存活探针，进程在运行就返回 200
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"type":   "liveness",
	})
}

// Readiness 就绪探针，检查数据库连接
func (h *Handler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := db.Ping(ctx, h.db); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "not ready",
			"type":    "readiness",
			"message": "数据库连接失败",
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"type":   "readiness",
		"uptime": time.Since(h.startTime).Round(time.Second).String(),
	})
}
