package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/madjin/crypto-superchat/internal/models"
	"github.com/madjin/crypto-superchat/internal/services"
)

func (h *Handler) TokenMetadata(c *gin.Context) {
	md, err := h.tokens.Metadata(c.Request.Context(), c.Param("mint"))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidRequest):
			fail(c, http.StatusBadRequest, "invalid mint address")
		case errors.Is(err, services.ErrTokenNotFound):
			fail(c, http.StatusNotFound, "Token metadata not found")
		default:
			h.log.Warn("查询代币 %s 元数据失败: %v", c.Param("mint"), err)
			fail(c, http.StatusBadGateway, "metadata lookup failed")
		}
		return
	}
	c.JSON(http.StatusOK, md)
}

func (h *Handler) PopularTokens(c *gin.Context) {
	c.JSON(http.StatusOK, h.tokens.Popular(c.Request.Context()))
}

func (h *Handler) GetAutoMode(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"auto_mode": h.engine.AutoMode()})
}

// SetAutoMode POST /api/auto-mode {auto_mode}
func (h *Handler) SetAutoMode(c *gin.Context) {
	var req models.AutoModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	h.engine.SetAutoMode(*req.AutoMode)
	c.JSON(http.StatusOK, gin.H{"success": true, "auto_mode": *req.AutoMode})
}
