package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/madjin/crypto-superchat/internal/db"
	"github.com/madjin/crypto-superchat/internal/models"
	"github.com/madjin/crypto-superchat/internal/services"
)

// PendingEvents 待审核事件，最早的在前
func (h *Handler) PendingEvents(c *gin.Context) {
	events, err := h.engine.PendingEvents(c.Request.Context())
	if err != nil {
		h.log.Error("查询待审核事件失败: %v", err)
		fail(c, http.StatusInternalServerError, "查询失败")
		return
	}
	c.JSON(http.StatusOK, events)
}

// ModerateEvent POST /api/events/action {event_id, action}
func (h *Handler) ModerateEvent(c *gin.Context) {
	var req models.EventAction
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	ev, err := h.engine.Decide(c.Request.Context(), req.EventID, req.Action)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrMissingEventID):
		fail(c, http.StatusBadRequest, "event_id is required")
		return
	case errors.Is(err, services.ErrInvalidRequest):
		fail(c, http.StatusBadRequest, "invalid action")
		return
	case services.IsNotFound(err):
		fail(c, http.StatusNotFound, "event not found")
		return
	case services.IsConflict(err):
		resp := gin.H{"success": false, "error": "event already decided"}
		if ev != nil {
			resp["status"] = ev.Status
		}
		c.JSON(http.StatusConflict, resp)
		return
	default:
		h.log.Error("审核事件 %s 失败: %v", req.EventID, err)
		fail(c, http.StatusInternalServerError, "审核失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "action": ev.Status, "event": ev})
}

// ClearEvents DELETE /api/events
func (h *Handler) ClearEvents(c *gin.Context) {
	n, err := h.engine.ClearAll(c.Request.Context())
	if err != nil {
		h.log.Error("清空事件失败: %v", err)
		fail(c, http.StatusInternalServerError, "清空失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "cleared": n})
}

func (h *Handler) ListBannedWords(c *gin.Context) {
	words, err := db.ListBannedWords(c.Request.Context(), h.db)
	if err != nil {
		h.log.Error("查询屏蔽词失败: %v", err)
		fail(c, http.StatusInternalServerError, "查询失败")
		return
	}
	c.JSON(http.StatusOK, words)
}

func (h *Handler) AddBannedWord(c *gin.Context) {
	var req models.BannedWordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	bw, err := db.AddBannedWord(c.Request.Context(), h.db, req.Word)
	if errors.Is(err, db.ErrEmptyWord) {
		fail(c, http.StatusBadRequest, "word is empty")
		return
	}
	if err != nil {
		h.log.Error("新增屏蔽词失败: %v", err)
		fail(c, http.StatusInternalServerError, "保存失败")
		return
	}
	h.log.Info("屏蔽词已启用: %s", bw.Word)
	c.JSON(http.StatusCreated, bw)
}

// DisableBannedWord 停用而不是删除，保留记录
func (h *Handler) DisableBannedWord(c *gin.Context) {
	word := c.Param("word")
	err := db.DisableBannedWord(c.Request.Context(), h.db, word)
	if errors.Is(err, db.ErrBannedWordAbsent) {
		fail(c, http.StatusNotFound, "banned word not found")
		return
	}
	if err != nil {
		h.log.Error("停用屏蔽词失败: %v", err)
		fail(c, http.StatusInternalServerError, "保存失败")
		return
	}
	h.log.Info("屏蔽词已停用: %s", word)
	c.JSON(http.StatusOK, gin.H{"success": true})
}
