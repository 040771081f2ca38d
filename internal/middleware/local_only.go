package middleware

import (
	"net"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/madjin/crypto-superchat/utils"
)

// LocalOnly 管理接口只允许回环地址访问，例如清空事件、停用屏蔽词
func LocalOnly(log *utils.Logger) gin.HandlerFunc {
	log = log.OrDefault().Named("local_only")
	return func(c *gin.Context) {
		ip := net.ParseIP(c.ClientIP())
		if ip == nil || !ip.IsLoopback() {
			log.Warn("拒绝来自 %s 的管理请求 %s %s", c.ClientIP(), c.Request.Method, c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": "仅允许本地访问"})
			return
		}
		c.Next()
	}
}
