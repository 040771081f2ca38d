package handler

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/madjin/crypto-superchat/internal/hub"
	"github.com/madjin/crypto-superchat/internal/models"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// OBS 浏览器源和本地面板的 Origin 不固定
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConn 实现 hub.Conn，同一连接的写操作串行
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) Send(msg interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(msg)
}

func (h *Handler) upgrade(c *gin.Context) (*wsConn, bool) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 已写入错误响应
		h.log.Warn("websocket 升级失败 %s: %v", c.ClientIP(), err)
		return nil, false
	}
	ws.SetReadLimit(maxMessageSize)
	return &wsConn{conn: ws}, true
}

// OverlayWS OBS 叠加层连接，只接收 show_donation，入站消息仅用于保活
func (h *Handler) OverlayWS(c *gin.Context) {
	conn, ok := h.upgrade(c)
	if !ok {
		return
	}
	defer conn.conn.Close()

	ctx := c.Request.Context()
	hello := models.ConnectedMessage{Type: models.MsgConnected, Client: string(hub.Overlay)}
	if err := h.hub.Subscribe(ctx, hub.Overlay, conn, hello); err != nil {
		h.log.Warn("overlay 订阅失败: %v", err)
		return
	}
	defer h.hub.Unsubscribe(hub.Overlay, conn)

	for {
		_, data, err := conn.conn.ReadMessage()
		if err != nil {
			h.log.Debug("overlay 连接断开: %v", err)
			return
		}
		var msg models.TypeMessage
		if json.Unmarshal(data, &msg) == nil && msg.Type == models.MsgPing {
			if err := conn.Send(models.TypeMessage{Type: models.MsgPong}); err != nil {
				return
			}
		}
	}
}

// DashboardWS 审核面板连接：订阅后先收到 dashboard_init，之后可以发送审核指令
func (h *Handler) DashboardWS(c *gin.Context) {
	conn, ok := h.upgrade(c)
	if !ok {
		return
	}
	defer conn.conn.Close()

	ctx := c.Request.Context()
	if err := h.hub.Subscribe(ctx, hub.Dashboard, conn); err != nil {
		h.log.Warn("dashboard 订阅失败: %v", err)
		return
	}
	defer h.hub.Unsubscribe(hub.Dashboard, conn)

	for {
		_, data, err := conn.conn.ReadMessage()
		if err != nil {
			h.log.Debug("dashboard 连接断开: %v", err)
			return
		}

		var cmd models.DashboardCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			if err := conn.Send(models.ErrorMessage{Type: models.MsgError, Error: "invalid message"}); err != nil {
				return
			}
			continue
		}
		if cmd.Type == models.CmdPing {
			if err := conn.Send(models.TypeMessage{Type: models.MsgPong}); err != nil {
				return
			}
			continue
		}

		if err := h.engine.HandleDashboardCommand(ctx, cmd); err != nil {
			h.log.Info("dashboard 指令 %s 失败: %v", cmd.Type, err)
			if err := conn.Send(models.ErrorMessage{Type: models.MsgError, Error: err.Error(), EventID: cmd.EventID}); err != nil {
				return
			}
		}
	}
}
