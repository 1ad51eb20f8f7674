package httpapi

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"healthpulse/internal/realtime"
)

// WSHandler WebSocket 升级处理器
type WSHandler struct {
	hub      *realtime.Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewWSHandler 创建 WebSocket 处理器
func NewWSHandler(hub *realtime.Hub, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// 跨域控制在上游网关完成
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Serve 升级连接并注册订阅者
// 未携带身份的连接也允许建立，但不会加入任何频道（收不到事件）
func (h *WSHandler) Serve(w http.ResponseWriter, req *http.Request) {
	userID, isAdmin := identity(req)

	conn, err := h.upgrader.Upgrade(w, req, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	client := realtime.NewClient(h.hub, conn, userID, isAdmin, h.logger)
	client.Start()
}
