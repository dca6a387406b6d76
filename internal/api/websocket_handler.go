package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wfunc/boardgame-server/internal/session"
	ws "github.com/wfunc/boardgame-server/internal/websocket"
)

// WebSocketHandler WebSocket处理器
type WebSocketHandler struct {
	hub      *ws.Hub
	manager  *session.Manager
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(hub *ws.Hub, manager *session.Manager, logger *zap.Logger) *WebSocketHandler {
	h := &WebSocketHandler{
		hub:     hub,
		manager: manager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// 在生产环境中应该检查Origin
				return true
			},
		},
		logger: logger,
	}

	// 连接断开时解除会话订阅
	hub.SetUnregisterHook(func(c *ws.Client) {
		manager.Unsubscribe(c.SessionID, c.ID())
	})
	return h
}

// SessionWebSocket 会话WebSocket连接：订阅后立即收到session_state
func (h *WebSocketHandler) SessionWebSocket(c *gin.Context) {
	sessionID := c.Param("id")

	// 升级前先确认会话存在
	if _, err := h.manager.State(c.Request.Context(), sessionID); err != nil {
		respondError(c, err, h.logger)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket升级失败",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return
	}

	client := ws.NewClient(h.hub, conn, sessionID, h.manager)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()

	// 订阅会话事件并推送当前状态
	if err := h.manager.Subscribe(c.Request.Context(), sessionID, client); err != nil {
		h.logger.Error("会话订阅失败",
			zap.String("client_id", client.ID()),
			zap.String("session_id", sessionID),
			zap.Error(err))
		client.Close()
		return
	}

	h.logger.Info("WebSocket连接建立",
		zap.String("client_id", client.ID()),
		zap.String("session_id", sessionID))
}
