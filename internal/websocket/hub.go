package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Hub WebSocket连接管理中心
type Hub struct {
	// 客户端连接池
	clients   map[string]*Client
	clientsMu sync.RWMutex

	// 会话ID到客户端的映射
	sessionClients map[string][]*Client
	sessionMu      sync.RWMutex

	// 注册/注销通道
	register   chan *Client
	unregister chan *Client

	// 注销回调（api层用它解除会话订阅）
	onUnregister func(c *Client)

	// 日志
	logger *zap.Logger
}

// Message 控制面消息（connected/ping/pong/error）
//
// 会话事件不走该信封，直接以事件JSON推送。
type Message struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// 消息类型
const (
	MessageTypeConnected = "connected"
	MessageTypePing      = "ping"
	MessageTypePong      = "pong"
	MessageTypeError     = "error"

	// MessageTypeAction 客户端经WS提交动作
	MessageTypeAction = "action"
)

// NewHub 创建Hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:        make(map[string]*Client),
		sessionClients: make(map[string][]*Client),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		logger:         logger,
	}
}

// SetUnregisterHook 设置客户端注销回调
func (h *Hub) SetUnregisterHook(fn func(c *Client)) {
	h.onUnregister = fn
}

// Run 运行Hub，直到上下文取消
func (h *Hub) Run(ctx context.Context) {
	// 启动心跳检测
	go h.runHeartbeat(ctx)

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-ctx.Done():
			return
		}
	}
}

// registerClient 注册客户端
func (h *Hub) registerClient(client *Client) {
	h.clientsMu.Lock()
	h.clients[client.id] = client
	h.clientsMu.Unlock()

	if client.SessionID != "" {
		h.sessionMu.Lock()
		h.sessionClients[client.SessionID] = append(h.sessionClients[client.SessionID], client)
		h.sessionMu.Unlock()
	}

	h.logger.Info("WebSocket客户端连接",
		zap.String("client_id", client.id),
		zap.String("session_id", client.SessionID))

	// 发送连接成功消息
	msg := &Message{
		Type:      MessageTypeConnected,
		SessionID: client.SessionID,
		Timestamp: time.Now().Unix(),
		Data:      json.RawMessage(`{"message":"连接成功"}`),
	}
	h.SendToClient(client.id, msg)
}

// unregisterClient 注销客户端
func (h *Hub) unregisterClient(client *Client) {
	h.clientsMu.Lock()
	if _, ok := h.clients[client.id]; ok {
		delete(h.clients, client.id)
		close(client.send)
	}
	h.clientsMu.Unlock()

	if client.SessionID != "" {
		h.sessionMu.Lock()
		clients := h.sessionClients[client.SessionID]
		for i, c := range clients {
			if c.id == client.id {
				h.sessionClients[client.SessionID] = append(clients[:i], clients[i+1:]...)
				break
			}
		}
		if len(h.sessionClients[client.SessionID]) == 0 {
			delete(h.sessionClients, client.SessionID)
		}
		h.sessionMu.Unlock()
	}

	if h.onUnregister != nil {
		h.onUnregister(client)
	}

	h.logger.Info("WebSocket客户端断开",
		zap.String("client_id", client.id),
		zap.String("session_id", client.SessionID))
}

// SendToClient 发送消息给指定客户端
func (h *Hub) SendToClient(clientID string, message *Message) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.clientsMu.RLock()
	client, ok := h.clients[clientID]
	h.clientsMu.RUnlock()

	if !ok {
		return ErrClientNotFound
	}
	return client.enqueue(data)
}

// SessionClientCount 某会话当前连接数
func (h *Hub) SessionClientCount(sessionID string) int {
	h.sessionMu.RLock()
	defer h.sessionMu.RUnlock()
	return len(h.sessionClients[sessionID])
}

// GetOnlineCount 获取在线连接数
func (h *Hub) GetOnlineCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// runHeartbeat 运行心跳检测
func (h *Hub) runHeartbeat(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		data, err := json.Marshal(&Message{
			Type:      MessageTypePing,
			Timestamp: time.Now().Unix(),
		})
		if err != nil {
			continue
		}

		h.clientsMu.RLock()
		for _, client := range h.clients {
			if err := client.enqueue(data); err != nil {
				h.logger.Warn("心跳发送失败",
					zap.String("client_id", client.id),
					zap.Error(err))
			}
		}
		h.clientsMu.RUnlock()
	}
}

// Register 注册客户端（公开方法）
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister 注销客户端（公开方法）
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}
