package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wfunc/boardgame-server/internal/game"
	"github.com/wfunc/boardgame-server/internal/session"
)

// 错误定义
var (
	ErrClientNotFound = errors.New("客户端未找到")
	ErrSendBufferFull = errors.New("发送缓冲区已满")
)

// WebSocket配置
const (
	// 写超时
	writeWait = 10 * time.Second

	// 读取pong超时
	pongWait = 60 * time.Second

	// ping发送周期（必须小于pongWait）
	pingPeriod = (pongWait * 9) / 10

	// 最大消息大小
	maxMessageSize = 64 * 1024 // 64KB
)

// Client WebSocket客户端：绑定到一个游戏会话
//
// 实现 session.Subscriber，引擎的会话事件经 Send 推给该连接。
type Client struct {
	id        string
	SessionID string
	Hub       *Hub
	Conn      *websocket.Conn

	// manager 用于处理经WS提交的动作
	manager *session.Manager

	send chan []byte
}

// NewClient 创建新客户端
func NewClient(hub *Hub, conn *websocket.Conn, sessionID string, manager *session.Manager) *Client {
	return &Client{
		id:        uuid.New().String(),
		SessionID: sessionID,
		Hub:       hub,
		Conn:      conn,
		manager:   manager,
		send:      make(chan []byte, 256),
	}
}

// ID 返回客户端唯一标识（实现 session.Subscriber）
func (c *Client) ID() string {
	return c.id
}

// Send 投递会话事件（实现 session.Subscriber）
func (c *Client) Send(event *session.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return c.enqueue(data)
}

// enqueue 把数据放入发送队列（缓冲区满时丢弃并报错）
func (c *Client) enqueue(data []byte) error {
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// ReadPump 读取消息
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Error("WebSocket读取错误",
					zap.String("client_id", c.id),
					zap.Error(err))
			}
			break
		}

		c.handleMessage(message)
	}
}

// WritePump 写入消息
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub关闭了通道
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// 批量发送队列中的消息
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// actionMessage 经WS提交的动作
type actionMessage struct {
	Type   string      `json:"type"`
	Seat   int         `json:"seat"`
	Action string      `json:"action"`
	Params game.Params `json:"params"`
}

// handleMessage 处理接收到的消息
func (c *Client) handleMessage(data []byte) {
	var msg actionMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.Hub.logger.Error("解析WebSocket消息失败",
			zap.String("client_id", c.id),
			zap.Error(err))
		c.sendError("消息格式错误")
		return
	}

	switch msg.Type {
	case MessageTypePong:
		c.Hub.logger.Debug("收到pong",
			zap.String("client_id", c.id))

	case MessageTypeAction:
		c.handleAction(&msg)

	case "":
		c.sendError("消息类型不能为空")

	default:
		c.Hub.logger.Warn("收到不支持的消息类型",
			zap.String("client_id", c.id),
			zap.String("type", msg.Type))
		c.sendError("不支持的消息类型: " + msg.Type)
	}
}

// handleAction 经WS提交动作（结果经广播推回，错误只回给本连接）
func (c *Client) handleAction(msg *actionMessage) {
	if c.manager == nil {
		c.sendError("动作提交未启用")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := c.manager.Apply(ctx, c.SessionID, msg.Seat, msg.Action, msg.Params); err != nil {
		c.Hub.logger.Warn("WS动作提交失败",
			zap.String("client_id", c.id),
			zap.String("session_id", c.SessionID),
			zap.String("action", msg.Action),
			zap.Error(err))
		c.sendError(err.Error())
	}
}

// sendError 发送错误消息
func (c *Client) sendError(message string) {
	// 错误文本可能包含引号等任意字符，必须经JSON转义
	payload, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		return
	}
	data, err := json.Marshal(&Message{
		Type:      MessageTypeError,
		SessionID: c.SessionID,
		Timestamp: time.Now().Unix(),
		Data:      json.RawMessage(payload),
	})
	if err != nil {
		return
	}
	c.enqueue(data)
}

// Close 关闭客户端连接
func (c *Client) Close() {
	c.Hub.unregister <- c
}
