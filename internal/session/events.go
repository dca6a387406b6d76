package session

import (
	"github.com/wfunc/boardgame-server/internal/game"
)

// EventType 会话事件类型
type EventType string

const (
	// EventSessionState 订阅时推送的当前完整状态
	EventSessionState EventType = "session_state"
	// EventActionApplied 动作成功应用
	EventActionApplied EventType = "action_applied"
	// EventGameOver 游戏结束（每会话至多一次）
	EventGameOver EventType = "game_over"
	// EventError 引擎侧错误（代理耗尽、步数上限等）
	EventError EventType = "error"
)

// Event 推送给订阅者的会话事件
type Event struct {
	Type      EventType   `json:"type"`
	SessionID string      `json:"session_id"`
	Turn      int         `json:"turn,omitempty"`
	Seat      *int        `json:"seat,omitempty"`
	Action    string      `json:"action,omitempty"`
	Params    game.Params `json:"params,omitempty"`
	State     *game.View  `json:"state,omitempty"`
	Message   string      `json:"message,omitempty"`
}

// Subscriber 事件订阅者（WebSocket客户端实现该接口）
//
// Send 失败只影响该订阅者本身，推送方记录日志后继续。
type Subscriber interface {
	// ID 订阅者唯一标识
	ID() string
	// Send 投递一条事件（尽力而为）
	Send(event *Event) error
}
