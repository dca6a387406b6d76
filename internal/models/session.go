package models

import (
	"time"
)

// 会话状态
const (
	SessionStatusCreated   = "created"   // 已创建
	SessionStatusRunning   = "running"   // 运行中
	SessionStatusFinished  = "finished"  // 已结束（终局）
	SessionStatusAbandoned = "abandoned" // 已废弃（插件异常）
)

// GameSession 游戏会话表（一局游戏的持久化记录）
type GameSession struct {
	BaseModel
	SessionID string     `gorm:"uniqueIndex;size:64;not null" json:"session_id"`
	GameSlug  string     `gorm:"size:50;not null;index" json:"game_slug"`
	Status    string     `gorm:"size:20;default:'created';index" json:"status"` // created, running, finished, abandoned
	Config    JSONMap    `gorm:"type:json" json:"config"`
	Seats     JSONArray  `gorm:"type:json" json:"seats"` // 座位元数据：idx, name, team, role, human
	Winner    string     `gorm:"size:50" json:"winner"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`

	// 关联（查询时使用 Preload 加载）
	Snapshots  []Snapshot  `gorm:"foreignKey:SessionID;references:SessionID" json:"-"`
	ActionLogs []ActionLog `gorm:"foreignKey:SessionID;references:SessionID" json:"-"`
}

// TableName 指定表名
func (GameSession) TableName() string {
	return "game_sessions"
}

// ActionLog 动作日志表（每个成功动作一行，只追加）
type ActionLog struct {
	BaseModel
	SessionID string  `gorm:"size:64;not null;index" json:"session_id"`
	Turn      int     `gorm:"not null" json:"turn"`
	Seat      int     `gorm:"not null" json:"seat"`
	Actor     string  `gorm:"size:100" json:"actor"` // 行动方显示名（队伍或座位名）
	Action    string  `gorm:"size:50;not null" json:"action"`
	Params    JSONMap `gorm:"type:json" json:"params"`
	Result    JSONMap `gorm:"type:json" json:"result"`
}

// TableName 指定表名
func (ActionLog) TableName() string {
	return "action_logs"
}

// Snapshot 快照表（每个成功动作之后一份，外加创建时的初始快照）
// 快照是错过实时事件的调用方的追赶与恢复机制
type Snapshot struct {
	BaseModel
	SessionID string  `gorm:"size:64;not null;index" json:"session_id"`
	Turn      int     `gorm:"not null" json:"turn"`
	State     JSONMap `gorm:"type:json" json:"state"`
	BoardView string  `gorm:"type:text" json:"board_view"`
}

// TableName 指定表名
func (Snapshot) TableName() string {
	return "snapshots"
}
