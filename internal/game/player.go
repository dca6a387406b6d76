package game

import "fmt"

// AgentType 座位的控制方类型
type AgentType string

const (
	// AgentTypeHuman 人类座位：引擎从不替它走子，等待外部提交
	AgentTypeHuman AgentType = "human"
	// AgentTypeAI 自主座位：引擎在轮到它时调用代理决策
	AgentTypeAI AgentType = "ai"
)

// Player 座位：名字、队伍、角色与控制方
type Player struct {
	// Seat 座位号（0起，会话内唯一且稳定）
	Seat int `json:"seat"`
	// Name 座位展示名
	Name string `json:"name"`
	// Team 队伍标识（无队伍游戏可为空）
	Team string `json:"team,omitempty"`
	// Role 角色标识（决定可执行的动作集合）
	Role string `json:"role,omitempty"`
	// AgentType 控制方类型
	AgentType AgentType `json:"agent_type"`
	// Agent 决策代理（人类座位为nil或占位实现）
	Agent Agent `json:"-"`
}

// NewPlayer 创建座位（未指定名字时使用默认名）
func NewPlayer(seat int, name string) *Player {
	if name == "" {
		name = fmt.Sprintf("Player %d", seat+1)
	}
	return &Player{
		Seat:      seat,
		Name:      name,
		AgentType: AgentTypeAI,
	}
}

// IsHuman 是否为人类座位
func (p *Player) IsHuman() bool {
	return p.AgentType == AgentTypeHuman
}

// CanPerform 角色是否允许执行该动作
func (p *Player) CanPerform(a Action) bool {
	roles := a.AllowedRoles()
	if len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if r == p.Role {
			return true
		}
	}
	return false
}
