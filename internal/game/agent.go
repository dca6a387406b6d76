package game

import (
	"context"
	"sync"

	"github.com/wfunc/boardgame-server/internal/errors"
)

// Decision 代理的一次决策：动作名加参数
type Decision struct {
	Action string `json:"action"`
	Params Params `json:"params,omitempty"`
}

// Agent 决策代理契约
//
// Decide 在互斥锁之外被调用（可能耗时较长），实现必须尊重ctx超时。
// 传入的 Game 是决策期间的只读视图，实现不得修改局面。
type Agent interface {
	Decide(ctx context.Context, g Game, p *Player) (Decision, error)
}

// AgentFunc 函数式代理适配器
type AgentFunc func(ctx context.Context, g Game, p *Player) (Decision, error)

// Decide 实现 Agent 接口
func (f AgentFunc) Decide(ctx context.Context, g Game, p *Player) (Decision, error) {
	return f(ctx, g, p)
}

// HumanAgent 人类座位占位代理：永远不产生决策
type HumanAgent struct{}

// Decide 人类座位等待外部提交，不应被自动决策调用
func (HumanAgent) Decide(ctx context.Context, g Game, p *Player) (Decision, error) {
	return Decision{}, errors.New(errors.ErrAgentDecision, "人类座位等待外部提交动作")
}

// ScriptedAgent 脚本代理：按预设序列依次出招（测试与演示用）
type ScriptedAgent struct {
	mu    sync.Mutex
	moves []Decision
	next  int
	// Loop 为true时走完序列后从头循环
	Loop bool
}

// NewScriptedAgent 创建脚本代理
func NewScriptedAgent(moves ...Decision) *ScriptedAgent {
	return &ScriptedAgent{moves: moves}
}

// Decide 返回序列中的下一个决策，序列耗尽且不循环时返回错误
func (s *ScriptedAgent) Decide(ctx context.Context, g Game, p *Player) (Decision, error) {
	select {
	case <-ctx.Done():
		return Decision{}, errors.Wrap(ctx.Err(), errors.ErrAgentTimeout, "代理决策超时")
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.next >= len(s.moves) {
		if !s.Loop || len(s.moves) == 0 {
			return Decision{}, errors.New(errors.ErrAgentDecision, "脚本序列已耗尽")
		}
		s.next = 0
	}
	d := s.moves[s.next]
	s.next++
	return d, nil
}
