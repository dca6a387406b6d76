package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/wfunc/boardgame-server/internal/errors"
	"github.com/wfunc/boardgame-server/internal/game"
	"github.com/wfunc/boardgame-server/internal/logger"
	"github.com/wfunc/boardgame-server/internal/models"
)

// AutoRun 驱动AI座位的自主回合
//
// 循环直到：终局、轮到人类座位、会话不再运行，
// 或达到单次运行的步数上限（防御插件回合逻辑出错导致死循环）。
// 代理调用在互斥锁之外进行，带每次调用的超时；
// 决策失败或被拒绝时先重试，重试耗尽后改用游戏自带的兜底决策。
func (m *Manager) AutoRun(sessionID string) {
	s, ok := m.Get(sessionID)
	if !ok {
		return
	}

	maxSteps := m.cfg.MaxAutoSteps
	if maxSteps <= 0 {
		maxSteps = 256
	}

	for step := 0; step < maxSteps; step++ {
		// 短锁窗口：检查状态、取出当前AI座位并捕获局面快照
		s.mu.Lock()
		if s.status != models.SessionStatusRunning {
			terminal := s.status == models.SessionStatusFinished
			var view *game.View
			if terminal {
				view = m.serialize(s.game, nil)
			}
			s.mu.Unlock()
			if terminal {
				m.broadcastGameOver(s, view)
			}
			return
		}
		p := s.game.CurrentPlayer()
		if p == nil || p.IsHuman() {
			s.mu.Unlock()
			return
		}
		agent := p.Agent
		snap := m.serialize(s.game, nil)
		liveGame := s.game
		s.mu.Unlock()

		if agent == nil {
			agent = game.HumanAgent{}
		}

		// 决策针对快照克隆进行，并发的人类提交不会与代理读取竞争
		dg, dp := m.decisionGame(s, snap, liveGame, p)

		if !m.stepOnce(s, p, dg, dp, agent) {
			return
		}
	}

	m.log.Warn("自主回合达到步数上限",
		zap.String("session_id", sessionID),
		zap.Int("max_steps", maxSteps))
	s.broadcast(&Event{
		Type:      EventError,
		SessionID: sessionID,
		Message:   "auto-run step limit reached",
	})
}

// decisionGame 重建一份只供决策读取的局面克隆
//
// 克隆失败时退回活跃局面（此时代理读取与并发提交之间
// 的竞争窗口重新出现，仅作日志告警，不中断驱动）。
func (m *Manager) decisionGame(s *ActiveSession, snap *game.View, liveGame game.Game, livePlayer *game.Player) (game.Game, *game.Player) {
	factory, ok := m.registry.Get(s.gameSlug)
	if !ok {
		return liveGame, livePlayer
	}
	clone, err := factory.New(s.cfg, s.humanSeats)
	if err == nil {
		err = clone.Restore(snap.State)
	}
	if err != nil {
		m.log.Warn("决策局面克隆失败，退回活跃局面",
			zap.String("session_id", s.sessionID),
			zap.Error(err))
		return liveGame, livePlayer
	}
	if p := game.FindPlayer(clone, livePlayer.Seat); p != nil {
		return clone, p
	}
	return liveGame, livePlayer
}

// stepOnce 为一个AI座位完成一步（含重试与兜底），返回是否继续循环
//
// dg/dp 是决策用的局面与座位（克隆），p 是活跃会话中的真实座位。
func (m *Manager) stepOnce(s *ActiveSession, p *game.Player, dg game.Game, dp *game.Player, agent game.Agent) bool {
	retries := m.cfg.AgentRetries
	if retries < 0 {
		retries = 0
	}
	timeout := m.cfg.AgentTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	for attempt := 0; attempt <= retries; attempt++ {
		decision, err := m.decide(s, dg, dp, agent, timeout)
		if err != nil {
			m.log.Warn("代理决策失败",
				zap.String("session_id", s.sessionID),
				zap.Int("seat", p.Seat),
				zap.Int("attempt", attempt),
				zap.Error(err))
			continue
		}

		_, err = m.apply(context.Background(), s.sessionID, p.Seat, decision.Action, decision.Params, false)
		if err == nil {
			return true
		}
		if errors.IsRejection(err) {
			m.log.Warn("代理决策被拒绝",
				zap.String("session_id", s.sessionID),
				zap.Int("seat", p.Seat),
				zap.String("action", decision.Action),
				zap.Int("attempt", attempt))
			continue
		}
		// 会话已结束/废弃等硬错误，停止驱动
		return false
	}

	// 重试耗尽，使用游戏自带的兜底决策
	s.mu.Lock()
	decision, ok := s.game.FallbackDecision(p)
	s.mu.Unlock()
	if !ok {
		m.broadcastAgentExhausted(s, p)
		return false
	}

	if _, err := m.apply(context.Background(), s.sessionID, p.Seat, decision.Action, decision.Params, false); err != nil {
		if errors.IsRejection(err) {
			m.broadcastAgentExhausted(s, p)
		}
		return false
	}
	return true
}

// decide 在锁外调用代理，带单次超时，并记录决策耗时
func (m *Manager) decide(s *ActiveSession, g game.Game, p *game.Player, agent game.Agent, timeout time.Duration) (game.Decision, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	decision, err := agent.Decide(ctx, g, p)
	logger.LogAgentDecision(s.sessionID, p.Seat, decision.Action, time.Since(start), err)
	return decision, err
}

// broadcastAgentExhausted 代理与兜底均失败时通知订阅者
func (m *Manager) broadcastAgentExhausted(s *ActiveSession, p *game.Player) {
	m.log.Warn("代理重试与兜底均失败",
		zap.String("session_id", s.sessionID),
		zap.Int("seat", p.Seat))
	seat := p.Seat
	s.broadcast(&Event{
		Type:      EventError,
		SessionID: s.sessionID,
		Seat:      &seat,
		Message:   "agent failed to produce a legal action",
	})
}
