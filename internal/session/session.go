package session

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wfunc/boardgame-server/internal/game"
	"github.com/wfunc/boardgame-server/internal/logger"
)

// ActiveSession 内存中的活跃会话
//
// mu 保护游戏状态、回合计数与会话状态的全部读写：
// 任何触碰 game 的代码都必须先持有 mu。
// 订阅者集合由独立的 subMu 保护，广播不占用游戏锁。
type ActiveSession struct {
	mu sync.Mutex

	sessionID string
	gameSlug  string
	game      game.Game

	// cfg/humanSeats 创建会话时的工厂参数，供锁外决策用的克隆局面重建
	cfg        game.Params
	humanSeats map[int]bool

	// status 会话状态（models.SessionStatus*）
	status string
	// turnCounter 已应用动作数（每次成功Apply递增1）
	turnCounter int
	// gameOverSent 终局事件是否已广播（保证至多一次）
	gameOverSent bool

	subMu       sync.RWMutex
	subscribers map[string]Subscriber
}

// newActiveSession 创建活跃会话
func newActiveSession(sessionID, gameSlug string, g game.Game, cfg game.Params, humanSeats map[int]bool, status string, turn int) *ActiveSession {
	return &ActiveSession{
		sessionID:   sessionID,
		gameSlug:    gameSlug,
		game:        g,
		cfg:         cfg,
		humanSeats:  humanSeats,
		status:      status,
		turnCounter: turn,
		subscribers: make(map[string]Subscriber),
	}
}

// SessionID 会话ID
func (s *ActiveSession) SessionID() string {
	return s.sessionID
}

// GameSlug 游戏标识
func (s *ActiveSession) GameSlug() string {
	return s.gameSlug
}

// Turn 当前回合计数
func (s *ActiveSession) Turn() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turnCounter
}

// Status 当前会话状态
func (s *ActiveSession) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Subscribe 注册订阅者
func (s *ActiveSession) Subscribe(sub Subscriber) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subscribers[sub.ID()] = sub
}

// Unsubscribe 注销订阅者
func (s *ActiveSession) Unsubscribe(id string) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	delete(s.subscribers, id)
}

// SubscriberCount 当前订阅者数量
func (s *ActiveSession) SubscriberCount() int {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	return len(s.subscribers)
}

// broadcast 向全部订阅者推送事件（尽力而为，单个失败不影响其他订阅者）
func (s *ActiveSession) broadcast(event *Event) {
	s.subMu.RLock()
	subs := make([]Subscriber, 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		subs = append(subs, sub)
	}
	s.subMu.RUnlock()

	log := logger.GetModuleLogger("session")
	for _, sub := range subs {
		if err := sub.Send(event); err != nil {
			log.Warn("事件推送失败",
				zap.String("session_id", s.sessionID),
				zap.String("subscriber_id", sub.ID()),
				zap.String("event_type", string(event.Type)),
				zap.Error(err))
		}
	}
}
