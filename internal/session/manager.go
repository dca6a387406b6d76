package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/wfunc/boardgame-server/internal/config"
	"github.com/wfunc/boardgame-server/internal/errors"
	"github.com/wfunc/boardgame-server/internal/game"
	"github.com/wfunc/boardgame-server/internal/logger"
	"github.com/wfunc/boardgame-server/internal/models"
	"github.com/wfunc/boardgame-server/internal/repository"
)

// Manager 会话编排器
//
// 持有全部活跃会话，串行化同一会话上的动作提交，
// 驱动AI座位的自主回合，并把状态变更落库与广播。
type Manager struct {
	cfg      *config.GameConfig
	registry *game.Registry

	mu       sync.RWMutex
	sessions map[string]*ActiveSession

	sessionRepo  repository.SessionRepository
	actionRepo   repository.ActionLogRepository
	snapshotRepo repository.SnapshotRepository

	log *zap.Logger
}

// NewManager 创建会话编排器
func NewManager(cfg *config.GameConfig, registry *game.Registry, db *gorm.DB) *Manager {
	return &Manager{
		cfg:          cfg,
		registry:     registry,
		sessions:     make(map[string]*ActiveSession),
		sessionRepo:  repository.NewSessionRepository(db),
		actionRepo:   repository.NewActionLogRepository(db),
		snapshotRepo: repository.NewSnapshotRepository(db),
		log:          logger.GetModuleLogger("session"),
	}
}

// serialize 导出视图并附带历史文本投影（轮数上限取history_rounds配置）
//
// 调用方持有会话锁。
func (m *Manager) serialize(g game.Game, viewer *game.Player) *game.View {
	v := g.Serialize(viewer)
	v.HistoryText = g.History().ContextText(m.cfg.HistoryRounds)
	return v
}

// ApplyResult 一次动作提交的结果
type ApplyResult struct {
	Turn     int         `json:"turn"`
	Action   string      `json:"action"`
	Result   game.Result `json:"result,omitempty"`
	State    *game.View  `json:"state"`
	Terminal bool        `json:"terminal"`
}

// SeatInfo 座位元数据
type SeatInfo struct {
	Seat      int    `json:"seat"`
	Name      string `json:"name"`
	Team      string `json:"team,omitempty"`
	Role      string `json:"role,omitempty"`
	AgentType string `json:"agent_type"`
}

// StateResult 会话状态查询结果
type StateResult struct {
	SessionID string        `json:"session_id"`
	GameSlug  string        `json:"game_slug"`
	Status    string        `json:"status"`
	Turn      int           `json:"turn"`
	Seats     []SeatInfo    `json:"seats"`
	State     *game.View    `json:"state"`
	History   []*game.Round `json:"history"`
	// Live 是否来自内存中的活跃会话（false表示来自最新快照）
	Live bool `json:"live"`
}

// Create 创建新会话：构造游戏、落库、注册到内存并启动自主回合
func (m *Manager) Create(ctx context.Context, slug string, cfg game.Params, humanSeats map[int]bool) (*ActiveSession, error) {
	factory, ok := m.registry.Get(slug)
	if !ok {
		return nil, errors.Newf(errors.ErrUnknownGame, "未知游戏: %s", slug)
	}

	g, err := factory.New(cfg, humanSeats)
	if err != nil {
		return nil, err
	}

	sessionID := uuid.New().String()
	now := time.Now()

	seats := make(models.JSONArray, 0, len(g.Players()))
	for _, p := range g.Players() {
		seats = append(seats, map[string]interface{}{
			"seat":       p.Seat,
			"name":       p.Name,
			"team":       p.Team,
			"role":       p.Role,
			"agent_type": string(p.AgentType),
		})
	}

	row := &models.GameSession{
		SessionID: sessionID,
		GameSlug:  slug,
		Status:    models.SessionStatusRunning,
		Config:    models.JSONMap(cfg),
		Seats:     seats,
		StartedAt: &now,
	}
	if err := m.sessionRepo.Create(ctx, row); err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery, "创建会话失败")
	}

	s := newActiveSession(sessionID, slug, g, cfg, humanSeats, models.SessionStatusRunning, 0)

	// 初始快照（回合0）
	m.persistSnapshot(ctx, s, m.serialize(g, nil))

	m.mu.Lock()
	m.sessions[sessionID] = s
	m.mu.Unlock()

	logger.LogSessionEvent("created", sessionID, map[string]interface{}{
		"game": slug, "players": len(g.Players()),
	})

	go m.AutoRun(sessionID)
	return s, nil
}

// Get 查找活跃会话
func (m *Manager) Get(sessionID string) (*ActiveSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	return s, ok
}

// getOrResume 查找活跃会话，不在内存时尝试从最新快照恢复
func (m *Manager) getOrResume(ctx context.Context, sessionID string) (*ActiveSession, error) {
	if s, ok := m.Get(sessionID); ok {
		return s, nil
	}

	row, err := m.sessionRepo.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, errors.Newf(errors.ErrSessionNotFound, "会话不存在: %s", sessionID)
	}
	if row.Status == models.SessionStatusFinished || row.Status == models.SessionStatusAbandoned {
		return nil, errors.Newf(errors.ErrSessionEnded, "会话已结束: %s", sessionID)
	}

	factory, ok := m.registry.Get(row.GameSlug)
	if !ok {
		return nil, errors.Newf(errors.ErrUnknownGame, "未知游戏: %s", row.GameSlug)
	}

	humanSeats := make(map[int]bool)
	for _, raw := range row.Seats {
		seat, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		p := game.Params(seat)
		if agentType, _ := p.String("agent_type"); agentType == string(game.AgentTypeHuman) {
			if idx, ok := p.Int("seat"); ok {
				humanSeats[idx] = true
			}
		}
	}

	g, err := factory.New(game.Params(row.Config), humanSeats)
	if err != nil {
		return nil, err
	}

	snap, err := m.snapshotRepo.FindLatestBySessionID(ctx, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery, "读取会话快照失败")
	}
	if err := g.Restore(snap.State); err != nil {
		return nil, errors.Wrap(err, errors.ErrPluginFault, "从快照恢复局面失败")
	}

	s := newActiveSession(sessionID, row.GameSlug, g, game.Params(row.Config), humanSeats, row.Status, snap.Turn)

	m.mu.Lock()
	// 并发恢复时以先注册的为准
	if existing, ok := m.sessions[sessionID]; ok {
		m.mu.Unlock()
		return existing, nil
	}
	m.sessions[sessionID] = s
	m.mu.Unlock()

	logger.LogSessionEvent("resumed", sessionID, map[string]interface{}{
		"game": row.GameSlug, "turn": snap.Turn,
	})
	return s, nil
}

// Apply 提交一个动作
//
// 同一会话上的提交由会话互斥锁串行化。校验不通过返回
// ErrActionRejected且不产生任何副作用；Apply出错说明插件违约，
// 会话被标记为废弃并拒绝后续提交。
func (m *Manager) Apply(ctx context.Context, sessionID string, seat int, actionName string, params game.Params) (*ApplyResult, error) {
	return m.apply(ctx, sessionID, seat, actionName, params, true)
}

// apply 执行一次动作提交（spawnRunner为false时由自主回合循环自行驱动后续）
func (m *Manager) apply(ctx context.Context, sessionID string, seat int, actionName string, params game.Params, spawnRunner bool) (*ApplyResult, error) {
	s, err := m.getOrResume(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()

	switch s.status {
	case models.SessionStatusAbandoned:
		s.mu.Unlock()
		return nil, errors.Newf(errors.ErrSessionAbandoned, "会话已废弃: %s", sessionID)
	case models.SessionStatusFinished:
		s.mu.Unlock()
		return nil, errors.Newf(errors.ErrSessionEnded, "会话已结束: %s", sessionID)
	}
	if s.game.State().IsTerminal() {
		s.mu.Unlock()
		return nil, errors.Newf(errors.ErrSessionEnded, "对局已终局: %s", sessionID)
	}

	p := game.FindPlayer(s.game, seat)
	if p == nil {
		s.mu.Unlock()
		return nil, errors.Newf(errors.ErrInvalidSeat, "座位不存在: %d", seat)
	}

	a, ok := game.FindAction(s.game, actionName)
	if !ok {
		s.mu.Unlock()
		return nil, errors.Newf(errors.ErrUnknownAction, "未知动作: %s", actionName)
	}

	// 角色过滤与规则校验都不产生副作用
	if !p.CanPerform(a) || !a.Validate(s.game, p, params) {
		s.mu.Unlock()
		return nil, errors.Newf(errors.ErrActionRejected, "动作被拒绝: %s", actionName)
	}

	result, err := a.Apply(s.game, p, params)
	if err != nil {
		// 校验通过后Apply不应失败，视为插件违约
		s.status = models.SessionStatusAbandoned
		s.mu.Unlock()

		if dbErr := m.sessionRepo.EndSession(ctx, sessionID, models.SessionStatusAbandoned, ""); dbErr != nil {
			m.log.Error("标记会话废弃失败", zap.String("session_id", sessionID), zap.Error(dbErr))
		}
		s.broadcast(&Event{
			Type:      EventError,
			SessionID: sessionID,
			Message:   "internal game error, session abandoned",
		})
		return nil, errors.Wrapf(err, errors.ErrPluginFault, "动作执行失败: %s", actionName)
	}

	s.turnCounter++
	turn := s.turnCounter
	view := m.serialize(s.game, nil)
	terminal := view.Terminal
	winner := view.Winner
	if terminal {
		s.status = models.SessionStatusFinished
	}

	// 落库在临界区内完成，保证日志与快照的回合序一致
	m.persistAction(ctx, s, p, actionName, params, result, turn)
	m.persistSnapshot(ctx, s, view)

	s.mu.Unlock()

	if terminal {
		if err := m.sessionRepo.EndSession(ctx, sessionID, models.SessionStatusFinished, winner); err != nil {
			m.log.Error("落库会话终态失败", zap.String("session_id", sessionID), zap.Error(err))
		}
	}

	seatCopy := seat
	s.broadcast(&Event{
		Type:      EventActionApplied,
		SessionID: sessionID,
		Turn:      turn,
		Seat:      &seatCopy,
		Action:    actionName,
		Params:    params,
		State:     view,
	})
	if terminal {
		m.broadcastGameOver(s, view)
	}

	logger.LogSessionEvent("action_applied", sessionID, map[string]interface{}{
		"turn": turn, "seat": seat, "action": actionName,
	})

	if spawnRunner && !terminal {
		go m.AutoRun(sessionID)
	}

	return &ApplyResult{
		Turn:     turn,
		Action:   actionName,
		Result:   result,
		State:    view,
		Terminal: terminal,
	}, nil
}

// State 查询会话状态：优先活跃会话，冷会话回退到最新快照
func (m *Manager) State(ctx context.Context, sessionID string) (*StateResult, error) {
	if s, ok := m.Get(sessionID); ok {
		s.mu.Lock()
		res := &StateResult{
			SessionID: sessionID,
			GameSlug:  s.gameSlug,
			Status:    s.status,
			Turn:      s.turnCounter,
			Seats:     seatInfos(s.game.Players()),
			State:     m.serialize(s.game, nil),
			History:   copyRounds(s.game.History().Rounds()),
			Live:      true,
		}
		s.mu.Unlock()
		return res, nil
	}

	row, err := m.sessionRepo.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, errors.Newf(errors.ErrSessionNotFound, "会话不存在: %s", sessionID)
	}
	snap, err := m.snapshotRepo.FindLatestBySessionID(ctx, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery, "读取会话快照失败")
	}
	logs, err := m.actionRepo.FindBySessionID(ctx, sessionID, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery, "读取动作日志失败")
	}

	return &StateResult{
		SessionID: sessionID,
		GameSlug:  row.GameSlug,
		Status:    row.Status,
		Turn:      snap.Turn,
		Seats:     seatInfosFromRow(row.Seats),
		State: &game.View{
			State:     map[string]interface{}(snap.State),
			BoardView: snap.BoardView,
			Terminal:  row.Status == models.SessionStatusFinished,
			Winner:    row.Winner,
		},
		History: historyFromLogs(logs),
		Live:    false,
	}, nil
}

// seatInfos 提取座位元数据
func seatInfos(players []*game.Player) []SeatInfo {
	infos := make([]SeatInfo, 0, len(players))
	for _, p := range players {
		infos = append(infos, SeatInfo{
			Seat:      p.Seat,
			Name:      p.Name,
			Team:      p.Team,
			Role:      p.Role,
			AgentType: string(p.AgentType),
		})
	}
	return infos
}

// seatInfosFromRow 从落库的座位JSON还原座位元数据
func seatInfosFromRow(seats models.JSONArray) []SeatInfo {
	infos := make([]SeatInfo, 0, len(seats))
	for _, raw := range seats {
		entry, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		info := SeatInfo{}
		if v, ok := entry["seat"].(float64); ok {
			info.Seat = int(v)
		}
		if v, ok := entry["name"].(string); ok {
			info.Name = v
		}
		if v, ok := entry["team"].(string); ok {
			info.Team = v
		}
		if v, ok := entry["role"].(string); ok {
			info.Role = v
		}
		if v, ok := entry["agent_type"].(string); ok {
			info.AgentType = v
		}
		infos = append(infos, info)
	}
	return infos
}

// copyRounds 在锁内拷贝历史轮次，释放锁后的追加不会影响已返回的切片
func copyRounds(rounds []*game.Round) []*game.Round {
	out := make([]*game.Round, 0, len(rounds))
	for _, r := range rounds {
		records := make([]game.Record, len(r.Records))
		copy(records, r.Records)
		out = append(out, &game.Round{Number: r.Number, Records: records})
	}
	return out
}

// historyFromLogs 冷会话没有内存历史，用动作日志还原一份扁平记录
func historyFromLogs(logs []*models.ActionLog) []*game.Round {
	if len(logs) == 0 {
		return nil
	}
	records := make([]game.Record, 0, len(logs))
	for _, l := range logs {
		rec := game.Record{
			"seat":   l.Seat,
			"action": l.Action,
			"turn":   l.Turn,
		}
		for k, v := range l.Params {
			if _, exists := rec[k]; !exists {
				rec[k] = v
			}
		}
		records = append(records, rec)
	}
	return []*game.Round{{Number: 1, Records: records}}
}

// LegalActions 某座位当前可执行的动作（按角色过滤）
func (m *Manager) LegalActions(ctx context.Context, sessionID string, seat int) ([]game.ActionInfo, error) {
	s, err := m.getOrResume(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := game.FindPlayer(s.game, seat)
	if p == nil {
		return nil, errors.Newf(errors.ErrInvalidSeat, "座位不存在: %d", seat)
	}

	actions := game.LegalActionsFor(s.game, p)
	infos := make([]game.ActionInfo, 0, len(actions))
	for _, a := range actions {
		infos = append(infos, game.Describe(a))
	}
	return infos, nil
}

// Subscribe 为会话注册订阅者并立即推送当前状态
func (m *Manager) Subscribe(ctx context.Context, sessionID string, sub Subscriber) error {
	s, err := m.getOrResume(ctx, sessionID)
	if err != nil {
		return err
	}

	s.Subscribe(sub)

	s.mu.Lock()
	view := m.serialize(s.game, nil)
	turn := s.turnCounter
	s.mu.Unlock()

	if err := sub.Send(&Event{
		Type:      EventSessionState,
		SessionID: sessionID,
		Turn:      turn,
		State:     view,
	}); err != nil {
		m.log.Warn("初始状态推送失败",
			zap.String("session_id", sessionID),
			zap.String("subscriber_id", sub.ID()),
			zap.Error(err))
	}
	return nil
}

// Unsubscribe 注销订阅者
func (m *Manager) Unsubscribe(sessionID, subscriberID string) {
	if s, ok := m.Get(sessionID); ok {
		s.Unsubscribe(subscriberID)
	}
}

// broadcastGameOver 广播终局事件（每会话至多一次）
func (m *Manager) broadcastGameOver(s *ActiveSession, view *game.View) {
	s.mu.Lock()
	if s.gameOverSent {
		s.mu.Unlock()
		return
	}
	s.gameOverSent = true
	s.mu.Unlock()

	s.broadcast(&Event{
		Type:      EventGameOver,
		SessionID: s.sessionID,
		State:     view,
	})
	logger.LogSessionEvent("game_over", s.sessionID, map[string]interface{}{
		"winner": view.Winner,
	})
}

// persistAction 落库动作日志（调用方持有会话锁；失败只记日志不回滚局面）
func (m *Manager) persistAction(ctx context.Context, s *ActiveSession, p *game.Player, actionName string, params game.Params, result game.Result, turn int) {
	row := &models.ActionLog{
		SessionID: s.sessionID,
		Turn:      turn,
		Seat:      p.Seat,
		Actor:     string(p.AgentType),
		Action:    actionName,
		Params:    models.JSONMap(params),
		Result:    models.JSONMap(result),
	}
	if err := m.actionRepo.Create(ctx, row); err != nil {
		m.log.Error("落库动作日志失败",
			zap.String("session_id", s.sessionID),
			zap.Int("turn", turn),
			zap.Error(err))
	}
}

// persistSnapshot 落库状态快照（调用方持有会话锁或会话尚未发布）
func (m *Manager) persistSnapshot(ctx context.Context, s *ActiveSession, view *game.View) {
	row := &models.Snapshot{
		SessionID: s.sessionID,
		Turn:      s.turnCounter,
		State:     models.JSONMap(view.State),
		BoardView: view.BoardView,
	}
	if err := m.snapshotRepo.Create(ctx, row); err != nil {
		m.log.Error("落库快照失败",
			zap.String("session_id", s.sessionID),
			zap.Int("turn", s.turnCounter),
			zap.Error(err))
	}
}
