package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/boardgame-server/internal/config"
	"github.com/wfunc/boardgame-server/internal/errors"
	"github.com/wfunc/boardgame-server/internal/game"
	"github.com/wfunc/boardgame-server/internal/models"
	"github.com/wfunc/boardgame-server/internal/repository"
)

// ---- 测试用计数游戏：inc动作推进计数器，到达目标即终局 ----

type countState struct {
	n      int
	target int
}

func (s *countState) IsTerminal() bool { return s.n >= s.target }
func (s *countState) Winner() string {
	if !s.IsTerminal() {
		return ""
	}
	return "done"
}

type countBoard struct{ state *countState }

func (b *countBoard) ViewFor(ctx game.ViewContext) string {
	return fmt.Sprintf("count=%d/%d", b.state.n, b.state.target)
}

type countGame struct {
	state      *countState
	board      *countBoard
	history    *game.History
	players    []*game.Player
	actions    []game.Action
	noFallback bool
}

func newCountGame(target int) *countGame {
	s := &countState{target: target}
	g := &countGame{
		state:   s,
		board:   &countBoard{state: s},
		history: game.NewHistory(),
		actions: []game.Action{incAction{}},
	}
	g.history.StartNewRound()
	g.players = []*game.Player{
		game.NewPlayer(0, "A"),
		game.NewPlayer(1, "B"),
	}
	return g
}

func (g *countGame) Name() string            { return "count" }
func (g *countGame) Players() []*game.Player { return g.players }
func (g *countGame) Board() game.Board       { return g.board }
func (g *countGame) State() game.State       { return g.state }
func (g *countGame) History() *game.History  { return g.history }
func (g *countGame) Actions() []game.Action  { return g.actions }

func (g *countGame) CurrentPlayer() *game.Player {
	if g.state.IsTerminal() {
		return nil
	}
	return g.players[g.state.n%len(g.players)]
}

func (g *countGame) Serialize(viewer *game.Player) *game.View {
	cur := -1
	if p := g.CurrentPlayer(); p != nil {
		cur = p.Seat
	}
	return &game.View{
		State:       map[string]interface{}{"n": g.state.n, "target": g.state.target},
		BoardView:   g.board.ViewFor(game.ViewContext{Player: viewer, State: g.state}),
		CurrentSeat: cur,
		Terminal:    g.state.IsTerminal(),
		Winner:      g.state.Winner(),
	}
}

func (g *countGame) Restore(state map[string]interface{}) error {
	p := game.Params(state)
	n, ok := p.Int("n")
	if !ok {
		return errors.New(errors.ErrInvalidParam, "快照缺少n")
	}
	target, ok := p.Int("target")
	if !ok {
		return errors.New(errors.ErrInvalidParam, "快照缺少target")
	}
	g.state.n = n
	g.state.target = target
	return nil
}

func (g *countGame) FallbackDecision(p *game.Player) (game.Decision, bool) {
	if g.noFallback || g.state.IsTerminal() {
		return game.Decision{}, false
	}
	return game.Decision{Action: "inc"}, true
}

type incAction struct{}

func (incAction) Name() string                    { return "inc" }
func (incAction) DisplayName() string             { return "Increment" }
func (incAction) AllowedRoles() []string          { return nil }
func (incAction) ParamSpec() []game.ParamField    { return nil }

func (incAction) Validate(g game.Game, p *game.Player, params game.Params) bool {
	cg := g.(*countGame)
	if cg.state.IsTerminal() {
		return false
	}
	if by, ok := params.Int("by"); ok && by != 1 {
		return false
	}
	return true
}

func (a incAction) Apply(g game.Game, p *game.Player, params game.Params) (game.Result, error) {
	cg := g.(*countGame)
	if boom, _ := params.Bool("boom"); boom {
		return nil, fmt.Errorf("boom")
	}
	cg.state.n++
	result := game.Result{"n": cg.state.n}
	cg.history.AddAction(a, p, params, result)
	return result, nil
}

func (incAction) HistoryRecord(p *game.Player, params game.Params, result game.Result) game.Record {
	return game.Record{"player": p.Name, "action": "inc"}
}

type countFactory struct {
	target       int
	agentForSeat map[int]game.Agent
	noFallback   bool
}

func (f *countFactory) Meta() game.Meta {
	return game.Meta{Slug: "count", Title: "Count", MinPlayers: 2, MaxPlayers: 2}
}

func (f *countFactory) New(cfg game.Params, humanSeats map[int]bool) (game.Game, error) {
	g := newCountGame(f.target)
	g.noFallback = f.noFallback
	for _, p := range g.players {
		if humanSeats[p.Seat] {
			p.AgentType = game.AgentTypeHuman
			p.Agent = game.HumanAgent{}
		} else {
			p.AgentType = game.AgentTypeAI
			if a, ok := f.agentForSeat[p.Seat]; ok {
				p.Agent = a
			} else {
				p.Agent = game.AgentFunc(func(ctx context.Context, g game.Game, p *game.Player) (game.Decision, error) {
					return game.Decision{Action: "inc"}, nil
				})
			}
		}
	}
	return g, nil
}

// ---- 测试辅助 ----

type testSubscriber struct {
	id     string
	mu     sync.Mutex
	events []*Event
	fail   bool
}

func (t *testSubscriber) ID() string { return t.id }

func (t *testSubscriber) Send(e *Event) error {
	if t.fail {
		return fmt.Errorf("send failed")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, e)
	return nil
}

func (t *testSubscriber) byType(tp EventType) []*Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []*Event
	for _, e := range t.events {
		if e.Type == tp {
			out = append(out, e)
		}
	}
	return out
}

func testGameConfig() *config.GameConfig {
	return &config.GameConfig{
		AgentTimeout:  2 * time.Second,
		AgentRetries:  2,
		MaxAutoSteps:  64,
		HistoryRounds: 3,
	}
}

func newTestManager(t *testing.T, f *countFactory) *Manager {
	t.Helper()
	registry := game.NewRegistry()
	require.NoError(t, registry.Register(f))
	db := repository.SetupTestDB()
	return NewManager(testGameConfig(), registry, db)
}

func snapshotCount(t *testing.T, m *Manager, sessionID string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, m.snapshotRepo.GetDB().
		Model(&models.Snapshot{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error)
	return count
}

func actionCount(t *testing.T, m *Manager, sessionID string) int64 {
	t.Helper()
	count, err := m.actionRepo.CountBySessionID(context.Background(), sessionID)
	require.NoError(t, err)
	return count
}

// ---- 测试 ----

func TestCreateUnknownGame(t *testing.T) {
	m := newTestManager(t, &countFactory{target: 3})
	_, err := m.Create(context.Background(), "chess", nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnknownGame))
}

func TestCreatePersistsSessionAndInitialSnapshot(t *testing.T) {
	m := newTestManager(t, &countFactory{target: 3})
	// 双人类座位：不会自动推进
	s, err := m.Create(context.Background(), "count", game.Params{"x": float64(1)}, map[int]bool{0: true, 1: true})
	require.NoError(t, err)

	row, err := m.sessionRepo.FindBySessionID(context.Background(), s.SessionID())
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusRunning, row.Status)
	assert.Equal(t, "count", row.GameSlug)
	require.Len(t, row.Seats, 2)

	// 初始快照（回合0）
	assert.Equal(t, int64(1), snapshotCount(t, m, s.SessionID()))
	assert.Equal(t, 0, s.Turn())
}

func TestTurnCounterMonotonic(t *testing.T) {
	m := newTestManager(t, &countFactory{target: 100})
	s, err := m.Create(context.Background(), "count", nil, map[int]bool{0: true, 1: true})
	require.NoError(t, err)

	for i := 1; i <= 5; i++ {
		res, err := m.Apply(context.Background(), s.SessionID(), (i+1)%2, "inc", nil)
		require.NoError(t, err)
		assert.Equal(t, i, res.Turn)
	}
	assert.Equal(t, 5, s.Turn())
	assert.Equal(t, int64(5), actionCount(t, m, s.SessionID()))
	assert.Equal(t, int64(6), snapshotCount(t, m, s.SessionID()))
}

func TestRejectedActionMutatesNothing(t *testing.T) {
	m := newTestManager(t, &countFactory{target: 100})
	s, err := m.Create(context.Background(), "count", nil, map[int]bool{0: true, 1: true})
	require.NoError(t, err)

	before, err := m.State(context.Background(), s.SessionID())
	require.NoError(t, err)

	// by=2被Validate拒绝
	_, err = m.Apply(context.Background(), s.SessionID(), 0, "inc", game.Params{"by": 2})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrActionRejected))

	after, err := m.State(context.Background(), s.SessionID())
	require.NoError(t, err)
	assert.Equal(t, before.Turn, after.Turn)
	assert.Equal(t, before.State.State, after.State.State)
	assert.Equal(t, int64(0), actionCount(t, m, s.SessionID()))
	assert.Equal(t, int64(1), snapshotCount(t, m, s.SessionID()))
}

func TestInvalidSeatNoSideEffects(t *testing.T) {
	m := newTestManager(t, &countFactory{target: 100})
	s, err := m.Create(context.Background(), "count", nil, map[int]bool{0: true, 1: true})
	require.NoError(t, err)

	_, err = m.Apply(context.Background(), s.SessionID(), 99, "inc", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidSeat))
	assert.Equal(t, int64(1), snapshotCount(t, m, s.SessionID()))
	assert.Equal(t, int64(0), actionCount(t, m, s.SessionID()))
}

func TestUnknownAction(t *testing.T) {
	m := newTestManager(t, &countFactory{target: 100})
	s, err := m.Create(context.Background(), "count", nil, map[int]bool{0: true, 1: true})
	require.NoError(t, err)

	_, err = m.Apply(context.Background(), s.SessionID(), 0, "teleport", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnknownAction))
}

func TestConcurrentSubmissionsSerialized(t *testing.T) {
	m := newTestManager(t, &countFactory{target: 1000})
	s, err := m.Create(context.Background(), "count", nil, map[int]bool{0: true, 1: true})
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(seat int) {
			defer wg.Done()
			_, err := m.Apply(context.Background(), s.SessionID(), seat%2, "inc", nil)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	// 全部提交被串行化：计数严格等于提交数
	assert.Equal(t, n, s.Turn())
	assert.Equal(t, int64(n), actionCount(t, m, s.SessionID()))
	assert.Equal(t, int64(n+1), snapshotCount(t, m, s.SessionID()))
}

func TestPluginFaultAbandonsSession(t *testing.T) {
	m := newTestManager(t, &countFactory{target: 100})
	s, err := m.Create(context.Background(), "count", nil, map[int]bool{0: true, 1: true})
	require.NoError(t, err)

	sub := &testSubscriber{id: "sub-1"}
	require.NoError(t, m.Subscribe(context.Background(), s.SessionID(), sub))

	_, err = m.Apply(context.Background(), s.SessionID(), 0, "inc", game.Params{"boom": true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrPluginFault))
	assert.Equal(t, models.SessionStatusAbandoned, s.Status())

	// 后续提交被拒绝
	_, err = m.Apply(context.Background(), s.SessionID(), 0, "inc", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSessionAbandoned))

	// 落库终态
	row, err := m.sessionRepo.FindBySessionID(context.Background(), s.SessionID())
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusAbandoned, row.Status)

	// 订阅者收到error事件
	assert.NotEmpty(t, sub.byType(EventError))
}

func TestAutoRunToTerminalSingleGameOver(t *testing.T) {
	// 座位0人类、座位1 AI，目标3：人类→AI→人类（终局）
	m := newTestManager(t, &countFactory{target: 3})
	s, err := m.Create(context.Background(), "count", nil, map[int]bool{0: true})
	require.NoError(t, err)

	sub := &testSubscriber{id: "sub-1"}
	require.NoError(t, m.Subscribe(context.Background(), s.SessionID(), sub))

	_, err = m.Apply(context.Background(), s.SessionID(), 0, "inc", nil)
	require.NoError(t, err)

	// AI推进到n=2后停在人类座位
	require.Eventually(t, func() bool { return s.Turn() == 2 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, s.Turn())
	assert.Equal(t, models.SessionStatusRunning, s.Status())

	// 人类终局一步
	res, err := m.Apply(context.Background(), s.SessionID(), 0, "inc", nil)
	require.NoError(t, err)
	assert.True(t, res.Terminal)
	assert.Equal(t, models.SessionStatusFinished, s.Status())

	// game_over恰好一次
	require.Eventually(t, func() bool { return len(sub.byType(EventGameOver)) >= 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, sub.byType(EventGameOver), 1)

	// 每次应用都有action_applied
	assert.Len(t, sub.byType(EventActionApplied), 3)

	// 终局后提交被拒绝
	_, err = m.Apply(context.Background(), s.SessionID(), 0, "inc", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSessionEnded))
}

func TestAutoRunAllAIRunsToTerminal(t *testing.T) {
	m := newTestManager(t, &countFactory{target: 6})
	s, err := m.Create(context.Background(), "count", nil, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return s.Status() == models.SessionStatusFinished
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 6, s.Turn())

	row, err := m.sessionRepo.FindBySessionID(context.Background(), s.SessionID())
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusFinished, row.Status)
	assert.Equal(t, "done", row.Winner)
}

func TestAutoRunStepLimit(t *testing.T) {
	m := newTestManager(t, &countFactory{target: 1000})
	m.cfg.MaxAutoSteps = 5

	gate := make(chan struct{})
	f := &countFactory{target: 1000, agentForSeat: map[int]game.Agent{
		0: game.AgentFunc(func(ctx context.Context, g game.Game, p *game.Player) (game.Decision, error) {
			<-gate
			return game.Decision{Action: "inc"}, nil
		}),
		1: game.AgentFunc(func(ctx context.Context, g game.Game, p *game.Player) (game.Decision, error) {
			<-gate
			return game.Decision{Action: "inc"}, nil
		}),
	}}
	registry := game.NewRegistry()
	require.NoError(t, registry.Register(f))
	m.registry = registry

	s, err := m.Create(context.Background(), "count", nil, nil)
	require.NoError(t, err)

	sub := &testSubscriber{id: "sub-1"}
	require.NoError(t, m.Subscribe(context.Background(), s.SessionID(), sub))
	close(gate)

	// 到达步数上限后广播error并停止
	require.Eventually(t, func() bool { return len(sub.byType(EventError)) >= 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 5, s.Turn())
	assert.Equal(t, models.SessionStatusRunning, s.Status())
}

func TestAgentFailureFallsBack(t *testing.T) {
	f := &countFactory{target: 2, agentForSeat: map[int]game.Agent{
		0: game.AgentFunc(func(ctx context.Context, g game.Game, p *game.Player) (game.Decision, error) {
			return game.Decision{}, fmt.Errorf("model unavailable")
		}),
		1: game.AgentFunc(func(ctx context.Context, g game.Game, p *game.Player) (game.Decision, error) {
			return game.Decision{}, fmt.Errorf("model unavailable")
		}),
	}}
	m := newTestManager(t, f)

	s, err := m.Create(context.Background(), "count", nil, nil)
	require.NoError(t, err)

	// 代理一直失败，但游戏兜底决策仍把对局推进到终局
	require.Eventually(t, func() bool {
		return s.Status() == models.SessionStatusFinished
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, s.Turn())
}

func TestAgentExhaustedNoFallback(t *testing.T) {
	gate := make(chan struct{})
	f := &countFactory{
		target:     5,
		noFallback: true,
		agentForSeat: map[int]game.Agent{
			0: game.AgentFunc(func(ctx context.Context, g game.Game, p *game.Player) (game.Decision, error) {
				<-gate
				return game.Decision{}, fmt.Errorf("model unavailable")
			}),
		},
	}
	m := newTestManager(t, f)

	s, err := m.Create(context.Background(), "count", nil, map[int]bool{1: true})
	require.NoError(t, err)
	sub := &testSubscriber{id: "sub-1"}
	require.NoError(t, m.Subscribe(context.Background(), s.SessionID(), sub))
	close(gate)

	// 代理与兜底都不可用：广播error、不推进
	require.Eventually(t, func() bool { return len(sub.byType(EventError)) >= 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, s.Turn())
}

func TestViewCarriesHistoryText(t *testing.T) {
	m := newTestManager(t, &countFactory{target: 100})
	s, err := m.Create(context.Background(), "count", nil, map[int]bool{0: true, 1: true})
	require.NoError(t, err)

	// 尚无动作：固定提示语
	st, err := m.State(context.Background(), s.SessionID())
	require.NoError(t, err)
	assert.Equal(t, "No previous rounds have been played yet.", st.State.HistoryText)

	res, err := m.Apply(context.Background(), s.SessionID(), 0, "inc", nil)
	require.NoError(t, err)
	assert.Contains(t, res.State.HistoryText, "Round 1:")
	assert.Contains(t, res.State.HistoryText, "A inc")
}

func TestStateSnapshotFallbackForColdSession(t *testing.T) {
	m := newTestManager(t, &countFactory{target: 100})
	s, err := m.Create(context.Background(), "count", nil, map[int]bool{0: true, 1: true})
	require.NoError(t, err)

	_, err = m.Apply(context.Background(), s.SessionID(), 0, "inc", nil)
	require.NoError(t, err)

	// 驱逐出内存，模拟冷会话
	m.mu.Lock()
	delete(m.sessions, s.SessionID())
	m.mu.Unlock()

	res, err := m.State(context.Background(), s.SessionID())
	require.NoError(t, err)
	assert.False(t, res.Live)
	assert.Equal(t, 1, res.Turn)
	assert.Equal(t, "count=1/100", res.State.BoardView)

	// 座位元数据与历史从落库数据还原
	require.Len(t, res.Seats, 2)
	assert.Equal(t, "human", res.Seats[0].AgentType)
	require.Len(t, res.History, 1)
	require.Len(t, res.History[0].Records, 1)
	assert.Equal(t, "inc", res.History[0].Records[0]["action"])
}

func TestApplyResumesColdSession(t *testing.T) {
	m := newTestManager(t, &countFactory{target: 100})
	s, err := m.Create(context.Background(), "count", nil, map[int]bool{0: true, 1: true})
	require.NoError(t, err)

	_, err = m.Apply(context.Background(), s.SessionID(), 0, "inc", nil)
	require.NoError(t, err)

	m.mu.Lock()
	delete(m.sessions, s.SessionID())
	m.mu.Unlock()

	// 冷会话从最新快照恢复后继续接受提交
	res, err := m.Apply(context.Background(), s.SessionID(), 1, "inc", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Turn)

	resumed, ok := m.Get(s.SessionID())
	require.True(t, ok)
	assert.Equal(t, 2, resumed.Turn())
}

func TestStateNotFound(t *testing.T) {
	m := newTestManager(t, &countFactory{target: 3})
	_, err := m.State(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSessionNotFound))
}

func TestLegalActions(t *testing.T) {
	m := newTestManager(t, &countFactory{target: 3})
	s, err := m.Create(context.Background(), "count", nil, map[int]bool{0: true, 1: true})
	require.NoError(t, err)

	infos, err := m.LegalActions(context.Background(), s.SessionID(), 0)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "inc", infos[0].Name)

	_, err = m.LegalActions(context.Background(), s.SessionID(), 9)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidSeat))
}

func TestBroadcastIsolatesFailingSubscriber(t *testing.T) {
	m := newTestManager(t, &countFactory{target: 100})
	s, err := m.Create(context.Background(), "count", nil, map[int]bool{0: true, 1: true})
	require.NoError(t, err)

	bad := &testSubscriber{id: "bad", fail: true}
	good := &testSubscriber{id: "good"}
	require.NoError(t, m.Subscribe(context.Background(), s.SessionID(), good))
	s.Subscribe(bad)

	_, err = m.Apply(context.Background(), s.SessionID(), 0, "inc", nil)
	require.NoError(t, err)

	// 失败的订阅者不影响其他订阅者收到事件
	assert.Len(t, good.byType(EventActionApplied), 1)
	assert.Equal(t, 2, s.SubscriberCount())
}

func TestSubscribeSendsSessionState(t *testing.T) {
	m := newTestManager(t, &countFactory{target: 3})
	s, err := m.Create(context.Background(), "count", nil, map[int]bool{0: true, 1: true})
	require.NoError(t, err)

	sub := &testSubscriber{id: "sub-1"}
	require.NoError(t, m.Subscribe(context.Background(), s.SessionID(), sub))

	states := sub.byType(EventSessionState)
	require.Len(t, states, 1)
	assert.Equal(t, "count=0/3", states[0].State.BoardView)

	m.Unsubscribe(s.SessionID(), sub.ID())
	assert.Equal(t, 0, s.SubscriberCount())
}
