package rps

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/wfunc/boardgame-server/internal/errors"
	"github.com/wfunc/boardgame-server/internal/game"
)

// choices 全部出招
var choices = []string{"rock", "paper", "scissors"}

// beats 胜负关系（键胜过值）
var beats = map[string]string{
	"rock":     "scissors",
	"paper":    "rock",
	"scissors": "paper",
}

// State 石头剪刀布状态
type State struct {
	// CurrentRound 当前轮（0起）
	CurrentRound int
	// MaxRounds 总轮数
	MaxRounds int
	// Pending 本轮各座位的待定出招（空串表示未出）
	Pending [2]string
	// Scores 各座位得分
	Scores [2]int
	// Last 上一轮双方的出招（展示用）
	Last [2]string
}

// IsTerminal 打满轮数即终局
func (s *State) IsTerminal() bool {
	return s.CurrentRound >= s.MaxRounds
}

// Winner 按总分判胜负
func (s *State) Winner() string {
	if !s.IsTerminal() {
		return ""
	}
	switch {
	case s.Scores[0] > s.Scores[1]:
		return "Player 1"
	case s.Scores[1] > s.Scores[0]:
		return "Player 2"
	default:
		return "draw"
	}
}

// Board 石头剪刀布棋盘：比分与上一轮出招
//
// 隐藏信息：本轮已出但未揭示的出招只对出招者本人可见。
type Board struct {
	state *State
}

// ViewFor 渲染观察者可见视图
func (b *Board) ViewFor(ctx game.ViewContext) string {
	s := b.state
	var lines []string
	lines = append(lines, "=== ROCK PAPER SCISSORS ===")
	lines = append(lines, fmt.Sprintf("Round: %d/%d", s.CurrentRound+1, s.MaxRounds))
	lines = append(lines, fmt.Sprintf("Score - Player 1: %d | Player 2: %d", s.Scores[0], s.Scores[1]))

	// 只向出招者本人揭示待定出招
	if ctx.Player != nil && ctx.Player.Seat >= 0 && ctx.Player.Seat < 2 {
		if pending := s.Pending[ctx.Player.Seat]; pending != "" {
			lines = append(lines, fmt.Sprintf("Your pending choice: %s", pending))
		}
	}

	if s.CurrentRound > 0 && s.Last[0] != "" {
		lines = append(lines, "")
		lines = append(lines, "Last round:")
		lines = append(lines, fmt.Sprintf("  Player 1 chose: %s", s.Last[0]))
		lines = append(lines, fmt.Sprintf("  Player 2 chose: %s", s.Last[1]))
	}
	return strings.Join(lines, "\n")
}

// Game 石头剪刀布：双方各自出招，双出后结算一轮
type Game struct {
	board   *Board
	state   *State
	history *game.History
	players []*game.Player
	actions []game.Action
}

// New 创建新局
func New(maxRounds int) *Game {
	if maxRounds < 1 {
		maxRounds = 3
	}
	s := &State{MaxRounds: maxRounds}
	g := &Game{
		board:   &Board{state: s},
		state:   s,
		history: game.NewHistory(),
		actions: []game.Action{chooseAction{}},
	}
	g.history.StartNewRound()
	g.players = []*game.Player{
		game.NewPlayer(0, "Player 1"),
		game.NewPlayer(1, "Player 2"),
	}
	return g
}

func (g *Game) Name() string            { return "rps" }
func (g *Game) Players() []*game.Player { return g.players }
func (g *Game) Board() game.Board       { return g.board }
func (g *Game) State() game.State       { return g.state }
func (g *Game) History() *game.History  { return g.history }
func (g *Game) Actions() []game.Action  { return g.actions }

// CurrentPlayer 先问座位0，再问座位1（双出后当轮已结算）
func (g *Game) CurrentPlayer() *game.Player {
	if g.state.IsTerminal() {
		return nil
	}
	if g.state.Pending[0] == "" {
		return g.players[0]
	}
	if g.state.Pending[1] == "" {
		return g.players[1]
	}
	return nil
}

// Serialize 按观察者过滤待定出招后导出视图
func (g *Game) Serialize(viewer *game.Player) *game.View {
	cur := -1
	if p := g.CurrentPlayer(); p != nil {
		cur = p.Seat
	}

	// 对外状态只暴露"是否已出招"，具体出招只进观察者自己的字段
	pending := make([]interface{}, 2)
	for i := range g.state.Pending {
		pending[i] = g.state.Pending[i] != ""
	}
	st := map[string]interface{}{
		"round":      g.state.CurrentRound,
		"max_rounds": g.state.MaxRounds,
		"scores":     []interface{}{g.state.Scores[0], g.state.Scores[1]},
		"chosen":     pending,
		"last":       []interface{}{g.state.Last[0], g.state.Last[1]},
	}
	if viewer != nil && viewer.Seat >= 0 && viewer.Seat < 2 {
		st["your_choice"] = g.state.Pending[viewer.Seat]
	} else {
		// 旁观者视角仍要保留完整状态用于快照恢复
		st["pending"] = []interface{}{g.state.Pending[0], g.state.Pending[1]}
	}

	return &game.View{
		State:       st,
		BoardView:   g.board.ViewFor(game.ViewContext{Player: viewer, State: g.state}),
		CurrentSeat: cur,
		Terminal:    g.state.IsTerminal(),
		Winner:      g.state.Winner(),
	}
}

// Restore 从快照状态恢复局面（快照为旁观者视角，含完整待定出招）
func (g *Game) Restore(state map[string]interface{}) error {
	p := game.Params(state)
	round, ok := p.Int("round")
	if !ok {
		return errors.New(errors.ErrInvalidParam, "快照缺少round字段")
	}
	maxRounds, ok := p.Int("max_rounds")
	if !ok || maxRounds < 1 {
		return errors.New(errors.ErrInvalidParam, "快照max_rounds字段非法")
	}
	g.state.CurrentRound = round
	g.state.MaxRounds = maxRounds

	if err := restorePair(state, "scores", func(i, n int) { g.state.Scores[i] = n }); err != nil {
		return err
	}
	if raw, ok := state["pending"].([]interface{}); ok && len(raw) == 2 {
		for i, v := range raw {
			s, _ := v.(string)
			g.state.Pending[i] = s
		}
	}
	if raw, ok := state["last"].([]interface{}); ok && len(raw) == 2 {
		for i, v := range raw {
			s, _ := v.(string)
			g.state.Last[i] = s
		}
	}
	return nil
}

// restorePair 读取两元素整数数组字段
func restorePair(state map[string]interface{}, key string, set func(i, n int)) error {
	raw, ok := state[key].([]interface{})
	if !ok || len(raw) != 2 {
		return errors.Newf(errors.ErrInvalidParam, "快照%s字段非法", key)
	}
	for i, v := range raw {
		n, ok := game.Params(map[string]interface{}{"n": v}).Int("n")
		if !ok {
			return errors.Newf(errors.ErrInvalidParam, "快照%s元素非法", key)
		}
		set(i, n)
	}
	return nil
}

// FallbackDecision 兜底：随机出招
func (g *Game) FallbackDecision(p *game.Player) (game.Decision, bool) {
	if g.state.IsTerminal() {
		return game.Decision{}, false
	}
	return game.Decision{
		Action: "choose",
		Params: game.Params{"choice": choices[rand.Intn(len(choices))]},
	}, true
}

// randomAgent 基线AI：均匀随机出招
type randomAgent struct{}

func (randomAgent) Decide(ctx context.Context, g game.Game, p *game.Player) (game.Decision, error) {
	r, ok := g.(*Game)
	if !ok {
		return game.Decision{}, errors.New(errors.ErrAgentDecision, "游戏类型不匹配")
	}
	d, ok := r.FallbackDecision(p)
	if !ok {
		return game.Decision{}, errors.New(errors.ErrAgentDecision, "对局已结束")
	}
	return d, nil
}

// Factory 石头剪刀布工厂
type Factory struct{}

// Meta 游戏元信息
func (Factory) Meta() game.Meta {
	return game.Meta{
		Slug:        "rps",
		Title:       "Rock Paper Scissors",
		Description: "多轮石头剪刀布，总分高者获胜",
		MinPlayers:  2,
		MaxPlayers:  2,
	}
}

// New 构造新局（配置可覆盖轮数），并按座位装配代理
func (Factory) New(cfg game.Params, humanSeats map[int]bool) (game.Game, error) {
	maxRounds := 3
	if n, ok := cfg.Int("max_rounds"); ok {
		if n < 1 {
			return nil, errors.New(errors.ErrInvalidParam, "max_rounds必须为正整数")
		}
		maxRounds = n
	}

	g := New(maxRounds)
	for _, p := range g.players {
		if humanSeats[p.Seat] {
			p.AgentType = game.AgentTypeHuman
			p.Agent = game.HumanAgent{}
		} else {
			p.AgentType = game.AgentTypeAI
			p.Agent = randomAgent{}
		}
	}
	return g, nil
}
