package tictactoe

import (
	"context"
	"math/rand"

	"github.com/wfunc/boardgame-server/internal/errors"
	"github.com/wfunc/boardgame-server/internal/game"
)

// Game 井字棋：双人轮流落子，三连获胜
type Game struct {
	board   *Board
	state   *State
	history *game.History
	players []*game.Player
	actions []game.Action
}

// New 创建新局（X先行）
func New() *Game {
	g := &Game{
		board:   NewBoard(),
		state:   &State{CurrentMark: "X"},
		history: game.NewHistory(),
		actions: []game.Action{moveAction{}},
	}
	g.history.StartNewRound()

	px := game.NewPlayer(0, "X")
	px.Team = "X"
	po := game.NewPlayer(1, "O")
	po.Team = "O"
	g.players = []*game.Player{px, po}
	return g
}

func (g *Game) Name() string             { return "tictactoe" }
func (g *Game) Players() []*game.Player  { return g.players }
func (g *Game) Board() game.Board        { return g.board }
func (g *Game) State() game.State        { return g.state }
func (g *Game) History() *game.History   { return g.history }
func (g *Game) Actions() []game.Action   { return g.actions }

// CurrentPlayer 当前标记对应的座位
func (g *Game) CurrentPlayer() *game.Player {
	if g.state.Over {
		return nil
	}
	for _, p := range g.players {
		if p.Team == g.state.CurrentMark {
			return p
		}
	}
	return nil
}

// Serialize 导出视图（无隐藏信息）
func (g *Game) Serialize(viewer *game.Player) *game.View {
	cur := -1
	if p := g.CurrentPlayer(); p != nil {
		cur = p.Seat
	}
	return &game.View{
		State: map[string]interface{}{
			"grid":    g.board.encode(),
			"current": g.state.CurrentMark,
			"over":    g.state.Over,
			"winner":  g.state.WinnerName,
		},
		BoardView:   g.board.ViewFor(game.ViewContext{Player: viewer, State: g.state}),
		CurrentSeat: cur,
		Terminal:    g.state.Over,
		Winner:      g.state.Winner(),
	}
}

// Restore 从快照状态恢复局面
func (g *Game) Restore(state map[string]interface{}) error {
	grid, ok := state["grid"].(string)
	if !ok {
		return errors.New(errors.ErrInvalidParam, "快照缺少grid字段")
	}
	if err := g.board.decode(grid); err != nil {
		return errors.Wrap(err, errors.ErrInvalidParam, "快照棋盘非法")
	}
	if v, ok := state["current"].(string); ok {
		g.state.CurrentMark = v
	}
	if v, ok := state["over"].(bool); ok {
		g.state.Over = v
	}
	if v, ok := state["winner"].(string); ok {
		g.state.WinnerName = v
	}
	return nil
}

// FallbackDecision 兜底：随机选一个空位
func (g *Game) FallbackDecision(p *game.Player) (game.Decision, bool) {
	empty := g.board.EmptyPositions()
	if len(empty) == 0 {
		return game.Decision{}, false
	}
	pos := empty[rand.Intn(len(empty))]
	return game.Decision{Action: "move", Params: game.Params{"position": pos}}, true
}

// randomAgent 基线AI：随机落在空位上
type randomAgent struct{}

func (randomAgent) Decide(ctx context.Context, g game.Game, p *game.Player) (game.Decision, error) {
	t, ok := g.(*Game)
	if !ok {
		return game.Decision{}, errors.New(errors.ErrAgentDecision, "游戏类型不匹配")
	}
	d, ok := t.FallbackDecision(p)
	if !ok {
		return game.Decision{}, errors.New(errors.ErrAgentDecision, "没有可落子的位置")
	}
	return d, nil
}

// Factory 井字棋工厂
type Factory struct{}

// Meta 游戏元信息
func (Factory) Meta() game.Meta {
	return game.Meta{
		Slug:        "tictactoe",
		Title:       "Tic-Tac-Toe",
		Description: "经典3x3井字棋，先连成三子者获胜",
		MinPlayers:  2,
		MaxPlayers:  2,
	}
}

// New 构造新局并按座位装配代理
func (Factory) New(cfg game.Params, humanSeats map[int]bool) (game.Game, error) {
	g := New()
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
