package nim

import (
	"context"
	"math/rand"

	"github.com/wfunc/boardgame-server/internal/errors"
	"github.com/wfunc/boardgame-server/internal/game"
)

// defaultPiles 经典Nim开局
var defaultPiles = []int{3, 5, 7}

// State Nim状态
type State struct {
	// CurrentSeat 当前行动座位
	CurrentSeat int
	// Over 是否终局
	Over bool
	// WinnerName 终局时的胜者名
	WinnerName string
}

// IsTerminal 是否终局
func (s *State) IsTerminal() bool { return s.Over }

// Winner 胜者描述
func (s *State) Winner() string {
	if !s.Over {
		return ""
	}
	return s.WinnerName
}

// Game Nim：双人轮流从任一堆取走至少一个物件，取走最后一个者获胜
type Game struct {
	board   *Board
	state   *State
	history *game.History
	players []*game.Player
	actions []game.Action
}

// New 按开局堆创建新局
func New(piles []int) *Game {
	if len(piles) == 0 {
		piles = defaultPiles
	}
	g := &Game{
		board:   NewBoard(piles),
		state:   &State{},
		history: game.NewHistory(),
		actions: []game.Action{removeAction{}},
	}
	g.history.StartNewRound()
	g.players = []*game.Player{
		game.NewPlayer(0, "Player 1"),
		game.NewPlayer(1, "Player 2"),
	}
	return g
}

func (g *Game) Name() string            { return "nim" }
func (g *Game) Players() []*game.Player { return g.players }
func (g *Game) Board() game.Board       { return g.board }
func (g *Game) State() game.State       { return g.state }
func (g *Game) History() *game.History  { return g.history }
func (g *Game) Actions() []game.Action  { return g.actions }

// CurrentPlayer 当前行动座位
func (g *Game) CurrentPlayer() *game.Player {
	if g.state.Over {
		return nil
	}
	return g.players[g.state.CurrentSeat]
}

// Serialize 导出视图
func (g *Game) Serialize(viewer *game.Player) *game.View {
	cur := -1
	if !g.state.Over {
		cur = g.state.CurrentSeat
	}
	piles := g.board.Piles()
	raw := make([]interface{}, len(piles))
	for i, n := range piles {
		raw[i] = n
	}
	return &game.View{
		State: map[string]interface{}{
			"piles":        raw,
			"current_seat": g.state.CurrentSeat,
			"over":         g.state.Over,
			"winner":       g.state.WinnerName,
		},
		BoardView:   g.board.ViewFor(game.ViewContext{Player: viewer, State: g.state}),
		CurrentSeat: cur,
		Terminal:    g.state.Over,
		Winner:      g.state.Winner(),
	}
}

// Restore 从快照状态恢复局面
func (g *Game) Restore(state map[string]interface{}) error {
	raw, ok := state["piles"].([]interface{})
	if !ok {
		return errors.New(errors.ErrInvalidParam, "快照缺少piles字段")
	}
	piles := make([]int, len(raw))
	for i, v := range raw {
		switch n := v.(type) {
		case int:
			piles[i] = n
		case float64:
			piles[i] = int(n)
		default:
			return errors.New(errors.ErrInvalidParam, "快照piles元素非法")
		}
		if piles[i] < 0 {
			return errors.New(errors.ErrInvalidParam, "快照piles元素为负")
		}
	}
	g.board = NewBoard(piles)
	if v, ok := game.Params(state).Int("current_seat"); ok {
		g.state.CurrentSeat = v
	}
	if v, ok := state["over"].(bool); ok {
		g.state.Over = v
	}
	if v, ok := state["winner"].(string); ok {
		g.state.WinnerName = v
	}
	return nil
}

// FallbackDecision 兜底：从随机非空堆取1个
func (g *Game) FallbackDecision(p *game.Player) (game.Decision, bool) {
	var candidates []int
	for i := 0; i < g.board.PileCount(); i++ {
		if g.board.PileSize(i) > 0 {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return game.Decision{}, false
	}
	pile := candidates[rand.Intn(len(candidates))]
	return game.Decision{Action: "remove", Params: game.Params{"pile": pile + 1, "count": 1}}, true
}

// optimalAgent 基线AI：有必胜策略时按Nim和走，否则随机取子
type optimalAgent struct{}

func (optimalAgent) Decide(ctx context.Context, g game.Game, p *game.Player) (game.Decision, error) {
	n, ok := g.(*Game)
	if !ok {
		return game.Decision{}, errors.New(errors.ErrAgentDecision, "游戏类型不匹配")
	}

	// Nim和为0时无必胜策略，退化为随机取子
	piles := n.board.Piles()
	xor := 0
	for _, v := range piles {
		xor ^= v
	}
	if xor != 0 {
		for i, v := range piles {
			target := v ^ xor
			if target < v {
				return game.Decision{
					Action: "remove",
					Params: game.Params{"pile": i + 1, "count": v - target},
				}, nil
			}
		}
	}

	d, ok := n.FallbackDecision(p)
	if !ok {
		return game.Decision{}, errors.New(errors.ErrAgentDecision, "没有可取的物件")
	}
	return d, nil
}

// Factory Nim工厂
type Factory struct{}

// Meta 游戏元信息
func (Factory) Meta() game.Meta {
	return game.Meta{
		Slug:        "nim",
		Title:       "Nim",
		Description: "多堆取物游戏，取走最后一个物件者获胜",
		MinPlayers:  2,
		MaxPlayers:  2,
	}
}

// New 构造新局（配置可覆盖开局堆），并按座位装配代理
func (Factory) New(cfg game.Params, humanSeats map[int]bool) (game.Game, error) {
	piles := defaultPiles
	if raw, ok := cfg["piles"].([]interface{}); ok {
		piles = make([]int, 0, len(raw))
		for _, v := range raw {
			n, ok := game.Params(map[string]interface{}{"n": v}).Int("n")
			if !ok || n < 1 {
				return nil, errors.New(errors.ErrInvalidParam, "piles配置必须是正整数列表")
			}
			piles = append(piles, n)
		}
		if len(piles) == 0 {
			return nil, errors.New(errors.ErrInvalidParam, "piles配置不能为空")
		}
	}

	g := New(piles)
	for _, p := range g.players {
		if humanSeats[p.Seat] {
			p.AgentType = game.AgentTypeHuman
			p.Agent = game.HumanAgent{}
		} else {
			p.AgentType = game.AgentTypeAI
			p.Agent = optimalAgent{}
		}
	}
	return g, nil
}
