package tictactoe

import (
	"github.com/wfunc/boardgame-server/internal/errors"
	"github.com/wfunc/boardgame-server/internal/game"
)

// moveAction 落子动作
type moveAction struct{}

func (moveAction) Name() string           { return "move" }
func (moveAction) DisplayName() string    { return "Place Mark" }
func (moveAction) AllowedRoles() []string { return nil }

func (moveAction) ParamSpec() []game.ParamField {
	return []game.ParamField{
		{Name: "position", Type: "int", Description: "落子位置（1-9）", Required: true},
	}
}

// Validate 终局、非当前座位、越界、位置已占时拒绝
func (moveAction) Validate(g game.Game, p *game.Player, params game.Params) bool {
	t, ok := g.(*Game)
	if !ok {
		return false
	}
	if t.state.Over {
		return false
	}
	if cp := t.CurrentPlayer(); cp == nil || cp.Seat != p.Seat {
		return false
	}
	pos, ok := params.Int("position")
	if !ok || pos < 1 || pos > 9 {
		return false
	}
	return t.board.IsEmpty(pos)
}

// Apply 落子、记历史、判胜负、换手
func (a moveAction) Apply(g game.Game, p *game.Player, params game.Params) (game.Result, error) {
	t, ok := g.(*Game)
	if !ok {
		return nil, errors.New(errors.ErrPluginFault, "游戏类型不匹配")
	}
	pos, _ := params.Int("position")

	mark := t.state.CurrentMark
	t.board.Place(pos, mark)

	result := game.Result{"mark": mark, "position": pos}
	t.history.AddAction(a, p, params, result)

	if winner := t.board.CheckWinner(); winner != "" {
		t.state.Over = true
		t.state.WinnerName = winner
		return result, nil
	}
	if t.board.IsFull() {
		t.state.Over = true
		t.state.WinnerName = "draw"
		return result, nil
	}

	if mark == "X" {
		t.state.CurrentMark = "O"
	} else {
		t.state.CurrentMark = "X"
	}
	return result, nil
}

func (moveAction) HistoryRecord(p *game.Player, params game.Params, result game.Result) game.Record {
	pos, _ := params.Int("position")
	return game.Record{
		"type":     "move",
		"player":   result["mark"],
		"position": pos,
	}
}
