package nim

import (
	"github.com/wfunc/boardgame-server/internal/errors"
	"github.com/wfunc/boardgame-server/internal/game"
)

// removeAction 取物动作
type removeAction struct{}

func (removeAction) Name() string           { return "remove" }
func (removeAction) DisplayName() string    { return "Remove Objects" }
func (removeAction) AllowedRoles() []string { return nil }

func (removeAction) ParamSpec() []game.ParamField {
	return []game.ParamField{
		{Name: "pile", Type: "int", Description: "取物的堆编号（1起）", Required: true},
		{Name: "count", Type: "int", Description: "取走的物件数量（至少1个）", Required: true},
	}
}

// Validate 终局、非当前座位、堆编号越界、数量越界时拒绝
func (removeAction) Validate(g game.Game, p *game.Player, params game.Params) bool {
	n, ok := g.(*Game)
	if !ok {
		return false
	}
	if n.state.Over {
		return false
	}
	if cp := n.CurrentPlayer(); cp == nil || cp.Seat != p.Seat {
		return false
	}
	pile, ok := params.Int("pile")
	if !ok || pile < 1 || pile > n.board.PileCount() {
		return false
	}
	count, ok := params.Int("count")
	if !ok || count < 1 || count > n.board.PileSize(pile-1) {
		return false
	}
	return true
}

// Apply 取物、记历史、判终局、换手
func (a removeAction) Apply(g game.Game, p *game.Player, params game.Params) (game.Result, error) {
	n, ok := g.(*Game)
	if !ok {
		return nil, errors.New(errors.ErrPluginFault, "游戏类型不匹配")
	}
	pile, _ := params.Int("pile")
	count, _ := params.Int("count")

	n.board.Remove(pile-1, count)

	result := game.Result{"pile": pile, "count": count, "remaining": n.board.PileSize(pile - 1)}
	n.history.AddAction(a, p, params, result)

	// 取走最后一个物件者获胜
	if n.board.IsEmpty() {
		n.state.Over = true
		n.state.WinnerName = p.Name
		return result, nil
	}

	n.state.CurrentSeat = (n.state.CurrentSeat + 1) % len(n.players)
	return result, nil
}

func (removeAction) HistoryRecord(p *game.Player, params game.Params, result game.Result) game.Record {
	pile, _ := params.Int("pile")
	count, _ := params.Int("count")
	return game.Record{
		"type":   "remove",
		"player": p.Name,
		"pile":   pile,
		"count":  count,
	}
}
