package rps

import (
	"strings"

	"github.com/wfunc/boardgame-server/internal/errors"
	"github.com/wfunc/boardgame-server/internal/game"
)

// chooseAction 出招动作
type chooseAction struct{}

func (chooseAction) Name() string           { return "choose" }
func (chooseAction) DisplayName() string    { return "Choose Rock/Paper/Scissors" }
func (chooseAction) AllowedRoles() []string { return nil }

func (chooseAction) ParamSpec() []game.ParamField {
	return []game.ParamField{
		{Name: "choice", Type: "string", Description: "出招：rock、paper或scissors", Required: true},
	}
}

// Validate 终局、非法出招、本轮已出招时拒绝
func (chooseAction) Validate(g game.Game, p *game.Player, params game.Params) bool {
	r, ok := g.(*Game)
	if !ok {
		return false
	}
	if r.state.IsTerminal() {
		return false
	}
	choice, ok := params.String("choice")
	if !ok {
		return false
	}
	choice = strings.ToLower(choice)
	if beats[choice] == "" {
		return false
	}
	if p.Seat < 0 || p.Seat > 1 {
		return false
	}
	return r.state.Pending[p.Seat] == ""
}

// Apply 记录出招，双出后结算本轮
func (a chooseAction) Apply(g game.Game, p *game.Player, params game.Params) (game.Result, error) {
	r, ok := g.(*Game)
	if !ok {
		return nil, errors.New(errors.ErrPluginFault, "游戏类型不匹配")
	}
	choice, _ := params.String("choice")
	choice = strings.ToLower(choice)

	r.state.Pending[p.Seat] = choice
	result := game.Result{"choice": choice}

	if r.state.Pending[0] != "" && r.state.Pending[1] != "" {
		resolveRound(r.state)
		result["resolved"] = true
		r.history.AddAction(a, p, params, result)
		if !r.state.IsTerminal() {
			r.history.StartNewRound()
		}
		return result, nil
	}

	r.history.AddAction(a, p, params, result)
	return result, nil
}

// resolveRound 结算一轮：判胜负、计分、进入下一轮
func resolveRound(s *State) {
	c1, c2 := s.Pending[0], s.Pending[1]
	if c1 != c2 {
		if beats[c1] == c2 {
			s.Scores[0]++
		} else {
			s.Scores[1]++
		}
	}
	s.Last[0], s.Last[1] = c1, c2
	s.CurrentRound++
	s.Pending[0], s.Pending[1] = "", ""
}

func (chooseAction) HistoryRecord(p *game.Player, params game.Params, result game.Result) game.Record {
	choice, _ := params.String("choice")
	return game.Record{
		"type":   "choose",
		"player": p.Name,
		"choice": strings.ToLower(choice),
	}
}
