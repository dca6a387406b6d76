package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recAction 测试用动作：只实现历史记录相关行为
type recAction struct{ name string }

func (a *recAction) Name() string             { return a.name }
func (a *recAction) DisplayName() string      { return a.name }
func (a *recAction) AllowedRoles() []string   { return nil }
func (a *recAction) ParamSpec() []ParamField  { return nil }
func (a *recAction) Validate(Game, *Player, Params) bool { return true }
func (a *recAction) Apply(Game, *Player, Params) (Result, error) {
	return Result{}, nil
}
func (a *recAction) HistoryRecord(p *Player, params Params, result Result) Record {
	rec := Record{"player": p.Name, "action": a.name}
	for k, v := range params {
		rec[k] = v
	}
	return rec
}

func TestHistoryEmpty(t *testing.T) {
	h := NewHistory()
	assert.Equal(t, 0, h.RoundCount())
	assert.Equal(t, "No previous rounds have been played yet.", h.ContextText(3))
}

func TestHistoryAddAction(t *testing.T) {
	h := NewHistory()
	p := NewPlayer(0, "Alice")
	a := &recAction{name: "guess"}

	// 无轮次时自动开启第一轮
	h.AddAction(a, p, Params{"number": 7}, Result{})
	require.Equal(t, 1, h.RoundCount())
	require.Len(t, h.Rounds()[0].Records, 1)

	text := h.ContextText(3)
	assert.Contains(t, text, "Round 1:")
	assert.Contains(t, text, "Alice")
	assert.Contains(t, text, "guess")
	assert.Contains(t, text, "number=7")
}

func TestHistoryMaxRounds(t *testing.T) {
	h := NewHistory()
	p := NewPlayer(1, "")
	a := &recAction{name: "move"}

	for i := 0; i < 5; i++ {
		h.StartNewRound()
		h.AddAction(a, p, Params{"step": i}, Result{})
	}
	require.Equal(t, 5, h.RoundCount())

	// 只保留最近3轮
	text := h.ContextText(3)
	assert.NotContains(t, text, "Round 1:")
	assert.NotContains(t, text, "Round 2:")
	assert.Contains(t, text, "Round 3:")
	assert.Contains(t, text, "Round 5:")

	// maxRounds<=0 表示全部
	all := h.ContextText(0)
	assert.Contains(t, all, "Round 1:")
	assert.Contains(t, all, "Round 5:")
}

func TestHistoryEmptyRoundsSkipped(t *testing.T) {
	h := NewHistory()

	// 构造时开启的空轮不算历史
	h.StartNewRound()
	assert.Equal(t, "No previous rounds have been played yet.", h.ContextText(3))

	p := NewPlayer(0, "Bob")
	a := &recAction{name: "pick"}
	h.AddAction(a, p, Params{"pile": 1}, Result{})

	// 空轮保留原始编号，且不占用maxRounds配额
	h.StartNewRound()
	h.StartNewRound()
	h.AddAction(a, p, Params{"pile": 2}, Result{})

	text := h.ContextText(2)
	assert.Contains(t, text, "Round 1:")
	assert.Contains(t, text, "Round 3:")
	assert.NotContains(t, text, "Round 2:")
	assert.NotContains(t, text, "(no actions)")
}
