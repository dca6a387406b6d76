package nim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/boardgame-server/internal/game"
)

// remove 执行一次取物（测试辅助）
func remove(t *testing.T, g *Game, pile, count int) {
	t.Helper()
	p := g.CurrentPlayer()
	require.NotNil(t, p)
	a, ok := game.FindAction(g, "remove")
	require.True(t, ok)
	params := game.Params{"pile": pile, "count": count}
	require.True(t, a.Validate(g, p, params))
	_, err := a.Apply(g, p, params)
	require.NoError(t, err)
}

func TestNewGameDefaults(t *testing.T) {
	g := New(nil)
	assert.Equal(t, []int{3, 5, 7}, g.board.Piles())
	require.Len(t, g.Players(), 2)
	assert.Equal(t, 0, g.CurrentPlayer().Seat)
}

func TestRemoveValidation(t *testing.T) {
	g := New([]int{2, 3})
	p := g.CurrentPlayer()
	a, _ := game.FindAction(g, "remove")

	assert.True(t, a.Validate(g, p, game.Params{"pile": 1, "count": 2}))
	assert.False(t, a.Validate(g, p, game.Params{"pile": 0, "count": 1}))
	assert.False(t, a.Validate(g, p, game.Params{"pile": 3, "count": 1}))
	assert.False(t, a.Validate(g, p, game.Params{"pile": 1, "count": 0}))
	assert.False(t, a.Validate(g, p, game.Params{"pile": 1, "count": 3}))
	assert.False(t, a.Validate(g, p, game.Params{"pile": 1}))

	// 非当前座位不能取物
	assert.False(t, a.Validate(g, g.Players()[1], game.Params{"pile": 1, "count": 1}))
}

func TestLastObjectWins(t *testing.T) {
	g := New([]int{1, 2})
	remove(t, g, 2, 2) // Player 1
	remove(t, g, 1, 1) // Player 2 取走最后一个

	assert.True(t, g.State().IsTerminal())
	assert.Equal(t, "Player 2", g.State().Winner())
	assert.Nil(t, g.CurrentPlayer())
}

func TestTurnAlternation(t *testing.T) {
	g := New([]int{3, 3})
	remove(t, g, 1, 1)
	assert.Equal(t, 1, g.CurrentPlayer().Seat)
	remove(t, g, 2, 1)
	assert.Equal(t, 0, g.CurrentPlayer().Seat)
}

func TestSerializeRestore(t *testing.T) {
	g := New([]int{3, 5, 7})
	remove(t, g, 2, 4)

	view := g.Serialize(nil)
	assert.Equal(t, 1, view.CurrentSeat)
	assert.Contains(t, view.BoardView, "Pile 2: * (1)")

	g2 := New(nil)
	require.NoError(t, g2.Restore(view.State))
	assert.Equal(t, []int{3, 1, 7}, g2.board.Piles())
	assert.Equal(t, view.BoardView, g2.Serialize(nil).BoardView)
}

func TestRestoreBadSnapshot(t *testing.T) {
	g := New(nil)
	assert.Error(t, g.Restore(map[string]interface{}{}))
	assert.Error(t, g.Restore(map[string]interface{}{"piles": []interface{}{"x"}}))
	assert.Error(t, g.Restore(map[string]interface{}{"piles": []interface{}{float64(-1)}}))
}

func TestOptimalAgentWinningMove(t *testing.T) {
	// Nim和非0，AI应走出Nim和为0的局面
	g := New([]int{3, 5, 7})
	d, err := optimalAgent{}.Decide(context.Background(), g, g.CurrentPlayer())
	require.NoError(t, err)
	assert.Equal(t, "remove", d.Action)

	pile, _ := d.Params.Int("pile")
	count, _ := d.Params.Int("count")
	piles := g.board.Piles()
	piles[pile-1] -= count

	xor := 0
	for _, v := range piles {
		xor ^= v
	}
	assert.Equal(t, 0, xor)
}

func TestFallbackDecision(t *testing.T) {
	g := New([]int{0, 2})
	d, ok := g.FallbackDecision(g.CurrentPlayer())
	require.True(t, ok)
	pile, _ := d.Params.Int("pile")
	count, _ := d.Params.Int("count")
	assert.Equal(t, 2, pile)
	assert.Equal(t, 1, count)
}

func TestFactoryConfigPiles(t *testing.T) {
	f := Factory{}
	g, err := f.New(game.Params{"piles": []interface{}{float64(2), float64(4)}}, nil)
	require.NoError(t, err)
	ng := g.(*Game)
	assert.Equal(t, []int{2, 4}, ng.board.Piles())

	_, err = f.New(game.Params{"piles": []interface{}{"bad"}}, nil)
	assert.Error(t, err)

	_, err = f.New(game.Params{"piles": []interface{}{}}, nil)
	assert.Error(t, err)
}
