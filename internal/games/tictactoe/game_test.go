package tictactoe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/boardgame-server/internal/game"
)

// play 依次落子（测试辅助）
func play(t *testing.T, g *Game, positions ...int) {
	t.Helper()
	for _, pos := range positions {
		p := g.CurrentPlayer()
		require.NotNil(t, p)
		a, ok := game.FindAction(g, "move")
		require.True(t, ok)
		params := game.Params{"position": pos}
		require.True(t, a.Validate(g, p, params), "position %d should be valid", pos)
		_, err := a.Apply(g, p, params)
		require.NoError(t, err)
	}
}

func TestNewGame(t *testing.T) {
	g := New()
	assert.Equal(t, "tictactoe", g.Name())
	require.Len(t, g.Players(), 2)
	assert.Equal(t, "X", g.Players()[0].Team)
	assert.Equal(t, "O", g.Players()[1].Team)
	assert.False(t, g.State().IsTerminal())

	// X先行
	cur := g.CurrentPlayer()
	require.NotNil(t, cur)
	assert.Equal(t, 0, cur.Seat)
}

func TestMoveValidation(t *testing.T) {
	g := New()
	p := g.CurrentPlayer()
	a, _ := game.FindAction(g, "move")

	assert.True(t, a.Validate(g, p, game.Params{"position": 5}))
	assert.False(t, a.Validate(g, p, game.Params{"position": 0}))
	assert.False(t, a.Validate(g, p, game.Params{"position": 10}))
	assert.False(t, a.Validate(g, p, game.Params{}))

	// 非当前座位不能落子
	assert.False(t, a.Validate(g, g.Players()[1], game.Params{"position": 5}))

	// 已占位置
	play(t, g, 5)
	p = g.CurrentPlayer()
	assert.False(t, a.Validate(g, p, game.Params{"position": 5}))
}

func TestWinByRow(t *testing.T) {
	g := New()
	// X: 1,2,3 / O: 4,5
	play(t, g, 1, 4, 2, 5, 3)

	assert.True(t, g.State().IsTerminal())
	assert.Equal(t, "X", g.State().Winner())
	assert.Nil(t, g.CurrentPlayer())

	// 终局后拒绝落子
	a, _ := game.FindAction(g, "move")
	assert.False(t, a.Validate(g, g.Players()[1], game.Params{"position": 6}))
}

func TestDraw(t *testing.T) {
	g := New()
	// X O X / X X O / O X O 的走法
	play(t, g, 1, 2, 3, 5, 4, 6, 8, 7, 9)

	assert.True(t, g.State().IsTerminal())
	assert.Equal(t, "draw", g.State().Winner())
}

func TestTurnAlternation(t *testing.T) {
	g := New()
	play(t, g, 1)
	assert.Equal(t, 1, g.CurrentPlayer().Seat)
	play(t, g, 2)
	assert.Equal(t, 0, g.CurrentPlayer().Seat)
}

func TestSerializeRestore(t *testing.T) {
	g := New()
	play(t, g, 1, 5, 9)

	view := g.Serialize(nil)
	require.NotNil(t, view)
	assert.False(t, view.Terminal)
	assert.Equal(t, 1, view.CurrentSeat)
	assert.Contains(t, view.BoardView, "X")
	assert.Contains(t, view.BoardView, "O")

	// 恢复出等价局面
	g2 := New()
	require.NoError(t, g2.Restore(view.State))
	view2 := g2.Serialize(nil)
	assert.Equal(t, view.State, view2.State)
	assert.Equal(t, view.BoardView, view2.BoardView)
}

func TestRestoreBadSnapshot(t *testing.T) {
	g := New()
	assert.Error(t, g.Restore(map[string]interface{}{}))
	assert.Error(t, g.Restore(map[string]interface{}{"grid": "short"}))
	assert.Error(t, g.Restore(map[string]interface{}{"grid": "ABCDEFGHI"}))
}

func TestFallbackDecision(t *testing.T) {
	g := New()
	d, ok := g.FallbackDecision(g.Players()[0])
	require.True(t, ok)
	assert.Equal(t, "move", d.Action)
	pos, ok := d.Params.Int("position")
	require.True(t, ok)
	assert.GreaterOrEqual(t, pos, 1)
	assert.LessOrEqual(t, pos, 9)
}

func TestFactory(t *testing.T) {
	f := Factory{}
	meta := f.Meta()
	assert.Equal(t, "tictactoe", meta.Slug)

	g, err := f.New(nil, map[int]bool{0: true})
	require.NoError(t, err)

	players := g.Players()
	assert.Equal(t, game.AgentTypeHuman, players[0].AgentType)
	assert.Equal(t, game.AgentTypeAI, players[1].AgentType)
	require.NotNil(t, players[1].Agent)
}

func TestHistoryRecords(t *testing.T) {
	g := New()
	play(t, g, 1, 2)

	text := g.History().ContextText(3)
	assert.Contains(t, text, "position=1")
	assert.Contains(t, text, "position=2")
}
