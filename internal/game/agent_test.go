package game

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/boardgame-server/internal/errors"
)

func TestScriptedAgentSequence(t *testing.T) {
	agent := NewScriptedAgent(
		Decision{Action: "take", Params: Params{"count": 2}},
		Decision{Action: "take", Params: Params{"count": 1}},
	)
	p := NewPlayer(0, "")

	d, err := agent.Decide(context.Background(), nil, p)
	require.NoError(t, err)
	assert.Equal(t, "take", d.Action)
	n, _ := d.Params.Int("count")
	assert.Equal(t, 2, n)

	d, err = agent.Decide(context.Background(), nil, p)
	require.NoError(t, err)
	n, _ = d.Params.Int("count")
	assert.Equal(t, 1, n)

	// 序列耗尽
	_, err = agent.Decide(context.Background(), nil, p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrAgentDecision))
}

func TestScriptedAgentLoop(t *testing.T) {
	agent := NewScriptedAgent(Decision{Action: "pass"})
	agent.Loop = true

	for i := 0; i < 3; i++ {
		d, err := agent.Decide(context.Background(), nil, nil)
		require.NoError(t, err)
		assert.Equal(t, "pass", d.Action)
	}
}

func TestScriptedAgentContextCanceled(t *testing.T) {
	agent := NewScriptedAgent(Decision{Action: "pass"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := agent.Decide(ctx, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrAgentTimeout))
}

func TestHumanAgentNeverDecides(t *testing.T) {
	_, err := HumanAgent{}.Decide(context.Background(), nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrAgentDecision))
}

func TestParamsAccessors(t *testing.T) {
	p := Params{
		"int":    3,
		"float":  float64(7), // JSON解码出的数字
		"str":    "x",
		"flag":   true,
	}

	n, ok := p.Int("int")
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	n, ok = p.Int("float")
	assert.True(t, ok)
	assert.Equal(t, 7, n)

	_, ok = p.Int("str")
	assert.False(t, ok)

	s, ok := p.String("str")
	assert.True(t, ok)
	assert.Equal(t, "x", s)

	b, ok := p.Bool("flag")
	assert.True(t, ok)
	assert.True(t, b)

	_, ok = p.Int("missing")
	assert.False(t, ok)
}
