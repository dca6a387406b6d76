package tictactoe

import (
	"fmt"
	"strings"

	"github.com/wfunc/boardgame-server/internal/game"
)

// Board 3x3井字棋棋盘
//
// 位置编号1-9：
//
//	1 | 2 | 3
//	---------
//	4 | 5 | 6
//	---------
//	7 | 8 | 9
type Board struct {
	grid [9]string // " " / "X" / "O"
}

// NewBoard 创建空棋盘
func NewBoard() *Board {
	b := &Board{}
	for i := range b.grid {
		b.grid[i] = " "
	}
	return b
}

// ViewFor 渲染棋盘（井字棋无隐藏信息，所有观察者看到相同视图）
func (b *Board) ViewFor(ctx game.ViewContext) string {
	var lines []string
	lines = append(lines, "Positions:")
	lines = append(lines, fmt.Sprintf(" %s | %s | %s ", b.grid[0], b.grid[1], b.grid[2]))
	lines = append(lines, "-----------")
	lines = append(lines, fmt.Sprintf(" %s | %s | %s ", b.grid[3], b.grid[4], b.grid[5]))
	lines = append(lines, "-----------")
	lines = append(lines, fmt.Sprintf(" %s | %s | %s ", b.grid[6], b.grid[7], b.grid[8]))
	return strings.Join(lines, "\n")
}

// IsEmpty 位置是否为空（1起）
func (b *Board) IsEmpty(position int) bool {
	if position < 1 || position > 9 {
		return false
	}
	return b.grid[position-1] == " "
}

// Place 落子（调用方保证位置合法且为空）
func (b *Board) Place(position int, mark string) {
	b.grid[position-1] = mark
}

// EmptyPositions 全部空位（1起）
func (b *Board) EmptyPositions() []int {
	var out []int
	for i, m := range b.grid {
		if m == " " {
			out = append(out, i+1)
		}
	}
	return out
}

// winLines 全部连线组合（行、列、对角线）
var winLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// CheckWinner 检查连线，返回获胜标记（无胜者返回空串）
func (b *Board) CheckWinner() string {
	for _, line := range winLines {
		m := b.grid[line[0]]
		if m != " " && m == b.grid[line[1]] && m == b.grid[line[2]] {
			return m
		}
	}
	return ""
}

// IsFull 棋盘是否已满（平局条件）
func (b *Board) IsFull() bool {
	for _, m := range b.grid {
		if m == " " {
			return false
		}
	}
	return true
}

// encode 把棋盘编码为9字符串（快照用）
func (b *Board) encode() string {
	return strings.Join(b.grid[:], "")
}

// decode 从9字符串恢复棋盘
func (b *Board) decode(s string) error {
	if len(s) != 9 {
		return fmt.Errorf("棋盘编码长度非法: %d", len(s))
	}
	for i, c := range s {
		switch c {
		case ' ', 'X', 'O':
			b.grid[i] = string(c)
		default:
			return fmt.Errorf("棋盘编码包含非法字符: %q", c)
		}
	}
	return nil
}
