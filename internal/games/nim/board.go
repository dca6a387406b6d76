package nim

import (
	"fmt"
	"strings"

	"github.com/wfunc/boardgame-server/internal/game"
)

// Board Nim棋盘：若干堆物件
type Board struct {
	piles []int
}

// NewBoard 按堆大小创建棋盘
func NewBoard(piles []int) *Board {
	b := &Board{piles: make([]int, len(piles))}
	copy(b.piles, piles)
	return b
}

// ViewFor 渲染棋盘（Nim无隐藏信息）
func (b *Board) ViewFor(ctx game.ViewContext) string {
	var lines []string
	lines = append(lines, "=== NIM ===")
	for i, n := range b.piles {
		lines = append(lines, fmt.Sprintf("Pile %d: %s (%d)", i+1, strings.Repeat("*", n), n))
	}
	return strings.Join(lines, "\n")
}

// PileCount 堆数
func (b *Board) PileCount() int {
	return len(b.piles)
}

// PileSize 某堆剩余数量（0起下标）
func (b *Board) PileSize(index int) int {
	if index < 0 || index >= len(b.piles) {
		return 0
	}
	return b.piles[index]
}

// Remove 从某堆移除（调用方保证合法）
func (b *Board) Remove(index, count int) {
	b.piles[index] -= count
}

// IsEmpty 所有堆都空
func (b *Board) IsEmpty() bool {
	for _, n := range b.piles {
		if n > 0 {
			return false
		}
	}
	return true
}

// Piles 各堆大小的副本
func (b *Board) Piles() []int {
	out := make([]int, len(b.piles))
	copy(out, b.piles)
	return out
}
