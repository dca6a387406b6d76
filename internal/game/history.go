package game

import (
	"fmt"
	"sort"
	"strings"
)

// Round 一轮历史：该轮内发生的动作记录
type Round struct {
	// Number 轮次编号（1起）
	Number int `json:"number"`
	// Records 本轮的动作记录
	Records []Record `json:"records"`
}

// History 游戏历史：按轮组织的动作记录
//
// 游戏负责在合适的时机调用 StartNewRound 划分轮次，
// 动作在 Apply 内调用 AddAction 追加记录；引擎只读。
type History struct {
	rounds []*Round
}

// NewHistory 创建空历史
func NewHistory() *History {
	return &History{}
}

// StartNewRound 开启新一轮
func (h *History) StartNewRound() *Round {
	r := &Round{Number: len(h.rounds) + 1}
	h.rounds = append(h.rounds, r)
	return r
}

// AddAction 把一次已应用的动作追加到当前轮（无轮次时自动开启第一轮）
func (h *History) AddAction(a Action, p *Player, params Params, result Result) {
	if len(h.rounds) == 0 {
		h.StartNewRound()
	}
	rec := a.HistoryRecord(p, params, result)
	cur := h.rounds[len(h.rounds)-1]
	cur.Records = append(cur.Records, rec)
}

// Rounds 所有轮次
func (h *History) Rounds() []*Round {
	return h.rounds
}

// RoundCount 轮次数
func (h *History) RoundCount() int {
	return len(h.rounds)
}

// ContextText 渲染最近若干非空轮的文本摘要（供AI代理提示使用）
//
// 只统计有动作记录的轮次（保留原始轮次编号），空轮不占用 maxRounds 配额。
// maxRounds <= 0 表示全部非空轮次。没有任何动作时返回固定提示语。
func (h *History) ContextText(maxRounds int) string {
	var rounds []*Round
	for _, r := range h.rounds {
		if len(r.Records) > 0 {
			rounds = append(rounds, r)
		}
	}
	if len(rounds) == 0 {
		return "No previous rounds have been played yet."
	}
	if maxRounds > 0 && len(rounds) > maxRounds {
		rounds = rounds[len(rounds)-maxRounds:]
	}

	var b strings.Builder
	b.WriteString("Game history so far:")
	for _, r := range rounds {
		b.WriteString(fmt.Sprintf("\n\nRound %d:", r.Number))
		for _, rec := range r.Records {
			b.WriteString("\n- " + formatRecord(rec))
		}
	}
	return b.String()
}

// formatRecord 把记录渲染为单行文本（player与action字段优先，其余按键排序）
func formatRecord(rec Record) string {
	var parts []string
	if v, ok := rec["player"]; ok {
		parts = append(parts, fmt.Sprintf("%v", v))
	}
	if v, ok := rec["action"]; ok {
		parts = append(parts, fmt.Sprintf("%v", v))
	}

	keys := make([]string, 0, len(rec))
	for k := range rec {
		if k == "player" || k == "action" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, rec[k]))
	}
	return strings.Join(parts, " ")
}
