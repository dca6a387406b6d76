package game

import (
	"sort"
	"sync"

	"github.com/wfunc/boardgame-server/internal/errors"
)

// Meta 游戏元信息（注册表对外展示）
type Meta struct {
	// Slug 游戏标识（URL友好，注册表内唯一）
	Slug string `json:"slug"`
	// Title 展示名
	Title string `json:"title"`
	// Description 简介
	Description string `json:"description"`
	// MinPlayers 最少座位数
	MinPlayers int `json:"min_players"`
	// MaxPlayers 最多座位数
	MaxPlayers int `json:"max_players"`
}

// Factory 游戏工厂：按配置构造新局面并装配座位代理
type Factory interface {
	// Meta 游戏元信息
	Meta() Meta
	// New 按配置构造一局新游戏（humanSeats标记人类座位）
	New(cfg Params, humanSeats map[int]bool) (Game, error)
}

// Registry 游戏注册表
//
// 启动时注册全部游戏后即为只读，运行期不再变更。
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register 注册游戏工厂（slug重复时返回错误）
func (r *Registry) Register(f Factory) error {
	meta := f.Meta()
	if meta.Slug == "" {
		return errors.New(errors.ErrInvalidParam, "游戏slug不能为空")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.factories[meta.Slug]; ok {
		return errors.Newf(errors.ErrAlreadyExists, "游戏已注册: %s", meta.Slug)
	}
	r.factories[meta.Slug] = f
	return nil
}

// Get 按slug查找工厂
func (r *Registry) Get(slug string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.factories[slug]
	return f, ok
}

// Metas 全部已注册游戏的元信息（按slug有序）
func (r *Registry) Metas() []Meta {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Meta, 0, len(r.factories))
	for _, f := range r.factories {
		out = append(out, f.Meta())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out
}
