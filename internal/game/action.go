package game

// Params 动作参数（JSON解码后的键值对）
type Params map[string]interface{}

// Int 读取整数参数（兼容JSON数字解码为float64的情况）
func (p Params) Int(key string) (int, bool) {
	v, ok := p[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// String 读取字符串参数
func (p Params) String(key string) (string, bool) {
	v, ok := p[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Bool 读取布尔参数
func (p Params) Bool(key string) (bool, bool) {
	v, ok := p[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// Result 动作执行结果（游戏自定义的结果负载，如"猜测是否正确"）
type Result map[string]interface{}

// Record 历史记录条目（小而结构化的事实，不是完整状态）
type Record map[string]interface{}

// ParamField 动作参数的结构化说明（用于列出合法动作和构造AI提示）
type ParamField struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // int, string, bool
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Action 动作契约：每种玩家可执行的操作实现一次
//
// Validate 必须是纯函数（可以被推测性调用，无副作用）。
// Apply 只会在同一个临界区内 Validate 返回 true 之后被调用；
// Apply 返回错误意味着插件违约（校验通过后Apply应当是全函数），
// 会话将被标记为废弃。
// Validate 返回 false 不是错误，是正常的"被拒绝"结果。
type Action interface {
	// Name 动作的唯一标识
	Name() string
	// DisplayName 展示给用户的名称
	DisplayName() string
	// AllowedRoles 可执行该动作的角色列表（空表示不限角色）
	AllowedRoles() []string
	// ParamSpec 参数结构说明
	ParamSpec() []ParamField
	// Validate 校验动作在当前状态下是否合法（纯函数）
	Validate(g Game, p *Player, params Params) bool
	// Apply 执行动作，修改棋盘/状态/历史，返回游戏自定义结果
	Apply(g Game, p *Player, params Params) (Result, error)
	// HistoryRecord 把本次动作转换为历史记录条目
	HistoryRecord(p *Player, params Params, result Result) Record
}

// ActionInfo 动作的元信息（对外展示用）
type ActionInfo struct {
	Name        string       `json:"name"`
	DisplayName string       `json:"display_name"`
	Params      []ParamField `json:"params"`
}

// Describe 提取动作元信息
func Describe(a Action) ActionInfo {
	return ActionInfo{
		Name:        a.Name(),
		DisplayName: a.DisplayName(),
		Params:      a.ParamSpec(),
	}
}
