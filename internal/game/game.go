package game

// View 可序列化的游戏视图（落库快照与推送事件共用）
type View struct {
	// State 状态的键值表示（反序列化后应与原状态等价）
	State map[string]interface{} `json:"state"`
	// BoardView 观察者可见的棋盘文本
	BoardView string `json:"board_view"`
	// CurrentSeat 当前行动座位（终局为-1）
	CurrentSeat int `json:"current_seat"`
	// Terminal 是否终局
	Terminal bool `json:"terminal"`
	// Winner 终局时的胜者描述
	Winner string `json:"winner,omitempty"`
	// HistoryText 最近若干轮的历史文本投影（AI代理构建提示用）
	HistoryText string `json:"history_text,omitempty"`
}

// Game 游戏契约：组合棋盘、状态、座位、历史与动作集合
//
// 引擎只通过该接口驱动游戏，对具体游戏规则一无所知。
// 所有方法都假定调用方已持有会话级互斥锁，实现无需自行加锁。
type Game interface {
	// Name 游戏标识
	Name() string
	// Players 全部座位（按座位号有序）
	Players() []*Player
	// Board 当前棋盘
	Board() Board
	// State 当前状态
	State() State
	// History 游戏历史
	History() *History
	// Actions 该游戏的全部动作种类
	Actions() []Action
	// CurrentPlayer 当前该行动的座位（终局返回nil）
	CurrentPlayer() *Player
	// Serialize 按观察者视角导出视图（viewer为nil表示旁观者）
	Serialize(viewer *Player) *View
	// Restore 从视图的状态表恢复局面（冷会话从快照恢复时使用）
	Restore(state map[string]interface{}) error
	// FallbackDecision 代理重试耗尽后的兜底决策（如随机合法步、跳过）
	FallbackDecision(p *Player) (Decision, bool)
}

// FindPlayer 按座位号查找座位
func FindPlayer(g Game, seat int) *Player {
	for _, p := range g.Players() {
		if p.Seat == seat {
			return p
		}
	}
	return nil
}

// FindAction 按名称查找动作
func FindAction(g Game, name string) (Action, bool) {
	for _, a := range g.Actions() {
		if a.Name() == name {
			return a, true
		}
	}
	return nil, false
}

// LegalActionsFor 座位可执行的动作（按角色过滤，不做状态校验）
func LegalActionsFor(g Game, p *Player) []Action {
	var out []Action
	for _, a := range g.Actions() {
		if p.CanPerform(a) {
			out = append(out, a)
		}
	}
	return out
}
