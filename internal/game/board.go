package game

// ViewContext 渲染棋盘视图时的上下文
//
// Player 为 nil 表示旁观者视角（只展示公开信息）。
type ViewContext struct {
	// Player 观察者（决定隐藏信息的可见性）
	Player *Player
	// State 当前游戏状态（部分棋盘的渲染依赖状态，如回合数）
	State State
}

// Board 棋盘契约：持有当前局面，按观察者渲染视图
//
// 隐藏信息游戏必须在 ViewFor 里根据观察者过滤：
// 同一局面对不同座位可以渲染出不同的文本。
type Board interface {
	// ViewFor 渲染观察者可见的棋盘文本
	ViewFor(ctx ViewContext) string
}
