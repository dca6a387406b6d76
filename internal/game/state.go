package game

// State 游戏状态契约：回答"结束了吗、谁赢了"
type State interface {
	// IsTerminal 游戏是否已达终局
	IsTerminal() bool
	// Winner 终局时的胜者描述（队伍名/玩家名/"draw"），未终局返回空串
	Winner() string
}
