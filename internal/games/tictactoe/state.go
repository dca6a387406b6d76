package tictactoe

// State 井字棋状态
type State struct {
	// CurrentMark 当前行动方的标记（"X"或"O"）
	CurrentMark string
	// Over 是否终局
	Over bool
	// WinnerName 终局时的胜者（"X"/"O"/"draw"）
	WinnerName string
}

// IsTerminal 是否终局
func (s *State) IsTerminal() bool {
	return s.Over
}

// Winner 胜者描述
func (s *State) Winner() string {
	if !s.Over {
		return ""
	}
	return s.WinnerName
}
