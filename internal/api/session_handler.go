package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/wfunc/boardgame-server/internal/errors"
	"github.com/wfunc/boardgame-server/internal/game"
	"github.com/wfunc/boardgame-server/internal/session"
)

// SessionHandler 会话API处理器
type SessionHandler struct {
	manager  *session.Manager
	registry *game.Registry
	log      *zap.Logger
}

// NewSessionHandler 创建会话处理器
func NewSessionHandler(manager *session.Manager, registry *game.Registry, log *zap.Logger) *SessionHandler {
	return &SessionHandler{
		manager:  manager,
		registry: registry,
		log:      log,
	}
}

// CreateSessionRequest 创建会话请求
type CreateSessionRequest struct {
	// Config 游戏配置（按游戏定义）
	Config game.Params `json:"config"`
	// HumanSeats 人类座位列表（缺省时座位0为人类）
	HumanSeats *[]int `json:"human_seats"`
}

// SessionResponse 会话响应
type SessionResponse struct {
	SessionID string             `json:"session_id"`
	GameSlug  string             `json:"game_slug"`
	Status    string             `json:"status"`
	Turn      int                `json:"turn"`
	Seats     []session.SeatInfo `json:"seats"`
	State     *game.View         `json:"state"`
	History   []*game.Round      `json:"history"`
	Live      bool               `json:"live"`
}

// respondError 统一错误响应（按错误码映射HTTP状态）
func respondError(c *gin.Context, err error, log *zap.Logger) {
	appErr, ok := err.(*errors.AppError)
	if !ok {
		appErr = errors.Wrap(err, errors.ErrUnknown)
	}

	status := appErr.HTTPStatus()
	if status >= http.StatusInternalServerError {
		log.Error("请求处理失败",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
	}
	c.JSON(status, errors.NewErrorResponse(appErr, c.GetHeader("X-Request-ID")))
}

// ListGames 列出已注册的游戏
// @Summary 游戏列表
// @Success 200 {array} game.Meta
// @Router /api/v1/games [get]
func (h *SessionHandler) ListGames(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"games": h.registry.Metas()})
}

// CreateSession 创建新会话
// @Summary 创建会话
// @Success 200 {object} SessionResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /api/v1/games/{slug}/sessions [post]
func (h *SessionHandler) CreateSession(c *gin.Context) {
	slug := c.Param("slug")

	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		respondError(c, errors.Wrap(err, errors.ErrInvalidParam, "请求参数错误"), h.log)
		return
	}

	// 未显式指定时座位0默认为人类
	humanSeats := map[int]bool{0: true}
	if req.HumanSeats != nil {
		humanSeats = make(map[int]bool, len(*req.HumanSeats))
		for _, seat := range *req.HumanSeats {
			humanSeats[seat] = true
		}
	}

	s, err := h.manager.Create(c.Request.Context(), slug, req.Config, humanSeats)
	if err != nil {
		respondError(c, err, h.log)
		return
	}

	state, err := h.manager.State(c.Request.Context(), s.SessionID())
	if err != nil {
		respondError(c, err, h.log)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(state))
}

// GetSession 查询会话状态（活跃会话或最新快照）
// @Summary 查询会话
// @Success 200 {object} SessionResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /api/v1/games/{slug}/sessions/{id} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	state, err := h.loadSession(c)
	if err != nil {
		respondError(c, err, h.log)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(state))
}

// GetLegalActions 查询某座位当前可执行的动作
// @Summary 合法动作
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} errors.ErrorResponse
// @Router /api/v1/games/{slug}/sessions/{id}/actions/{seat} [get]
func (h *SessionHandler) GetLegalActions(c *gin.Context) {
	if _, err := h.loadSession(c); err != nil {
		respondError(c, err, h.log)
		return
	}

	seat, ok := parseSeat(c.Param("seat"))
	if !ok {
		respondError(c, errors.Newf(errors.ErrInvalidSeat, "座位号非法: %s", c.Param("seat")), h.log)
		return
	}

	infos, err := h.manager.LegalActions(c.Request.Context(), c.Param("id"), seat)
	if err != nil {
		respondError(c, err, h.log)
		return
	}
	c.JSON(http.StatusOK, gin.H{"actions": infos})
}

// SubmitActionRequest 提交动作请求
type SubmitActionRequest struct {
	Seat   int         `json:"seat"`
	Action string      `json:"action" binding:"required"`
	Params game.Params `json:"params"`
}

// SubmitAction 提交动作
// @Summary 提交动作
// @Success 200 {object} session.ApplyResult
// @Failure 400 {object} errors.ErrorResponse
// @Router /api/v1/games/{slug}/sessions/{id}/action [post]
func (h *SessionHandler) SubmitAction(c *gin.Context) {
	if _, err := h.loadSession(c); err != nil {
		respondError(c, err, h.log)
		return
	}

	var req SubmitActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.Wrap(err, errors.ErrInvalidParam, "请求参数错误"), h.log)
		return
	}

	result, err := h.manager.Apply(c.Request.Context(), c.Param("id"), req.Seat, req.Action, req.Params)
	if err != nil {
		respondError(c, err, h.log)
		return
	}
	c.JSON(http.StatusOK, result)
}

// loadSession 读取会话并校验路径中的游戏slug与会话匹配
func (h *SessionHandler) loadSession(c *gin.Context) (*session.StateResult, error) {
	state, err := h.manager.State(c.Request.Context(), c.Param("id"))
	if err != nil {
		return nil, err
	}
	if slug := c.Param("slug"); slug != "" && slug != state.GameSlug {
		return nil, errors.Newf(errors.ErrGameMismatch, "游戏不匹配: %s", slug)
	}
	return state, nil
}

// toSessionResponse 转换状态查询结果
func toSessionResponse(state *session.StateResult) *SessionResponse {
	return &SessionResponse{
		SessionID: state.SessionID,
		GameSlug:  state.GameSlug,
		Status:    state.Status,
		Turn:      state.Turn,
		Seats:     state.Seats,
		State:     state.State,
		History:   state.History,
		Live:      state.Live,
	}
}

// parseSeat 解析座位号
func parseSeat(s string) (int, bool) {
	seat, err := strconv.Atoi(s)
	if err != nil || seat < 0 {
		return 0, false
	}
	return seat, true
}
