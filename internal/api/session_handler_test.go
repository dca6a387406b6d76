package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wfunc/boardgame-server/internal/config"
	"github.com/wfunc/boardgame-server/internal/game"
	"github.com/wfunc/boardgame-server/internal/games/tictactoe"
	"github.com/wfunc/boardgame-server/internal/repository"
	"github.com/wfunc/boardgame-server/internal/session"
	ws "github.com/wfunc/boardgame-server/internal/websocket"
)

func setupTestRouter(t *testing.T) (*Router, *session.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := game.NewRegistry()
	require.NoError(t, registry.Register(tictactoe.Factory{}))

	db := repository.SetupTestDB()
	cfg := &config.GameConfig{
		AgentTimeout: 2 * time.Second,
		AgentRetries: 1,
		MaxAutoSteps: 64,
	}
	manager := session.NewManager(cfg, registry, db)
	hub := ws.NewHub(zap.NewNop())

	return NewRouter(db, manager, registry, hub, zap.NewNop()), manager
}

func doRequest(t *testing.T, r *Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.GetEngine().ServeHTTP(w, req)
	return w
}

// createSession 创建双人类会话，返回会话ID
func createSession(t *testing.T, r *Router) string {
	t.Helper()
	w := doRequest(t, r, http.MethodPost, "/api/v1/games/tictactoe/sessions", map[string]interface{}{
		"human_seats": []int{0, 1},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.SessionID)
	return resp.SessionID
}

func TestHealthCheck(t *testing.T) {
	r, _ := setupTestRouter(t)
	w := doRequest(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestListGames(t *testing.T) {
	r, _ := setupTestRouter(t)
	w := doRequest(t, r, http.MethodGet, "/api/v1/games", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Games []game.Meta `json:"games"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Games, 1)
	assert.Equal(t, "tictactoe", resp.Games[0].Slug)
}

func TestCreateSessionDefaults(t *testing.T) {
	r, m := setupTestRouter(t)

	// 空请求体：座位0默认为人类
	w := doRequest(t, r, http.MethodPost, "/api/v1/games/tictactoe/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "tictactoe", resp.GameSlug)
	assert.True(t, resp.Live)

	// 座位0人类、座位1 AI
	_, ok := m.Get(resp.SessionID)
	require.True(t, ok)
	infos, err := m.LegalActions(context.Background(), resp.SessionID, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, infos)
}

func TestCreateSessionUnknownGame(t *testing.T) {
	r, _ := setupTestRouter(t)
	w := doRequest(t, r, http.MethodPost, "/api/v1/games/chess/sessions", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetSession(t *testing.T) {
	r, _ := setupTestRouter(t)
	id := createSession(t, r)

	w := doRequest(t, r, http.MethodGet, "/api/v1/games/tictactoe/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, id, resp.SessionID)
	assert.Equal(t, 0, resp.Turn)
	assert.Contains(t, resp.State.BoardView, "Positions:")
}

func TestGetSessionGameMismatch(t *testing.T) {
	r, _ := setupTestRouter(t)
	id := createSession(t, r)

	// 路径slug与会话所属游戏不一致
	w := doRequest(t, r, http.MethodGet, "/api/v1/games/nim/sessions/"+id, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "2004")
}

func TestGetSessionNotFound(t *testing.T) {
	r, _ := setupTestRouter(t)
	w := doRequest(t, r, http.MethodGet, "/api/v1/games/tictactoe/sessions/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubmitAction(t *testing.T) {
	r, _ := setupTestRouter(t)
	id := createSession(t, r)

	w := doRequest(t, r, http.MethodPost, fmt.Sprintf("/api/v1/games/tictactoe/sessions/%s/action", id), map[string]interface{}{
		"seat":   0,
		"action": "move",
		"params": map[string]interface{}{"position": 5},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp session.ApplyResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Turn)
	assert.False(t, resp.Terminal)
	assert.Contains(t, resp.State.BoardView, "X")
}

func TestSubmitActionRejected(t *testing.T) {
	r, _ := setupTestRouter(t)
	id := createSession(t, r)

	path := fmt.Sprintf("/api/v1/games/tictactoe/sessions/%s/action", id)
	w := doRequest(t, r, http.MethodPost, path, map[string]interface{}{
		"seat": 0, "action": "move", "params": map[string]interface{}{"position": 5},
	})
	require.Equal(t, http.StatusOK, w.Code)

	// 同一位置重复落子被拒绝
	w = doRequest(t, r, http.MethodPost, path, map[string]interface{}{
		"seat": 1, "action": "move", "params": map[string]interface{}{"position": 5},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "3001")
}

func TestSubmitActionInvalidSeat(t *testing.T) {
	r, _ := setupTestRouter(t)
	id := createSession(t, r)

	w := doRequest(t, r, http.MethodPost, fmt.Sprintf("/api/v1/games/tictactoe/sessions/%s/action", id), map[string]interface{}{
		"seat": 9, "action": "move", "params": map[string]interface{}{"position": 1},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "2003")
}

func TestSubmitActionMissingAction(t *testing.T) {
	r, _ := setupTestRouter(t)
	id := createSession(t, r)

	w := doRequest(t, r, http.MethodPost, fmt.Sprintf("/api/v1/games/tictactoe/sessions/%s/action", id), map[string]interface{}{
		"seat": 0,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetLegalActions(t *testing.T) {
	r, _ := setupTestRouter(t)
	id := createSession(t, r)

	w := doRequest(t, r, http.MethodGet, fmt.Sprintf("/api/v1/games/tictactoe/sessions/%s/actions/0", id), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Actions []game.ActionInfo `json:"actions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Actions, 1)
	assert.Equal(t, "move", resp.Actions[0].Name)
	require.Len(t, resp.Actions[0].Params, 1)
	assert.Equal(t, "position", resp.Actions[0].Params[0].Name)
}

func TestGetLegalActionsBadSeat(t *testing.T) {
	r, _ := setupTestRouter(t)
	id := createSession(t, r)

	w := doRequest(t, r, http.MethodGet, fmt.Sprintf("/api/v1/games/tictactoe/sessions/%s/actions/abc", id), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, r, http.MethodGet, fmt.Sprintf("/api/v1/games/tictactoe/sessions/%s/actions/7", id), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRedocPage(t *testing.T) {
	r, _ := setupTestRouter(t)
	w := doRequest(t, r, http.MethodGet, "/docs/redoc", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Board Game API")
}

func TestNoRoute(t *testing.T) {
	r, _ := setupTestRouter(t)
	w := doRequest(t, r, http.MethodGet, "/api/v1/nothing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
