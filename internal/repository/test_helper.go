package repository

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wfunc/boardgame-server/internal/models"
)

// SetupTestDB 为测试套件设置内存数据库
func SetupTestDB() *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic(err)
	}

	if err := db.AutoMigrate(
		&models.GameSession{},
		&models.ActionLog{},
		&models.Snapshot{},
	); err != nil {
		panic(err)
	}

	return db
}

// CreateTestSession 创建测试会话
func CreateTestSession(t *testing.T, db *gorm.DB, gameSlug string) *models.GameSession {
	t.Helper()

	now := time.Now()
	session := &models.GameSession{
		SessionID: uuid.New().String(),
		GameSlug:  gameSlug,
		Status:    models.SessionStatusRunning,
		Config:    models.JSONMap{},
		Seats: models.JSONArray{
			map[string]interface{}{"seat": 0, "name": "Player 1", "agent_type": "human"},
			map[string]interface{}{"seat": 1, "name": "Player 2", "agent_type": "ai"},
		},
		StartedAt: &now,
	}
	require.NoError(t, db.Create(session).Error)
	return session
}

// CreateTestActionLog 创建测试动作日志
func CreateTestActionLog(t *testing.T, db *gorm.DB, sessionID string, turn, seat int) *models.ActionLog {
	t.Helper()

	log := &models.ActionLog{
		SessionID: sessionID,
		Turn:      turn,
		Seat:      seat,
		Actor:     "human",
		Action:    "move",
		Params:    models.JSONMap{"position": turn},
		Result:    models.JSONMap{},
	}
	require.NoError(t, db.Create(log).Error)
	return log
}

// CreateTestSnapshot 创建测试快照
func CreateTestSnapshot(t *testing.T, db *gorm.DB, sessionID string, turn int) *models.Snapshot {
	t.Helper()

	snapshot := &models.Snapshot{
		SessionID: sessionID,
		Turn:      turn,
		State:     models.JSONMap{"turn": turn},
		BoardView: "test board",
	}
	require.NoError(t, db.Create(snapshot).Error)
	return snapshot
}
