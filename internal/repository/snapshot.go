package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/wfunc/boardgame-server/internal/models"
)

// SnapshotRepository 状态快照仓储接口
type SnapshotRepository interface {
	BaseRepository
	Create(ctx context.Context, snapshot *models.Snapshot) error
	FindLatestBySessionID(ctx context.Context, sessionID string) (*models.Snapshot, error)
	FindBySessionIDAndTurn(ctx context.Context, sessionID string, turn int) (*models.Snapshot, error)
	DeleteBySessionID(ctx context.Context, sessionID string) error
}

// snapshotRepo 状态快照仓储实现
type snapshotRepo struct {
	*BaseRepo
}

// NewSnapshotRepository 创建状态快照仓储
func NewSnapshotRepository(db *gorm.DB) SnapshotRepository {
	return &snapshotRepo{
		BaseRepo: NewBaseRepo(db),
	}
}

// Create 写入一条快照
func (r *snapshotRepo) Create(ctx context.Context, snapshot *models.Snapshot) error {
	return r.db.WithContext(ctx).Create(snapshot).Error
}

// FindLatestBySessionID 查找会话的最新快照（冷会话恢复用）
func (r *snapshotRepo) FindLatestBySessionID(ctx context.Context, sessionID string) (*models.Snapshot, error) {
	var snapshot models.Snapshot
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("turn desc").
		First(&snapshot).Error
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// FindBySessionIDAndTurn 查找指定回合的快照
func (r *snapshotRepo) FindBySessionIDAndTurn(ctx context.Context, sessionID string, turn int) (*models.Snapshot, error) {
	var snapshot models.Snapshot
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND turn = ?", sessionID, turn).
		First(&snapshot).Error
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// DeleteBySessionID 删除会话的全部快照
func (r *snapshotRepo) DeleteBySessionID(ctx context.Context, sessionID string) error {
	return r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Delete(&models.Snapshot{}).Error
}
