package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/wfunc/boardgame-server/internal/models"
)

// ActionLogRepository 动作日志仓储接口
type ActionLogRepository interface {
	BaseRepository
	Create(ctx context.Context, log *models.ActionLog) error
	FindBySessionID(ctx context.Context, sessionID string, p *Pagination) ([]*models.ActionLog, error)
	CountBySessionID(ctx context.Context, sessionID string) (int64, error)
}

// actionLogRepo 动作日志仓储实现
type actionLogRepo struct {
	*BaseRepo
}

// NewActionLogRepository 创建动作日志仓储
func NewActionLogRepository(db *gorm.DB) ActionLogRepository {
	return &actionLogRepo{
		BaseRepo: NewBaseRepo(db),
	}
}

// Create 追加一条动作日志
func (r *actionLogRepo) Create(ctx context.Context, log *models.ActionLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// FindBySessionID 按会话查找（按回合升序，p为nil时返回全部）
func (r *actionLogRepo) FindBySessionID(ctx context.Context, sessionID string, p *Pagination) ([]*models.ActionLog, error) {
	var logs []*models.ActionLog

	if p != nil {
		r.db.WithContext(ctx).
			Model(&models.ActionLog{}).
			Where("session_id = ?", sessionID).
			Count(&p.Total)
	}

	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("turn asc").
		Scopes(Paginate(p)).
		Find(&logs).Error

	return logs, err
}

// CountBySessionID 按会话统计动作数
func (r *actionLogRepo) CountBySessionID(ctx context.Context, sessionID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ActionLog{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error
	return count, err
}
