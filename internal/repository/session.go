package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/wfunc/boardgame-server/internal/models"
)

// SessionRepository 游戏会话仓储接口
type SessionRepository interface {
	BaseRepository
	Create(ctx context.Context, session *models.GameSession) error
	Update(ctx context.Context, session *models.GameSession) error
	UpdateBySessionID(ctx context.Context, sessionID string, updates map[string]interface{}) error
	FindBySessionID(ctx context.Context, sessionID string) (*models.GameSession, error)
	FindByGameSlug(ctx context.Context, slug string, p *Pagination) ([]*models.GameSession, error)
	FindActive(ctx context.Context, p *Pagination) ([]*models.GameSession, error)
	EndSession(ctx context.Context, sessionID string, status string, winner string) error
}

// sessionRepo 游戏会话仓储实现
type sessionRepo struct {
	*BaseRepo
}

// NewSessionRepository 创建游戏会话仓储
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepo{
		BaseRepo: NewBaseRepo(db),
	}
}

// Create 创建游戏会话
func (r *sessionRepo) Create(ctx context.Context, session *models.GameSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

// Update 更新游戏会话
func (r *sessionRepo) Update(ctx context.Context, session *models.GameSession) error {
	return r.db.WithContext(ctx).Save(session).Error
}

// UpdateBySessionID 根据会话ID更新指定字段
func (r *sessionRepo) UpdateBySessionID(ctx context.Context, sessionID string, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&models.GameSession{}).
		Where("session_id = ?", sessionID).
		Updates(updates).Error
}

// FindBySessionID 根据会话ID查找
func (r *sessionRepo) FindBySessionID(ctx context.Context, sessionID string) (*models.GameSession, error) {
	var session models.GameSession
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// FindByGameSlug 按游戏查找（分页，最新在前）
func (r *sessionRepo) FindByGameSlug(ctx context.Context, slug string, p *Pagination) ([]*models.GameSession, error) {
	var sessions []*models.GameSession

	r.db.WithContext(ctx).
		Model(&models.GameSession{}).
		Where("game_slug = ?", slug).
		Count(&p.Total)

	err := r.db.WithContext(ctx).
		Where("game_slug = ?", slug).
		Order("created_at desc").
		Scopes(Paginate(p)).
		Find(&sessions).Error

	return sessions, err
}

// FindActive 查找未结束的会话（分页）
func (r *sessionRepo) FindActive(ctx context.Context, p *Pagination) ([]*models.GameSession, error) {
	var sessions []*models.GameSession

	active := []string{models.SessionStatusCreated, models.SessionStatusRunning}

	r.db.WithContext(ctx).
		Model(&models.GameSession{}).
		Where("status IN ?", active).
		Count(&p.Total)

	err := r.db.WithContext(ctx).
		Where("status IN ?", active).
		Order("created_at desc").
		Scopes(Paginate(p)).
		Find(&sessions).Error

	return sessions, err
}

// EndSession 结束会话（记录终态与胜者）
func (r *sessionRepo) EndSession(ctx context.Context, sessionID string, status string, winner string) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&models.GameSession{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]interface{}{
			"status":   status,
			"winner":   winner,
			"ended_at": &now,
		}).Error
}
