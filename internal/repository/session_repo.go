package repository

import (
	"Chatline/internal/model"
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"
)

type SessionRepo interface {
	CreateSession(ctx context.Context, session *model.Session) error
	GetActiveByJTI(ctx context.Context, jti string, userID uint64) (*model.Session, error)
	GetSession(ctx context.Context, id, userID uint64) (*model.Session, error)
	ListActive(ctx context.Context, userID uint64) ([]*model.Session, error)
	Revoke(ctx context.Context, id uint64, at time.Time) (bool, error)
	TouchActivity(ctx context.Context, id uint64, at time.Time) error
	PurgeInactive(ctx context.Context, idleBefore time.Time, now time.Time) (int64, error)
}

type SessionRepoImpl struct {
	db *gorm.DB
}

func NewSessionRepo(db *gorm.DB) SessionRepo {
	return &SessionRepoImpl{db: db}
}

func (s *SessionRepoImpl) CreateSession(ctx context.Context, session *model.Session) error {
	return pkgerrors.Wrap(s.db.WithContext(ctx).Create(session).Error, "create session")
}

// GetActiveByJTI 按 jti 查找未撤销且未结束的会话
func (s *SessionRepoImpl) GetActiveByJTI(ctx context.Context, jti string, userID uint64) (*model.Session, error) {
	var session model.Session
	result := s.db.WithContext(ctx).
		Where("jti = ? AND user_id = ? AND revoked = ? AND ended_at IS NULL", jti, userID, false).
		First(&session)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(result.Error, "get session by jti")
	}
	return &session, nil
}

func (s *SessionRepoImpl) GetSession(ctx context.Context, id, userID uint64) (*model.Session, error) {
	var session model.Session
	result := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&session)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(result.Error, "get session")
	}
	return &session, nil
}

func (s *SessionRepoImpl) ListActive(ctx context.Context, userID uint64) ([]*model.Session, error) {
	sessions := make([]*model.Session, 0)
	result := s.db.WithContext(ctx).
		Where("user_id = ? AND revoked = ? AND ended_at IS NULL AND expires_at > ?", userID, false, time.Now()).
		Order("created_at desc").
		Find(&sessions)
	if result.Error != nil {
		return nil, pkgerrors.Wrap(result.Error, "list sessions")
	}
	return sessions, nil
}

// Revoke 撤销会话，已结束的会话返回 false
func (s *SessionRepoImpl) Revoke(ctx context.Context, id uint64, at time.Time) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&model.Session{}).
		Where("id = ? AND revoked = ? AND ended_at IS NULL", id, false).
		Updates(map[string]interface{}{
			"revoked":  true,
			"ended_at": at,
		})
	if result.Error != nil {
		return false, pkgerrors.Wrap(result.Error, "revoke session")
	}
	return result.RowsAffected > 0, nil
}

func (s *SessionRepoImpl) TouchActivity(ctx context.Context, id uint64, at time.Time) error {
	err := s.db.WithContext(ctx).
		Model(&model.Session{}).
		Where("id = ?", id).
		Update("last_activity", at).Error
	return pkgerrors.Wrap(err, "touch session")
}

// PurgeInactive 结束已过期或长时间无活动的会话
func (s *SessionRepoImpl) PurgeInactive(ctx context.Context, idleBefore time.Time, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&model.Session{}).
		Where("ended_at IS NULL").
		Where("expires_at <= ? OR COALESCE(last_activity, created_at) < ?", now, idleBefore).
		Update("ended_at", now)
	if result.Error != nil {
		return 0, pkgerrors.Wrap(result.Error, "purge sessions")
	}
	return result.RowsAffected, nil
}
