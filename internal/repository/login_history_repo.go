package repository

import (
	"Chatline/internal/model"
	"context"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"
)

type LoginHistoryRepo interface {
	Create(ctx context.Context, entry *model.LoginHistory) error
	List(ctx context.Context, userID uint64, eventType string, offset, limit int) ([]*model.LoginHistory, int64, error)
}

type LoginHistoryRepoImpl struct {
	db *gorm.DB
}

func NewLoginHistoryRepo(db *gorm.DB) LoginHistoryRepo {
	return &LoginHistoryRepoImpl{db: db}
}

func (s *LoginHistoryRepoImpl) Create(ctx context.Context, entry *model.LoginHistory) error {
	return pkgerrors.Wrap(s.db.WithContext(ctx).Create(entry).Error, "create login history")
}

// List 按时间倒序分页，eventType 为空时不过滤
func (s *LoginHistoryRepoImpl) List(ctx context.Context, userID uint64, eventType string, offset, limit int) ([]*model.LoginHistory, int64, error) {
	query := s.db.WithContext(ctx).Model(&model.LoginHistory{}).Where("user_id = ?", userID)
	if eventType != "" {
		query = query.Where("event_type = ?", eventType)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, pkgerrors.Wrap(err, "count login history")
	}
	items := make([]*model.LoginHistory, 0)
	err := query.Order("created_at desc").Order("id desc").
		Offset(offset).
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, 0, pkgerrors.Wrap(err, "list login history")
	}
	return items, total, nil
}
