package repository

import (
	"Chatline/internal/model"
	"context"
	"errors"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"
)

type UserRepo interface {
	GetUserById(ctx context.Context, id uint64) (*model.User, error)
	GetUserByIds(ctx context.Context, ids []uint64) ([]*model.User, error)
	ListUsers(ctx context.Context, excludeID uint64) ([]*model.User, error)
	SearchUsers(ctx context.Context, excludeID uint64, keyword string, limit int) ([]*model.User, error)
	UpdatePresence(ctx context.Context, id uint64, online bool, lastSeen time.Time) error
}

type UserRepoImpl struct {
	db *gorm.DB
}

func NewUserRepo(db *gorm.DB) UserRepo {
	return &UserRepoImpl{db: db}
}

func (s *UserRepoImpl) GetUserById(ctx context.Context, id uint64) (*model.User, error) {
	user := &model.User{}
	result := s.db.WithContext(ctx).
		Where("is_delete = ?", false).
		First(user, id)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrapf(result.Error, "get user %d", id)
	}

	return user, nil
}

func (s *UserRepoImpl) GetUserByIds(ctx context.Context, ids []uint64) ([]*model.User, error) {
	users := make([]*model.User, 0, len(ids))
	if len(ids) == 0 {
		return users, nil
	}
	result := s.db.WithContext(ctx).
		Where("id IN ? AND is_delete = ?", ids, false).
		Find(&users)
	if result.Error != nil {
		return nil, pkgerrors.Wrap(result.Error, "get users by ids")
	}
	return users, nil
}

// ListUsers 除自己之外的全部用户，按用户名排序
func (s *UserRepoImpl) ListUsers(ctx context.Context, excludeID uint64) ([]*model.User, error) {
	users := make([]*model.User, 0)
	result := s.db.WithContext(ctx).
		Where("id <> ? AND is_delete = ?", excludeID, false).
		Order("username asc").
		Find(&users)
	if result.Error != nil {
		return nil, pkgerrors.Wrap(result.Error, "list users")
	}
	return users, nil
}

// SearchUsers 用户名或邮箱模糊匹配
func (s *UserRepoImpl) SearchUsers(ctx context.Context, excludeID uint64, keyword string, limit int) ([]*model.User, error) {
	users := make([]*model.User, 0)
	like := "%" + escapeLike(keyword) + "%"
	result := s.db.WithContext(ctx).
		Where("id <> ? AND is_delete = ?", excludeID, false).
		Where("username LIKE ? OR email LIKE ?", like, like).
		Order("username asc").
		Limit(limit).
		Find(&users)
	if result.Error != nil {
		return nil, pkgerrors.Wrap(result.Error, "search users")
	}
	return users, nil
}

// UpdatePresence 更新在线状态与最后在线时间
func (s *UserRepoImpl) UpdatePresence(ctx context.Context, id uint64, online bool, lastSeen time.Time) error {
	err := s.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_online": online,
			"last_seen": lastSeen,
		}).Error
	return pkgerrors.Wrapf(err, "update presence of user %d", id)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
