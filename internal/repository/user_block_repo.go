package repository

import (
	"Chatline/internal/model"
	"context"
	"errors"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserBlockRepo interface {
	GetUserBlock(ctx context.Context, blockerID, blockedID uint64) (*model.UserBlock, error)
	GetBlockedIDs(ctx context.Context, blockerID uint64) ([]uint64, error)
	ExistsEitherWay(ctx context.Context, a, b uint64) (bool, error)
	CreateUserBlock(ctx context.Context, block *model.UserBlock) error
	DeleteUserBlock(ctx context.Context, blockerID, blockedID uint64) error
}

type UserBlockRepoImpl struct {
	db *gorm.DB
}

func NewUserBlockRepo(db *gorm.DB) UserBlockRepo {
	return &UserBlockRepoImpl{db: db}
}

// GetUserBlock 获取屏蔽关系，不存在返回 nil
func (s *UserBlockRepoImpl) GetUserBlock(ctx context.Context, blockerID, blockedID uint64) (*model.UserBlock, error) {
	var block model.UserBlock
	result := s.db.WithContext(ctx).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		First(&block)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(result.Error, "get user block")
	}
	return &block, nil
}

// GetBlockedIDs 获取用户的屏蔽列表
func (s *UserBlockRepoImpl) GetBlockedIDs(ctx context.Context, blockerID uint64) ([]uint64, error) {
	ids := make([]uint64, 0)
	result := s.db.WithContext(ctx).
		Model(&model.UserBlock{}).
		Where("blocker_id = ?", blockerID).
		Order("created_at desc").
		Pluck("blocked_id", &ids)
	if result.Error != nil {
		return nil, pkgerrors.Wrap(result.Error, "get blocked ids")
	}
	return ids, nil
}

// ExistsEitherWay 任意一方屏蔽了另一方
func (s *UserBlockRepoImpl) ExistsEitherWay(ctx context.Context, a, b uint64) (bool, error) {
	var count int64
	result := s.db.WithContext(ctx).
		Model(&model.UserBlock{}).
		Where("(blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)", a, b, b, a).
		Count(&count)
	if result.Error != nil {
		return false, pkgerrors.Wrap(result.Error, "check user block")
	}
	return count > 0, nil
}

// CreateUserBlock 创建屏蔽关系，重复创建忽略
func (s *UserBlockRepoImpl) CreateUserBlock(ctx context.Context, block *model.UserBlock) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			DoNothing: true,
		}).
		Create(block).Error
	return pkgerrors.Wrap(err, "create user block")
}

// DeleteUserBlock 删除屏蔽关系
func (s *UserBlockRepoImpl) DeleteUserBlock(ctx context.Context, blockerID, blockedID uint64) error {
	err := s.db.WithContext(ctx).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Delete(&model.UserBlock{}).Error
	return pkgerrors.Wrap(err, "delete user block")
}
