package service

import (
	"Chatline/internal/api/dto"
	"Chatline/internal/pkg/consts"
	"Chatline/internal/repository"
	"context"
	"strings"
	"time"

	"github.com/jinzhu/copier"
)

type UserService interface {
	ListUsers(ctx context.Context, userID uint64) ([]*dto.UserDTO, error)
	SearchUsers(ctx context.Context, userID uint64, query string) ([]*dto.UserDTO, error)
	GetUser(ctx context.Context, id uint64) (*dto.UserDTO, error)
	SetPresence(ctx context.Context, userID uint64, online bool, at time.Time) error
}

type UserServiceImpl struct {
	userRepo repository.UserRepo
}

func NewUserService(userRepo repository.UserRepo) UserService {
	return &UserServiceImpl{userRepo: userRepo}
}

func (s *UserServiceImpl) ListUsers(ctx context.Context, userID uint64) ([]*dto.UserDTO, error) {
	users, err := s.userRepo.ListUsers(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]*dto.UserDTO, 0, len(users))
	if err = copier.Copy(&out, &users); err != nil {
		return nil, err
	}
	return out, nil
}

// SearchUsers 按用户名或邮箱搜索，最多返回 MaxUserSearchResults 条
func (s *UserServiceImpl) SearchUsers(ctx context.Context, userID uint64, query string) ([]*dto.UserDTO, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	users, err := s.userRepo.SearchUsers(ctx, userID, query, consts.MaxUserSearchResults)
	if err != nil {
		return nil, err
	}
	out := make([]*dto.UserDTO, 0, len(users))
	if err = copier.Copy(&out, &users); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *UserServiceImpl) GetUser(ctx context.Context, id uint64) (*dto.UserDTO, error) {
	user, err := s.userRepo.GetUserById(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	out := &dto.UserDTO{}
	if err = copier.Copy(out, user); err != nil {
		return nil, err
	}
	return out, nil
}

// SetPresence 持久化在线状态，供 realtime.Hub 调用
func (s *UserServiceImpl) SetPresence(ctx context.Context, userID uint64, online bool, at time.Time) error {
	return s.userRepo.UpdatePresence(ctx, userID, online, at)
}
