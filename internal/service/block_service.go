package service

import (
	"Chatline/internal/api/dto"
	"Chatline/internal/model"
	"Chatline/internal/pkg/consts"
	"Chatline/internal/pkg/redis"
	"Chatline/internal/repository"
	"context"
	log "log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/jinzhu/copier"
)

const (
	blockCacheTTL   = 30 * time.Minute
	blockVersionTTL = 24 * time.Hour
)

type BlockService interface {
	CanExchange(ctx context.Context, a, b uint64) (bool, error)
	ToggleBlock(ctx context.Context, actorID, targetID uint64) (*dto.BlockResultDTO, error)
	ListBlocked(ctx context.Context, actorID uint64) ([]*dto.UserDTO, error)
}

// BlockCache 屏蔽集合缓存
// 回填携带读库前取得的版本号，期间发生过 Invalidate 的回填被丢弃
type BlockCache interface {
	Lookup(ctx context.Context, blockerID, blockedID uint64) (cached, blocked bool, err error)
	Version(ctx context.Context, blockerID uint64) (string, error)
	Fill(ctx context.Context, blockerID uint64, version string, blockedIDs []uint64) error
	Invalidate(ctx context.Context, blockerID uint64) error
}

type redisBlockCache struct{}

func blockKeys(blockerID uint64) (string, string) {
	id := strconv.FormatUint(blockerID, 10)
	return consts.UserBlockedKey + id, consts.UserBlockedVersionKey + id
}

func (redisBlockCache) Lookup(ctx context.Context, blockerID, blockedID uint64) (bool, bool, error) {
	key, _ := blockKeys(blockerID)
	return redis.CachedSetMember(ctx, key, strconv.FormatUint(blockedID, 10))
}

func (redisBlockCache) Version(ctx context.Context, blockerID uint64) (string, error) {
	_, versionKey := blockKeys(blockerID)
	return redis.GetValue(ctx, versionKey)
}

func (redisBlockCache) Fill(ctx context.Context, blockerID uint64, version string, blockedIDs []uint64) error {
	key, versionKey := blockKeys(blockerID)
	members := make([]string, 0, len(blockedIDs))
	for _, id := range blockedIDs {
		members = append(members, strconv.FormatUint(id, 10))
	}
	_, err := redis.ReplaceSetIfVersion(ctx, key, versionKey, version, members, consts.UserBlockedSetEmpty, blockCacheTTL)
	return err
}

func (redisBlockCache) Invalidate(ctx context.Context, blockerID uint64) error {
	key, versionKey := blockKeys(blockerID)
	return redis.BumpVersion(ctx, versionKey, blockVersionTTL, key)
}

type BlockServiceImpl struct {
	blockRepo repository.UserBlockRepo
	userRepo  repository.UserRepo
	// 未启用 Redis 时为 nil，直接查库
	cache BlockCache
}

func NewBlockService(blockRepo repository.UserBlockRepo, userRepo repository.UserRepo) BlockService {
	s := &BlockServiceImpl{blockRepo: blockRepo, userRepo: userRepo}
	if redis.Enabled() {
		s.cache = redisBlockCache{}
	}
	return s
}

// CanExchange 双方均未屏蔽对方时返回 true
func (s *BlockServiceImpl) CanExchange(ctx context.Context, a, b uint64) (bool, error) {
	if a == b {
		return true, nil
	}
	if s.cache == nil {
		blocked, err := s.blockRepo.ExistsEitherWay(ctx, a, b)
		if err != nil {
			return false, err
		}
		return !blocked, nil
	}

	for _, pair := range [][2]uint64{{a, b}, {b, a}} {
		blocked, err := s.isBlocking(ctx, pair[0], pair[1])
		if err != nil {
			return false, err
		}
		if blocked {
			return false, nil
		}
	}
	return true, nil
}

// isBlocking 读取 blocker 的屏蔽集合缓存，未命中时回源并回填
func (s *BlockServiceImpl) isBlocking(ctx context.Context, blockerID, blockedID uint64) (bool, error) {
	cached, blocked, err := s.cache.Lookup(ctx, blockerID, blockedID)
	if err == nil && cached {
		return blocked, nil
	}
	if err != nil {
		log.WarnContext(ctx, "block cache unavailable", "err", err)
	}

	// 版本号必须在读库之前取得
	version, versionErr := s.cache.Version(ctx, blockerID)
	ids, err := s.blockRepo.GetBlockedIDs(ctx, blockerID)
	if err != nil {
		return false, err
	}
	if versionErr != nil {
		log.WarnContext(ctx, "block cache version unavailable, skip fill", "err", versionErr)
	} else if err = s.cache.Fill(ctx, blockerID, version, ids); err != nil {
		log.WarnContext(ctx, "failed to fill block cache", "err", err)
	}
	return slices.Contains(ids, blockedID), nil
}

func (s *BlockServiceImpl) invalidate(ctx context.Context, blockerID uint64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, blockerID); err != nil {
		log.WarnContext(ctx, "failed to invalidate block cache", "err", err)
	}
}

// ToggleBlock 已屏蔽则取消，否则屏蔽
func (s *BlockServiceImpl) ToggleBlock(ctx context.Context, actorID, targetID uint64) (*dto.BlockResultDTO, error) {
	if actorID == targetID {
		return nil, ErrBlockSelf
	}
	target, err := s.userRepo.GetUserById(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, ErrUserNotFound
	}

	existing, err := s.blockRepo.GetUserBlock(ctx, actorID, targetID)
	if err != nil {
		return nil, err
	}

	defer s.invalidate(ctx, actorID)

	if existing != nil {
		if err = s.blockRepo.DeleteUserBlock(ctx, actorID, targetID); err != nil {
			return nil, err
		}
		return &dto.BlockResultDTO{Message: "User unblocked", Blocked: false}, nil
	}

	err = s.blockRepo.CreateUserBlock(ctx, &model.UserBlock{
		BlockerID: actorID,
		BlockedID: targetID,
		CreatedAt: time.Now(),
	})
	if err != nil {
		return nil, err
	}
	return &dto.BlockResultDTO{Message: "User blocked", Blocked: true}, nil
}

// ListBlocked 当前用户屏蔽的用户
func (s *BlockServiceImpl) ListBlocked(ctx context.Context, actorID uint64) ([]*dto.UserDTO, error) {
	ids, err := s.blockRepo.GetBlockedIDs(ctx, actorID)
	if err != nil {
		return nil, err
	}
	users, err := s.userRepo.GetUserByIds(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]*dto.UserDTO, 0, len(users))
	if err = copier.Copy(&out, &users); err != nil {
		return nil, err
	}
	return out, nil
}
