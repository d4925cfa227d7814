package service

import (
	"Chatline/internal/pkg/consts"
	"Chatline/internal/pkg/redis"
	"Chatline/internal/pkg/security"
	"Chatline/internal/repository"
	"context"
	"fmt"
	log "log/slog"
	"strconv"
	"time"
)

const activityTouchInterval = time.Minute

// AuthIdentity 已认证请求的身份
type AuthIdentity struct {
	UserID    uint64
	Username  string
	SessionID uint64
	JTI       string
	Signature string
	ExpiresAt time.Time
}

type AuthService interface {
	Authenticate(ctx context.Context, token string) (*AuthIdentity, error)
}

type AuthServiceImpl struct {
	sessionRepo repository.SessionRepo
	userRepo    repository.UserRepo
	now         func() time.Time
}

func NewAuthService(sessionRepo repository.SessionRepo, userRepo repository.UserRepo) AuthService {
	return &AuthServiceImpl{sessionRepo: sessionRepo, userRepo: userRepo, now: time.Now}
}

// Authenticate 校验令牌、黑名单与会话状态，并节流刷新会话活跃时间
func (s *AuthServiceImpl) Authenticate(ctx context.Context, token string) (*AuthIdentity, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	signature, err := security.ExtractSignature(token)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	if redis.Enabled() {
		revoked, err := redis.Exists(ctx, consts.TokenRevokedKey+signature)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, ErrSessionRevoked
		}
	}

	claims, err := security.ValidateToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	session, err := s.sessionRepo.GetActiveByJTI(ctx, claims.ID, claims.UserID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if session == nil || !session.Active(now) {
		return nil, ErrSessionRevoked
	}

	user, err := s.userRepo.GetUserById(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUnauthenticated
	}

	s.touch(ctx, session.ID, session.LastActivity, now)

	return &AuthIdentity{
		UserID:    user.ID,
		Username:  user.Username,
		SessionID: session.ID,
		JTI:       claims.ID,
		Signature: signature,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// touch 每个会话每分钟最多写一次活跃时间
func (s *AuthServiceImpl) touch(ctx context.Context, sessionID uint64, last *time.Time, now time.Time) {
	if redis.Enabled() {
		key := consts.SessionActivityKey + strconv.FormatUint(sessionID, 10)
		ok, err := redis.SetIfAbsent(ctx, key, 1, activityTouchInterval)
		if err != nil {
			log.WarnContext(ctx, "session activity throttle unavailable", "err", err)
		}
		if !ok && err == nil {
			return
		}
	} else if last != nil && now.Sub(*last) < activityTouchInterval {
		return
	}
	if err := s.sessionRepo.TouchActivity(ctx, sessionID, now); err != nil {
		log.WarnContext(ctx, "failed to touch session", "session_id", sessionID, "err", err)
	}
}
