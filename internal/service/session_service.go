package service

import (
	"Chatline/internal/api/dto"
	"Chatline/internal/model"
	"Chatline/internal/pkg/consts"
	"Chatline/internal/pkg/redis"
	"Chatline/internal/pkg/security"
	"Chatline/internal/repository"
	"context"
	log "log/slog"
	"time"

	"github.com/jinzhu/copier"
)

type SessionService interface {
	IssueSession(ctx context.Context, userID uint64, ip, userAgent string) (string, *dto.SessionDTO, error)
	List(ctx context.Context, userID, currentSessionID uint64) ([]*dto.SessionDTO, error)
	Revoke(ctx context.Context, userID, sessionID uint64, ip, userAgent string) error
	Logout(ctx context.Context, identity *AuthIdentity, ip, userAgent string) error
	ListHistory(ctx context.Context, userID uint64, query *dto.LoginHistoryQueryDTO) (*dto.LoginHistoryPageDTO, error)
	PurgeInactive(ctx context.Context, maxIdle time.Duration) (int64, error)
}

type SessionServiceImpl struct {
	sessionRepo repository.SessionRepo
	historyRepo repository.LoginHistoryRepo
	userRepo    repository.UserRepo
	now         func() time.Time
}

func NewSessionService(sessionRepo repository.SessionRepo, historyRepo repository.LoginHistoryRepo, userRepo repository.UserRepo) SessionService {
	return &SessionServiceImpl{sessionRepo: sessionRepo, historyRepo: historyRepo, userRepo: userRepo, now: time.Now}
}

// IssueSession 签发令牌并登记会话
func (s *SessionServiceImpl) IssueSession(ctx context.Context, userID uint64, ip, userAgent string) (string, *dto.SessionDTO, error) {
	user, err := s.userRepo.GetUserById(ctx, userID)
	if err != nil {
		return "", nil, err
	}
	if user == nil {
		return "", nil, ErrUserNotFound
	}

	token, jti, expiresAt, err := security.GenerateToken(userID)
	if err != nil {
		return "", nil, err
	}
	now := s.now()
	session := &model.Session{
		JTI:          jti,
		UserID:       userID,
		IP:           ip,
		UserAgent:    userAgent,
		LastActivity: &now,
		ExpiresAt:    expiresAt,
		CreatedAt:    now,
	}
	if err = s.sessionRepo.CreateSession(ctx, session); err != nil {
		return "", nil, err
	}
	s.record(ctx, userID, session.ID, consts.LoginEventLogin, ip, userAgent)

	out := &dto.SessionDTO{}
	if err = copier.Copy(out, session); err != nil {
		return "", nil, err
	}
	out.Current = true
	return token, out, nil
}

// List 当前用户的有效会话，标记发起请求的会话
func (s *SessionServiceImpl) List(ctx context.Context, userID, currentSessionID uint64) ([]*dto.SessionDTO, error) {
	sessions, err := s.sessionRepo.ListActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]*dto.SessionDTO, 0, len(sessions))
	if err = copier.Copy(&out, &sessions); err != nil {
		return nil, err
	}
	for _, d := range out {
		d.Current = d.ID == currentSessionID
	}
	return out, nil
}

// Revoke 撤销自己的某个会话，ip 与 userAgent 为发起撤销的客户端
func (s *SessionServiceImpl) Revoke(ctx context.Context, userID, sessionID uint64, ip, userAgent string) error {
	session, err := s.sessionRepo.GetSession(ctx, sessionID, userID)
	if err != nil {
		return err
	}
	if session == nil || !session.Active(s.now()) {
		return ErrSessionNotFound
	}
	ok, err := s.sessionRepo.Revoke(ctx, session.ID, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return ErrSessionNotFound
	}
	s.record(ctx, userID, session.ID, consts.LoginEventRevoke, ip, userAgent)
	return nil
}

// Logout 撤销当前会话，令牌签名在过期前保留在黑名单中
func (s *SessionServiceImpl) Logout(ctx context.Context, identity *AuthIdentity, ip, userAgent string) error {
	ended, err := s.sessionRepo.Revoke(ctx, identity.SessionID, s.now())
	if err != nil {
		return err
	}
	if ended {
		s.record(ctx, identity.UserID, identity.SessionID, consts.LoginEventLogout, ip, userAgent)
	}
	if !redis.Enabled() || identity.Signature == "" {
		return nil
	}
	ttl := identity.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	return redis.SetWithExpiration(ctx, consts.TokenRevokedKey+identity.Signature, true, ttl)
}

// record 写入登录历史，失败只记录日志，不影响会话本身
func (s *SessionServiceImpl) record(ctx context.Context, userID, sessionID uint64, eventType, ip, userAgent string) {
	entry := &model.LoginHistory{
		UserID:    userID,
		SessionID: sessionID,
		EventType: eventType,
		IP:        ip,
		UserAgent: userAgent,
		CreatedAt: s.now(),
	}
	if err := s.historyRepo.Create(ctx, entry); err != nil {
		log.WarnContext(ctx, "failed to record login history", "user_id", userID, "event", eventType, "err", err)
	}
}

// ListHistory 当前用户的登录历史，最新的在前
func (s *SessionServiceImpl) ListHistory(ctx context.Context, userID uint64, query *dto.LoginHistoryQueryDTO) (*dto.LoginHistoryPageDTO, error) {
	page := max(query.Page, 1)
	limit := query.Limit
	if limit <= 0 {
		limit = consts.DefaultHistoryPageSize
	}
	limit = min(limit, consts.MaxHistoryPageSize)

	items, total, err := s.historyRepo.List(ctx, userID, query.EventType, (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}
	out := &dto.LoginHistoryPageDTO{Page: page, Limit: limit, Total: total, Items: make([]*dto.LoginHistoryDTO, 0, len(items))}
	if err = copier.Copy(&out.Items, &items); err != nil {
		return nil, err
	}
	return out, nil
}

// PurgeInactive 结束长时间无活动或已过期的会话
func (s *SessionServiceImpl) PurgeInactive(ctx context.Context, maxIdle time.Duration) (int64, error) {
	now := s.now()
	n, err := s.sessionRepo.PurgeInactive(ctx, now.Add(-maxIdle), now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.InfoContext(ctx, "purged inactive sessions", "count", n)
	}
	return n, nil
}
