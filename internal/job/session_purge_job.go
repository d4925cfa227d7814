package job

import (
	"Chatline/internal/pkg/consts"
	"Chatline/internal/service"
	"context"
	log "log/slog"
	"time"
)

// SessionPurgeJob 清理长时间不活跃的会话
type SessionPurgeJob struct {
	sessionSvc service.SessionService
	maxIdle    time.Duration
}

func NewSessionPurgeJob(sessionSvc service.SessionService, maxIdle time.Duration) *SessionPurgeJob {
	return &SessionPurgeJob{
		sessionSvc: sessionSvc,
		maxIdle:    maxIdle,
	}
}

func (s *SessionPurgeJob) Run() {
	runExclusive("session_purge", consts.SessionPurgeLock, 10*time.Minute, s.run)
}

func (s *SessionPurgeJob) run(ctx context.Context) error {
	purged, err := s.sessionSvc.PurgeInactive(ctx, s.maxIdle)
	if err != nil {
		return err
	}
	if purged > 0 {
		log.InfoContext(ctx, "session purge job finished", "purged_count", purged)
	}
	return nil
}
