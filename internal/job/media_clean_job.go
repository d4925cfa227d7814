package job

import (
	"Chatline/internal/pkg/consts"
	"Chatline/internal/service"
	"context"
	log "log/slog"
	"time"
)

// MediaCleanupJob 删除上传后长时间未被消息引用的媒体
type MediaCleanupJob struct {
	mediaSvc service.MediaService
	maxAge   time.Duration
}

func NewMediaCleanupJob(mediaSvc service.MediaService, maxAge time.Duration) *MediaCleanupJob {
	return &MediaCleanupJob{
		mediaSvc: mediaSvc,
		maxAge:   maxAge,
	}
}

func (s *MediaCleanupJob) Run() {
	runExclusive("media_cleanup", consts.MediaCleanupLock, 30*time.Minute, s.run)
}

func (s *MediaCleanupJob) run(ctx context.Context) error {
	log.InfoContext(ctx, "start media cleanup job")
	count, err := s.mediaSvc.CleanupUnattached(ctx, s.maxAge)
	if err != nil {
		return err
	}
	if count > 0 {
		log.InfoContext(ctx, "media cleanup job finished", "cleaned_count", count)
	}
	return nil
}
