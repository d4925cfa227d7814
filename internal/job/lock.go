package job

import (
	"Chatline/internal/pkg/logger"
	"Chatline/internal/pkg/metrics"
	"Chatline/internal/pkg/redis"
	"context"
	log "log/slog"
	"time"

	"github.com/google/uuid"
)

// runExclusive 多实例部署时用 Redis 锁保证同一时刻只有一个实例执行
func runExclusive(name, lockKey string, ttl time.Duration, fn func(ctx context.Context) error) {
	traceID := "job-" + name + "-" + uuid.NewString()
	ctx := context.WithValue(context.Background(), logger.TraceIDKey, traceID)

	if redis.Enabled() {
		ok, err := redis.SetIfAbsent(ctx, lockKey, traceID, ttl)
		if err != nil {
			log.ErrorContext(ctx, "acquire job lock error", "job", name, "err", err)
			metrics.JobRuns.WithLabelValues(name, "error").Inc()
			return
		}
		if !ok {
			log.InfoContext(ctx, "job already running elsewhere", "job", name)
			metrics.JobRuns.WithLabelValues(name, "skipped").Inc()
			return
		}
		defer func() {
			if err = redis.DeleteKey(ctx, lockKey); err != nil {
				log.WarnContext(ctx, "release job lock error", "job", name, "err", err)
			}
		}()
	}

	if err := fn(ctx); err != nil {
		log.ErrorContext(ctx, "job failed", "job", name, "err", err)
		metrics.JobRuns.WithLabelValues(name, "error").Inc()
		return
	}
	metrics.JobRuns.WithLabelValues(name, "success").Inc()
}
