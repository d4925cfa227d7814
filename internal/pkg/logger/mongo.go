package logger

import (
	"context"
	log "log/slog"
	"time"

	"go.mongodb.org/mongo-driver/event"
)

const mongoCmdLimit = 1000

// 握手与心跳命令不记录
var mongoQuietCommands = map[string]struct{}{
	"hello":        {},
	"isMaster":     {},
	"ping":         {},
	"saslStart":    {},
	"saslContinue": {},
	"endSessions":  {},
}

// NewMongoMonitor 返回记录命令耗时与失败的监视器
func NewMongoMonitor(slow time.Duration) *event.CommandMonitor {
	return &event.CommandMonitor{
		Started: func(ctx context.Context, evt *event.CommandStartedEvent) {
			if _, quiet := mongoQuietCommands[evt.CommandName]; quiet {
				return
			}
			cmdStr := evt.Command.String()
			if len(cmdStr) > mongoCmdLimit {
				cmdStr = cmdStr[:mongoCmdLimit] + "...[truncated]"
			}

			log.DebugContext(ctx, "MongoDB Started",
				log.String("command", evt.CommandName),
				log.String("database", evt.DatabaseName),
				log.Int64("request_id", evt.RequestID),
				log.String("cmd_detail", cmdStr),
			)
		},
		Succeeded: func(ctx context.Context, evt *event.CommandSucceededEvent) {
			if _, quiet := mongoQuietCommands[evt.CommandName]; quiet {
				return
			}
			fields := []any{
				log.String("command", evt.CommandName),
				log.Duration("latency", evt.Duration),
				log.Int64("request_id", evt.RequestID),
			}

			if evt.Duration > slow {
				log.WarnContext(ctx, "MongoDB Slow", fields...)
			} else {
				log.DebugContext(ctx, "MongoDB Success", fields...)
			}
		},
		Failed: func(ctx context.Context, evt *event.CommandFailedEvent) {
			log.ErrorContext(ctx, "MongoDB Error",
				log.String("command", evt.CommandName),
				log.Duration("latency", evt.Duration),
				log.Int64("request_id", evt.RequestID),
				log.Any("err", evt.Failure),
			)
		},
	}
}
