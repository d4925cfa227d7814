package logger

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisProtectedCommands = map[string]struct{}{
	"auth":  {},
	"hello": {},
}

type RedisLoggerHook struct {
	slow time.Duration
}

func NewRedisLogger(slow time.Duration) *RedisLoggerHook {
	return &RedisLoggerHook{slow: slow}
}

// DialHook 记录建立连接失败
func (s *RedisLoggerHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		start := time.Now()
		conn, err := next(ctx, network, addr)
		if err != nil {
			log.ErrorContext(ctx, "Redis Dial Error",
				log.String("addr", addr),
				log.Duration("latency", time.Since(start)),
				log.Any("err", err),
			)
		}
		return conn, err
	}
}

// ProcessHook 记录单条命令的错误与慢查询
func (s *RedisLoggerHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		elapsed := time.Since(start)

		cmdName := cmd.Name()
		args := "[PROTECTED]"
		if _, protected := redisProtectedCommands[cmdName]; !protected {
			args = fmt.Sprint(cmd.Args())
		}

		fields := []any{
			log.String("command", cmdName),
			log.String("args", args),
			log.Duration("latency", elapsed),
		}

		switch {
		case err == nil:
			if elapsed > s.slow {
				log.WarnContext(ctx, "Redis Slow", fields...)
			}
		case errors.Is(err, redis.Nil):
		case cmdName == "client" && strings.Contains(err.Error(), "setinfo"):
		default:
			log.ErrorContext(ctx, "Redis Error", append(fields, log.Any("err", err))...)
		}

		return err
	}
}

// ProcessPipelineHook 记录管道命令错误
func (s *RedisLoggerHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		if err != nil && !errors.Is(err, redis.Nil) {
			log.ErrorContext(ctx, "Redis Pipeline Error",
				log.Int("cmd_count", len(cmds)),
				log.Duration("latency", time.Since(start)),
				log.Any("err", err))
		}
		return err
	}
}
