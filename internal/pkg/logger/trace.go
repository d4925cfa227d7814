package logger

import (
	"context"
	log "log/slog"
)

// Context 中的日志字段 Key
const (
	TraceIDKey = "trace_id"
	UserIDKey  = "user_id"
	ConnIDKey  = "conn_id"
)

// ContextHandler 从 ctx 中提取 trace_id / user_id / conn_id 附加到每条日志
type ContextHandler struct {
	log.Handler
}

func (h *ContextHandler) Handle(ctx context.Context, r log.Record) error {
	if ctx != nil {
		if traceID, ok := ctx.Value(TraceIDKey).(string); ok && traceID != "" {
			r.AddAttrs(log.String(TraceIDKey, traceID))
		}
		if userID, ok := ctx.Value(UserIDKey).(uint64); ok && userID != 0 {
			r.AddAttrs(log.Uint64(UserIDKey, userID))
		}
		if connID, ok := ctx.Value(ConnIDKey).(string); ok && connID != "" {
			r.AddAttrs(log.String(ConnIDKey, connID))
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []log.Attr) log.Handler {
	return &ContextHandler{h.Handler.WithAttrs(attrs)}
}

func (h *ContextHandler) WithGroup(name string) log.Handler {
	return &ContextHandler{h.Handler.WithGroup(name)}
}

// WithConn 为长连接生成带 conn_id / user_id 的 ctx
func WithConn(ctx context.Context, connID string, userID uint64) context.Context {
	ctx = context.WithValue(ctx, ConnIDKey, connID)
	return context.WithValue(ctx, UserIDKey, userID)
}
