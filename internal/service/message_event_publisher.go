package service

import (
	"Chatline/internal/model"
	"Chatline/internal/pkg/mongo"
	"context"
	log "log/slog"
	"time"
)

// MessageEventPublisher 消息事件出口，Kafka 生产者或直接写索引
type MessageEventPublisher interface {
	Publish(ctx context.Context, event *model.MessageEvent) error
}

// MessageIndexWriter 直接写搜索索引
type MessageIndexWriter interface {
	Apply(ctx context.Context, event *model.MessageEvent) error
}

// NopPublisher 未启用搜索索引时使用
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, *model.MessageEvent) error { return nil }

type directIndexPublisher struct {
	index MessageIndexWriter
}

// NewDirectIndexPublisher 不经过 Kafka，同步写入索引
func NewDirectIndexPublisher(index MessageIndexWriter) MessageEventPublisher {
	return &directIndexPublisher{index: index}
}

func (p *directIndexPublisher) Publish(ctx context.Context, event *model.MessageEvent) error {
	return p.index.Apply(ctx, event)
}

func newMessageEvent(action string, m *mongo.Message) *model.MessageEvent {
	return &model.MessageEvent{
		Action:         action,
		MessageID:      m.ID.Hex(),
		ConversationID: m.ConversationID.Hex(),
		SenderID:       m.SenderID,
		Content:        m.Content,
		MessageType:    m.MessageType,
		CreatedAt:      m.CreatedAt,
		OccurredAt:     time.Now(),
	}
}

// publishBestEffort 发布失败只记录日志
func publishBestEffort(ctx context.Context, p MessageEventPublisher, action string, m *mongo.Message) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, newMessageEvent(action, m)); err != nil {
		log.WarnContext(ctx, "failed to publish message event", "action", action, "message_id", m.ID.Hex(), "err", err)
	}
}
