package kafka

import (
	"Chatline/internal/model"
	"context"
	log "log/slog"

	"github.com/IBM/sarama"
)

// IndexWriter 消费到的事件写入搜索索引
type IndexWriter interface {
	Apply(ctx context.Context, event *model.MessageEvent) error
}

type MessageIndexHandler struct {
	index IndexWriter
}

func NewMessageIndexHandler(index IndexWriter) *MessageIndexHandler {
	return &MessageIndexHandler{index: index}
}

func (s *MessageIndexHandler) Setup(sarama.ConsumerGroupSession) error {
	log.Info("message index consumer setup")
	return nil
}

func (s *MessageIndexHandler) Cleanup(sarama.ConsumerGroupSession) error {
	log.Info("message index consumer cleanup")
	return nil
}

func (s *MessageIndexHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	log.Info("message index consume claim", "topic", claim.Topic(), "partition", claim.Partition())
	if err := pullMessageBatch(session, claim, s.logic); err != nil {
		log.Error("process batch error", "err", err)
		return err
	}
	return nil
}

func (s *MessageIndexHandler) logic(ctx context.Context, msg *sarama.ConsumerMessage) error {
	event, err := ToMessageEvent(msg)
	if err != nil {
		return err
	}
	return s.index.Apply(ctx, event)
}
