package kafka

import (
	"Chatline/internal/api/config"
	"Chatline/internal/model"
	"context"
	"fmt"
	log "log/slog"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
)

// MessageProducer 将消息事件写入 Kafka，同一会话的事件落在同一分区
type MessageProducer struct {
	producer sarama.SyncProducer
	topic    string
}

func NewMessageProducer(cfg config.KafkaConfig) (*MessageProducer, error) {
	producer, err := sarama.NewSyncProducer(cfg.Brokers, newSaramaConfig(cfg))
	if err != nil {
		return nil, err
	}
	return newMessageProducer(producer, cfg.MessageTopic), nil
}

func newMessageProducer(producer sarama.SyncProducer, topic string) *MessageProducer {
	return &MessageProducer{producer: producer, topic: topic}
}

func (p *MessageProducer) Publish(ctx context.Context, event *model.MessageEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.ConversationID),
		Value: sarama.ByteEncoder(value),
	})
	if err != nil {
		return fmt.Errorf("publish message event: %w", err)
	}
	log.DebugContext(ctx, "message event published",
		"action", event.Action, "message_id", event.MessageID, "partition", partition, "offset", offset)
	return nil
}

func (p *MessageProducer) Close() error {
	return p.producer.Close()
}
