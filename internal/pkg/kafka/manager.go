package kafka

import (
	"Chatline/internal/api/config"
	"context"
	log "log/slog"

	"github.com/IBM/sarama"
)

// ConsumerManager 管理 Kafka 消费者
type ConsumerManager struct {
	topic string

	messageConsumer sarama.ConsumerGroup
	messageHandler  sarama.ConsumerGroupHandler
}

func NewConsumerManager(cfg config.KafkaConfig, index IndexWriter) (*ConsumerManager, error) {
	messageConsumer, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, newSaramaConfig(cfg))
	if err != nil {
		return nil, err
	}
	return &ConsumerManager{
		topic:           cfg.MessageTopic,
		messageConsumer: messageConsumer,
		messageHandler:  NewMessageIndexHandler(index),
	}, nil
}

// Start 阻塞运行直到 ctx 结束
func (m *ConsumerManager) Start(ctx context.Context) error {
	go func() {
		for err := range m.messageConsumer.Errors() {
			log.Error("Error from consumer group", "err", err)
		}
	}()

	go func() {
		log.Info("Message index consumer started", "topic", m.topic)
		for {
			if err := m.messageConsumer.Consume(ctx, []string{m.topic}, m.messageHandler); err != nil {
				log.Error("Error from consumer", "err", err)
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	<-ctx.Done()
	log.Info("Kafka Manager shutting down...")

	if err := m.messageConsumer.Close(); err != nil {
		log.Error("Failed to close message consumer", "err", err)
	}
	return nil
}
