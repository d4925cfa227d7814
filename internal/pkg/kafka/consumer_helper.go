package kafka

import (
	"Chatline/internal/model"
	"context"
	"errors"
	log "log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
)

const (
	batchSize    = 32
	batchTimeout = 1 * time.Second
)

// errSkip 无法处理的消息，记录后跳过
var errSkip = errors.New("skip message")

type LogicFunc func(ctx context.Context, msg *sarama.ConsumerMessage) error

// pullMessageBatch 拉取一批消息并执行业务逻辑
func pullMessageBatch(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim, logic LogicFunc) error {
	batch := make([]*sarama.ConsumerMessage, 0, batchSize)
	ticker := time.NewTicker(batchTimeout)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				if len(batch) > 0 {
					processBatch(session, batch, logic)
				}
				return nil
			}
			batch = append(batch, msg)
			if len(batch) >= batchSize {
				processBatch(session, batch, logic)
				batch = make([]*sarama.ConsumerMessage, 0, batchSize)
				ticker.Reset(batchTimeout)
			}
		case <-ticker.C:
			if len(batch) > 0 {
				processBatch(session, batch, logic)
				batch = make([]*sarama.ConsumerMessage, 0, batchSize)
			}
		case <-session.Context().Done():
			return nil
		}
	}
}

// processBatch 并发处理一批消息，失败的消息退避重试直到会话结束
func processBatch(session sarama.ConsumerGroupSession, messages []*sarama.ConsumerMessage, logic LogicFunc) {
	var wg sync.WaitGroup

	for _, msg := range messages {
		wg.Add(1)

		go func(m *sarama.ConsumerMessage) {
			defer wg.Done()
			retryInterval := 100 * time.Millisecond

			for {
				err := logic(session.Context(), m)
				if err == nil {
					return
				}
				if errors.Is(err, errSkip) {
					log.Warn("skip kafka message", "topic", m.Topic, "offset", m.Offset, "err", err)
					return
				}
				select {
				case <-session.Context().Done():
					return
				default:
				}

				log.Error("process message error", "err", err)
				time.Sleep(retryInterval)

				retryInterval *= 2
				if retryInterval > 5*time.Second {
					retryInterval = 5 * time.Second
				}
			}
		}(msg)
	}

	wg.Wait()

	// 关闭了自动提交，整批处理完后手动提交
	if len(messages) > 0 {
		session.MarkMessage(messages[len(messages)-1], "")
		session.Commit()
	}
}

// ToMessageEvent 将 Kafka 消息解析为消息事件
func ToMessageEvent(msg *sarama.ConsumerMessage) (*model.MessageEvent, error) {
	var event model.MessageEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return nil, errors.Join(errSkip, err)
	}
	if event.MessageID == "" || event.Action == "" {
		return nil, errors.Join(errSkip, errors.New("message event missing id or action"))
	}
	return &event, nil
}
