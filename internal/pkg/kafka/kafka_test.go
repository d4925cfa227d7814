package kafka

import (
	"Chatline/internal/model"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/goccy/go-json"
)

func TestPublishEncodesEvent(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var got model.MessageEvent
		if err := json.Unmarshal(val, &got); err != nil {
			return err
		}
		if got.Action != model.MessageEventCreated || got.MessageID != "m1" {
			return errors.New("unexpected event payload")
		}
		return nil
	})

	p := newMessageProducer(sp, "events")
	err := p.Publish(context.Background(), &model.MessageEvent{
		Action:         model.MessageEventCreated,
		MessageID:      "m1",
		ConversationID: "c1",
		OccurredAt:     time.Now(),
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err = p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestPublishSurfacesBrokerError(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := newMessageProducer(sp, "events")
	err := p.Publish(context.Background(), &model.MessageEvent{Action: model.MessageEventDeleted, MessageID: "m1"})
	if !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Fatalf("Publish error = %v", err)
	}
	_ = p.Close()
}

type recordingIndex struct {
	events []*model.MessageEvent
}

func (r *recordingIndex) Apply(_ context.Context, event *model.MessageEvent) error {
	r.events = append(r.events, event)
	return nil
}

func TestIndexHandlerLogic(t *testing.T) {
	index := &recordingIndex{}
	h := NewMessageIndexHandler(index)

	valid, _ := json.Marshal(model.MessageEvent{Action: model.MessageEventEdited, MessageID: "m2", Content: "new"})
	if err := h.logic(context.Background(), &sarama.ConsumerMessage{Value: valid}); err != nil {
		t.Fatalf("logic: %v", err)
	}
	if len(index.events) != 1 || index.events[0].Content != "new" {
		t.Fatalf("applied = %+v", index.events)
	}

	for _, raw := range [][]byte{[]byte("{not json"), []byte(`{"action":"created"}`)} {
		err := h.logic(context.Background(), &sarama.ConsumerMessage{Value: raw})
		if !errors.Is(err, errSkip) {
			t.Fatalf("logic(%s) = %v, want errSkip", raw, err)
		}
	}
	if len(index.events) != 1 {
		t.Fatal("invalid events must not reach the index")
	}
}
