package model

import "time"

// 消息事件类型
const (
	MessageEventCreated = "created"
	MessageEventEdited  = "edited"
	MessageEventDeleted = "deleted"
)

// MessageEvent 消息变更事件，写入 Kafka 并驱动搜索索引
type MessageEvent struct {
	Action         string    `json:"action"`
	MessageID      string    `json:"messageId"`
	ConversationID string    `json:"conversationId"`
	SenderID       uint64    `json:"senderId"`
	Content        string    `json:"content,omitempty"`
	MessageType    string    `json:"messageType,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	OccurredAt     time.Time `json:"occurredAt"`
}
