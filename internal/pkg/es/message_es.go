package es

import (
	"time"

	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
)

// MessageES 对应 message_index 的文档结构
type MessageES struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       uint64    `json:"sender_id"`
	Content        string    `json:"content"`
	MessageType    string    `json:"message_type"`
	CreatedAt      time.Time `json:"created_at"`
}

func messageMapping() *types.TypeMapping {
	return &types.TypeMapping{
		Properties: map[string]types.Property{
			"id":              types.NewKeywordProperty(),
			"conversation_id": types.NewKeywordProperty(),
			"sender_id":       types.NewLongNumberProperty(),
			"content":         types.NewTextProperty(),
			"message_type":    types.NewKeywordProperty(),
			"created_at":      types.NewDateProperty(),
		},
	}
}
