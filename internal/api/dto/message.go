package dto

import "time"

// SendMessageDTO 发送消息，HTTP 与长连接共用
type SendMessageDTO struct {
	ConversationID string   `json:"conversationId" binding:"required"`
	Content        string   `json:"content" binding:"max=10000"`
	MediaIDs       []string `json:"mediaIds" binding:"max=10"`
	ReplyTo        string   `json:"replyTo"`
	MessageType    string   `json:"messageType" binding:"omitempty,oneof=text image video file"`
}

type EditMessageDTO struct {
	MessageID string `json:"messageId" binding:"required"`
	Content   string `json:"content" binding:"max=10000"`
}

type ReactMessageDTO struct {
	MessageID string `json:"messageId" binding:"required"`
	Emoji     string `json:"emoji" binding:"required,max=32"`
}

type UpdateStatusDTO struct {
	MessageID string `json:"messageId" binding:"required"`
	Status    string `json:"status" binding:"required,oneof=delivered read"`
}

// GetMessagesDTO 历史消息分页
type GetMessagesDTO struct {
	Limit int `form:"limit" binding:"omitempty,min=1"`
	Skip  int `form:"skip" binding:"omitempty,min=0"`
}

// SearchMessagesDTO 消息搜索
type SearchMessagesDTO struct {
	Query          string `form:"query"`
	ConversationID string `form:"conversationId"`
	Cursor         string `form:"cursor"`
	Limit          int    `form:"limit" binding:"omitempty,min=1,max=100"`
}

type ReceiptDTO struct {
	UserID uint64    `json:"userId"`
	At     time.Time `json:"at"`
}

type ReactionDTO struct {
	UserID    uint64    `json:"userId"`
	Emoji     string    `json:"emoji"`
	ReactedAt time.Time `json:"reactedAt"`
}

type StatusTimestampsDTO struct {
	Sent      *time.Time `json:"sent,omitempty"`
	Delivered *time.Time `json:"delivered,omitempty"`
	Read      *time.Time `json:"read,omitempty"`
}

// MessageDTO 填充了发送者、媒体与被回复消息的消息
type MessageDTO struct {
	ID               string              `json:"id"`
	ConversationID   string              `json:"conversationId"`
	SenderID         uint64              `json:"senderId"`
	Sender           *UserDTO            `json:"sender,omitempty"`
	Content          string              `json:"content"`
	MessageType      string              `json:"messageType"`
	Media            []MediaDTO          `json:"media"`
	ReplyTo          *MessageDTO         `json:"replyTo,omitempty"`
	Status           string              `json:"status"`
	StatusTimestamps StatusTimestampsDTO `json:"statusTimestamps"`
	ReadBy           []ReceiptDTO        `json:"readBy"`
	DeliveredTo      []ReceiptDTO        `json:"deliveredTo"`
	Edited           bool                `json:"edited"`
	EditedAt         *time.Time          `json:"editedAt,omitempty"`
	Deleted          bool                `json:"deleted"`
	DeletedAt        *time.Time          `json:"deletedAt,omitempty"`
	Reactions        []ReactionDTO       `json:"reactions"`
	CreatedAt        time.Time           `json:"createdAt"`
	UpdatedAt        time.Time           `json:"updatedAt"`
}

// SearchResultDTO 搜索结果，NextCursor 为空表示没有更多
type SearchResultDTO struct {
	Messages   []*MessageDTO `json:"messages"`
	NextCursor string        `json:"nextCursor,omitempty"`
}
