package dto

import "time"

// MediaDTO 媒体引用，URL 为预签名地址
type MediaDTO struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	URL       string    `json:"url"`
	MimeType  string    `json:"mimeType"`
	Size      int64     `json:"size"`
	Filename  string    `json:"filename"`
	CreatedAt time.Time `json:"createdAt"`
}

// ConversationMediaDTO 会话媒体列表项
type ConversationMediaDTO struct {
	MediaDTO
	MessageID string   `json:"messageId,omitempty"`
	Uploader  *UserDTO `json:"uploader"`
}

// ListMediaDTO 会话媒体分页
type ListMediaDTO struct {
	Limit int `form:"limit" binding:"omitempty,min=1"`
	Skip  int `form:"skip" binding:"omitempty,min=0"`
}
