package dto

import "time"

// 客户端事件载荷

type RoomPayload struct {
	ConversationID string `json:"conversationId" binding:"required"`
}

type TypingPayload struct {
	ConversationID string `json:"conversationId" binding:"required"`
	IsTyping       bool   `json:"isTyping"`
}

// 服务端事件载荷

type NewMessageNotificationDTO struct {
	ConversationID string      `json:"conversationId"`
	Message        *MessageDTO `json:"message"`
	UnreadCount    int64       `json:"unreadCount"`
}

type MessageStatusUpdateDTO struct {
	MessageID      string    `json:"messageId"`
	ConversationID string    `json:"conversationId"`
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
	UserID         uint64    `json:"userId,omitempty"`
}

type MessagesReadDTO struct {
	ConversationID string `json:"conversationId"`
}

type UserTypingDTO struct {
	UserID         uint64 `json:"userId"`
	Username       string `json:"username"`
	ConversationID string `json:"conversationId"`
	IsTyping       bool   `json:"isTyping"`
}

type PresenceChangedDTO struct {
	UserID   uint64    `json:"userId"`
	IsOnline bool      `json:"isOnline"`
	LastSeen time.Time `json:"lastSeen"`
}

// ConversationUserDTO 归档、取消归档与删除事件
type ConversationUserDTO struct {
	ConversationID string `json:"conversationId"`
	UserID         uint64 `json:"userId"`
}

type GroupInfoUpdatedDTO struct {
	ConversationID   string `json:"conversationId"`
	GroupName        string `json:"groupName"`
	GroupDescription string `json:"groupDescription"`
	GroupAvatar      string `json:"groupAvatar"`
	UpdatedBy        uint64 `json:"updatedBy"`
}

type GroupMembersAddedDTO struct {
	ConversationID string           `json:"conversationId"`
	Members        []ParticipantDTO `json:"members"`
	AddedBy        uint64           `json:"addedBy"`
}

type GroupMemberRemovedDTO struct {
	ConversationID string `json:"conversationId"`
	UserID         uint64 `json:"userId"`
	RemovedBy      uint64 `json:"removedBy"`
}

type MemberPromotedDTO struct {
	ConversationID string `json:"conversationId"`
	UserID         uint64 `json:"userId"`
	Role           string `json:"role"`
	PromotedBy     uint64 `json:"promotedBy"`
}

type NotificationSettingsUpdatedDTO struct {
	ConversationID string     `json:"conversationId"`
	Muted          bool       `json:"muted"`
	MuteUntil      *time.Time `json:"muteUntil,omitempty"`
}

type MessageDeletedDTO struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
}

type MessageReactionDTO struct {
	MessageID      string        `json:"messageId"`
	ConversationID string        `json:"conversationId"`
	Reactions      []ReactionDTO `json:"reactions"`
}

// ErrorPayload error 帧载荷
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
