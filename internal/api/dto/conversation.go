package dto

import "time"

// ParticipantDTO 会话成员
type ParticipantDTO struct {
	UserDTO
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

type NotificationSettingDTO struct {
	Muted     bool       `json:"muted"`
	MuteUntil *time.Time `json:"muteUntil,omitempty"`
}

// ConversationDTO 会话，未读数、归档与通知设置均为当前用户视角
type ConversationDTO struct {
	ID                   string                 `json:"id"`
	IsGroup              bool                   `json:"isGroup"`
	Participants         []ParticipantDTO       `json:"participants"`
	Admins               []uint64               `json:"admins"`
	Moderators           []uint64               `json:"moderators"`
	GroupName            string                 `json:"groupName,omitempty"`
	GroupDescription     string                 `json:"groupDescription,omitempty"`
	GroupAvatar          string                 `json:"groupAvatar,omitempty"`
	CreatorID            uint64                 `json:"creatorId,omitempty"`
	LastMessage          *MessageDTO            `json:"lastMessage"`
	UnreadCount          int64                  `json:"unreadCount"`
	Archived             bool                   `json:"archived"`
	NotificationSettings NotificationSettingDTO `json:"notificationSettings"`
	CreatedAt            time.Time              `json:"createdAt"`
	UpdatedAt            time.Time              `json:"updatedAt"`
}

// ListConversationsDTO 会话列表查询
type ListConversationsDTO struct {
	Filter string `form:"filter" binding:"omitempty,oneof=group direct archived"`
	Search string `form:"search"`
}

// CreateConversationDTO 获取或创建单聊
type CreateConversationDTO struct {
	ParticipantID uint64 `json:"participantId" binding:"required"`
}

// CreateGroupDTO 创建群聊
type CreateGroupDTO struct {
	ParticipantIDs   []uint64 `json:"participantIds"`
	GroupName        string   `json:"groupName"`
	GroupDescription string   `json:"groupDescription"`
}

// UpdateGroupInfoDTO 更新群资料，未传字段不修改
type UpdateGroupInfoDTO struct {
	GroupName        *string `json:"groupName" binding:"omitempty,min=1,max=100"`
	GroupDescription *string `json:"groupDescription" binding:"omitempty,max=500"`
	GroupAvatar      *string `json:"groupAvatar"`
}

type AddMembersDTO struct {
	UserIDs []uint64 `json:"userIds" binding:"required,min=1"`
}

type NotificationSettingsDTO struct {
	Muted     bool       `json:"muted"`
	MuteUntil *time.Time `json:"muteUntil"`
}

type ArchiveResultDTO struct {
	Archived bool `json:"archived"`
}
