package dto

import "time"

// UserDTO 用户公开信息
type UserDTO struct {
	ID        uint64     `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email,omitempty"`
	AvatarURL string     `json:"avatarUrl"`
	IsOnline  bool       `json:"isOnline"`
	LastSeen  *time.Time `json:"lastSeen,omitempty"`
}

// SearchUserDTO 搜索用户
type SearchUserDTO struct {
	Query string `form:"query" binding:"required"`
}

// BlockResultDTO 屏蔽切换结果
type BlockResultDTO struct {
	Message string `json:"message"`
	Blocked bool   `json:"blocked"`
}
