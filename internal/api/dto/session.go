package dto

import "time"

type SessionDTO struct {
	ID           uint64     `json:"id"`
	IP           string     `json:"ip"`
	UserAgent    string     `json:"userAgent"`
	LastActivity *time.Time `json:"lastActivity,omitempty"`
	ExpiresAt    time.Time  `json:"expiresAt"`
	CreatedAt    time.Time  `json:"createdAt"`
	Current      bool       `json:"current"`
}

// LoginHistoryQueryDTO 登录历史分页与过滤
type LoginHistoryQueryDTO struct {
	Page      int    `form:"page" binding:"omitempty,min=1"`
	Limit     int    `form:"limit" binding:"omitempty,min=1"`
	EventType string `form:"eventType" binding:"omitempty,oneof=login logout revoke"`
}

type LoginHistoryDTO struct {
	ID        uint64    `json:"id"`
	SessionID uint64    `json:"sessionId"`
	EventType string    `json:"eventType"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"userAgent"`
	CreatedAt time.Time `json:"createdAt"`
}

type LoginHistoryPageDTO struct {
	Page  int                `json:"page"`
	Limit int                `json:"limit"`
	Total int64              `json:"total"`
	Items []*LoginHistoryDTO `json:"items"`
}
