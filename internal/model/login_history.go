package model

import "time"

// LoginHistory 会话登录、登出与撤销记录
type LoginHistory struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	UserID    uint64    `gorm:"index:idx_user_created,priority:1"`
	SessionID uint64    `gorm:"index"`
	EventType string    `gorm:"type:varchar(16);index"`
	IP        string    `gorm:"type:varchar(64)"`
	UserAgent string    `gorm:"type:varchar(512)"`
	CreatedAt time.Time `gorm:"index:idx_user_created,priority:2"`
}

func (LoginHistory) TableName() string {
	return "login_history"
}
