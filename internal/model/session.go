package model

import "time"

// Session 登录会话，JWT 中的 jti 对应一条记录
type Session struct {
	ID           uint64     `gorm:"primaryKey;autoIncrement"`
	JTI          string     `gorm:"column:jti;type:varchar(64);uniqueIndex:idx_jti"`
	UserID       uint64     `gorm:"index:idx_user_active"`
	IP           string     `gorm:"type:varchar(64)"`
	UserAgent    string     `gorm:"type:varchar(512)"`
	Revoked      bool       `gorm:"type:tinyint(1);default:0;index:idx_user_active"`
	EndedAt      *time.Time `gorm:"index"`
	LastActivity *time.Time
	ExpiresAt    time.Time `gorm:"index"`
	CreatedAt    time.Time
}

func (Session) TableName() string {
	return "sessions"
}

// Active 未撤销、未结束且未过期
func (s *Session) Active(now time.Time) bool {
	return !s.Revoked && s.EndedAt == nil && now.Before(s.ExpiresAt)
}
