package model

import (
	"time"
)

// User 用户目录，由外部注册服务维护，本服务只读写在线状态
type User struct {
	ID        uint64     `gorm:"primaryKey"`
	Username  string     `gorm:"type:varchar(50);uniqueIndex:idx_username"`
	Email     string     `gorm:"type:varchar(255);uniqueIndex:idx_email"`
	AvatarURL string     `gorm:"type:varchar(512);column:avatar_url"`
	IsOnline  bool       `gorm:"type:tinyint(1);default:0"`
	LastSeen  *time.Time `gorm:"index"`
	IsDelete  bool       `gorm:"type:tinyint(1);default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (User) TableName() string {
	return "users"
}
