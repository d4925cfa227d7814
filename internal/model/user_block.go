package model

import "time"

// UserBlock BlockerID 屏蔽了 BlockedID
type UserBlock struct {
	BlockerID uint64    `gorm:"primaryKey" json:"blockerId"`
	BlockedID uint64    `gorm:"primaryKey;index:idx_blocked_id" json:"blockedId"`
	CreatedAt time.Time `json:"createdAt"`
}

func (UserBlock) TableName() string {
	return "user_blocks"
}
