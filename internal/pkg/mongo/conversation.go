package mongo

import (
	"Chatline/internal/pkg/consts"
	"fmt"
	"slices"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Participant 会话成员，角色为 admin / moderator / member
type Participant struct {
	UserID   uint64    `bson:"user_id" json:"userId"`
	Role     string    `bson:"role" json:"role"`
	JoinedAt time.Time `bson:"joined_at" json:"joinedAt"`
}

// NotificationSetting 成员的免打扰设置
type NotificationSetting struct {
	Muted     bool       `bson:"muted" json:"muted"`
	MuteUntil *time.Time `bson:"mute_until,omitempty" json:"muteUntil,omitempty"`
}

// Conversation 会话文档，单聊与群聊共用
type Conversation struct {
	ID                   primitive.ObjectID             `bson:"_id,omitempty"`
	IsGroup              bool                           `bson:"is_group"`
	PeerKey              string                         `bson:"peer_key,omitempty"` // 单聊 "<min>_<max>"
	Participants         []Participant                  `bson:"participants"`
	GroupName            string                         `bson:"group_name,omitempty"`
	GroupDescription     string                         `bson:"group_description,omitempty"`
	GroupAvatar          string                         `bson:"group_avatar,omitempty"`
	CreatorID            uint64                         `bson:"creator_id,omitempty"`
	LastMessageID        *primitive.ObjectID            `bson:"last_message_id,omitempty"`
	UnreadCounts         map[string]int64               `bson:"unread_counts"`
	ArchivedBy           []uint64                       `bson:"archived_by"`
	NotificationSettings map[string]NotificationSetting `bson:"notification_settings"`
	DeletedAt            *time.Time                     `bson:"deleted_at,omitempty"`
	CreatedAt            time.Time                      `bson:"created_at"`
	UpdatedAt            time.Time                      `bson:"updated_at"`
}

// PeerKey 单聊双方的规范键
func PeerKey(a, b uint64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d_%d", a, b)
}

// UserKey map 字段中使用的用户键
func UserKey(uid uint64) string {
	return strconv.FormatUint(uid, 10)
}

func (c *Conversation) IsDeleted() bool {
	return c.DeletedAt != nil
}

func (c *Conversation) HasParticipant(uid uint64) bool {
	return c.indexOf(uid) >= 0
}

// RoleOf 返回成员角色，非成员返回空串
func (c *Conversation) RoleOf(uid uint64) string {
	if i := c.indexOf(uid); i >= 0 {
		return c.Participants[i].Role
	}
	return ""
}

func (c *Conversation) IsAdmin(uid uint64) bool {
	return c.RoleOf(uid) == consts.RoleAdmin
}

func (c *Conversation) ParticipantIDs() []uint64 {
	ids := make([]uint64, 0, len(c.Participants))
	for _, p := range c.Participants {
		ids = append(ids, p.UserID)
	}
	return ids
}

// IDsWithRole 按角色筛选成员
func (c *Conversation) IDsWithRole(role string) []uint64 {
	ids := make([]uint64, 0)
	for _, p := range c.Participants {
		if p.Role == role {
			ids = append(ids, p.UserID)
		}
	}
	return ids
}

// OtherParticipant 单聊中的对方，不存在返回 0
func (c *Conversation) OtherParticipant(uid uint64) uint64 {
	for _, p := range c.Participants {
		if p.UserID != uid {
			return p.UserID
		}
	}
	return 0
}

// KeepParticipants 过滤掉已不在会话中的 uid
func (c *Conversation) KeepParticipants(uids []uint64) []uint64 {
	out := make([]uint64, 0, len(uids))
	for _, uid := range uids {
		if c.HasParticipant(uid) {
			out = append(out, uid)
		}
	}
	return out
}

func (c *Conversation) UnreadOf(uid uint64) int64 {
	return c.UnreadCounts[UserKey(uid)]
}

func (c *Conversation) IsArchivedBy(uid uint64) bool {
	return slices.Contains(c.ArchivedBy, uid)
}

func (c *Conversation) NotificationOf(uid uint64) NotificationSetting {
	return c.NotificationSettings[UserKey(uid)]
}

func (c *Conversation) indexOf(uid uint64) int {
	for i, p := range c.Participants {
		if p.UserID == uid {
			return i
		}
	}
	return -1
}
