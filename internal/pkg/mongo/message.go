package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// 消息状态，只允许单调前进
const (
	StatusPending   = "pending"
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
)

var statusOrder = []string{StatusPending, StatusSent, StatusDelivered, StatusRead}

// Receipt 送达或已读回执
type Receipt struct {
	UserID uint64    `bson:"user_id"`
	At     time.Time `bson:"at"`
}

// Reaction 表情回应，每个用户最多一个
type Reaction struct {
	UserID    uint64    `bson:"user_id"`
	Emoji     string    `bson:"emoji"`
	ReactedAt time.Time `bson:"reacted_at"`
}

type StatusTimestamps struct {
	Sent      *time.Time `bson:"sent,omitempty"`
	Delivered *time.Time `bson:"delivered,omitempty"`
	Read      *time.Time `bson:"read,omitempty"`
}

// Message MongoDB 消息明细模型
type Message struct {
	ID               primitive.ObjectID   `bson:"_id,omitempty"`
	ConversationID   primitive.ObjectID   `bson:"conversation_id"`
	SenderID         uint64               `bson:"sender_id"`
	Content          string               `bson:"content"`
	MessageType      string               `bson:"message_type"`
	MediaIDs         []primitive.ObjectID `bson:"media_ids,omitempty"`
	ReplyTo          *primitive.ObjectID  `bson:"reply_to,omitempty"`
	Status           string               `bson:"status"`
	StatusTimestamps StatusTimestamps     `bson:"status_timestamps"`
	ReadBy           []Receipt            `bson:"read_by"`
	DeliveredTo      []Receipt            `bson:"delivered_to"`
	Edited           bool                 `bson:"edited"`
	EditedAt         *time.Time           `bson:"edited_at,omitempty"`
	Deleted          bool                 `bson:"deleted"`
	DeletedAt        *time.Time           `bson:"deleted_at,omitempty"`
	Reactions        []Reaction           `bson:"reactions"`
	CreatedAt        time.Time            `bson:"created_at"`
	UpdatedAt        time.Time            `bson:"updated_at"`
}

// StatusRank 状态序号，未知状态为 -1
func StatusRank(status string) int {
	for i, s := range statusOrder {
		if s == status {
			return i
		}
	}
	return -1
}

// StatusesBelow 所有低于 status 的状态，用作条件更新的过滤
func StatusesBelow(status string) []string {
	rank := StatusRank(status)
	if rank <= 0 {
		return []string{}
	}
	return append([]string{}, statusOrder[:rank]...)
}

func (m *Message) IsReadBy(uid uint64) bool {
	return hasReceipt(m.ReadBy, uid)
}

func (m *Message) IsDeliveredTo(uid uint64) bool {
	return hasReceipt(m.DeliveredTo, uid)
}

func hasReceipt(list []Receipt, uid uint64) bool {
	for _, r := range list {
		if r.UserID == uid {
			return true
		}
	}
	return false
}

// ApplyReaction 相同表情取消，不同表情替换，返回新的列表与是否处于已回应状态
func ApplyReaction(reactions []Reaction, uid uint64, emoji string, now time.Time) ([]Reaction, bool) {
	out := make([]Reaction, 0, len(reactions)+1)
	removedSame := false
	for _, r := range reactions {
		if r.UserID != uid {
			out = append(out, r)
			continue
		}
		if r.Emoji == emoji {
			removedSame = true
		}
	}
	if removedSame {
		return out, false
	}
	return append(out, Reaction{UserID: uid, Emoji: emoji, ReactedAt: now}), true
}
