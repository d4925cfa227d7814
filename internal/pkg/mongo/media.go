package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Media 上传的媒体文件，发送消息时被引用
type Media struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty"`
	OwnerID        uint64              `bson:"owner_id"`
	Type           string              `bson:"type"`
	ObjectKey      string              `bson:"object_key"`
	MimeType       string              `bson:"mime_type"`
	Size           int64               `bson:"size"`
	Filename       string              `bson:"filename"`
	Attached       bool                `bson:"attached"`
	ConversationID *primitive.ObjectID `bson:"conversation_id,omitempty"`
	MessageID      *primitive.ObjectID `bson:"message_id,omitempty"`
	DeletedAt      *time.Time          `bson:"deleted_at,omitempty"`
	CreatedAt      time.Time           `bson:"created_at"`
}

// Deleted 已被上传者软删除
func (m *Media) Deleted() bool {
	return m.DeletedAt != nil
}
