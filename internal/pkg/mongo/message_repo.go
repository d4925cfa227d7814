package mongo

import (
	"context"
	"errors"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SearchAfter 搜索游标，按 (created_at, _id) 倒序翻页
type SearchAfter struct {
	CreatedAt time.Time
	ID        primitive.ObjectID
}

type MessageRepo interface {
	Create(ctx context.Context, msg *Message) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*Message, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*Message, error)
	ListByConversation(ctx context.Context, convID primitive.ObjectID, limit, skip int) ([]*Message, error)
	MarkDelivered(ctx context.Context, id primitive.ObjectID, uid uint64, at time.Time) (bool, error)
	MarkRead(ctx context.Context, id primitive.ObjectID, uid uint64, at time.Time) (bool, error)
	AdvanceStatus(ctx context.Context, id primitive.ObjectID, status string, at time.Time) (bool, error)
	MarkConversationRead(ctx context.Context, convID primitive.ObjectID, uid uint64, at time.Time) ([]primitive.ObjectID, error)
	MarkSeen(ctx context.Context, ids []primitive.ObjectID, uid uint64, at time.Time) error
	UpdateContent(ctx context.Context, id primitive.ObjectID, content string, at time.Time) (*Message, error)
	SoftDelete(ctx context.Context, id primitive.ObjectID, at time.Time) (*Message, error)
	PullMedia(ctx context.Context, id, mediaID primitive.ObjectID, at time.Time) (*Message, error)
	SetReactions(ctx context.Context, id primitive.ObjectID, reactions []Reaction, at time.Time) error
	Search(ctx context.Context, convIDs []primitive.ObjectID, query string, after *SearchAfter, limit int) ([]*Message, error)
}

type messageRepoImpl struct {
	col *mongo.Collection
}

func NewMessageRepo(db *mongo.Database) MessageRepo {
	return &messageRepoImpl{
		col: db.Collection(messageCollection),
	}
}

func decodeMessage(res *mongo.SingleResult) (*Message, error) {
	var msg Message
	if err := res.Decode(&msg); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

func (s *messageRepoImpl) findMany(ctx context.Context, filter any, opts ...*options.FindOptions) ([]*Message, error) {
	cursor, err := s.col.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	messages := make([]*Message, 0)
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// Create 将消息存入 MongoDB
func (s *messageRepoImpl) Create(ctx context.Context, msg *Message) error {
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	if msg.ReadBy == nil {
		msg.ReadBy = []Receipt{}
	}
	if msg.DeliveredTo == nil {
		msg.DeliveredTo = []Receipt{}
	}
	if msg.Reactions == nil {
		msg.Reactions = []Reaction{}
	}
	_, err := s.col.InsertOne(ctx, msg)
	return err
}

func (s *messageRepoImpl) FindByID(ctx context.Context, id primitive.ObjectID) (*Message, error) {
	return decodeMessage(s.col.FindOne(ctx, bson.M{"_id": id}))
}

func (s *messageRepoImpl) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*Message, error) {
	if len(ids) == 0 {
		return []*Message{}, nil
	}
	return s.findMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

// ListByConversation 历史消息，最新的在前
func (s *messageRepoImpl) ListByConversation(ctx context.Context, convID primitive.ObjectID, limit, skip int) ([]*Message, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(skip))
	return s.findMany(ctx, bson.M{"conversation_id": convID}, opts)
}

// pushReceipt $ne 过滤保证同一用户只出现一次
func (s *messageRepoImpl) pushReceipt(ctx context.Context, field string, id primitive.ObjectID, uid uint64, at time.Time) (bool, error) {
	filter := bson.M{"_id": id, field + ".user_id": bson.M{"$ne": uid}}
	res, err := s.col.UpdateOne(ctx, filter, bson.M{
		"$push": bson.M{field: Receipt{UserID: uid, At: at}},
	})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (s *messageRepoImpl) MarkDelivered(ctx context.Context, id primitive.ObjectID, uid uint64, at time.Time) (bool, error) {
	return s.pushReceipt(ctx, "delivered_to", id, uid, at)
}

func (s *messageRepoImpl) MarkRead(ctx context.Context, id primitive.ObjectID, uid uint64, at time.Time) (bool, error) {
	return s.pushReceipt(ctx, "read_by", id, uid, at)
}

// AdvanceStatus 仅当当前状态更低时更新，返回是否前进
func (s *messageRepoImpl) AdvanceStatus(ctx context.Context, id primitive.ObjectID, status string, at time.Time) (bool, error) {
	below := StatusesBelow(status)
	if len(below) == 0 {
		return false, nil
	}
	filter := bson.M{"_id": id, "status": bson.M{"$in": below}}
	res, err := s.col.UpdateOne(ctx, filter, bson.M{
		"$set": bson.M{
			"status":                     status,
			"status_timestamps." + status: at,
			"updated_at":                 at,
		},
	})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

// MarkConversationRead 将他人发送且 uid 未读的消息标记为已读，返回受影响的消息 ID
func (s *messageRepoImpl) MarkConversationRead(ctx context.Context, convID primitive.ObjectID, uid uint64, at time.Time) ([]primitive.ObjectID, error) {
	filter := bson.M{
		"conversation_id": convID,
		"sender_id":       bson.M{"$ne": uid},
		"read_by.user_id": bson.M{"$ne": uid},
	}
	cursor, err := s.col.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	ids := make([]primitive.ObjectID, 0)
	for cursor.Next(ctx) {
		var row struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err = cursor.Decode(&row); err != nil {
			return nil, err
		}
		ids = append(ids, row.ID)
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return ids, nil
	}

	if err = s.MarkSeen(ctx, ids, uid, at); err != nil {
		return nil, err
	}

	_, err = s.col.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "status": bson.M{"$in": StatusesBelow(StatusRead)}},
		bson.M{"$set": bson.M{
			"status":                 StatusRead,
			"status_timestamps.read": at,
			"updated_at":             at,
		}},
	)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// MarkSeen 为他人发送的消息追加 uid 的已读与送达回执，不改变聚合状态
func (s *messageRepoImpl) MarkSeen(ctx context.Context, ids []primitive.ObjectID, uid uint64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	for _, field := range []string{"read_by", "delivered_to"} {
		filter := bson.M{
			"_id":              bson.M{"$in": ids},
			"sender_id":        bson.M{"$ne": uid},
			field + ".user_id": bson.M{"$ne": uid},
		}
		_, err := s.col.UpdateMany(ctx, filter, bson.M{
			"$push": bson.M{field: Receipt{UserID: uid, At: at}},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// UpdateContent 编辑未删除的消息
func (s *messageRepoImpl) UpdateContent(ctx context.Context, id primitive.ObjectID, content string, at time.Time) (*Message, error) {
	filter := bson.M{"_id": id, "deleted": false}
	update := bson.M{"$set": bson.M{
		"content":    content,
		"edited":     true,
		"edited_at":  at,
		"updated_at": at,
	}}
	return decodeMessage(s.col.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)))
}

func (s *messageRepoImpl) SoftDelete(ctx context.Context, id primitive.ObjectID, at time.Time) (*Message, error) {
	filter := bson.M{"_id": id, "deleted": false}
	update := bson.M{"$set": bson.M{
		"deleted":    true,
		"deleted_at": at,
		"updated_at": at,
	}}
	return decodeMessage(s.col.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)))
}

// PullMedia 从消息中移除一个媒体引用，返回更新后的消息
func (s *messageRepoImpl) PullMedia(ctx context.Context, id, mediaID primitive.ObjectID, at time.Time) (*Message, error) {
	update := bson.M{
		"$pull": bson.M{"media_ids": mediaID},
		"$set":  bson.M{"updated_at": at},
	}
	return decodeMessage(s.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)))
}

func (s *messageRepoImpl) SetReactions(ctx context.Context, id primitive.ObjectID, reactions []Reaction, at time.Time) error {
	_, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"reactions": reactions, "updated_at": at},
	})
	return err
}

// Search 正则检索，未启用 Elasticsearch 时使用
func (s *messageRepoImpl) Search(ctx context.Context, convIDs []primitive.ObjectID, query string, after *SearchAfter, limit int) ([]*Message, error) {
	if len(convIDs) == 0 {
		return []*Message{}, nil
	}
	filter := bson.M{
		"conversation_id": bson.M{"$in": convIDs},
		"deleted":         false,
		"content": primitive.Regex{
			Pattern: regexp.QuoteMeta(query),
			Options: "i",
		},
	}
	if after != nil {
		filter["$or"] = bson.A{
			bson.M{"created_at": bson.M{"$lt": after.CreatedAt}},
			bson.M{"created_at": after.CreatedAt, "_id": bson.M{"$lt": after.ID}},
		}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))
	return s.findMany(ctx, filter, opts)
}
