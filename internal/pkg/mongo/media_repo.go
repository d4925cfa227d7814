package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MediaRepo interface {
	Create(ctx context.Context, media *Media) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*Media, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*Media, error)
	MarkAttached(ctx context.Context, ids []primitive.ObjectID, convID, msgID primitive.ObjectID) error
	ListByConversation(ctx context.Context, convID primitive.ObjectID, limit, skip int) ([]*Media, error)
	ListUnattachedBefore(ctx context.Context, before time.Time, limit int) ([]*Media, error)
	SoftDelete(ctx context.Context, id primitive.ObjectID, at time.Time) (bool, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type mediaRepoImpl struct {
	col *mongo.Collection
}

func NewMediaRepo(db *mongo.Database) MediaRepo {
	return &mediaRepoImpl{
		col: db.Collection(mediaCollection),
	}
}

func (s *mediaRepoImpl) Create(ctx context.Context, media *Media) error {
	if media.ID.IsZero() {
		media.ID = primitive.NewObjectID()
	}
	_, err := s.col.InsertOne(ctx, media)
	return err
}

func (s *mediaRepoImpl) FindByID(ctx context.Context, id primitive.ObjectID) (*Media, error) {
	var media Media
	if err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&media); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &media, nil
}

func (s *mediaRepoImpl) find(ctx context.Context, filter any, opts ...*options.FindOptions) ([]*Media, error) {
	cursor, err := s.col.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	list := make([]*Media, 0)
	if err = cursor.All(ctx, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *mediaRepoImpl) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*Media, error) {
	if len(ids) == 0 {
		return []*Media{}, nil
	}
	return s.find(ctx, bson.M{"_id": bson.M{"$in": ids}, "deleted_at": nil})
}

// MarkAttached 记录媒体被哪条消息引用，已被引用的不会被改写
func (s *mediaRepoImpl) MarkAttached(ctx context.Context, ids []primitive.ObjectID, convID, msgID primitive.ObjectID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.col.UpdateMany(ctx, bson.M{"_id": bson.M{"$in": ids}, "attached": false}, bson.M{
		"$set": bson.M{"attached": true, "conversation_id": convID, "message_id": msgID},
	})
	return err
}

// ListByConversation 会话内未删除的媒体，最新的在前
func (s *mediaRepoImpl) ListByConversation(ctx context.Context, convID primitive.ObjectID, limit, skip int) ([]*Media, error) {
	filter := bson.M{"conversation_id": convID, "deleted_at": nil}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(skip)).
		SetLimit(int64(limit))
	return s.find(ctx, filter, opts)
}

// ListUnattachedBefore 超过保留期仍未被消息引用的媒体
func (s *mediaRepoImpl) ListUnattachedBefore(ctx context.Context, before time.Time, limit int) ([]*Media, error) {
	filter := bson.M{"attached": false, "created_at": bson.M{"$lt": before}}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(int64(limit))
	return s.find(ctx, filter, opts)
}

// SoftDelete 标记删除，已删除的返回 false
func (s *mediaRepoImpl) SoftDelete(ctx context.Context, id primitive.ObjectID, at time.Time) (bool, error) {
	res, err := s.col.UpdateOne(ctx, bson.M{"_id": id, "deleted_at": nil}, bson.M{
		"$set": bson.M{"deleted_at": at},
	})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (s *mediaRepoImpl) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.col.DeleteOne(ctx, bson.M{"_id": id})
	return err
}
