package mongo

import (
	"Chatline/internal/api/config"
	"Chatline/internal/pkg/logger"
	"context"
	log "log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	conversationCollection = "conversations"
	messageCollection      = "messages"
	mediaCollection        = "media"
)

// InitMongo 建立连接并返回 Database 引用，同时初始化索引
func InitMongo(cfg config.MongoConfig) (*mongo.Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 建立连接
	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(cfg.URL).
		SetMonitor(logger.NewMongoMonitor(200*time.Millisecond)),
	)
	if err != nil {
		return nil, err
	}

	// 检查连通性
	if err = client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	db := client.Database(cfg.Database)

	if err = EnsureIndexes(ctx, db); err != nil {
		return nil, err
	}

	log.Info("MongoDB initialized successfully", "db", cfg.Database)
	return db, nil
}

// EnsureIndexes 创建集合索引，重复执行无副作用
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(conversationCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			// 单聊对唯一，群聊不带 peer_key
			Keys: bson.D{{Key: "peer_key", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"peer_key": bson.M{"$type": "string"}}),
		},
		{Keys: bson.D{{Key: "participants.user_id", Value: 1}, {Key: "updated_at", Value: -1}}},
	})
	if err != nil {
		return err
	}

	_, err = db.Collection(messageCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "read_by.user_id", Value: 1}}},
	})
	if err != nil {
		return err
	}

	_, err = db.Collection(mediaCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner_id", Value: 1}}},
		{Keys: bson.D{{Key: "attached", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	return err
}

// Disconnect 关闭客户端
func Disconnect(ctx context.Context, db *mongo.Database) error {
	if db == nil {
		return nil
	}
	return db.Client().Disconnect(ctx)
}
