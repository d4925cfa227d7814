package mongo

import (
	"Chatline/internal/pkg/consts"
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GroupInfoUpdate 群资料更新，nil 字段不修改
type GroupInfoUpdate struct {
	Name        *string
	Description *string
	Avatar      *string
}

type ConversationRepo interface {
	Create(ctx context.Context, conv *Conversation) error
	GetOrCreateDirect(ctx context.Context, a, b uint64, now time.Time) (*Conversation, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*Conversation, error)
	FindActiveForParticipant(ctx context.Context, id primitive.ObjectID, uid uint64) (*Conversation, error)
	ListByParticipant(ctx context.Context, uid uint64) ([]*Conversation, error)
	SetLastMessage(ctx context.Context, id, messageID primitive.ObjectID, at time.Time) error
	IncrementUnread(ctx context.Context, id primitive.ObjectID, uids []uint64) (map[uint64]int64, error)
	ResetUnread(ctx context.Context, id primitive.ObjectID, uid uint64) (bool, error)
	SetArchived(ctx context.Context, id primitive.ObjectID, uid uint64, archived bool) (bool, error)
	SoftDelete(ctx context.Context, id primitive.ObjectID, at time.Time) error
	UpdateGroupInfo(ctx context.Context, id primitive.ObjectID, update GroupInfoUpdate, at time.Time) (*Conversation, error)
	AddParticipants(ctx context.Context, id primitive.ObjectID, entries []Participant, at time.Time) (*Conversation, error)
	RemoveParticipant(ctx context.Context, id primitive.ObjectID, uid uint64, at time.Time) (*Conversation, error)
	SetRole(ctx context.Context, id primitive.ObjectID, uid uint64, role string, at time.Time) (*Conversation, error)
	SetNotificationSetting(ctx context.Context, id primitive.ObjectID, uid uint64, setting NotificationSetting) (bool, error)
}

type conversationRepoImpl struct {
	col *mongo.Collection
}

func NewConversationRepo(db *mongo.Database) ConversationRepo {
	return &conversationRepoImpl{
		col: db.Collection(conversationCollection),
	}
}

var returnAfter = options.FindOneAndUpdate().SetReturnDocument(options.After)

const maxIncrementAttempts = 3

func liveFilter(id primitive.ObjectID) bson.M {
	return bson.M{"_id": id, "deleted_at": nil}
}

func memberFilter(id primitive.ObjectID, uid uint64) bson.M {
	return bson.M{"_id": id, "deleted_at": nil, "participants.user_id": uid}
}

// decodeOne 不存在时返回 nil, nil
func decodeOne(res *mongo.SingleResult) (*Conversation, error) {
	var conv Conversation
	if err := res.Decode(&conv); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

// Create 创建群聊
func (s *conversationRepoImpl) Create(ctx context.Context, conv *Conversation) error {
	if conv.ID.IsZero() {
		conv.ID = primitive.NewObjectID()
	}
	if conv.UnreadCounts == nil {
		conv.UnreadCounts = make(map[string]int64, len(conv.Participants))
		for _, p := range conv.Participants {
			conv.UnreadCounts[UserKey(p.UserID)] = 0
		}
	}
	if conv.ArchivedBy == nil {
		conv.ArchivedBy = []uint64{}
	}
	if conv.NotificationSettings == nil {
		conv.NotificationSettings = map[string]NotificationSetting{}
	}
	_, err := s.col.InsertOne(ctx, conv)
	return err
}

// GetOrCreateDirect 按 peer_key 原子 upsert，已软删除的会话会被恢复
func (s *conversationRepoImpl) GetOrCreateDirect(ctx context.Context, a, b uint64, now time.Time) (*Conversation, error) {
	key := PeerKey(a, b)
	filter := bson.M{"peer_key": key}
	update := bson.M{
		"$setOnInsert": bson.M{
			"is_group": false,
			"participants": []Participant{
				{UserID: a, Role: consts.RoleMember, JoinedAt: now},
				{UserID: b, Role: consts.RoleMember, JoinedAt: now},
			},
			"unread_counts":         bson.M{UserKey(a): 0, UserKey(b): 0},
			"archived_by":           bson.A{},
			"notification_settings": bson.M{},
			"created_at":            now,
			"updated_at":            now,
		},
		"$unset": bson.M{"deleted_at": ""},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	conv, err := decodeOne(s.col.FindOneAndUpdate(ctx, filter, update, opts))
	if err != nil && mongo.IsDuplicateKeyError(err) {
		// 并发 upsert 的另一方已插入
		return decodeOne(s.col.FindOne(ctx, filter))
	}
	return conv, err
}

func (s *conversationRepoImpl) FindByID(ctx context.Context, id primitive.ObjectID) (*Conversation, error) {
	return decodeOne(s.col.FindOne(ctx, bson.M{"_id": id}))
}

// FindActiveForParticipant 未删除且包含 uid 的会话
func (s *conversationRepoImpl) FindActiveForParticipant(ctx context.Context, id primitive.ObjectID, uid uint64) (*Conversation, error) {
	return decodeOne(s.col.FindOne(ctx, memberFilter(id, uid)))
}

// ListByParticipant 用户参与的未删除会话，按更新时间倒序
func (s *conversationRepoImpl) ListByParticipant(ctx context.Context, uid uint64) ([]*Conversation, error) {
	filter := bson.M{"participants.user_id": uid, "deleted_at": nil}
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})

	cursor, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	list := make([]*Conversation, 0)
	if err = cursor.All(ctx, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *conversationRepoImpl) SetLastMessage(ctx context.Context, id, messageID primitive.ObjectID, at time.Time) error {
	_, err := s.col.UpdateOne(ctx, liveFilter(id), bson.M{
		"$set": bson.M{"last_message_id": messageID, "updated_at": at},
	})
	return err
}

// IncrementUnread 一次 $inc 递增多个成员的未读数，返回递增后的值
// 过滤条件要求 uids 全部仍是成员，成员变动导致未命中时收窄到当前成员后重试
func (s *conversationRepoImpl) IncrementUnread(ctx context.Context, id primitive.ObjectID, uids []uint64) (map[uint64]int64, error) {
	counts := make(map[uint64]int64, len(uids))
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"unread_counts": 1})

	for attempt := 0; attempt < maxIncrementAttempts; attempt++ {
		if len(uids) == 0 {
			return counts, nil
		}
		inc := bson.M{}
		for _, uid := range uids {
			inc["unread_counts."+UserKey(uid)] = 1
		}
		filter := liveFilter(id)
		filter["participants.user_id"] = bson.M{"$all": uids}

		conv, err := decodeOne(s.col.FindOneAndUpdate(ctx, filter, bson.M{"$inc": inc}, opts))
		if err != nil {
			return nil, err
		}
		if conv != nil {
			for _, uid := range uids {
				counts[uid] = conv.UnreadOf(uid)
			}
			return counts, nil
		}

		current, err := decodeOne(s.col.FindOne(ctx, liveFilter(id)))
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, mongo.ErrNoDocuments
		}
		uids = current.KeepParticipants(uids)
	}
	return nil, errors.New("conversation membership kept changing during unread increment")
}

// ResetUnread 未读清零，uid 不是成员时返回 false
func (s *conversationRepoImpl) ResetUnread(ctx context.Context, id primitive.ObjectID, uid uint64) (bool, error) {
	res, err := s.col.UpdateOne(ctx, memberFilter(id, uid), bson.M{
		"$set": bson.M{"unread_counts." + UserKey(uid): 0},
	})
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

// SetArchived 归档或取消归档，$addToSet 保证不重复
func (s *conversationRepoImpl) SetArchived(ctx context.Context, id primitive.ObjectID, uid uint64, archived bool) (bool, error) {
	op := "$pull"
	if archived {
		op = "$addToSet"
	}
	res, err := s.col.UpdateOne(ctx, memberFilter(id, uid), bson.M{
		op: bson.M{"archived_by": uid},
	})
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (s *conversationRepoImpl) SoftDelete(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	_, err := s.col.UpdateOne(ctx, liveFilter(id), bson.M{
		"$set": bson.M{"deleted_at": at, "updated_at": at},
	})
	return err
}

func (s *conversationRepoImpl) UpdateGroupInfo(ctx context.Context, id primitive.ObjectID, update GroupInfoUpdate, at time.Time) (*Conversation, error) {
	set := bson.M{"updated_at": at}
	if update.Name != nil {
		set["group_name"] = *update.Name
	}
	if update.Description != nil {
		set["group_description"] = *update.Description
	}
	if update.Avatar != nil {
		set["group_avatar"] = *update.Avatar
	}
	return decodeOne(s.col.FindOneAndUpdate(ctx, liveFilter(id), bson.M{"$set": set}, returnAfter))
}

// AddParticipants 追加成员并初始化其未读数，已在会话中的用户不会重复加入
func (s *conversationRepoImpl) AddParticipants(ctx context.Context, id primitive.ObjectID, entries []Participant, at time.Time) (*Conversation, error) {
	uids := make([]uint64, 0, len(entries))
	set := bson.M{"updated_at": at}
	for _, e := range entries {
		uids = append(uids, e.UserID)
		set["unread_counts."+UserKey(e.UserID)] = 0
	}
	filter := liveFilter(id)
	filter["participants.user_id"] = bson.M{"$nin": uids}

	update := bson.M{
		"$push": bson.M{"participants": bson.M{"$each": entries}},
		"$set":  set,
	}
	return decodeOne(s.col.FindOneAndUpdate(ctx, filter, update, returnAfter))
}

// RemoveParticipant 移除成员，同时清理角色、归档、未读与通知设置
func (s *conversationRepoImpl) RemoveParticipant(ctx context.Context, id primitive.ObjectID, uid uint64, at time.Time) (*Conversation, error) {
	key := UserKey(uid)
	update := bson.M{
		"$pull": bson.M{
			"participants": bson.M{"user_id": uid},
			"archived_by":  uid,
		},
		"$unset": bson.M{
			"unread_counts." + key:         "",
			"notification_settings." + key: "",
		},
		"$set": bson.M{"updated_at": at},
	}
	return decodeOne(s.col.FindOneAndUpdate(ctx, memberFilter(id, uid), update, returnAfter))
}

func (s *conversationRepoImpl) SetRole(ctx context.Context, id primitive.ObjectID, uid uint64, role string, at time.Time) (*Conversation, error) {
	update := bson.M{
		"$set": bson.M{"participants.$.role": role, "updated_at": at},
	}
	return decodeOne(s.col.FindOneAndUpdate(ctx, memberFilter(id, uid), update, returnAfter))
}

func (s *conversationRepoImpl) SetNotificationSetting(ctx context.Context, id primitive.ObjectID, uid uint64, setting NotificationSetting) (bool, error) {
	res, err := s.col.UpdateOne(ctx, memberFilter(id, uid), bson.M{
		"$set": bson.M{"notification_settings." + UserKey(uid): setting},
	})
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}
