package service

import (
	"Chatline/internal/api/dto"
	"Chatline/internal/model"
	"Chatline/internal/pkg/consts"
	"Chatline/internal/pkg/mongo"
	"Chatline/internal/pkg/util"
	"bytes"
	"context"
	"io"
	"maps"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	mongodrv "go.mongodb.org/mongo-driver/mongo"
)

// clock 每次调用前进一秒，保证排序稳定
func clock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

// ---- conversations ----

type fakeConvRepo struct {
	mu   sync.Mutex
	docs map[primitive.ObjectID]*mongo.Conversation
}

func newFakeConvRepo() *fakeConvRepo {
	return &fakeConvRepo{docs: make(map[primitive.ObjectID]*mongo.Conversation)}
}

func cloneConv(c *mongo.Conversation) *mongo.Conversation {
	out := *c
	out.Participants = slices.Clone(c.Participants)
	out.ArchivedBy = slices.Clone(c.ArchivedBy)
	out.UnreadCounts = maps.Clone(c.UnreadCounts)
	out.NotificationSettings = maps.Clone(c.NotificationSettings)
	return &out
}

func (r *fakeConvRepo) insert(c *mongo.Conversation) {
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	if c.UnreadCounts == nil {
		c.UnreadCounts = make(map[string]int64)
	}
	for _, p := range c.Participants {
		c.UnreadCounts[mongo.UserKey(p.UserID)] = 0
	}
	if c.ArchivedBy == nil {
		c.ArchivedBy = []uint64{}
	}
	if c.NotificationSettings == nil {
		c.NotificationSettings = make(map[string]mongo.NotificationSetting)
	}
	r.docs[c.ID] = cloneConv(c)
}

func (r *fakeConvRepo) Create(_ context.Context, conv *mongo.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.insert(conv)
	return nil
}

func (r *fakeConvRepo) GetOrCreateDirect(_ context.Context, a, b uint64, now time.Time) (*mongo.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := mongo.PeerKey(a, b)
	for _, c := range r.docs {
		if c.PeerKey == key {
			c.DeletedAt = nil
			return cloneConv(c), nil
		}
	}
	conv := &mongo.Conversation{
		PeerKey: key,
		Participants: []mongo.Participant{
			{UserID: a, Role: consts.RoleMember, JoinedAt: now},
			{UserID: b, Role: consts.RoleMember, JoinedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.insert(conv)
	return cloneConv(conv), nil
}

func (r *fakeConvRepo) live(id primitive.ObjectID) *mongo.Conversation {
	c, ok := r.docs[id]
	if !ok || c.IsDeleted() {
		return nil
	}
	return c
}

func (r *fakeConvRepo) member(id primitive.ObjectID, uid uint64) *mongo.Conversation {
	c := r.live(id)
	if c == nil || !c.HasParticipant(uid) {
		return nil
	}
	return c
}

func (r *fakeConvRepo) FindByID(_ context.Context, id primitive.ObjectID) (*mongo.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.docs[id]; ok {
		return cloneConv(c), nil
	}
	return nil, nil
}

func (r *fakeConvRepo) FindActiveForParticipant(_ context.Context, id primitive.ObjectID, uid uint64) (*mongo.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c := r.member(id, uid); c != nil {
		return cloneConv(c), nil
	}
	return nil, nil
}

func (r *fakeConvRepo) ListByParticipant(_ context.Context, uid uint64) ([]*mongo.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*mongo.Conversation, 0)
	for _, c := range r.docs {
		if !c.IsDeleted() && c.HasParticipant(uid) {
			out = append(out, cloneConv(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *fakeConvRepo) SetLastMessage(_ context.Context, id, messageID primitive.ObjectID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c := r.live(id); c != nil {
		c.LastMessageID = &messageID
		c.UpdatedAt = at
	}
	return nil
}

func (r *fakeConvRepo) IncrementUnread(_ context.Context, id primitive.ObjectID, uids []uint64) (map[uint64]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[uint64]int64, len(uids))
	if len(uids) == 0 {
		return counts, nil
	}
	c := r.live(id)
	if c == nil {
		return nil, mongodrv.ErrNoDocuments
	}
	for _, uid := range c.KeepParticipants(uids) {
		c.UnreadCounts[mongo.UserKey(uid)]++
		counts[uid] = c.UnreadOf(uid)
	}
	return counts, nil
}

func (r *fakeConvRepo) ResetUnread(_ context.Context, id primitive.ObjectID, uid uint64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.member(id, uid)
	if c == nil {
		return false, nil
	}
	c.UnreadCounts[mongo.UserKey(uid)] = 0
	return true, nil
}

func (r *fakeConvRepo) SetArchived(_ context.Context, id primitive.ObjectID, uid uint64, archived bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.member(id, uid)
	if c == nil {
		return false, nil
	}
	c.ArchivedBy = slices.DeleteFunc(c.ArchivedBy, func(v uint64) bool { return v == uid })
	if archived {
		c.ArchivedBy = append(c.ArchivedBy, uid)
	}
	return true, nil
}

func (r *fakeConvRepo) SoftDelete(_ context.Context, id primitive.ObjectID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c := r.live(id); c != nil {
		c.DeletedAt = &at
	}
	return nil
}

func (r *fakeConvRepo) UpdateGroupInfo(_ context.Context, id primitive.ObjectID, update mongo.GroupInfoUpdate, at time.Time) (*mongo.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.live(id)
	if c == nil {
		return nil, nil
	}
	if update.Name != nil {
		c.GroupName = *update.Name
	}
	if update.Description != nil {
		c.GroupDescription = *update.Description
	}
	if update.Avatar != nil {
		c.GroupAvatar = *update.Avatar
	}
	c.UpdatedAt = at
	return cloneConv(c), nil
}

func (r *fakeConvRepo) AddParticipants(_ context.Context, id primitive.ObjectID, entries []mongo.Participant, at time.Time) (*mongo.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.live(id)
	if c == nil {
		return nil, nil
	}
	for _, e := range entries {
		if c.HasParticipant(e.UserID) {
			return nil, nil
		}
	}
	for _, e := range entries {
		c.Participants = append(c.Participants, e)
		c.UnreadCounts[mongo.UserKey(e.UserID)] = 0
	}
	c.UpdatedAt = at
	return cloneConv(c), nil
}

func (r *fakeConvRepo) RemoveParticipant(_ context.Context, id primitive.ObjectID, uid uint64, at time.Time) (*mongo.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.member(id, uid)
	if c == nil {
		return nil, nil
	}
	c.Participants = slices.DeleteFunc(c.Participants, func(p mongo.Participant) bool { return p.UserID == uid })
	c.ArchivedBy = slices.DeleteFunc(c.ArchivedBy, func(v uint64) bool { return v == uid })
	delete(c.UnreadCounts, mongo.UserKey(uid))
	delete(c.NotificationSettings, mongo.UserKey(uid))
	c.UpdatedAt = at
	return cloneConv(c), nil
}

func (r *fakeConvRepo) SetRole(_ context.Context, id primitive.ObjectID, uid uint64, role string, at time.Time) (*mongo.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.member(id, uid)
	if c == nil {
		return nil, nil
	}
	for i := range c.Participants {
		if c.Participants[i].UserID == uid {
			c.Participants[i].Role = role
		}
	}
	c.UpdatedAt = at
	return cloneConv(c), nil
}

func (r *fakeConvRepo) SetNotificationSetting(_ context.Context, id primitive.ObjectID, uid uint64, setting mongo.NotificationSetting) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.member(id, uid)
	if c == nil {
		return false, nil
	}
	c.NotificationSettings[mongo.UserKey(uid)] = setting
	return true, nil
}

// ---- messages ----

type fakeMessageRepo struct {
	mu   sync.Mutex
	docs map[primitive.ObjectID]*mongo.Message
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{docs: make(map[primitive.ObjectID]*mongo.Message)}
}

func cloneMessage(m *mongo.Message) *mongo.Message {
	out := *m
	out.MediaIDs = slices.Clone(m.MediaIDs)
	out.ReadBy = slices.Clone(m.ReadBy)
	out.DeliveredTo = slices.Clone(m.DeliveredTo)
	out.Reactions = slices.Clone(m.Reactions)
	return &out
}

func (r *fakeMessageRepo) get(id primitive.ObjectID) *mongo.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.docs[id]; ok {
		return cloneMessage(m)
	}
	return nil
}

func (r *fakeMessageRepo) Create(_ context.Context, msg *mongo.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	r.docs[msg.ID] = cloneMessage(msg)
	return nil
}

func (r *fakeMessageRepo) FindByID(_ context.Context, id primitive.ObjectID) (*mongo.Message, error) {
	return r.get(id), nil
}

func (r *fakeMessageRepo) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]*mongo.Message, error) {
	out := make([]*mongo.Message, 0, len(ids))
	for _, id := range ids {
		if m := r.get(id); m != nil {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeMessageRepo) sorted(match func(*mongo.Message) bool) []*mongo.Message {
	out := make([]*mongo.Message, 0)
	for _, m := range r.docs {
		if match(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.Hex() > out[j].ID.Hex()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (r *fakeMessageRepo) ListByConversation(_ context.Context, convID primitive.ObjectID, limit, skip int) ([]*mongo.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.sorted(func(m *mongo.Message) bool { return m.ConversationID == convID })
	out := make([]*mongo.Message, 0, limit)
	for i := skip; i < len(all) && len(out) < limit; i++ {
		out = append(out, cloneMessage(all[i]))
	}
	return out, nil
}

func pushReceipt(list []mongo.Receipt, uid uint64, at time.Time) ([]mongo.Receipt, bool) {
	for _, r := range list {
		if r.UserID == uid {
			return list, false
		}
	}
	return append(list, mongo.Receipt{UserID: uid, At: at}), true
}

func (r *fakeMessageRepo) MarkDelivered(_ context.Context, id primitive.ObjectID, uid uint64, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.docs[id]
	if !ok {
		return false, nil
	}
	var added bool
	m.DeliveredTo, added = pushReceipt(m.DeliveredTo, uid, at)
	return added, nil
}

func (r *fakeMessageRepo) MarkRead(_ context.Context, id primitive.ObjectID, uid uint64, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.docs[id]
	if !ok {
		return false, nil
	}
	var added bool
	m.ReadBy, added = pushReceipt(m.ReadBy, uid, at)
	return added, nil
}

func advance(m *mongo.Message, status string, at time.Time) bool {
	if mongo.StatusRank(m.Status) >= mongo.StatusRank(status) {
		return false
	}
	m.Status = status
	switch status {
	case mongo.StatusDelivered:
		m.StatusTimestamps.Delivered = &at
	case mongo.StatusRead:
		m.StatusTimestamps.Read = &at
	}
	m.UpdatedAt = at
	return true
}

func (r *fakeMessageRepo) AdvanceStatus(_ context.Context, id primitive.ObjectID, status string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.docs[id]
	if !ok {
		return false, nil
	}
	return advance(m, status, at), nil
}

func (r *fakeMessageRepo) MarkConversationRead(_ context.Context, convID primitive.ObjectID, uid uint64, at time.Time) ([]primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]primitive.ObjectID, 0)
	for _, m := range r.sorted(func(m *mongo.Message) bool {
		return m.ConversationID == convID && m.SenderID != uid && !m.IsReadBy(uid)
	}) {
		m.ReadBy, _ = pushReceipt(m.ReadBy, uid, at)
		m.DeliveredTo, _ = pushReceipt(m.DeliveredTo, uid, at)
		advance(m, mongo.StatusRead, at)
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func (r *fakeMessageRepo) MarkSeen(_ context.Context, ids []primitive.ObjectID, uid uint64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		m, ok := r.docs[id]
		if !ok || m.SenderID == uid {
			continue
		}
		m.ReadBy, _ = pushReceipt(m.ReadBy, uid, at)
		m.DeliveredTo, _ = pushReceipt(m.DeliveredTo, uid, at)
	}
	return nil
}

func (r *fakeMessageRepo) UpdateContent(_ context.Context, id primitive.ObjectID, content string, at time.Time) (*mongo.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.docs[id]
	if !ok || m.Deleted {
		return nil, nil
	}
	m.Content = content
	m.Edited = true
	m.EditedAt = &at
	m.UpdatedAt = at
	return cloneMessage(m), nil
}

func (r *fakeMessageRepo) PullMedia(_ context.Context, id, mediaID primitive.ObjectID, at time.Time) (*mongo.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.docs[id]
	if !ok {
		return nil, nil
	}
	m.MediaIDs = slices.DeleteFunc(m.MediaIDs, func(x primitive.ObjectID) bool { return x == mediaID })
	m.UpdatedAt = at
	return cloneMessage(m), nil
}

func (r *fakeMessageRepo) SoftDelete(_ context.Context, id primitive.ObjectID, at time.Time) (*mongo.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.docs[id]
	if !ok || m.Deleted {
		return nil, nil
	}
	m.Deleted = true
	m.DeletedAt = &at
	m.UpdatedAt = at
	return cloneMessage(m), nil
}

func (r *fakeMessageRepo) SetReactions(_ context.Context, id primitive.ObjectID, reactions []mongo.Reaction, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.docs[id]; ok {
		m.Reactions = slices.Clone(reactions)
		m.UpdatedAt = at
	}
	return nil
}

func (r *fakeMessageRepo) Search(_ context.Context, convIDs []primitive.ObjectID, query string, after *mongo.SearchAfter, limit int) ([]*mongo.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.sorted(func(m *mongo.Message) bool {
		if m.Deleted || !slices.Contains(convIDs, m.ConversationID) || !util.ContainsFold(m.Content, query) {
			return false
		}
		if after == nil {
			return true
		}
		return m.CreatedAt.Before(after.CreatedAt) ||
			(m.CreatedAt.Equal(after.CreatedAt) && m.ID.Hex() < after.ID.Hex())
	})
	out := make([]*mongo.Message, 0, limit)
	for _, m := range all {
		if len(out) == limit {
			break
		}
		out = append(out, cloneMessage(m))
	}
	return out, nil
}

// ---- media ----

type fakeMediaRepo struct {
	mu   sync.Mutex
	docs map[primitive.ObjectID]*mongo.Media
}

func newFakeMediaRepo() *fakeMediaRepo {
	return &fakeMediaRepo{docs: make(map[primitive.ObjectID]*mongo.Media)}
}

func (r *fakeMediaRepo) Create(_ context.Context, media *mongo.Media) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if media.ID.IsZero() {
		media.ID = primitive.NewObjectID()
	}
	cp := *media
	r.docs[media.ID] = &cp
	return nil
}

func (r *fakeMediaRepo) FindByID(_ context.Context, id primitive.ObjectID) (*mongo.Media, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.docs[id]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, nil
}

func (r *fakeMediaRepo) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*mongo.Media, error) {
	out := make([]*mongo.Media, 0, len(ids))
	for _, id := range ids {
		if m, _ := r.FindByID(ctx, id); m != nil && !m.Deleted() {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeMediaRepo) MarkAttached(_ context.Context, ids []primitive.ObjectID, convID, msgID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		if m, ok := r.docs[id]; ok && !m.Attached {
			m.Attached = true
			m.ConversationID = &convID
			m.MessageID = &msgID
		}
	}
	return nil
}

func (r *fakeMediaRepo) ListByConversation(_ context.Context, convID primitive.ObjectID, limit, skip int) ([]*mongo.Media, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]*mongo.Media, 0)
	for _, m := range r.docs {
		if m.ConversationID != nil && *m.ConversationID == convID && !m.Deleted() {
			cp := *m
			all = append(all, &cp)
		}
	}
	slices.SortFunc(all, func(a, b *mongo.Media) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return bytes.Compare(b.ID[:], a.ID[:])
	})
	if skip >= len(all) {
		return []*mongo.Media{}, nil
	}
	all = all[skip:]
	return all[:min(limit, len(all))], nil
}

func (r *fakeMediaRepo) SoftDelete(_ context.Context, id primitive.ObjectID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.docs[id]
	if !ok || m.Deleted() {
		return false, nil
	}
	m.DeletedAt = &at
	return true, nil
}

func (r *fakeMediaRepo) ListUnattachedBefore(_ context.Context, before time.Time, limit int) ([]*mongo.Media, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*mongo.Media, 0)
	for _, m := range r.docs {
		if !m.Attached && m.CreatedAt.Before(before) && len(out) < limit {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeMediaRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.docs, id)
	return nil
}

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (s *fakeStorage) Upload(_ context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = buf.Bytes()
	return key, nil
}

func (s *fakeStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *fakeStorage) URL(_ context.Context, key string) (string, error) {
	return "http://storage.test/" + key, nil
}

func (s *fakeStorage) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

// ---- users, blocks, sessions ----

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uint64]*model.User
}

func newFakeUserRepo(names map[uint64]string) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[uint64]*model.User)}
	for id, name := range names {
		r.users[id] = &model.User{ID: id, Username: name, Email: name + "@example.com"}
	}
	return r
}

func (r *fakeUserRepo) GetUserById(_ context.Context, id uint64) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (r *fakeUserRepo) GetUserByIds(ctx context.Context, ids []uint64) ([]*model.User, error) {
	out := make([]*model.User, 0, len(ids))
	for _, id := range util.UniqueUint64(ids) {
		if u, _ := r.GetUserById(ctx, id); u != nil {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) all(excludeID uint64, match func(*model.User) bool) []*model.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.User, 0)
	for _, u := range r.users {
		if u.ID != excludeID && match(u) {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

func (r *fakeUserRepo) ListUsers(_ context.Context, excludeID uint64) ([]*model.User, error) {
	return r.all(excludeID, func(*model.User) bool { return true }), nil
}

func (r *fakeUserRepo) SearchUsers(_ context.Context, excludeID uint64, keyword string, limit int) ([]*model.User, error) {
	out := r.all(excludeID, func(u *model.User) bool {
		return util.ContainsFold(u.Username, keyword) || util.ContainsFold(u.Email, keyword)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeUserRepo) UpdatePresence(_ context.Context, id uint64, online bool, lastSeen time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		u.IsOnline = online
		u.LastSeen = &lastSeen
	}
	return nil
}

type fakeBlockRepo struct {
	mu     sync.Mutex
	blocks map[[2]uint64]time.Time
}

func newFakeBlockRepo() *fakeBlockRepo {
	return &fakeBlockRepo{blocks: make(map[[2]uint64]time.Time)}
}

func (r *fakeBlockRepo) GetUserBlock(_ context.Context, blockerID, blockedID uint64) (*model.UserBlock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if at, ok := r.blocks[[2]uint64{blockerID, blockedID}]; ok {
		return &model.UserBlock{BlockerID: blockerID, BlockedID: blockedID, CreatedAt: at}, nil
	}
	return nil, nil
}

func (r *fakeBlockRepo) GetBlockedIDs(_ context.Context, blockerID uint64) ([]uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]uint64, 0)
	for k := range r.blocks {
		if k[0] == blockerID {
			out = append(out, k[1])
		}
	}
	slices.Sort(out)
	return out, nil
}

func (r *fakeBlockRepo) ExistsEitherWay(_ context.Context, a, b uint64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ab := r.blocks[[2]uint64{a, b}]
	_, ba := r.blocks[[2]uint64{b, a}]
	return ab || ba, nil
}

func (r *fakeBlockRepo) CreateUserBlock(_ context.Context, block *model.UserBlock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := [2]uint64{block.BlockerID, block.BlockedID}
	if _, ok := r.blocks[key]; !ok {
		r.blocks[key] = block.CreatedAt
	}
	return nil
}

func (r *fakeBlockRepo) DeleteUserBlock(_ context.Context, blockerID, blockedID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.blocks, [2]uint64{blockerID, blockedID})
	return nil
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	nextID   uint64
	sessions map[uint64]*model.Session
	touches  int
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[uint64]*model.Session)}
}

func (r *fakeSessionRepo) CreateSession(_ context.Context, session *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	session.ID = r.nextID
	cp := *session
	r.sessions[session.ID] = &cp
	return nil
}

func (r *fakeSessionRepo) GetActiveByJTI(_ context.Context, jti string, userID uint64) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.JTI == jti && s.UserID == userID && !s.Revoked && s.EndedAt == nil {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeSessionRepo) GetSession(_ context.Context, id, userID uint64) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok && s.UserID == userID {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (r *fakeSessionRepo) ListActive(_ context.Context, userID uint64) ([]*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Session, 0)
	for _, s := range r.sessions {
		if s.UserID == userID && !s.Revoked && s.EndedAt == nil {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeSessionRepo) Revoke(_ context.Context, id uint64, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.Revoked {
		return false, nil
	}
	s.Revoked = true
	s.EndedAt = &at
	return true, nil
}

func (r *fakeSessionRepo) TouchActivity(_ context.Context, id uint64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.LastActivity = &at
		r.touches++
	}
	return nil
}

func (r *fakeSessionRepo) PurgeInactive(_ context.Context, idleBefore time.Time, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.sessions {
		if s.EndedAt != nil {
			continue
		}
		idle := s.LastActivity != nil && s.LastActivity.Before(idleBefore)
		if idle || !now.Before(s.ExpiresAt) {
			s.EndedAt = &now
			n++
		}
	}
	return n, nil
}

type fakeLoginHistoryRepo struct {
	mu      sync.Mutex
	nextID  uint64
	entries []*model.LoginHistory
}

func (r *fakeLoginHistoryRepo) Create(_ context.Context, entry *model.LoginHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	entry.ID = r.nextID
	cp := *entry
	r.entries = append(r.entries, &cp)
	return nil
}

func (r *fakeLoginHistoryRepo) List(_ context.Context, userID uint64, eventType string, offset, limit int) ([]*model.LoginHistory, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	matched := make([]*model.LoginHistory, 0)
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if e.UserID == userID && (eventType == "" || e.EventType == eventType) {
			cp := *e
			matched = append(matched, &cp)
		}
	}
	total := int64(len(matched))
	if offset >= len(matched) {
		return []*model.LoginHistory{}, total, nil
	}
	matched = matched[offset:]
	return matched[:min(limit, len(matched))], total, nil
}

// ---- notifier ----

type emitted struct {
	userID  uint64
	event   string
	payload any
}

type recordingNotifier struct {
	mu       sync.Mutex
	online   map[uint64]int
	events   []emitted
	detached map[uint64][]string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{online: make(map[uint64]int), detached: make(map[uint64][]string)}
}

func (n *recordingNotifier) connect(uid uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.online[uid]++
}

func (n *recordingNotifier) IsOnline(uid uint64) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.online[uid] > 0
}

func (n *recordingNotifier) EmitToUser(uid uint64, event string, payload any) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	conns := n.online[uid]
	if conns > 0 {
		n.events = append(n.events, emitted{userID: uid, event: event, payload: payload})
	}
	return conns
}

func (n *recordingNotifier) EmitToConversation(string, string, any, string) int { return 0 }

func (n *recordingNotifier) DetachUserFromConversation(uid uint64, conversationID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.detached[uid] = append(n.detached[uid], conversationID)
}

// received 发给 uid 的某类事件
func (n *recordingNotifier) received(uid uint64, event string) []any {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]any, 0)
	for _, e := range n.events {
		if e.userID == uid && e.event == event {
			out = append(out, e.payload)
		}
	}
	return out
}

func (n *recordingNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = nil
}

// ---- environment ----

const (
	alice uint64 = 1
	bob   uint64 = 2
	carol uint64 = 3
	dave  uint64 = 4
)

type testEnv struct {
	convRepo    *fakeConvRepo
	messageRepo *fakeMessageRepo
	mediaRepo   *fakeMediaRepo
	userRepo    *fakeUserRepo
	blockRepo   *fakeBlockRepo
	storage     *fakeStorage
	notifier    *recordingNotifier
	ledger      UnreadLedger
	blocks      BlockService
	messages    *MessageServiceImpl
	convs       *ConversationServiceImpl
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		convRepo:    newFakeConvRepo(),
		messageRepo: newFakeMessageRepo(),
		mediaRepo:   newFakeMediaRepo(),
		userRepo:    newFakeUserRepo(map[uint64]string{alice: "alice", bob: "bob", carol: "carol", dave: "dave"}),
		blockRepo:   newFakeBlockRepo(),
		storage:     newFakeStorage(),
		notifier:    newRecordingNotifier(),
	}
	env.ledger = NewUnreadLedger(env.convRepo)
	env.blocks = NewBlockService(env.blockRepo, env.userRepo)

	now := clock()
	env.messages = NewMessageService(env.convRepo, env.messageRepo, env.mediaRepo, env.userRepo,
		env.ledger, env.blocks, env.notifier, env.storage, nil, nil).(*MessageServiceImpl)
	env.messages.now = now
	env.convs = NewConversationService(env.convRepo, env.messageRepo, env.mediaRepo, env.userRepo,
		env.blocks, env.notifier, env.storage).(*ConversationServiceImpl)
	env.convs.now = now
	return env
}

func (e *testEnv) direct(t *testing.T, a, b uint64) string {
	t.Helper()
	conv, err := e.convs.GetOrCreateDirect(context.Background(), a, b)
	if err != nil {
		t.Fatalf("GetOrCreateDirect: %v", err)
	}
	return conv.ID
}

func (e *testEnv) group(t *testing.T, admin uint64, members ...uint64) string {
	t.Helper()
	conv, err := e.convs.CreateGroup(context.Background(), admin, &dto.CreateGroupDTO{ParticipantIDs: members, GroupName: "team"})
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	return conv.ID
}

func (e *testEnv) unread(t *testing.T, conversationID string, uid uint64) int64 {
	t.Helper()
	id, _ := primitive.ObjectIDFromHex(conversationID)
	n, err := e.ledger.Count(context.Background(), id, uid)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	return n
}
