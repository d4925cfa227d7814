package mongo

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// testDB 连接 MONGODB_URI 指向的实例，未设置时跳过
func testDB(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	db := client.Database("chatline_test_" + primitive.NewObjectID().Hex())
	if err = EnsureIndexes(ctx, db); err != nil {
		t.Fatalf("indexes: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	return db
}

func TestGetOrCreateDirectIsIdempotent(t *testing.T) {
	db := testDB(t)
	repo := NewConversationRepo(db)
	ctx := context.Background()

	first, err := repo.GetOrCreateDirect(ctx, 1, 2, time.Now())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := repo.GetOrCreateDirect(ctx, 2, 1, time.Now())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("ids differ: %s vs %s", first.ID.Hex(), second.ID.Hex())
	}

	if err = repo.SoftDelete(ctx, first.ID, time.Now()); err != nil {
		t.Fatalf("delete: %v", err)
	}
	revived, err := repo.GetOrCreateDirect(ctx, 1, 2, time.Now())
	if err != nil {
		t.Fatalf("revive: %v", err)
	}
	if revived.ID != first.ID || revived.IsDeleted() {
		t.Fatal("soft deleted conversation was not revived")
	}
}

func TestIncrementUnreadConcurrent(t *testing.T) {
	db := testDB(t)
	repo := NewConversationRepo(db)
	ctx := context.Background()

	conv, err := repo.GetOrCreateDirect(ctx, 1, 2, time.Now())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.IncrementUnread(ctx, conv.ID, []uint64{2}); err != nil {
				t.Errorf("increment: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := repo.FindByID(ctx, conv.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.UnreadOf(2) != n {
		t.Fatalf("unread = %d, want %d", got.UnreadOf(2), n)
	}

	ok, err := repo.ResetUnread(ctx, conv.ID, 2)
	if err != nil || !ok {
		t.Fatalf("reset: %v %v", ok, err)
	}
	ok, err = repo.ResetUnread(ctx, conv.ID, 99)
	if err != nil || ok {
		t.Fatalf("reset non participant: %v %v", ok, err)
	}
}

func TestRemoveParticipantPurgesState(t *testing.T) {
	db := testDB(t)
	repo := NewConversationRepo(db)
	ctx := context.Background()
	now := time.Now()

	conv := &Conversation{
		IsGroup:   true,
		GroupName: "team",
		CreatorID: 1,
		Participants: []Participant{
			{UserID: 1, Role: "admin", JoinedAt: now},
			{UserID: 2, Role: "member", JoinedAt: now},
			{UserID: 3, Role: "admin", JoinedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.Create(ctx, conv); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.SetArchived(ctx, conv.ID, 3, true); err != nil {
		t.Fatalf("archive: %v", err)
	}

	after, err := repo.RemoveParticipant(ctx, conv.ID, 3, now)
	if err != nil || after == nil {
		t.Fatalf("remove: %v", err)
	}
	if after.HasParticipant(3) || after.IsArchivedBy(3) {
		t.Fatal("removed member still present")
	}
	if _, ok := after.UnreadCounts["3"]; ok {
		t.Fatal("unread entry not removed")
	}

	again, err := repo.RemoveParticipant(ctx, conv.ID, 3, now)
	if err != nil || again != nil {
		t.Fatalf("second remove should match nothing: %v", err)
	}
}

func TestIncrementUnreadSkipsRemovedMember(t *testing.T) {
	db := testDB(t)
	repo := NewConversationRepo(db)
	ctx := context.Background()
	now := time.Now()

	conv := &Conversation{
		IsGroup: true,
		Participants: []Participant{
			{UserID: 1, Role: "admin", JoinedAt: now},
			{UserID: 2, Role: "member", JoinedAt: now},
			{UserID: 3, Role: "member", JoinedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.Create(ctx, conv); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.RemoveParticipant(ctx, conv.ID, 3, now); err != nil {
		t.Fatalf("remove: %v", err)
	}

	// 发送方仍持有旧的成员列表
	counts, err := repo.IncrementUnread(ctx, conv.ID, []uint64{2, 3})
	if err != nil {
		t.Fatalf("increment: %v", err)
	}
	if counts[2] != 1 {
		t.Fatalf("member unread = %d, want 1", counts[2])
	}
	if _, ok := counts[3]; ok {
		t.Fatal("removed member got a count")
	}
	got, _ := repo.FindByID(ctx, conv.ID)
	if _, ok := got.UnreadCounts["3"]; ok {
		t.Fatal("unread key recreated for removed member")
	}
}

func TestStatusNeverRegresses(t *testing.T) {
	db := testDB(t)
	repo := NewMessageRepo(db)
	ctx := context.Background()

	msg := &Message{ConversationID: primitive.NewObjectID(), SenderID: 1, Content: "hi", Status: StatusSent, CreatedAt: time.Now()}
	if err := repo.Create(ctx, msg); err != nil {
		t.Fatalf("create: %v", err)
	}
	if ok, _ := repo.AdvanceStatus(ctx, msg.ID, StatusRead, time.Now()); !ok {
		t.Fatal("sent -> read should advance")
	}
	if ok, _ := repo.AdvanceStatus(ctx, msg.ID, StatusDelivered, time.Now()); ok {
		t.Fatal("read -> delivered must not advance")
	}
	got, _ := repo.FindByID(ctx, msg.ID)
	if got.Status != StatusRead {
		t.Fatalf("status = %s", got.Status)
	}

	for i := 0; i < 2; i++ {
		if _, err := repo.MarkDelivered(ctx, msg.ID, 2, time.Now()); err != nil {
			t.Fatalf("deliver: %v", err)
		}
	}
	got, _ = repo.FindByID(ctx, msg.ID)
	if len(got.DeliveredTo) != 1 {
		t.Fatalf("deliveredTo = %d entries, want 1", len(got.DeliveredTo))
	}
}

func TestMediaSoftDeleteAndConversationListing(t *testing.T) {
	db := testDB(t)
	media := NewMediaRepo(db)
	messages := NewMessageRepo(db)
	ctx := context.Background()
	convID := primitive.NewObjectID()
	base := time.Now().Truncate(time.Millisecond)

	a := &Media{OwnerID: 1, Type: "image", ObjectKey: "a", CreatedAt: base}
	b := &Media{OwnerID: 1, Type: "image", ObjectKey: "b", CreatedAt: base.Add(time.Second)}
	for _, m := range []*Media{a, b} {
		if err := media.Create(ctx, m); err != nil {
			t.Fatalf("create media: %v", err)
		}
	}
	msg := &Message{ConversationID: convID, SenderID: 1, MediaIDs: []primitive.ObjectID{a.ID, b.ID}, CreatedAt: base}
	if err := messages.Create(ctx, msg); err != nil {
		t.Fatalf("create message: %v", err)
	}
	if err := media.MarkAttached(ctx, []primitive.ObjectID{a.ID, b.ID}, convID, msg.ID); err != nil {
		t.Fatalf("attach: %v", err)
	}
	// 已关联的媒体不会被改到另一条消息
	if err := media.MarkAttached(ctx, []primitive.ObjectID{a.ID}, primitive.NewObjectID(), primitive.NewObjectID()); err != nil {
		t.Fatalf("reattach: %v", err)
	}

	list, err := media.ListByConversation(ctx, convID, 10, 0)
	if err != nil || len(list) != 2 || list[0].ID != b.ID || *list[1].MessageID != msg.ID {
		t.Fatalf("ListByConversation = %v, %v", list, err)
	}

	ok, err := media.SoftDelete(ctx, a.ID, base)
	if err != nil || !ok {
		t.Fatalf("SoftDelete = (%v, %v)", ok, err)
	}
	if ok, _ = media.SoftDelete(ctx, a.ID, base); ok {
		t.Fatal("second SoftDelete reported a change")
	}
	updated, err := messages.PullMedia(ctx, msg.ID, a.ID, base)
	if err != nil || len(updated.MediaIDs) != 1 || updated.MediaIDs[0] != b.ID {
		t.Fatalf("PullMedia = %+v, %v", updated, err)
	}

	found, _ := media.FindByIDs(ctx, []primitive.ObjectID{a.ID, b.ID})
	list, _ = media.ListByConversation(ctx, convID, 10, 0)
	if len(found) != 1 || len(list) != 1 || list[0].ID != b.ID {
		t.Fatalf("deleted media still visible: found=%d listed=%d", len(found), len(list))
	}
}
