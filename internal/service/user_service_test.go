package service

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestUserDirectory(t *testing.T) {
	users := newFakeUserRepo(map[uint64]string{alice: "alice", bob: "bob", carol: "carol"})
	svc := NewUserService(users)
	ctx := context.Background()

	list, err := svc.ListUsers(ctx, alice)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(list) != 2 || list[0].Username != "bob" || list[1].Username != "carol" {
		t.Fatalf("ListUsers = %+v", list)
	}

	found, err := svc.SearchUsers(ctx, alice, " CAR ")
	if err != nil {
		t.Fatalf("SearchUsers: %v", err)
	}
	if len(found) != 1 || found[0].ID != carol {
		t.Fatalf("SearchUsers = %+v", found)
	}
	if _, err = svc.SearchUsers(ctx, alice, ""); !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("empty search = %v", err)
	}

	if _, err = svc.GetUser(ctx, 42); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("GetUser unknown = %v", err)
	}

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	if err = svc.SetPresence(ctx, bob, true, at); err != nil {
		t.Fatalf("SetPresence: %v", err)
	}
	got, err := svc.GetUser(ctx, bob)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if !got.IsOnline || got.LastSeen == nil || !got.LastSeen.Equal(at) {
		t.Fatalf("presence = %+v", got)
	}
}

func TestToggleBlock(t *testing.T) {
	users := newFakeUserRepo(map[uint64]string{alice: "alice", bob: "bob"})
	svc := NewBlockService(newFakeBlockRepo(), users)
	ctx := context.Background()

	if _, err := svc.ToggleBlock(ctx, alice, alice); !errors.Is(err, ErrBlockSelf) {
		t.Fatalf("self block = %v", err)
	}
	if _, err := svc.ToggleBlock(ctx, alice, 42); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown target = %v", err)
	}

	res, err := svc.ToggleBlock(ctx, alice, bob)
	if err != nil || !res.Blocked || res.Message != "User blocked" {
		t.Fatalf("block = (%+v, %v)", res, err)
	}
	for _, pair := range [][2]uint64{{alice, bob}, {bob, alice}} {
		ok, err := svc.CanExchange(ctx, pair[0], pair[1])
		if err != nil || ok {
			t.Fatalf("CanExchange(%d, %d) = (%v, %v), want false", pair[0], pair[1], ok, err)
		}
	}
	blocked, err := svc.ListBlocked(ctx, alice)
	if err != nil || len(blocked) != 1 || blocked[0].ID != bob {
		t.Fatalf("ListBlocked = (%+v, %v)", blocked, err)
	}

	res, err = svc.ToggleBlock(ctx, alice, bob)
	if err != nil || res.Blocked || res.Message != "User unblocked" {
		t.Fatalf("unblock = (%+v, %v)", res, err)
	}
	if ok, _ := svc.CanExchange(ctx, bob, alice); !ok {
		t.Fatal("CanExchange should be true after unblock")
	}
}
