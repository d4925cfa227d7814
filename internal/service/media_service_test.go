package service

import (
	"Chatline/internal/pkg/consts"
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func newMediaFixture() (*fakeMediaRepo, *fakeStorage, *MediaServiceImpl) {
	repo := newFakeMediaRepo()
	storage := newFakeStorage()
	return repo, storage, NewMediaService(repo, storage).(*MediaServiceImpl)
}

func TestUploadSniffsContentType(t *testing.T) {
	_, storage, svc := newMediaFixture()
	ctx := context.Background()

	media, err := svc.Upload(ctx, alice, bytes.NewReader(pngHeader), "../../avatar.PNG", int64(len(pngHeader)))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if media.Type != consts.MediaTypeImage || media.MimeType != "image/png" || media.Filename != "avatar.PNG" {
		t.Fatalf("media = %+v", media)
	}
	if len(storage.objects) != 1 {
		t.Fatalf("stored objects = %d", len(storage.objects))
	}

	binary := []byte{0x00, 0x01, 0x02, 0x03}
	if _, err = svc.Upload(ctx, alice, bytes.NewReader(binary), "x.png", int64(len(binary))); !errors.Is(err, ErrFileNotSupported) {
		t.Fatalf("unsupported upload = %v", err)
	}
	if _, err = svc.Upload(ctx, alice, bytes.NewReader(nil), "empty.png", 0); !errors.Is(err, ErrParamInvalid) {
		t.Fatalf("empty upload = %v", err)
	}
}

func TestMediaVisibility(t *testing.T) {
	repo, _, svc := newMediaFixture()
	ctx := context.Background()
	media, err := svc.Upload(ctx, alice, bytes.NewReader(pngHeader), "a.png", int64(len(pngHeader)))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if _, err = svc.Get(ctx, alice, media.ID); err != nil {
		t.Fatalf("owner Get: %v", err)
	}
	if _, err = svc.Get(ctx, bob, media.ID); !errors.Is(err, ErrMediaNotFound) {
		t.Fatalf("stranger Get before attach = %v", err)
	}

	id, _ := parseObjectID(media.ID)
	repo.docs[id].Attached = true
	if _, err = svc.Get(ctx, bob, media.ID); err != nil {
		t.Fatalf("Get after attach: %v", err)
	}
}

func TestCleanupUnattached(t *testing.T) {
	repo, storage, svc := newMediaFixture()
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }
	stale, _ := svc.Upload(ctx, alice, bytes.NewReader(pngHeader), "old.png", int64(len(pngHeader)))
	used, _ := svc.Upload(ctx, alice, bytes.NewReader(pngHeader), "used.png", int64(len(pngHeader)))
	usedID, _ := parseObjectID(used.ID)
	repo.docs[usedID].Attached = true

	svc.now = func() time.Time { return base.Add(2 * time.Hour) }
	fresh, _ := svc.Upload(ctx, alice, bytes.NewReader(pngHeader), "new.png", int64(len(pngHeader)))

	n, err := svc.CleanupUnattached(ctx, time.Hour)
	if err != nil || n != 1 {
		t.Fatalf("CleanupUnattached = (%d, %v), want 1", n, err)
	}
	if _, err = svc.Get(ctx, alice, stale.ID); !errors.Is(err, ErrMediaNotFound) {
		t.Fatalf("stale media still present: %v", err)
	}
	for _, m := range []string{used.ID, fresh.ID} {
		if _, err = svc.Get(ctx, alice, m); err != nil {
			t.Fatalf("kept media %s: %v", m, err)
		}
	}
	if len(storage.objects) != 2 {
		t.Fatalf("objects left = %d, want 2", len(storage.objects))
	}
}
