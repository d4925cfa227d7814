package service

import (
	"Chatline/internal/api/dto"
	"Chatline/internal/pkg/mongo"
	"Chatline/internal/pkg/util"
	"context"
	"fmt"
	"io"
	log "log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	maxUploadBytes    = 50 << 20
	mediaCleanupBatch = 200
	maxFilenameRunes  = 255
)

type MediaService interface {
	Upload(ctx context.Context, userID uint64, file io.ReadSeeker, filename string, size int64) (*dto.MediaDTO, error)
	Get(ctx context.Context, userID uint64, mediaID string) (*dto.MediaDTO, error)
	CleanupUnattached(ctx context.Context, maxAge time.Duration) (int, error)
}

type MediaServiceImpl struct {
	mediaRepo mongo.MediaRepo
	storage   ObjectStorage
	populate  *populator
	now       func() time.Time
}

func NewMediaService(mediaRepo mongo.MediaRepo, storage ObjectStorage) MediaService {
	return &MediaServiceImpl{
		mediaRepo: mediaRepo,
		storage:   storage,
		populate:  &populator{mediaRepo: mediaRepo, storage: storage},
		now:       time.Now,
	}
}

// Upload 按内容嗅探类型后写入对象存储并登记，发送消息前处于未关联状态
func (s *MediaServiceImpl) Upload(ctx context.Context, userID uint64, file io.ReadSeeker, filename string, size int64) (*dto.MediaDTO, error) {
	if size <= 0 || size > maxUploadBytes {
		return nil, fmt.Errorf("%w: file size", ErrParamInvalid)
	}
	contentType, err := util.GetSafeContentType(file)
	if err != nil {
		return nil, err
	}
	mediaType := util.MediaTypeOf(contentType)
	if mediaType == "" {
		return nil, ErrFileNotSupported
	}

	filename = sanitizeFilename(filename)
	key := fmt.Sprintf("media/%d/%s%s", userID, uuid.NewString(), strings.ToLower(filepath.Ext(filename)))
	if _, err = s.storage.Upload(ctx, key, file, size, contentType); err != nil {
		return nil, err
	}

	media := &mongo.Media{
		OwnerID:   userID,
		Type:      mediaType,
		ObjectKey: key,
		MimeType:  contentType,
		Size:      size,
		Filename:  filename,
		CreatedAt: s.now(),
	}
	if err = s.mediaRepo.Create(ctx, media); err != nil {
		if delErr := s.storage.Delete(ctx, key); delErr != nil {
			log.WarnContext(ctx, "failed to remove orphan object", "key", key, "err", delErr)
		}
		return nil, err
	}
	out := s.populate.mediaDTO(ctx, media)
	return &out, nil
}

func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	if r := []rune(name); len(r) > maxFilenameRunes {
		name = string(r[:maxFilenameRunes])
	}
	return name
}

// Get 上传者本人或已被消息引用的媒体可读取
func (s *MediaServiceImpl) Get(ctx context.Context, userID uint64, mediaID string) (*dto.MediaDTO, error) {
	id, err := parseObjectID(mediaID)
	if err != nil {
		return nil, err
	}
	media, err := s.mediaRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if media == nil || media.Deleted() || (media.OwnerID != userID && !media.Attached) {
		return nil, ErrMediaNotFound
	}
	out := s.populate.mediaDTO(ctx, media)
	return &out, nil
}

// CleanupUnattached 删除超过 maxAge 仍未被引用的上传
func (s *MediaServiceImpl) CleanupUnattached(ctx context.Context, maxAge time.Duration) (int, error) {
	stale, err := s.mediaRepo.ListUnattachedBefore(ctx, s.now().Add(-maxAge), mediaCleanupBatch)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, m := range stale {
		if err = s.storage.Delete(ctx, m.ObjectKey); err != nil {
			log.WarnContext(ctx, "failed to delete media object", "key", m.ObjectKey, "err", err)
			continue
		}
		if err = s.mediaRepo.Delete(ctx, m.ID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
