package service

import (
	"Chatline/internal/api/dto"
	"Chatline/internal/pkg/consts"
	"Chatline/internal/pkg/mongo"
	"Chatline/internal/repository"
	"context"
	"io"
	log "log/slog"
	"slices"

	"github.com/jinzhu/copier"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"
)

// ObjectStorage 媒体对象存储，由 minio.Storage 实现
type ObjectStorage interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	URL(ctx context.Context, key string) (string, error)
}

// populator 为消息与会话填充用户、媒体与被回复消息
type populator struct {
	userRepo    repository.UserRepo
	messageRepo mongo.MessageRepo
	mediaRepo   mongo.MediaRepo
	storage     ObjectStorage
}

func (p *populator) users(ctx context.Context, ids []uint64) (map[uint64]*dto.UserDTO, error) {
	out := make(map[uint64]*dto.UserDTO, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	users, err := p.userRepo.GetUserByIds(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		d := &dto.UserDTO{}
		if err = copier.Copy(d, u); err != nil {
			return nil, err
		}
		out[u.ID] = d
	}
	return out, nil
}

func (p *populator) media(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]dto.MediaDTO, error) {
	out := make(map[primitive.ObjectID]dto.MediaDTO, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	list, err := p.mediaRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, m := range list {
		out[m.ID] = p.mediaDTO(ctx, m)
	}
	return out, nil
}

func (p *populator) mediaDTO(ctx context.Context, m *mongo.Media) dto.MediaDTO {
	url := ""
	if p.storage != nil {
		u, err := p.storage.URL(ctx, m.ObjectKey)
		if err != nil {
			log.WarnContext(ctx, "failed to presign media", "media_id", m.ID.Hex(), "err", err)
		}
		url = u
	}
	return dto.MediaDTO{
		ID:        m.ID.Hex(),
		Type:      m.Type,
		URL:       url,
		MimeType:  m.MimeType,
		Size:      m.Size,
		Filename:  m.Filename,
		CreatedAt: m.CreatedAt,
	}
}

// message 填充单条消息
func (p *populator) message(ctx context.Context, msg *mongo.Message) (*dto.MessageDTO, error) {
	list, err := p.messages(ctx, []*mongo.Message{msg})
	if err != nil {
		return nil, err
	}
	return list[0], nil
}

// messages 先取被回复消息，再并发加载发送者与媒体，保持输入顺序
func (p *populator) messages(ctx context.Context, msgs []*mongo.Message) ([]*dto.MessageDTO, error) {
	senderIDs := make([]uint64, 0, len(msgs))
	mediaIDs := make([]primitive.ObjectID, 0)
	replyIDs := make([]primitive.ObjectID, 0)
	for _, m := range msgs {
		senderIDs = append(senderIDs, m.SenderID)
		if !m.Deleted {
			mediaIDs = append(mediaIDs, m.MediaIDs...)
		}
		if m.ReplyTo != nil {
			replyIDs = append(replyIDs, *m.ReplyTo)
		}
	}

	// 被回复消息的发送者可能不在本批次内
	replies := make(map[primitive.ObjectID]*mongo.Message)
	if len(replyIDs) > 0 {
		list, err := p.messageRepo.FindByIDs(ctx, replyIDs)
		if err != nil {
			return nil, err
		}
		for _, r := range list {
			replies[r.ID] = r
			senderIDs = append(senderIDs, r.SenderID)
		}
	}
	slices.Sort(senderIDs)
	senderIDs = slices.Compact(senderIDs)

	var (
		users map[uint64]*dto.UserDTO
		media map[primitive.ObjectID]dto.MediaDTO
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = p.users(gctx, senderIDs)
		return err
	})
	g.Go(func() error {
		var err error
		media, err = p.media(gctx, mediaIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*dto.MessageDTO, 0, len(msgs))
	for _, m := range msgs {
		d := toMessageDTO(m, users, media)
		if m.ReplyTo != nil {
			if parent, ok := replies[*m.ReplyTo]; ok {
				d.ReplyTo = toMessageDTO(parent, users, nil)
			}
		}
		out = append(out, d)
	}
	return out, nil
}

// toMessageDTO 已删除消息不返回正文与媒体
func toMessageDTO(m *mongo.Message, users map[uint64]*dto.UserDTO, media map[primitive.ObjectID]dto.MediaDTO) *dto.MessageDTO {
	d := &dto.MessageDTO{
		ID:             m.ID.Hex(),
		ConversationID: m.ConversationID.Hex(),
		SenderID:       m.SenderID,
		Sender:         users[m.SenderID],
		Content:        m.Content,
		MessageType:    m.MessageType,
		Media:          make([]dto.MediaDTO, 0, len(m.MediaIDs)),
		Status:         m.Status,
		StatusTimestamps: dto.StatusTimestampsDTO{
			Sent:      m.StatusTimestamps.Sent,
			Delivered: m.StatusTimestamps.Delivered,
			Read:      m.StatusTimestamps.Read,
		},
		ReadBy:      toReceiptDTOs(m.ReadBy),
		DeliveredTo: toReceiptDTOs(m.DeliveredTo),
		Edited:      m.Edited,
		EditedAt:    m.EditedAt,
		Deleted:     m.Deleted,
		DeletedAt:   m.DeletedAt,
		Reactions:   toReactionDTOs(m.Reactions),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if m.Deleted {
		d.Content = ""
		return d
	}
	for _, id := range m.MediaIDs {
		if md, ok := media[id]; ok {
			d.Media = append(d.Media, md)
		}
	}
	return d
}

func toReceiptDTOs(list []mongo.Receipt) []dto.ReceiptDTO {
	out := make([]dto.ReceiptDTO, 0, len(list))
	for _, r := range list {
		out = append(out, dto.ReceiptDTO{UserID: r.UserID, At: r.At})
	}
	return out
}

func toReactionDTOs(list []mongo.Reaction) []dto.ReactionDTO {
	out := make([]dto.ReactionDTO, 0, len(list))
	for _, r := range list {
		out = append(out, dto.ReactionDTO{UserID: r.UserID, Emoji: r.Emoji, ReactedAt: r.ReactedAt})
	}
	return out
}

// conversations 批量填充成员信息与最后一条消息，未读与归档为 viewer 视角
func (p *populator) conversations(ctx context.Context, viewer uint64, convs []*mongo.Conversation) ([]*dto.ConversationDTO, error) {
	userIDs := make([]uint64, 0)
	lastIDs := make([]primitive.ObjectID, 0)
	for _, c := range convs {
		userIDs = append(userIDs, c.ParticipantIDs()...)
		if c.LastMessageID != nil {
			lastIDs = append(lastIDs, *c.LastMessageID)
		}
	}

	var (
		users map[uint64]*dto.UserDTO
		last  = make(map[primitive.ObjectID]*dto.MessageDTO)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = p.users(gctx, userIDs)
		return err
	})
	if len(lastIDs) > 0 {
		g.Go(func() error {
			msgs, err := p.messageRepo.FindByIDs(gctx, lastIDs)
			if err != nil {
				return err
			}
			populated, err := p.messages(gctx, msgs)
			if err != nil {
				return err
			}
			for i, m := range msgs {
				last[m.ID] = populated[i]
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*dto.ConversationDTO, 0, len(convs))
	for _, c := range convs {
		d := toConversationDTO(c, viewer, users)
		if c.LastMessageID != nil {
			d.LastMessage = last[*c.LastMessageID]
		}
		out = append(out, d)
	}
	return out, nil
}

func (p *populator) conversation(ctx context.Context, viewer uint64, conv *mongo.Conversation) (*dto.ConversationDTO, error) {
	list, err := p.conversations(ctx, viewer, []*mongo.Conversation{conv})
	if err != nil {
		return nil, err
	}
	return list[0], nil
}

func toParticipantDTOs(entries []mongo.Participant, users map[uint64]*dto.UserDTO) []dto.ParticipantDTO {
	out := make([]dto.ParticipantDTO, 0, len(entries))
	for _, e := range entries {
		pd := dto.ParticipantDTO{Role: e.Role, JoinedAt: e.JoinedAt}
		if u, ok := users[e.UserID]; ok {
			pd.UserDTO = *u
		} else {
			pd.UserDTO = dto.UserDTO{ID: e.UserID}
		}
		out = append(out, pd)
	}
	return out
}

func toConversationDTO(c *mongo.Conversation, viewer uint64, users map[uint64]*dto.UserDTO) *dto.ConversationDTO {
	setting := c.NotificationOf(viewer)
	return &dto.ConversationDTO{
		ID:               c.ID.Hex(),
		IsGroup:          c.IsGroup,
		Participants:     toParticipantDTOs(c.Participants, users),
		Admins:           c.IDsWithRole(consts.RoleAdmin),
		Moderators:       c.IDsWithRole(consts.RoleModerator),
		GroupName:        c.GroupName,
		GroupDescription: c.GroupDescription,
		GroupAvatar:      c.GroupAvatar,
		CreatorID:        c.CreatorID,
		UnreadCount:      c.UnreadOf(viewer),
		Archived:         c.IsArchivedBy(viewer),
		NotificationSettings: dto.NotificationSettingDTO{
			Muted:     setting.Muted,
			MuteUntil: setting.MuteUntil,
		},
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// parseObjectID 解析十六进制 ID，空串为参数缺失
func parseObjectID(hex string) (primitive.ObjectID, error) {
	if hex == "" {
		return primitive.NilObjectID, ErrParamInvalid
	}
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, ErrInvalidID
	}
	return id, nil
}

func parseObjectIDs(hexes []string) ([]primitive.ObjectID, error) {
	out := make([]primitive.ObjectID, 0, len(hexes))
	seen := make(map[primitive.ObjectID]struct{}, len(hexes))
	for _, h := range hexes {
		id, err := parseObjectID(h)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}
