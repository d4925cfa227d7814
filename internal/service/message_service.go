package service

import (
	"Chatline/internal/api/dto"
	"Chatline/internal/model"
	"Chatline/internal/pkg/consts"
	"Chatline/internal/pkg/metrics"
	"Chatline/internal/pkg/mongo"
	"Chatline/internal/pkg/util"
	"Chatline/internal/repository"
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"slices"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MessageIndex 全文检索，返回按相关性排序的消息 ID 与下一页排序值
type MessageIndex interface {
	Search(ctx context.Context, conversationIDs []string, query string, after []interface{}, limit int) ([]string, []interface{}, error)
}

type MessageService interface {
	Send(ctx context.Context, senderID uint64, req *dto.SendMessageDTO) (*dto.MessageDTO, error)
	Reply(ctx context.Context, senderID uint64, req *dto.SendMessageDTO) (*dto.MessageDTO, error)
	GetMessages(ctx context.Context, userID uint64, conversationID string, limit, skip int) ([]*dto.MessageDTO, error)
	MarkAsRead(ctx context.Context, userID uint64, conversationID string) error
	Edit(ctx context.Context, userID uint64, req *dto.EditMessageDTO) (*dto.MessageDTO, error)
	Delete(ctx context.Context, userID uint64, messageID string) error
	React(ctx context.Context, userID uint64, req *dto.ReactMessageDTO) (*dto.MessageDTO, error)
	UpdateStatus(ctx context.Context, userID uint64, req *dto.UpdateStatusDTO) (*dto.MessageDTO, error)
	Search(ctx context.Context, userID uint64, req *dto.SearchMessagesDTO) (*dto.SearchResultDTO, error)
	ListConversationMedia(ctx context.Context, userID uint64, conversationID string, limit, skip int) ([]*dto.ConversationMediaDTO, error)
	DeleteMedia(ctx context.Context, userID uint64, mediaID string) error
}

type MessageServiceImpl struct {
	convRepo    mongo.ConversationRepo
	messageRepo mongo.MessageRepo
	mediaRepo   mongo.MediaRepo
	ledger      UnreadLedger
	blocks      BlockService
	notifier    Notifier
	publisher   MessageEventPublisher
	index       MessageIndex
	populate    *populator
	now         func() time.Time
}

func NewMessageService(
	convRepo mongo.ConversationRepo,
	messageRepo mongo.MessageRepo,
	mediaRepo mongo.MediaRepo,
	userRepo repository.UserRepo,
	ledger UnreadLedger,
	blocks BlockService,
	notifier Notifier,
	storage ObjectStorage,
	publisher MessageEventPublisher,
	index MessageIndex,
) MessageService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &MessageServiceImpl{
		convRepo:    convRepo,
		messageRepo: messageRepo,
		mediaRepo:   mediaRepo,
		ledger:      ledger,
		blocks:      blocks,
		notifier:    notifier,
		publisher:   publisher,
		index:       index,
		populate: &populator{
			userRepo:    userRepo,
			messageRepo: messageRepo,
			mediaRepo:   mediaRepo,
			storage:     storage,
		},
		now: time.Now,
	}
}

// Send 校验、持久化、递增未读后推送，最后广播送达状态
func (s *MessageServiceImpl) Send(ctx context.Context, senderID uint64, req *dto.SendMessageDTO) (*dto.MessageDTO, error) {
	conv, msg, err := s.persist(ctx, senderID, req)
	if err != nil {
		return nil, err
	}
	return s.deliver(ctx, conv, msg)
}

// Reply 必须携带 replyTo 的发送
func (s *MessageServiceImpl) Reply(ctx context.Context, senderID uint64, req *dto.SendMessageDTO) (*dto.MessageDTO, error) {
	if strings.TrimSpace(req.ReplyTo) == "" {
		return nil, ErrReplyRequired
	}
	return s.Send(ctx, senderID, req)
}

func (s *MessageServiceImpl) persist(ctx context.Context, senderID uint64, req *dto.SendMessageDTO) (*mongo.Conversation, *mongo.Message, error) {
	convID, err := parseObjectID(req.ConversationID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: conversationId", err)
	}
	mediaIDs, err := parseObjectIDs(req.MediaIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: mediaIds", err)
	}
	var replyID *primitive.ObjectID
	if req.ReplyTo != "" {
		id, err := parseObjectID(req.ReplyTo)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: replyTo", err)
		}
		replyID = &id
	}

	conv, err := s.convRepo.FindActiveForParticipant(ctx, convID, senderID)
	if err != nil {
		return nil, nil, err
	}
	if conv == nil {
		return nil, nil, ErrConversationNotFound
	}

	content := strings.TrimSpace(req.Content)
	if content == "" && len(mediaIDs) == 0 {
		return nil, nil, ErrEmptyMessage
	}

	messageType := req.MessageType
	if len(mediaIDs) > 0 {
		media, err := s.mediaRepo.FindByIDs(ctx, mediaIDs)
		if err != nil {
			return nil, nil, err
		}
		if len(media) != len(mediaIDs) {
			return nil, nil, ErrMediaNotFound
		}
		for _, m := range media {
			if m.OwnerID != senderID || m.Attached {
				return nil, nil, ErrMediaNotFound
			}
		}
		if messageType == "" {
			messageType = media[0].Type
		}
	}
	if messageType == "" {
		messageType = consts.MessageTypeText
	}

	if replyID != nil {
		parent, err := s.messageRepo.FindByID(ctx, *replyID)
		if err != nil {
			return nil, nil, err
		}
		if parent == nil || parent.ConversationID != conv.ID {
			return nil, nil, ErrReplyNotFound
		}
	}

	if err = s.checkDirectGate(ctx, conv, senderID); err != nil {
		return nil, nil, err
	}

	now := s.now()
	msg := &mongo.Message{
		ConversationID:   conv.ID,
		SenderID:         senderID,
		Content:          content,
		MessageType:      messageType,
		MediaIDs:         mediaIDs,
		ReplyTo:          replyID,
		Status:           mongo.StatusSent,
		StatusTimestamps: mongo.StatusTimestamps{Sent: &now},
		ReadBy:           []mongo.Receipt{{UserID: senderID, At: now}},
		DeliveredTo:      []mongo.Receipt{{UserID: senderID, At: now}},
		Reactions:        []mongo.Reaction{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err = s.messageRepo.Create(ctx, msg); err != nil {
		return nil, nil, err
	}
	if err = s.mediaRepo.MarkAttached(ctx, mediaIDs, conv.ID, msg.ID); err != nil {
		return nil, nil, err
	}
	if err = s.convRepo.SetLastMessage(ctx, conv.ID, msg.ID, now); err != nil {
		return nil, nil, err
	}
	metrics.MessagesSent.WithLabelValues(messageType).Inc()
	return conv, msg, nil
}

// checkDirectGate 单聊任一方屏蔽对方时禁止
func (s *MessageServiceImpl) checkDirectGate(ctx context.Context, conv *mongo.Conversation, userID uint64) error {
	if conv.IsGroup {
		return nil
	}
	ok, err := s.blocks.CanExchange(ctx, userID, conv.OtherParticipant(userID))
	if err != nil {
		return err
	}
	if !ok {
		return ErrBlocked
	}
	return nil
}

// eligibleRecipients 除发送者外的成员，单聊中被屏蔽的接收方被跳过
func (s *MessageServiceImpl) eligibleRecipients(ctx context.Context, conv *mongo.Conversation, senderID uint64) ([]uint64, error) {
	out := make([]uint64, 0, len(conv.Participants))
	for _, uid := range conv.ParticipantIDs() {
		if uid == senderID {
			continue
		}
		if !conv.IsGroup {
			ok, err := s.blocks.CanExchange(ctx, senderID, uid)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		out = append(out, uid)
	}
	return out, nil
}

func (s *MessageServiceImpl) deliver(ctx context.Context, conv *mongo.Conversation, msg *mongo.Message) (*dto.MessageDTO, error) {
	recipients, err := s.eligibleRecipients(ctx, conv, msg.SenderID)
	if err != nil {
		return nil, err
	}
	counts, err := s.ledger.Increment(ctx, conv.ID, recipients...)
	if err != nil {
		return nil, err
	}
	populated, err := s.populate.message(ctx, msg)
	if err != nil {
		return nil, err
	}

	convID := conv.ID.Hex()
	s.notifier.EmitToUser(msg.SenderID, consts.EventReceiveMessage, populated)

	deliveredAny := false
	for _, uid := range recipients {
		if s.notifier.EmitToUser(uid, consts.EventReceiveMessage, populated) == 0 {
			continue
		}
		s.notifier.EmitToUser(uid, consts.EventNewMessageNotification, dto.NewMessageNotificationDTO{
			ConversationID: convID,
			Message:        populated,
			UnreadCount:    counts[uid],
		})
		at := s.now()
		if _, err = s.messageRepo.MarkDelivered(ctx, msg.ID, uid, at); err != nil {
			log.ErrorContext(ctx, "failed to record delivery", "message_id", msg.ID.Hex(), "recipient", uid, "err", err)
			continue
		}
		populated.DeliveredTo = append(populated.DeliveredTo, dto.ReceiptDTO{UserID: uid, At: at})
		deliveredAny = true
	}

	if deliveredAny {
		at := s.now()
		advanced, err := s.messageRepo.AdvanceStatus(ctx, msg.ID, mongo.StatusDelivered, at)
		if err != nil {
			log.ErrorContext(ctx, "failed to advance message status", "message_id", msg.ID.Hex(), "err", err)
		}
		if advanced {
			populated.Status = mongo.StatusDelivered
			populated.StatusTimestamps.Delivered = &at
			emitToUsers(s.notifier, conv.ParticipantIDs(), consts.EventMessageStatusUpdate, dto.MessageStatusUpdateDTO{
				MessageID:      populated.ID,
				ConversationID: convID,
				Status:         mongo.StatusDelivered,
				Timestamp:      at,
			})
		}
	}

	publishBestEffort(ctx, s.publisher, model.MessageEventCreated, msg)
	return populated, nil
}

// GetMessages 历史消息按时间正序返回，同时记录已读回执并清零未读
func (s *MessageServiceImpl) GetMessages(ctx context.Context, userID uint64, conversationID string, limit, skip int) ([]*dto.MessageDTO, error) {
	convID, err := parseObjectID(conversationID)
	if err != nil {
		return nil, err
	}
	conv, err := s.convRepo.FindActiveForParticipant(ctx, convID, userID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}
	if err = s.checkDirectGate(ctx, conv, userID); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = consts.DefaultMessagePageSize
	}
	limit = min(limit, consts.MaxMessagePageSize)
	skip = max(skip, 0)

	msgs, err := s.messageRepo.ListByConversation(ctx, convID, limit, skip)
	if err != nil {
		return nil, err
	}
	slices.Reverse(msgs)

	now := s.now()
	unseen := make([]primitive.ObjectID, 0)
	for _, m := range msgs {
		if m.SenderID == userID {
			continue
		}
		if !m.IsReadBy(userID) || !m.IsDeliveredTo(userID) {
			unseen = append(unseen, m.ID)
		}
		if !m.IsReadBy(userID) {
			m.ReadBy = append(m.ReadBy, mongo.Receipt{UserID: userID, At: now})
		}
		if !m.IsDeliveredTo(userID) {
			m.DeliveredTo = append(m.DeliveredTo, mongo.Receipt{UserID: userID, At: now})
		}
	}
	if err = s.messageRepo.MarkSeen(ctx, unseen, userID, now); err != nil {
		return nil, err
	}
	if err = s.ledger.Reset(ctx, convID, userID); err != nil {
		return nil, err
	}

	return s.populate.messages(ctx, msgs)
}

// MarkAsRead 将他人消息标记为已读，逐条广播状态并清零未读
func (s *MessageServiceImpl) MarkAsRead(ctx context.Context, userID uint64, conversationID string) error {
	convID, err := parseObjectID(conversationID)
	if err != nil {
		return err
	}
	conv, err := s.convRepo.FindActiveForParticipant(ctx, convID, userID)
	if err != nil {
		return err
	}
	if conv == nil {
		return ErrConversationNotFound
	}
	if err = s.checkDirectGate(ctx, conv, userID); err != nil {
		return err
	}

	now := s.now()
	ids, err := s.messageRepo.MarkConversationRead(ctx, convID, userID, now)
	if err != nil {
		return err
	}

	participants := conv.ParticipantIDs()
	for _, id := range ids {
		emitToUsers(s.notifier, participants, consts.EventMessageStatusUpdate, dto.MessageStatusUpdateDTO{
			MessageID:      id.Hex(),
			ConversationID: conversationID,
			Status:         mongo.StatusRead,
			Timestamp:      now,
			UserID:         userID,
		})
	}

	if err = s.ledger.Reset(ctx, convID, userID); err != nil {
		return err
	}
	s.notifier.EmitToUser(userID, consts.EventMessagesRead, dto.MessagesReadDTO{ConversationID: conversationID})
	return nil
}

// loadForParticipant 加载消息并确认 userID 是其会话的成员
func (s *MessageServiceImpl) loadForParticipant(ctx context.Context, userID uint64, messageID string) (*mongo.Message, *mongo.Conversation, error) {
	id, err := parseObjectID(messageID)
	if err != nil {
		return nil, nil, err
	}
	msg, err := s.messageRepo.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if msg == nil {
		return nil, nil, ErrMessageNotFound
	}
	conv, err := s.convRepo.FindActiveForParticipant(ctx, msg.ConversationID, userID)
	if err != nil {
		return nil, nil, err
	}
	if conv == nil {
		return nil, nil, ErrMessageNotFound
	}
	return msg, conv, nil
}

// Edit 仅发送者可编辑未删除的消息
func (s *MessageServiceImpl) Edit(ctx context.Context, userID uint64, req *dto.EditMessageDTO) (*dto.MessageDTO, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, ErrEmptyMessage
	}
	msg, conv, err := s.loadForParticipant(ctx, userID, req.MessageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != userID {
		return nil, ErrNotSender
	}
	if msg.Deleted {
		return nil, ErrMessageNotFound
	}

	updated, err := s.messageRepo.UpdateContent(ctx, msg.ID, content, s.now())
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrMessageNotFound
	}
	populated, err := s.populate.message(ctx, updated)
	if err != nil {
		return nil, err
	}

	emitToUsers(s.notifier, conv.ParticipantIDs(), consts.EventMessageEdited, populated)
	publishBestEffort(ctx, s.publisher, model.MessageEventEdited, updated)
	return populated, nil
}

// Delete 仅发送者可软删除
func (s *MessageServiceImpl) Delete(ctx context.Context, userID uint64, messageID string) error {
	msg, conv, err := s.loadForParticipant(ctx, userID, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != userID {
		return ErrNotSender
	}
	if msg.Deleted {
		return ErrMessageNotFound
	}

	deleted, err := s.messageRepo.SoftDelete(ctx, msg.ID, s.now())
	if err != nil {
		return err
	}
	if deleted == nil {
		return ErrMessageNotFound
	}

	emitToUsers(s.notifier, conv.ParticipantIDs(), consts.EventMessageDeleted, dto.MessageDeletedDTO{
		MessageID:      deleted.ID.Hex(),
		ConversationID: deleted.ConversationID.Hex(),
	})
	publishBestEffort(ctx, s.publisher, model.MessageEventDeleted, deleted)
	return nil
}

// DeleteMedia 上传者软删除媒体，并从引用它的消息中移除
func (s *MessageServiceImpl) DeleteMedia(ctx context.Context, userID uint64, mediaID string) error {
	id, err := parseObjectID(mediaID)
	if err != nil {
		return err
	}
	media, err := s.mediaRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if media == nil || media.Deleted() {
		return ErrMediaNotFound
	}
	if media.OwnerID != userID {
		return ErrNotMediaOwner
	}

	now := s.now()
	ok, err := s.mediaRepo.SoftDelete(ctx, id, now)
	if err != nil {
		return err
	}
	if !ok {
		return ErrMediaNotFound
	}
	if media.MessageID == nil {
		return nil
	}

	msg, err := s.messageRepo.PullMedia(ctx, *media.MessageID, id, now)
	if err != nil {
		return err
	}
	if msg == nil || msg.Deleted {
		return nil
	}
	conv, err := s.convRepo.FindByID(ctx, msg.ConversationID)
	if err != nil {
		return err
	}
	if conv == nil || conv.IsDeleted() {
		return nil
	}
	populated, err := s.populate.message(ctx, msg)
	if err != nil {
		return err
	}
	emitToUsers(s.notifier, conv.ParticipantIDs(), consts.EventMessageEdited, populated)
	publishBestEffort(ctx, s.publisher, model.MessageEventEdited, msg)
	return nil
}

// ListConversationMedia 会话中仍可见的媒体，最新的在前
func (s *MessageServiceImpl) ListConversationMedia(ctx context.Context, userID uint64, conversationID string, limit, skip int) ([]*dto.ConversationMediaDTO, error) {
	convID, err := parseObjectID(conversationID)
	if err != nil {
		return nil, err
	}
	conv, err := s.convRepo.FindActiveForParticipant(ctx, convID, userID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}
	if err = s.checkDirectGate(ctx, conv, userID); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = consts.DefaultMediaPageSize
	}
	limit = min(limit, consts.MaxMediaPageSize)
	list, err := s.mediaRepo.ListByConversation(ctx, convID, limit, max(skip, 0))
	if err != nil {
		return nil, err
	}

	ownerIDs := make([]uint64, 0, len(list))
	for _, m := range list {
		ownerIDs = append(ownerIDs, m.OwnerID)
	}
	slices.Sort(ownerIDs)
	users, err := s.populate.users(ctx, slices.Compact(ownerIDs))
	if err != nil {
		return nil, err
	}

	out := make([]*dto.ConversationMediaDTO, 0, len(list))
	for _, m := range list {
		item := &dto.ConversationMediaDTO{
			MediaDTO: s.populate.mediaDTO(ctx, m),
			Uploader: users[m.OwnerID],
		}
		if m.MessageID != nil {
			item.MessageID = m.MessageID.Hex()
		}
		out = append(out, item)
	}
	return out, nil
}

// React 同一表情再次回应即取消，不同表情替换
func (s *MessageServiceImpl) React(ctx context.Context, userID uint64, req *dto.ReactMessageDTO) (*dto.MessageDTO, error) {
	emoji := strings.TrimSpace(req.Emoji)
	if emoji == "" {
		return nil, fmt.Errorf("%w: emoji", ErrParamInvalid)
	}
	msg, conv, err := s.loadForParticipant(ctx, userID, req.MessageID)
	if err != nil {
		return nil, err
	}
	if msg.Deleted {
		return nil, ErrMessageNotFound
	}
	if err = s.checkDirectGate(ctx, conv, userID); err != nil {
		return nil, err
	}

	now := s.now()
	msg.Reactions, _ = mongo.ApplyReaction(msg.Reactions, userID, emoji, now)
	if err = s.messageRepo.SetReactions(ctx, msg.ID, msg.Reactions, now); err != nil {
		return nil, err
	}
	msg.UpdatedAt = now

	populated, err := s.populate.message(ctx, msg)
	if err != nil {
		return nil, err
	}
	emitToUsers(s.notifier, conv.ParticipantIDs(), consts.EventMessageReactionUpdated, dto.MessageReactionDTO{
		MessageID:      populated.ID,
		ConversationID: populated.ConversationID,
		Reactions:      populated.Reactions,
	})
	return populated, nil
}

// UpdateStatus 接收方上报送达或已读，状态只前进不后退
func (s *MessageServiceImpl) UpdateStatus(ctx context.Context, userID uint64, req *dto.UpdateStatusDTO) (*dto.MessageDTO, error) {
	if req.Status != mongo.StatusDelivered && req.Status != mongo.StatusRead {
		return nil, ErrInvalidStatus
	}
	msg, conv, err := s.loadForParticipant(ctx, userID, req.MessageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID == userID {
		return nil, ErrOwnMessageStatus
	}
	if err = s.checkDirectGate(ctx, conv, userID); err != nil {
		return nil, err
	}

	now := s.now()
	if _, err = s.messageRepo.MarkDelivered(ctx, msg.ID, userID, now); err != nil {
		return nil, err
	}
	if req.Status == mongo.StatusRead {
		if _, err = s.messageRepo.MarkRead(ctx, msg.ID, userID, now); err != nil {
			return nil, err
		}
	}
	advanced, err := s.messageRepo.AdvanceStatus(ctx, msg.ID, req.Status, now)
	if err != nil {
		return nil, err
	}
	if advanced {
		emitToUsers(s.notifier, conv.ParticipantIDs(), consts.EventMessageStatusUpdate, dto.MessageStatusUpdateDTO{
			MessageID:      msg.ID.Hex(),
			ConversationID: msg.ConversationID.Hex(),
			Status:         req.Status,
			Timestamp:      now,
			UserID:         userID,
		})
	}

	fresh, err := s.messageRepo.FindByID(ctx, msg.ID)
	if err != nil {
		return nil, err
	}
	if fresh == nil {
		return nil, ErrMessageNotFound
	}
	return s.populate.message(ctx, fresh)
}

// Search 只在当前用户参与的会话中检索，排除已删除消息
func (s *MessageServiceImpl) Search(ctx context.Context, userID uint64, req *dto.SearchMessagesDTO) (*dto.SearchResultDTO, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	limit := req.Limit
	if limit <= 0 {
		limit = consts.DefaultSearchPageSize
	}

	convIDs, err := s.searchableConversations(ctx, userID, req.ConversationID)
	if err != nil {
		return nil, err
	}

	after, err := util.DecodeCursor(req.Cursor)
	if err != nil {
		return nil, fmt.Errorf("%w: cursor", ErrParamInvalid)
	}

	var (
		msgs []*mongo.Message
		next []interface{}
	)
	if s.index != nil {
		msgs, next, err = s.searchIndex(ctx, convIDs, query, after, limit)
	} else {
		msgs, next, err = s.searchStore(ctx, convIDs, query, after, limit)
	}
	if err != nil {
		return nil, err
	}

	populated, err := s.populate.messages(ctx, msgs)
	if err != nil {
		return nil, err
	}
	return &dto.SearchResultDTO{Messages: populated, NextCursor: util.EncodeCursor(next)}, nil
}

// searchableConversations 可检索的会话，与对方互相屏蔽的单聊被排除
// 指定会话时该会话被屏蔽返回 ErrBlocked
func (s *MessageServiceImpl) searchableConversations(ctx context.Context, userID uint64, conversationID string) ([]primitive.ObjectID, error) {
	if conversationID != "" {
		id, err := parseObjectID(conversationID)
		if err != nil {
			return nil, err
		}
		conv, err := s.convRepo.FindActiveForParticipant(ctx, id, userID)
		if err != nil {
			return nil, err
		}
		if conv == nil {
			return nil, ErrConversationNotFound
		}
		if err = s.checkDirectGate(ctx, conv, userID); err != nil {
			return nil, err
		}
		return []primitive.ObjectID{conv.ID}, nil
	}

	convs, err := s.convRepo.ListByParticipant(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(convs))
	for _, conv := range convs {
		err = s.checkDirectGate(ctx, conv, userID)
		if errors.Is(err, ErrBlocked) {
			continue
		}
		if err != nil {
			return nil, err
		}
		ids = append(ids, conv.ID)
	}
	return ids, nil
}

func (s *MessageServiceImpl) searchIndex(ctx context.Context, convIDs []primitive.ObjectID, query string, after []interface{}, limit int) ([]*mongo.Message, []interface{}, error) {
	hexes := make([]string, 0, len(convIDs))
	for _, id := range convIDs {
		hexes = append(hexes, id.Hex())
	}
	ids, next, err := s.index.Search(ctx, hexes, query, after, limit)
	if err != nil {
		return nil, nil, err
	}
	objectIDs, err := parseObjectIDs(ids)
	if err != nil {
		return nil, nil, err
	}
	found, err := s.messageRepo.FindByIDs(ctx, objectIDs)
	if err != nil {
		return nil, nil, err
	}
	byID := make(map[primitive.ObjectID]*mongo.Message, len(found))
	for _, m := range found {
		byID[m.ID] = m
	}
	out := make([]*mongo.Message, 0, len(found))
	for _, id := range objectIDs {
		if m, ok := byID[id]; ok && !m.Deleted {
			out = append(out, m)
		}
	}
	if len(ids) < limit {
		next = nil
	}
	return out, next, nil
}

func (s *MessageServiceImpl) searchStore(ctx context.Context, convIDs []primitive.ObjectID, query string, after []interface{}, limit int) ([]*mongo.Message, []interface{}, error) {
	var cursor *mongo.SearchAfter
	if len(after) == 2 {
		millis, ok1 := after[0].(float64)
		hex, ok2 := after[1].(string)
		id, err := primitive.ObjectIDFromHex(hex)
		if !ok1 || !ok2 || err != nil {
			return nil, nil, fmt.Errorf("%w: cursor", ErrParamInvalid)
		}
		cursor = &mongo.SearchAfter{CreatedAt: time.UnixMilli(int64(millis)), ID: id}
	} else if len(after) != 0 {
		return nil, nil, fmt.Errorf("%w: cursor", ErrParamInvalid)
	}

	msgs, err := s.messageRepo.Search(ctx, convIDs, query, cursor, limit)
	if err != nil {
		return nil, nil, err
	}
	var next []interface{}
	if len(msgs) == limit {
		last := msgs[len(msgs)-1]
		next = []interface{}{last.CreatedAt.UnixMilli(), last.ID.Hex()}
	}
	return msgs, next, nil
}
