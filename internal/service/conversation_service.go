package service

import (
	"Chatline/internal/api/dto"
	"Chatline/internal/pkg/consts"
	"Chatline/internal/pkg/mongo"
	"Chatline/internal/pkg/util"
	"Chatline/internal/repository"
	"context"
	"strings"
	"time"
)

type ConversationService interface {
	List(ctx context.Context, userID uint64, req *dto.ListConversationsDTO) ([]*dto.ConversationDTO, error)
	GetOrCreateDirect(ctx context.Context, userID, participantID uint64) (*dto.ConversationDTO, error)
	CreateGroup(ctx context.Context, userID uint64, req *dto.CreateGroupDTO) (*dto.ConversationDTO, error)
	Archive(ctx context.Context, userID uint64, conversationID string) (*dto.ArchiveResultDTO, error)
	Unarchive(ctx context.Context, userID uint64, conversationID string) (*dto.ArchiveResultDTO, error)
	Delete(ctx context.Context, userID uint64, conversationID string) error
	UpdateGroupInfo(ctx context.Context, userID uint64, conversationID string, req *dto.UpdateGroupInfoDTO) (*dto.ConversationDTO, error)
	AddMembers(ctx context.Context, userID uint64, conversationID string, req *dto.AddMembersDTO) (*dto.ConversationDTO, error)
	RemoveMember(ctx context.Context, userID uint64, conversationID string, memberID uint64) (*dto.ConversationDTO, error)
	PromoteToAdmin(ctx context.Context, userID uint64, conversationID string, memberID uint64) (*dto.ConversationDTO, error)
	UpdateNotificationSettings(ctx context.Context, userID uint64, conversationID string, req *dto.NotificationSettingsDTO) (*dto.NotificationSettingDTO, error)
	AuthorizeJoin(ctx context.Context, userID uint64, conversationID string) error
}

type ConversationServiceImpl struct {
	convRepo mongo.ConversationRepo
	userRepo repository.UserRepo
	blocks   BlockService
	notifier Notifier
	populate *populator
	now      func() time.Time
}

func NewConversationService(
	convRepo mongo.ConversationRepo,
	messageRepo mongo.MessageRepo,
	mediaRepo mongo.MediaRepo,
	userRepo repository.UserRepo,
	blocks BlockService,
	notifier Notifier,
	storage ObjectStorage,
) ConversationService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &ConversationServiceImpl{
		convRepo: convRepo,
		userRepo: userRepo,
		blocks:   blocks,
		notifier: notifier,
		populate: &populator{
			userRepo:    userRepo,
			messageRepo: messageRepo,
			mediaRepo:   mediaRepo,
			storage:     storage,
		},
		now: time.Now,
	}
}

// List 未删除的会话，按更新时间倒序
func (s *ConversationServiceImpl) List(ctx context.Context, userID uint64, req *dto.ListConversationsDTO) ([]*dto.ConversationDTO, error) {
	convs, err := s.convRepo.ListByParticipant(ctx, userID)
	if err != nil {
		return nil, err
	}

	kept := make([]*mongo.Conversation, 0, len(convs))
	for _, c := range convs {
		archived := c.IsArchivedBy(userID)
		switch req.Filter {
		case consts.ConversationFilterArchived:
			if !archived {
				continue
			}
		case consts.ConversationFilterGroup:
			if archived || !c.IsGroup {
				continue
			}
		case consts.ConversationFilterDirect:
			if archived || c.IsGroup {
				continue
			}
		default:
			if archived {
				continue
			}
		}
		kept = append(kept, c)
	}

	out, err := s.populate.conversations(ctx, userID, kept)
	if err != nil {
		return nil, err
	}

	search := strings.TrimSpace(req.Search)
	if search == "" {
		return out, nil
	}
	matched := make([]*dto.ConversationDTO, 0, len(out))
	for _, c := range out {
		if matchesConversation(c, userID, search) {
			matched = append(matched, c)
		}
	}
	return matched, nil
}

// matchesConversation 群名或其他成员用户名包含关键字
func matchesConversation(c *dto.ConversationDTO, viewer uint64, search string) bool {
	if c.IsGroup && util.ContainsFold(c.GroupName, search) {
		return true
	}
	for _, p := range c.Participants {
		if p.ID != viewer && util.ContainsFold(p.Username, search) {
			return true
		}
	}
	return false
}

// GetOrCreateDirect 获取或创建与 participantID 的单聊
func (s *ConversationServiceImpl) GetOrCreateDirect(ctx context.Context, userID, participantID uint64) (*dto.ConversationDTO, error) {
	if participantID == 0 {
		return nil, ErrParamInvalid
	}
	if participantID == userID {
		return nil, ErrSelfConversation
	}
	peer, err := s.userRepo.GetUserById(ctx, participantID)
	if err != nil {
		return nil, err
	}
	if peer == nil {
		return nil, ErrUserNotFound
	}

	conv, err := s.convRepo.GetOrCreateDirect(ctx, userID, participantID, s.now())
	if err != nil {
		return nil, err
	}
	return s.populate.conversation(ctx, userID, conv)
}

// CreateGroup 创建者为管理员，至少需要两名其他成员
func (s *ConversationServiceImpl) CreateGroup(ctx context.Context, userID uint64, req *dto.CreateGroupDTO) (*dto.ConversationDTO, error) {
	others := util.UniqueUint64(req.ParticipantIDs, userID, 0)
	if len(others) < 2 {
		return nil, ErrGroupTooSmall
	}
	name := strings.TrimSpace(req.GroupName)
	if name == "" {
		return nil, ErrGroupNameRequired
	}
	if err := s.ensureUsersExist(ctx, others); err != nil {
		return nil, err
	}

	now := s.now()
	participants := make([]mongo.Participant, 0, len(others)+1)
	participants = append(participants, mongo.Participant{UserID: userID, Role: consts.RoleAdmin, JoinedAt: now})
	for _, uid := range others {
		participants = append(participants, mongo.Participant{UserID: uid, Role: consts.RoleMember, JoinedAt: now})
	}

	conv := &mongo.Conversation{
		IsGroup:          true,
		Participants:     participants,
		GroupName:        name,
		GroupDescription: strings.TrimSpace(req.GroupDescription),
		CreatorID:        userID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.convRepo.Create(ctx, conv); err != nil {
		return nil, err
	}
	return s.populate.conversation(ctx, userID, conv)
}

func (s *ConversationServiceImpl) ensureUsersExist(ctx context.Context, ids []uint64) error {
	users, err := s.userRepo.GetUserByIds(ctx, ids)
	if err != nil {
		return err
	}
	if len(users) != len(ids) {
		return ErrUserNotFound
	}
	return nil
}

// load 加载 userID 参与的未删除会话
func (s *ConversationServiceImpl) load(ctx context.Context, userID uint64, conversationID string) (*mongo.Conversation, error) {
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
	return conv, nil
}

// loadGroupAsAdmin 群聊且调用者为管理员
func (s *ConversationServiceImpl) loadGroupAsAdmin(ctx context.Context, userID uint64, conversationID string) (*mongo.Conversation, error) {
	conv, err := s.load(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.IsGroup {
		return nil, ErrNotGroup
	}
	if !conv.IsAdmin(userID) {
		return nil, ErrNotAdmin
	}
	return conv, nil
}

func (s *ConversationServiceImpl) Archive(ctx context.Context, userID uint64, conversationID string) (*dto.ArchiveResultDTO, error) {
	return s.setArchived(ctx, userID, conversationID, true)
}

func (s *ConversationServiceImpl) Unarchive(ctx context.Context, userID uint64, conversationID string) (*dto.ArchiveResultDTO, error) {
	return s.setArchived(ctx, userID, conversationID, false)
}

// setArchived 幂等，重复归档不会产生重复记录
func (s *ConversationServiceImpl) setArchived(ctx context.Context, userID uint64, conversationID string, archived bool) (*dto.ArchiveResultDTO, error) {
	conv, err := s.load(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	ok, err := s.convRepo.SetArchived(ctx, conv.ID, userID, archived)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConversationNotFound
	}

	event := consts.EventConversationUnarchived
	if archived {
		event = consts.EventConversationArchived
	}
	emitToUsers(s.notifier, conv.ParticipantIDs(), event, dto.ConversationUserDTO{
		ConversationID: conversationID,
		UserID:         userID,
	})
	return &dto.ArchiveResultDTO{Archived: archived}, nil
}

// Delete 软删除会话，单聊再次获取时恢复
func (s *ConversationServiceImpl) Delete(ctx context.Context, userID uint64, conversationID string) error {
	conv, err := s.load(ctx, userID, conversationID)
	if err != nil {
		return err
	}
	if err = s.convRepo.SoftDelete(ctx, conv.ID, s.now()); err != nil {
		return err
	}
	emitToUsers(s.notifier, conv.ParticipantIDs(), consts.EventConversationDeleted, dto.ConversationUserDTO{
		ConversationID: conversationID,
		UserID:         userID,
	})
	return nil
}

func (s *ConversationServiceImpl) UpdateGroupInfo(ctx context.Context, userID uint64, conversationID string, req *dto.UpdateGroupInfoDTO) (*dto.ConversationDTO, error) {
	conv, err := s.loadGroupAsAdmin(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}

	update := mongo.GroupInfoUpdate{Description: req.GroupDescription, Avatar: req.GroupAvatar}
	if req.GroupName != nil {
		name := strings.TrimSpace(*req.GroupName)
		if name == "" {
			return nil, ErrGroupNameRequired
		}
		update.Name = &name
	}

	updated, err := s.convRepo.UpdateGroupInfo(ctx, conv.ID, update, s.now())
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrConversationNotFound
	}

	emitToUsers(s.notifier, updated.ParticipantIDs(), consts.EventGroupInfoUpdated, dto.GroupInfoUpdatedDTO{
		ConversationID:   conversationID,
		GroupName:        updated.GroupName,
		GroupDescription: updated.GroupDescription,
		GroupAvatar:      updated.GroupAvatar,
		UpdatedBy:        userID,
	})
	return s.populate.conversation(ctx, userID, updated)
}

// AddMembers 已是成员的用户被忽略
func (s *ConversationServiceImpl) AddMembers(ctx context.Context, userID uint64, conversationID string, req *dto.AddMembersDTO) (*dto.ConversationDTO, error) {
	conv, err := s.loadGroupAsAdmin(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	ids := util.UniqueUint64(req.UserIDs, 0)
	if len(ids) == 0 {
		return nil, ErrParamInvalid
	}
	if err = s.ensureUsersExist(ctx, ids); err != nil {
		return nil, err
	}

	now := s.now()
	entries := make([]mongo.Participant, 0, len(ids))
	for _, uid := range ids {
		if conv.HasParticipant(uid) {
			continue
		}
		entries = append(entries, mongo.Participant{UserID: uid, Role: consts.RoleMember, JoinedAt: now})
	}
	if len(entries) == 0 {
		return s.populate.conversation(ctx, userID, conv)
	}

	updated, err := s.convRepo.AddParticipants(ctx, conv.ID, entries, now)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrConversationNotFound
	}

	populated, err := s.populate.conversation(ctx, userID, updated)
	if err != nil {
		return nil, err
	}
	added := make([]dto.ParticipantDTO, 0, len(entries))
	for _, p := range populated.Participants {
		for _, e := range entries {
			if p.ID == e.UserID {
				added = append(added, p)
				break
			}
		}
	}
	emitToUsers(s.notifier, updated.ParticipantIDs(), consts.EventGroupMembersAdded, dto.GroupMembersAddedDTO{
		ConversationID: conversationID,
		Members:        added,
		AddedBy:        userID,
	})
	return populated, nil
}

// RemoveMember 管理员移除成员或成员自行退出，被移除者的连接离开会话房间
func (s *ConversationServiceImpl) RemoveMember(ctx context.Context, userID uint64, conversationID string, memberID uint64) (*dto.ConversationDTO, error) {
	conv, err := s.load(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.IsGroup {
		return nil, ErrNotGroup
	}
	if memberID != userID && !conv.IsAdmin(userID) {
		return nil, ErrNotAdmin
	}
	if !conv.HasParticipant(memberID) {
		return nil, ErrMemberNotFound
	}

	updated, err := s.convRepo.RemoveParticipant(ctx, conv.ID, memberID, s.now())
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrMemberNotFound
	}

	payload := dto.GroupMemberRemovedDTO{
		ConversationID: conversationID,
		UserID:         memberID,
		RemovedBy:      userID,
	}
	emitToUsers(s.notifier, updated.ParticipantIDs(), consts.EventGroupMemberRemoved, payload)
	s.notifier.EmitToUser(memberID, consts.EventRemovedFromGroup, payload)
	s.notifier.DetachUserFromConversation(memberID, conversationID)

	return s.populate.conversation(ctx, userID, updated)
}

func (s *ConversationServiceImpl) PromoteToAdmin(ctx context.Context, userID uint64, conversationID string, memberID uint64) (*dto.ConversationDTO, error) {
	conv, err := s.loadGroupAsAdmin(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(memberID) {
		return nil, ErrMemberNotFound
	}

	updated, err := s.convRepo.SetRole(ctx, conv.ID, memberID, consts.RoleAdmin, s.now())
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrMemberNotFound
	}

	emitToUsers(s.notifier, updated.ParticipantIDs(), consts.EventMemberPromoted, dto.MemberPromotedDTO{
		ConversationID: conversationID,
		UserID:         memberID,
		Role:           consts.RoleAdmin,
		PromotedBy:     userID,
	})
	return s.populate.conversation(ctx, userID, updated)
}

// UpdateNotificationSettings 仅通知调用者自己的设备
func (s *ConversationServiceImpl) UpdateNotificationSettings(ctx context.Context, userID uint64, conversationID string, req *dto.NotificationSettingsDTO) (*dto.NotificationSettingDTO, error) {
	conv, err := s.load(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	setting := mongo.NotificationSetting{Muted: req.Muted}
	if req.Muted {
		setting.MuteUntil = req.MuteUntil
	}
	ok, err := s.convRepo.SetNotificationSetting(ctx, conv.ID, userID, setting)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConversationNotFound
	}

	s.notifier.EmitToUser(userID, consts.EventNotificationSettingsUpdated, dto.NotificationSettingsUpdatedDTO{
		ConversationID: conversationID,
		Muted:          setting.Muted,
		MuteUntil:      setting.MuteUntil,
	})
	return &dto.NotificationSettingDTO{Muted: setting.Muted, MuteUntil: setting.MuteUntil}, nil
}

// AuthorizeJoin 加入会话房间前的校验，单聊受屏蔽限制
func (s *ConversationServiceImpl) AuthorizeJoin(ctx context.Context, userID uint64, conversationID string) error {
	conv, err := s.load(ctx, userID, conversationID)
	if err != nil {
		return err
	}
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
