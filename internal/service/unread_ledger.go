package service

import (
	"Chatline/internal/pkg/mongo"
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UnreadLedger 会话内每个成员的未读计数，只使用存储层原子操作
type UnreadLedger interface {
	Increment(ctx context.Context, conversationID primitive.ObjectID, participantIDs ...uint64) (map[uint64]int64, error)
	Reset(ctx context.Context, conversationID primitive.ObjectID, participantID uint64) error
	Count(ctx context.Context, conversationID primitive.ObjectID, participantID uint64) (int64, error)
}

type unreadLedgerImpl struct {
	convRepo mongo.ConversationRepo
}

func NewUnreadLedger(convRepo mongo.ConversationRepo) UnreadLedger {
	return &unreadLedgerImpl{convRepo: convRepo}
}

// Increment 一次更新递增所有成员，返回递增后的值
func (s *unreadLedgerImpl) Increment(ctx context.Context, conversationID primitive.ObjectID, participantIDs ...uint64) (map[uint64]int64, error) {
	return s.convRepo.IncrementUnread(ctx, conversationID, participantIDs)
}

// Reset 清零，非成员返回 ErrConversationNotFound
func (s *unreadLedgerImpl) Reset(ctx context.Context, conversationID primitive.ObjectID, participantID uint64) error {
	ok, err := s.convRepo.ResetUnread(ctx, conversationID, participantID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConversationNotFound
	}
	return nil
}

func (s *unreadLedgerImpl) Count(ctx context.Context, conversationID primitive.ObjectID, participantID uint64) (int64, error) {
	conv, err := s.convRepo.FindActiveForParticipant(ctx, conversationID, participantID)
	if err != nil {
		return 0, err
	}
	if conv == nil {
		return 0, ErrConversationNotFound
	}
	return conv.UnreadOf(participantID), nil
}
