package service

// Notifier 实时推送，由 realtime.Hub 实现
type Notifier interface {
	IsOnline(userID uint64) bool
	// EmitToUser 推送到用户个人房间，返回成功入队的连接数
	EmitToUser(userID uint64, event string, payload any) int
	EmitToConversation(conversationID, event string, payload any, exceptPeerID string) int
	DetachUserFromConversation(userID uint64, conversationID string)
}

// NopNotifier 不推送任何事件
type NopNotifier struct{}

func (NopNotifier) IsOnline(uint64) bool                               { return false }
func (NopNotifier) EmitToUser(uint64, string, any) int                 { return 0 }
func (NopNotifier) EmitToConversation(string, string, any, string) int { return 0 }
func (NopNotifier) DetachUserFromConversation(uint64, string)          {}

// emitToUsers 逐个推送到个人房间
func emitToUsers(n Notifier, userIDs []uint64, event string, payload any) {
	for _, uid := range userIDs {
		n.EmitToUser(uid, event, payload)
	}
}
