package consts

// 客户端 -> 服务端
const (
	EventJoinRoom   = "join-room"
	EventLeaveRoom  = "leave-room"
	EventSend       = "send"
	EventTyping     = "typing"
	EventMarkAsRead = "mark-as-read"
)

// 服务端 -> 客户端
const (
	EventReceiveMessage              = "receive-message"
	EventNewMessageNotification      = "new-message-notification"
	EventMessageStatusUpdate         = "message-status-update"
	EventMessagesRead                = "messages-read"
	EventUserTyping                  = "user-typing"
	EventPresenceChanged             = "presence-changed"
	EventOnlineUserList              = "online-user-list"
	EventConversationArchived        = "conversation-archived"
	EventConversationUnarchived      = "conversation-unarchived"
	EventConversationDeleted         = "conversation-deleted"
	EventGroupInfoUpdated            = "group-info-updated"
	EventGroupMembersAdded           = "group-members-added"
	EventGroupMemberRemoved          = "group-member-removed"
	EventRemovedFromGroup            = "removed-from-group"
	EventMemberPromoted              = "member-promoted"
	EventNotificationSettingsUpdated = "notification-settings-updated"
	EventMessageEdited               = "message-edited"
	EventMessageDeleted              = "message-deleted"
	EventMessageReactionUpdated      = "message-reaction-updated"
	EventError                       = "error"
)

// error 帧中的错误码
const (
	CodeValidation      = "VALIDATION"
	CodeNotFound        = "NOT_FOUND"
	CodeForbidden       = "FORBIDDEN"
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeInternal        = "INTERNAL"
	CodeRateLimited     = "RATE_LIMITED"
)
