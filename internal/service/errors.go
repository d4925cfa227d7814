package service

import (
	"Chatline/internal/pkg/consts"
	"errors"
)

const (
	BadRequest          = 400
	Unauthorized        = 401
	Forbidden           = 403
	NotFound            = 404
	InternalServerError = 500
)

var (
	ErrParamInvalid         = errors.New("invalid parameters")
	ErrInvalidID            = errors.New("invalid id")
	ErrEmptyMessage         = errors.New("message content or media is required")
	ErrReplyRequired        = errors.New("replyTo is required")
	ErrInvalidStatus        = errors.New("invalid message status")
	ErrEmptyQuery           = errors.New("search query is required")
	ErrSelfConversation     = errors.New("cannot start a conversation with yourself")
	ErrBlockSelf            = errors.New("cannot block yourself")
	ErrGroupTooSmall        = errors.New("a group needs at least 2 other participants")
	ErrGroupNameRequired    = errors.New("group name is required")
	ErrNotGroup             = errors.New("operation is only allowed on group conversations")
	ErrFileNotSupported     = errors.New("unsupported file type")
	ErrUserNotFound         = errors.New("user not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrReplyNotFound        = errors.New("replied message not found")
	ErrMediaNotFound        = errors.New("media not found")
	ErrMemberNotFound       = errors.New("member not found")
	ErrSessionNotFound      = errors.New("session not found")
	ErrBlocked              = errors.New("messaging is blocked between these users")
	ErrNotSender            = errors.New("only the sender can modify this message")
	ErrNotMediaOwner        = errors.New("only the uploader can delete this media")
	ErrNotAdmin             = errors.New("only group admins can do this")
	ErrOwnMessageStatus     = errors.New("senders cannot update the status of their own message")
	ErrNotInRoom            = errors.New("join the conversation room first")
	ErrUnauthenticated      = errors.New("authentication required")
	ErrTokenInvalid         = errors.New("token invalid or expired")
	ErrSessionRevoked       = errors.New("session revoked")
	UnExpectedError         = errors.New("internal error, please retry later")
)

var ErrorMap = map[error]int{
	ErrParamInvalid:         BadRequest,
	ErrInvalidID:            BadRequest,
	ErrEmptyMessage:         BadRequest,
	ErrReplyRequired:        BadRequest,
	ErrInvalidStatus:        BadRequest,
	ErrEmptyQuery:           BadRequest,
	ErrSelfConversation:     BadRequest,
	ErrBlockSelf:            BadRequest,
	ErrGroupTooSmall:        BadRequest,
	ErrGroupNameRequired:    BadRequest,
	ErrNotGroup:             BadRequest,
	ErrFileNotSupported:     BadRequest,
	ErrUserNotFound:         NotFound,
	ErrConversationNotFound: NotFound,
	ErrMessageNotFound:      NotFound,
	ErrReplyNotFound:        NotFound,
	ErrMediaNotFound:        NotFound,
	ErrMemberNotFound:       NotFound,
	ErrSessionNotFound:      NotFound,
	ErrBlocked:              Forbidden,
	ErrNotSender:            Forbidden,
	ErrNotMediaOwner:        Forbidden,
	ErrNotAdmin:             Forbidden,
	ErrOwnMessageStatus:     Forbidden,
	ErrNotInRoom:            Forbidden,
	ErrUnauthenticated:      Unauthorized,
	ErrTokenInvalid:         Unauthorized,
	ErrSessionRevoked:       Unauthorized,
	UnExpectedError:         InternalServerError,
}

// CodeOf 返回错误对应的状态码，包装过的错误同样可以识别，未知错误为 500
func CodeOf(err error) (int, bool) {
	if err == nil {
		return 0, false
	}
	if code, ok := ErrorMap[err]; ok {
		return code, true
	}
	for known, code := range ErrorMap {
		if errors.Is(err, known) {
			return code, true
		}
	}
	return InternalServerError, false
}

// RealtimeCode 状态码到长连接错误码
func RealtimeCode(status int) string {
	switch status {
	case BadRequest:
		return consts.CodeValidation
	case NotFound:
		return consts.CodeNotFound
	case Forbidden:
		return consts.CodeForbidden
	case Unauthorized:
		return consts.CodeUnauthenticated
	default:
		return consts.CodeInternal
	}
}
