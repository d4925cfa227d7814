package consts

const (
	MimePrefixImage = "image"
	MimePrefixVideo = "video"
)

// 消息类型
const (
	MessageTypeText   = "text"
	MessageTypeImage  = "image"
	MessageTypeVideo  = "video"
	MessageTypeFile   = "file"
	MessageTypeSystem = "system"
)

// 媒体类型
const (
	MediaTypeImage = "image"
	MediaTypeVideo = "video"
	MediaTypeFile  = "file"
)

// 会话成员角色
const (
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
	RoleMember    = "member"
)

// 会话列表过滤
const (
	ConversationFilterGroup    = "group"
	ConversationFilterDirect   = "direct"
	ConversationFilterArchived = "archived"
)

const (
	DefaultMessagePageSize = 50
	MaxMessagePageSize     = 200
	DefaultSearchPageSize  = 20
	MaxUserSearchResults   = 10
	DefaultMediaPageSize   = 100
	MaxMediaPageSize       = 200
	DefaultHistoryPageSize = 20
	MaxHistoryPageSize     = 100
)

// 登录历史事件
const (
	LoginEventLogin  = "login"
	LoginEventLogout = "logout"
	LoginEventRevoke = "revoke"
)
