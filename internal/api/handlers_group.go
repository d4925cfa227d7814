package api

import (
	"Chatline/internal/api/handler"
	"Chatline/internal/pkg/ratelimit"
	"Chatline/internal/service"
)

// HandlersGroup 封装了所有已初始化的 Handler 实例及路由所需的中间件依赖
type HandlersGroup struct {
	UserHandler         *handler.UserHandler
	ConversationHandler *handler.ConversationHandler
	MessageHandler      *handler.MessageHandler
	MediaHandler        *handler.MediaHandler
	SessionHandler      *handler.SessionHandler
	WSHandler           *handler.WsHandler

	AuthService service.AuthService
	RateLimiter *ratelimit.Store
}
