package api

import (
	"Chatline/internal/api/config"
	"Chatline/internal/api/middleware"
	"Chatline/internal/pkg/logger"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRouter(group *HandlersGroup, cfg *config.Config) *gin.Engine {
	r := gin.New()
	trusted := cfg.Server.TrustedProxies
	if len(trusted) == 0 {
		trusted = []string{"127.0.0.1", "::1"}
	}
	_ = r.SetTrustedProxies(trusted)

	// TraceId & Logger & CORS
	r.Use(middleware.TraceMiddleware())
	logger.SetupGin(r, cfg.Logstash)
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.CORSMiddleware(cfg.Server.AllowedOrigins))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws", group.WSHandler.Connect)

	apiGroup := r.Group("/api")
	apiGroup.Use(middleware.RateLimitMiddleware(group.RateLimiter))
	{
		apiGroup.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"code":    200,
				"message": "pong",
				"data":    nil,
			})
		})

		authGroup := apiGroup.Group("")
		authGroup.Use(middleware.AuthMiddleware(group.AuthService), middleware.AuditMiddleware())

		userGroup := authGroup.Group("/users")
		{
			userGroup.GET("", group.UserHandler.ListUsers)
			userGroup.GET("/search", group.UserHandler.SearchUsers)
			userGroup.GET("/blocked", group.UserHandler.ListBlocked)
			userGroup.GET("/:id", group.UserHandler.GetUser)
			userGroup.POST("/:id/block", group.UserHandler.ToggleBlock)
		}

		convGroup := authGroup.Group("/conversations")
		{
			convGroup.GET("", group.ConversationHandler.List)
			convGroup.POST("", group.ConversationHandler.GetOrCreate)
			convGroup.POST("/group", group.ConversationHandler.CreateGroup)
			convGroup.PATCH("/:id/archive", group.ConversationHandler.Archive)
			convGroup.PATCH("/:id/unarchive", group.ConversationHandler.Unarchive)
			convGroup.DELETE("/:id", group.ConversationHandler.Delete)
			convGroup.PATCH("/:id/group-info", group.ConversationHandler.UpdateGroupInfo)
			convGroup.POST("/:id/members", group.ConversationHandler.AddMembers)
			convGroup.DELETE("/:id/members/:memberId", group.ConversationHandler.RemoveMember)
			convGroup.PATCH("/:id/members/:memberId/promote", group.ConversationHandler.PromoteToAdmin)
			convGroup.PATCH("/:id/notifications", group.ConversationHandler.UpdateNotificationSettings)
			convGroup.GET("/:id/media", group.MediaHandler.ListConversation)
		}

		msgGroup := authGroup.Group("/messages")
		{
			msgGroup.GET("/search", group.MessageHandler.Search)
			msgGroup.GET("/:conversationId", group.MessageHandler.GetMessages)
			msgGroup.POST("", group.MessageHandler.Send)
			msgGroup.POST("/reply", group.MessageHandler.Reply)
			msgGroup.PUT("/edit", group.MessageHandler.Edit)
			msgGroup.DELETE("/:messageId", group.MessageHandler.Delete)
			msgGroup.POST("/react", group.MessageHandler.React)
			msgGroup.PATCH("/status", group.MessageHandler.UpdateStatus)
		}

		mediaGroup := authGroup.Group("/media")
		{
			mediaGroup.POST("/upload", group.MediaHandler.Upload)
			mediaGroup.GET("/:id", group.MediaHandler.Get)
			mediaGroup.DELETE("/:id", group.MediaHandler.Delete)
		}

		sessionGroup := authGroup.Group("/sessions")
		{
			sessionGroup.GET("", group.SessionHandler.List)
			sessionGroup.GET("/history", group.SessionHandler.History)
			sessionGroup.DELETE("/:id", group.SessionHandler.Revoke)
			sessionGroup.POST("/logout", group.SessionHandler.Logout)
		}
	}

	return r
}
