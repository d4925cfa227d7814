package middleware

import (
	"Chatline/internal/pkg/logger"
	"Chatline/internal/pkg/response"
	"Chatline/internal/service"
	"context"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	UserIDKey    = logger.UserIDKey
	SessionIDKey = "session_id"
	IdentityKey  = "identity"
)

// ExtractToken 优先读取 Authorization 头，allowQuery 时回退到 token 查询参数
func ExtractToken(c *gin.Context, allowQuery bool) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	if allowQuery {
		return c.Query("token")
	}
	return ""
}

// AuthMiddleware 负责验证 JWT 与会话状态并将用户身份信息注入 Context
func AuthMiddleware(authSvc service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := authSvc.Authenticate(c.Request.Context(), ExtractToken(c, false))
		if err != nil {
			response.Error(c, err)
			return
		}
		SetIdentity(c, identity)
		c.Next()
	}
}

// SetIdentity 写入 gin 与 request 两级上下文
func SetIdentity(c *gin.Context, identity *service.AuthIdentity) {
	c.Set(UserIDKey, identity.UserID)
	c.Set(SessionIDKey, identity.SessionID)
	c.Set(IdentityKey, identity)

	newCtx := context.WithValue(c.Request.Context(), UserIDKey, identity.UserID)
	c.Request = c.Request.WithContext(newCtx)
}

// Identity 读取当前请求的身份，未经过鉴权时返回 nil
func Identity(c *gin.Context) *service.AuthIdentity {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return nil
	}
	identity, _ := v.(*service.AuthIdentity)
	return identity
}
