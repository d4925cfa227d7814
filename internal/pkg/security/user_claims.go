package security

import (
	"github.com/golang-jwt/jwt/v5"
)

// UserClaims Token 中携带的业务信息，RegisteredClaims.ID 为会话 jti
type UserClaims struct {
	UserID uint64 `json:"user_id"`
	jwt.RegisteredClaims
}
