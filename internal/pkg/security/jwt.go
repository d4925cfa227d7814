package security

import (
	"Chatline/internal/api/config"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	mu         sync.RWMutex
	jwtSecret  = []byte("chatline-dev-secret")
	jwtIssuer  = "Chatline"
	jwtExpires = 24 * time.Hour
)

// Configure 使用配置中的密钥、签发者与有效期
func Configure(cfg config.JWTConfig) {
	mu.Lock()
	defer mu.Unlock()
	if cfg.Secret != "" {
		jwtSecret = []byte(cfg.Secret)
	}
	if cfg.Issuer != "" {
		jwtIssuer = cfg.Issuer
	}
	if cfg.ExpirationHours > 0 {
		jwtExpires = time.Duration(cfg.ExpirationHours) * time.Hour
	}
}

// GenerateToken 生成一个新的 JWT Token，返回 token、jti 与过期时间
func GenerateToken(userID uint64) (string, string, time.Time, error) {
	mu.RLock()
	secret, issuer, ttl := jwtSecret, jwtIssuer, jwtExpires
	mu.RUnlock()

	now := time.Now()
	expiresAt := now.Add(ttl)
	jti := uuid.NewString()

	claims := &UserClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}

	return tokenString, jti, expiresAt, nil
}

// ValidateToken 验证 Token 字符串并解析出 Claims
func ValidateToken(tokenString string) (*UserClaims, error) {
	mu.RLock()
	secret := jwtSecret
	mu.RUnlock()

	claims := &UserClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})

	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	if !token.Valid {
		return nil, errors.New("token invalid or expired")
	}

	if claims.UserID == 0 {
		return nil, errors.New("token has no subject")
	}

	return claims, nil
}

// ExtractSignature 从 Token 字符串中提取签名
func ExtractSignature(tokenString string) (string, error) {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return "", errors.New("malformed token")
	}
	return parts[2], nil
}
