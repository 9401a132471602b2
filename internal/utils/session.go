package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionClaims 会话声明
type SessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// SessionManager 签发和校验会话 Cookie 中的令牌
type SessionManager struct {
	secretKey  []byte
	algorithm  jwt.SigningMethod
	expireTime time.Duration
}

// NewSessionManager 创建会话管理器
func NewSessionManager(secretKey string, algorithm string, expireTime time.Duration) *SessionManager {
	method := jwt.GetSigningMethod(algorithm)
	if method == nil {
		method = jwt.SigningMethodHS256
	}
	return &SessionManager{
		secretKey:  []byte(secretKey),
		algorithm:  method,
		expireTime: expireTime,
	}
}

// ExpireTime 会话有效期
func (m *SessionManager) ExpireTime() time.Duration {
	return m.expireTime
}

// NewSession 生成新的会话 ID 和令牌
func (m *SessionManager) NewSession() (string, string, error) {
	sessionID := uuid.NewString()
	token, err := m.GenerateToken(sessionID)
	if err != nil {
		return "", "", err
	}
	return sessionID, token, nil
}

// GenerateToken 为会话生成令牌
func (m *SessionManager) GenerateToken(sessionID string) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expireTime)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(m.algorithm, claims)
	return token.SignedString(m.secretKey)
}

// ValidateToken 校验令牌并返回会话 ID
func (m *SessionManager) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != m.algorithm {
			return nil, errors.New("无效的签名算法")
		}
		return m.secretKey, nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return "", errors.New("无效的会话令牌")
	}
	if _, err := uuid.Parse(claims.SessionID); err != nil {
		return "", errors.New("无效的会话ID")
	}
	return claims.SessionID, nil
}
