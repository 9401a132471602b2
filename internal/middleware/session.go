package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"inspect-go/internal/utils"
)

const sessionKey = "session_id"

// SessionMiddleware 会话中间件
// 从 Cookie 读取会话令牌，缺失或失效时签发新会话
func SessionMiddleware(sessions *utils.SessionManager, cookieName string, secure bool, logger *logrus.Logger) gin.HandlerFunc {
	maxAge := int(sessions.ExpireTime().Seconds())

	return func(c *gin.Context) {
		if token, err := c.Cookie(cookieName); err == nil && token != "" {
			if sessionID, err := sessions.ValidateToken(token); err == nil {
				c.Set(sessionKey, sessionID)
				c.Next()
				return
			}
		}

		sessionID, token, err := sessions.NewSession()
		if err != nil {
			logger.WithError(err).Error("签发会话失败")
			utils.InternalError(c, "无法创建会话")
			c.Abort()
			return
		}

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(cookieName, token, maxAge, "/", "", secure, true)
		c.Set(sessionKey, sessionID)
		c.Next()
	}
}

// GetSessionID 从上下文获取会话ID
func GetSessionID(c *gin.Context) string {
	sessionID, exists := c.Get(sessionKey)
	if !exists {
		return ""
	}
	return sessionID.(string)
}
