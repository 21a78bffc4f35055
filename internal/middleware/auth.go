package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/apperrors"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/identity"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/pkg/response"
)

// JWTAuth JWT 认证中间件
// 验证通过后把参与者ID放入请求上下文，引擎调用显式携带
func JWTAuth(tokenService *identity.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c.GetHeader("Authorization"))
		if token == "" {
			response.Unauthorized(c)
			c.Abort()
			return
		}

		claims, err := tokenService.Validate(token)
		if err != nil {
			if err == identity.ErrTokenExpired {
				response.Error(c, apperrors.ErrTokenExpired)
			} else {
				response.Error(c, apperrors.ErrTokenInvalid)
			}
			c.Abort()
			return
		}

		c.Set("principal_id", claims.UserID)
		c.Next()
	}
}

// extractToken 从 Authorization header 提取 token
func extractToken(authHeader string) string {
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return parts[1]
}

// GetPrincipalID 从 context 获取参与者ID
func GetPrincipalID(c *gin.Context) int64 {
	principalID, exists := c.Get("principal_id")
	if !exists {
		return 0
	}
	return principalID.(int64)
}
