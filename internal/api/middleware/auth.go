package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ksw5434/realestate/internal/auth"
	"github.com/ksw5434/realestate/internal/models"
)

const (
	// ContextKeyCaller holds the key for the resolved models.Caller in Gin context.
	ContextKeyCaller = "caller"
)

// SessionMiddleware resolves the session from a Bearer token or the session cookie.
// Requests without a valid session continue as anonymous callers.
func SessionMiddleware(jwtSecret, cookieName string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := sessionToken(c, cookieName)
		if tokenString == "" {
			c.Next()
			return
		}

		claims, err := auth.ValidateJWT(tokenString, jwtSecret)
		if err != nil {
			logger.Debug("Ignoring invalid session token", zap.String("path", c.FullPath()), zap.Error(err))
			c.Next()
			return
		}

		c.Set(ContextKeyCaller, models.Caller{UserID: claims.UserID, Email: claims.Email})
		c.Next()
	}
}

// RequireAuth aborts requests that SessionMiddleware left anonymous.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !CallerFromContext(c).Authenticated() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		c.Next()
	}
}

// CallerFromContext returns the request's caller, or an anonymous one.
func CallerFromContext(c *gin.Context) models.Caller {
	if v, ok := c.Get(ContextKeyCaller); ok {
		if caller, ok := v.(models.Caller); ok {
			return caller
		}
	}
	return models.Caller{}
}

// sessionToken prefers the Authorization header over the cookie.
func sessionToken(c *gin.Context, cookieName string) string {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
			return parts[1]
		}
		return ""
	}
	if cookie, err := c.Cookie(cookieName); err == nil {
		return cookie
	}
	return ""
}
