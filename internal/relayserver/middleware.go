package relayserver

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ciphersync/internal/auth"
	"ciphersync/internal/domain"
)

const ownedContextKey = "owned"

func ownedFromContext(c *gin.Context) domain.OwnedIdentity {
	v, _ := c.Get(ownedContextKey)
	owned, _ := v.(domain.OwnedIdentity)
	return owned
}

func bearer(c *gin.Context) (string, bool) {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func requireAuth(cfg auth.TokenConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearer(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
			return
		}
		claims, err := auth.VerifyToken(token, cfg)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
			return
		}
		c.Set(ownedContextKey, domain.OwnedIdentity(claims.Owned))
		c.Next()
	}
}

// requireOwner rejects access to another identity's inbox.
func requireOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		if domain.OwnedIdentity(c.Param("owned")) != ownedFromContext(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Not your inbox"})
			return
		}
		c.Next()
	}
}

func requireAdmin(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		got, _ := bearer(c)
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid admin token"})
			return
		}
		c.Next()
	}
}
