package middleware

import (
	"net/http"
	"strings"

	"peercam/internal/core/services"

	"github.com/gin-gonic/gin"
)

// Auth validates the Bearer signaling token on control API requests.
// A nil token service (no --signaling-key) leaves the API open.
func Auth(tokens *services.TokenService) gin.HandlerFunc {
	if tokens == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			c.Abort()
			return
		}

		claims, err := tokens.ValidateToken(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			c.Abort()
			return
		}

		c.Set("channel_id", claims.ChannelID)
		c.Set("client_id", claims.ClientID)
		c.Next()
	}
}
