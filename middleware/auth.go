package middleware

import (
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/crawlfrontier/frontier/utils"
)

// internalAPIKey allows service-to-service calls carrying a matching
// X-Internal-API-Key header to skip bearer-token auth.
var internalAPIKey = os.Getenv("INTERNAL_API_KEY")

// AuthRequired protects mutating admin/worker endpoints with a bearer JWT,
// setting "operator" in the gin context to the token's subject claim.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		apiKey := c.GetHeader("X-Internal-API-Key")
		if apiKey != "" && internalAPIKey != "" && apiKey == internalAPIKey {
			c.Set("operator", "internal-service")
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(401, gin.H{"error": "authorization header missing"})
			c.Abort()
			return
		}

		const prefix = "Bearer "
		if len(authHeader) <= len(prefix) || authHeader[:len(prefix)] != prefix {
			slog.ErrorContext(ctx, "invalid authorization header format", "header", authHeader)
			c.JSON(401, gin.H{"error": "invalid authorization header format"})
			c.Abort()
			return
		}

		token := authHeader[len(prefix):]
		operator, err := utils.ValidateJWT(token)
		if err != nil {
			c.JSON(401, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}

		c.Set("operator", operator)
		c.Next()
	}
}
