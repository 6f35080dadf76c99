package adminauth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireAdmin returns gin middleware that rejects requests without a
// valid admin bearer token.
func RequireAdmin(cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := ExtractBearerToken(c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		if _, err := cfg.ValidateToken(token); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Next()
	}
}
