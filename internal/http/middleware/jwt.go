package middleware

import (
	"net/http"
	"strings"

	"arcade_arena/internal/service"

	"github.com/gin-gonic/gin"
)

// WalletKey is the context key JWT stores the authenticated wallet under.
const WalletKey = "wallet"

// JWT requires a bearer token and stores its wallet in the context.
func JWT() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(h, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		wallet, err := service.ParseJWT(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(WalletKey, wallet)
		c.Next()
	}
}
