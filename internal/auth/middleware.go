package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Middleware admits requests carrying apiKey as a Bearer token or in
// x-api-key / x-functions-key. An empty apiKey disables the check.
func Middleware(apiKey string) gin.HandlerFunc {
	expected := strings.TrimSpace(apiKey)
	return func(c *gin.Context) {
		if expected == "" {
			c.Next()
			return
		}
		got := presentedKey(c)
		if got != "" && subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1 {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": gin.H{
				"message": "unauthorized",
				"code":    "invalid_api_key",
			},
		})
	}
}

func presentedKey(c *gin.Context) string {
	if v := strings.TrimSpace(c.GetHeader("Authorization")); strings.HasPrefix(v, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(v, "Bearer "))
	}
	if v := strings.TrimSpace(c.GetHeader("x-api-key")); v != "" {
		return v
	}
	// Azure Functions style key header used by existing callers.
	return strings.TrimSpace(c.GetHeader("x-functions-key"))
}
