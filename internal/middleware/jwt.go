package middleware

import (
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"bank_system/internal/utils" // JWT utility functions

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging
)

// bearerToken extracts the token of an "Authorization: Bearer <token>" header
func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization") // Get Authorization header
	if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	return token, token != ""
}

// RequireServiceToken guards the ledger tier: only holders of SERVICE_SECRET can mint a valid token.
// Failures carry no error_kind, so clients never mistake them for a ledger outcome.
func RequireServiceToken(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := bearerToken(c)
		if !ok {
			// If not, abort with unauthorized status
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Missing or invalid Authorization header"})
			return
		}
		claims, err := utils.ParseServiceToken(tokenStr, secret) // Parse the JWT token
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"request_id": c.GetString(utils.RequestIDKey),
				"client_ip":  c.ClientIP(),
				"error":      err.Error(),
			}).Warn("Rejected service token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid or expired service token"})
			return
		}
		c.Set("callerRequestID", claims.RequestID) // Request id of the calling tier
		c.Next()                                   // Proceed to the next handler
	}
}
