package middleware

import (
	"bank_system/internal/domain"  // Error kinds
	"bank_system/internal/session" // Session store
	"bank_system/internal/utils"   // Outcome responses

	"github.com/gin-gonic/gin" // Gin web framework
)

// Context keys set by RequireSession
const (
	TokenKey  = "sessionToken"
	UserIDKey = "userID"
)

// RequireSession resolves the bearer session token on each request and stores token and user id in the context
func RequireSession(sessions *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			utils.RespondError(c, domain.NewError(domain.KindUnauthenticated, "Missing or invalid Authorization header"))
			return
		}
		userID, ok := sessions.Resolve(token)
		if !ok {
			utils.RespondError(c, domain.NewError(domain.KindUnauthenticated, "Invalid or expired token"))
			return
		}
		c.Set(TokenKey, token)   // Store token in context
		c.Set(UserIDKey, userID) // Store userID in context
		c.Next()                 // Proceed to the next handler
	}
}
