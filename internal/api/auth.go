package api

import (
	"net/http" // HTTP status codes

	"bank_system/internal/domain"     // Error kinds
	"bank_system/internal/middleware" // Context keys
	"bank_system/internal/transfer"   // Orchestrator
	"bank_system/internal/utils"      // Outcome responses

	"github.com/gin-gonic/gin" // Gin web framework
)

// Request struct for login
type LoginRequest struct {
	Username string `json:"username" binding:"required"` // Username must be provided
	Password string `json:"password" binding:"required"` // Password must be provided
}

// LoginHandler authenticates a user and returns a session token
func LoginHandler(svc *transfer.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			// Missing fields are treated like wrong credentials
			utils.RespondError(c, domain.NewError(domain.KindUnauthenticated, "Username and password are required"))
			return
		}
		res, err := svc.Login(c.Request.Context(), req.Username, req.Password)
		utils.Respond(c, "Login successful", res, err)
	}
}

// LogoutHandler destroys the caller's session
func LogoutHandler(svc *transfer.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := svc.Logout(c.GetString(middleware.TokenKey))
		if err != nil {
			utils.RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out"})
	}
}
