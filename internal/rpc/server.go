// Package rpc is the internal HTTP/JSON surface of the ledger tier and the client
// the application tier uses to reach it.
package rpc

import (
	"context"  // Health check timeout
	"net/http" // HTTP status codes
	"time"     // Health check timeout

	"bank_system/internal/domain" // Domain types
	"bank_system/internal/ledger" // Ledger store
	"bank_system/internal/utils"  // Outcome responses

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging
)

// CredentialsRequest is the body of POST /v1/credentials/validate
type CredentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func badRequest(c *gin.Context, err error) {
	logrus.WithFields(logrus.Fields{
		"request_id": c.GetString(utils.RequestIDKey),
		"path":       c.FullPath(),
		"error":      err.Error(),
	}).Warn("Malformed ledger request")
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "message": "Malformed request"})
}

// RegisterRoutes mounts the ledger operations under /v1, guarded by auth
func RegisterRoutes(r *gin.Engine, store *ledger.Store, auth gin.HandlerFunc) {
	r.GET("/health", HealthHandler(store))

	v1 := r.Group("/v1")
	v1.Use(auth)
	v1.POST("/credentials/validate", ValidateCredentialsHandler(store))
	v1.GET("/users/:user_id/balance", BalanceHandler(store))
	v1.GET("/users/:user_id/transfers", ListTransfersHandler(store))
	v1.GET("/accounts/:account_id/exists", AccountExistsHandler(store))
	v1.GET("/accounts/:account_id", ResolveAccountHandler(store))
	v1.POST("/transfers", ExecuteTransferHandler(store))
	v1.GET("/transfers/:id", GetTransferHandler(store))
	v1.GET("/stats", StatsHandler(store))
}

// ValidateCredentialsHandler checks a username/password pair
func ValidateCredentialsHandler(store *ledger.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CredentialsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		id, err := store.CheckCredentials(c.Request.Context(), req.Username, req.Password)
		utils.Respond(c, "Credentials valid", id, err)
	}
}

// BalanceHandler returns a user's balance
func BalanceHandler(store *ledger.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		view, err := store.GetBalance(c.Request.Context(), c.Param("user_id"))
		utils.Respond(c, "Balance retrieved", view, err)
	}
}

// AccountExistsHandler reports whether an account exists
func AccountExistsHandler(store *ledger.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := store.AccountExists(c.Request.Context(), c.Param("account_id"))
		utils.Respond(c, "Account checked", gin.H{"exists": ok}, err)
	}
}

// ResolveAccountHandler returns the owner of an account
func ResolveAccountHandler(store *ledger.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := store.ResolveAccount(c.Request.Context(), c.Param("account_id"))
		utils.Respond(c, "Account resolved", id, err)
	}
}

// ExecuteTransferHandler runs one atomic transfer
func ExecuteTransferHandler(store *ledger.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req domain.TransferRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		res, err := store.ExecuteTransfer(c.Request.Context(), req)
		utils.Respond(c, "Transfer completed successfully", res, err)
	}
}

// GetTransferHandler returns one transfer with both parties
func GetTransferHandler(store *ledger.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, err := store.GetTransfer(c.Request.Context(), c.Param("id"))
		utils.Respond(c, "Transfer retrieved", gin.H{"transfer": d}, err)
	}
}

// ListTransfersHandler returns a user's transfers, newest first
func ListTransfersHandler(store *ledger.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := store.ListTransfersForUser(c.Request.Context(), c.Param("user_id"))
		utils.Respond(c, "Transfers retrieved", gin.H{"transfers": list, "count": len(list)}, err)
	}
}

// StatsHandler returns aggregate ledger counters
func StatsHandler(store *ledger.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := store.GetStats(c.Request.Context())
		utils.Respond(c, "Stats retrieved", stats, err)
	}
}

// HealthHandler pings the database
func HealthHandler(store *ledger.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			logrus.WithField("error", err.Error()).Error("Ledger health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
