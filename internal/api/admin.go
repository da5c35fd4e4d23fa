package api

import (
	"net/http" // HTTP status codes

	"bank_system/internal/transfer" // Orchestrator
	"bank_system/internal/utils"    // Outcome responses

	"github.com/gin-gonic/gin" // Gin web framework
)

// StatsHandler reports server counters. It never fails: an unreachable ledger yields zero counters.
func StatsHandler(svc *transfer.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		utils.Respond(c, "Stats retrieved", svc.ServerStats(c.Request.Context()), nil)
	}
}

// HealthHandler reports whether this tier is up and can reach the ledger
func HealthHandler(svc *transfer.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if svc.ServerStats(c.Request.Context()).LedgerUnavailable {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "ledger": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "ledger": "ok"})
	}
}
