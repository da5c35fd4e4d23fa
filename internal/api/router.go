package api

import (
	"net/http" // Metrics handler

	"bank_system/internal/middleware" // Middleware
	"bank_system/internal/transfer"   // Orchestrator

	"github.com/gin-gonic/gin" // Gin web framework
)

// NewRouter builds the application tier's routes. limiter and metrics may be nil.
func NewRouter(svc *transfer.Service, limiter *middleware.RateLimiter, metrics http.Handler) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.AccessLog(), middleware.Recovery())

	// Auth routes
	login := []gin.HandlerFunc{LoginHandler(svc)}
	if limiter != nil {
		login = append([]gin.HandlerFunc{limiter.Middleware()}, login...)
	}
	r.POST("/login", login...)

	// Session routes
	authed := r.Group("/")
	authed.Use(middleware.RequireSession(svc.Sessions()))
	authed.POST("/logout", LogoutHandler(svc))
	authed.GET("/balance", BalanceHandler(svc))
	authed.POST("/transfers", TransferHandler(svc))
	authed.GET("/transfers", TransferHistoryHandler(svc))
	authed.GET("/transfers/:id", TransferStatusHandler(svc))

	// Operational routes
	r.GET("/stats", StatsHandler(svc))
	r.GET("/health", HealthHandler(svc))
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}
	return r
}
