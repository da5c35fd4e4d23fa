package main

import (
	"context"   // Graceful shutdown
	"errors"    // Error checks
	"net/http"  // HTTP server
	"os"        // Signals
	"os/signal" // Signals
	"syscall"   // Signals
	"time"      // Timeouts

	"bank_system/internal/config"     // Configuration
	"bank_system/internal/db"         // Database
	"bank_system/internal/ledger"     // Ledger store
	"bank_system/internal/middleware" // Middleware
	"bank_system/internal/rpc"        // Ledger RPC surface

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logrus for structured logging
)

// Main function of the ledger tier: the only process that touches the database
func main() {
	cfg := config.LoadConfig() // Load configuration
	cfg.SetupLogger()

	if cfg.ServiceSecret == "" {
		logrus.Fatal("SERVICE_SECRET must be set") // Refuse to serve an unauthenticated ledger
	}

	gdb, err := db.Connect(cfg)
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		logrus.Fatalf("%v", err)
	}
	store := ledger.NewStore(gdb, ledger.WithTxRetries(cfg.TxRetries))

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.AccessLog(), middleware.Recovery())
	rpc.RegisterRoutes(r, store, middleware.RequireServiceToken(cfg.ServiceSecret))

	srv := &http.Server{
		Addr:              ":" + cfg.LedgerPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logrus.Info("Ledger running on " + cfg.LedgerPort) // Log server start
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("ledger server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	// In-flight transfers finish and commit before the pool closes
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("ledger shutdown: %v", err)
	}
	if sqlDB, err := gdb.DB(); err == nil {
		_ = sqlDB.Close()
	}
	logrus.Info("Ledger stopped")
}
