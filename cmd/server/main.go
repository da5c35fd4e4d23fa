package main

import (
	"context"   // context package is needed for Redis operations
	"errors"    // Error checks
	"net/http"  // HTTP server
	"os"        // Signals
	"os/signal" // Signals
	"syscall"   // Signals
	"time"      // Timeouts

	"bank_system/internal/api"        // Custom package for API handlers
	"bank_system/internal/config"     // Custom package for configuration
	"bank_system/internal/metrics"    // Prometheus collectors
	"bank_system/internal/middleware" // Custom package for middleware
	"bank_system/internal/rpc"        // Ledger client
	"bank_system/internal/session"    // Session store
	"bank_system/internal/transfer"   // Orchestrator
	"bank_system/internal/utils"      // History cache

	"github.com/gin-gonic/gin"                                  // Gin web framework
	"github.com/prometheus/client_golang/prometheus"            // Metrics registry
	"github.com/prometheus/client_golang/prometheus/collectors" // Runtime collectors
	"github.com/prometheus/client_golang/prometheus/promhttp"   // Metrics handler
	"github.com/redis/go-redis/v9"                              // Redis client
	"github.com/sirupsen/logrus"                                // Logrus for structured logging
)

// Main function of the application tier
func main() {
	cfg := config.LoadConfig() // Load configuration
	cfg.SetupLogger()

	if cfg.ServiceSecret == "" {
		logrus.Fatal("SERVICE_SECRET must be set") // Needed to sign ledger calls
	}

	// Setup Redis client; caching is optional
	var history *utils.HistoryCache
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr, // Redis server address
			Password: cfg.RedisPass, // Redis password
			DB:       cfg.RedisDB,   // Redis database number
		})
		// Test Redis connection
		if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
			logrus.Fatalf("failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		history = utils.NewHistoryCache(redisClient, time.Minute)
	} else {
		logrus.Warn("REDIS_ADDR not set, transfer history is not cached")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	sessions := session.NewManager(session.WithTTL(cfg.SessionTTL))
	metrics.RegisterActiveSessions(reg, sessions.Count)

	ledgerClient := rpc.NewClient(cfg.LedgerURL, cfg.ServiceSecret, cfg.LedgerTimeout)
	svc := transfer.NewService(ledgerClient, sessions,
		transfer.WithHistoryCache(history),
		transfer.WithMetrics(m),
		transfer.WithRetries(cfg.LedgerRetries),
	)

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}
	r := api.NewRouter(svc,
		middleware.NewRateLimiter(cfg.LoginRPS, cfg.LoginBurst),
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	)
	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logrus.Info("Server running on " + cfg.AppPort) // Log server start
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("server shutdown: %v", err)
	}
	logrus.Info("Server stopped")
}
