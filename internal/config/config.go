package config

import (
	"fmt"     // For DSN formatting
	"os"      // For environment variables
	"strconv" // For string to int conversion
	"time"    // For durations

	"github.com/joho/godotenv"   // For loading .env files
	"github.com/sirupsen/logrus" // For logger setup
)

// Config holds the configuration of both tiers and the tools
type Config struct {
	AppPort        string        // Application tier port
	LedgerPort     string        // Ledger tier port
	LedgerURL      string        // Base URL the application tier uses to reach the ledger
	LedgerTimeout  time.Duration // Per-call timeout for cross-tier calls
	LedgerRetries  int           // Extra attempts for retryable ledger failures
	ServiceSecret  string        // Shared secret for ledger service tokens
	DBDriver       string        // mysql or sqlite
	DBUser         string        // Database user
	DBPassword     string        // Database password
	DBHost         string        // Database host
	DBPort         string        // Database port
	DBName         string        // Database name
	SQLitePath     string        // SQLite file when DBDriver is sqlite
	DBMaxOpenConns int           // Connection pool size
	DBMaxIdleConns int           // Idle connections kept in the pool
	TxRetries      int           // Retries for deadlocked/locked ledger transactions
	SeedFile       string        // Optional YAML seed file for the migrate command
	RedisAddr      string        // Redis server address, empty disables caching
	RedisPass      string        // Redis password
	RedisDB        int           // Redis database number
	SessionTTL     time.Duration // Session lifetime, zero for no expiry
	LoginRPS       float64       // Login attempts per second per client IP
	LoginBurst     int           // Login burst per client IP
	IsProd         bool          // Is production environment
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	_ = godotenv.Load() // Load .env file if present
	return &Config{
		AppPort:        getEnv("APP_PORT", "9090"),
		LedgerPort:     getEnv("LEDGER_PORT", "9091"),
		LedgerURL:      getEnv("LEDGER_URL", "http://127.0.0.1:9091"),
		LedgerTimeout:  getDuration("LEDGER_TIMEOUT", 5*time.Second),
		LedgerRetries:  getInt("LEDGER_RETRIES", 1),
		ServiceSecret:  os.Getenv("SERVICE_SECRET"),
		DBDriver:       getEnv("DB_DRIVER", "mysql"),
		DBUser:         os.Getenv("DB_USER"),
		DBPassword:     os.Getenv("DB_PASSWORD"),
		DBHost:         getEnv("DB_HOST", "127.0.0.1"),
		DBPort:         getEnv("DB_PORT", "3306"),
		DBName:         getEnv("DB_NAME", "bank"),
		SQLitePath:     getEnv("SQLITE_PATH", "bank.db"),
		DBMaxOpenConns: getInt("DB_MAX_OPEN_CONNS", 20),
		DBMaxIdleConns: getInt("DB_MAX_IDLE_CONNS", 5),
		TxRetries:      getInt("LEDGER_TX_RETRIES", 3),
		SeedFile:       os.Getenv("SEED_FILE"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPass:      os.Getenv("REDIS_PASS"),
		RedisDB:        getInt("REDIS_DB", 0),
		SessionTTL:     getDuration("SESSION_TTL", 0),
		LoginRPS:       getFloat("LOGIN_RPS", 1),
		LoginBurst:     getInt("LOGIN_BURST", 5),
		IsProd:         os.Getenv("IS_PROD") == "true",
	}
}

// DSN returns the Data Source Name for the configured driver
func (c *Config) DSN() string {
	if c.DBDriver == "sqlite" {
		// Bounded wait on a locked database, foreign keys on
		return c.SQLitePath + "?_busy_timeout=5000&_foreign_keys=on"
	}
	// innodb_lock_wait_timeout bounds how long a transfer waits for a row lock
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&loc=UTC&innodb_lock_wait_timeout=5",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// getEnv returns the variable or a default when unset
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil && v > 0 {
		return v
	}
	return def
}

// getDuration accepts Go durations such as 5s or 30m
func getDuration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil && v >= 0 {
		return v
	}
	return def
}

// SetupLogger configures logrus: JSON in production, text with timestamps otherwise
func (c *Config) SetupLogger() {
	if c.IsProd {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}
