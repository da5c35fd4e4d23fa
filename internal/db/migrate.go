package db

import (
	"fmt"  // Error formatting
	"time" // Time durations

	"bank_system/internal/config" // Database settings
	"bank_system/internal/domain" // Importing domain models

	"github.com/sirupsen/logrus" // Logging
	"gorm.io/driver/mysql"       // MySQL driver for GORM
	"gorm.io/driver/sqlite"      // SQLite driver for GORM (local runs and tests)
	"gorm.io/gorm"               // GORM ORM library
	"gorm.io/gorm/logger"        // GORM log levels
)

// Options configures the connection pool
type Options struct {
	MaxOpenConns int
	MaxIdleConns int
	LogLevel     logger.LogLevel
}

// Open connects to the ledger database and configures the pool
func Open(driver, dsn string, opts Options) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "mysql":
		dialector = mysql.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if opts.LogLevel == 0 {
		opts.LogLevel = logger.Warn
	}
	// Route gorm's own logging through logrus
	gormLogger := logger.New(logrus.StandardLogger(), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  opts.LogLevel,
		IgnoreRecordNotFoundError: true,
	})
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to DB: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get pool: %w", err)
	}
	if driver == "sqlite" {
		// SQLite has a single writer; one pooled connection serializes transactions in-process
		opts.MaxOpenConns, opts.MaxIdleConns = 1, 1
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// Connect opens the database described by cfg
func Connect(cfg *config.Config) (*gorm.DB, error) {
	return Open(cfg.DBDriver, cfg.DSN(), Options{
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
	})
}

// Migrate performs automatic migration for the database schema
func Migrate(db *gorm.DB) error {
	// AutoMigrate will create tables, missing foreign keys, constraints, columns and indexes
	err := db.AutoMigrate(&domain.User{}, &domain.Account{}, &domain.Transfer{}, &domain.AuditEntry{})
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logrus.Info("Migration completed.") // Log successful migration
	return nil
}
