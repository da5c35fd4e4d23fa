// Package testutils provides fixtures shared by package tests.
package testutils

import (
	"path/filepath" // File paths
	"testing"       // Test helpers

	"bank_system/internal/db" // Database helpers

	"github.com/stretchr/testify/require" // Test assertions
	"golang.org/x/crypto/bcrypt"          // Password hashing
	"gorm.io/gorm"                        // GORM ORM library
	"gorm.io/gorm/logger"                 // GORM log levels
)

// Seeded users (see internal/db/seed.yaml)
const (
	NeoUserID     = "USER001"
	NeoAccount    = "ACC001"
	NeoPassword   = "NeoPass123"
	KenUserID     = "USER002"
	KenAccount    = "ACC002"
	KenPassword   = "KenPass456"
	TimuthuUserID = "USER003"
	TimuthuPass   = "TimuthuPass789"
)

// LedgerPath returns a fresh database file path in a temp dir
func LedgerPath(t testing.TB) string {
	return filepath.Join(t.TempDir(), "bank.db")
}

// OpenLedgerDB opens (or reopens) the SQLite ledger at path, migrated and seeded
func OpenLedgerDB(t testing.TB, path string) *gorm.DB {
	t.Helper()
	gdb, err := db.Open("sqlite", path+"?_busy_timeout=5000&_foreign_keys=on", db.Options{LogLevel: logger.Silent})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	fixture, err := db.LoadFixture("")
	require.NoError(t, err)
	_, err = db.Seed(gdb, fixture, bcrypt.MinCost)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}

// NewLedgerDB opens a seeded ledger in a temp dir
func NewLedgerDB(t testing.TB) *gorm.DB {
	return OpenLedgerDB(t, LedgerPath(t))
}
