package db

import (
	"os"
	"path/filepath"
	"testing"

	"bank_system/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTemp(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "bank.db") + "?_busy_timeout=5000"
	db, err := Open("sqlite", dsn, Options{LogLevel: logger.Silent})
	require.NoError(t, err)
	return db
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("postgres", "", Options{})
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestMigrateAndSeed(t *testing.T) {
	db := openTemp(t)

	require.NoError(t, Migrate(db))
	fixture, err := LoadFixture("")
	require.NoError(t, err)
	require.Len(t, fixture.Users, 3)

	n, err := Seed(db, fixture, bcrypt.MinCost)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	var neo domain.User
	require.NoError(t, db.Where("username = ?", "neo").First(&neo).Error)
	assert.Equal(t, "ACC001", neo.AccountID)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(neo.Password), []byte("NeoPass123")))

	var acc domain.Account
	require.NoError(t, db.First(&acc, "account_id = ?", "ACC001").Error)
	assert.Equal(t, domain.Money(1000000), acc.Balance)

	// Seeding twice is a no-op
	n, err = Seed(db, fixture, bcrypt.MinCost)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLoadFixture_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	content := "users:\n  - user_id: U1\n    username: alice\n    password: pw\n    account_id: A1\n    balance: \"12.34\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	f, err := LoadFixture(path)
	require.NoError(t, err)
	require.Len(t, f.Users, 1)
	assert.Equal(t, "alice", f.Users[0].Username)
	assert.Equal(t, "12.34", f.Users[0].Balance)
}

func TestSeed_RejectsBadBalance(t *testing.T) {
	db := openTemp(t)
	require.NoError(t, Migrate(db))

	_, err := Seed(db, &Fixture{Users: []SeedUser{{UserID: "U1", Username: "x", Password: "p", AccountID: "A1", Balance: "lots"}}}, bcrypt.MinCost)
	assert.ErrorContains(t, err, "invalid balance")

	var count int64
	require.NoError(t, db.Model(&domain.User{}).Count(&count).Error)
	assert.Zero(t, count, "failed seed rolls back")
}
