package db

import (
	_ "embed" // Embedded seed fixture
	"fmt"     // Error formatting
	"os"      // Files and environment

	"bank_system/internal/domain" // Domain models

	"github.com/shopspring/decimal" // Exact decimal arithmetic
	"github.com/sirupsen/logrus"    // Logging
	"golang.org/x/crypto/bcrypt"    // Password hashing
	"gopkg.in/yaml.v3"              // YAML fixtures
	"gorm.io/gorm"                  // GORM ORM library
)

//go:embed seed.yaml
var defaultSeed []byte

// SeedUser is one user/account pair in a seed file
type SeedUser struct {
	UserID    string `yaml:"user_id"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	AccountID string `yaml:"account_id"`
	Balance   string `yaml:"balance"` // Decimal currency text, e.g. "10000.00"
}

// Fixture is the content of a seed file
type Fixture struct {
	Users []SeedUser `yaml:"users"`
}

// LoadFixture reads a YAML seed file, or the built-in fixture when path is empty
func LoadFixture(path string) (*Fixture, error) {
	data := defaultSeed
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read seed file: %w", err)
		}
		data = b
	}
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &f, nil
}

// Seed inserts the fixture when the users table is empty. It reports how many users were created.
func Seed(db *gorm.DB, f *Fixture, cost int) (int, error) {
	var count int64
	if err := db.Model(&domain.User{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return 0, nil // Already seeded
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		for _, u := range f.Users {
			amount, err := decimal.NewFromString(u.Balance)
			if err != nil {
				return fmt.Errorf("user %s: invalid balance %q: %w", u.Username, u.Balance, err)
			}
			balance, err := domain.ToMinorUnits(amount)
			if err != nil || balance < 0 {
				return fmt.Errorf("user %s: balance %q out of range", u.Username, u.Balance)
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), cost)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			user := domain.User{UserID: u.UserID, Username: u.Username, Password: string(hash), AccountID: u.AccountID}
			if err := tx.Create(&user).Error; err != nil {
				return err // Return error to rollback
			}
			account := domain.Account{AccountID: u.AccountID, UserID: u.UserID, Balance: balance}
			if err := tx.Create(&account).Error; err != nil {
				return err // Return error to rollback
			}
			logrus.WithFields(logrus.Fields{
				"username": u.Username,
				"balance":  balance.String(),
			}).Info("Seeded user")
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("seed failed: %w", err)
	}
	return len(f.Users), nil
}
