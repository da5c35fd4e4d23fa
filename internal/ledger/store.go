// Package ledger is the only owner of persistent account state.
//
// Every exported operation runs on its own pooled connection for the duration of the
// call. ExecuteTransfer runs inside one database transaction with both account rows
// locked, so concurrent transfers from the same sender serialize on the sender's row.
package ledger

import (
	"context" // Context for cancellation and timeouts
	"errors"  // Error checks
	"sync"    // Mutexes

	"bank_system/internal/domain" // Domain models

	"golang.org/x/crypto/bcrypt" // Password hashing
	"gorm.io/gorm"               // GORM ORM library
)

// Store implements the ledger operations on top of gorm
type Store struct {
	db        *gorm.DB
	txRetries int

	dummyOnce sync.Once
	dummyHash []byte
}

type Option func(*Store)

// WithTxRetries sets how many times a deadlocked or busy transfer transaction is retried
func WithTxRetries(n int) Option {
	return func(s *Store) {
		if n >= 0 {
			s.txRetries = n
		}
	}
}

// NewStore wraps an opened, migrated database
func NewStore(db *gorm.DB, opts ...Option) *Store {
	s := &Store{db: db, txRetries: 3}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func invalidCredentials() *domain.Error {
	return domain.NewError(domain.KindUnauthenticated, "Invalid credentials")
}

// CheckCredentials validates a username/password pair.
// Unknown users and wrong passwords produce the same error, and both pay for a bcrypt comparison.
func (s *Store) CheckCredentials(ctx context.Context, username, password string) (*domain.Identity, error) {
	var user domain.User
	err := s.db.WithContext(ctx).Where("username = ?", username).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
		return nil, invalidCredentials()
	}
	if err != nil {
		return nil, domain.StoreFailure(err, isTransient(err))
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, invalidCredentials()
	}
	return &domain.Identity{UserID: user.UserID, Username: user.Username, AccountID: user.AccountID}, nil
}

func (s *Store) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password"), bcrypt.DefaultCost)
	})
	return s.dummyHash
}

// GetBalance returns the balance of the account owned by userID
func (s *Store) GetBalance(ctx context.Context, userID string) (*domain.BalanceView, error) {
	var view domain.BalanceView
	res := s.db.WithContext(ctx).
		Table("accounts AS a").
		Select("a.balance_minor AS balance, a.account_id AS account_id, u.username AS username").
		Joins("JOIN users AS u ON u.user_id = a.user_id").
		Where("a.user_id = ?", userID).
		Scan(&view)
	if res.Error != nil {
		return nil, domain.StoreFailure(res.Error, isTransient(res.Error))
	}
	if res.RowsAffected == 0 {
		return nil, domain.NewError(domain.KindNotFound, "User %s not found", userID)
	}
	return &view, nil
}

// AccountExists reports whether accountID exists
func (s *Store) AccountExists(ctx context.Context, accountID string) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&domain.Account{}).Where("account_id = ?", accountID).Count(&n).Error; err != nil {
		return false, domain.StoreFailure(err, isTransient(err))
	}
	return n > 0, nil
}

// ResolveAccount returns the user owning accountID
func (s *Store) ResolveAccount(ctx context.Context, accountID string) (*domain.Identity, error) {
	var user domain.User
	err := s.db.WithContext(ctx).Where("account_id = ?", accountID).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NewError(domain.KindNotFound, "Account %s not found", accountID)
	}
	if err != nil {
		return nil, domain.StoreFailure(err, isTransient(err))
	}
	return &domain.Identity{UserID: user.UserID, Username: user.Username, AccountID: user.AccountID}, nil
}

// GetStats returns aggregate counters read from one snapshot
func (s *Store) GetStats(ctx context.Context) (*domain.LedgerStats, error) {
	var stats domain.LedgerStats
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.User{}).Count(&stats.TotalUsers).Error; err != nil {
			return err
		}
		if err := tx.Model(&domain.Transfer{}).Count(&stats.TotalTransfers).Error; err != nil {
			return err
		}
		if err := tx.Model(&domain.Transfer{}).Where("status = ?", domain.StatusCompleted).Count(&stats.CompletedTransfers).Error; err != nil {
			return err
		}
		if err := tx.Model(&domain.Account{}).Select("COALESCE(SUM(balance_minor), 0)").Scan(&stats.TotalBalance).Error; err != nil {
			return err
		}
		return tx.Model(&domain.Transfer{}).
			Where("status = ?", domain.StatusCompleted).
			Select("COALESCE(SUM(fee_minor), 0)").
			Scan(&stats.TotalFees).Error
	})
	if err != nil {
		return nil, domain.StoreFailure(err, isTransient(err))
	}
	return &stats, nil
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
