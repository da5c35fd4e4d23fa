package ledger

import (
	"context" // Context for cancellation and timeouts
	"errors"  // Error checks
	"fmt"     // Error formatting
	"sort"    // Lock ordering
	"time"    // Time durations

	"bank_system/internal/domain" // Domain models

	"github.com/sirupsen/logrus" // Logging
	"gorm.io/gorm"               // GORM ORM library
	"gorm.io/gorm/clause"        // Locking and conflict clauses
)

// errBalanceChanged means the guarded debit matched no row: the balance moved under us
var errBalanceChanged = errors.New("sender balance changed during transfer")

// ExecuteTransfer moves Amount from sender to recipient and retains Fee, atomically.
//
// Insufficient funds commit a FAILED transfer row and leave balances untouched.
// Any other failure rolls the whole transaction back; a FAILED row is then written on a
// best-effort basis and the original fault is returned as STORE_FAILURE. That fault is
// retryable only when the FAILED row could not be written either.
// A transfer id that is already recorded is never applied twice.
func (s *Store) ExecuteTransfer(ctx context.Context, req domain.TransferRequest) (*domain.TransferResult, error) {
	if req.TransferID == "" {
		return nil, domain.NewError(domain.KindStoreFailure, "transfer id is required")
	}
	amount, err := domain.ToMinorUnits(req.Amount)
	if err != nil || amount <= 0 {
		return nil, domain.NewError(domain.KindInvalidAmount, "Amount must be greater than 0")
	}
	fee, err := domain.ToMinorUnits(req.Fee)
	if err != nil || fee < 0 {
		return nil, domain.NewError(domain.KindInvalidAmount, "Fee must not be negative")
	}
	if req.SenderUserID == req.RecipientUserID {
		return nil, domain.NewError(domain.KindSelfTransferDenied, "Self-transfer is not allowed")
	}
	createdAt := req.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	record := domain.Transfer{
		TransferID:      req.TransferID,
		SenderUserID:    req.SenderUserID,
		RecipientUserID: req.RecipientUserID,
		Amount:          amount,
		Fee:             fee,
		Reference:       req.Reference,
		CreatedAt:       createdAt.UTC(),
	}

	var (
		result  *domain.TransferResult
		outcome *domain.Error
	)
	err = s.withTxRetry(ctx, record.TransferID, func() error {
		result, outcome = nil, nil
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			result, outcome, err = s.executeTx(tx, record)
			return err
		})
	})
	if err != nil {
		var de *domain.Error
		if errors.As(err, &de) {
			// Rejected before any write, nothing to record
			de.TransferID = record.TransferID
			return nil, de
		}
		// Once the id is recorded as FAILED a same-id retry can only be refused
		recorded := s.recordFailure(ctx, record, err)
		fault := domain.StoreFailure(err, isTransient(err) && !recorded)
		fault.TransferID = record.TransferID
		return nil, fault
	}
	if outcome != nil {
		outcome.TransferID = record.TransferID
		return nil, outcome
	}
	return result, nil
}

// executeTx runs inside the transfer transaction. A non-nil outcome with a nil error commits.
func (s *Store) executeTx(tx *gorm.DB, record domain.Transfer) (*domain.TransferResult, *domain.Error, error) {
	var existing domain.Transfer
	res := tx.Where("transfer_id = ?", record.TransferID).Limit(1).Find(&existing)
	if res.Error != nil {
		return nil, nil, res.Error
	}
	if res.RowsAffected > 0 {
		return s.replay(tx, existing)
	}

	// Lock both rows in a fixed order so two opposite transfers cannot deadlock
	accounts := make(map[string]*domain.Account, 2)
	ids := []string{record.SenderUserID, record.RecipientUserID}
	sort.Strings(ids)
	for _, userID := range ids {
		var acc domain.Account
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID).Take(&acc).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if userID == record.SenderUserID {
				return nil, nil, domain.NewError(domain.KindNotFound, "Sender account not found")
			}
			return nil, nil, domain.NewError(domain.KindRecipientNotFound, "Recipient account not found")
		}
		if err != nil {
			return nil, nil, err
		}
		accounts[userID] = &acc
	}
	sender, recipient := accounts[record.SenderUserID], accounts[record.RecipientUserID]

	total := record.Amount + record.Fee
	if sender.Balance < total {
		record.Status = domain.StatusFailed
		if err := tx.Create(&record).Error; err != nil {
			return nil, nil, err
		}
		if err := audit(tx, "transfer.failed", record, "insufficient funds"); err != nil {
			return nil, nil, err
		}
		logrus.WithFields(logrus.Fields{
			"transfer_id": record.TransferID,
			"sender":      record.SenderUserID,
			"balance":     sender.Balance.String(),
			"needed":      total.String(),
		}).Warn("Transfer failed - insufficient funds")
		return nil, domain.InsufficientFunds(sender.Balance, total), nil
	}

	// Deduct from sender; the guard keeps engines without row locks correct
	res = tx.Model(&domain.Account{}).
		Where("account_id = ? AND balance_minor >= ?", sender.AccountID, total).
		Update("balance_minor", gorm.Expr("balance_minor - ?", total))
	if res.Error != nil {
		return nil, nil, res.Error
	}
	if res.RowsAffected != 1 {
		return nil, nil, errBalanceChanged
	}
	// Add to recipient
	res = tx.Model(&domain.Account{}).
		Where("account_id = ?", recipient.AccountID).
		Update("balance_minor", gorm.Expr("balance_minor + ?", record.Amount))
	if res.Error != nil {
		return nil, nil, res.Error
	}
	if res.RowsAffected != 1 {
		return nil, nil, fmt.Errorf("credit account %s: %d rows updated", recipient.AccountID, res.RowsAffected)
	}

	record.Status = domain.StatusCompleted
	if err := tx.Create(&record).Error; err != nil {
		return nil, nil, err
	}
	if err := audit(tx, "transfer.completed", record, ""); err != nil {
		return nil, nil, err
	}

	logrus.WithFields(logrus.Fields{
		"transfer_id": record.TransferID,
		"sender":      record.SenderUserID,
		"recipient":   record.RecipientUserID,
		"amount":      record.Amount.String(),
		"fee":         record.Fee.String(),
	}).Info("Transfer completed")

	return &domain.TransferResult{
		TransferID:       record.TransferID,
		Amount:           record.Amount,
		Fee:              record.Fee,
		SenderNewBalance: sender.Balance - total,
		CreatedAt:        record.CreatedAt,
	}, nil, nil
}

// replay answers a request whose transfer id is already recorded, without touching balances
func (s *Store) replay(tx *gorm.DB, existing domain.Transfer) (*domain.TransferResult, *domain.Error, error) {
	if existing.Status != domain.StatusCompleted {
		return nil, domain.NewError(domain.KindStoreFailure, "Transfer %s already recorded as %s", existing.TransferID, existing.Status), nil
	}
	var sender domain.Account
	if err := tx.Where("user_id = ?", existing.SenderUserID).Take(&sender).Error; err != nil {
		return nil, nil, err
	}
	return &domain.TransferResult{
		TransferID:       existing.TransferID,
		Amount:           existing.Amount,
		Fee:              existing.Fee,
		SenderNewBalance: sender.Balance,
		CreatedAt:        existing.CreatedAt,
		Replayed:         true,
	}, nil, nil
}

// recordFailure writes a FAILED row after a rolled back transfer and reports whether the id
// is now recorded. Errors are logged only.
func (s *Store) recordFailure(ctx context.Context, record domain.Transfer, cause error) bool {
	record.Status = domain.StatusFailed
	// The caller's context may be the reason the transfer failed
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	err := s.db.WithContext(fctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error
	entry := logrus.WithFields(logrus.Fields{
		"transfer_id": record.TransferID,
		"sender":      record.SenderUserID,
		"recipient":   record.RecipientUserID,
		"error":       cause.Error(),
	})
	if err != nil {
		entry.WithField("record_error", err.Error()).Error("Transfer failed, FAILED record not written")
		return false
	}
	entry.Error("Transfer failed")
	return true
}

func audit(tx *gorm.DB, event string, t domain.Transfer, note string) error {
	details := fmt.Sprintf("transfer_id=%s sender=%s recipient=%s amount=%s fee=%s",
		t.TransferID, t.SenderUserID, t.RecipientUserID, t.Amount, t.Fee)
	if note != "" {
		details += " reason=" + note
	}
	return tx.Create(&domain.AuditEntry{Event: event, Details: details, CreatedAt: t.CreatedAt}).Error
}
