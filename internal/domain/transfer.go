package domain

import (
	"time" // Time durations

	"github.com/shopspring/decimal" // Exact decimal arithmetic
)

// TransferStatus is the final state of a transfer attempt
type TransferStatus string

const (
	StatusCompleted TransferStatus = "COMPLETED"
	StatusFailed    TransferStatus = "FAILED"
)

// Transfer Model. Rows are inserted once and never updated.
type Transfer struct {
	TransferID      string         `gorm:"primaryKey;size:64"`           // Primary key, generated by the application tier
	SenderUserID    string         `gorm:"index;size:64;not null"`       // User the money leaves
	RecipientUserID string         `gorm:"index;size:64;not null"`       // User the money arrives to
	Amount          Money          `gorm:"column:amount_minor;not null"` // Amount in minor units
	Fee             Money          `gorm:"column:fee_minor;not null"`    // Fee in minor units (retained, not credited)
	Status          TransferStatus `gorm:"size:16;not null;index"`       // COMPLETED or FAILED
	Reference       string         `gorm:"size:255"`                     // Optional free text
	CreatedAt       time.Time      `gorm:"not null;index"`               // Creation timestamp
}

// TransferRequest carries everything the ledger needs to execute a transfer.
// Amount and Fee are decimal currency values; the ledger converts them to minor units.
type TransferRequest struct {
	TransferID      string          `json:"transfer_id"`
	SenderUserID    string          `json:"sender_user_id"`
	RecipientUserID string          `json:"recipient_user_id"`
	Amount          decimal.Decimal `json:"amount"`
	Fee             decimal.Decimal `json:"fee"`
	Reference       string          `json:"reference,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// TransferResult is the successful outcome of ExecuteTransfer
type TransferResult struct {
	TransferID       string    `json:"transfer_id"`
	Amount           Money     `json:"amount"`
	Fee              Money     `json:"fee"`
	SenderNewBalance Money     `json:"sender_new_balance"`
	CreatedAt        time.Time `json:"created_at"`
	Replayed         bool      `json:"replayed,omitempty"` // The id was already recorded as COMPLETED
}

// TransferDetail is a transfer joined with both parties
type TransferDetail struct {
	TransferID         string         `json:"transfer_id"`
	SenderUserID       string         `json:"sender_user_id"`
	SenderAccountID    string         `json:"sender_account_id"`
	SenderUsername     string         `json:"sender_username"`
	RecipientUserID    string         `json:"recipient_user_id"`
	RecipientAccountID string         `json:"recipient_account_id"`
	RecipientUsername  string         `json:"recipient_username"`
	Amount             Money          `json:"amount"`
	Fee                Money          `json:"fee"`
	TotalDeducted      Money          `json:"total_deducted"`
	Status             TransferStatus `json:"status"`
	Reference          string         `json:"reference"`
	CreatedAt          time.Time      `json:"timestamp"`
}

// Involves reports whether userID is the sender or the recipient
func (d *TransferDetail) Involves(userID string) bool {
	return userID != "" && (d.SenderUserID == userID || d.RecipientUserID == userID)
}

// LedgerStats are aggregate counters over the whole ledger
type LedgerStats struct {
	TotalUsers         int64 `json:"total_users"`
	TotalTransfers     int64 `json:"total_transfers"`
	CompletedTransfers int64 `json:"completed_transfers"`
	TotalBalance       Money `json:"total_balance"`
	TotalFees          Money `json:"total_fees"` // Fees retained by completed transfers
}
