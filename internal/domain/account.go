package domain

// Account Model
type Account struct {
	AccountID string `gorm:"primaryKey;size:64"`                      // Primary key, e.g. ACC001
	UserID    string `gorm:"uniqueIndex;size:64;not null"`            // Owner (one account per user)
	Balance   Money  `gorm:"column:balance_minor;not null;default:0"` // Balance in minor units, never negative
}

// BalanceView is what a balance query returns
type BalanceView struct {
	Balance   Money  `json:"balance"`
	AccountID string `json:"account_id"`
	Username  string `json:"username"`
}
