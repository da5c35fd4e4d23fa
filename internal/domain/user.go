package domain

// User Model
type User struct {
	UserID    string `gorm:"primaryKey;size:64"`           // Primary key, e.g. USER001
	Username  string `gorm:"uniqueIndex;size:64;not null"` // Unique login name
	Password  string `gorm:"not null"`                     // bcrypt hash of the password
	AccountID string `gorm:"uniqueIndex;size:64;not null"` // The single account owned by this user
}

// Identity is the public part of a user: who they are and which account they own
type Identity struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	AccountID string `json:"account_id"`
}
