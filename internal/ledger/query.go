package ledger

import (
	"context" // Context for cancellation and timeouts

	"bank_system/internal/domain" // Domain models

	"gorm.io/gorm" // GORM ORM library
)

// transferRow is a transfer joined with both parties' users
type transferRow struct {
	domain.Transfer    `gorm:"embedded"`
	SenderAccountID    string
	SenderUsername     string
	RecipientAccountID string
	RecipientUsername  string
}

func (r transferRow) detail() domain.TransferDetail {
	return domain.TransferDetail{
		TransferID:         r.TransferID,
		SenderUserID:       r.SenderUserID,
		SenderAccountID:    r.SenderAccountID,
		SenderUsername:     r.SenderUsername,
		RecipientUserID:    r.RecipientUserID,
		RecipientAccountID: r.RecipientAccountID,
		RecipientUsername:  r.RecipientUsername,
		Amount:             r.Amount,
		Fee:                r.Fee,
		TotalDeducted:      r.Amount + r.Fee,
		Status:             r.Status,
		Reference:          r.Reference,
		CreatedAt:          r.CreatedAt,
	}
}

func (s *Store) transferQuery(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Table("transfers AS t").
		Select(`t.transfer_id, t.sender_user_id, t.recipient_user_id, t.amount_minor, t.fee_minor,
			t.status, t.reference, t.created_at,
			su.account_id AS sender_account_id, su.username AS sender_username,
			ru.account_id AS recipient_account_id, ru.username AS recipient_username`).
		Joins("JOIN users AS su ON su.user_id = t.sender_user_id").
		Joins("JOIN users AS ru ON ru.user_id = t.recipient_user_id")
}

// GetTransfer returns one transfer by id
func (s *Store) GetTransfer(ctx context.Context, transferID string) (*domain.TransferDetail, error) {
	var rows []transferRow
	if err := s.transferQuery(ctx).Where("t.transfer_id = ?", transferID).Limit(1).Scan(&rows).Error; err != nil {
		return nil, domain.StoreFailure(err, isTransient(err))
	}
	if len(rows) == 0 {
		return nil, domain.NewError(domain.KindNotFound, "Transfer '%s' not found", transferID)
	}
	d := rows[0].detail()
	return &d, nil
}

// ListTransfersForUser returns every transfer userID sent or received, newest first
func (s *Store) ListTransfersForUser(ctx context.Context, userID string) ([]domain.TransferDetail, error) {
	var rows []transferRow
	err := s.transferQuery(ctx).
		Where("t.sender_user_id = ? OR t.recipient_user_id = ?", userID, userID).
		Order("t.created_at DESC, t.transfer_id DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, domain.StoreFailure(err, isTransient(err))
	}
	out := make([]domain.TransferDetail, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.detail())
	}
	return out, nil
}
