package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"bank_system/internal/domain"
	"bank_system/internal/testutils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const genesisTotal = domain.Money(3000000) // 10,000 + 5,000 + 15,000

func newStore(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()
	gdb := testutils.NewLedgerDB(t)
	return NewStore(gdb), gdb
}

func transferReq(from, to, amount, fee string) domain.TransferRequest {
	return domain.TransferRequest{
		TransferID:      uuid.NewString(),
		SenderUserID:    from,
		RecipientUserID: to,
		Amount:          decimal.RequireFromString(amount),
		Fee:             decimal.RequireFromString(fee),
		CreatedAt:       time.Now().UTC().Truncate(time.Millisecond),
	}
}

func balanceOf(t *testing.T, s *Store, userID string) domain.Money {
	t.Helper()
	b, err := s.GetBalance(context.Background(), userID)
	require.NoError(t, err)
	return b.Balance
}

func countTransfers(t *testing.T, gdb *gorm.DB, status domain.TransferStatus) int64 {
	t.Helper()
	var n int64
	require.NoError(t, gdb.Model(&domain.Transfer{}).Where("status = ?", status).Count(&n).Error)
	return n
}

func TestCheckCredentials(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	id, err := s.CheckCredentials(ctx, "neo", testutils.NeoPassword)
	require.NoError(t, err)
	assert.Equal(t, testutils.NeoUserID, id.UserID)
	assert.Equal(t, testutils.NeoAccount, id.AccountID)

	_, wrongPass := s.CheckCredentials(ctx, "neo", "WrongPassword")
	_, unknownUser := s.CheckCredentials(ctx, "charlie", "SomePassword")
	require.Error(t, wrongPass)
	require.Error(t, unknownUser)
	assert.Equal(t, wrongPass.Error(), unknownUser.Error(), "failures must not reveal whether the user exists")
	assert.Equal(t, domain.KindUnauthenticated, domain.KindOf(wrongPass))
}

func TestLookups(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	b, err := s.GetBalance(ctx, testutils.KenUserID)
	require.NoError(t, err)
	assert.Equal(t, domain.Money(500000), b.Balance)
	assert.Equal(t, "ken", b.Username)
	assert.Equal(t, testutils.KenAccount, b.AccountID)

	_, err = s.GetBalance(ctx, "USER999")
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))

	ok, err := s.AccountExists(ctx, testutils.KenAccount)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.AccountExists(ctx, "ACC999")
	require.NoError(t, err)
	assert.False(t, ok)

	id, err := s.ResolveAccount(ctx, testutils.KenAccount)
	require.NoError(t, err)
	assert.Equal(t, testutils.KenUserID, id.UserID)
	_, err = s.ResolveAccount(ctx, "ACC999")
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestExecuteTransfer_Completed(t *testing.T) {
	s, gdb := newStore(t)
	ctx := context.Background()

	req := transferReq(testutils.NeoUserID, testutils.KenUserID, "5000.00", "12.50")
	req.Reference = "rent"
	res, err := s.ExecuteTransfer(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, req.TransferID, res.TransferID)
	assert.Equal(t, domain.Money(498750), res.SenderNewBalance)
	assert.False(t, res.Replayed)

	assert.Equal(t, domain.Money(498750), balanceOf(t, s, testutils.NeoUserID))
	assert.Equal(t, domain.Money(1000000), balanceOf(t, s, testutils.KenUserID))

	d, err := s.GetTransfer(ctx, req.TransferID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, d.Status)
	assert.Equal(t, domain.Money(500000), d.Amount)
	assert.Equal(t, domain.Money(1250), d.Fee)
	assert.Equal(t, domain.Money(501250), d.TotalDeducted)
	assert.Equal(t, "neo", d.SenderUsername)
	assert.Equal(t, testutils.KenAccount, d.RecipientAccountID)
	assert.Equal(t, "rent", d.Reference)
	assert.True(t, d.CreatedAt.Equal(req.CreatedAt))

	var audits int64
	require.NoError(t, gdb.Model(&domain.AuditEntry{}).Where("event = ?", "transfer.completed").Count(&audits).Error)
	assert.Equal(t, int64(1), audits)
}

func TestExecuteTransfer_InsufficientFundsRecordsFailure(t *testing.T) {
	s, gdb := newStore(t)
	ctx := context.Background()

	req := transferReq(testutils.KenUserID, testutils.NeoUserID, "5000.00", "12.50")
	_, err := s.ExecuteTransfer(ctx, req)
	require.Error(t, err)

	de := domain.AsError(err)
	assert.Equal(t, domain.KindInsufficientFunds, de.Kind)
	require.NotNil(t, de.Balance)
	assert.Equal(t, domain.Money(500000), *de.Balance)
	assert.Equal(t, req.TransferID, de.TransferID)

	assert.Equal(t, domain.Money(500000), balanceOf(t, s, testutils.KenUserID))
	assert.Equal(t, domain.Money(1000000), balanceOf(t, s, testutils.NeoUserID))

	d, err := s.GetTransfer(ctx, req.TransferID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, d.Status)
	assert.Zero(t, countTransfers(t, gdb, domain.StatusCompleted))
}

func TestExecuteTransfer_RejectedBeforeWrite(t *testing.T) {
	s, gdb := newStore(t)
	ctx := context.Background()

	_, err := s.ExecuteTransfer(ctx, transferReq(testutils.NeoUserID, testutils.NeoUserID, "10", "0"))
	assert.Equal(t, domain.KindSelfTransferDenied, domain.KindOf(err))

	_, err = s.ExecuteTransfer(ctx, transferReq(testutils.NeoUserID, "USER999", "10", "0"))
	assert.Equal(t, domain.KindRecipientNotFound, domain.KindOf(err))

	_, err = s.ExecuteTransfer(ctx, transferReq("USER999", testutils.NeoUserID, "10", "0"))
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))

	_, err = s.ExecuteTransfer(ctx, transferReq(testutils.NeoUserID, testutils.KenUserID, "0.004", "0"))
	assert.Equal(t, domain.KindInvalidAmount, domain.KindOf(err))

	var n int64
	require.NoError(t, gdb.Model(&domain.Transfer{}).Count(&n).Error)
	assert.Zero(t, n)
	assert.Equal(t, domain.Money(1000000), balanceOf(t, s, testutils.NeoUserID))
}

func TestExecuteTransfer_RoundsCallerFloatDrift(t *testing.T) {
	s, _ := newStore(t)
	req := transferReq(testutils.NeoUserID, testutils.KenUserID, "0", "0")
	req.Amount = decimal.NewFromFloat(0.1 + 0.2)
	res, err := s.ExecuteTransfer(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, domain.Money(30), res.Amount)
	assert.Equal(t, domain.Money(999970), res.SenderNewBalance)
}

func TestExecuteTransfer_ReplayDoesNotApplyTwice(t *testing.T) {
	s, gdb := newStore(t)
	ctx := context.Background()

	req := transferReq(testutils.NeoUserID, testutils.KenUserID, "1500.00", "0")
	_, err := s.ExecuteTransfer(ctx, req)
	require.NoError(t, err)

	res, err := s.ExecuteTransfer(ctx, req)
	require.NoError(t, err)
	assert.True(t, res.Replayed)
	assert.Equal(t, domain.Money(850000), res.SenderNewBalance)
	assert.Equal(t, domain.Money(850000), balanceOf(t, s, testutils.NeoUserID))
	assert.Equal(t, int64(1), countTransfers(t, gdb, domain.StatusCompleted))

	failed := transferReq(testutils.KenUserID, testutils.NeoUserID, "90000", "50")
	_, err = s.ExecuteTransfer(ctx, failed)
	require.Equal(t, domain.KindInsufficientFunds, domain.KindOf(err))
	_, err = s.ExecuteTransfer(ctx, failed)
	assert.Equal(t, domain.KindStoreFailure, domain.KindOf(err))
	assert.Equal(t, int64(1), countTransfers(t, gdb, domain.StatusFailed))
}

func TestExecuteTransfer_FaultRollsBackAndRecordsFailure(t *testing.T) {
	s, gdb := newStore(t)
	injected := errors.New("injected write fault")
	require.NoError(t, gdb.Callback().Create().Before("gorm:create").Register("test:fail_completed", func(tx *gorm.DB) {
		if tr, ok := tx.Statement.Dest.(*domain.Transfer); ok && tr.Status == domain.StatusCompleted {
			_ = tx.AddError(injected)
		}
	}))

	req := transferReq(testutils.NeoUserID, testutils.KenUserID, "1500.00", "0")
	_, err := s.ExecuteTransfer(context.Background(), req)
	require.Error(t, err)
	de := domain.AsError(err)
	assert.Equal(t, domain.KindStoreFailure, de.Kind)
	assert.ErrorIs(t, err, injected, "the original fault is preserved")
	assert.Equal(t, req.TransferID, de.TransferID)

	// Debit and credit were rolled back
	assert.Equal(t, domain.Money(1000000), balanceOf(t, s, testutils.NeoUserID))
	assert.Equal(t, domain.Money(500000), balanceOf(t, s, testutils.KenUserID))

	d, err := s.GetTransfer(context.Background(), req.TransferID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, d.Status)
}

func TestExecuteTransfer_TransientFaultRetryableOnlyWhenUnrecorded(t *testing.T) {
	timeout := fmt.Errorf("statement timed out: %w", context.DeadlineExceeded)
	cases := []struct {
		name      string
		failAll   bool
		retryable bool
		status    domain.TransferStatus
	}{
		{"failure recorded", false, false, domain.StatusFailed},
		{"failure not recorded", true, true, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, gdb := newStore(t)
			require.NoError(t, gdb.Callback().Create().Before("gorm:create").Register("test:timeout", func(tx *gorm.DB) {
				if tr, ok := tx.Statement.Dest.(*domain.Transfer); ok && (tc.failAll || tr.Status == domain.StatusCompleted) {
					_ = tx.AddError(timeout)
				}
			}))
			ctx := context.Background()

			req := transferReq(testutils.NeoUserID, testutils.KenUserID, "100.00", "0")
			_, err := s.ExecuteTransfer(ctx, req)
			de := domain.AsError(err)
			require.NotNil(t, de)
			assert.Equal(t, domain.KindStoreFailure, de.Kind)
			assert.Equal(t, tc.retryable, de.Retryable)
			assert.ErrorIs(t, err, context.DeadlineExceeded)

			d, err := s.GetTransfer(ctx, req.TransferID)
			if tc.status == "" {
				assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.status, d.Status)

			// A same-id retry is refused once the id is recorded
			_, err = s.ExecuteTransfer(ctx, req)
			assert.Equal(t, domain.KindStoreFailure, domain.KindOf(err))
			assert.False(t, domain.IsRetryable(err))
		})
	}
}

func TestExecuteTransfer_ConcurrentSameSender(t *testing.T) {
	s, gdb := newStore(t)
	ctx := context.Background()

	const n = 20
	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		completed    int
		insufficient int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ExecuteTransfer(ctx, transferReq(testutils.NeoUserID, testutils.KenUserID, "1000.00", "0"))
			mu.Lock()
			defer mu.Unlock()
			switch domain.KindOf(err) {
			case "":
				completed++
			case domain.KindInsufficientFunds:
				insufficient++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, completed)
	assert.Equal(t, 10, insufficient)
	assert.Equal(t, domain.Money(0), balanceOf(t, s, testutils.NeoUserID))
	assert.Equal(t, domain.Money(1500000), balanceOf(t, s, testutils.KenUserID))
	assert.Equal(t, int64(10), countTransfers(t, gdb, domain.StatusCompleted))
	assert.Equal(t, int64(10), countTransfers(t, gdb, domain.StatusFailed))
}

func TestExecuteTransfer_ConservesMoney(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	steps := []domain.TransferRequest{
		transferReq(testutils.NeoUserID, testutils.KenUserID, "5000.00", "12.50"),
		transferReq(testutils.TimuthuUserID, testutils.NeoUserID, "12000.00", "24.00"),
		transferReq(testutils.KenUserID, testutils.TimuthuUserID, "3333.33", "8.33"),
		transferReq(testutils.NeoUserID, testutils.TimuthuUserID, "99999.00", "50.00"), // fails
	}
	for _, req := range steps {
		_, _ = s.ExecuteTransfer(ctx, req)
	}

	stats, err := s.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalUsers)
	assert.Equal(t, int64(4), stats.TotalTransfers)
	assert.Equal(t, int64(3), stats.CompletedTransfers)
	assert.Equal(t, domain.Money(4483), stats.TotalFees)
	assert.Equal(t, genesisTotal, stats.TotalBalance+stats.TotalFees)
}

func TestListTransfersForUser_NewestFirst(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	var ids []string
	for i, to := range []string{testutils.KenUserID, testutils.TimuthuUserID, testutils.KenUserID} {
		req := transferReq(testutils.NeoUserID, to, "10.00", "0")
		req.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		_, err := s.ExecuteTransfer(ctx, req)
		require.NoError(t, err)
		ids = append(ids, req.TransferID)
	}

	neo, err := s.ListTransfersForUser(ctx, testutils.NeoUserID)
	require.NoError(t, err)
	require.Len(t, neo, 3)
	assert.Equal(t, []string{ids[2], ids[1], ids[0]}, []string{neo[0].TransferID, neo[1].TransferID, neo[2].TransferID})

	ken, err := s.ListTransfersForUser(ctx, testutils.KenUserID)
	require.NoError(t, err)
	require.Len(t, ken, 2)
	assert.Equal(t, ids[2], ken[0].TransferID)

	none, err := s.ListTransfersForUser(ctx, "USER999")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = s.GetTransfer(ctx, "invalid-transfer-id")
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestStore_SurvivesRestart(t *testing.T) {
	path := testutils.LedgerPath(t)
	gdb := testutils.OpenLedgerDB(t, path)
	s := NewStore(gdb)

	req := transferReq(testutils.NeoUserID, testutils.KenUserID, "1500.00", "0")
	_, err := s.ExecuteTransfer(context.Background(), req)
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	reopened := NewStore(testutils.OpenLedgerDB(t, path))
	assert.Equal(t, domain.Money(850000), balanceOf(t, reopened, testutils.NeoUserID))
	assert.Equal(t, domain.Money(650000), balanceOf(t, reopened, testutils.KenUserID))
	d, err := reopened.GetTransfer(context.Background(), req.TransferID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, d.Status)
}
