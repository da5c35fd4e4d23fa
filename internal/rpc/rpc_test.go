package rpc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bank_system/internal/domain"
	"bank_system/internal/ledger"
	"bank_system/internal/middleware"
	"bank_system/internal/session"
	"bank_system/internal/testutils"
	"bank_system/internal/transfer"
	"bank_system/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "ledger-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func newLedgerServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := ledger.NewStore(testutils.NewLedgerDB(t))
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Recovery())
	RegisterRoutes(r, store, middleware.RequireServiceToken(secret))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Operations(t *testing.T) {
	srv := newLedgerServer(t)
	c := NewClient(srv.URL, secret, 5*time.Second)
	ctx := context.Background()

	id, err := c.CheckCredentials(ctx, "neo", testutils.NeoPassword)
	require.NoError(t, err)
	assert.Equal(t, testutils.NeoUserID, id.UserID)
	assert.Equal(t, "neo", id.Username)

	_, err = c.CheckCredentials(ctx, "neo", "wrong")
	assert.Equal(t, domain.KindUnauthenticated, domain.KindOf(err))

	view, err := c.GetBalance(ctx, testutils.NeoUserID)
	require.NoError(t, err)
	assert.Equal(t, domain.Money(1000000), view.Balance)
	assert.Equal(t, testutils.NeoAccount, view.AccountID)

	ok, err := c.AccountExists(ctx, testutils.KenAccount)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = c.AccountExists(ctx, "ACC999")
	require.NoError(t, err)
	assert.False(t, ok)

	owner, err := c.ResolveAccount(ctx, testutils.KenAccount)
	require.NoError(t, err)
	assert.Equal(t, testutils.KenUserID, owner.UserID)
	_, err = c.ResolveAccount(ctx, "ACC999")
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))

	req := domain.TransferRequest{
		TransferID:      uuid.NewString(),
		SenderUserID:    testutils.NeoUserID,
		RecipientUserID: testutils.KenUserID,
		Amount:          decimal.RequireFromString("5000"),
		Fee:             decimal.RequireFromString("12.50"),
		Reference:       "rent",
		CreatedAt:       time.Date(2026, 2, 3, 4, 5, 6, 7000000, time.UTC),
	}
	res, err := c.ExecuteTransfer(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, domain.Money(1250), res.Fee)
	assert.Equal(t, domain.Money(498750), res.SenderNewBalance)

	d, err := c.GetTransfer(ctx, req.TransferID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, d.Status)
	assert.Equal(t, "ken", d.RecipientUsername)
	assert.True(t, d.CreatedAt.Equal(req.CreatedAt))

	_, err = c.GetTransfer(ctx, "missing")
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))

	list, err := c.ListTransfersForUser(ctx, testutils.KenUserID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	empty, err := c.ListTransfersForUser(ctx, testutils.TimuthuUserID)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	stats, err := c.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalUsers)
	assert.Equal(t, int64(1), stats.CompletedTransfers)
	assert.Equal(t, domain.Money(3000000), stats.TotalBalance+stats.TotalFees)
}

func TestClient_InsufficientFundsCrossesTheWire(t *testing.T) {
	srv := newLedgerServer(t)
	c := NewClient(srv.URL, secret, 5*time.Second)

	req := domain.TransferRequest{
		TransferID:      "t-insufficient",
		SenderUserID:    testutils.KenUserID,
		RecipientUserID: testutils.NeoUserID,
		Amount:          decimal.RequireFromString("9000"),
		Fee:             decimal.RequireFromString("20"),
	}
	_, err := c.ExecuteTransfer(context.Background(), req)
	de := domain.AsError(err)
	require.NotNil(t, de)
	assert.Equal(t, domain.KindInsufficientFunds, de.Kind)
	assert.Equal(t, "t-insufficient", de.TransferID)
	require.NotNil(t, de.Balance)
	assert.Equal(t, domain.Money(500000), *de.Balance)
	assert.Contains(t, de.Message, "Insufficient funds")
}

func TestLedgerTier_RequiresServiceToken(t *testing.T) {
	srv := newLedgerServer(t)

	resp, err := http.Get(srv.URL + "/v1/stats")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, err = NewClient(srv.URL, "not-the-secret", time.Second).GetStats(context.Background())
	de := domain.AsError(err)
	require.NotNil(t, de)
	assert.Equal(t, domain.KindStoreFailure, de.Kind)
	assert.False(t, de.Retryable)
}

func TestClient_TimeoutIsRetryable(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	start := time.Now()
	_, err := NewClient(slow.URL, secret, 50*time.Millisecond).GetStats(context.Background())
	assert.Less(t, time.Since(start), time.Second)
	de := domain.AsError(err)
	require.NotNil(t, de)
	assert.Equal(t, domain.KindStoreFailure, de.Kind)
	assert.True(t, de.Retryable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_UnreachableIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, secret, time.Second).GetBalance(context.Background(), testutils.NeoUserID)
	assert.Equal(t, domain.KindStoreFailure, domain.KindOf(err))
	assert.True(t, domain.IsRetryable(err))
}

func TestClient_PropagatesRequestID(t *testing.T) {
	var seen string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get(utils.RequestIDHeader)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"message":"ok","total_users":3}`))
	}))
	defer srv.Close()

	ctx := utils.WithRequestID(context.Background(), "req-42")
	stats, err := NewClient(srv.URL, secret, time.Second).GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalUsers)
	assert.Equal(t, "req-42", seen)
}

func TestOrchestratorOverRPC(t *testing.T) {
	srv := newLedgerServer(t)
	svc := transfer.NewService(NewClient(srv.URL, secret, 5*time.Second), session.NewManager())
	ctx := context.Background()

	neo, err := svc.Login(ctx, "neo", testutils.NeoPassword)
	require.NoError(t, err)
	out, err := svc.SubmitTransfer(ctx, neo.Token, testutils.KenAccount, decimal.RequireFromString("1500"), "")
	require.NoError(t, err)
	assert.Equal(t, domain.Money(0), out.Fee)
	assert.Equal(t, domain.Money(850000), out.SenderNewBalance)

	_, err = svc.SubmitTransfer(ctx, neo.Token, testutils.NeoAccount, decimal.RequireFromString("10"), "")
	assert.Equal(t, domain.KindSelfTransferDenied, domain.KindOf(err))

	_, err = svc.SubmitTransfer(ctx, neo.Token, "ACC999", decimal.RequireFromString("10"), "")
	assert.Equal(t, domain.KindRecipientNotFound, domain.KindOf(err))

	d, err := svc.GetTransferStatus(ctx, neo.Token, out.TransferID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, d.Status)

	stats := svc.ServerStats(ctx)
	assert.Equal(t, int64(3), stats.TotalUsers)
	assert.Equal(t, 1, stats.ActiveSessions)
}
