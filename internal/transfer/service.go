// Package transfer is the application-tier orchestrator: it authenticates callers
// through the session manager, validates and prices transfers, and delegates every
// state change to the ledger.
package transfer

import (
	"context" // Context for cancellation and timeouts
	"errors"  // Error checks
	"time"    // Time durations

	"bank_system/internal/domain"  // Domain models
	"bank_system/internal/fees"    // Fee engine
	"bank_system/internal/metrics" // Prometheus collectors
	"bank_system/internal/session" // Session store
	"bank_system/internal/utils"   // Utility functions

	"github.com/google/uuid"        // Random identifiers
	"github.com/shopspring/decimal" // Exact decimal arithmetic
	"github.com/sirupsen/logrus"    // Logging
)

// Ledger is the ledger tier as seen by the orchestrator.
// ledger.Store implements it in process, rpc.Client over the network.
type Ledger interface {
	CheckCredentials(ctx context.Context, username, password string) (*domain.Identity, error)
	GetBalance(ctx context.Context, userID string) (*domain.BalanceView, error)
	AccountExists(ctx context.Context, accountID string) (bool, error)
	ResolveAccount(ctx context.Context, accountID string) (*domain.Identity, error)
	ExecuteTransfer(ctx context.Context, req domain.TransferRequest) (*domain.TransferResult, error)
	GetTransfer(ctx context.Context, transferID string) (*domain.TransferDetail, error)
	ListTransfersForUser(ctx context.Context, userID string) ([]domain.TransferDetail, error)
	GetStats(ctx context.Context) (*domain.LedgerStats, error)
}

// LoginResult is returned by a successful login
type LoginResult struct {
	Token     string `json:"token"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	AccountID string `json:"account_id"`
}

// Outcome is a completed transfer, decorated for the caller
type Outcome struct {
	TransferID       string       `json:"transfer_id"`
	RecipientAccount string       `json:"recipient_account_id"`
	Amount           domain.Money `json:"amount"`
	Fee              domain.Money `json:"fee"`
	TotalDeducted    domain.Money `json:"total_deducted"`
	SenderNewBalance domain.Money `json:"sender_new_balance"`
	Reference        string       `json:"reference,omitempty"`
	Timestamp        time.Time    `json:"timestamp"`
}

// ServerStats are the counters reported by get_server_stats
type ServerStats struct {
	TotalUsers         int64 `json:"total_users"`
	ActiveSessions     int   `json:"active_sessions"`
	TotalTransfers     int64 `json:"total_transfers"`
	CompletedTransfers int64 `json:"completed_transfers"`
	LedgerUnavailable  bool  `json:"ledger_unavailable,omitempty"`
}

// Service orchestrates every caller-facing operation
type Service struct {
	ledger   Ledger
	sessions *session.Manager
	schedule fees.Schedule
	history  *utils.HistoryCache
	metrics  *metrics.Metrics
	retries  int
	now      func() time.Time
	newID    func() string
}

type Option func(*Service)

// WithHistoryCache caches transfer history; nil disables caching
func WithHistoryCache(c *utils.HistoryCache) Option {
	return func(s *Service) { s.history = c }
}

// WithMetrics records transfer, login and ledger call metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithRetries sets how many extra times a retryable ledger failure is retried
func WithRetries(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.retries = n
		}
	}
}

// WithSchedule replaces the fee schedule
func WithSchedule(sc fees.Schedule) Option {
	return func(s *Service) { s.schedule = sc }
}

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator replaces the transfer id generator, for tests
func WithIDGenerator(f func() string) Option {
	return func(s *Service) { s.newID = f }
}

// NewService wires an orchestrator around a ledger and a session manager
func NewService(ledger Ledger, sessions *session.Manager, opts ...Option) *Service {
	s := &Service{
		ledger:   ledger,
		sessions: sessions,
		schedule: fees.DefaultSchedule,
		retries:  1,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sessions exposes the session manager, e.g. for the active sessions gauge
func (s *Service) Sessions() *session.Manager {
	return s.sessions
}

func unauthenticated() *domain.Error {
	return domain.NewError(domain.KindUnauthenticated, "Invalid or expired token")
}

func (s *Service) authenticate(token string) (string, error) {
	userID, ok := s.sessions.Resolve(token)
	if !ok {
		return "", unauthenticated()
	}
	return userID, nil
}

// observe times one ledger call: defer s.observe("op")()
func (s *Service) observe(op string) func() {
	started := time.Now()
	return func() { s.metrics.ObserveLedgerCall(op, started) }
}

// Login checks credentials with the ledger and opens a session
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	done := s.observe("validate_credentials")
	id, err := s.ledger.CheckCredentials(ctx, username, password)
	done()
	s.metrics.Login(err == nil)
	if err != nil {
		logrus.WithFields(logrus.Fields{"username": username, "kind": domain.KindOf(err)}).Warn("Login failed")
		return nil, err
	}
	token := s.sessions.Create(id.UserID)
	logrus.WithField("user_id", id.UserID).Info("User logged in")
	return &LoginResult{Token: token, UserID: id.UserID, Username: id.Username, AccountID: id.AccountID}, nil
}

// Logout destroys the session behind token
func (s *Service) Logout(token string) error {
	if !s.sessions.Destroy(token) {
		return unauthenticated()
	}
	return nil
}

// GetBalance returns the caller's balance
func (s *Service) GetBalance(ctx context.Context, token string) (*domain.BalanceView, error) {
	userID, err := s.authenticate(token)
	if err != nil {
		return nil, err
	}
	defer s.observe("get_balance")()
	return s.ledger.GetBalance(ctx, userID)
}

// SubmitTransfer validates, prices and executes a transfer from the caller to recipientAccountID.
// Checks run in a fixed order and the first failing one decides the error.
func (s *Service) SubmitTransfer(ctx context.Context, token, recipientAccountID string, amount decimal.Decimal, reference string) (*Outcome, error) {
	out, err := s.submit(ctx, token, recipientAccountID, amount, reference)
	if err != nil {
		s.metrics.TransferRejected(string(domain.KindOf(err)))
		return nil, err
	}
	s.metrics.TransferCompleted(out.Fee.Decimal())
	return out, nil
}

func (s *Service) submit(ctx context.Context, token, recipientAccountID string, amount decimal.Decimal, reference string) (*Outcome, error) {
	senderID, err := s.authenticate(token)
	if err != nil {
		return nil, err
	}

	if !amount.IsPositive() {
		return nil, domain.NewError(domain.KindInvalidAmount, "Amount must be greater than 0")
	}
	minor, err := domain.ToMinorUnits(amount)
	if err != nil {
		return nil, domain.NewError(domain.KindInvalidAmount, "Amount exceeds the maximum of %s", domain.MaxAmount.StringFixed(2))
	}
	if minor == 0 {
		return nil, domain.NewError(domain.KindInvalidAmount, "Amount must be at least 0.01")
	}
	amount = minor.Decimal()

	recipientID, err := s.resolveRecipient(ctx, recipientAccountID)
	if err != nil {
		return nil, err
	}
	if recipientID == senderID {
		return nil, domain.NewError(domain.KindSelfTransferDenied, "Self-transfer is not allowed")
	}

	fee, err := s.schedule.Compute(amount)
	if err != nil {
		return nil, err
	}

	req := domain.TransferRequest{
		TransferID:      s.newID(),
		SenderUserID:    senderID,
		RecipientUserID: recipientID,
		Amount:          amount,
		Fee:             fee,
		Reference:       reference,
		CreatedAt:       s.now().UTC().Truncate(time.Millisecond),
	}
	res, err := s.execute(ctx, req)
	if err != nil {
		de := domain.AsError(err)
		if de.TransferID == "" {
			de.TransferID = req.TransferID
		}
		if de.Timestamp.IsZero() {
			de.Timestamp = req.CreatedAt
		}
		// A rejected attempt may still have left a FAILED row, and an unknown outcome may have completed
		s.history.Invalidate(ctx, senderID, recipientID)
		logrus.WithFields(logrus.Fields{
			"transfer_id": req.TransferID,
			"sender":      senderID,
			"recipient":   recipientID,
			"amount":      amount.StringFixed(2),
			"kind":        de.Kind,
			"retryable":   de.Retryable,
		}).Warn("Transfer not completed")
		return nil, de
	}

	s.history.Invalidate(ctx, senderID, recipientID)

	ts := res.CreatedAt
	if ts.IsZero() {
		ts = req.CreatedAt
	}
	return &Outcome{
		TransferID:       res.TransferID,
		RecipientAccount: recipientAccountID,
		Amount:           res.Amount,
		Fee:              res.Fee,
		TotalDeducted:    res.Amount + res.Fee,
		SenderNewBalance: res.SenderNewBalance,
		Reference:        reference,
		Timestamp:        ts,
	}, nil
}

func (s *Service) resolveRecipient(ctx context.Context, accountID string) (string, error) {
	notFound := domain.NewError(domain.KindRecipientNotFound, "Recipient account not found")
	if accountID == "" {
		return "", notFound
	}
	done := s.observe("account_exists")
	exists, err := s.ledger.AccountExists(ctx, accountID)
	done()
	if err != nil {
		return "", err
	}
	if !exists {
		return "", notFound
	}
	defer s.observe("resolve_account")()
	id, err := s.ledger.ResolveAccount(ctx, accountID)
	if errors.Is(err, &domain.Error{Kind: domain.KindNotFound}) {
		return "", notFound
	}
	if err != nil {
		return "", err
	}
	return id.UserID, nil
}

// execute calls the ledger, retrying retryable failures with the same transfer id.
// The ledger never applies one id twice, so a retry after an unknown outcome is safe.
// Retries only help when the outcome is unknown, e.g. a timeout or a request that never
// reached the ledger. Once the ledger has recorded the id as FAILED it reports the fault
// as not retryable and a same-id retry would only be refused.
func (s *Service) execute(ctx context.Context, req domain.TransferRequest) (*domain.TransferResult, error) {
	defer s.observe("execute_transfer")()
	for attempt := 0; ; attempt++ {
		res, err := s.ledger.ExecuteTransfer(ctx, req)
		if err == nil || !domain.IsRetryable(err) || attempt >= s.retries || ctx.Err() != nil {
			return res, err
		}
		logrus.WithFields(logrus.Fields{
			"transfer_id": req.TransferID,
			"attempt":     attempt + 1,
			"error":       err.Error(),
		}).Warn("Retrying transfer")
	}
}

// GetTransferStatus returns a transfer the caller sent or received
func (s *Service) GetTransferStatus(ctx context.Context, token, transferID string) (*domain.TransferDetail, error) {
	userID, err := s.authenticate(token)
	if err != nil {
		return nil, err
	}
	done := s.observe("get_transfer")
	d, err := s.ledger.GetTransfer(ctx, transferID)
	done()
	if err != nil {
		return nil, err
	}
	if !d.Involves(userID) {
		logrus.WithFields(logrus.Fields{"user_id": userID, "transfer_id": transferID}).Warn("Transfer view denied")
		return nil, domain.NewError(domain.KindUnauthorized, "Unauthorized")
	}
	return d, nil
}

// ListTransfers returns the caller's transfers, newest first
func (s *Service) ListTransfers(ctx context.Context, token string) ([]domain.TransferDetail, error) {
	userID, err := s.authenticate(token)
	if err != nil {
		return nil, err
	}
	if list, ok := s.history.Get(ctx, userID); ok {
		return list, nil
	}
	done := s.observe("list_transfers")
	list, err := s.ledger.ListTransfersForUser(ctx, userID)
	done()
	if err != nil {
		return nil, err
	}
	s.history.Set(ctx, userID, list)
	return list, nil
}

// ServerStats reports ledger counters and active sessions.
// When the ledger cannot be reached the ledger counters are zero and LedgerUnavailable is set.
func (s *Service) ServerStats(ctx context.Context) *ServerStats {
	out := &ServerStats{ActiveSessions: s.sessions.Count()}
	defer s.observe("get_stats")()
	stats, err := s.ledger.GetStats(ctx)
	if err != nil {
		logrus.WithField("error", err.Error()).Warn("Ledger stats unavailable")
		out.LedgerUnavailable = true
		return out
	}
	out.TotalUsers = stats.TotalUsers
	out.TotalTransfers = stats.TotalTransfers
	out.CompletedTransfers = stats.CompletedTransfers
	return out
}
