// Package bank is the transaction recorder and report builder of the bank
// variant. Balances are decimals that never expire; every change is an
// append-only transaction against another member or the system identity.
package bank

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/moose-rewards/moose/internal/domain"
	"github.com/moose-rewards/moose/internal/infra/observability"
)

// Config controls report paging.
type Config struct {
	PageSize int // feed items per statement page (default: 5)
}

// DefaultConfig returns the bank defaults.
func DefaultConfig() Config {
	return Config{PageSize: domain.DefaultPageSize}
}

// Service implements the bank operations.
type Service struct {
	store  domain.BankStore
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// New creates a bank service. A nil logger uses slog.Default().
func New(store domain.BankStore, cfg Config, logger *slog.Logger) *Service {
	if cfg.PageSize <= 0 {
		cfg.PageSize = domain.DefaultPageSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		cfg:    cfg,
		logger: logger.With("component", "bank"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source. Tests only.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// PageSize returns the statement page size.
func (s *Service) PageSize() int { return s.cfg.PageSize }

// Register opens a zero balance account.
func (s *Service) Register(ctx context.Context, identity, displayName string) (domain.BankAccount, error) {
	displayName = domain.NormalizeName(displayName)
	if identity == "" || displayName == "" {
		return domain.BankAccount{}, domain.ErrInvalidArgument
	}
	acct, err := s.store.CreateBankAccount(ctx, identity, displayName, s.now())
	if err != nil {
		return domain.BankAccount{}, err
	}
	s.logger.Info("bank account opened", "identity", identity, "name", displayName)
	return acct, nil
}

// Balance returns the account of identity.
func (s *Service) Balance(ctx context.Context, identity string) (domain.BankAccount, error) {
	return s.store.GetBankAccount(ctx, identity)
}

// Transfer pays amount from sender to recipient.
func (s *Service) Transfer(ctx context.Context, sender, recipient string, amount decimal.Decimal) (domain.Transaction, error) {
	if !domain.ValidCurrencyAmount(amount) {
		return domain.Transaction{}, domain.ErrInvalidAmount
	}
	if sender == recipient {
		return domain.Transaction{}, domain.ErrSelfTransfer
	}
	txn, err := s.store.Transfer(ctx, sender, recipient, amount, s.now())
	if err != nil {
		return domain.Transaction{}, err
	}
	observability.BankTransactions.WithLabelValues(string(txn.Kind())).Inc()
	s.logger.Info("transfer committed", "id", txn.ID, "sender", sender, "recipient", recipient, "amount", amount.StringFixed(2))
	return txn, nil
}

// AdminAdjust deposits a positive or withdraws a negative signedAmount.
func (s *Service) AdminAdjust(ctx context.Context, identity string, signedAmount decimal.Decimal) (domain.Transaction, error) {
	if signedAmount.IsZero() || !domain.ValidCurrencyAmount(signedAmount.Abs()) {
		return domain.Transaction{}, domain.ErrInvalidAmount
	}
	txn, err := s.store.Adjust(ctx, identity, signedAmount, s.now())
	if err != nil {
		return domain.Transaction{}, err
	}
	observability.BankTransactions.WithLabelValues(string(txn.Kind())).Inc()
	s.logger.Info("balance adjusted", "id", txn.ID, "identity", identity, "delta", signedAmount.StringFixed(2))
	return txn, nil
}

// Report builds the windowed statement of identity.
func (s *Service) Report(ctx context.Context, identity string, window domain.ReportWindow) (Report, error) {
	if _, err := domain.ParseWindow(string(window)); err != nil {
		return Report{}, err
	}
	acct, err := s.store.GetBankAccount(ctx, identity)
	if err != nil {
		return Report{}, err
	}
	now := s.now()
	txs, err := s.store.TransactionsSince(ctx, identity, window.Since(now))
	if err != nil {
		return Report{}, err
	}
	names, err := s.store.BankDisplayNames(ctx, counterparties(txs, identity))
	if err != nil {
		return Report{}, err
	}
	return Report{
		Identity:     identity,
		DisplayName:  acct.DisplayName,
		Window:       window,
		GeneratedAt:  now,
		Balance:      acct.Balance,
		NetChange:    domain.NetChange(txs, identity),
		Transactions: txs,
		names:        names,
	}, nil
}

func counterparties(txs []domain.Transaction, identity string) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, t := range txs {
		cp := t.Counterparty(identity)
		if cp == domain.SystemIdentity || seen[cp] {
			continue
		}
		seen[cp] = true
		ids = append(ids, cp)
	}
	return ids
}
