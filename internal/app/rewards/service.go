// Package rewards is the accrual and decay engine of the points variant.
//
// Points are granted in batches that expire after a validity window and are
// spent oldest first. The service adds registration checks, referral policy,
// the store catalog and metrics on top of the ledger store; atomicity and
// per-account serialization are the store's job.
package rewards

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/moose-rewards/moose/internal/domain"
	"github.com/moose-rewards/moose/internal/infra/observability"
)

// Store is everything the points variant persists.
type Store interface {
	domain.PointsStore
	domain.CatalogStore
	domain.SettingsStore
}

// Config controls grant validity and referral rewards.
type Config struct {
	Validity      time.Duration // lifetime of a grant (default: 180 days)
	ReferralBonus int64         // points paid to the referrer (default: 50)
	ReferralQuota int           // referral credits per new account (default: 8)
	SweepInterval time.Duration // expiry sweep period (default: 24h)
}

// DefaultConfig returns the program defaults.
func DefaultConfig() Config {
	p := domain.DefaultReferralPolicy()
	return Config{
		Validity:      p.Validity,
		ReferralBonus: p.Bonus,
		ReferralQuota: p.Quota,
		SweepInterval: 24 * time.Hour,
	}
}

// Service implements the points operations.
type Service struct {
	store  Store
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// New creates a points service. A nil logger uses slog.Default().
func New(store Store, cfg Config, logger *slog.Logger) *Service {
	def := DefaultConfig()
	if cfg.Validity <= 0 {
		cfg.Validity = def.Validity
	}
	if cfg.ReferralBonus <= 0 {
		cfg.ReferralBonus = def.ReferralBonus
	}
	if cfg.ReferralQuota < 0 {
		cfg.ReferralQuota = 0
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = def.SweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		cfg:    cfg,
		logger: logger.With("component", "rewards"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source. Tests only.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Config returns the effective configuration.
func (s *Service) Config() Config { return s.cfg }

// ─── Accounts ───────────────────────────────────────────────────────────────

// Register enrolls identity with the configured referral quota.
func (s *Service) Register(ctx context.Context, identity, displayName string) (domain.Account, error) {
	displayName = domain.NormalizeName(displayName)
	if identity == "" || displayName == "" {
		return domain.Account{}, domain.ErrInvalidArgument
	}
	acct, err := s.store.CreateAccount(ctx, identity, displayName, s.cfg.ReferralQuota, s.now())
	if err != nil {
		return domain.Account{}, err
	}
	s.logger.Info("account registered", "identity", identity, "name", displayName)
	return acct, nil
}

// Account returns the rewards account of identity.
func (s *Service) Account(ctx context.Context, identity string) (domain.Account, error) {
	return s.store.GetAccount(ctx, identity)
}

// Balance returns the spendable points of a registered account.
func (s *Service) Balance(ctx context.Context, identity string) (int64, error) {
	if _, err := s.store.GetAccount(ctx, identity); err != nil {
		return 0, err
	}
	return s.TotalSpendable(ctx, identity, s.now())
}

// TotalSpendable sums the entries of identity still valid at now.
func (s *Service) TotalSpendable(ctx context.Context, identity string, now time.Time) (int64, error) {
	return s.store.SpendableBalance(ctx, identity, now)
}

// ─── Grants & Spends ────────────────────────────────────────────────────────

// Grant credits amount points valid for validity. Amounts above
// domain.MaxPointsAmount are rejected. validity <= 0 uses the
// configured window.
func (s *Service) Grant(ctx context.Context, identity string, amount int64, validity time.Duration) (domain.LedgerEntry, error) {
	if !domain.ValidPointsAmount(amount) {
		return domain.LedgerEntry{}, domain.ErrInvalidAmount
	}
	if validity <= 0 {
		validity = s.cfg.Validity
	}
	now := s.now()
	entry, err := s.store.InsertEntry(ctx, identity, amount, now, now.Add(validity))
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	observability.PointsGranted.WithLabelValues("admin").Add(float64(amount))
	s.logger.Info("points granted", "identity", identity, "amount", amount, "expires_at", entry.ExpiresAt)
	return entry, nil
}

// Spend consumes amount points oldest first, or nothing at all.
func (s *Service) Spend(ctx context.Context, identity string, amount int64) error {
	if !domain.ValidPointsAmount(amount) {
		return domain.ErrInvalidAmount
	}
	if err := s.store.SpendFIFO(ctx, identity, amount, s.now()); err != nil {
		return err
	}
	observability.PointsSpent.WithLabelValues("admin").Add(float64(amount))
	s.logger.Info("points removed", "identity", identity, "amount", amount)
	return nil
}

// Entries lists the stored batches of identity.
func (s *Service) Entries(ctx context.Context, identity string) ([]domain.LedgerEntry, error) {
	return s.store.ListEntries(ctx, identity)
}

// ─── Referrals ──────────────────────────────────────────────────────────────

// Referral registers a new member on behalf of referrer and pays the bonus.
func (s *Service) Referral(ctx context.Context, identity, displayName, referrer string) (domain.Account, error) {
	displayName = domain.NormalizeName(displayName)
	if identity == "" || displayName == "" || referrer == "" {
		return domain.Account{}, domain.ErrInvalidArgument
	}
	now := s.now()
	acct, err := s.store.RegisterReferral(ctx, domain.ReferralRequest{
		Identity:    identity,
		DisplayName: displayName,
		Referrer:    referrer,
		Bonus:       s.cfg.ReferralBonus,
		Quota:       s.cfg.ReferralQuota,
		EarnedAt:    now,
		ExpiresAt:   now.Add(s.cfg.Validity),
	})
	if err != nil {
		return domain.Account{}, err
	}
	observability.PointsGranted.WithLabelValues("referral").Add(float64(s.cfg.ReferralBonus))
	s.logger.Info("referral registered", "identity", identity, "referrer", referrer, "bonus", s.cfg.ReferralBonus)
	return acct, nil
}

// ReferralBonus returns the configured bonus.
func (s *Service) ReferralBonus() int64 { return s.cfg.ReferralBonus }

// ─── Expiry ─────────────────────────────────────────────────────────────────

// Sweep deletes entries that expired at or before now. Balances already
// ignore them; the sweep only reclaims storage.
func (s *Service) Sweep(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteExpiredEntries(ctx, s.now())
	if err != nil {
		observability.SweepRuns.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("sweep expired entries: %w", err)
	}
	observability.SweepRuns.WithLabelValues("ok").Inc()
	observability.SweepDeleted.Add(float64(n))
	return n, nil
}

// ─── Store Catalog ──────────────────────────────────────────────────────────

// UpsertItem adds a store item or updates the one with the same name.
func (s *Service) UpsertItem(ctx context.Context, name string, cost int64, description string) (bool, error) {
	if !domain.ValidPointsAmount(cost) {
		return false, domain.ErrInvalidAmount
	}
	created, err := s.store.UpsertItem(ctx, domain.StoreItem{
		Name:        domain.NormalizeName(name),
		Cost:        cost,
		Description: description,
	})
	if err != nil {
		return false, err
	}
	s.logger.Info("store item saved", "name", name, "cost", cost, "created", created)
	return created, nil
}

// RemoveItem deletes a store item.
func (s *Service) RemoveItem(ctx context.Context, name string) error {
	if err := s.store.DeleteItem(ctx, name); err != nil {
		return err
	}
	s.logger.Info("store item removed", "name", name)
	return nil
}

// Items lists the catalog.
func (s *Service) Items(ctx context.Context) ([]domain.StoreItem, error) {
	return s.store.ListItems(ctx)
}

// Purchase buys itemName for identity.
func (s *Service) Purchase(ctx context.Context, identity, itemName string) (domain.InventoryEntry, error) {
	entry, err := s.store.Purchase(ctx, identity, itemName, s.now())
	if err != nil {
		return domain.InventoryEntry{}, err
	}
	observability.PointsSpent.WithLabelValues("purchase").Add(float64(entry.Cost))
	s.logger.Info("item purchased", "identity", identity, "item", entry.ItemName, "cost", entry.Cost)
	return entry, nil
}

// Inventory lists identity's purchases, newest first.
func (s *Service) Inventory(ctx context.Context, identity string) ([]domain.InventoryEntry, error) {
	if _, err := s.store.GetAccount(ctx, identity); err != nil {
		return nil, err
	}
	return s.store.ListInventory(ctx, identity)
}

// RemoveInventoryItem removes the oldest copy of itemName from identity.
func (s *Service) RemoveInventoryItem(ctx context.Context, identity, itemName string) (domain.InventoryEntry, error) {
	removed, err := s.store.RemoveOldestInventoryItem(ctx, identity, itemName)
	if err != nil {
		return domain.InventoryEntry{}, err
	}
	s.logger.Info("inventory item removed", "identity", identity, "item", removed.ItemName)
	return removed, nil
}

// ─── Ticket Trigger ─────────────────────────────────────────────────────────

// SetTicketPrompt records the message whose 🎫 reaction opens a ticket.
func (s *Service) SetTicketPrompt(ctx context.Context, messageID string) error {
	messageID = domain.NormalizeName(messageID)
	if messageID == "" {
		return domain.ErrInvalidArgument
	}
	return s.store.SetSetting(ctx, domain.SettingTicketPromptMessage, messageID)
}

// IsTicketTrigger reports whether a reaction of emoji on messageID should
// open a ticket.
func (s *Service) IsTicketTrigger(ctx context.Context, messageID, emoji string) (bool, error) {
	if emoji != domain.TicketEmoji {
		return false, nil
	}
	prompt, ok, err := s.store.Setting(ctx, domain.SettingTicketPromptMessage)
	if err != nil || !ok {
		return false, err
	}
	return prompt == messageID, nil
}
