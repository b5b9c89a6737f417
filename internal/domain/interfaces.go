package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ─── Store Interfaces ───────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; the application layer depends on them.
// Every mutating method is atomic and serialized per account identity.

// PointsStore persists rewards accounts and their point batches.
type PointsStore interface {
	CreateAccount(ctx context.Context, identity, displayName string, quota int, now time.Time) (Account, error)
	GetAccount(ctx context.Context, identity string) (Account, error)

	// SpendableBalance sums entries with expires_at > now.
	SpendableBalance(ctx context.Context, identity string, now time.Time) (int64, error)
	InsertEntry(ctx context.Context, identity string, amount int64, earnedAt, expiresAt time.Time) (LedgerEntry, error)
	ListEntries(ctx context.Context, identity string) ([]LedgerEntry, error)

	// SpendFIFO consumes unexpired entries oldest first. It fails with
	// ErrInsufficientFunds before touching any entry.
	SpendFIFO(ctx context.Context, identity string, amount int64, now time.Time) error
	DeleteExpiredEntries(ctx context.Context, now time.Time) (int64, error)

	RegisterReferral(ctx context.Context, req ReferralRequest) (Account, error)
}

// ReferralRequest carries everything a referral commits in one transaction.
type ReferralRequest struct {
	Identity    string
	DisplayName string
	Referrer    string
	Bonus       int64
	Quota       int
	EarnedAt    time.Time
	ExpiresAt   time.Time
}

// CatalogStore persists store items and member inventories.
type CatalogStore interface {
	UpsertItem(ctx context.Context, item StoreItem) (created bool, err error)
	GetItem(ctx context.Context, name string) (StoreItem, error)
	ListItems(ctx context.Context) ([]StoreItem, error)
	DeleteItem(ctx context.Context, name string) error

	// Purchase spends the item cost and records the inventory entry atomically.
	Purchase(ctx context.Context, identity, itemName string, now time.Time) (InventoryEntry, error)
	ListInventory(ctx context.Context, identity string) ([]InventoryEntry, error)
	RemoveOldestInventoryItem(ctx context.Context, identity, itemName string) (InventoryEntry, error)
}

// SettingsStore is a durable key/value map.
type SettingsStore interface {
	SetSetting(ctx context.Context, key, value string) error
	Setting(ctx context.Context, key string) (value string, ok bool, err error)
}

// BankStore persists currency accounts and the transaction ledger.
type BankStore interface {
	CreateBankAccount(ctx context.Context, identity, displayName string, now time.Time) (BankAccount, error)
	GetBankAccount(ctx context.Context, identity string) (BankAccount, error)

	// Transfer moves amount between two accounts and appends the transaction
	// in one unit.
	Transfer(ctx context.Context, sender, recipient string, amount decimal.Decimal, now time.Time) (Transaction, error)

	// Adjust applies a signed delta against the system identity.
	Adjust(ctx context.Context, identity string, delta decimal.Decimal, now time.Time) (Transaction, error)

	// TransactionsSince returns identity's transactions at or after since,
	// newest first.
	TransactionsSince(ctx context.Context, identity string, since time.Time) ([]Transaction, error)
	BankDisplayNames(ctx context.Context, identities []string) (map[string]string, error)
}
