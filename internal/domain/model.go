// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring: the points economy, the bank ledger and the
// paging rules every transport shares.
package domain

import (
	"strings"
	"time"
)

// ─── Points Accounts ────────────────────────────────────────────────────────

// DefaultValidity is how long granted points stay spendable.
const DefaultValidity = 180 * 24 * time.Hour

// Account is a member of the rewards program (points variant).
type Account struct {
	Identity        string    `json:"identity"`
	DisplayName     string    `json:"display_name"`
	ReferralCredits int       `json:"referral_credits"`
	CreatedAt       time.Time `json:"created_at"`
}

// CanRefer reports whether the account still has referral credits left.
// The counter is a hard floor at zero.
func (a Account) CanRefer() bool { return a.ReferralCredits > 0 }

// MaxPointsAmount bounds a single grant, spend or item cost. A member's
// stored total is additionally kept below the int64 limit by the store.
const MaxPointsAmount int64 = 1_000_000_000_000

// ValidPointsAmount reports whether n is a positive amount within bounds.
func ValidPointsAmount(n int64) bool { return n > 0 && n <= MaxPointsAmount }

// LedgerEntry is one batch of earned points. Entries are consumed oldest
// first and disappear once their amount reaches zero.
type LedgerEntry struct {
	ID        int64     `json:"id"`
	Identity  string    `json:"identity"`
	Amount    int64     `json:"amount"`
	EarnedAt  time.Time `json:"earned_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the entry no longer counts toward the balance.
func (e LedgerEntry) Expired(now time.Time) bool {
	return !e.ExpiresAt.After(now)
}

// SpendableSum adds up the amounts of all entries still valid at now.
func SpendableSum(entries []LedgerEntry, now time.Time) int64 {
	var total int64
	for _, e := range entries {
		if !e.Expired(now) {
			total += e.Amount
		}
	}
	return total
}

// ─── Store & Inventory ──────────────────────────────────────────────────────

// StoreItem is a reward that can be bought with points.
type StoreItem struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Cost        int64  `json:"cost"`
	Description string `json:"description"`
}

// InventoryEntry records one purchase of a store item.
type InventoryEntry struct {
	ID          int64     `json:"id"`
	Identity    string    `json:"identity"`
	ItemID      int64     `json:"item_id"`
	ItemName    string    `json:"item_name"`
	Description string    `json:"description"`
	Cost        int64     `json:"cost"` // points paid at purchase time
	PurchasedAt time.Time `json:"purchased_at"`
}

// ─── Settings ───────────────────────────────────────────────────────────────

// Setting keys used outside the ledger core.
const (
	SettingTicketPromptMessage = "ticket_prompt_message_id"
)

// TicketEmoji is the reaction that opens a support ticket.
const TicketEmoji = "🎫"

// NormalizeName trims user supplied names. Empty names are rejected by callers.
func NormalizeName(s string) string {
	return strings.TrimSpace(s)
}
