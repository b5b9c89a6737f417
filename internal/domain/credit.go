package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── Bank Ledger Types ──────────────────────────────────────────────────────
// Currency balances never expire. Every balance change is an immutable
// Transaction between two identities, one of which may be the system.

// SystemIdentity is the sentinel counterparty of deposits and withdrawals.
const SystemIdentity = "system"

// TransactionKind is the display classification of a transaction.
type TransactionKind string

const (
	TxDeposit    TransactionKind = "DEPOSIT"
	TxWithdrawal TransactionKind = "WITHDRAWAL"
	TxTransfer   TransactionKind = "TRANSFER"
)

// BankAccount holds a non-decaying currency balance.
type BankAccount struct {
	Identity    string          `json:"identity"`
	DisplayName string          `json:"display_name"`
	Balance     decimal.Decimal `json:"balance"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Transaction is a single append-only row in the bank ledger.
type Transaction struct {
	ID        int64           `json:"id"`
	Sender    string          `json:"sender"`
	Recipient string          `json:"recipient"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

// Kind classifies the transaction for display only.
func (t Transaction) Kind() TransactionKind {
	switch {
	case t.Sender == SystemIdentity:
		return TxDeposit
	case t.Recipient == SystemIdentity:
		return TxWithdrawal
	default:
		return TxTransfer
	}
}

// SignedFor returns the amount as seen from identity: positive when it
// received the funds, negative when it sent them, zero when unrelated.
func (t Transaction) SignedFor(identity string) decimal.Decimal {
	switch identity {
	case t.Recipient:
		return t.Amount
	case t.Sender:
		return t.Amount.Neg()
	default:
		return decimal.Zero
	}
}

// Counterparty returns the other side of the transaction for identity.
func (t Transaction) Counterparty(identity string) string {
	if t.Sender == identity {
		return t.Recipient
	}
	return t.Sender
}

// NetChange sums received minus sent amounts for identity.
func NetChange(txs []Transaction, identity string) decimal.Decimal {
	net := decimal.Zero
	for _, t := range txs {
		net = net.Add(t.SignedFor(identity))
	}
	return net
}

// Decimal bounds accepted from user input. Rescaling a value with an extreme
// exponent allocates a big.Int of that many digits, so every check on
// DecimalInRange must run before any arithmetic.
const (
	minDecimalExponent = -18
	maxDecimalExponent = 18
	maxDecimalDigits   = 30
)

// MaxCurrencyAmount bounds a single deposit, withdrawal or transfer.
var MaxCurrencyAmount = decimal.New(1, 15)

// DecimalInRange reports whether d has a bounded exponent and coefficient.
func DecimalInRange(d decimal.Decimal) bool {
	exp := d.Exponent()
	if exp < minDecimalExponent || exp > maxDecimalExponent {
		return false
	}
	return d.NumDigits() <= maxDecimalDigits
}

// ValidCurrencyAmount reports whether amount is positive, at most
// MaxCurrencyAmount, with at most two fractional digits.
func ValidCurrencyAmount(amount decimal.Decimal) bool {
	if !DecimalInRange(amount) {
		return false
	}
	return amount.IsPositive() &&
		amount.LessThanOrEqual(MaxCurrencyAmount) &&
		amount.Equal(amount.Round(2))
}
