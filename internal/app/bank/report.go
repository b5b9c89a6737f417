package bank

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/moose-rewards/moose/internal/domain"
)

// Report is a windowed statement: current balance, net change over the
// window and the window's transactions, newest first.
type Report struct {
	Identity     string               `json:"identity"`
	DisplayName  string               `json:"display_name"`
	Window       domain.ReportWindow  `json:"window"`
	GeneratedAt  time.Time            `json:"generated_at"`
	Balance      decimal.Decimal      `json:"balance"`
	NetChange    decimal.Decimal      `json:"net_change"`
	Transactions []domain.Transaction `json:"transactions"`

	names map[string]string
}

// FeedItem is one human readable statement line.
type FeedItem struct {
	Label  string          `json:"label"`
	Detail string          `json:"detail"`
	Amount decimal.Decimal `json:"amount"` // signed, from the report owner's side
	At     time.Time       `json:"at"`
}

// Feed renders every transaction of the report.
func (r Report) Feed() []FeedItem {
	items := make([]FeedItem, 0, len(r.Transactions))
	for _, t := range r.Transactions {
		items = append(items, r.describe(t))
	}
	return items
}

func (r Report) describe(t domain.Transaction) FeedItem {
	item := FeedItem{Amount: t.SignedFor(r.Identity), At: t.CreatedAt}
	switch t.Kind() {
	case domain.TxDeposit:
		item.Label = "Deposit"
		item.Detail = "Deposited by the bank"
	case domain.TxWithdrawal:
		item.Label = "Withdrawal"
		item.Detail = "Withdrawn by the bank"
	default:
		cp := t.Counterparty(r.Identity)
		if t.Sender == r.Identity {
			item.Label = "Sent"
			item.Detail = "To " + r.nameOf(cp)
		} else {
			item.Label = "Received"
			item.Detail = "From " + r.nameOf(cp)
		}
	}
	return item
}

func (r Report) nameOf(identity string) string {
	if n, ok := r.names[identity]; ok && n != "" {
		return n
	}
	return identity
}

// Page is one page of a statement feed.
type Page struct {
	Index int        `json:"index"` // 0-based
	Total int        `json:"total"`
	Items []FeedItem `json:"items"`
}

// Page returns page k of the feed with size items per page.
func (r Report) Page(k, size int) Page {
	feed := r.Feed()
	total := domain.PageCount(len(feed), size)
	k = domain.ClampPage(k, total)
	return Page{Index: k, Total: total, Items: domain.Paginate(feed, k, size)}
}

// Summary is the statement header line.
func (r Report) Summary() string {
	sign := ""
	if r.NetChange.IsPositive() {
		sign = "+"
	}
	return fmt.Sprintf("Balance %s, %s%s over the last %s (%d transactions)",
		r.Balance.StringFixed(2), sign, r.NetChange.StringFixed(2), r.Window, len(r.Transactions))
}

// FormatLine renders a feed item as one line of text.
func (f FeedItem) FormatLine() string {
	sign := ""
	if f.Amount.IsPositive() {
		sign = "+"
	}
	return fmt.Sprintf("%s %s%s · %s · %s", f.Label, sign, f.Amount.StringFixed(2), f.Detail, f.At.Format("2006-01-02 15:04"))
}
