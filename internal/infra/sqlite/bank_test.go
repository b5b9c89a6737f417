package sqlite

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/moose-rewards/moose/internal/domain"
)

var dec = decimal.RequireFromString

func mustBankAccount(t *testing.T, db *DB, identity string) {
	t.Helper()
	if _, err := db.CreateBankAccount(context.Background(), identity, identity+"-name", testNow); err != nil {
		t.Fatalf("CreateBankAccount(%s) error: %v", identity, err)
	}
}

func mustDeposit(t *testing.T, db *DB, identity, amount string, at time.Time) {
	t.Helper()
	if _, err := db.Adjust(context.Background(), identity, dec(amount), at); err != nil {
		t.Fatalf("Adjust(%s, %s) error: %v", identity, amount, err)
	}
}

func balanceOf(t *testing.T, db *DB, identity string) decimal.Decimal {
	t.Helper()
	acct, err := db.GetBankAccount(context.Background(), identity)
	if err != nil {
		t.Fatalf("GetBankAccount(%s) error: %v", identity, err)
	}
	return acct.Balance
}

// ─── Accounts ───────────────────────────────────────────────────────────────

func TestCreateBankAccount(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	mustBankAccount(t, db, "a")

	if !balanceOf(t, db, "a").IsZero() {
		t.Error("new account balance should be zero")
	}
	if _, err := db.CreateBankAccount(ctx, "a", "again", testNow); !errors.Is(err, domain.ErrAlreadyRegistered) {
		t.Errorf("duplicate = %v, want ErrAlreadyRegistered", err)
	}
	if _, err := db.CreateBankAccount(ctx, domain.SystemIdentity, "sys", testNow); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("system identity = %v, want ErrInvalidArgument", err)
	}
	if _, err := db.GetBankAccount(ctx, "ghost"); !errors.Is(err, domain.ErrNotRegistered) {
		t.Errorf("GetBankAccount(ghost) = %v, want ErrNotRegistered", err)
	}
}

// ─── Transfers ──────────────────────────────────────────────────────────────

func TestTransfer_MovesFundsAndAppends(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	mustBankAccount(t, db, "a")
	mustBankAccount(t, db, "b")
	mustDeposit(t, db, "a", "100", testNow)

	txn, err := db.Transfer(ctx, "a", "b", dec("30.25"), testNow)
	if err != nil {
		t.Fatalf("Transfer() error: %v", err)
	}
	if txn.Kind() != domain.TxTransfer || !txn.Amount.Equal(dec("30.25")) {
		t.Errorf("transaction = %+v", txn)
	}
	if got := balanceOf(t, db, "a"); !got.Equal(dec("69.75")) {
		t.Errorf("sender balance = %s, want 69.75", got)
	}
	if got := balanceOf(t, db, "b"); !got.Equal(dec("30.25")) {
		t.Errorf("recipient balance = %s, want 30.25", got)
	}
}

func TestTransfer_OverdraftChangesNothing(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	mustBankAccount(t, db, "a")
	mustBankAccount(t, db, "b")
	mustDeposit(t, db, "a", "10", testNow)

	if _, err := db.Transfer(ctx, "a", "b", dec("10.01"), testNow); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("Transfer() = %v, want ErrInsufficientFunds", err)
	}
	if got := balanceOf(t, db, "a"); !got.Equal(dec("10")) {
		t.Errorf("sender balance = %s, want 10", got)
	}
	if got := balanceOf(t, db, "b"); !got.IsZero() {
		t.Errorf("recipient balance = %s, want 0", got)
	}
	txs, _ := db.TransactionsSince(ctx, "b", testNow.Add(-time.Hour))
	if len(txs) != 0 {
		t.Errorf("recipient has %d transactions, want 0", len(txs))
	}
}

func TestTransfer_Validation(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	mustBankAccount(t, db, "a")
	mustDeposit(t, db, "a", "10", testNow)

	tests := []struct {
		name      string
		recipient string
		amount    string
		wantErr   error
	}{
		{"zero", "b", "0", domain.ErrInvalidAmount},
		{"negative", "b", "-1", domain.ErrInvalidAmount},
		{"sub-cent", "b", "0.001", domain.ErrInvalidAmount},
		{"self", "a", "1", domain.ErrSelfTransfer},
		{"unknown recipient", "ghost", "1", domain.ErrNotRegistered},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := db.Transfer(ctx, "a", tt.recipient, dec(tt.amount), testNow); !errors.Is(err, tt.wantErr) {
				t.Errorf("Transfer() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// ─── Adjustments ────────────────────────────────────────────────────────────

func TestAdjust_DepositAndWithdraw(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	mustBankAccount(t, db, "a")

	dep, err := db.Adjust(ctx, "a", dec("50"), testNow)
	if err != nil {
		t.Fatal(err)
	}
	if dep.Kind() != domain.TxDeposit || dep.Sender != domain.SystemIdentity {
		t.Errorf("deposit = %+v", dep)
	}

	wd, err := db.Adjust(ctx, "a", dec("-20.50"), testNow)
	if err != nil {
		t.Fatal(err)
	}
	if wd.Kind() != domain.TxWithdrawal || !wd.Amount.Equal(dec("20.5")) {
		t.Errorf("withdrawal = %+v", wd)
	}
	if got := balanceOf(t, db, "a"); !got.Equal(dec("29.5")) {
		t.Errorf("balance = %s, want 29.5", got)
	}

	if _, err := db.Adjust(ctx, "a", dec("-30"), testNow); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Errorf("over-withdraw = %v, want ErrInsufficientFunds", err)
	}
	if _, err := db.Adjust(ctx, "a", decimal.Zero, testNow); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("zero adjust = %v, want ErrInvalidAmount", err)
	}
	if _, err := db.Adjust(ctx, "ghost", dec("1"), testNow); !errors.Is(err, domain.ErrNotRegistered) {
		t.Errorf("adjust ghost = %v, want ErrNotRegistered", err)
	}
}

// ─── Windowed Queries ───────────────────────────────────────────────────────

func TestTransactionsSince_WeekWindow(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	mustBankAccount(t, db, "a")
	mustBankAccount(t, db, "b")
	mustBankAccount(t, db, "c")

	mustDeposit(t, db, "a", "100", testNow.Add(-10*24*time.Hour))
	mustDeposit(t, db, "a", "5", testNow.Add(-2*24*time.Hour))
	db.Transfer(ctx, "a", "b", dec("10"), testNow.Add(-24*time.Hour))
	db.Transfer(ctx, "b", "a", dec("3"), testNow.Add(-time.Hour))
	mustDeposit(t, db, "c", "7", testNow.Add(-time.Hour)) // unrelated

	txs, err := db.TransactionsSince(ctx, "a", domain.WindowWeek.Since(testNow))
	if err != nil {
		t.Fatalf("TransactionsSince() error: %v", err)
	}
	if len(txs) != 3 {
		t.Fatalf("len(txs) = %d, want 3", len(txs))
	}
	for i := 1; i < len(txs); i++ {
		if txs[i].CreatedAt.After(txs[i-1].CreatedAt) {
			t.Errorf("transactions not newest first at %d", i)
		}
	}
	if net := domain.NetChange(txs, "a"); !net.Equal(dec("-2")) {
		t.Errorf("net change = %s, want -2", net)
	}
}

func TestTransactionsSince_TiesBrokenByID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	mustBankAccount(t, db, "a")
	mustDeposit(t, db, "a", "1", testNow)
	mustDeposit(t, db, "a", "2", testNow)

	txs, _ := db.TransactionsSince(ctx, "a", testNow)
	if len(txs) != 2 {
		t.Fatalf("len(txs) = %d, want 2 (lower bound is inclusive)", len(txs))
	}
	if txs[0].ID < txs[1].ID {
		t.Errorf("ids = [%d %d], want descending", txs[0].ID, txs[1].ID)
	}
}

func TestBuildTransactionsQuery(t *testing.T) {
	query, args, err := buildTransactionsQuery("a", testNow)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(query, "'a'") {
		t.Errorf("identity should be a bound argument: %s", query)
	}
	if !strings.Contains(query, "ORDER BY") {
		t.Errorf("query missing ORDER BY: %s", query)
	}
	if len(args) != 3 {
		t.Errorf("len(args) = %d, want 3", len(args))
	}
}

func TestBankDisplayNames(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	mustBankAccount(t, db, "a")
	mustBankAccount(t, db, "b")

	names, err := db.BankDisplayNames(ctx, []string{"a", "b", "ghost"})
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names["a"] != "a-name" || names["b"] != "b-name" {
		t.Errorf("names = %v", names)
	}
	empty, err := db.BankDisplayNames(ctx, nil)
	if err != nil || len(empty) != 0 {
		t.Errorf("BankDisplayNames(nil) = %v, %v", empty, err)
	}
}
