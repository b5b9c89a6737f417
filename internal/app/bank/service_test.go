package bank_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moose-rewards/moose/internal/app/bank"
	"github.com/moose-rewards/moose/internal/domain"
	"github.com/moose-rewards/moose/internal/infra/sqlite"
)

var dec = decimal.RequireFromString

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestService(t *testing.T) (*bank.Service, *clock) {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := bank.New(db, bank.DefaultConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.SetClock(c.now)
	return svc, c
}

func register(t *testing.T, svc *bank.Service, ids ...string) {
	t.Helper()
	for _, id := range ids {
		_, err := svc.Register(context.Background(), id, "Name "+id)
		require.NoError(t, err)
	}
}

func TestTransfer(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	register(t, svc, "a", "b")

	_, err := svc.AdminAdjust(ctx, "a", dec("25"))
	require.NoError(t, err)

	txn, err := svc.Transfer(ctx, "a", "b", dec("10"))
	require.NoError(t, err)
	assert.Equal(t, domain.TxTransfer, txn.Kind())

	a, _ := svc.Balance(ctx, "a")
	b, _ := svc.Balance(ctx, "b")
	assert.True(t, a.Balance.Equal(dec("15")), "a balance %s", a.Balance)
	assert.True(t, b.Balance.Equal(dec("10")), "b balance %s", b.Balance)
}

func TestTransfer_Errors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	register(t, svc, "a", "b")

	tests := []struct {
		name      string
		sender    string
		recipient string
		amount    string
		wantErr   error
	}{
		{"zero amount", "a", "b", "0", domain.ErrInvalidAmount},
		{"negative amount", "a", "b", "-5", domain.ErrInvalidAmount},
		{"self transfer", "a", "a", "1", domain.ErrSelfTransfer},
		{"unregistered sender", "ghost", "b", "1", domain.ErrNotRegistered},
		{"unregistered recipient", "a", "ghost", "1", domain.ErrNotRegistered},
		{"insufficient funds", "a", "b", "1", domain.ErrInsufficientFunds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Transfer(ctx, tt.sender, tt.recipient, dec(tt.amount))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAdminAdjust(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	register(t, svc, "a")

	dep, err := svc.AdminAdjust(ctx, "a", dec("12.34"))
	require.NoError(t, err)
	assert.Equal(t, domain.TxDeposit, dep.Kind())

	wd, err := svc.AdminAdjust(ctx, "a", dec("-2.34"))
	require.NoError(t, err)
	assert.Equal(t, domain.TxWithdrawal, wd.Kind())

	_, err = svc.AdminAdjust(ctx, "a", dec("-11"))
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	_, err = svc.AdminAdjust(ctx, "a", decimal.Zero)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = svc.AdminAdjust(ctx, "ghost", dec("1"))
	assert.ErrorIs(t, err, domain.ErrNotRegistered)

	acct, _ := svc.Balance(ctx, "a")
	assert.True(t, acct.Balance.Equal(dec("10")))
}

func TestReport_WeekWindow(t *testing.T) {
	svc, c := newTestService(t)
	ctx := context.Background()
	register(t, svc, "a", "b")
	start := c.t

	// t-10d deposit falls outside a week.
	c.t = start.Add(-10 * 24 * time.Hour)
	_, err := svc.AdminAdjust(ctx, "a", dec("100"))
	require.NoError(t, err)
	c.t = start.Add(-3 * 24 * time.Hour)
	_, err = svc.Transfer(ctx, "a", "b", dec("40"))
	require.NoError(t, err)
	c.t = start.Add(-time.Hour)
	_, err = svc.Transfer(ctx, "b", "a", dec("15.50"))
	require.NoError(t, err)
	c.t = start

	r, err := svc.Report(ctx, "a", domain.WindowWeek)
	require.NoError(t, err)
	assert.True(t, r.Balance.Equal(dec("75.50")), "balance %s", r.Balance)
	assert.True(t, r.NetChange.Equal(dec("-24.50")), "net %s", r.NetChange)
	require.Len(t, r.Transactions, 2)
	assert.True(t, r.Transactions[0].CreatedAt.After(r.Transactions[1].CreatedAt))

	feed := r.Feed()
	require.Len(t, feed, 2)
	assert.Equal(t, "Received", feed[0].Label)
	assert.Equal(t, "From Name b", feed[0].Detail)
	assert.Equal(t, "Sent", feed[1].Label)
	assert.True(t, feed[1].Amount.Equal(dec("-40")))

	year, err := svc.Report(ctx, "a", domain.WindowYear)
	require.NoError(t, err)
	require.Len(t, year.Transactions, 3)
	assert.Equal(t, "Deposit", year.Feed()[2].Label)
	assert.True(t, year.NetChange.Equal(dec("75.50")))

	_, err = svc.Report(ctx, "a", domain.ReportWindow("fortnight"))
	assert.ErrorIs(t, err, domain.ErrInvalidWindow)
	_, err = svc.Report(ctx, "ghost", domain.WindowDay)
	assert.ErrorIs(t, err, domain.ErrNotRegistered)
}

func TestReport_Pages(t *testing.T) {
	svc, c := newTestService(t)
	ctx := context.Background()
	register(t, svc, "a")
	for i := 0; i < 12; i++ {
		c.t = c.t.Add(time.Minute)
		_, err := svc.AdminAdjust(ctx, "a", dec(fmt.Sprintf("%d", i+1)))
		require.NoError(t, err)
	}

	r, err := svc.Report(ctx, "a", domain.WindowDay)
	require.NoError(t, err)

	sizes := []int{5, 5, 2}
	for k, want := range sizes {
		p := r.Page(k, svc.PageSize())
		assert.Equal(t, 3, p.Total)
		assert.Equal(t, k, p.Index)
		assert.Len(t, p.Items, want)
	}
	// newest deposit (12) heads the first page
	assert.True(t, r.Page(0, 5).Items[0].Amount.Equal(dec("12")))
	assert.Equal(t, 2, r.Page(9, 5).Index, "out of range page is clamped")
}

func TestReport_EmptyHasOnePage(t *testing.T) {
	svc, _ := newTestService(t)
	register(t, svc, "a")

	r, err := svc.Report(context.Background(), "a", domain.WindowMonth)
	require.NoError(t, err)
	p := r.Page(0, 5)
	assert.Equal(t, 1, p.Total)
	assert.Empty(t, p.Items)
	assert.True(t, r.NetChange.IsZero())
	assert.Contains(t, r.Summary(), "0.00")
}
