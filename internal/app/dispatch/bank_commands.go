package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/moose-rewards/moose/internal/app/bank"
	"github.com/moose-rewards/moose/internal/domain"
)

// VariantBank names the bank bot.
const VariantBank = "bank"

// BankCommands returns the command table of the bank bot.
func BankCommands(svc *bank.Service) []Command {
	h := bankHandlers{svc: svc}
	return []Command{
		{
			Name: "register", Description: "Open a bank account",
			Access: AccessSelf, Mutates: true,
			Args:   []ArgSpec{{Name: "name", Kind: ArgString, Description: "Account display name"}},
			Handle: h.register,
		},
		{
			Name: "balance", Description: "Show an account balance",
			Access: AccessSelfOrAdmin,
			Handle: h.balance,
		},
		{
			Name: "pay", Description: "Send money to another member",
			Access: AccessSelf, NeedsTarget: true, Mutates: true,
			Args:   []ArgSpec{{Name: "amount", Kind: ArgDecimal}},
			Handle: h.pay,
		},
		{
			Name: "statement", Description: "Balance changes over a window",
			Access: AccessSelfOrAdmin,
			Args:   []ArgSpec{{Name: "window", Kind: ArgWindow, Optional: true, Default: "week", Description: "day, week, month or year"}},
			Handle: h.statement,
		},
		{
			Name: "deposit", Description: "Deposit money into an account",
			Access: AccessAdmin, NeedsTarget: true, Mutates: true,
			Args:   []ArgSpec{{Name: "amount", Kind: ArgDecimal}},
			Handle: h.deposit,
		},
		{
			Name: "withdraw", Description: "Withdraw money from an account",
			Access: AccessAdmin, NeedsTarget: true, Mutates: true,
			Args:   []ArgSpec{{Name: "amount", Kind: ArgDecimal}},
			Handle: h.withdraw,
		},
	}
}

type bankHandlers struct {
	svc *bank.Service
}

func (h bankHandlers) register(ctx context.Context, req *Request) (Reply, error) {
	acct, err := h.svc.Register(ctx, req.ActorID, req.Args.String("name"))
	if err != nil {
		return Reply{}, err
	}
	return ephemeral(fmt.Sprintf("Opened an account for %s.", acct.DisplayName)), nil
}

func (h bankHandlers) balance(ctx context.Context, req *Request) (Reply, error) {
	acct, err := h.svc.Balance(ctx, req.Subject)
	if err != nil {
		return Reply{}, err
	}
	if req.IsSelf() {
		return ephemeral(fmt.Sprintf("Your balance is **%s**.", acct.Balance.StringFixed(2))), nil
	}
	return ephemeral(fmt.Sprintf("%s's balance is **%s**.", acct.DisplayName, acct.Balance.StringFixed(2))), nil
}

func (h bankHandlers) pay(ctx context.Context, req *Request) (Reply, error) {
	amount := req.Args.Decimal("amount")
	if _, err := h.svc.Transfer(ctx, req.ActorID, req.TargetID, amount); err != nil {
		return Reply{}, err
	}
	return ephemeral(fmt.Sprintf("Sent **%s** to %s.", amount.StringFixed(2), req.SubjectName)), nil
}

func (h bankHandlers) statement(ctx context.Context, req *Request) (Reply, error) {
	report, err := h.svc.Report(ctx, req.Subject, req.Args.Window("window"))
	if err != nil {
		return Reply{}, err
	}
	pager := statementPager{report: report, size: h.svc.PageSize()}
	ref, err := req.OpenView(pager)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Embed: pager.RenderPage(0), View: ref, Ephemeral: true}, nil
}

func (h bankHandlers) deposit(ctx context.Context, req *Request) (Reply, error) {
	amount := req.Args.Decimal("amount")
	if !amount.IsPositive() {
		return Reply{}, domain.ErrInvalidAmount
	}
	if _, err := h.svc.AdminAdjust(ctx, req.TargetID, amount); err != nil {
		return Reply{}, err
	}
	req.Audit("%s deposited %s to %s", req.ActorName, amount.StringFixed(2), req.SubjectName)
	return ephemeral(fmt.Sprintf("Deposited **%s** to %s.", amount.StringFixed(2), req.SubjectName)), nil
}

func (h bankHandlers) withdraw(ctx context.Context, req *Request) (Reply, error) {
	amount := req.Args.Decimal("amount")
	if !amount.IsPositive() {
		return Reply{}, domain.ErrInvalidAmount
	}
	if _, err := h.svc.AdminAdjust(ctx, req.TargetID, amount.Neg()); err != nil {
		return Reply{}, err
	}
	req.Audit("%s withdrew %s from %s", req.ActorName, amount.StringFixed(2), req.SubjectName)
	return ephemeral(fmt.Sprintf("Withdrew **%s** from %s.", amount.StringFixed(2), req.SubjectName)), nil
}

// ─── Statement View ─────────────────────────────────────────────────────────

type statementPager struct {
	report bank.Report
	size   int
}

func (p statementPager) PageCount() int {
	return p.report.Page(0, p.size).Total
}

func (p statementPager) RenderPage(page int) *Embed {
	pg := p.report.Page(page, p.size)
	lines := make([]string, 0, len(pg.Items))
	for _, it := range pg.Items {
		lines = append(lines, it.FormatLine())
	}
	body := strings.Join(lines, "\n")
	if body == "" {
		body = "No transactions in this window."
	}
	return &Embed{
		Title:       fmt.Sprintf("%s · last %s", p.report.DisplayName, p.report.Window),
		Description: p.report.Summary(),
		Fields:      []Field{{Name: "Transactions", Value: body}},
		Footer:      fmt.Sprintf("Page %d of %d", pg.Index+1, pg.Total),
	}
}
