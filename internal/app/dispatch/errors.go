package dispatch

import (
	"errors"
	"strings"

	"github.com/moose-rewards/moose/internal/domain"
)

// errorText maps each domain error to a reply and a stable code. Order
// matters: the first match wins.
var errorText = []struct {
	err  error
	code string
	text string
}{
	{domain.ErrInvalidWindow, "invalid_window", "Unknown window. Use day, week, month or year."},
	{domain.ErrNotRegistered, "not_registered", "That account is not registered. Use /register first."},
	{domain.ErrAlreadyRegistered, "already_registered", "You are already registered."},
	{domain.ErrReferrerNotRegistered, "referrer_not_registered", "The member who referred you is not registered."},
	{domain.ErrInvalidAmount, "invalid_amount", "Amount must be greater than zero."},
	{domain.ErrInsufficientFunds, "insufficient_funds", "Insufficient balance."},
	{domain.ErrSelfTransfer, "self_transfer", "You cannot pay yourself."},
	{domain.ErrSelfReferral, "self_referral", "You cannot refer yourself."},
	{domain.ErrReferralQuotaExhausted, "referral_quota_exhausted", "That member has no referrals left."},
	{domain.ErrItemNotFound, "item_not_found", "No item with that name in the store."},
	{domain.ErrItemNotOwned, "item_not_owned", "That member does not own this item."},
	{domain.ErrViewNotFound, "view_not_found", "This view has expired. Run the command again."},
	{domain.ErrUnauthorized, "unauthorized", "You do not have permission to use this command."},
	{domain.ErrUnknownCommand, "unknown_command", "Unknown command."},
	{domain.ErrInvalidArgument, "invalid_argument", ""},
}

const genericFailure = "Something went wrong. Please try again later."

// userMessage returns the reply text and code for err. known is false for
// errors outside the domain set.
func userMessage(err error) (text, code string, known bool) {
	for _, e := range errorText {
		if !errors.Is(err, e.err) {
			continue
		}
		if e.text == "" {
			return argumentText(err), e.code, true
		}
		return e.text, e.code, true
	}
	return genericFailure, "internal", false
}

// argumentText exposes the detail after the sentinel prefix.
func argumentText(err error) string {
	msg := err.Error()
	prefix := domain.ErrInvalidArgument.Error() + ": "
	if detail, ok := strings.CutPrefix(msg, prefix); ok && detail != "" {
		return "Invalid input: " + detail + "."
	}
	return "Invalid input."
}

func isDomainError(err error) bool {
	_, _, known := userMessage(err)
	return known
}
