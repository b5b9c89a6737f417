package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors carry no infrastructure dependency. All of them are
// recoverable and shown to the invoking user.

var (
	// Account errors
	ErrNotRegistered         = errors.New("account is not registered")
	ErrAlreadyRegistered     = errors.New("account is already registered")
	ErrReferrerNotRegistered = errors.New("referrer is not registered")

	// Ledger errors
	ErrInvalidAmount     = errors.New("amount must be greater than zero")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrSelfTransfer      = errors.New("cannot transfer to yourself")

	// Referral errors
	ErrSelfReferral           = errors.New("cannot refer yourself")
	ErrReferralQuotaExhausted = errors.New("referrer has no referral credits left")

	// Store errors
	ErrItemNotFound = errors.New("store item not found")
	ErrItemNotOwned = errors.New("item not in inventory")

	// Report errors
	ErrInvalidWindow = errors.New("unknown report window")
	ErrViewNotFound  = errors.New("paged view not found or expired")

	// Dispatch errors
	ErrUnauthorized    = errors.New("missing required role")
	ErrUnknownCommand  = errors.New("unknown command")
	ErrInvalidArgument = errors.New("invalid command argument")
)
