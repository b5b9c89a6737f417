package domain

import "time"

// ─── Referral Types ─────────────────────────────────────────────────────────
// A new member may name an existing member as referrer at registration.
// The referrer earns a bonus grant and spends one referral credit.

// ReferralPolicy defines the rewards and limits for referrals.
type ReferralPolicy struct {
	Bonus    int64         `json:"bonus"`    // points granted to the referrer
	Quota    int           `json:"quota"`    // referral credits a new account starts with
	Validity time.Duration `json:"validity"` // lifetime of the bonus grant
}

// DefaultReferralPolicy returns the program defaults: 50 points per referral,
// 8 referrals per member, standard validity.
func DefaultReferralPolicy() ReferralPolicy {
	return ReferralPolicy{
		Bonus:    50,
		Quota:    8,
		Validity: DefaultValidity,
	}
}

// CheckReferral validates the identities of a referral before any store
// lookups happen.
func CheckReferral(newIdentity, referrer string) error {
	if newIdentity == referrer {
		return ErrSelfReferral
	}
	return nil
}
