package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/moose-rewards/moose/internal/domain"
)

// ─── Points Schema ──────────────────────────────────────────────────────────

// PointsMigrations returns the schema of the rewards ledger.
// Each string is a single SQL statement (SQLite executes one at a time).
func PointsMigrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			identity         TEXT PRIMARY KEY,
			display_name     TEXT NOT NULL,
			referral_credits INTEGER NOT NULL DEFAULT 8 CHECK (referral_credits >= 0),
			created_at       INTEGER NOT NULL
		)`,

		// One row per grant. amount is reduced by partial spends and the row is
		// deleted rather than stored at zero.
		`CREATE TABLE IF NOT EXISTS ledger_entries (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			identity   TEXT NOT NULL,
			amount     INTEGER NOT NULL CHECK (amount > 0),
			earned_at  INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_fifo ON ledger_entries(identity, earned_at, id)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_expires ON ledger_entries(expires_at)`,
	}
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ─── Account Operations ─────────────────────────────────────────────────────

// CreateAccount registers a new rewards account with quota referral credits.
func (db *DB) CreateAccount(ctx context.Context, identity, displayName string, quota int, now time.Time) (domain.Account, error) {
	unlock := db.locks.lock(identity)
	defer unlock()

	acct := domain.Account{
		Identity:        identity,
		DisplayName:     displayName,
		ReferralCredits: max(quota, 0),
		CreatedAt:       fromMillis(toMillis(now)),
	}
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		return insertAccount(ctx, tx, acct)
	})
	if err != nil {
		return domain.Account{}, err
	}
	return acct, nil
}

// GetAccount returns the account for identity.
func (db *DB) GetAccount(ctx context.Context, identity string) (domain.Account, error) {
	return getAccount(ctx, db.db, identity)
}

func getAccount(ctx context.Context, q querier, identity string) (domain.Account, error) {
	var a domain.Account
	var createdAt int64
	err := q.QueryRowContext(ctx, `
		SELECT identity, display_name, referral_credits, created_at
		FROM accounts WHERE identity = ?
	`, identity).Scan(&a.Identity, &a.DisplayName, &a.ReferralCredits, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Account{}, domain.ErrNotRegistered
	}
	if err != nil {
		return domain.Account{}, fmt.Errorf("get account: %w", err)
	}
	a.CreatedAt = fromMillis(createdAt)
	return a, nil
}

func insertAccount(ctx context.Context, tx *sql.Tx, a domain.Account) error {
	if _, err := getAccount(ctx, tx, a.Identity); err == nil {
		return domain.ErrAlreadyRegistered
	} else if !errors.Is(err, domain.ErrNotRegistered) {
		return err
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (identity, display_name, referral_credits, created_at)
		VALUES (?, ?, ?, ?)
	`, a.Identity, a.DisplayName, a.ReferralCredits, toMillis(a.CreatedAt))
	if isUniqueViolation(err) {
		return domain.ErrAlreadyRegistered
	}
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// ─── Ledger Entry Operations ────────────────────────────────────────────────

// SpendableBalance sums the entries of identity that are still valid at now.
// Unknown identities and empty ledgers both yield zero.
func (db *DB) SpendableBalance(ctx context.Context, identity string, now time.Time) (int64, error) {
	return spendableBalance(ctx, db.db, identity, now)
}

func spendableBalance(ctx context.Context, q querier, identity string, now time.Time) (int64, error) {
	var total int64
	err := q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM ledger_entries
		WHERE identity = ? AND expires_at > ?
	`, identity, toMillis(now)).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("spendable balance: %w", err)
	}
	return total, nil
}

// InsertEntry appends a point batch for a registered account.
func (db *DB) InsertEntry(ctx context.Context, identity string, amount int64, earnedAt, expiresAt time.Time) (domain.LedgerEntry, error) {
	if !domain.ValidPointsAmount(amount) {
		return domain.LedgerEntry{}, domain.ErrInvalidAmount
	}
	unlock := db.locks.lock(identity)
	defer unlock()

	var entry domain.LedgerEntry
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getAccount(ctx, tx, identity); err != nil {
			return err
		}
		var err error
		entry, err = insertEntry(ctx, tx, identity, amount, earnedAt, expiresAt)
		return err
	})
	return entry, err
}

// insertEntry refuses a batch that would push the stored total of identity,
// expired entries included, past the int64 limit of SUM.
func insertEntry(ctx context.Context, tx *sql.Tx, identity string, amount int64, earnedAt, expiresAt time.Time) (domain.LedgerEntry, error) {
	var stored int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE identity = ?`, identity,
	).Scan(&stored); err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("stored total: %w", err)
	}
	if stored > math.MaxInt64-amount {
		return domain.LedgerEntry{}, domain.ErrInvalidAmount
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (identity, amount, earned_at, expires_at)
		VALUES (?, ?, ?, ?)
	`, identity, amount, toMillis(earnedAt), toMillis(expiresAt))
	if err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("insert ledger entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("insert ledger entry: %w", err)
	}
	return domain.LedgerEntry{
		ID:        id,
		Identity:  identity,
		Amount:    amount,
		EarnedAt:  fromMillis(toMillis(earnedAt)),
		ExpiresAt: fromMillis(toMillis(expiresAt)),
	}, nil
}

// ListEntries returns every stored entry of identity, expired ones included,
// in consumption order.
func (db *DB) ListEntries(ctx context.Context, identity string) ([]domain.LedgerEntry, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT id, identity, amount, earned_at, expires_at
		FROM ledger_entries WHERE identity = ?
		ORDER BY earned_at ASC, id ASC
	`, identity)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var earnedAt, expiresAt int64
		if err := rows.Scan(&e.ID, &e.Identity, &e.Amount, &earnedAt, &expiresAt); err != nil {
			return nil, fmt.Errorf("list ledger entries: %w", err)
		}
		e.EarnedAt = fromMillis(earnedAt)
		e.ExpiresAt = fromMillis(expiresAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SpendFIFO consumes amount points from identity, oldest batch first.
// Nothing is touched unless the full amount is available.
func (db *DB) SpendFIFO(ctx context.Context, identity string, amount int64, now time.Time) error {
	if !domain.ValidPointsAmount(amount) {
		return domain.ErrInvalidAmount
	}
	unlock := db.locks.lock(identity)
	defer unlock()

	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getAccount(ctx, tx, identity); err != nil {
			return err
		}
		return consumeFIFO(ctx, tx, identity, amount, now)
	})
}

type batch struct {
	id     int64
	amount int64
}

// consumeFIFO walks unexpired batches by (earned_at, id). The first batch
// larger than the remainder is decremented; smaller ones are deleted.
// Scanning stops as soon as the batches read cover amount.
func consumeFIFO(ctx context.Context, tx *sql.Tx, identity string, amount int64, now time.Time) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, amount FROM ledger_entries
		WHERE identity = ? AND expires_at > ?
		ORDER BY earned_at ASC, id ASC
	`, identity, toMillis(now))
	if err != nil {
		return fmt.Errorf("select batches: %w", err)
	}
	var batches []batch
	var total int64
	for rows.Next() {
		var b batch
		if err := rows.Scan(&b.id, &b.amount); err != nil {
			rows.Close()
			return fmt.Errorf("select batches: %w", err)
		}
		total += b.amount
		batches = append(batches, b)
		if total >= amount {
			break
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("select batches: %w", err)
	}

	if total < amount {
		return domain.ErrInsufficientFunds
	}

	remaining := amount
	for _, b := range batches {
		if remaining == 0 {
			break
		}
		if b.amount > remaining {
			if _, err := tx.ExecContext(ctx,
				`UPDATE ledger_entries SET amount = amount - ? WHERE id = ?`, remaining, b.id); err != nil {
				return fmt.Errorf("reduce batch %d: %w", b.id, err)
			}
			remaining = 0
			break
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM ledger_entries WHERE id = ?`, b.id); err != nil {
			return fmt.Errorf("delete batch %d: %w", b.id, err)
		}
		remaining -= b.amount
	}
	return nil
}

// DeleteExpiredEntries removes every entry with expires_at <= now and
// reports how many rows went away.
func (db *DB) DeleteExpiredEntries(ctx context.Context, now time.Time) (int64, error) {
	var deleted int64
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM ledger_entries WHERE expires_at <= ?`, toMillis(now))
		if err != nil {
			return fmt.Errorf("delete expired entries: %w", err)
		}
		deleted, err = res.RowsAffected()
		return err
	})
	return deleted, err
}

// ─── Referral Operations ────────────────────────────────────────────────────

// RegisterReferral creates the new account, grants the bonus to the referrer
// and spends one of its referral credits, all in one transaction.
func (db *DB) RegisterReferral(ctx context.Context, req domain.ReferralRequest) (domain.Account, error) {
	if err := domain.CheckReferral(req.Identity, req.Referrer); err != nil {
		return domain.Account{}, err
	}
	if !domain.ValidPointsAmount(req.Bonus) {
		return domain.Account{}, domain.ErrInvalidAmount
	}
	unlock := db.locks.lock(req.Identity, req.Referrer)
	defer unlock()

	acct := domain.Account{
		Identity:        req.Identity,
		DisplayName:     req.DisplayName,
		ReferralCredits: max(req.Quota, 0),
		CreatedAt:       fromMillis(toMillis(req.EarnedAt)),
	}
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getAccount(ctx, tx, req.Identity); err == nil {
			return domain.ErrAlreadyRegistered
		} else if !errors.Is(err, domain.ErrNotRegistered) {
			return err
		}

		referrer, err := getAccount(ctx, tx, req.Referrer)
		if errors.Is(err, domain.ErrNotRegistered) {
			return domain.ErrReferrerNotRegistered
		}
		if err != nil {
			return err
		}
		if !referrer.CanRefer() {
			return domain.ErrReferralQuotaExhausted
		}

		if err := insertAccount(ctx, tx, acct); err != nil {
			return err
		}
		if _, err := insertEntry(ctx, tx, req.Referrer, req.Bonus, req.EarnedAt, req.ExpiresAt); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE accounts SET referral_credits = referral_credits - 1
			WHERE identity = ? AND referral_credits > 0
		`, req.Referrer)
		if err != nil {
			return fmt.Errorf("decrement referral credits: %w", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return domain.ErrReferralQuotaExhausted
		}
		return nil
	})
	if err != nil {
		return domain.Account{}, err
	}
	return acct, nil
}

var _ domain.PointsStore = (*DB)(nil)
