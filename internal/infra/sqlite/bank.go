package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3" // dialect registration
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/moose-rewards/moose/internal/domain"
)

// ─── Bank Schema ────────────────────────────────────────────────────────────

const (
	dialectSQLite = "sqlite3"

	tableTransactions = "transactions"
	colID             = "id"
	colSender         = "sender"
	colRecipient      = "recipient"
	colAmount         = "amount"
	colCreatedAt      = "created_at"
)

// BankMigrations returns the currency account and transaction tables.
// Amounts and balances are decimal strings.
func BankMigrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS bank_accounts (
			identity     TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			balance      TEXT NOT NULL DEFAULT '0',
			created_at   INTEGER NOT NULL
		)`,

		// Append-only. The system identity stands in for the outside world.
		`CREATE TABLE IF NOT EXISTS transactions (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			sender     TEXT NOT NULL,
			recipient  TEXT NOT NULL,
			amount     TEXT NOT NULL CHECK (CAST(amount AS REAL) > 0),
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_sender ON transactions(sender, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_recipient ON transactions(recipient, created_at)`,
	}
}

type bankAccountRow struct {
	Identity    string          `db:"identity"`
	DisplayName string          `db:"display_name"`
	Balance     decimal.Decimal `db:"balance"`
	CreatedAt   int64           `db:"created_at"`
}

func (r bankAccountRow) toDomain() domain.BankAccount {
	return domain.BankAccount{
		Identity:    r.Identity,
		DisplayName: r.DisplayName,
		Balance:     r.Balance,
		CreatedAt:   fromMillis(r.CreatedAt),
	}
}

type transactionRow struct {
	ID        int64           `db:"id"`
	Sender    string          `db:"sender"`
	Recipient string          `db:"recipient"`
	Amount    decimal.Decimal `db:"amount"`
	CreatedAt int64           `db:"created_at"`
}

func (r transactionRow) toDomain() domain.Transaction {
	return domain.Transaction{
		ID:        r.ID,
		Sender:    r.Sender,
		Recipient: r.Recipient,
		Amount:    r.Amount,
		CreatedAt: fromMillis(r.CreatedAt),
	}
}

// withTxx is withTx for sqlx callers.
func (db *DB) withTxx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.x.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ─── Bank Accounts ──────────────────────────────────────────────────────────

// CreateBankAccount opens a zero balance account.
func (db *DB) CreateBankAccount(ctx context.Context, identity, displayName string, now time.Time) (domain.BankAccount, error) {
	if identity == domain.SystemIdentity {
		return domain.BankAccount{}, domain.ErrInvalidArgument
	}
	unlock := db.locks.lock(identity)
	defer unlock()

	acct := domain.BankAccount{
		Identity:    identity,
		DisplayName: displayName,
		Balance:     decimal.Zero,
		CreatedAt:   fromMillis(toMillis(now)),
	}
	_, err := db.x.ExecContext(ctx, `
		INSERT INTO bank_accounts (identity, display_name, balance, created_at)
		VALUES (?, ?, ?, ?)
	`, acct.Identity, acct.DisplayName, acct.Balance.String(), toMillis(now))
	if isUniqueViolation(err) {
		return domain.BankAccount{}, domain.ErrAlreadyRegistered
	}
	if err != nil {
		return domain.BankAccount{}, fmt.Errorf("insert bank account: %w", err)
	}
	return acct, nil
}

// GetBankAccount returns the account for identity.
func (db *DB) GetBankAccount(ctx context.Context, identity string) (domain.BankAccount, error) {
	return getBankAccount(ctx, db.x, identity)
}

func getBankAccount(ctx context.Context, q sqlx.QueryerContext, identity string) (domain.BankAccount, error) {
	var row bankAccountRow
	err := sqlx.GetContext(ctx, q, &row, `
		SELECT identity, display_name, balance, created_at
		FROM bank_accounts WHERE identity = ?
	`, identity)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.BankAccount{}, domain.ErrNotRegistered
	}
	if err != nil {
		return domain.BankAccount{}, fmt.Errorf("get bank account: %w", err)
	}
	return row.toDomain(), nil
}

func setBalance(ctx context.Context, tx *sqlx.Tx, identity string, balance decimal.Decimal) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE bank_accounts SET balance = ? WHERE identity = ?`, balance.String(), identity); err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	return nil
}

func appendTransaction(ctx context.Context, tx *sqlx.Tx, sender, recipient string, amount decimal.Decimal, now time.Time) (domain.Transaction, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (sender, recipient, amount, created_at)
		VALUES (?, ?, ?, ?)
	`, sender, recipient, amount.String(), toMillis(now))
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("append transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("append transaction: %w", err)
	}
	return domain.Transaction{
		ID:        id,
		Sender:    sender,
		Recipient: recipient,
		Amount:    amount,
		CreatedAt: fromMillis(toMillis(now)),
	}, nil
}

// ─── Balance Mutations ──────────────────────────────────────────────────────

// Transfer moves amount from sender to recipient. Both balances and the new
// transaction row commit together or not at all.
func (db *DB) Transfer(ctx context.Context, sender, recipient string, amount decimal.Decimal, now time.Time) (domain.Transaction, error) {
	if !domain.ValidCurrencyAmount(amount) {
		return domain.Transaction{}, domain.ErrInvalidAmount
	}
	if sender == recipient {
		return domain.Transaction{}, domain.ErrSelfTransfer
	}
	unlock := db.locks.lock(sender, recipient)
	defer unlock()

	var txn domain.Transaction
	err := db.withTxx(ctx, func(tx *sqlx.Tx) error {
		from, err := getBankAccount(ctx, tx, sender)
		if err != nil {
			return err
		}
		to, err := getBankAccount(ctx, tx, recipient)
		if err != nil {
			return err
		}
		if from.Balance.LessThan(amount) {
			return domain.ErrInsufficientFunds
		}
		if err := setBalance(ctx, tx, sender, from.Balance.Sub(amount)); err != nil {
			return err
		}
		if err := setBalance(ctx, tx, recipient, to.Balance.Add(amount)); err != nil {
			return err
		}
		txn, err = appendTransaction(ctx, tx, sender, recipient, amount, now)
		return err
	})
	return txn, err
}

// Adjust deposits (delta > 0) or withdraws (delta < 0) against the system
// identity. A withdrawal larger than the balance is refused.
func (db *DB) Adjust(ctx context.Context, identity string, delta decimal.Decimal, now time.Time) (domain.Transaction, error) {
	if !domain.ValidCurrencyAmount(delta.Abs()) {
		return domain.Transaction{}, domain.ErrInvalidAmount
	}
	if identity == domain.SystemIdentity {
		return domain.Transaction{}, domain.ErrInvalidArgument
	}
	unlock := db.locks.lock(identity)
	defer unlock()

	var txn domain.Transaction
	err := db.withTxx(ctx, func(tx *sqlx.Tx) error {
		acct, err := getBankAccount(ctx, tx, identity)
		if err != nil {
			return err
		}
		balance := acct.Balance.Add(delta)
		if balance.IsNegative() {
			return domain.ErrInsufficientFunds
		}
		if err := setBalance(ctx, tx, identity, balance); err != nil {
			return err
		}
		sender, recipient := domain.SystemIdentity, identity
		if delta.IsNegative() {
			sender, recipient = identity, domain.SystemIdentity
		}
		txn, err = appendTransaction(ctx, tx, sender, recipient, delta.Abs(), now)
		return err
	})
	return txn, err
}

// ─── Queries ────────────────────────────────────────────────────────────────

// TransactionsSince returns the transactions identity took part in with
// created_at >= since, newest first with ties broken by id.
func (db *DB) TransactionsSince(ctx context.Context, identity string, since time.Time) ([]domain.Transaction, error) {
	query, args, err := buildTransactionsQuery(identity, since)
	if err != nil {
		return nil, err
	}

	var rows []transactionRow
	if err := db.x.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}
	txs := make([]domain.Transaction, 0, len(rows))
	for _, r := range rows {
		txs = append(txs, r.toDomain())
	}
	return txs, nil
}

func buildTransactionsQuery(identity string, since time.Time) (string, []any, error) {
	selectStmt := goqu.Dialect(dialectSQLite).
		From(tableTransactions).
		Prepared(true).
		Select(colID, colSender, colRecipient, colAmount, colCreatedAt).
		Where(
			goqu.Or(
				goqu.C(colSender).Eq(identity),
				goqu.C(colRecipient).Eq(identity),
			),
			goqu.C(colCreatedAt).Gte(toMillis(since)),
		).
		Order(goqu.C(colCreatedAt).Desc(), goqu.C(colID).Desc())

	query, args, err := selectStmt.ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("build transactions query: %w", err)
	}
	return query, args, nil
}

// BankDisplayNames maps each known identity to its display name. Unknown
// identities are left out.
func (db *DB) BankDisplayNames(ctx context.Context, identities []string) (map[string]string, error) {
	names := make(map[string]string, len(identities))
	if len(identities) == 0 {
		return names, nil
	}
	query, args, err := sqlx.In(
		`SELECT identity, display_name FROM bank_accounts WHERE identity IN (?)`, identities)
	if err != nil {
		return nil, fmt.Errorf("build display name query: %w", err)
	}

	var rows []struct {
		Identity    string `db:"identity"`
		DisplayName string `db:"display_name"`
	}
	if err := db.x.SelectContext(ctx, &rows, db.x.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("select display names: %w", err)
	}
	for _, r := range rows {
		names[r.Identity] = r.DisplayName
	}
	return names, nil
}

var _ domain.BankStore = (*DB)(nil)
