package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/moose-rewards/moose/internal/domain"
)

// ─── Catalog Schema ─────────────────────────────────────────────────────────

// CatalogMigrations returns the store catalog and inventory tables.
// Removing a store item removes every inventory row that references it.
func CatalogMigrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS store_items (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			name        TEXT NOT NULL UNIQUE,
			cost        INTEGER NOT NULL CHECK (cost > 0),
			description TEXT NOT NULL DEFAULT ''
		)`,

		`CREATE TABLE IF NOT EXISTS inventory (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			identity     TEXT NOT NULL,
			item_id      INTEGER NOT NULL REFERENCES store_items(id) ON DELETE CASCADE,
			cost         INTEGER NOT NULL DEFAULT 0, -- points paid
			purchased_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_inventory_identity ON inventory(identity, purchased_at, id)`,
	}
}

type itemRow struct {
	ID          int64  `db:"id"`
	Name        string `db:"name"`
	Cost        int64  `db:"cost"`
	Description string `db:"description"`
}

func (r itemRow) toDomain() domain.StoreItem {
	return domain.StoreItem{ID: r.ID, Name: r.Name, Cost: r.Cost, Description: r.Description}
}

type inventoryRow struct {
	ID          int64  `db:"id"`
	Identity    string `db:"identity"`
	ItemID      int64  `db:"item_id"`
	ItemName    string `db:"name"`
	Description string `db:"description"`
	Cost        int64  `db:"cost"`
	PurchasedAt int64  `db:"purchased_at"`
}

func (r inventoryRow) toDomain() domain.InventoryEntry {
	return domain.InventoryEntry{
		ID:          r.ID,
		Identity:    r.Identity,
		ItemID:      r.ItemID,
		ItemName:    r.ItemName,
		Description: r.Description,
		Cost:        r.Cost,
		PurchasedAt: fromMillis(r.PurchasedAt),
	}
}

// ─── Store Items ────────────────────────────────────────────────────────────

// UpsertItem inserts the item or updates cost and description of the item
// with the same name. created reports which of the two happened.
func (db *DB) UpsertItem(ctx context.Context, item domain.StoreItem) (bool, error) {
	item.Name = domain.NormalizeName(item.Name)
	if item.Name == "" {
		return false, domain.ErrInvalidArgument
	}
	if !domain.ValidPointsAmount(item.Cost) {
		return false, domain.ErrInvalidAmount
	}

	var created bool
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := getItem(ctx, tx, item.Name)
		switch {
		case errors.Is(err, domain.ErrItemNotFound):
			created = true
		case err != nil:
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO store_items (name, cost, description) VALUES (?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET cost = excluded.cost, description = excluded.description
		`, item.Name, item.Cost, item.Description)
		if err != nil {
			return fmt.Errorf("upsert store item: %w", err)
		}
		return nil
	})
	return created, err
}

// GetItem looks an item up by its exact name.
func (db *DB) GetItem(ctx context.Context, name string) (domain.StoreItem, error) {
	return getItem(ctx, db.db, domain.NormalizeName(name))
}

func getItem(ctx context.Context, q querier, name string) (domain.StoreItem, error) {
	var it domain.StoreItem
	err := q.QueryRowContext(ctx,
		`SELECT id, name, cost, description FROM store_items WHERE name = ?`, name,
	).Scan(&it.ID, &it.Name, &it.Cost, &it.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.StoreItem{}, domain.ErrItemNotFound
	}
	if err != nil {
		return domain.StoreItem{}, fmt.Errorf("get store item: %w", err)
	}
	return it, nil
}

// ListItems returns the catalog in insertion order.
func (db *DB) ListItems(ctx context.Context) ([]domain.StoreItem, error) {
	var rows []itemRow
	if err := db.x.SelectContext(ctx, &rows,
		`SELECT id, name, cost, description FROM store_items ORDER BY id ASC`); err != nil {
		return nil, fmt.Errorf("list store items: %w", err)
	}
	items := make([]domain.StoreItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, r.toDomain())
	}
	return items, nil
}

// DeleteItem removes the named item and, by cascade, every inventory row
// holding it.
func (db *DB) DeleteItem(ctx context.Context, name string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM store_items WHERE name = ?`, domain.NormalizeName(name))
		if err != nil {
			return fmt.Errorf("delete store item: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrItemNotFound
		}
		return nil
	})
}

// ─── Inventory ──────────────────────────────────────────────────────────────

// Purchase spends the item cost FIFO and records the inventory row in the
// same transaction.
func (db *DB) Purchase(ctx context.Context, identity, itemName string, now time.Time) (domain.InventoryEntry, error) {
	unlock := db.locks.lock(identity)
	defer unlock()

	var entry domain.InventoryEntry
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getAccount(ctx, tx, identity); err != nil {
			return err
		}
		item, err := getItem(ctx, tx, domain.NormalizeName(itemName))
		if err != nil {
			return err
		}
		if err := consumeFIFO(ctx, tx, identity, item.Cost, now); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO inventory (identity, item_id, cost, purchased_at) VALUES (?, ?, ?, ?)`,
			identity, item.ID, item.Cost, toMillis(now))
		if err != nil {
			return fmt.Errorf("insert inventory: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("insert inventory: %w", err)
		}
		entry = domain.InventoryEntry{
			ID:          id,
			Identity:    identity,
			ItemID:      item.ID,
			ItemName:    item.Name,
			Description: item.Description,
			Cost:        item.Cost,
			PurchasedAt: fromMillis(toMillis(now)),
		}
		return nil
	})
	return entry, err
}

// ListInventory returns identity's purchases, newest first.
func (db *DB) ListInventory(ctx context.Context, identity string) ([]domain.InventoryEntry, error) {
	var rows []inventoryRow
	err := db.x.SelectContext(ctx, &rows, `
		SELECT i.id, i.identity, i.item_id, s.name, s.description, i.cost, i.purchased_at
		FROM inventory i
		JOIN store_items s ON s.id = i.item_id
		WHERE i.identity = ?
		ORDER BY i.purchased_at DESC, i.id DESC
	`, identity)
	if err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	entries := make([]domain.InventoryEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, r.toDomain())
	}
	return entries, nil
}

// RemoveOldestInventoryItem deletes the oldest inventory row of identity
// holding the named item.
func (db *DB) RemoveOldestInventoryItem(ctx context.Context, identity, itemName string) (domain.InventoryEntry, error) {
	unlock := db.locks.lock(identity)
	defer unlock()

	var removed domain.InventoryEntry
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		item, err := getItem(ctx, tx, domain.NormalizeName(itemName))
		if err != nil {
			return err
		}
		var id, cost, purchasedAt int64
		err = tx.QueryRowContext(ctx, `
			SELECT id, cost, purchased_at FROM inventory
			WHERE identity = ? AND item_id = ?
			ORDER BY purchased_at ASC, id ASC
			LIMIT 1
		`, identity, item.ID).Scan(&id, &cost, &purchasedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrItemNotOwned
		}
		if err != nil {
			return fmt.Errorf("select inventory row: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM inventory WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete inventory row: %w", err)
		}
		removed = domain.InventoryEntry{
			ID:          id,
			Identity:    identity,
			ItemID:      item.ID,
			ItemName:    item.Name,
			Description: item.Description,
			Cost:        cost,
			PurchasedAt: fromMillis(purchasedAt),
		}
		return nil
	})
	return removed, err
}

var _ domain.CatalogStore = (*DB)(nil)
