package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/moose-rewards/moose/internal/domain"
)

// ─── Store Items ────────────────────────────────────────────────────────────

func TestUpsertItem_InsertThenUpdate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	created, err := db.UpsertItem(ctx, domain.StoreItem{Name: "Diamond Sword", Cost: 100, Description: "sharp"})
	if err != nil {
		t.Fatalf("UpsertItem() error: %v", err)
	}
	if !created {
		t.Error("first UpsertItem() created = false, want true")
	}

	created, err = db.UpsertItem(ctx, domain.StoreItem{Name: "Diamond Sword", Cost: 80, Description: "on sale"})
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Error("second UpsertItem() created = true, want false")
	}

	items, err := db.ListItems(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("len(items) = %d, want 1", len(items))
	}
	if items[0].Cost != 80 || items[0].Description != "on sale" {
		t.Errorf("item = %+v, want cost 80 / on sale", items[0])
	}
}

func TestUpsertItem_Validation(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	if _, err := db.UpsertItem(ctx, domain.StoreItem{Name: "  ", Cost: 5}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("blank name = %v, want ErrInvalidArgument", err)
	}
	if _, err := db.UpsertItem(ctx, domain.StoreItem{Name: "x", Cost: 0}); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("zero cost = %v, want ErrInvalidAmount", err)
	}
	if _, err := db.UpsertItem(ctx, domain.StoreItem{Name: "x", Cost: domain.MaxPointsAmount + 1}); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("huge cost = %v, want ErrInvalidAmount", err)
	}
}

func TestDeleteItem(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	db.UpsertItem(ctx, domain.StoreItem{Name: "Cape", Cost: 10})

	if err := db.DeleteItem(ctx, "Cape"); err != nil {
		t.Fatalf("DeleteItem() error: %v", err)
	}
	if _, err := db.GetItem(ctx, "Cape"); !errors.Is(err, domain.ErrItemNotFound) {
		t.Errorf("GetItem() after delete = %v, want ErrItemNotFound", err)
	}
	if err := db.DeleteItem(ctx, "Cape"); !errors.Is(err, domain.ErrItemNotFound) {
		t.Errorf("second DeleteItem() = %v, want ErrItemNotFound", err)
	}
}

// ─── Purchases & Inventory ──────────────────────────────────────────────────

func TestPurchase_SpendsAndRecords(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	mustAccount(t, db, "a", 8)
	mustGrant(t, db, "a", 30, testNow.Add(-2*time.Hour))
	mustGrant(t, db, "a", 20, testNow.Add(-time.Hour))
	db.UpsertItem(ctx, domain.StoreItem{Name: "Cape", Cost: 40, Description: "red"})

	entry, err := db.Purchase(ctx, "a", "Cape", testNow)
	if err != nil {
		t.Fatalf("Purchase() error: %v", err)
	}
	if entry.ItemName != "Cape" || entry.Description != "red" {
		t.Errorf("entry = %+v", entry)
	}
	if bal, _ := db.SpendableBalance(ctx, "a", testNow); bal != 10 {
		t.Errorf("balance = %d, want 10", bal)
	}

	inv, err := db.ListInventory(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if len(inv) != 1 || inv[0].ID != entry.ID {
		t.Errorf("inventory = %+v", inv)
	}
}

func TestPurchase_RecordsCostPaid(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	mustAccount(t, db, "a", 8)
	mustGrant(t, db, "a", 100, testNow.Add(-time.Hour))
	db.UpsertItem(ctx, domain.StoreItem{Name: "Cape", Cost: 40})

	entry, err := db.Purchase(ctx, "a", "Cape", testNow)
	if err != nil {
		t.Fatalf("Purchase() error: %v", err)
	}
	if entry.Cost != 40 {
		t.Errorf("entry.Cost = %d, want 40", entry.Cost)
	}

	db.UpsertItem(ctx, domain.StoreItem{Name: "Cape", Cost: 5})
	inv, _ := db.ListInventory(ctx, "a")
	if len(inv) != 1 || inv[0].Cost != 40 {
		t.Errorf("inventory = %+v, want cost 40 after repricing", inv)
	}
	removed, err := db.RemoveOldestInventoryItem(ctx, "a", "Cape")
	if err != nil {
		t.Fatal(err)
	}
	if removed.Cost != 40 {
		t.Errorf("removed.Cost = %d, want 40", removed.Cost)
	}
}

func TestPurchase_InsufficientRecordsNothing(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	mustAccount(t, db, "a", 8)
	mustGrant(t, db, "a", 5, testNow)
	db.UpsertItem(ctx, domain.StoreItem{Name: "Cape", Cost: 40})

	if _, err := db.Purchase(ctx, "a", "Cape", testNow); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("Purchase() = %v, want ErrInsufficientFunds", err)
	}
	if inv, _ := db.ListInventory(ctx, "a"); len(inv) != 0 {
		t.Errorf("inventory has %d rows, want 0", len(inv))
	}
	if bal, _ := db.SpendableBalance(ctx, "a", testNow); bal != 5 {
		t.Errorf("balance = %d, want 5", bal)
	}
}

func TestPurchase_UnknownItem(t *testing.T) {
	db := newTestDB(t)
	mustAccount(t, db, "a", 8)
	if _, err := db.Purchase(context.Background(), "a", "nope", testNow); !errors.Is(err, domain.ErrItemNotFound) {
		t.Errorf("Purchase() = %v, want ErrItemNotFound", err)
	}
}

func TestListInventory_NewestFirst(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	mustAccount(t, db, "a", 8)
	mustGrant(t, db, "a", 100, testNow.Add(-time.Hour))
	db.UpsertItem(ctx, domain.StoreItem{Name: "Cape", Cost: 1})
	db.UpsertItem(ctx, domain.StoreItem{Name: "Hat", Cost: 1})

	db.Purchase(ctx, "a", "Cape", testNow)
	db.Purchase(ctx, "a", "Hat", testNow.Add(time.Minute))

	inv, _ := db.ListInventory(ctx, "a")
	if len(inv) != 2 {
		t.Fatalf("len(inventory) = %d, want 2", len(inv))
	}
	if inv[0].ItemName != "Hat" || inv[1].ItemName != "Cape" {
		t.Errorf("order = [%s %s], want [Hat Cape]", inv[0].ItemName, inv[1].ItemName)
	}
}

func TestRemoveOldestInventoryItem(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	mustAccount(t, db, "a", 8)
	mustGrant(t, db, "a", 100, testNow.Add(-time.Hour))
	db.UpsertItem(ctx, domain.StoreItem{Name: "Cape", Cost: 1})

	older, _ := db.Purchase(ctx, "a", "Cape", testNow)
	newer, _ := db.Purchase(ctx, "a", "Cape", testNow.Add(time.Minute))

	removed, err := db.RemoveOldestInventoryItem(ctx, "a", "Cape")
	if err != nil {
		t.Fatalf("RemoveOldestInventoryItem() error: %v", err)
	}
	if removed.ID != older.ID {
		t.Errorf("removed %d, want oldest %d", removed.ID, older.ID)
	}
	inv, _ := db.ListInventory(ctx, "a")
	if len(inv) != 1 || inv[0].ID != newer.ID {
		t.Errorf("inventory = %+v, want only %d", inv, newer.ID)
	}

	db.RemoveOldestInventoryItem(ctx, "a", "Cape")
	if _, err := db.RemoveOldestInventoryItem(ctx, "a", "Cape"); !errors.Is(err, domain.ErrItemNotOwned) {
		t.Errorf("remove from empty = %v, want ErrItemNotOwned", err)
	}
	if _, err := db.RemoveOldestInventoryItem(ctx, "a", "nope"); !errors.Is(err, domain.ErrItemNotFound) {
		t.Errorf("remove unknown item = %v, want ErrItemNotFound", err)
	}
}

func TestDeleteItem_CascadesToInventory(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	mustAccount(t, db, "a", 8)
	mustGrant(t, db, "a", 10, testNow.Add(-time.Hour))
	db.UpsertItem(ctx, domain.StoreItem{Name: "Cape", Cost: 1})
	db.Purchase(ctx, "a", "Cape", testNow)

	if err := db.DeleteItem(ctx, "Cape"); err != nil {
		t.Fatal(err)
	}
	if inv, _ := db.ListInventory(ctx, "a"); len(inv) != 0 {
		t.Errorf("inventory has %d rows after item delete, want 0", len(inv))
	}
}

// ─── Settings ───────────────────────────────────────────────────────────────

func TestSettings(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, ok, err := db.Setting(ctx, domain.SettingTicketPromptMessage); err != nil || ok {
		t.Fatalf("Setting(unset) = ok %v, err %v", ok, err)
	}
	if err := db.SetSetting(ctx, domain.SettingTicketPromptMessage, "111"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetSetting(ctx, domain.SettingTicketPromptMessage, "222"); err != nil {
		t.Fatal(err)
	}
	v, ok, err := db.Setting(ctx, domain.SettingTicketPromptMessage)
	if err != nil || !ok || v != "222" {
		t.Errorf("Setting() = %q, %v, %v; want 222, true, nil", v, ok, err)
	}
}
