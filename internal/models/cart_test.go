package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func newTestItem(ref string, qty int, price string) CartItem {
	return CartItem{
		ProductRef: ref,
		Quantity:   qty,
		UnitPrice:  NewMoneyFromDecimal(decimal.RequireFromString(price)),
		Snapshot:   ProductSnapshot{Name: ref, Status: "active"},
	}
}

func TestCartRecomputeTotals(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	cart := &Cart{Owner: "u1", Items: CartItems{
		newTestItem("P1", 2, "10.00"),
		newTestItem("P2", 3, "1.35"),
	}}
	cart.Recompute(now, 30*24*time.Hour)

	if cart.TotalItems != 5 {
		t.Fatalf("unexpected total items: %d", cart.TotalItems)
	}
	if cart.TotalAmount.String() != "24.05" {
		t.Fatalf("unexpected total amount: %s", cart.TotalAmount.String())
	}
	if !cart.LastModified.Equal(now) {
		t.Fatalf("last modified not refreshed: %s", cart.LastModified)
	}
	if !cart.ExpiresAt.Equal(now.Add(30 * 24 * time.Hour)) {
		t.Fatalf("unexpected expires at: %s", cart.ExpiresAt)
	}
}

func TestCartRecomputeEmpty(t *testing.T) {
	cart := &Cart{Owner: "u1"}
	cart.Recompute(time.Now(), time.Hour)
	if cart.Items == nil {
		t.Fatalf("items should be normalized to empty slice")
	}
	if cart.TotalItems != 0 || !cart.TotalAmount.IsZero() {
		t.Fatalf("empty cart totals should be zero: %d %s", cart.TotalItems, cart.TotalAmount.String())
	}
}

func TestCartRemoveItemKeepsOrder(t *testing.T) {
	cart := &Cart{Items: CartItems{
		newTestItem("P1", 1, "1"),
		newTestItem("P2", 1, "1"),
		newTestItem("P3", 1, "1"),
	}}
	if !cart.RemoveItem("P2") {
		t.Fatalf("expected P2 to be removed")
	}
	if cart.RemoveItem("P9") {
		t.Fatalf("removing missing item should report false")
	}
	if len(cart.Items) != 2 || cart.Items[0].ProductRef != "P1" || cart.Items[1].ProductRef != "P3" {
		t.Fatalf("unexpected items after remove: %+v", cart.Items)
	}
}

func TestCartCloneIsIndependent(t *testing.T) {
	cart := &Cart{Owner: "u1", Items: CartItems{newTestItem("P1", 1, "5")}}
	cloned := cart.Clone()
	cloned.Items[0].Quantity = 7
	cloned.RemoveItem("P1")
	if cart.Items[0].Quantity != 1 || len(cart.Items) != 1 {
		t.Fatalf("original cart mutated through clone: %+v", cart.Items)
	}
}

func TestCartItemsScan(t *testing.T) {
	original := CartItems{newTestItem("P1", 2, "10.5")}
	value, err := original.Value()
	if err != nil {
		t.Fatalf("value failed: %v", err)
	}

	for _, input := range []interface{}{value, []byte(value.(string))} {
		var decoded CartItems
		if err := decoded.Scan(input); err != nil {
			t.Fatalf("scan %T failed: %v", input, err)
		}
		if len(decoded) != 1 || decoded[0].UnitPrice.String() != "10.50" || decoded[0].Quantity != 2 {
			t.Fatalf("unexpected decoded items: %+v", decoded)
		}
	}

	var empty CartItems
	if err := empty.Scan(nil); err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("nil scan should produce empty items: %v %+v", err, empty)
	}
	if err := empty.Scan(42); err == nil {
		t.Fatalf("expected error for unsupported column type")
	}
}

func TestCartIsExpired(t *testing.T) {
	now := time.Now()
	cart := &Cart{ExpiresAt: now.Add(-time.Second)}
	if !cart.IsExpired(now) {
		t.Fatalf("expected cart to be expired")
	}
	if (&Cart{}).IsExpired(now) {
		t.Fatalf("zero expires at should never expire")
	}
}
