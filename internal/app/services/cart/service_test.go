package cart

import (
	"context"
	"math"
	"testing"

	domaincart "github.com/cardwise/commerce_layer/internal/app/domain/cart"
	"github.com/cardwise/commerce_layer/internal/app/storage/memory"
)

func newService() *Service {
	return New(memory.New(), 0, nil)
}

func TestGetCreatesEmptyCart(t *testing.T) {
	svc := newService()

	view, err := svc.Get(context.Background(), "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !view.Cart.IsEmpty() || view.ItemCount != 0 {
		t.Fatalf("expected empty cart, got %+v", view)
	}
	if view.Display.Total != "$0.00" {
		t.Fatalf("total = %q", view.Display.Total)
	}
}

func TestAddItemComputesBreakdown(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, "s1", domaincart.LineItem{ProductKey: "a", ProductPrice: "$10.00"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	view, err := svc.AddItem(ctx, "s1", domaincart.LineItem{ProductKey: "a", ProductPrice: "$10.00"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	if view.ItemCount != 2 {
		t.Fatalf("item count = %d", view.ItemCount)
	}
	if math.Abs(view.Breakdown.Subtotal-20.00) > 1e-9 {
		t.Fatalf("subtotal = %v", view.Breakdown.Subtotal)
	}
}

func TestAddItemRequiresProductKey(t *testing.T) {
	svc := newService()

	if _, err := svc.AddItem(context.Background(), "s1", domaincart.LineItem{ProductPrice: "$1.00"}); err == nil {
		t.Fatal("expected error for missing product key")
	}
}

func TestSetQuantityReAddsMissingLine(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	item := domaincart.LineItem{ProductKey: "a", ProductPrice: "$3.00"}
	if _, err := svc.AddItem(ctx, "s1", item); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := svc.RemoveItem(ctx, "s1", "a"); err != nil {
		t.Fatalf("remove: %v", err)
	}

	view, err := svc.SetQuantity(ctx, "s1", item, 4)
	if err != nil {
		t.Fatalf("set quantity: %v", err)
	}
	if view.ItemCount != 4 {
		t.Fatalf("item count = %d, want 4", view.ItemCount)
	}
}

func TestMalformedPriceDoesNotFailView(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, "s1", domaincart.LineItem{ProductKey: "good", ProductPrice: "$5.00"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	view, err := svc.AddItem(ctx, "s1", domaincart.LineItem{ProductKey: "bad", ProductPrice: "see below"})
	if err != nil {
		t.Fatalf("add malformed: %v", err)
	}
	if math.Abs(view.Breakdown.Subtotal-5.00) > 1e-9 {
		t.Fatalf("subtotal = %v, want 5.00", view.Breakdown.Subtotal)
	}
}

func TestClearCart(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, "s1", domaincart.LineItem{ProductKey: "a", ProductPrice: "$1.00"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := svc.ClearCart(ctx, "s1"); err != nil {
		t.Fatalf("clear: %v", err)
	}

	view, err := svc.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if view.ItemCount != 0 {
		t.Fatalf("item count = %d after clear", view.ItemCount)
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, "s1", domaincart.LineItem{ProductKey: "a", ProductPrice: "$1.00"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	view, err := svc.Get(ctx, "s2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if view.ItemCount != 0 {
		t.Fatalf("session s2 sees s1 items")
	}
}
