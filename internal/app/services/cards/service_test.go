package cards

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cardwise/commerce_layer/internal/app/domain/card"
	"github.com/cardwise/commerce_layer/internal/app/storage/memory"
)

func TestAddCardClassifiesAndFormats(t *testing.T) {
	svc := New(memory.New(), nil, nil)

	created, err := svc.AddCard(context.Background(), card.StoredCard{
		UserID:      "u1",
		DisplayName: "My Visa",
		Number:      "4111111111111111",
		Expiry:      "1230",
	})
	if err != nil {
		t.Fatalf("add card: %v", err)
	}
	if created.Number != "4111 1111 1111 1111" {
		t.Fatalf("number = %q", created.Number)
	}
	if created.Expiry != "12/30" {
		t.Fatalf("expiry = %q", created.Expiry)
	}
	if created.Network != card.NetworkVisa || created.ColorHint != card.ColorVisa {
		t.Fatalf("classification = %v %v", created.Network, created.ColorHint)
	}
	if created.ID == "" {
		t.Fatal("missing id")
	}
}

func TestAddCardRejectsExpired(t *testing.T) {
	svc := New(memory.New(), nil, nil)

	_, err := svc.AddCard(context.Background(), card.StoredCard{
		UserID: "u1",
		Number: "4111111111111111",
		Expiry: "01/20",
	})
	if err == nil {
		t.Fatal("expected error for expired card")
	}
}

func TestAddCardRequiresUserAndNumber(t *testing.T) {
	svc := New(memory.New(), nil, nil)
	ctx := context.Background()

	if _, err := svc.AddCard(ctx, card.StoredCard{Number: "4111111111111111"}); err == nil {
		t.Fatal("expected error for missing user")
	}
	if _, err := svc.AddCard(ctx, card.StoredCard{UserID: "u1"}); err == nil {
		t.Fatal("expected error for missing number")
	}
}

func TestAddCardDisplayNameFromBinLookup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/41111111" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"scheme": "visa",
			"bank":   map[string]string{"name": "Chase"},
		})
	}))
	defer server.Close()

	lookup := NewBinLookupClient(server.URL, nil)
	svc := New(memory.New(), lookup, nil)

	created, err := svc.AddCard(context.Background(), card.StoredCard{
		UserID: "u1",
		Number: "4111111111111111",
	})
	if err != nil {
		t.Fatalf("add card: %v", err)
	}
	if created.DisplayName != "Chase Visa" {
		t.Fatalf("display name = %q", created.DisplayName)
	}
}

func TestAddCardLookupFailureFallsBackToNetwork(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	lookup := NewBinLookupClient(server.URL, nil)
	svc := New(memory.New(), lookup, nil)

	created, err := svc.AddCard(context.Background(), card.StoredCard{
		UserID: "u1",
		Number: "5500000000000004",
	})
	if err != nil {
		t.Fatalf("add card: %v", err)
	}
	if created.DisplayName != string(card.NetworkMastercard) {
		t.Fatalf("display name = %q", created.DisplayName)
	}
}

func TestListCardsScopedToUser(t *testing.T) {
	svc := New(memory.New(), nil, nil)
	ctx := context.Background()

	if _, err := svc.AddCard(ctx, card.StoredCard{UserID: "u1", Number: "4111111111111111"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := svc.AddCard(ctx, card.StoredCard{UserID: "u2", Number: "5500000000000004"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	cards, err := svc.ListCards(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(cards) != 1 || cards[0].UserID != "u1" {
		t.Fatalf("cards = %+v", cards)
	}
}

func TestDeleteCard(t *testing.T) {
	svc := New(memory.New(), nil, nil)
	ctx := context.Background()

	created, err := svc.AddCard(ctx, card.StoredCard{UserID: "u1", Number: "4111111111111111"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := svc.DeleteCard(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.GetCard(ctx, created.ID); err == nil {
		t.Fatal("expected card gone")
	}
}

func TestLookupBINSwallowsFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	svc := New(memory.New(), NewBinLookupClient(server.URL, nil), nil)
	if info := svc.LookupBIN(context.Background(), "411111"); info != (BinInfo{}) {
		t.Fatalf("info = %+v, want empty", info)
	}

	// No lookup client configured behaves the same way.
	svc = New(memory.New(), nil, nil)
	if info := svc.LookupBIN(context.Background(), "411111"); info != (BinInfo{}) {
		t.Fatalf("info = %+v, want empty", info)
	}
}

func TestBinLookupParsesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept-Version"); got != "3" {
			t.Fatalf("Accept-Version = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"scheme": "mastercard",
			"brand":  "World Elite",
			"type":   "credit",
			"bank":   map[string]string{"name": "Citi"},
		})
	}))
	defer server.Close()

	client := NewBinLookupClient(server.URL, nil)
	info, err := client.Lookup(context.Background(), "550000")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if info.Scheme != "mastercard" || info.Bank != "Citi" || info.Type != "credit" {
		t.Fatalf("info = %+v", info)
	}
}
