package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"github.com/cardwise/commerce_layer/internal/app/domain/card"
	domaincart "github.com/cardwise/commerce_layer/internal/app/domain/cart"
	"github.com/cardwise/commerce_layer/internal/app/domain/checkout"
	cardsvc "github.com/cardwise/commerce_layer/internal/app/services/cards"
	cartsvc "github.com/cardwise/commerce_layer/internal/app/services/cart"
	checkoutsvc "github.com/cardwise/commerce_layer/internal/app/services/checkout"
	"github.com/cardwise/commerce_layer/internal/app/services/recommend"
	"github.com/cardwise/commerce_layer/internal/app/storage/memory"
)

type apiFixture struct {
	router *mux.Router
	store  *memory.Store
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	store := memory.New()
	carts := cartsvc.New(store, 0, nil)
	cards := cardsvc.New(store, nil, nil)
	rec := recommend.RecommenderFunc(func(ctx context.Context, cc []card.StoredCard, snap domaincart.Snapshot) (checkout.Recommendation, error) {
		return checkout.Recommendation{CardName: "Sapphire", Reason: "best rewards"}, nil
	})
	seq := checkoutsvc.New(carts, store, store, store, rec, checkoutsvc.Handoff{
		ClientID:    "client-1",
		MerchantIDs: []string{"44"},
		EntryPoint:  "checkout",
	}, nil, nil)

	h := NewHandler(carts, cards, nil, seq, nil, store, nil, nil)
	router := mux.NewRouter()
	h.RegisterRoutes(router)
	return &apiFixture{router: router, store: store}
}

func (f *apiFixture) do(t *testing.T, method, path, userID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), target); err != nil {
		t.Fatalf("decode response: %v (body %s)", err, w.Body.String())
	}
}

func (f *apiFixture) seedCard(t *testing.T, userID string) card.StoredCard {
	t.Helper()
	created, err := f.store.CreateCard(context.Background(), card.StoredCard{
		UserID:      userID,
		DisplayName: "Sapphire",
		Number:      "4111 1111 1111 1111",
		Network:     card.NetworkVisa,
	})
	if err != nil {
		t.Fatalf("seed card: %v", err)
	}
	return created
}

func TestHealthz(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, "GET", "/healthz", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestCartEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, "POST", "/api/v1/cart/s1/items", "", domaincart.LineItem{
		ProductKey:   "Headphones",
		ProductPrice: "$10.00",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("add status = %d: %s", w.Code, w.Body.String())
	}

	var view cartsvc.View
	decodeBody(t, w, &view)
	if view.ItemCount != 1 {
		t.Fatalf("item count = %d", view.ItemCount)
	}

	w = f.do(t, "PUT", "/api/v1/cart/s1/items/Headphones", "", map[string]interface{}{
		"quantity": 3,
		"item":     domaincart.LineItem{ProductKey: "Headphones", ProductPrice: "$10.00"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("set quantity status = %d: %s", w.Code, w.Body.String())
	}
	decodeBody(t, w, &view)
	if view.ItemCount != 3 {
		t.Fatalf("item count = %d after set quantity", view.ItemCount)
	}
	if view.Display.Subtotal != "$30.00" {
		t.Fatalf("subtotal = %q", view.Display.Subtotal)
	}

	w = f.do(t, "DELETE", "/api/v1/cart/s1/items/Headphones", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("remove status = %d", w.Code)
	}

	w = f.do(t, "GET", "/api/v1/cart/s1", "", nil)
	decodeBody(t, w, &view)
	if view.ItemCount != 0 {
		t.Fatalf("item count = %d after remove", view.ItemCount)
	}
}

func TestAddItemMissingProductKey(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, "POST", "/api/v1/cart/s1/items", "", domaincart.LineItem{ProductPrice: "$1.00"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestCardsRequireUserHeader(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, "GET", "/api/v1/cards", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestAddAndListCards(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, "POST", "/api/v1/cards", "u1", card.StoredCard{
		DisplayName: "Gold",
		Number:      "371449635398431",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("add status = %d: %s", w.Code, w.Body.String())
	}
	var created card.StoredCard
	decodeBody(t, w, &created)
	if created.Network != card.NetworkAmex {
		t.Fatalf("network = %v", created.Network)
	}

	w = f.do(t, "GET", "/api/v1/cards", "u1", nil)
	var cards []card.StoredCard
	decodeBody(t, w, &cards)
	if len(cards) != 1 {
		t.Fatalf("cards = %d", len(cards))
	}

	// Other users never see the card.
	w = f.do(t, "GET", "/api/v1/cards", "u2", nil)
	decodeBody(t, w, &cards)
	if len(cards) != 0 {
		t.Fatalf("u2 cards = %d", len(cards))
	}
}

func TestGetCardOwnership(t *testing.T) {
	f := newAPIFixture(t)
	created := f.seedCard(t, "u1")

	w := f.do(t, "GET", "/api/v1/cards/"+created.ID, "u2", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("cross-user status = %d", w.Code)
	}

	w = f.do(t, "GET", "/api/v1/cards/"+created.ID, "u1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("owner status = %d", w.Code)
	}
}

func TestDeleteCard(t *testing.T) {
	f := newAPIFixture(t)
	created := f.seedCard(t, "u1")

	w := f.do(t, "DELETE", "/api/v1/cards/"+created.ID, "u1", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}

	w = f.do(t, "GET", "/api/v1/cards/"+created.ID, "u1", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status after delete = %d", w.Code)
	}
}

func TestLookupBINUnconfigured(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, "GET", "/api/v1/cards/bin/411111", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var info cardsvc.BinInfo
	decodeBody(t, w, &info)
	if info != (cardsvc.BinInfo{}) {
		t.Fatalf("info = %+v, want empty", info)
	}
}

func TestScanUnconfigured(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, "POST", "/api/v1/cards/scan", "u1", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestAdvisorUnconfigured(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, "POST", "/api/v1/advisor/chat", "u1", map[string]string{"message": "which card?"})
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestGetCheckoutUnknownSessionIsIdle(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, "GET", "/api/v1/checkout/s1", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]string
	decodeBody(t, w, &body)
	if body["phase"] != "idle" {
		t.Fatalf("phase = %q", body["phase"])
	}
}

func TestBeginCheckoutNoCards(t *testing.T) {
	f := newAPIFixture(t)
	f.do(t, "POST", "/api/v1/cart/s1/items", "", domaincart.LineItem{ProductKey: "a", ProductPrice: "$5.00"})

	w := f.do(t, "POST", "/api/v1/checkout/s1", "u1", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Error  string `json:"error"`
		Action string `json:"action"`
	}
	decodeBody(t, w, &body)
	if body.Action != "add_card" {
		t.Fatalf("action = %q", body.Action)
	}
}

func TestCheckoutFlow(t *testing.T) {
	f := newAPIFixture(t)
	f.seedCard(t, "u1")
	f.do(t, "POST", "/api/v1/cart/s1/items", "", domaincart.LineItem{ProductKey: "Headphones", ProductPrice: "$10.00"})

	w := f.do(t, "POST", "/api/v1/checkout/s1", "u1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("begin status = %d: %s", w.Code, w.Body.String())
	}
	var sess checkout.Session
	decodeBody(t, w, &sess)
	if sess.Phase != checkout.PhaseRecommendationReady {
		t.Fatalf("phase = %v", sess.Phase)
	}
	if sess.Recommendation == nil || sess.Recommendation.CardName != "Sapphire" {
		t.Fatalf("recommendation = %+v", sess.Recommendation)
	}

	w = f.do(t, "POST", "/api/v1/checkout/s1/confirm", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("confirm status = %d: %s", w.Code, w.Body.String())
	}
	var confirm struct {
		Session checkout.Session        `json:"session"`
		Handoff checkout.HandoffPayload `json:"handoff"`
	}
	decodeBody(t, w, &confirm)
	if confirm.Session.Phase != checkout.PhasePaymentInProgress {
		t.Fatalf("phase = %v", confirm.Session.Phase)
	}
	if confirm.Handoff.ClientID != "client-1" || confirm.Handoff.CardName != "Sapphire" {
		t.Fatalf("handoff = %+v", confirm.Handoff)
	}

	w = f.do(t, "POST", "/api/v1/checkout/s1/sdk/callback", "", checkout.SDKMessage{
		Type:      checkout.SDKMessageSuccess,
		SessionID: confirm.Handoff.SessionID,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("callback status = %d: %s", w.Code, w.Body.String())
	}
	decodeBody(t, w, &sess)
	if sess.Phase != checkout.PhaseConfirmed || sess.OrderID == "" {
		t.Fatalf("session = %+v", sess)
	}

	// Cart was archived and cleared.
	w = f.do(t, "GET", "/api/v1/cart/s1", "", nil)
	var view cartsvc.View
	decodeBody(t, w, &view)
	if view.ItemCount != 0 {
		t.Fatalf("cart count = %d after payment", view.ItemCount)
	}

	w = f.do(t, "GET", "/api/v1/orders", "u1", nil)
	var orders []checkout.Order
	decodeBody(t, w, &orders)
	if len(orders) != 1 || orders[0].ID != sess.OrderID {
		t.Fatalf("orders = %+v", orders)
	}

	w = f.do(t, "POST", "/api/v1/checkout/s1/ack", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("ack status = %d", w.Code)
	}
	w = f.do(t, "GET", "/api/v1/checkout/s1", "", nil)
	var body map[string]interface{}
	decodeBody(t, w, &body)
	if body["phase"] != "idle" {
		t.Fatalf("phase after ack = %v", body["phase"])
	}
}

func TestSDKCallbackExit(t *testing.T) {
	f := newAPIFixture(t)
	f.seedCard(t, "u1")
	f.do(t, "POST", "/api/v1/cart/s1/items", "", domaincart.LineItem{ProductKey: "a", ProductPrice: "$5.00"})
	f.do(t, "POST", "/api/v1/checkout/s1", "u1", nil)
	var confirm struct {
		Handoff checkout.HandoffPayload `json:"handoff"`
	}
	decodeBody(t, f.do(t, "POST", "/api/v1/checkout/s1/confirm", "", nil), &confirm)

	w := f.do(t, "POST", "/api/v1/checkout/s1/sdk/callback", "", checkout.SDKMessage{
		Type:      checkout.SDKMessageExit,
		SessionID: confirm.Handoff.SessionID,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var body map[string]string
	decodeBody(t, w, &body)
	if body["status"] != "terminated" {
		t.Fatalf("body = %v", body)
	}

	// Cart survives an abandoned payment.
	var view cartsvc.View
	w = f.do(t, "GET", "/api/v1/cart/s1", "", nil)
	decodeBody(t, w, &view)
	if view.ItemCount != 1 {
		t.Fatalf("cart count = %d", view.ItemCount)
	}
}

func TestSDKCallbackForgedSessionRef(t *testing.T) {
	f := newAPIFixture(t)
	f.seedCard(t, "u1")
	f.do(t, "POST", "/api/v1/cart/s1/items", "", domaincart.LineItem{ProductKey: "a", ProductPrice: "$5.00"})
	f.do(t, "POST", "/api/v1/checkout/s1", "u1", nil)
	f.do(t, "POST", "/api/v1/checkout/s1/confirm", "", nil)

	w := f.do(t, "POST", "/api/v1/checkout/s1/sdk/callback", "", checkout.SDKMessage{
		Type:      checkout.SDKMessageSuccess,
		SessionID: "forged-ref",
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	// The payment stays in flight and the cart is untouched.
	var sess checkout.Session
	decodeBody(t, f.do(t, "GET", "/api/v1/checkout/s1", "", nil), &sess)
	if sess.Phase != checkout.PhasePaymentInProgress {
		t.Fatalf("phase = %v", sess.Phase)
	}
}

func TestSDKCallbackRejectsUnknownType(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, "POST", "/api/v1/checkout/s1/sdk/callback", "", map[string]string{"type": "bogus"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestCancelCheckout(t *testing.T) {
	f := newAPIFixture(t)
	f.seedCard(t, "u1")
	f.do(t, "POST", "/api/v1/cart/s1/items", "", domaincart.LineItem{ProductKey: "a", ProductPrice: "$5.00"})
	f.do(t, "POST", "/api/v1/checkout/s1", "u1", nil)

	w := f.do(t, "POST", "/api/v1/checkout/s1/cancel", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("cancel status = %d", w.Code)
	}

	// A fresh checkout can start again.
	w = f.do(t, "POST", "/api/v1/checkout/s1", "u1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("re-begin status = %d: %s", w.Code, w.Body.String())
	}
}
