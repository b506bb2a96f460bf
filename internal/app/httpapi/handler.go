// Package httpapi exposes the commerce layer REST API.
package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/cardwise/commerce_layer/internal/app/domain/card"
	domaincart "github.com/cardwise/commerce_layer/internal/app/domain/cart"
	"github.com/cardwise/commerce_layer/internal/app/services/advisor"
	cardsvc "github.com/cardwise/commerce_layer/internal/app/services/cards"
	cartsvc "github.com/cardwise/commerce_layer/internal/app/services/cart"
	checkoutsvc "github.com/cardwise/commerce_layer/internal/app/services/checkout"
	"github.com/cardwise/commerce_layer/internal/app/storage"
	"github.com/cardwise/commerce_layer/internal/httputil"
	"github.com/cardwise/commerce_layer/pkg/logger"
)

// maxUploadBytes caps card photo uploads.
const maxUploadBytes = 10 << 20

// Handler bundles the HTTP endpoints for the commerce services.
type Handler struct {
	carts    *cartsvc.Service
	cards    *cardsvc.Service
	scanner  *cardsvc.ScanClient
	checkout *checkoutsvc.Service
	advisor  *advisor.Client
	orders   storage.OrderStore
	hub      *Hub
	log      *logger.Logger
}

// NewHandler constructs the API handler. scanner and advisor may be nil when
// the corresponding backends are not configured; their routes then return 503.
func NewHandler(carts *cartsvc.Service, cards *cardsvc.Service, scanner *cardsvc.ScanClient,
	checkout *checkoutsvc.Service, adv *advisor.Client, orders storage.OrderStore,
	hub *Hub, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	return &Handler{
		carts:    carts,
		cards:    cards,
		scanner:  scanner,
		checkout: checkout,
		advisor:  adv,
		orders:   orders,
		hub:      hub,
		log:      log,
	}
}

// RegisterRoutes registers the REST API on the router.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/cart/{sessionID}", h.handleGetCart).Methods("GET")
	api.HandleFunc("/cart/{sessionID}", h.handleClearCart).Methods("DELETE")
	api.HandleFunc("/cart/{sessionID}/items", h.handleAddItem).Methods("POST")
	api.HandleFunc("/cart/{sessionID}/items/{productKey}", h.handleSetQuantity).Methods("PUT")
	api.HandleFunc("/cart/{sessionID}/items/{productKey}", h.handleRemoveItem).Methods("DELETE")

	api.HandleFunc("/cards", h.handleListCards).Methods("GET")
	api.HandleFunc("/cards", h.handleAddCard).Methods("POST")
	api.HandleFunc("/cards/bin/{bin}", h.handleLookupBIN).Methods("GET")
	api.HandleFunc("/cards/identify", h.handleIdentifyCard).Methods("POST")
	api.HandleFunc("/cards/scan", h.handleScanCard).Methods("POST")
	api.HandleFunc("/cards/{id}", h.handleGetCard).Methods("GET")
	api.HandleFunc("/cards/{id}", h.handleUpdateCard).Methods("PUT")
	api.HandleFunc("/cards/{id}", h.handleDeleteCard).Methods("DELETE")

	api.HandleFunc("/checkout/{sessionID}", h.handleGetCheckout).Methods("GET")
	api.HandleFunc("/checkout/{sessionID}", h.handleBeginCheckout).Methods("POST")
	api.HandleFunc("/checkout/{sessionID}/confirm", h.handleConfirmCheckout).Methods("POST")
	api.HandleFunc("/checkout/{sessionID}/cancel", h.handleCancelCheckout).Methods("POST")
	api.HandleFunc("/checkout/{sessionID}/ack", h.handleAckCheckout).Methods("POST")
	api.HandleFunc("/checkout/{sessionID}/sdk/callback", h.handleSDKCallback).Methods("POST")
	api.HandleFunc("/checkout/{sessionID}/sdk/ws", h.handleSDKSocket).Methods("GET")

	api.HandleFunc("/orders", h.handleListOrders).Methods("GET")
	api.HandleFunc("/advisor/chat", h.handleAdvisorChat).Methods("POST")

	r.HandleFunc("/healthz", h.handleHealth).Methods("GET")
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Cart ------------------------------------------------------------------------

func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.carts.Get(r.Context(), mux.Vars(r)["sessionID"])
	if err != nil {
		h.writeCartError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var item domaincart.LineItem
	if !httputil.DecodeJSON(w, r, &item) {
		return
	}

	view, err := h.carts.AddItem(r.Context(), mux.Vars(r)["sessionID"], item)
	if err != nil {
		h.writeCartError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) handleSetQuantity(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var payload struct {
		Quantity int                 `json:"quantity"`
		Item     *domaincart.LineItem `json:"item,omitempty"`
	}
	if !httputil.DecodeJSON(w, r, &payload) {
		return
	}

	item := domaincart.LineItem{ProductKey: vars["productKey"]}
	if payload.Item != nil {
		item = *payload.Item
		item.ProductKey = vars["productKey"]
	}

	view, err := h.carts.SetQuantity(r.Context(), vars["sessionID"], item, payload.Quantity)
	if err != nil {
		h.writeCartError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	view, err := h.carts.RemoveItem(r.Context(), vars["sessionID"], vars["productKey"])
	if err != nil {
		h.writeCartError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.carts.Clear(r.Context(), mux.Vars(r)["sessionID"])
	if err != nil {
		h.writeCartError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) writeCartError(w http.ResponseWriter, err error) {
	if strings.Contains(err.Error(), "required") {
		httputil.BadRequest(w, err.Error())
		return
	}
	h.log.WithError(err).Error("cart operation failed")
	httputil.InternalError(w, "cart operation failed")
}

// Cards -----------------------------------------------------------------------

func (h *Handler) handleListCards(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	cards, err := h.cards.ListCards(r.Context(), userID)
	if err != nil {
		h.log.WithError(err).Error("failed to list cards")
		httputil.InternalError(w, "failed to list cards")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cards)
}

func (h *Handler) handleAddCard(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	var c card.StoredCard
	if !httputil.DecodeJSON(w, r, &c) {
		return
	}
	c.UserID = userID

	created, err := h.cards.AddCard(r.Context(), c)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleGetCard(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	c, err := h.cards.GetCard(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httputil.NotFound(w, "card not found")
			return
		}
		httputil.InternalError(w, "failed to load card")
		return
	}
	if c.UserID != userID {
		httputil.NotFound(w, "card not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) handleUpdateCard(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	existing, err := h.cards.GetCard(r.Context(), mux.Vars(r)["id"])
	if err != nil || existing.UserID != userID {
		httputil.NotFound(w, "card not found")
		return
	}

	var c card.StoredCard
	if !httputil.DecodeJSON(w, r, &c) {
		return
	}
	c.ID = existing.ID
	c.UserID = userID

	updated, err := h.cards.UpdateCard(r.Context(), c)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	existing, err := h.cards.GetCard(r.Context(), mux.Vars(r)["id"])
	if err != nil || existing.UserID != userID {
		httputil.NotFound(w, "card not found")
		return
	}

	if err := h.cards.DeleteCard(r.Context(), existing.ID); err != nil {
		httputil.InternalError(w, "failed to delete card")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleLookupBIN returns issuer details for a BIN. Lookup failures are
// reported as an empty object; the client treats enrichment as optional.
func (h *Handler) handleLookupBIN(w http.ResponseWriter, r *http.Request) {
	info := h.cards.LookupBIN(r.Context(), mux.Vars(r)["bin"])
	httputil.WriteJSON(w, http.StatusOK, info)
}

func (h *Handler) handleIdentifyCard(w http.ResponseWriter, r *http.Request) {
	h.relayScan(w, r, true)
}

func (h *Handler) handleScanCard(w http.ResponseWriter, r *http.Request) {
	h.relayScan(w, r, false)
}

func (h *Handler) relayScan(w http.ResponseWriter, r *http.Request, identify bool) {
	if h.scanner == nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, "card scanning not configured")
		return
	}
	if _, ok := httputil.RequireUserID(w, r); !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httputil.BadRequest(w, "invalid multipart upload")
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		httputil.BadRequest(w, "image file required")
		return
	}
	defer file.Close()

	var result cardsvc.ScanResult
	if identify {
		result, err = h.scanner.IdentifyCard(r.Context(), header.Filename, file)
	} else {
		result, err = h.scanner.ScanCard(r.Context(), header.Filename, file)
	}
	if err != nil {
		h.log.WithError(err).Warn("card scan relay failed")
		httputil.WriteError(w, http.StatusBadGateway, "card scan failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// Orders ----------------------------------------------------------------------

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	orders, err := h.orders.ListOrders(r.Context(), userID)
	if err != nil {
		h.log.WithError(err).Error("failed to list orders")
		httputil.InternalError(w, "failed to list orders")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, orders)
}

// Advisor ---------------------------------------------------------------------

func (h *Handler) handleAdvisorChat(w http.ResponseWriter, r *http.Request) {
	if h.advisor == nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, "advisor not configured")
		return
	}

	var payload struct {
		Message string         `json:"message"`
		History []advisor.Turn `json:"history"`
	}
	if !httputil.DecodeJSON(w, r, &payload) {
		return
	}
	if strings.TrimSpace(payload.Message) == "" {
		httputil.BadRequest(w, "message required")
		return
	}

	text, err := h.advisor.Chat(r.Context(), payload.Message, payload.History)
	if err != nil {
		httputil.WriteError(w, http.StatusBadGateway, "advisor unavailable")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"text": text})
}
