package httpapi

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/cardwise/commerce_layer/internal/app/domain/checkout"
	checkoutsvc "github.com/cardwise/commerce_layer/internal/app/services/checkout"
	"github.com/cardwise/commerce_layer/internal/app/services/recommend"
	"github.com/cardwise/commerce_layer/internal/app/storage"
	"github.com/cardwise/commerce_layer/internal/httputil"
)

func (h *Handler) handleGetCheckout(w http.ResponseWriter, r *http.Request) {
	sess, err := h.checkout.Get(r.Context(), mux.Vars(r)["sessionID"])
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httputil.WriteJSON(w, http.StatusOK, map[string]string{"phase": checkout.PhaseIdle.String()})
			return
		}
		httputil.InternalError(w, "failed to load checkout")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sess)
}

func (h *Handler) handleBeginCheckout(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	sess, err := h.checkout.Begin(r.Context(), mux.Vars(r)["sessionID"], userID)
	if err != nil {
		h.writeCheckoutError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sess)
}

func (h *Handler) handleConfirmCheckout(w http.ResponseWriter, r *http.Request) {
	sess, payload, err := h.checkout.Confirm(r.Context(), mux.Vars(r)["sessionID"])
	if err != nil {
		h.writeCheckoutError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"session": sess,
		"handoff": payload,
	})
}

func (h *Handler) handleCancelCheckout(w http.ResponseWriter, r *http.Request) {
	if err := h.checkout.Cancel(r.Context(), mux.Vars(r)["sessionID"]); err != nil {
		h.writeCheckoutError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"phase": checkout.PhaseIdle.String()})
}

func (h *Handler) handleAckCheckout(w http.ResponseWriter, r *http.Request) {
	if err := h.checkout.Acknowledge(r.Context(), mux.Vars(r)["sessionID"]); err != nil {
		h.writeCheckoutError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"phase": checkout.PhaseIdle.String()})
}

// handleSDKCallback receives messages posted by the payment SDK webview
// bridge. Terminal messages that end the session without payment are an
// expected outcome, not a server error: the callback acknowledges them with
// 200 and the terminated status.
func (h *Handler) handleSDKCallback(w http.ResponseWriter, r *http.Request) {
	body, err := httputil.ReadAllStrict(r.Body, 1<<20)
	if err != nil {
		httputil.BadRequest(w, "failed to read message")
		return
	}
	msg, err := checkout.ParseSDKMessage(body)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	sess, err := h.checkout.HandleSDKMessage(r.Context(), mux.Vars(r)["sessionID"], msg)
	if err != nil {
		if errors.Is(err, checkoutsvc.ErrSDKTerminated) {
			httputil.WriteJSON(w, http.StatusOK, map[string]string{
				"status": "terminated",
				"reason": err.Error(),
			})
			return
		}
		h.writeCheckoutError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sess)
}

func (h *Handler) handleSDKSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, "checkout events not configured")
		return
	}
	h.hub.ServeWS(w, r, mux.Vars(r)["sessionID"])
}

// writeCheckoutError maps sequencer errors to HTTP statuses. No stored cards
// is a client-correctable state, so the response carries an action hint that
// the app uses to deep-link into the add-card flow.
func (h *Handler) writeCheckoutError(w http.ResponseWriter, err error) {
	var transition checkout.TransitionError
	switch {
	case errors.Is(err, checkoutsvc.ErrNoCardsAvailable):
		httputil.WriteErrorWithAction(w, http.StatusConflict, err.Error(), "add_card")
	case errors.Is(err, checkoutsvc.ErrEmptyCart),
		errors.Is(err, checkoutsvc.ErrCartChanged):
		httputil.Conflict(w, err.Error())
	case errors.Is(err, checkoutsvc.ErrSDKSessionMismatch):
		httputil.WriteError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &transition):
		httputil.Conflict(w, err.Error())
	case errors.Is(err, recommend.ErrNoRecommendation):
		httputil.WriteError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		httputil.NotFound(w, "checkout not found")
	default:
		h.log.WithError(err).Error("checkout operation failed")
		httputil.InternalError(w, "checkout operation failed")
	}
}
