package checkout

import (
	"time"

	"github.com/cardwise/commerce_layer/internal/app/domain/cart"
	"github.com/cardwise/commerce_layer/internal/app/domain/pricing"
)

// Recommendation is the selector's answer: which stored card to pay with and
// why.
type Recommendation struct {
	CardName string `json:"card_name"`
	Reason   string `json:"reason"`
}

// Session is the per-cart checkout state. The cart snapshot and its
// fingerprint are pinned at begin; the fingerprint is re-validated before the
// SDK handoff so a cart edited mid-checkout aborts rather than charges the
// wrong amount.
type Session struct {
	SessionID      string            `json:"session_id"`
	UserID         string            `json:"user_id"`
	Phase          Phase             `json:"phase"`
	CartSnapshot   cart.Snapshot     `json:"cart_snapshot"`
	Fingerprint    string            `json:"fingerprint"`
	Breakdown      pricing.Breakdown `json:"breakdown"`
	Recommendation *Recommendation   `json:"recommendation,omitempty"`
	SDKSessionRef  string            `json:"sdk_session_ref,omitempty"`
	OrderID        string            `json:"order_id,omitempty"`
	LastError      string            `json:"last_error,omitempty"`
	StartedAt      time.Time         `json:"started_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// NewSession pins a snapshot and its fingerprint for a fresh checkout attempt.
func NewSession(sessionID, userID string, snap cart.Snapshot, breakdown pricing.Breakdown) *Session {
	now := time.Now().UTC()
	return &Session{
		SessionID:    sessionID,
		UserID:       userID,
		Phase:        PhaseIdle,
		CartSnapshot: snap,
		Fingerprint:  snap.Fingerprint(),
		Breakdown:    breakdown,
		StartedAt:    now,
		UpdatedAt:    now,
	}
}

// Transition moves the session to the target phase, failing with a
// TransitionError when the move is not allowed.
func (s *Session) Transition(to Phase) error {
	if !CanTransition(s.Phase, to) {
		return NewTransitionError(s.Phase, to)
	}
	s.Phase = to
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// HandoffPayload is the parameter block passed to the payment SDK webview
// when the session enters payment_in_progress.
type HandoffPayload struct {
	SessionID   string   `json:"session_id"`
	ClientID    string   `json:"client_id"`
	MerchantIDs []string `json:"merchant_ids"`
	EntryPoint  string   `json:"entry_point"`
	CardName    string   `json:"card_name"`
	Total       string   `json:"total"`
}

// Order is the archived record of a completed checkout.
type Order struct {
	ID          string          `json:"id"`
	SessionID   string          `json:"session_id"`
	UserID      string          `json:"user_id"`
	Lines       []cart.LineItem `json:"lines"`
	Subtotal    float64         `json:"subtotal"`
	TaxAmount   float64         `json:"tax_amount"`
	Total       float64         `json:"total"`
	CardName    string          `json:"card_name"`
	ConfirmedAt time.Time       `json:"confirmed_at"`
}
