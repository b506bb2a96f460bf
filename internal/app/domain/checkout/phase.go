// Package checkout provides the checkout session model and phase machine.
package checkout

import (
	"encoding/json"
	"fmt"
)

// Phase represents the lifecycle phase of a checkout session.
type Phase int32

const (
	// PhaseIdle indicates no checkout is in flight for the session.
	PhaseIdle Phase = iota

	// PhaseAwaitingRecommendation indicates a best-card request is pending.
	PhaseAwaitingRecommendation

	// PhaseRecommendationReady indicates a recommendation arrived and is
	// waiting for user confirmation.
	PhaseRecommendationReady

	// PhasePaymentInProgress indicates the payment SDK session is active.
	PhasePaymentInProgress

	// PhaseConfirmed indicates the SDK reported success and the order is
	// recorded; the session returns to idle once acknowledged.
	PhaseConfirmed
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingRecommendation:
		return "awaiting_recommendation"
	case PhaseRecommendationReady:
		return "recommendation_ready"
	case PhasePaymentInProgress:
		return "payment_in_progress"
	case PhaseConfirmed:
		return "confirmed"
	default:
		return fmt.Sprintf("phase(%d)", p)
	}
}

// MarshalJSON implements json.Marshaler.
func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Phase) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*p = ParsePhase(str)
	return nil
}

// ParsePhase converts a string to Phase.
func ParsePhase(s string) Phase {
	switch s {
	case "idle":
		return PhaseIdle
	case "awaiting_recommendation":
		return PhaseAwaitingRecommendation
	case "recommendation_ready":
		return PhaseRecommendationReady
	case "payment_in_progress":
		return PhasePaymentInProgress
	case "confirmed":
		return PhaseConfirmed
	default:
		return PhaseIdle
	}
}

// IsActive returns true if a checkout is in flight in this phase.
func (p Phase) IsActive() bool {
	return p != PhaseIdle
}

// ValidTransitions defines allowed phase transitions. Every active phase may
// return to idle: errors and cancellation abandon the attempt without
// mutating the cart.
var ValidTransitions = map[Phase][]Phase{
	PhaseIdle:                   {PhaseAwaitingRecommendation},
	PhaseAwaitingRecommendation: {PhaseRecommendationReady, PhaseIdle},
	PhaseRecommendationReady:    {PhasePaymentInProgress, PhaseIdle},
	PhasePaymentInProgress:      {PhaseConfirmed, PhaseIdle},
	PhaseConfirmed:              {PhaseIdle},
}

// CanTransition returns true if the transition from -> to is valid.
func CanTransition(from, to Phase) bool {
	allowed, ok := ValidTransitions[from]
	if !ok {
		return false
	}
	for _, p := range allowed {
		if p == to {
			return true
		}
	}
	return false
}

// TransitionError represents an invalid phase transition.
type TransitionError struct {
	From Phase
	To   Phase
}

// Error implements error.
func (e TransitionError) Error() string {
	return fmt.Sprintf("invalid checkout transition: %s -> %s", e.From, e.To)
}

// NewTransitionError creates a new TransitionError.
func NewTransitionError(from, to Phase) TransitionError {
	return TransitionError{From: from, To: to}
}
