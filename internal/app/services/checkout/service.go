// Package checkout sequences the checkout flow: recommendation, user
// confirmation, payment SDK handoff and order archival.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/cardwise/commerce_layer/internal/app/domain/cart"
	"github.com/cardwise/commerce_layer/internal/app/domain/checkout"
	"github.com/cardwise/commerce_layer/internal/app/domain/pricing"
	"github.com/cardwise/commerce_layer/internal/app/services/recommend"
	"github.com/cardwise/commerce_layer/internal/app/storage"
	"github.com/cardwise/commerce_layer/internal/metrics"
	"github.com/cardwise/commerce_layer/internal/serviceauth"
	"github.com/cardwise/commerce_layer/pkg/logger"
)

var (
	// ErrEmptyCart rejects a checkout attempt on an empty cart.
	ErrEmptyCart = errors.New("cart is empty")

	// ErrNoCardsAvailable rejects a checkout when the user has no stored
	// cards to recommend from.
	ErrNoCardsAvailable = errors.New("no stored cards available")

	// ErrCartChanged aborts a confirmation when the cart was edited after
	// the checkout began.
	ErrCartChanged = errors.New("cart changed since checkout began")

	// ErrSDKTerminated indicates the payment SDK session ended without a
	// successful payment.
	ErrSDKTerminated = errors.New("payment session terminated")

	// ErrSDKSessionMismatch rejects an SDK message whose session ref does
	// not match the one minted at confirmation.
	ErrSDKSessionMismatch = errors.New("sdk session ref mismatch")
)

// CartService is the slice of the cart service the sequencer needs.
type CartService interface {
	Snapshot(ctx context.Context, sessionID string) (cart.Snapshot, error)
	ClearCart(ctx context.Context, sessionID string) error
	ComputeBreakdown(snap cart.Snapshot) pricing.Breakdown
}

// Handoff holds the payment SDK launch parameters from configuration.
type Handoff struct {
	ClientID    string
	MerchantIDs []string
	EntryPoint  string
}

// Service drives checkout sessions through their phase machine. Operations
// on the same session are serialized by a per-session lock; distinct
// sessions proceed independently.
type Service struct {
	carts       CartService
	cards       storage.CardStore
	checkouts   storage.CheckoutStore
	orders      storage.OrderStore
	recommender recommend.Recommender
	handoff     Handoff
	metrics     *metrics.Metrics
	log         *logger.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	// events receives phase changes for the websocket bridge. Nil disables
	// notifications.
	events EventSink
}

// EventSink receives checkout phase changes. Implementations must not block.
type EventSink interface {
	PhaseChanged(sessionID string, phase checkout.Phase, sess *checkout.Session)
}

// New constructs a checkout sequencer.
func New(carts CartService, cards storage.CardStore, checkouts storage.CheckoutStore,
	orders storage.OrderStore, recommender recommend.Recommender, handoff Handoff,
	m *metrics.Metrics, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("checkout")
	}
	return &Service{
		carts:       carts,
		cards:       cards,
		checkouts:   checkouts,
		orders:      orders,
		recommender: recommender,
		handoff:     handoff,
		metrics:     m,
		log:         log,
		locks:       make(map[string]*sync.Mutex),
	}
}

// SetEventSink registers the phase-change sink. Call before serving traffic.
func (s *Service) SetEventSink(sink EventSink) {
	s.events = sink
}

// sessionLock returns the mutex serializing operations for one session.
func (s *Service) sessionLock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[sessionID] = lock
	}
	return lock
}

// Get returns the current checkout session state.
func (s *Service) Get(ctx context.Context, sessionID string) (*checkout.Session, error) {
	return s.checkouts.GetCheckout(ctx, sessionID)
}

// Begin starts a checkout: it pins a snapshot of the cart, requests a card
// recommendation and leaves the session in recommendation_ready. Exactly one
// recommendation attempt is made; any selector failure abandons the attempt
// and returns the session to idle.
func (s *Service) Begin(ctx context.Context, sessionID, userID string) (*checkout.Session, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	if existing, err := s.checkouts.GetCheckout(ctx, sessionID); err == nil && existing.Phase.IsActive() {
		return nil, checkout.NewTransitionError(existing.Phase, checkout.PhaseAwaitingRecommendation)
	}

	snap, err := s.carts.Snapshot(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if snap.IsEmpty() {
		return nil, ErrEmptyCart
	}

	cards, err := s.cards.ListCards(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cards) == 0 {
		return nil, ErrNoCardsAvailable
	}

	sess := checkout.NewSession(sessionID, userID, snap, s.carts.ComputeBreakdown(snap))
	if err := sess.Transition(checkout.PhaseAwaitingRecommendation); err != nil {
		return nil, err
	}
	if err := s.checkouts.SaveCheckout(ctx, sess); err != nil {
		return nil, err
	}
	s.recordStarted()
	s.notify(sess)

	rec, err := s.recommender.Recommend(serviceauth.WithUserID(ctx, userID), cards, snap)
	if err != nil {
		s.abandon(ctx, sess, err)
		return nil, err
	}

	sess.Recommendation = &rec
	if err := sess.Transition(checkout.PhaseRecommendationReady); err != nil {
		return nil, err
	}
	if err := s.checkouts.SaveCheckout(ctx, sess); err != nil {
		return nil, err
	}
	s.notify(sess)

	s.log.WithField("session_id", sessionID).
		WithField("card", rec.CardName).
		Info("card recommendation ready")
	return sess, nil
}

// Confirm accepts the recommendation and hands off to the payment SDK. The
// pinned cart fingerprint is re-validated first: a cart edited since begin
// aborts with ErrCartChanged and the session returns to idle.
func (s *Service) Confirm(ctx context.Context, sessionID string) (*checkout.Session, *checkout.HandoffPayload, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.checkouts.GetCheckout(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if sess.Phase != checkout.PhaseRecommendationReady {
		return nil, nil, checkout.NewTransitionError(sess.Phase, checkout.PhasePaymentInProgress)
	}

	current, err := s.carts.Snapshot(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if current.Fingerprint() != sess.Fingerprint {
		s.abandon(ctx, sess, ErrCartChanged)
		return nil, nil, ErrCartChanged
	}

	sess.SDKSessionRef = uuid.NewString()
	if err := sess.Transition(checkout.PhasePaymentInProgress); err != nil {
		return nil, nil, err
	}
	if err := s.checkouts.SaveCheckout(ctx, sess); err != nil {
		return nil, nil, err
	}
	s.notify(sess)

	payload := &checkout.HandoffPayload{
		SessionID:   sess.SDKSessionRef,
		ClientID:    s.handoff.ClientID,
		MerchantIDs: s.handoff.MerchantIDs,
		EntryPoint:  s.handoff.EntryPoint,
		CardName:    sess.Recommendation.CardName,
		Total:       fmt.Sprintf("%.2f", sess.Breakdown.Total),
	}
	s.log.WithField("session_id", sessionID).
		WithField("sdk_ref", sess.SDKSessionRef).
		Info("payment sdk handoff")
	return sess, payload, nil
}

// Cancel abandons an active checkout and returns the session to idle. The
// cart is untouched. Cancelling an idle session is a no-op.
func (s *Service) Cancel(ctx context.Context, sessionID string) error {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.checkouts.GetCheckout(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
	if !sess.Phase.IsActive() {
		return nil
	}

	s.abandon(ctx, sess, errors.New("cancelled by user"))
	s.log.WithField("session_id", sessionID).Info("checkout cancelled")
	return nil
}

// HandleSDKMessage processes one message from the payment SDK bridge. A
// success message confirms the checkout, archives the order and clears the
// cart; error and exit messages abandon the attempt with ErrSDKTerminated.
// Event messages are informational only.
func (s *Service) HandleSDKMessage(ctx context.Context, sessionID string, msg checkout.SDKMessage) (*checkout.Session, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.checkouts.GetCheckout(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Phase != checkout.PhasePaymentInProgress {
		return nil, checkout.NewTransitionError(sess.Phase, checkout.PhaseConfirmed)
	}
	// Only the SDK bridge holding the ref minted at Confirm may settle the
	// session; knowing the cart session id is not enough.
	if msg.SessionID != sess.SDKSessionRef {
		return nil, ErrSDKSessionMismatch
	}

	switch msg.Type {
	case checkout.SDKMessageEvent:
		s.log.WithField("session_id", sessionID).
			WithField("event", msg.Event).
			Debug("payment sdk event")
		return sess, nil

	case checkout.SDKMessageSuccess:
		return s.complete(ctx, sess)

	case checkout.SDKMessageError, checkout.SDKMessageExit:
		reason := msg.Message
		if reason == "" {
			reason = string(msg.Type)
		}
		s.abandon(ctx, sess, fmt.Errorf("%w: %s", ErrSDKTerminated, reason))
		return nil, fmt.Errorf("%w: %s", ErrSDKTerminated, reason)

	default:
		return nil, fmt.Errorf("unknown sdk message type: %q", msg.Type)
	}
}

// Acknowledge returns a confirmed session to idle once the client has shown
// the confirmation screen. Sessions in any other phase are not acked;
// abandoning an in-flight checkout is Cancel's job.
func (s *Service) Acknowledge(ctx context.Context, sessionID string) error {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.checkouts.GetCheckout(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Phase != checkout.PhaseConfirmed {
		return checkout.NewTransitionError(sess.Phase, checkout.PhaseIdle)
	}
	if err := sess.Transition(checkout.PhaseIdle); err != nil {
		return err
	}
	if err := s.checkouts.DeleteCheckout(ctx, sessionID); err != nil {
		return err
	}
	s.notify(sess)
	return nil
}

// complete records the order and clears the cart. The cart is cleared here
// and nowhere else in the flow: only a successful payment empties it.
func (s *Service) complete(ctx context.Context, sess *checkout.Session) (*checkout.Session, error) {
	order := checkout.Order{
		SessionID: sess.SessionID,
		UserID:    sess.UserID,
		Lines:     sess.CartSnapshot.Lines,
		Subtotal:  sess.Breakdown.Subtotal,
		TaxAmount: sess.Breakdown.TaxAmount,
		Total:     sess.Breakdown.Total,
	}
	if sess.Recommendation != nil {
		order.CardName = sess.Recommendation.CardName
	}

	created, err := s.orders.CreateOrder(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("failed to archive order: %w", err)
	}
	sess.OrderID = created.ID

	if err := sess.Transition(checkout.PhaseConfirmed); err != nil {
		return nil, err
	}
	if err := s.checkouts.SaveCheckout(ctx, sess); err != nil {
		return nil, err
	}
	if err := s.carts.ClearCart(ctx, sess.SessionID); err != nil {
		s.log.WithField("session_id", sess.SessionID).WithError(err).Error("failed to clear cart after payment")
	}
	s.recordConfirmed()
	s.notify(sess)

	s.log.WithField("session_id", sess.SessionID).
		WithField("order_id", created.ID).
		Info("checkout confirmed")
	return sess, nil
}

// abandon returns the session to idle after a failure, recording the reason.
func (s *Service) abandon(ctx context.Context, sess *checkout.Session, cause error) {
	sess.LastError = cause.Error()
	if err := sess.Transition(checkout.PhaseIdle); err != nil {
		s.log.WithField("session_id", sess.SessionID).WithError(err).Error("failed to reset checkout phase")
		return
	}
	if err := s.checkouts.SaveCheckout(ctx, sess); err != nil {
		s.log.WithField("session_id", sess.SessionID).WithError(err).Error("failed to save abandoned checkout")
	}
	s.recordFailed(failureReason(cause))
	s.notify(sess)
}

func (s *Service) notify(sess *checkout.Session) {
	if s.events != nil {
		s.events.PhaseChanged(sess.SessionID, sess.Phase, sess)
	}
}

func (s *Service) recordStarted() {
	if s.metrics != nil {
		s.metrics.RecordCheckoutStarted()
	}
}

func (s *Service) recordConfirmed() {
	if s.metrics != nil {
		s.metrics.RecordCheckoutConfirmed()
	}
}

func (s *Service) recordFailed(reason string) {
	if s.metrics != nil {
		s.metrics.RecordCheckoutFailed(reason)
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, recommend.ErrNoRecommendation):
		return "no_recommendation"
	case errors.Is(err, ErrCartChanged):
		return "cart_changed"
	case errors.Is(err, ErrSDKTerminated):
		return "sdk_terminated"
	default:
		return "cancelled"
	}
}
