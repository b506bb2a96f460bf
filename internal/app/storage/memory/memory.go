package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cardwise/commerce_layer/internal/app/domain/card"
	"github.com/cardwise/commerce_layer/internal/app/domain/cart"
	"github.com/cardwise/commerce_layer/internal/app/domain/checkout"
	"github.com/cardwise/commerce_layer/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu        sync.RWMutex
	carts     map[string]*cart.Cart
	cards     map[string]card.StoredCard
	checkouts map[string]*checkout.Session
	orders    map[string]checkout.Order
}

var _ storage.CartStore = (*Store)(nil)
var _ storage.CardStore = (*Store)(nil)
var _ storage.CheckoutStore = (*Store)(nil)
var _ storage.OrderStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		carts:     make(map[string]*cart.Cart),
		cards:     make(map[string]card.StoredCard),
		checkouts: make(map[string]*checkout.Session),
		orders:    make(map[string]checkout.Order),
	}
}

// CartStore implementation ----------------------------------------------------

func (s *Store) GetCart(_ context.Context, sessionID string) (*cart.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.carts[sessionID]
	if !ok {
		return nil, fmt.Errorf("cart %s: %w", sessionID, storage.ErrNotFound)
	}
	return cloneCart(c), nil
}

func (s *Store) SaveCart(_ context.Context, c *cart.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.carts[c.SessionID] = cloneCart(c)
	return nil
}

func (s *Store) DeleteCart(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.carts, sessionID)
	return nil
}

// CardStore implementation ----------------------------------------------------

func (s *Store) CreateCard(_ context.Context, c card.StoredCard) (card.StoredCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.NewString()
	} else if _, exists := s.cards[c.ID]; exists {
		return card.StoredCard{}, fmt.Errorf("card %s already exists", c.ID)
	}

	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	s.cards[c.ID] = cloneCard(c)
	return c, nil
}

func (s *Store) UpdateCard(_ context.Context, c card.StoredCard) (card.StoredCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.cards[c.ID]
	if !ok {
		return card.StoredCard{}, fmt.Errorf("card %s: %w", c.ID, storage.ErrNotFound)
	}

	c.CreatedAt = original.CreatedAt
	c.UpdatedAt = time.Now().UTC()

	s.cards[c.ID] = cloneCard(c)
	return c, nil
}

func (s *Store) GetCard(_ context.Context, id string) (card.StoredCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cards[id]
	if !ok {
		return card.StoredCard{}, fmt.Errorf("card %s: %w", id, storage.ErrNotFound)
	}
	return cloneCard(c), nil
}

func (s *Store) ListCards(_ context.Context, userID string) ([]card.StoredCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]card.StoredCard, 0)
	for _, c := range s.cards {
		if userID == "" || c.UserID == userID {
			result = append(result, cloneCard(c))
		}
	}
	return result, nil
}

func (s *Store) DeleteCard(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cards[id]; !ok {
		return fmt.Errorf("card %s: %w", id, storage.ErrNotFound)
	}
	delete(s.cards, id)
	return nil
}

// CheckoutStore implementation ------------------------------------------------

func (s *Store) GetCheckout(_ context.Context, sessionID string) (*checkout.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.checkouts[sessionID]
	if !ok {
		return nil, fmt.Errorf("checkout %s: %w", sessionID, storage.ErrNotFound)
	}
	return cloneCheckout(sess), nil
}

func (s *Store) SaveCheckout(_ context.Context, sess *checkout.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.checkouts[sess.SessionID] = cloneCheckout(sess)
	return nil
}

func (s *Store) DeleteCheckout(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.checkouts, sessionID)
	return nil
}

// OrderStore implementation ---------------------------------------------------

func (s *Store) CreateOrder(_ context.Context, o checkout.Order) (checkout.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o.ID == "" {
		o.ID = uuid.NewString()
	} else if _, exists := s.orders[o.ID]; exists {
		return checkout.Order{}, fmt.Errorf("order %s already exists", o.ID)
	}
	if o.ConfirmedAt.IsZero() {
		o.ConfirmedAt = time.Now().UTC()
	}

	s.orders[o.ID] = cloneOrder(o)
	return o, nil
}

func (s *Store) GetOrder(_ context.Context, id string) (checkout.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return checkout.Order{}, fmt.Errorf("order %s: %w", id, storage.ErrNotFound)
	}
	return cloneOrder(o), nil
}

func (s *Store) ListOrders(_ context.Context, userID string) ([]checkout.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]checkout.Order, 0)
	for _, o := range s.orders {
		if userID == "" || o.UserID == userID {
			result = append(result, cloneOrder(o))
		}
	}
	return result, nil
}

// Helpers --------------------------------------------------------------------

func cloneLines(lines []cart.LineItem) []cart.LineItem {
	if lines == nil {
		return nil
	}
	out := make([]cart.LineItem, len(lines))
	copy(out, lines)
	for i := range out {
		if out[i].ImageRefs != nil {
			refs := make([]string, len(out[i].ImageRefs))
			copy(refs, out[i].ImageRefs)
			out[i].ImageRefs = refs
		}
	}
	return out
}

func cloneCart(c *cart.Cart) *cart.Cart {
	out := *c
	out.Lines = cloneLines(c.Lines)
	return &out
}

func cloneCard(c card.StoredCard) card.StoredCard {
	c.RewardTags = append([]string(nil), c.RewardTags...)
	c.BenefitTags = append([]string(nil), c.BenefitTags...)
	return c
}

func cloneCheckout(sess *checkout.Session) *checkout.Session {
	out := *sess
	out.CartSnapshot.Lines = cloneLines(sess.CartSnapshot.Lines)
	if sess.Recommendation != nil {
		rec := *sess.Recommendation
		out.Recommendation = &rec
	}
	return &out
}

func cloneOrder(o checkout.Order) checkout.Order {
	o.Lines = cloneLines(o.Lines)
	return o
}
