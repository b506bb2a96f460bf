// Package cart manages per-session shopping carts and their price
// breakdowns.
package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cardwise/commerce_layer/internal/app/domain/cart"
	"github.com/cardwise/commerce_layer/internal/app/domain/pricing"
	"github.com/cardwise/commerce_layer/internal/app/storage"
	"github.com/cardwise/commerce_layer/pkg/logger"
)

// Service manages cart state keyed by session ID. All mutations load the
// cart, apply the change and save, serialized per process by the store.
type Service struct {
	store   storage.CartStore
	taxRate float64
	log     *logger.Logger
}

// New constructs a cart service. A taxRate <= 0 falls back to the default.
func New(store storage.CartStore, taxRate float64, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("cart")
	}
	if taxRate <= 0 {
		taxRate = pricing.DefaultTaxRate
	}
	return &Service{
		store:   store,
		taxRate: taxRate,
		log:     log,
	}
}

// View is a cart with its derived price breakdown. The breakdown is computed
// fresh on every read, never stored.
type View struct {
	Cart      *cart.Cart               `json:"cart"`
	ItemCount int                      `json:"item_count"`
	Breakdown pricing.Breakdown        `json:"breakdown"`
	Display   pricing.DisplayBreakdown `json:"display"`
}

// Get returns the cart for a session, creating an empty one on first use.
func (s *Service) Get(ctx context.Context, sessionID string) (View, error) {
	c, err := s.load(ctx, sessionID)
	if err != nil {
		return View{}, err
	}
	return s.view(c), nil
}

// AddItem merges an item into the cart: an existing line with the same
// product key gains quantity one, otherwise a new line is appended.
func (s *Service) AddItem(ctx context.Context, sessionID string, item cart.LineItem) (View, error) {
	item.ProductKey = strings.TrimSpace(item.ProductKey)
	if item.ProductKey == "" {
		return View{}, fmt.Errorf("product_key is required")
	}

	c, err := s.load(ctx, sessionID)
	if err != nil {
		return View{}, err
	}
	c.AddItem(item)
	if err := s.store.SaveCart(ctx, c); err != nil {
		return View{}, err
	}

	s.log.WithField("session_id", sessionID).
		WithField("product_key", item.ProductKey).
		Debug("cart item added")
	return s.view(c), nil
}

// RemoveItem deletes a line. Removing an absent key is a no-op.
func (s *Service) RemoveItem(ctx context.Context, sessionID, productKey string) (View, error) {
	c, err := s.load(ctx, sessionID)
	if err != nil {
		return View{}, err
	}
	c.RemoveItem(productKey)
	if err := s.store.SaveCart(ctx, c); err != nil {
		return View{}, err
	}
	return s.view(c), nil
}

// SetQuantity sets a line's quantity. Negative values clamp to zero and zero
// removes the line. When the line is no longer present and the full item is
// supplied, the line is re-added at the requested quantity.
func (s *Service) SetQuantity(ctx context.Context, sessionID string, item cart.LineItem, quantity int) (View, error) {
	if strings.TrimSpace(item.ProductKey) == "" {
		return View{}, fmt.Errorf("product_key is required")
	}

	c, err := s.load(ctx, sessionID)
	if err != nil {
		return View{}, err
	}
	c.Upsert(item, quantity)
	if err := s.store.SaveCart(ctx, c); err != nil {
		return View{}, err
	}
	return s.view(c), nil
}

// Clear empties the cart.
func (s *Service) Clear(ctx context.Context, sessionID string) (View, error) {
	c, err := s.load(ctx, sessionID)
	if err != nil {
		return View{}, err
	}
	c.Clear()
	if err := s.store.SaveCart(ctx, c); err != nil {
		return View{}, err
	}
	s.log.WithField("session_id", sessionID).Info("cart cleared")
	return s.view(c), nil
}

// Snapshot returns an immutable copy of the current cart lines.
func (s *Service) Snapshot(ctx context.Context, sessionID string) (cart.Snapshot, error) {
	c, err := s.load(ctx, sessionID)
	if err != nil {
		return cart.Snapshot{}, err
	}
	return c.Snapshot(), nil
}

// ClearCart empties the cart, discarding the view. The checkout sequencer
// uses this after a successful payment.
func (s *Service) ClearCart(ctx context.Context, sessionID string) error {
	_, err := s.Clear(ctx, sessionID)
	return err
}

// ComputeBreakdown derives the price breakdown for a snapshot at the
// configured tax rate. Malformed prices contribute zero and are logged.
func (s *Service) ComputeBreakdown(snap cart.Snapshot) pricing.Breakdown {
	breakdown, parseErrs := pricing.Compute(snap, s.taxRate)
	for _, err := range parseErrs {
		s.log.WithField("session_id", snap.SessionID).WithError(err).Warn("malformed price in cart")
	}
	return breakdown
}

// TaxRate returns the configured tax rate.
func (s *Service) TaxRate() float64 {
	return s.taxRate
}

func (s *Service) load(ctx context.Context, sessionID string) (*cart.Cart, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("session_id is required")
	}

	c, err := s.store.GetCart(ctx, sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return cart.New(sessionID), nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) view(c *cart.Cart) View {
	breakdown, parseErrs := pricing.Compute(c.Snapshot(), s.taxRate)
	for _, err := range parseErrs {
		s.log.WithField("session_id", c.SessionID).WithError(err).Warn("malformed price in cart")
	}
	return View{
		Cart:      c,
		ItemCount: c.ItemCount(),
		Breakdown: breakdown,
		Display:   breakdown.Display(),
	}
}
