// Package storage defines the persistence interfaces for the commerce layer.
package storage

import (
	"context"
	"errors"

	"github.com/cardwise/commerce_layer/internal/app/domain/card"
	"github.com/cardwise/commerce_layer/internal/app/domain/cart"
	"github.com/cardwise/commerce_layer/internal/app/domain/checkout"
)

// ErrNotFound is wrapped by store implementations when a record does not
// exist. Handlers map it to 404.
var ErrNotFound = errors.New("not found")

// CartStore persists carts keyed by session.
type CartStore interface {
	GetCart(ctx context.Context, sessionID string) (*cart.Cart, error)
	SaveCart(ctx context.Context, c *cart.Cart) error
	DeleteCart(ctx context.Context, sessionID string) error
}

// CardStore persists stored payment cards.
type CardStore interface {
	CreateCard(ctx context.Context, c card.StoredCard) (card.StoredCard, error)
	UpdateCard(ctx context.Context, c card.StoredCard) (card.StoredCard, error)
	GetCard(ctx context.Context, id string) (card.StoredCard, error)
	ListCards(ctx context.Context, userID string) ([]card.StoredCard, error)
	DeleteCard(ctx context.Context, id string) error
}

// CheckoutStore persists in-flight checkout sessions.
type CheckoutStore interface {
	GetCheckout(ctx context.Context, sessionID string) (*checkout.Session, error)
	SaveCheckout(ctx context.Context, s *checkout.Session) error
	DeleteCheckout(ctx context.Context, sessionID string) error
}

// OrderStore archives completed checkouts.
type OrderStore interface {
	CreateOrder(ctx context.Context, o checkout.Order) (checkout.Order, error)
	GetOrder(ctx context.Context, id string) (checkout.Order, error)
	ListOrders(ctx context.Context, userID string) ([]checkout.Order, error)
}
