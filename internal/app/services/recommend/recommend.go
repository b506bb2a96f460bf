// Package recommend asks the best-card selector which stored card to pay
// with for a given cart.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cardwise/commerce_layer/internal/app/domain/card"
	"github.com/cardwise/commerce_layer/internal/app/domain/cart"
	"github.com/cardwise/commerce_layer/internal/app/domain/checkout"
	"github.com/cardwise/commerce_layer/internal/httputil"
	"github.com/cardwise/commerce_layer/pkg/logger"
)

// ErrNoRecommendation indicates the selector could not produce a usable
// answer: transport failure, timeout, non-2xx status or a response without a
// best card.
var ErrNoRecommendation = errors.New("no card recommendation available")

// Recommender produces a card recommendation for a cart. Implementations
// must honor context cancellation.
type Recommender interface {
	Recommend(ctx context.Context, cards []card.StoredCard, snap cart.Snapshot) (checkout.Recommendation, error)
}

// RecommenderFunc adapts a function to the Recommender interface.
type RecommenderFunc func(ctx context.Context, cards []card.StoredCard, snap cart.Snapshot) (checkout.Recommendation, error)

// Recommend implements Recommender.
func (f RecommenderFunc) Recommend(ctx context.Context, cards []card.StoredCard, snap cart.Snapshot) (checkout.Recommendation, error) {
	return f(ctx, cards, snap)
}

// Client calls the external best-card selector over HTTP. Requests go
// through the authenticated service client so the user ID in the context is
// forwarded to the selector.
type Client struct {
	timeout time.Duration
	http    *httputil.ServiceClient
	log     *logger.Logger
}

var _ Recommender = (*Client)(nil)

// NewClient creates a selector client. A timeout <= 0 defaults to 15s; the
// checkout sequencer makes exactly one attempt per checkout, so the timeout
// bounds the whole recommendation phase.
func NewClient(baseURL string, timeout time.Duration, log *logger.Logger) *Client {
	if log == nil {
		log = logger.NewDefault("recommend")
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		timeout: timeout,
		http: httputil.NewServiceClient(httputil.ServiceClientConfig{
			BaseURL: strings.TrimRight(baseURL, "/"),
			Timeout: timeout,
		}),
		log: log,
	}
}

type cardSummary struct {
	Name     string   `json:"name"`
	Network  string   `json:"network"`
	Rewards  []string `json:"rewards,omitempty"`
	Benefits []string `json:"benefits,omitempty"`
	APR      string   `json:"apr,omitempty"`
}

type itemSummary struct {
	Name     string `json:"name"`
	Price    string `json:"price"`
	Quantity int    `json:"quantity"`
	Category string `json:"category,omitempty"`
	Seller   string `json:"seller,omitempty"`
}

type recommendRequest struct {
	Cards     []cardSummary `json:"cards"`
	CartItems []itemSummary `json:"cartItems"`
}

type recommendResponse struct {
	BestCard *struct {
		Name   string `json:"name"`
		Reason string `json:"reason"`
	} `json:"bestCard"`
}

// Recommend sends the user's cards and cart lines to the selector and
// returns its pick. Every failure mode collapses to ErrNoRecommendation;
// callers surface it as a degraded checkout, not an internal error.
func (c *Client) Recommend(ctx context.Context, cards []card.StoredCard, snap cart.Snapshot) (checkout.Recommendation, error) {
	if len(cards) == 0 {
		return checkout.Recommendation{}, fmt.Errorf("%w: no cards supplied", ErrNoRecommendation)
	}

	req := recommendRequest{
		Cards:     make([]cardSummary, 0, len(cards)),
		CartItems: make([]itemSummary, 0, len(snap.Lines)),
	}
	for _, cc := range cards {
		req.Cards = append(req.Cards, cardSummary{
			Name:     cc.DisplayName,
			Network:  string(cc.Network),
			Rewards:  cc.RewardTags,
			Benefits: cc.BenefitTags,
			APR:      cc.APR,
		})
	}
	for _, line := range snap.Lines {
		req.CartItems = append(req.CartItems, itemSummary{
			Name:     line.ProductKey,
			Price:    line.ProductPrice,
			Quantity: line.Quantity,
			Category: line.Category,
			Seller:   line.Seller,
		})
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.http.Post(ctx, "/best-card", req)
	if err != nil {
		c.log.WithError(err).Warn("best-card selector unreachable")
		return checkout.Recommendation{}, fmt.Errorf("%w: %v", ErrNoRecommendation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.WithField("status", resp.StatusCode).Warn("best-card selector returned error")
		return checkout.Recommendation{}, fmt.Errorf("%w: selector status %d", ErrNoRecommendation, resp.StatusCode)
	}

	var out recommendResponse
	if err := httputil.DecodeResponse(resp, &out); err != nil {
		return checkout.Recommendation{}, fmt.Errorf("%w: %v", ErrNoRecommendation, err)
	}
	if out.BestCard == nil || strings.TrimSpace(out.BestCard.Name) == "" {
		return checkout.Recommendation{}, fmt.Errorf("%w: selector response missing best card", ErrNoRecommendation)
	}

	return checkout.Recommendation{
		CardName: out.BestCard.Name,
		Reason:   out.BestCard.Reason,
	}, nil
}
