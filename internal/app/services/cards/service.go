// Package cards manages the user's stored payment cards.
package cards

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cardwise/commerce_layer/internal/app/domain/card"
	"github.com/cardwise/commerce_layer/internal/app/storage"
	"github.com/cardwise/commerce_layer/pkg/logger"
)

// Service provides card CRUD plus issuer enrichment via BIN lookup.
type Service struct {
	store  storage.CardStore
	lookup *BinLookupClient
	log    *logger.Logger
}

// New constructs a card service. The lookup client may be nil, in which case
// issuer enrichment is skipped.
func New(store storage.CardStore, lookup *BinLookupClient, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("cards")
	}
	return &Service{
		store:  store,
		lookup: lookup,
		log:    log,
	}
}

// AddCard validates, classifies and stores a new card. Issuer details from
// the BIN lookup are best-effort: a failed lookup never fails the add.
func (s *Service) AddCard(ctx context.Context, c card.StoredCard) (card.StoredCard, error) {
	c.HolderName = strings.TrimSpace(c.HolderName)
	c.DisplayName = strings.TrimSpace(c.DisplayName)

	if c.UserID == "" {
		return card.StoredCard{}, fmt.Errorf("user_id is required")
	}
	if strings.TrimSpace(c.Number) == "" {
		return card.StoredCard{}, fmt.Errorf("card number is required")
	}

	c.Number = card.FormatNumber(c.Number)
	c.Expiry = card.FormatExpiry(c.Expiry)
	if c.Expiry != "" {
		if err := card.ValidateExpiry(c.Expiry, time.Now()); err != nil {
			return card.StoredCard{}, err
		}
	}
	c.Classify()

	if c.DisplayName == "" {
		c.DisplayName = s.defaultDisplayName(ctx, c)
	}

	created, err := s.store.CreateCard(ctx, c)
	if err != nil {
		return card.StoredCard{}, err
	}

	s.log.WithField("card_id", created.ID).
		WithField("user_id", created.UserID).
		WithField("network", string(created.Network)).
		Info("card added")
	return created, nil
}

// UpdateCard re-validates and re-classifies a card before saving.
func (s *Service) UpdateCard(ctx context.Context, c card.StoredCard) (card.StoredCard, error) {
	if c.ID == "" {
		return card.StoredCard{}, fmt.Errorf("card id is required")
	}

	c.Number = card.FormatNumber(c.Number)
	c.Expiry = card.FormatExpiry(c.Expiry)
	if c.Expiry != "" {
		if err := card.ValidateExpiry(c.Expiry, time.Now()); err != nil {
			return card.StoredCard{}, err
		}
	}
	c.Classify()

	return s.store.UpdateCard(ctx, c)
}

// GetCard returns one stored card.
func (s *Service) GetCard(ctx context.Context, id string) (card.StoredCard, error) {
	return s.store.GetCard(ctx, id)
}

// ListCards returns all cards for a user, oldest first.
func (s *Service) ListCards(ctx context.Context, userID string) ([]card.StoredCard, error) {
	return s.store.ListCards(ctx, userID)
}

// DeleteCard removes a stored card.
func (s *Service) DeleteCard(ctx context.Context, id string) error {
	if err := s.store.DeleteCard(ctx, id); err != nil {
		return err
	}
	s.log.WithField("card_id", id).Info("card deleted")
	return nil
}

// LookupBIN queries the BIN lookup backend for issuer details. Lookup
// failures collapse to an empty result; enrichment is always optional.
func (s *Service) LookupBIN(ctx context.Context, bin string) BinInfo {
	if s.lookup == nil || bin == "" {
		return BinInfo{}
	}
	info, err := s.lookup.Lookup(ctx, bin)
	if err != nil {
		s.log.WithError(err).Debug("bin lookup failed")
		return BinInfo{}
	}
	return info
}

// defaultDisplayName derives a display name from the BIN lookup when the
// user did not supply one, falling back to the network name.
func (s *Service) defaultDisplayName(ctx context.Context, c card.StoredCard) string {
	if s.lookup != nil {
		if info, err := s.lookup.Lookup(ctx, card.BIN(c.Number)); err == nil && info.Bank != "" {
			name := info.Bank
			if info.Scheme != "" {
				name += " " + strings.ToUpper(info.Scheme[:1]) + info.Scheme[1:]
			}
			return name
		}
	}
	if c.Network != card.NetworkUnknown {
		return string(c.Network)
	}
	return "Card"
}
