// Package postgres implements card and order persistence on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/cardwise/commerce_layer/internal/app/domain/card"
	"github.com/cardwise/commerce_layer/internal/app/domain/checkout"
	"github.com/cardwise/commerce_layer/internal/app/storage"
)

// Store implements the card and order storage interfaces backed by
// PostgreSQL. Carts and checkout sessions are ephemeral per-session state and
// stay in memory.
type Store struct {
	db *sql.DB
}

var _ storage.CardStore = (*Store)(nil)
var _ storage.OrderStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return New(db), nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// --- CardStore --------------------------------------------------------------

func (s *Store) CreateCard(ctx context.Context, c card.StoredCard) (card.StoredCard, error) {
	if c.UserID == "" {
		return card.StoredCard{}, errors.New("user_id required")
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credit_cards (id, user_id, display_name, holder_name, number, expiry, security_code,
			network, color_hint, reward_tags, benefit_tags, apr, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, c.ID, c.UserID, c.DisplayName, c.HolderName, c.Number, c.Expiry, c.SecurityCode,
		string(c.Network), c.ColorHint, pq.Array(c.RewardTags), pq.Array(c.BenefitTags), c.APR,
		c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return card.StoredCard{}, err
	}
	return c, nil
}

func (s *Store) UpdateCard(ctx context.Context, c card.StoredCard) (card.StoredCard, error) {
	existing, err := s.GetCard(ctx, c.ID)
	if err != nil {
		return card.StoredCard{}, err
	}

	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE credit_cards
		SET display_name = $2, holder_name = $3, number = $4, expiry = $5, security_code = $6,
			network = $7, color_hint = $8, reward_tags = $9, benefit_tags = $10, apr = $11, updated_at = $12
		WHERE id = $1
	`, c.ID, c.DisplayName, c.HolderName, c.Number, c.Expiry, c.SecurityCode,
		string(c.Network), c.ColorHint, pq.Array(c.RewardTags), pq.Array(c.BenefitTags), c.APR, c.UpdatedAt)
	if err != nil {
		return card.StoredCard{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return card.StoredCard{}, fmt.Errorf("card %s: %w", c.ID, storage.ErrNotFound)
	}
	return c, nil
}

func (s *Store) GetCard(ctx context.Context, id string) (card.StoredCard, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, display_name, holder_name, number, expiry, security_code,
			network, color_hint, reward_tags, benefit_tags, apr, created_at, updated_at
		FROM credit_cards
		WHERE id = $1
	`, id)

	c, err := scanCard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return card.StoredCard{}, fmt.Errorf("card %s: %w", id, storage.ErrNotFound)
	}
	return c, err
}

func (s *Store) ListCards(ctx context.Context, userID string) ([]card.StoredCard, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, display_name, holder_name, number, expiry, security_code,
			network, color_hint, reward_tags, benefit_tags, apr, created_at, updated_at
		FROM credit_cards
		WHERE user_id = $1
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]card.StoredCard, 0)
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (s *Store) DeleteCard(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM credit_cards WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("card %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (card.StoredCard, error) {
	var (
		c       card.StoredCard
		network string
		rewards pq.StringArray
		perks   pq.StringArray
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.DisplayName, &c.HolderName, &c.Number, &c.Expiry,
		&c.SecurityCode, &network, &c.ColorHint, &rewards, &perks, &c.APR,
		&c.CreatedAt, &c.UpdatedAt); err != nil {
		return card.StoredCard{}, err
	}
	c.Network = card.Network(network)
	c.RewardTags = []string(rewards)
	c.BenefitTags = []string(perks)
	return c, nil
}

// --- OrderStore -------------------------------------------------------------

func (s *Store) CreateOrder(ctx context.Context, o checkout.Order) (checkout.Order, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.ConfirmedAt.IsZero() {
		o.ConfirmedAt = time.Now().UTC()
	}

	linesJSON, err := json.Marshal(o.Lines)
	if err != nil {
		return checkout.Order{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO orders (id, session_id, user_id, lines, subtotal, tax_amount, total, card_name, confirmed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, o.ID, o.SessionID, o.UserID, linesJSON, o.Subtotal, o.TaxAmount, o.Total, o.CardName, o.ConfirmedAt)
	if err != nil {
		return checkout.Order{}, err
	}
	return o, nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (checkout.Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, user_id, lines, subtotal, tax_amount, total, card_name, confirmed_at
		FROM orders
		WHERE id = $1
	`, id)

	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return checkout.Order{}, fmt.Errorf("order %s: %w", id, storage.ErrNotFound)
	}
	return o, err
}

func (s *Store) ListOrders(ctx context.Context, userID string) ([]checkout.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, user_id, lines, subtotal, tax_amount, total, card_name, confirmed_at
		FROM orders
		WHERE user_id = $1
		ORDER BY confirmed_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]checkout.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

func scanOrder(row rowScanner) (checkout.Order, error) {
	var (
		o        checkout.Order
		linesRaw []byte
	)
	if err := row.Scan(&o.ID, &o.SessionID, &o.UserID, &linesRaw, &o.Subtotal, &o.TaxAmount,
		&o.Total, &o.CardName, &o.ConfirmedAt); err != nil {
		return checkout.Order{}, err
	}
	if len(linesRaw) > 0 {
		_ = json.Unmarshal(linesRaw, &o.Lines)
	}
	return o, nil
}
