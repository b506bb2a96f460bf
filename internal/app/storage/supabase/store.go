// Package supabase implements card storage over the Supabase PostgREST API.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/cardwise/commerce_layer/internal/app/domain/card"
	"github.com/cardwise/commerce_layer/internal/app/storage"
	"github.com/cardwise/commerce_layer/internal/httputil"
)

const cardsTable = "credit_cards"

// Config holds Supabase connection configuration.
type Config struct {
	URL        string
	AnonKey    string
	ServiceKey string
}

// ConfigFromEnv returns config from environment variables.
func ConfigFromEnv() Config {
	return Config{
		URL:        os.Getenv("SUPABASE_URL"),
		AnonKey:    os.Getenv("SUPABASE_ANON_KEY"),
		ServiceKey: os.Getenv("SUPABASE_SERVICE_KEY"),
	}
}

// CardStore persists stored cards in the Supabase credit_cards table via the
// PostgREST endpoint.
type CardStore struct {
	config Config
	client *http.Client
}

var _ storage.CardStore = (*CardStore)(nil)

// New creates a CardStore. The connection is verified lazily on first use.
func New(config Config) (*CardStore, error) {
	if config.URL == "" || config.ServiceKey == "" {
		return nil, fmt.Errorf("supabase URL and service key are required")
	}
	return &CardStore{
		config: config,
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (s *CardStore) CreateCard(ctx context.Context, c card.StoredCard) (card.StoredCard, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	data, err := json.Marshal(c)
	if err != nil {
		return card.StoredCard{}, fmt.Errorf("marshal error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.restURL(), bytes.NewReader(data))
	if err != nil {
		return card.StoredCard{}, err
	}
	s.setHeaders(req)
	req.Header.Set("Prefer", "return=minimal")

	if err := s.do(req); err != nil {
		return card.StoredCard{}, err
	}
	return c, nil
}

func (s *CardStore) UpdateCard(ctx context.Context, c card.StoredCard) (card.StoredCard, error) {
	existing, err := s.GetCard(ctx, c.ID)
	if err != nil {
		return card.StoredCard{}, err
	}

	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(c)
	if err != nil {
		return card.StoredCard{}, fmt.Errorf("marshal error: %w", err)
	}

	reqURL := fmt.Sprintf("%s?id=eq.%s", s.restURL(), url.QueryEscape(c.ID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, reqURL, bytes.NewReader(data))
	if err != nil {
		return card.StoredCard{}, err
	}
	s.setHeaders(req)
	req.Header.Set("Prefer", "return=minimal")

	if err := s.do(req); err != nil {
		return card.StoredCard{}, err
	}
	return c, nil
}

func (s *CardStore) GetCard(ctx context.Context, id string) (card.StoredCard, error) {
	reqURL := fmt.Sprintf("%s?id=eq.%s&limit=1", s.restURL(), url.QueryEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return card.StoredCard{}, err
	}
	s.setHeaders(req)
	req.Header.Set("Accept", "application/vnd.pgrst.object+json")

	resp, err := s.client.Do(req)
	if err != nil {
		return card.StoredCard{}, err
	}
	defer resp.Body.Close()

	// PostgREST returns 406 for an empty object response.
	if resp.StatusCode == http.StatusNotAcceptable {
		return card.StoredCard{}, fmt.Errorf("card %s: %w", id, storage.ErrNotFound)
	}
	if resp.StatusCode >= 400 {
		return card.StoredCard{}, supabaseError(resp)
	}

	var c card.StoredCard
	if err := json.NewDecoder(resp.Body).Decode(&c); err != nil {
		return card.StoredCard{}, fmt.Errorf("decode error: %w", err)
	}
	return c, nil
}

func (s *CardStore) ListCards(ctx context.Context, userID string) ([]card.StoredCard, error) {
	reqURL := fmt.Sprintf("%s?user_id=eq.%s&order=created_at.asc", s.restURL(), url.QueryEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	s.setHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, supabaseError(resp)
	}

	cards := make([]card.StoredCard, 0)
	if err := json.NewDecoder(resp.Body).Decode(&cards); err != nil {
		return nil, fmt.Errorf("decode error: %w", err)
	}
	return cards, nil
}

func (s *CardStore) DeleteCard(ctx context.Context, id string) error {
	reqURL := fmt.Sprintf("%s?id=eq.%s", s.restURL(), url.QueryEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, reqURL, nil)
	if err != nil {
		return err
	}
	s.setHeaders(req)

	return s.do(req)
}

func (s *CardStore) do(req *http.Request) error {
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return supabaseError(resp)
	}
	return nil
}

func (s *CardStore) restURL() string {
	return fmt.Sprintf("%s/rest/v1/%s", s.config.URL, cardsTable)
}

func (s *CardStore) setHeaders(req *http.Request) {
	req.Header.Set("apikey", s.config.ServiceKey)
	req.Header.Set("Authorization", "Bearer "+s.config.ServiceKey)
	req.Header.Set("Content-Type", "application/json")
}

func supabaseError(resp *http.Response) error {
	body, _, _ := httputil.ReadAllWithLimit(resp.Body, 64*1024)
	return fmt.Errorf("supabase error: status %d: %s", resp.StatusCode, string(body))
}
