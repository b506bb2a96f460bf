// Package advisor relays card-advice chat to the advisor backend.
package advisor

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cardwise/commerce_layer/internal/httputil"
	"github.com/cardwise/commerce_layer/pkg/logger"
)

// Turn is one prior exchange in the conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client relays chat messages to the advisor backend.
type Client struct {
	baseURL string
	http    *http.Client
	log     *logger.Logger
}

// NewClient creates an advisor relay client.
func NewClient(baseURL string, timeout time.Duration, log *logger.Logger) *Client {
	if log == nil {
		log = logger.NewDefault("advisor")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

type chatRequest struct {
	Chat    string `json:"chat"`
	History []Turn `json:"history"`
}

type chatResponse struct {
	Text string `json:"text"`
}

// Chat sends the user's message and prior turns and returns the advisor's
// reply.
func (c *Client) Chat(ctx context.Context, message string, history []Turn) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", fmt.Errorf("message is required")
	}
	if history == nil {
		history = []Turn{}
	}

	resp, err := httputil.PostJSON(ctx, c.http, c.baseURL+"/chat", chatRequest{
		Chat:    message,
		History: history,
	})
	if err != nil {
		c.log.WithError(err).Warn("advisor backend unreachable")
		return "", fmt.Errorf("advisor request failed: %w", err)
	}

	var out chatResponse
	if err := httputil.DecodeResponse(resp, &out); err != nil {
		return "", err
	}
	return out.Text, nil
}
