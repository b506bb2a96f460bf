package cards

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/cardwise/commerce_layer/internal/httputil"
	"github.com/cardwise/commerce_layer/pkg/logger"
)

// ScanResult is the card scanner's extraction from a card photo.
type ScanResult struct {
	Number     string `json:"number"`
	Expiry     string `json:"expiry"`
	HolderName string `json:"holder_name"`
	CardName   string `json:"card_name"`
}

// ScanClient relays card photos to the scanning backend for OCR extraction.
type ScanClient struct {
	baseURL string
	http    *http.Client
	log     *logger.Logger
}

// NewScanClient creates a scan relay client.
func NewScanClient(baseURL string, timeout time.Duration, log *logger.Logger) *ScanClient {
	if log == nil {
		log = logger.NewDefault("cardscan")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ScanClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

// IdentifyCard extracts the card name from a photo of the card front.
func (c *ScanClient) IdentifyCard(ctx context.Context, filename string, image io.Reader) (ScanResult, error) {
	return c.relay(ctx, "/identify-card", filename, image)
}

// ScanCard extracts number, expiry and holder name from a card photo.
func (c *ScanClient) ScanCard(ctx context.Context, filename string, image io.Reader) (ScanResult, error) {
	return c.relay(ctx, "/scan-card", filename, image)
}

func (c *ScanClient) relay(ctx context.Context, path, filename string, image io.Reader) (ScanResult, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return ScanResult{}, fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := io.Copy(part, image); err != nil {
		return ScanResult{}, fmt.Errorf("failed to read image: %w", err)
	}
	if err := writer.Close(); err != nil {
		return ScanResult{}, fmt.Errorf("failed to finalize upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return ScanResult{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.WithError(err).Warn("card scan backend unreachable")
		return ScanResult{}, fmt.Errorf("scan request failed: %w", err)
	}

	var result ScanResult
	if err := httputil.DecodeResponse(resp, &result); err != nil {
		return ScanResult{}, err
	}
	return result, nil
}
