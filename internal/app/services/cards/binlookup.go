package cards

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cardwise/commerce_layer/internal/httputil"
	"github.com/cardwise/commerce_layer/pkg/logger"
)

// DefaultBinLookupURL is the public binlist endpoint.
const DefaultBinLookupURL = "https://lookup.binlist.net"

// BinInfo is the subset of the binlist response the service uses.
type BinInfo struct {
	Scheme string `json:"scheme"`
	Brand  string `json:"brand"`
	Bank   string `json:"bank"`
	Type   string `json:"type"`
}

// BinLookupClient resolves issuer details for a card BIN. Lookups are
// best-effort enrichment; callers must tolerate errors.
type BinLookupClient struct {
	baseURL string
	http    *http.Client
	log     *logger.Logger
}

// NewBinLookupClient creates a BIN lookup client. An empty baseURL uses the
// public binlist endpoint.
func NewBinLookupClient(baseURL string, log *logger.Logger) *BinLookupClient {
	if baseURL == "" {
		baseURL = DefaultBinLookupURL
	}
	if log == nil {
		log = logger.NewDefault("binlookup")
	}
	return &BinLookupClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Second},
		log:     log,
	}
}

// Lookup fetches issuer details for a BIN.
func (c *BinLookupClient) Lookup(ctx context.Context, bin string) (BinInfo, error) {
	if bin == "" {
		return BinInfo{}, fmt.Errorf("bin is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+bin, nil)
	if err != nil {
		return BinInfo{}, err
	}
	req.Header.Set("Accept-Version", "3")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.WithError(err).Debug("bin lookup failed")
		return BinInfo{}, err
	}

	var raw struct {
		Scheme string `json:"scheme"`
		Brand  string `json:"brand"`
		Type   string `json:"type"`
		Bank   struct {
			Name string `json:"name"`
		} `json:"bank"`
	}
	if err := httputil.DecodeResponse(resp, &raw); err != nil {
		c.log.WithError(err).Debug("bin lookup failed")
		return BinInfo{}, err
	}

	return BinInfo{
		Scheme: raw.Scheme,
		Brand:  raw.Brand,
		Bank:   raw.Bank.Name,
		Type:   raw.Type,
	}, nil
}
