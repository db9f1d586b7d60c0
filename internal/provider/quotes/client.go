package quotes

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/wonho/pulserank/internal/domain"
	"github.com/wonho/pulserank/internal/provider"
	"github.com/wonho/pulserank/pkg/config"
	"github.com/wonho/pulserank/pkg/logger"
)

// ProviderID identifies the quote feed in snapshot attribution.
const ProviderID = "marketfeed"

// Client fetches delayed quotes from the market data feed. All quote
// REST calls go through this client.
type Client struct {
	transport *provider.Transport
	baseURL   string
	apiKey    string
	ttl       time.Duration
	logger    *logger.Logger
}

// NewClient creates a new quotes client.
func NewClient(cfg config.ProviderConfig, transport *provider.Transport, log *logger.Logger) *Client {
	return &Client{
		transport: transport,
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		ttl:       cfg.TTL,
		logger:    log,
	}
}

// Class returns the data class this adapter serves.
func (c *Client) Class() domain.DataClass {
	return domain.ClassQuotes
}

// Provider returns the provider id.
func (c *Client) Provider() string {
	return ProviderID
}

// FreshnessTTL returns the quote freshness class (seconds scale).
func (c *Client) FreshnessTTL() time.Duration {
	return c.ttl
}

// quoteResponse is the vendor response shape. Field values are decoded
// loosely on purpose: the feed is known to emit numbers as strings and
// "Infinity" markers in thin-volume fields.
type quoteResponse struct {
	Quotes []map[string]interface{} `json:"quotes"`
}

// Fetch retrieves quotes for a batch of symbols in one call.
func (c *Client) Fetch(ctx context.Context, symbols []string) (*provider.RawPayload, error) {
	if len(symbols) == 0 {
		return &provider.RawPayload{
			Class:       domain.ClassQuotes,
			Provider:    ProviderID,
			RetrievedAt: time.Now(),
			TTL:         c.ttl,
		}, nil
	}

	params := url.Values{}
	params.Set("symbols", strings.Join(symbols, ","))
	params.Set("apikey", c.apiKey)
	fullURL := fmt.Sprintf("%s/v1/quotes?%s", c.baseURL, params.Encode())

	var resp quoteResponse
	if err := c.transport.GetJSON(ctx, fullURL, &resp); err != nil {
		return nil, fmt.Errorf("quotes fetch: %w", err)
	}

	payload := &provider.RawPayload{
		Class:       domain.ClassQuotes,
		Provider:    ProviderID,
		RetrievedAt: time.Now(),
		TTL:         c.ttl,
		Records:     make([]provider.RawRecord, 0, len(resp.Quotes)),
	}

	for _, q := range resp.Quotes {
		symbol, _ := q["symbol"].(string)
		if symbol == "" {
			continue
		}
		payload.Records = append(payload.Records, provider.RawRecord{
			Symbol: strings.ToUpper(symbol),
			Fields: q,
		})
	}

	c.logger.WithFields(map[string]interface{}{
		"requested": len(symbols),
		"received":  len(payload.Records),
	}).Debug("Fetched quotes")

	return payload, nil
}
