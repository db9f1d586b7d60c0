package sentiment

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

// ProviderID identifies the social sentiment aggregator.
const ProviderID = "socialpulse"

// Client fetches aggregated social sentiment per symbol.
type Client struct {
	transport *provider.Transport
	baseURL   string
	apiKey    string
	ttl       time.Duration
	logger    *logger.Logger
}

// NewClient creates a new sentiment client.
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
	return domain.ClassSentiment
}

// Provider returns the provider id.
func (c *Client) Provider() string {
	return ProviderID
}

// FreshnessTTL returns the sentiment freshness class.
func (c *Client) FreshnessTTL() time.Duration {
	return c.ttl
}

// sentimentResponse is the vendor response shape, keyed by symbol.
type sentimentResponse struct {
	Results map[string]map[string]interface{} `json:"results"`
}

// Fetch retrieves sentiment aggregates for a batch of symbols.
func (c *Client) Fetch(ctx context.Context, symbols []string) (*provider.RawPayload, error) {
	params := url.Values{}
	params.Set("symbols", strings.Join(symbols, ","))
	params.Set("key", c.apiKey)
	fullURL := fmt.Sprintf("%s/v1/sentiment?%s", c.baseURL, params.Encode())

	var resp sentimentResponse
	if err := c.transport.GetJSON(ctx, fullURL, &resp); err != nil {
		return nil, fmt.Errorf("sentiment fetch: %w", err)
	}

	payload := &provider.RawPayload{
		Class:       domain.ClassSentiment,
		Provider:    ProviderID,
		RetrievedAt: time.Now(),
		TTL:         c.ttl,
		Records:     make([]provider.RawRecord, 0, len(resp.Results)),
	}

	for symbol, fields := range resp.Results {
		payload.Records = append(payload.Records, provider.RawRecord{
			Symbol: strings.ToUpper(symbol),
			Fields: fields,
		})
	}

	c.logger.WithFields(map[string]interface{}{
		"requested": len(symbols),
		"received":  len(payload.Records),
	}).Debug("Fetched sentiment")

	return payload, nil
}
