package fundamentals

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

// ProviderID identifies the fundamentals vendor in snapshot attribution.
const ProviderID = "fundata"

// Client fetches company fundamentals. Day-scale freshness: the vendor
// recomputes ratios after each close.
type Client struct {
	transport *provider.Transport
	baseURL   string
	apiKey    string
	ttl       time.Duration
	logger    *logger.Logger
}

// NewClient creates a new fundamentals client.
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
	return domain.ClassFundamentals
}

// Provider returns the provider id.
func (c *Client) Provider() string {
	return ProviderID
}

// FreshnessTTL returns the fundamentals freshness class.
func (c *Client) FreshnessTTL() time.Duration {
	return c.ttl
}

// ratiosResponse is the vendor response shape. The vendor keys rows by
// "ticker" and is known to emit "NM" (not meaningful) for negative-PE
// ratios, so values stay loosely typed until the normalizer.
type ratiosResponse struct {
	Data []map[string]interface{} `json:"data"`
}

// Fetch retrieves fundamentals for a batch of symbols.
func (c *Client) Fetch(ctx context.Context, symbols []string) (*provider.RawPayload, error) {
	params := url.Values{}
	params.Set("tickers", strings.Join(symbols, ","))
	params.Set("token", c.apiKey)
	fullURL := fmt.Sprintf("%s/v2/ratios?%s", c.baseURL, params.Encode())

	var resp ratiosResponse
	if err := c.transport.GetJSON(ctx, fullURL, &resp); err != nil {
		return nil, fmt.Errorf("fundamentals fetch: %w", err)
	}

	payload := &provider.RawPayload{
		Class:       domain.ClassFundamentals,
		Provider:    ProviderID,
		RetrievedAt: time.Now(),
		TTL:         c.ttl,
		Records:     make([]provider.RawRecord, 0, len(resp.Data)),
	}

	for _, row := range resp.Data {
		ticker, _ := row["ticker"].(string)
		if ticker == "" {
			continue
		}
		payload.Records = append(payload.Records, provider.RawRecord{
			Symbol: strings.ToUpper(ticker),
			Fields: row,
		})
	}

	c.logger.WithFields(map[string]interface{}{
		"requested": len(symbols),
		"received":  len(payload.Records),
	}).Debug("Fetched fundamentals")

	return payload, nil
}
