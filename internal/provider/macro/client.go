package macro

import (
	"context"
	"fmt"
	"time"

	"github.com/wonho/pulserank/internal/domain"
	"github.com/wonho/pulserank/internal/provider"
	"github.com/wonho/pulserank/pkg/config"
	"github.com/wonho/pulserank/pkg/logger"
)

// ProviderID identifies the macro indicator feed.
const ProviderID = "macrowatch"

// Client fetches market-level macro indicators. Macro payloads are not
// per-instrument; the single record has an empty symbol.
type Client struct {
	transport *provider.Transport
	baseURL   string
	apiKey    string
	ttl       time.Duration
	logger    *logger.Logger
}

// NewClient creates a new macro client.
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
	return domain.ClassMacro
}

// Provider returns the provider id.
func (c *Client) Provider() string {
	return ProviderID
}

// FreshnessTTL returns the macro freshness class.
func (c *Client) FreshnessTTL() time.Duration {
	return c.ttl
}

// Fetch retrieves the current indicator set. Symbols are ignored.
func (c *Client) Fetch(ctx context.Context, symbols []string) (*provider.RawPayload, error) {
	fullURL := fmt.Sprintf("%s/v1/indicators?key=%s", c.baseURL, c.apiKey)

	var fields map[string]interface{}
	if err := c.transport.GetJSON(ctx, fullURL, &fields); err != nil {
		return nil, fmt.Errorf("macro fetch: %w", err)
	}

	c.logger.WithField("indicators", len(fields)).Debug("Fetched macro indicators")

	return &provider.RawPayload{
		Class:       domain.ClassMacro,
		Provider:    ProviderID,
		RetrievedAt: time.Now(),
		TTL:         c.ttl,
		Records:     []provider.RawRecord{{Fields: fields}},
	}, nil
}
