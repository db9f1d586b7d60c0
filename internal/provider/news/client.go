package news

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonho/pulserank/internal/domain"
	"github.com/wonho/pulserank/internal/provider"
	"github.com/wonho/pulserank/pkg/config"
	"github.com/wonho/pulserank/pkg/logger"
)

// ProviderID identifies the news wire in snapshot attribution.
const ProviderID = "newswire"

// Client scrapes the news wire's per-symbol article listing. The wire
// has no JSON API; the listing page is stable HTML.
type Client struct {
	transport *provider.Transport
	baseURL   string
	ttl       time.Duration
	logger    *logger.Logger
}

// NewClient creates a new news client.
func NewClient(cfg config.ProviderConfig, transport *provider.Transport, log *logger.Logger) *Client {
	return &Client{
		transport: transport,
		baseURL:   cfg.BaseURL,
		ttl:       cfg.TTL,
		logger:    log,
	}
}

// Class returns the data class this adapter serves.
func (c *Client) Class() domain.DataClass {
	return domain.ClassNews
}

// Provider returns the provider id.
func (c *Client) Provider() string {
	return ProviderID
}

// FreshnessTTL returns the news freshness class (minute scale).
func (c *Client) FreshnessTTL() time.Duration {
	return c.ttl
}

// Fetch scrapes the article listing for each symbol. The wire has no
// batch endpoint, so one page per symbol; the shared budget keeps the
// aggregate call rate inside the provider's limit.
func (c *Client) Fetch(ctx context.Context, symbols []string) (*provider.RawPayload, error) {
	payload := &provider.RawPayload{
		Class:       domain.ClassNews,
		Provider:    ProviderID,
		RetrievedAt: time.Now(),
		TTL:         c.ttl,
		Records:     make([]provider.RawRecord, 0, len(symbols)),
	}

	for _, symbol := range symbols {
		record, err := c.fetchSymbol(ctx, strings.ToUpper(symbol))
		if err != nil {
			// Partial coverage is fine; the instrument just has a null
			// news snapshot this round.
			c.logger.WithError(err).WithField("symbol", symbol).Debug("News fetch failed for symbol")
			continue
		}
		payload.Records = append(payload.Records, record)
	}

	c.logger.WithFields(map[string]interface{}{
		"requested": len(symbols),
		"received":  len(payload.Records),
	}).Debug("Fetched news digests")

	return payload, nil
}

func (c *Client) fetchSymbol(ctx context.Context, symbol string) (provider.RawRecord, error) {
	fullURL := fmt.Sprintf("%s/wire/%s", c.baseURL, symbol)

	resp, err := c.transport.GetHTML(ctx, fullURL)
	if err != nil {
		return provider.RawRecord{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return provider.RawRecord{}, fmt.Errorf("failed to read listing body: %w", err)
	}

	return ParseListing(symbol, string(body))
}

// ParseListing extracts the article digest from a listing page.
// Exported so fixture pages can be parsed in tests without a server.
func ParseListing(symbol, html string) (provider.RawRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return provider.RawRecord{}, fmt.Errorf("failed to parse listing: %w", err)
	}

	var (
		count       int
		impactSum   float64
		impactCount int
		topHeadline string
	)

	doc.Find("li.article").Each(func(i int, sel *goquery.Selection) {
		headline := strings.TrimSpace(sel.Find("span.headline").Text())
		if headline == "" {
			return
		}

		count++
		if topHeadline == "" {
			topHeadline = headline
		}

		// data-impact is the wire's own -1..1 relevance score; pages
		// older than the scorer rollout omit it.
		if raw, exists := sel.Attr("data-impact"); exists {
			if impact, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
				impactSum += impact
				impactCount++
			}
		}
	})

	fields := map[string]interface{}{
		"articleCount": count,
	}
	if topHeadline != "" {
		fields["topHeadline"] = topHeadline
	}
	if impactCount > 0 {
		fields["impact"] = impactSum / float64(impactCount)
	}

	return provider.RawRecord{Symbol: symbol, Fields: fields}, nil
}
