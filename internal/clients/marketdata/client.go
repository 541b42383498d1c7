// Package marketdata provides a client for the vehicle market-data provider.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/dealeval/internal/clientdata"
	"github.com/aristath/dealeval/internal/domain"
	"github.com/rs/zerolog"
)

const fairValuePath = "/v1/fair-value"

// Client fetches fair-value quotes with a persistent cache.
// If the provider fails, a stale cached quote is returned when one exists.
type Client struct {
	baseURL   string
	apiKey    string
	client    *http.Client
	log       zerolog.Logger
	cacheRepo *clientdata.Repository
	now       func() time.Time
}

// NewClient creates a new market-data client.
// cacheRepo is optional - if nil, caching is disabled
func NewClient(baseURL, apiKey string, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		client:    &http.Client{Timeout: 10 * time.Second},
		log:       log.With().Str("client", "marketdata").Logger(),
		cacheRepo: cacheRepo,
		now:       time.Now,
	}
}

type fairValueResponse struct {
	FairValue  float64 `json:"fair_value"`
	Confidence string  `json:"confidence"`
	Source     string  `json:"source"`
}

func quoteKey(manufacturer, model string, year, mileage int) string {
	return fmt.Sprintf("%s|%s|%d|%d",
		strings.ToLower(strings.TrimSpace(manufacturer)),
		strings.ToLower(strings.TrimSpace(model)),
		year, mileage)
}

// FairValue returns the market value of a vehicle.
func (c *Client) FairValue(ctx context.Context, manufacturer, model string, year, mileage int) (domain.FairValueQuote, error) {
	key := quoteKey(manufacturer, model, year, mileage)

	if quote, ok := c.fromCache(ctx, key, true); ok {
		c.log.Debug().Str("quote_key", key).Msg("Cache hit")
		return quote, nil
	}

	quote, err := c.fetch(ctx, manufacturer, model, year, mileage)
	if err != nil {
		if stale, ok := c.fromCache(ctx, key, false); ok {
			c.log.Warn().
				Err(err).
				Str("quote_key", key).
				Float64("fair_value", stale.FairValue).
				Msg("Market data request failed, using stale cached quote")
			return stale, nil
		}
		return domain.FairValueQuote{}, err
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store(ctx, clientdata.TableFairValueQuotes, key, quote, clientdata.TTLFairValueQuote); err != nil {
			c.log.Warn().Err(err).Str("quote_key", key).Msg("Failed to cache fair value quote")
		}
	}

	c.log.Info().
		Str("quote_key", key).
		Float64("fair_value", quote.FairValue).
		Str("confidence", string(quote.Confidence)).
		Msg("Fetched fair value")

	return quote, nil
}

func (c *Client) fetch(ctx context.Context, manufacturer, model string, year, mileage int) (domain.FairValueQuote, error) {
	if c.baseURL == "" {
		return domain.FairValueQuote{}, fmt.Errorf("market data provider not configured: %w", domain.ErrProviderUnavailable)
	}

	params := url.Values{}
	params.Set("make", manufacturer)
	params.Set("model", model)
	params.Set("year", strconv.Itoa(year))
	params.Set("mileage", strconv.Itoa(mileage))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+fairValuePath+"?"+params.Encode(), nil)
	if err != nil {
		return domain.FairValueQuote{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.FairValueQuote{}, fmt.Errorf("market data request failed: %w: %w", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.FairValueQuote{}, fmt.Errorf("market data returned status %d: %w", resp.StatusCode, domain.ErrProviderUnavailable)
	}

	var result fairValueResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return domain.FairValueQuote{}, fmt.Errorf("failed to parse response: %w: %w", domain.ErrProviderUnavailable, err)
	}
	if result.FairValue <= 0 {
		return domain.FairValueQuote{}, fmt.Errorf("market data returned fair value %.2f: %w", result.FairValue, domain.ErrProviderUnavailable)
	}

	return domain.FairValueQuote{
		FetchedAt:  c.now().UTC(),
		Source:     result.Source,
		Confidence: parseConfidence(result.Confidence),
		FairValue:  result.FairValue,
	}, nil
}

// parseConfidence maps unknown grades to low
func parseConfidence(s string) domain.ValueConfidence {
	switch c := domain.ValueConfidence(strings.ToLower(strings.TrimSpace(s))); c {
	case domain.ConfidenceHigh, domain.ConfidenceMedium:
		return c
	default:
		return domain.ConfidenceLow
	}
}

func (c *Client) fromCache(ctx context.Context, key string, freshOnly bool) (domain.FairValueQuote, bool) {
	if c.cacheRepo == nil {
		return domain.FairValueQuote{}, false
	}

	var (
		data json.RawMessage
		err  error
	)
	if freshOnly {
		data, err = c.cacheRepo.GetIfFresh(ctx, clientdata.TableFairValueQuotes, key)
	} else {
		data, err = c.cacheRepo.Get(ctx, clientdata.TableFairValueQuotes, key)
	}
	if err != nil || data == nil {
		return domain.FairValueQuote{}, false
	}

	var quote domain.FairValueQuote
	if err := json.Unmarshal(data, &quote); err != nil {
		return domain.FairValueQuote{}, false
	}
	return quote, true
}
