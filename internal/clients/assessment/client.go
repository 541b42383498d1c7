// Package assessment provides a client for the AI assessment provider.
// The provider runs a named prompt against template variables and answers with
// a JSON document whose shape depends on the prompt.
package assessment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aristath/dealeval/internal/domain"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	assessPath = "/v1/assess"
	// Error bodies are only read for logging
	maxErrorBody = 4 << 10
)

// Config configures the client
type Config struct {
	BaseURL       string
	APIKey        string
	Timeout       time.Duration
	RatePerSecond float64
}

type assessRequest struct {
	PromptID  string         `json:"prompt_id"`
	Variables map[string]any `json:"variables"`
}

type assessResponse struct {
	Output json.RawMessage `json:"output"`
	Error  string          `json:"error,omitempty"`
}

// Client calls the assessment provider over HTTP.
// Requests are rate limited client-side; a request waiting for a token gives
// up when its context is done.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// NewClient creates a new assessment provider client
func NewClient(cfg Config, log zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	limit := rate.Inf
	burst := 1
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
		burst = max(1, int(cfg.RatePerSecond))
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, burst),
		log:        log.With().Str("client", "assessment").Logger(),
	}
}

// Assess runs promptID with variables and returns the provider's output document.
// Every failure wraps domain.ErrProviderUnavailable so callers can fall back.
func (c *Client) Assess(ctx context.Context, promptID string, variables map[string]any) (json.RawMessage, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("assessment provider not configured: %w", domain.ErrProviderUnavailable)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("assessment rate limit wait: %w: %w", domain.ErrProviderUnavailable, err)
	}

	body, err := json.Marshal(assessRequest{PromptID: promptID, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal assessment request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+assessPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("assessment request failed: %w: %w", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.log.Warn().
			Str("prompt_id", promptID).
			Int("status", resp.StatusCode).
			Str("body", string(snippet)).
			Msg("Assessment provider returned error status")
		return nil, fmt.Errorf("assessment provider returned status %d: %w", resp.StatusCode, domain.ErrProviderUnavailable)
	}

	var result assessResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse assessment response: %w: %w", domain.ErrProviderUnavailable, err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("assessment provider error %q: %w", result.Error, domain.ErrProviderUnavailable)
	}
	if len(result.Output) == 0 || string(result.Output) == "null" {
		return nil, fmt.Errorf("assessment response has no output: %w", domain.ErrProviderUnavailable)
	}

	c.log.Debug().
		Str("prompt_id", promptID).
		Dur("duration", time.Since(start)).
		Msg("Assessment completed")

	return result.Output, nil
}
