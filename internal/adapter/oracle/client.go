package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"crypto-card-service/config"
	"crypto-card-service/internal/core/domain"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client implements ports.RateOracle against an HTTP rate provider.
// Any transport, status or decode failure is returned as an error; the
// caller maps it to its own taxonomy.
type Client struct {
	baseURL    string
	httpClient HTTPClient
	log        zerolog.Logger
}

// rateResponse is the provider's wire format. Rates come as strings to
// avoid binary floating point on the wire.
type rateResponse struct {
	Rate      string `json:"rate"`
	Timestamp int64  `json:"timestamp"`
}

// NewClient creates a rate oracle client with the configured timeout.
func NewClient(cfg config.OracleConfig, log zerolog.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		log: log,
	}
}

// NewClientWithHTTP creates a client with a custom HTTP client (useful for testing).
func NewClientWithHTTP(baseURL string, httpClient HTTPClient, log zerolog.Logger) *Client {
	return &Client{baseURL: baseURL, httpClient: httpClient, log: log}
}

// GetRate fetches the current exchange rate for a currency pair. The
// context deadline bounds the round trip.
func (c *Client) GetRate(ctx context.Context, from, to domain.CurrencyKind) (decimal.Decimal, time.Time, error) {
	endpoint := fmt.Sprintf("%s/rates?%s", c.baseURL, url.Values{
		"from": {string(from)},
		"to":   {string(to)},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("build rate request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("rate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, time.Time{}, fmt.Errorf("rate provider returned status %d", resp.StatusCode)
	}

	var body rateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("decode rate response: %w", err)
	}

	rate, err := decimal.NewFromString(body.Rate)
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("parse rate %q: %w", body.Rate, err)
	}
	if !rate.IsPositive() {
		return decimal.Zero, time.Time{}, fmt.Errorf("rate provider returned non-positive rate %s", rate)
	}

	c.log.Debug().
		Str("from", string(from)).
		Str("to", string(to)).
		Str("rate", rate.String()).
		Msg("rate fetched")

	return rate, time.Unix(body.Timestamp, 0).UTC(), nil
}
