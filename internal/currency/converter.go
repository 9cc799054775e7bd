// Package currency converts transaction amounts into the reference
// currency (USD).
//
// Conversion uses a static rate table by default. When an exchange-rate API
// key is configured, rates are fetched live from the pair endpoint and cached
// with a TTL, falling back to the static table only for the reference
// currency itself. Rates are parsed into decimal.Decimal without an
// intermediate float so no precision is lost.
package currency

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/upagupta2003/sales-analytics/internal/utils"
)

// ReferenceCurrency is the currency all aggregates are expressed in.
const ReferenceCurrency = "USD"

var (
	// ErrInvalidConfig indicates that the provided Config contains invalid values.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrRateUnavailable indicates the live rate endpoint returned a
	// non-success result for a requested currency pair.
	ErrRateUnavailable = errors.New("conversion rate unavailable")
)

// staticRates maps supported origin currencies to their USD rate.
// Used when no live rate source is configured.
var staticRates = map[string]decimal.Decimal{
	"USD": decimal.NewFromInt(1),
	"EUR": decimal.RequireFromString("1.1"),
	"GBP": decimal.RequireFromString("1.27"),
	"JPY": decimal.RequireFromString("0.0067"),
	"AUD": decimal.RequireFromString("0.65"),
}

// defaultConfig provides sensible default configuration values.
var defaultConfig = Config{
	BaseURL:     "https://v6.exchangerate-api.com/v6",
	CacheTTL:    time.Hour,
	HTTPTimeout: 10 * time.Second,
}

// Config defines settings for the Converter.
type Config struct {
	// APIKey enables the live rate source when non-empty.
	APIKey string

	// BaseURL is the root of the exchange-rate pair API.
	BaseURL string

	// CacheTTL is how long a fetched rate stays valid.
	CacheTTL time.Duration

	// HTTPTimeout bounds a single rate fetch.
	HTTPTimeout time.Duration
}

// validateConfig ensures all required configuration fields are present and
// valid, applying defaults for optional fields.
func validateConfig(cfg *Config, defaultCfg *Config) error {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultCfg.BaseURL
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCfg.CacheTTL
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = defaultCfg.HTTPTimeout
	}
	return nil
}

// cachedRate is one TTL-bounded live rate.
type cachedRate struct {
	rate      decimal.Decimal
	fetchedAt time.Time
}

// pairResponse is the wire format of the exchange-rate pair endpoint.
//
// ConversionRate is decoded as a json.Number and converted straight to
// decimal, avoiding float64 rounding.
type pairResponse struct {
	Result         string      `json:"result" validate:"required"`
	ConversionRate json.Number `json:"conversion_rate"`
}

// Converter converts origin-currency amounts into USD.
type Converter struct {
	cfg      Config
	client   *http.Client
	validate *validator.Validate

	mu    sync.Mutex
	cache map[string]cachedRate
}

// NewConverter creates a converter with the specified configuration.
// A nil configuration selects the static rate table with defaults.
func NewConverter(cfg *Config) (*Converter, error) {
	if cfg == nil {
		cfg = &defaultConfig
	}

	if err := validateConfig(cfg, &defaultConfig); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return &Converter{
		cfg:      *cfg,
		client:   &http.Client{Timeout: cfg.HTTPTimeout},
		validate: validator.New(),
		cache:    make(map[string]cachedRate),
	}, nil
}

// ConvertToUSD converts amount from the given origin currency into USD,
// rounded to two decimal places.
func (c *Converter) ConvertToUSD(ctx context.Context, amount decimal.Decimal, from string) (decimal.Decimal, error) {
	code, err := utils.NormalizeCurrency(from)
	if err != nil {
		return decimal.Zero, err
	}

	if code == ReferenceCurrency {
		return amount.Round(2), nil
	}

	rate, err := c.rate(ctx, code)
	if err != nil {
		return decimal.Zero, err
	}

	return amount.Mul(rate).Round(2), nil
}

// rate resolves the USD rate for a supported, normalized currency code.
func (c *Converter) rate(ctx context.Context, code string) (decimal.Decimal, error) {
	if c.cfg.APIKey == "" {
		return staticRates[code], nil
	}

	c.mu.Lock()
	cached, ok := c.cache[code]
	c.mu.Unlock()
	if ok && time.Since(cached.fetchedAt) < c.cfg.CacheTTL {
		return cached.rate, nil
	}

	rate, err := c.fetchRate(ctx, code)
	if err != nil {
		return decimal.Zero, err
	}

	c.mu.Lock()
	c.cache[code] = cachedRate{rate: rate, fetchedAt: time.Now()}
	c.mu.Unlock()

	return rate, nil
}

// fetchRate queries the live pair endpoint for the code->USD rate.
func (c *Converter) fetchRate(ctx context.Context, code string) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s/%s/pair/%s/%s", c.cfg.BaseURL, c.cfg.APIKey, code, ReferenceCurrency)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to build rate request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to fetch rate for %s: %w", code, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("%w: %s returned status %d", ErrRateUnavailable, code, resp.StatusCode)
	}

	var body pairResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		log.Error().Err(err).Str("currency", code).Msg("invalid rate response JSON")
		return decimal.Zero, fmt.Errorf("failed to decode rate response: %w", err)
	}

	if err := c.validate.Struct(&body); err != nil {
		log.Warn().Err(err).Str("currency", code).Msg("rate response validation failed")
		return decimal.Zero, fmt.Errorf("invalid rate response: %w", err)
	}

	if body.Result != "success" {
		return decimal.Zero, fmt.Errorf("%w: result %q for %s", ErrRateUnavailable, body.Result, code)
	}

	rate, err := decimal.NewFromString(body.ConversionRate.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("malformed conversion rate %q: %w", body.ConversionRate, err)
	}

	return rate, nil
}
