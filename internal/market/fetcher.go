// Package market resolves coin ids to current market data, consulting the
// cache first and calling the market API only for missing or stale ids.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/stupiduntilnot/cryptodesk/internal/cache"
)

const (
	// VsCurrency is the quote currency of every request.
	VsCurrency = "usd"
	// PageSize is the number of coins requested per call.
	PageSize = 10
)

// Fetcher resolves ids to cache entries.
type Fetcher struct {
	baseURL string
	client  *http.Client
	store   cache.Store
	now     func() time.Time
	log     zerolog.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithClock overrides the clock used to stamp fetched prices.
func WithClock(now func() time.Time) FetcherOption {
	return func(f *Fetcher) {
		f.now = now
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.client = c
	}
}

// NewFetcher creates a Fetcher. An empty baseURL is accepted here and
// reported as a ConfigError on the first fetch that needs the network.
func NewFetcher(baseURL string, store cache.Store, timeout time.Duration, log zerolog.Logger, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		baseURL: strings.TrimSpace(baseURL),
		client:  &http.Client{Timeout: timeout},
		store:   store,
		now:     time.Now,
		log:     log.With().Str("component", "market").Logger(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

type rawCoin struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Symbol       string              `json:"symbol"`
	CurrentPrice decimal.NullDecimal `json:"current_price"`
	MarketCap    decimal.NullDecimal `json:"market_cap"`
	Change24h    decimal.NullDecimal `json:"price_change_percentage_24h"`
}

// Fetch returns market data for ids. Empty ids selects the top coins by
// market cap; that mode never reads the cache but writes every returned
// coin through to it.
func (f *Fetcher) Fetch(ctx context.Context, ids []string) ([]cache.Entry, error) {
	requested := NormalizeIDs(ids)
	topMode := len(requested) == 0

	var hits []cache.Entry
	var misses []string
	if !topMode {
		hits, misses = f.store.Lookup(requested)
		if len(misses) == 0 {
			f.log.Debug().Strs("ids", requested).Msg("all data retrieved from cache")
			return hits, nil
		}
		f.log.Debug().
			Int("hits", len(hits)).
			Strs("misses", misses).
			Msg("cache partially satisfied request")
	}

	if f.baseURL == "" {
		return nil, &ConfigError{Key: "COIN_API_URL", Message: "COIN_API_URL is missing in environment variables."}
	}

	coins, err := f.request(ctx, misses)
	if err != nil {
		f.log.Warn().Err(err).Strs("ids", misses).Msg("market api call failed")
		return nil, err
	}

	stamp := f.now().UTC().Truncate(time.Second)
	fetched := make([]cache.Entry, 0, len(coins))
	for _, c := range coins {
		id := strings.ToLower(strings.TrimSpace(c.ID))
		if id == "" {
			continue
		}
		fetched = append(fetched, cache.Entry{
			ID:             id,
			Name:           c.Name,
			Symbol:         strings.ToUpper(c.Symbol),
			LastPrice:      c.CurrentPrice.Decimal,
			MarketCap:      c.MarketCap.Decimal,
			Change24h:      c.Change24h.Decimal,
			PriceTimestamp: stamp,
		})
	}
	if len(fetched) > 0 {
		if err := f.store.Upsert(fetched); err != nil {
			f.log.Warn().Err(err).Msg("failed to write market cache")
		}
	}
	f.log.Info().
		Bool("top", topMode).
		Int("cached", len(hits)).
		Int("fetched", len(fetched)).
		Msg("market data fetched")

	return merge(hits, fetched), nil
}

func (f *Fetcher) request(ctx context.Context, ids []string) ([]rawCoin, error) {
	u, err := url.Parse(f.baseURL)
	if err != nil {
		return nil, &ConfigError{Key: "COIN_API_URL", Message: fmt.Sprintf("COIN_API_URL is invalid: %v", err)}
	}
	q := u.Query()
	q.Set("vs_currency", VsCurrency)
	q.Set("order", "market_cap_desc")
	q.Set("per_page", strconv.Itoa(PageSize))
	q.Set("page", "1")
	q.Set("sparkline", "false")
	if len(ids) > 0 {
		q.Set("ids", strings.Join(ids, ","))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &TransportError{Message: err.Error(), Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &TransportError{Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Status: resp.StatusCode, Message: err.Error(), Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{Status: resp.StatusCode, Message: truncate(strings.TrimSpace(string(body)), 400)}
	}

	var coins []rawCoin
	if err := json.Unmarshal(body, &coins); err != nil {
		return nil, &TransportError{Status: resp.StatusCode, Message: fmt.Sprintf("failed to parse market response: %v", err), Err: err}
	}
	return coins, nil
}

func merge(hits, fetched []cache.Entry) []cache.Entry {
	out := make([]cache.Entry, 0, len(hits)+len(fetched))
	seen := map[string]bool{}
	for _, group := range [][]cache.Entry{hits, fetched} {
		for _, e := range group {
			if seen[e.ID] {
				continue
			}
			seen[e.ID] = true
			out = append(out, e)
		}
	}
	return out
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
