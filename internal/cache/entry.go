// Package cache stores market-data entries keyed by canonical coin id and
// decides which of them are still fresh.
package cache

import (
	"time"

	"github.com/shopspring/decimal"
)

// FreshnessWindow is the maximum age of a cached price before it is treated
// as a miss.
const FreshnessWindow = 2 * time.Hour

// Entry is one cached coin record. PriceTimestamp is the moment the price
// was fetched from the market API.
type Entry struct {
	ID             string          `json:"id"`
	Name           string          `json:"coin"`
	Symbol         string          `json:"symbol"`
	LastPrice      decimal.Decimal `json:"last_price"`
	MarketCap      decimal.Decimal `json:"market_cap"`
	Change24h      decimal.Decimal `json:"price_change_percentage_24h"`
	PriceTimestamp time.Time       `json:"price_timestamp"`
}

// FreshAt reports whether the entry is younger than FreshnessWindow at now.
func (e Entry) FreshAt(now time.Time) bool {
	if e.PriceTimestamp.IsZero() {
		return false
	}
	return now.Sub(e.PriceTimestamp) < FreshnessWindow
}

// Store is the durable cache abstraction used by the market fetcher.
type Store interface {
	// Lookup splits ids into fresh hits (in request order) and misses.
	// Expired entries are misses but stay in the store.
	Lookup(ids []string) (hits []Entry, misses []string)
	// Upsert merges entries into the store, replacing any existing entry
	// with the same id.
	Upsert(entries []Entry) error
}

// Option configures a store.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the clock used for freshness checks.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func split(all map[string]Entry, ids []string, now time.Time) ([]Entry, []string) {
	var hits []Entry
	var misses []string
	for _, id := range ids {
		if e, ok := all[id]; ok && e.FreshAt(now) {
			hits = append(hits, e)
			continue
		}
		misses = append(misses, id)
	}
	return hits, misses
}
