package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stupiduntilnot/cryptodesk/internal/cache"
	"github.com/stupiduntilnot/cryptodesk/internal/market"
)

// MarketDataName is the model-facing name of the market data tool.
const MarketDataName = "get_crypto_data"

// MarketDataInput is the argument object of get_crypto_data.
type MarketDataInput struct {
	CoinIDs string `json:"coin_ids"`
}

// CoinFetcher resolves coin ids to market data.
type CoinFetcher interface {
	Fetch(ctx context.Context, ids []string) ([]cache.Entry, error)
}

// MarketData exposes the fetcher to the model.
type MarketData struct {
	Fetcher CoinFetcher
}

func NewMarketData(fetcher CoinFetcher) *MarketData {
	return &MarketData{Fetcher: fetcher}
}

func (t *MarketData) Name() string { return MarketDataName }

func (t *MarketData) Description() string {
	return "Fetches current cryptocurrency market data (USD price, market cap, 24h change). " +
		"coin_ids is a comma-separated list of coin ids such as 'bitcoin,ethereum'. " +
		"Leave it empty to get the top 10 coins by market cap."
}

func (t *MarketData) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"coin_ids": map[string]any{
				"type":        "string",
				"description": "Comma-separated coin ids, e.g. 'bitcoin,ethereum'. Empty for the top 10 coins.",
			},
		},
	}
}

func (t *MarketData) Validate(raw json.RawMessage) error {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil
	}
	var in MarketDataInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return fmt.Errorf("invalid %s input: %w", MarketDataName, err)
	}
	return nil
}

// Execute fetches the requested coins. Configuration problems are returned
// as errors; market API failures become an error payload for the model.
func (t *MarketData) Execute(ctx context.Context, raw json.RawMessage) (Result, error) {
	if err := t.Validate(raw); err != nil {
		return Result{OK: false, Content: errorPayload(err.Error())}, err
	}
	var in MarketDataInput
	if len(strings.TrimSpace(string(raw))) > 0 {
		_ = json.Unmarshal(raw, &in)
	}
	ids := market.ParseIDs(in.CoinIDs)

	entries, err := t.Fetcher.Fetch(ctx, ids)
	if err != nil {
		var cfgErr *market.ConfigError
		if errors.As(err, &cfgErr) {
			return Result{OK: false, Content: errorPayload(err.Error())}, err
		}
		return Result{
			OK:      false,
			Content: errorPayload(err.Error()),
			Meta:    map[string]any{"ids": ids},
		}, nil
	}
	if entries == nil {
		entries = []cache.Entry{}
	}

	body, err := json.Marshal(entries)
	if err != nil {
		return Result{OK: false, Content: errorPayload(err.Error())}, err
	}
	return Result{
		OK:      true,
		Content: string(body),
		Meta:    map[string]any{"ids": ids, "coins": len(entries)},
	}, nil
}

func errorPayload(msg string) string {
	b, _ := json.Marshal(map[string]string{"error": msg})
	return string(b)
}
