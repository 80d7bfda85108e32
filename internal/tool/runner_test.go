package tool

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stupiduntilnot/cryptodesk/internal/cache"
	"github.com/stupiduntilnot/cryptodesk/internal/market"
)

func marketRunner(t *testing.T, f CoinFetcher, limits Limits) *Runner {
	t.Helper()
	reg := NewRegistry()
	if err := reg.Register(NewMarketData(f)); err != nil {
		t.Fatal(err)
	}
	return NewRunner(reg, limits)
}

func TestRunner_RunOne_MarketData(t *testing.T) {
	f := &stubFetcher{entries: []cache.Entry{btc()}}
	r := marketRunner(t, f, Limits{MaxBytes: 4096})
	res, err := r.RunOne(context.Background(), Call{Name: " " + MarketDataName + " ", Arguments: json.RawMessage(`{"coin_ids":"ethereum, Bitcoin"}`)})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !res.OK || res.TruncatedBytes {
		t.Fatalf("expected untruncated ok result: %+v", res)
	}
	if len(f.gotIDs) != 2 || f.gotIDs[1] != "bitcoin" {
		t.Fatalf("unexpected ids: %v", f.gotIDs)
	}
	if !strings.Contains(res.Content, `"coin":"Bitcoin"`) {
		t.Fatalf("unexpected content: %s", res.Content)
	}
}

func TestRunner_RunOne_TruncatesOutput(t *testing.T) {
	entries := make([]cache.Entry, 50)
	for i := range entries {
		entries[i] = btc()
	}
	r := marketRunner(t, &stubFetcher{entries: entries}, Limits{MaxBytes: 256})
	res, err := r.RunOne(context.Background(), Call{Name: MarketDataName, Arguments: json.RawMessage(`{}`)})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Content) > 256 || !res.TruncatedBytes {
		t.Fatalf("expected truncated content, len=%d truncated=%v", len(res.Content), res.TruncatedBytes)
	}
}

func TestRunner_RunOne_TruncatesErrorPayload(t *testing.T) {
	msg := strings.Repeat("x", 1000)
	r := marketRunner(t, &stubFetcher{err: &market.TransportError{Status: 503, Message: msg}}, Limits{MaxBytes: 64})
	res, err := r.RunOne(context.Background(), Call{Name: MarketDataName, Arguments: json.RawMessage(`{"coin_ids":"bitcoin"}`)})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.OK || len(res.Content) > 64 || !strings.HasPrefix(res.Content, `{"error":"API Error: 503`) {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestRunner_RunOne_ConfigErrorReturned(t *testing.T) {
	r := marketRunner(t, &stubFetcher{err: &market.ConfigError{Key: "COIN_API_URL", Message: "missing"}}, Limits{})
	_, err := r.RunOne(context.Background(), Call{Name: MarketDataName, Arguments: json.RawMessage(`{}`)})
	var ce *market.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestRunner_RunOne_InvalidArguments(t *testing.T) {
	f := &stubFetcher{}
	r := marketRunner(t, f, Limits{})
	_, err := r.RunOne(context.Background(), Call{Name: MarketDataName, Arguments: json.RawMessage(`{"coin_ids":`)})
	if err == nil || !strings.HasPrefix(err.Error(), "validation: ") {
		t.Fatalf("expected validation error, got %v", err)
	}
	if f.calls != 0 {
		t.Fatal("fetcher should not be called")
	}
}

func TestRunner_RunOne_UnknownTool(t *testing.T) {
	r := NewRunner(NewRegistry(), Limits{})
	_, err := r.RunOne(context.Background(), Call{Name: "unknown", Arguments: json.RawMessage(`{}`)})
	if err == nil || !strings.Contains(err.Error(), "unknown tool") {
		t.Fatalf("expected unknown tool error, got %v", err)
	}
}

func TestRunner_RunOne_Uninitialized(t *testing.T) {
	var r *Runner
	if _, err := r.RunOne(context.Background(), Call{Name: MarketDataName}); err == nil {
		t.Fatal("expected error from nil runner")
	}
}
