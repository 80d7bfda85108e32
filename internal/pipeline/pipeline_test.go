package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stupiduntilnot/cryptodesk/internal/agent"
	"github.com/stupiduntilnot/cryptodesk/internal/cache"
	ctxpkg "github.com/stupiduntilnot/cryptodesk/internal/context"
	"github.com/stupiduntilnot/cryptodesk/internal/control"
	"github.com/stupiduntilnot/cryptodesk/internal/dummy"
	"github.com/stupiduntilnot/cryptodesk/internal/guard"
	"github.com/stupiduntilnot/cryptodesk/internal/market"
	"github.com/stupiduntilnot/cryptodesk/internal/summary"
	toolpkg "github.com/stupiduntilnot/cryptodesk/internal/tool"
)

type stubAnswerer struct {
	calls   int
	summary string
	message string
	reply   string
	err     error
}

func (s *stubAnswerer) Answer(ctx context.Context, summary, message string) (agent.Answer, error) {
	s.calls++
	s.summary = summary
	s.message = message
	return agent.Answer{Reply: s.reply, Turns: 1, Fetched: true}, s.err
}

type stubSummarizer struct {
	calls int
	out   string
}

func (s *stubSummarizer) Update(ctx context.Context, prior, user, reply string) string {
	s.calls++
	return s.out
}

func newGate(t *testing.T, script string) *guard.Gate {
	t.Helper()
	p, err := dummy.NewProvider("gate", script)
	require.NoError(t, err)
	return guard.NewGate(p, zerolog.Nop())
}

func TestRun_DeniedKeepsSummary(t *testing.T) {
	ans := &stubAnswerer{reply: "unused"}
	sum := &stubSummarizer{out: "unused"}
	o := New(newGate(t, "msg:VIOLATION"), ans, sum, zerolog.Nop())

	prior := "User asked about  Bitcoin.\n"
	res, err := o.Run(context.Background(), Request{
		Message: "What will Bitcoin's price be next month?",
		Summary: prior,
	})
	require.NoError(t, err)
	assert.True(t, res.Denied)
	assert.Equal(t, guard.RefusalMessage, res.Answer)
	assert.Equal(t, prior, res.Summary)
	assert.Equal(t, 0, ans.calls)
	assert.Equal(t, 0, sum.calls)
	assert.NotEmpty(t, res.ExchangeID)
}

func TestRun_FailOpenGateAnswers(t *testing.T) {
	ans := &stubAnswerer{reply: "Bitcoin is $93,750."}
	sum := &stubSummarizer{out: "User asked about Bitcoin."}
	o := New(newGate(t, "err:provider_api"), ans, sum, zerolog.Nop())

	res, err := o.Run(context.Background(), Request{Message: "price of bitcoin?"})
	require.NoError(t, err)
	assert.False(t, res.Denied)
	assert.Equal(t, "Bitcoin is $93,750.", res.Answer)
	assert.Equal(t, "User asked about Bitcoin.", res.Summary)
	assert.Equal(t, 1, ans.calls)
	assert.Equal(t, 1, sum.calls)
}

func TestRun_LegacyHistory(t *testing.T) {
	ans := &stubAnswerer{reply: "ok"}
	o := New(newGate(t, "msg:SAFE"), ans, &stubSummarizer{out: "s"}, zerolog.Nop())

	_, err := o.Run(context.Background(), Request{History: []ctxpkg.Turn{
		{Role: "user", Content: "Should I buy?"},
		{Role: "assistant", Content: "No advice."},
		{Role: "user", Content: "Price of Solana?"},
	}})
	require.NoError(t, err)
	assert.Equal(t, "Price of Solana?", ans.message)
}

func TestRun_EmptyMessage(t *testing.T) {
	o := New(newGate(t, "msg:SAFE"), &stubAnswerer{}, &stubSummarizer{}, zerolog.Nop())
	_, err := o.Run(context.Background(), Request{Message: "   "})
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestRun_AnswerErrorSkipsSummary(t *testing.T) {
	boom := errors.New("boom")
	sum := &stubSummarizer{}
	o := New(newGate(t, "msg:SAFE"), &stubAnswerer{err: boom}, sum, zerolog.Nop())
	_, err := o.Run(context.Background(), Request{Message: "hi"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, sum.calls)
}

// End to end with the scripted provider: two exchanges thread the summary.
func TestRun_SummaryThreading(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("ids") {
		case "bitcoin":
			w.Write([]byte(`[{"id":"bitcoin","name":"Bitcoin","symbol":"btc","current_price":93750}]`))
		default:
			w.Write([]byte(`[{"id":"ethereum","name":"Ethereum","symbol":"eth","current_price":3200}]`))
		}
	}))
	defer srv.Close()

	answerModel, err := dummy.NewProvider("answer", dummy.CallAction(toolpkg.MarketDataName, map[string]string{"coin_ids": "bitcoin"})+
		",msg:Bitcoin is $93750.,"+
		dummy.CallAction(toolpkg.MarketDataName, map[string]string{"coin_ids": "ethereum"})+
		",msg:Ethereum is $3200.")
	require.NoError(t, err)
	summaryModel, err := dummy.NewProvider("summary", "echo")
	require.NoError(t, err)

	fetcher := market.NewFetcher(srv.URL, cache.NewMemoryStore(), time.Second, zerolog.Nop())
	reg := toolpkg.NewRegistry()
	require.NoError(t, reg.Register(toolpkg.NewMarketData(fetcher)))

	o := New(
		newGate(t, "msg:SAFE"),
		agent.New(answerModel, reg, control.DefaultPolicy(), zerolog.Nop()),
		summary.NewSummarizer(summaryModel, 0, zerolog.Nop()),
		zerolog.Nop(),
	)

	first, err := o.Run(context.Background(), Request{Message: "Price of Bitcoin?"})
	require.NoError(t, err)
	assert.Equal(t, "Bitcoin is $93750.", first.Answer)
	require.NotEmpty(t, first.Summary)

	second, err := o.Run(context.Background(), Request{Message: "And Ethereum?", Summary: first.Summary})
	require.NoError(t, err)
	assert.Equal(t, "Ethereum is $3200.", second.Answer)
	assert.NotEmpty(t, second.Summary)
	assert.NotEqual(t, first.Summary, second.Summary)
	assert.Contains(t, second.Summary, "Bitcoin")
	assert.Contains(t, second.Summary, "Ethereum")
	assert.NotEqual(t, first.ExchangeID, second.ExchangeID)
}
