package guard

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ctxpkg "github.com/stupiduntilnot/cryptodesk/internal/context"
	"github.com/stupiduntilnot/cryptodesk/internal/dummy"
	"github.com/stupiduntilnot/cryptodesk/internal/model"
)

func newGate(t *testing.T, script string) (*Gate, *dummy.Provider) {
	t.Helper()
	p, err := dummy.NewProvider("test", script)
	require.NoError(t, err)
	return NewGate(p, zerolog.Nop()), p
}

func TestClassify_Violation(t *testing.T) {
	g, p := newGate(t, "msg:  violation \n")
	v := g.Classify(context.Background(), "What will Bitcoin's price be next month?")

	assert.Equal(t, Deny, v.Decision)
	assert.False(t, v.Allowed())
	assert.Equal(t, RefusalMessage, v.Message)

	reqs := p.Requests()
	require.Len(t, reqs, 1)
	require.Len(t, reqs[0].Messages, 2)
	assert.Equal(t, PolicyPrompt, reqs[0].Messages[0].Content)
	assert.Equal(t, "What will Bitcoin's price be next month?", reqs[0].Messages[1].Content)
	assert.Empty(t, reqs[0].Tools)
}

func TestClassify_Safe(t *testing.T) {
	g, _ := newGate(t, "msg:SAFE")
	v := g.Classify(context.Background(), "What is the price of Bitcoin?")
	assert.Equal(t, Allow, v.Decision)
	assert.True(t, v.Allowed())
	assert.Empty(t, v.Message)
}

func TestClassify_UnexpectedReplyAllows(t *testing.T) {
	g, _ := newGate(t, "msg:I am not sure")
	assert.True(t, g.Classify(context.Background(), "hello").Allowed())
}

func TestClassify_FailOpen(t *testing.T) {
	for _, script := range []string{"err:provider_api", "ratelimit:quota"} {
		g, _ := newGate(t, script)
		v := g.Classify(context.Background(), "Should I buy Solana?")
		assert.Equal(t, Allow, v.Decision, script)
	}
}

func TestClassify_FailOpenOnTimeout(t *testing.T) {
	g, _ := newGate(t, "sleep:5000")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.True(t, g.Classify(ctx, "Should I buy Solana?").Allowed())
}

func TestClassifyTurns_LatestOnly(t *testing.T) {
	g, p := newGate(t, "msg:SAFE")
	turns := []ctxpkg.Turn{
		{Role: "user", Content: "Should I buy Bitcoin?"},
		{Role: "assistant", Content: "I cannot help with that."},
		{Role: "user", Content: "What is the price of Ethereum?"},
	}
	v := g.ClassifyTurns(context.Background(), turns)
	assert.True(t, v.Allowed())

	reqs := p.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "What is the price of Ethereum?", reqs[0].Messages[1].Content)
}

func TestClassify_NoOutputCap(t *testing.T) {
	g, p := newGate(t, "msg:SAFE")
	g.Classify(context.Background(), "price of bitcoin?")
	assert.Zero(t, p.Requests()[0].MaxTokens)
}

func TestClassify_EmptyVerdictAllows(t *testing.T) {
	for _, script := range []string{"msg:" + model.EmptyResponse, "msg:   "} {
		g, _ := newGate(t, script)
		v := g.Classify(context.Background(), "Should I buy Solana?")
		assert.Equal(t, Allow, v.Decision, script)
		assert.Empty(t, v.Message, script)
	}
}
