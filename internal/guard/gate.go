// Package guard classifies user utterances against the content policy
// before any answer is generated.
package guard

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	ctxpkg "github.com/stupiduntilnot/cryptodesk/internal/context"
	"github.com/stupiduntilnot/cryptodesk/internal/model"
)

// Decision is the outcome of a classification.
type Decision string

const (
	Allow Decision = "ALLOW"
	Deny  Decision = "DENY"
)

// RefusalMessage is returned to the user when an utterance is denied.
const RefusalMessage = "I cannot provide predictions, investment advice, or answers to hypothetical questions. " +
	"I can only help with current cryptocurrency market data and information."

// PolicyPrompt is the classifier instruction.
const PolicyPrompt = `You are a strict content safety classifier for a Crypto Agent.
Analyze the user's input. It violates policy if it asks for:
1. Price predictions or future analysis (e.g. "Will BTC hit 100k?", "What will ETH be worth next year?").
2. Investment or financial advice (e.g. "Should I buy?", "Is this a good investment?").
3. Hypothetical what-if price scenarios (e.g. "What if SOL doubles?").
Questions about current prices, market caps, rankings and general facts are allowed.
Reply with 'VIOLATION' if it matches any criteria. Reply 'SAFE' otherwise.`

const violationMarker = "VIOLATION"

// Verdict is the gate's classification of one utterance.
type Verdict struct {
	Decision Decision
	Message  string
}

// Allowed reports whether the utterance may proceed.
func (v Verdict) Allowed() bool {
	return v.Decision != Deny
}

// Gate is the safety classifier.
type Gate struct {
	provider model.Provider
	log      zerolog.Logger
}

func NewGate(provider model.Provider, log zerolog.Logger) *Gate {
	return &Gate{
		provider: provider,
		log:      log.With().Str("component", "guard").Logger(),
	}
}

// Classify makes one backend call for utterance. Backend failures allow the
// utterance through.
func (g *Gate) Classify(ctx context.Context, utterance string) Verdict {
	resp, err := g.provider.ChatCompletion(ctx, model.Request{
		Messages: []ctxpkg.Message{
			{Role: ctxpkg.RoleSystem, Content: PolicyPrompt},
			{Role: ctxpkg.RoleUser, Content: utterance},
		},
	})
	if err != nil {
		g.log.Warn().
			Err(err).
			Str("policy", "fail_open").
			Msg("guardrail backend failed, allowing utterance")
		return Verdict{Decision: Allow}
	}

	if resp.IsEmpty() {
		g.log.Warn().
			Str("policy", "fail_open").
			Msg("guardrail backend returned an empty verdict, allowing utterance")
		return Verdict{Decision: Allow}
	}
	if strings.Contains(strings.ToUpper(strings.TrimSpace(resp.Content)), violationMarker) {
		g.log.Info().Str("decision", string(Deny)).Msg("utterance denied")
		return Verdict{Decision: Deny, Message: RefusalMessage}
	}
	g.log.Debug().Str("decision", string(Allow)).Msg("utterance allowed")
	return Verdict{Decision: Allow}
}

// ClassifyTurns classifies only the latest turn of a role/content history.
func (g *Gate) ClassifyTurns(ctx context.Context, turns []ctxpkg.Turn) Verdict {
	return g.Classify(ctx, ctxpkg.LatestContent(turns))
}
