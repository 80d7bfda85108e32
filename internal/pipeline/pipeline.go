// Package pipeline runs one chat exchange through the safety gate, the
// answerer and the summarizer.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stupiduntilnot/cryptodesk/internal/agent"
	ctxpkg "github.com/stupiduntilnot/cryptodesk/internal/context"
	"github.com/stupiduntilnot/cryptodesk/internal/guard"
)

// State is a stage of one exchange.
type State string

const (
	StateStart       State = "START"
	StateGateCheck   State = "GATE_CHECK"
	StateDenied      State = "DENIED"
	StateAnswering   State = "ANSWERING"
	StateSummarizing State = "SUMMARIZING"
	StateDone        State = "DONE"
)

// Request is one user exchange. History is the legacy structured input;
// when Message is empty the latest turn's content is used.
type Request struct {
	Message string
	Summary string
	History []ctxpkg.Turn
}

// Result is the outcome of one exchange.
type Result struct {
	ExchangeID string
	Answer     string
	Summary    string
	Denied     bool
}

// Gate classifies an utterance.
type Gate interface {
	Classify(ctx context.Context, utterance string) guard.Verdict
}

// Answerer produces a reply from the prior summary and the user message.
type Answerer interface {
	Answer(ctx context.Context, summary, message string) (agent.Answer, error)
}

// Summarizer folds one exchange into the prior summary.
type Summarizer interface {
	Update(ctx context.Context, prior, user, reply string) string
}

// ErrEmptyMessage is returned when a request carries no user text.
var ErrEmptyMessage = fmt.Errorf("validation: message is required")

// Orchestrator sequences the stages of an exchange.
type Orchestrator struct {
	gate       Gate
	answerer   Answerer
	summarizer Summarizer
	log        zerolog.Logger
}

func New(gate Gate, answerer Answerer, summarizer Summarizer, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		gate:       gate,
		answerer:   answerer,
		summarizer: summarizer,
		log:        log.With().Str("component", "pipeline").Logger(),
	}
}

// Run executes the exchange. A denied exchange returns the refusal and the
// prior summary unchanged without invoking the answerer or summarizer.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Result, error) {
	res := Result{ExchangeID: uuid.NewString()}
	log := o.log.With().Str("exchange_id", res.ExchangeID).Logger()
	state := StateStart
	transition := func(next State) {
		log.Info().Str("from", string(state)).Str("to", string(next)).Msg("state transition")
		state = next
	}

	message := req.Message
	if strings.TrimSpace(message) == "" {
		message = ctxpkg.LatestContent(req.History)
	}
	if strings.TrimSpace(message) == "" {
		return res, ErrEmptyMessage
	}

	transition(StateGateCheck)
	verdict := o.gate.Classify(ctx, message)
	if !verdict.Allowed() {
		transition(StateDenied)
		res.Denied = true
		res.Answer = verdict.Message
		res.Summary = req.Summary
		transition(StateDone)
		return res, nil
	}

	transition(StateAnswering)
	answer, err := o.answerer.Answer(ctx, req.Summary, message)
	if err != nil {
		log.Error().Err(err).Str("state", string(state)).Msg("exchange failed")
		return res, err
	}
	res.Answer = answer.Reply

	transition(StateSummarizing)
	res.Summary = o.summarizer.Update(ctx, req.Summary, message, answer.Reply)

	transition(StateDone)
	log.Info().
		Int("turns", answer.Turns).
		Int("tool_calls", answer.ToolCalls).
		Bool("fetched", answer.Fetched).
		Msg("exchange completed")
	return res, nil
}
