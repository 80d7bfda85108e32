// Package agent runs the tool-using answer loop: the model is offered the
// market data tool, tool results are fed back, and the first reply without
// tool calls is the answer.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	ctxpkg "github.com/stupiduntilnot/cryptodesk/internal/context"
	"github.com/stupiduntilnot/cryptodesk/internal/control"
	"github.com/stupiduntilnot/cryptodesk/internal/market"
	"github.com/stupiduntilnot/cryptodesk/internal/model"
	toolpkg "github.com/stupiduntilnot/cryptodesk/internal/tool"
)

// Instructions is the system prompt of the answerer.
const Instructions = `You are a professional Cryptocurrency Expert.
You answer questions about current cryptocurrency market data: prices, market caps, 24h changes and rankings.
Always call get_crypto_data before answering with market data. Use lowercase coin ids such as 'bitcoin' or 'ethereum'; leave coin_ids empty for the top 10 coins.
Quote figures in USD exactly as returned by the tool and mention the price timestamp when relevant.
If the tool returns an error, tell the user the data is currently unavailable.
Never give price predictions or investment advice.`

// Answer is the outcome of one answer loop.
type Answer struct {
	Reply     string
	Turns     int
	ToolCalls int
	// Fetched reports whether at least one market data call succeeded.
	Fetched bool
}

// Agent is the tool-using answerer.
type Agent struct {
	provider  model.Provider
	registry  *toolpkg.Registry
	runner    *toolpkg.Runner
	assembler ctxpkg.Assembler
	policy    control.Policy
	limits    toolpkg.Limits
	now       func() time.Time
	log       zerolog.Logger
}

// Option configures an Agent.
type Option func(*Agent)

// WithAssembler overrides the prompt assembler.
func WithAssembler(a ctxpkg.Assembler) Option {
	return func(ag *Agent) {
		ag.assembler = a
	}
}

// WithOutputLimits bounds tool payloads fed back to the model.
func WithOutputLimits(l toolpkg.Limits) Option {
	return func(ag *Agent) {
		ag.limits = l
	}
}

// WithClock overrides the clock used for wall-time checks.
func WithClock(now func() time.Time) Option {
	return func(ag *Agent) {
		ag.now = now
	}
}

func New(provider model.Provider, registry *toolpkg.Registry, policy control.Policy, log zerolog.Logger, opts ...Option) *Agent {
	a := &Agent{
		provider:  provider,
		registry:  registry,
		assembler: &ctxpkg.StandardAssembler{},
		policy:    policy,
		now:       time.Now,
		log:       log.With().Str("component", "agent").Logger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.runner = toolpkg.NewRunner(registry, a.limits)
	return a
}

// Answer produces a reply to message given the prior summary. Configuration
// errors from tools, backend errors and limit violations are returned.
func (a *Agent) Answer(ctx context.Context, summary, message string) (Answer, error) {
	startedAt := a.now()
	var out Answer

	messages := a.assembler.Assemble(Instructions, summary, message)
	specs := a.registry.Specs()
	choice := firstChoice(a.policy)
	var fingerprints []string

	for {
		if err := control.CheckTurnLimit(a.policy, out.Turns); err != nil {
			a.log.Warn().Err(err).Int("turns", out.Turns).Msg("answer loop limit reached")
			return out, err
		}
		if out.Turns == a.policy.MaxTurns-1 && out.Turns > 0 {
			choice = model.ToolChoiceNone
		}
		out.Turns++

		turnStart := a.now()
		resp, err := a.provider.ChatCompletion(ctx, model.Request{
			Messages:   messages,
			Tools:      specs,
			ToolChoice: choice,
		})
		if err != nil {
			return out, fmt.Errorf("answer turn %d: %w", out.Turns, err)
		}
		a.log.Debug().
			Int("turn", out.Turns).
			Str("tool_choice", choice).
			Int("tool_calls", len(resp.ToolCalls)).
			Int64("latency_ms", a.now().Sub(turnStart).Milliseconds()).
			Int("input_tokens", resp.InputTokens).
			Int("output_tokens", resp.OutputTokens).
			Msg("turn completed")
		if err := control.CheckWallTime(a.policy, startedAt, a.now()); err != nil {
			a.log.Warn().Err(err).Msg("answer loop limit reached")
			return out, err
		}

		if len(resp.ToolCalls) == 0 {
			if resp.IsEmpty() {
				return out, fmt.Errorf("validation: empty final reply")
			}
			out.Reply = strings.TrimSpace(resp.Content)
			if !out.Fetched {
				a.log.Warn().
					Str("violation", "tool_use_violation").
					Int("tool_calls", out.ToolCalls).
					Msg("reply produced without market data")
			}
			return out, nil
		}

		messages = append(messages, ctxpkg.Message{
			Role:      ctxpkg.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			res, err := a.execute(ctx, call)
			if err != nil {
				return out, err
			}
			out.ToolCalls++
			if res.OK && call.Name == toolpkg.MarketDataName {
				out.Fetched = true
			}
			messages = append(messages, ctxpkg.Message{
				Role:       ctxpkg.RoleTool,
				Content:    res.Content,
				ToolCallID: call.ID,
				Name:       call.Name,
			})
		}

		fingerprints = append(fingerprints, fingerprint(resp.ToolCalls))
		if control.NoProgress(fingerprints, a.policy.MaxRepeats) {
			a.log.Warn().Int("turn", out.Turns).Msg("repeated tool calls, requesting final answer")
			choice = model.ToolChoiceNone
		} else {
			choice = model.ToolChoiceAuto
		}
	}
}

// execute runs one tool call. Only configuration errors are returned; every
// other failure is reported to the model as an error payload.
func (a *Agent) execute(ctx context.Context, call ctxpkg.ToolCall) (toolpkg.Result, error) {
	started := a.now()
	res, err := a.runner.RunOne(ctx, toolpkg.Call{Name: call.Name, Arguments: call.Arguments})
	if err != nil {
		var cfgErr *market.ConfigError
		if errors.As(err, &cfgErr) {
			a.log.Error().Err(err).Str("tool_name", call.Name).Msg("tool configuration error")
			return toolpkg.Result{}, err
		}
		a.log.Warn().
			Err(err).
			Str("tool_name", call.Name).
			Str("error_class", classifyToolError(err)).
			Msg("tool call failed")
		return toolpkg.Result{OK: false, Content: errorPayload(truncate(err.Error(), 2000))}, nil
	}
	a.log.Info().
		Str("tool_name", call.Name).
		Str("arguments", truncate(string(call.Arguments), 500)).
		Bool("ok", res.OK).
		Bool("truncated_bytes", res.TruncatedBytes).
		Int64("latency_ms", a.now().Sub(started).Milliseconds()).
		Msg("tool call done")
	return res, nil
}

// firstChoice forces a tool call on the first turn only when the policy
// leaves at least one more turn for the answer.
func firstChoice(p control.Policy) string {
	if p.MaxTurns > 1 {
		return model.ToolChoiceRequired
	}
	return model.ToolChoiceAuto
}

func classifyToolError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return "timeout"
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "validation"), strings.Contains(msg, "invalid"), strings.Contains(msg, "unknown tool"):
		return "validation"
	default:
		return "tool_exec"
	}
}

func fingerprint(calls []ctxpkg.ToolCall) string {
	var b strings.Builder
	for _, c := range calls {
		b.WriteString(c.Name)
		b.WriteByte('(')
		b.Write(c.Arguments)
		b.WriteString(");")
	}
	return b.String()
}

func errorPayload(msg string) string {
	b, _ := json.Marshal(map[string]string{"error": msg})
	return string(b)
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
