// Package dummy provides a scripted model provider for tests and offline
// runs. A script is a comma-separated list of actions consumed one per
// call; the last action repeats once the script is exhausted.
//
//	ok                 reply "dummy-ok"
//	err:<class>        fail with a provider error
//	sleep:<ms>         wait, honoring context cancellation
//	msg:<text>         reply text
//	msgb64:<b64>       reply base64-decoded text
//	echo               reply the content of the last message
//	call:<name>:<b64>  request a tool call with base64-encoded JSON arguments
//	ratelimit:<text>   fail with a rate-limit error
package dummy

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	ctxpkg "github.com/stupiduntilnot/cryptodesk/internal/context"
	modelpkg "github.com/stupiduntilnot/cryptodesk/internal/model"
)

type action struct {
	kind string
	arg  string
}

var prefixed = []string{"err", "sleep", "msg", "msgb64", "call", "ratelimit"}

func parseScript(script string) ([]action, error) {
	if strings.TrimSpace(script) == "" {
		return []action{{kind: "ok"}}, nil
	}
	parts := strings.Split(script, ",")
	actions := make([]action, 0, len(parts))
	for _, p := range parts {
		token := strings.TrimSpace(p)
		if token == "" {
			continue
		}
		if token == "ok" || token == "echo" {
			actions = append(actions, action{kind: token})
			continue
		}
		a, err := parsePrefixed(token)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	if len(actions) == 0 {
		actions = append(actions, action{kind: "ok"})
	}
	return actions, nil
}

func parsePrefixed(token string) (action, error) {
	for _, kind := range prefixed {
		arg, ok := strings.CutPrefix(token, kind+":")
		if !ok {
			continue
		}
		if kind == "call" {
			name, _, _ := strings.Cut(arg, ":")
			if strings.TrimSpace(name) == "" {
				return action{}, fmt.Errorf("invalid dummy action: %s", token)
			}
		}
		return action{kind: kind, arg: arg}, nil
	}
	return action{}, fmt.Errorf("invalid dummy action: %s", token)
}

type scriptRunner struct {
	actions []action
	index   int
}

func newRunner(script string) (*scriptRunner, error) {
	actions, err := parseScript(script)
	if err != nil {
		return nil, err
	}
	return &scriptRunner{actions: actions}, nil
}

func (r *scriptRunner) next() action {
	if len(r.actions) == 0 {
		return action{kind: "ok"}
	}
	if r.index >= len(r.actions) {
		return r.actions[len(r.actions)-1]
	}
	a := r.actions[r.index]
	r.index++
	return a
}

// Provider is a scripted model provider.
type Provider struct {
	mu       sync.Mutex
	model    string
	script   *scriptRunner
	requests []modelpkg.Request
}

func NewProvider(model, script string) (*Provider, error) {
	runner, err := newRunner(script)
	if err != nil {
		return nil, err
	}
	return &Provider{model: model, script: runner}, nil
}

// Model returns the configured model name.
func (p *Provider) Model() string {
	return p.model
}

// Requests returns a copy of every request received so far.
func (p *Provider) Requests() []modelpkg.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]modelpkg.Request(nil), p.requests...)
}

func (p *Provider) ChatCompletion(ctx context.Context, req modelpkg.Request) (modelpkg.CompletionResponse, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	a := p.script.next()
	p.mu.Unlock()

	switch a.kind {
	case "ok":
		return reply("dummy-ok"), nil
	case "err":
		return modelpkg.CompletionResponse{}, fmt.Errorf("dummy provider error class=%s", emptyAs(a.arg, "provider_api"))
	case "ratelimit":
		return modelpkg.CompletionResponse{}, &modelpkg.RateLimitError{
			Message:    emptyAs(a.arg, "quota exceeded"),
			RetryAfter: time.Second,
		}
	case "sleep":
		ms, _ := strconv.Atoi(a.arg)
		if ms > 0 {
			timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return modelpkg.CompletionResponse{}, ctx.Err()
			case <-timer.C:
			}
		}
		return reply("dummy-after-sleep"), nil
	case "msg":
		return reply(a.arg), nil
	case "msgb64":
		raw, err := base64.StdEncoding.DecodeString(a.arg)
		if err != nil {
			return modelpkg.CompletionResponse{}, fmt.Errorf("dummy provider msgb64 decode failed: %w", err)
		}
		return reply(string(raw)), nil
	case "echo":
		if len(req.Messages) == 0 {
			return reply(""), nil
		}
		return reply(req.Messages[len(req.Messages)-1].Content), nil
	case "call":
		return toolCall(a.arg)
	default:
		return reply("dummy-ok"), nil
	}
}

func reply(content string) modelpkg.CompletionResponse {
	return modelpkg.CompletionResponse{
		Content:      content,
		InputTokens:  1,
		OutputTokens: 1,
	}
}

func toolCall(arg string) (modelpkg.CompletionResponse, error) {
	name, encoded, _ := strings.Cut(arg, ":")
	args := json.RawMessage(`{}`)
	if strings.TrimSpace(encoded) != "" {
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return modelpkg.CompletionResponse{}, fmt.Errorf("dummy provider call args decode failed: %w", err)
		}
		args = raw
	}
	return modelpkg.CompletionResponse{
		ToolCalls: []ctxpkg.ToolCall{{
			ID:        "call_" + uuid.NewString(),
			Name:      name,
			Arguments: args,
		}},
		InputTokens:  1,
		OutputTokens: 1,
	}, nil
}

// MsgAction builds a reply action for a script. The text is base64-encoded
// so it may contain commas.
func MsgAction(text string) string {
	return "msgb64:" + base64.StdEncoding.EncodeToString([]byte(text))
}

// CallAction builds a call action for a script.
func CallAction(name string, args any) string {
	raw, _ := json.Marshal(args)
	return "call:" + name + ":" + base64.StdEncoding.EncodeToString(raw)
}

func emptyAs(v string, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
