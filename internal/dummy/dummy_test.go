package dummy

import (
	"context"
	"errors"
	"testing"
	"time"

	ctxpkg "github.com/stupiduntilnot/cryptodesk/internal/context"
	modelpkg "github.com/stupiduntilnot/cryptodesk/internal/model"
)

func userReq(text string) modelpkg.Request {
	return modelpkg.Request{Messages: []ctxpkg.Message{{Role: ctxpkg.RoleUser, Content: text}}}
}

func TestNewProvider_InvalidScript(t *testing.T) {
	for _, script := range []string{"boom", "call:", "call::e30="} {
		if _, err := NewProvider("x", script); err == nil {
			t.Fatalf("expected parse error for %q", script)
		}
	}
}

func TestProvider_ScriptedResponses(t *testing.T) {
	p, err := NewProvider("x", "err:provider_api,msg:hello")
	if err != nil {
		t.Fatal(err)
	}

	_, err = p.ChatCompletion(context.Background(), userReq("hi"))
	if err == nil {
		t.Fatal("expected first call to error")
	}

	resp, err := p.ChatCompletion(context.Background(), userReq("hi"))
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "hello" {
		t.Fatalf("expected hello, got %q", resp.Content)
	}

	// last action repeats
	resp, err = p.ChatCompletion(context.Background(), userReq("hi"))
	if err != nil || resp.Content != "hello" {
		t.Fatalf("expected repeated hello, got %q err=%v", resp.Content, err)
	}
	if len(p.Requests()) != 3 {
		t.Fatalf("expected 3 recorded requests, got %d", len(p.Requests()))
	}
}

func TestProvider_MsgB64Action(t *testing.T) {
	p, err := NewProvider("x", "msgb64:aGVsbG8=") // "hello"
	if err != nil {
		t.Fatal(err)
	}
	resp, err := p.ChatCompletion(context.Background(), userReq("hi"))
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "hello" {
		t.Fatalf("expected hello, got %q", resp.Content)
	}
}

func TestProvider_Echo(t *testing.T) {
	p, err := NewProvider("x", "echo")
	if err != nil {
		t.Fatal(err)
	}
	resp, err := p.ChatCompletion(context.Background(), userReq("Bitcoin is up"))
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "Bitcoin is up" {
		t.Fatalf("unexpected echo: %q", resp.Content)
	}
}

func TestProvider_Call(t *testing.T) {
	p, err := NewProvider("x", CallAction("get_crypto_data", map[string]string{"coin_ids": "bitcoin"})+",call:get_crypto_data:")
	if err != nil {
		t.Fatal(err)
	}
	resp, err := p.ChatCompletion(context.Background(), userReq("price?"))
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("expected one tool call, got %+v", resp)
	}
	tc := resp.ToolCalls[0]
	if tc.Name != "get_crypto_data" || string(tc.Arguments) != `{"coin_ids":"bitcoin"}` || tc.ID == "" {
		t.Fatalf("unexpected tool call: %+v", tc)
	}

	resp, err = p.ChatCompletion(context.Background(), userReq("price?"))
	if err != nil {
		t.Fatal(err)
	}
	if string(resp.ToolCalls[0].Arguments) != `{}` {
		t.Fatalf("expected empty arguments, got %s", resp.ToolCalls[0].Arguments)
	}
}

func TestProvider_RateLimit(t *testing.T) {
	p, err := NewProvider("x", "ratelimit:slow down")
	if err != nil {
		t.Fatal(err)
	}
	_, err = p.ChatCompletion(context.Background(), userReq("hi"))
	var rl *modelpkg.RateLimitError
	if !errors.As(err, &rl) || rl.Message != "slow down" {
		t.Fatalf("expected rate limit error, got %v", err)
	}
}

func TestProvider_SleepHonorsContext(t *testing.T) {
	p, err := NewProvider("x", "sleep:5000")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = p.ChatCompletion(ctx, userReq("hi"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("sleep did not observe cancellation")
	}
}

func TestProvider_MsgActionKeepsCommas(t *testing.T) {
	if _, err := NewProvider("x", "msg:Bitcoin is $93,750.12."); err == nil {
		t.Fatal("expected a raw comma to split the script")
	}
	p, err := NewProvider("x", MsgAction("Bitcoin is $93,750.12.")+",msg:next")
	if err != nil {
		t.Fatal(err)
	}
	resp, err := p.ChatCompletion(context.Background(), userReq("price?"))
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "Bitcoin is $93,750.12." {
		t.Fatalf("unexpected content: %q", resp.Content)
	}
}
