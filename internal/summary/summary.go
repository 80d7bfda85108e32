// Package summary maintains the rolling conversation summary that clients
// carry between requests.
package summary

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	ctxpkg "github.com/stupiduntilnot/cryptodesk/internal/context"
	"github.com/stupiduntilnot/cryptodesk/internal/model"
)

// UnavailablePrefix starts the marker returned in place of a summary when
// the backend fails.
const UnavailablePrefix = "Summary unavailable: "

// Instructions is the system prompt of the summarizer.
const Instructions = "You maintain a running summary of a conversation between a user and a cryptocurrency market data assistant. " +
	"Combine the existing summary with the new exchange into one updated summary of at most 3 sentences. " +
	"Keep coin names, prices and what the user asked about. Reply with the summary only."

// DefaultMaxTokens bounds the summary length.
const DefaultMaxTokens = 150

// Summarizer folds one exchange at a time into the prior summary.
type Summarizer struct {
	provider  model.Provider
	maxTokens int
	log       zerolog.Logger
}

func NewSummarizer(provider model.Provider, maxTokens int, log zerolog.Logger) *Summarizer {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Summarizer{
		provider:  provider,
		maxTokens: maxTokens,
		log:       log.With().Str("component", "summary").Logger(),
	}
}

// Update returns the new summary. On backend failure it returns a marker
// starting with UnavailablePrefix instead of an error.
func (s *Summarizer) Update(ctx context.Context, prior, user, reply string) string {
	resp, err := s.provider.ChatCompletion(ctx, model.Request{
		Messages: []ctxpkg.Message{
			{Role: ctxpkg.RoleSystem, Content: Instructions},
			{Role: ctxpkg.RoleUser, Content: Prompt(prior, user, reply)},
		},
		MaxTokens: s.maxTokens,
	})
	if err != nil {
		s.log.Warn().
			Err(err).
			Str("policy", "fail_visible").
			Msg("summarizer backend failed")
		return UnavailablePrefix + err.Error()
	}
	if resp.IsEmpty() {
		s.log.Warn().
			Str("policy", "fail_visible").
			Msg("summarizer backend returned an empty summary")
		return UnavailablePrefix + "empty response from model backend"
	}
	out := strings.TrimSpace(resp.Content)
	s.log.Debug().Int("chars", len(out)).Msg("summary updated")
	return out
}

// Prompt renders the summarizer input for one exchange.
func Prompt(prior, user, reply string) string {
	prior = strings.TrimSpace(prior)
	if prior == "" {
		prior = "None"
	}
	return fmt.Sprintf("Existing summary: %s\n\nNew exchange:\nUser: %s\nAssistant: %s", prior, user, reply)
}

// IsUnavailable reports whether s is a failure marker.
func IsUnavailable(s string) bool {
	return strings.HasPrefix(s, UnavailablePrefix)
}
