package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stupiduntilnot/cryptodesk/internal/config"
	"github.com/stupiduntilnot/cryptodesk/internal/pipeline"
)

var askSummary string

// askOutput is the JSON printed by the ask command.
type askOutput struct {
	Response string `json:"response"`
	Summary  string `json:"summary,omitempty"`
	Denied   bool   `json:"denied,omitempty"`
}

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Run one exchange locally and print the response and summary",
	Long: `Runs one message through the safety gate, the answerer and the
summarizer, then prints the response and the updated summary as JSON.

Pass the printed summary back with --summary to continue the conversation.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askSummary, "summary", "", "Summary returned by the previous exchange")
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := newLogger(cfg, os.Stderr)

	a, err := buildApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.pipeline.Run(cmd.Context(), pipeline.Request{
		Message: strings.Join(args, " "),
		Summary: askSummary,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(askOutput{
		Response: res.Answer,
		Summary:  res.Summary,
		Denied:   res.Denied,
	})
}
