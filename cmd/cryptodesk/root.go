package main

import (
	"github.com/spf13/cobra"
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "cryptodesk",
	Short: "Conversational gateway for current cryptocurrency market data",
	Long: `cryptodesk answers questions about current cryptocurrency prices.

Each exchange passes a safety gate, is answered by a model that fetches
market data through a cached tool, and returns an updated conversation
summary that the client sends back with its next message.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(askCmd)
}
