// Package main provides the entry point for the research agent server and CLI.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "research_agent",
	Short: "Research agent: web search plus streamed report synthesis",
	Long: `Research agent searches the web for a topic, synthesizes a markdown report with an LLM and streams progress to the caller.

Configuration is read from the environment (a .env file is loaded if present) and optionally from a JSON file passed with --config.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.json (environment variables take precedence)")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
