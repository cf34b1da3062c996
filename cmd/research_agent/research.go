package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/research-agent/internal/client"
	"github.com/jonathan/research-agent/internal/logging"
	"github.com/jonathan/research-agent/internal/observability"
	"github.com/jonathan/research-agent/internal/stream"
)

var (
	researchRemote string
	researchMode   string
	researchNoSave bool
)

var researchCmd = &cobra.Command{
	Use:   "research <topic>",
	Short: "Research a topic and print the report as it is written",
	Long: `Run one research pipeline for a topic and print progress and the report to stdout.

By default the pipeline runs in-process and the report is saved when DATABASE_URL is set. With --remote the topic is submitted to a running server instead, and every received frame is checked against the frame schema.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResearch,
}

func init() {
	researchCmd.Flags().StringVar(&researchRemote, "remote", "", "Base URL of a research_agent server, e.g. http://localhost:3000")
	researchCmd.Flags().StringVar(&researchMode, "mode", "", "Event mode for local runs: tokens or snapshot (defaults to the configured stream_mode)")
	researchCmd.Flags().BoolVar(&researchNoSave, "no-save", false, "Do not save the report of a local run")
	rootCmd.AddCommand(researchCmd)
}

func runResearch(cmd *cobra.Command, args []string) error {
	topic := strings.TrimSpace(strings.Join(args, " "))
	if topic == "" {
		return fmt.Errorf("topic is required")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	printer := observability.NewPrinter(cmd.OutOrStdout())

	if researchRemote != "" {
		consumer := client.NewConsumer(researchRemote, nil,
			client.WithStrictFrames(),
			client.WithObserver(func(f stream.Frame, _ client.View) {
				printer.PrintFrame(f)
			}))
		return consumer.Submit(ctx, topic)
	}
	return runLocalResearch(ctx, topic, printer)
}

func runLocalResearch(ctx context.Context, topic string, printer *observability.Printer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	mode := cfg.StreamMode
	if researchMode != "" {
		mode = researchMode
	}
	engine, closeEngine, err := newEngine(ctx, cfg, logger, mode)
	if err != nil {
		return err
	}
	defer closeEngine()

	// A nil Saver disables persistence.
	var saver stream.Saver
	if !researchNoSave && cfg.DatabaseURL != "" {
		store, closeStore, err := openStore(ctx, cfg, false)
		if err != nil {
			return err
		}
		defer closeStore()
		saver = store
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.RunTimeout())
	defer cancel()
	ctx = logging.WithContext(ctx, logging.ForRun(logger, "local", topic))

	return stream.NewTranslator(saver, logger).Translate(ctx, topic, engine.Run(ctx, topic), printer)
}
