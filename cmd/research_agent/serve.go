package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/research-agent/internal/server"
)

var (
	servePort   int
	serveMemory bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP server exposing POST /api/research (server-sent event stream), GET and DELETE /api/reports and GET /api/health.

Reports are saved to PostgreSQL at DATABASE_URL unless --memory is given.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (defaults to the configured port)")
	serveCmd.Flags().BoolVar(&serveMemory, "memory", false, "Keep reports in memory instead of PostgreSQL")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Port = servePort
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()
	engine, closeEngine, err := newEngine(ctx, cfg, logger, cfg.StreamMode)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	defer closeEngine()

	store, closeStore, err := openStore(ctx, cfg, serveMemory)
	if err != nil {
		return err
	}
	defer closeStore()
	if serveMemory {
		logger.Warn("reports are kept in memory and lost on exit")
	}

	srv := server.New(server.Config{Port: cfg.Port, RunTimeout: cfg.RunTimeout()}, engine, store, logger)
	logger.Info("serving research API", zap.Int("port", cfg.Port))
	return srv.Start()
}
