package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jonathan/research-agent/internal/client"
	"github.com/jonathan/research-agent/internal/db"
	"github.com/jonathan/research-agent/internal/observability"
)

var (
	reportsRemote string
	reportsIDs    []int64
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "List, show or delete saved reports",
	Long:  `Manage saved reports in DATABASE_URL, or on a running server with --remote.`,
}

var reportsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved reports, most recent first",
	Args:  cobra.NoArgs,
	RunE:  runReportsList,
}

var reportsShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Print one saved report in full",
	Args:  cobra.ExactArgs(1),
	RunE:  runReportsShow,
}

var reportsDeleteCmd = &cobra.Command{
	Use:   "delete --id N [--id N...]",
	Short: "Delete saved reports by id",
	Args:  cobra.NoArgs,
	RunE:  runReportsDelete,
}

func init() {
	reportsCmd.PersistentFlags().StringVar(&reportsRemote, "remote", "", "Base URL of a research_agent server")
	reportsDeleteCmd.Flags().Int64SliceVar(&reportsIDs, "id", nil, "Report id to delete (repeatable)")
	_ = reportsDeleteCmd.MarkFlagRequired("id")

	reportsCmd.AddCommand(reportsListCmd, reportsShowCmd, reportsDeleteCmd)
	rootCmd.AddCommand(reportsCmd)
}

// reportStore is the part of db.Store the reports commands use, satisfied
// locally by the store and remotely by the HTTP client.
type reportStore interface {
	ListReports(ctx context.Context) ([]db.Report, error)
	DeleteReports(ctx context.Context, ids []int64) (int64, error)
}

// remoteReports adapts client.Consumer to reportStore.
type remoteReports struct{ c *client.Consumer }

func (r remoteReports) ListReports(ctx context.Context) ([]db.Report, error) {
	return r.c.ListReports(ctx)
}

// DeleteReports reports every id as deleted on success; the server does
// not return per-id outcomes.
func (r remoteReports) DeleteReports(ctx context.Context, ids []int64) (int64, error) {
	if err := r.c.DeleteReports(ctx, ids); err != nil {
		return 0, err
	}
	return int64(len(ids)), nil
}

func openReportStore(ctx context.Context) (reportStore, func(), error) {
	if reportsRemote != "" {
		return remoteReports{c: client.NewConsumer(reportsRemote, nil)}, func() {}, nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	return openStore(ctx, cfg, false)
}

func runReportsList(cmd *cobra.Command, _ []string) error {
	store, closeStore, err := openReportStore(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()

	reports, err := store.ListReports(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list reports: %w", err)
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintReports(reports)
	return nil
}

// runReportsShow finds the report in the listing; the API has no
// single-report endpoint.
func runReportsShow(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid report id %q", args[0])
	}

	store, closeStore, err := openReportStore(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()

	reports, err := store.ListReports(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list reports: %w", err)
	}
	for _, r := range reports {
		if r.ID == id {
			observability.NewPrinter(cmd.OutOrStdout()).PrintReport(r)
			return nil
		}
	}
	return fmt.Errorf("report %d not found", id)
}

func runReportsDelete(cmd *cobra.Command, _ []string) error {
	store, closeStore, err := openReportStore(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()

	deleted, err := store.DeleteReports(cmd.Context(), reportsIDs)
	observability.NewPrinter(cmd.OutOrStdout()).PrintDeleted(len(reportsIDs), deleted)
	if err != nil && deleted == 0 {
		return fmt.Errorf("failed to delete reports: %w", err)
	}
	return nil
}
