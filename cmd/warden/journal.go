package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"warden-hq/callisto/pkg/journal"
	"warden-hq/callisto/pkg/journal/retention"
	"warden-hq/callisto/pkg/journal/storage"
	"warden-hq/callisto/pkg/launcher"
)

var journalFlags struct {
	path          string
	event         string
	verdict       string
	mode          string
	since         time.Duration
	limit         int
	format        string
	retentionDays int
	maxRecords    int64
	archive       bool
	archivePath   string
	schedule      string
}

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect and maintain the audit journal",
}

var journalQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query journal records",
	Long: `Query journal records with filters.

Examples:
  # Aborted operations of the last day
  warden journal query --verdict abort --since 24h

  # Everything a review session decided on, as JSON
  warden journal query --mode review --format json`,
	RunE: queryJournal,
}

var journalPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old journal records",
	Long: `Delete old journal records, once or on a schedule.

Without --schedule the retention policy is applied immediately and the
command exits. With --schedule it keeps running and prunes on the given
cron expression until interrupted:

  warden journal prune --path journal.db --schedule "0 3 * * *"`,
	RunE: pruneJournal,
}

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalQueryCmd, journalPruneCmd)

	journalCmd.PersistentFlags().StringVar(&journalFlags.path, "path", "", "journal database path (default $"+launcher.EnvJournalPath+")")

	journalQueryCmd.Flags().StringVar(&journalFlags.event, "event", "", "filter by event name")
	journalQueryCmd.Flags().StringVar(&journalFlags.verdict, "verdict", "", "filter by verdict (continue, abort)")
	journalQueryCmd.Flags().StringVar(&journalFlags.mode, "mode", "", "filter by policy mode")
	journalQueryCmd.Flags().DurationVar(&journalFlags.since, "since", 0, "only records newer than this age")
	journalQueryCmd.Flags().IntVar(&journalFlags.limit, "limit", 100, "max results")
	journalQueryCmd.Flags().StringVar(&journalFlags.format, "format", "text", "output format: text, json")

	journalPruneCmd.Flags().IntVar(&journalFlags.retentionDays, "retention-days", 90, "delete records older than this many days")
	journalPruneCmd.Flags().Int64Var(&journalFlags.maxRecords, "max-records", 0, "cap the journal at this many records (0 = unlimited)")
	journalPruneCmd.Flags().BoolVar(&journalFlags.archive, "archive", false, "archive pruned records to JSON first")
	journalPruneCmd.Flags().StringVar(&journalFlags.archivePath, "archive-path", "data/archives/", "archive directory")
	journalPruneCmd.Flags().StringVar(&journalFlags.schedule, "schedule", "", "prune on this cron expression until interrupted")
}

func openJournal() (*storage.SQLiteStorage, error) {
	path := journalFlags.path
	if path == "" {
		path = os.Getenv(launcher.EnvJournalPath)
	}
	if path == "" {
		return nil, fmt.Errorf("no journal path: set --path or $%s", launcher.EnvJournalPath)
	}

	cfg := storage.DefaultSQLiteConfig()
	cfg.Path = path
	return storage.NewSQLiteStorage(cfg)
}

func queryJournal(cmd *cobra.Command, args []string) error {
	store, err := openJournal()
	if err != nil {
		return err
	}
	defer store.Close()

	query := &journal.Query{
		Event:   journalFlags.event,
		Verdict: journalFlags.verdict,
		Mode:    journalFlags.mode,
		Limit:   journalFlags.limit,
	}
	if journalFlags.since > 0 {
		start := time.Now().Add(-journalFlags.since)
		query.StartTime = &start
	}

	records, err := store.Query(cmd.Context(), query)
	if err != nil {
		return err
	}

	switch journalFlags.format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	case "text":
		for _, r := range records {
			fmt.Printf("%s  %-8s  %s%s  [%s]\n",
				r.RecordedTime.Format(time.RFC3339), r.Verdict, r.Event, r.Args, r.Mode)
		}
		fmt.Printf("%d record(s)\n", len(records))
		return nil
	default:
		return fmt.Errorf("unknown format %q", journalFlags.format)
	}
}

func pruneJournal(cmd *cobra.Command, args []string) error {
	store, err := openJournal()
	if err != nil {
		return err
	}
	defer store.Close()

	pruner := retention.NewPruner(store, &retention.Config{
		RetentionDays:       journalFlags.retentionDays,
		MaxRecords:          journalFlags.maxRecords,
		ArchiveBeforeDelete: journalFlags.archive,
		ArchivePath:         journalFlags.archivePath,
		PruneSchedule:       journalFlags.schedule,
	})

	if journalFlags.schedule != "" {
		return pruneOnSchedule(cmd, pruner)
	}

	deleted, err := pruner.Prune(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("deleted %d record(s)\n", deleted)
	return nil
}

// pruneOnSchedule runs scheduled pruning until the command is interrupted.
func pruneOnSchedule(cmd *cobra.Command, pruner *retention.Pruner) error {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := pruner.Start(ctx); err != nil {
		return err
	}
	defer pruner.Stop()

	if next := pruner.NextPruning(); next != nil {
		fmt.Printf("pruning on schedule %q, next run %s\n",
			journalFlags.schedule, next.Format(time.RFC3339))
	}

	<-ctx.Done()
	return nil
}
