package cmd

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/merdocx/easy-pass-bot-sub000/internal/core/archive"
	"github.com/merdocx/easy-pass-bot-sub000/internal/observability"
)

var (
	archiveListLimit int
	archivePurgeAge  time.Duration
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Administer the pass archive",
}

var archiveRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Archive aged passes now (one-shot cycle)",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		archivist := newArchivist(db)
		archived, err := archivist.ArchiveOldPasses(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Archived %d passes\n", archived)
		return nil
	},
}

var archiveStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show archive statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		return runArchiveStats(cmd.Context(), newArchivist(db), cmd.OutOrStdout())
	},
}

func runArchiveStats(ctx context.Context, archivist *archive.Archivist, w io.Writer) error {
	stats, err := archivist.Statistics(ctx)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRow(table.Row{"Total archived", stats.ArchivedCount})

	statuses := make([]string, 0, len(stats.ByStatus))
	for status := range stats.ByStatus {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)
	for _, status := range statuses {
		t.AppendRow(table.Row{"Status " + status, stats.ByStatus[status]})
	}

	months := make([]string, 0, len(stats.ByMonth))
	for month := range stats.ByMonth {
		months = append(months, month)
	}
	sort.Strings(months)
	for _, month := range months {
		t.AppendRow(table.Row{"Month " + month, stats.ByMonth[month]})
	}

	_, err = fmt.Fprintln(w, t.Render())
	return err
}

var archiveListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived passes, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		return runArchiveList(cmd.Context(), newArchivist(db), cmd.OutOrStdout(), archiveListLimit)
	},
}

func runArchiveList(ctx context.Context, archivist *archive.Archivist, w io.Writer, limit int) error {
	listed, err := archivist.ArchivedPasses(ctx, limit)
	if err != nil {
		return err
	}

	if len(listed) == 0 {
		_, err := fmt.Fprintln(w, "No archived passes")
		return err
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"ID", "User", "Car", "Status", "Created", "Used"})
	for _, pass := range listed {
		used := "-"
		if pass.UsedAt != nil {
			used = pass.UsedAt.UTC().Format(time.RFC3339)
		}
		t.AppendRow(table.Row{
			pass.ID,
			pass.UserID,
			pass.CarNumber,
			string(pass.Status),
			pass.CreatedAt.UTC().Format(time.RFC3339),
			used,
		})
	}

	_, err = fmt.Fprintln(w, t.Render())
	return err
}

var archiveRestoreCmd = &cobra.Command{
	Use:   "restore <pass-id>",
	Short: "Return an archived pass to the working set",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("pass id must be an integer: %q", args[0])
		}

		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		archivist := newArchivist(db)
		if err := archivist.Restore(cmd.Context(), id); err != nil {
			return err
		}

		fmt.Printf("Restored pass %d\n", id)
		return nil
	},
}

var archivePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Permanently delete old archived passes",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		archivist := newArchivist(db)
		purged, err := archivist.PurgeArchived(cmd.Context(), archivePurgeAge)
		if err != nil {
			return err
		}

		fmt.Printf("Purged %d archived passes older than %s\n", purged, archivePurgeAge)
		return nil
	},
}

func newArchivist(repo archive.PassRepository) *archive.Archivist {
	return archive.New(repo, archive.Config{
		Interval: appConfig.Archive.Interval,
		Cooldown: appConfig.Archive.Cooldown,
	}, observability.CLILogger)
}

func init() {
	rootCmd.AddCommand(archiveCmd)
	archiveCmd.AddCommand(archiveRunCmd)
	archiveCmd.AddCommand(archiveStatsCmd)
	archiveCmd.AddCommand(archiveListCmd)
	archiveCmd.AddCommand(archiveRestoreCmd)
	archiveCmd.AddCommand(archivePurgeCmd)

	archiveListCmd.Flags().IntVar(&archiveListLimit, "limit", 50, "maximum number of passes to list")
	archivePurgeCmd.Flags().DurationVar(&archivePurgeAge, "older-than", 90*24*time.Hour, "purge archived passes older than this")
}
