package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/cadence/internal/config"
	"github.com/hyperengineering/cadence/internal/store"
)

var (
	statsDBOverride string
	statsJSONOutput bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show usage statistics",
	Long:  "Print user and habit counters straight from the database, without running the server.",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsDBOverride, "db", "",
		"Database path (overrides config and CADENCE_DB_PATH)")
	statsCmd.Flags().BoolVar(&statsJSONOutput, "json", false,
		"Output in JSON format")
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	dbPath := statsDBOverride
	if dbPath == "" {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		dbPath = cfg.Database.Path
	}

	db, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	stats, err := db.AdminStats(ctx)
	if err != nil {
		return fmt.Errorf("load stats: %w", err)
	}

	if statsJSONOutput {
		return printJSON(cmd.OutOrStdout(), stats)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Users:           %d\n", stats.TotalUsers)
	fmt.Fprintf(out, "Habits:          %d\n", stats.TotalHabits)
	fmt.Fprintf(out, "Active today:    %d\n", stats.ActiveHabitsToday)
	fmt.Fprintf(out, "Tasks completed: %d\n", stats.TotalTasksCompleted)

	if len(stats.Users) == 0 {
		return nil
	}

	fmt.Fprintln(out)
	w := newTabWriter(out)
	fmt.Fprintln(w, "TELEGRAM ID\tNAME\tHABITS\tJOINED")
	for _, u := range stats.Users {
		name := u.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			u.TelegramID,
			name,
			u.HabitsCount,
			u.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	w.Flush()

	return nil
}

// printJSON marshals v to JSON and writes to the given writer.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newTabWriter returns a configured tabwriter for aligned columns.
func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}
