package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/luckeyseven/dashload/internal/history"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect saved run summaries",
	}
	cmd.PersistentFlags().String("history", "", "History database (default ~/.dashload/history.db)")
	cmd.PersistentFlags().Bool("json", false, "Print JSON")

	list := &cobra.Command{
		Use:   "list",
		Short: "List saved runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(store *history.Store) error {
				limit, _ := cmd.Flags().GetInt("limit")

				var runs []history.Run
				var err error
				if cmd.Flags().Changed("team-id") {
					teamID, _ := cmd.Flags().GetInt("team-id")
					runs, err = store.ListByTeam(teamID, limit)
				} else {
					runs, err = store.List(limit)
				}
				if err != nil {
					return err
				}

				if asJSON(cmd) {
					return writeJSON(cmd.OutOrStdout(), runs)
				}
				printRunTable(cmd.OutOrStdout(), runs)
				return nil
			})
		},
	}
	list.Flags().Int("team-id", 0, "Only runs that targeted this team")
	list.Flags().Int("limit", 20, "Maximum number of runs (0 = all)")

	show := &cobra.Command{
		Use:   "show ID",
		Short: "Show one saved run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(store *history.Store) error {
				run, err := store.Get(args[0])
				if err != nil {
					return err
				}
				if asJSON(cmd) {
					return writeJSON(cmd.OutOrStdout(), run)
				}
				printRun(cmd.OutOrStdout(), run)
				return nil
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a saved run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(store *history.Store) error {
				return store.Delete(args[0])
			})
		},
	}

	cmd.AddCommand(list, show, del)
	return cmd
}

func withStore(cmd *cobra.Command, fn func(*history.Store) error) error {
	path, _ := cmd.Flags().GetString("history")
	if path == "" {
		var err error
		if path, err = history.DefaultPath(); err != nil {
			return err
		}
	}

	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func asJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printRunTable(w io.Writer, runs []history.Run) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tNAME\tTEAMS\tREQUESTS\tFAILED\tP95")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%.1fms\n",
			r.ID, r.Timestamp.Format(time.DateTime), r.Name, teamList(r),
			r.Summary.TotalRequests, r.Summary.Fail, r.Summary.P95LatencyMs)
	}
	tw.Flush()
}

func printRun(w io.Writer, r *history.Run) {
	fmt.Fprintf(w, "Run:       %s\n", r.ID)
	fmt.Fprintf(w, "Name:      %s\n", r.Name)
	fmt.Fprintf(w, "Started:   %s\n", r.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(w, "Duration:  %s\n", time.Duration(r.DurationMs)*time.Millisecond)
	if r.Error != "" {
		fmt.Fprintf(w, "Error:     %s\n", r.Error)
	}
	fmt.Fprintf(w, "Requests:  %d (%d failed, %.2f%%)\n", r.Summary.TotalRequests, r.Summary.Fail, r.Summary.ErrorRate*100)
	fmt.Fprintf(w, "Latency:   avg %.1fms  p95 %.1fms  p99 %.1fms\n", r.Summary.AvgLatencyMs, r.Summary.P95LatencyMs, r.Summary.P99LatencyMs)
	for _, s := range r.Scenarios {
		fmt.Fprintf(w, "  %s [%s] team=%d %s tasks=%d reqs=%d failed=%d\n",
			s.Name, s.Executor, s.TeamID, s.Path, s.Iterations, s.Summary.TotalRequests, s.Summary.Fail)
	}
}

func teamList(r history.Run) string {
	out := ""
	for i, s := range r.Scenarios {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprint(s.TeamID)
	}
	return out
}
