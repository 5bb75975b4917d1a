package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/battsim/internal/models"
	"github.com/nvandessel/battsim/internal/store"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List generation runs from the run catalog",
		Long: `List recorded domain runs, newest first.

Examples:
  battsim runs                       # Last 20 runs
  battsim runs --domain health       # Health runs only
  battsim runs --status failed       # Failures with their stage
  battsim runs --batch <id> --json   # Every domain of one generate call`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			jsonOut, _ := cmd.Flags().GetBool("json")
			limit, _ := cmd.Flags().GetInt("limit")
			batch, _ := cmd.Flags().GetString("batch")
			status, _ := cmd.Flags().GetString("status")
			domainFlag, _ := cmd.Flags().GetString("domain")

			filter := store.RunFilter{BatchID: batch, Limit: limit}
			if domainFlag != "" {
				d, err := models.ParseDomain(domainFlag)
				if err != nil {
					return err
				}
				filter.Domain = d
			}
			switch st := store.RunStatus(status); st {
			case "", store.StatusRunning, store.StatusSucceeded, store.StatusFailed:
				filter.Status = st
			default:
				return fmt.Errorf("invalid status: %s (valid: running, succeeded, failed)", status)
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			catalog, err := store.NewSQLiteRunCatalog(cmd.Context(), cfg.CatalogPath(root))
			if err != nil {
				return fmt.Errorf("failed to open run catalog: %w", err)
			}
			defer catalog.Close()

			runs, err := catalog.ListRuns(cmd.Context(), filter)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}

			if jsonOut {
				if runs == nil {
					runs = []store.Run{}
				}
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"runs":  runs,
					"count": len(runs),
				})
			}

			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "STARTED\tDOMAIN\tROWS\tSEED\tSTATUS\tDURATION\tOUTPUT")
			for _, r := range runs {
				outcome := r.Path
				if r.Status == store.StatusFailed {
					outcome = fmt.Sprintf("%s: %s", r.Stage, r.Error)
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
					r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Domain, r.Samples, r.Seed,
					r.Status, r.Duration().Round(time.Millisecond), outcome)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().String("domain", "", "Filter by domain")
	cmd.Flags().String("status", "", "Filter by status: running, succeeded, failed")
	cmd.Flags().String("batch", "", "Filter by batch ID")
	cmd.Flags().Int("limit", 20, "Maximum runs to show (0 for all)")

	return cmd
}
