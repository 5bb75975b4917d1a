package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nvandessel/battsim/internal/dataset"
	"github.com/nvandessel/battsim/internal/models"
	"github.com/nvandessel/battsim/internal/synth"
)

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats [file]",
		Short: "Show label distribution and feature statistics",
		Long: `Summarize a dataset: label counts, per-feature range, mean and
standard deviation, and per-class means.

With a file argument the file is read from disk. Without one, --domain
selects a domain that is synthesized in memory with the configured
profile; in that case generation events (scenario hits, sensor faults,
relabels) are counted as well.

Examples:
  battsim stats data/model_c_driver_10k.csv
  battsim stats --domain safety -n 20000 --seed 3`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			var ds *models.Dataset
			if len(args) == 1 {
				var err error
				ds, err = dataset.ReadFile(args[0])
				if err != nil {
					return err
				}
			} else {
				name, _ := cmd.Flags().GetString("domain")
				if name == "" {
					return fmt.Errorf("either a dataset file or --domain is required")
				}
				d, err := models.ParseDomain(name)
				if err != nil {
					return err
				}

				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				n := cfg.SamplesFor(d)
				if cmd.Flags().Changed("samples") {
					n, _ = cmd.Flags().GetInt("samples")
				}
				seed := cfg.SeedFor(d)
				if cmd.Flags().Changed("seed") {
					seed, _ = cmd.Flags().GetInt64("seed")
				}

				dom, err := synth.NewWithOverrides(d, cfg.Domain(d).Overrides)
				if err != nil {
					return err
				}
				ds, err = synth.Generate(cmd.Context(), dom, n, seed, synth.WithWorkers(cfg.Generation.Workers))
				if err != nil {
					return err
				}
			}

			summary := dataset.Summarize(ds)
			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(summary)
			}
			printSummary(cmd.OutOrStdout(), summary)
			return nil
		},
	}

	cmd.Flags().StringP("domain", "d", "", "Synthesize this domain in memory instead of reading a file")
	cmd.Flags().IntP("samples", "n", 0, "Rows to synthesize (default from config)")
	cmd.Flags().Int64("seed", 0, "Seed to synthesize with (default from config)")

	return cmd
}

func printSummary(w io.Writer, s *dataset.Summary) {
	fmt.Fprintf(w, "Domain: %s (%d rows)\n\n", s.Domain, s.Rows)

	fmt.Fprintln(w, "Labels:")
	for label, count := range s.LabelCounts {
		fmt.Fprintf(w, "  %d %-10s %7d  %5.1f%%\n", label, s.ClassNames[label], count, 100*s.LabelShare(label))
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%-22s %10s %10s %10s %10s  %s\n", "Feature", "Min", "Max", "Mean", "Std", "Class means ("+strings.Join(s.ClassNames, "/")+")")
	for _, f := range s.Features {
		means := make([]string, len(f.ClassMeans))
		for i, m := range f.ClassMeans {
			means[i] = fmt.Sprintf("%.2f", m)
		}
		fmt.Fprintf(w, "%-22s %10.2f %10.2f %10.2f %10.2f  %s\n", f.Column, f.Min, f.Max, f.Mean, f.Std, strings.Join(means, " / "))
	}

	if t := s.Trace; t != nil && s.Rows > 0 {
		rows := float64(s.Rows)
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Generation events:")
		fmt.Fprintf(w, "  sensor faults   %7d  %5.1f%%\n", t.Faulted, 100*float64(t.Faulted)/rows)
		fmt.Fprintf(w, "  relabel trials  %7d  %5.1f%%\n", t.Relabeled, 100*float64(t.Relabeled)/rows)
		fmt.Fprintf(w, "  labels changed  %7d  %5.1f%%\n", t.Changed, 100*float64(t.Changed)/rows)
		for _, name := range t.ScenarioNames() {
			fmt.Fprintf(w, "  scenario %-14s %7d  %5.1f%%\n", name, t.Scenarios[name], 100*float64(t.Scenarios[name])/rows)
		}
	}
}
