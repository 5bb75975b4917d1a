package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/battsim/internal/config"
	"github.com/nvandessel/battsim/internal/constants"
	"github.com/nvandessel/battsim/internal/logging"
	"github.com/nvandessel/battsim/internal/models"
	"github.com/nvandessel/battsim/internal/pipeline"
	"github.com/nvandessel/battsim/internal/publish"
	"github.com/nvandessel/battsim/internal/store"
	"github.com/nvandessel/battsim/internal/telemetry"
)

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate datasets for one or more domains",
		Long: `Generate labeled datasets and write one file per domain.

Files are named after the domain and row count, e.g.
model_a_safety_10k.csv, model_b_health_10k.csv, model_c_driver_10k.csv.
Every run is recorded in the run catalog. A failing domain does not stop
the others; the command exits non-zero if any domain failed.

Examples:
  battsim generate                              # All enabled domains
  battsim generate --domain driver -n 5000      # One domain, 5000 rows
  battsim generate --seed 7 --format arrow      # Arrow IPC files
  battsim generate --workers 8 --archive        # Parallel, keep a bundle`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			domains, err := applyGenerateFlags(cmd, cfg)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			sigChan := make(chan os.Signal, 1)
			notifySignals(sigChan)
			go func() {
				select {
				case <-sigChan:
					cancel()
				case <-ctx.Done():
				}
			}()

			logger := newLogger(cmd, cfg)
			opts := []pipeline.Option{pipeline.WithLogger(logger)}
			observers := pipeline.Observers{pipeline.LogObserver{Logger: logger}}

			if cfg.Catalog.Enabled {
				catalog, err := store.NewSQLiteRunCatalog(ctx, cfg.CatalogPath(root))
				if err != nil {
					return fmt.Errorf("failed to open run catalog: %w", err)
				}
				defer catalog.Close()
				opts = append(opts, pipeline.WithCatalog(catalog))
			}

			if cfg.Publish.Enabled() {
				pub, err := publish.New(cfg.Publish)
				if err != nil {
					return err
				}
				if err := pub.EnsureBucket(ctx); err != nil {
					return err
				}
				opts = append(opts, pipeline.WithPublisher(pub))
			}

			metrics, err := telemetry.New(cfg.Telemetry, cmd.ErrOrStderr(), version)
			if err != nil {
				return err
			}
			if metrics != nil {
				defer func() {
					if err := metrics.Shutdown(context.Background()); err != nil {
						logger.Warn("metrics shutdown failed", "error", err)
					}
				}()
				observers = append(observers, metrics)
			}
			opts = append(opts, pipeline.WithObserver(observers))

			trace := logging.NewTraceLogger(filepath.Join(root, constants.StateDirName), cfg.Logging.Level)
			defer trace.Close()
			opts = append(opts, pipeline.WithTraceLogger(trace))

			runner, err := pipeline.NewRunner(cfg, root, opts...)
			if err != nil {
				return err
			}
			results, runErr := runner.Run(ctx, domains...)

			if jsonOut {
				if err := json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"results": results,
					"failed":  len(pipeline.Failed(results)),
				}); err != nil {
					return err
				}
			} else {
				printResults(cmd, results)
			}

			if runErr != nil {
				return runErr
			}
			if failed := pipeline.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%w: %d of %d", pipeline.ErrDomainsFailed, len(failed), len(results))
			}
			return nil
		},
	}

	cmd.Flags().StringP("domain", "d", "", "Comma-separated domains (safety, health, driver) or 'all' (default: enabled domains)")
	cmd.Flags().IntP("samples", "n", 0, "Rows per domain (default from config)")
	cmd.Flags().Int64("seed", 0, "Random seed (default from config)")
	cmd.Flags().String("format", "", "Output format: csv or arrow")
	cmd.Flags().StringP("output", "o", "", "Output directory")
	cmd.Flags().Int("workers", 0, "Goroutines synthesizing rows; output does not depend on it")
	cmd.Flags().Bool("archive", false, "Also write a compressed bundle of each dataset")
	cmd.Flags().Bool("no-catalog", false, "Do not record runs in the catalog")

	return cmd
}

// applyGenerateFlags layers generate flags over cfg and returns the
// domains requested with --domain, if any.
func applyGenerateFlags(cmd *cobra.Command, cfg *config.Config) ([]models.Domain, error) {
	flags := cmd.Flags()

	if flags.Changed("samples") {
		n, _ := flags.GetInt("samples")
		cfg.Generation.Samples = n
		for _, d := range models.AllDomains() {
			cfg.Domain(d).Samples = 0
		}
	}
	if flags.Changed("seed") {
		seed, _ := flags.GetInt64("seed")
		cfg.Generation.Seed = seed
		for _, d := range models.AllDomains() {
			cfg.Domain(d).Seed = nil
		}
	}
	if flags.Changed("format") {
		f, _ := flags.GetString("format")
		cfg.Generation.Format = strings.ToLower(f)
	}
	if flags.Changed("output") {
		cfg.Generation.OutputDir, _ = flags.GetString("output")
	}
	if flags.Changed("workers") {
		cfg.Generation.Workers, _ = flags.GetInt("workers")
	}
	if on, _ := flags.GetBool("archive"); on {
		cfg.Archive.Enabled = true
	}
	if off, _ := flags.GetBool("no-catalog"); off {
		cfg.Catalog.Enabled = false
	}

	list, _ := flags.GetString("domain")
	if list == "" {
		return nil, nil
	}
	return models.ParseDomains(list)
}

func printResults(cmd *cobra.Command, results []pipeline.Result) {
	out := cmd.OutOrStdout()
	for _, r := range results {
		if !r.OK() {
			fmt.Fprintf(out, "✗ %-7s failed (%s): %s\n", r.Domain, r.Stage, r.Error)
			continue
		}
		fmt.Fprintf(out, "✓ %-7s %d rows -> %s (%s)\n", r.Domain, r.Samples, r.Path, r.Duration.Round(time.Millisecond))
		fmt.Fprintf(out, "          labels %v  %s\n", r.LabelCounts, r.Checksum)
		if r.ArchivePath != "" {
			fmt.Fprintf(out, "          archive %s\n", r.ArchivePath)
		}
		if r.Object != nil {
			fmt.Fprintf(out, "          published s3://%s/%s\n", r.Object.Bucket, r.Object.Key)
		}
	}
}
