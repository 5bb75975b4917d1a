package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nvandessel/battsim/internal/archive"
	"github.com/nvandessel/battsim/internal/pathutil"
)

func newArchiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Manage compressed dataset bundles",
		Long: `Dataset bundles are written by 'battsim generate --archive' (or with
archive.enabled in the config) into <root>/.battsim/archive by default.
Each bundle is a gzip stream with a JSON header carrying the domain,
seed, row count and checksums of the dataset.

Examples:
  battsim archive list
  battsim archive verify .battsim/archive/battsim-20260301-101500.000-safety.dataset.gz
  battsim archive prune --max-count 5 --max-age 30d --max-size 500MB
  battsim archive restore <bundle> --output data`,
	}

	cmd.AddCommand(
		newArchiveListCmd(),
		newArchiveVerifyCmd(),
		newArchivePruneCmd(),
		newArchiveRestoreCmd(),
	)
	return cmd
}

// archiveDir resolves the bundle directory from config.
func archiveDir(cmd *cobra.Command) (string, error) {
	root, _ := cmd.Flags().GetString("root")
	cfg, err := loadConfig(cmd)
	if err != nil {
		return "", err
	}
	return cfg.ArchiveDir(root), nil
}

func newArchiveListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List dataset bundles, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			dir, err := archiveDir(cmd)
			if err != nil {
				return err
			}

			entries, err := archive.List(dir)
			if err != nil {
				return fmt.Errorf("failed to list bundles: %w", err)
			}

			if jsonOut {
				if entries == nil {
					entries = []archive.Entry{}
				}
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"dir":     dir,
					"bundles": entries,
					"count":   len(entries),
				})
			}

			if len(entries) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No bundles in %s\n", dir)
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "CREATED\tDOMAIN\tROWS\tSEED\tSIZE\tFILE")
			for _, e := range entries {
				created := e.CreatedAt.Local().Format("2006-01-02 15:04:05")
				if h := e.Header; h != nil {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n",
						created, h.Domain, h.Rows, h.Seed, formatBytes(e.Size), filepath.Base(e.Path))
				} else {
					fmt.Fprintf(tw, "%s\t(unreadable)\t-\t-\t%s\t%s\n", created, formatBytes(e.Size), filepath.Base(e.Path))
				}
			}
			return tw.Flush()
		},
	}
}

func newArchiveVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <bundle>...",
		Short: "Verify bundle checksums",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			type verifyResult struct {
				File   string `json:"file"`
				Valid  bool   `json:"valid"`
				Domain string `json:"domain,omitempty"`
				Rows   int    `json:"rows,omitempty"`
				Error  string `json:"error,omitempty"`
			}

			results := make([]verifyResult, 0, len(args))
			bad := 0
			for _, path := range args {
				vr := verifyResult{File: path}
				hdr, err := archive.Verify(path)
				if err != nil {
					vr.Error = err.Error()
					bad++
				} else {
					vr.Valid = true
					vr.Domain = string(hdr.Domain)
					vr.Rows = hdr.Rows
				}
				results = append(results, vr)
			}

			if jsonOut {
				if err := json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{"bundles": results}); err != nil {
					return err
				}
			} else {
				for _, vr := range results {
					if vr.Valid {
						fmt.Fprintf(cmd.OutOrStdout(), "✓ %s: %s, %d rows, checksums OK\n", vr.File, vr.Domain, vr.Rows)
					} else {
						fmt.Fprintf(cmd.OutOrStdout(), "✗ %s: %s\n", vr.File, vr.Error)
					}
				}
			}

			if bad > 0 {
				return fmt.Errorf("%d of %d bundle(s) failed verification", bad, len(args))
			}
			return nil
		},
	}
}

func newArchivePruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete bundles outside the retention policy",
		Long: `Delete bundles by count, age and total size. Limits apply in that
order; a zero or empty limit is ignored. Without flags the configured
archive.max_count and archive.max_age are used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			jsonOut, _ := cmd.Flags().GetBool("json")
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			dir := cfg.ArchiveDir(root)

			maxCount := cfg.Archive.MaxCount
			if cmd.Flags().Changed("max-count") {
				maxCount, _ = cmd.Flags().GetInt("max-count")
			}
			maxAge := cfg.Archive.MaxAge
			if s, _ := cmd.Flags().GetString("max-age"); s != "" {
				if maxAge, err = archive.ParseDuration(s); err != nil {
					return err
				}
			}
			var maxBytes int64
			if s, _ := cmd.Flags().GetString("max-size"); s != "" {
				if maxBytes, err = archive.ParseSize(s); err != nil {
					return err
				}
			}
			if maxCount < 0 || maxAge < 0 || maxBytes < 0 {
				return fmt.Errorf("retention limits must be non-negative")
			}

			policy := archive.NewPolicy(maxCount, maxAge, maxBytes)

			var deleted []string
			if dryRun {
				entries, err := archive.List(dir)
				if err != nil {
					return fmt.Errorf("failed to list bundles: %w", err)
				}
				keep := make(map[string]bool)
				for _, e := range policy.Apply(entries) {
					keep[e.Path] = true
				}
				for _, e := range entries {
					if !keep[e.Path] {
						deleted = append(deleted, e.Path)
					}
				}
			} else {
				deleted, err = archive.Prune(dir, policy)
				if err != nil {
					return fmt.Errorf("prune failed: %w", err)
				}
			}

			if jsonOut {
				if deleted == nil {
					deleted = []string{}
				}
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"deleted": deleted,
					"count":   len(deleted),
					"dry_run": dryRun,
				})
			}

			verb := "Deleted"
			if dryRun {
				verb = "Would delete"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d bundle(s)\n", verb, len(deleted))
			for _, p := range deleted {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", filepath.Base(p))
			}
			return nil
		},
	}

	cmd.Flags().Int("max-count", 0, "Keep at most this many bundles")
	cmd.Flags().String("max-age", "", "Delete bundles older than this (e.g. 72h, 30d, 2w)")
	cmd.Flags().String("max-size", "", "Keep total size under this (e.g. 500MB, 2GB)")
	cmd.Flags().Bool("dry-run", false, "Show what would be deleted")

	return cmd
}

func newArchiveRestoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <bundle>",
		Short: "Extract a bundle back to a dataset file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			jsonOut, _ := cmd.Flags().GetBool("json")
			output, _ := cmd.Flags().GetString("output")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if output == "" {
				output = cfg.Generation.OutputDir
			}
			dir, err := pathutil.ResolveWithin(root, output)
			if err != nil {
				return fmt.Errorf("restore path rejected: %w", err)
			}

			path, err := archive.Restore(args[0], dir)
			if err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{"path": path})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "Directory inside the project root (default: generation output dir)")
	return cmd
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
