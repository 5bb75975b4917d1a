package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/battsim/internal/dataset"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>...",
		Short: "Check dataset files against their domain schema",
		Long: `Validate dataset files (CSV or Arrow). The domain is detected from
the header. Every value is checked for finiteness, bounds, integrality,
stored precision and a valid label.

Examples:
  battsim validate data/model_a_safety_10k.csv
  battsim validate data/*.arrow --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			out := cmd.OutOrStdout()

			type fileReport struct {
				File   string          `json:"file"`
				Valid  bool            `json:"valid"`
				Report *dataset.Report `json:"report,omitempty"`
				Error  string          `json:"error,omitempty"`
			}

			reports := make([]fileReport, 0, len(args))
			invalid := 0
			for _, path := range args {
				fr := fileReport{File: path}
				report, err := dataset.ValidateFile(path)
				if err != nil {
					fr.Error = err.Error()
				} else {
					fr.Report = report
					fr.Valid = report.OK()
				}
				if !fr.Valid {
					invalid++
				}
				reports = append(reports, fr)
			}

			if jsonOut {
				if err := json.NewEncoder(out).Encode(map[string]any{
					"files":   reports,
					"invalid": invalid,
				}); err != nil {
					return err
				}
			} else {
				for _, fr := range reports {
					switch {
					case fr.Error != "":
						fmt.Fprintf(out, "✗ %s: %s\n", fr.File, fr.Error)
					case fr.Valid:
						fmt.Fprintf(out, "✓ %s: %s, %d rows, labels %v\n", fr.File, fr.Report.Domain, fr.Report.Rows, fr.Report.LabelCounts)
					default:
						fmt.Fprintf(out, "✗ %s: %s, %d rows, %d issue(s)\n", fr.File, fr.Report.Domain, fr.Report.Rows, fr.Report.TotalIssues)
						for _, issue := range fr.Report.Issues {
							fmt.Fprintf(out, "    %s\n", issue)
						}
						if fr.Report.TotalIssues > len(fr.Report.Issues) {
							fmt.Fprintf(out, "    ... %d more\n", fr.Report.TotalIssues-len(fr.Report.Issues))
						}
					}
				}
			}

			if invalid > 0 {
				return fmt.Errorf("%d of %d file(s) failed validation", invalid, len(args))
			}
			return nil
		},
	}
}
