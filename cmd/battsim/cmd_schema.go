package main

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/nvandessel/battsim/internal/models"
	"github.com/nvandessel/battsim/internal/synth"
)

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema [domain]",
		Short: "Describe dataset columns and class profiles",
		Long: `Print the column layout, label set and class-conditional
distributions of each domain, with configured overrides applied.

Examples:
  battsim schema           # All domains
  battsim schema health    # One domain`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			domains := models.AllDomains()
			if len(args) == 1 {
				d, err := models.ParseDomain(args[0])
				if err != nil {
					return err
				}
				domains = []models.Domain{d}
			}

			descs := make([]synth.Description, 0, len(domains))
			for _, d := range domains {
				dom, err := synth.NewWithOverrides(d, cfg.Domain(d).Overrides)
				if err != nil {
					return err
				}
				descs = append(descs, synth.Describe(dom))
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(descs)
			}
			for i, desc := range descs {
				if i > 0 {
					fmt.Fprintln(cmd.OutOrStdout())
				}
				printDescription(cmd.OutOrStdout(), desc)
			}
			return nil
		},
	}
}

func printDescription(w io.Writer, d synth.Description) {
	fmt.Fprintf(w, "%s (%s_*.csv)\n", d.Domain, d.FilePrefix)

	fmt.Fprintln(w, "  Columns:")
	for _, c := range d.Columns {
		kind := fmt.Sprintf("%d dp", c.Precision)
		if c.Integer {
			kind = "integer"
		}
		fmt.Fprintf(w, "    %-22s %-8s %s\n", c.Name, kind, c.Range)
	}
	fmt.Fprintf(w, "    %-22s label\n", d.LabelColumn)

	features := d.FeatureNames()
	for _, cls := range d.Classes {
		fmt.Fprintf(w, "  Class %d %s (prior %.2f)\n", cls.Label, cls.Name, cls.Prior)
		for _, name := range features {
			if dist, ok := cls.Features[name]; ok {
				fmt.Fprintf(w, "    %-22s %s\n", name, dist)
			}
		}
		for _, s := range cls.Scenarios {
			fmt.Fprintf(w, "    scenario %s p=%.2f\n", s.Name, s.Probability)
			for _, name := range slices.Sorted(maps.Keys(s.Overrides)) {
				fmt.Fprintf(w, "      %-20s %s\n", name, s.Overrides[name])
			}
		}
	}

	if d.Fault != "" {
		fmt.Fprintf(w, "  Fault: %s\n", d.Fault)
	}
	fmt.Fprintf(w, "  Mislabel probability: %.2f\n", d.MislabelProb)
	if d.Boundary != nil {
		fmt.Fprintf(w, "  Latent boundary: SOH %.1f (softness %.1f)\n", d.Boundary.Center, d.Boundary.Softness)
	}
}
