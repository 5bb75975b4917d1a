package mcp

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/battsim/internal/dataset"
	"github.com/nvandessel/battsim/internal/models"
	"github.com/nvandessel/battsim/internal/pathutil"
	"github.com/nvandessel/battsim/internal/pipeline"
	"github.com/nvandessel/battsim/internal/ratelimit"
	"github.com/nvandessel/battsim/internal/sanitize"
	"github.com/nvandessel/battsim/internal/synth"
)

// registerTools registers the battsim tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "battsim_generate",
		Description: "Generate labeled synthetic battery datasets (safety, health, driver) into the project",
	}, s.handleGenerate)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "battsim_schema",
		Description: "Describe dataset columns, labels and class distributions for each domain",
	}, s.handleSchema)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "battsim_validate",
		Description: "Check a dataset file against its domain schema: bounds, integer columns, precision and labels",
	}, s.handleValidate)
}

// handleGenerate implements the battsim_generate tool.
func (s *Server) handleGenerate(ctx context.Context, req *sdk.CallToolRequest, args GenerateInput) (_ *sdk.CallToolResult, _ GenerateOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("battsim_generate", start, retErr, sanitizeToolParams(map[string]any{
			"domains":    args.Domains,
			"samples":    args.Samples,
			"format":     args.Format,
			"output_dir": args.OutputDir,
		}))
	}()

	if err := ratelimit.CheckLimit(s.limiters, "battsim_generate"); err != nil {
		return nil, GenerateOutput{}, err
	}

	// Work on a copy so one call cannot change the next.
	cfg := *s.cfg
	if args.Samples != 0 {
		cfg.Generation.Samples = args.Samples
		// An explicit count applies to every requested domain.
		cfg.Domains.Safety.Samples = 0
		cfg.Domains.Health.Samples = 0
		cfg.Domains.Driver.Samples = 0
	}
	if args.Seed != nil {
		cfg.Generation.Seed = *args.Seed
		cfg.Domains.Safety.Seed = nil
		cfg.Domains.Health.Seed = nil
		cfg.Domains.Driver.Seed = nil
	}
	if args.Format != "" {
		cfg.Generation.Format = strings.ToLower(args.Format)
	}

	outDir := cfg.Generation.OutputDir
	if args.OutputDir != "" {
		outDir = args.OutputDir
	}
	resolved, err := pathutil.ResolveWithin(s.root, outDir)
	if err != nil {
		return nil, GenerateOutput{}, fmt.Errorf("output directory rejected: %w", err)
	}
	cfg.Generation.OutputDir = resolved

	var domains []models.Domain
	if args.Domains != "" {
		domains, err = models.ParseDomains(args.Domains)
		if err != nil {
			return nil, GenerateOutput{}, err
		}
	}

	runner, err := pipeline.NewRunner(&cfg, s.root, s.runnerOptions()...)
	if err != nil {
		return nil, GenerateOutput{}, fmt.Errorf("invalid generation settings: %w", err)
	}
	results, err := runner.Run(ctx, domains...)
	if err != nil {
		return nil, GenerateOutput{}, err
	}

	// Replies carry paths relative to the project root, never absolute ones.
	for i := range results {
		r := &results[i]
		r.Path = pathutil.RelativeTo(s.root, r.Path)
		r.ArchivePath = pathutil.RelativeTo(s.root, r.ArchivePath)
		r.Error = strings.ReplaceAll(r.Error, s.root+string(filepath.Separator), "")
	}

	failed := pipeline.Failed(results)
	var msg string
	if len(failed) == 0 {
		paths := make([]string, len(results))
		for i, r := range results {
			paths[i] = r.Path
		}
		msg = fmt.Sprintf("Generated %d dataset(s): %s", len(results), strings.Join(paths, ", "))
	} else {
		parts := make([]string, len(failed))
		for i, r := range failed {
			parts[i] = fmt.Sprintf("%s (%s)", r.Domain, r.Stage)
		}
		msg = fmt.Sprintf("%d of %d domain(s) failed: %s", len(failed), len(results), strings.Join(parts, ", "))
	}

	return nil, GenerateOutput{Results: results, Failed: len(failed), Message: msg}, nil
}

// handleSchema implements the battsim_schema tool.
func (s *Server) handleSchema(ctx context.Context, req *sdk.CallToolRequest, args SchemaInput) (_ *sdk.CallToolResult, _ SchemaOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("battsim_schema", start, retErr, sanitizeToolParams(map[string]any{"domain": args.Domain}))
	}()

	if err := ratelimit.CheckLimit(s.limiters, "battsim_schema"); err != nil {
		return nil, SchemaOutput{}, err
	}

	domains := models.AllDomains()
	if args.Domain != "" {
		d, err := models.ParseDomain(args.Domain)
		if err != nil {
			return nil, SchemaOutput{}, err
		}
		domains = []models.Domain{d}
	}

	var out SchemaOutput
	for _, d := range domains {
		// Describe the profile as configured, overrides included.
		dom, err := synth.NewWithOverrides(d, s.cfg.Domain(d).Overrides)
		if err != nil {
			return nil, SchemaOutput{}, err
		}
		out.Domains = append(out.Domains, synth.Describe(dom))
	}
	return nil, out, nil
}

// handleValidate implements the battsim_validate tool.
func (s *Server) handleValidate(ctx context.Context, req *sdk.CallToolRequest, args ValidateInput) (_ *sdk.CallToolResult, _ ValidateOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("battsim_validate", start, retErr, sanitizeToolParams(map[string]any{"path": args.Path}))
	}()

	if err := ratelimit.CheckLimit(s.limiters, "battsim_validate"); err != nil {
		return nil, ValidateOutput{}, err
	}

	path, err := pathutil.ResolveWithin(s.root, args.Path)
	if err != nil {
		return nil, ValidateOutput{}, fmt.Errorf("dataset path rejected: %w", err)
	}

	report, err := dataset.ValidateFile(path)
	if err != nil {
		// Parse errors can quote file content.
		return nil, ValidateOutput{}, errors.New(sanitize.Message(err.Error()))
	}

	msg := fmt.Sprintf("%s: %d rows, no issues", report.Domain, report.Rows)
	if !report.OK() {
		msg = fmt.Sprintf("%s: %d rows, %d issue(s)", report.Domain, report.Rows, report.TotalIssues)
		if report.TotalIssues > dataset.MaxIssues {
			msg += fmt.Sprintf(" (first %d listed)", dataset.MaxIssues)
		}
	}
	return nil, ValidateOutput{Valid: report.OK(), Report: report, Message: msg}, nil
}
