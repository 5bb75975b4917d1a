package mcp

import (
	"github.com/nvandessel/battsim/internal/dataset"
	"github.com/nvandessel/battsim/internal/pipeline"
	"github.com/nvandessel/battsim/internal/synth"
)

// GenerateInput defines the input for the battsim_generate tool.
type GenerateInput struct {
	Domains   string `json:"domains,omitempty" jsonschema:"Comma-separated domains to generate (safety, health, driver) or 'all'. Default: every enabled domain"`
	Samples   int    `json:"samples,omitempty" jsonschema:"Rows per domain. Default: configured sample count"`
	Seed      *int64 `json:"seed,omitempty" jsonschema:"Random seed. The same seed always produces the same files"`
	Format    string `json:"format,omitempty" jsonschema:"Output format: csv or arrow"`
	OutputDir string `json:"output_dir,omitempty" jsonschema:"Output directory relative to the project root"`
}

// GenerateOutput defines the output for the battsim_generate tool.
type GenerateOutput struct {
	Results []pipeline.Result `json:"results" jsonschema:"One result per domain"`
	Failed  int               `json:"failed" jsonschema:"Number of failed domains"`
	Message string            `json:"message" jsonschema:"Human-readable summary"`
}

// SchemaInput defines the input for the battsim_schema tool.
type SchemaInput struct {
	Domain string `json:"domain,omitempty" jsonschema:"Domain to describe. Default: all domains"`
}

// SchemaOutput defines the output for the battsim_schema tool.
type SchemaOutput struct {
	Domains []synth.Description `json:"domains" jsonschema:"Schema and class profiles per domain"`
}

// ValidateInput defines the input for the battsim_validate tool.
type ValidateInput struct {
	Path string `json:"path" jsonschema:"Dataset file to validate, relative to the project root"`
}

// ValidateOutput defines the output for the battsim_validate tool.
type ValidateOutput struct {
	Valid   bool            `json:"valid" jsonschema:"Whether the file matches its schema"`
	Report  *dataset.Report `json:"report" jsonschema:"Validation details"`
	Message string          `json:"message" jsonschema:"Human-readable summary"`
}
