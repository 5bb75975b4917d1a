// Package constants provides named constants used throughout the battsim codebase.
// This centralizes magic numbers for better maintainability and documentation.
package constants

// Generation defaults
const (
	// DefaultSeed is the seed used when none is configured.
	// Every run with the same seed and parameters produces byte-identical datasets.
	DefaultSeed int64 = 42

	// DefaultSamples is the number of rows generated per domain.
	DefaultSamples = 10000

	// DefaultWorkers is the number of goroutines synthesizing rows.
	// Output does not depend on this value.
	DefaultWorkers = 1

	// MaxSamples bounds a single domain run. Larger requests are configuration errors.
	MaxSamples = 10_000_000
)

// Noise levels for the proportional Gaussian noise injector.
const (
	// DefaultNoiseLevel is the relative standard deviation applied when a
	// derived feature does not declare its own level.
	DefaultNoiseLevel = 0.05

	// PowerNoiseLevel models compounded calculation error on V*I.
	PowerNoiseLevel = 0.2

	// SpeedNoiseLevel models wheel-speed sensor jitter.
	SpeedNoiseLevel = 0.1
)

// Fault and label-noise defaults per domain.
const (
	SafetyFaultProb      = 0.10
	SafetyFaultMagnitude = 30.0
	SafetyMislabelProb   = 0.10

	HealthFaultProb      = 0.0
	HealthFaultMagnitude = 40.0
	HealthMislabelProb   = 0.0

	DriverFaultProb      = 0.0
	DriverFaultMagnitude = 40.0
	DriverMislabelProb   = 0.05
)

// Health latent model parameters.
const (
	// HealthSOHBoundary is the State-of-Health percentage at which Good and Bad
	// labels are equally likely.
	HealthSOHBoundary = 80.0

	// HealthSOHSoftness is the sigmoid temperature around the boundary.
	// Larger values blur the boundary.
	HealthSOHSoftness = 2.0

	// MaxPosteriorAttempts bounds rejection sampling of the latent SOH.
	MaxPosteriorAttempts = 10_000
)

// Output and state locations
const (
	// StateDirName is the per-project directory holding the catalog, traces and config.
	StateDirName = ".battsim"

	// ConfigFileName is the YAML config file inside StateDirName.
	ConfigFileName = "config.yaml"

	// CatalogFileName is the SQLite run catalog inside StateDirName.
	CatalogFileName = "catalog.db"

	// TraceFileName is the JSONL generation trace inside StateDirName.
	TraceFileName = "trace.jsonl"

	// DefaultOutputDir is where datasets are written, relative to the project root.
	DefaultOutputDir = "data"

	// DefaultArchiveDir is where dataset bundles are kept, relative to StateDirName.
	DefaultArchiveDir = "archive"
)

// Archive rotation controls how many dataset bundles are retained.
const (
	// MaxArchiveRotation is the default maximum number of bundles kept per directory.
	MaxArchiveRotation = 10
)

// Dataset formats
const (
	FormatCSV   = "csv"
	FormatArrow = "arrow"
)

// ValidFormats lists the accepted dataset output formats.
var ValidFormats = map[string]bool{
	FormatCSV:   true,
	FormatArrow: true,
}
