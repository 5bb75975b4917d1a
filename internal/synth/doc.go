// Package synth generates labeled synthetic sensor datasets for the
// safety, health and driver diagnostic domains.
//
// Generation is a fixed pipeline per row:
//
//  1. draw the row's label from the domain prior
//  2. sample base features from the class profile (SampleFeatures),
//     possibly switching to a scenario overlap sub-mode
//  3. compute derived features, passing them through the proportional
//     noise injector (Inject)
//  4. inject sensor faults and annotation noise (ApplyFaults)
//  5. bound and round every column to the schema (models.Schema.FinalizeRow)
//
// All randomness comes from an explicitly passed *rand.Rand. Each row owns
// an independent stream derived from (seed, row index) by RowStream, so a
// dataset is a pure function of its seed and size no matter how many
// workers synthesize it.
//
// Usage:
//
//	ds, err := synth.GenerateDomain(ctx, models.DomainHealth, 10000, 42)
//	if err != nil {
//	    var se *synth.Error
//	    if errors.As(err, &se) && se.Stage == synth.StageConfig { ... }
//	}
package synth
